package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vdavid/vmail/webclient/internal/auth"
	"github.com/vdavid/vmail/webclient/internal/imap"
	"github.com/vdavid/vmail/webclient/internal/models"
	"github.com/vdavid/vmail/webclient/internal/testutil"
)

type passwordVerifier struct {
	password string
	seen     []imap.Credentials
}

func (v *passwordVerifier) VerifyLogin(creds imap.Credentials) error {
	v.seen = append(v.seen, creds)
	if creds.Password != v.password {
		return errors.New("authentication failed")
	}
	return nil
}

var testServers = MailServers{IMAP: "imap.test.com:993", SMTP: "smtp.test.com:587"}

func newLoginHandler(t *testing.T) (*LoginHandler, *pgxpool.Pool, *passwordVerifier) {
	t.Helper()
	testutil.SkipIfShort(t)

	pool := testutil.NewTestDB(t)
	verifier := &passwordVerifier{password: "correct"}
	handler := NewLoginHandler(pool, testutil.GetTestEncryptor(t), verifier, testServers, time.Hour)
	return handler, pool, verifier
}

func postLogin(handler *LoginHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()
	handler.Login(rr, req)
	return rr
}

func TestLoginHandler_Login(t *testing.T) {
	handler, pool, verifier := newLoginHandler(t)
	ctx := context.Background()

	rr := postLogin(handler, `{"email":" me@example.com ","password":"correct"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp models.LoginResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "me@example.com", resp.Email)
	assert.NotEmpty(t, resp.Token)

	require.Len(t, verifier.seen, 1)
	assert.Equal(t, imap.Credentials{Server: testServers.IMAP, Username: "me@example.com", Password: "correct"}, verifier.seen[0])

	t.Run("token is a valid session", func(t *testing.T) {
		id, err := auth.NewSessionValidator(pool).ValidateToken(ctx, resp.Token)
		require.NoError(t, err)
		assert.Equal(t, "me@example.com", id.Email)
	})

	t.Run("credentials are stored encrypted", func(t *testing.T) {
		id, err := auth.NewSessionValidator(pool).ValidateToken(ctx, resp.Token)
		require.NoError(t, err)

		account, err := imap.NewStoredAccounts(pool, testutil.GetTestEncryptor(t)).Account(ctx, id.UserID)
		require.NoError(t, err)
		assert.Equal(t, "me@example.com", account.Email)
		assert.Equal(t, imap.Credentials{Server: testServers.IMAP, Username: "me@example.com", Password: "correct"}, account.IMAP)
		assert.Equal(t, imap.Credentials{Server: testServers.SMTP, Username: "me@example.com", Password: "correct"}, account.SMTP)
	})

	t.Run("logout ends the session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/logout", nil)
		req.Header.Set("Authorization", "Bearer "+resp.Token)
		rr := httptest.NewRecorder()
		handler.Logout(rr, req)
		assert.Equal(t, http.StatusNoContent, rr.Code)

		_, err := auth.NewSessionValidator(pool).ValidateToken(ctx, resp.Token)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})
}

func TestLoginHandler_Rejections(t *testing.T) {
	handler, _, _ := newLoginHandler(t)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"wrong password", `{"email":"me@example.com","password":"nope"}`, http.StatusUnauthorized},
		{"missing password", `{"email":"me@example.com"}`, http.StatusBadRequest},
		{"missing email", `{"password":"correct"}`, http.StatusBadRequest},
		{"invalid json", `{"email":`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := postLogin(handler, tt.body)
			assert.Equal(t, tt.status, rr.Code)
		})
	}

	t.Run("wrong method", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.Login(rr, httptest.NewRequest(http.MethodGet, "/login", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	})

	t.Run("logout without token", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.Logout(rr, httptest.NewRequest(http.MethodPost, "/logout", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}
