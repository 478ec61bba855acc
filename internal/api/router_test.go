package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/vdavid/vmail/webclient/internal/gateway"
	"github.com/vdavid/vmail/webclient/internal/models"
	"github.com/vdavid/vmail/webclient/internal/testutil/mocks"
	ws "github.com/vdavid/vmail/webclient/internal/websocket"
)

func newTestRouter(t *testing.T, gw *mocks.Gateway) http.Handler {
	t.Helper()

	provider := func(string) gateway.Gateway { return gw }
	return NewRouter(Handlers{
		Validator: testValidator,
		Query:     NewQueryHandler(provider),
		WebSocket: NewWebSocketHandler(testValidator, provider, newBlockingIdle(), ws.NewHub(1), 10),
		Name:      "V-Mail",
	})
}

func TestRouter(t *testing.T) {
	gw := mocks.NewGateway(t)
	router := newTestRouter(t, gw)

	t.Run("root", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
		body, _ := io.ReadAll(rr.Body)
		assert.Equal(t, "V-Mail is running", string(body))
	})

	t.Run("unknown path", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("login is not mounted without a database", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/login", nil))
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("query requires a token", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, gateway.QueryPath, strings.NewReader("command=create_folder&folder=X")))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("query with a token", func(t *testing.T) {
		gw.On("CreateFolder", mock.Anything, "X").Return(nil).Once()

		req := httptest.NewRequest(http.MethodPost, gateway.QueryPath, strings.NewReader("command="+models.CommandCreateFolder+"&folder=X"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Authorization", "Bearer token")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"success":true}`, rr.Body.String())
	})
}
