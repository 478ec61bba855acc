package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vdavid/vmail/webclient/internal/auth"
	"github.com/vdavid/vmail/webclient/internal/crypto"
	"github.com/vdavid/vmail/webclient/internal/db"
	"github.com/vdavid/vmail/webclient/internal/imap"
	"github.com/vdavid/vmail/webclient/internal/models"
)

// LoginVerifier checks mail credentials against the IMAP server.
type LoginVerifier interface {
	VerifyLogin(creds imap.Credentials) error
}

// MailServers are the endpoints every account logs in to.
type MailServers struct {
	IMAP string
	SMTP string
}

// LoginHandler exchanges mail credentials for a session token.
type LoginHandler struct {
	pool       *pgxpool.Pool
	encryptor  *crypto.Encryptor
	verifier   LoginVerifier
	servers    MailServers
	sessionTTL time.Duration
}

// NewLoginHandler creates a new LoginHandler instance.
func NewLoginHandler(pool *pgxpool.Pool, encryptor *crypto.Encryptor, verifier LoginVerifier, servers MailServers, sessionTTL time.Duration) *LoginHandler {
	return &LoginHandler{
		pool:       pool,
		encryptor:  encryptor,
		verifier:   verifier,
		servers:    servers,
		sessionTTL: sessionTTL,
	}
}

// Login verifies the credentials with an IMAP login, stores them encrypted and
// returns a new session token. The same password is used for SMTP.
func (h *LoginHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("LoginHandler: Failed to decode request: %v", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		http.Error(w, "email and password are required", http.StatusBadRequest)
		return
	}

	creds := imap.Credentials{Server: h.servers.IMAP, Username: req.Email, Password: req.Password}
	if err := h.verifier.VerifyLogin(creds); err != nil {
		log.Printf("LoginHandler: IMAP login failed for %s: %v", req.Email, err)
		http.Error(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}

	userID, err := db.GetOrCreateUser(ctx, h.pool, req.Email)
	if err != nil {
		log.Printf("LoginHandler: Failed to get/create user: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	encryptedPassword, err := h.encryptor.Encrypt(req.Password)
	if err != nil {
		log.Printf("LoginHandler: Failed to encrypt password: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	settings := &models.UserSettings{
		UserID:                userID,
		IMAPServerHostname:    h.servers.IMAP,
		IMAPUsername:          req.Email,
		EncryptedIMAPPassword: encryptedPassword,
		SMTPServerHostname:    h.servers.SMTP,
		SMTPUsername:          req.Email,
		EncryptedSMTPPassword: encryptedPassword,
	}
	if err := db.SaveUserSettings(ctx, h.pool, settings); err != nil {
		log.Printf("LoginHandler: Failed to save settings: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	session, err := db.CreateSession(ctx, h.pool, userID, h.sessionTTL)
	if err != nil {
		log.Printf("LoginHandler: Failed to create session: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, models.LoginResponse{Token: session.Token, Email: req.Email})
}

// Logout deletes the session of the presented bearer token.
func (h *LoginHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	token := auth.BearerToken(r)
	if token == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := db.DeleteSession(r.Context(), h.pool, token); err != nil {
		log.Printf("LoginHandler: Failed to delete session: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
