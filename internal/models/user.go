package models

import (
	"time"
)

// User represents a webmail user, identified by their email address.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserSettings holds the mail server endpoints and encrypted credentials of a user.
type UserSettings struct {
	UserID                string    `json:"user_id"`
	IMAPServerHostname    string    `json:"imap_server_hostname"`
	IMAPUsername          string    `json:"imap_username"`
	EncryptedIMAPPassword []byte    `json:"-"`
	SMTPServerHostname    string    `json:"smtp_server_hostname"`
	SMTPUsername          string    `json:"smtp_username"`
	EncryptedSMTPPassword []byte    `json:"-"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// LoginRequest is the payload of POST /login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the session token handed out after a successful login.
type LoginResponse struct {
	Token string `json:"token"`
	Email string `json:"email"`
}

// Session is a bearer token issued at login.
type Session struct {
	Token     string
	UserID    string
	Email     string
	CreatedAt time.Time
	ExpiresAt time.Time
}
