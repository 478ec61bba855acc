package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vdavid/vmail/webclient/internal/models"
)

// ErrSessionNotFound is returned for unknown, malformed and expired tokens alike.
var ErrSessionNotFound = errors.New("session not found")

// CreateSession issues a new token for the user, valid for ttl.
func CreateSession(ctx context.Context, pool *pgxpool.Pool, userID string, ttl time.Duration) (*models.Session, error) {
	session := models.Session{
		Token:  uuid.NewString(),
		UserID: userID,
	}

	err := pool.QueryRow(ctx, `
		INSERT INTO sessions (token, user_id, expires_at)
		VALUES ($1, $2, NOW() + make_interval(secs => $3))
		RETURNING created_at, expires_at
	`, session.Token, userID, ttl.Seconds()).Scan(&session.CreatedAt, &session.ExpiresAt)

	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &session, nil
}

// GetSession resolves a live token to its session and the owner's email.
func GetSession(ctx context.Context, pool *pgxpool.Pool, token string) (*models.Session, error) {
	if uuid.Validate(token) != nil {
		return nil, ErrSessionNotFound
	}

	var session models.Session
	err := pool.QueryRow(ctx, `
		SELECT s.token, s.user_id, u.email, s.created_at, s.expires_at
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token = $1 AND s.expires_at > NOW()
	`, token).Scan(&session.Token, &session.UserID, &session.Email, &session.CreatedAt, &session.ExpiresAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return &session, nil
}

func DeleteSession(ctx context.Context, pool *pgxpool.Pool, token string) error {
	if uuid.Validate(token) != nil {
		return nil
	}
	if _, err := pool.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes sessions past their expiry and returns how many went.
func DeleteExpiredSessions(ctx context.Context, pool *pgxpool.Pool) (int64, error) {
	tag, err := pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
