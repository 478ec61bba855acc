package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vdavid/vmail/webclient/internal/db"
)

// SessionValidator checks tokens against the sessions table.
type SessionValidator struct {
	pool *pgxpool.Pool
}

func NewSessionValidator(pool *pgxpool.Pool) *SessionValidator {
	return &SessionValidator{pool: pool}
}

func (v *SessionValidator) ValidateToken(ctx context.Context, token string) (Identity, error) {
	session, err := db.GetSession(ctx, v.pool, token)
	if errors.Is(err, db.ErrSessionNotFound) {
		return Identity{}, ErrInvalidToken
	}
	if err != nil {
		return Identity{}, fmt.Errorf("failed to validate token: %w", err)
	}
	return Identity{UserID: session.UserID, Email: session.Email}, nil
}

var _ TokenValidator = (*SessionValidator)(nil)
