package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessions(t *testing.T) {
	pool := newTestPool(t)
	defer pool.Close()

	ctx := context.Background()

	userID, err := GetOrCreateUser(ctx, pool, "session@example.com")
	require.NoError(t, err)

	t.Run("creates and resolves a session", func(t *testing.T) {
		session, err := CreateSession(ctx, pool, userID, time.Hour)
		require.NoError(t, err)
		assert.NotEmpty(t, session.Token)
		assert.True(t, session.ExpiresAt.After(session.CreatedAt))

		got, err := GetSession(ctx, pool, session.Token)
		require.NoError(t, err)
		assert.Equal(t, userID, got.UserID)
		assert.Equal(t, "session@example.com", got.Email)
	})

	t.Run("rejects malformed and unknown tokens", func(t *testing.T) {
		_, err := GetSession(ctx, pool, "not-a-uuid")
		assert.ErrorIs(t, err, ErrSessionNotFound)

		_, err = GetSession(ctx, pool, "00000000-0000-0000-0000-000000000000")
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("expired sessions are invisible and purged", func(t *testing.T) {
		session, err := CreateSession(ctx, pool, userID, -time.Minute)
		require.NoError(t, err)

		_, err = GetSession(ctx, pool, session.Token)
		assert.ErrorIs(t, err, ErrSessionNotFound)

		removed, err := DeleteExpiredSessions(ctx, pool)
		require.NoError(t, err)
		assert.Equal(t, int64(1), removed)
	})

	t.Run("deleted sessions stop resolving", func(t *testing.T) {
		session, err := CreateSession(ctx, pool, userID, time.Hour)
		require.NoError(t, err)

		require.NoError(t, DeleteSession(ctx, pool, session.Token))
		_, err = GetSession(ctx, pool, session.Token)
		assert.ErrorIs(t, err, ErrSessionNotFound)

		assert.NoError(t, DeleteSession(ctx, pool, "garbage"))
	})
}
