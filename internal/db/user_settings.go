package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vdavid/vmail/webclient/internal/models"
)

// ErrUserSettingsNotFound is returned when a user never stored mail credentials.
var ErrUserSettingsNotFound = errors.New("user settings not found")

// Column order matches both the INSERT placeholders and scanUserSettings.
const userSettingsColumns = `user_id, imap_server_hostname, imap_username, encrypted_imap_password,
	smtp_server_hostname, smtp_username, encrypted_smtp_password`

// GetUserSettings returns the mail servers and encrypted credentials of the given user.
func GetUserSettings(ctx context.Context, pool *pgxpool.Pool, userID string) (*models.UserSettings, error) {
	row := pool.QueryRow(ctx,
		`SELECT `+userSettingsColumns+`, created_at, updated_at FROM user_settings WHERE user_id = $1`,
		userID)

	settings, err := scanUserSettings(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserSettingsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user settings: %w", err)
	}
	return settings, nil
}

func scanUserSettings(row pgx.Row) (*models.UserSettings, error) {
	var s models.UserSettings
	err := row.Scan(
		&s.UserID,
		&s.IMAPServerHostname, &s.IMAPUsername, &s.EncryptedIMAPPassword,
		&s.SMTPServerHostname, &s.SMTPUsername, &s.EncryptedSMTPPassword,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// SaveUserSettings stores the credentials of settings.UserID, replacing any
// earlier ones. A login with a new password lands here.
func SaveUserSettings(ctx context.Context, pool *pgxpool.Pool, s *models.UserSettings) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO user_settings (`+userSettingsColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			imap_server_hostname = EXCLUDED.imap_server_hostname,
			imap_username = EXCLUDED.imap_username,
			encrypted_imap_password = EXCLUDED.encrypted_imap_password,
			smtp_server_hostname = EXCLUDED.smtp_server_hostname,
			smtp_username = EXCLUDED.smtp_username,
			encrypted_smtp_password = EXCLUDED.encrypted_smtp_password,
			updated_at = NOW()
	`,
		s.UserID,
		s.IMAPServerHostname, s.IMAPUsername, s.EncryptedIMAPPassword,
		s.SMTPServerHostname, s.SMTPUsername, s.EncryptedSMTPPassword,
	)
	if err != nil {
		return fmt.Errorf("failed to save user settings: %w", err)
	}
	return nil
}
