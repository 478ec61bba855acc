package imap

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vdavid/vmail/webclient/internal/crypto"
	"github.com/vdavid/vmail/webclient/internal/db"
)

// Account is everything needed to act on a user's mailbox.
type Account struct {
	Email string
	IMAP  Credentials
	SMTP  Credentials
}

// AccountSource looks up the mail account of a user.
type AccountSource interface {
	Account(ctx context.Context, userID string) (*Account, error)
}

// StoredAccounts reads accounts from the database and decrypts their passwords.
type StoredAccounts struct {
	pool      *pgxpool.Pool
	encryptor *crypto.Encryptor
}

func NewStoredAccounts(pool *pgxpool.Pool, encryptor *crypto.Encryptor) *StoredAccounts {
	return &StoredAccounts{pool: pool, encryptor: encryptor}
}

func (s *StoredAccounts) Account(ctx context.Context, userID string) (*Account, error) {
	user, err := db.GetUser(ctx, s.pool, userID)
	if err != nil {
		return nil, err
	}

	settings, err := db.GetUserSettings(ctx, s.pool, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user settings: %w", err)
	}

	imapPassword, err := s.encryptor.Decrypt(settings.EncryptedIMAPPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt IMAP password: %w", err)
	}

	smtpPassword, err := s.encryptor.Decrypt(settings.EncryptedSMTPPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt SMTP password: %w", err)
	}

	return &Account{
		Email: user.Email,
		IMAP: Credentials{
			Server:   settings.IMAPServerHostname,
			Username: settings.IMAPUsername,
			Password: imapPassword,
		},
		SMTP: Credentials{
			Server:   settings.SMTPServerHostname,
			Username: settings.SMTPUsername,
			Password: smtpPassword,
		},
	}, nil
}

var _ AccountSource = (*StoredAccounts)(nil)
