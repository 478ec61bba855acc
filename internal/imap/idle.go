package imap

import (
	"context"
	"log"
	"strings"
	"time"

	idle "github.com/emersion/go-imap-idle"
	imapclient "github.com/emersion/go-imap/client"
)

const (
	// idleRetryDelay is the pause after a failed or finished IDLE session.
	idleRetryDelay = 10 * time.Second
	// idlePollInterval is the NOOP interval for servers without IDLE.
	idlePollInterval = 5 * time.Second
)

// Notifier is told when a user's INBOX changes.
type Notifier interface {
	ActiveConnections(userID string) int
	Notify(userID string)
}

// StartIdleListener watches the user's INBOX with IDLE and calls n.Notify when
// messages arrive. It blocks until ctx is canceled.
func (s *Service) StartIdleListener(ctx context.Context, userID string, n Notifier) {
	defer s.pool.DropListener(userID)

	for ctx.Err() == nil {
		if n.ActiveConnections(userID) > 0 {
			if err := s.idleOnce(ctx, userID, n); err != nil {
				log.Printf("IMAP IDLE: user %s: %v", userID, err)
			}
		}

		select {
		case <-ctx.Done():
		case <-time.After(idleRetryDelay):
		}
	}
}

// idleOnce runs one IDLE session on the listener connection.
func (s *Service) idleOnce(ctx context.Context, userID string, n Notifier) error {
	account, err := s.accounts.Account(ctx, userID)
	if err != nil {
		return err
	}

	c, err := s.pool.Listener(userID, account.IMAP)
	if err != nil {
		return err
	}

	updates := make(chan imapclient.Update, 10)
	c.Updates = updates

	if _, err := c.Select("INBOX", true); err != nil {
		s.pool.DropListener(userID)
		return err
	}

	stop := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- idle.NewClient(c).IdleWithFallback(stop, idlePollInterval)
	}()

	for {
		select {
		case <-ctx.Done():
			close(stop)
			// Keep draining so the client can read the server's reply to DONE.
			for {
				select {
				case <-updates:
				case <-done:
					return nil
				}
			}
		case err := <-done:
			if err != nil {
				s.pool.DropListener(userID)
			}
			return err
		case update := <-updates:
			if isNewMail(update) {
				n.Notify(userID)
			}
		}
	}
}

// isNewMail reports whether update announces messages in INBOX.
func isNewMail(update imapclient.Update) bool {
	mboxUpdate, ok := update.(*imapclient.MailboxUpdate)
	if !ok || mboxUpdate.Mailbox == nil {
		return false
	}
	status := mboxUpdate.Mailbox
	return strings.EqualFold(status.Name, "INBOX") && status.Messages > 0
}
