package imap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/vdavid/vmail/webclient/internal/models"
	"golang.org/x/sync/errgroup"
)

var (
	ErrFolderNotFound    = errors.New("folder not found")
	ErrFolderExists      = errors.New("folder already exists")
	ErrInvalidFolderName = errors.New("invalid folder name")
	ErrMessageNotFound   = errors.New("message not found")
	ErrNoRecipients      = errors.New("message has no recipients")
)

// Service runs mailbox operations against the IMAP and SMTP servers of each user.
type Service struct {
	pool       *Pool
	accounts   AccountSource
	sender     Sender
	fetchLimit int
	now        func() time.Time
}

// NewService creates a service fetching at most fetchLimit messages per folder.
func NewService(pool *Pool, accounts AccountSource, sender Sender, fetchLimit int) *Service {
	return &Service{
		pool:       pool,
		accounts:   accounts,
		sender:     sender,
		fetchLimit: fetchLimit,
		now:        time.Now,
	}
}

// VerifyLogin checks IMAP credentials with the pool's TLS setting.
func (s *Service) VerifyLogin(creds Credentials) error {
	return VerifyLogin(creds, s.pool.UseTLS())
}

// withClient runs fn on a worker connection together with the server's folder map.
func (s *Service) withClient(ctx context.Context, userID string, account *Account, fn func(c *client.Client, folders FolderMap) error) error {
	c, release, err := s.pool.Acquire(ctx, userID, account.IMAP)
	if err != nil {
		return fmt.Errorf("failed to get IMAP connection: %w", err)
	}

	err = func() error {
		folders, err := LoadFolderMap(c)
		if err != nil {
			return err
		}
		return fn(c, folders)
	}()

	release(!usable(c))
	return err
}

// FetchAll returns the latest messages of every folder. Folders are fetched in
// parallel, one worker connection each.
func (s *Service) FetchAll(ctx context.Context, userID string) (models.Snapshot, error) {
	account, err := s.accounts.Account(ctx, userID)
	if err != nil {
		return nil, err
	}

	var folders FolderMap
	if err := s.withClient(ctx, userID, account, func(_ *client.Client, f FolderMap) error {
		folders = f
		return nil
	}); err != nil {
		return nil, err
	}

	snapshot := make(models.Snapshot)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.pool.MaxWorkers())
	for _, folder := range folders.Folders() {
		mailbox, _ := folders.ServerName(folder)
		g.Go(func() error {
			c, release, err := s.pool.Acquire(gctx, userID, account.IMAP)
			if err != nil {
				return fmt.Errorf("failed to get IMAP connection: %w", err)
			}
			messages, err := FetchLatest(c, mailbox, s.fetchLimit)
			release(!usable(c))
			if err != nil {
				return err
			}

			byID := make(map[string]models.Message, len(messages))
			for _, m := range messages {
				byID[m.ID] = m
			}
			mu.Lock()
			snapshot[folder] = byID
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, folder := range models.SystemFolders {
		if _, ok := snapshot[folder]; !ok {
			snapshot[folder] = make(map[string]models.Message)
		}
	}

	log.Printf("IMAP: fetched %d folders for user %s", len(snapshot), userID)
	return snapshot, nil
}

// SendEmail submits the draft over SMTP and keeps a copy in the sent folder.
func (s *Service) SendEmail(ctx context.Context, userID string, draft models.Draft) error {
	account, err := s.accounts.Account(ctx, userID)
	if err != nil {
		return err
	}

	date := s.now()
	out, err := Compose(account.Email, draft, date, true)
	if err != nil {
		return err
	}
	if len(out.Recipients) == 0 {
		return ErrNoRecipients
	}

	if err := s.sender.Send(account.SMTP, account.Email, out.Recipients, out.Raw); err != nil {
		return err
	}

	err = s.withClient(ctx, userID, account, func(c *client.Client, folders FolderMap) error {
		mailbox, err := folders.Ensure(c, models.FolderSent)
		if err != nil {
			return err
		}
		return c.Append(mailbox, []string{imap.SeenFlag}, date, bytes.NewReader(out.Raw))
	})
	if err != nil {
		log.Printf("IMAP: message sent for user %s but not stored in sent: %v", userID, err)
	}
	return nil
}

// SaveEmail appends the draft to targetFolder and returns its UID there.
// Messages saved to drafts carry the \Draft flag.
func (s *Service) SaveEmail(ctx context.Context, userID, targetFolder string, draft models.Draft) (string, error) {
	account, err := s.accounts.Account(ctx, userID)
	if err != nil {
		return "", err
	}

	date := s.now()
	out, err := Compose(account.Email, draft, date, false)
	if err != nil {
		return "", err
	}

	flags := []string{imap.SeenFlag}
	if targetFolder == models.FolderDrafts {
		flags = append(flags, imap.DraftFlag)
	}

	var uid uint32
	err = s.withClient(ctx, userID, account, func(c *client.Client, folders FolderMap) error {
		mailbox, err := folders.Ensure(c, targetFolder)
		if err != nil {
			return err
		}
		if err := c.Append(mailbox, flags, date, bytes.NewReader(out.Raw)); err != nil {
			return fmt.Errorf("failed to append to %s: %w", mailbox, err)
		}
		uid, err = findByMessageID(c, mailbox, out.MessageID)
		return err
	})
	if err != nil {
		return "", err
	}

	return strconv.FormatUint(uint64(uid), 10), nil
}

func (s *Service) MoveToBin(ctx context.Context, userID, folder, id string) error {
	return s.MoveTo(ctx, userID, folder, id, models.FolderBin)
}

// MoveTo moves a message between folders. The message gets a new UID in newFolder.
func (s *Service) MoveTo(ctx context.Context, userID, folder, id, newFolder string) error {
	uids, err := uidSet(id)
	if err != nil {
		return err
	}
	if folder == newFolder {
		return nil
	}

	account, err := s.accounts.Account(ctx, userID)
	if err != nil {
		return err
	}

	return s.withClient(ctx, userID, account, func(c *client.Client, folders FolderMap) error {
		src, ok := folders.ServerName(folder)
		if !ok {
			return fmt.Errorf("%w: %s", ErrFolderNotFound, folder)
		}
		dst, err := folders.Ensure(c, newFolder)
		if err != nil {
			return err
		}
		return moveMessage(c, src, uids, dst)
	})
}

// DeleteMessage permanently removes a message.
func (s *Service) DeleteMessage(ctx context.Context, userID, folder, id string) error {
	uids, err := uidSet(id)
	if err != nil {
		return err
	}

	account, err := s.accounts.Account(ctx, userID)
	if err != nil {
		return err
	}

	return s.withClient(ctx, userID, account, func(c *client.Client, folders FolderMap) error {
		mailbox, ok := folders.ServerName(folder)
		if !ok {
			return fmt.Errorf("%w: %s", ErrFolderNotFound, folder)
		}
		if _, err := c.Select(mailbox, false); err != nil {
			return fmt.Errorf("failed to select %s: %w", mailbox, err)
		}
		if err := requireUIDs(c, uids); err != nil {
			return err
		}
		return expunge(c, uids)
	})
}

// CreateFolder creates a top-level user mailbox.
func (s *Service) CreateFolder(ctx context.Context, userID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" || strings.Contains(name, "/") || models.IsSystemFolder(strings.ToLower(name)) {
		return fmt.Errorf("%w: %q", ErrInvalidFolderName, name)
	}

	account, err := s.accounts.Account(ctx, userID)
	if err != nil {
		return err
	}

	return s.withClient(ctx, userID, account, func(c *client.Client, folders FolderMap) error {
		if _, ok := folders.ServerName(name); ok {
			return fmt.Errorf("%w: %s", ErrFolderExists, name)
		}
		if err := c.Create(name); err != nil {
			return fmt.Errorf("failed to create %s: %w", name, err)
		}
		return nil
	})
}

// Close closes every pooled connection.
func (s *Service) Close() {
	s.pool.Close()
}

func uidSet(id string) (*imap.SeqSet, error) {
	uid, err := strconv.ParseUint(id, 10, 32)
	if err != nil || uid == 0 {
		return nil, fmt.Errorf("%w: %q is not a UID", ErrMessageNotFound, id)
	}
	set := new(imap.SeqSet)
	set.AddNum(uint32(uid))
	return set, nil
}

// requireUIDs fails with ErrMessageNotFound unless the selected mailbox holds uids.
func requireUIDs(c *client.Client, uids *imap.SeqSet) error {
	criteria := imap.NewSearchCriteria()
	criteria.Uid = uids
	found, err := c.UidSearch(criteria)
	if err != nil {
		return fmt.Errorf("failed to search: %w", err)
	}
	if len(found) == 0 {
		return fmt.Errorf("%w: UID %s", ErrMessageNotFound, uids)
	}
	return nil
}

func moveMessage(c *client.Client, src string, uids *imap.SeqSet, dst string) error {
	if _, err := c.Select(src, false); err != nil {
		return fmt.Errorf("failed to select %s: %w", src, err)
	}
	if err := requireUIDs(c, uids); err != nil {
		return err
	}

	if ok, _ := c.Support("MOVE"); ok {
		err := c.UidMove(uids, dst)
		if err == nil {
			return nil
		}
		log.Printf("IMAP: MOVE to %s failed, falling back to COPY: %v", dst, err)
	}

	if err := c.UidCopy(uids, dst); err != nil {
		return fmt.Errorf("failed to copy to %s: %w", dst, err)
	}
	return expunge(c, uids)
}

// expunge flags uids \Deleted in the selected mailbox and expunges it.
func expunge(c *client.Client, uids *imap.SeqSet) error {
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := c.UidStore(uids, item, []interface{}{imap.DeletedFlag}, nil); err != nil {
		return fmt.Errorf("failed to flag deleted: %w", err)
	}
	if err := c.Expunge(nil); err != nil {
		return fmt.Errorf("failed to expunge: %w", err)
	}
	return nil
}

// findByMessageID returns the highest UID in mailbox carrying the Message-Id header.
func findByMessageID(c *client.Client, mailbox, messageID string) (uint32, error) {
	if _, err := c.Select(mailbox, true); err != nil {
		return 0, fmt.Errorf("failed to select %s: %w", mailbox, err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.Header.Add("Message-Id", messageID)
	uids, err := c.UidSearch(criteria)
	if err != nil {
		return 0, fmt.Errorf("failed to search for saved message: %w", err)
	}
	if len(uids) == 0 {
		return 0, fmt.Errorf("saved message %s not found in %s", messageID, mailbox)
	}

	return slices.Max(uids), nil
}
