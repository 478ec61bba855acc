package testutil

import (
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/backend/memory"
	imapclient "github.com/emersion/go-imap/client"
	"github.com/emersion/go-imap/server"
)

// IMAPServer is an in-memory IMAP server. The memory backend has a single
// account, "username" / "password", whose INBOX holds one sample message.
type IMAPServer struct {
	Address string
	Backend *memory.Backend
	server  *server.Server
}

// ListenIMAP starts an in-memory IMAP server on addr ("127.0.0.1:0" picks a port).
func ListenIMAP(addr string) (*IMAPServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}

	be := memory.New()
	s := server.New(be)
	s.AllowInsecureAuth = true

	go func() {
		_ = s.Serve(listener)
	}()

	return &IMAPServer{
		Address: listener.Addr().String(),
		Backend: be,
		server:  s,
	}, nil
}

// NewTestIMAPServer starts a server that is closed when the test ends.
func NewTestIMAPServer(t *testing.T) *IMAPServer {
	t.Helper()

	s, err := ListenIMAP("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to start IMAP server: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func (s *IMAPServer) Close() {
	_ = s.server.Close()
}

func (s *IMAPServer) Username() string { return "username" }

func (s *IMAPServer) Password() string { return "password" }

// Connect logs in a fresh client; it logs out when the test ends.
func (s *IMAPServer) Connect(t *testing.T) *imapclient.Client {
	t.Helper()

	c, err := s.Dial()
	if err != nil {
		t.Fatalf("Failed to connect to test server: %v", err)
	}
	t.Cleanup(func() { _ = c.Logout() })
	return c
}

// Dial logs in a fresh client. The caller logs it out.
func (s *IMAPServer) Dial() (*imapclient.Client, error) {
	c, err := imapclient.Dial(s.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to dial: %w", err)
	}
	if err := c.Login(s.Username(), s.Password()); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("failed to login: %w", err)
	}
	return c, nil
}

// CreateFolders creates server mailboxes, ignoring ones that already exist.
func (s *IMAPServer) CreateFolders(names ...string) error {
	c, err := s.Dial()
	if err != nil {
		return err
	}
	defer func() { _ = c.Logout() }()

	for _, name := range names {
		if _, err := c.Select(name, true); err == nil {
			continue
		}
		if err := c.Create(name); err != nil {
			return fmt.Errorf("failed to create %s: %w", name, err)
		}
	}
	return nil
}

// TestMessage describes a message to seed into a server mailbox.
type TestMessage struct {
	MessageID string
	From      string
	To        string
	Subject   string
	Body      string
	Date      time.Time
}

// Append stores msg in mailbox and returns its UID.
func (s *IMAPServer) Append(mailbox string, msg TestMessage) (uint32, error) {
	c, err := s.Dial()
	if err != nil {
		return 0, err
	}
	defer func() { _ = c.Logout() }()

	if msg.MessageID == "" {
		msg.MessageID = fmt.Sprintf("<%d@test.local>", time.Now().UnixNano())
	}
	if msg.Date.IsZero() {
		msg.Date = time.Now()
	}

	raw := strings.Join([]string{
		"Message-ID: " + msg.MessageID,
		"Date: " + msg.Date.Format(time.RFC1123Z),
		"From: " + msg.From,
		"To: " + msg.To,
		"Subject: " + msg.Subject,
		"Content-Type: text/plain; charset=utf-8",
		"",
		msg.Body,
		"",
	}, "\r\n")

	if err := c.Append(mailbox, []string{imap.SeenFlag}, msg.Date, strings.NewReader(raw)); err != nil {
		return 0, fmt.Errorf("failed to append message: %w", err)
	}

	if _, err := c.Select(mailbox, true); err != nil {
		return 0, fmt.Errorf("failed to select %s: %w", mailbox, err)
	}
	criteria := imap.NewSearchCriteria()
	criteria.Header.Add("Message-ID", msg.MessageID)
	uids, err := c.UidSearch(criteria)
	if err != nil {
		return 0, fmt.Errorf("failed to search for message: %w", err)
	}
	if len(uids) == 0 {
		return 0, fmt.Errorf("message %s not found after append", msg.MessageID)
	}
	return uids[len(uids)-1], nil
}

// AddMessage is Append for tests.
func (s *IMAPServer) AddMessage(t *testing.T, mailbox string, msg TestMessage) uint32 {
	t.Helper()

	uid, err := s.Append(mailbox, msg)
	if err != nil {
		t.Fatalf("Failed to add message to %s: %v", mailbox, err)
	}
	return uid
}

// UIDs lists the UIDs currently in mailbox.
func (s *IMAPServer) UIDs(t *testing.T, mailbox string) []uint32 {
	t.Helper()

	c := s.Connect(t)
	if _, err := c.Select(mailbox, true); err != nil {
		t.Fatalf("Failed to select %s: %v", mailbox, err)
	}
	uids, err := c.UidSearch(imap.NewSearchCriteria())
	if err != nil {
		t.Fatalf("Failed to search %s: %v", mailbox, err)
	}
	return uids
}
