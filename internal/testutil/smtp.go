package testutil

import (
	"fmt"
	"io"
	"net"
	"sync"
	"testing"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// ReceivedMessage is one message accepted by the SMTP server.
type ReceivedMessage struct {
	From string
	To   []string
	Data []byte
}

// mailSink stores every delivered message in memory.
type mailSink struct {
	mu       sync.Mutex
	messages []ReceivedMessage
}

func (b *mailSink) NewSession(*smtp.Conn) (smtp.Session, error) {
	return &sinkSession{sink: b}, nil
}

type sinkSession struct {
	sink *mailSink
	from string
	to   []string
}

func (s *sinkSession) AuthMechanisms() []string {
	return []string{sasl.Plain}
}

// Auth accepts any credentials.
func (s *sinkSession) Auth(mech string) (sasl.Server, error) {
	return sasl.NewPlainServer(func(identity, username, password string) error {
		return nil
	}), nil
}

func (s *sinkSession) Mail(from string, opts *smtp.MailOptions) error {
	s.from = from
	return nil
}

func (s *sinkSession) Rcpt(to string, opts *smtp.RcptOptions) error {
	s.to = append(s.to, to)
	return nil
}

func (s *sinkSession) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	s.sink.mu.Lock()
	defer s.sink.mu.Unlock()
	s.sink.messages = append(s.sink.messages, ReceivedMessage{From: s.from, To: s.to, Data: data})
	return nil
}

func (s *sinkSession) Reset() {
	s.from = ""
	s.to = nil
}

func (s *sinkSession) Logout() error {
	return nil
}

// SMTPServer is an in-memory SMTP server that accepts any login.
type SMTPServer struct {
	Address string
	server  *smtp.Server
	sink    *mailSink
}

// ListenSMTP starts an SMTP server on addr ("127.0.0.1:0" picks a port).
func ListenSMTP(addr string) (*SMTPServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}

	sink := &mailSink{}
	s := smtp.NewServer(sink)
	s.Domain = "localhost"
	s.AllowInsecureAuth = true

	go func() {
		_ = s.Serve(listener)
	}()

	return &SMTPServer{Address: listener.Addr().String(), server: s, sink: sink}, nil
}

// NewTestSMTPServer starts a server that is closed when the test ends.
func NewTestSMTPServer(t *testing.T) *SMTPServer {
	t.Helper()

	s, err := ListenSMTP("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to start SMTP server: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func (s *SMTPServer) Close() {
	_ = s.server.Close()
}

// Messages returns a copy of everything delivered so far.
func (s *SMTPServer) Messages() []ReceivedMessage {
	s.sink.mu.Lock()
	defer s.sink.mu.Unlock()
	return append([]ReceivedMessage(nil), s.sink.messages...)
}
