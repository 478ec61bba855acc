package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/vdavid/vmail/webclient/internal/models"
)

// QueryPath is the endpoint every command is posted to.
const QueryPath = "/query_the_server"

const (
	defaultTimeout      = 30 * time.Second
	defaultFetchRetries = 3
)

// HTTPGateway talks to a /query_the_server endpoint.
type HTTPGateway struct {
	baseURL      string
	token        string
	client       *http.Client
	fetchRetries uint64
	newBackOff   func() backoff.BackOff
}

// Option configures an HTTPGateway.
type Option func(*HTTPGateway)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(g *HTTPGateway) { g.client = c }
}

// WithFetchRetries sets how many times FetchAll is retried after a transport failure.
func WithFetchRetries(n uint64) Option {
	return func(g *HTTPGateway) { g.fetchRetries = n }
}

// WithBackOff sets the delay policy between FetchAll retries.
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(g *HTTPGateway) { g.newBackOff = newBackOff }
}

// NewHTTPGateway creates a gateway for the server at baseURL, authenticating with
// the given bearer token (may be empty).
func NewHTTPGateway(baseURL, token string, opts ...Option) *HTTPGateway {
	g := &HTTPGateway{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		token:        token,
		client:       &http.Client{Timeout: defaultTimeout},
		fetchRetries: defaultFetchRetries,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxElapsedTime = 10 * time.Second
			return b
		},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// FetchAll is the only retried command: it is idempotent. Server-reported
// failures are not retried.
func (g *HTTPGateway) FetchAll(ctx context.Context) (models.Snapshot, error) {
	var data models.FoldersData

	operation := func() error {
		data = models.FoldersData{}
		err := g.post(ctx, models.CommandFetchAll, nil, &data)
		var remoteErr *RemoteError
		if errors.As(err, &remoteErr) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		log.Printf("HTTPGateway: fetch failed, retrying in %s: %v", wait, err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(g.newBackOff(), g.fetchRetries), ctx)
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return nil, err
	}

	snapshot, err := data.Snapshot()
	if err != nil {
		return nil, &TransportError{Command: models.CommandFetchAll, Err: err}
	}
	return snapshot, nil
}

func (g *HTTPGateway) SendEmail(ctx context.Context, draft models.Draft) error {
	return g.post(ctx, models.CommandSendEmail, draftForm(draft), nil)
}

func (g *HTTPGateway) SaveEmail(ctx context.Context, targetFolder string, draft models.Draft) (string, error) {
	form := draftForm(draft)
	form.Set("target_folder", targetFolder)

	var data models.SavedData
	if err := g.post(ctx, models.CommandSaveEmail, form, &data); err != nil {
		return "", err
	}
	if data.UID == "" {
		return "", &TransportError{Command: models.CommandSaveEmail, Err: errors.New("response has no uid")}
	}
	return data.UID, nil
}

func (g *HTTPGateway) MoveToBin(ctx context.Context, folder, id string) error {
	return g.post(ctx, models.CommandMoveToBin, url.Values{"folder": {folder}, "uid": {id}}, nil)
}

func (g *HTTPGateway) DeleteMessage(ctx context.Context, folder, id string) error {
	return g.post(ctx, models.CommandDeleteMessage, url.Values{"folder": {folder}, "uid": {id}}, nil)
}

func (g *HTTPGateway) MoveTo(ctx context.Context, folder, id, newFolder string) error {
	form := url.Values{"folder": {folder}, "uid": {id}, "new_folder": {newFolder}}
	return g.post(ctx, models.CommandMoveTo, form, nil)
}

func (g *HTTPGateway) CreateFolder(ctx context.Context, name string) error {
	return g.post(ctx, models.CommandCreateFolder, url.Values{"folder": {name}}, nil)
}

// post sends one command and decodes the envelope. data may be nil when the
// command has no payload.
func (g *HTTPGateway) post(ctx context.Context, command string, form url.Values, data any) error {
	if form == nil {
		form = url.Values{}
	}
	form.Set("command", command)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+QueryPath, strings.NewReader(form.Encode()))
	if err != nil {
		return &TransportError{Command: command, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return &TransportError{Command: command, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Command: command, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	var envelope models.QueryResponse[json.RawMessage]
	if err := json.Unmarshal(body, &envelope); err != nil {
		return &TransportError{
			Command: command,
			Err:     fmt.Errorf("unexpected response (status %d): %w", resp.StatusCode, err),
		}
	}

	if !envelope.Success {
		return &RemoteError{Command: command, Message: envelope.Error}
	}

	if data != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, data); err != nil {
			return &TransportError{Command: command, Err: fmt.Errorf("failed to decode data: %w", err)}
		}
	}
	return nil
}

func draftForm(d models.Draft) url.Values {
	return url.Values{
		"recipient": {d.To},
		"subject":   {d.Subject},
		"body":      {d.Body},
	}
}

// Ensure HTTPGateway implements Gateway interface
var _ Gateway = (*HTTPGateway)(nil)
