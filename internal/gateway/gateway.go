// Package gateway defines the mailbox operations the client asks a server for,
// and an HTTP implementation of them.
package gateway

import (
	"context"
	"fmt"

	"github.com/vdavid/vmail/webclient/internal/models"
)

// Gateway is the request/response interface to the mail backend.
// Implementations must be safe for concurrent use.
type Gateway interface {
	// FetchAll returns every folder with its messages.
	FetchAll(ctx context.Context) (models.Snapshot, error)

	// SendEmail sends a message.
	SendEmail(ctx context.Context, draft models.Draft) error

	// SaveEmail stores a message in targetFolder and returns the id the server assigned.
	SaveEmail(ctx context.Context, targetFolder string, draft models.Draft) (string, error)

	// MoveToBin moves a message to the bin folder.
	MoveToBin(ctx context.Context, folder, id string) error

	// DeleteMessage permanently removes a message.
	DeleteMessage(ctx context.Context, folder, id string) error

	// MoveTo moves a message between folders.
	MoveTo(ctx context.Context, folder, id, newFolder string) error

	// CreateFolder creates a user folder.
	CreateFolder(ctx context.Context, name string) error
}

// RemoteError means the server answered but reported a failure.
type RemoteError struct {
	Command string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("server rejected %s: %s", e.Command, e.Message)
}

// TransportError means the request did not complete or the answer could not be read.
type TransportError struct {
	Command string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request %s failed: %v", e.Command, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
