// Package view contains the renderers the controller paints through: JSON
// frames over a websocket and plain text for terminals.
package view

import (
	"errors"
	"log"

	"github.com/vdavid/vmail/webclient/internal/controller"
	"github.com/vdavid/vmail/webclient/internal/gateway"
	"github.com/vdavid/vmail/webclient/internal/mailbox"
	"github.com/vdavid/vmail/webclient/internal/models"
)

// Frame types sent to the browser.
const (
	FrameRedirect           = "redirect"
	FrameFolders            = "folders"
	FrameMessageList        = "message_list"
	FrameMessage            = "message"
	FrameCompose            = "compose"
	FrameFolderNameFeedback = "folder_name_feedback"
	FrameNotice             = "notice"
	FrameError              = "error"
)

// Error kinds carried by error frames.
const (
	ErrorKindRemote    = "remote"
	ErrorKindTransport = "transport"
	ErrorKindNotFound  = "not_found"
	ErrorKindInvalid   = "invalid"
	ErrorKindInternal  = "internal"
)

// Frame is one server-to-browser websocket message.
type Frame struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type RedirectData struct {
	Fragment string `json:"fragment"`
}

type FoldersData struct {
	System []string `json:"system"`
	User   []string `json:"user"`
	Active string   `json:"active"`
}

type MessageData struct {
	Folder  string         `json:"folder"`
	Message models.Message `json:"message"`
}

type ComposeData struct {
	Folder string          `json:"folder"`
	Draft  *models.Message `json:"draft,omitempty"`
}

type FeedbackData struct {
	Name  string `json:"name"`
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

type NoticeData struct {
	Text string `json:"text"`
}

type ErrorData struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// FrameWriter sends one JSON value. Implementations must serialize writes.
type FrameWriter interface {
	WriteJSON(v any) error
}

// SocketRenderer turns render calls into frames.
type SocketRenderer struct {
	w FrameWriter
}

// NewSocketRenderer creates a renderer writing to w.
func NewSocketRenderer(w FrameWriter) *SocketRenderer {
	return &SocketRenderer{w: w}
}

func (s *SocketRenderer) send(frameType string, data any) {
	if err := s.w.WriteJSON(Frame{Type: frameType, Data: data}); err != nil {
		log.Printf("SocketRenderer: Failed to write %s frame: %v", frameType, err)
	}
}

func (s *SocketRenderer) Redirect(fragment string) {
	s.send(FrameRedirect, RedirectData{Fragment: fragment})
}

func (s *SocketRenderer) RenderFolders(system, user []string, active string) {
	if user == nil {
		user = []string{}
	}
	s.send(FrameFolders, FoldersData{System: system, User: user, Active: active})
}

func (s *SocketRenderer) RenderMessageList(page controller.ListPage) {
	s.send(FrameMessageList, page)
}

func (s *SocketRenderer) RenderMessage(folder string, msg models.Message) {
	s.send(FrameMessage, MessageData{Folder: folder, Message: msg})
}

func (s *SocketRenderer) RenderCompose(folder string, draft *models.Message) {
	s.send(FrameCompose, ComposeData{Folder: folder, Draft: draft})
}

func (s *SocketRenderer) RenderFolderNameFeedback(name string, err error) {
	data := FeedbackData{Name: name, Valid: err == nil}
	if err != nil {
		data.Error = err.Error()
	}
	s.send(FrameFolderNameFeedback, data)
}

func (s *SocketRenderer) RenderNotice(text string) {
	s.send(FrameNotice, NoticeData{Text: text})
}

func (s *SocketRenderer) RenderError(err error) {
	s.send(FrameError, ErrorData{Kind: ErrorKind(err), Message: err.Error()})
}

// ErrorKind classifies err for display.
func ErrorKind(err error) string {
	var remoteErr *gateway.RemoteError
	var transportErr *gateway.TransportError

	switch {
	case errors.As(err, &remoteErr):
		return ErrorKindRemote
	case errors.As(err, &transportErr):
		return ErrorKindTransport
	case errors.Is(err, mailbox.ErrNotFound):
		return ErrorKindNotFound
	case errors.Is(err, controller.ErrNoSelection),
		errors.Is(err, controller.ErrUnknownFolder),
		errors.Is(err, controller.ErrInvalidFolderName),
		errors.Is(err, controller.ErrAwaitingSync):
		return ErrorKindInvalid
	default:
		return ErrorKindInternal
	}
}

// Ensure SocketRenderer implements controller.Renderer
var _ controller.Renderer = (*SocketRenderer)(nil)
