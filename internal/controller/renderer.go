package controller

import (
	"github.com/vdavid/vmail/webclient/internal/models"
	"github.com/vdavid/vmail/webclient/internal/route"
)

// ViewKind is the state the controller is in, derived from the route.
type ViewKind int

const (
	ListView ViewKind = iota
	MessageView
	ComposeView
	DraftView
)

func (k ViewKind) String() string {
	switch k {
	case ListView:
		return "list"
	case MessageView:
		return "message"
	case ComposeView:
		return "compose"
	case DraftView:
		return "draft"
	default:
		return "unknown"
	}
}

// KindOf returns the view a canonical route maps to.
func KindOf(r route.Route) ViewKind {
	switch {
	case r.Mode == route.ModeWrite && r.Draft:
		return DraftView
	case r.Mode == route.ModeWrite:
		return ComposeView
	case r.MessageID != "":
		return MessageView
	default:
		return ListView
	}
}

// ListPage is one page of a folder's messages, newest first.
type ListPage struct {
	Folder    string           `json:"folder"`
	Page      string           `json:"page"`
	PageIndex int              `json:"page_index"`
	PageCount int              `json:"page_count"`
	Total     int              `json:"total"`
	Selected  string           `json:"selected,omitempty"`
	Messages  []models.Message `json:"messages"`
}

// Renderer paints the views. All methods are called from the controller's
// event loop, one at a time.
type Renderer interface {
	// Redirect replaces the current location with fragment.
	Redirect(fragment string)

	// RenderFolders paints the folder list with the active folder highlighted.
	RenderFolders(system, user []string, active string)

	// RenderMessageList paints one page of a folder.
	RenderMessageList(page ListPage)

	// RenderMessage paints a single opened message.
	RenderMessage(folder string, msg models.Message)

	// RenderCompose paints the compose form, prefilled with draft when it is not nil.
	RenderCompose(folder string, draft *models.Message)

	// RenderFolderNameFeedback shows the live result of validating a new folder name.
	// A nil err means the name is acceptable.
	RenderFolderNameFeedback(name string, err error)

	// RenderNotice shows a short confirmation.
	RenderNotice(text string)

	// RenderError shows a failed operation.
	RenderError(err error)
}
