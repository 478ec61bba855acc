package controller

import (
	"errors"
	"fmt"

	"github.com/vdavid/vmail/webclient/internal/models"
)

// Command types accepted by Dispatch.
const (
	CommandNavigate           = "navigate"
	CommandSend               = "send"
	CommandSaveDraft          = "save_draft"
	CommandMoveToBin          = "move_to_bin"
	CommandDeleteMessage      = "delete_message"
	CommandMoveTo             = "move_to"
	CommandCreateFolder       = "create_folder"
	CommandValidateFolderName = "validate_folder_name"
	CommandResync             = "resync"
)

// ErrUnknownCommand is returned by Dispatch for a command type it does not know.
var ErrUnknownCommand = errors.New("unknown command")

// Command is a route change or user intent coming from a view.
type Command struct {
	Type     string       `json:"type"`
	Fragment string       `json:"fragment,omitempty"`
	Draft    models.Draft `json:"draft"`
	Folder   string       `json:"folder,omitempty"`
	Name     string       `json:"name,omitempty"`
}

// Dispatch hands cmd to the matching controller method.
func (c *Controller) Dispatch(cmd Command) error {
	switch cmd.Type {
	case CommandNavigate:
		c.Navigate(cmd.Fragment)
	case CommandSend:
		c.Send(cmd.Draft)
	case CommandSaveDraft:
		c.SaveDraft(cmd.Draft)
	case CommandMoveToBin:
		c.MoveToBin()
	case CommandDeleteMessage:
		c.DeleteMessage()
	case CommandMoveTo:
		c.MoveTo(cmd.Folder)
	case CommandCreateFolder:
		c.CreateFolder(cmd.Name)
	case CommandValidateFolderName:
		c.ValidateFolderName(cmd.Name)
	case CommandResync:
		c.Resync()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type)
	}
	return nil
}
