package controller

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/vdavid/vmail/webclient/internal/mailbox"
	"github.com/vdavid/vmail/webclient/internal/models"
	"github.com/vdavid/vmail/webclient/internal/route"
)

var (
	// ErrNoSelection is returned by message intents when no message is open.
	ErrNoSelection = errors.New("no message selected")
	// ErrUnknownFolder is returned when a move targets a folder that does not exist.
	ErrUnknownFolder = errors.New("unknown folder")
	// ErrAwaitingSync is returned for a message that was moved and has not been fetched again yet.
	ErrAwaitingSync = errors.New("message is waiting for the mailbox to refresh")
	// ErrInvalidFolderName is returned for a folder name that cannot be created.
	ErrInvalidFolderName = errors.New("invalid folder name")
)

// CheckFolderName reports whether name can be used for a new folder.
func CheckFolderName(cache *mailbox.Cache, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidFolderName)
	}
	if strings.Contains(name, "/") {
		return fmt.Errorf("%w: name must not contain '/'", ErrInvalidFolderName)
	}
	if cache.FolderExists(name) {
		return fmt.Errorf("%w: %w", ErrInvalidFolderName, mailbox.ErrAlreadyExists)
	}
	return nil
}

// Send sends draft and records it in the sent folder.
func (c *Controller) Send(draft models.Draft) {
	c.post(func() { c.send(draft) })
}

// SaveDraft stores draft in the drafts folder and opens it.
func (c *Controller) SaveDraft(draft models.Draft) {
	c.post(func() { c.saveDraft(draft) })
}

// MoveToBin moves the open message to the bin. A message already in the bin is
// deleted for good.
func (c *Controller) MoveToBin() {
	c.post(c.moveToBin)
}

// DeleteMessage permanently removes the open message.
func (c *Controller) DeleteMessage() {
	c.post(c.deleteMessage)
}

// MoveTo moves the open message to newFolder.
func (c *Controller) MoveTo(newFolder string) {
	c.post(func() { c.moveTo(newFolder) })
}

// CreateFolder creates a user folder.
func (c *Controller) CreateFolder(name string) {
	c.post(func() { c.createFolder(name) })
}

// ValidateFolderName checks name without contacting the server.
func (c *Controller) ValidateFolderName(name string) {
	c.post(func() {
		c.renderer.RenderFolderNameFeedback(name, CheckFolderName(c.cache, name))
	})
}

// call runs fn against the gateway off the loop and posts done back onto it.
func (c *Controller) call(fn func(ctx context.Context) error, done func(err error)) {
	ctx := c.ctx
	c.inFlight++
	go func() {
		err := fn(ctx)
		c.post(func() {
			c.inFlight--
			done(err)
		})
	}()
}

func (c *Controller) send(draft models.Draft) {
	c.call(func(ctx context.Context) error {
		return c.gateway.SendEmail(ctx, draft)
	}, func(err error) {
		if err != nil {
			c.fail("send the message", err)
			return
		}

		id := c.newID()
		if err := c.cache.Add(models.FolderSent, id, c.localMessage(id, draft)); err != nil {
			c.fail("record the sent message", err)
			return
		}
		log.Printf("Controller: Sent message to %s", draft.To)
		c.renderer.RenderNotice("Message sent")
		c.refresh()
	})
}

func (c *Controller) saveDraft(draft models.Draft) {
	from := c.current
	var replaces string
	if KindOf(from) == DraftView {
		replaces = from.DraftID
	}

	var id string
	c.call(func(ctx context.Context) error {
		var err error
		id, err = c.gateway.SaveEmail(ctx, models.FolderDrafts, draft)
		return err
	}, func(err error) {
		if err != nil {
			c.fail("save the draft", err)
			return
		}

		if err := c.cache.Add(models.FolderDrafts, id, c.localMessage(id, draft)); err != nil {
			c.fail("record the draft", err)
			return
		}
		c.renderer.RenderNotice("Draft saved")

		if replaces != "" && replaces != id {
			if c.isUnconfirmed(models.FolderDrafts, replaces) {
				log.Printf("Controller: Keeping replaced draft %s until the mailbox is fetched again", replaces)
			} else {
				c.removeDraft(replaces)
			}
		}

		if c.current == from {
			c.redirect(from.WithDraft(id))
			return
		}
		c.refresh()
	})
}

// removeDraft deletes an older copy of a draft that was saved again.
func (c *Controller) removeDraft(id string) {
	c.call(func(ctx context.Context) error {
		return c.gateway.DeleteMessage(ctx, models.FolderDrafts, id)
	}, func(err error) {
		if err != nil {
			log.Printf("Controller: Failed to remove replaced draft %s: %v", id, err)
			return
		}
		c.cache.Delete(models.FolderDrafts, id)
		c.refresh()
	})
}

// selection returns the route of the open message.
func (c *Controller) selection() (route.Route, error) {
	if !c.hasRoute || KindOf(c.current) != MessageView {
		return route.Route{}, ErrNoSelection
	}
	if c.isUnconfirmed(c.current.Folder, c.current.MessageID) {
		return route.Route{}, fmt.Errorf("%w: %s/%s", ErrAwaitingSync, c.current.Folder, c.current.MessageID)
	}
	return c.current, nil
}

// movedLocally marks a message the server moved to folder under an id the cache does not know yet.
func (c *Controller) movedLocally(folder, id string) {
	if c.unconfirmed == nil {
		c.unconfirmed = map[string]map[string]struct{}{}
	}
	if c.unconfirmed[folder] == nil {
		c.unconfirmed[folder] = map[string]struct{}{}
	}
	c.unconfirmed[folder][id] = struct{}{}
	c.resyncPending = true
}

func (c *Controller) isUnconfirmed(folder, id string) bool {
	_, ok := c.unconfirmed[folder][id]
	return ok
}

func (c *Controller) moveToBin() {
	sel, err := c.selection()
	if err != nil {
		c.fail("move the message to the bin", err)
		return
	}
	if sel.Folder == models.FolderBin {
		c.deleteMessage()
		return
	}

	c.call(func(ctx context.Context) error {
		return c.gateway.MoveToBin(ctx, sel.Folder, sel.MessageID)
	}, func(err error) {
		if err != nil {
			c.fail("move the message to the bin", err)
			return
		}
		if err := c.cache.Move(sel.Folder, sel.MessageID, models.FolderBin); err != nil {
			c.fail("move the message to the bin", err)
			return
		}
		c.movedLocally(models.FolderBin, sel.MessageID)
		c.renderer.RenderNotice("Moved to bin")
		c.leave(sel)
	})
}

func (c *Controller) deleteMessage() {
	sel, err := c.selection()
	if err != nil {
		c.fail("delete the message", err)
		return
	}

	c.call(func(ctx context.Context) error {
		return c.gateway.DeleteMessage(ctx, sel.Folder, sel.MessageID)
	}, func(err error) {
		if err != nil {
			c.fail("delete the message", err)
			return
		}
		c.cache.Delete(sel.Folder, sel.MessageID)
		c.renderer.RenderNotice("Message deleted")
		c.leave(sel)
	})
}

func (c *Controller) moveTo(newFolder string) {
	sel, err := c.selection()
	if err != nil {
		c.fail("move the message", err)
		return
	}
	if !c.cache.FolderExists(newFolder) {
		c.fail("move the message", fmt.Errorf("%w: %s", ErrUnknownFolder, newFolder))
		return
	}
	if newFolder == sel.Folder {
		return
	}

	c.call(func(ctx context.Context) error {
		return c.gateway.MoveTo(ctx, sel.Folder, sel.MessageID, newFolder)
	}, func(err error) {
		if err != nil {
			c.fail("move the message", err)
			return
		}
		if err := c.cache.Move(sel.Folder, sel.MessageID, newFolder); err != nil {
			c.fail("move the message", err)
			return
		}
		c.movedLocally(newFolder, sel.MessageID)
		c.renderer.RenderNotice("Moved to " + newFolder)
		c.leave(sel)
	})
}

func (c *Controller) createFolder(name string) {
	name = strings.TrimSpace(name)
	if err := CheckFolderName(c.cache, name); err != nil {
		c.renderer.RenderFolderNameFeedback(name, err)
		c.fail("create the folder", err)
		return
	}

	c.call(func(ctx context.Context) error {
		return c.gateway.CreateFolder(ctx, name)
	}, func(err error) {
		if err != nil {
			c.fail("create the folder", err)
			return
		}
		if err := c.cache.CreateFolder(name); err != nil && !errors.Is(err, mailbox.ErrAlreadyExists) {
			c.fail("create the folder", err)
			return
		}
		c.renderer.RenderNotice("Created folder " + name)
		c.refresh()
	})
}

// leave returns to the list the message was opened from, unless the user has
// navigated away in the meantime. A due resync starts right away either way.
func (c *Controller) leave(from route.Route) {
	if c.current == from {
		c.redirect(from.List())
		return
	}
	c.refresh()
	if c.resyncPending && c.hasRoute {
		c.fetch()
	}
}

// refresh repaints the current view when there is one to paint.
func (c *Controller) refresh() {
	if c.hasRoute && c.populated {
		c.render()
	}
}

func (c *Controller) localMessage(id string, draft models.Draft) models.Message {
	return models.Message{
		ID:        id,
		Timestamp: c.now(),
		From:      c.account,
		To:        draft.To,
		Subject:   draft.Subject,
		Body:      draft.Body,
	}
}
