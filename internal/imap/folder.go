package imap

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/vdavid/vmail/webclient/internal/models"
)

// systemFolderRoles maps client folder names to their SPECIAL-USE attribute (RFC 6154).
var systemFolderRoles = map[string]string{
	models.FolderSent:   imap.SentAttr,
	models.FolderDrafts: imap.DraftsAttr,
	models.FolderBin:    imap.TrashAttr,
}

// fallbackNames are tried, case-insensitively, for servers without SPECIAL-USE.
// The first name is the one created when the folder is missing.
var fallbackNames = map[string][]string{
	models.FolderSent:   {"Sent", "Sent Items", "Sent Messages", "Sent Mail"},
	models.FolderDrafts: {"Drafts", "Draft"},
	models.FolderBin:    {"Trash", "Deleted Items", "Deleted Messages", "Bin"},
}

// FolderMap translates between client folder names (inbox, sent, drafts, bin
// and user folders) and the mailbox names of a particular server.
type FolderMap struct {
	toServer map[string]string
	toClient map[string]string
}

// NewFolderMap builds the mapping from a LIST result.
func NewFolderMap(mailboxes []*imap.MailboxInfo) FolderMap {
	m := FolderMap{
		toServer: make(map[string]string),
		toClient: make(map[string]string),
	}

	var selectable []*imap.MailboxInfo
	for _, mb := range mailboxes {
		if hasAttr(mb, imap.NoSelectAttr) {
			continue
		}
		selectable = append(selectable, mb)
		if strings.EqualFold(mb.Name, "INBOX") {
			m.add(models.FolderInbox, mb.Name)
		}
	}

	for folder, attr := range systemFolderRoles {
		for _, mb := range selectable {
			if hasAttr(mb, attr) && m.free(folder, mb.Name) {
				m.add(folder, mb.Name)
				break
			}
		}
	}

	for _, folder := range models.SystemFolders {
		if _, ok := m.toServer[folder]; ok {
			continue
		}
		for _, candidate := range fallbackNames[folder] {
			if mb := findFold(selectable, candidate); mb != nil && m.free(folder, mb.Name) {
				m.add(folder, mb.Name)
				break
			}
		}
	}

	for _, mb := range selectable {
		if _, mapped := m.toClient[mb.Name]; mapped {
			continue
		}
		if models.IsSystemFolder(strings.ToLower(mb.Name)) {
			log.Printf("IMAP: skipping mailbox %q, its name collides with a system folder", mb.Name)
			continue
		}
		m.add(mb.Name, mb.Name)
	}

	return m
}

// LoadFolderMap lists the server's mailboxes and maps them.
func LoadFolderMap(c *client.Client) (FolderMap, error) {
	mailboxes := make(chan *imap.MailboxInfo, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.List("", "*", mailboxes)
	}()

	var infos []*imap.MailboxInfo
	for mb := range mailboxes {
		infos = append(infos, mb)
	}
	if err := <-done; err != nil {
		return FolderMap{}, fmt.Errorf("failed to list folders: %w", err)
	}

	return NewFolderMap(infos), nil
}

// ServerName returns the mailbox behind a client folder name.
func (m FolderMap) ServerName(folder string) (string, bool) {
	name, ok := m.toServer[folder]
	return name, ok
}

// ClientName returns the client folder name of a server mailbox.
func (m FolderMap) ClientName(mailbox string) (string, bool) {
	name, ok := m.toClient[mailbox]
	return name, ok
}

// Folders lists the mapped client folder names, sorted.
func (m FolderMap) Folders() []string {
	folders := make([]string, 0, len(m.toServer))
	for folder := range m.toServer {
		folders = append(folders, folder)
	}
	sort.Strings(folders)
	return folders
}

// Ensure returns the mailbox of folder, creating it on the server when folder is
// a system folder the server does not have yet. Missing user folders are an error.
func (m FolderMap) Ensure(c *client.Client, folder string) (string, error) {
	if name, ok := m.toServer[folder]; ok {
		return name, nil
	}
	if !models.IsSystemFolder(folder) {
		return "", fmt.Errorf("%w: %s", ErrFolderNotFound, folder)
	}

	name := fallbackNames[folder][0]
	if err := c.Create(name); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", name, err)
	}
	log.Printf("IMAP: created missing %s folder as %q", folder, name)
	m.add(folder, name)
	return name, nil
}

func (m FolderMap) add(folder, mailbox string) {
	m.toServer[folder] = mailbox
	m.toClient[mailbox] = folder
}

// free reports whether folder is unmapped and mailbox is unclaimed.
func (m FolderMap) free(folder, mailbox string) bool {
	_, taken := m.toServer[folder]
	_, claimed := m.toClient[mailbox]
	return !taken && !claimed
}

func hasAttr(mb *imap.MailboxInfo, attr string) bool {
	for _, a := range mb.Attributes {
		if strings.EqualFold(a, attr) {
			return true
		}
	}
	return false
}

func findFold(mailboxes []*imap.MailboxInfo, name string) *imap.MailboxInfo {
	for _, mb := range mailboxes {
		if strings.EqualFold(mb.Name, name) {
			return mb
		}
	}
	return nil
}
