package models

import "time"

// Client-side names of the folders every account has.
const (
	FolderInbox  = "inbox"
	FolderSent   = "sent"
	FolderDrafts = "drafts"
	FolderBin    = "bin"
)

// SystemFolders lists the fixed folders in display order.
var SystemFolders = []string{FolderInbox, FolderSent, FolderDrafts, FolderBin}

// IsSystemFolder reports whether name is one of the fixed folders.
func IsSystemFolder(name string) bool {
	for _, f := range SystemFolders {
		if f == name {
			return true
		}
	}
	return false
}

// Message is a single email as the client sees it.
type Message struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
}

// Draft holds the contents of the compose form.
type Draft struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Snapshot is a full copy of a mailbox: folder name -> message id -> message.
type Snapshot map[string]map[string]Message
