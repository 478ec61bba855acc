package models

import (
	"fmt"
	"time"
)

// Commands accepted by POST /query_the_server.
const (
	CommandFetchAll      = "get_folders_and_messages"
	CommandSendEmail     = "send_email"
	CommandSaveEmail     = "save_email"
	CommandMoveToBin     = "move_to_bin"
	CommandDeleteMessage = "delete_message"
	CommandMoveTo        = "move_to"
	CommandCreateFolder  = "create_folder"
)

// QueryResponse is the envelope of every /query_the_server response.
// Clients branch on Success only.
type QueryResponse[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// MessageInfo is the wire form of a message.
type MessageInfo struct {
	UID     string `json:"uid"`
	Date    string `json:"date"`
	From    string `json:"from_"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// FoldersData is the payload of get_folders_and_messages.
type FoldersData struct {
	Folders map[string][]MessageInfo `json:"folders"`
}

// SavedData is the payload of save_email.
type SavedData struct {
	UID string `json:"uid"`
}

// NewMessageInfo converts a message to its wire form.
func NewMessageInfo(m Message) MessageInfo {
	return MessageInfo{
		UID:     m.ID,
		Date:    m.Timestamp.Format(time.RFC3339),
		From:    m.From,
		To:      m.To,
		Subject: m.Subject,
		Text:    m.Body,
	}
}

// Message converts the wire form back to a message.
func (mi MessageInfo) Message() (Message, error) {
	ts, err := time.Parse(time.RFC3339, mi.Date)
	if err != nil {
		return Message{}, fmt.Errorf("failed to parse date of message %s: %w", mi.UID, err)
	}

	return Message{
		ID:        mi.UID,
		Timestamp: ts,
		From:      mi.From,
		To:        mi.To,
		Subject:   mi.Subject,
		Body:      mi.Text,
	}, nil
}

// NewFoldersData converts a snapshot to its wire form.
func NewFoldersData(snapshot Snapshot) FoldersData {
	data := FoldersData{Folders: make(map[string][]MessageInfo, len(snapshot))}
	for folder, messages := range snapshot {
		infos := make([]MessageInfo, 0, len(messages))
		for _, m := range messages {
			infos = append(infos, NewMessageInfo(m))
		}
		data.Folders[folder] = infos
	}
	return data
}

// Snapshot converts the wire form back to a snapshot.
func (d FoldersData) Snapshot() (Snapshot, error) {
	snapshot := make(Snapshot, len(d.Folders))
	for folder, infos := range d.Folders {
		messages := make(map[string]Message, len(infos))
		for _, info := range infos {
			m, err := info.Message()
			if err != nil {
				return nil, err
			}
			messages[m.ID] = m
		}
		snapshot[folder] = messages
	}
	return snapshot, nil
}
