// Package mailbox holds the client-side in-memory index of messages.
package mailbox

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/vdavid/vmail/webclient/internal/models"
)

var (
	// ErrNotFound is returned when a folder or message is not in the cache.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when creating a folder that is already present.
	ErrAlreadyExists = errors.New("already exists")
)

// entry is a cached message with its insertion sequence, used as the tie-break
// when two messages share a timestamp.
type entry struct {
	msg models.Message
	seq uint64
}

// Cache is an in-memory folder -> message id -> message index.
// The four system folders always exist.
//
// Thread safety: all methods lock internally. The controller is the only writer,
// renderers may read from other goroutines.
type Cache struct {
	mu      sync.RWMutex
	folders map[string]map[string]entry
	nextSeq uint64
}

// NewCache creates a cache holding only the empty system folders.
func NewCache() *Cache {
	c := &Cache{folders: make(map[string]map[string]entry)}
	c.ensureSystemFolders()
	return c
}

// Folder returns a copy of the messages of a folder, keyed by id.
// An absent folder yields an empty map.
func (c *Cache) Folder(folder string) map[string]models.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries := c.folders[folder]
	result := make(map[string]models.Message, len(entries))
	for id, e := range entries {
		result[id] = e.msg
	}
	return result
}

// Get returns a single message.
func (c *Cache) Get(folder, id string) (models.Message, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.folders[folder][id]
	if !ok {
		return models.Message{}, fmt.Errorf("message %s in folder %s: %w", id, folder, ErrNotFound)
	}
	return e.msg, nil
}

// Add inserts or overwrites a message. System folders are created on demand;
// user folders must be created with CreateFolder first.
func (c *Cache) Add(folder, id string, msg models.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.addLocked(folder, id, msg)
}

func (c *Cache) addLocked(folder, id string, msg models.Message) error {
	entries, ok := c.folders[folder]
	if !ok {
		if !models.IsSystemFolder(folder) {
			return fmt.Errorf("folder %s: %w", folder, ErrNotFound)
		}
		entries = make(map[string]entry)
		c.folders[folder] = entries
	}

	msg.ID = id
	if existing, ok := entries[id]; ok {
		entries[id] = entry{msg: msg, seq: existing.seq}
		return nil
	}
	c.nextSeq++
	entries[id] = entry{msg: msg, seq: c.nextSeq}
	return nil
}

// Delete removes a message. Removing an absent message is a no-op.
func (c *Cache) Delete(folder, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.folders[folder], id)
}

// Move relocates a message to another existing folder, keeping its id.
// Nothing changes when the message or the target folder is missing.
func (c *Cache) Move(folder, id, newFolder string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.folders[folder][id]
	if !ok {
		return fmt.Errorf("message %s in folder %s: %w", id, folder, ErrNotFound)
	}
	if _, ok := c.folders[newFolder]; !ok {
		return fmt.Errorf("folder %s: %w", newFolder, ErrNotFound)
	}

	if err := c.addLocked(newFolder, id, e.msg); err != nil {
		return err
	}
	if folder != newFolder {
		delete(c.folders[folder], id)
	}
	return nil
}

// ReplaceAll swaps the whole index for a copy of snapshot. System folders
// missing from the snapshot are recreated empty.
func (c *Cache) ReplaceAll(snapshot models.Snapshot) {
	folders := make(map[string]map[string]entry, len(snapshot))

	c.mu.Lock()
	defer c.mu.Unlock()

	for folder, messages := range snapshot {
		// Sequence by id so ties on timestamp order the same way on every resync.
		ids := make([]string, 0, len(messages))
		for id := range messages {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		entries := make(map[string]entry, len(messages))
		for _, id := range ids {
			msg := messages[id]
			msg.ID = id
			c.nextSeq++
			entries[id] = entry{msg: msg, seq: c.nextSeq}
		}
		folders[folder] = entries
	}

	c.folders = folders
	c.ensureSystemFolders()
}

// Folders lists every folder: system folders first in their fixed order,
// then user folders alphabetically.
func (c *Cache) Folders() []string {
	return append(append([]string{}, models.SystemFolders...), c.UserFolders()...)
}

// UserFolders lists the user-created folders alphabetically.
func (c *Cache) UserFolders() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var result []string
	for folder := range c.folders {
		if !models.IsSystemFolder(folder) {
			result = append(result, folder)
		}
	}
	sort.Strings(result)
	return result
}

// FolderExists reports whether the folder is in the cache.
func (c *Cache) FolderExists(folder string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.folders[folder]
	return ok
}

// CreateFolder adds an empty folder.
func (c *Cache) CreateFolder(folder string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.folders[folder]; ok {
		return fmt.Errorf("folder %s: %w", folder, ErrAlreadyExists)
	}
	c.folders[folder] = make(map[string]entry)
	return nil
}

// SortedByDate returns the messages of a folder newest first. Messages with
// equal timestamps keep their insertion order.
func (c *Cache) SortedByDate(folder string) []models.Message {
	c.mu.RLock()
	entries := make([]entry, 0, len(c.folders[folder]))
	for _, e := range c.folders[folder] {
		entries = append(entries, e)
	}
	c.mu.RUnlock()

	// Pre-sort by insertion so the stable date sort preserves it on ties.
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].msg.Timestamp.After(entries[j].msg.Timestamp)
	})

	result := make([]models.Message, len(entries))
	for i, e := range entries {
		result[i] = e.msg
	}
	return result
}

// Len returns the number of messages in a folder.
func (c *Cache) Len(folder string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.folders[folder])
}

func (c *Cache) ensureSystemFolders() {
	for _, folder := range models.SystemFolders {
		if _, ok := c.folders[folder]; !ok {
			c.folders[folder] = make(map[string]entry)
		}
	}
}
