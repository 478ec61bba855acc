package imap

import (
	"fmt"
	"log"
	"slices"

	"github.com/emersion/go-imap"
	sortthread "github.com/emersion/go-imap-sortthread"
	"github.com/emersion/go-imap/client"
	"github.com/vdavid/vmail/webclient/internal/models"
)

// FetchLatest returns the limit most recent messages of mailbox, read-only
// (flags are untouched).
func FetchLatest(c *client.Client, mailbox string, limit int) ([]models.Message, error) {
	status, err := c.Select(mailbox, true)
	if err != nil {
		return nil, fmt.Errorf("failed to select %s: %w", mailbox, err)
	}
	if status.Messages == 0 {
		return nil, nil
	}

	uids, err := latestUIDs(c, limit)
	if err != nil {
		return nil, err
	}
	if len(uids) == 0 {
		return nil, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{
		imap.FetchUid,
		imap.FetchEnvelope,
		imap.FetchInternalDate,
		section.FetchItem(),
	}

	fetched := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqSet, items, fetched)
	}()

	messages := make([]models.Message, 0, len(uids))
	for imapMsg := range fetched {
		msg, err := ParseMessage(imapMsg)
		if err != nil {
			log.Printf("IMAP: skipping message in %s: %v", mailbox, err)
			continue
		}
		messages = append(messages, msg)
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch messages from %s: %w", mailbox, err)
	}

	return messages, nil
}

// latestUIDs returns up to limit UIDs of the selected mailbox, newest first.
// Servers with SORT order by date; others are assumed to assign UIDs in arrival order.
func latestUIDs(c *client.Client, limit int) ([]uint32, error) {
	if ok, _ := c.Support("SORT"); ok {
		sorted, err := sortthread.NewSortClient(c).UidSort(
			[]sortthread.SortCriterion{{Field: sortthread.SortDate, Reverse: true}},
			imap.NewSearchCriteria(),
		)
		if err == nil {
			return sorted[:min(limit, len(sorted))], nil
		}
		log.Printf("IMAP: SORT failed, falling back to SEARCH: %v", err)
	}

	uids, err := c.UidSearch(imap.NewSearchCriteria())
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}

	slices.Sort(uids)
	slices.Reverse(uids)
	return uids[:min(limit, len(uids))], nil
}
