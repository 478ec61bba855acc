package imap

import (
	"context"
	"time"

	"github.com/emersion/go-imap/client"
)

const janitorInterval = time.Minute

// runJanitor closes idle workers every janitorInterval until ctx is canceled.
func (p *Pool) runJanitor(ctx context.Context) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.closeIdle(time.Now().Add(-workerIdleTimeout))
		}
	}
}

// closeIdle logs out workers unused since cutoff and forgets users with nothing left.
func (p *Pool) closeIdle(cutoff time.Time) {
	p.mu.Lock()
	var toClose []*client.Client
	for userID, set := range p.workers {
		kept := set.idle[:0]
		for _, conn := range set.idle {
			if conn.lastUsed.Before(cutoff) {
				toClose = append(toClose, conn.client)
			} else {
				kept = append(kept, conn)
			}
		}
		set.idle = kept
		if len(set.idle) == 0 && len(set.slots) == 0 {
			delete(p.workers, userID)
		}
	}
	p.mu.Unlock()

	for _, c := range toClose {
		_ = c.Logout()
	}
}
