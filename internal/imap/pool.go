package imap

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/emersion/go-imap/client"
)

const (
	// workerIdleTimeout is how long an unused worker connection is kept open.
	workerIdleTimeout = 10 * time.Minute
	// healthCheckThreshold is the idle time after which a connection is NOOP-checked before reuse.
	healthCheckThreshold = time.Minute
)

// Pool keeps IMAP connections per user:
//   - up to maxWorkers worker connections for request handling,
//   - one listener connection for IDLE.
//
// A worker is held exclusively between Acquire and its release.
type Pool struct {
	mu         sync.Mutex
	workers    map[string]*workerSet
	listeners  map[string]*client.Client
	maxWorkers int
	useTLS     bool
	dial       func(Credentials, bool) (*client.Client, error)
	stop       context.CancelFunc
	closed     bool
}

// workerSet limits the concurrent workers of one user and holds the idle ones.
type workerSet struct {
	userID string
	slots  chan struct{}
	idle   []*pooledConn
}

// NewPool creates a pool and starts its idle-connection janitor.
func NewPool(maxWorkers int, useTLS bool) *Pool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		workers:    make(map[string]*workerSet),
		listeners:  make(map[string]*client.Client),
		maxWorkers: maxWorkers,
		useTLS:     useTLS,
		dial:       Dial,
		stop:       cancel,
	}
	go p.runJanitor(ctx)
	return p
}

// MaxWorkers is the per-user worker limit.
func (p *Pool) MaxWorkers() int {
	return p.maxWorkers
}

// UseTLS reports whether connections are dialed with TLS.
func (p *Pool) UseTLS() bool {
	return p.useTLS
}

// Acquire returns a logged-in worker connection for userID, blocking while the
// user already has maxWorkers connections out. The returned release must be
// called exactly once; discard closes the connection instead of keeping it.
func (p *Pool) Acquire(ctx context.Context, userID string, creds Credentials) (*client.Client, func(discard bool), error) {
	set, err := p.workerSet(userID)
	if err != nil {
		return nil, nil, err
	}

	select {
	case set.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}

	c, err := p.takeOrDial(set, creds)
	if err != nil {
		<-set.slots
		return nil, nil, err
	}

	var once sync.Once
	release := func(discard bool) {
		once.Do(func() {
			p.giveBack(set, c, discard)
			<-set.slots
		})
	}
	return c, release, nil
}

func (p *Pool) workerSet(userID string) (*workerSet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, fmt.Errorf("connection pool is closed")
	}

	set, ok := p.workers[userID]
	if !ok {
		set = &workerSet{userID: userID, slots: make(chan struct{}, p.maxWorkers)}
		p.workers[userID] = set
	}
	return set, nil
}

// takeOrDial reuses the most recently used healthy idle connection or dials a new one.
func (p *Pool) takeOrDial(set *workerSet, creds Credentials) (*client.Client, error) {
	for {
		p.mu.Lock()
		n := len(set.idle)
		if n == 0 {
			p.mu.Unlock()
			break
		}
		conn := set.idle[n-1]
		set.idle = set.idle[:n-1]
		p.mu.Unlock()

		if !usable(conn.client) {
			_ = conn.client.Logout()
			continue
		}
		if time.Since(conn.lastUsed) > healthCheckThreshold {
			if err := conn.client.Noop(); err != nil {
				log.Printf("IMAP pool: dropping dead connection: %v", err)
				_ = conn.client.Logout()
				continue
			}
		}
		return conn.client, nil
	}

	c, err := p.dial(creds, p.useTLS)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return c, nil
}

func (p *Pool) giveBack(set *workerSet, c *client.Client, discard bool) {
	p.mu.Lock()
	// A set dropped by RemoveUser or the janitor no longer takes connections back.
	keep := !discard && !p.closed && p.workers[set.userID] == set && usable(c)
	if keep {
		set.idle = append(set.idle, &pooledConn{client: c, lastUsed: time.Now()})
	}
	p.mu.Unlock()

	if !keep {
		_ = c.Logout()
	}
}

// RemoveUser closes every idle worker and the listener of userID.
// Workers currently out are closed when released.
func (p *Pool) RemoveUser(userID string) {
	p.mu.Lock()
	var toClose []*client.Client
	if set, ok := p.workers[userID]; ok {
		for _, conn := range set.idle {
			toClose = append(toClose, conn.client)
		}
		set.idle = nil
		delete(p.workers, userID)
	}
	if listener, ok := p.listeners[userID]; ok {
		toClose = append(toClose, listener)
		delete(p.listeners, userID)
	}
	p.mu.Unlock()

	for _, c := range toClose {
		_ = c.Logout()
	}
}

// Close stops the janitor and closes every idle connection. Safe to call twice.
func (p *Pool) Close() {
	p.stop()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	var toClose []*client.Client
	for userID, set := range p.workers {
		for _, conn := range set.idle {
			toClose = append(toClose, conn.client)
		}
		set.idle = nil
		delete(p.workers, userID)
	}
	for userID, listener := range p.listeners {
		toClose = append(toClose, listener)
		delete(p.listeners, userID)
	}
	p.mu.Unlock()

	for _, c := range toClose {
		if err := c.Logout(); err != nil {
			log.Printf("IMAP pool: failed to logout: %v", err)
		}
	}
}

// idleCount is the number of idle workers kept for userID.
func (p *Pool) idleCount(userID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if set, ok := p.workers[userID]; ok {
		return len(set.idle)
	}
	return 0
}
