package imap

import (
	"fmt"

	"github.com/emersion/go-imap/client"
)

// Listener returns the dedicated IDLE connection of userID, dialing it if
// there is none or the old one died. Only the user's IDLE loop may use it.
func (p *Pool) Listener(userID string, creds Credentials) (*client.Client, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, fmt.Errorf("connection pool is closed")
	}
	existing, ok := p.listeners[userID]
	p.mu.Unlock()

	if ok && usable(existing) {
		return existing, nil
	}
	if ok {
		p.DropListener(userID)
	}

	c, err := p.dial(creds, p.useTLS)
	if err != nil {
		return nil, fmt.Errorf("failed to connect listener: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		_ = c.Logout()
		return nil, fmt.Errorf("connection pool is closed")
	}
	p.listeners[userID] = c
	return c, nil
}

// DropListener logs out and forgets the listener connection of userID.
func (p *Pool) DropListener(userID string) {
	p.mu.Lock()
	c, ok := p.listeners[userID]
	delete(p.listeners, userID)
	p.mu.Unlock()

	if ok {
		_ = c.Logout()
	}
}

func (p *Pool) hasListener(userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.listeners[userID]
	return ok
}
