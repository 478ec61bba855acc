// Package imap serves the mailbox gateway operations from a user's IMAP and SMTP accounts.
package imap

import (
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

const dialTimeout = 5 * time.Second

// Credentials identify one login on a mail server. Server is host:port.
type Credentials struct {
	Server   string
	Username string
	Password string
}

// Dial connects to the IMAP server and logs in.
// useTLS is true in production and false against the in-memory test servers.
func Dial(creds Credentials, useTLS bool) (*client.Client, error) {
	dialer := &net.Dialer{Timeout: dialTimeout}

	var (
		c   *client.Client
		err error
	)
	if useTLS {
		c, err = client.DialWithDialerTLS(dialer, creds.Server, nil)
	} else {
		c, err = client.DialWithDialer(dialer, creds.Server)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", creds.Server, err)
	}

	if err := c.Login(creds.Username, creds.Password); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}

	return c, nil
}

// VerifyLogin checks that the credentials are accepted, then logs out.
func VerifyLogin(creds Credentials, useTLS bool) error {
	c, err := Dial(creds, useTLS)
	if err != nil {
		return err
	}
	_ = c.Logout()
	return nil
}

// usable reports whether c is still logged in.
func usable(c *client.Client) bool {
	state := c.State()
	return state == imap.AuthenticatedState || state == imap.SelectedState
}

// pooledConn is an idle connection waiting for reuse.
type pooledConn struct {
	client   *client.Client
	lastUsed time.Time
}
