package imap

import (
	"bytes"
	"fmt"
	"net"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// implicitTLSPort is the SMTPS submission port (RFC 8314); other ports use STARTTLS when offered.
const implicitTLSPort = "465"

// Sender delivers a composed message.
type Sender interface {
	Send(creds Credentials, from string, to []string, raw []byte) error
}

// SMTPSender submits mail with PLAIN authentication.
type SMTPSender struct{}

func (SMTPSender) Send(creds Credentials, from string, to []string, raw []byte) error {
	if len(to) == 0 {
		return ErrNoRecipients
	}

	c, err := dialSMTP(creds.Server)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", creds.Server, err)
	}
	defer func() {
		_ = c.Close()
	}()

	if ok, _ := c.Extension("AUTH"); !ok {
		return fmt.Errorf("failed to send via %s: server does not support AUTH", creds.Server)
	}
	if err := c.Auth(sasl.NewPlainClient("", creds.Username, creds.Password)); err != nil {
		return fmt.Errorf("failed to authenticate to %s: %w", creds.Server, err)
	}

	if err := c.SendMail(from, to, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("failed to send via %s: %w", creds.Server, err)
	}
	return c.Quit()
}

// dialSMTP connects with implicit TLS on port 465. Elsewhere it upgrades with
// STARTTLS if the server offers it and stays in plain text otherwise.
func dialSMTP(addr string) (*smtp.Client, error) {
	if _, port, err := net.SplitHostPort(addr); err == nil && port == implicitTLSPort {
		return smtp.DialTLS(addr, nil)
	}

	c, err := smtp.Dial(addr)
	if err != nil {
		return nil, err
	}
	if ok, _ := c.Extension("STARTTLS"); !ok {
		return c, nil
	}

	// The client can only negotiate STARTTLS right after connecting.
	_ = c.Close()
	return smtp.DialStartTLS(addr, nil)
}

var _ Sender = SMTPSender{}
