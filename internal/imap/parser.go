package imap

import (
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/jhillyerd/enmime"
	"github.com/vdavid/vmail/webclient/internal/models"
)

// ParseMessage converts a fetched IMAP message into the client model.
// The id is the UID. A body that cannot be parsed leaves Body empty.
func ParseMessage(imapMsg *imap.Message) (models.Message, error) {
	if imapMsg == nil {
		return models.Message{}, fmt.Errorf("imap message is nil")
	}

	msg := models.Message{
		ID:        strconv.FormatUint(uint64(imapMsg.Uid), 10),
		Timestamp: imapMsg.InternalDate,
	}

	if env := imapMsg.Envelope; env != nil {
		if len(env.From) > 0 {
			msg.From = formatAddress(env.From[0])
		}
		msg.To = strings.Join(formatAddressList(env.To), ", ")
		msg.Subject = env.Subject
		if !env.Date.IsZero() {
			msg.Timestamp = env.Date
		}
	}

	if body := firstLiteral(imapMsg); body != nil {
		text, err := parseBody(body)
		if err != nil {
			log.Printf("IMAP: failed to parse body of UID %d: %v", imapMsg.Uid, err)
		}
		msg.Body = text
	}

	return msg, nil
}

// firstLiteral returns the only body section we fetch.
func firstLiteral(imapMsg *imap.Message) imap.Literal {
	for _, literal := range imapMsg.Body {
		if literal != nil {
			return literal
		}
	}
	return nil
}

// parseBody returns the plain-text body, falling back to the HTML part.
func parseBody(r io.Reader) (string, error) {
	envelope, err := enmime.ReadEnvelope(r)
	if err != nil {
		return "", fmt.Errorf("failed to parse email body: %w", err)
	}

	if envelope.Text != "" {
		return strings.TrimRight(envelope.Text, "\r\n"), nil
	}
	return envelope.HTML, nil
}

func formatAddress(address *imap.Address) string {
	if address == nil {
		return ""
	}

	if address.MailboxName == "" && address.HostName == "" {
		return ""
	}

	if address.PersonalName != "" {
		return fmt.Sprintf("%s <%s@%s>", address.PersonalName, address.MailboxName, address.HostName)
	}

	return fmt.Sprintf("%s@%s", address.MailboxName, address.HostName)
}

func formatAddressList(addresses []*imap.Address) []string {
	result := make([]string, 0, len(addresses))
	for _, address := range addresses {
		if formatted := formatAddress(address); formatted != "" {
			result = append(result, formatted)
		}
	}
	return result
}
