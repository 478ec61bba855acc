package imap

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"
	"github.com/vdavid/vmail/webclient/internal/models"
)

// messageIDDomain is the right-hand side of generated Message-IDs.
const messageIDDomain = "vmail.local"

// Outgoing is a composed RFC 5322 message.
type Outgoing struct {
	MessageID  string
	Recipients []string
	Raw        []byte
}

// Compose builds a plain-text message from draft. Drafts may be incomplete, so
// an unparsable To is kept verbatim when strict is false.
func Compose(from string, draft models.Draft, date time.Time, strict bool) (*Outgoing, error) {
	var h mail.Header
	h.SetDate(date)
	h.SetSubject(draft.Subject)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	h.Set("Content-Transfer-Encoding", "quoted-printable")

	messageID := uuid.NewString() + "@" + messageIDDomain
	h.Set("Message-Id", "<"+messageID+">")

	if from != "" {
		sender, err := mail.ParseAddress(from)
		if err != nil {
			return nil, fmt.Errorf("invalid sender %q: %w", from, err)
		}
		h.SetAddressList("From", []*mail.Address{sender})
	}

	var recipients []string
	if strings.TrimSpace(draft.To) != "" {
		list, err := mail.ParseAddressList(draft.To)
		switch {
		case err != nil && strict:
			return nil, fmt.Errorf("invalid recipient list %q: %w", draft.To, err)
		case err != nil:
			h.SetText("To", draft.To)
		default:
			h.SetAddressList("To", list)
			for _, a := range list {
				recipients = append(recipients, a.Address)
			}
		}
	}

	var buf bytes.Buffer
	w, err := message.CreateWriter(&buf, h.Header)
	if err != nil {
		return nil, fmt.Errorf("failed to create message writer: %w", err)
	}
	if _, err := io.WriteString(w, draft.Body); err != nil {
		return nil, fmt.Errorf("failed to write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish message: %w", err)
	}

	return &Outgoing{
		MessageID:  "<" + messageID + ">",
		Recipients: recipients,
		Raw:        buf.Bytes(),
	}, nil
}
