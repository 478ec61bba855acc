package imap

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/jhillyerd/enmime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vdavid/vmail/webclient/internal/models"
)

func TestCompose(t *testing.T) {
	date := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("complete message", func(t *testing.T) {
		out, err := Compose("me@example.com", models.Draft{
			To:      "Ann <ann@example.com>, bob@example.com",
			Subject: "Grüße",
			Body:    "Hello there.\nSecond line.",
		}, date, true)
		require.NoError(t, err)

		assert.Equal(t, []string{"ann@example.com", "bob@example.com"}, out.Recipients)
		assert.True(t, strings.HasPrefix(out.MessageID, "<"))
		assert.True(t, strings.HasSuffix(out.MessageID, "@vmail.local>"))

		env, err := enmime.ReadEnvelope(bytes.NewReader(out.Raw))
		require.NoError(t, err)
		assert.Equal(t, "Grüße", env.GetHeader("Subject"))
		assert.Equal(t, out.MessageID, env.GetHeader("Message-Id"))
		assert.Contains(t, env.GetHeader("From"), "me@example.com")
		assert.Contains(t, env.GetHeader("To"), "ann@example.com")
		assert.Equal(t, "Hello there.\nSecond line.", strings.ReplaceAll(env.Text, "\r\n", "\n"))

		parsedDate, err := env.Date()
		require.NoError(t, err)
		assert.True(t, date.Equal(parsedDate))
	})

	t.Run("strict rejects malformed recipients", func(t *testing.T) {
		_, err := Compose("me@example.com", models.Draft{To: "not an address"}, date, true)
		assert.Error(t, err)
	})

	t.Run("draft keeps malformed recipients", func(t *testing.T) {
		out, err := Compose("me@example.com", models.Draft{To: "ann@", Body: "wip"}, date, false)
		require.NoError(t, err)
		assert.Empty(t, out.Recipients)

		env, err := enmime.ReadEnvelope(bytes.NewReader(out.Raw))
		require.NoError(t, err)
		assert.Equal(t, "ann@", env.GetHeader("To"))
	})

	t.Run("empty draft", func(t *testing.T) {
		out, err := Compose("me@example.com", models.Draft{}, date, false)
		require.NoError(t, err)
		assert.Empty(t, out.Recipients)
		assert.NotEmpty(t, out.Raw)
	})

	t.Run("invalid sender", func(t *testing.T) {
		_, err := Compose("nobody", models.Draft{To: "ann@example.com"}, date, true)
		assert.Error(t, err)
	})

	t.Run("fresh message id per call", func(t *testing.T) {
		a, err := Compose("me@example.com", models.Draft{}, date, false)
		require.NoError(t, err)
		b, err := Compose("me@example.com", models.Draft{}, date, false)
		require.NoError(t, err)
		assert.NotEqual(t, a.MessageID, b.MessageID)
	})
}
