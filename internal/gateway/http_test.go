package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vdavid/vmail/webclient/internal/models"
)

// queryServer records the last form it received and answers with respond.
type queryServer struct {
	*httptest.Server
	calls    atomic.Int32
	lastForm chan map[string]string
}

func newQueryServer(t *testing.T, respond func(w http.ResponseWriter, command string, call int32)) *queryServer {
	t.Helper()

	qs := &queryServer{lastForm: make(chan map[string]string, 16)}
	qs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := qs.calls.Add(1)
		if r.URL.Path != QueryPath || r.Method != http.MethodPost {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		form := map[string]string{"authorization": r.Header.Get("Authorization")}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		qs.lastForm <- form
		respond(w, r.PostForm.Get("command"), call)
	}))
	t.Cleanup(qs.Close)
	return qs
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func ok(w http.ResponseWriter, data any) {
	writeJSON(w, map[string]any{"success": true, "data": data})
}

func fail(w http.ResponseWriter, msg string) {
	writeJSON(w, map[string]any{"success": false, "error": msg})
}

func fastBackOff() backoff.BackOff {
	return &backoff.ZeroBackOff{}
}

func TestHTTPGateway_FetchAll(t *testing.T) {
	qs := newQueryServer(t, func(w http.ResponseWriter, command string, _ int32) {
		ok(w, models.FoldersData{Folders: map[string][]models.MessageInfo{
			"inbox": {
				{UID: "1", Date: "2024-01-02T03:04:05Z", From: "a@x.com", To: "b@x.com", Subject: "Hi", Text: "Hello"},
			},
			"work": {},
		}})
	})

	g := NewHTTPGateway(qs.URL+"/", "secret")
	snapshot, err := g.FetchAll(context.Background())
	require.NoError(t, err)

	form := <-qs.lastForm
	assert.Equal(t, models.CommandFetchAll, form["command"])
	assert.Equal(t, "Bearer secret", form["authorization"])

	require.Contains(t, snapshot, "inbox")
	require.Contains(t, snapshot, "work")
	msg := snapshot["inbox"]["1"]
	assert.Equal(t, "Hi", msg.Subject)
	assert.Equal(t, "Hello", msg.Body)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), msg.Timestamp.UTC())
}

func TestHTTPGateway_FetchAllRetriesTransportFailures(t *testing.T) {
	qs := newQueryServer(t, func(w http.ResponseWriter, _ string, call int32) {
		if call < 3 {
			http.Error(w, "bad gateway", http.StatusBadGateway)
			return
		}
		ok(w, models.FoldersData{Folders: map[string][]models.MessageInfo{"inbox": {}}})
	})

	g := NewHTTPGateway(qs.URL, "", WithBackOff(fastBackOff), WithFetchRetries(5))
	snapshot, err := g.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Contains(t, snapshot, "inbox")
	assert.Equal(t, int32(3), qs.calls.Load())
}

func TestHTTPGateway_FetchAllDropsPartialAttempt(t *testing.T) {
	qs := newQueryServer(t, func(w http.ResponseWriter, _ string, call int32) {
		if call == 1 {
			// "old" decodes before "inbox" fails to.
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"success":true,"data":{"folders":{"old":[],"inbox":"not a list"}}}`))
			return
		}
		ok(w, models.FoldersData{Folders: map[string][]models.MessageInfo{"inbox": {}}})
	})

	g := NewHTTPGateway(qs.URL, "", WithBackOff(fastBackOff), WithFetchRetries(2))
	snapshot, err := g.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), qs.calls.Load())
	assert.Contains(t, snapshot, "inbox")
	assert.NotContains(t, snapshot, "old")
}

func TestHTTPGateway_FetchAllGivesUp(t *testing.T) {
	qs := newQueryServer(t, func(w http.ResponseWriter, _ string, _ int32) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	})

	g := NewHTTPGateway(qs.URL, "", WithBackOff(fastBackOff), WithFetchRetries(2))
	_, err := g.FetchAll(context.Background())

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, int32(3), qs.calls.Load(), "one attempt plus two retries")
}

func TestHTTPGateway_FetchAllDoesNotRetryRemoteFailure(t *testing.T) {
	qs := newQueryServer(t, func(w http.ResponseWriter, _ string, _ int32) {
		fail(w, "mailbox locked")
	})

	g := NewHTTPGateway(qs.URL, "", WithBackOff(fastBackOff))
	_, err := g.FetchAll(context.Background())

	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, "mailbox locked", remoteErr.Message)
	assert.Equal(t, int32(1), qs.calls.Load())
}

func TestHTTPGateway_SendEmailIsNotRetried(t *testing.T) {
	qs := newQueryServer(t, func(w http.ResponseWriter, _ string, _ int32) {
		http.Error(w, "oops", http.StatusInternalServerError)
	})

	g := NewHTTPGateway(qs.URL, "", WithBackOff(fastBackOff))
	err := g.SendEmail(context.Background(), models.Draft{To: "b@x.com", Subject: "S", Body: "B"})

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, int32(1), qs.calls.Load())

	form := <-qs.lastForm
	assert.Equal(t, models.CommandSendEmail, form["command"])
	assert.Equal(t, "b@x.com", form["recipient"])
	assert.Equal(t, "S", form["subject"])
	assert.Equal(t, "B", form["body"])
	assert.Empty(t, form["authorization"])
}

func TestHTTPGateway_SaveEmail(t *testing.T) {
	t.Run("returns assigned id", func(t *testing.T) {
		qs := newQueryServer(t, func(w http.ResponseWriter, _ string, _ int32) {
			ok(w, models.SavedData{UID: "42"})
		})

		g := NewHTTPGateway(qs.URL, "")
		id, err := g.SaveEmail(context.Background(), "drafts", models.Draft{To: "x@y.z"})
		require.NoError(t, err)
		assert.Equal(t, "42", id)

		form := <-qs.lastForm
		assert.Equal(t, models.CommandSaveEmail, form["command"])
		assert.Equal(t, "drafts", form["target_folder"])
	})

	t.Run("missing id is a transport failure", func(t *testing.T) {
		qs := newQueryServer(t, func(w http.ResponseWriter, _ string, _ int32) {
			ok(w, map[string]string{})
		})

		g := NewHTTPGateway(qs.URL, "")
		_, err := g.SaveEmail(context.Background(), "drafts", models.Draft{})
		var transportErr *TransportError
		assert.ErrorAs(t, err, &transportErr)
	})
}

func TestHTTPGateway_MessageCommands(t *testing.T) {
	qs := newQueryServer(t, func(w http.ResponseWriter, _ string, _ int32) {
		writeJSON(w, map[string]any{"success": true})
	})
	g := NewHTTPGateway(qs.URL, "")
	ctx := context.Background()

	require.NoError(t, g.MoveToBin(ctx, "inbox", "7"))
	form := <-qs.lastForm
	assert.Equal(t, models.CommandMoveToBin, form["command"])
	assert.Equal(t, "inbox", form["folder"])
	assert.Equal(t, "7", form["uid"])

	require.NoError(t, g.DeleteMessage(ctx, "bin", "8"))
	form = <-qs.lastForm
	assert.Equal(t, models.CommandDeleteMessage, form["command"])
	assert.Equal(t, "bin", form["folder"])
	assert.Equal(t, "8", form["uid"])

	require.NoError(t, g.MoveTo(ctx, "inbox", "9", "work"))
	form = <-qs.lastForm
	assert.Equal(t, models.CommandMoveTo, form["command"])
	assert.Equal(t, "work", form["new_folder"])

	require.NoError(t, g.CreateFolder(ctx, "receipts"))
	form = <-qs.lastForm
	assert.Equal(t, models.CommandCreateFolder, form["command"])
	assert.Equal(t, "receipts", form["folder"])
}

func TestHTTPGateway_RemoteFailure(t *testing.T) {
	qs := newQueryServer(t, func(w http.ResponseWriter, _ string, _ int32) {
		fail(w, "folder exists")
	})

	g := NewHTTPGateway(qs.URL, "")
	err := g.CreateFolder(context.Background(), "dup")

	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, models.CommandCreateFolder, remoteErr.Command)
	assert.Contains(t, err.Error(), "folder exists")
}

func TestHTTPGateway_Unreachable(t *testing.T) {
	qs := newQueryServer(t, func(w http.ResponseWriter, _ string, _ int32) {})
	url := qs.URL
	qs.Close()

	g := NewHTTPGateway(url, "", WithFetchRetries(0))
	err := g.MoveTo(context.Background(), "a", "1", "b")

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.False(t, errors.Is(err, context.Canceled))
}
