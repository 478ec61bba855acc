package api

import (
	"fmt"
	"net/http"

	"github.com/vdavid/vmail/webclient/internal/auth"
	"github.com/vdavid/vmail/webclient/internal/gateway"
)

// Handlers bundles everything NewRouter mounts. Login may be nil when the
// server has no account database.
type Handlers struct {
	Validator auth.TokenValidator
	Query     *QueryHandler
	Login     *LoginHandler
	WebSocket *WebSocketHandler
	Name      string
}

// NewRouter creates the HTTP handler serving the webmail API.
func NewRouter(h Handlers) http.Handler {
	mux := http.NewServeMux()
	requireAuth := auth.RequireAuth(h.Validator)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = fmt.Fprintf(w, "%s is running", h.Name)
	})

	mux.Handle(gateway.QueryPath, requireAuth(http.HandlerFunc(h.Query.Handle)))
	if h.Login != nil {
		mux.HandleFunc("/login", h.Login.Login)
		mux.HandleFunc("/logout", h.Login.Logout)
	}
	// The WebSocket handler authenticates on its own, see Handle.
	mux.Handle("/api/v1/ws", http.HandlerFunc(h.WebSocket.Handle))

	return mux
}
