package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/vdavid/vmail/webclient/internal/auth"
	"github.com/vdavid/vmail/webclient/internal/controller"
	"github.com/vdavid/vmail/webclient/internal/imap"
	"github.com/vdavid/vmail/webclient/internal/view"
	ws "github.com/vdavid/vmail/webclient/internal/websocket"
)

// IdleStarter runs a new-mail listener for a user until ctx is canceled.
type IdleStarter interface {
	StartIdleListener(ctx context.Context, userID string, n imap.Notifier)
}

// WebSocketHandler handles the /api/v1/ws endpoint. Every connection gets its
// own controller; the browser sends commands and receives render frames.
type WebSocketHandler struct {
	validator   auth.TokenValidator
	gateways    GatewayProvider
	idle        IdleStarter
	hub         *ws.Hub
	pageSize    int
	mu          sync.Mutex
	idleCancels map[string]context.CancelFunc
}

// NewWebSocketHandler creates a new WebSocketHandler instance.
func NewWebSocketHandler(validator auth.TokenValidator, gateways GatewayProvider, idle IdleStarter, hub *ws.Hub, pageSize int) *WebSocketHandler {
	return &WebSocketHandler{
		validator:   validator,
		gateways:    gateways,
		idle:        idle,
		hub:         hub,
		pageSize:    pageSize,
		idleCancels: make(map[string]context.CancelFunc),
	}
}

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The server runs behind a reverse proxy that enforces the origin.
		return true
	},
}

// Handle upgrades the HTTP connection to a WebSocket. Browsers cannot set
// headers on WebSocket connections, so the token may come as ?token=.
func (h *WebSocketHandler) Handle(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.Authenticate(w, r, h.validator, auth.RequestToken(r))
	if !ok {
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocketHandler: failed to upgrade connection for user %s: %v", id.UserID, err)
		return
	}

	client := h.hub.Register(id.UserID, conn)
	if client == nil {
		log.Printf("WebSocketHandler: Connection rejected for user %s (max connections exceeded)", id.UserID)
		return
	}

	h.ensureIdleListener(id.UserID)

	renderer := view.NewSocketRenderer(client)
	ctl := controller.New(h.gateways(id.UserID), renderer, controller.Options{
		PageSize: h.pageSize,
		Account:  id.Email,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go ctl.Run(ctx)
	go forwardNotifications(ctx, client, ctl)
	go h.readLoop(id.UserID, client, ctl, cancel)
}

// ensureIdleListener starts an IMAP IDLE listener for the user if one is not already running.
func (h *WebSocketHandler) ensureIdleListener(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.idleCancels[userID]; exists {
		return
	}

	log.Printf("WebSocketHandler: Starting IDLE listener for user %s", userID)
	idleCtx, cancel := context.WithCancel(context.Background())
	h.idleCancels[userID] = cancel

	go func() {
		h.idle.StartIdleListener(idleCtx, userID, h.hub)

		h.mu.Lock()
		delete(h.idleCancels, userID)
		h.mu.Unlock()
	}()
}

// forwardNotifications turns new-mail signals into a resync of the current view.
func forwardNotifications(ctx context.Context, client *ws.Client, ctl *controller.Controller) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-client.Notifications():
			ctl.Resync()
		}
	}
}

// readLoop dispatches commands until the connection closes, then stops the
// controller and, for the last connection of the user, the IDLE listener.
func (h *WebSocketHandler) readLoop(userID string, client *ws.Client, ctl *controller.Controller, stop context.CancelFunc) {
	conn := client.Conn()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var cmd controller.Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			ctl.ReportError(fmt.Errorf("invalid command: %w", err))
			continue
		}
		if err := ctl.Dispatch(cmd); err != nil {
			ctl.ReportError(err)
		}
	}

	stop()
	h.hub.Unregister(userID, client)

	if h.hub.ActiveConnections(userID) == 0 {
		log.Printf("WebSocketHandler: No active connections remaining for user %s, stopping IDLE listener", userID)
		h.mu.Lock()
		if cancel, exists := h.idleCancels[userID]; exists {
			cancel()
			delete(h.idleCancels, userID)
		}
		h.mu.Unlock()
	}
}
