package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/vdavid/vmail/webclient/internal/auth"
	"github.com/vdavid/vmail/webclient/internal/gateway"
)

// GatewayProvider returns the gateway acting on behalf of userID.
type GatewayProvider func(userID string) gateway.Gateway

// IdentityFromContext extracts the authenticated user from ctx and writes 401
// when there is none. Returns (identity, true) on success.
func IdentityFromContext(ctx context.Context, w http.ResponseWriter) (auth.Identity, bool) {
	id, ok := auth.IdentityFromContext(ctx)
	if !ok {
		log.Println("API: No identity in context")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return auth.Identity{}, false
	}
	return id, true
}

// writeJSON encodes v to a buffer first so a failed encode never leaves a
// partial response behind.
func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		log.Printf("API: Failed to encode response: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Printf("API: Failed to write response: %v", err)
	}
}
