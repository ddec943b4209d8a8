package websocket

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	webcontext "github.com/citymind/urbanlink/internal/web/context"
	"github.com/citymind/urbanlink/internal/web/response"
)

// Config holds upgrade settings
type Config struct {
	ReadBufferSize  int
	WriteBufferSize int
	// AllowedOrigins mirrors the CORS list; empty or "*" accepts any origin
	AllowedOrigins []string
}

// Handler upgrades authenticated requests and attaches them to the hub.
// It must sit behind the auth middleware.
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
}

// NewHandler creates the upgrade endpoint for hub
func NewHandler(hub *Hub, cfg Config) *Handler {
	if cfg.ReadBufferSize == 0 {
		cfg.ReadBufferSize = 1024
	}
	if cfg.WriteBufferSize == 0 {
		cfg.WriteBufferSize = 1024
	}
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	principal := webcontext.GetPrincipal(r.Context())
	if principal == nil {
		response.RenderError(w, response.Unauthorized("authorization required"))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client
		h.hub.logger.Debug("upgrade failed", zap.Error(err))
		return
	}

	client := newClient(h.hub, conn, principal.ID)
	// queued before registration, so nothing else can have closed send yet
	if welcome, err := NewMessage(TypeWelcome, map[string]string{"client_id": client.ID}); err == nil {
		if data, err := json.Marshal(welcome); err == nil {
			client.send <- data
		}
	}
	if !h.hub.join(client) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "unavailable"))
		conn.Close()
		return
	}

	go client.writePump()
	client.readPump()
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		for _, a := range allowed {
			switch {
			case a == "*", a == origin:
				return true
			case strings.HasPrefix(a, "*.") && strings.HasSuffix(u.Host, a[1:]):
				return true
			}
		}
		return false
	}
}
