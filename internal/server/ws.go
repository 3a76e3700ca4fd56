// Package server exposes the chat WebSocket endpoint.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/oselz/agent-relay/internal/audit"
	"github.com/oselz/agent-relay/internal/relay"
)

const writeTimeout = 10 * time.Second

// WSHandler upgrades chat connections and bridges them to the relay.
type WSHandler struct {
	registry      *relay.Registry
	recorder      audit.Recorder
	allowedOrigin string
	isDev         bool
	logger        *slog.Logger
}

// NewWSHandler creates a new chat WebSocket handler.
func NewWSHandler(registry *relay.Registry, recorder audit.Recorder, allowedOrigin string, isDev bool, logger *slog.Logger) *WSHandler {
	if recorder == nil {
		recorder = audit.Noop()
	}
	return &WSHandler{
		registry:      registry,
		recorder:      recorder,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
		logger:        logger,
	}
}

// wsSender serializes writes to a single websocket connection. Turn output
// and command replies come from different goroutines, so every write goes
// through one mutex to keep message order intact.
type wsSender struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *wsSender) Send(ctx context.Context, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return s.conn.Write(writeCtx, websocket.MessageText, payload)
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("Failed to accept WebSocket", "error", err, "ip", r.RemoteAddr)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "connection ended"); closeErr != nil {
			h.logger.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sender := &wsSender{conn: ws}

	var connID string
	emit := func(m relay.Message) {
		payload, err := relay.Encode(m)
		if err != nil {
			h.logger.Error("Failed to encode message", "error", err, "conn_id", connID)
			return
		}
		if err := sender.Send(ctx, payload); err != nil {
			h.logger.Debug("WebSocket write failed", "error", err, "conn_id", connID)
			cancel()
			return
		}
		h.recorder.Record(connID, audit.DirOutbound, payload)
	}

	conn := h.registry.Connect(ctx, emit)
	connID = conn.ID()
	defer h.registry.Disconnect(conn)

	h.logger.Info("Chat connection opened", "conn_id", connID, "ip", r.RemoteAddr)

	for {
		_, raw, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				h.logger.Debug("WebSocket closed by client", "conn_id", connID)
			} else if ctx.Err() == nil {
				h.logger.Warn("WebSocket read error", "error", err, "conn_id", connID)
			}
			break
		}
		h.recorder.Record(connID, audit.DirInbound, raw)
		conn.HandleCommand(raw)
	}

	h.logger.Info("Chat connection closed", "conn_id", connID)
}

func (h *WSHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	h.logger.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}
