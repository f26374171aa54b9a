package ws

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"realtime-service/internal/models"
	"realtime-service/internal/observability"
	"realtime-service/internal/telemetry"
)

// Hub maintains the active push connections, one room per scope key.
type Hub struct {
	rooms    map[string]map[*Connection]bool
	connInfo map[string]map[*Connection]ConnInfo
	audit    *telemetry.AuditEmitter
	mu       sync.RWMutex
}

// NewHub creates an empty hub. A nil emitter disables audit records.
func NewHub(audit *telemetry.AuditEmitter) *Hub {
	return &Hub{
		rooms:    make(map[string]map[*Connection]bool),
		connInfo: make(map[string]map[*Connection]ConnInfo),
		audit:    audit,
	}
}

// AddClient registers a push connection to a scope room.
func (h *Hub) AddClient(scopeKey string, conn *Connection, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[scopeKey]; !ok {
		h.rooms[scopeKey] = make(map[*Connection]bool)
	}
	h.rooms[scopeKey][conn] = true
	if _, ok := h.connInfo[scopeKey]; !ok {
		h.connInfo[scopeKey] = make(map[*Connection]ConnInfo)
	}
	h.connInfo[scopeKey][conn] = info
}

// RemoveClient removes a push connection from a scope room.
func (h *Hub) RemoveClient(scopeKey string, conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[scopeKey]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.rooms, scopeKey)
		}
	}
	if infos, ok := h.connInfo[scopeKey]; ok {
		delete(infos, conn)
		if len(infos) == 0 {
			delete(h.connInfo, scopeKey)
		}
	}
}

// RoomSize reports the number of live connections in a scope room.
func (h *Hub) RoomSize(scopeKey string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[scopeKey])
}

// BroadcastBatch delivers new messages to every connection in the scope room.
func (h *Hub) BroadcastBatch(scopeKey string, msgs []models.Message) {
	if len(msgs) == 0 {
		return
	}
	h.broadcast(scopeKey, models.StreamEvent{Type: models.EventBatch, Messages: msgs})
}

// BroadcastReconnectHint asks every connection in the room to re-establish.
// Used when draining a node; clients treat it as a non-counting error.
func (h *Hub) BroadcastReconnectHint(scopeKey string) {
	h.broadcast(scopeKey, models.StreamEvent{Type: models.EventReconnect})
}

func (h *Hub) broadcast(scopeKey string, event models.StreamEvent) {
	h.mu.RLock()
	conns := make([]*Connection, 0, len(h.rooms[scopeKey]))
	for conn := range h.rooms[scopeKey] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.WriteEvent(event); err != nil {
			log.Printf("websocket write error: %v", err)
			conn.Close()
			h.publishWSError(scopeKey, conn, err)
			h.RemoveClient(scopeKey, conn)
		}
	}
}

func (h *Hub) publishWSError(scopeKey string, conn *Connection, err error) {
	info, ok := h.getConnInfo(scopeKey, conn)
	if !ok {
		return
	}

	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"scope":       scopeKey,
			"event":       "ws_error",
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      err.Error(),
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"tenant_id": info.TenantID,
			"ip":        info.IP,
		},
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(context.Background(), observability.RoutingKeyStream, observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		Scope:     scopeKey,
		Payload:   payload,
	}, headers)
	observability.IncWSEvent(scopeKey, "ws_error")

	userID := strconv.Itoa(info.UserID)
	h.audit.EmitDelivery(context.Background(), "WARNING", scopeKey, "push connection evicted after write failure: "+err.Error(), info.RequestID, &userID)
}

func (h *Hub) getConnInfo(scopeKey string, conn *Connection) (ConnInfo, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if infos, ok := h.connInfo[scopeKey]; ok {
		info, exists := infos[conn]
		return info, exists
	}
	return ConnInfo{}, false
}
