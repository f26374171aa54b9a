package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"realtime-service/internal/middleware"
	"realtime-service/internal/models"
	"realtime-service/internal/observability"
	"realtime-service/internal/repositories"
)

// StreamWebSocketHandler serves the push transport for scope streams.
type StreamWebSocketHandler struct {
	hub         *Hub
	messageRepo repositories.MessageRepository
}

// NewStreamWebSocketHandler constructs a StreamWebSocketHandler.
func NewStreamWebSocketHandler(hub *Hub, messageRepo repositories.MessageRepository) *StreamWebSocketHandler {
	return &StreamWebSocketHandler{hub: hub, messageRepo: messageRepo}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection, registers the client for live broadcast,
// and replays the catch-up batch seeded at the client's cursor. Registration
// happens before the replay so a message broadcast during the handshake is
// never lost; live events are buffered on the connection until the replay is
// flushed, keeping the stream in id order.
func (h *StreamWebSocketHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("realtime-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := c.Query("token")
	if token == "" {
		token = c.GetHeader("Authorization")
		if len(token) > 7 {
			token = token[7:] // strip "Bearer "
		}
	}

	identity, err := middleware.ResolveToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	scope, err := models.ParseScopeKey(identity.TenantID, c.Param("scope"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scope"})
		return
	}
	scopeKey := scope.StorageKey()
	after := c.Query("after")

	wsConn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	conn := NewConnection(wsConn)

	traceID := span.SpanContext().TraceID().String()
	requestID := observability.RequestIDFromRequest(c.Request)
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      identity.UserID,
		TenantID:    identity.TenantID,
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   requestID,
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}
	h.hub.AddClient(scopeKey, conn, info)

	// Replay everything newer than the client's cursor. Broadcasts racing the
	// replay are buffered by the connection and flushed afterwards.
	if after != "" {
		for {
			batch, err := h.messageRepo.QueryAfter(ctx, scope, after, repositories.DefaultPageLimit)
			if err != nil || len(batch) == 0 {
				break
			}
			if writeErr := conn.WriteReplay(models.StreamEvent{Type: models.EventBatch, Messages: batch}); writeErr != nil {
				h.hub.RemoveClient(scopeKey, conn)
				conn.Close()
				return
			}
			after = batch[len(batch)-1].ID
			if len(batch) < repositories.DefaultPageLimit {
				break
			}
		}
	}
	if err := conn.FlushReplay(); err != nil {
		h.hub.RemoveClient(scopeKey, conn)
		conn.Close()
		return
	}

	observability.IncWSActive(scope.Key())
	observability.IncWSEvent(scope.Key(), "ws_connect")
	_ = observability.PublishEvent(ctx, observability.RoutingKeyStream, observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_connect",
		Scope:     scopeKey,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"scope":       scopeKey,
				"event":       "ws_connect",
				"conn_id":     info.ConnID,
				"duration_ms": 0,
				"reason":      "",
			},
			"identity": map[string]interface{}{
				"user_id":   info.UserID,
				"tenant_id": info.TenantID,
				"ip":        info.IP,
			},
		},
	}, observability.BuildHeaders(requestID, traceID))

	// Keep connection alive and clean on close. The handshake context is
	// canceled once this handler returns, so cleanup publishes on its own.
	go func() {
		var closeReason string
		defer func() {
			h.hub.RemoveClient(scopeKey, conn)
			observability.DecWSActive(scope.Key())
			observability.IncWSEvent(scope.Key(), "ws_disconnect")
			_ = observability.PublishEvent(context.Background(), observability.RoutingKeyStream, observability.EventEnvelope{
				EventType: "ws_events",
				EventName: "ws_disconnect",
				Scope:     scopeKey,
				Payload: map[string]interface{}{
					"ws": map[string]interface{}{
						"scope":       scopeKey,
						"event":       "ws_disconnect",
						"conn_id":     info.ConnID,
						"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
						"reason":      closeReason,
					},
					"identity": map[string]interface{}{
						"user_id":   info.UserID,
						"tenant_id": info.TenantID,
						"ip":        info.IP,
					},
				},
			}, observability.BuildHeaders(requestID, traceID))
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				closeReason = err.Error()
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					observability.IncWSEvent(scope.Key(), "ws_error")
				}
				return
			}
		}
	}()
}
