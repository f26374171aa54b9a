package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"realtime-service/internal/middleware"
	"realtime-service/internal/models"
	"realtime-service/internal/observability"
	"realtime-service/internal/repositories"
	"realtime-service/internal/telemetry"
	"realtime-service/internal/ws"
)

// StreamHandler serves the incremental fetch contract and the write path for
// scope message streams.
type StreamHandler struct {
	messageRepo repositories.MessageRepository
	hub         *ws.Hub
	audit       *telemetry.AuditEmitter
}

// NewStreamHandler builds a StreamHandler. A nil emitter disables audit
// records.
func NewStreamHandler(messageRepo repositories.MessageRepository, hub *ws.Hub, audit *telemetry.AuditEmitter) *StreamHandler {
	return &StreamHandler{messageRepo: messageRepo, hub: hub, audit: audit}
}

func scopeFromRequest(c *gin.Context) (models.Scope, middleware.Identity, bool) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return models.Scope{}, middleware.Identity{}, false
	}
	scope, err := models.ParseScopeKey(identity.TenantID, c.Param("scope"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scope"})
		return models.Scope{}, middleware.Identity{}, false
	}
	return scope, identity, true
}

// GetMessages answers the cursor contract: without `after` the latest page of
// the scope, with `after` everything newer, oldest-first, capped at the page
// limit. The response is prefix-consistent, so the last id is always a safe
// new cursor.
func (h *StreamHandler) GetMessages(c *gin.Context) {
	scope, _, ok := scopeFromRequest(c)
	if !ok {
		return
	}

	after := c.Query("after")
	var (
		msgs []models.Message
		err  error
	)
	if after == "" {
		msgs, err = h.messageRepo.LatestPage(c.Request.Context(), scope, repositories.DefaultPageLimit)
	} else {
		msgs, err = h.messageRepo.QueryAfter(c.Request.Context(), scope, after, repositories.DefaultPageLimit)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	info, err := h.messageRepo.ChannelInfo(c.Request.Context(), scope)
	if err != nil {
		// Metadata is decoration; a failed lookup never fails the page.
		log.Printf("channel info lookup failed for %s: %v", scope.StorageKey(), err)
		info = repositories.ChannelInfo{Mentors: []string{}}
	}

	c.JSON(http.StatusOK, models.FetchPage{Messages: msgs, Topic: info.Topic, Mentors: info.Mentors})
}

// PostMessage persists a message in the scope and pushes it to the live room.
func (h *StreamHandler) PostMessage(c *gin.Context) {
	scope, identity, ok := scopeFromRequest(c)
	if !ok {
		return
	}

	var req struct {
		Body string `json:"body" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	authorID := identity.UserID
	msg, err := h.messageRepo.Create(c.Request.Context(), scope, models.KindMessage, &authorID, req.Body)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store message"})
		return
	}

	if h.hub != nil {
		h.hub.BroadcastBatch(scope.StorageKey(), []models.Message{msg})
	}

	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// Rebalance asks every live connection in the scope to reconnect. Used when
// draining a node; clients must not count the hint as a push failure.
func (h *StreamHandler) Rebalance(c *gin.Context) {
	scope, _, ok := scopeFromRequest(c)
	if !ok {
		return
	}

	h.hub.BroadcastReconnectHint(scope.StorageKey())
	h.audit.EmitDelivery(c.Request.Context(), "INFO", scope.StorageKey(), "reconnect hint broadcast to scope", requestIDFromContext(c), userIDFromContext(c))
	_ = observability.PublishEvent(c.Request.Context(), observability.RoutingKeyStream, observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "reconnect_hint",
		Scope:     scope.StorageKey(),
	}, observability.BuildHeaders(requestIDFromContext(c), ""))

	c.JSON(http.StatusOK, gin.H{"status": "ok", "connections": h.hub.RoomSize(scope.StorageKey())})
}
