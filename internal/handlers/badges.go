package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"realtime-service/internal/badges"
	"realtime-service/internal/middleware"
)

// BadgeHandler serves the nav badge snapshot endpoint.
type BadgeHandler struct {
	aggregator *badges.Aggregator
}

// NewBadgeHandler builds a BadgeHandler.
func NewBadgeHandler(aggregator *badges.Aggregator) *BadgeHandler {
	return &BadgeHandler{aggregator: aggregator}
}

// Snapshot always answers 200 with a full snapshot. An unresolved caller gets
// the all-zero snapshot; individual failed slots keep their zero values. The
// duration header is diagnostic only.
func (h *BadgeHandler) Snapshot(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		c.Header("X-Badge-Duration-Ms", "0")
		c.JSON(http.StatusOK, badges.Zero())
		return
	}

	snap := h.aggregator.Snapshot(c.Request.Context(), identity.TenantID, identity.UserID, c.Query("chat_after"))
	c.Header("X-Badge-Duration-Ms", strconv.FormatInt(snap.DurationMs, 10))
	c.JSON(http.StatusOK, snap)
}
