package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"realtime-service/internal/badges"
	"realtime-service/internal/middleware"
	"realtime-service/internal/mocks"
	"realtime-service/internal/models"
)

func setupBadgeRouter(handler *BadgeHandler, withIdentity bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if withIdentity {
		r.Use(func(c *gin.Context) {
			c.Set("identity", middleware.Identity{UserID: 7, TenantID: 2})
			c.Next()
		})
	}
	r.GET("/badges", handler.Snapshot)
	return r
}

func TestBadgeSnapshotAuthenticated(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	badgeRepo := new(mocks.BadgeRepositoryMock)

	messageRepo.On("CountAfter", mock.Anything, models.TenantScope(2), "m10").Return(4, nil).Once()
	badgeRepo.On("RadarSeenAt", mock.Anything, 2, 7).Return(time.Time{}, nil).Once()
	badgeRepo.On("CountRadarSince", mock.Anything, 2, time.Time{}).Return(2, nil).Once()
	badgeRepo.On("CountUnreadNotifications", mock.Anything, 2, 7).Return(1, nil).Once()
	badgeRepo.On("LatestUpdateAt", mock.Anything, 2).Return((*time.Time)(nil), nil).Once()
	badgeRepo.On("NextLiveSession", mock.Anything, 2, mock.Anything).Return((*models.LiveEvent)(nil), nil).Once()
	badgeRepo.On("TotalXP", mock.Anything, 2, 7).Return(340, nil).Once()

	handler := NewBadgeHandler(badges.NewAggregator(messageRepo, badgeRepo))
	router := setupBadgeRouter(handler, true)

	req := httptest.NewRequest(http.MethodGet, "/badges?chat_after=m10", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Badge-Duration-Ms"))

	var snap models.BadgeSnapshot
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snap))
	require.Equal(t, 4, snap.ChatUnread)
	require.Equal(t, 2, snap.RadarUnread)
	require.Equal(t, 1, snap.NotificationsUnread)
	require.Equal(t, 340, snap.XPTotal)
	messageRepo.AssertExpectations(t)
	badgeRepo.AssertExpectations(t)
}

func TestBadgeSnapshotAnonymousGetsZeroes(t *testing.T) {
	handler := NewBadgeHandler(badges.NewAggregator(new(mocks.MessageRepositoryMock), new(mocks.BadgeRepositoryMock)))
	router := setupBadgeRouter(handler, false)

	req := httptest.NewRequest(http.MethodGet, "/badges", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "0", rec.Header().Get("X-Badge-Duration-Ms"))

	var snap models.BadgeSnapshot
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snap))
	require.Equal(t, models.BadgeSnapshot{}, snap)
}
