package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"realtime-service/internal/middleware"
	"realtime-service/internal/mocks"
	"realtime-service/internal/models"
	"realtime-service/internal/repositories"
	"realtime-service/internal/telemetry"
	"realtime-service/internal/ws"
)

func setupStreamRouter(handler *StreamHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("identity", middleware.Identity{UserID: 1, TenantID: 1})
		c.Next()
	})
	r.GET("/scopes/:scope/messages", handler.GetMessages)
	r.POST("/scopes/:scope/messages", handler.PostMessage)
	r.POST("/scopes/:scope/rebalance", handler.Rebalance)
	return r
}

func TestGetMessagesLatestPage(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewStreamHandler(messageRepo, nil, nil)
	router := setupStreamRouter(handler)

	topic := "welcome week"
	messageRepo.On("LatestPage", mock.Anything, models.TenantScope(1), repositories.DefaultPageLimit).
		Return([]models.Message{{ID: "m1", TenantID: 1, Body: "hi"}}, nil).Once()
	messageRepo.On("ChannelInfo", mock.Anything, models.TenantScope(1)).
		Return(repositories.ChannelInfo{Topic: &topic, Mentors: []string{"ada"}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/scopes/school/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var page models.FetchPage
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&page))
	require.Len(t, page.Messages, 1)
	require.Equal(t, "m1", page.Messages[0].ID)
	require.Equal(t, &topic, page.Topic)
	require.Equal(t, []string{"ada"}, page.Mentors)
	messageRepo.AssertExpectations(t)
}

func TestGetMessagesAfterCursor(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewStreamHandler(messageRepo, nil, nil)
	router := setupStreamRouter(handler)

	moduleScope := models.ModuleScope(1, 4)
	messageRepo.On("QueryAfter", mock.Anything, moduleScope, "m7", repositories.DefaultPageLimit).
		Return([]models.Message{{ID: "m8"}, {ID: "m9"}}, nil).Once()
	messageRepo.On("ChannelInfo", mock.Anything, moduleScope).
		Return(repositories.ChannelInfo{Mentors: []string{}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/scopes/module-4/messages?after=m7", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var page models.FetchPage
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&page))
	require.Equal(t, "m9", page.Messages[1].ID)
	messageRepo.AssertExpectations(t)
}

func TestGetMessagesInvalidScope(t *testing.T) {
	handler := NewStreamHandler(new(mocks.MessageRepositoryMock), nil, nil)
	router := setupStreamRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/scopes/module-abc/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetMessagesRepoError(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewStreamHandler(messageRepo, nil, nil)
	router := setupStreamRouter(handler)

	messageRepo.On("LatestPage", mock.Anything, models.TenantScope(1), repositories.DefaultPageLimit).
		Return(([]models.Message)(nil), assert.AnError).Once()

	req := httptest.NewRequest(http.MethodGet, "/scopes/school/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	messageRepo.AssertExpectations(t)
}

func TestGetMessagesChannelInfoFailureIsNotFatal(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewStreamHandler(messageRepo, nil, nil)
	router := setupStreamRouter(handler)

	messageRepo.On("LatestPage", mock.Anything, models.TenantScope(1), repositories.DefaultPageLimit).
		Return([]models.Message{{ID: "m1"}}, nil).Once()
	messageRepo.On("ChannelInfo", mock.Anything, models.TenantScope(1)).
		Return(repositories.ChannelInfo{}, assert.AnError).Once()

	req := httptest.NewRequest(http.MethodGet, "/scopes/school/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	messageRepo.AssertExpectations(t)
}

func TestPostMessageSuccess(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	hub := ws.NewHub(nil)
	handler := NewStreamHandler(messageRepo, hub, nil)
	router := setupStreamRouter(handler)

	authorID := 1
	messageRepo.On("Create", mock.Anything, models.TenantScope(1), models.KindMessage, &authorID, "hello").
		Return(models.Message{ID: "m1", TenantID: 1, Body: "hello"}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/scopes/school/messages", bytes.NewBufferString(`{"body":"hello"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	messageRepo.AssertExpectations(t)
}

func TestPostMessageMissingBody(t *testing.T) {
	handler := NewStreamHandler(new(mocks.MessageRepositoryMock), nil, nil)
	router := setupStreamRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/scopes/school/messages", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRebalance(t *testing.T) {
	handler := NewStreamHandler(new(mocks.MessageRepositoryMock), ws.NewHub(nil), nil)
	router := setupStreamRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/scopes/school/rebalance", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRebalanceEmitsAuditRecord(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	publisher.On("Publish", mock.Anything, "audit_log.realtime", mock.MatchedBy(func(event any) bool {
		envelope, ok := event.(telemetry.AuditEnvelope)
		if !ok {
			return false
		}
		return envelope.Payload.Scope == "t1/school" && envelope.Payload.Level == "INFO"
	})).Return(nil).Once()
	emitter := telemetry.NewAuditEmitter(publisher, "audit_log.realtime", "realtime-service", "test")

	handler := NewStreamHandler(new(mocks.MessageRepositoryMock), ws.NewHub(emitter), emitter)
	router := setupStreamRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/scopes/school/rebalance", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	publisher.AssertExpectations(t)
}

func TestUnauthenticatedRequestIsRejected(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewStreamHandler(new(mocks.MessageRepositoryMock), nil, nil)
	r.GET("/scopes/:scope/messages", handler.GetMessages)

	req := httptest.NewRequest(http.MethodGet, "/scopes/school/messages", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
