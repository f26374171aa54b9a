package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"realtime-service/internal/models"
	"realtime-service/internal/repositories"
)

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Create(ctx context.Context, scope models.Scope, kind string, authorID *int, body string) (models.Message, error) {
	args := m.Called(ctx, scope, kind, authorID, body)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) QueryAfter(ctx context.Context, scope models.Scope, after string, limit int) ([]models.Message, error) {
	args := m.Called(ctx, scope, after, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) LatestPage(ctx context.Context, scope models.Scope, limit int) ([]models.Message, error) {
	args := m.Called(ctx, scope, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) CountAfter(ctx context.Context, scope models.Scope, after string) (int, error) {
	args := m.Called(ctx, scope, after)
	return args.Int(0), args.Error(1)
}

func (m *MessageRepositoryMock) ChannelInfo(ctx context.Context, scope models.Scope) (repositories.ChannelInfo, error) {
	args := m.Called(ctx, scope)
	var info repositories.ChannelInfo
	if val := args.Get(0); val != nil {
		info = val.(repositories.ChannelInfo)
	}
	return info, args.Error(1)
}

type BadgeRepositoryMock struct {
	mock.Mock
}

func (m *BadgeRepositoryMock) CountUnreadNotifications(ctx context.Context, tenantID, userID int) (int, error) {
	args := m.Called(ctx, tenantID, userID)
	return args.Int(0), args.Error(1)
}

func (m *BadgeRepositoryMock) RadarSeenAt(ctx context.Context, tenantID, userID int) (time.Time, error) {
	args := m.Called(ctx, tenantID, userID)
	var seen time.Time
	if val := args.Get(0); val != nil {
		seen = val.(time.Time)
	}
	return seen, args.Error(1)
}

func (m *BadgeRepositoryMock) CountRadarSince(ctx context.Context, tenantID int, since time.Time) (int, error) {
	args := m.Called(ctx, tenantID, since)
	return args.Int(0), args.Error(1)
}

func (m *BadgeRepositoryMock) LatestUpdateAt(ctx context.Context, tenantID int) (*time.Time, error) {
	args := m.Called(ctx, tenantID)
	var latest *time.Time
	if val := args.Get(0); val != nil {
		latest = val.(*time.Time)
	}
	return latest, args.Error(1)
}

func (m *BadgeRepositoryMock) NextLiveSession(ctx context.Context, tenantID int, after time.Time) (*models.LiveEvent, error) {
	args := m.Called(ctx, tenantID, after)
	var event *models.LiveEvent
	if val := args.Get(0); val != nil {
		event = val.(*models.LiveEvent)
	}
	return event, args.Error(1)
}

func (m *BadgeRepositoryMock) TotalXP(ctx context.Context, tenantID, userID int) (int, error) {
	args := m.Called(ctx, tenantID, userID)
	return args.Int(0), args.Error(1)
}
