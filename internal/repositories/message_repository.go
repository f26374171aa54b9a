package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"realtime-service/internal/models"
)

var ErrChannelNotFound = errors.New("channel not found")

// DefaultPageLimit caps a single incremental fetch page.
const DefaultPageLimit = 200

// ChannelInfo is the per-scope metadata returned alongside every fetch page.
type ChannelInfo struct {
	Topic   *string
	Mentors []string
}

// MessageRepository defines interactions for scope message streams.
type MessageRepository interface {
	Create(ctx context.Context, scope models.Scope, kind string, authorID *int, body string) (models.Message, error)
	QueryAfter(ctx context.Context, scope models.Scope, after string, limit int) ([]models.Message, error)
	LatestPage(ctx context.Context, scope models.Scope, limit int) ([]models.Message, error)
	CountAfter(ctx context.Context, scope models.Scope, after string) (int, error)
	ChannelInfo(ctx context.Context, scope models.Scope) (ChannelInfo, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

func scopeModule(scope models.Scope) int {
	if scope.ModuleID != nil {
		return *scope.ModuleID
	}
	return 0
}

// Create stores a message in a scope's stream. The id is a UUIDv7, so ids are
// time-ordered and never reused.
func (r *MessageRepo) Create(ctx context.Context, scope models.Scope, kind string, authorID *int, body string) (models.Message, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return models.Message{}, err
	}

	var msg models.Message
	err = r.db.QueryRowxContext(ctx, `INSERT INTO messages (id, tenant_id, module_id, kind, body, author_id)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, tenant_id, module_id, kind, body, author_id, created_at`,
		id.String(), scope.TenantID, scope.ModuleID, kind, body, authorID).
		Scan(&msg.ID, &msg.TenantID, &msg.ModuleID, &msg.Kind, &msg.Body, &msg.AuthorID, &msg.CreatedAt)
	return msg, err
}

// QueryAfter returns every message with id > after in the scope, oldest-first,
// capped at limit. The result is prefix-consistent: the caller may always take
// the last element's id as its new cursor.
func (r *MessageRepo) QueryAfter(ctx context.Context, scope models.Scope, after string, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	msgs := []models.Message{}
	err := r.db.SelectContext(ctx, &msgs, `SELECT id, tenant_id, module_id, kind, body, author_id, created_at
        FROM messages
        WHERE tenant_id=$1 AND COALESCE(module_id, 0)=$2 AND id > $3
        ORDER BY id ASC
        LIMIT $4`, scope.TenantID, scopeModule(scope), after, limit)
	return msgs, err
}

// LatestPage returns the most recent page of the scope, oldest-first.
func (r *MessageRepo) LatestPage(ctx context.Context, scope models.Scope, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	msgs := []models.Message{}
	err := r.db.SelectContext(ctx, &msgs, `SELECT id, tenant_id, module_id, kind, body, author_id, created_at FROM (
            SELECT id, tenant_id, module_id, kind, body, author_id, created_at
            FROM messages
            WHERE tenant_id=$1 AND COALESCE(module_id, 0)=$2
            ORDER BY id DESC
            LIMIT $3
        ) page ORDER BY id ASC`, scope.TenantID, scopeModule(scope), limit)
	return msgs, err
}

// CountAfter counts messages newer than the cursor in the scope.
func (r *MessageRepo) CountAfter(ctx context.Context, scope models.Scope, after string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM messages
        WHERE tenant_id=$1 AND COALESCE(module_id, 0)=$2 AND id > $3`,
		scope.TenantID, scopeModule(scope), after)
	return count, err
}

// ChannelInfo returns the scope's topic and mentor list. A missing row is not
// an error: channels exist implicitly, with empty metadata.
func (r *MessageRepo) ChannelInfo(ctx context.Context, scope models.Scope) (ChannelInfo, error) {
	var row struct {
		Topic   *string        `db:"topic"`
		Mentors pq.StringArray `db:"mentors"`
	}
	err := r.db.GetContext(ctx, &row, `SELECT topic, mentors FROM channel_info
        WHERE tenant_id=$1 AND module_id=$2`, scope.TenantID, scopeModule(scope))
	if errors.Is(err, sql.ErrNoRows) {
		return ChannelInfo{Mentors: []string{}}, nil
	}
	if err != nil {
		return ChannelInfo{}, err
	}
	return ChannelInfo{Topic: row.Topic, Mentors: []string(row.Mentors)}, nil
}
