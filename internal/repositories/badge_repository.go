package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"realtime-service/internal/models"
)

// BadgeRepository exposes the independent unread-source lookups the badge
// aggregator fans out over. Each method is a self-contained query so failures
// stay isolated per slot.
type BadgeRepository interface {
	CountUnreadNotifications(ctx context.Context, tenantID, userID int) (int, error)
	RadarSeenAt(ctx context.Context, tenantID, userID int) (time.Time, error)
	CountRadarSince(ctx context.Context, tenantID int, since time.Time) (int, error)
	LatestUpdateAt(ctx context.Context, tenantID int) (*time.Time, error)
	NextLiveSession(ctx context.Context, tenantID int, after time.Time) (*models.LiveEvent, error)
	TotalXP(ctx context.Context, tenantID, userID int) (int, error)
}

// BadgeRepo is a sqlx-backed repository.
type BadgeRepo struct {
	db *sqlx.DB
}

// NewBadgeRepo constructs BadgeRepo.
func NewBadgeRepo(db *sqlx.DB) *BadgeRepo {
	return &BadgeRepo{db: db}
}

// CountUnreadNotifications counts unread notifications for a user.
func (r *BadgeRepo) CountUnreadNotifications(ctx context.Context, tenantID, userID int) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM notifications
        WHERE tenant_id=$1 AND user_id=$2 AND read = FALSE`, tenantID, userID)
	return count, err
}

// RadarSeenAt returns when the user last viewed the radar feed. A user who
// never opened it gets the zero time, so everything counts as unread.
func (r *BadgeRepo) RadarSeenAt(ctx context.Context, tenantID, userID int) (time.Time, error) {
	var seen time.Time
	err := r.db.GetContext(ctx, &seen, `SELECT seen_at FROM radar_seen
        WHERE tenant_id=$1 AND user_id=$2`, tenantID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	return seen, err
}

// CountRadarSince counts radar items newer than the given timestamp.
func (r *BadgeRepo) CountRadarSince(ctx context.Context, tenantID int, since time.Time) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM radar_items
        WHERE tenant_id=$1 AND created_at > $2`, tenantID, since)
	return count, err
}

// LatestUpdateAt returns the creation time of the newest radar item, or nil
// when the tenant has none.
func (r *BadgeRepo) LatestUpdateAt(ctx context.Context, tenantID int) (*time.Time, error) {
	var latest *time.Time
	err := r.db.GetContext(ctx, &latest, `SELECT MAX(created_at) FROM radar_items
        WHERE tenant_id=$1`, tenantID)
	return latest, err
}

// NextLiveSession returns the next scheduled live session after the given
// time, or nil when nothing is scheduled.
func (r *BadgeRepo) NextLiveSession(ctx context.Context, tenantID int, after time.Time) (*models.LiveEvent, error) {
	var event models.LiveEvent
	err := r.db.GetContext(ctx, &event, `SELECT id, title, starts_at FROM live_sessions
        WHERE tenant_id=$1 AND starts_at > $2
        ORDER BY starts_at ASC
        LIMIT 1`, tenantID, after)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// TotalXP sums the user's XP events.
func (r *BadgeRepo) TotalXP(ctx context.Context, tenantID, userID int) (int, error) {
	var total int
	err := r.db.GetContext(ctx, &total, `SELECT COALESCE(SUM(points), 0) FROM xp_events
        WHERE tenant_id=$1 AND user_id=$2`, tenantID, userID)
	return total, err
}
