package models

import "time"

// BadgeCap bounds every numeric badge count for display. Applied after the
// true count is computed.
const BadgeCap = 99

// LiveEvent is the next upcoming scheduled live session, if any.
type LiveEvent struct {
	ID       int       `db:"id" json:"id"`
	Title    string    `db:"title" json:"title"`
	StartsAt time.Time `db:"starts_at" json:"starts_at"`
}

// BadgeSnapshot is a point-in-time, best-effort aggregate of everything the
// nav badges need. It has no identity and no persistence; every fetch is a
// fresh snapshot. Slots that could not be resolved hold their zero values.
type BadgeSnapshot struct {
	ChatUnread          int        `json:"chat_unread"`
	RadarUnread         int        `json:"radar_unread"`
	NotificationsUnread int        `json:"notifications_unread"`
	LatestUpdateAt      *time.Time `json:"latest_update_at"`
	NextLiveEvent       *LiveEvent `json:"next_live_event"`
	XPTotal             int        `json:"xp_total"`
	DurationMs          int64      `json:"duration_ms"`
}
