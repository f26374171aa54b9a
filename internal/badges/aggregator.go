package badges

import (
	"context"
	"log"
	"sync"
	"time"

	"realtime-service/internal/models"
	"realtime-service/internal/observability"
	"realtime-service/internal/repositories"
)

// DefaultTimeout bounds the whole badge fan-out. A slot that outlives it
// degrades to its zero value like any other failure.
const DefaultTimeout = 3 * time.Second

// Aggregator computes best-effort badge snapshots. Sub-queries run
// concurrently with per-slot isolation: one failing slot never fails the
// snapshot, it only leaves its own field at the zero value.
type Aggregator struct {
	messages repositories.MessageRepository
	badges   repositories.BadgeRepository
	timeout  time.Duration
	now      func() time.Time
}

// NewAggregator constructs an Aggregator with the default timeout.
func NewAggregator(messages repositories.MessageRepository, badges repositories.BadgeRepository) *Aggregator {
	return &Aggregator{messages: messages, badges: badges, timeout: DefaultTimeout, now: time.Now}
}

// WithTimeout overrides the fan-out timeout.
func (a *Aggregator) WithTimeout(d time.Duration) *Aggregator {
	a.timeout = d
	return a
}

func capCount(n int) int {
	if n > models.BadgeCap {
		return models.BadgeCap
	}
	return n
}

// Snapshot fans out the unread sub-queries for one caller and joins the
// results. Always returns a complete snapshot; the error budget is spent on
// logging and metrics, never on the response.
func (a *Aggregator) Snapshot(ctx context.Context, tenantID, userID int, chatAfter string) models.BadgeSnapshot {
	start := a.now()
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var snap models.BadgeSnapshot
	var wg sync.WaitGroup

	runSlot(&wg, "chat_unread", func() error {
		if chatAfter == "" {
			return nil
		}
		count, err := a.messages.CountAfter(ctx, models.TenantScope(tenantID), chatAfter)
		if err != nil {
			return err
		}
		snap.ChatUnread = capCount(count)
		return nil
	})

	runSlot(&wg, "radar_unread", func() error {
		seen, err := a.badges.RadarSeenAt(ctx, tenantID, userID)
		if err != nil {
			return err
		}
		count, err := a.badges.CountRadarSince(ctx, tenantID, seen)
		if err != nil {
			return err
		}
		snap.RadarUnread = capCount(count)
		return nil
	})

	runSlot(&wg, "notifications_unread", func() error {
		count, err := a.badges.CountUnreadNotifications(ctx, tenantID, userID)
		if err != nil {
			return err
		}
		snap.NotificationsUnread = capCount(count)
		return nil
	})

	runSlot(&wg, "latest_update", func() error {
		latest, err := a.badges.LatestUpdateAt(ctx, tenantID)
		if err != nil {
			return err
		}
		snap.LatestUpdateAt = latest
		return nil
	})

	runSlot(&wg, "next_live_event", func() error {
		event, err := a.badges.NextLiveSession(ctx, tenantID, a.now())
		if err != nil {
			return err
		}
		snap.NextLiveEvent = event
		return nil
	})

	runSlot(&wg, "xp_total", func() error {
		total, err := a.badges.TotalXP(ctx, tenantID, userID)
		if err != nil {
			return err
		}
		snap.XPTotal = total
		return nil
	})

	wg.Wait()

	elapsed := a.now().Sub(start)
	snap.DurationMs = elapsed.Milliseconds()
	observability.ObserveBadgeFanout(elapsed)
	return snap
}

// runSlot runs one sub-query in its own goroutine. Errors and panics degrade
// the slot to its zero value; the other slots are unaffected.
func runSlot(wg *sync.WaitGroup, name string, fn func() error) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() {
			if r := recover(); r != nil {
				observability.IncBadgeSlotFailure(name)
				log.Printf("badge slot %s panicked: %v", name, r)
			}
		}()
		if err := fn(); err != nil {
			observability.IncBadgeSlotFailure(name)
			log.Printf("badge slot %s degraded: %v", name, err)
		}
	}()
}

// Zero returns the all-zero snapshot used for unauthenticated callers.
func Zero() models.BadgeSnapshot {
	return models.BadgeSnapshot{}
}
