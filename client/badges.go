package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"realtime-service/internal/models"
)

// BadgeFetcher retrieves one badge snapshot.
type BadgeFetcher interface {
	FetchBadges(ctx context.Context, chatAfter string) (models.BadgeSnapshot, error)
}

// HTTPBadgeFetcher talks to the service's badge endpoint.
type HTTPBadgeFetcher struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPBadgeFetcher constructs an HTTPBadgeFetcher. The short client
// timeout doubles as the caller-enforced bound on the aggregate fetch.
func NewHTTPBadgeFetcher(baseURL, token string) *HTTPBadgeFetcher {
	return &HTTPBadgeFetcher{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (f *HTTPBadgeFetcher) FetchBadges(ctx context.Context, chatAfter string) (models.BadgeSnapshot, error) {
	endpoint := f.baseURL + "/badges"
	if chatAfter != "" {
		endpoint += "?chat_after=" + url.QueryEscape(chatAfter)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return models.BadgeSnapshot{}, err
	}
	req.Header.Set("Authorization", "Bearer "+f.token)

	resp, err := f.client.Do(req)
	if err != nil {
		return models.BadgeSnapshot{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.BadgeSnapshot{}, fmt.Errorf("badges: status %d", resp.StatusCode)
	}

	var snap models.BadgeSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return models.BadgeSnapshot{}, err
	}
	return snap, nil
}

// BadgeWatcher polls the badge endpoint on a fixed interval. Ticks are
// coalesced (a tick is skipped while the previous fetch is in flight),
// and the watcher can be paused while the surface showing the badges is
// hidden; Resume refreshes immediately, debounced against refresh storms.
type BadgeWatcher struct {
	fetcher    BadgeFetcher
	interval   time.Duration
	debounce   time.Duration
	chatAfter  func() string
	onSnapshot func(models.BadgeSnapshot)

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	timer       *timerHandle
	inFlight    bool
	paused      bool
	closed      bool
	started     bool
	lastRefresh time.Time
	snap        models.BadgeSnapshot
}

// BadgeWatcherOptions tunes a BadgeWatcher.
type BadgeWatcherOptions struct {
	// Interval between polls. Defaults to 30s.
	Interval time.Duration
	// Debounce suppresses the resume refresh when the last fetch is this
	// recent. Defaults to 2s.
	Debounce time.Duration
	// ChatAfter optionally supplies the chat cursor for the unread count.
	ChatAfter func() string
	// OnSnapshot fires after every successful fetch.
	OnSnapshot func(models.BadgeSnapshot)
}

// NewBadgeWatcher constructs a watcher; call Start to begin polling.
func NewBadgeWatcher(fetcher BadgeFetcher, opts BadgeWatcherOptions) *BadgeWatcher {
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 2 * time.Second
	}
	return &BadgeWatcher{
		fetcher:    fetcher,
		interval:   opts.Interval,
		debounce:   opts.Debounce,
		chatAfter:  opts.ChatAfter,
		onSnapshot: opts.OnSnapshot,
	}
}

// Start begins polling with an immediate first fetch.
func (w *BadgeWatcher) Start(ctx context.Context) {
	w.mu.Lock()
	if w.started || w.closed {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()
	w.tick()
}

func (w *BadgeWatcher) tick() {
	w.mu.Lock()
	if w.closed || w.paused {
		w.mu.Unlock()
		return
	}
	if w.inFlight {
		// Previous fetch still pending: skip this tick, keep the cadence.
		w.scheduleLocked(w.interval)
		w.mu.Unlock()
		return
	}
	w.inFlight = true
	w.scheduleLocked(w.interval)
	w.mu.Unlock()

	go w.fetch()
}

func (w *BadgeWatcher) fetch() {
	after := ""
	if w.chatAfter != nil {
		after = w.chatAfter()
	}

	snap, err := w.fetcher.FetchBadges(w.ctx, after)

	w.mu.Lock()
	w.inFlight = false
	w.lastRefresh = time.Now()
	if err == nil {
		w.snap = snap
	}
	closed := w.closed
	w.mu.Unlock()

	if err != nil {
		if !closed {
			log.Printf("badge fetch failed: %v", err)
		}
		return
	}
	if w.onSnapshot != nil && !closed {
		w.onSnapshot(snap)
	}
}

func (w *BadgeWatcher) scheduleLocked(d time.Duration) {
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = scheduleNext(d, w.tick)
}

// Pause stops polling while the badges are not visible.
func (w *BadgeWatcher) Pause() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.paused = true
	if w.timer != nil {
		w.timer.Stop()
	}
}

// Resume restarts polling and refreshes immediately unless a fetch completed
// within the debounce window.
func (w *BadgeWatcher) Resume() {
	w.mu.Lock()
	if w.closed || !w.paused {
		w.mu.Unlock()
		return
	}
	w.paused = false
	fresh := time.Since(w.lastRefresh) < w.debounce
	w.mu.Unlock()

	if fresh {
		w.mu.Lock()
		w.scheduleLocked(w.interval)
		w.mu.Unlock()
		return
	}
	w.tick()
}

// Snapshot returns the last successfully fetched snapshot.
func (w *BadgeWatcher) Snapshot() models.BadgeSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snap
}

// Close stops the watcher.
func (w *BadgeWatcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	if w.cancel != nil {
		w.cancel()
	}
}
