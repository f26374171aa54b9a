package client

import (
	"context"
	"log"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"realtime-service/internal/models"
)

// Active transport of a delivery session.
const (
	TransportPush = "push"
	TransportPoll = "poll"
)

// Config wires a delivery session. Only Fetcher is mandatory; a nil Dialer
// yields a poll-only session, a nil CursorStore yields an in-memory one.
type Config struct {
	Fetcher Fetcher
	Dialer  PushDialer
	Cursors CursorStore
	Breaker BreakerConfig

	PollBase       time.Duration
	PollMax        time.Duration
	PollFactor     float64
	EmptyStreak    int
	ReconnectDelay time.Duration
	PageLimit      int

	// OnUpdate fires after every apply that changed the visible list or the
	// scope metadata. Called outside the session lock.
	OnUpdate func()
}

// Session is one scope activation's delivery state: transport state machine,
// breaker, backoff, dedup/ordering, generation token. Construct with
// NewSession, start with Start, and always Close before activating another
// scope; cross-scope state is never shared.
type Session struct {
	scope   models.Scope
	cfg     Config
	state   *streamState
	breaker *gobreaker.CircuitBreaker[any]
	backoff *pollBackoff

	ctx    context.Context
	cancel context.CancelFunc

	mu             sync.Mutex
	gen            int
	closed         bool
	started        bool
	loading        bool
	transport      string
	topic          *string
	mentors        []string
	lastErr        error
	pollFailures   int
	push           PushChannel
	pollTimer      *timerHandle
	reconnectTimer *timerHandle
}

// NewSession constructs a session for one scope. It does nothing until Start.
func NewSession(scope models.Scope, cfg Config) *Session {
	if cfg.Cursors == nil {
		cfg.Cursors = NewMemoryCursorStore()
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = defaultPageLimit
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaultReconnectDelay
	}
	return &Session{
		scope:   scope,
		cfg:     cfg,
		state:   newStreamState(),
		breaker: newPushBreaker("push-"+scope.StorageKey(), cfg.Breaker),
		backoff: newPollBackoff(cfg.PollBase, cfg.PollMax, cfg.PollFactor, cfg.EmptyStreak),
		loading: true,
	}
}

// Start performs the initial catch-up from the stored cursor, then brings up
// the push transport (or the poller when push is unavailable). The initial
// fetch failing is not fatal: the active transport keeps retrying and the
// cursor is untouched.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed || s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	cursor, err := s.cfg.Cursors.Get(s.scope)
	if err != nil {
		log.Printf("cursor load failed for %s, starting cold: %v", s.scope.StorageKey(), err)
		cursor = ""
	}

	if err := s.catchUp(cursor); err != nil {
		s.noteError(err)
	}

	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()
	s.notify()

	if s.cfg.Dialer != nil && !breakerTripped(s.breaker) {
		go s.connectPush()
	} else {
		s.becomePoller(0)
	}
	return nil
}

// catchUp drains everything newer than the cursor. A full page means a burst
// is pending, so it refetches immediately instead of resuming any interval.
func (s *Session) catchUp(after string) error {
	for {
		s.mu.Lock()
		gen := s.gen
		s.mu.Unlock()

		res, err := s.cfg.Fetcher.Fetch(s.ctx, s.scope, after)
		if err != nil {
			return err
		}
		if s.stale(gen) {
			return nil
		}

		s.applyResult(res)
		if len(res.Messages) < s.cfg.PageLimit {
			return nil
		}
		after = s.state.last()
	}
}

// stale reports whether a result produced under gen must be discarded.
func (s *Session) stale(gen int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed || gen != s.gen
}

// applyResult routes a batch through the dedup/ordering layer and refreshes
// the scope metadata. Returns the newly applied messages.
func (s *Session) applyResult(res FetchResult) []models.Message {
	survivors := s.state.apply(res.Messages)

	s.mu.Lock()
	if res.Topic != nil || len(res.Mentors) > 0 {
		s.topic = res.Topic
		s.mentors = res.Mentors
	}
	s.lastErr = nil
	s.pollFailures = 0
	s.mu.Unlock()

	if len(survivors) > 0 {
		s.notify()
	}
	return survivors
}

func (s *Session) notify() {
	if s.cfg.OnUpdate != nil {
		s.cfg.OnUpdate()
	}
}

func (s *Session) noteError(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

// connectPush dials the push channel seeded at the current high-water mark.
// Dial failures count toward the breaker like any other transport error.
func (s *Session) connectPush() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	gen := s.gen
	s.transport = TransportPush
	s.mu.Unlock()

	ch, err := s.cfg.Dialer.Dial(s.ctx, s.scope, s.state.last())
	if err != nil {
		s.pushInterrupted(gen, err)
		return
	}

	s.mu.Lock()
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		ch.Close()
		return
	}
	s.push = ch
	s.mu.Unlock()

	go s.consumePush(gen, ch)
}

func (s *Session) consumePush(gen int, ch PushChannel) {
	for {
		select {
		case event, ok := <-ch.Events():
			if !ok {
				if s.stale(gen) {
					return
				}
				s.pushInterrupted(gen, errPushTransport)
				return
			}
			if s.stale(gen) {
				ch.Close()
				return
			}
			if event.Type == models.EventReconnect {
				// Rebalance hint: reconnect, but never count it as a failure.
				ch.Close()
				s.scheduleReconnect(gen)
				return
			}
			s.applyResult(FetchResult{Messages: event.Messages})
		case err := <-ch.Errors():
			ch.Close()
			if s.stale(gen) {
				return
			}
			s.pushInterrupted(gen, err)
			return
		}
	}
}

// pushInterrupted records the failure and either schedules a reconnect or,
// once the breaker trips, cedes control to the poller for the rest of the
// session.
func (s *Session) pushInterrupted(gen int, cause error) {
	if s.stale(gen) {
		return
	}

	s.mu.Lock()
	s.push = nil
	s.mu.Unlock()

	recordPushFailure(s.breaker, cause)
	if breakerTripped(s.breaker) {
		log.Printf("push disabled for %s after repeated failures, polling for the rest of the session", s.scope.StorageKey())
		s.becomePoller(0)
		return
	}
	s.scheduleReconnect(gen)
}

func (s *Session) scheduleReconnect(gen int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.gen {
		return
	}
	s.push = nil
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
	}
	s.reconnectTimer = scheduleNext(s.cfg.ReconnectDelay, s.connectPush)
}

// becomePoller hands delivery to the polling transport.
func (s *Session) becomePoller(delay time.Duration) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.transport = TransportPoll
	if s.pollTimer != nil {
		s.pollTimer.Stop()
	}
	s.pollTimer = scheduleNext(delay, s.pollOnce)
	s.mu.Unlock()
}

// pollOnce is the self-rescheduling poll tick.
func (s *Session) pollOnce() {
	s.mu.Lock()
	if s.closed || s.transport != TransportPoll {
		s.mu.Unlock()
		return
	}
	gen := s.gen
	s.mu.Unlock()

	res, err := s.cfg.Fetcher.Fetch(s.ctx, s.scope, s.state.last())
	if s.stale(gen) {
		return
	}
	if err != nil {
		// Cursor untouched; retry at the current interval.
		s.noteError(err)
		s.mu.Lock()
		s.pollFailures++
		s.mu.Unlock()
		s.becomePoller(s.backoff.interval())
		return
	}

	s.applyResult(res)
	if len(res.Messages) >= s.cfg.PageLimit {
		// Full page: a burst is pending, refetch before resuming the interval.
		s.becomePoller(0)
		return
	}
	s.becomePoller(s.backoff.next(len(res.Messages) > 0))
}

// MarkRead advances the durable cursor to the high-water mark. Kept separate
// from apply: "received" only becomes "read" when the caller says so.
func (s *Session) MarkRead() error {
	last := s.state.last()
	if last == "" {
		return nil
	}
	return s.cfg.Cursors.Set(s.scope, last)
}

// Close tears the session down in full: live push connection, pending
// timers, generation token. An in-flight fetch started before Close is
// discarded when it lands.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.gen++
	push := s.push
	s.push = nil
	if s.pollTimer != nil {
		s.pollTimer.Stop()
	}
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
	}
	cancel := s.cancel
	s.mu.Unlock()

	if push != nil {
		push.Close()
	}
	if cancel != nil {
		cancel()
	}
}

// Messages returns the visible, deduplicated, ordered message list.
func (s *Session) Messages() []models.Message {
	return s.state.snapshot()
}

// LastID returns the latest applied message id.
func (s *Session) LastID() string {
	return s.state.last()
}

// Loading reports whether the initial catch-up is still running.
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Transport reports the active transport.
func (s *Session) Transport() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transport
}

// Topic returns the scope's topic, if the server sent one.
func (s *Session) Topic() *string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.topic
}

// Mentors returns the scope's mentor list.
func (s *Session) Mentors() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.mentors...)
}

// Err surfaces the delivery error only when both transports are failing:
// either transport recovering clears it. Transient errors never reach the
// caller.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transport == TransportPoll && s.pollFailures >= 3 {
		return s.lastErr
	}
	return nil
}
