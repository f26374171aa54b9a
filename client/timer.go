package client

import "time"

// timerHandle is the cancellation handle of a scheduled task. Teardown of a
// delivery session is a single Stop per pending timer, with no reliance on a
// component-lifecycle framework.
type timerHandle struct {
	t *time.Timer
}

// Stop cancels the pending task if it has not fired yet.
func (h *timerHandle) Stop() {
	if h != nil && h.t != nil {
		h.t.Stop()
	}
}

// scheduleNext runs fn once after d and returns its cancellation handle.
func scheduleNext(d time.Duration, fn func()) *timerHandle {
	return &timerHandle{t: time.AfterFunc(d, fn)}
}
