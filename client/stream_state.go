package client

import (
	"sync"

	"realtime-service/internal/models"
)

// seenLimit bounds the dedup set. A session that lives long enough to see
// more ids evicts the oldest ones; those are far behind the high-water mark
// and can no longer be redelivered by either transport.
const seenLimit = 4096

// streamState is the single point both transports' batches pass through.
// It owns the seen-id set, the visible ordered message list, and the
// monotonic high-water mark.
type streamState struct {
	mu       sync.Mutex
	seen     map[string]struct{}
	seenFIFO []string
	messages []models.Message
	lastID   string
}

func newStreamState() *streamState {
	return &streamState{seen: make(map[string]struct{})}
}

// apply filters the batch to unseen ids, in order, appends the survivors to
// the visible list and advances the high-water mark. Delivering the same
// message over push and poll therefore applies it exactly once.
func (s *streamState) apply(batch []models.Message) []models.Message {
	if len(batch) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var survivors []models.Message
	for _, msg := range batch {
		if _, dup := s.seen[msg.ID]; dup {
			continue
		}
		s.seen[msg.ID] = struct{}{}
		s.seenFIFO = append(s.seenFIFO, msg.ID)
		survivors = append(survivors, msg)
	}
	if len(survivors) == 0 {
		return nil
	}

	s.messages = append(s.messages, survivors...)
	if last := survivors[len(survivors)-1].ID; last > s.lastID {
		s.lastID = last
	}

	for len(s.seenFIFO) > seenLimit {
		delete(s.seen, s.seenFIFO[0])
		s.seenFIFO = s.seenFIFO[1:]
	}

	return survivors
}

// snapshot returns a copy of the visible list.
func (s *streamState) snapshot() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// last returns the high-water mark: the newest applied id.
func (s *streamState) last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastID
}
