package notify

import (
	"context"
	"sync"

	"github.com/aussiebroadwan/admitgate/internal/auth/domain"
)

// Sent is one message captured by a Recorder.
type Sent struct {
	To      domain.Identity
	Message Message
}

// Recorder keeps every message in memory and optionally fails on demand.
// Used by tests and local tooling that need to read issued codes.
type Recorder struct {
	mu   sync.Mutex
	sent []Sent
	Err  error // returned from Send when set, after recording
}

func (r *Recorder) Send(_ context.Context, to domain.Identity, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sent = append(r.sent, Sent{To: to, Message: msg})
	return r.Err
}

// Last returns the most recent message sent to identity.
func (r *Recorder) Last(identity string) (Sent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.sent) - 1; i >= 0; i-- {
		if r.sent[i].To.Value == identity {
			return r.sent[i], true
		}
	}
	return Sent{}, false
}

// Count returns how many messages were sent.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}
