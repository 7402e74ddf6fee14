package asynchook

import (
	"errors"
	"sync"
	"testing"

	"github.com/unkn0wn-root/entrycache"
)

type recorder struct {
	mu     sync.Mutex
	events []string
	block  chan struct{}
}

func (r *recorder) add(s string) {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	r.events = append(r.events, s)
	r.mu.Unlock()
}

func (r *recorder) EntryExpired(id, reason string)          { r.add("expired:" + id + ":" + reason) }
func (r *recorder) BackendFailure(op, id string, err error) { r.add("failure:" + op + ":" + id) }
func (r *recorder) ComputeOnMiss(id string)                 { r.add("compute:" + id) }

var _ entrycache.Hooks = (*recorder)(nil)

func TestDeliversAllEventsBeforeClose(t *testing.T) {
	rec := &recorder{}
	h := New(rec, 2, 16)
	h.EntryExpired("a", "ttl")
	h.BackendFailure("read", "b", errors.New("x"))
	h.ComputeOnMiss("c")
	h.Close()

	if len(rec.events) != 3 {
		t.Fatalf("expected 3 events, got %v", rec.events)
	}
	if h.Dropped() != 0 {
		t.Fatalf("unexpected drops: %d", h.Dropped())
	}
}

func TestDropsWhenFullAndAfterClose(t *testing.T) {
	rec := &recorder{block: make(chan struct{})}
	h := New(rec, 1, 1)

	// worker blocks on the first event; one more fits the queue; the rest drop
	for i := 0; i < 10; i++ {
		h.ComputeOnMiss("k")
	}
	close(rec.block)
	h.Close()
	if h.Dropped() == 0 {
		t.Fatalf("expected drops with a full queue")
	}

	before := h.Dropped()
	h.ComputeOnMiss("late")
	if h.Dropped() != before+1 {
		t.Fatalf("events after Close must be dropped")
	}
}
