// Package events fans submission lifecycle events out to live subscribers.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/linskybing/club-intake/pkg/metrics"
	"go.uber.org/zap"
)

const (
	TypeCreated       = "created"
	TypeStatusChanged = "status_changed"
	TypeDeleted       = "deleted"
	TypeMessage       = "message"
)

type Event struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	SubmissionID string    `json:"submissionId"`
	Status       string    `json:"status,omitempty"`
	At           time.Time `json:"at"`
}

type Publisher interface {
	Publish(e Event)
}

// Subscription receives events until Close is called or the hub shuts down.
type Subscription struct {
	C    <-chan Event
	ch   chan Event
	hub  *Hub
	once sync.Once
}

func (s *Subscription) Close() {
	s.once.Do(func() { s.hub.remove(s) })
}

type Hub struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	buffer int
	closed bool
	log    *zap.SugaredLogger
}

func NewHub(buffer int, log *zap.SugaredLogger) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{subs: make(map[*Subscription]struct{}), buffer: buffer, log: log}
}

func (h *Hub) Subscribe() *Subscription {
	ch := make(chan Event, h.buffer)
	s := &Subscription{C: ch, ch: ch, hub: h}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return s
	}
	h.subs[s] = struct{}{}
	metrics.IncEventClients()
	return s
}

// Publish never blocks. A subscriber whose buffer is full misses the event.
func (h *Hub) Publish(e Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		select {
		case s.ch <- e:
		default:
			h.log.Warnw("event subscriber lagging, event dropped", "type", e.Type, "submissionId", e.SubmissionID)
		}
	}
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close ends every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for s := range h.subs {
		close(s.ch)
		delete(h.subs, s)
		metrics.DecEventClients()
	}
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; !ok {
		return
	}
	delete(h.subs, s)
	close(s.ch)
	metrics.DecEventClients()
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(Event) {}
