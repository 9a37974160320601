package queue

import (
	"sync"
	"time"

	"github.com/codebuildervaibhav/audio-captions/internal/types"
)

// EventType classifies messages emitted while a run executes
type EventType string

const (
	EventTypeStatus   EventType = "status"
	EventTypeProgress EventType = "progress"
	EventTypeResult   EventType = "result"
	EventTypeError    EventType = "error"
)

// Event is a sequenced run update consumed by stream subscribers
type Event struct {
	Seq       int64                `json:"seq"`
	Timestamp time.Time            `json:"timestamp"`
	RunID     string               `json:"run_id"`
	Type      EventType            `json:"type"`
	Status    string               `json:"status,omitempty"`
	Stage     string               `json:"stage,omitempty"`
	Job       *types.Job           `json:"job,omitempty"`
	Polls     int                  `json:"polls,omitempty"`
	ElapsedMs int64                `json:"elapsed_ms,omitempty"`
	ErrorKind types.ErrorKind      `json:"error_kind,omitempty"`
	Retryable bool                 `json:"retryable,omitempty"`
	Message   string               `json:"message,omitempty"`
	Tracks    []types.CaptionTrack `json:"tracks,omitempty"`
}

// Final reports whether no further events follow for the run
func (e Event) Final() bool {
	return e.Type == EventTypeResult || e.Type == EventTypeError
}

// EventBus stores recent events and provides incremental reads
type EventBus struct {
	mu        sync.RWMutex
	nextSeq   int64
	maxEvents int
	events    []Event
}

// NewEventBus creates a bounded in-memory event buffer
func NewEventBus(maxEvents int) *EventBus {
	if maxEvents <= 0 {
		maxEvents = 500
	}

	return &EventBus{
		maxEvents: maxEvents,
		events:    make([]Event, 0, maxEvents),
	}
}

// Publish appends one event and assigns sequence and timestamp
func (b *EventBus) Publish(event Event) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	event.Seq = b.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.events = append(b.events, event)
	if len(b.events) > b.maxEvents {
		trim := len(b.events) - b.maxEvents
		b.events = append([]Event(nil), b.events[trim:]...)
	}

	return event
}

// Since returns events of runID with sequence strictly greater than seq.
// An empty runID matches every run.
func (b *EventBus) Since(runID string, seq int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []Event
	for _, event := range b.events {
		if event.Seq > seq && (runID == "" || event.RunID == runID) {
			out = append(out, event)
		}
	}
	return out
}
