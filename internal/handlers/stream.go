package handlers

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/codebuildervaibhav/audio-captions/internal/queue"
	"github.com/codebuildervaibhav/audio-captions/internal/types"
)

// StreamHandler pushes run events to WebSocket clients
type StreamHandler struct {
	events   *queue.EventBus
	runs     RunReader
	interval time.Duration
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(events *queue.EventBus, runs RunReader) *StreamHandler {
	return &StreamHandler{
		events:   events,
		runs:     runs,
		interval: 250 * time.Millisecond,
	}
}

// Handle streams the events of the run named in the URL until it finishes
func (h *StreamHandler) Handle(c *websocket.Conn) {
	defer c.Close()
	runID := c.Params("id")
	log.Printf("WebSocket stream opened for run %s", runID)

	// A closed client ends the stream
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var seq int64
	for {
		events := h.events.Since(runID, seq)
		for _, e := range events {
			if err := c.WriteJSON(e); err != nil {
				log.Printf("WebSocket write error for run %s: %v", runID, err)
				return
			}
			seq = e.Seq
			if e.Final() {
				return
			}
		}

		// Events of older runs may have left the buffer; fall back to the record
		if len(events) == 0 && seq == 0 {
			if e, ok := h.finishedRecord(runID); ok {
				c.WriteJSON(e)
				return
			}
		}

		select {
		case <-closed:
			return
		case <-ticker.C:
		}
	}
}

// finishedRecord builds a final event from the persisted record of a finished run
func (h *StreamHandler) finishedRecord(runID string) (queue.Event, bool) {
	if h.runs == nil {
		return queue.Event{}, false
	}
	run, err := h.runs.GetRun(context.Background(), runID)
	if err != nil {
		return queue.Event{}, false
	}

	switch run.Status {
	case types.StatusCompleted:
		return queue.Event{RunID: runID, Type: queue.EventTypeResult, Status: run.Status, Timestamp: run.UpdatedAt}, true
	case types.StatusFailed:
		return queue.Event{
			RunID:     runID,
			Type:      queue.EventTypeError,
			Status:    run.Status,
			ErrorKind: run.ErrorKind,
			Retryable: run.Retryable,
			Message:   run.Error,
			Timestamp: run.UpdatedAt,
		}, true
	}
	return queue.Event{}, false
}
