// Package progress fans crawl lifecycle events out to interested sinks
// without ever blocking the crawl itself.
package progress

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Stages emitted over a session's lifetime.
const (
	StageSessionStart = "SESSION_START"
	StagePairDone     = "PAIR_DONE"
	StageSessionDone  = "SESSION_DONE"
	StageSessionError = "SESSION_ERROR"
)

// Event is one progress observation from a running crawl.
type Event struct {
	SessionID string    `json:"session_id"`
	TS        time.Time `json:"ts"`
	Stage     string    `json:"stage"`
	Term      string    `json:"term,omitempty"`
	Region    string    `json:"region,omitempty"`
	Fraction  float64   `json:"fraction"`
	Channels  int       `json:"channels"`
	QuotaUsed int       `json:"quota_used"`
	Note      string    `json:"note,omitempty"`
}

// Sink consumes progress events. Implementations must not block.
type Sink interface {
	Publish(Event)
}

// Hub buffers events per sink and drops on overflow so a slow sink can
// never stall the crawl loop.
type Hub struct {
	logger *zap.Logger

	mu     sync.Mutex
	sinks  []chan Event
	closed bool
	wg     sync.WaitGroup
}

const sinkBuffer = 64

// NewHub constructs a Hub delivering to the given sinks.
func NewHub(logger *zap.Logger, sinks ...Sink) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{logger: logger}
	for _, sink := range sinks {
		ch := make(chan Event, sinkBuffer)
		h.sinks = append(h.sinks, ch)
		h.wg.Add(1)
		go func(sink Sink, ch chan Event) {
			defer h.wg.Done()
			for event := range ch {
				sink.Publish(event)
			}
		}(sink, ch)
	}
	return h
}

// Publish delivers the event to every sink, dropping for sinks whose buffer
// is full.
func (h *Hub) Publish(event Event) {
	if event.TS.IsZero() {
		event.TS = time.Now().UTC()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for _, ch := range h.sinks {
		select {
		case ch <- event:
		default:
			h.logger.Warn("progress event dropped",
				zap.String("stage", event.Stage),
				zap.String("session_id", event.SessionID),
			)
		}
	}
}

// Close stops delivery and waits for in-flight events to drain.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	for _, ch := range h.sinks {
		close(ch)
	}
	h.mu.Unlock()
	h.wg.Wait()
}
