package progress

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Publish(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event{}, s.events...)
}

type blockingSink struct{ release chan struct{} }

func (s *blockingSink) Publish(Event) { <-s.release }

func TestHubDeliversToAllSinks(t *testing.T) {
	t.Parallel()
	a := &recordingSink{}
	b := &recordingSink{}
	hub := NewHub(nil, a, b)

	hub.Publish(Event{SessionID: "s1", Stage: StageSessionStart})
	hub.Publish(Event{SessionID: "s1", Stage: StagePairDone, Fraction: 0.5})
	hub.Close()

	for _, sink := range []*recordingSink{a, b} {
		events := sink.snapshot()
		require.Len(t, events, 2)
		require.Equal(t, StageSessionStart, events[0].Stage)
		require.Equal(t, StagePairDone, events[1].Stage)
		require.False(t, events[0].TS.IsZero())
	}
}

func TestHubNeverBlocksOnSlowSink(t *testing.T) {
	t.Parallel()
	slow := &blockingSink{release: make(chan struct{})}
	hub := NewHub(nil, slow)

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Overflow the buffer while the sink is stuck.
		for i := 0; i < sinkBuffer*3; i++ {
			hub.Publish(Event{SessionID: "s1", Stage: StagePairDone})
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publish blocked on a slow sink")
	}
	close(slow.release)
	hub.Close()
}

func TestPublishAfterCloseIsNoop(t *testing.T) {
	t.Parallel()
	sink := &recordingSink{}
	hub := NewHub(nil, sink)
	hub.Close()

	hub.Publish(Event{Stage: StageSessionDone})
	require.Empty(t, sink.snapshot())
}
