package runlog

import (
	"sync"
	"time"

	"github.com/amishk599/jobsync/internal/model"
)

// EventType names the events streamed to run observers.
type EventType string

const (
	EventLog         EventType = "log"
	EventSyncStarted EventType = "sync_started"
	EventReport      EventType = "report"
	EventComplete    EventType = "complete"
	EventError       EventType = "error"
)

// Event is one structured update about a run.
type Event struct {
	Type     EventType       `json:"type"`
	RunID    string          `json:"runId,omitempty"`
	SyncType string          `json:"syncType,omitempty"`
	Source   string          `json:"source,omitempty"`
	Level    model.LogLevel  `json:"level,omitempty"`
	Message  string          `json:"message,omitempty"`
	Time     time.Time       `json:"timestamp"`
	Stats    *model.RunStats `json:"stats,omitempty"`
}

// Terminal reports whether e ends a run's event stream.
func (e Event) Terminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}

// Sink receives run events. Implementations must not block for long.
type Sink interface {
	Emit(Event)
}

// NopSink drops every event.
type NopSink struct{}

func (NopSink) Emit(Event) {}

// MultiSink fans an event out to several sinks in order.
type MultiSink []Sink

func (m MultiSink) Emit(e Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(e)
		}
	}
}

// ChanSink delivers events over a channel to one consumer, such as a
// streaming HTTP response or a terminal view. Emit blocks until the consumer
// reads the event or calls Stop.
type ChanSink struct {
	ch       chan Event
	done     chan struct{}
	stopOnce sync.Once
	mu       sync.Mutex
	closed   bool
}

// NewChanSink creates a sink with the given buffer.
func NewChanSink(buffer int) *ChanSink {
	return &ChanSink{
		ch:   make(chan Event, buffer),
		done: make(chan struct{}),
	}
}

// Events is the receive side for the consumer. It is closed by Close.
func (s *ChanSink) Events() <-chan Event {
	return s.ch
}

func (s *ChanSink) Emit(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- e:
	case <-s.done:
	}
}

// Stop tells the producer the consumer has gone; later events are dropped.
func (s *ChanSink) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

// Close ends the stream. Called by the producer once the run is finished.
func (s *ChanSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}
