package events

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/lookout/pkg/metrics"
	"github.com/cuemby/lookout/pkg/types"
)

// EventType represents the type of event
type EventType string

const (
	EventSessionStarting EventType = "session.starting"
	EventSessionRunning  EventType = "session.running"
	EventSessionStopped  EventType = "session.stopped"
	EventSessionFailed   EventType = "session.failed"
	EventUnexpectedStop  EventType = "alert.unexpected_stop"
	EventHeartbeatStale  EventType = "alert.heartbeat_stale"
	EventCommandFailed   EventType = "command.failed"
)

// IsAlert reports whether the event type is a user-facing alert
func (t EventType) IsAlert() bool {
	return strings.HasPrefix(string(t), "alert.")
}

// StateEvent returns the event type announcing a transition into state
func StateEvent(state types.SessionState) EventType {
	switch state {
	case types.SessionStateStarting:
		return EventSessionStarting
	case types.SessionStateRunning:
		return EventSessionRunning
	case types.SessionStateFailed:
		return EventSessionFailed
	default:
		return EventSessionStopped
	}
}

// Event represents a supervisor event
type Event struct {
	ID        string             `json:"id"`
	Type      EventType          `json:"type"`
	Timestamp time.Time          `json:"timestamp"`
	Message   string             `json:"message,omitempty"`
	SessionID string             `json:"session_id,omitempty"`
	State     types.SessionState `json:"state,omitempty"`
	Metadata  map[string]string  `json:"metadata,omitempty"`
}

// Sink receives events. Implementations must not block.
type Sink interface {
	Publish(event *Event)
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(event *Event)

// Publish calls f(event)
func (f SinkFunc) Publish(event *Event) {
	f(event)
}

// Discard is a Sink that drops every event
var Discard Sink = SinkFunc(func(*Event) {})

// Subscriber is a channel that receives events
type Subscriber chan *Event

// Broker manages event subscriptions and distribution
type Broker struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}
	stopOnce    sync.Once
	done        chan struct{}
}

// NewBroker creates a new event broker
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan *Event, 100), // Buffer up to 100 events
		stopCh:      make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Start begins the broker's event distribution loop
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker and waits for the distribution loop to exit.
// It is safe to call more than once.
func (b *Broker) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopCh)
	})
	<-b.done
}

// Subscribe creates a new subscription and returns a channel
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 50) // Buffer per subscriber
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscription
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[sub]; !ok {
		return
	}
	delete(b.subscribers, sub)
	close(sub)
}

// Publish queues an event for all subscribers. It never blocks: when the
// queue is full or the broker is stopped the event is dropped.
func (b *Broker) Publish(event *Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case <-b.stopCh:
		return
	default:
	}

	select {
	case b.eventCh <- event:
	default:
		metrics.EventsDroppedTotal.Inc()
	}
}

func (b *Broker) run() {
	defer close(b.done)
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber buffer full, skip
			metrics.EventsDroppedTotal.Inc()
		}
	}
}

// SubscriberCount returns the number of active subscribers
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
