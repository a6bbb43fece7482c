package event

import (
	"sync"

	"go.uber.org/zap"
)

// EventHandler handles domain events
type EventHandler interface {
	// Handle processes the event
	Handle(event DomainEvent) error
	// HandledEvents returns the event names this handler handles
	HandledEvents() []string
}

// HandlerFunc adapts a function to EventHandler for the given event names
type HandlerFunc struct {
	Names []string
	Fn    func(event DomainEvent) error
}

// Handle calls Fn
func (h HandlerFunc) Handle(event DomainEvent) error {
	return h.Fn(event)
}

// HandledEvents returns Names, or every event when Names is empty
func (h HandlerFunc) HandledEvents() []string {
	if len(h.Names) == 0 {
		return []string{NameAll}
	}
	return h.Names
}

// Subscription identifies one registered handler
type Subscription struct {
	handler EventHandler
	names   map[string]struct{}
}

// Publisher is the publishing side of the event channel
type Publisher interface {
	Dispatch(event DomainEvent)
}

// EventDispatcher dispatches domain events to registered handlers
type EventDispatcher interface {
	Publisher
	// Subscribe registers a handler for events
	Subscribe(handler EventHandler) *Subscription
	// Unsubscribe removes a handler; unknown subscriptions are ignored
	Unsubscribe(sub *Subscription)
}

// Dispatcher delivers events synchronously, on the publishing goroutine,
// to every subscriber in subscription order. Events published from one
// goroutine therefore reach each subscriber in publish order. Late
// subscribers see only events published after Subscribe returns.
type Dispatcher struct {
	mu     sync.RWMutex
	subs   []*Subscription
	logger *zap.Logger
}

// Ensure Dispatcher implements EventDispatcher
var _ EventDispatcher = (*Dispatcher)(nil)

// NewDispatcher creates a new Dispatcher
func NewDispatcher(logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{logger: logger}
}

// Dispatch sends an event to all matching subscribers
func (d *Dispatcher) Dispatch(event DomainEvent) {
	d.mu.RLock()
	subs := make([]*Subscription, 0, len(d.subs))
	for _, s := range d.subs {
		if s.matches(event.EventName()) {
			subs = append(subs, s)
		}
	}
	d.mu.RUnlock()

	for _, s := range subs {
		if err := s.handler.Handle(event); err != nil {
			d.logger.Warn("event handler failed",
				zap.String("event", event.EventName()),
				zap.Error(err))
		}
	}
}

// DispatchAll dispatches multiple events in order
func (d *Dispatcher) DispatchAll(events []DomainEvent) {
	for _, event := range events {
		d.Dispatch(event)
	}
}

// Subscribe registers a handler for events
func (d *Dispatcher) Subscribe(handler EventHandler) *Subscription {
	s := &Subscription{handler: handler, names: make(map[string]struct{})}
	for _, name := range handler.HandledEvents() {
		s.names[name] = struct{}{}
	}

	d.mu.Lock()
	d.subs = append(d.subs, s)
	d.mu.Unlock()
	return s
}

// Unsubscribe removes a handler
func (d *Dispatcher) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, s := range d.subs {
		if s == sub {
			d.subs = append(d.subs[:i:i], d.subs[i+1:]...)
			return
		}
	}
}

// Len returns the number of current subscribers
func (d *Dispatcher) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subs)
}

func (s *Subscription) matches(name string) bool {
	if _, ok := s.names[NameAll]; ok {
		return true
	}
	_, ok := s.names[name]
	return ok
}

// NullDispatcher is a no-op dispatcher for when events are not needed
type NullDispatcher struct{}

// NewNullDispatcher creates a new NullDispatcher
func NewNullDispatcher() *NullDispatcher {
	return &NullDispatcher{}
}

// Dispatch does nothing
func (d *NullDispatcher) Dispatch(event DomainEvent) {}

// Subscribe does nothing
func (d *NullDispatcher) Subscribe(handler EventHandler) *Subscription {
	return &Subscription{handler: handler}
}

// Unsubscribe does nothing
func (d *NullDispatcher) Unsubscribe(sub *Subscription) {}
