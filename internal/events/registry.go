package events

import "sync"

// Handler reacts to one event. A non-nil return value is collected by
// Fire; its meaning depends on the event (TaskCreated handlers return
// replacement task slices).
type Handler func(Event) any

// Registry dispatches events to handlers registered per event type.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

// NewRegistry creates an empty hook registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string][]Handler)}
}

// Register adds a handler for the event type.
func (r *Registry) Register(eventType string, h Handler) {
	r.mu.Lock()
	r.handlers[eventType] = append(r.handlers[eventType], h)
	r.mu.Unlock()
}

// Fire calls every handler registered for the event's type, in
// registration order, and collects their non-nil results.
func (r *Registry) Fire(e Event) []any {
	r.mu.RLock()
	hs := make([]Handler, len(r.handlers[e.EventType()]))
	copy(hs, r.handlers[e.EventType()])
	r.mu.RUnlock()

	var results []any
	for _, h := range hs {
		if out := h(e); out != nil {
			results = append(results, out)
		}
	}
	return results
}
