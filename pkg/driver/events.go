package driver

import (
	"time"

	"moduletsx/pkg/modules"
)

// Event types emitted by a Session
const (
	EventImport         = "import"
	EventImportError    = "import:error"
	EventTransform      = "transform"
	EventTransformError = "transform:error"
	EventAll            = "*" // Receives every event
)

// Event is delivered to listeners. Listeners registered for EventAll see the
// original Type.
type Event struct {
	Type    string
	Payload any
}

// ImportPayload accompanies import and import:error events
type ImportPayload struct {
	ID      string // Identifier as requested
	BaseURL string
	Err     error
}

// TransformPayload accompanies transform and transform:error events
type TransformPayload struct {
	Kind      modules.ResourceKind
	SourceURL string
	UnitID    string
	Duration  time.Duration
	Err       error
}

// On registers fn for events of the given type and returns a function that
// removes the registration
func (s *Session) On(eventType string, fn func(Event)) func() {
	s.listenerMutex.Lock()
	defer s.listenerMutex.Unlock()

	id := s.nextListener
	s.nextListener++
	if s.listeners[eventType] == nil {
		s.listeners[eventType] = make(map[int]func(Event))
	}
	s.listeners[eventType][id] = fn

	return func() {
		s.listenerMutex.Lock()
		defer s.listenerMutex.Unlock()
		delete(s.listeners[eventType], id)
	}
}

func (s *Session) emit(eventType string, payload any) {
	ev := Event{Type: eventType, Payload: payload}

	s.listenerMutex.RLock()
	var fns []func(Event)
	for _, fn := range s.listeners[eventType] {
		fns = append(fns, fn)
	}
	for _, fn := range s.listeners[EventAll] {
		fns = append(fns, fn)
	}
	s.listenerMutex.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (s *Session) forwardTransform(ev modules.TransformEvent) {
	payload := TransformPayload{
		Kind:      ev.Kind,
		SourceURL: ev.SourceURL,
		UnitID:    ev.ID,
		Duration:  ev.Duration,
		Err:       ev.Err,
	}
	if ev.Err != nil {
		s.emit(EventTransformError, payload)
		return
	}
	s.emit(EventTransform, payload)
}
