package form

import (
	"sync"

	"github.com/conneroisu/contactform/internal/errors"
)

// EventType identifies what changed in a State.
type EventType string

const (
	EventFieldChanged   EventType = "field_changed"
	EventErrorsChanged  EventType = "errors_changed"
	EventStatusChanged  EventType = "status_changed"
	EventSendingChanged EventType = "sending_changed"
	EventReset          EventType = "reset"
)

// Event describes a single mutation. Snapshot is the state right after it.
type Event struct {
	Type     EventType
	Field    Field
	Snapshot Snapshot
}

// Listener receives change notifications.
type Listener func(Event)

// State is the form state holder.
//
// Listeners are called synchronously after the lock is released, in the
// order they subscribed, so a listener may call back into the State.
type State struct {
	mu      sync.RWMutex
	data    Data
	errors  ErrorMap
	status  Status
	sending bool

	listenersMu sync.RWMutex
	listeners   []*subscription
}

type subscription struct {
	fn Listener
}

// New returns an empty form: blank fields, no errors, idle status.
func New() *State {
	return &State{errors: make(ErrorMap)}
}

// NewWithData returns a form pre-filled with d.
func NewWithData(d Data) *State {
	s := New()
	s.data = d
	return s
}

// Values returns the current field values.
func (s *State) Values() Data {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

// Errors returns a copy of the current error map.
func (s *State) Errors() ErrorMap {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errors.Clone()
}

// Status returns the current status text.
func (s *State) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Sending reports whether a submission is waiting for its response.
func (s *State) Sending() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sending
}

// Snapshot returns data, errors, status and the sending flag read under one lock.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *State) snapshotLocked() Snapshot {
	return Snapshot{
		Data:    s.data,
		Errors:  s.errors.Clone(),
		Status:  s.status,
		Sending: s.sending,
	}
}

// Set replaces one field's value. If that field currently has an error, only
// that entry is cleared; other entries are untouched.
func (s *State) Set(field Field, value string) error {
	if !field.Valid() {
		return errors.NewValidationError(errors.ErrCodeUnknownField, "unknown field: "+string(field)).
			WithContext("field", string(field))
	}

	s.mu.Lock()
	s.data = s.data.With(field, value)
	clearedError := false
	if s.errors[field] != "" {
		delete(s.errors, field)
		clearedError = true
	}
	fieldEvent := Event{Type: EventFieldChanged, Field: field, Snapshot: s.snapshotLocked()}
	s.mu.Unlock()

	s.notify(fieldEvent)
	if clearedError {
		s.notify(Event{Type: EventErrorsChanged, Field: field, Snapshot: fieldEvent.Snapshot})
	}

	return nil
}

// SetErrors replaces the whole error map.
func (s *State) SetErrors(m ErrorMap) {
	s.mu.Lock()
	s.errors = make(ErrorMap, len(m))
	for k, v := range m {
		if v != "" {
			s.errors[k] = v
		}
	}
	ev := Event{Type: EventErrorsChanged, Snapshot: s.snapshotLocked()}
	s.mu.Unlock()

	s.notify(ev)
}

// SetStatus replaces the status text.
func (s *State) SetStatus(status Status) {
	s.mu.Lock()
	s.status = status
	ev := Event{Type: EventStatusChanged, Snapshot: s.snapshotLocked()}
	s.mu.Unlock()

	s.notify(ev)
}

// SetSending updates the sending flag.
func (s *State) SetSending(sending bool) {
	s.mu.Lock()
	s.sending = sending
	ev := Event{Type: EventSendingChanged, Snapshot: s.snapshotLocked()}
	s.mu.Unlock()

	s.notify(ev)
}

// Reset blanks every field. Errors, status and the sending flag are left as
// they are.
func (s *State) Reset() {
	s.mu.Lock()
	s.data = Data{}
	ev := Event{Type: EventReset, Snapshot: s.snapshotLocked()}
	s.mu.Unlock()

	s.notify(ev)
}

// Subscribe registers fn for every subsequent change. The returned function
// removes the subscription; calling it more than once is harmless.
func (s *State) Subscribe(fn Listener) (unsubscribe func()) {
	sub := &subscription{fn: fn}

	s.listenersMu.Lock()
	s.listeners = append(s.listeners, sub)
	s.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.listenersMu.Lock()
			defer s.listenersMu.Unlock()
			for i, l := range s.listeners {
				if l == sub {
					s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *State) notify(ev Event) {
	s.listenersMu.RLock()
	listeners := make([]*subscription, len(s.listeners))
	copy(listeners, s.listeners)
	s.listenersMu.RUnlock()

	for _, l := range listeners {
		l.fn(ev)
	}
}
