// Package shared holds the building blocks used by every aggregate.
package shared

import "time"

// DomainEvent represents an event that has occurred in the domain
type DomainEvent interface {
	EventName() string
	OccurredAt() time.Time
}

// EventRecorder collects events raised by an aggregate until the
// application layer pulls them after a successful write.
type EventRecorder struct {
	pending []DomainEvent
}

// Record appends an event
func (r *EventRecorder) Record(event DomainEvent) {
	r.pending = append(r.pending, event)
}

// PullEvents returns the recorded events and resets the recorder
func (r *EventRecorder) PullEvents() []DomainEvent {
	events := r.pending
	r.pending = nil
	return events
}
