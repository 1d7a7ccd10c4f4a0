// Package events defines the notifications the indexing engine publishes.
// The engine receives a Sink by injection; hosting layers subscribe by
// providing one.
package events

import "time"

// Kind identifies what happened.
type Kind string

const (
	Created      Kind = "created"
	Updated      Kind = "updated"
	Deleted      Kind = "deleted"
	Renamed      Kind = "renamed"
	IndexRebuilt Kind = "index.rebuilt"
)

// Event is one engine notification.
type Event struct {
	Kind    Kind      `json:"kind"`
	Path    string    `json:"path,omitempty"`
	OldPath string    `json:"old_path,omitempty"`
	At      time.Time `json:"at"`
}

// Sink receives events. Implementations must not block for long.
type Sink interface {
	Publish(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// Publish implements Sink.
func (f SinkFunc) Publish(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// Multi fans an event out to several sinks in order.
type Multi []Sink

// Publish implements Sink.
func (m Multi) Publish(e Event) {
	for _, s := range m {
		s.Publish(e)
	}
}
