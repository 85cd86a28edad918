// Package events defines the notifications trackers, tools and controllers emit. Every request
// made to one of those state machines produces exactly one terminal event.
package events

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"go.igtrack.org/tracking/logging"
)

// Kind names an event.
type Kind int

// Event kinds.
const (
	InvalidRequest Kind = iota

	InitializeSuccess
	InitializeFailure
	StartSuccess
	StartFailure
	StopSuccess
	StopFailure
	ShutdownSuccess
	ShutdownFailure

	OpenSuccess
	OpenFailure
	CloseSuccess
	CloseFailure
	UpdateStatusSuccess
	UpdateStatusFailure
	ToolAttachSuccess
	ToolAttachFailure
	ToolDetachSuccess
	ToolDetachFailure
	ToolConfigurationSuccess
	ToolConfigurationFailure
	ReferenceToolSet
	ReferenceToolFailure
	FrequencySet
	FrequencyFailure

	ToolAvailable
	ToolNotAvailable
)

var kindNames = map[Kind]string{
	InvalidRequest:           "InvalidRequest",
	InitializeSuccess:        "InitializeSuccess",
	InitializeFailure:        "InitializeFailure",
	StartSuccess:             "StartSuccess",
	StartFailure:             "StartFailure",
	StopSuccess:              "StopSuccess",
	StopFailure:              "StopFailure",
	ShutdownSuccess:          "ShutdownSuccess",
	ShutdownFailure:          "ShutdownFailure",
	OpenSuccess:              "OpenSuccess",
	OpenFailure:              "OpenFailure",
	CloseSuccess:             "CloseSuccess",
	CloseFailure:             "CloseFailure",
	UpdateStatusSuccess:      "UpdateStatusSuccess",
	UpdateStatusFailure:      "UpdateStatusFailure",
	ToolAttachSuccess:        "ToolAttachSuccess",
	ToolAttachFailure:        "ToolAttachFailure",
	ToolDetachSuccess:        "ToolDetachSuccess",
	ToolDetachFailure:        "ToolDetachFailure",
	ToolConfigurationSuccess: "ToolConfigurationSuccess",
	ToolConfigurationFailure: "ToolConfigurationFailure",
	ReferenceToolSet:         "ReferenceToolSet",
	ReferenceToolFailure:     "ReferenceToolFailure",
	FrequencySet:             "FrequencySet",
	FrequencyFailure:         "FrequencyFailure",
	ToolAvailable:            "ToolAvailable",
	ToolNotAvailable:         "ToolNotAvailable",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IsFailure reports whether k reports a failed request. InvalidRequest is not a failure.
func (k Kind) IsFailure() bool {
	switch k {
	case InitializeFailure, StartFailure, StopFailure, ShutdownFailure, OpenFailure, CloseFailure,
		UpdateStatusFailure, ToolAttachFailure, ToolDetachFailure, ToolConfigurationFailure,
		ReferenceToolFailure, FrequencyFailure:
		return true
	default:
		return false
	}
}

// Event is a single notification.
type Event struct {
	ID uuid.UUID
	// RequestID ties the event to the request that caused it. Availability events raised by a
	// polling tick carry the tick's request ID.
	RequestID uuid.UUID
	Kind      Kind
	// Source is the name of the emitting tracker, tool or controller.
	Source  string
	Message string
	ToolID  string
	Time    time.Time
}

// New returns an event with a fresh ID.
func New(requestID uuid.UUID, kind Kind, source, message string, now time.Time) Event {
	return Event{ID: uuid.New(), RequestID: requestID, Kind: kind, Source: source, Message: message, Time: now}
}

func (e Event) String() string {
	s := e.Source + ": " + e.Kind.String()
	if e.ToolID != "" {
		s += " [" + e.ToolID + "]"
	}
	if e.Message != "" {
		s += ": " + e.Message
	}
	return s
}

// Sink receives events. Emit must not call back into the emitter.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// Emit calls f.
func (f SinkFunc) Emit(e Event) {
	f(e)
}

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

type tee []Sink

func (t tee) Emit(e Event) {
	for _, s := range t {
		s.Emit(e)
	}
}

// Tee fans every event out to sinks in order. Nil sinks are skipped.
func Tee(sinks ...Sink) Sink {
	var out tee
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// Filter forwards the events for which keep returns true.
func Filter(sink Sink, keep func(Event) bool) Sink {
	return SinkFunc(func(e Event) {
		if keep(e) {
			sink.Emit(e)
		}
	})
}

// OfKind returns a Filter predicate matching any of kinds.
func OfKind(kinds ...Kind) func(Event) bool {
	set := make(map[Kind]struct{}, len(kinds))
	for _, k := range kinds {
		set[k] = struct{}{}
	}
	return func(e Event) bool {
		_, ok := set[e.Kind]
		return ok
	}
}

// LogSink logs failures at warn and everything else at debug.
func LogSink(logger logging.Logger) Sink {
	return SinkFunc(func(e Event) {
		kv := []interface{}{"kind", e.Kind, "source", e.Source, "request", e.RequestID}
		if e.ToolID != "" {
			kv = append(kv, "tool", e.ToolID)
		}
		if e.Message != "" {
			kv = append(kv, "message", e.Message)
		}
		if e.Kind.IsFailure() {
			logger.Warnw("event", kv...)
			return
		}
		logger.Debugw("event", kv...)
	})
}

// Recorder keeps every event it receives. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit records e.
func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Kinds returns the kinds of the recorded events in order.
func (r *Recorder) Kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]Kind, 0, len(r.events))
	for _, e := range r.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

// Count returns how many events of kind were recorded.
func (r *Recorder) Count(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// Last returns the most recent event.
func (r *Recorder) Last() (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return Event{}, false
	}
	return r.events[len(r.events)-1], true
}

// Reset forgets every recorded event.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
