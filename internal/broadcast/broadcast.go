// Package broadcast fans task lifecycle events out to connected clients.
//
// Emission is best-effort: an Emitter never blocks its caller and never
// reports failure. Clients that miss an event recover by listing tasks again.
package broadcast

import "log"

const (
	EventTaskCreate = "task:create"
	EventTaskUpdate = "task:update"
	EventTaskDelete = "task:delete"
)

// Event is one message delivered to stream clients.
type Event struct {
	Name    string
	Payload any
}

// Emitter publishes an event to every currently connected client.
type Emitter interface {
	Emit(event string, payload any)
}

type multi []Emitter

// Multi returns an Emitter that forwards each event to all non-nil emitters.
func Multi(emitters ...Emitter) Emitter {
	m := make(multi, 0, len(emitters))
	for _, e := range emitters {
		if e != nil {
			m = append(m, e)
		}
	}
	return m
}

func (m multi) Emit(event string, payload any) {
	for _, e := range m {
		e.Emit(event, payload)
	}
}

// Nop discards every event.
type Nop struct{}

func (Nop) Emit(string, any) {}

// Safe wraps e so a panicking emitter cannot fail the request that triggered it.
func Safe(e Emitter) Emitter {
	return safe{e}
}

type safe struct{ next Emitter }

func (s safe) Emit(event string, payload any) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("broadcast: emit %s failed: %v", event, r)
		}
	}()
	s.next.Emit(event, payload)
}
