package peer

import "github.com/go-torrent/wire/wire"

// EventType distinguishes the three kinds of session events, spec §4.6.2/
// §4.6.4.
type EventType uint8

const (
	// ReceiveEvent fires once per message read off the wire, after the
	// remote-state mutation for that message has been committed.
	ReceiveEvent EventType = iota
	// SendEvent fires once per message written to the wire, after the
	// local-state mutation for that message has been committed.
	SendEvent
	// CloseEvent fires exactly once, the first time the session closes.
	CloseEvent
)

// Event is delivered to every registered Listener for a session, in the
// ordering spec §4.6.2 guarantees: receive events strictly in wire order,
// send events strictly in enqueue order, the two interleaved freely.
type Event struct {
	Type    EventType
	Message wire.Message // zero value for CloseEvent
}

// Listener observes session events. OnSessionEvent is invoked on the
// session's event executor, one listener and one event at a time, so
// implementations do not need their own synchronisation to stay consistent
// with the session's state mirrors.
type Listener interface {
	OnSessionEvent(s *Session, e Event)
}

// ListenerFunc adapts a plain function to the Listener interface. Because
// Go function values are not comparable, a ListenerFunc registered with
// AddListener cannot later be located by RemoveListener (the comparison
// would panic) — use a pointer-typed Listener when removal is needed.
type ListenerFunc func(s *Session, e Event)

// OnSessionEvent implements Listener.
func (f ListenerFunc) OnSessionEvent(s *Session, e Event) { f(s, e) }
