package peer

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/go-torrent/wire/internal/xlog"
	"github.com/go-torrent/wire/wire"
)

var sessionLog = xlog.For("peer.session")

// ErrQueueFull is returned by SendMessage when the output FIFO's buffer
// (standing in for spec's "unbounded" queue) is momentarily saturated.
var ErrQueueFull = errors.New("peer: send queue full")

// sendWaitInterval is the "1-minute wait" spec §4.6.2 gives the send
// worker's queue poll — it exists only so a session that is closed while
// idle wakes up promptly via the closed check rather than depending
// exclusively on the sentinel, a bounded poll standing in for an
// indefinite blocking read.
const sendWaitInterval = time.Minute

// outboxItem is either a real outgoing message or the close sentinel that
// wakes the send worker per spec §4.6.3/§4.6.4.
type outboxItem struct {
	msg      wire.Message
	sentinel bool
}

// HandshakeInfo is the local side's identity, supplied at session
// construction so the send worker can perform the local handshake
// (spec §4.6.1) as its first action.
type HandshakeInfo struct {
	Protocol string
	Reserved [8]byte
	InfoHash [20]byte
	PeerID   [20]byte
}

// Session wraps one Conn and provides the core protocol state machine and
// execution model of spec §4.6: two per-direction worker goroutines, a
// local/remote PeerState mirror pair, a copy-on-write listener set, and an
// output FIFO with a close sentinel.
//
// Where a single goroutine with one select loop would otherwise interleave
// transport, state and download policy, this type decomposes that into the
// receive/send worker split spec's DESIGN NOTES ask for: recvLoop's shape
// comes from a plain read-frame-then-dispatch loop, and applyMessage's
// state-mutation table comes from generalizing a per-message-type switch
// that used to also drive download policy.
type Session struct {
	conn *Conn

	numPieces int
	local     HandshakeInfo

	stateMu     sync.RWMutex
	localState  PeerState
	remoteState PeerState

	listeners atomic.Pointer[[]Listener]

	out chan outboxItem

	executor     Executor
	ownsExecutor bool

	closeOnce sync.Once
	closed    atomic.Bool
	closeErr  error

	wg sync.WaitGroup
}

// NewSession builds a session over conn, using local as this side's
// handshake identity and numPieces (which MUST be > 0) as the size of the
// claimed-pieces bitsets. executor is the event executor to submit
// listener callbacks to; pass nil to have the session create and own a
// private one (torn down on Close, per spec §4.7's ownership rule).
func NewSession(conn *Conn, local HandshakeInfo, numPieces int, executor Executor) (*Session, error) {
	if numPieces <= 0 {
		return nil, errors.New("peer: NewSession requires numPieces > 0")
	}

	s := &Session{
		conn:        conn,
		numPieces:   numPieces,
		local:       local,
		localState:  newPeerState(),
		remoteState: newPeerState(),
		out:         make(chan outboxItem, 256),
	}
	empty := []Listener{}
	s.listeners.Store(&empty)

	if executor == nil {
		s.executor = NewExecutor(256)
		s.ownsExecutor = true
	} else {
		s.executor = executor
		s.ownsExecutor = false
	}

	s.wg.Add(2)
	go s.recvLoop()
	go s.sendLoop()

	return s, nil
}

// LocalState returns a snapshot of the local mirror state.
func (s *Session) LocalState() PeerState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.localState.clone()
}

// RemoteState returns a snapshot of the remote mirror state.
func (s *Session) RemoteState() PeerState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.remoteState.clone()
}

// AddListener registers l against this session, atomically with respect
// to concurrent event delivery: l either sees every event fired after this
// call returns, or (if racing an in-flight emit's snapshot) may miss the
// very next one, matching the copy-on-write contract of spec §4.6.2.
func (s *Session) AddListener(l Listener) {
	for {
		oldPtr := s.listeners.Load()
		old := *oldPtr
		next := make([]Listener, len(old)+1)
		copy(next, old)
		next[len(old)] = l
		if s.listeners.CompareAndSwap(oldPtr, &next) {
			return
		}
	}
}

// RemoveListener deregisters l, if present. Listeners that are not
// comparable (e.g. a ListenerFunc) cannot be located this way and are
// silently left registered.
func (s *Session) RemoveListener(l Listener) {
	for {
		oldPtr := s.listeners.Load()
		old := *oldPtr
		idx := -1
		for i, existing := range old {
			if sameListener(existing, l) {
				idx = i
				break
			}
		}
		if idx < 0 {
			return
		}
		next := make([]Listener, 0, len(old)-1)
		next = append(next, old[:idx]...)
		next = append(next, old[idx+1:]...)
		if s.listeners.CompareAndSwap(oldPtr, &next) {
			return
		}
	}
}

func sameListener(a, b Listener) (eq bool) {
	defer func() { recover() }()
	return a == b
}

// SendMessage enqueues msg onto the output FIFO and returns. Per spec
// §4.6.2 this never blocks: it either enqueues successfully or reports
// why it couldn't (session closed, or the buffer standing in for the
// unbounded queue is momentarily full).
func (s *Session) SendMessage(msg wire.Message) error {
	if s.IsClosed() {
		return ErrClosed
	}
	select {
	case s.out <- outboxItem{msg: msg}:
		return nil
	default:
		return ErrQueueFull
	}
}

// IsClosed reports whether Close has run.
func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// Close is idempotent (spec §4.6.4): the first call closes the underlying
// connection, wakes the send worker with a sentinel, and fires exactly one
// CloseEvent. If the session owns its executor, the executor is shut down
// only after the close-event listeners have run.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.closeErr = s.conn.Close()

		// The sentinel send races the send worker exiting on its own IO
		// error; a full buffer or an already-drained worker both make
		// this a best-effort wakeup, which is fine since IsClosed already
		// guards every other path out of sendLoop's select.
		select {
		case s.out <- outboxItem{sentinel: true}:
		default:
		}

		done := make(chan struct{})
		s.executor.Submit(func() {
			defer close(done)
			for _, l := range *s.listeners.Load() {
				l.OnSessionEvent(s, Event{Type: CloseEvent})
			}
		})
		<-done

		if s.ownsExecutor {
			if c, ok := s.executor.(interface{ Close() }); ok {
				c.Close()
			}
		}
	})
	return s.closeErr
}

// Wait blocks until both worker goroutines have exited.
func (s *Session) Wait() {
	s.wg.Wait()
}

func (s *Session) emit(e Event) {
	s.executor.Submit(func() {
		for _, l := range *s.listeners.Load() {
			l.OnSessionEvent(s, e)
		}
	})
}

func (s *Session) applyRemote(msg wire.Message) {
	s.stateMu.Lock()
	applyMessage(&s.remoteState, msg, s.numPieces)
	s.stateMu.Unlock()
}

func (s *Session) applyLocal(msg wire.Message) {
	s.stateMu.Lock()
	applyMessage(&s.localState, msg, s.numPieces)
	s.stateMu.Unlock()
}

// recvLoop is the receive worker of spec §4.6.2: handshake-start,
// handshake-end, then an unbounded loop of receive-message/mutate/emit.
// On any IO error it closes the session and terminates.
func (s *Session) recvLoop() {
	defer s.wg.Done()

	start, err := s.conn.ReceiveHandshakeStart()
	if err != nil {
		sessionLog.Debug().Err(err).Msg("receiving handshake start")
		s.Close()
		return
	}
	s.applyRemote(start)
	s.emit(Event{Type: ReceiveEvent, Message: start})

	end, err := s.conn.ReceiveHandshakeEnd()
	if err != nil {
		sessionLog.Debug().Err(err).Msg("receiving handshake end")
		s.Close()
		return
	}
	s.applyRemote(end)
	s.emit(Event{Type: ReceiveEvent, Message: end})

	for {
		msg, err := s.conn.ReceiveMessage()
		if err != nil {
			if !s.IsClosed() {
				sessionLog.Debug().Err(err).Msg("receiving message")
			}
			s.Close()
			return
		}
		s.applyRemote(msg)
		s.emit(Event{Type: ReceiveEvent, Message: msg})
	}
}

// sendLoop is the send worker of spec §4.6.2: it performs the local
// handshake first, then polls the output FIFO (bounded wait per
// sendWaitInterval), writing each message and mutating local state before
// emitting its send-event, until it drains the close sentinel or hits an
// IO error.
func (s *Session) sendLoop() {
	defer s.wg.Done()

	if err := s.sendHandshake(); err != nil {
		sessionLog.Debug().Err(err).Msg("sending handshake")
		s.Close()
		return
	}

	for {
		select {
		case item := <-s.out:
			if item.sentinel {
				return
			}
			s.applyLocal(item.msg)
			if err := s.conn.SendMessage(item.msg); err != nil {
				if !s.IsClosed() {
					sessionLog.Debug().Err(err).Msg("sending message")
				}
				s.Close()
				return
			}
			s.emit(Event{Type: SendEvent, Message: item.msg})
		case <-time.After(sendWaitInterval):
			if s.IsClosed() {
				return
			}
		}
	}
}

func (s *Session) sendHandshake() error {
	start := wire.Message{Type: wire.HandshakeStart, Protocol: s.local.Protocol, Reserved: s.local.Reserved, InfoHash: s.local.InfoHash}
	s.applyLocal(start)
	if err := s.conn.SendHandshakeStart(s.local.Protocol, s.local.Reserved, s.local.InfoHash); err != nil {
		return err
	}
	s.emit(Event{Type: SendEvent, Message: start})

	end := wire.Message{Type: wire.HandshakeEnd, PeerID: s.local.PeerID}
	s.applyLocal(end)
	if err := s.conn.SendHandshakeEnd(s.local.PeerID); err != nil {
		return err
	}
	s.emit(Event{Type: SendEvent, Message: end})
	return nil
}
