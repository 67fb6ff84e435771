// Package peerpool implements the session pool of spec §4.7: a shared
// event executor and coordinated-shutdown machinery for many concurrent
// peer.Session instances.
//
// This replaces a single fixed slice of peer connections driven directly
// in one process with a real session registry, using
// golang.org/x/sync/errgroup for the "wait for every worker, then report"
// shutdown Go has no built-in bounded-thread-pool primitive for.
package peerpool

import (
	"context"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/go-torrent/wire/internal/xlog"
	"github.com/go-torrent/wire/peer"
)

var poolLog = xlog.For("peerpool")

// Config holds a Pool's tunables. Zero values are replaced by sensible
// defaults in New.
type Config struct {
	// NumPieces is the claimed-pieces bitset size every session the pool
	// creates is given (spec assumes one torrent's session set per pool,
	// i.e. one torrent download per process).
	NumPieces int
	// ReapInterval is how often the reaper prunes closed sessions from
	// the pool. Defaults to 30s, per spec §4.7 ("≈30s").
	ReapInterval time.Duration
	// EventQueueDepth sizes the shared event executor's task buffer.
	EventQueueDepth int
	// CloseTimeout bounds how long Close waits for every session to
	// finish shutting down before giving up and returning anyway.
	CloseTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.ReapInterval <= 0 {
		c.ReapInterval = 30 * time.Second
	}
	if c.EventQueueDepth <= 0 {
		c.EventQueueDepth = 256
	}
	if c.CloseTimeout <= 0 {
		c.CloseTimeout = 5 * time.Second
	}
	return c
}

// Pool owns a shared single-thread event executor and tracks every
// session created through it, per spec §4.7.
type Pool struct {
	cfg   Config
	local peer.HandshakeInfo

	executor peer.Executor

	mu        sync.Mutex
	sessions  map[*peer.Session]struct{}
	listeners []peer.Listener

	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc

	reaperStop chan struct{}
	reaperDone chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// New builds a Pool that hands out sessions handshaking as local, with
// numPieces-sized claimed-pieces bitsets, per cfg.
func New(local peer.HandshakeInfo, cfg Config) *Pool {
	cfg = cfg.withDefaults()
	rootCtx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(rootCtx)

	p := &Pool{
		cfg:        cfg,
		local:      local,
		executor:   peer.NewExecutor(cfg.EventQueueDepth),
		sessions:   make(map[*peer.Session]struct{}),
		group:      group,
		ctx:        ctx,
		cancel:     cancel,
		reaperStop: make(chan struct{}),
		reaperDone: make(chan struct{}),
	}
	go p.runReaper()
	return p
}

// NewSession attaches conn to the pool: it builds a peer.Session sharing
// the pool's event executor, registers every currently-registered
// listener against it, and tracks it for the reaper and for coordinated
// Close, per spec §4.7's new-session operation.
//
// The tracked worker watches p.ctx: it fires either when Close cancels the
// pool's root context, or when errgroup cancels it on the first sibling
// session to return a non-nil error, so one wedged/erroring session's
// shutdown proactively drags every other session down with it instead of
// leaving them to the reaper. The worker returns sess.Close()'s real
// error, so Close's p.group.Wait() genuinely aggregates and reports it.
func (p *Pool) NewSession(conn net.Conn) (*peer.Session, error) {
	sess, err := peer.NewSession(peer.NewConn(conn), p.local, p.cfg.NumPieces, p.executor)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	for _, l := range p.listeners {
		sess.AddListener(l)
	}
	p.sessions[sess] = struct{}{}
	p.mu.Unlock()

	p.group.Go(func() error {
		done := make(chan struct{})
		go func() {
			sess.Wait()
			close(done)
		}()
		select {
		case <-p.ctx.Done():
			sess.Close()
			<-done
		case <-done:
		}
		return sess.Close()
	})

	return sess, nil
}

// AddListener registers l against every session currently tracked by the
// pool and every session created afterward, per spec §4.7 ("atomically").
// Atomicity here means: a session created concurrently with AddListener
// either has l applied by NewSession's snapshot-under-lock or is itself
// added to p.sessions after the lock below observes l, never both /
// neither.
func (p *Pool) AddListener(l peer.Listener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, l)
	for sess := range p.sessions {
		sess.AddListener(l)
	}
}

// RemoveListener deregisters l from every tracked session and from future
// sessions. As with peer.Session.RemoveListener, a non-comparable listener
// (e.g. a peer.ListenerFunc) cannot be located and is left registered.
func (p *Pool) RemoveListener(l peer.Listener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := -1
	for i, existing := range p.listeners {
		if sameListener(existing, l) {
			idx = i
			break
		}
	}
	if idx >= 0 {
		p.listeners = append(p.listeners[:idx], p.listeners[idx+1:]...)
	}
	for sess := range p.sessions {
		sess.RemoveListener(l)
	}
}

func sameListener(a, b peer.Listener) (eq bool) {
	defer func() { recover() }()
	return a == b
}

// Sessions returns a snapshot of the currently tracked sessions.
func (p *Pool) Sessions() []*peer.Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*peer.Session, 0, len(p.sessions))
	for s := range p.sessions {
		out = append(out, s)
	}
	return out
}

func (p *Pool) runReaper() {
	defer close(p.reaperDone)
	ticker := time.NewTicker(p.cfg.ReapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.reapClosed()
		case <-p.reaperStop:
			return
		}
	}
}

func (p *Pool) reapClosed() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for sess := range p.sessions {
		if sess.IsClosed() {
			delete(p.sessions, sess)
		}
	}
}

// Close stops the reaper, cancels every tracked session's shutdown
// context (waking each NewSession worker to call sess.Close()), waits up
// to cfg.CloseTimeout for them to report back through the errgroup, then
// shuts down the shared event executor regardless. Go has no primitive to
// forcibly terminate a goroutine, so "forcibly shuts down" (spec §4.7)
// means: stop waiting and tear down the executor anyway, accepting that a
// wedged session's own goroutines may outlive the Pool. The returned error
// is the first non-nil error any tracked session's Close() reported.
func (p *Pool) Close() error {
	p.closeOnce.Do(func() {
		close(p.reaperStop)
		<-p.reaperDone

		p.cancel()

		waited := make(chan struct{})
		go func() {
			p.closeErr = p.group.Wait()
			close(waited)
		}()

		select {
		case <-waited:
		case <-time.After(p.cfg.CloseTimeout):
			poolLog.Warn().Msg("timed out waiting for sessions to finish closing")
		}

		if c, ok := p.executor.(interface{ Close() }); ok {
			c.Close()
		}
	})
	return p.closeErr
}
