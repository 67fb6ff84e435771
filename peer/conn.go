// Package peer implements the peer-wire connection and session layers:
// framed transport over one TCP stream (Conn) and the protocol state
// machine and concurrency model built on top of it (Session), per spec
// §4.5/§4.6.
package peer

import (
	"bufio"
	"net"
	"sync"

	"github.com/pkg/errors"

	"github.com/go-torrent/wire/internal/xlog"
	"github.com/go-torrent/wire/wire"
)

var connLog = xlog.For("peer.conn")

// ErrClosed is returned by any Conn operation attempted after Close.
var ErrClosed = errors.New("peer: connection closed")

// Conn is a thin, non-blocking byte-framed transport layered over one TCP
// stream, per spec §4.5. It carries no protocol state of its own — it only
// marshals bytes; Session owns the handshake/message state machine.
//
// The handshake/message read and write methods are split out of a
// monolithic connection+state type into a standalone transport, with
// buffers sized to wire.MaxMessageLength per spec §4.5 ("two allocated
// byte buffers sized to hold the largest expected Piece message").
type Conn struct {
	conn net.Conn
	r    *bufio.Reader
	w    *bufio.Writer

	closeOnce sync.Once
	closeErr  error
	closed    chan struct{}
}

// NewConn wraps an already-dialed or already-accepted net.Conn.
func NewConn(c net.Conn) *Conn {
	return &Conn{
		conn:   c,
		r:      bufio.NewReaderSize(c, wire.MaxMessageLength),
		w:      bufio.NewWriterSize(c, wire.MaxMessageLength),
		closed: make(chan struct{}),
	}
}

// ReceiveHandshakeStart blocks until the first half of the handshake
// (pstrlen, protocol name, reserved bitset, info-hash) is fully read.
func (c *Conn) ReceiveHandshakeStart() (wire.Message, error) {
	return wire.DecodeHandshakeStart(c.r)
}

// ReceiveHandshakeEnd reads the trailing 20-byte peer-id.
func (c *Conn) ReceiveHandshakeEnd() (wire.Message, error) {
	return wire.DecodeHandshakeEnd(c.r)
}

// SendHandshakeStart writes the first half of a handshake in one pass.
func (c *Conn) SendHandshakeStart(protocol string, reserved [8]byte, infoHash [20]byte) error {
	if err := wire.EncodeHandshakeStart(c.w, protocol, reserved, infoHash); err != nil {
		return err
	}
	return c.w.Flush()
}

// SendHandshakeEnd writes the trailing 20-byte peer-id.
func (c *Conn) SendHandshakeEnd(peerID [20]byte) error {
	if err := wire.EncodeHandshakeEnd(c.w, peerID); err != nil {
		return err
	}
	return c.w.Flush()
}

// ReceiveMessage reads a 4-byte length prefix then exactly that many bytes
// and returns the decoded message.
func (c *Conn) ReceiveMessage() (wire.Message, error) {
	return wire.Decode(c.r)
}

// SendMessage encodes and writes msg in one pass.
func (c *Conn) SendMessage(msg wire.Message) error {
	if err := wire.Encode(c.w, msg); err != nil {
		return err
	}
	return c.w.Flush()
}

// Close is idempotent: only the first call actually closes the underlying
// connection; subsequent calls return the same result.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.closeErr = c.conn.Close()
		if c.closeErr != nil {
			connLog.Debug().Err(c.closeErr).Msg("closing peer connection")
		}
	})
	return c.closeErr
}

// IsClosed reports whether Close has been called.
func (c *Conn) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}
