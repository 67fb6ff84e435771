package peer

import (
	"net"
	"testing"

	"github.com/go-torrent/wire/wire"
)

// pipe returns two Conns wired to each other via net.Pipe: a real
// bidirectional fake connection (rather than a one-way io.Writer capture)
// so both halves of a handshake/message exchange can be exercised
// directly.
func pipe() (a, b *Conn) {
	ca, cb := net.Pipe()
	return NewConn(ca), NewConn(cb)
}

func TestConnHandshakeRoundTrip(t *testing.T) {
	a, b := pipe()
	defer a.Close()
	defer b.Close()

	infoHash := [20]byte{1, 2, 3}
	var reserved [8]byte

	done := make(chan error, 1)
	go func() {
		done <- a.SendHandshakeStart(wire.ProtocolName, reserved, infoHash)
	}()

	start, err := b.ReceiveHandshakeStart()
	if err != nil {
		t.Fatalf("ReceiveHandshakeStart: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("SendHandshakeStart: %v", err)
	}
	if start.Protocol != wire.ProtocolName {
		t.Errorf("Protocol = %q, want %q", start.Protocol, wire.ProtocolName)
	}
	if start.InfoHash != infoHash {
		t.Errorf("InfoHash = %v, want %v", start.InfoHash, infoHash)
	}

	peerID := [20]byte{9, 9, 9}
	go func() {
		done <- a.SendHandshakeEnd(peerID)
	}()
	end, err := b.ReceiveHandshakeEnd()
	if err != nil {
		t.Fatalf("ReceiveHandshakeEnd: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("SendHandshakeEnd: %v", err)
	}
	if end.PeerID != peerID {
		t.Errorf("PeerID = %v, want %v", end.PeerID, peerID)
	}
}

func TestConnMessageRoundTrip(t *testing.T) {
	a, b := pipe()
	defer a.Close()
	defer b.Close()

	msg := wire.NewHave(7)
	errCh := make(chan error, 1)
	go func() { errCh <- a.SendMessage(msg) }()

	got, err := b.ReceiveMessage()
	if err != nil {
		t.Fatalf("ReceiveMessage: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if got.Type != wire.Have || got.Index != 7 {
		t.Errorf("got %+v, want Have(7)", got)
	}
}

func TestConnCloseIsIdempotent(t *testing.T) {
	a, _ := pipe()
	if a.IsClosed() {
		t.Fatal("new Conn reports closed")
	}
	if err := a.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if !a.IsClosed() {
		t.Fatal("IsClosed false after Close")
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestConnReceiveMessageErrorAfterPeerClose(t *testing.T) {
	a, b := pipe()
	a.Close()
	if _, err := b.ReceiveMessage(); err == nil {
		t.Fatal("expected an error reading after the peer closed")
	}
}
