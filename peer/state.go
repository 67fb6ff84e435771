package peer

import (
	bitmap "github.com/boljen/go-bitmap"

	"github.com/go-torrent/wire/wire"
)

// PeerState mirrors one side (local or remote) of a session's protocol
// state machine, per spec §3.8. Choking starts true and Interested starts
// false for both sides, per spec's stated initial values.
type PeerState struct {
	PeerID   *[20]byte
	Protocol string
	InfoHash *[20]byte
	Reserved [8]byte

	ClaimedPieces *bitmap.Bitmap

	Choking    bool
	Interested bool

	HandshakeStarted  bool
	HandshakeFinished bool
}

func newPeerState() PeerState {
	return PeerState{Choking: true, Interested: false}
}

// HasPiece reports whether this side has claimed piece p. False if no
// bitfield or have message has been observed yet.
func (s PeerState) HasPiece(p int) bool {
	if s.ClaimedPieces == nil {
		return false
	}
	return wire.GetBit(s.ClaimedPieces, p)
}

// clone returns a value copy safe to hand to a caller. ClaimedPieces is
// deep-copied: bitmap.Bitmap is a []byte the owning worker goroutine keeps
// mutating via wire.SetBit/wire.OrInto after this snapshot is taken, so
// sharing the pointer would leave the caller reading the same backing
// bytes with no synchronization, breaking RemoteState/LocalState's
// snapshot contract.
func (s PeerState) clone() PeerState {
	if s.ClaimedPieces != nil {
		cp := append(bitmap.Bitmap(nil), *s.ClaimedPieces...)
		s.ClaimedPieces = &cp
	}
	return s
}

// applyMessage mutates st per the state-mutation table of spec §4.6.1. It
// is the single implementation shared by both the receive path (mutating
// the remote mirror) and the send path (mutating the local mirror on a
// sent message), since the table is explicitly symmetric between the two.
func applyMessage(st *PeerState, msg wire.Message, numPieces int) {
	switch msg.Type {
	case wire.Choke:
		st.Choking = true
	case wire.Unchoke:
		st.Choking = false
	case wire.Interested:
		st.Interested = true
	case wire.NotInterested:
		st.Interested = false
	case wire.Have:
		ensureClaimedPieces(st, numPieces)
		if numPieces > 0 && int(msg.Index) < numPieces {
			wire.SetBit(st.ClaimedPieces, int(msg.Index), true)
		}
	case wire.BitField:
		ensureClaimedPieces(st, numPieces)
		n := msg.NumPieces
		if numPieces > 0 && numPieces < n {
			n = numPieces
		}
		wire.OrInto(st.ClaimedPieces, msg.Bits, n)
	case wire.HandshakeStart:
		st.Protocol = msg.Protocol
		st.Reserved = msg.Reserved
		infoHash := msg.InfoHash
		st.InfoHash = &infoHash
		st.HandshakeStarted = true
	case wire.HandshakeEnd:
		peerID := msg.PeerID
		st.PeerID = &peerID
		st.HandshakeFinished = true
	}
	// Interested/NotInterested/Have/BitField/Choke/Unchoke/handshake are
	// the only state-mutating messages (spec §4.6.1 table); every other
	// message type is forwarded to listeners without a state change.
}

func ensureClaimedPieces(st *PeerState, numPieces int) {
	if st.ClaimedPieces == nil {
		st.ClaimedPieces = wire.NewClaimedPieces(numPieces)
	}
}
