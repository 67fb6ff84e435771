// Package wire implements the peer-wire message codec: the fixed set of
// BitTorrent peer-protocol messages, framed and parsed per spec §3.7/§4.4.
package wire

import bitmap "github.com/boljen/go-bitmap"

// Type identifies which peer-wire message a Message holds, mirroring the
// tagged-union treatment spec's DESIGN NOTES ask for bencode.Value applied
// here too, rather than a Go interface hierarchy with type switches at
// every call site.
type Type uint8

const (
	// HandshakeStart and HandshakeEnd are never produced by Decode (the
	// handshake is not a length-prefixed frame, spec §4.4.1); they are
	// synthesized by peer.Conn/peer.Session so the same Message type can
	// flow through one listener callback signature for every wire event.
	HandshakeStart Type = iota
	HandshakeEnd
	KeepAlive
	Choke
	Unchoke
	Interested
	NotInterested
	Have
	BitField
	Request
	Piece
	Cancel
	Port
)

// wireID is the on-the-wire message ID for the regular (non-handshake,
// non-keepalive) message types, per spec §3.7.
var wireID = map[Type]byte{
	Choke:         0,
	Unchoke:       1,
	Interested:    2,
	NotInterested: 3,
	Have:          4,
	BitField:      5,
	Request:       6,
	Piece:         7,
	Cancel:        8,
	Port:          9,
}

var idToType = func() map[byte]Type {
	m := make(map[byte]Type, len(wireID))
	for t, id := range wireID {
		m[id] = t
	}
	return m
}()

// Message is a peer-wire protocol message: a tagged union over the types
// in spec §3.7. Only the fields relevant to Type are populated.
type Message struct {
	Type Type

	// Have, Request, Piece, Cancel
	Index  uint32
	Begin  uint32 // Request, Cancel, Piece ("offset")
	Length uint32 // Request, Cancel

	// Piece
	Block []byte

	// BitField
	Bits *bitmap.Bitmap
	// NumPieces records how many meaningful bits Bits holds, since a
	// bitmap.Bitmap is byte-aligned and may carry trailing padding bits
	// beyond the torrent's actual piece count.
	NumPieces int

	// Port
	DHTPort uint16

	// HandshakeStart
	Protocol string
	Reserved [8]byte
	InfoHash [20]byte

	// HandshakeEnd
	PeerID [20]byte
}

// NewHave returns a Have message for piece index.
func NewHave(index uint32) Message {
	return Message{Type: Have, Index: index}
}

// NewRequest returns a Request message.
func NewRequest(index, begin, length uint32) Message {
	return Message{Type: Request, Index: index, Begin: begin, Length: length}
}

// NewCancel returns a Cancel message.
func NewCancel(index, begin, length uint32) Message {
	return Message{Type: Cancel, Index: index, Begin: begin, Length: length}
}

// NewPiece returns a Piece message carrying block (retained, not copied).
func NewPiece(index, begin uint32, block []byte) Message {
	return Message{Type: Piece, Index: index, Begin: begin, Block: block}
}

// NewPort returns a Port message announcing the sender's DHT listen port.
func NewPort(port uint16) Message {
	return Message{Type: Port, DHTPort: port}
}

// NewBitField returns a BitField message over a bitmap already sized for
// numPieces claimed pieces.
func NewBitField(bits *bitmap.Bitmap, numPieces int) Message {
	return Message{Type: BitField, Bits: bits, NumPieces: numPieces}
}
