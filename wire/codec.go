package wire

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// MaxMessageLength bounds the accepted frame length, per spec §4.4.3: "16
// MiB + 13" comfortably covers the largest Piece message a sane block size
// (16 KiB requests, but some peers send larger blocks) plus the 9-byte
// id/index/begin header and 4-byte length prefix overhead.
const MaxMessageLength = 16*1024*1024 + 13

// Decode reads exactly one regular (non-handshake) frame from r: a 4-byte
// big-endian length prefix, then that many bytes. A zero length yields a
// KeepAlive message with no body read.
//
// Structured after a plain length-prefix read-frame loop, but rather than
// silently stopping on a zero-length frame (spec §9's supplemented-feature
// note), this returns a proper KeepAlive message the caller can no-op on.
func Decode(r io.Reader) (Message, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return Message{}, wrapEOF(err, "reading frame length")
	}
	length := int32(binary.BigEndian.Uint32(lenBuf[:]))
	if length < 0 {
		return Message{}, errors.Wrapf(ErrProtocol, "negative length %d", length)
	}
	if length == 0 {
		return Message{Type: KeepAlive}, nil
	}
	if int64(length) > MaxMessageLength {
		return Message{}, errors.Wrapf(ErrProtocol, "length %d exceeds max %d", length, MaxMessageLength)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return Message{}, wrapEOF(err, "reading frame body")
	}

	id := body[0]
	payload := body[1:]
	return decodePayload(id, payload)
}

func wrapEOF(err error, context string) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return errors.Wrap(ErrEOF, context)
	}
	return errors.Wrap(err, context)
}

func decodePayload(id byte, payload []byte) (Message, error) {
	typ, known := idToType[id]
	if !known {
		return Message{}, errors.Wrapf(ErrProtocol, "unknown message id %d", id)
	}

	switch typ {
	case Choke, Unchoke, Interested, NotInterested:
		if len(payload) != 0 {
			return Message{}, errors.Wrapf(ErrProtocol, "message id %d expects empty payload, got %d bytes", id, len(payload))
		}
		return Message{Type: typ}, nil

	case Have:
		if len(payload) != 4 {
			return Message{}, errors.Wrapf(ErrProtocol, "have expects 4-byte payload, got %d", len(payload))
		}
		return Message{Type: Have, Index: binary.BigEndian.Uint32(payload)}, nil

	case BitField:
		// The decoder must consume exactly len(payload) bytes and
		// interpret them per §4.4.2 — not the historical "off by the
		// length argument" bug spec §9 calls out. NumPieces is left at
		// the byte-aligned capacity (len(payload)*8); callers with an
		// authoritative piece count should re-derive claimed bits with
		// wire.OrInto against their own numPieces.
		numPieces := len(payload) * 8
		bm := decodeBitFieldPayload(payload, numPieces)
		return Message{Type: BitField, Bits: bm, NumPieces: numPieces}, nil

	case Request, Cancel:
		if len(payload) != 12 {
			return Message{}, errors.Wrapf(ErrProtocol, "request/cancel expects 12-byte payload, got %d", len(payload))
		}
		return Message{
			Type:   typ,
			Index:  binary.BigEndian.Uint32(payload[0:4]),
			Begin:  binary.BigEndian.Uint32(payload[4:8]),
			Length: binary.BigEndian.Uint32(payload[8:12]),
		}, nil

	case Piece:
		if len(payload) < 8 {
			return Message{}, errors.Wrapf(ErrProtocol, "piece expects at least 8-byte payload, got %d", len(payload))
		}
		return Message{
			Type:  Piece,
			Index: binary.BigEndian.Uint32(payload[0:4]),
			Begin: binary.BigEndian.Uint32(payload[4:8]),
			Block: payload[8:],
		}, nil

	case Port:
		if len(payload) != 2 {
			return Message{}, errors.Wrapf(ErrProtocol, "port expects 2-byte payload, got %d", len(payload))
		}
		return Message{Type: Port, DHTPort: binary.BigEndian.Uint16(payload)}, nil
	}

	return Message{}, errors.Wrapf(ErrProtocol, "unhandled message type for id %d", id)
}

// Encode writes m as one regular frame to w in a single pass.
func Encode(w io.Writer, m Message) error {
	switch m.Type {
	case KeepAlive:
		return writeFrame(w, nil, 0, false)
	case Choke, Unchoke, Interested, NotInterested:
		return writeFrame(w, nil, wireID[m.Type], true)
	case Have:
		var payload [4]byte
		binary.BigEndian.PutUint32(payload[:], m.Index)
		return writeFrame(w, payload[:], wireID[Have], true)
	case BitField:
		payload := encodeBitFieldPayload(m.Bits, m.NumPieces)
		return writeFrame(w, payload, wireID[BitField], true)
	case Request, Cancel:
		var payload [12]byte
		binary.BigEndian.PutUint32(payload[0:4], m.Index)
		binary.BigEndian.PutUint32(payload[4:8], m.Begin)
		binary.BigEndian.PutUint32(payload[8:12], m.Length)
		return writeFrame(w, payload[:], wireID[m.Type], true)
	case Piece:
		payload := make([]byte, 8+len(m.Block))
		binary.BigEndian.PutUint32(payload[0:4], m.Index)
		binary.BigEndian.PutUint32(payload[4:8], m.Begin)
		copy(payload[8:], m.Block)
		return writeFrame(w, payload, wireID[Piece], true)
	case Port:
		var payload [2]byte
		binary.BigEndian.PutUint16(payload[:], m.DHTPort)
		return writeFrame(w, payload[:], wireID[Port], true)
	default:
		return errors.Errorf("wire: cannot encode message type %d as a regular frame", m.Type)
	}
}

func writeFrame(w io.Writer, payload []byte, id byte, hasID bool) error {
	bodyLen := len(payload)
	if hasID {
		bodyLen++
	}
	buf := make([]byte, 4+bodyLen)
	binary.BigEndian.PutUint32(buf[0:4], uint32(bodyLen))
	if hasID {
		buf[4] = id
		copy(buf[5:], payload)
	}
	_, err := w.Write(buf)
	return err
}
