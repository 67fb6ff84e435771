package wire

import (
	"io"

	"github.com/pkg/errors"
)

// ProtocolName is the standard BitTorrent handshake protocol string.
const ProtocolName = "BitTorrent protocol"

// EncodeHandshakeStart writes the first half of a handshake: pstrlen(1),
// pstr, reserved(8), info-hash(20) — spec §4.4.1.
func EncodeHandshakeStart(w io.Writer, protocol string, reserved [8]byte, infoHash [20]byte) error {
	if len(protocol) > 255 {
		return errors.Errorf("wire: protocol name %q longer than 255 bytes", protocol)
	}
	buf := make([]byte, 0, 1+len(protocol)+8+20)
	buf = append(buf, byte(len(protocol)))
	buf = append(buf, protocol...)
	buf = append(buf, reserved[:]...)
	buf = append(buf, infoHash[:]...)
	_, err := w.Write(buf)
	return err
}

// DecodeHandshakeStart reads the first half of a handshake: it first reads
// the 1-byte pstrlen, then the remaining 28+pstrlen bytes: pstr, reserved,
// info-hash. Splitting the read like this (rather than always reading the
// standard 68 bytes in one call) lets the caller inspect the info-hash
// before deciding whether to answer with its own handshake, per spec
// §4.4.1/§4.5.
func DecodeHandshakeStart(r io.Reader) (Message, error) {
	var lenByte [1]byte
	if _, err := io.ReadFull(r, lenByte[:]); err != nil {
		return Message{}, wrapEOF(err, "reading handshake pstrlen")
	}
	pstrlen := int(lenByte[0])

	rest := make([]byte, pstrlen+8+20)
	if _, err := io.ReadFull(r, rest); err != nil {
		return Message{}, wrapEOF(err, "reading handshake start body")
	}

	m := Message{Type: HandshakeStart, Protocol: string(rest[:pstrlen])}
	copy(m.Reserved[:], rest[pstrlen:pstrlen+8])
	copy(m.InfoHash[:], rest[pstrlen+8:pstrlen+8+20])
	return m, nil
}

// EncodeHandshakeEnd writes the second half of a handshake: the 20-byte
// peer-id.
func EncodeHandshakeEnd(w io.Writer, peerID [20]byte) error {
	_, err := w.Write(peerID[:])
	return err
}

// DecodeHandshakeEnd reads the trailing 20-byte peer-id.
func DecodeHandshakeEnd(r io.Reader) (Message, error) {
	var buf [20]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Message{}, wrapEOF(err, "reading handshake end")
	}
	m := Message{Type: HandshakeEnd}
	copy(m.PeerID[:], buf[:])
	return m, nil
}
