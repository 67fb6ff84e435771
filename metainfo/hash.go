package metainfo

import (
	"encoding/hex"
	"strings"
)

const hashLen = 20

// Hash is a SHA-1 hash, used both as a torrent's info-hash and as a piece
// hash. It carries hex and URL-encoded forms (spec §3.2) computed once at
// construction, since most hashes in a piece list are never rendered but a
// Hash is otherwise a plain comparable value copied freely (into
// tracker.Request, InfoSection.Pieces, etc.) and must not embed a mutex.
type Hash struct {
	b        [hashLen]byte
	hexCache string
	urlCache string
}

// NewHash builds a Hash from exactly 20 bytes. ok is false otherwise.
func NewHash(b []byte) (h Hash, ok bool) {
	if len(b) != hashLen {
		return Hash{}, false
	}
	copy(h.b[:], b)
	h.hexCache = strings.ToUpper(hex.EncodeToString(h.b[:]))
	h.urlCache = percentEncodeBytes(h.b[:])
	return h, true
}

// Bytes returns the raw 20 bytes.
func (h *Hash) Bytes() []byte {
	return h.b[:]
}

// Hex returns the uppercase hex form.
func (h *Hash) Hex() string {
	return h.hexCache
}

// URLEncode returns the byte-exact percent-encoded form of the raw hash,
// suitable for use in an HTTP tracker query string (spec §4.3.2, §9 Open
// Question 2: byte-by-byte percent-encoding, no ISO-8859-1 string
// round-trip).
func (h *Hash) URLEncode() string {
	return h.urlCache
}

// Equal reports whether h and other hold the same 20 bytes.
func (h Hash) Equal(other Hash) bool {
	return h.b == other.b
}

// percentEncodeBytes percent-encodes every byte of b except the unreserved
// characters (RFC 3986 ALPHA / DIGIT / "-" "." "_" "~"), operating
// byte-by-byte on the raw value with no intermediate string/rune
// conversion. This is the single implementation shared by info-hash,
// peer-id and any other 20-byte identifier that must appear in a tracker
// query string.
func percentEncodeBytes(b []byte) string {
	const hexDigits = "0123456789ABCDEF"
	out := make([]byte, 0, len(b)*3)
	for _, c := range b {
		if isUnreserved(c) {
			out = append(out, c)
		} else {
			out = append(out, '%', hexDigits[c>>4], hexDigits[c&0xf])
		}
	}
	return string(out)
}

func isUnreserved(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z':
		return true
	case c >= 'a' && c <= 'z':
		return true
	case c >= '0' && c <= '9':
		return true
	case c == '-' || c == '.' || c == '_' || c == '~':
		return true
	}
	return false
}
