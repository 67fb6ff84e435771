package metainfo

// PeerID is the 20-byte identifier a client presents on handshake and in
// tracker announces. It carries the same URL-encoded cache as Hash
// (spec §3.2), computed once at construction so PeerID stays a plain
// comparable value safe to copy into tracker.Request and pass by value
// through Tracker.Announce.
type PeerID struct {
	b        [hashLen]byte
	urlCache string
}

// NewPeerID builds a PeerID from exactly 20 bytes.
func NewPeerID(b []byte) (id PeerID, ok bool) {
	if len(b) != hashLen {
		return PeerID{}, false
	}
	copy(id.b[:], b)
	id.urlCache = percentEncodeBytes(id.b[:])
	return id, true
}

// Bytes returns the raw 20 bytes.
func (id *PeerID) Bytes() []byte {
	return id.b[:]
}

// URLEncode returns the byte-exact percent-encoded form (spec §9 Open
// Question 2).
func (id *PeerID) URLEncode() string {
	return id.urlCache
}

// Equal reports whether id and other hold the same 20 bytes.
func (id PeerID) Equal(other PeerID) bool {
	return id.b == other.b
}

// String renders the peer-id as its raw bytes reinterpreted as a string,
// the conventional debug/log representation (peer-ids are usually mostly
// printable ASCII by convention, e.g. "-XX0001-...").
func (id PeerID) String() string {
	return string(id.b[:])
}
