package tracker

import "net"

// PeerAddr is one peer entry in a tracker's peer list (spec §3.6). ID is
// nil when the tracker used the compact wire form or omitted peer ids.
type PeerAddr struct {
	IP   net.IP
	Port uint16
	ID   *[20]byte
}

// Response is a successful tracker announce response, spec §3.6.
type Response struct {
	Interval    int32
	MinInterval *int32
	TrackerID   *string
	Complete    int32 // seeders
	Incomplete  int32 // leechers
	Warning     *string
	Peers       []PeerAddr

	// FailureReason is non-nil when the tracker answered with an
	// application-level failure (spec §3.6 "Response, failure"). Note
	// that this is still a non-nil *Response, distinct from the (nil,
	// nil) "absent response" case used for network/parse errors — spec
	// §7 draws exactly this line between the two.
	FailureReason *string
}
