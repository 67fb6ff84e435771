// Package tracker implements the HTTP(S) and UDP tracker announce
// protocols, with announce-list failover, per spec §3.6, §4.3, §6.3, §6.4.
package tracker

import "github.com/go-torrent/wire/metainfo"

// Event is the announce event a client reports, spec §3.6.
type Event uint8

const (
	EventRegular Event = iota
	EventStarted
	EventCompleted
	EventStopped
)

// String renders the event the way it appears in an HTTP query string
// (spec §6.3): "" for EventRegular.
func (e Event) String() string {
	switch e {
	case EventStarted:
		return "started"
	case EventCompleted:
		return "completed"
	case EventStopped:
		return "stopped"
	default:
		return ""
	}
}

// udpAction is the BEP-15 announce event encoding: started/completed/
// stopped map to 1/2/3, regular maps to 0 (spec §4.3.3).
func (e Event) udpAction() uint32 {
	switch e {
	case EventStarted:
		return 1
	case EventCompleted:
		return 2
	case EventStopped:
		return 3
	default:
		return 0
	}
}

// Request is one tracker announce request, spec §3.6.
type Request struct {
	InfoHash   metainfo.Hash
	PeerID     metainfo.PeerID
	Port       uint16
	Uploaded   uint64
	Downloaded uint64
	Left       uint64
	Event      Event

	Compact    bool
	WantPeerID bool
	IP         string // optional; empty means unset
	NumWant    int32
	Key        string
	TrackerID  string // optional; echoed back by some trackers
}
