package tracker

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/go-torrent/wire/metainfo"
)

// ErrInvalidResponse covers a tracker response that fails to bencode-decode
// or is missing required fields (spec §7 "invalid-response").
var ErrInvalidResponse = errors.New("tracker: invalid response")

// Tracker announces to one tracker endpoint.
//
// Announce never returns a non-nil error for a network, parse, or timeout
// failure — those surface as (nil, nil), spec §7's "absent response"
// contract. A non-nil error indicates a programmer error (e.g. an
// unparseable URL supplied at construction time), not a runtime tracker
// failure.
type Tracker interface {
	Announce(ctx context.Context, req Request, budget time.Duration) (*Response, error)
}

// ForMetainfo builds the set of trackers for a torrent per spec §4.3.1:
// {single(announce)} ∪ {backed(tier) for tier in announce-list}.
func ForMetainfo(m *metainfo.TorrentMetaInfo) ([]Tracker, error) {
	trackers := make([]Tracker, 0, 1+len(m.AnnounceList))

	single, err := New(m.Announce)
	if err != nil {
		return nil, errors.Wrapf(err, "tracker: building tracker for announce %q", m.Announce)
	}
	trackers = append(trackers, single)

	for _, tier := range m.AnnounceList {
		tierTrackers := make([]Tracker, 0, len(tier))
		for _, url := range tier {
			tr, err := New(url)
			if err != nil {
				continue // skip an unparseable tier entry, don't fail the whole torrent
			}
			tierTrackers = append(tierTrackers, tr)
		}
		if len(tierTrackers) > 0 {
			trackers = append(trackers, NewBackedTracker(tierTrackers))
		}
	}

	return trackers, nil
}
