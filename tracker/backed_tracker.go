package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/go-torrent/wire/internal/retry"
	"github.com/go-torrent/wire/internal/xlog"
)

var backedLog = xlog.For("tracker.backed")

// BackedTracker tries an ordered list of sub-trackers in order, promoting
// the first one to answer successfully to the front of the list (the
// BEP-12 "move-to-front" rule, spec §3.3/§4.3.1), grounded on
// original_source's BackedTracker.java/MultiTracker.java. The promotion is
// a single mutex-guarded mutation, safe against concurrent callers per
// spec §4.3.4.
type BackedTracker struct {
	mu       sync.Mutex
	trackers []Tracker
}

// NewBackedTracker wraps an ordered tier of sub-trackers.
func NewBackedTracker(tier []Tracker) *BackedTracker {
	return &BackedTracker{trackers: append([]Tracker(nil), tier...)}
}

// Announce implements spec §4.3.4's time-budget accounting: the remaining
// budget is divided evenly across the untried sub-trackers, shrunk by each
// attempt's actual elapsed time, and the loop stops at the first success
// or once the remaining budget is exhausted.
func (b *BackedTracker) Announce(ctx context.Context, req Request, budget time.Duration) (*Response, error) {
	snapshot := b.snapshot()
	bud := retry.NewBudget(budget, nil)

	for i := 0; i < len(snapshot) && !bud.Exhausted(); i++ {
		remaining := len(snapshot) - i
		share := bud.Share(remaining)

		resp, err := snapshot[i].Announce(ctx, req, share)
		bud.Spend()

		if err != nil {
			backedLog.Debug().Err(err).Int("tracker_index", i).Msg("sub-tracker returned an error")
			continue
		}
		if resp == nil {
			continue
		}
		if resp.FailureReason != nil {
			continue
		}

		b.promote(snapshot[i])
		return resp, nil
	}

	return nil, nil
}

func (b *BackedTracker) snapshot() []Tracker {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Tracker(nil), b.trackers...)
}

func (b *BackedTracker) promote(winner Tracker) {
	b.mu.Lock()
	defer b.mu.Unlock()
	idx := -1
	for i, tr := range b.trackers {
		if tr == winner {
			idx = i
			break
		}
	}
	if idx <= 0 {
		return
	}
	reordered := make([]Tracker, 0, len(b.trackers))
	reordered = append(reordered, winner)
	reordered = append(reordered, b.trackers[:idx]...)
	reordered = append(reordered, b.trackers[idx+1:]...)
	b.trackers = reordered
}
