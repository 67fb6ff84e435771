package tracker

import (
	"net/url"

	"github.com/pkg/errors"
)

// ErrUnsupportedScheme is returned by New for an announce URL whose scheme
// this module doesn't implement (e.g. "wss").
var ErrUnsupportedScheme = errors.New("tracker: unsupported announce URL scheme")

// New builds the appropriate Tracker for an announce URL's scheme: http/
// https dispatch to URLTracker, udp to UDPTracker.
func New(announceURL string) (Tracker, error) {
	u, err := url.Parse(announceURL)
	if err != nil {
		return nil, errors.Wrapf(err, "tracker: parsing %q", announceURL)
	}
	switch u.Scheme {
	case "http", "https":
		return NewURLTracker(announceURL)
	case "udp":
		return NewUDPTracker(u.Host)
	default:
		return nil, errors.Wrapf(ErrUnsupportedScheme, "%q", u.Scheme)
	}
}
