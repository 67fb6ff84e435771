package wire

import "github.com/pkg/errors"

// ErrProtocol covers the "bad length, unknown id, overflow" family of wire
// errors (spec §4.4.3, §7).
var ErrProtocol = errors.New("wire: protocol error")

// ErrEOF wraps a truncated frame (spec §4.4.3: "Truncation -> EOF").
var ErrEOF = errors.New("wire: unexpected end of frame")
