package bencode

import (
	"github.com/pkg/errors"
)

// Sentinel errors for the format-error kinds enumerated in the codec's
// contract. Callers should compare with errors.Is, since decode errors are
// wrapped with positional context via github.com/pkg/errors.
var (
	ErrUnexpectedByte  = errors.New("bencode: unexpected byte")
	ErrMalformedNumber = errors.New("bencode: malformed number")
	ErrEOF             = errors.New("bencode: unexpected end of input")
	ErrLengthOverflow  = errors.New("bencode: string length exceeds limit")
	ErrInvalidKeyType  = errors.New("bencode: dictionary key must be a byte-string")
	ErrUnorderedDict   = errors.New("bencode: dictionary keys out of order")
	ErrDuplicateKey    = errors.New("bencode: duplicate dictionary key")
)

func errDuplicateKeyf(key string) error {
	return errors.Wrapf(ErrDuplicateKey, "key %q", key)
}

func errUnorderedKeyf(key string) error {
	return errors.Wrapf(ErrUnorderedDict, "key %q is not greater than the previous key", key)
}

func wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}
