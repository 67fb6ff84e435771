package bencode

import (
	"bufio"
	"bytes"
	"io"
)

// DefaultMaxStringLength bounds the length prefix of a byte-string a
// Decoder will accept, guarding against a hostile length field asking for
// an implausible allocation.
const DefaultMaxStringLength = 32 << 20 // 32 MiB

// Decoder reads a stream of bencode values from a buffered reader.
//
// Structured after filipochnik-btget/decode.go's flat decode-by-first-byte
// dispatch, but restructured around bufio.Reader with byte-at-a-time
// lookahead the way a BencodeInputStream reads, so a Decoder can be reused
// across multiple ReadValue calls on the same stream.
type Decoder struct {
	r            *bufio.Reader
	MaxStringLen int
}

// NewDecoder wraps r in a buffered Decoder.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		r:            bufio.NewReader(r),
		MaxStringLen: DefaultMaxStringLength,
	}
}

// ReadValue reads and returns exactly one complete bencode value.
func (d *Decoder) ReadValue() (Value, error) {
	b, err := d.r.ReadByte()
	if err != nil {
		return Value{}, wrapf(mapEOF(err), "reading value tag")
	}
	return d.readValueTagged(b)
}

func mapEOF(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return ErrEOF
	}
	return err
}

func (d *Decoder) readValueTagged(tag byte) (Value, error) {
	switch {
	case tag == 'i':
		return d.readInteger()
	case tag == 'l':
		return d.readList()
	case tag == 'd':
		return d.readDict()
	case tag >= '0' && tag <= '9':
		s, err := d.readStringAfterFirstDigit(tag)
		if err != nil {
			return Value{}, err
		}
		return Bytes(s), nil
	default:
		return Value{}, wrapf(ErrUnexpectedByte, "byte %q", tag)
	}
}

func (d *Decoder) readInteger() (Value, error) {
	var buf bytes.Buffer
	first := true
	for {
		c, err := d.r.ReadByte()
		if err != nil {
			return Value{}, wrapf(mapEOF(err), "reading integer")
		}
		if c == 'e' {
			break
		}
		if first && c == '-' {
			buf.WriteByte(c)
			first = false
			continue
		}
		if c < '0' || c > '9' {
			return Value{}, wrapf(ErrMalformedNumber, "byte %q in integer", c)
		}
		first = false
		buf.WriteByte(c)
	}
	digits := buf.Bytes()
	if len(digits) == 0 {
		return Value{}, wrapf(ErrMalformedNumber, "empty integer")
	}
	neg := digits[0] == '-'
	mantissa := digits
	if neg {
		mantissa = digits[1:]
	}
	if len(mantissa) == 0 {
		return Value{}, wrapf(ErrMalformedNumber, "bare sign")
	}
	if mantissa[0] == '0' && len(mantissa) > 1 {
		return Value{}, wrapf(ErrMalformedNumber, "leading zero")
	}
	if neg && mantissa[0] == '0' {
		return Value{}, wrapf(ErrMalformedNumber, "negative zero")
	}
	n, err := parseInt64(digits)
	if err != nil {
		return Value{}, wrapf(ErrMalformedNumber, "digits %q", digits)
	}
	return Int(n), nil
}

func parseInt64(digits []byte) (int64, error) {
	neg := false
	i := 0
	if len(digits) > 0 && digits[0] == '-' {
		neg = true
		i = 1
	}
	var n int64
	for ; i < len(digits); i++ {
		n = n*10 + int64(digits[i]-'0')
	}
	if neg {
		n = -n
	}
	return n, nil
}

func (d *Decoder) readStringAfterFirstDigit(first byte) ([]byte, error) {
	var lenBuf bytes.Buffer
	lenBuf.WriteByte(first)
	for {
		c, err := d.r.ReadByte()
		if err != nil {
			return nil, wrapf(mapEOF(err), "reading string length")
		}
		if c == ':' {
			break
		}
		if c < '0' || c > '9' {
			return nil, wrapf(ErrMalformedNumber, "byte %q in string length", c)
		}
		lenBuf.WriteByte(c)
	}
	lengthDigits := lenBuf.Bytes()
	if len(lengthDigits) > 1 && lengthDigits[0] == '0' {
		return nil, wrapf(ErrMalformedNumber, "leading zero in string length")
	}
	length, err := parseUint(lengthDigits)
	if err != nil {
		return nil, wrapf(ErrMalformedNumber, "string length %q", lengthDigits)
	}
	if length > uint64(d.maxStringLen()) {
		return nil, wrapf(ErrLengthOverflow, "length %d", length)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		return nil, wrapf(mapEOF(err), "reading %d string bytes", length)
	}
	return buf, nil
}

func (d *Decoder) maxStringLen() int {
	if d.MaxStringLen <= 0 {
		return DefaultMaxStringLength
	}
	return d.MaxStringLen
}

func parseUint(digits []byte) (uint64, error) {
	var n uint64
	for _, c := range digits {
		n = n*10 + uint64(c-'0')
	}
	return n, nil
}

func (d *Decoder) readList() (Value, error) {
	var items []Value
	for {
		b, err := d.r.ReadByte()
		if err != nil {
			return Value{}, wrapf(mapEOF(err), "reading list")
		}
		if b == 'e' {
			break
		}
		v, err := d.readValueTagged(b)
		if err != nil {
			return Value{}, err
		}
		items = append(items, v)
	}
	return Value{kind: KindList, l: items}, nil
}

func (d *Decoder) readDict() (Value, error) {
	var entries []DictEntry
	var lastKey []byte
	for {
		b, err := d.r.ReadByte()
		if err != nil {
			return Value{}, wrapf(mapEOF(err), "reading dict")
		}
		if b == 'e' {
			break
		}
		if b < '0' || b > '9' {
			return Value{}, wrapf(ErrInvalidKeyType, "byte %q", b)
		}
		key, err := d.readStringAfterFirstDigit(b)
		if err != nil {
			return Value{}, err
		}
		if lastKey != nil {
			switch bytes.Compare(key, lastKey) {
			case 0:
				return Value{}, wrapf(ErrDuplicateKey, "key %q", key)
			case -1:
				return Value{}, wrapf(ErrUnorderedDict, "key %q", key)
			}
		}
		lastKey = key

		vb, err := d.r.ReadByte()
		if err != nil {
			return Value{}, wrapf(mapEOF(err), "reading dict value for key %q", key)
		}
		val, err := d.readValueTagged(vb)
		if err != nil {
			return Value{}, err
		}
		entries = append(entries, DictEntry{Key: key, Value: val})
	}
	return Value{kind: KindDict, d: entries}, nil
}

// Decode is a convenience wrapper reading a single value from r.
func Decode(r io.Reader) (Value, error) {
	return NewDecoder(r).ReadValue()
}

// DecodeBytes decodes a single value from a byte slice, failing if there
// is trailing garbage after the value.
func DecodeBytes(b []byte) (Value, error) {
	r := bytes.NewReader(b)
	d := NewDecoder(r)
	v, err := d.ReadValue()
	if err != nil {
		return Value{}, err
	}
	if d.r.Buffered() != 0 || r.Len() != 0 {
		return Value{}, wrapf(ErrUnexpectedByte, "trailing data after value")
	}
	return v, nil
}
