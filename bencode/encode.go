package bencode

import (
	"bufio"
	"hash"
	"io"
	"strconv"
)

// encodeChunkSize bounds how much an Encoder buffers before flushing to its
// writer (a HashingSink included), per spec's "buffered chunks are at most
// 64 KiB" contract.
const encodeChunkSize = 64 << 10

// Encoder writes canonical bencode encodings to an underlying writer.
type Encoder struct {
	w   *bufio.Writer
	buf []byte
}

// NewEncoder wraps w in a buffered Encoder.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{
		w:   bufio.NewWriterSize(w, encodeChunkSize),
		buf: make([]byte, 0, 32),
	}
}

// WriteValue writes v's canonical encoding, then flushes the underlying
// buffer.
func (e *Encoder) WriteValue(v Value) error {
	if err := e.writeValue(v); err != nil {
		return err
	}
	return e.w.Flush()
}

func (e *Encoder) writeValue(v Value) error {
	switch v.kind {
	case KindInteger:
		return e.writeInteger(v.i)
	case KindString:
		return e.writeString(v.s)
	case KindList:
		if err := e.w.WriteByte('l'); err != nil {
			return err
		}
		for _, item := range v.l {
			if err := e.writeValue(item); err != nil {
				return err
			}
		}
		return e.w.WriteByte('e')
	case KindDict:
		if err := e.w.WriteByte('d'); err != nil {
			return err
		}
		for _, ent := range v.d {
			if err := e.writeString(ent.Key); err != nil {
				return err
			}
			if err := e.writeValue(ent.Value); err != nil {
				return err
			}
		}
		return e.w.WriteByte('e')
	default:
		panic("bencode: encoding a Value with an invalid kind")
	}
}

func (e *Encoder) writeInteger(n int64) error {
	e.buf = e.buf[:0]
	e.buf = append(e.buf, 'i')
	e.buf = strconv.AppendInt(e.buf, n, 10)
	e.buf = append(e.buf, 'e')
	_, err := e.w.Write(e.buf)
	return err
}

func (e *Encoder) writeString(b []byte) error {
	e.buf = e.buf[:0]
	e.buf = strconv.AppendInt(e.buf, int64(len(b)), 10)
	e.buf = append(e.buf, ':')
	if _, err := e.w.Write(e.buf); err != nil {
		return err
	}
	_, err := e.w.Write(b)
	return err
}

// Encode returns v's canonical bencode encoding.
func Encode(v Value) []byte {
	var buf writerBuf
	enc := NewEncoder(&buf)
	// WriteValue on an in-memory writer cannot fail.
	_ = enc.WriteValue(v)
	return buf.b
}

type writerBuf struct{ b []byte }

func (w *writerBuf) Write(p []byte) (int, error) {
	w.b = append(w.b, p...)
	return len(p), nil
}

// HashingSink adapts a hash.Hash into an io.Writer sink suitable for
// WriteValue, so an info-hash can be computed by encoding directly into the
// digest without ever materialising the encoded bytes, per spec's
// "hashing sink" requirement. The Encoder buffers small writes into chunks
// of at most encodeChunkSize; a byte-string too large for the free buffer
// space reaches the sink as one larger write.
type HashingSink struct {
	h hash.Hash
}

// NewHashingSink wraps h (e.g. sha1.New()) as an io.Writer.
func NewHashingSink(h hash.Hash) *HashingSink {
	return &HashingSink{h: h}
}

func (s *HashingSink) Write(p []byte) (int, error) {
	return s.h.Write(p)
}

// Sum returns the digest accumulated so far, without resetting it.
func (s *HashingSink) Sum(b []byte) []byte {
	return s.h.Sum(b)
}

// WriteValueTo is a convenience for writing v's canonical encoding directly
// into a hash.Hash.
func WriteValueTo(h hash.Hash, v Value) error {
	return NewEncoder(NewHashingSink(h)).WriteValue(v)
}
