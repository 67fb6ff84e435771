// Package bencode implements the bencode serialisation format used
// throughout the BitTorrent protocol: integers, byte strings, lists and
// dictionaries, with dictionaries canonically ordered by raw byte-lexical
// key order.
package bencode

import "bytes"

// Kind identifies which of the four bencode variants a Value holds.
type Kind uint8

const (
	KindInteger Kind = iota
	KindString
	KindList
	KindDict
)

// DictEntry is one key/value pair of a Dict Value. Entries within a Value
// are always sorted by Key and unique.
type DictEntry struct {
	Key   []byte
	Value Value
}

// Value is a bencode value: a tagged union over integer, byte-string, list
// and dictionary. The zero Value is the integer 0.
//
// Values are immutable once constructed. There is no exported mutator;
// dictionaries are assembled with a DictBuilder and lists with List, so a
// Value never needs to be deep-cloned to be handed out as a read-only view.
type Value struct {
	kind Kind
	i    int64
	s    []byte
	l    []Value
	d    []DictEntry
}

// Int returns an integer Value.
func Int(n int64) Value {
	return Value{kind: KindInteger, i: n}
}

// Bytes returns a byte-string Value. The slice is retained, not copied;
// callers should not mutate b after the call.
func Bytes(b []byte) Value {
	return Value{kind: KindString, s: b}
}

// String returns a byte-string Value built from a Go string.
func String(s string) Value {
	return Value{kind: KindString, s: []byte(s)}
}

// List returns a list Value over the given elements, in order.
func List(vs ...Value) Value {
	return Value{kind: KindList, l: vs}
}

// Kind reports which variant v holds.
func (v Value) Kind() Kind { return v.kind }

// Int returns v's integer value. ok is false if v is not an integer.
func (v Value) Int() (n int64, ok bool) {
	if v.kind != KindInteger {
		return 0, false
	}
	return v.i, true
}

// Bytes returns v's raw byte-string value. ok is false if v is not a
// byte-string. The returned slice must not be mutated.
func (v Value) Bytes() (b []byte, ok bool) {
	if v.kind != KindString {
		return nil, false
	}
	return v.s, true
}

// Str is a convenience wrapper over Bytes that converts to a Go string.
func (v Value) Str() (s string, ok bool) {
	b, ok := v.Bytes()
	if !ok {
		return "", false
	}
	return string(b), true
}

// List returns v's list elements. ok is false if v is not a list.
func (v Value) List() (l []Value, ok bool) {
	if v.kind != KindList {
		return nil, false
	}
	return v.l, true
}

// Dict returns v's dictionary entries, sorted by Key. ok is false if v is
// not a dictionary.
func (v Value) Dict() (d []DictEntry, ok bool) {
	if v.kind != KindDict {
		return nil, false
	}
	return v.d, true
}

// DictGet looks up key in a dictionary Value using binary search over the
// canonically sorted entries. ok is false if v is not a dictionary or the
// key is absent.
func (v Value) DictGet(key string) (val Value, ok bool) {
	if v.kind != KindDict {
		return Value{}, false
	}
	kb := []byte(key)
	lo, hi := 0, len(v.d)
	for lo < hi {
		mid := (lo + hi) / 2
		switch bytes.Compare(v.d[mid].Key, kb) {
		case 0:
			return v.d[mid].Value, true
		case -1:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return Value{}, false
}

// Equal reports whether v and other represent the same bencode value.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindInteger:
		return v.i == other.i
	case KindString:
		return bytes.Equal(v.s, other.s)
	case KindList:
		if len(v.l) != len(other.l) {
			return false
		}
		for i := range v.l {
			if !v.l[i].Equal(other.l[i]) {
				return false
			}
		}
		return true
	case KindDict:
		if len(v.d) != len(other.d) {
			return false
		}
		for i := range v.d {
			if !bytes.Equal(v.d[i].Key, other.d[i].Key) || !v.d[i].Value.Equal(other.d[i].Value) {
				return false
			}
		}
		return true
	}
	return false
}

// DictBuilder assembles a dictionary Value while enforcing the canonical
// ordering invariant: keys must be inserted in strictly increasing
// byte-lexical order and must be unique. This is the only mutation path
// for dictionaries, replacing the "deep clone for an immutable view"
// pattern with a distinct builder type.
type DictBuilder struct {
	entries []DictEntry
	err     error
}

// NewDictBuilder returns an empty DictBuilder.
func NewDictBuilder() *DictBuilder {
	return &DictBuilder{}
}

// Put appends a key/value pair. Keys must be supplied in strictly
// increasing byte-lexical order; violations are recorded and surfaced by
// Build.
func (b *DictBuilder) Put(key string, val Value) *DictBuilder {
	if b.err != nil {
		return b
	}
	kb := []byte(key)
	if n := len(b.entries); n > 0 {
		switch bytes.Compare(kb, b.entries[n-1].Key) {
		case 0:
			b.err = errDuplicateKeyf(key)
			return b
		case -1:
			b.err = errUnorderedKeyf(key)
			return b
		}
	}
	b.entries = append(b.entries, DictEntry{Key: kb, Value: val})
	return b
}

// Build finalises the dictionary. It returns an error if Put was called
// with keys out of order or with a duplicate key.
func (b *DictBuilder) Build() (Value, error) {
	if b.err != nil {
		return Value{}, b.err
	}
	return Value{kind: KindDict, d: b.entries}, nil
}
