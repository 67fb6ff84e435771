package bencode

import (
	"bytes"
	"crypto/sha1"
	"errors"
	"strings"
	"testing"
)

func TestEncodeScenarios(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		want string
	}{
		{"integer", Int(42), "i42e"},
		{"string", String("spam"), "4:spam"},
		{"dict", mustDict(t, "cow", String("moo"), "spam", String("eggs")), "d3:cow3:moo4:spam4:eggse"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := string(Encode(tc.v))
			if got != tc.want {
				t.Errorf("Encode(%v) = %q, want %q", tc.v, got, tc.want)
			}
		})
	}
}

func TestDecodeScenarios(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want Value
	}{
		{"integer", "i42e", Int(42)},
		{"string", "4:spam", String("spam")},
		{"dict", "d3:cow3:moo4:spam4:eggse", mustDict(t, "cow", String("moo"), "spam", String("eggs"))},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeBytes([]byte(tc.in))
			if err != nil {
				t.Fatalf("DecodeBytes(%q) error: %v", tc.in, err)
			}
			if !got.Equal(tc.want) {
				t.Errorf("DecodeBytes(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestDecodeUnorderedDictionaryFails(t *testing.T) {
	_, err := DecodeBytes([]byte("d4:spam4:eggs3:cow3:mooe"))
	if !errors.Is(err, ErrUnorderedDict) {
		t.Fatalf("expected ErrUnorderedDict, got %v", err)
	}
}

func TestDecodeDuplicateKeyFails(t *testing.T) {
	_, err := DecodeBytes([]byte("d3:cow3:moo3:cow3:mooe"))
	if !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestDecodeInvalidKeyType(t *testing.T) {
	_, err := DecodeBytes([]byte("di1e3:mooe"))
	if !errors.Is(err, ErrInvalidKeyType) {
		t.Fatalf("expected ErrInvalidKeyType, got %v", err)
	}
}

func TestDecodeMalformedNumber(t *testing.T) {
	for _, in := range []string{"i-0e", "i01e", "i-e", "ie"} {
		if _, err := DecodeBytes([]byte(in)); !errors.Is(err, ErrMalformedNumber) {
			t.Errorf("DecodeBytes(%q): expected ErrMalformedNumber, got %v", in, err)
		}
	}
}

func TestDecodeTruncatedFails(t *testing.T) {
	_, err := DecodeBytes([]byte("5:sp"))
	if !errors.Is(err, ErrEOF) {
		t.Fatalf("expected ErrEOF, got %v", err)
	}
}

func TestRoundTripCanonical(t *testing.T) {
	inputs := []string{
		"i42e",
		"i-17e",
		"i0e",
		"4:spam",
		"0:",
		"l4:spam4:eggse",
		"le",
		"d3:cow3:moo4:spam4:eggse",
		"de",
		"d4:listl1:a1:be3:numi7ee",
	}
	for _, in := range inputs {
		v, err := DecodeBytes([]byte(in))
		if err != nil {
			t.Fatalf("decode(%q): %v", in, err)
		}
		out := string(Encode(v))
		if out != in {
			t.Errorf("encode(decode(%q)) = %q, want %q", in, out, in)
		}
	}
}

func TestDecodeEncodeValueRoundTrip(t *testing.T) {
	v := mustDict(t,
		"a", Int(-5),
		"b", List(Int(1), Int(2), String("x")),
		"c", String("hello"),
	)
	encoded := Encode(v)
	decoded, err := DecodeBytes(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if !decoded.Equal(v) {
		t.Errorf("decode(encode(v)) != v: got %v, want %v", decoded, v)
	}
}

func TestHashingSinkNeverMaterializesBytes(t *testing.T) {
	v := mustDict(t, "name", String("file.bin"), "piece length", Int(16384))

	h1 := sha1.New()
	if err := WriteValueTo(h1, v); err != nil {
		t.Fatal(err)
	}

	h2 := sha1.New()
	h2.Write(Encode(v))

	if !bytes.Equal(h1.Sum(nil), h2.Sum(nil)) {
		t.Errorf("hashing sink digest diverges from encode-then-hash digest")
	}
}

func TestDictBuilderRejectsOutOfOrder(t *testing.T) {
	_, err := NewDictBuilder().Put("b", Int(1)).Put("a", Int(2)).Build()
	if !errors.Is(err, ErrUnorderedDict) {
		t.Fatalf("expected ErrUnorderedDict, got %v", err)
	}
}

func TestDictBuilderRejectsDuplicate(t *testing.T) {
	_, err := NewDictBuilder().Put("a", Int(1)).Put("a", Int(2)).Build()
	if !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestDecoderReusableAcrossValues(t *testing.T) {
	d := NewDecoder(strings.NewReader("i1ei2ei3e"))
	var got []int64
	for i := 0; i < 3; i++ {
		v, err := d.ReadValue()
		if err != nil {
			t.Fatal(err)
		}
		n, ok := v.Int()
		if !ok {
			t.Fatal("expected integer")
		}
		got = append(got, n)
	}
	want := []int64{1, 2, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("value %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func mustDict(t *testing.T, kv ...interface{}) Value {
	t.Helper()
	b := NewDictBuilder()
	for i := 0; i < len(kv); i += 2 {
		b.Put(kv[i].(string), kv[i+1].(Value))
	}
	v, err := b.Build()
	if err != nil {
		t.Fatalf("building test dict: %v", err)
	}
	return v
}
