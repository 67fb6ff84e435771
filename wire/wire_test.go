package wire

import (
	"bytes"
	"errors"
	"testing"
)

func encodeDecode(t *testing.T, m Message) Message {
	t.Helper()
	var buf bytes.Buffer
	if err := Encode(&buf, m); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return got
}

func TestKeepAliveRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, Message{Type: KeepAlive}); err != nil {
		t.Fatal(err)
	}
	if got, want := buf.Bytes(), []byte{0, 0, 0, 0}; !bytes.Equal(got, want) {
		t.Fatalf("keep-alive bytes = %v, want %v", got, want)
	}
	got, err := Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if got.Type != KeepAlive {
		t.Errorf("decoded type = %v, want KeepAlive", got.Type)
	}
}

func TestStatelessMessageRoundTrip(t *testing.T) {
	for _, typ := range []Type{Choke, Unchoke, Interested, NotInterested} {
		got := encodeDecode(t, Message{Type: typ})
		if got.Type != typ {
			t.Errorf("round trip type = %v, want %v", got.Type, typ)
		}
	}
}

func TestHaveRoundTrip(t *testing.T) {
	got := encodeDecode(t, NewHave(7))
	if got.Type != Have || got.Index != 7 {
		t.Fatalf("got %+v, want Have(7)", got)
	}
}

func TestRequestCancelRoundTrip(t *testing.T) {
	req := encodeDecode(t, NewRequest(1, 2, 3))
	if req.Type != Request || req.Index != 1 || req.Begin != 2 || req.Length != 3 {
		t.Fatalf("got %+v", req)
	}
	can := encodeDecode(t, NewCancel(4, 5, 6))
	if can.Type != Cancel || can.Index != 4 || can.Begin != 5 || can.Length != 6 {
		t.Fatalf("got %+v", can)
	}
}

func TestPieceRoundTrip(t *testing.T) {
	block := []byte("hello block")
	got := encodeDecode(t, NewPiece(9, 16384, block))
	if got.Type != Piece || got.Index != 9 || got.Begin != 16384 {
		t.Fatalf("got %+v", got)
	}
	if !bytes.Equal(got.Block, block) {
		t.Fatalf("block = %q, want %q", got.Block, block)
	}
}

func TestPortRoundTrip(t *testing.T) {
	got := encodeDecode(t, NewPort(6881))
	if got.Type != Port || got.DHTPort != 6881 {
		t.Fatalf("got %+v", got)
	}
}

func TestBitFieldBitOrderMSBFirst(t *testing.T) {
	numPieces := 10
	bm := NewClaimedPieces(numPieces)
	SetBit(bm, 0, true)
	SetBit(bm, 2, true)

	got := encodeDecode(t, NewBitField(bm, numPieces))
	if got.Type != BitField {
		t.Fatalf("got type %v", got.Type)
	}

	// Piece 0 is the MSB of byte 0 (0x80), piece 2 is bit position 5 from
	// the LSB (0x20): 0x80 | 0x20 = 0xA0.
	raw := encodeBitFieldPayload(bm, numPieces)
	if raw[0] != 0xA0 {
		t.Fatalf("wire byte 0 = %#02x, want 0xA0", raw[0])
	}

	for p := 0; p < numPieces; p++ {
		want := p == 0 || p == 2
		if GetBit(got.Bits, p) != want {
			t.Errorf("piece %d claimed = %v, want %v", p, GetBit(got.Bits, p), want)
		}
	}
}

func TestBitFieldThenHaveUnion(t *testing.T) {
	numPieces := 8
	base := decodeBitFieldPayload([]byte{0b10100000}, numPieces) // pieces 0, 2
	claimed := NewClaimedPieces(numPieces)
	OrInto(claimed, base, numPieces)
	SetBit(claimed, 5, true)

	want := map[int]bool{0: true, 2: true, 5: true}
	for p := 0; p < numPieces; p++ {
		if GetBit(claimed, p) != want[p] {
			t.Errorf("piece %d = %v, want %v", p, GetBit(claimed, p), want[p])
		}
	}
}

func TestDecodeUnknownMessageID(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0, 1, 200})
	_, err := Decode(&buf)
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("expected ErrProtocol, got %v", err)
	}
}

func TestDecodeNegativeLength(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	_, err := Decode(&buf)
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("expected ErrProtocol, got %v", err)
	}
}

func TestDecodeTruncated(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0, 5, 4, 0, 0}) // claims 5 bytes, only has 3
	_, err := Decode(&buf)
	if !errors.Is(err, ErrEOF) {
		t.Fatalf("expected ErrEOF, got %v", err)
	}
}

func TestHandshakeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	reserved := [8]byte{}
	infoHash := [20]byte{1, 2, 3}
	if err := EncodeHandshakeStart(&buf, ProtocolName, reserved, infoHash); err != nil {
		t.Fatal(err)
	}
	start, err := DecodeHandshakeStart(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if start.Protocol != ProtocolName {
		t.Errorf("protocol = %q, want %q", start.Protocol, ProtocolName)
	}
	if start.InfoHash != infoHash {
		t.Errorf("info hash = %v, want %v", start.InfoHash, infoHash)
	}

	peerID := [20]byte{9, 9, 9}
	if err := EncodeHandshakeEnd(&buf, peerID); err != nil {
		t.Fatal(err)
	}
	end, err := DecodeHandshakeEnd(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if end.PeerID != peerID {
		t.Errorf("peer id = %v, want %v", end.PeerID, peerID)
	}
}
