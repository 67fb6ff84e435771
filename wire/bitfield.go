package wire

import bitmap "github.com/boljen/go-bitmap"

// bitmap.Bitmap indexes bits LSB-first within each byte (index%8 counts up
// from the 0x01 bit). Spec §3.7/§4.4.2 fixes the wire's bit order the other
// way: "the bit for piece p is (byte[p/8] >> (7 - p%8)) & 1", i.e. MSB
// first. bitIndexFor translates a spec-numbered piece index into the
// library's physical bit index so the two conventions land on the same
// byte layout on the wire.
func bitIndexFor(pieceIndex int) int {
	byteIdx := pieceIndex / 8
	bitInByte := 7 - pieceIndex%8
	return byteIdx*8 + bitInByte
}

// NewClaimedPieces allocates a bitmap large enough to hold numPieces bits.
func NewClaimedPieces(numPieces int) *bitmap.Bitmap {
	bm := bitmap.New(numPieces)
	return &bm
}

// GetBit reports whether piece p is set.
func GetBit(bm *bitmap.Bitmap, p int) bool {
	return bm.Get(bitIndexFor(p))
}

// SetBit sets or clears piece p.
func SetBit(bm *bitmap.Bitmap, p int, v bool) {
	bm.Set(bitIndexFor(p), v)
}

// OrInto ORs every set bit of src (holding numPieces meaningful bits) into
// dst, implementing the BitField-message state mutation of spec §4.6.1:
// "BitField(bs): OR bs into claimed-pieces".
func OrInto(dst *bitmap.Bitmap, src *bitmap.Bitmap, numPieces int) {
	for i := 0; i < numPieces; i++ {
		if GetBit(src, i) {
			SetBit(dst, i, true)
		}
	}
}

// decodeBitFieldPayload reads a raw wire BitField payload (spec §4.4.2:
// byte j, bit i means piece 8j+(7-i)) into a claimed-pieces bitmap sized
// for numPieces. Bits beyond numPieces (and bits beyond the payload when
// it is shorter than numPieces) are ignored, matching "decoder tolerates
// trailing zero bits" (spec §4.4.2).
func decodeBitFieldPayload(payload []byte, numPieces int) *bitmap.Bitmap {
	bm := NewClaimedPieces(numPieces)
	limit := numPieces
	if len(payload)*8 < limit {
		limit = len(payload) * 8
	}
	for p := 0; p < limit; p++ {
		byteIdx := p / 8
		bitInByte := 7 - p%8
		if payload[byteIdx]&(1<<uint(bitInByte)) != 0 {
			SetBit(bm, p, true)
		}
	}
	return bm
}

// encodeBitFieldPayload renders a claimed-pieces bitmap back into the raw
// wire byte layout for numPieces bits, zero-padding the trailing bits of
// the last byte per spec §4.4.2 ("encoder produces them as zero").
func encodeBitFieldPayload(bm *bitmap.Bitmap, numPieces int) []byte {
	numBytes := (numPieces + 7) / 8
	out := make([]byte, numBytes)
	for p := 0; p < numPieces; p++ {
		if GetBit(bm, p) {
			byteIdx := p / 8
			bitInByte := 7 - p%8
			out[byteIdx] |= 1 << uint(bitInByte)
		}
	}
	return out
}
