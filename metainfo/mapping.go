package metainfo

import "strings"

// Range is a half-open byte range [Offset, Offset+Length).
type Range struct {
	Offset int64
	Length int64
}

// End returns Offset+Length.
func (r Range) End() int64 { return r.Offset + r.Length }

// Entry is one piece↔file mapping entry (spec §3.5): the slice of a piece
// that lands in one particular file, and where in that file it lands.
type Entry struct {
	PieceIndex int
	PieceRange Range
	FilePath   string // strings.Join(FileEntry.Path, "/")
	FileRange  Range
}

// Mapping is the full piece↔file index for a torrent, built once by
// sweeping files in order and laying them into fixed-size pieces (spec
// §3.5). It exposes two secondary indices into one shared entry slice
// (spec §9 "cyclic back-references": one list, indices in each direction,
// no parallel ownership).
type Mapping struct {
	entries  []Entry
	byPiece  map[int][]int // piece index -> indices into entries
	byFile   map[string][]int
}

// BuildMapping computes the piece↔file mapping for info.
func BuildMapping(info *InfoSection) *Mapping {
	m := &Mapping{
		byPiece: make(map[int][]int),
		byFile:  make(map[string][]int),
	}

	var pos int64 // cumulative offset across the whole torrent's content
	for _, f := range info.Files {
		path := strings.Join(f.Path, "/")
		var fileOff int64
		fileLen := int64(f.Length)
		for fileOff < fileLen {
			pieceIndex := int(pos / info.PieceLength)
			pieceOff := pos % info.PieceLength
			pieceLen := info.LengthOfPiece(pieceIndex)
			availableInPiece := pieceLen - pieceOff
			remainInFile := fileLen - fileOff
			chunk := availableInPiece
			if remainInFile < chunk {
				chunk = remainInFile
			}
			if chunk <= 0 {
				// Only reachable if pieceLength/pieces disagree with the
				// declared file lengths; stop rather than loop forever.
				break
			}

			idx := len(m.entries)
			m.entries = append(m.entries, Entry{
				PieceIndex: pieceIndex,
				PieceRange: Range{Offset: pieceOff, Length: chunk},
				FilePath:   path,
				FileRange:  Range{Offset: fileOff, Length: chunk},
			})
			m.byPiece[pieceIndex] = append(m.byPiece[pieceIndex], idx)
			m.byFile[path] = append(m.byFile[path], idx)

			pos += chunk
			fileOff += chunk
		}
	}

	return m
}

// ByPiece returns every mapping entry touching piece i, in file order.
func (m *Mapping) ByPiece(i int) []Entry {
	idxs := m.byPiece[i]
	out := make([]Entry, len(idxs))
	for j, idx := range idxs {
		out[j] = m.entries[idx]
	}
	return out
}

// ByFile returns every mapping entry touching the file at path (as
// strings.Join(FileEntry.Path, "/")), in piece order.
func (m *Mapping) ByFile(path string) []Entry {
	idxs := m.byFile[path]
	out := make([]Entry, len(idxs))
	for j, idx := range idxs {
		out[j] = m.entries[idx]
	}
	return out
}

// Entries returns every mapping entry, in sweep order.
func (m *Mapping) Entries() []Entry {
	return m.entries
}
