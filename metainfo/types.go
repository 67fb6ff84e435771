package metainfo

// FileEntry describes one file within a torrent's content, relative to the
// torrent's base directory (spec §3.4).
type FileEntry struct {
	// Path is the file's path components, e.g. ["subdir", "file.bin"].
	// For a single-file torrent this is always [Name].
	Path   []string
	Length uint64
}

// InfoSection is the parsed "info" subtree of a .torrent file (spec §3.4).
type InfoSection struct {
	PieceLength int64
	Pieces      []Hash // one entry per num-pieces
	Private     bool
	Name        string

	// Multifile is false for a single-file torrent (BaseDir == ".", Files
	// has exactly one entry with Path == [Name]).
	Multifile bool
	Files     []FileEntry
}

// TotalLength returns the sum of every file's length.
func (info *InfoSection) TotalLength() uint64 {
	var total uint64
	for _, f := range info.Files {
		total += f.Length
	}
	return total
}

// NumPieces returns len(Pieces).
func (info *InfoSection) NumPieces() int {
	return len(info.Pieces)
}

// LengthOfPiece returns the number of content bytes piece i actually
// covers: PieceLength for every piece but the last, and the remainder (or
// a full PieceLength if the content divides evenly) for the last one
// (spec §3.4).
func (info *InfoSection) LengthOfPiece(i int) int64 {
	n := info.NumPieces()
	if i < 0 || i >= n {
		return 0
	}
	if i < n-1 {
		return info.PieceLength
	}
	total := int64(info.TotalLength())
	rem := total % info.PieceLength
	if rem == 0 {
		return info.PieceLength
	}
	return rem
}

// BaseDir returns "." for a single-file torrent and Name for a multi-file
// torrent, per spec §3.4.
func (info *InfoSection) BaseDir() string {
	if info.Multifile {
		return info.Name
	}
	return "."
}

// TorrentMetaInfo is the parsed content of a .torrent file (spec §3.3).
type TorrentMetaInfo struct {
	Announce     string
	AnnounceList [][]string // ordered tiers, each an ordered set of URLs
	CreationDate *int64
	Comment      *string
	CreatedBy    *string
	Info         InfoSection
	InfoHash     Hash
}
