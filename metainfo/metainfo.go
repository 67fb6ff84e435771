package metainfo

import (
	"crypto/sha1"
	"os"

	"github.com/pkg/errors"

	"github.com/go-torrent/wire/bencode"
	"github.com/go-torrent/wire/internal/xlog"
)

// ErrInvalidMetainfo is returned when a .torrent file is missing a required
// field, has a field of the wrong type, or otherwise fails the structural
// checks of spec §4.2/§7.
var ErrInvalidMetainfo = errors.New("metainfo: invalid torrent metainfo")

var log = xlog.For("metainfo")

// FromBytes parses a bencoded .torrent file: decode into a bencode.Value
// tree first (rather than unmarshaling directly onto a tagged Go struct)
// so the info-hash can be computed by re-encoding the exact parsed
// subtree (spec §4.2 step 3) instead of re-marshaling a Go struct that
// may not round-trip byte-for-byte.
func FromBytes(data []byte) (*TorrentMetaInfo, error) {
	root, err := bencode.DecodeBytes(data)
	if err != nil {
		return nil, errors.Wrap(err, "metainfo: decoding bencode")
	}
	if root.Kind() != bencode.KindDict {
		return nil, errors.Wrap(ErrInvalidMetainfo, "top level is not a dictionary")
	}

	announce, ok := root.DictGet("announce")
	announceStr, aok := announce.Str()
	if !ok || !aok {
		return nil, errors.Wrap(ErrInvalidMetainfo, "missing or invalid \"announce\"")
	}

	m := &TorrentMetaInfo{Announce: announceStr}

	if al, ok := root.DictGet("announce-list"); ok {
		tiers, err := parseAnnounceList(al)
		if err != nil {
			return nil, err
		}
		m.AnnounceList = tiers
	}

	if cd, ok := root.DictGet("creation date"); ok {
		n, ok := cd.Int()
		if !ok {
			return nil, errors.Wrap(ErrInvalidMetainfo, "\"creation date\" is not an integer")
		}
		m.CreationDate = &n
	}
	if c, ok := root.DictGet("comment"); ok {
		s, ok := c.Str()
		if !ok {
			return nil, errors.Wrap(ErrInvalidMetainfo, "\"comment\" is not a string")
		}
		m.Comment = &s
	}
	if cb, ok := root.DictGet("created by"); ok {
		s, ok := cb.Str()
		if !ok {
			return nil, errors.Wrap(ErrInvalidMetainfo, "\"created by\" is not a string")
		}
		m.CreatedBy = &s
	}

	infoVal, ok := root.DictGet("info")
	if !ok || infoVal.Kind() != bencode.KindDict {
		return nil, errors.Wrap(ErrInvalidMetainfo, "missing or invalid \"info\" dictionary")
	}

	info, err := parseInfoSection(infoVal)
	if err != nil {
		return nil, err
	}
	m.Info = *info

	h := sha1.New()
	if err := bencode.WriteValueTo(h, infoVal); err != nil {
		return nil, errors.Wrap(err, "metainfo: hashing info section")
	}
	infoHash, _ := NewHash(h.Sum(nil))
	m.InfoHash = infoHash

	log.Debug().Str("info_hash", m.InfoHash.Hex()).Str("name", m.Info.Name).Msg("parsed torrent metainfo")
	return m, nil
}

// FromFile reads and parses a .torrent file from disk.
func FromFile(path string) (*TorrentMetaInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "metainfo: reading %s", path)
	}
	return FromBytes(data)
}

func parseAnnounceList(v bencode.Value) ([][]string, error) {
	tiersV, ok := v.List()
	if !ok {
		return nil, errors.Wrap(ErrInvalidMetainfo, "\"announce-list\" is not a list")
	}
	tiers := make([][]string, 0, len(tiersV))
	for _, tierV := range tiersV {
		urlsV, ok := tierV.List()
		if !ok {
			return nil, errors.Wrap(ErrInvalidMetainfo, "\"announce-list\" tier is not a list")
		}
		urls := make([]string, 0, len(urlsV))
		for _, u := range urlsV {
			s, ok := u.Str()
			if !ok {
				return nil, errors.Wrap(ErrInvalidMetainfo, "\"announce-list\" URL is not a string")
			}
			urls = append(urls, s)
		}
		tiers = append(tiers, urls)
	}
	return tiers, nil
}

func parseInfoSection(v bencode.Value) (*InfoSection, error) {
	info := &InfoSection{}

	nameV, ok := v.DictGet("name")
	name, nok := nameV.Str()
	if !ok || !nok {
		return nil, errors.Wrap(ErrInvalidMetainfo, "\"info.name\" missing or invalid")
	}
	info.Name = name

	plV, ok := v.DictGet("piece length")
	pieceLength, pok := plV.Int()
	if !ok || !pok || pieceLength <= 0 {
		return nil, errors.Wrap(ErrInvalidMetainfo, "\"info.piece length\" missing or not positive")
	}
	info.PieceLength = pieceLength

	piecesV, ok := v.DictGet("pieces")
	piecesRaw, pok := piecesV.Bytes()
	if !ok || !pok {
		return nil, errors.Wrap(ErrInvalidMetainfo, "\"info.pieces\" missing or invalid")
	}
	if len(piecesRaw)%hashLen != 0 {
		return nil, errors.Wrap(ErrInvalidMetainfo, "\"info.pieces\" length is not a multiple of 20")
	}
	numPieces := len(piecesRaw) / hashLen
	info.Pieces = make([]Hash, numPieces)
	for i := 0; i < numPieces; i++ {
		h, _ := NewHash(piecesRaw[i*hashLen : (i+1)*hashLen])
		info.Pieces[i] = h
	}

	if pv, ok := v.DictGet("private"); ok {
		n, ok := pv.Int()
		if !ok {
			return nil, errors.Wrap(ErrInvalidMetainfo, "\"info.private\" is not an integer")
		}
		info.Private = n != 0
	}

	filesV, hasFiles := v.DictGet("files")
	lengthV, hasLength := v.DictGet("length")

	switch {
	case hasFiles == hasLength:
		return nil, errors.Wrap(ErrInvalidMetainfo, "exactly one of \"info.length\" or \"info.files\" must be present")
	case hasLength:
		length, ok := lengthV.Int()
		if !ok || length < 0 {
			return nil, errors.Wrap(ErrInvalidMetainfo, "\"info.length\" is not a non-negative integer")
		}
		info.Multifile = false
		info.Files = []FileEntry{{Path: []string{name}, Length: uint64(length)}}
	case hasFiles:
		entries, ok := filesV.List()
		if !ok || len(entries) == 0 {
			return nil, errors.Wrap(ErrInvalidMetainfo, "\"info.files\" is not a non-empty list")
		}
		info.Multifile = true
		info.Files = make([]FileEntry, 0, len(entries))
		for _, e := range entries {
			fe, err := parseFileEntry(e)
			if err != nil {
				return nil, err
			}
			info.Files = append(info.Files, *fe)
		}
	}

	return info, nil
}

func parseFileEntry(v bencode.Value) (*FileEntry, error) {
	lengthV, ok := v.DictGet("length")
	length, lok := lengthV.Int()
	if !ok || !lok || length < 0 {
		return nil, errors.Wrap(ErrInvalidMetainfo, "file entry missing valid \"length\"")
	}
	pathV, ok := v.DictGet("path")
	pathList, pok := pathV.List()
	if !ok || !pok || len(pathList) == 0 {
		return nil, errors.Wrap(ErrInvalidMetainfo, "file entry missing non-empty \"path\"")
	}
	path := make([]string, 0, len(pathList))
	for _, p := range pathList {
		s, ok := p.Str()
		if !ok {
			return nil, errors.Wrap(ErrInvalidMetainfo, "file entry \"path\" component is not a string")
		}
		path = append(path, s)
	}
	return &FileEntry{Path: path, Length: uint64(length)}, nil
}
