package torrent

import (
	"bufio"
	"bytes"
	"crypto/sha1"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"

	"github.com/mineroot/torrentcheck/pkg/bencode"
)

var ErrMalformed = errors.New("malformed torrent")

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// Entry is a file as declared by the torrent, in stream order.
type Entry struct {
	Path   []string
	Length int64
	// Attr is the raw BEP 47 attribute string, "p" marks a padding file.
	Attr string
}

type File struct {
	TorrentFileName string
	Name            string
	Announce        string
	InfoHash        Hash
	PieceHashes     []Hash
	PieceLength     int
	Entries         []Entry
	MultiFile       bool
	totalLength     int64
}

func Open(fs afero.Fs, torrentFileName string) (*File, error) {
	file, err := fs.Open(torrentFileName)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	torrent, err := Decode(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", torrentFileName, err)
	}
	torrent.TorrentFileName = file.Name()
	return torrent, nil
}

// Decode reads a bencoded torrent, transparently unpacking gzip or zstd compressed input.
func Decode(r io.Reader) (*File, error) {
	r, closeFn, err := decompress(r)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	benType, err := bencode.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	torrent := &File{}
	if err = torrent.unmarshal(benType); err != nil {
		return nil, err
	}
	return torrent, nil
}

func decompress(r io.Reader) (io.Reader, func(), error) {
	reader := bufio.NewReader(r)
	magic, _ := reader.Peek(len(zstdMagic))
	switch {
	case bytes.HasPrefix(magic, gzipMagic):
		gz, err := gzip.NewReader(reader)
		if err != nil {
			return nil, nil, fmt.Errorf("unable to open gzip stream: %w", err)
		}
		return gz, func() { _ = gz.Close() }, nil
	case bytes.HasPrefix(magic, zstdMagic):
		zr, err := zstd.NewReader(reader)
		if err != nil {
			return nil, nil, fmt.Errorf("unable to open zstd stream: %w", err)
		}
		return zr, zr.Close, nil
	}
	return reader, func() {}, nil
}

func (f *File) PiecesCount() int {
	return len(f.PieceHashes)
}

func (f *File) EntriesCount() int {
	return len(f.Entries)
}

func (f *File) TotalLength() int64 {
	if f.totalLength == 0 {
		for _, entry := range f.Entries {
			f.totalLength += entry.Length
		}
	}
	return f.totalLength
}

// PieceLen returns the length of piece index, the last piece may be shorter.
func (f *File) PieceLen(index int) int {
	begin := int64(index) * int64(f.PieceLength)
	remaining := f.TotalLength() - begin
	if remaining <= 0 {
		return 0
	}
	if remaining < int64(f.PieceLength) {
		return int(remaining)
	}
	return f.PieceLength
}

func (f *File) unmarshal(benType bencode.BenType) error {
	if f == nil {
		panic("torrent must be not nil")
	}
	dict, ok := benType.(*bencode.Dictionary)
	if !ok {
		return fmt.Errorf("%w: torrent must be a dictionary", ErrMalformed)
	}

	// announce is absent in trackerless torrents
	if announce, ok := dict.Get("announce").(*bencode.String); ok {
		f.Announce = announce.Value()
	}

	infoDict, ok := dict.Get("info").(*bencode.Dictionary)
	if !ok {
		return fmt.Errorf("%w: info must be a dictionary", ErrMalformed)
	}

	infoEncoded := &bytes.Buffer{}
	if err := infoDict.Encode(infoEncoded); err != nil {
		return fmt.Errorf("unable to encode info: %w", err)
	}
	infoHash := sha1.Sum(infoEncoded.Bytes())

	pieceLength, ok := infoDict.Get("piece length").(*bencode.Integer)
	if !ok || pieceLength.Value() <= 0 {
		return fmt.Errorf("%w: piece length must be a positive integer", ErrMalformed)
	}

	pieces, ok := infoDict.Get("pieces").(*bencode.String)
	if !ok {
		return fmt.Errorf("%w: pieces must be bytes", ErrMalformed)
	}
	piecesBytes := pieces.Bytes()
	if len(piecesBytes)%HashSize != 0 {
		return fmt.Errorf("%w: pieces must be multiple of %d", ErrMalformed, HashSize)
	}
	piecesCount := len(piecesBytes) / HashSize
	pieceHashes := make([]Hash, piecesCount)
	for i := 0; i < piecesCount; i++ {
		offset := i * HashSize
		pieceHashes[i] = (Hash)(piecesBytes[offset : offset+HashSize])
	}

	// filename or dirname depending on mode bellow
	name, ok := infoDict.Get("name").(*bencode.String)
	if !ok {
		return fmt.Errorf("%w: name must be a string", ErrMalformed)
	}

	var entries []Entry
	multiFile := false
	if length, ok := infoDict.Get("length").(*bencode.Integer); ok { // single file mode
		entries = append(entries, Entry{
			Path:   []string{name.Value()},
			Length: length.Value(),
		})
		if attr, ok := infoDict.Get("attr").(*bencode.String); ok {
			entries[0].Attr = attr.Value()
		}
	} else { // multiple file mode
		multiFile = true
		files, ok := infoDict.Get("files").(*bencode.List)
		if !ok {
			return fmt.Errorf("%w: files list doesn't exist", ErrMalformed)
		}
		for _, fileBenType := range files.Value() {
			entry, err := unmarshalEntry(fileBenType)
			if err != nil {
				return err
			}
			entries = append(entries, entry)
		}
	}
	if len(entries) == 0 {
		return fmt.Errorf("%w: empty files list", ErrMalformed)
	}
	for _, entry := range entries {
		if entry.Length < 0 {
			return fmt.Errorf("%w: negative file length", ErrMalformed)
		}
	}

	f.Name = name.Value()
	f.PieceLength = int(pieceLength.Value())
	f.PieceHashes = pieceHashes
	f.InfoHash = infoHash
	f.Entries = entries
	f.MultiFile = multiFile
	return nil
}

func unmarshalEntry(benType bencode.BenType) (Entry, error) {
	fileDict, ok := benType.(*bencode.Dictionary)
	if !ok {
		return Entry{}, fmt.Errorf("%w: files list item isn't a dict", ErrMalformed)
	}
	length, ok := fileDict.Get("length").(*bencode.Integer)
	if !ok {
		return Entry{}, fmt.Errorf("%w: file's length must be an integer", ErrMalformed)
	}
	pathList, ok := fileDict.Get("path").(*bencode.List)
	if !ok {
		return Entry{}, fmt.Errorf("%w: file's path must be a list", ErrMalformed)
	}
	entry := Entry{Length: length.Value(), Path: make([]string, 0, len(pathList.Value()))}
	for _, elem := range pathList.Value() {
		elemStr, ok := elem.(*bencode.String)
		if !ok {
			return Entry{}, fmt.Errorf("%w: file's path elem must be a string", ErrMalformed)
		}
		entry.Path = append(entry.Path, elemStr.Value())
	}
	if attr, ok := fileDict.Get("attr").(*bencode.String); ok {
		entry.Attr = attr.Value()
	}
	return entry, nil
}
