package torrent

import (
	"bytes"
	"crypto/sha1"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mineroot/torrentcheck/pkg/bencode"
)

func encodeTorrent(t *testing.T, info map[bencode.String]bencode.BenType) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	err := bencode.NewDictionary(map[bencode.String]bencode.BenType{
		*bencode.NewString("announce"): bencode.NewString("http://127.0.0.1:8080/announce"),
		*bencode.NewString("info"):     bencode.NewDictionary(info),
	}).Encode(buf)
	require.NoError(t, err)
	return buf.Bytes()
}

func fileDict(length int64, attr string, path ...string) bencode.BenType {
	elems := make([]bencode.BenType, 0, len(path))
	for _, p := range path {
		elems = append(elems, bencode.NewString(p))
	}
	dict := map[bencode.String]bencode.BenType{
		*bencode.NewString("length"): bencode.NewInteger(length),
		*bencode.NewString("path"):   bencode.NewList(elems),
	}
	if attr != "" {
		dict[*bencode.NewString("attr")] = bencode.NewString(attr)
	}
	return bencode.NewDictionary(dict)
}

func multiFileInfo() map[bencode.String]bencode.BenType {
	return map[bencode.String]bencode.BenType{
		*bencode.NewString("name"):         bencode.NewString("cats"),
		*bencode.NewString("piece length"): bencode.NewInteger(16),
		*bencode.NewString("pieces"):       bencode.NewString(strings.Repeat("a", 3*HashSize)),
		*bencode.NewString("files"): bencode.NewList([]bencode.BenType{
			fileDict(20, "", "cat1.png"),
			fileDict(12, "p", ".pad", "12"),
			fileDict(9, "", "sub_dir", "cat2.png"),
		}),
	}
}

func TestDecodeSingleFile(t *testing.T) {
	raw := encodeTorrent(t, map[bencode.String]bencode.BenType{
		*bencode.NewString("name"):         bencode.NewString("debian.iso"),
		*bencode.NewString("length"):       bencode.NewInteger(40),
		*bencode.NewString("piece length"): bencode.NewInteger(32),
		*bencode.NewString("pieces"):       bencode.NewString(strings.Repeat("b", 2*HashSize)),
	})
	torrent, err := Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8080/announce", torrent.Announce)
	assert.Equal(t, "debian.iso", torrent.Name)
	assert.False(t, torrent.MultiFile)
	assert.Equal(t, 32, torrent.PieceLength)
	assert.Equal(t, 2, torrent.PiecesCount())
	require.Equal(t, 1, torrent.EntriesCount())
	assert.Equal(t, []string{"debian.iso"}, torrent.Entries[0].Path)
	assert.Equal(t, int64(40), torrent.TotalLength())
	assert.Equal(t, 32, torrent.PieceLen(0))
	assert.Equal(t, 8, torrent.PieceLen(1))
	assert.Equal(t, 0, torrent.PieceLen(2))
}

func TestDecodeMultipleFiles(t *testing.T) {
	raw := encodeTorrent(t, multiFileInfo())
	torrent, err := Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.True(t, torrent.MultiFile)
	assert.Equal(t, "cats", torrent.Name)
	require.Equal(t, 3, torrent.EntriesCount())
	assert.Equal(t, Entry{Path: []string{"cat1.png"}, Length: 20}, torrent.Entries[0])
	assert.Equal(t, Entry{Path: []string{".pad", "12"}, Length: 12, Attr: "p"}, torrent.Entries[1])
	assert.Equal(t, Entry{Path: []string{"sub_dir", "cat2.png"}, Length: 9}, torrent.Entries[2])
	assert.Equal(t, int64(41), torrent.TotalLength())
	assert.Equal(t, 9, torrent.PieceLen(2))

	info := &bytes.Buffer{}
	require.NoError(t, bencode.NewDictionary(multiFileInfo()).Encode(info))
	assert.Equal(t, Hash(sha1.Sum(info.Bytes())), torrent.InfoHash)
}

func TestDecodeCompressed(t *testing.T) {
	raw := encodeTorrent(t, multiFileInfo())
	expected, err := Decode(bytes.NewReader(raw))
	require.NoError(t, err)

	t.Run("gzip", func(t *testing.T) {
		buf := &bytes.Buffer{}
		w := gzip.NewWriter(buf)
		_, err := w.Write(raw)
		require.NoError(t, err)
		require.NoError(t, w.Close())
		torrent, err := Decode(buf)
		require.NoError(t, err)
		assert.Equal(t, expected, torrent)
	})
	t.Run("zstd", func(t *testing.T) {
		enc, err := zstd.NewWriter(nil)
		require.NoError(t, err)
		compressed := enc.EncodeAll(raw, nil)
		require.NoError(t, enc.Close())
		torrent, err := Decode(bytes.NewReader(compressed))
		require.NoError(t, err)
		assert.Equal(t, expected, torrent)
	})
}

func TestOpen(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/torrents/cats.torrent", encodeTorrent(t, multiFileInfo()), 0644))

	torrent, err := Open(fs, "/torrents/cats.torrent")
	require.NoError(t, err)
	assert.Equal(t, "/torrents/cats.torrent", torrent.TorrentFileName)
	assert.Equal(t, 3, torrent.EntriesCount())

	_, err = Open(fs, "/torrents/missing.torrent")
	assert.Error(t, err)
}

func TestDecodeMalformed(t *testing.T) {
	tests := map[string]func(info map[bencode.String]bencode.BenType){
		"no piece length": func(info map[bencode.String]bencode.BenType) {
			delete(info, *bencode.NewString("piece length"))
		},
		"zero piece length": func(info map[bencode.String]bencode.BenType) {
			info[*bencode.NewString("piece length")] = bencode.NewInteger(0)
		},
		"pieces not multiple of hash size": func(info map[bencode.String]bencode.BenType) {
			info[*bencode.NewString("pieces")] = bencode.NewString("abc")
		},
		"no name": func(info map[bencode.String]bencode.BenType) {
			delete(info, *bencode.NewString("name"))
		},
		"no files": func(info map[bencode.String]bencode.BenType) {
			delete(info, *bencode.NewString("files"))
		},
		"empty files": func(info map[bencode.String]bencode.BenType) {
			info[*bencode.NewString("files")] = bencode.NewList(nil)
		},
		"path elem is not a string": func(info map[bencode.String]bencode.BenType) {
			info[*bencode.NewString("files")] = bencode.NewList([]bencode.BenType{
				bencode.NewDictionary(map[bencode.String]bencode.BenType{
					*bencode.NewString("length"): bencode.NewInteger(1),
					*bencode.NewString("path"):   bencode.NewList([]bencode.BenType{bencode.NewInteger(1)}),
				}),
			})
		},
		"negative length": func(info map[bencode.String]bencode.BenType) {
			info[*bencode.NewString("files")] = bencode.NewList([]bencode.BenType{fileDict(-1, "", "a")})
		},
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			info := multiFileInfo()
			mutate(info)
			_, err := Decode(bytes.NewReader(encodeTorrent(t, info)))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
	t.Run("not bencode", func(t *testing.T) {
		_, err := Decode(strings.NewReader("<html>"))
		assert.ErrorIs(t, err, ErrMalformed)
	})
	t.Run("not a dictionary", func(t *testing.T) {
		_, err := Decode(strings.NewReader("i1e"))
		assert.ErrorIs(t, err, ErrMalformed)
	})
}

func TestHash_String(t *testing.T) {
	h := Hash(sha1.Sum([]byte("abc")))
	assert.Equal(t, "a9993e364706816aba3e25717850c26c9cd0d89d", h.String())
	assert.Equal(t, strings.Repeat("0", 2*HashSize), Hash{}.String())
}
