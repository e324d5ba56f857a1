package report

import (
	"bytes"
	"context"
	"crypto/sha1"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mineroot/torrentcheck/pkg/bitfield"
	"github.com/mineroot/torrentcheck/pkg/selection"
	"github.com/mineroot/torrentcheck/pkg/torrent"
	"github.com/mineroot/torrentcheck/pkg/verify"
)

func newResult(t *testing.T, pieceLength int, entries []torrent.Entry, correct ...int) *verify.Result {
	tf := &torrent.File{Name: "test", PieceLength: pieceLength, Entries: entries, MultiFile: true}
	count := int((tf.TotalLength() + int64(pieceLength) - 1) / int64(pieceLength))
	tf.PieceHashes = make([]torrent.Hash, count)
	plan, err := selection.NewPlan(tf, "/data", selection.All(), selection.DefaultPolicy())
	require.NoError(t, err)
	bf := bitfield.New(count)
	for _, index := range correct {
		require.NoError(t, bf.Set(index))
	}
	return &verify.Result{Torrent: tf, Plan: plan, Correct: bf}
}

func TestPermille(t *testing.T) {
	tests := []struct {
		correct, length int64
		expected        int
	}{
		{0, 0, 1000},
		{10, 10, 1000},
		{0, 10, 0},
		{9_999, 10_000, 999},
		{9_990, 10_000, 999},
		{9_984, 10_000, 998},
		{1, 10_000, 1},
		{10, 10_000, 1},
		{11, 10_000, 1},
		{15, 10_000, 2},
		{5, 10, 500},
		{1, 3, 333},
		{2, 3, 667},
		{1, 8, 125},
		{1, 16, 63},
	}
	for _, test := range tests {
		assert.Equal(t, test.expected, Permille(test.correct, test.length), "%d/%d", test.correct, test.length)
	}
}

func TestLine(t *testing.T) {
	assert.Equal(t, "100.0%  a.bin  (1,234,567/1,234,567)", Line("a.bin", 1_234_567, 1_234_567))
	assert.Equal(t, " 99.9%  dir/b.bin  (999,999/1,000,000)", Line("dir/b.bin", 999_999, 1_000_000))
	assert.Equal(t, "  0.1%  c  (1/1,000,000)", Line("c", 1, 1_000_000))
	assert.Equal(t, "  0.0%  c  (0/1,000)", Line("c", 0, 1_000))
	assert.Equal(t, " 50.0%  c  (8/16)", Line("c", 8, 16))
	assert.Equal(t, "100.0%  empty  (0/0)", Line("empty", 0, 0))
}

func TestCorrect_SharedPiece(t *testing.T) {
	// piece 0 holds all of a and the first 5 bytes of b
	entries := []torrent.Entry{
		{Path: []string{"a"}, Length: 11},
		{Path: []string{"b"}, Length: 10},
	}
	assert.Equal(t, []int64{11, 5}, Correct(newResult(t, 16, entries, 0)))
	assert.Equal(t, []int64{0, 5}, Correct(newResult(t, 16, entries, 1)))
	assert.Equal(t, []int64{11, 10}, Correct(newResult(t, 16, entries, 0, 1)))
	assert.Equal(t, []int64{0, 0}, Correct(newResult(t, 16, entries)))
}

func TestCorrect_SpanningPieceSplitsEvenly(t *testing.T) {
	// a is 5 bytes short of a piece, b is a full piece long
	entries := []torrent.Entry{
		{Path: []string{"a"}, Length: 5},
		{Path: []string{"b"}, Length: 10},
	}
	assert.Equal(t, []int64{5, 5}, Correct(newResult(t, 10, entries, 0)))
}

func TestCorrect_EntryWithinPiece(t *testing.T) {
	entries := []torrent.Entry{
		{Path: []string{"a"}, Length: 3},
		{Path: []string{"empty"}, Length: 0},
		{Path: []string{"b"}, Length: 4},
		{Path: []string{"c"}, Length: 40},
	}
	assert.Equal(t, []int64{3, 0, 4, 9}, Correct(newResult(t, 16, entries, 0)))
	assert.Equal(t, []int64{0, 0, 0, 31}, Correct(newResult(t, 16, entries, 1, 2)))
}

func TestWrite(t *testing.T) {
	entries := []torrent.Entry{
		{Path: []string{"a.bin"}, Length: 20},
		{Path: []string{"_____padding_file_0_"}, Length: 12},
		{Path: []string{"dir", "b.bin"}, Length: 16},
	}
	res := newResult(t, 16, entries, 0, 2)
	var buf bytes.Buffer
	summary, err := Write(&buf, res)
	require.NoError(t, err)

	assert.Equal(t, " 80.0%  a.bin  (16/20)\n100.0%  dir/b.bin  (16/16)\n", buf.String())
	assert.Equal(t, Summary{Files: 2, Complete: 1, Correct: 32, Total: 36}, summary)
}

func TestWrite_AfterVerification(t *testing.T) {
	// pieces of 16 bytes: [a 20   ][b 10][c 18      ]
	entries := []torrent.Entry{
		{Path: []string{"a.bin"}, Length: 20},
		{Path: []string{"b.bin"}, Length: 10},
		{Path: []string{"c.bin"}, Length: 18},
	}
	stream := make([]byte, 48)
	for i := range stream {
		stream[i] = byte(i * 7)
	}
	tf := &torrent.File{Name: "test", PieceLength: 16, Entries: entries, MultiFile: true}
	for begin := 0; begin < len(stream); begin += 16 {
		tf.PieceHashes = append(tf.PieceHashes, sha1.Sum(stream[begin:begin+16]))
	}

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/data/a.bin", stream[:20], 0644))
	require.NoError(t, afero.WriteFile(fs, "/data/c.bin", stream[30:], 0644))

	plan, err := selection.NewPlan(tf, "/data", selection.All(), selection.DefaultPolicy())
	require.NoError(t, err)
	res, err := verify.New(fs).Run(context.Background(), tf, plan)
	require.NoError(t, err)

	var buf bytes.Buffer
	summary, err := Write(&buf, res)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	assert.Equal(t, []string{
		" 80.0%  a.bin  (16/20)",
		"  0.0%  b.bin  (0/10)",
		" 88.9%  c.bin  (16/18)",
	}, lines)
	assert.Equal(t, int64(48), summary.Total)
	assert.Equal(t, 0, summary.Complete)

	require.NoError(t, afero.WriteFile(fs, "/data/b.bin", stream[20:30], 0644))
	res, err = verify.New(fs).Run(context.Background(), tf, plan)
	require.NoError(t, err)
	buf.Reset()
	summary, err = Write(&buf, res)
	require.NoError(t, err)
	assert.Equal(t, Summary{Files: 3, Complete: 3, Correct: 48, Total: 48}, summary)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, assert.AnError
}

func TestWrite_Error(t *testing.T) {
	res := newResult(t, 16, []torrent.Entry{{Path: []string{"a"}, Length: 1}}, 0)
	_, err := Write(failingWriter{}, res)
	assert.ErrorIs(t, err, assert.AnError)
}
