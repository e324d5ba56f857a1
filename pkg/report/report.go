package report

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"github.com/mineroot/torrentcheck/pkg/divide"
	"github.com/mineroot/torrentcheck/pkg/verify"
)

type Summary struct {
	Files    int
	Complete int
	Correct  int64
	Total    int64
}

// Correct returns, per entry, the bytes covered by correct pieces.
// A piece spanning several entries credits each entry with its own part only.
func Correct(res *verify.Result) []int64 {
	entries := res.Plan.Entries
	correct := make([]int64, len(entries))
	first := 0
	pieces := divide.Divide(res.Plan.TotalLength, []int64{int64(res.Plan.PieceLength)})
	for piece := range pieces {
		if piece.Index >= res.Correct.PiecesCount() || !res.Correct.Has(piece.Index) {
			continue
		}
		for first < len(entries) && entries[first].End() <= piece.Begin {
			first++
		}
		for i := first; i < len(entries) && entries[i].Offset < piece.End(); i++ {
			begin, end := entries[i].Offset, entries[i].End()
			if piece.Begin > begin {
				begin = piece.Begin
			}
			if piece.End() < end {
				end = piece.End()
			}
			if end > begin {
				correct[i] += end - begin
			}
		}
	}
	return correct
}

// Permille scales correct/length to 0..1000, 1000 and 0 are only returned when exact.
func Permille(correct, length int64) int {
	switch {
	case correct == length:
		return 1000
	case correct*1000 >= 999*length:
		return 999
	case correct > 0 && correct*1000 <= length:
		return 1
	}
	// round half up
	return int((correct*2000 + length) / (2 * length))
}

func Line(path string, correct, length int64) string {
	p := Permille(correct, length)
	return fmt.Sprintf("%3d.%d%%  %s  (%s/%s)", p/10, p%10, path, humanize.Comma(correct), humanize.Comma(length))
}

// Write prints one line per wanted entry, in torrent order.
func Write(w io.Writer, res *verify.Result) (Summary, error) {
	var summary Summary
	correct := Correct(res)
	for i := range res.Plan.Entries {
		entry := &res.Plan.Entries[i]
		if !entry.Wanted {
			continue
		}
		if _, err := fmt.Fprintln(w, Line(entry.Name(), correct[i], entry.Length)); err != nil {
			return summary, fmt.Errorf("report: %w", err)
		}
		summary.Files++
		summary.Correct += correct[i]
		summary.Total += entry.Length
		if correct[i] == entry.Length {
			summary.Complete++
		}
	}
	return summary, nil
}
