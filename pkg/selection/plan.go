package selection

import (
	"github.com/mineroot/torrentcheck/pkg/bitfield"
	"github.com/mineroot/torrentcheck/pkg/torrent"
)

type Entry struct {
	torrent.Entry
	// Offset of the entry's first byte in the torrent stream.
	Offset int64
	Filler bool
	Wanted bool
	// Source is the local file to read, empty when the entry has none.
	Source string
}

func (e *Entry) Name() string {
	return JoinPath(e.Path)
}

func (e *Entry) End() int64 {
	return e.Offset + e.Length
}

// Plan is computed once per pass and read-only afterwards.
type Plan struct {
	Entries      []Entry
	WantedPieces *bitfield.Bitfield
	PieceLength  int
	TotalLength  int64
}

// NewPlan decides which entries and pieces of t are verified and where their data lives below root.
// It does no I/O, selection errors are returned as *Error.
func NewPlan(t *torrent.File, root string, sel Selection, policy Policy) (*Plan, error) {
	p := &Plan{
		Entries:      make([]Entry, len(t.Entries)),
		WantedPieces: bitfield.New(t.PiecesCount()),
		PieceLength:  t.PieceLength,
		TotalLength:  t.TotalLength(),
	}
	var offset int64
	for i, e := range t.Entries {
		entry := Entry{
			Entry:  e,
			Offset: offset,
			Filler: policy.IsFiller(e),
		}
		if IsSafePath(e.Path) {
			entry.Source = sourcePath(root, e.Path)
		}
		p.Entries[i] = entry
		offset += e.Length
	}

	var err error
	switch sel.Mode {
	case ModePartial:
		err = p.selectPartial(sel.Paths)
	case ModeRenamed:
		err = p.selectRenamed(sel.Paths, sel.Local)
	default:
		p.selectAll()
	}
	if err != nil {
		return nil, err
	}

	for i := range p.Entries {
		entry := &p.Entries[i]
		if entry.Wanted && entry.Length > 0 {
			p.WantedPieces.SetRange(p.pieceIndex(entry.Offset), p.pieceIndex(entry.End()-1)+1)
		}
	}
	return p, nil
}

func (p *Plan) selectAll() {
	for i := range p.Entries {
		entry := &p.Entries[i]
		entry.Wanted = !entry.Filler && entry.Source != ""
	}
}

func (p *Plan) selectPartial(paths []string) error {
	requested := make(map[string]bool, len(paths))
	for _, path := range paths {
		requested[path] = false
	}
	matched := 0
	for i := range p.Entries {
		entry := &p.Entries[i]
		name := entry.Name()
		if _, ok := requested[name]; !ok || entry.Source == "" {
			continue
		}
		entry.Wanted = true
		requested[name] = true
		matched++
	}
	if matched == len(paths) {
		return nil
	}
	selErr := &Error{Requested: len(paths), Matched: matched}
	seen := make(map[string]bool, len(paths))
	for _, path := range paths {
		if !requested[path] && !seen[path] {
			selErr.Unmatched = append(selErr.Unmatched, path)
		}
		seen[path] = true
	}
	return selErr
}

func (p *Plan) selectRenamed(paths []string, local string) error {
	if len(paths) != 1 {
		return &Error{Requested: len(paths)}
	}
	for i := range p.Entries {
		entry := &p.Entries[i]
		if entry.Name() == paths[0] {
			entry.Wanted = true
			entry.Source = local
			return nil
		}
	}
	return &Error{Requested: 1, Unmatched: paths}
}

// WantedCount returns the number of wanted entries.
func (p *Plan) WantedCount() int {
	count := 0
	for i := range p.Entries {
		if p.Entries[i].Wanted {
			count++
		}
	}
	return count
}

// Overlaps reports whether any byte of [begin, end) falls into a wanted piece.
func (p *Plan) Overlaps(begin, end int64) bool {
	if end <= begin {
		return false
	}
	return p.WantedPieces.HasAny(p.pieceIndex(begin), p.pieceIndex(end-1)+1)
}

// Span is a byte range [Begin, End) of the torrent stream.
type Span struct {
	Begin int64
	End   int64
}

func (s Span) Len() int64 {
	return s.End - s.Begin
}

// WantedSpans returns the parts of [begin, end) that fall into wanted pieces, adjacent wanted pieces merged.
// Every span but one clipped at begin starts on a piece boundary.
func (p *Plan) WantedSpans(begin, end int64) []Span {
	var spans []Span
	pieceLength := int64(p.PieceLength)
	for off := begin; off < end; {
		index := p.pieceIndex(off)
		next := (int64(index) + 1) * pieceLength
		if next > end {
			next = end
		}
		if index < p.WantedPieces.PiecesCount() && p.WantedPieces.Has(index) {
			if n := len(spans); n > 0 && spans[n-1].End == off {
				spans[n-1].End = next
			} else {
				spans = append(spans, Span{Begin: off, End: next})
			}
		}
		off = next
	}
	return spans
}

// WantedBytes returns how many bytes of [begin, end) fall into wanted pieces.
func (p *Plan) WantedBytes(begin, end int64) int64 {
	var total int64
	for _, span := range p.WantedSpans(begin, end) {
		total += span.Len()
	}
	return total
}

func (p *Plan) pieceIndex(off int64) int {
	return int(off / int64(p.PieceLength))
}
