package verify

import (
	"github.com/mineroot/torrentcheck/pkg/bitfield"
	"github.com/mineroot/torrentcheck/pkg/event"
	"github.com/mineroot/torrentcheck/pkg/progress"
	"github.com/mineroot/torrentcheck/pkg/selection"
	"github.com/mineroot/torrentcheck/pkg/torrent"
)

// session holds the mutable state of one verification pass.
// Bytes of the torrent stream are fed in order; piece accumulation only starts on a piece boundary,
// so after a drop everything up to the next boundary is discarded.
type session struct {
	torrent     *torrent.File
	plan        *selection.Plan
	reporter    progress.Reporter
	pieceLength int64

	piece []byte
	fill  int
	pos   int64
	zeros []byte

	correct *bitfield.Bitfield
	hashed  int

	// progress of the entry being processed
	expected int64
	reported int64
}

func newSession(t *torrent.File, plan *selection.Plan, reporter progress.Reporter, chunkSize int) *session {
	return &session{
		torrent:     t,
		plan:        plan,
		reporter:    reporter,
		pieceLength: int64(t.PieceLength),
		piece:       make([]byte, t.PieceLength),
		zeros:       make([]byte, chunkSize),
		correct:     bitfield.New(t.PiecesCount()),
	}
}

// feed appends stream bytes at the current position.
func (s *session) feed(p []byte) {
	s.advance(int64(len(p)))
	for len(p) > 0 {
		if s.fill == 0 {
			if gap := s.pos % s.pieceLength; gap != 0 {
				n := s.pieceLength - gap
				if n > int64(len(p)) {
					n = int64(len(p))
				}
				s.pos += n
				p = p[n:]
				continue
			}
		}
		n := copy(s.piece[s.fill:], p)
		s.fill += n
		s.pos += int64(n)
		p = p[n:]
		if s.fill == len(s.piece) {
			s.complete()
		}
	}
}

func (s *session) zeroFill(n int64) {
	for n > 0 {
		chunk := s.zeros
		if int64(len(chunk)) > n {
			chunk = chunk[:n]
		}
		s.feed(chunk)
		n -= int64(len(chunk))
	}
}

// drop skips n stream bytes that are unavailable, the piece being accumulated can't be verified.
func (s *session) drop(n int64) {
	s.fill = 0
	s.pos += n
}

// skip drops the stream bytes [from, to), a piece spanning an empty range stays intact.
func (s *session) skip(from, to int64) {
	if to > from {
		s.drop(to - from)
	}
}

// complete hashes the accumulated piece, pieces nobody asked for are not hashed.
func (s *session) complete() {
	index := int((s.pos - int64(s.fill)) / s.pieceLength)
	if index < s.correct.PiecesCount() && s.plan.WantedPieces.Has(index) {
		if s.torrent.CheckPiece(index, s.piece[:s.fill]) {
			_ = s.correct.Set(index)
		}
		s.hashed++
	}
	s.fill = 0
}

// finish hashes the trailing short piece if it was accumulated entirely.
func (s *session) finish() {
	if s.fill == 0 {
		return
	}
	lastIndex := int((s.pos - int64(s.fill)) / s.pieceLength)
	if s.fill == s.torrent.PieceLen(lastIndex) {
		s.complete()
		return
	}
	s.fill = 0
}

func (s *session) beginEntry(expected int64) {
	s.expected = expected
	s.reported = 0
}

// advance reports progress of the current entry, never beyond what was expected for it.
func (s *session) advance(n int64) {
	if left := s.expected - s.reported; n > left {
		n = left
	}
	if n <= 0 {
		return
	}
	s.reported += n
	s.reporter.Report(event.NewProgressBytes(n))
}

// endEntry reports whatever the entry was expected to contribute but didn't.
func (s *session) endEntry() {
	s.advance(s.expected - s.reported)
}
