package verify

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"github.com/mineroot/torrentcheck/pkg/bitfield"
	"github.com/mineroot/torrentcheck/pkg/progress"
	"github.com/mineroot/torrentcheck/pkg/selection"
	"github.com/mineroot/torrentcheck/pkg/storage"
	"github.com/mineroot/torrentcheck/pkg/torrent"
)

const defaultBufferSize = 1 << 20 // 1 MiB

type Behaviour int

const (
	BehaviourSkip Behaviour = iota
	BehaviourZeroFill
	BehaviourRead
)

func (b Behaviour) String() string {
	switch b {
	case BehaviourSkip:
		return "skip"
	case BehaviourZeroFill:
		return "zero-fill"
	case BehaviourRead:
		return "read"
	}
	return "unknown"
}

// EntryResult describes how an entry's bytes were obtained.
type EntryResult struct {
	Behaviour Behaviour
	// Source is the file actually read, it may carry storage.PartSuffix.
	Source string
	Read   int64
	Short  bool
	Long   bool
}

type Result struct {
	Torrent *torrent.File
	Plan    *selection.Plan
	// Correct has a bit set for every piece whose hash matched.
	Correct *bitfield.Bitfield
	Entries []EntryResult
	// Hashed counts pieces that were hashed, matched or not.
	Hashed int
}

type Option func(*Verifier)

func WithReporter(reporter progress.Reporter) Option {
	return func(v *Verifier) {
		v.reporter = reporter
	}
}

// WithBufferSize sets the read chunk size, non-positive sizes are ignored.
func WithBufferSize(size int) Option {
	return func(v *Verifier) {
		if size > 0 {
			v.bufferSize = size
		}
	}
}

type Verifier struct {
	storage    *storage.Storage
	reporter   progress.Reporter
	bufferSize int
}

func New(fs afero.Fs, opts ...Option) *Verifier {
	v := &Verifier{
		storage:    storage.NewStorage(fs),
		reporter:   progress.Nop{},
		bufferSize: defaultBufferSize,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ExpectedProgress returns the total Run reports for plan.
func ExpectedProgress(plan *selection.Plan) int64 {
	var total int64
	for i := range plan.Entries {
		total += expectedProgress(plan, &plan.Entries[i])
	}
	return total
}

func expectedProgress(plan *selection.Plan, entry *selection.Entry) int64 {
	if entry.Wanted {
		return entry.Length
	}
	return plan.WantedBytes(entry.Offset, entry.End())
}

// Run streams every entry of plan in order and hashes the wanted pieces.
// Missing, short or long local files never fail the run, they only leave pieces unverified.
// The only error is a cancelled ctx.
func (v *Verifier) Run(ctx context.Context, t *torrent.File, plan *selection.Plan) (*Result, error) {
	if len(plan.Entries) != t.EntriesCount() {
		return nil, fmt.Errorf("verify: plan has %d entries, torrent has %d", len(plan.Entries), t.EntriesCount())
	}
	s := newSession(t, plan, v.reporter, v.bufferSize)
	res := &Result{
		Torrent: t,
		Plan:    plan,
		Correct: s.correct,
		Entries: make([]EntryResult, len(plan.Entries)),
	}
	l := log.Ctx(ctx)
	for i := range plan.Entries {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("verify: %w", err)
		}
		entry := &plan.Entries[i]
		el := l.With().
			Str("path", entry.Name()).
			Int64("offset", entry.Offset).
			Int64("length", entry.Length).
			Logger()
		entryRes, err := v.processEntry(ctx, &el, s, entry)
		if err != nil {
			return nil, fmt.Errorf("verify: %w", err)
		}
		res.Entries[i] = entryRes
		el.Debug().Stringer("behaviour", entryRes.Behaviour).Int64("read", entryRes.Read).Msg("entry processed")
	}
	s.finish()
	res.Hashed = s.hashed
	l.Debug().
		Str("torrent", t.Name).
		Stringer("infohash", t.InfoHash).
		Int("hashed", res.Hashed).
		Int("correct", res.Correct.Count()).
		Msg("verification pass finished")
	return res, nil
}

func (v *Verifier) processEntry(ctx context.Context, l *zerolog.Logger, s *session, entry *selection.Entry) (EntryResult, error) {
	s.beginEntry(expectedProgress(s.plan, entry))
	defer s.endEntry()

	res := EntryResult{Behaviour: BehaviourSkip}
	switch {
	case entry.Length == 0:
		// contributes no bytes, a piece spanning it stays intact
		return res, nil
	case !entry.Wanted && entry.Filler:
		res.Behaviour = BehaviourZeroFill
		pos := entry.Offset
		for _, span := range s.plan.WantedSpans(entry.Offset, entry.End()) {
			s.skip(pos, span.Begin)
			s.zeroFill(span.Len())
			pos = span.End
		}
		s.skip(pos, entry.End())
		return res, nil
	case entry.Source == "":
		s.drop(entry.Length)
		return res, nil
	case !entry.Wanted && !s.plan.Overlaps(entry.Offset, entry.End()):
		s.drop(entry.Length)
		return res, nil
	}

	src, err := v.storage.Open(entry.Source)
	if err != nil {
		l.Info().Err(err).Msg("no local data")
		s.drop(entry.Length)
		return res, nil
	}
	defer src.Close()

	res.Behaviour = BehaviourRead
	res.Source = src.Path
	if src.Size > entry.Length {
		res.Long = true
		l.Warn().
			Str("source", src.Path).
			Int64("size", src.Size).
			Msgf("%s is longer than declared, extra bytes ignored", src.Path)
	}

	// an unwanted entry only contributes the bytes inside wanted pieces, the rest is never read
	spans := []selection.Span{{Begin: entry.Offset, End: entry.End()}}
	if !entry.Wanted {
		spans = s.plan.WantedSpans(entry.Offset, entry.End())
	}
	pos := entry.Offset
	incomplete := false
	var readErr error
	for _, span := range spans {
		if span.Begin > pos {
			s.skip(pos, span.Begin)
			pos = span.Begin
			if _, readErr = src.Seek(span.Begin-entry.Offset, io.SeekStart); readErr != nil {
				incomplete = true
				break
			}
		}
		var n int64
		n, readErr = v.readInto(ctx, s, src, span.Len())
		res.Read += n
		pos += n
		if readErr != nil || n < span.Len() {
			incomplete = true
			break
		}
	}
	if err = ctx.Err(); err != nil {
		return res, err
	}
	if incomplete || src.Size < entry.Length {
		res.Short = true
		if readErr != nil {
			l.Warn().Err(readErr).Str("source", src.Path).Int64("read", res.Read).Msg("read failed")
		} else {
			l.Info().Str("source", src.Path).Int64("read", res.Read).Msg("file is shorter than declared")
		}
	}
	s.skip(pos, entry.End())
	return res, nil
}

// readInto feeds up to length bytes of r into the session and returns how many were fed.
// Reaching EOF early is not an error.
func (v *Verifier) readInto(ctx context.Context, s *session, r io.Reader, length int64) (int64, error) {
	buf := make([]byte, v.bufferSize)
	var total int64
	for total < length {
		if ctx.Err() != nil {
			return total, nil
		}
		toRead := int64(len(buf))
		if remain := length - total; remain < toRead {
			toRead = remain
		}
		n, err := io.ReadFull(r, buf[:toRead])
		if n > 0 {
			s.feed(buf[:n])
			total += int64(n)
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
