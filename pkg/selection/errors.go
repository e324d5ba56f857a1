package selection

import (
	"errors"
	"fmt"
	"strings"
)

var ErrSelection = errors.New("selection doesn't match torrent")

// Error describes requested paths that do not resolve to the expected torrent entries.
type Error struct {
	Requested int
	Matched   int
	Unmatched []string
}

func (e *Error) Error() string {
	if len(e.Unmatched) == 0 {
		return fmt.Sprintf("%s: %d path(s) requested, %d matched", ErrSelection, e.Requested, e.Matched)
	}
	return fmt.Sprintf("%s: %d path(s) requested, %d matched, not found: %s",
		ErrSelection, e.Requested, e.Matched, strings.Join(e.Unmatched, ", "))
}

func (e *Error) Unwrap() error {
	return ErrSelection
}
