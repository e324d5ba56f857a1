package progress

import (
	"sync/atomic"

	"github.com/mineroot/torrentcheck/pkg/event"
)

type Reporter interface {
	Report(progress *event.ProgressBytes)
}

// Nop discards progress.
type Nop struct{}

func (Nop) Report(*event.ProgressBytes) {}

// Counter sums reported bytes, it is safe for concurrent use.
type Counter struct {
	total atomic.Int64
}

func (c *Counter) Report(p *event.ProgressBytes) {
	c.total.Add(p.Bytes)
}

func (c *Counter) Total() int64 {
	return c.total.Load()
}
