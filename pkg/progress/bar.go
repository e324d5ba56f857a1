package progress

import (
	"io"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/mineroot/torrentcheck/pkg/event"
)

// Bar renders verification progress of all passes as one byte progress bar.
// Report is safe for concurrent use.
type Bar struct {
	bar  *progressbar.ProgressBar
	ch   chan *event.ProgressBytes
	done chan struct{}
}

func NewBar(w io.Writer, totalBytes int64) *Bar {
	b := &Bar{
		ch:   make(chan *event.ProgressBytes, 1024),
		done: make(chan struct{}),
	}
	b.bar = progressbar.NewOptions64(
		totalBytes,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("verifying"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(120*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
	_ = b.bar.RenderBlank()

	go func() {
		defer close(b.done)
		for p := range b.ch {
			_ = b.bar.Add64(p.Bytes)
		}
		_ = b.bar.Finish()
	}()
	return b
}

func (b *Bar) Report(p *event.ProgressBytes) {
	if p == nil || p.Bytes <= 0 {
		return
	}
	b.ch <- p
}

// Close must be called once, after the last Report.
func (b *Bar) Close() {
	close(b.ch)
	<-b.done
}
