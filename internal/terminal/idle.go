package terminal

import (
	"errors"
	"io"
	"sync/atomic"
	"time"
)

// ErrIdleTimeout is returned by IdleReader when a read outlives the
// idle timeout.
var ErrIdleTimeout = errors.New("terminal idle timeout")

// IdleReader bounds every Read on an underlying reader that has no
// deadline support, such as an SSH channel.  When a read takes longer
// than the timeout, onIdle runs; it must make the pending read return,
// typically by closing the stream.  That read then reports
// ErrIdleTimeout.
type IdleReader struct {
	r       io.Reader
	timeout time.Duration
	onIdle  func()
	expired atomic.Bool
}

// NewIdleReader wraps r.  A non-positive timeout disables the bound.
func NewIdleReader(r io.Reader, timeout time.Duration, onIdle func()) *IdleReader {
	return &IdleReader{r: r, timeout: timeout, onIdle: onIdle}
}

func (ir *IdleReader) Read(p []byte) (int, error) {
	if ir.expired.Load() {
		return 0, ErrIdleTimeout
	}
	if ir.timeout <= 0 {
		return ir.r.Read(p)
	}
	t := time.AfterFunc(ir.timeout, func() {
		ir.expired.Store(true)
		if ir.onIdle != nil {
			ir.onIdle()
		}
	})
	n, err := ir.r.Read(p)
	if !t.Stop() && ir.expired.Load() {
		return 0, ErrIdleTimeout
	}
	return n, err
}

// Expired reports whether the idle timeout has fired.
func (ir *IdleReader) Expired() bool { return ir.expired.Load() }
