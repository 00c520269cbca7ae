package session

import (
	"context"
	"sync"
	"time"

	ncerr "github.com/TTStick/Prompt-SSH-AIFakeSSHServer/internal/errors"
)

// Pending is a single-shot signal that the client has asked for a shell
// or exec.  The first Signal or Abort wins; everything after is ignored.
type Pending struct {
	once    sync.Once
	done    chan struct{}
	aborted bool
}

// NewPending returns an unfired signal.
func NewPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

// Signal fires the event.  It reports whether this call was the one
// that fired it.
func (p *Pending) Signal() bool {
	return p.fire(false)
}

// Abort releases waiters without a request, e.g. because the request
// stream ended.  It reports whether this call fired the event.
func (p *Pending) Abort() bool {
	return p.fire(true)
}

func (p *Pending) fire(abort bool) bool {
	fired := false
	p.once.Do(func() {
		p.aborted = abort
		close(p.done)
		fired = true
	})
	return fired
}

// Fired reports whether Signal has been called successfully.
func (p *Pending) Fired() bool {
	select {
	case <-p.done:
		return !p.aborted
	default:
		return false
	}
}

// Wait blocks until the event fires, the timeout passes, or ctx is
// done.  It returns nil after Signal, ErrPeerClosed after Abort and
// ErrRequestTimeout on timeout.
func (p *Pending) Wait(ctx context.Context, timeout time.Duration) error {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-p.done:
		if p.aborted {
			return ncerr.ErrPeerClosed
		}
		return nil
	case <-t.C:
		return ncerr.ErrRequestTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}
