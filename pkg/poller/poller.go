// Package poller runs a check on a fixed interval until it reports done,
// a wall-clock deadline passes, or the caller cancels.
//
// Start returns a Handle immediately. Cancel stops the loop and blocks until
// its goroutine has exited, so once Cancel returns no further tick can run.
// Errors returned by the check are logged and the loop keeps going; only the
// done flag ends it early.
package poller

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// Check is called once per tick.
type Check func(ctx context.Context) (done bool, err error)

// Reason tells why a loop stopped.
type Reason int

const (
	// Done means the check reported completion.
	Done Reason = iota + 1
	// DeadlineExceeded means the deadline passed before completion.
	DeadlineExceeded
	// Canceled means the handle or the parent context was canceled.
	Canceled
)

func (r Reason) String() string {
	switch r {
	case Done:
		return "done"
	case DeadlineExceeded:
		return "deadline_exceeded"
	case Canceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Options configures a loop.
type Options struct {
	Interval time.Duration
	Deadline time.Duration
	Clock    clockwork.Clock
	Logger   *slog.Logger
}

// Handle controls a running loop.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
	reason Reason
	ticks  int
}

// Start launches the loop in its own goroutine. The first check runs one
// interval after Start, mirroring a browser setInterval.
func Start(ctx context.Context, opts Options, check Check) *Handle {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go h.run(ctx, opts, check)

	return h
}

func (h *Handle) run(ctx context.Context, opts Options, check Check) {
	defer close(h.done)
	defer h.cancel()

	startedAt := opts.Clock.Now()

	for {
		timer := opts.Clock.NewTimer(opts.Interval)

		select {
		case <-ctx.Done():
			timer.Stop()
			h.reason = Canceled

			return
		case <-timer.Chan():
		}

		// A cancel that raced with the tick wins.
		if ctx.Err() != nil {
			h.reason = Canceled

			return
		}

		if opts.Deadline > 0 && opts.Clock.Since(startedAt) > opts.Deadline {
			h.reason = DeadlineExceeded

			return
		}

		h.ticks++

		done, err := check(ctx)
		if err != nil {
			opts.Logger.Debug("poll check failed, retrying next tick", "tick", h.ticks, "error", err)

			continue
		}

		if done {
			h.reason = Done

			return
		}
	}
}

// Cancel stops the loop and waits for it to exit. Safe to call many times
// and after the loop has already finished.
func (h *Handle) Cancel() {
	h.cancel()
	<-h.done
}

// Wait blocks until the loop exits and reports why.
func (h *Handle) Wait() Reason {
	<-h.done

	return h.reason
}
