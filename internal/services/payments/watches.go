package payments

import (
	"context"
	"sync"

	"github.com/fastprodman/tombola/internal/infra/metrics"
	"github.com/fastprodman/tombola/pkg/poller"
)

// WatchHandle controls one background poll of a transaction.
type WatchHandle struct {
	poll   *poller.Handle
	done   chan struct{}
	reason poller.Reason
}

// Cancel stops the poll and waits for it to exit. The record is left as is.
func (h *WatchHandle) Cancel() {
	h.poll.Cancel()
	<-h.done
}

// Wait blocks until the poll ends. On DeadlineExceeded the record has already
// been marked TIMED_OUT when Wait returns.
func (h *WatchHandle) Wait() poller.Reason {
	<-h.done

	return h.reason
}

type watches struct {
	t      *Tracker
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	active map[string]*WatchHandle
	wg     sync.WaitGroup
}

func newWatches(t *Tracker) *watches {
	ctx, cancel := context.WithCancel(context.Background())

	return &watches{
		t:      t,
		ctx:    ctx,
		cancel: cancel,
		active: make(map[string]*WatchHandle),
	}
}

// Watch polls the provider in the background until the transaction settles,
// fails, or the poll deadline passes, in which case it is marked TIMED_OUT.
// Watching an id that is already watched returns the running handle.
func (t *Tracker) Watch(transactionID string) *WatchHandle {
	w := t.watches

	w.mu.Lock()
	defer w.mu.Unlock()

	if h, ok := w.active[transactionID]; ok {
		return h
	}

	h := &WatchHandle{done: make(chan struct{})}

	h.poll = poller.Start(w.ctx, poller.Options{
		Interval: t.purchase.PollInterval,
		Deadline: t.purchase.PollDeadline,
		Clock:    t.clock,
		Logger:   t.log.With("transaction_id", transactionID),
	}, func(ctx context.Context) (bool, error) {
		_, done, err := t.tick(ctx, transactionID, pathPoll)
		return done, err
	})

	w.active[transactionID] = h
	w.wg.Add(1)
	metrics.WatchStarted()

	go func() {
		defer w.wg.Done()
		defer metrics.WatchFinished()

		h.reason = h.poll.Wait()

		if h.reason == poller.DeadlineExceeded {
			t.expire(context.WithoutCancel(w.ctx), transactionID)
		}

		w.mu.Lock()
		delete(w.active, transactionID)
		w.mu.Unlock()

		close(h.done)
	}()

	return h
}

// ActiveWatches reports how many background polls are running.
func (t *Tracker) ActiveWatches() int {
	t.watches.mu.Lock()
	defer t.watches.mu.Unlock()

	return len(t.watches.active)
}

// Close cancels every background poll and waits for them to exit, or for ctx.
func (t *Tracker) Close(ctx context.Context) error {
	t.watches.cancel()

	done := make(chan struct{})
	go func() {
		t.watches.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
