package shutdownqueue

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func noop(context.Context) error { return nil }

func TestQueue_NilTaskIgnored(t *testing.T) {
	t.Parallel()

	q := New()
	q.Add("nil", nil)

	if q.Len() != 0 {
		t.Fatalf("nil task should not be queued")
	}

	err := q.Shutdown(t.Context())
	if err != nil {
		t.Fatalf("expected nil; got %v", err)
	}
}

func TestQueue_LIFOOrder(t *testing.T) {
	t.Parallel()

	q := New()

	var order []string

	for _, name := range []string{"db", "watches", "http"} {
		q.Add(name, func(context.Context) error {
			order = append(order, name)

			return nil
		})
	}

	err := q.Shutdown(t.Context())
	if err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	want := "http,watches,db"
	if got := strings.Join(order, ","); got != want {
		t.Fatalf("order: got %s, want %s", got, want)
	}
}

func TestQueue_PanicIsReportedAndDrainContinues(t *testing.T) {
	t.Parallel()

	q := New()

	var ranAfter atomic.Bool

	q.Add("after", func(context.Context) error {
		ranAfter.Store(true)

		return nil
	})
	q.Add("boom", func(context.Context) error { panic("kaput") })

	err := q.Shutdown(t.Context())
	if err == nil {
		t.Fatalf("expected panic error")
	}

	if !strings.Contains(err.Error(), "boom: panic in shutdown task: kaput") {
		t.Fatalf("unexpected error text: %q", err.Error())
	}

	if !ranAfter.Load() {
		t.Fatalf("task after the panic did not run")
	}
}

func TestQueue_ErrorsCarryTaskNames(t *testing.T) {
	t.Parallel()

	q := New()
	errA := errors.New("alpha")
	errB := errors.New("beta")

	q.Add("a", func(context.Context) error { return errA })
	q.Add("b", func(context.Context) error { return errB })

	err := q.Shutdown(t.Context())
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Fatalf("expected both errors; got %v", err)
	}

	if !strings.Contains(err.Error(), "a: alpha") || !strings.Contains(err.Error(), "b: beta") {
		t.Fatalf("task names missing: %q", err.Error())
	}
}

func TestQueue_CancelStopsDrain(t *testing.T) {
	t.Parallel()

	q := New()

	var ranLast atomic.Bool

	q.Add("last", func(context.Context) error {
		ranLast.Store(true)

		return nil
	})

	gateReady := make(chan struct{})
	q.Add("gate", func(ctx context.Context) error {
		close(gateReady)
		<-ctx.Done()

		return nil
	})

	ctx, cancel := context.WithCancel(t.Context())
	errCh := make(chan error, 1)

	go func() { errCh <- q.Shutdown(ctx) }()

	<-gateReady
	cancel()

	err := <-errCh
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled; got %v", err)
	}

	if ranLast.Load() {
		t.Fatalf("task after cancel should not run")
	}
}

func TestQueue_IdempotentAndClosed(t *testing.T) {
	t.Parallel()

	q := New()

	var count atomic.Int32

	q.Add("count", func(context.Context) error {
		count.Add(1)

		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := q.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown #1: %v", err)
	}

	q.Add("late", noop)

	if q.Len() != 0 {
		t.Fatalf("task added after shutdown should be dropped")
	}

	if err := q.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown #2: %v", err)
	}

	if got := count.Load(); got != 1 {
		t.Fatalf("expected one run; got %d", got)
	}
}

//nolint:paralleltest
func TestPackageLevelQueue(t *testing.T) {
	prev := std
	std = New()

	t.Cleanup(func() { std = prev })

	var ran atomic.Bool

	Add("flag", func(context.Context) error {
		ran.Store(true)

		return nil
	})

	if err := Shutdown(t.Context()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	if !ran.Load() {
		t.Fatalf("package-level task did not run")
	}
}
