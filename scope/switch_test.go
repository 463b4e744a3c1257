package scope

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/NetPo4ki/go-launch/dispatch"
)

func TestWithContextReturnsResult(t *testing.T) {
	t.Parallel()
	d := dispatch.NewPool("io", 2)
	got, err := WithContext(context.Background(), d, func(ctx context.Context) (string, error) {
		if dispatch.Current(ctx) != d {
			return "", errors.New("block did not run on the target dispatcher")
		}
		return "ok", nil
	})
	if err != nil || got != "ok" {
		t.Fatalf("got (%q, %v)", got, err)
	}
}

func TestWithContextPropagatesError(t *testing.T) {
	t.Parallel()
	obs := &countObserver{}
	s := New(context.Background(), Supervisor, WithObserver(obs))
	boom := errors.New("boom")
	_, err := WithIO(context.Background(), s, func(context.Context) (int, error) {
		return 0, boom
	})
	if err != boom {
		t.Fatalf("expected the block's error unchanged, got %v", err)
	}
	_ = s.Wait()
	if obs.handlers.Load() != 0 {
		t.Fatal("context switch failures must not reach an error handler")
	}
}

func TestWithContextRepanicsOnCaller(t *testing.T) {
	t.Parallel()
	s := New(context.Background(), Supervisor)
	defer func() {
		if r := recover(); r != "kaboom" {
			t.Fatalf("expected re-raised panic, got %v", r)
		}
		// main must survive the panic
		if v, err := WithMain(context.Background(), s, func(context.Context) (int, error) { return 1, nil }); err != nil || v != 1 {
			t.Fatalf("main unusable after panic: %v", err)
		}
	}()
	_, _ = WithMain(context.Background(), s, func(context.Context) (int, error) {
		panic("kaboom")
	})
	t.Fatal("panic was swallowed")
}

func TestWithMainInsideMainRunsInPlace(t *testing.T) {
	t.Parallel()
	s := New(context.Background(), Supervisor)
	h := s.LaunchMain(func(ctx context.Context) error {
		_, err := WithMain(ctx, s, func(context.Context) (struct{}, error) {
			return struct{}{}, nil
		})
		return err
	}, nil)
	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("WithMain from a Main task deadlocked")
	}
	if err := h.Err(); err != nil {
		t.Fatal(err)
	}
	_ = s.Wait()
}

func TestNestedSwitchBackToHeldMain(t *testing.T) {
	t.Parallel()
	s := New(context.Background(), Supervisor)
	flag := false
	h := s.LaunchMain(func(ctx context.Context) error {
		_, err := WithIO(ctx, s, func(ctx context.Context) (struct{}, error) {
			time.Sleep(5 * time.Millisecond)
			return WithMain(ctx, s, func(context.Context) (struct{}, error) {
				flag = true
				return struct{}{}, nil
			})
		})
		if err != nil {
			return err
		}
		if !flag {
			return errors.New("flag not set")
		}
		return nil
	}, nil)
	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("switching back to a held Main deadlocked")
	}
	if err := h.Err(); err != nil {
		t.Fatal(err)
	}
	_ = s.Wait()
}

func TestWithContextSkipsWhenCancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ran := false
	_, err := WithContext(ctx, dispatch.NewSerial("main"), func(context.Context) (int, error) {
		ran = true
		return 0, nil
	})
	if !errors.Is(err, context.Canceled) || ran {
		t.Fatalf("expected skipped block and context.Canceled, got ran=%v err=%v", ran, err)
	}
}

func TestWithContextRejected(t *testing.T) {
	t.Parallel()
	d := dispatch.NewSerial("closed")
	d.Close()
	_, err := WithContext(context.Background(), d, func(context.Context) (int, error) { return 1, nil })
	if !errors.Is(err, ErrRejected) || !errors.Is(err, dispatch.ErrClosed) {
		t.Fatalf("expected rejection, got %v", err)
	}
}

func TestWithContextAbandonsQueuedBlockOnCancel(t *testing.T) {
	t.Parallel()
	d := dispatch.NewSerial("main")
	gate := make(chan struct{})
	_ = d.Dispatch(func() { <-gate })

	ctx, cancel := context.WithCancel(context.Background())
	var ran atomic.Bool
	result := make(chan error, 1)
	go func() {
		_, err := WithContext(ctx, d, func(context.Context) (int, error) {
			ran.Store(true)
			return 0, nil
		})
		result <- err
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()
	select {
	case err := <-result:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("cancelled caller kept waiting behind a busy dispatcher")
	}

	close(gate)
	flushed := make(chan struct{})
	_ = d.Dispatch(func() { close(flushed) })
	<-flushed
	if ran.Load() {
		t.Fatal("abandoned block still ran")
	}
}

func TestWithContextWaitsForStartedBlock(t *testing.T) {
	t.Parallel()
	d := dispatch.NewPool("io", 1)
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	var finished atomic.Bool
	go func() {
		<-started
		cancel()
	}()
	v, err := WithContext(ctx, d, func(context.Context) (int, error) {
		close(started)
		time.Sleep(20 * time.Millisecond)
		finished.Store(true)
		return 7, nil
	})
	if !finished.Load() || err != nil || v != 7 {
		t.Fatalf("caller returned before the started block finished: v=%d err=%v", v, err)
	}
}
