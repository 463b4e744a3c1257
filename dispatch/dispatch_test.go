package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestSerialPreservesOrder(t *testing.T) {
	t.Parallel()
	s := NewSerial("main")
	const n = 200
	var (
		mu  sync.Mutex
		got []int
		wg  sync.WaitGroup
	)
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		if err := s.Dispatch(func() {
			defer wg.Done()
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}); err != nil {
			t.Fatalf("dispatch %d: %v", i, err)
		}
	}
	wg.Wait()
	for i, v := range got {
		if v != i {
			t.Fatalf("out of order at %d: got %d", i, v)
		}
	}
}

func TestSerialNeverOverlaps(t *testing.T) {
	t.Parallel()
	s := NewSerial("main")
	var cur, maxSeen atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		_ = s.Dispatch(func() {
			defer wg.Done()
			c := cur.Add(1)
			if c > maxSeen.Load() {
				maxSeen.Store(c)
			}
			time.Sleep(100 * time.Microsecond)
			cur.Add(-1)
		})
	}
	wg.Wait()
	if maxSeen.Load() != 1 {
		t.Fatalf("serial dispatcher ran %d units at once", maxSeen.Load())
	}
}

func TestSerialCloseRejectsButDrains(t *testing.T) {
	t.Parallel()
	s := NewSerial("main")
	release := make(chan struct{})
	ran := make(chan struct{}, 2)
	_ = s.Dispatch(func() { <-release; ran <- struct{}{} })
	_ = s.Dispatch(func() { ran <- struct{}{} })
	s.Close()
	if err := s.Dispatch(func() {}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	close(release)
	for i := 0; i < 2; i++ {
		select {
		case <-ran:
		case <-time.After(time.Second):
			t.Fatal("queued work did not run after Close")
		}
	}
}

func TestPoolBound(t *testing.T) {
	t.Parallel()
	const size = 4
	p := NewPool("io", size)
	if p.Size() != size {
		t.Fatalf("expected size %d, got %d", size, p.Size())
	}
	var cur, maxSeen atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		_ = p.Dispatch(func() {
			defer wg.Done()
			c := cur.Add(1)
			for {
				m := maxSeen.Load()
				if c <= m || maxSeen.CompareAndSwap(m, c) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			cur.Add(-1)
		})
	}
	wg.Wait()
	if got := maxSeen.Load(); got > size {
		t.Fatalf("observed %d concurrent units, bound is %d", got, size)
	}
}

func TestPoolDefaultSize(t *testing.T) {
	t.Parallel()
	if got := NewPool("io", 0).Size(); got != DefaultIOParallelism {
		t.Fatalf("expected default size %d, got %d", DefaultIOParallelism, got)
	}
}

func TestPoolClose(t *testing.T) {
	t.Parallel()
	p := NewPool("io", 1)
	p.Close()
	if err := p.Dispatch(func() {}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestInlineRunsOnCaller(t *testing.T) {
	t.Parallel()
	d := NewInline("test")
	ran := false
	if err := d.Dispatch(func() { ran = true }); err != nil {
		t.Fatal(err)
	}
	if !ran {
		t.Fatal("inline dispatcher did not run work synchronously")
	}
	d.Close()
	if err := d.Dispatch(func() {}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestCurrentAndHolds(t *testing.T) {
	t.Parallel()
	main := NewSerial("main")
	io := NewPool("io", 1)
	ctx := context.Background()
	if Current(ctx) != nil || NameOf(ctx) != "none" {
		t.Fatal("empty context should carry no dispatcher")
	}
	ctx = WithCurrent(ctx, main)
	ctx = WithCurrent(ctx, io)
	if Current(ctx) != io {
		t.Fatalf("expected io as current, got %v", NameOf(ctx))
	}
	if !Holds(ctx, main) || !Holds(ctx, io) {
		t.Fatal("flow should hold both dispatchers")
	}
	if Holds(ctx, NewSerial("other")) || Holds(ctx, nil) {
		t.Fatal("unrelated dispatcher reported as held")
	}
}
