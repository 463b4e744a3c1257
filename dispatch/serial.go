package dispatch

import "sync"

// Serial runs work one unit at a time, in the order it was dispatched.
//
// A single drain goroutine exists only while the queue is non-empty. Work
// never overlaps, which makes Serial suitable for state that must only be
// touched from one place.
type Serial struct {
	name string

	mu      sync.Mutex
	queue   []func()
	running bool
	closed  bool
}

// NewSerial returns an idle serial dispatcher.
func NewSerial(name string) *Serial {
	return &Serial{name: name}
}

func (s *Serial) Name() string { return s.name }

// Dispatch appends fn to the queue and starts a drainer if none is running.
//
//launchlint:ignore raw-go
func (s *Serial) Dispatch(fn func()) error {
	if fn == nil {
		return nil
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.queue = append(s.queue, fn)
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()
	go s.drain()
	return nil
}

func (s *Serial) drain() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.running = false
			s.mu.Unlock()
			return
		}
		fn := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()
		fn()
	}
}

// Pending returns the number of queued units not yet started.
func (s *Serial) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Close rejects further work. Already queued work still runs.
func (s *Serial) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}
