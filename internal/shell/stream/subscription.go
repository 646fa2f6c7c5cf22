package stream

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
)

// Subscription is one consumer's private copy of the stream
type Subscription struct {
	name     string
	maxBytes int
	owner    *Broadcaster

	mu     sync.Mutex
	queue  [][]byte
	size   int
	closed bool
	notify chan struct{}

	dropped atomic.Uint64
}

func newSubscription(name string, maxBytes int, owner *Broadcaster) *Subscription {
	if maxBytes <= 0 {
		maxBytes = 64 * 1024
	}
	return &Subscription{
		name:     name,
		maxBytes: maxBytes,
		owner:    owner,
		notify:   make(chan struct{}, 1),
	}
}

// Name returns the subscriber name
func (s *Subscription) Name() string {
	return s.name
}

// Next blocks until a chunk is available. It returns io.EOF once the stream
// has ended and the queue is drained, or the context error if ctx ends first.
func (s *Subscription) Next(ctx context.Context) ([]byte, error) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			chunk := s.queue[0]
			s.queue[0] = nil
			s.queue = s.queue[1:]
			s.size -= len(chunk)
			s.mu.Unlock()
			return chunk, nil
		}
		if s.closed {
			s.mu.Unlock()
			return nil, io.EOF
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.notify:
		}
	}
}

// Drain discards everything queued and returns the number of bytes dropped
func (s *Subscription) Drain() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.size
	s.queue = nil
	s.size = 0
	return n
}

// Buffered returns the number of unread bytes
func (s *Subscription) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Dropped returns how many chunks were discarded due to overflow
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Closed reports whether the subscription will deliver no new chunks
func (s *Subscription) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close unsubscribes. Queued data stays readable.
func (s *Subscription) Close() {
	if s.owner != nil {
		s.owner.remove(s)
	}
	s.close()
}

// push enqueues a chunk, dropping the oldest chunks while over budget.
// The newest chunk is always kept.
func (s *Subscription) push(chunk []byte) int {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0
	}
	s.queue = append(s.queue, chunk)
	s.size += len(chunk)

	dropped := 0
	for s.size > s.maxBytes && len(s.queue) > 1 {
		s.size -= len(s.queue[0])
		s.queue[0] = nil
		s.queue = s.queue[1:]
		dropped++
	}
	s.mu.Unlock()

	if dropped > 0 {
		s.dropped.Add(uint64(dropped))
	}
	s.wake()
	return dropped
}

func (s *Subscription) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wake()
}

func (s *Subscription) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}
