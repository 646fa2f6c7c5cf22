package stream

import (
	"errors"
	"io"
	"sync"

	"go.uber.org/zap"
)

// DefaultChunkSize is the read size used against the source
const DefaultChunkSize = 4096

// DropFunc is notified when a subscriber discards queued chunks
type DropFunc func(subscriber string, chunks int)

// Broadcaster reads a source and fans every chunk out to its subscribers
type Broadcaster struct {
	src       io.Reader
	chunkSize int
	onDrop    DropFunc
	logger    *zap.Logger

	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
	err    error

	startOnce sync.Once
	done      chan struct{}
}

// Option configures a Broadcaster
type Option func(*Broadcaster)

// WithChunkSize overrides the source read size
func WithChunkSize(n int) Option {
	return func(b *Broadcaster) {
		if n > 0 {
			b.chunkSize = n
		}
	}
}

// WithDropFunc registers a callback for subscriber overflow
func WithDropFunc(fn DropFunc) Option {
	return func(b *Broadcaster) {
		b.onDrop = fn
	}
}

// NewBroadcaster creates a broadcaster over src. Call Start to begin reading.
func NewBroadcaster(src io.Reader, logger *zap.Logger, opts ...Option) *Broadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Broadcaster{
		src:       src,
		chunkSize: DefaultChunkSize,
		logger:    logger,
		subs:      make(map[*Subscription]struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a new consumer holding at most maxBytes of unread data.
// Subscribing after the source ended returns an already closed subscription.
func (b *Broadcaster) Subscribe(name string, maxBytes int) *Subscription {
	s := newSubscription(name, maxBytes, b)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		s.close()
		return s
	}
	b.subs[s] = struct{}{}
	return s
}

// Start launches the read loop in its own goroutine. Subsequent calls are no-ops.
func (b *Broadcaster) Start() {
	b.startOnce.Do(func() {
		go b.run()
	})
}

// Done is closed once the source has ended and every subscriber was closed
func (b *Broadcaster) Done() <-chan struct{} {
	return b.done
}

// Err returns the error that ended the source, nil for a clean EOF
func (b *Broadcaster) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// Close detaches all subscribers without waiting for the source
func (b *Broadcaster) Close() {
	b.shutdown(nil)
}

func (b *Broadcaster) run() {
	buf := make([]byte, b.chunkSize)
	for {
		n, err := b.src.Read(buf)
		if n > 0 {
			b.publish(buf[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = nil
			} else {
				b.logger.Debug("stream source ended", zap.Error(err))
			}
			b.shutdown(err)
			close(b.done)
			return
		}
	}
}

func (b *Broadcaster) publish(p []byte) {
	b.mu.Lock()
	subs := make([]*Subscription, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		chunk := make([]byte, len(p))
		copy(chunk, p)
		if dropped := s.push(chunk); dropped > 0 && b.onDrop != nil {
			b.onDrop(s.name, dropped)
		}
	}
}

func (b *Broadcaster) shutdown(err error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.err = err
	subs := b.subs
	b.subs = make(map[*Subscription]struct{})
	b.mu.Unlock()

	for s := range subs {
		s.close()
	}
}

func (b *Broadcaster) remove(s *Subscription) {
	b.mu.Lock()
	delete(b.subs, s)
	b.mu.Unlock()
}
