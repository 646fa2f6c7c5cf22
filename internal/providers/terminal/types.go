package terminal

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionClosed     = errors.New("session is closed")
	ErrNotReady          = errors.New("session is not ready")
	ErrExecutionCanceled = errors.New("execution canceled")
)

// State is the readiness of a session
type State int

const (
	StateUninitialized State = iota
	StateWaitingInteractive
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateWaitingInteractive:
		return "waiting_interactive"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Buffer is a thread-safe ring holding the most recent bytes written
type Buffer struct {
	data []byte
	size int
	head int
	full bool
	mu   sync.RWMutex
}

// NewBuffer creates a ring of the given capacity
func NewBuffer(size int) *Buffer {
	if size <= 0 {
		size = 1
	}
	return &Buffer{
		data: make([]byte, size),
		size: size,
	}
}

// Write appends p, overwriting the oldest bytes when full
func (b *Buffer) Write(p []byte) (n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n = len(p)
	if len(p) >= b.size {
		copy(b.data, p[len(p)-b.size:])
		b.head = 0
		b.full = true
		return n, nil
	}

	first := copy(b.data[b.head:], p)
	if first < len(p) {
		copy(b.data, p[first:])
		b.full = true
	}
	next := b.head + len(p)
	if next >= b.size {
		b.full = true
	}
	b.head = next % b.size
	return n, nil
}

// Snapshot returns a copy of the buffered bytes, oldest first
func (b *Buffer) Snapshot() []byte {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.full {
		out := make([]byte, b.head)
		copy(out, b.data[:b.head])
		return out
	}

	out := make([]byte, b.size)
	n := copy(out, b.data[b.head:])
	copy(out[n:], b.data[:b.head])
	return out
}

// Len returns the number of buffered bytes
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.full {
		return b.size
	}
	return b.head
}

// SessionInfo is the public representation of a session
type SessionInfo struct {
	ID         string    `json:"id"`
	Shell      string    `json:"shell"`
	WorkingDir string    `json:"working_dir"`
	Cols       uint16    `json:"cols"`
	Rows       uint16    `json:"rows"`
	Pid        int       `json:"pid"`
	State      string    `json:"state"`
	StartedAt  time.Time `json:"started_at"`
	Active     bool      `json:"active"`
	Dropped    uint64    `json:"dropped_chunks"`
	Attached   bool      `json:"attached"`
}
