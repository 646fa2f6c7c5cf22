package marker

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
)

// ErrTimeout is returned alongside a partial Result when the wait's
// deadline expires before the awaited marker appears
var ErrTimeout = errors.New("marker wait timed out")

// Source yields raw stream chunks. Next returns io.EOF once the stream is closed.
type Source interface {
	Next(ctx context.Context) ([]byte, error)
}

// Result is the outcome of one AwaitMarker call
type Result struct {
	// Output is every byte consumed by the wait, markers included
	Output string
	// ExitCode is the code of the last exit marker seen on this parser
	ExitCode int
	// Marker is the awaited marker, zero when Degraded
	Marker Marker
	// Degraded is set when the wait ended without the awaited marker
	Degraded bool
}

// Parser finds markers in a chunked stream. A marker split across reads is
// held back until the rest of it arrives; nothing else is retained between
// calls beyond bytes that follow an awaited marker.
type Parser struct {
	src Source

	mu       sync.Mutex
	pending  []byte
	lastExit int
	eof      bool
}

// NewParser creates a parser over src
func NewParser(src Source) *Parser {
	return &Parser{src: src}
}

// AwaitMarker consumes the stream until a marker of the given kind is seen.
// Markers of other kinds are consumed on the way. If the stream closes first,
// the accumulated output is returned with Degraded set and a nil error. If ctx
// ends first, the partial result is returned with ErrTimeout for an expired
// deadline or the context error otherwise.
func (p *Parser) AwaitMarker(ctx context.Context, kind Kind) (Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out bytes.Buffer
	for {
		if m, ok := p.scan(&out, kind); ok {
			return Result{Output: out.String(), ExitCode: p.lastExit, Marker: m}, nil
		}

		if p.eof {
			out.Write(p.pending)
			p.pending = p.pending[:0]
			return Result{Output: out.String(), ExitCode: p.lastExit, Degraded: true}, nil
		}

		chunk, err := p.src.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				p.eof = true
				continue
			}
			res := Result{Output: out.String(), ExitCode: p.lastExit, Degraded: true}
			if errors.Is(err, context.DeadlineExceeded) {
				return res, ErrTimeout
			}
			return res, err
		}
		p.pending = append(p.pending, chunk...)
	}
}

// Buffered returns and clears bytes read past the last awaited marker
func (p *Parser) Buffered() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	rest := make([]byte, len(p.pending))
	copy(rest, p.pending)
	p.pending = p.pending[:0]
	return rest
}

// Reset discards any held bytes
func (p *Parser) Reset() {
	p.mu.Lock()
	p.pending = p.pending[:0]
	p.mu.Unlock()
}

// LastExitCode returns the code of the most recent exit marker, 0 if none
func (p *Parser) LastExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastExit
}

// scan moves resolved bytes from pending into out. It stops at the first
// marker of the wanted kind, or when only a possible marker prefix remains.
func (p *Parser) scan(out *bytes.Buffer, want Kind) (Marker, bool) {
	for len(p.pending) > 0 {
		start, end, state := locate(p.pending)
		switch state {
		case found:
			m := ParsePayload(p.pending[start+len(Prefix) : end-1])
			out.Write(p.pending[:end])
			p.pending = append(p.pending[:0], p.pending[end:]...)
			if m.Kind == KindExit {
				p.lastExit = m.Code
			}
			if m.Kind == want && want != KindUnknown {
				return m, true
			}
		case partial:
			out.Write(p.pending[:start])
			p.pending = append(p.pending[:0], p.pending[start:]...)
			return Marker{}, false
		default:
			out.Write(p.pending)
			p.pending = p.pending[:0]
		}
	}
	return Marker{}, false
}

type scanState int

const (
	none scanState = iota
	partial
	found
)

// locate finds the first complete marker in b, or the start of a trailing
// run that could still become one. Runs longer than MaxLen are treated as
// ordinary output.
func locate(b []byte) (start, end int, state scanState) {
	offset := 0
	for offset < len(b) {
		i := bytes.Index(b[offset:], Prefix)
		if i < 0 {
			break
		}
		i += offset
		body := b[i+len(Prefix):]
		limit := len(body)
		if limit > maxPayload+1 {
			limit = maxPayload + 1
		}
		if j := bytes.IndexByte(body[:limit], BEL); j >= 0 {
			return i, i + len(Prefix) + j + 1, found
		}
		if len(body) <= maxPayload {
			return i, 0, partial
		}
		offset = i + 1
	}

	// A prefix of Prefix at the very end may complete in the next chunk
	from := len(b) - len(Prefix) + 1
	if from < offset {
		from = offset
	}
	for k := from; k < len(b); k++ {
		if b[k] == ESC && bytes.HasPrefix(Prefix, b[k:]) {
			return k, 0, partial
		}
	}
	return 0, 0, none
}
