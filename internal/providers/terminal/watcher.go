package terminal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/shellbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/shellbridge/internal/shell/marker"
	"go.uber.org/zap"
)

// DefaultURLPattern matches Expo development URLs such as exp://192.168.1.5:8081
const DefaultURLPattern = `exp://[A-Za-z0-9.\-]+(?::\d+)?(?:/[^\s\x1b\x07"'<>]*)?`

// DefaultURLBufferBytes caps the watcher's rolling buffer
const DefaultURLBufferBytes = 4096

// trailing bytes that end up glued to a URL in terminal output
const urlTrailingJunk = ".,;:!?)]}>'\"`"

// urlTailMargin is how far from the end of the buffer a match may stop and
// still be extended by the next read, e.g. "exp://host:" before the port
const urlTailMargin = 8

// URLSnapshot is the published URL with its metadata
type URLSnapshot struct {
	URL       string    `json:"url"`
	SessionID string    `json:"session_id,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
	Updates   uint64    `json:"updates"`
}

// DetectedURL is a single overwritable slot; the last write wins and there
// is no history
type DetectedURL struct {
	clock Clock

	mu   sync.RWMutex
	snap URLSnapshot
}

// NewDetectedURL creates an empty slot
func NewDetectedURL(clock Clock) *DetectedURL {
	if clock == nil {
		clock = SystemClock()
	}
	return &DetectedURL{clock: clock}
}

// Set publishes url
func (d *DetectedURL) Set(url, sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.snap.URL = url
	d.snap.SessionID = sessionID
	d.snap.UpdatedAt = d.clock.Now()
	d.snap.Updates++
}

// Get returns the current URL, empty if none was seen
func (d *DetectedURL) Get() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snap.URL
}

// Snapshot returns the URL with its metadata
func (d *DetectedURL) Snapshot() URLSnapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snap
}

// Clear empties the slot; the update counter is kept
func (d *DetectedURL) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.snap.URL = ""
	d.snap.SessionID = ""
	d.snap.UpdatedAt = d.clock.Now()
}

// URLWatcher scans its own copy of a session's output for a URL pattern
type URLWatcher struct {
	src       marker.Source
	slot      *DetectedURL
	pattern   *regexp.Regexp
	maxBytes  int
	sessionID string
	metrics   *monitoring.Metrics
	logger    *zap.Logger

	buf []byte
}

// WatcherConfig holds optional watcher settings
type WatcherConfig struct {
	Pattern   *regexp.Regexp
	MaxBytes  int
	SessionID string
	Metrics   *monitoring.Metrics
	Logger    *zap.Logger
}

// CompileURLPattern compiles pattern, falling back to DefaultURLPattern
// when it is empty
func CompileURLPattern(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		pattern = DefaultURLPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid URL pattern: %w", err)
	}
	return re, nil
}

// NewURLWatcher creates a watcher reading src and publishing into slot
func NewURLWatcher(src marker.Source, slot *DetectedURL, cfg WatcherConfig) *URLWatcher {
	if cfg.Pattern == nil {
		cfg.Pattern = regexp.MustCompile(DefaultURLPattern)
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultURLBufferBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &URLWatcher{
		src:       src,
		slot:      slot,
		pattern:   cfg.Pattern,
		maxBytes:  cfg.MaxBytes,
		sessionID: cfg.SessionID,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
}

// Run reads until the stream closes or ctx ends. It never panics out.
func (w *URLWatcher) Run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("URL watcher panicked", zap.Any("panic", r))
		}
	}()

	for {
		chunk, err := w.src.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				w.scan(nil, true)
			} else if ctx.Err() == nil {
				w.logger.Warn("URL watcher stopped", zap.Error(err))
			}
			return
		}
		w.scan(chunk, false)
	}
}

// scan appends chunk and publishes complete matches. A match followed only
// by a short unterminated tail may still grow, so it waits for more data
// unless this is the final flush.
func (w *URLWatcher) scan(chunk []byte, final bool) {
	w.buf = append(w.buf, chunk...)

	for len(w.buf) > 0 {
		loc := w.pattern.FindIndex(w.buf)
		if loc == nil {
			break
		}
		if !final && mayGrow(w.buf[loc[1]:]) {
			w.buf = w.buf[loc[0]:]
			break
		}
		w.publish(string(w.buf[loc[0]:loc[1]]))
		w.buf = w.buf[loc[1]:]
	}

	if len(w.buf) > w.maxBytes {
		w.buf = w.buf[len(w.buf)-w.maxBytes:]
	}
	// detach from the backing array of earlier chunks
	w.buf = append([]byte(nil), w.buf...)
}

// mayGrow reports whether the bytes after a match could still be the
// middle of the URL once more output arrives
func mayGrow(tail []byte) bool {
	if len(tail) > urlTailMargin {
		return false
	}
	return bytes.IndexFunc(tail, isURLTerminator) < 0
}

func isURLTerminator(r rune) bool {
	switch r {
	case '"', '\'', '<', '>':
		return true
	}
	return r <= ' ' || r == 0x7f
}

func (w *URLWatcher) publish(raw string) {
	url := cleanURL(raw)
	if url == "" {
		return
	}
	w.slot.Set(url, w.sessionID)
	w.metrics.IncURLDetections()
	w.logger.Info("Detected URL", zap.String("url", url), zap.String("session_id", w.sessionID))
}

// cleanURL strips control bytes and trailing punctuation
func cleanURL(raw string) string {
	url := strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, raw)
	return strings.TrimRight(url, urlTrailingJunk)
}
