package id

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateUnique(t *testing.T) {
	gen := NewGenerator()
	assert.NotEqual(t, gen.Generate(), gen.Generate())
}

func TestTypedIDs(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		prefix string
	}{
		{name: "session", id: NewSessionID().String(), prefix: SessionPrefix},
		{name: "execution", id: NewExecutionID().String(), prefix: ExecutionPrefix},
		{name: "request", id: NewRequestID().String(), prefix: RequestPrefix},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, strings.HasPrefix(tt.id, tt.prefix+"_"))
			prefix, _, err := Split(tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.prefix, prefix)
		})
	}
}

func TestSplitRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "nounderscore", "sess_notaulid", "sess_"} {
		_, _, err := Split(in)
		assert.Error(t, err, in)
	}
}

func TestIsValid(t *testing.T) {
	assert.True(t, IsValid(NewGenerator().Generate().String()))
	assert.False(t, IsValid("invalid"))
	assert.False(t, IsValid("zzzzzzzzzzzzzzzzzzzzzzzzzzz"))
}

func TestTimestampUsesGeneratorClock(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	gen := NewGeneratorWithEntropy(bytes.NewReader(bytes.Repeat([]byte{7}, 64)), func() time.Time { return at })

	ts, err := Timestamp(gen.GenerateWithPrefix(SessionPrefix))
	require.NoError(t, err)
	assert.True(t, at.Equal(ts))
}

func TestConcurrentGeneration(t *testing.T) {
	const workers, perWorker = 8, 100

	var (
		mu   sync.Mutex
		seen = make(map[SessionID]struct{})
		wg   sync.WaitGroup
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				sid := NewSessionID()
				mu.Lock()
				seen[sid] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
}

func TestIDsSortInGenerationOrder(t *testing.T) {
	g := NewGenerator()
	prev := g.GenerateWithPrefix(SessionPrefix)
	for i := 0; i < 1000; i++ {
		next := g.GenerateWithPrefix(SessionPrefix)
		require.Less(t, prev, next)
		prev = next
	}
}
