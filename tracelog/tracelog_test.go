package tracelog_test

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/audiodiag/soundcheck/tracelog"
)

// syncBuffer serializes writes so the test can inspect output while the
// logger is used from multiple goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

func TestPrintf(t *testing.T) {
	var buf bytes.Buffer

	log := tracelog.New(&buf)
	log.Printf("negotiated %d channels at %g Hz", 2, 48000.0)

	line := buf.String()
	require.True(t, strings.HasSuffix(line, "negotiated 2 channels at 48000 Hz\n"))

	// Preamble: "HH:MM:SS.mmm " before the message.
	prefix := strings.TrimSuffix(line, "negotiated 2 channels at 48000 Hz\n")
	assert.Len(t, prefix, len("15:04:05.000 "))
}

func TestErrorf(t *testing.T) {
	var buf bytes.Buffer

	log := tracelog.New(&buf)
	log.Errorf("stop returned %s", "InvalidMode")

	assert.Contains(t, buf.String(), "ERROR: stop returned InvalidMode\n")
}

func TestBlank(t *testing.T) {
	var buf bytes.Buffer

	log := tracelog.New(&buf)
	log.Blank()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 1)
	assert.Len(t, lines[0], len("15:04:05.000 "))
}

func TestConcurrentWriters(t *testing.T) {
	var buf syncBuffer

	log := tracelog.New(&buf)

	var g errgroup.Group
	for i := 0; i < 50; i++ {
		g.Go(func() error {
			log.Printf("switch processed")

			return nil
		})
	}
	require.NoError(t, g.Wait())

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 50)
	for _, line := range lines {
		assert.True(t, strings.HasSuffix(line, "switch processed"), "corrupted line: %q", line)
	}
}

func TestDiscard(t *testing.T) {
	log := tracelog.Discard()
	log.Printf("dropped")
	log.Blank()
}
