package soundcheck

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiodiag/soundcheck/driver"
	"github.com/audiodiag/soundcheck/internal/drivertest"
	"github.com/audiodiag/soundcheck/tracelog"
)

// newTestHarness registers the fake, acquires a handle and builds a harness
// around it. The registry slot and handle are returned through t.Cleanup.
func newTestHarness(t *testing.T, d *drivertest.Driver, cfg Config) *harness {
	t.Helper()

	require.NoError(t, driver.Register(d))
	t.Cleanup(driver.Unregister)

	handle, err := driver.Acquire()
	require.NoError(t, err)
	t.Cleanup(handle.Release)

	return &harness{
		cfg:          cfg,
		log:          tracelog.Discard(),
		handle:       handle,
		drv:          handle.Driver(),
		openInput:    OpenInputFile,
		createOutput: CreateOutputFile,
	}
}

// requireOrder asserts that names occur in calls in the given relative
// order, skipping unrelated calls in between.
func requireOrder(t *testing.T, calls []string, names ...string) {
	t.Helper()

	i := 0
	for _, name := range names {
		j := i
		for j < len(calls) && calls[j] != name {
			j++
		}
		if j == len(calls) {
			t.Fatalf("call %q missing after position %d in %v", name, i, calls)
		}
		i = j + 1
	}
}

// memInput is an in-memory InputSource.
type memInput struct {
	rate     float64
	channels int
	stype    driver.SampleType
	data     []byte
	off      int
	closed   bool
}

func (m *memInput) SampleRate() float64 {
	return m.rate
}

func (m *memInput) Validate(rate float64, channels int, sampleType driver.SampleType) error {
	return validateStream(rate, m.rate, channels, m.channels, sampleType, m.stype)
}

func (m *memInput) Read(n int) ([]byte, error) {
	if remaining := len(m.data) - m.off; n > remaining {
		n = remaining
	}
	if n <= 0 {
		return nil, nil
	}

	out := make([]byte, n)
	copy(out, m.data[m.off:])
	m.off += n

	return out, nil
}

func (m *memInput) Close() error {
	m.closed = true

	return nil
}

// memSink is an in-memory OutputSink that can fail on a chosen write.
type memSink struct {
	blocks [][]byte
	writes int
	failAt int // 1-based write index to fail at, 0 for never
	closed bool
}

func (s *memSink) Write(p []byte) error {
	s.writes++
	if s.failAt > 0 && s.writes == s.failAt {
		return errors.New("disk full")
	}

	block := make([]byte, len(p))
	copy(block, p)
	s.blocks = append(s.blocks, block)

	return nil
}

func (s *memSink) Close() error {
	s.closed = true

	return nil
}

func TestRunInitFailure(t *testing.T) {
	fake := drivertest.New()
	fake.InitFunc = func(info *driver.Info) driver.Status {
		info.ErrorMessage = "hardware missing"

		return driver.StatusHWMalfunction
	}

	h := newTestHarness(t, fake, Config{})
	err := h.run()
	require.EqualError(t, err, "Init() returned HWMalfunction: hardware missing")
	assert.Equal(t, []string{"Init"}, fake.Calls())

	// A failed Init abandons the instance, so releasing the handle must not
	// reach the driver.
	h.handle.Release()
	assert.Equal(t, 0, fake.Releases())
}

func TestRunNoChannels(t *testing.T) {
	fake := drivertest.New()
	fake.GetChannelsFunc = func() (int, int, driver.Status) {
		return 0, 0, driver.StatusOK
	}

	h := newTestHarness(t, fake, Config{})
	err := h.run()
	require.EqualError(t, err, "driver reports no channels in either direction")
	assert.Equal(t, []string{"Init", "GetChannels"}, fake.Calls())
}

func TestRunChannelMismatch(t *testing.T) {
	fake := drivertest.New()
	fake.GetChannelInfoFunc = func(channel int, input bool) (driver.ChannelInfo, driver.Status) {
		if input && channel == 1 {
			return driver.ChannelInfo{}, driver.StatusHWMalfunction
		}

		return driver.ChannelInfo{
			Channel:    channel,
			Input:      input,
			SampleType: fake.SampleType,
			Name:       "ch",
		}, driver.StatusOK
	}

	h := newTestHarness(t, fake, Config{})
	err := h.run()
	require.EqualError(t, err, "enumerated 3 of 4 channels")
	assert.NotContains(t, fake.Calls(), "CreateBuffers")
}

func TestRunRateSelection(t *testing.T) {
	t.Run("DriverRate", func(t *testing.T) {
		fake := drivertest.New()
		h := newTestHarness(t, fake, Config{})

		require.NoError(t, h.run())

		// The probe commits every supported candidate, then the stream rate
		// falls back to the rate the driver reported at the start.
		assert.Equal(t, []float64{44100, 48000, 96000, 192000, 48000}, fake.SetRates())
	})

	t.Run("InputFileNative", func(t *testing.T) {
		fake := drivertest.New()
		input := &memInput{rate: 44100, channels: 2, stype: driver.SampleTypeInt16LE}

		h := newTestHarness(t, fake, Config{InputFile: "song.wav"})
		h.openInput = func(path string) (InputSource, error) { return input, nil }

		require.NoError(t, h.run())

		rates := fake.SetRates()
		require.NotEmpty(t, rates)
		assert.Equal(t, 44100.0, rates[len(rates)-1])
		assert.True(t, input.closed)
	})

	t.Run("ExplicitOverride", func(t *testing.T) {
		fake := drivertest.New()
		h := newTestHarness(t, fake, Config{SampleRate: 96000})

		require.NoError(t, h.run())

		rates := fake.SetRates()
		require.NotEmpty(t, rates)
		assert.Equal(t, 96000.0, rates[len(rates)-1])
	})
}

func TestRunRateConflict(t *testing.T) {
	fake := drivertest.New()
	input := &memInput{rate: 44100, channels: 2, stype: driver.SampleTypeInt16LE}

	// An explicit rate wins over the file's native rate, and the file then
	// fails validation against the stream it would have to feed.
	h := newTestHarness(t, fake, Config{InputFile: "song.wav", SampleRate: 48000})
	h.openInput = func(path string) (InputSource, error) { return input, nil }

	err := h.run()
	require.EqualError(t, err, "cannot input from file song.wav: expected sample rate 48000 Hz, file has 44100 Hz")
	assert.NotContains(t, fake.Calls(), "CreateBuffers")
	assert.True(t, input.closed)
}

func TestRunUnsupportedRate(t *testing.T) {
	fake := drivertest.New()
	h := newTestHarness(t, fake, Config{SampleRate: 22050})

	err := h.run()
	require.EqualError(t, err, "driver does not support 22050 Hz (NoClock)")
	assert.NotContains(t, fake.Calls(), "GetBufferSize")
}

func TestRunNoFiles(t *testing.T) {
	fake := drivertest.New()
	h := newTestHarness(t, fake, Config{})

	require.NoError(t, h.run())

	positions := 0
	for _, call := range fake.Calls() {
		if call == "GetSamplePosition" {
			positions++
		}
	}
	assert.Equal(t, 30, positions, "every counted switch polls the stream position")
}

func TestRunFullStream(t *testing.T) {
	fake := drivertest.New()
	input := &memInput{
		rate:     48000,
		channels: 2,
		stype:    driver.SampleTypeInt16LE,
		data:     make([]byte, 6000),
	}
	sink := &memSink{}

	h := newTestHarness(t, fake, Config{InputFile: "in.wav", OutputFile: "out.wav"})
	h.openInput = func(path string) (InputSource, error) { return input, nil }
	h.createOutput = func(path string, rate float64, channels int, sampleType driver.SampleType) (OutputSink, error) {
		assert.Equal(t, 48000.0, rate)
		assert.Equal(t, 2, channels)
		assert.Equal(t, driver.SampleTypeInt16LE, sampleType)

		return sink, nil
	}

	require.NoError(t, h.run())

	// One captured block per counted switch, each a full interleaved buffer
	// (1024 frames, 2 channels, 2 bytes), and nothing after the target.
	require.Len(t, sink.blocks, 30)
	for _, block := range sink.blocks {
		require.Len(t, block, 1024*2*2)
	}
	assert.Equal(t, make([]byte, 1024*2*2), sink.blocks[0], "the fake's capture buffers are silent")

	assert.Equal(t, len(input.data), input.off, "the input file should be consumed to the end")
	assert.True(t, input.closed)
	assert.True(t, sink.closed)

	requireOrder(t, fake.Calls(),
		"Init", "GetChannels", "GetSampleRate", "CanSampleRate", "GetChannelInfo",
		"GetBufferSize", "OutputReady", "CreateBuffers", "GetLatencies",
		"Start", "Stop", "DisposeBuffers")
}

func TestRunSinkFailure(t *testing.T) {
	fake := drivertest.New()
	sink := &memSink{failAt: 5}

	h := newTestHarness(t, fake, Config{OutputFile: "out.wav"})
	h.createOutput = func(path string, rate float64, channels int, sampleType driver.SampleType) (OutputSink, error) {
		return sink, nil
	}

	err := h.run()
	require.EqualError(t, err, "cannot output to file out.wav: disk full")

	assert.Len(t, sink.blocks, 4, "writes stop at the failing switch")
	requireOrder(t, fake.Calls(), "Start", "Stop", "DisposeBuffers")
}

func TestRunStartFailure(t *testing.T) {
	fake := drivertest.New()
	fake.StartFunc = func() driver.Status {
		return driver.StatusHWMalfunction
	}

	h := newTestHarness(t, fake, Config{})
	err := h.run()
	require.EqualError(t, err, "Start() returned HWMalfunction")

	calls := fake.Calls()
	assert.NotContains(t, calls, "Stop")
	assert.Contains(t, calls, "DisposeBuffers")
}

func TestRunStopFailure(t *testing.T) {
	fake := drivertest.New()
	fake.StopFunc = func() driver.Status {
		return driver.StatusHWMalfunction
	}

	h := newTestHarness(t, fake, Config{})
	err := h.run()
	require.EqualError(t, err, "Stop() returned HWMalfunction",
		"a stop failure surfaces even when streaming itself succeeded")
}

func TestRunShortBufferPanics(t *testing.T) {
	fake := drivertest.New()

	// Buffers half the agreed size break the interleave accounting, which is
	// a programming contract violation, not a run failure.
	var cb *driver.Callbacks
	fake.CreateBuffersFunc = func(requests []driver.BufferRequest, frames int, callbacks *driver.Callbacks) ([]driver.BufferInfo, driver.Status) {
		cb = callbacks
		records := make([]driver.BufferInfo, len(requests))
		for i, req := range requests {
			records[i] = driver.BufferInfo{
				Channel: req.Channel,
				Input:   req.Input,
				Buffers: [2][]byte{make([]byte, frames), make([]byte, frames)},
			}
		}

		return records, driver.StatusOK
	}
	fake.StartFunc = func() driver.Status {
		cb.BufferSwitch(0, true)

		return driver.StatusOK
	}

	sink := &memSink{}
	h := newTestHarness(t, fake, Config{OutputFile: "out.wav"})
	h.createOutput = func(path string, rate float64, channels int, sampleType driver.SampleType) (OutputSink, error) {
		return sink, nil
	}

	require.Panics(t, func() {
		_ = h.run()
	})
}
