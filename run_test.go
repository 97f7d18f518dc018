package soundcheck_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiodiag/soundcheck"
	"github.com/audiodiag/soundcheck/driver"
	"github.com/audiodiag/soundcheck/driver/loopback"
)

const (
	loopFrames   = 1024
	loopChannels = 2
	loopWidth    = 2
	blockBytes   = loopFrames * loopChannels * loopWidth
)

func registerLoopback(t *testing.T, cfg loopback.Config) *loopback.Device {
	t.Helper()

	dev := loopback.New(cfg)
	require.NoError(t, driver.Register(dev))
	t.Cleanup(driver.Unregister)

	return dev
}

func TestRunNoDriver(t *testing.T) {
	err := soundcheck.Run(soundcheck.Config{})
	require.EqualError(t, err, "no driver registered")
}

func TestRunLoopback(t *testing.T) {
	dev := registerLoopback(t, loopback.DefaultConfig())

	require.NoError(t, soundcheck.Run(soundcheck.Config{}))
	assert.GreaterOrEqual(t, dev.SwitchCount(), int64(30))
}

// TestRunLoopbackFiles streams a generated file through the loopback device
// and checks the capture: the device replays each played block one cycle
// later, so with double buffering the recording lags the input by exactly
// two blocks, with silence in front.
func TestRunLoopbackFiles(t *testing.T) {
	registerLoopback(t, loopback.DefaultConfig())

	dir := t.TempDir()
	inPath := filepath.Join(dir, "in.wav")
	outPath := filepath.Join(dir, "out.wav")

	sink, err := soundcheck.CreateOutputFile(inPath, 48000, loopChannels, driver.SampleTypeInt16LE)
	require.NoError(t, err)
	for i := 0; i < 30; i++ {
		require.NoError(t, sink.Write(bytes.Repeat([]byte{byte(i + 1)}, blockBytes)))
	}
	require.NoError(t, sink.Close())

	require.NoError(t, soundcheck.Run(soundcheck.Config{
		InputFile:  inPath,
		OutputFile: outPath,
	}))

	src, err := soundcheck.OpenInputFile(outPath)
	require.NoError(t, err)
	defer src.Close()

	require.NoError(t, src.Validate(48000, loopChannels, driver.SampleTypeInt16LE))

	for i := 0; i < 30; i++ {
		block, err := src.Read(blockBytes)
		require.NoError(t, err)
		require.Len(t, block, blockBytes, "capture block %d", i)

		want := make([]byte, blockBytes)
		if i >= 2 {
			want = bytes.Repeat([]byte{byte(i - 1)}, blockBytes)
		}
		require.Equal(t, want, block, "capture block %d", i)
	}

	// Exactly one block per counted switch, nothing more.
	tail, err := src.Read(1)
	require.NoError(t, err)
	assert.Empty(t, tail)
}

func TestRunLoopbackRateConflict(t *testing.T) {
	registerLoopback(t, loopback.DefaultConfig())

	dir := t.TempDir()
	inPath := filepath.Join(dir, "in44k.wav")

	sink, err := soundcheck.CreateOutputFile(inPath, 44100, loopChannels, driver.SampleTypeInt16LE)
	require.NoError(t, err)
	require.NoError(t, sink.Write(make([]byte, blockBytes)))
	require.NoError(t, sink.Close())

	err = soundcheck.Run(soundcheck.Config{InputFile: inPath, SampleRate: 48000})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot input from file")
	assert.Contains(t, err.Error(), "expected sample rate 48000 Hz, file has 44100 Hz")
}

func TestRunLoopbackUnsupportedRate(t *testing.T) {
	registerLoopback(t, loopback.DefaultConfig())

	err := soundcheck.Run(soundcheck.Config{SampleRate: 32000})
	require.EqualError(t, err, "driver does not support 32000 Hz (NoClock)")
}

func TestRunLoopbackChannelMismatch(t *testing.T) {
	cfg := loopback.DefaultConfig()
	cfg.Inputs = 1
	cfg.Outputs = 1
	registerLoopback(t, cfg)

	dir := t.TempDir()
	inPath := filepath.Join(dir, "stereo.wav")

	sink, err := soundcheck.CreateOutputFile(inPath, 48000, 2, driver.SampleTypeInt16LE)
	require.NoError(t, err)
	require.NoError(t, sink.Write(make([]byte, blockBytes)))
	require.NoError(t, sink.Close())

	err = soundcheck.Run(soundcheck.Config{InputFile: inPath})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 1 channels, file has 2")
}
