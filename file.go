package soundcheck

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/audiodiag/soundcheck/driver"
)

// InputSource supplies interleaved sample data for the driver's playback
// channels.
type InputSource interface {
	// SampleRate returns the native rate of the file.
	SampleRate() float64

	// Validate checks that the file can feed a stream with the given rate,
	// channel count and sample type.
	Validate(rate float64, channels int, sampleType driver.SampleType) error

	// Read returns up to n bytes of interleaved sample data. It returns a
	// short (possibly empty) slice with a nil error once the file runs out.
	Read(n int) ([]byte, error)

	Close() error
}

// OutputSink records interleaved sample data captured from the driver's
// input channels.
type OutputSink interface {
	Write(p []byte) error
	Close() error
}

// OpenInputFile opens path with the decoder matching its extension.
func OpenInputFile(path string) (InputSource, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return openWavInput(path)
	case ".mp3":
		return openMP3Input(path)
	case ".ogg":
		return openOggInput(path)
	default:
		return nil, fmt.Errorf("unsupported input file extension %q", filepath.Ext(path))
	}
}

// CreateOutputFile creates a file at path that records a stream with the
// given rate, channel count and sample type.
func CreateOutputFile(path string, rate float64, channels int, sampleType driver.SampleType) (OutputSink, error) {
	return createWavOutput(path, rate, channels, sampleType)
}

// validateStream compares the stream parameters negotiated with the driver
// against what a file actually holds.
func validateStream(rate, fileRate float64, channels, fileChannels int, sampleType, fileType driver.SampleType) error {
	if fileRate != rate {
		return fmt.Errorf("expected sample rate %g Hz, file has %g Hz", rate, fileRate)
	}
	if fileChannels != channels {
		return fmt.Errorf("expected %d channels, file has %d", channels, fileChannels)
	}
	if fileType != sampleType {
		return fmt.Errorf("expected sample type %v, file has %v", sampleType, fileType)
	}

	return nil
}
