package soundcheck

import "github.com/audiodiag/soundcheck/tracelog"

// Config holds the parameters of one diagnostic run.
type Config struct {
	// InputFile is an optional audio file (wav, mp3 or ogg) streamed to the
	// driver's output channels during the run.
	InputFile string

	// OutputFile is an optional WAV file capturing the driver's input
	// channels during the run.
	OutputFile string

	// SampleRate overrides the stream sample rate in Hz. Zero selects the
	// input file's native rate when an input file is configured, otherwise
	// the rate the driver is already running at.
	SampleRate float64

	// Log receives the run trace. Nil discards it.
	Log *tracelog.Logger
}

func (c Config) logger() *tracelog.Logger {
	if c.Log != nil {
		return c.Log
	}

	return tracelog.Discard()
}
