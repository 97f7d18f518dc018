package soundcheck

import (
	"errors"
	"fmt"
	"io"
	"os"

	mp3 "github.com/hajimehoshi/go-mp3"

	"github.com/audiodiag/soundcheck/driver"
)

// mp3 streams always decode to 16-bit little-endian stereo.
const mp3Channels = 2

type mp3Input struct {
	f   *os.File
	dec *mp3.Decoder
}

func openMP3Input(path string) (*mp3Input, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	dec, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()

		return nil, fmt.Errorf("decoding mp3: %w", err)
	}

	return &mp3Input{f: f, dec: dec}, nil
}

func (m *mp3Input) SampleRate() float64 {
	return float64(m.dec.SampleRate())
}

func (m *mp3Input) Validate(rate float64, channels int, sampleType driver.SampleType) error {
	return validateStream(rate, m.SampleRate(), channels, mp3Channels, sampleType, driver.SampleTypeInt16LE)
}

func (m *mp3Input) Read(n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}

	buf := make([]byte, n)
	read, err := io.ReadFull(m.dec, buf)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return buf[:read], nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading mp3 data: %w", err)
	}

	return buf, nil
}

func (m *mp3Input) Close() error {
	return m.f.Close()
}
