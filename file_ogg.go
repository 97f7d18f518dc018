package soundcheck

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/jfreymuth/oggvorbis"

	"github.com/audiodiag/soundcheck/driver"
)

type oggInput struct {
	f *os.File
	r *oggvorbis.Reader
}

func openOggInput(path string) (*oggInput, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	r, err := oggvorbis.NewReader(f)
	if err != nil {
		f.Close()

		return nil, fmt.Errorf("decoding ogg vorbis: %w", err)
	}

	return &oggInput{f: f, r: r}, nil
}

func (o *oggInput) SampleRate() float64 {
	return float64(o.r.SampleRate())
}

func (o *oggInput) Validate(rate float64, channels int, sampleType driver.SampleType) error {
	return validateStream(rate, o.SampleRate(), channels, o.r.Channels(), sampleType, driver.SampleTypeFloat32LE)
}

func (o *oggInput) Read(n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}

	// The decoder hands out interleaved float32 values, four bytes each.
	buf := make([]float32, n/4)
	total := 0
	for total < len(buf) {
		read, err := o.r.Read(buf[total:])
		total += read
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading ogg vorbis data: %w", err)
		}
	}

	out := make([]byte, 0, total*4)
	for _, s := range buf[:total] {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(s))
	}

	return out, nil
}

func (o *oggInput) Close() error {
	return o.f.Close()
}
