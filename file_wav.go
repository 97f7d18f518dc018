package soundcheck

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/riff"
	"github.com/go-audio/wav"

	"github.com/audiodiag/soundcheck/driver"
)

// Wave format tags, as stored in the fmt chunk.
const (
	wavFormatPCM   = 1
	wavFormatFloat = 3
)

// wavFileFormat maps a wav fmt chunk to a file format.
func wavFileFormat(format, bits int) (fileFormat, error) {
	switch {
	case format == wavFormatPCM && bits == 16:
		return fileFormat{encodingPCM16, false}, nil
	case format == wavFormatPCM && bits == 24:
		return fileFormat{encodingPCM24, false}, nil
	case format == wavFormatPCM && bits == 32:
		return fileFormat{encodingPCM32, false}, nil
	case format == wavFormatFloat && bits == 32:
		return fileFormat{encodingFloat32, false}, nil
	case format == wavFormatFloat && bits == 64:
		return fileFormat{encodingFloat64, false}, nil
	default:
		return fileFormat{}, fmt.Errorf("unsupported wav encoding (format %d, %d-bit)", format, bits)
	}
}

type wavInput struct {
	f        *os.File
	data     *riff.Chunk
	rate     float64
	channels int
	stype    driver.SampleType
}

func openWavInput(path string) (*wavInput, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		f.Close()

		return nil, fmt.Errorf("%s is not a valid wav file", path)
	}
	if err := dec.FwdToPCM(); err != nil {
		f.Close()

		return nil, fmt.Errorf("locating wav data chunk: %w", err)
	}

	format, err := wavFileFormat(int(dec.WavAudioFormat), int(dec.BitDepth))
	if err != nil {
		f.Close()

		return nil, err
	}
	stype, err := sampleTypeFor(format)
	if err != nil {
		f.Close()

		return nil, err
	}

	return &wavInput{
		f:        f,
		data:     dec.PCMChunk,
		rate:     float64(dec.SampleRate),
		channels: int(dec.NumChans),
		stype:    stype,
	}, nil
}

func (w *wavInput) SampleRate() float64 {
	return w.rate
}

func (w *wavInput) Validate(rate float64, channels int, sampleType driver.SampleType) error {
	return validateStream(rate, w.rate, channels, w.channels, sampleType, w.stype)
}

// remaining reports how many data bytes are left in the chunk. The chunk
// reader itself does not stop at the chunk boundary, so reads are clamped
// here to keep trailing riff chunks out of the sample stream.
func (w *wavInput) remaining() int {
	if w.data.Size < w.data.Pos {
		return 0
	}

	return w.data.Size - w.data.Pos
}

func (w *wavInput) Read(n int) ([]byte, error) {
	if r := w.remaining(); n > r {
		n = r
	}
	if n <= 0 {
		return nil, nil
	}

	buf := make([]byte, n)
	read, err := io.ReadFull(w.data, buf)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return buf[:read], nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading wav data: %w", err)
	}

	return buf, nil
}

func (w *wavInput) Close() error {
	return w.f.Close()
}

type wavOutput struct {
	f        *os.File
	enc      *wav.Encoder
	format   fileFormat
	width    int
	channels int
	rate     int
}

func createWavOutput(path string, rate float64, channels int, sampleType driver.SampleType) (*wavOutput, error) {
	format, err := fileFormatFor(sampleType)
	if err != nil {
		return nil, err
	}
	if format.bigEndian {
		return nil, fmt.Errorf("cannot write big-endian samples (%v) to a wav file", sampleType)
	}

	width, err := sampleWidth(sampleType)
	if err != nil {
		return nil, err
	}

	wavFormat := wavFormatPCM
	if format.encoding == encodingFloat32 || format.encoding == encodingFloat64 {
		wavFormat = wavFormatFloat
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	return &wavOutput{
		f:        f,
		enc:      wav.NewEncoder(f, int(rate), width*8, channels, wavFormat),
		format:   format,
		width:    width,
		channels: channels,
		rate:     int(rate),
	}, nil
}

func (w *wavOutput) Write(p []byte) error {
	if len(p)%w.width != 0 {
		panic(bugf("wav write of %d bytes is not a whole number of %d-byte samples", len(p), w.width))
	}

	switch w.format.encoding {
	case encodingFloat32:
		for i := 0; i+4 <= len(p); i += 4 {
			v := math.Float32frombits(binary.LittleEndian.Uint32(p[i:]))
			if err := w.enc.WriteFrame(v); err != nil {
				return fmt.Errorf("writing wav samples: %w", err)
			}
		}

		return nil
	case encodingFloat64:
		for i := 0; i+8 <= len(p); i += 8 {
			v := math.Float64frombits(binary.LittleEndian.Uint64(p[i:]))
			if err := w.enc.WriteFrame(v); err != nil {
				return fmt.Errorf("writing wav samples: %w", err)
			}
		}

		return nil
	}

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: w.channels, SampleRate: w.rate},
		Data:           bytesToInts(p, w.width),
		SourceBitDepth: w.width * 8,
	}
	if err := w.enc.Write(buf); err != nil {
		return fmt.Errorf("writing wav samples: %w", err)
	}

	return nil
}

// bytesToInts unpacks little-endian signed samples of the given byte width.
func bytesToInts(p []byte, width int) []int {
	out := make([]int, 0, len(p)/width)
	for i := 0; i+width <= len(p); i += width {
		switch width {
		case 2:
			out = append(out, int(int16(binary.LittleEndian.Uint16(p[i:]))))
		case 3:
			v := uint32(p[i]) | uint32(p[i+1])<<8 | uint32(p[i+2])<<16
			if v&0x800000 != 0 {
				v |= 0xFF000000
			}
			out = append(out, int(int32(v)))
		case 4:
			out = append(out, int(int32(binary.LittleEndian.Uint32(p[i:]))))
		}
	}

	return out
}

func (w *wavOutput) Close() error {
	if err := w.enc.Close(); err != nil {
		w.f.Close()

		return fmt.Errorf("finalizing wav file: %w", err)
	}

	return w.f.Close()
}
