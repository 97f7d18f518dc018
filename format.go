package soundcheck

import (
	"fmt"

	"github.com/audiodiag/soundcheck/driver"
)

// fileEncoding enumerates the sample encodings the file adapters understand.
type fileEncoding int

const (
	encodingPCM16 fileEncoding = iota
	encodingPCM24
	encodingPCM32
	encodingFloat32
	encodingFloat64
)

var encodingNames = map[fileEncoding]string{
	encodingPCM16:   "pcm16",
	encodingPCM24:   "pcm24",
	encodingPCM32:   "pcm32",
	encodingFloat32: "float32",
	encodingFloat64: "float64",
}

func (e fileEncoding) String() string {
	if name, ok := encodingNames[e]; ok {
		return name
	}

	return fmt.Sprintf("fileEncoding(%d)", int(e))
}

// fileFormat pairs a sample encoding with its byte order.
type fileFormat struct {
	encoding  fileEncoding
	bigEndian bool
}

func (f fileFormat) String() string {
	order := "le"
	if f.bigEndian {
		order = "be"
	}

	return f.encoding.String() + "/" + order
}

// fileFormatFor maps a driver sample type to the file format holding it.
// The 16-in-32 container types have no file representation and are rejected.
func fileFormatFor(t driver.SampleType) (fileFormat, error) {
	switch t {
	case driver.SampleTypeInt16LE:
		return fileFormat{encodingPCM16, false}, nil
	case driver.SampleTypeInt16BE:
		return fileFormat{encodingPCM16, true}, nil
	case driver.SampleTypeInt24LE:
		return fileFormat{encodingPCM24, false}, nil
	case driver.SampleTypeInt24BE:
		return fileFormat{encodingPCM24, true}, nil
	case driver.SampleTypeInt32LE:
		return fileFormat{encodingPCM32, false}, nil
	case driver.SampleTypeInt32BE:
		return fileFormat{encodingPCM32, true}, nil
	case driver.SampleTypeFloat32LE:
		return fileFormat{encodingFloat32, false}, nil
	case driver.SampleTypeFloat32BE:
		return fileFormat{encodingFloat32, true}, nil
	case driver.SampleTypeFloat64LE:
		return fileFormat{encodingFloat64, false}, nil
	case driver.SampleTypeFloat64BE:
		return fileFormat{encodingFloat64, true}, nil
	default:
		return fileFormat{}, fmt.Errorf("no file format can hold sample type %v", t)
	}
}

// sampleTypeFor maps a file format back to the driver sample type.
//
// Only little-endian encodings are mapped. A file header cannot always
// recover byte order, so the inverse deliberately covers the subset the
// input adapters produce; big-endian formats are rejected outright rather
// than misidentified.
func sampleTypeFor(f fileFormat) (driver.SampleType, error) {
	if f.bigEndian {
		return 0, fmt.Errorf("big-endian sample encoding %v is not supported", f)
	}

	switch f.encoding {
	case encodingPCM16:
		return driver.SampleTypeInt16LE, nil
	case encodingPCM24:
		return driver.SampleTypeInt24LE, nil
	case encodingPCM32:
		return driver.SampleTypeInt32LE, nil
	case encodingFloat32:
		return driver.SampleTypeFloat32LE, nil
	case encodingFloat64:
		return driver.SampleTypeFloat64LE, nil
	default:
		return 0, fmt.Errorf("no sample type matches file format %v", f)
	}
}

// sampleWidth returns the byte width of t. Unlike driver.SampleSize it turns
// an unknown type into an error, since a zero width cannot size buffers.
func sampleWidth(t driver.SampleType) (int, error) {
	if w := driver.SampleSize(t); w > 0 {
		return w, nil
	}

	return 0, fmt.Errorf("unknown byte width for sample type %v", t)
}
