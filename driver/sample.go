package driver

import "fmt"

// SampleType identifies the numeric encoding, width and byte order of one
// sample. These values are part of the driver ABI and must not be
// renumbered: big-endian encodings occupy the low block, little-endian
// encodings start at 16, and the 16-valid-bits-in-32 container variants sit
// at 8 and 24.
type SampleType int32

const (
	SampleTypeInt16BE   SampleType = 0
	SampleTypeInt24BE   SampleType = 1
	SampleTypeInt32BE   SampleType = 2
	SampleTypeFloat32BE SampleType = 3
	SampleTypeFloat64BE SampleType = 4
	SampleTypeInt32BE16 SampleType = 8

	SampleTypeInt16LE   SampleType = 16
	SampleTypeInt24LE   SampleType = 17
	SampleTypeInt32LE   SampleType = 18
	SampleTypeFloat32LE SampleType = 19
	SampleTypeFloat64LE SampleType = 20
	SampleTypeInt32LE16 SampleType = 24
)

// SampleTypeNames provides human-readable names for sample types.
var SampleTypeNames = map[SampleType]string{
	SampleTypeInt16BE:   "Int16BE",
	SampleTypeInt24BE:   "Int24BE",
	SampleTypeInt32BE:   "Int32BE",
	SampleTypeFloat32BE: "Float32BE",
	SampleTypeFloat64BE: "Float64BE",
	SampleTypeInt32BE16: "Int32BE16",
	SampleTypeInt16LE:   "Int16LE",
	SampleTypeInt24LE:   "Int24LE",
	SampleTypeInt32LE:   "Int32LE",
	SampleTypeFloat32LE: "Float32LE",
	SampleTypeFloat64LE: "Float64LE",
	SampleTypeInt32LE16: "Int32LE16",
}

func (t SampleType) String() string {
	if name, ok := SampleTypeNames[t]; ok {
		return name
	}

	return fmt.Sprintf("SampleType(%d)", int32(t))
}

// SampleSize returns the number of bytes one sample of type t occupies in a
// streaming buffer, or 0 if the type is unknown. The 16-in-32 container
// variants occupy the full 32-bit container.
func SampleSize(t SampleType) int {
	switch t {
	case SampleTypeFloat64LE, SampleTypeFloat64BE:
		return 8
	case SampleTypeInt32LE, SampleTypeInt32BE,
		SampleTypeFloat32LE, SampleTypeFloat32BE,
		SampleTypeInt32LE16, SampleTypeInt32BE16:
		return 4
	case SampleTypeInt24LE, SampleTypeInt24BE:
		return 3
	case SampleTypeInt16LE, SampleTypeInt16BE:
		return 2
	default:
		return 0
	}
}
