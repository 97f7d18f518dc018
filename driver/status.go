package driver

import "fmt"

// Status is the result code of a driver call.
// These values are part of the driver ABI and must not be renumbered.
type Status int32

const (
	// StatusOK means the call succeeded.
	StatusOK Status = 0

	// StatusNotPresent means no input/output hardware is present or the
	// instance has not been initialized.
	StatusNotPresent Status = -1000
	// StatusHWMalfunction means the hardware failed to respond.
	StatusHWMalfunction Status = -999
	// StatusInvalidParameter means an input value was out of range.
	StatusInvalidParameter Status = -998
	// StatusInvalidMode means the call is not valid in the current state.
	StatusInvalidMode Status = -997
	// StatusSPNotAdvancing means the hardware clock is not advancing, so no
	// sample position can be derived.
	StatusSPNotAdvancing Status = -996
	// StatusNoClock means no clock is available for the requested rate.
	StatusNoClock Status = -995
	// StatusNoMemory means the driver could not allocate the buffers.
	StatusNoMemory Status = -994
)

// StatusNames provides human-readable names for driver status codes.
var StatusNames = map[Status]string{
	StatusOK:               "OK",
	StatusNotPresent:       "NotPresent",
	StatusHWMalfunction:    "HWMalfunction",
	StatusInvalidParameter: "InvalidParameter",
	StatusInvalidMode:      "InvalidMode",
	StatusSPNotAdvancing:   "SPNotAdvancing",
	StatusNoClock:          "NoClock",
	StatusNoMemory:         "NoMemory",
}

func (s Status) String() string {
	if name, ok := StatusNames[s]; ok {
		return name
	}

	return fmt.Sprintf("Status(%d)", int32(s))
}
