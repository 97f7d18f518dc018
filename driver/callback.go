package driver

import "fmt"

// MessageSelector identifies a host capability or notification queried
// through the Message callback.
// These values are part of the driver ABI and must not be renumbered.
type MessageSelector int32

const (
	// SelectorSupported asks whether the selector passed in value is handled.
	SelectorSupported MessageSelector = 1
	// SelectorEngineVersion asks for the host engine version.
	SelectorEngineVersion MessageSelector = 2
	// SelectorResetRequest asks the host to reset the driver when idle.
	SelectorResetRequest MessageSelector = 3
	// SelectorBufferSizeChange tells the host the preferred size changed.
	SelectorBufferSizeChange MessageSelector = 4
	// SelectorResyncRequest tells the host the driver lost its clock sync.
	SelectorResyncRequest MessageSelector = 5
	// SelectorLatenciesChanged tells the host GetLatencies answers changed.
	SelectorLatenciesChanged MessageSelector = 6
	// SelectorSupportsTimeInfo asks whether the host wants the
	// BufferSwitchTimeInfo callback instead of plain BufferSwitch.
	SelectorSupportsTimeInfo MessageSelector = 7
	// SelectorSupportsTimeCode asks whether the host consumes time code.
	SelectorSupportsTimeCode MessageSelector = 8
)

// MessageSelectorNames provides human-readable names for message selectors.
var MessageSelectorNames = map[MessageSelector]string{
	SelectorSupported:        "Supported",
	SelectorEngineVersion:    "EngineVersion",
	SelectorResetRequest:     "ResetRequest",
	SelectorBufferSizeChange: "BufferSizeChange",
	SelectorResyncRequest:    "ResyncRequest",
	SelectorLatenciesChanged: "LatenciesChanged",
	SelectorSupportsTimeInfo: "SupportsTimeInfo",
	SelectorSupportsTimeCode: "SupportsTimeCode",
}

func (s MessageSelector) String() string {
	if name, ok := MessageSelectorNames[s]; ok {
		return name
	}

	return fmt.Sprintf("MessageSelector(%d)", int32(s))
}

// TimeInfo is the timing snapshot delivered with BufferSwitchTimeInfo.
type TimeInfo struct {
	// SamplePosition is the stream position in frames at the switch.
	SamplePosition int64
	// SystemTime is the matching system timestamp in nanoseconds.
	SystemTime int64
	// SampleRate is the rate the driver is currently running at.
	SampleRate float64
}

// Callbacks is the fixed callback set registered with CreateBuffers. The
// signatures carry no user-context argument; hosts that need per-run state
// must route these through their own indirection.
//
// BufferSwitch and BufferSwitchTimeInfo are invoked from driver-owned
// goroutines; all other fields may be invoked from any goroutine, including
// during negotiation calls.
type Callbacks struct {
	// BufferSwitch signals that the double-buffer half slot is ready for
	// the host. directProcess reports whether the host may process inside
	// the callback rather than deferring.
	BufferSwitch func(slot int32, directProcess bool)

	// BufferSwitchTimeInfo is the timing-aware variant, used instead of
	// BufferSwitch when the host affirms SelectorSupportsTimeInfo. The host
	// may update and return ti for drivers that consume adjusted timing.
	BufferSwitchTimeInfo func(ti *TimeInfo, slot int32, directProcess bool) *TimeInfo

	// SampleRateDidChange reports an external rate change.
	SampleRateDidChange func(rate float64)

	// Message is the generic selector query; the meaning of value depends
	// on the selector. Unhandled selectors return 0.
	Message func(selector MessageSelector, value int32) int32
}
