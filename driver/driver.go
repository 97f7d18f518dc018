// Package driver defines the boundary between the soundcheck harness and a
// callback-driven, double-buffered audio driver. All calls are synchronous
// round-trips returning a Status plus out-values; streaming data flows only
// through the callbacks registered at buffer creation.
package driver

// ProtocolVersion is the streaming protocol version the harness speaks.
// It is handed to the driver in Info.ProtocolVersion during Init.
const ProtocolVersion = 2

// Info carries the identity exchanged during Init. The host fills
// ProtocolVersion before the call; the driver fills the rest. On a failed
// Init the driver should describe the reason in ErrorMessage.
type Info struct {
	ProtocolVersion int
	DriverVersion   int
	Name            string
	ErrorMessage    string
}

// ChannelInfo describes one channel as reported by the driver.
type ChannelInfo struct {
	Channel    int
	Input      bool
	Active     bool
	Group      int
	SampleType SampleType
	Name       string
}

// BufferRequest names one channel the host wants streaming buffers for.
type BufferRequest struct {
	Channel int
	Input   bool
}

// BufferInfo is one allocated double-buffer record. The two Buffers slices
// alias driver-owned memory sized frames*SampleSize(type); the host borrows
// them until DisposeBuffers and must never retain them past that point.
type BufferInfo struct {
	Channel int
	Input   bool
	Buffers [2][]byte
}

// Driver is the control surface of an audio driver instance.
//
// The negotiation calls (Init through CreateBuffers) are issued from a single
// controlling goroutine. Once Start has returned, the driver delivers
// Callbacks from goroutines of its own choosing until Stop returns.
type Driver interface {
	// Init prepares the driver instance. info.ProtocolVersion is set by the
	// caller; the driver fills the remaining fields.
	Init(info *Info) Status

	// GetChannels reports how many input and output channels the device has.
	GetChannels() (inputs, outputs int, st Status)

	// GetSampleRate reports the current sample rate in Hz.
	GetSampleRate() (rate float64, st Status)

	// CanSampleRate reports whether the device supports rate. StatusNoClock
	// means the rate is unsupported; it is not a device fault.
	CanSampleRate(rate float64) Status

	// SetSampleRate switches the device to rate.
	SetSampleRate(rate float64) Status

	// GetChannelInfo describes one channel by index and direction.
	GetChannelInfo(channel int, input bool) (ChannelInfo, Status)

	// GetBufferSize reports the supported buffer geometry in frames.
	// Granularity is the step between valid sizes; -1 means powers of two.
	GetBufferSize() (minFrames, maxFrames, preferredFrames, granularity int, st Status)

	// CreateBuffers allocates double buffers of frames frames for every
	// requested channel and registers the callback set for the stream. The
	// returned records are in request order.
	CreateBuffers(requests []BufferRequest, frames int, cb *Callbacks) ([]BufferInfo, Status)

	// DisposeBuffers releases everything CreateBuffers allocated.
	DisposeBuffers() Status

	// GetLatencies reports input and output latency in frames, including
	// the buffer-switch granularity.
	GetLatencies() (inputLatency, outputLatency int, st Status)

	// Start begins streaming: the driver starts cycling double buffers and
	// invoking the registered callbacks.
	Start() Status

	// Stop halts streaming. No callback invocation is in flight once Stop
	// has returned.
	Stop() Status

	// GetSamplePosition reports the stream position in frames and the
	// matching system timestamp in nanoseconds.
	GetSamplePosition() (samples, systemTime int64, st Status)

	// OutputReady tells the driver the host finished filling the output
	// buffers early. Drivers that cannot exploit the hint return
	// StatusNotPresent.
	OutputReady() Status

	// Release tears the instance down. After Release the driver may be
	// initialized again.
	Release()
}
