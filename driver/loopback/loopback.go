// Package loopback implements an in-process virtual audio driver. The device
// cycles a double buffer from its own goroutine and routes every output
// block back into the input buffers of the following cycle, so captured
// audio deterministically replays what the host played one block earlier.
// With no output channels configured, the inputs carry a byte ramp instead.
package loopback

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/audiodiag/soundcheck/driver"
	"github.com/audiodiag/soundcheck/tracelog"
)

// driverVersion is reported through Init.
const driverVersion = 1

// Device states. The negotiation calls move the device strictly forward;
// Release resets to created.
const (
	stateCreated = iota
	stateInitialized
	statePrepared
	stateRunning
)

// Config describes the virtual device geometry. Inputs and Outputs are taken
// as given (zero means no channels in that direction); for the remaining
// fields the zero value selects the DefaultConfig value.
type Config struct {
	Inputs  int
	Outputs int

	// Rates the device accepts and the rate it starts at.
	Rates       []float64
	InitialRate float64

	// SampleType of every channel.
	SampleType driver.SampleType

	// Buffer geometry in frames. Granularity is the step between valid
	// sizes, or -1 for powers of two.
	MinFrames       int
	MaxFrames       int
	PreferredFrames int
	Granularity     int

	// SwitchInterval is the pause between buffer switches. Zero delivers
	// switches back to back, which is what tests want.
	SwitchInterval time.Duration

	Log *tracelog.Logger
}

// DefaultConfig returns the stereo 48 kHz geometry the soundcheck CLI runs
// against.
func DefaultConfig() Config {
	return Config{
		Inputs:          2,
		Outputs:         2,
		Rates:           []float64{44100, 48000, 96000, 192000},
		InitialRate:     48000,
		SampleType:      driver.SampleTypeInt16LE,
		MinFrames:       64,
		MaxFrames:       8192,
		PreferredFrames: 1024,
		Granularity:     64,
		SwitchInterval:  time.Millisecond,
	}
}

// Device is a virtual loopback audio driver.
type Device struct {
	cfg Config
	log *tracelog.Logger

	mu          sync.Mutex
	state       int
	currentRate float64
	frames      int
	cb          *driver.Callbacks
	buffers     []driver.BufferInfo
	useTimeInfo bool
	stop        chan struct{}
	wg          sync.WaitGroup

	position atomic.Int64
	switches atomic.Int64
}

// New returns an uninitialized Device with the given geometry. Zero-valued
// rate, sample-type and buffer fields fall back to DefaultConfig.
func New(cfg Config) *Device {
	def := DefaultConfig()
	if len(cfg.Rates) == 0 {
		cfg.Rates = def.Rates
	}
	if cfg.InitialRate == 0 {
		cfg.InitialRate = def.InitialRate
	}
	if cfg.MinFrames == 0 {
		cfg.MinFrames = def.MinFrames
	}
	if cfg.MaxFrames == 0 {
		cfg.MaxFrames = def.MaxFrames
	}
	if cfg.PreferredFrames == 0 {
		cfg.PreferredFrames = def.PreferredFrames
	}
	if cfg.Granularity == 0 {
		cfg.Granularity = def.Granularity
	}
	if cfg.Log == nil {
		cfg.Log = tracelog.Discard()
	}

	return &Device{cfg: cfg, log: cfg.Log}
}

// SwitchCount reports how many buffer switches the device has delivered
// since the last Start.
func (d *Device) SwitchCount() int64 {
	return d.switches.Load()
}

func (d *Device) Init(info *driver.Info) driver.Status {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != stateCreated {
		info.ErrorMessage = "device is already initialized"

		return driver.StatusInvalidMode
	}
	if info.ProtocolVersion != driver.ProtocolVersion {
		info.ErrorMessage = fmt.Sprintf("unsupported protocol version %d", info.ProtocolVersion)

		return driver.StatusNotPresent
	}

	info.Name = "Soundcheck Loopback Device"
	info.DriverVersion = driverVersion

	d.state = stateInitialized
	d.currentRate = d.cfg.InitialRate
	d.log.Printf("loopback: initialized (%d in, %d out, %g Hz)", d.cfg.Inputs, d.cfg.Outputs, d.currentRate)

	return driver.StatusOK
}

func (d *Device) GetChannels() (int, int, driver.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == stateCreated {
		return 0, 0, driver.StatusNotPresent
	}

	return d.cfg.Inputs, d.cfg.Outputs, driver.StatusOK
}

func (d *Device) GetSampleRate() (float64, driver.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == stateCreated {
		return 0, driver.StatusNotPresent
	}

	return d.currentRate, driver.StatusOK
}

func (d *Device) CanSampleRate(rate float64) driver.Status {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == stateCreated {
		return driver.StatusNotPresent
	}
	if !d.supportsRate(rate) {
		return driver.StatusNoClock
	}

	return driver.StatusOK
}

func (d *Device) SetSampleRate(rate float64) driver.Status {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case d.state == stateCreated:
		return driver.StatusNotPresent
	case d.state == stateRunning:
		return driver.StatusInvalidMode
	case !d.supportsRate(rate):
		return driver.StatusNoClock
	}

	d.currentRate = rate

	return driver.StatusOK
}

func (d *Device) GetChannelInfo(channel int, input bool) (driver.ChannelInfo, driver.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == stateCreated {
		return driver.ChannelInfo{}, driver.StatusNotPresent
	}

	count, prefix := d.cfg.Outputs, "Out"
	if input {
		count, prefix = d.cfg.Inputs, "In"
	}
	if channel < 0 || channel >= count {
		return driver.ChannelInfo{}, driver.StatusInvalidParameter
	}

	return driver.ChannelInfo{
		Channel:    channel,
		Input:      input,
		Active:     d.allocated(channel, input),
		Group:      0,
		SampleType: d.cfg.SampleType,
		Name:       fmt.Sprintf("%s %d", prefix, channel),
	}, driver.StatusOK
}

func (d *Device) GetBufferSize() (int, int, int, int, driver.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == stateCreated {
		return 0, 0, 0, 0, driver.StatusNotPresent
	}

	return d.cfg.MinFrames, d.cfg.MaxFrames, d.cfg.PreferredFrames, d.cfg.Granularity, driver.StatusOK
}

func (d *Device) CreateBuffers(requests []driver.BufferRequest, frames int, cb *driver.Callbacks) ([]driver.BufferInfo, driver.Status) {
	d.mu.Lock()

	if d.state == stateCreated {
		d.mu.Unlock()

		return nil, driver.StatusNotPresent
	}
	if d.state != stateInitialized {
		d.mu.Unlock()

		return nil, driver.StatusInvalidMode
	}
	if cb == nil || !d.validFrames(frames) {
		d.mu.Unlock()

		return nil, driver.StatusInvalidParameter
	}

	width := driver.SampleSize(d.cfg.SampleType)
	if width == 0 {
		d.mu.Unlock()

		return nil, driver.StatusInvalidParameter
	}

	records := make([]driver.BufferInfo, len(requests))
	for i, req := range requests {
		count := d.cfg.Outputs
		if req.Input {
			count = d.cfg.Inputs
		}
		if req.Channel < 0 || req.Channel >= count {
			d.mu.Unlock()

			return nil, driver.StatusInvalidParameter
		}

		records[i] = driver.BufferInfo{
			Channel: req.Channel,
			Input:   req.Input,
			Buffers: [2][]byte{make([]byte, frames*width), make([]byte, frames*width)},
		}
	}

	d.buffers = records
	d.frames = frames
	d.cb = cb
	d.state = statePrepared
	d.mu.Unlock()

	// Ask the host which switch callback it wants. This must happen without
	// holding the lock: the host's message handler may call back into the
	// device.
	useTimeInfo := cb.Message != nil && cb.BufferSwitchTimeInfo != nil &&
		cb.Message(driver.SelectorSupportsTimeInfo, 0) == 1

	d.mu.Lock()
	d.useTimeInfo = useTimeInfo
	d.mu.Unlock()

	d.log.Printf("loopback: %d buffers of %d frames created (time info: %v)", len(records), frames, useTimeInfo)

	out := make([]driver.BufferInfo, len(records))
	copy(out, records)

	return out, driver.StatusOK
}

func (d *Device) DisposeBuffers() driver.Status {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == stateCreated {
		return driver.StatusNotPresent
	}
	if d.state != statePrepared {
		return driver.StatusInvalidMode
	}

	d.buffers = nil
	d.cb = nil
	d.frames = 0
	d.state = stateInitialized

	return driver.StatusOK
}

func (d *Device) GetLatencies() (int, int, driver.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == stateCreated {
		return 0, 0, driver.StatusNotPresent
	}

	frames := d.frames
	if frames == 0 {
		frames = d.cfg.PreferredFrames
	}

	return frames, frames, driver.StatusOK
}

func (d *Device) Start() driver.Status {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == stateCreated {
		return driver.StatusNotPresent
	}
	if d.state != statePrepared {
		return driver.StatusInvalidMode
	}

	d.position.Store(0)
	d.switches.Store(0)
	d.stop = make(chan struct{})
	d.state = stateRunning

	d.wg.Add(1)
	go d.pump(d.stop, d.cb, d.buffers, d.frames, d.useTimeInfo, d.cfg.SwitchInterval, d.currentRate)

	d.log.Printf("loopback: started")

	return driver.StatusOK
}

func (d *Device) Stop() driver.Status {
	d.mu.Lock()
	if d.state != stateRunning {
		d.mu.Unlock()

		return driver.StatusInvalidMode
	}
	stop := d.stop
	d.state = statePrepared
	d.mu.Unlock()

	// Waiting outside the lock: an in-flight switch callback may still call
	// back into the device before the pump observes the close.
	close(stop)
	d.wg.Wait()

	d.log.Printf("loopback: stopped after %d switches", d.switches.Load())

	return driver.StatusOK
}

func (d *Device) GetSamplePosition() (int64, int64, driver.Status) {
	d.mu.Lock()
	state := d.state
	d.mu.Unlock()

	if state == stateCreated {
		return 0, 0, driver.StatusNotPresent
	}

	return d.position.Load(), time.Now().UnixNano(), driver.StatusOK
}

func (d *Device) OutputReady() driver.Status {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == stateCreated {
		return driver.StatusNotPresent
	}

	return driver.StatusOK
}

func (d *Device) Release() {
	d.mu.Lock()
	running := d.state == stateRunning
	d.mu.Unlock()

	if running {
		d.Stop()
	}

	d.mu.Lock()
	d.buffers = nil
	d.cb = nil
	d.frames = 0
	d.state = stateCreated
	d.mu.Unlock()

	d.log.Printf("loopback: released")
}

func (d *Device) supportsRate(rate float64) bool {
	for _, r := range d.cfg.Rates {
		if r == rate {
			return true
		}
	}

	return false
}

func (d *Device) validFrames(frames int) bool {
	if frames < d.cfg.MinFrames || frames > d.cfg.MaxFrames {
		return false
	}

	if d.cfg.Granularity == -1 {
		return frames&(frames-1) == 0
	}
	if d.cfg.Granularity > 0 {
		return (frames-d.cfg.MinFrames)%d.cfg.Granularity == 0
	}

	return frames == d.cfg.PreferredFrames
}

func (d *Device) allocated(channel int, input bool) bool {
	for _, rec := range d.buffers {
		if rec.Channel == channel && rec.Input == input {
			return true
		}
	}

	return false
}

// pump delivers buffer switches until stop closes. Each cycle first refills
// the input halves for the upcoming slot, then hands the slot to the host.
func (d *Device) pump(stop chan struct{}, cb *driver.Callbacks, buffers []driver.BufferInfo, frames int, useTimeInfo bool, interval time.Duration, rate float64) {
	defer d.wg.Done()

	var slot int32
	for {
		select {
		case <-stop:
			return
		default:
		}

		d.refreshInputs(buffers, int(slot))

		switch {
		case useTimeInfo:
			ti := &driver.TimeInfo{
				SamplePosition: d.position.Load(),
				SystemTime:     time.Now().UnixNano(),
				SampleRate:     rate,
			}
			cb.BufferSwitchTimeInfo(ti, slot, true)
		case cb.BufferSwitch != nil:
			cb.BufferSwitch(slot, true)
		}

		d.position.Add(int64(frames))
		d.switches.Add(1)
		slot ^= 1

		if interval > 0 {
			select {
			case <-stop:
				return
			case <-time.After(interval):
			}
		}
	}
}

// refreshInputs loads the slot half of every input buffer with the matching
// output channel's slot half. The host wrote that half one full cycle ago,
// which models the capture of what a physical loop cable would have played
// in the meantime. Without outputs the inputs carry a position-seeded ramp.
func (d *Device) refreshInputs(buffers []driver.BufferInfo, slot int) {
	pos := d.position.Load()

	for _, in := range buffers {
		if !in.Input {
			continue
		}

		dst := in.Buffers[slot]
		if d.cfg.Outputs == 0 {
			for i := range dst {
				dst[i] = byte(pos + int64(i))
			}

			continue
		}

		src := d.outputBuffer(buffers, in.Channel%d.cfg.Outputs, slot)
		if src == nil {
			for i := range dst {
				dst[i] = 0
			}

			continue
		}
		copy(dst, src)
	}
}

func (d *Device) outputBuffer(buffers []driver.BufferInfo, channel, slot int) []byte {
	for _, rec := range buffers {
		if !rec.Input && rec.Channel == channel {
			return rec.Buffers[slot]
		}
	}

	return nil
}
