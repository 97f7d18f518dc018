// Package drivertest provides a scriptable fake audio driver. Every
// operation can be overridden through its Func field; unset fields fall back
// to a healthy stereo device that delivers a fixed number of buffer switches
// synchronously inside Start, which keeps full harness runs deterministic.
package drivertest

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/audiodiag/soundcheck/driver"
)

// Driver is a fake implementation of driver.Driver.
type Driver struct {
	Inputs          int
	Outputs         int
	Rates           []float64
	InitialRate     float64
	SampleType      driver.SampleType
	MinFrames       int
	MaxFrames       int
	PreferredFrames int
	Granularity     int

	// SwitchesOnStart is how many buffer switches the default Start
	// delivers before returning.
	SwitchesOnStart int

	InitFunc              func(*driver.Info) driver.Status
	GetChannelsFunc       func() (int, int, driver.Status)
	GetSampleRateFunc     func() (float64, driver.Status)
	CanSampleRateFunc     func(float64) driver.Status
	SetSampleRateFunc     func(float64) driver.Status
	GetChannelInfoFunc    func(int, bool) (driver.ChannelInfo, driver.Status)
	GetBufferSizeFunc     func() (int, int, int, int, driver.Status)
	CreateBuffersFunc     func([]driver.BufferRequest, int, *driver.Callbacks) ([]driver.BufferInfo, driver.Status)
	DisposeBuffersFunc    func() driver.Status
	GetLatenciesFunc      func() (int, int, driver.Status)
	StartFunc             func() driver.Status
	StopFunc              func() driver.Status
	GetSamplePositionFunc func() (int64, int64, driver.Status)
	OutputReadyFunc       func() driver.Status
	ReleaseFunc           func()

	mu          sync.Mutex
	calls       []string
	setRates    []float64
	currentRate float64
	cb          *driver.Callbacks
	frames      int
	releases    int

	position atomic.Int64
}

// New returns a healthy 2-in/2-out 48 kHz fake that delivers 30 switches.
func New() *Driver {
	return &Driver{
		Inputs:          2,
		Outputs:         2,
		Rates:           []float64{44100, 48000, 96000, 192000},
		InitialRate:     48000,
		SampleType:      driver.SampleTypeInt16LE,
		MinFrames:       64,
		MaxFrames:       8192,
		PreferredFrames: 1024,
		Granularity:     64,
		SwitchesOnStart: 30,
	}
}

// Calls returns the operation names invoked so far, in order.
func (d *Driver) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]string, len(d.calls))
	copy(out, d.calls)

	return out
}

// SetRates returns every rate passed to SetSampleRate, in order.
func (d *Driver) SetRates() []float64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]float64, len(d.setRates))
	copy(out, d.setRates)

	return out
}

// Releases returns how many times Release ran.
func (d *Driver) Releases() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.releases
}

func (d *Driver) record(call string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls = append(d.calls, call)
}

func (d *Driver) Init(info *driver.Info) driver.Status {
	d.record("Init")
	if d.InitFunc != nil {
		return d.InitFunc(info)
	}

	info.Name = "Scripted Test Device"
	info.DriverVersion = 1

	d.mu.Lock()
	d.currentRate = d.InitialRate
	d.mu.Unlock()

	return driver.StatusOK
}

func (d *Driver) GetChannels() (int, int, driver.Status) {
	d.record("GetChannels")
	if d.GetChannelsFunc != nil {
		return d.GetChannelsFunc()
	}

	return d.Inputs, d.Outputs, driver.StatusOK
}

func (d *Driver) GetSampleRate() (float64, driver.Status) {
	d.record("GetSampleRate")
	if d.GetSampleRateFunc != nil {
		return d.GetSampleRateFunc()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	return d.currentRate, driver.StatusOK
}

func (d *Driver) CanSampleRate(rate float64) driver.Status {
	d.record("CanSampleRate")
	if d.CanSampleRateFunc != nil {
		return d.CanSampleRateFunc(rate)
	}

	if !d.supportsRate(rate) {
		return driver.StatusNoClock
	}

	return driver.StatusOK
}

func (d *Driver) SetSampleRate(rate float64) driver.Status {
	d.record("SetSampleRate")

	d.mu.Lock()
	d.setRates = append(d.setRates, rate)
	d.mu.Unlock()

	if d.SetSampleRateFunc != nil {
		return d.SetSampleRateFunc(rate)
	}

	if !d.supportsRate(rate) {
		return driver.StatusNoClock
	}

	d.mu.Lock()
	d.currentRate = rate
	d.mu.Unlock()

	return driver.StatusOK
}

func (d *Driver) GetChannelInfo(channel int, input bool) (driver.ChannelInfo, driver.Status) {
	d.record("GetChannelInfo")
	if d.GetChannelInfoFunc != nil {
		return d.GetChannelInfoFunc(channel, input)
	}

	count, prefix := d.Outputs, "Out"
	if input {
		count, prefix = d.Inputs, "In"
	}
	if channel < 0 || channel >= count {
		return driver.ChannelInfo{}, driver.StatusInvalidParameter
	}

	return driver.ChannelInfo{
		Channel:    channel,
		Input:      input,
		Active:     true,
		SampleType: d.SampleType,
		Name:       fmt.Sprintf("%s %d", prefix, channel),
	}, driver.StatusOK
}

func (d *Driver) GetBufferSize() (int, int, int, int, driver.Status) {
	d.record("GetBufferSize")
	if d.GetBufferSizeFunc != nil {
		return d.GetBufferSizeFunc()
	}

	return d.MinFrames, d.MaxFrames, d.PreferredFrames, d.Granularity, driver.StatusOK
}

func (d *Driver) CreateBuffers(requests []driver.BufferRequest, frames int, cb *driver.Callbacks) ([]driver.BufferInfo, driver.Status) {
	d.record("CreateBuffers")
	if d.CreateBuffersFunc != nil {
		return d.CreateBuffersFunc(requests, frames, cb)
	}

	width := driver.SampleSize(d.SampleType)
	records := make([]driver.BufferInfo, len(requests))
	for i, req := range requests {
		records[i] = driver.BufferInfo{
			Channel: req.Channel,
			Input:   req.Input,
			Buffers: [2][]byte{make([]byte, frames*width), make([]byte, frames*width)},
		}
	}

	d.mu.Lock()
	d.cb = cb
	d.frames = frames
	d.mu.Unlock()

	return records, driver.StatusOK
}

func (d *Driver) DisposeBuffers() driver.Status {
	d.record("DisposeBuffers")
	if d.DisposeBuffersFunc != nil {
		return d.DisposeBuffersFunc()
	}

	d.mu.Lock()
	d.cb = nil
	d.frames = 0
	d.mu.Unlock()

	return driver.StatusOK
}

func (d *Driver) GetLatencies() (int, int, driver.Status) {
	d.record("GetLatencies")
	if d.GetLatenciesFunc != nil {
		return d.GetLatenciesFunc()
	}

	return d.PreferredFrames, d.PreferredFrames, driver.StatusOK
}

// Start delivers SwitchesOnStart buffer switches on the calling goroutine
// before returning, alternating slots like a real double-buffered device.
func (d *Driver) Start() driver.Status {
	d.record("Start")
	if d.StartFunc != nil {
		return d.StartFunc()
	}

	d.mu.Lock()
	cb := d.cb
	frames := d.frames
	d.mu.Unlock()

	if cb == nil {
		return driver.StatusInvalidMode
	}

	d.position.Store(0)

	useTimeInfo := cb.Message != nil && cb.BufferSwitchTimeInfo != nil &&
		cb.Message(driver.SelectorSupportsTimeInfo, 0) == 1

	for i := 0; i < d.SwitchesOnStart; i++ {
		slot := int32(i & 1)
		if useTimeInfo {
			ti := &driver.TimeInfo{
				SamplePosition: d.position.Load(),
				SystemTime:     time.Now().UnixNano(),
				SampleRate:     d.InitialRate,
			}
			cb.BufferSwitchTimeInfo(ti, slot, true)
		} else {
			cb.BufferSwitch(slot, true)
		}
		d.position.Add(int64(frames))
	}

	return driver.StatusOK
}

func (d *Driver) Stop() driver.Status {
	d.record("Stop")
	if d.StopFunc != nil {
		return d.StopFunc()
	}

	return driver.StatusOK
}

func (d *Driver) GetSamplePosition() (int64, int64, driver.Status) {
	d.record("GetSamplePosition")
	if d.GetSamplePositionFunc != nil {
		return d.GetSamplePositionFunc()
	}

	return d.position.Load(), time.Now().UnixNano(), driver.StatusOK
}

func (d *Driver) OutputReady() driver.Status {
	d.record("OutputReady")
	if d.OutputReadyFunc != nil {
		return d.OutputReadyFunc()
	}

	return driver.StatusOK
}

func (d *Driver) Release() {
	d.record("Release")
	if d.ReleaseFunc != nil {
		d.ReleaseFunc()

		return
	}

	d.mu.Lock()
	d.releases++
	d.mu.Unlock()
}

func (d *Driver) supportsRate(rate float64) bool {
	for _, r := range d.Rates {
		if r == rate {
			return true
		}
	}

	return false
}
