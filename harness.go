// Package soundcheck exercises a registered audio driver end to end: it
// negotiates channels, sample rates and buffer geometry, streams through the
// driver's double-buffered callback loop, and reports whether the device
// survived a fixed number of buffer switches. File adapters can feed the
// driver's playback channels from an audio file and record its capture
// channels to another.
package soundcheck

import (
	"fmt"
	"sync/atomic"

	"github.com/audiodiag/soundcheck/driver"
	"github.com/audiodiag/soundcheck/tracelog"
)

// switchTarget is the number of buffer switches a run must survive before
// it settles successfully.
const switchTarget = 30

// sampleRateCandidates are the rates probed during negotiation.
var sampleRateCandidates = []float64{44100, 48000, 96000, 192000}

// Run acquires the registered driver and takes it through one full
// diagnostic pass: negotiation, buffer setup, streaming and teardown. It
// returns nil when the run settles successfully.
func Run(cfg Config) error {
	handle, err := driver.Acquire()
	if err != nil {
		return err
	}
	defer handle.Release()

	h := &harness{
		cfg:          cfg,
		log:          cfg.logger(),
		handle:       handle,
		drv:          handle.Driver(),
		openInput:    OpenInputFile,
		createOutput: CreateOutputFile,
	}

	return h.run()
}

type harness struct {
	cfg    Config
	log    *tracelog.Logger
	handle *driver.Handle
	drv    driver.Driver

	// Seams for tests to substitute in-memory files.
	openInput    func(path string) (InputSource, error)
	createOutput func(path string, rate float64, channels int, sampleType driver.SampleType) (OutputSink, error)
}

func (h *harness) run() error {
	neg, err := h.negotiate()
	if neg != nil {
		defer neg.close(h.log)
	}
	if err != nil {
		return err
	}

	return h.stream(neg)
}

// negotiated carries everything the negotiation phase settled on. It is
// returned even on failure so the caller can close any files already open.
type negotiated struct {
	inputs   int
	outputs  int
	rate     float64
	frames   int
	channels []driver.ChannelInfo
	input    InputSource
	output   OutputSink

	// inWidth is the sample byte width on the driver's input channels,
	// outWidth the width on its output channels. Each is set only when the
	// matching file adapter is in use.
	inWidth  int
	outWidth int
}

func (n *negotiated) close(log *tracelog.Logger) {
	if n.input != nil {
		if err := n.input.Close(); err != nil {
			log.Errorf("closing input file: %v", err)
		}
	}
	if n.output != nil {
		if err := n.output.Close(); err != nil {
			log.Errorf("closing output file: %v", err)
		}
	}
}

func (h *harness) negotiate() (*negotiated, error) {
	neg := &negotiated{}

	h.log.Printf("initializing driver (protocol version %d)", driver.ProtocolVersion)
	info := driver.Info{ProtocolVersion: driver.ProtocolVersion}
	if st := h.drv.Init(&info); st != driver.StatusOK {
		// A failed Init leaves no instance behind to release.
		h.handle.Invalidate()

		return neg, fmt.Errorf("Init() returned %v: %s", st, info.ErrorMessage)
	}
	h.log.Printf("driver %q initialized (driver version %d, protocol version %d)",
		info.Name, info.DriverVersion, info.ProtocolVersion)
	h.log.Blank()

	inputs, outputs, st := h.drv.GetChannels()
	if st != driver.StatusOK {
		return neg, fmt.Errorf("GetChannels() returned %v", st)
	}
	h.log.Printf("driver has %d input channels and %d output channels", inputs, outputs)
	if inputs == 0 && outputs == 0 {
		return neg, fmt.Errorf("driver reports no channels in either direction")
	}
	neg.inputs, neg.outputs = inputs, outputs

	initialRate, st := h.drv.GetSampleRate()
	if st != driver.StatusOK {
		return neg, fmt.Errorf("GetSampleRate() returned %v", st)
	}
	h.log.Printf("driver sample rate is %g Hz", initialRate)
	h.log.Blank()

	for _, rate := range sampleRateCandidates {
		if st := h.drv.CanSampleRate(rate); st != driver.StatusOK {
			h.log.Printf("driver cannot run at %g Hz (%v)", rate, st)

			continue
		}
		if err := h.setRate(rate); err != nil {
			return neg, err
		}
	}
	h.log.Blank()

	channels, err := h.enumerateChannels(inputs, outputs)
	if err != nil {
		return neg, err
	}
	neg.channels = channels
	h.log.Blank()

	if h.cfg.InputFile != "" {
		input, err := h.openInput(h.cfg.InputFile)
		if err != nil {
			return neg, fmt.Errorf("cannot input from file %s: %w", h.cfg.InputFile, err)
		}
		neg.input = input
		h.log.Printf("reading input from %s (%g Hz native)", h.cfg.InputFile, input.SampleRate())
	}

	// The stream rate defaults to whatever the driver was at; an input file
	// pulls it to the file's native rate, and an explicit configuration
	// overrides both.
	rate := initialRate
	if neg.input != nil {
		rate = neg.input.SampleRate()
	}
	if h.cfg.SampleRate != 0 {
		rate = h.cfg.SampleRate
	}
	neg.rate = rate
	h.log.Printf("using sample rate %g Hz", rate)

	if neg.input != nil {
		playbackType, err := commonSampleType(channels, false)
		if err != nil {
			return neg, fmt.Errorf("cannot input from file %s: %w", h.cfg.InputFile, err)
		}
		width, err := sampleWidth(playbackType)
		if err != nil {
			return neg, fmt.Errorf("cannot input from file %s: %w", h.cfg.InputFile, err)
		}
		if err := neg.input.Validate(rate, outputs, playbackType); err != nil {
			return neg, fmt.Errorf("cannot input from file %s: %w", h.cfg.InputFile, err)
		}
		neg.outWidth = width
	}

	if h.cfg.OutputFile != "" {
		captureType, err := commonSampleType(channels, true)
		if err != nil {
			return neg, fmt.Errorf("cannot output to file %s: %w", h.cfg.OutputFile, err)
		}
		width, err := sampleWidth(captureType)
		if err != nil {
			return neg, fmt.Errorf("cannot output to file %s: %w", h.cfg.OutputFile, err)
		}
		output, err := h.createOutput(h.cfg.OutputFile, rate, inputs, captureType)
		if err != nil {
			return neg, fmt.Errorf("cannot output to file %s: %w", h.cfg.OutputFile, err)
		}
		neg.output = output
		neg.inWidth = width
		h.log.Printf("writing output to %s", h.cfg.OutputFile)
	}
	h.log.Blank()

	if st := h.drv.CanSampleRate(rate); st != driver.StatusOK {
		return neg, fmt.Errorf("driver does not support %g Hz (%v)", rate, st)
	}
	if err := h.setRate(rate); err != nil {
		return neg, err
	}

	minFrames, maxFrames, preferred, granularity, st := h.drv.GetBufferSize()
	if st != driver.StatusOK {
		return neg, fmt.Errorf("GetBufferSize() returned %v", st)
	}
	h.log.Printf("buffer geometry: min %d, max %d, preferred %d frames (granularity %d)",
		minFrames, maxFrames, preferred, granularity)
	neg.frames = preferred

	if st := h.drv.OutputReady(); st == driver.StatusOK {
		h.log.Printf("driver supports OutputReady()")
	} else {
		h.log.Printf("driver does not support OutputReady() (%v)", st)
	}
	h.log.Blank()

	return neg, nil
}

// setRate switches the driver to rate and verifies the change stuck.
func (h *harness) setRate(rate float64) error {
	if st := h.drv.SetSampleRate(rate); st != driver.StatusOK {
		return fmt.Errorf("SetSampleRate(%g) returned %v", rate, st)
	}

	got, st := h.drv.GetSampleRate()
	if st != driver.StatusOK {
		return fmt.Errorf("GetSampleRate() returned %v", st)
	}
	if got != rate {
		return fmt.Errorf("driver reports %g Hz after setting %g Hz", got, rate)
	}
	h.log.Printf("sample rate set to %g Hz", rate)

	return nil
}

// enumerateChannels describes every channel in both directions. Individual
// lookup failures are logged and skipped, but a channel count that does not
// add up means the driver's metadata cannot be trusted.
func (h *harness) enumerateChannels(inputs, outputs int) ([]driver.ChannelInfo, error) {
	var channels []driver.ChannelInfo

	describe := func(count int, input bool) {
		direction := "output"
		if input {
			direction = "input"
		}
		for i := 0; i < count; i++ {
			info, st := h.drv.GetChannelInfo(i, input)
			if st != driver.StatusOK {
				h.log.Errorf("GetChannelInfo(%d, %v) returned %v", i, input, st)

				continue
			}
			h.log.Printf("%s channel %d: name %q, group %d, type %v, active %v",
				direction, info.Channel, info.Name, info.Group, info.SampleType, info.Active)
			channels = append(channels, info)
		}
	}

	describe(inputs, true)
	describe(outputs, false)

	if len(channels) != inputs+outputs {
		return nil, fmt.Errorf("enumerated %d of %d channels", len(channels), inputs+outputs)
	}

	return channels, nil
}

// commonSampleType returns the sample type shared by every channel of one
// direction. The file adapters move whole interleaved blocks, so a single
// direction cannot mix types.
func commonSampleType(channels []driver.ChannelInfo, input bool) (driver.SampleType, error) {
	direction := "output"
	if input {
		direction = "input"
	}

	var found bool
	var common driver.SampleType
	for _, ch := range channels {
		if ch.Input != input {
			continue
		}
		if !found {
			common = ch.SampleType
			found = true

			continue
		}
		if ch.SampleType != common {
			return 0, fmt.Errorf("%s channels carry mixed sample types (%v and %v)", direction, common, ch.SampleType)
		}
	}
	if !found {
		return 0, fmt.Errorf("no %s channels to derive a sample type from", direction)
	}

	return common, nil
}

// streamState is the mutable state shared between the controlling goroutine
// and the driver's callback goroutines during one streaming run.
type streamState struct {
	neg      *negotiated
	records  []driver.BufferInfo
	comp     *completion
	switches atomic.Int32
}

func (h *harness) stream(neg *negotiated) error {
	binding := newCallbackBinding(h.log)
	defer binding.Close()

	requests := make([]driver.BufferRequest, 0, len(neg.channels))
	for _, ch := range neg.channels {
		requests = append(requests, driver.BufferRequest{Channel: ch.Channel, Input: ch.Input})
	}

	cb := driverCallbacks()
	records, st := h.drv.CreateBuffers(requests, neg.frames, &cb)
	if st != driver.StatusOK {
		return fmt.Errorf("CreateBuffers() returned %v", st)
	}
	if len(records) == 0 {
		return fmt.Errorf("driver allocated no buffers")
	}
	defer func() {
		if st := h.drv.DisposeBuffers(); st != driver.StatusOK {
			h.log.Errorf("DisposeBuffers() returned %v", st)
		}
	}()
	h.log.Printf("allocated %d channel buffers of %d frames each", len(records), neg.frames)

	s := &streamState{neg: neg, records: records, comp: newCompletion()}
	binding.setSwitchHandlers(
		func(slot int32, directProcess bool) {
			h.handleSwitch(s, slot, directProcess)
		},
		func(ti *driver.TimeInfo, slot int32, directProcess bool) *driver.TimeInfo {
			return h.handleSwitchTimeInfo(s, ti, slot, directProcess)
		},
	)

	// Rates, channel metadata and latencies are only final once buffers
	// exist, so read them all back before starting.
	rate, st := h.drv.GetSampleRate()
	if st != driver.StatusOK {
		return fmt.Errorf("GetSampleRate() returned %v", st)
	}
	h.log.Printf("driver sample rate is %g Hz", rate)

	if _, err := h.enumerateChannels(neg.inputs, neg.outputs); err != nil {
		return err
	}

	inputLatency, outputLatency, st := h.drv.GetLatencies()
	if st != driver.StatusOK {
		return fmt.Errorf("GetLatencies() returned %v", st)
	}
	h.log.Printf("input latency %d frames, output latency %d frames", inputLatency, outputLatency)
	h.log.Blank()

	if st := h.drv.Start(); st != driver.StatusOK {
		return fmt.Errorf("Start() returned %v", st)
	}
	h.log.Printf("streaming started, waiting for %d buffer switches", switchTarget)

	outcome, cause := s.comp.wait()
	h.log.Blank()
	h.log.Printf("streaming settled: %v", outcome)

	// Stop unconditionally. A run that failed mid-stream still has a driver
	// cycling buffers, and teardown order is the same either way.
	var stopErr error
	if st := h.drv.Stop(); st != driver.StatusOK {
		stopErr = fmt.Errorf("Stop() returned %v", st)
		h.log.Errorf("%v", stopErr)
	} else {
		h.log.Printf("streaming stopped")
	}

	if outcome == OutcomeFailure {
		return cause
	}

	return stopErr
}

// handleSwitch processes one buffer switch. It runs on a driver callback
// goroutine; anything it panics with (other than a harness bug) or any error
// it hits settles the run as a failure instead of unwinding into the driver.
func (h *harness) handleSwitch(s *streamState, slot int32, directProcess bool) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if bug, ok := r.(invariantError); ok {
			panic(bug)
		}
		s.comp.settle(OutcomeFailure, fmt.Errorf("buffer switch panicked: %v", r))
	}()

	if _, done := s.comp.settled(); done {
		return
	}

	h.log.Printf("buffer switch (slot %d, direct %v)", slot, directProcess)

	if err := h.processSwitch(s, slot); err != nil {
		h.log.Errorf("%v", err)
		s.comp.settle(OutcomeFailure, err)

		return
	}

	n := s.switches.Add(1)
	h.log.Printf("buffer switch count: %d/%d", n, switchTarget)
	if n >= switchTarget {
		s.comp.settle(OutcomeSuccess, nil)
	}
}

func (h *harness) handleSwitchTimeInfo(s *streamState, ti *driver.TimeInfo, slot int32, directProcess bool) *driver.TimeInfo {
	if ti != nil {
		h.log.Printf("time info: position %d samples at %d ns, rate %g Hz",
			ti.SamplePosition, ti.SystemTime, ti.SampleRate)
	}
	h.handleSwitch(s, slot, directProcess)

	return nil
}

// processSwitch moves one block of audio: capture channels out to the output
// file, then input file data into the playback channels. A file that runs
// out is padded with silence.
func (h *harness) processSwitch(s *streamState, slot int32) error {
	if samples, systemTime, st := h.drv.GetSamplePosition(); st == driver.StatusOK {
		h.log.Printf("stream position: %d samples (system time %d ns)", samples, systemTime)
	} else {
		h.log.Printf("GetSamplePosition() returned %v", st)
	}

	neg := s.neg
	if neg.output != nil {
		block := gatherInterleaved(s.records, true, slot, neg.frames, neg.inWidth)
		if err := neg.output.Write(block); err != nil {
			return fmt.Errorf("cannot output to file %s: %w", h.cfg.OutputFile, err)
		}
	}
	if neg.input != nil {
		want := neg.frames * neg.outputs * neg.outWidth
		data, err := neg.input.Read(want)
		if err != nil {
			return fmt.Errorf("cannot input from file %s: %w", h.cfg.InputFile, err)
		}
		if len(data) < want {
			data = append(data, make([]byte, want-len(data))...)
		}
		scatterInterleaved(data, s.records, false, slot, neg.outWidth)
	}

	return nil
}
