package soundcheck

import (
	"sync"
	"sync/atomic"

	"github.com/audiodiag/soundcheck/driver"
	"github.com/audiodiag/soundcheck/tracelog"
)

// activeBinding holds the callback binding of the streaming run in flight.
// Driver callbacks carry no context argument, so they resolve the live
// binding through this package-level slot, exactly one run at a time.
var activeBinding atomic.Pointer[callbackBinding]

// callbackBinding routes driver callbacks to the current run. It starts out
// with handlers that log and ignore buffer switches; the run swaps in real
// handlers once its buffers exist.
type callbackBinding struct {
	log *tracelog.Logger

	mu               sync.Mutex
	onSwitch         func(slot int32, directProcess bool)
	onSwitchTimeInfo func(ti *driver.TimeInfo, slot int32, directProcess bool) *driver.TimeInfo
}

func newCallbackBinding(log *tracelog.Logger) *callbackBinding {
	if log == nil {
		log = tracelog.Discard()
	}

	b := &callbackBinding{log: log}
	b.onSwitch = func(slot int32, directProcess bool) {
		b.log.Printf("ignoring buffer switch (slot %d) before streaming starts", slot)
	}
	b.onSwitchTimeInfo = func(ti *driver.TimeInfo, slot int32, directProcess bool) *driver.TimeInfo {
		b.log.Printf("ignoring buffer switch (slot %d, time info) before streaming starts", slot)

		return nil
	}

	if !activeBinding.CompareAndSwap(nil, b) {
		panic(bugf("a callback binding is already live; only one run may stream at a time"))
	}

	return b
}

// Close releases the binding slot for the next run.
func (b *callbackBinding) Close() {
	if !activeBinding.CompareAndSwap(b, nil) {
		panic(bugf("closing a callback binding that is not live"))
	}
}

// current resolves the live binding from a callback.
func current() *callbackBinding {
	b := activeBinding.Load()
	if b == nil {
		panic(bugf("driver callback delivered with no live binding"))
	}

	return b
}

// setSwitchHandlers swaps the buffer switch handlers in for the pre-start
// stubs. The sample rate and message handlers are fixed for the lifetime of
// the binding.
func (b *callbackBinding) setSwitchHandlers(
	onSwitch func(slot int32, directProcess bool),
	onSwitchTimeInfo func(ti *driver.TimeInfo, slot int32, directProcess bool) *driver.TimeInfo,
) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.onSwitch = onSwitch
	b.onSwitchTimeInfo = onSwitchTimeInfo
}

func (b *callbackBinding) handleSwitch(slot int32, directProcess bool) {
	b.mu.Lock()
	fn := b.onSwitch
	b.mu.Unlock()

	fn(slot, directProcess)
}

func (b *callbackBinding) handleSwitchTimeInfo(ti *driver.TimeInfo, slot int32, directProcess bool) *driver.TimeInfo {
	b.mu.Lock()
	fn := b.onSwitchTimeInfo
	b.mu.Unlock()

	return fn(ti, slot, directProcess)
}

func (b *callbackBinding) handleRateChange(rate float64) {
	b.log.Printf("driver reports sample rate changed to %g Hz", rate)
}

// supportedSelectors is the fixed set of message selectors the binding
// handles; a Supported query reports whether the selector named by value is
// in this set.
var supportedSelectors = map[driver.MessageSelector]bool{
	driver.SelectorSupported:        true,
	driver.SelectorSupportsTimeInfo: true,
}

func (b *callbackBinding) handleMessage(selector driver.MessageSelector, value int32) int32 {
	var result int32
	switch selector {
	case driver.SelectorSupported:
		if supportedSelectors[driver.MessageSelector(value)] {
			result = 1
		}
	case driver.SelectorSupportsTimeInfo:
		result = 1
	}
	b.log.Printf("driver message %v (value %d) -> %d", selector, value, result)

	return result
}

// driverCallbacks builds the callback table handed to the driver. Each entry
// resolves the live binding at call time, mirroring how a context-free
// callback ABI would dispatch.
func driverCallbacks() driver.Callbacks {
	return driver.Callbacks{
		BufferSwitch: func(slot int32, directProcess bool) {
			current().handleSwitch(slot, directProcess)
		},
		BufferSwitchTimeInfo: func(ti *driver.TimeInfo, slot int32, directProcess bool) *driver.TimeInfo {
			return current().handleSwitchTimeInfo(ti, slot, directProcess)
		},
		SampleRateDidChange: func(rate float64) {
			current().handleRateChange(rate)
		},
		Message: func(selector driver.MessageSelector, value int32) int32 {
			return current().handleMessage(selector, value)
		},
	}
}
