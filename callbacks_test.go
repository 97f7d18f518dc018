package soundcheck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiodiag/soundcheck/driver"
)

func TestCallbackBindingSingleInstance(t *testing.T) {
	b := newCallbackBinding(nil)

	require.Panics(t, func() {
		newCallbackBinding(nil)
	}, "two live bindings would race for the same callbacks")

	b.Close()

	next := newCallbackBinding(nil)
	next.Close()
}

func TestCallbackBindingCloseTwice(t *testing.T) {
	b := newCallbackBinding(nil)
	b.Close()

	require.Panics(t, b.Close)
}

func TestCallbacksWithNoBinding(t *testing.T) {
	cb := driverCallbacks()

	require.Panics(t, func() {
		cb.BufferSwitch(0, true)
	}, "a callback with no live binding is a dispatch bug")
}

func TestCallbackHandlerSwap(t *testing.T) {
	b := newCallbackBinding(nil)
	defer b.Close()

	cb := driverCallbacks()

	// Before the swap the stub handlers ignore switches.
	cb.BufferSwitch(0, true)
	assert.Nil(t, cb.BufferSwitchTimeInfo(&driver.TimeInfo{}, 1, true))

	var plain, timed []int32
	b.setSwitchHandlers(
		func(slot int32, directProcess bool) {
			plain = append(plain, slot)
		},
		func(ti *driver.TimeInfo, slot int32, directProcess bool) *driver.TimeInfo {
			timed = append(timed, slot)

			return nil
		},
	)

	cb.BufferSwitch(1, true)
	cb.BufferSwitchTimeInfo(&driver.TimeInfo{SamplePosition: 64}, 0, false)

	assert.Equal(t, []int32{1}, plain)
	assert.Equal(t, []int32{0}, timed)

	// The rate change handler only logs; it must not blow up either way.
	cb.SampleRateDidChange(96000)
}

func TestMessageSelectors(t *testing.T) {
	b := newCallbackBinding(nil)
	defer b.Close()

	cb := driverCallbacks()

	// Selectors outside the handled set answer 0 no matter the value.
	unhandled := []driver.MessageSelector{
		driver.SelectorEngineVersion,
		driver.SelectorResetRequest,
		driver.SelectorBufferSizeChange,
		driver.SelectorResyncRequest,
		driver.SelectorLatenciesChanged,
		driver.SelectorSupportsTimeCode,
	}
	for _, selector := range unhandled {
		t.Run(driver.MessageSelectorNames[selector], func(t *testing.T) {
			if got := cb.Message(selector, 0); got != 0 {
				t.Errorf("Message(%v) = %d; want 0", selector, got)
			}
		})
	}

	t.Run("SupportsTimeInfo", func(t *testing.T) {
		if got := cb.Message(driver.SelectorSupportsTimeInfo, 0); got != 1 {
			t.Errorf("Message(SupportsTimeInfo) = %d; want 1", got)
		}
	})

	// A Supported query answers for the selector named by value, not for
	// the Supported selector itself.
	t.Run("Supported", func(t *testing.T) {
		values := map[driver.MessageSelector]int32{
			driver.SelectorSupported:        1,
			driver.SelectorSupportsTimeInfo: 1,
			driver.SelectorEngineVersion:    0,
			driver.SelectorResetRequest:     0,
			driver.SelectorLatenciesChanged: 0,
			driver.SelectorSupportsTimeCode: 0,
		}
		for value, expected := range values {
			got := cb.Message(driver.SelectorSupported, int32(value))
			if got != expected {
				t.Errorf("Message(Supported, value=%v) = %d; want %d", value, got, expected)
			}
		}

		if got := cb.Message(driver.SelectorSupported, 99); got != 0 {
			t.Errorf("Message(Supported, value=99) = %d; want 0", got)
		}
	})
}
