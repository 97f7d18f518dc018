package driver

import (
	"fmt"
	"sync"
)

// The loading convention allows a single driver instance per process. The
// registry below is the only process-global state in this package: a host
// installs its driver once with Register, and each diagnostic run brackets
// its driver use with an Acquire/Release pair.

var (
	regMu      sync.Mutex
	registered Driver
	inUse      bool
)

// Register installs d as the process driver. It fails if another driver is
// already installed.
func Register(d Driver) error {
	if d == nil {
		return fmt.Errorf("cannot register a nil driver")
	}

	regMu.Lock()
	defer regMu.Unlock()

	if registered != nil {
		return fmt.Errorf("a driver is already registered")
	}

	registered = d

	return nil
}

// Unregister removes the process driver. Outstanding handles stay usable;
// only new Acquire calls are affected.
func Unregister() {
	regMu.Lock()
	defer regMu.Unlock()

	registered = nil
}

// Acquire hands out the process driver for one run. Only one handle may be
// outstanding at a time; the handle must be released when the run ends.
func Acquire() (*Handle, error) {
	regMu.Lock()
	defer regMu.Unlock()

	if registered == nil {
		return nil, fmt.Errorf("no driver registered")
	}
	if inUse {
		return nil, fmt.Errorf("driver is already in use")
	}

	inUse = true

	return &Handle{d: registered}, nil
}

// Handle is one run's reference to the process driver.
type Handle struct {
	mu          sync.Mutex
	d           Driver
	invalidated bool
	released    bool
}

// Driver returns the underlying driver instance.
func (h *Handle) Driver() Driver {
	return h.d
}

// Invalidate marks the handle as no longer releasable. The loading
// convention drops the instance reference when the driver fails to
// initialize; releasing it afterwards would tear down an instance the
// driver already abandoned.
func (h *Handle) Invalidate() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.invalidated = true
}

// Release returns the handle and tears down the driver instance, unless the
// handle was invalidated. Release is idempotent.
func (h *Handle) Release() {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()

		return
	}
	h.released = true
	invalidated := h.invalidated
	h.mu.Unlock()

	if !invalidated {
		h.d.Release()
	}

	regMu.Lock()
	inUse = false
	regMu.Unlock()
}
