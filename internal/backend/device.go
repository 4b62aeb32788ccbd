package backend

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Device is a scoped handle on an execution device. Acquire via
// Backend.Device and pair with a deferred Release so the device is
// freed on every execution path, including failures.
type Device struct {
	name     string
	released atomic.Bool
}

// Name returns the device identifier, e.g. "cpu:0".
func (d *Device) Name() string { return d.name }

// Release frees the handle. Releasing twice is a no-op.
func (d *Device) Release() {
	d.released.Store(true)
}

// Released reports whether the handle has been released. Used by tests
// to verify the engine releases devices on failure paths.
func (d *Device) Released() bool { return d.released.Load() }

// resolveDevice validates a requested device name against the host.
// Pure-Go engines only offer CPU devices; requesting an accelerator
// that is not present fails rather than silently falling back.
func resolveDevice(requested, fallback string) (string, error) {
	if requested == "" {
		requested = fallback
	}
	if requested == "" {
		requested = "cpu:0"
	}
	if !strings.HasPrefix(requested, "cpu") {
		return "", fmt.Errorf("%w: %q (host offers cpu devices only)", ErrNoDevice, requested)
	}
	return requested, nil
}
