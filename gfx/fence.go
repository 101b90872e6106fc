package gfx

import (
	"time"

	"github.com/cockroachdb/errors"
)

// CreateFence creates a fence, optionally in the signaled state.
func (d *Device) CreateFence(signaled bool) *Fence {
	handle, err := d.native.CreateFence(signaled)
	d.check(err, "gfx.CreateFence()")

	f := &Fence{handle: handle}
	f.init(d, "fence")
	return f
}

// Fence is signaled by the device when a submission or an image
// acquisition completes. It is the only synchronization primitive
// exposed across calls.
type Fence struct {
	resource

	handle Handle

	// pending is the submission that signals the fence.
	pending *Queue
	serial  uint64
}

// Native returns the driver handle.
func (f *Fence) Native() Handle {
	return f.handle
}

// Wait blocks until the fence is signaled or timeout passes and
// reports whether it was signaled. Device errors are fatal.
func (f *Fence) Wait(timeout time.Duration) bool {
	switch res := f.device.native.WaitForFences([]Handle{f.handle}, timeout); res {
	case Success:
		f.signaled()
		return true
	case Timeout, NotReady:
		return false
	default:
		f.device.fatal(errors.Wrap(res, "gfx.WaitForFences()"))
		return false
	}
}

// Signaled polls the fence without blocking.
func (f *Fence) Signaled() bool {
	switch res := f.device.native.FenceStatus(f.handle); res {
	case Success:
		f.signaled()
		return true
	case NotReady:
		return false
	default:
		f.device.fatal(errors.Wrap(res, "gfx.GetFenceStatus()"))
		return false
	}
}

// Reset returns the fence to the unsignaled state.
func (f *Fence) Reset() {
	if f.pending != nil && f.device.trackUsage {
		// Resetting loses the signal, so the submission it
		// guarded has to be retired first.
		f.Signaled()
	}
	f.device.check(f.device.native.ResetFences([]Handle{f.handle}), "gfx.ResetFences()")
	f.pending = nil
}

func (f *Fence) signaled() {
	if f.pending != nil {
		f.pending.retire(f.serial)
		f.pending = nil
	}
}

// Release implements interface
func (f *Fence) Release() {
	if !f.drop() {
		return
	}
	f.device.native.DestroyFence(f.handle)
	f.finish()
}
