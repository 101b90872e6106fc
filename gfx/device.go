package gfx

import (
	"math/bits"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

// SwapchainExtension is the device extension required for presentation.
const SwapchainExtension = "VK_KHR_swapchain"

// DeviceConfig configures logical device creation.
type DeviceConfig struct {
	// Logger defaults to the instance logger.
	Logger *logrus.Logger

	// Extensions are enabled in addition to SwapchainExtension.
	Extensions []string

	// TrackUsage enables the destruction check: releasing the last
	// reference of an object still used by an unretired submission
	// is reported as an assertion failure.
	TrackUsage bool
}

// Device is a logical device on one adapter. It creates and owns
// every other GPU object.
type Device struct {
	instance *Instance
	native   NativeDevice
	adapter  AdapterInfo
	log      *logrus.Logger

	refs       int32
	trackUsage bool

	allocator *Allocator
	graphics  *Queue
	transfer  *Queue
	queues    []*Queue
}

// selectQueueFamilies returns a family that supports graphics and
// presentation, and a transfer family. A transfer-only family is
// preferred, then any other family able to transfer. Without one
// the graphics family is reused.
func selectQueueFamilies(families []QueueFamily) (graphics, transfer int, ok bool) {
	graphics = -1
	for idx, f := range families {
		if f.Flags&QueueGraphics != 0 && f.Present && f.Count > 0 {
			graphics = idx
			break
		}
	}
	if graphics < 0 {
		return -1, -1, false
	}

	transfer = graphics
	for idx, f := range families {
		if idx == graphics || f.Count == 0 {
			continue
		}
		// Graphics and compute queues implicitly support transfers.
		canTransfer := f.Flags&(QueueTransfer|QueueGraphics|QueueCompute) != 0
		dedicated := f.Flags&QueueTransfer != 0 && f.Flags&(QueueGraphics|QueueCompute) == 0
		if dedicated {
			return graphics, idx, true
		}
		if canTransfer && transfer == graphics {
			transfer = idx
		}
	}
	return graphics, transfer, true
}

// CreateDevice opens a logical device on the adapter at index.
// An adapter without presentation support, or one on which the device
// cannot be created, is fatal.
func (i *Instance) CreateDevice(index int, cfg DeviceConfig) *Device {
	log := cfg.Logger
	if log == nil {
		log = i.log
	}
	if index < 0 || index >= len(i.adapters) {
		fatal(log, errors.AssertionFailedf("gfx: adapter index %d out of range", index))
	}
	adapter := i.adapters[index]

	if !adapter.HasExtension(SwapchainExtension) {
		fatal(log, errors.Newf("gfx: adapter %q does not support %s", adapter.Name, SwapchainExtension))
	}

	graphicsFamily, transferFamily, ok := selectQueueFamilies(adapter.QueueFamilies)
	if !ok {
		fatal(log, errors.Newf("gfx: adapter %q has no queue family with graphics and present support", adapter.Name))
	}

	info := DeviceInfo{
		Queues:     []QueueRequest{{Family: uint32(graphicsFamily), Count: 1}},
		Extensions: append([]string{SwapchainExtension}, cfg.Extensions...),
	}
	if transferFamily != graphicsFamily {
		info.Queues = append(info.Queues, QueueRequest{Family: uint32(transferFamily), Count: 1})
	}

	native, err := i.backend.CreateDevice(index, info)
	if err != nil {
		fatal(log, errors.Wrap(err, "gfx.CreateDevice()"))
	}

	d := &Device{
		instance:   i,
		native:     native,
		adapter:    adapter,
		log:        log,
		refs:       1,
		trackUsage: cfg.TrackUsage,
	}
	d.allocator = newAllocator(d)
	d.graphics = newQueue(d, "graphics", uint32(graphicsFamily))
	d.queues = append(d.queues, d.graphics)
	if transferFamily != graphicsFamily {
		d.transfer = newQueue(d, "transfer", uint32(transferFamily))
		d.queues = append(d.queues, d.transfer)
	} else {
		d.transfer = d.graphics
	}

	log.WithFields(logrus.Fields{
		"adapter":  adapter.Name,
		"graphics": graphicsFamily,
		"transfer": transferFamily,
	}).Info("graphics device created")
	return d
}

// Adapter returns information about the device's physical adapter.
func (d *Device) Adapter() AdapterInfo {
	return d.adapter
}

// Instance returns the instance the device was created from.
func (d *Device) Instance() *Instance {
	return d.instance
}

// Native returns the driver side of the device.
func (d *Device) Native() NativeDevice {
	return d.native
}

// Logger returns the logger the device reports to.
func (d *Device) Logger() *logrus.Logger {
	return d.log
}

// Allocator returns the device memory allocator.
func (d *Device) Allocator() *Allocator {
	return d.allocator
}

// GetQueue returns the graphics or the transfer queue. Exactly one
// capability bit must be set in flags.
func (d *Device) GetQueue(flags QueueFlags) *Queue {
	if bits.OnesCount32(uint32(flags)) != 1 {
		d.assertf("gfx: queue request %#x must name exactly one capability", uint32(flags))
	}
	switch flags {
	case QueueGraphics:
		return d.graphics
	case QueueTransfer:
		return d.transfer
	}
	d.assertf("gfx: no queue for capability %#x", uint32(flags))
	return nil
}

// queueFamilies lists the distinct families resources are shared between.
func (d *Device) queueFamilies() []uint32 {
	families := make([]uint32, 0, len(d.queues))
	for _, q := range d.queues {
		families = append(families, q.family)
	}
	return families
}

// WaitForIdle blocks until all work submitted to the device completes.
func (d *Device) WaitForIdle() {
	d.check(d.native.WaitIdle(), "gfx.WaitIdle()")
	for _, q := range d.queues {
		q.retireAll()
	}
}

// References returns the number of live references to the device,
// its own reference included.
func (d *Device) References() int {
	return int(atomic.LoadInt32(&d.refs))
}

// Release drops the caller's reference. The native device is
// destroyed, after an idle wait, once every child object is released.
func (d *Device) Release() {
	d.release()
}

func (d *Device) retain() {
	atomic.AddInt32(&d.refs, 1)
}

func (d *Device) release() {
	switch n := atomic.AddInt32(&d.refs, -1); {
	case n < 0:
		d.assertf("gfx: device released more often than retained")
	case n == 0:
		d.destroy()
	}
}

func (d *Device) destroy() {
	d.WaitForIdle()
	for _, q := range d.queues {
		q.destroy()
	}
	d.native.Destroy()
	d.log.WithField("adapter", d.adapter.Name).Info("graphics device destroyed")
}
