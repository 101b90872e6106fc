// Package soft is a graphics driver that keeps every object in host
// memory. Transfers, blits and attachment clears are executed for real,
// draws and dispatches are only counted. Presentation goes to a
// simulated Surface.
//
// The driver backs headless tools and the tests of the packages built
// on gfx.
package soft

import (
	"github.com/cockroachdb/errors"
	units "github.com/docker/go-units"
	"github.com/sirupsen/logrus"

	"github.com/koru3d/koru/gfx"
)

// Config configures the software driver.
type Config struct {
	// Adapters defaults to a single DefaultAdapter.
	Adapters []gfx.AdapterInfo

	// Surface receives presented images. Swapchains cannot be
	// created without one.
	Surface *Surface

	// MemoryLimit makes allocations beyond it fail with
	// gfx.ErrorOutOfDeviceMemory. Zero means unlimited.
	MemoryLimit uint64

	// Logger defaults to the logrus standard logger.
	Logger *logrus.Logger
}

// DefaultAdapter describes a CPU adapter with a graphics and present
// capable family and a dedicated transfer family.
func DefaultAdapter() gfx.AdapterInfo {
	return gfx.AdapterInfo{
		ID:            1,
		Name:          "koru software device",
		Type:          gfx.AdapterCPU,
		Extensions:    []string{gfx.SwapchainExtension},
		Memory:        256 * units.MiB,
		DriverVersion: 1,
		QueueFamilies: []gfx.QueueFamily{
			{Flags: gfx.QueueGraphics | gfx.QueueCompute | gfx.QueueTransfer, Count: 1, Present: true},
			{Flags: gfx.QueueTransfer, Count: 1},
		},
	}
}

// New returns a software backend.
func New(cfg Config) *Backend {
	if len(cfg.Adapters) == 0 {
		cfg.Adapters = []gfx.AdapterInfo{DefaultAdapter()}
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return &Backend{cfg: cfg}
}

// Backend implements gfx.Backend.
type Backend struct {
	cfg      Config
	callback gfx.DebugCallback
	devices  []*Device
}

// Name implements interface
func (b *Backend) Name() string {
	return "soft"
}

// Adapters implements interface
func (b *Backend) Adapters() ([]gfx.AdapterInfo, error) {
	return append([]gfx.AdapterInfo(nil), b.cfg.Adapters...), nil
}

// SetDebugCallback implements interface. Validation failures detected
// by the driver are reported to cb.
func (b *Backend) SetDebugCallback(cb gfx.DebugCallback) error {
	b.callback = cb
	return nil
}

// CreateDevice implements interface
func (b *Backend) CreateDevice(adapter int, info gfx.DeviceInfo) (gfx.NativeDevice, error) {
	if adapter < 0 || adapter >= len(b.cfg.Adapters) {
		return nil, errors.Newf("soft: adapter %d does not exist", adapter)
	}
	a := b.cfg.Adapters[adapter]
	for _, ext := range info.Extensions {
		if !a.HasExtension(ext) {
			return nil, errors.Newf("soft: extension %s not present", ext)
		}
	}
	for _, q := range info.Queues {
		if int(q.Family) >= len(a.QueueFamilies) || a.QueueFamilies[q.Family].Count < q.Count {
			return nil, errors.Newf("soft: cannot create %d queues of family %d", q.Count, q.Family)
		}
	}

	d := newDevice(b, a, info)
	b.devices = append(b.devices, d)
	return d, nil
}

// Devices returns every device created by the backend.
func (b *Backend) Devices() []*Device {
	return b.devices
}

// Destroy implements interface
func (b *Backend) Destroy() {
	for _, d := range b.devices {
		if !d.destroyed {
			b.report(gfx.SeverityError, "instance destroyed before device %q", d.adapter.Name)
		}
	}
}

func (b *Backend) report(severity gfx.DebugSeverity, format string, args ...interface{}) {
	msg := errors.Newf(format, args...).Error()
	if b.callback != nil {
		b.callback(gfx.DebugMessage{
			Severity: severity,
			Layer:    "soft",
			Message:  msg,
		})
		return
	}
	if severity >= gfx.SeverityWarning {
		b.cfg.Logger.WithField("layer", "soft").Warn(msg)
	}
}
