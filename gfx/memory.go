package gfx

import (
	"sync/atomic"

	"github.com/cockroachdb/errors"
	units "github.com/docker/go-units"
	"github.com/sirupsen/logrus"
)

// ErrNoMemoryType is returned when no memory type satisfies a request.
var ErrNoMemoryType = errors.New("gfx: suitable memory type not found")

func newAllocator(d *Device) *Allocator {
	return &Allocator{
		device: d,
		types:  d.native.MemoryTypes(),
	}
}

// Allocator is responsible for returning usable
// memory for any resources that may need it.
type Allocator struct {
	device *Device
	types  []MemoryType

	live  int64
	bytes int64
}

// Malloc returns a memory chunk satisfying req with at least the
// properties in prop.
func (a *Allocator) Malloc(req MemoryRequirements, prop MemoryProperty) (*Memory, error) {
	memType, err := a.findMemoryType(req.TypeBits, prop)
	if err != nil {
		return nil, err
	}

	handle, res := a.device.native.AllocateMemory(req.Size, memType)
	if err := res.Err(); err != nil {
		return nil, errors.Wrapf(err, "gfx.AllocateMemory(%s)", units.BytesSize(float64(req.Size)))
	}

	atomic.AddInt64(&a.live, 1)
	total := atomic.AddInt64(&a.bytes, int64(req.Size))
	a.device.log.WithFields(logrus.Fields{
		"size":  units.BytesSize(float64(req.Size)),
		"total": units.BytesSize(float64(total)),
		"type":  memType,
	}).Debug("device memory allocated")

	return &Memory{
		allocator:  a,
		handle:     handle,
		size:       req.Size,
		properties: a.types[memType].Properties,
	}, nil
}

func (a *Allocator) findMemoryType(filter uint32, prop MemoryProperty) (uint32, error) {
	for idx := uint32(0); idx < uint32(len(a.types)); idx++ {
		if filter&(1<<idx) != 0 && a.types[idx].Properties&prop == prop {
			return idx, nil
		}
	}
	return 0, errors.Wrapf(ErrNoMemoryType, "filter %#b, properties %#x", filter, uint32(prop))
}

// Stats returns the number of live allocations and their total size.
func (a *Allocator) Stats() (allocations int, size uint64) {
	return int(atomic.LoadInt64(&a.live)), uint64(atomic.LoadInt64(&a.bytes))
}

// Memory defines a usable memory region.
type Memory struct {
	allocator  *Allocator
	handle     Handle
	size       uint64
	properties MemoryProperty
	mapped     []byte
}

// Len returns the length of assigned memory.
func (m *Memory) Len() uint64 {
	return m.size
}

// Properties returns the properties of the memory type backing m.
func (m *Memory) Properties() MemoryProperty {
	return m.properties
}

// Native returns the driver handle.
func (m *Memory) Native() Handle {
	return m.handle
}

// Map maps the entire memory region. Repeated calls return the
// same mapping until Unmap.
func (m *Memory) Map() []byte {
	if m.mapped != nil {
		return m.mapped
	}
	if m.properties&MemoryHostVisible == 0 {
		m.allocator.device.assertf("gfx: mapping memory that is not host visible")
	}
	data, err := m.allocator.device.native.MapMemory(m.handle, 0, m.size)
	m.allocator.device.check(err, "gfx.MapMemory()")
	m.mapped = data
	return data
}

// Unmap removes the memory mapping if it was mapped.
func (m *Memory) Unmap() {
	if m.mapped != nil {
		m.allocator.device.native.UnmapMemory(m.handle)
		m.mapped = nil
	}
}

// free unmaps and returns the memory to the device.
func (m *Memory) free() {
	m.Unmap()
	m.allocator.device.native.FreeMemory(m.handle)
	atomic.AddInt64(&m.allocator.live, -1)
	atomic.AddInt64(&m.allocator.bytes, -int64(m.size))
}
