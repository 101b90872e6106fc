package gfx

import (
	"github.com/cockroachdb/errors"
	units "github.com/docker/go-units"
)

// CreateBuffer creates a buffer of size bytes with its own memory.
// Mappable buffers live in host visible, coherent memory, others in
// device local memory. Failing to allocate is fatal.
func (d *Device) CreateBuffer(size uint64, usage BufferUsage, mappable bool) *Buffer {
	if size == 0 {
		d.assertf("gfx: zero sized buffer")
	}

	handle, req, err := d.native.CreateBuffer(BufferInfo{
		Size:          size,
		Usage:         usage,
		QueueFamilies: d.queueFamilies(),
	})
	d.check(err, "gfx.CreateBuffer()")

	prop := MemoryDeviceLocal
	if mappable {
		prop = MemoryHostVisible | MemoryHostCoherent
	}
	memory, err := d.allocator.Malloc(req, prop)
	if err != nil {
		d.native.DestroyBuffer(handle)
		d.fatal(errors.Wrapf(err, "gfx: buffer of %s", units.BytesSize(float64(size))))
	}
	if err := d.native.BindBufferMemory(handle, memory.handle, 0); err != nil {
		d.fatal(errors.Wrap(err, "gfx.BindBufferMemory()"))
	}

	b := &Buffer{
		handle:   handle,
		memory:   memory,
		size:     size,
		usage:    usage,
		mappable: mappable,
	}
	b.init(d, "buffer")
	return b
}

// Buffer is a linear array of device memory.
type Buffer struct {
	resource

	handle   Handle
	memory   *Memory
	size     uint64
	usage    BufferUsage
	mappable bool
}

// Size returns the requested size in bytes.
func (b *Buffer) Size() uint64 {
	return b.size
}

// Usage returns the usage flags the buffer was created with.
func (b *Buffer) Usage() BufferUsage {
	return b.usage
}

// Mappable reports whether the host can map the buffer.
func (b *Buffer) Mappable() bool {
	return b.mappable
}

// Native returns the driver handle.
func (b *Buffer) Native() Handle {
	return b.handle
}

// Map returns the buffer contents for host access.
func (b *Buffer) Map() []byte {
	if !b.mappable {
		b.device.assertf("gfx: mapping a buffer created without host access")
	}
	return b.memory.Map()[:b.size]
}

// Unmap ends host access started by Map.
func (b *Buffer) Unmap() {
	b.memory.Unmap()
}

// Write copies data into a mappable buffer at offset.
func (b *Buffer) Write(offset uint64, data []byte) {
	if offset+uint64(len(data)) > b.size {
		b.device.assertf("gfx: write of %d bytes at %d overflows buffer of %d", len(data), offset, b.size)
	}
	copy(b.Map()[offset:], data)
	b.Unmap()
}

// Release implements interface
func (b *Buffer) Release() {
	if !b.drop() {
		return
	}
	b.device.native.DestroyBuffer(b.handle)
	b.memory.free()
	b.finish()
}
