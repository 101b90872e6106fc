package gfx

import (
	"math"
	"time"
)

const forever = time.Duration(math.MaxInt64)

// submitAndWait records a one shot command buffer on q with record,
// submits it and waits for completion.
func (d *Device) submitAndWait(q *Queue, record func(cb *CommandBuffer)) {
	cb := q.CreateCommandBuffer(LevelPrimary)
	defer cb.Release()
	fence := d.CreateFence(false)
	defer fence.Release()

	cb.BeginRecording()
	record(cb)
	cb.EndRecording()

	q.Submit(fence, cb)
	fence.Wait(forever)
}

// staging returns a host visible transfer source holding data.
func (d *Device) staging(data []byte) *Buffer {
	b := d.CreateBuffer(uint64(len(data)), BufferUsageTransferSrc|BufferUsageTransferDst, true)
	b.Write(0, data)
	return b
}

// UploadBuffer copies data into dst at offset through a staging
// buffer on the transfer queue. It blocks until the copy completes.
func (d *Device) UploadBuffer(dst *Buffer, offset uint64, data []byte) {
	if len(data) == 0 {
		return
	}
	if dst.usage&BufferUsageTransferDst == 0 {
		d.assertf("gfx: upload into a buffer created without transfer destination usage")
	}
	if offset+uint64(len(data)) > dst.size {
		d.assertf("gfx: upload of %d bytes at %d overflows buffer of %d", len(data), offset, dst.size)
	}

	stage := d.staging(data)
	defer stage.Release()

	d.submitAndWait(d.transfer, func(cb *CommandBuffer) {
		cb.CopyBuffer(stage, dst, BufferCopy{DstOffset: offset, Size: uint64(len(data))})
	})
}

// ReadBuffer returns size bytes of src from offset, copied through
// a staging buffer. It blocks until the copy completes.
func (d *Device) ReadBuffer(src *Buffer, offset, size uint64) []byte {
	if src.usage&BufferUsageTransferSrc == 0 {
		d.assertf("gfx: readback from a buffer created without transfer source usage")
	}
	if offset+size > src.size {
		d.assertf("gfx: readback of %d bytes at %d overflows buffer of %d", size, offset, src.size)
	}

	stage := d.CreateBuffer(size, BufferUsageTransferDst, true)
	defer stage.Release()

	d.submitAndWait(d.transfer, func(cb *CommandBuffer) {
		cb.CopyBuffer(src, stage, BufferCopy{SrcOffset: offset, Size: size})
	})

	out := make([]byte, size)
	copy(out, stage.Map())
	stage.Unmap()
	return out
}

// UploadImage fills the mip levels of layer 0 of dst, mips[0] being
// the full size level, and leaves the whole image in the shader read
// layout. The transitions involve fragment shader stages, so the copy
// runs on the graphics queue.
func (d *Device) UploadImage(dst *Image, mips [][]byte) {
	if len(mips) == 0 {
		return
	}
	if dst.desc.Usage&ImageUsageTransferDst == 0 {
		d.assertf("gfx: upload into an image created without transfer destination usage")
	}
	if uint32(len(mips)) > dst.desc.MipLevels {
		d.assertf("gfx: %d mips for an image with %d levels", len(mips), dst.desc.MipLevels)
	}

	var (
		data    []byte
		regions []BufferImageCopy
		bpp     = dst.desc.Format.BytesPerPixel()
	)
	for level, mip := range mips {
		extent := MipExtent(dst.desc.Width, dst.desc.Height, uint32(level))
		if want := int(extent.Width*extent.Height) * bpp; len(mip) != want {
			d.assertf("gfx: mip %d has %d bytes, want %d", level, len(mip), want)
		}
		regions = append(regions, BufferImageCopy{
			BufferOffset: uint64(len(data)),
			Aspect:       dst.desc.Format.Aspect(),
			MipLevel:     uint32(level),
			LayerCount:   1,
			ImageExtent:  Extent3D{Width: extent.Width, Height: extent.Height, Depth: 1},
		})
		data = append(data, mip...)
	}

	stage := d.staging(data)
	defer stage.Release()

	d.submitAndWait(d.graphics, func(cb *CommandBuffer) {
		cb.ImageTransition(StageTopOfPipe, StageTransfer, ImageBarrier{
			DstAccess: AccessTransferWrite,
			OldLayout: LayoutUndefined,
			NewLayout: LayoutTransferDst,
			Image:     dst,
		})
		cb.CopyBufferToImage(stage, dst, LayoutTransferDst, regions...)
		cb.ImageTransition(StageTransfer, StageFragmentShader, ImageBarrier{
			SrcAccess: AccessTransferWrite,
			DstAccess: AccessShaderRead,
			OldLayout: LayoutTransferDst,
			NewLayout: LayoutShaderReadOnly,
			Image:     dst,
		})
	})
}
