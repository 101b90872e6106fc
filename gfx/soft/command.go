package soft

import (
	"github.com/cockroachdb/errors"

	"github.com/koru3d/koru/gfx"
)

// commandBuffer records closures that run when the buffer is
// submitted, or executed from a primary buffer.
type commandBuffer struct {
	device *Device
	pool   *commandPool
	level  gfx.CommandBufferLevel

	ops       []func()
	recording bool
	ended     bool

	// Render pass state at record time.
	inPass    bool
	pipeline  *pipeline
	pushBytes int
}

func (cb *commandBuffer) record(op func()) {
	if !cb.recording {
		cb.device.invalid("command recorded outside of Begin and End")
		return
	}
	cb.ops = append(cb.ops, op)
}

func (cb *commandBuffer) execute() {
	cb.device.stats.CommandBuffers++
	for _, op := range cb.ops {
		op()
	}
}

// Begin implements interface
func (cb *commandBuffer) Begin(usage gfx.CommandBufferUsage, inheritance *gfx.Inheritance) error {
	if cb.recording {
		return errors.New("soft: command buffer is already recording")
	}
	if cb.level == gfx.LevelSecondary && usage&gfx.UsageRenderPassContinue != 0 {
		if inheritance == nil || inheritance.RenderPass == nil {
			return errors.New("soft: render pass continuation without inheritance")
		}
		cb.inPass = true
	}
	cb.ops = cb.ops[:0]
	cb.recording, cb.ended = true, false
	return nil
}

// End implements interface
func (cb *commandBuffer) End() error {
	if !cb.recording {
		return errors.New("soft: ending a command buffer that is not recording")
	}
	if cb.inPass && cb.level == gfx.LevelPrimary {
		return errors.New("soft: command buffer ended inside a render pass")
	}
	cb.recording, cb.ended, cb.inPass = false, true, false
	cb.pipeline = nil
	return nil
}

// Reset implements interface
func (cb *commandBuffer) Reset() error {
	cb.ops = nil
	cb.recording, cb.ended, cb.inPass = false, false, false
	cb.pipeline = nil
	return nil
}

// BeginRenderPass implements interface. Attachments with a clear load
// op are cleared within area.
func (cb *commandBuffer) BeginRenderPass(pass, fb gfx.Handle, area gfx.Rect2D, clears []gfx.ClearValue, contents gfx.SubpassContents) {
	rp, frame := pass.(*renderPass), fb.(*framebuffer)
	if cb.inPass {
		cb.device.invalid("render pass begun inside a render pass")
	}
	cb.inPass = true
	cb.record(func() {
		cb.device.stats.RenderPasses++
		for idx, a := range rp.desc.Attachments {
			if a.LoadOp != gfx.LoadOpClear && a.StencilLoadOp != gfx.LoadOpClear {
				continue
			}
			if idx >= len(clears) {
				cb.device.invalid("attachment %d is cleared without a clear value", idx)
				continue
			}
			frame.views[idx].clear(area, clears[idx])
		}
		for idx, a := range rp.desc.Attachments {
			if a.FinalLayout != gfx.LayoutUndefined {
				frame.views[idx].setLayout(a.FinalLayout)
			}
		}
	})
}

// EndRenderPass implements interface
func (cb *commandBuffer) EndRenderPass() {
	if !cb.inPass {
		cb.device.invalid("render pass ended outside a render pass")
	}
	cb.inPass = false
}

// BeginRendering implements interface
func (cb *commandBuffer) BeginRendering(info gfx.NativeRenderingInfo) error {
	if cb.inPass {
		cb.device.invalid("rendering begun inside a render pass")
	}
	attachments := append([]gfx.NativeRenderingAttachment(nil), info.Color...)
	if info.Depth != nil {
		attachments = append(attachments, *info.Depth)
	}
	if len(attachments) == 0 {
		return errors.New("soft: rendering without attachments")
	}
	for idx, a := range attachments {
		v := a.View.(*view)
		e := v.img.mipExtent(v.info.Range.BaseMip)
		if info.Area.Offset.X < 0 || info.Area.Offset.Y < 0 ||
			uint32(info.Area.Offset.X)+info.Area.Extent.Width > e.Width ||
			uint32(info.Area.Offset.Y)+info.Area.Extent.Height > e.Height {
			return errors.Newf("soft: render area %+v exceeds attachment %d of %dx%d",
				info.Area, idx, e.Width, e.Height)
		}
	}
	cb.inPass = true
	cb.record(func() {
		cb.device.stats.RenderPasses++
		for _, a := range attachments {
			if a.LoadOp == gfx.LoadOpClear {
				a.View.(*view).clear(info.Area, a.Clear)
			}
		}
	})
	return nil
}

// EndRendering implements interface
func (cb *commandBuffer) EndRendering() {
	cb.EndRenderPass()
}

// BindPipeline implements interface
func (cb *commandBuffer) BindPipeline(point gfx.PipelineBindPoint, handle gfx.Handle) {
	p := handle.(*pipeline)
	if (point == gfx.BindPointCompute) != (p.compute != nil) {
		cb.device.invalid("pipeline bound to the wrong bind point")
	}
	cb.pipeline = p
	cb.pushBytes = 0
	for _, r := range p.layout.push {
		if end := int(r.Offset + r.Size); end > cb.pushBytes {
			cb.pushBytes = end
		}
	}
	cb.record(func() {})
}

// BindDescriptorSets implements interface
func (cb *commandBuffer) BindDescriptorSets(point gfx.PipelineBindPoint, layout gfx.Handle, first uint32, sets []gfx.Handle) {
	l := layout.(*pipelineLayout)
	if int(first)+len(sets) > len(l.sets) {
		cb.device.invalid("binding sets %d to %d with a layout of %d", first, int(first)+len(sets), len(l.sets))
	}
	cb.record(func() {})
}

// BindVertexBuffers implements interface
func (cb *commandBuffer) BindVertexBuffers(first uint32, buffers []gfx.Handle, offsets []uint64) {
	for _, h := range buffers {
		if h.(*buffer).info.Usage&gfx.BufferUsageVertex == 0 {
			cb.device.invalid("vertex buffer bound without vertex usage")
		}
	}
	cb.record(func() {})
}

// BindIndexBuffer implements interface
func (cb *commandBuffer) BindIndexBuffer(handle gfx.Handle, offset uint64, indexType gfx.IndexType) {
	if handle.(*buffer).info.Usage&gfx.BufferUsageIndex == 0 {
		cb.device.invalid("index buffer bound without index usage")
	}
	cb.record(func() {})
}

// PushConstants implements interface
func (cb *commandBuffer) PushConstants(layout gfx.Handle, stages gfx.ShaderStage, offset uint32, data []byte) {
	if int(offset)+len(data) > cb.pushBytes {
		cb.device.invalid("push constants %d..%d exceed the %d declared bytes", offset, int(offset)+len(data), cb.pushBytes)
	}
	cb.record(func() {})
}

// SetViewport implements interface
func (cb *commandBuffer) SetViewport(viewport gfx.Viewport) {
	cb.record(func() {})
}

// SetScissor implements interface
func (cb *commandBuffer) SetScissor(scissor gfx.Rect2D) {
	cb.record(func() {})
}

func (cb *commandBuffer) draw() {
	if !cb.inPass {
		cb.device.invalid("draw outside of a render pass")
	}
	if cb.pipeline == nil || cb.pipeline.graphics == nil {
		cb.device.invalid("draw without a graphics pipeline")
	}
	cb.record(func() { cb.device.stats.Draws++ })
}

// Draw implements interface
func (cb *commandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	cb.draw()
}

// DrawIndexed implements interface
func (cb *commandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	cb.draw()
}

// Dispatch implements interface
func (cb *commandBuffer) Dispatch(x, y, z uint32) {
	if cb.pipeline == nil || cb.pipeline.compute == nil {
		cb.device.invalid("dispatch without a compute pipeline")
	}
	cb.record(func() { cb.device.stats.Dispatches++ })
}

// CopyBuffer implements interface
func (cb *commandBuffer) CopyBuffer(srcHandle, dstHandle gfx.Handle, regions []gfx.BufferCopy) {
	src, dst := srcHandle.(*buffer), dstHandle.(*buffer)
	cb.record(func() {
		cb.device.stats.Copies++
		s, d := src.bytes(), dst.bytes()
		for _, r := range regions {
			if r.SrcOffset+r.Size > uint64(len(s)) || r.DstOffset+r.Size > uint64(len(d)) {
				cb.device.invalid("buffer copy region %+v out of bounds", r)
				continue
			}
			copy(d[r.DstOffset:r.DstOffset+r.Size], s[r.SrcOffset:r.SrcOffset+r.Size])
		}
	})
}

// CopyBufferToImage implements interface
func (cb *commandBuffer) CopyBufferToImage(srcHandle, dstHandle gfx.Handle, layout gfx.ImageLayout, regions []gfx.BufferImageCopy) {
	src, dst := srcHandle.(*buffer), dstHandle.(*image)
	cb.record(func() {
		cb.device.stats.Copies++
		cb.expectLayout(layout, gfx.LayoutTransferDst)
		for _, r := range regions {
			if !dst.copyRegion(src.bytes(), r, true) {
				cb.device.invalid("buffer to image region %+v out of bounds", r)
			}
		}
	})
}

// CopyImageToBuffer implements interface
func (cb *commandBuffer) CopyImageToBuffer(srcHandle gfx.Handle, layout gfx.ImageLayout, dstHandle gfx.Handle, regions []gfx.BufferImageCopy) {
	src, dst := srcHandle.(*image), dstHandle.(*buffer)
	cb.record(func() {
		cb.device.stats.Copies++
		cb.expectLayout(layout, gfx.LayoutTransferSrc)
		for _, r := range regions {
			if !src.copyRegion(dst.bytes(), r, false) {
				cb.device.invalid("image to buffer region %+v out of bounds", r)
			}
		}
	})
}

// BlitImage implements interface
func (cb *commandBuffer) BlitImage(srcHandle gfx.Handle, srcLayout gfx.ImageLayout, dstHandle gfx.Handle, dstLayout gfx.ImageLayout, regions []gfx.ImageBlit, filter gfx.Filter) {
	src, dst := srcHandle.(*image), dstHandle.(*image)
	cb.record(func() {
		cb.device.stats.Blits++
		for _, r := range regions {
			if !blit(src, dst, r, filter) {
				cb.device.invalid("blit between formats %d and %d", src.info.Format, dst.info.Format)
			}
		}
	})
}

// PipelineBarrier implements interface. Image barriers move the
// tracked layout of the mips they cover.
func (cb *commandBuffer) PipelineBarrier(src, dst gfx.PipelineStage, memory []gfx.MemoryBarrier, buffers []gfx.NativeBufferBarrier, images []gfx.NativeImageBarrier) {
	if src == 0 || dst == 0 {
		cb.device.invalid("barrier with an empty stage mask")
	}
	images = append([]gfx.NativeImageBarrier(nil), images...)
	cb.record(func() {
		cb.device.stats.Barriers++
		for _, b := range images {
			img := b.Image.(*image)
			for level := b.Range.BaseMip; level < b.Range.BaseMip+b.Range.MipCount && int(level) < len(img.layouts); level++ {
				if b.OldLayout != gfx.LayoutUndefined && img.layouts[level] != b.OldLayout {
					cb.device.invalid("image mip %d transitioned from layout %d but is in %d",
						level, b.OldLayout, img.layouts[level])
				}
				img.layouts[level] = b.NewLayout
			}
		}
	})
}

// ExecuteCommands implements interface
func (cb *commandBuffer) ExecuteCommands(buffers []gfx.NativeCommandBuffer) {
	secondaries := make([]*commandBuffer, len(buffers))
	for idx, b := range buffers {
		secondaries[idx] = b.(*commandBuffer)
		if !secondaries[idx].ended {
			cb.device.invalid("executing a secondary command buffer that is not ended")
		}
	}
	cb.record(func() {
		for _, s := range secondaries {
			s.execute()
		}
	})
}

func (cb *commandBuffer) expectLayout(layout, want gfx.ImageLayout) {
	if layout != want && layout != gfx.LayoutGeneral {
		cb.device.invalid("transfer with image in layout %d", layout)
	}
}

func (v *view) setLayout(layout gfx.ImageLayout) {
	r := v.info.Range
	for level := r.BaseMip; level < r.BaseMip+r.MipCount && int(level) < len(v.img.layouts); level++ {
		v.img.layouts[level] = layout
	}
}
