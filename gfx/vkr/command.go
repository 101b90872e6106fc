package vkr

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/koru3d/koru/gfx"
)

type commandBuffer struct {
	device *Device
	buffer vk.CommandBuffer

	// transient framebuffers back BeginRendering and live until the
	// buffer is recorded again or freed.
	transient []vk.Framebuffer
}

func (cb *commandBuffer) releaseTransient() {
	for _, fb := range cb.transient {
		vk.DestroyFramebuffer(cb.device.device, fb, nil)
	}
	cb.transient = cb.transient[:0]
}

func (cb *commandBuffer) Begin(usage gfx.CommandBufferUsage, inheritance *gfx.Inheritance) error {
	cb.releaseTransient()
	cbbi := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(usage),
	}
	if inheritance != nil {
		cbbi.PInheritanceInfo = []vk.CommandBufferInheritanceInfo{{
			SType:       vk.StructureTypeCommandBufferInheritanceInfo,
			RenderPass:  handle[vk.RenderPass](inheritance.RenderPass),
			Subpass:     inheritance.Subpass,
			Framebuffer: handle[vk.Framebuffer](inheritance.Framebuffer),
		}}
	}
	return errors.Wrap(vk.Error(vk.BeginCommandBuffer(cb.buffer, &cbbi)), "vk.BeginCommandBuffer()")
}

func (cb *commandBuffer) End() error {
	return errors.Wrap(vk.Error(vk.EndCommandBuffer(cb.buffer)), "vk.EndCommandBuffer()")
}

func (cb *commandBuffer) Reset() error {
	cb.releaseTransient()
	return errors.Wrap(vk.Error(vk.ResetCommandBuffer(cb.buffer, 0)), "vk.ResetCommandBuffer()")
}

func (cb *commandBuffer) BeginRenderPass(pass, framebuffer gfx.Handle, area gfx.Rect2D, clears []gfx.ClearValue, contents gfx.SubpassContents) {
	rpbi := vk.RenderPassBeginInfo{
		SType:           vk.StructureTypeRenderPassBeginInfo,
		RenderPass:      handle[vk.RenderPass](pass),
		Framebuffer:     handle[vk.Framebuffer](framebuffer),
		RenderArea:      rect2D(area),
		ClearValueCount: uint32(len(clears)),
		PClearValues:    clearValues(clears),
	}
	vk.CmdBeginRenderPass(cb.buffer, &rpbi, vk.SubpassContents(contents))
}

func (cb *commandBuffer) EndRenderPass() {
	vk.CmdEndRenderPass(cb.buffer)
}

// BeginRendering is carried out with a render pass matching the
// attachments and a framebuffer over their views.
func (cb *commandBuffer) BeginRendering(info gfx.NativeRenderingInfo) error {
	pass, err := cb.device.compatiblePass(renderingKey(info))
	if err != nil {
		return err
	}

	views := make([]vk.ImageView, 0, len(info.Color)+1)
	clears := make([]gfx.ClearValue, 0, len(info.Color)+1)
	for _, c := range info.Color {
		views = append(views, handle[vk.ImageView](c.View))
		clears = append(clears, c.Clear)
	}
	if info.Depth != nil {
		views = append(views, handle[vk.ImageView](info.Depth.View))
		clears = append(clears, gfx.ClearDepth(info.Depth.Clear.Depth, info.Depth.Clear.Stencil))
	}

	extent := gfx.Extent2D{
		Width:  uint32(info.Area.Offset.X) + info.Area.Extent.Width,
		Height: uint32(info.Area.Offset.Y) + info.Area.Extent.Height,
	}
	fb, err := cb.device.framebuffer(pass, views, extent, 1)
	if err != nil {
		return err
	}
	cb.transient = append(cb.transient, fb)

	rpbi := vk.RenderPassBeginInfo{
		SType:           vk.StructureTypeRenderPassBeginInfo,
		RenderPass:      pass,
		Framebuffer:     fb,
		RenderArea:      rect2D(info.Area),
		ClearValueCount: uint32(len(clears)),
		PClearValues:    clearValues(clears),
	}
	vk.CmdBeginRenderPass(cb.buffer, &rpbi, vk.SubpassContentsInline)
	return nil
}

func (cb *commandBuffer) EndRendering() {
	vk.CmdEndRenderPass(cb.buffer)
}

func (cb *commandBuffer) BindPipeline(point gfx.PipelineBindPoint, pipeline gfx.Handle) {
	vk.CmdBindPipeline(cb.buffer, vk.PipelineBindPoint(point), handle[vk.Pipeline](pipeline))
}

func (cb *commandBuffer) BindDescriptorSets(point gfx.PipelineBindPoint, layout gfx.Handle, first uint32, sets []gfx.Handle) {
	native := handles[vk.DescriptorSet](sets)
	vk.CmdBindDescriptorSets(cb.buffer, vk.PipelineBindPoint(point), handle[vk.PipelineLayout](layout),
		first, uint32(len(native)), native, 0, nil)
}

func (cb *commandBuffer) BindVertexBuffers(first uint32, buffers []gfx.Handle, offsets []uint64) {
	native := handles[vk.Buffer](buffers)
	sizes := make([]vk.DeviceSize, len(native))
	for i := range sizes {
		if i < len(offsets) {
			sizes[i] = vk.DeviceSize(offsets[i])
		}
	}
	vk.CmdBindVertexBuffers(cb.buffer, first, uint32(len(native)), native, sizes)
}

func (cb *commandBuffer) BindIndexBuffer(buffer gfx.Handle, offset uint64, indexType gfx.IndexType) {
	vk.CmdBindIndexBuffer(cb.buffer, handle[vk.Buffer](buffer), vk.DeviceSize(offset), vk.IndexType(indexType))
}

func (cb *commandBuffer) PushConstants(layout gfx.Handle, stages gfx.ShaderStage, offset uint32, data []byte) {
	if len(data) == 0 {
		return
	}
	vk.CmdPushConstants(cb.buffer, handle[vk.PipelineLayout](layout), vk.ShaderStageFlags(stages),
		offset, uint32(len(data)), unsafe.Pointer(&data[0]))
}

func (cb *commandBuffer) SetViewport(viewport gfx.Viewport) {
	vk.CmdSetViewport(cb.buffer, 0, 1, []vk.Viewport{{
		X:        viewport.X,
		Y:        viewport.Y,
		Width:    viewport.Width,
		Height:   viewport.Height,
		MinDepth: viewport.MinDepth,
		MaxDepth: viewport.MaxDepth,
	}})
}

func (cb *commandBuffer) SetScissor(scissor gfx.Rect2D) {
	vk.CmdSetScissor(cb.buffer, 0, 1, []vk.Rect2D{rect2D(scissor)})
}

func (cb *commandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	vk.CmdDraw(cb.buffer, vertexCount, instanceCount, firstVertex, firstInstance)
}

func (cb *commandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	vk.CmdDrawIndexed(cb.buffer, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}

func (cb *commandBuffer) Dispatch(x, y, z uint32) {
	vk.CmdDispatch(cb.buffer, x, y, z)
}

func (cb *commandBuffer) CopyBuffer(src, dst gfx.Handle, regions []gfx.BufferCopy) {
	native := make([]vk.BufferCopy, len(regions))
	for i, r := range regions {
		native[i] = vk.BufferCopy{
			SrcOffset: vk.DeviceSize(r.SrcOffset),
			DstOffset: vk.DeviceSize(r.DstOffset),
			Size:      vk.DeviceSize(r.Size),
		}
	}
	vk.CmdCopyBuffer(cb.buffer, handle[vk.Buffer](src), handle[vk.Buffer](dst), uint32(len(native)), native)
}

func (cb *commandBuffer) CopyBufferToImage(src, dst gfx.Handle, layout gfx.ImageLayout, regions []gfx.BufferImageCopy) {
	native := bufferImageCopies(regions)
	vk.CmdCopyBufferToImage(cb.buffer, handle[vk.Buffer](src), handle[vk.Image](dst),
		vk.ImageLayout(layout), uint32(len(native)), native)
}

func (cb *commandBuffer) CopyImageToBuffer(src gfx.Handle, layout gfx.ImageLayout, dst gfx.Handle, regions []gfx.BufferImageCopy) {
	native := bufferImageCopies(regions)
	vk.CmdCopyImageToBuffer(cb.buffer, handle[vk.Image](src), vk.ImageLayout(layout),
		handle[vk.Buffer](dst), uint32(len(native)), native)
}

func (cb *commandBuffer) BlitImage(src gfx.Handle, srcLayout gfx.ImageLayout, dst gfx.Handle, dstLayout gfx.ImageLayout, regions []gfx.ImageBlit, filter gfx.Filter) {
	native := make([]vk.ImageBlit, len(regions))
	for i, r := range regions {
		native[i] = vk.ImageBlit{
			SrcSubresource: subresourceLayers(r.Aspect, r.SrcMip, r.BaseLayer, r.LayerCount),
			SrcOffsets:     [2]vk.Offset3D{offset3D(r.SrcOffsets[0]), offset3D(r.SrcOffsets[1])},
			DstSubresource: subresourceLayers(r.Aspect, r.DstMip, r.BaseLayer, r.LayerCount),
			DstOffsets:     [2]vk.Offset3D{offset3D(r.DstOffsets[0]), offset3D(r.DstOffsets[1])},
		}
	}
	vk.CmdBlitImage(cb.buffer, handle[vk.Image](src), vk.ImageLayout(srcLayout),
		handle[vk.Image](dst), vk.ImageLayout(dstLayout), uint32(len(native)), native, vk.Filter(filter))
}

func (cb *commandBuffer) PipelineBarrier(src, dst gfx.PipelineStage, memory []gfx.MemoryBarrier, buffers []gfx.NativeBufferBarrier, images []gfx.NativeImageBarrier) {
	mem := make([]vk.MemoryBarrier, len(memory))
	for i, b := range memory {
		mem[i] = vk.MemoryBarrier{
			SType:         vk.StructureTypeMemoryBarrier,
			SrcAccessMask: vk.AccessFlags(b.SrcAccess),
			DstAccessMask: vk.AccessFlags(b.DstAccess),
		}
	}
	buf := make([]vk.BufferMemoryBarrier, len(buffers))
	for i, b := range buffers {
		size := vk.DeviceSize(b.Size)
		if b.Size == 0 {
			size = vk.DeviceSize(vk.WholeSize)
		}
		buf[i] = vk.BufferMemoryBarrier{
			SType:               vk.StructureTypeBufferMemoryBarrier,
			SrcAccessMask:       vk.AccessFlags(b.SrcAccess),
			DstAccessMask:       vk.AccessFlags(b.DstAccess),
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Buffer:              handle[vk.Buffer](b.Buffer),
			Offset:              vk.DeviceSize(b.Offset),
			Size:                size,
		}
	}
	img := make([]vk.ImageMemoryBarrier, len(images))
	for i, b := range images {
		img[i] = vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       vk.AccessFlags(b.SrcAccess),
			DstAccessMask:       vk.AccessFlags(b.DstAccess),
			OldLayout:           vk.ImageLayout(b.OldLayout),
			NewLayout:           vk.ImageLayout(b.NewLayout),
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               handle[vk.Image](b.Image),
			SubresourceRange:    subresourceRange(b.Range),
		}
	}
	vk.CmdPipelineBarrier(cb.buffer, vk.PipelineStageFlags(src), vk.PipelineStageFlags(dst), 0,
		uint32(len(mem)), mem, uint32(len(buf)), buf, uint32(len(img)), img)
}

func (cb *commandBuffer) ExecuteCommands(buffers []gfx.NativeCommandBuffer) {
	native := make([]vk.CommandBuffer, len(buffers))
	for i, b := range buffers {
		native[i] = b.(*commandBuffer).buffer
	}
	vk.CmdExecuteCommands(cb.buffer, uint32(len(native)), native)
}
