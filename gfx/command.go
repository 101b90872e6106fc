package gfx

type recordingState int

const (
	stateInitial recordingState = iota
	stateRecording
	stateExecutable
)

// CommandBuffer records a linear sequence of GPU commands. It borrows
// the objects it references: the caller keeps them alive until the
// submission that uses them is retired. Commands are passed through
// to the driver as recorded and no barriers are inserted.
type CommandBuffer struct {
	resource

	pool   *Queue
	native NativeCommandBuffer
	level  CommandBufferLevel
	state  recordingState

	point    PipelineBindPoint
	layout   Handle
	borrowed []tracker
	children []*CommandBuffer
}

// Level returns whether the buffer is primary or secondary.
func (cb *CommandBuffer) Level() CommandBufferLevel {
	return cb.level
}

// Native returns the driver side of the buffer.
func (cb *CommandBuffer) Native() NativeCommandBuffer {
	return cb.native
}

// BeginRecording starts recording a primary buffer for one submission.
func (cb *CommandBuffer) BeginRecording() {
	cb.begin(UsageOneTimeSubmit, nil)
}

// BeginSecondary starts recording a secondary buffer that continues
// subpass of pass. The framebuffer may be nil when unknown.
func (cb *CommandBuffer) BeginSecondary(pass *RenderPass, subpass uint32, framebuffer *Framebuffer) {
	if cb.level != LevelSecondary {
		cb.device.assertf("gfx: BeginSecondary on a primary command buffer")
	}
	inheritance := &Inheritance{
		RenderPass: pass.handle,
		Subpass:    subpass,
	}
	if framebuffer != nil {
		inheritance.Framebuffer = framebuffer.handle
		cb.borrow(framebuffer)
	}
	cb.begin(UsageOneTimeSubmit|UsageRenderPassContinue, inheritance)
	cb.borrow(pass)
}

func (cb *CommandBuffer) begin(usage CommandBufferUsage, inheritance *Inheritance) {
	cb.clear()
	cb.device.check(cb.native.Begin(usage, inheritance), "gfx.BeginCommandBuffer()")
	cb.state = stateRecording
}

// EndRecording finishes recording. The buffer can then be submitted
// or executed from a primary buffer.
func (cb *CommandBuffer) EndRecording() {
	cb.device.check(cb.native.End(), "gfx.EndCommandBuffer()")
	cb.state = stateExecutable
}

// Reset returns the buffer to the initial state for recycling.
func (cb *CommandBuffer) Reset() {
	cb.device.check(cb.native.Reset(), "gfx.ResetCommandBuffer()")
	cb.clear()
	cb.state = stateInitial
}

func (cb *CommandBuffer) clear() {
	cb.borrowed = cb.borrowed[:0]
	cb.children = cb.children[:0]
	cb.layout = nil
}

func (cb *CommandBuffer) borrow(t tracker) {
	if cb.device.trackUsage {
		cb.borrowed = append(cb.borrowed, t)
	}
}

// markUsed tags every borrowed object with a submission.
func (cb *CommandBuffer) markUsed(q *Queue, serial uint64) {
	cb.used(q, serial)
	for _, t := range cb.borrowed {
		t.used(q, serial)
	}
	for _, child := range cb.children {
		child.markUsed(q, serial)
	}
}

// BeginRenderPass begins pass on framebuffer, clearing attachments
// with a clear load op to the matching entry of clears.
func (cb *CommandBuffer) BeginRenderPass(pass *RenderPass, framebuffer *Framebuffer, area Rect2D, clears []ClearValue, contents SubpassContents) {
	cb.native.BeginRenderPass(pass.handle, framebuffer.handle, area, clears, contents)
	cb.borrow(pass)
	cb.borrow(framebuffer)
}

// EndRenderPass ends the current render pass.
func (cb *CommandBuffer) EndRenderPass() {
	cb.native.EndRenderPass()
}

// RenderingAttachment is a target of render pass-less rendering.
type RenderingAttachment struct {
	View    *ImageView
	LoadOp  LoadOp
	StoreOp StoreOp
	Clear   ClearValue
}

// RenderingInfo describes render pass-less rendering to image views.
type RenderingInfo struct {
	Area  Rect2D
	Color []RenderingAttachment
	Depth *RenderingAttachment
}

// BeginRendering starts rendering directly to image views, for use
// with pipelines created by CreatePipelineForFormats.
func (cb *CommandBuffer) BeginRendering(info RenderingInfo) {
	native := NativeRenderingInfo{Area: info.Area}
	for _, a := range info.Color {
		native.Color = append(native.Color, cb.renderingAttachment(a))
	}
	if info.Depth != nil {
		depth := cb.renderingAttachment(*info.Depth)
		native.Depth = &depth
	}
	cb.device.check(cb.native.BeginRendering(native), "gfx.BeginRendering()")
}

func (cb *CommandBuffer) renderingAttachment(a RenderingAttachment) NativeRenderingAttachment {
	cb.borrow(a.View)
	return NativeRenderingAttachment{
		View:    a.View.handle,
		Format:  a.View.desc.Format,
		LoadOp:  a.LoadOp,
		StoreOp: a.StoreOp,
		Clear:   a.Clear,
	}
}

// EndRendering ends render pass-less rendering.
func (cb *CommandBuffer) EndRendering() {
	cb.native.EndRendering()
}

// BindPipeline binds a graphics pipeline. Descriptor sets and push
// constants recorded afterwards use its layout.
func (cb *CommandBuffer) BindPipeline(p *Pipeline) {
	cb.native.BindPipeline(BindPointGraphics, p.handle)
	cb.point = BindPointGraphics
	cb.layout = p.layout
	cb.borrow(p)
}

// BindComputePipeline binds a compute pipeline.
func (cb *CommandBuffer) BindComputePipeline(p *ComputePipeline) {
	cb.native.BindPipeline(BindPointCompute, p.handle)
	cb.point = BindPointCompute
	cb.layout = p.layout
	cb.borrow(p)
}

func (cb *CommandBuffer) boundLayout() Handle {
	if cb.layout == nil {
		cb.device.assertf("gfx: no pipeline bound")
	}
	return cb.layout
}

// BindDescriptorSets binds sets starting at set index first, using
// the layout of the bound pipeline.
func (cb *CommandBuffer) BindDescriptorSets(first uint32, sets ...*DescriptorSet) {
	handles := make([]Handle, len(sets))
	for idx, set := range sets {
		handles[idx] = set.handle
		cb.borrow(set)
	}
	cb.native.BindDescriptorSets(cb.point, cb.boundLayout(), first, handles)
}

// BindVertexBuffers binds buffers to consecutive bindings from first.
// A nil offsets slice binds every buffer from its start.
func (cb *CommandBuffer) BindVertexBuffers(first uint32, buffers []*Buffer, offsets []uint64) {
	if offsets == nil {
		offsets = make([]uint64, len(buffers))
	}
	handles := make([]Handle, len(buffers))
	for idx, b := range buffers {
		handles[idx] = b.handle
		cb.borrow(b)
	}
	cb.native.BindVertexBuffers(first, handles, offsets)
}

// BindIndexBuffer binds the index buffer for indexed draws.
func (cb *CommandBuffer) BindIndexBuffer(b *Buffer, offset uint64, indexType IndexType) {
	cb.native.BindIndexBuffer(b.handle, offset, indexType)
	cb.borrow(b)
}

// PushConstants uploads data into the push constant range at offset.
func (cb *CommandBuffer) PushConstants(stages ShaderStage, offset uint32, data []byte) {
	cb.native.PushConstants(cb.boundLayout(), stages, offset, data)
}

// SetViewport sets the dynamic viewport.
func (cb *CommandBuffer) SetViewport(v Viewport) {
	cb.native.SetViewport(v)
}

// SetScissor sets the dynamic scissor rectangle.
func (cb *CommandBuffer) SetScissor(r Rect2D) {
	cb.native.SetScissor(r)
}

// Draw records a non-indexed draw.
func (cb *CommandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	cb.native.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

// DrawIndexed records an indexed draw.
func (cb *CommandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	cb.native.DrawIndexed(indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}

// Dispatch records a compute dispatch.
func (cb *CommandBuffer) Dispatch(x, y, z uint32) {
	cb.native.Dispatch(x, y, z)
}

// CopyBuffer copies regions between buffers. Without regions the
// whole of the smaller buffer is copied.
func (cb *CommandBuffer) CopyBuffer(src, dst *Buffer, regions ...BufferCopy) {
	if len(regions) == 0 {
		size := src.size
		if dst.size < size {
			size = dst.size
		}
		regions = []BufferCopy{{Size: size}}
	}
	cb.native.CopyBuffer(src.handle, dst.handle, regions)
	cb.borrow(src)
	cb.borrow(dst)
}

// CopyBufferToImage copies buffer data into an image in layout.
func (cb *CommandBuffer) CopyBufferToImage(src *Buffer, dst *Image, layout ImageLayout, regions ...BufferImageCopy) {
	cb.native.CopyBufferToImage(src.handle, dst.handle, layout, regions)
	cb.borrow(src)
	cb.borrow(dst)
}

// CopyImageToBuffer copies image data in layout into a buffer.
func (cb *CommandBuffer) CopyImageToBuffer(src *Image, layout ImageLayout, dst *Buffer, regions ...BufferImageCopy) {
	cb.native.CopyImageToBuffer(src.handle, layout, dst.handle, regions)
	cb.borrow(src)
	cb.borrow(dst)
}

// BlitImage copies regions between images with scaling and filtering.
func (cb *CommandBuffer) BlitImage(src *Image, srcLayout ImageLayout, dst *Image, dstLayout ImageLayout, filter Filter, regions ...ImageBlit) {
	cb.native.BlitImage(src.handle, srcLayout, dst.handle, dstLayout, regions, filter)
	cb.borrow(src)
	cb.borrow(dst)
}

// BufferBarrier orders accesses to a buffer range. A zero Size
// covers the rest of the buffer from Offset.
type BufferBarrier struct {
	SrcAccess Access
	DstAccess Access
	Buffer    *Buffer
	Offset    uint64
	Size      uint64
}

// ImageBarrier orders accesses to an image and transitions its layout.
// A zero Range covers every mip and layer.
type ImageBarrier struct {
	SrcAccess Access
	DstAccess Access
	OldLayout ImageLayout
	NewLayout ImageLayout
	Image     *Image
	Range     SubresourceRange
}

// Barriers is a batch of barriers recorded with one command.
type Barriers struct {
	Memory  []MemoryBarrier
	Buffers []BufferBarrier
	Images  []ImageBarrier
}

// PipelineBarrier records a batch of barriers between the src and
// dst stages.
func (cb *CommandBuffer) PipelineBarrier(src, dst PipelineStage, barriers Barriers) {
	var (
		buffers []NativeBufferBarrier
		images  []NativeImageBarrier
	)
	for _, b := range barriers.Buffers {
		size := b.Size
		if size == 0 {
			size = b.Buffer.size - b.Offset
		}
		buffers = append(buffers, NativeBufferBarrier{
			SrcAccess: b.SrcAccess,
			DstAccess: b.DstAccess,
			Buffer:    b.Buffer.handle,
			Offset:    b.Offset,
			Size:      size,
		})
		cb.borrow(b.Buffer)
	}
	for _, b := range barriers.Images {
		rng := b.Range
		if rng.Aspect == 0 {
			rng.Aspect = b.Image.desc.Format.Aspect()
		}
		if rng.MipCount == 0 {
			rng.MipCount = b.Image.desc.MipLevels - rng.BaseMip
		}
		if rng.LayerCount == 0 {
			rng.LayerCount = b.Image.desc.Layers - rng.BaseLayer
		}
		images = append(images, NativeImageBarrier{
			SrcAccess: b.SrcAccess,
			DstAccess: b.DstAccess,
			OldLayout: b.OldLayout,
			NewLayout: b.NewLayout,
			Image:     b.Image.handle,
			Range:     rng,
		})
		cb.borrow(b.Image)
	}
	cb.native.PipelineBarrier(src, dst, barriers.Memory, buffers, images)
}

// ImageTransition records a single image layout transition.
func (cb *CommandBuffer) ImageTransition(src, dst PipelineStage, barrier ImageBarrier) {
	cb.PipelineBarrier(src, dst, Barriers{Images: []ImageBarrier{barrier}})
}

// ExecuteCommands runs ended secondary buffers from this primary buffer.
func (cb *CommandBuffer) ExecuteCommands(secondaries ...*CommandBuffer) {
	natives := make([]NativeCommandBuffer, len(secondaries))
	for idx, s := range secondaries {
		if s.level != LevelSecondary {
			cb.device.assertf("gfx: executing a primary command buffer")
		}
		natives[idx] = s.native
	}
	cb.native.ExecuteCommands(natives)
	cb.children = append(cb.children, secondaries...)
}

// Release implements interface
func (cb *CommandBuffer) Release() {
	if !cb.drop() {
		return
	}
	cb.device.native.FreeCommandBuffer(cb.pool.pool, cb.native)
	cb.borrowed = nil
	cb.children = nil
	cb.finish()
}
