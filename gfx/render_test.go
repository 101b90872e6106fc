package gfx_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	qt "github.com/frankban/quicktest"

	"github.com/koru3d/koru/gfx"
	"github.com/koru3d/koru/gfx/soft"
)

func TestPipelineDefaultBlend(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, soft.Config{}, false)
	defer f.device.Release()

	vs := mustShader(c, f.device, gfx.ShaderStageVertex)
	defer vs.Release()
	fs := mustShader(c, f.device, gfx.ShaderStageFragment)
	defer fs.Release()
	desc := gfx.PipelineDesc{
		Stages: []gfx.ShaderStageDesc{{Shader: vs}, {Shader: fs}},
		VertexBindings: []gfx.VertexBinding{
			{Binding: 0, Stride: 20},
		},
		VertexAttributes: []gfx.VertexAttribute{
			{Location: 0, Binding: 0, Format: gfx.FormatR32G32B32Sfloat},
			{Location: 1, Binding: 0, Format: gfx.FormatR32G32Sfloat, Offset: 12},
		},
		Topology: gfx.TopologyTriangleList,
	}

	c.Run("formats", func(c *qt.C) {
		p := f.device.CreatePipelineForFormats(desc,
			[]gfx.Format{gfx.FormatR8G8B8A8Unorm, gfx.FormatR32G32B32A32Sfloat}, gfx.FormatD32Sfloat)
		defer p.Release()

		blend := p.Info().Blend.Attachments
		c.Assert(blend, qt.DeepEquals, []gfx.BlendAttachment{gfx.OpaqueBlend, gfx.OpaqueBlend})
		c.Assert(blend[0].BlendEnable, qt.IsFalse)
		c.Assert(blend[0].WriteMask, qt.Equals, gfx.ColorRGBA)

		native := soft.PipelineState(p.Native())
		c.Assert(native.State.Blend.Attachments, qt.HasLen, 2)
		c.Assert(native.State.Rasterizer.LineWidth, qt.Equals, float32(1))
		c.Assert(native.State.Samples, qt.Equals, uint32(1))
		c.Assert(native.Stages[1].Entry, qt.Equals, "main")
		c.Assert(native.DepthFormat, qt.Equals, gfx.FormatD32Sfloat)
	})

	c.Run("render pass", func(c *qt.C) {
		attachment := gfx.AttachmentDesc{Format: gfx.FormatR8G8B8A8Unorm, LoadOp: gfx.LoadOpClear, StoreOp: gfx.StoreOpStore}
		pass := f.device.CreateRenderPass(gfx.RenderPassDesc{
			Attachments: []gfx.AttachmentDesc{attachment, attachment, attachment},
			Subpasses: []gfx.SubpassDesc{{
				ColorAttachments: []gfx.AttachmentRef{
					{Attachment: 0, Layout: gfx.LayoutColorAttachment},
					{Attachment: 1, Layout: gfx.LayoutColorAttachment},
					{Attachment: 2, Layout: gfx.LayoutColorAttachment},
				},
			}},
		})
		defer pass.Release()
		c.Assert(pass.Desc().Attachments[0].Samples, qt.Equals, uint32(1))

		p := f.device.CreatePipeline(desc, pass, 0)
		defer p.Release()
		c.Assert(soft.PipelineState(p.Native()).State.Blend.Attachments, qt.HasLen, 3)
	})

	c.Run("explicit blend", func(c *qt.C) {
		alpha := desc
		alpha.Blend.Attachments = []gfx.BlendAttachment{gfx.AlphaBlend}
		alpha.VertexAttributes = append([]gfx.VertexAttribute{}, desc.VertexAttributes...)
		p := f.device.CreatePipelineForFormats(alpha, []gfx.Format{gfx.FormatB8G8R8A8Unorm}, gfx.FormatUndefined)
		defer p.Release()
		c.Assert(p.Info().Blend.Attachments[0].BlendEnable, qt.IsTrue)

		alpha.Blend.Attachments[0] = gfx.OpaqueBlend
		alpha.VertexAttributes[0].Offset = 99
		c.Assert(p.Info().Blend.Attachments[0], qt.Equals, gfx.AlphaBlend)
		c.Assert(p.Info().VertexAttributes[0].Offset, qt.Equals, uint32(0))

		p.Info().Blend.Attachments[0] = gfx.OpaqueBlend
		c.Assert(p.Info().Blend.Attachments[0], qt.Equals, gfx.AlphaBlend)
		c.Assert(soft.PipelineState(p.Native()).State.Blend.Attachments[0], qt.Equals, gfx.AlphaBlend)
	})

	c.Run("blend count mismatch", func(c *qt.C) {
		alpha := desc
		alpha.Blend.Attachments = []gfx.BlendAttachment{gfx.AlphaBlend}
		err := expectFatal(c, func() {
			f.device.CreatePipelineForFormats(alpha,
				[]gfx.Format{gfx.FormatR8G8B8A8Unorm, gfx.FormatR8G8B8A8Unorm}, gfx.FormatUndefined)
		})
		c.Assert(err, qt.ErrorMatches, `.*1 blend states for 2 color attachments.*`)
		c.Assert(errors.HasAssertionFailure(err), qt.IsTrue)
	})

	c.Run("unknown vertex binding", func(c *qt.C) {
		broken := desc
		broken.VertexAttributes = append([]gfx.VertexAttribute{}, desc.VertexAttributes...)
		broken.VertexAttributes[1].Binding = 3
		err := expectFatal(c, func() {
			f.device.CreatePipelineForFormats(broken, []gfx.Format{gfx.FormatR8G8B8A8Unorm}, gfx.FormatUndefined)
		})
		c.Assert(err, qt.ErrorMatches, `.*attribute 1 reads unknown binding 3.*`)
	})

	c.Assert(f.native.Live()["pipeline layout"], qt.Equals, 0)
}

func TestRenderPassClear(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, soft.Config{}, false)
	defer f.device.Release()

	const size = 4
	color := f.device.CreateImage(gfx.ImageDesc{
		Width:  size,
		Height: size,
		Format: gfx.FormatR8G8B8A8Unorm,
		Usage:  gfx.ImageUsageColorAttachment | gfx.ImageUsageTransferSrc,
	})
	defer color.Release()
	depth := f.device.CreateImage(gfx.ImageDesc{
		Width:  size,
		Height: size,
		Format: gfx.FormatD32Sfloat,
		Usage:  gfx.ImageUsageDepthAttachment,
	})
	defer depth.Release()
	colorView := f.device.CreateImageView(color, gfx.ImageViewDesc{})
	depthView := f.device.CreateImageView(depth, gfx.ImageViewDesc{})
	c.Assert(depthView.Range().Aspect, qt.Equals, gfx.AspectDepth)

	pass := f.device.CreateRenderPass(gfx.ColorDepthPass(gfx.FormatR8G8B8A8Unorm, gfx.FormatD32Sfloat, gfx.LayoutTransferSrc))
	defer pass.Release()
	fb := f.device.CreateFramebuffer(pass, []*gfx.ImageView{colorView, depthView}, size, size)
	defer fb.Release()
	colorView.Release()
	depthView.Release()
	c.Assert(fb.Extent(), qt.Equals, gfx.Extent2D{Width: size, Height: size})

	readback := f.device.CreateBuffer(size*size*4, gfx.BufferUsageTransferDst|gfx.BufferUsageTransferSrc, true)
	defer readback.Release()

	queue := f.device.GetQueue(gfx.QueueGraphics)
	cb := queue.CreateCommandBuffer(gfx.LevelPrimary)
	defer cb.Release()
	fence := f.device.CreateFence(false)
	defer fence.Release()

	cb.BeginRecording()
	cb.BeginRenderPass(pass, fb, gfx.Rect2D{Extent: fb.Extent()},
		[]gfx.ClearValue{gfx.ClearColor(1, 0, 0.5, 1), gfx.ClearDepth(1, 0)}, gfx.ContentsInline)
	cb.EndRenderPass()
	cb.CopyImageToBuffer(color, gfx.LayoutTransferSrc, readback, gfx.BufferImageCopy{
		Aspect:      gfx.AspectColor,
		LayerCount:  1,
		ImageExtent: gfx.Extent3D{Width: size, Height: size, Depth: 1},
	})
	cb.EndRecording()
	queue.Submit(fence, cb)
	c.Assert(fence.Wait(time.Second), qt.IsTrue)

	want := bytes.Repeat([]byte{255, 0, 128, 255}, size*size)
	c.Assert(readback.Map(), qt.DeepEquals, want)
	readback.Unmap()

	stats := f.native.Stats()
	c.Assert(stats.RenderPasses, qt.Equals, 1)
	c.Assert(stats.ValidationErrors, qt.Equals, 0)
}

func TestFramebufferViewCount(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, soft.Config{}, false)
	defer f.device.Release()

	pass := f.device.CreateRenderPass(gfx.ColorDepthPass(gfx.FormatR8G8B8A8Unorm, gfx.FormatD32Sfloat, gfx.LayoutPresentSrc))
	defer pass.Release()
	err := expectFatal(c, func() { f.device.CreateFramebuffer(pass, nil, 16, 16) })
	c.Assert(err, qt.ErrorMatches, `.*framebuffer has 0 views for 2 attachments.*`)
}

func TestBeginRenderingFailureIsFatal(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, soft.Config{}, false)
	defer f.device.Release()

	color := f.device.CreateImage(gfx.ImageDesc{
		Width:  4,
		Height: 4,
		Format: gfx.FormatR8G8B8A8Unorm,
		Usage:  gfx.ImageUsageColorAttachment,
	})
	defer color.Release()
	view := f.device.CreateImageView(color, gfx.ImageViewDesc{})
	defer view.Release()

	cb := f.device.GetQueue(gfx.QueueGraphics).CreateCommandBuffer(gfx.LevelPrimary)
	defer cb.Release()
	cb.BeginRecording()

	err := expectFatal(c, func() {
		cb.BeginRendering(gfx.RenderingInfo{
			Area:  gfx.Rect2D{Extent: gfx.Extent2D{Width: 8, Height: 8}},
			Color: []gfx.RenderingAttachment{{View: view, LoadOp: gfx.LoadOpClear, StoreOp: gfx.StoreOpStore}},
		})
	})
	c.Assert(err, qt.ErrorMatches, `gfx.BeginRendering\(\): soft: render area .* exceeds attachment 0 of 4x4`)

	err = expectFatal(c, func() { cb.BeginRendering(gfx.RenderingInfo{Area: gfx.Rect2D{Extent: gfx.Extent2D{Width: 4, Height: 4}}}) })
	c.Assert(err, qt.ErrorMatches, `.*rendering without attachments`)

	cb.BeginRendering(gfx.RenderingInfo{
		Area:  gfx.Rect2D{Extent: gfx.Extent2D{Width: 4, Height: 4}},
		Color: []gfx.RenderingAttachment{{View: view, LoadOp: gfx.LoadOpClear, StoreOp: gfx.StoreOpStore}},
	})
	cb.EndRendering()
	cb.EndRecording()
	c.Assert(f.native.Stats().ValidationErrors, qt.Equals, 0)
}

func TestUploadImageMips(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, soft.Config{}, false)
	defer f.device.Release()

	img := f.device.CreateImage(gfx.ImageDesc{
		Width:     4,
		Height:    2,
		Format:    gfx.FormatR8G8B8A8Unorm,
		MipLevels: 3,
		Usage:     gfx.ImageUsageSampled | gfx.ImageUsageTransferDst | gfx.ImageUsageTransferSrc,
	})
	defer img.Release()

	mips := [][]byte{
		bytes.Repeat([]byte{1, 2, 3, 4}, 8),
		bytes.Repeat([]byte{5, 6, 7, 8}, 2),
		{9, 10, 11, 12},
	}
	f.device.UploadImage(img, mips)

	readback := f.device.CreateBuffer(8, gfx.BufferUsageTransferDst, true)
	defer readback.Release()
	queue := f.device.GetQueue(gfx.QueueGraphics)
	cb := queue.CreateCommandBuffer(gfx.LevelPrimary)
	defer cb.Release()
	fence := f.device.CreateFence(false)
	defer fence.Release()

	cb.BeginRecording()
	cb.ImageTransition(gfx.StageFragmentShader, gfx.StageTransfer, gfx.ImageBarrier{
		SrcAccess: gfx.AccessShaderRead,
		DstAccess: gfx.AccessTransferRead,
		OldLayout: gfx.LayoutShaderReadOnly,
		NewLayout: gfx.LayoutTransferSrc,
		Image:     img,
	})
	cb.CopyImageToBuffer(img, gfx.LayoutTransferSrc, readback, gfx.BufferImageCopy{
		Aspect:      gfx.AspectColor,
		MipLevel:    1,
		LayerCount:  1,
		ImageExtent: gfx.Extent3D{Width: 2, Height: 1, Depth: 1},
	})
	cb.EndRecording()
	queue.Submit(fence, cb)
	c.Assert(fence.Wait(time.Second), qt.IsTrue)

	c.Assert(readback.Map(), qt.DeepEquals, mips[1])
	readback.Unmap()
	c.Assert(f.native.Stats().ValidationErrors, qt.Equals, 0)

	err := expectFatal(c, func() { f.device.UploadImage(img, [][]byte{{1, 2, 3}}) })
	c.Assert(err, qt.ErrorMatches, `.*mip 0 has 3 bytes, want 32.*`)
}

func TestComputeDispatch(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, soft.Config{}, false)
	defer f.device.Release()

	cs := mustShader(c, f.device, gfx.ShaderStageCompute)
	defer cs.Release()
	p := f.device.CreateComputePipeline(cs, nil, []gfx.PushConstantRange{
		{Stages: gfx.ShaderStageCompute, Size: 16},
	})
	defer p.Release()

	queue := f.device.GetQueue(gfx.QueueGraphics)
	cb := queue.CreateCommandBuffer(gfx.LevelPrimary)
	defer cb.Release()
	cb.BeginRecording()
	cb.BindComputePipeline(p)
	cb.PushConstants(gfx.ShaderStageCompute, 0, make([]byte, 16))
	cb.Dispatch(8, 8, 1)
	cb.EndRecording()
	queue.Submit(nil, cb)
	queue.WaitIdle()

	stats := f.native.Stats()
	c.Assert(stats.Dispatches, qt.Equals, 1)
	c.Assert(stats.ValidationErrors, qt.Equals, 0)
	c.Assert(queue.Completed(), qt.Equals, uint64(1))

	vs := mustShader(c, f.device, gfx.ShaderStageVertex)
	defer vs.Release()
	err := expectFatal(c, func() { f.device.CreateComputePipeline(vs, nil, nil) })
	c.Assert(errors.HasAssertionFailure(err), qt.IsTrue)
}

func TestSecondaryCommandBuffers(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, soft.Config{}, false)
	defer f.device.Release()

	img := f.device.CreateImage(gfx.ImageDesc{
		Width:  2,
		Height: 2,
		Format: gfx.FormatR8G8B8A8Unorm,
		Usage:  gfx.ImageUsageColorAttachment,
	})
	defer img.Release()
	view := f.device.CreateImageView(img, gfx.ImageViewDesc{})
	defer view.Release()
	pass := f.device.CreateRenderPass(gfx.ColorDepthPass(gfx.FormatR8G8B8A8Unorm, gfx.FormatUndefined, gfx.LayoutShaderReadOnly))
	defer pass.Release()
	fb := f.device.CreateFramebuffer(pass, []*gfx.ImageView{view}, 2, 2)
	defer fb.Release()
	vs := mustShader(c, f.device, gfx.ShaderStageVertex)
	defer vs.Release()
	p := f.device.CreatePipeline(gfx.PipelineDesc{Stages: []gfx.ShaderStageDesc{{Shader: vs}}}, pass, 0)
	defer p.Release()

	queue := f.device.GetQueue(gfx.QueueGraphics)
	secondary := queue.CreateCommandBuffer(gfx.LevelSecondary)
	defer secondary.Release()
	secondary.BeginSecondary(pass, 0, fb)
	secondary.BindPipeline(p)
	secondary.Draw(3, 1, 0, 0)
	secondary.EndRecording()

	primary := queue.CreateCommandBuffer(gfx.LevelPrimary)
	defer primary.Release()
	primary.BeginRecording()
	primary.BeginRenderPass(pass, fb, gfx.Rect2D{Extent: fb.Extent()},
		[]gfx.ClearValue{gfx.ClearColor(0, 0, 0, 1)}, gfx.ContentsSecondary)
	primary.ExecuteCommands(secondary, secondary)
	primary.EndRenderPass()
	primary.EndRecording()
	queue.Submit(nil, primary)
	queue.WaitIdle()

	stats := f.native.Stats()
	c.Assert(stats.Draws, qt.Equals, 2)
	c.Assert(stats.CommandBuffers, qt.Equals, 3)
	c.Assert(stats.ValidationErrors, qt.Equals, 0)

	err := expectFatal(c, func() { primary.ExecuteCommands(primary) })
	c.Assert(err, qt.ErrorMatches, `.*executing a primary command buffer.*`)
}
