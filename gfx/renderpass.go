package gfx

// AttachmentDesc describes one attachment of a render pass.
type AttachmentDesc struct {
	Format Format

	// Samples defaults to 1.
	Samples        uint32
	LoadOp         LoadOp
	StoreOp        StoreOp
	StencilLoadOp  LoadOp
	StencilStoreOp StoreOp
	InitialLayout  ImageLayout
	FinalLayout    ImageLayout
}

// AttachmentRef refers to an attachment from a subpass.
type AttachmentRef struct {
	Attachment uint32
	Layout     ImageLayout
}

// SubpassDesc lists the attachments a subpass reads and writes.
type SubpassDesc struct {
	InputAttachments []AttachmentRef
	ColorAttachments []AttachmentRef
	DepthAttachment  *AttachmentRef
}

// SubpassDependency orders two subpasses, or a subpass and commands
// outside the render pass when one side is SubpassExternal.
type SubpassDependency struct {
	SrcSubpass uint32
	DstSubpass uint32
	SrcStage   PipelineStage
	DstStage   PipelineStage
	SrcAccess  Access
	DstAccess  Access
}

// RenderPassDesc describes a render pass.
type RenderPassDesc struct {
	Attachments  []AttachmentDesc
	Subpasses    []SubpassDesc
	Dependencies []SubpassDependency
}

// ColorDepthPass describes the usual single subpass pass: one cleared
// color attachment handed to presentation afterwards and, unless depth
// is FormatUndefined, a cleared depth attachment.
func ColorDepthPass(color, depth Format, finalLayout ImageLayout) RenderPassDesc {
	desc := RenderPassDesc{
		Attachments: []AttachmentDesc{{
			Format:      color,
			LoadOp:      LoadOpClear,
			StoreOp:     StoreOpStore,
			FinalLayout: finalLayout,
		}},
		Subpasses: []SubpassDesc{{
			ColorAttachments: []AttachmentRef{{Attachment: 0, Layout: LayoutColorAttachment}},
		}},
		Dependencies: []SubpassDependency{{
			SrcSubpass: SubpassExternal,
			DstSubpass: 0,
			SrcStage:   StageColorAttachmentOutput,
			DstStage:   StageColorAttachmentOutput,
			DstAccess:  AccessColorAttachmentRead | AccessColorAttachmentWrite,
		}},
	}
	if depth != FormatUndefined {
		desc.Attachments = append(desc.Attachments, AttachmentDesc{
			Format:         depth,
			LoadOp:         LoadOpClear,
			StoreOp:        StoreOpDontCare,
			StencilLoadOp:  LoadOpDontCare,
			StencilStoreOp: StoreOpDontCare,
			FinalLayout:    LayoutDepthStencilAttachment,
		})
		desc.Subpasses[0].DepthAttachment = &AttachmentRef{Attachment: 1, Layout: LayoutDepthStencilAttachment}
		desc.Dependencies[0].SrcStage |= StageEarlyFragmentTests
		desc.Dependencies[0].DstStage |= StageEarlyFragmentTests
		desc.Dependencies[0].DstAccess |= AccessDepthStencilAttachmentWrite
	}
	return desc
}

// CreateRenderPass creates a render pass. References to attachments
// that do not exist are assertion failures.
func (d *Device) CreateRenderPass(desc RenderPassDesc) *RenderPass {
	if len(desc.Subpasses) == 0 {
		d.assertf("gfx: render pass without subpasses")
	}
	for idx := range desc.Attachments {
		if desc.Attachments[idx].Samples == 0 {
			desc.Attachments[idx].Samples = 1
		}
	}
	count := uint32(len(desc.Attachments))
	for sp, subpass := range desc.Subpasses {
		refs := append(append([]AttachmentRef{}, subpass.InputAttachments...), subpass.ColorAttachments...)
		if subpass.DepthAttachment != nil {
			refs = append(refs, *subpass.DepthAttachment)
		}
		for _, ref := range refs {
			if ref.Attachment >= count {
				d.assertf("gfx: subpass %d refers to attachment %d of %d", sp, ref.Attachment, count)
			}
		}
	}

	handle, err := d.native.CreateRenderPass(desc)
	d.check(err, "gfx.CreateRenderPass()")

	rp := &RenderPass{
		handle: handle,
		desc:   desc,
	}
	rp.init(d, "render pass")
	return rp
}

// RenderPass describes the attachments and subpasses of rendering.
type RenderPass struct {
	resource

	handle Handle
	desc   RenderPassDesc
}

// Desc returns the description the pass was created with.
func (rp *RenderPass) Desc() RenderPassDesc {
	return rp.desc
}

// Native returns the driver handle.
func (rp *RenderPass) Native() Handle {
	return rp.handle
}

// Release implements interface
func (rp *RenderPass) Release() {
	if !rp.drop() {
		return
	}
	rp.device.native.DestroyRenderPass(rp.handle)
	rp.finish()
}

// CreateFramebuffer binds views to the attachments of pass, in order.
// The framebuffer holds a reference to each view.
func (d *Device) CreateFramebuffer(pass *RenderPass, views []*ImageView, width, height uint32) *Framebuffer {
	if len(views) != len(pass.desc.Attachments) {
		d.assertf("gfx: framebuffer has %d views for %d attachments", len(views), len(pass.desc.Attachments))
	}

	handles := make([]Handle, len(views))
	for idx, v := range views {
		handles[idx] = v.handle
	}
	extent := Extent2D{Width: width, Height: height}
	handle, err := d.native.CreateFramebuffer(pass.handle, handles, extent, 1)
	d.check(err, "gfx.CreateFramebuffer()")

	for _, v := range views {
		v.Retain()
	}
	fb := &Framebuffer{
		handle: handle,
		views:  views,
		extent: extent,
	}
	fb.init(d, "framebuffer")
	return fb
}

// Framebuffer is a set of image views rendered to by a render pass.
type Framebuffer struct {
	resource

	handle Handle
	views  []*ImageView
	extent Extent2D
}

// Extent returns the framebuffer size.
func (fb *Framebuffer) Extent() Extent2D {
	return fb.extent
}

// Views returns the attachment views.
func (fb *Framebuffer) Views() []*ImageView {
	return fb.views
}

// Native returns the driver handle.
func (fb *Framebuffer) Native() Handle {
	return fb.handle
}

func (fb *Framebuffer) used(q *Queue, serial uint64) {
	fb.resource.used(q, serial)
	for _, v := range fb.views {
		v.used(q, serial)
	}
}

// Release implements interface
func (fb *Framebuffer) Release() {
	if !fb.drop() {
		return
	}
	fb.device.native.DestroyFramebuffer(fb.handle)
	for _, v := range fb.views {
		v.Release()
	}
	fb.views = nil
	fb.finish()
}
