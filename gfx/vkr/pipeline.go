package vkr

import (
	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/koru3d/koru/gfx"
)

// CreatePipelineLayout implements interface
func (d *Device) CreatePipelineLayout(setLayouts []gfx.Handle, pushConstants []gfx.PushConstantRange) (gfx.Handle, error) {
	layouts := handles[vk.DescriptorSetLayout](setLayouts)
	ranges := make([]vk.PushConstantRange, len(pushConstants))
	for i, r := range pushConstants {
		ranges[i] = vk.PushConstantRange{
			StageFlags: vk.ShaderStageFlags(r.Stages),
			Offset:     r.Offset,
			Size:       r.Size,
		}
	}
	plci := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(layouts)),
		PSetLayouts:            layouts,
		PushConstantRangeCount: uint32(len(ranges)),
		PPushConstantRanges:    ranges,
	}
	var layout vk.PipelineLayout
	if err := vk.Error(vk.CreatePipelineLayout(d.device, &plci, nil, &layout)); err != nil {
		return nil, errors.Wrap(err, "vk.CreatePipelineLayout()")
	}
	return layout, nil
}

// DestroyPipelineLayout implements interface
func (d *Device) DestroyPipelineLayout(layout gfx.Handle) {
	vk.DestroyPipelineLayout(d.device, handle[vk.PipelineLayout](layout), nil)
}

// CreateGraphicsPipeline implements interface. Without a render pass
// the pipeline is built against a compatible pass made from the
// attachment formats.
func (d *Device) CreateGraphicsPipeline(info gfx.GraphicsPipelineInfo) (gfx.Handle, error) {
	pass := handle[vk.RenderPass](info.RenderPass)
	if info.RenderPass == nil {
		var err error
		pass, err = d.compatiblePass(passKeyFor(info.ColorFormats, info.DepthFormat, nil))
		if err != nil {
			return nil, err
		}
	}

	state := info.State
	dynamic := make([]vk.DynamicState, len(state.DynamicStates))
	for i, s := range state.DynamicStates {
		dynamic[i] = vk.DynamicState(s)
	}
	blend := blendAttachments(state.Blend.Attachments)
	stages := shaderStages(info.Stages)

	gpci := []vk.GraphicsPipelineCreateInfo{{
		SType:             vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:        uint32(len(stages)),
		PStages:           stages,
		PVertexInputState: vertexInput(state),
		PInputAssemblyState: &vk.PipelineInputAssemblyStateCreateInfo{
			SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
			Topology:               vk.PrimitiveTopology(state.Topology),
			PrimitiveRestartEnable: bool32(state.PrimitiveRestart),
		},
		PViewportState: &vk.PipelineViewportStateCreateInfo{
			SType:         vk.StructureTypePipelineViewportStateCreateInfo,
			ViewportCount: 1,
			ScissorCount:  1,
		},
		PRasterizationState: &vk.PipelineRasterizationStateCreateInfo{
			SType:            vk.StructureTypePipelineRasterizationStateCreateInfo,
			DepthClampEnable: bool32(state.Rasterizer.DepthClamp),
			PolygonMode:      vk.PolygonMode(state.Rasterizer.Polygon),
			CullMode:         vk.CullModeFlags(state.Rasterizer.Cull),
			FrontFace:        vk.FrontFace(state.Rasterizer.FrontFace),
			DepthBiasEnable:  bool32(state.Rasterizer.DepthBias),
			LineWidth:        state.Rasterizer.LineWidth,
		},
		PMultisampleState: &vk.PipelineMultisampleStateCreateInfo{
			SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
			RasterizationSamples: samples(state.Samples),
		},
		PDepthStencilState: &vk.PipelineDepthStencilStateCreateInfo{
			SType:             vk.StructureTypePipelineDepthStencilStateCreateInfo,
			DepthTestEnable:   bool32(state.DepthStencil.DepthTest),
			DepthWriteEnable:  bool32(state.DepthStencil.DepthWrite),
			DepthCompareOp:    vk.CompareOp(state.DepthStencil.DepthCompare),
			StencilTestEnable: bool32(state.DepthStencil.StencilTest),
			Front:             stencilState(state.DepthStencil.Front),
			Back:              stencilState(state.DepthStencil.Back),
			MaxDepthBounds:    1,
		},
		PColorBlendState: &vk.PipelineColorBlendStateCreateInfo{
			SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
			AttachmentCount: uint32(len(blend)),
			PAttachments:    blend,
			BlendConstants:  state.Blend.Constants,
		},
		PDynamicState: &vk.PipelineDynamicStateCreateInfo{
			SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
			DynamicStateCount: uint32(len(dynamic)),
			PDynamicStates:    dynamic,
		},
		Layout:     handle[vk.PipelineLayout](info.Layout),
		RenderPass: pass,
		Subpass:    info.Subpass,
	}}

	pipelines := make([]vk.Pipeline, len(gpci))
	if err := vk.Error(vk.CreateGraphicsPipelines(d.device, vk.PipelineCache(nil), uint32(len(gpci)), gpci, nil, pipelines)); err != nil {
		return nil, errors.Wrap(err, "vk.CreateGraphicsPipelines()")
	}
	return pipelines[0], nil
}

// CreateComputePipeline implements interface
func (d *Device) CreateComputePipeline(layout gfx.Handle, stage gfx.NativeShaderStage) (gfx.Handle, error) {
	cpci := []vk.ComputePipelineCreateInfo{{
		SType:  vk.StructureTypeComputePipelineCreateInfo,
		Stage:  shaderStage(stage),
		Layout: handle[vk.PipelineLayout](layout),
	}}
	pipelines := make([]vk.Pipeline, 1)
	if err := vk.Error(vk.CreateComputePipelines(d.device, vk.PipelineCache(nil), 1, cpci, nil, pipelines)); err != nil {
		return nil, errors.Wrap(err, "vk.CreateComputePipelines()")
	}
	return pipelines[0], nil
}

// DestroyPipeline implements interface
func (d *Device) DestroyPipeline(pipeline gfx.Handle) {
	vk.DestroyPipeline(d.device, handle[vk.Pipeline](pipeline), nil)
}

func attachmentRefs(refs []gfx.AttachmentRef) []vk.AttachmentReference {
	out := make([]vk.AttachmentReference, len(refs))
	for i, r := range refs {
		out[i] = vk.AttachmentReference{Attachment: r.Attachment, Layout: vk.ImageLayout(r.Layout)}
	}
	return out
}

// CreateRenderPass implements interface
func (d *Device) CreateRenderPass(desc gfx.RenderPassDesc) (gfx.Handle, error) {
	attachments := make([]vk.AttachmentDescription, len(desc.Attachments))
	for i, a := range desc.Attachments {
		attachments[i] = vk.AttachmentDescription{
			Format:         vk.Format(a.Format),
			Samples:        samples(a.Samples),
			LoadOp:         vk.AttachmentLoadOp(a.LoadOp),
			StoreOp:        vk.AttachmentStoreOp(a.StoreOp),
			StencilLoadOp:  vk.AttachmentLoadOp(a.StencilLoadOp),
			StencilStoreOp: vk.AttachmentStoreOp(a.StencilStoreOp),
			InitialLayout:  vk.ImageLayout(a.InitialLayout),
			FinalLayout:    vk.ImageLayout(a.FinalLayout),
		}
	}

	subpasses := make([]vk.SubpassDescription, len(desc.Subpasses))
	for i, s := range desc.Subpasses {
		color := attachmentRefs(s.ColorAttachments)
		input := attachmentRefs(s.InputAttachments)
		subpasses[i] = vk.SubpassDescription{
			PipelineBindPoint:    vk.PipelineBindPointGraphics,
			InputAttachmentCount: uint32(len(input)),
			PInputAttachments:    input,
			ColorAttachmentCount: uint32(len(color)),
			PColorAttachments:    color,
		}
		if s.DepthAttachment != nil {
			subpasses[i].PDepthStencilAttachment = &attachmentRefs([]gfx.AttachmentRef{*s.DepthAttachment})[0]
		}
	}

	dependencies := make([]vk.SubpassDependency, len(desc.Dependencies))
	for i, dep := range desc.Dependencies {
		dependencies[i] = vk.SubpassDependency{
			SrcSubpass:    dep.SrcSubpass,
			DstSubpass:    dep.DstSubpass,
			SrcStageMask:  vk.PipelineStageFlags(dep.SrcStage),
			DstStageMask:  vk.PipelineStageFlags(dep.DstStage),
			SrcAccessMask: vk.AccessFlags(dep.SrcAccess),
			DstAccessMask: vk.AccessFlags(dep.DstAccess),
		}
	}

	rpci := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    uint32(len(subpasses)),
		PSubpasses:      subpasses,
		DependencyCount: uint32(len(dependencies)),
		PDependencies:   dependencies,
	}
	var pass vk.RenderPass
	if err := vk.Error(vk.CreateRenderPass(d.device, &rpci, nil, &pass)); err != nil {
		return nil, errors.Wrap(err, "vk.CreateRenderPass()")
	}
	return pass, nil
}

// DestroyRenderPass implements interface
func (d *Device) DestroyRenderPass(pass gfx.Handle) {
	vk.DestroyRenderPass(d.device, handle[vk.RenderPass](pass), nil)
}

// CreateFramebuffer implements interface
func (d *Device) CreateFramebuffer(pass gfx.Handle, views []gfx.Handle, extent gfx.Extent2D, layers uint32) (gfx.Handle, error) {
	return d.framebuffer(handle[vk.RenderPass](pass), handles[vk.ImageView](views), extent, layers)
}

func (d *Device) framebuffer(pass vk.RenderPass, views []vk.ImageView, extent gfx.Extent2D, layers uint32) (vk.Framebuffer, error) {
	if layers == 0 {
		layers = 1
	}
	fci := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      pass,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           extent.Width,
		Height:          extent.Height,
		Layers:          layers,
	}
	var framebuffer vk.Framebuffer
	if err := vk.Error(vk.CreateFramebuffer(d.device, &fci, nil, &framebuffer)); err != nil {
		return nil, errors.Wrap(err, "vk.CreateFramebuffer()")
	}
	return framebuffer, nil
}

// DestroyFramebuffer implements interface
func (d *Device) DestroyFramebuffer(framebuffer gfx.Handle) {
	vk.DestroyFramebuffer(d.device, handle[vk.Framebuffer](framebuffer), nil)
}

// maxColorAttachments bounds passKey, which must stay comparable.
const maxColorAttachments = 8

type passAttachment struct {
	format  gfx.Format
	load    gfx.LoadOp
	store   gfx.StoreOp
	present bool
}

// passKey identifies a single subpass render pass by its attachments.
// Pipelines only depend on formats, so they use keys with zero ops.
type passKey struct {
	colors [maxColorAttachments]passAttachment
	count  int
	depth  passAttachment
}

func passKeyFor(colors []gfx.Format, depth gfx.Format, info *gfx.NativeRenderingInfo) passKey {
	var key passKey
	key.count = len(colors)
	for i, f := range colors {
		key.colors[i] = passAttachment{format: f, present: true}
		if info != nil {
			key.colors[i].load = info.Color[i].LoadOp
			key.colors[i].store = info.Color[i].StoreOp
		}
	}
	if depth != gfx.FormatUndefined {
		key.depth = passAttachment{format: depth, present: true}
		if info != nil && info.Depth != nil {
			key.depth.load = info.Depth.LoadOp
			key.depth.store = info.Depth.StoreOp
		}
	}
	return key
}

func renderingKey(info gfx.NativeRenderingInfo) passKey {
	colors := make([]gfx.Format, len(info.Color))
	for i, c := range info.Color {
		colors[i] = c.Format
	}
	depth := gfx.FormatUndefined
	if info.Depth != nil {
		depth = info.Depth.Format
	}
	return passKeyFor(colors, depth, &info)
}

// compatiblePass returns the cached render pass for key. Attachments
// are expected in attachment layout before and after the pass.
func (d *Device) compatiblePass(key passKey) (vk.RenderPass, error) {
	if key.count > maxColorAttachments {
		return nil, errors.Newf("vkr: %d color attachments exceed %d", key.count, maxColorAttachments)
	}

	d.passMu.Lock()
	defer d.passMu.Unlock()
	if pass, ok := d.passes[key]; ok {
		return pass, nil
	}

	desc := gfx.RenderPassDesc{Subpasses: []gfx.SubpassDesc{{}}}
	attachment := func(a passAttachment, layout gfx.ImageLayout) gfx.AttachmentDesc {
		initial := layout
		if a.load != gfx.LoadOpLoad {
			initial = gfx.LayoutUndefined
		}
		return gfx.AttachmentDesc{
			Format:         a.format,
			LoadOp:         a.load,
			StoreOp:        a.store,
			StencilLoadOp:  a.load,
			StencilStoreOp: a.store,
			InitialLayout:  initial,
			FinalLayout:    layout,
		}
	}
	for i := 0; i < key.count; i++ {
		desc.Attachments = append(desc.Attachments, attachment(key.colors[i], gfx.LayoutColorAttachment))
		desc.Subpasses[0].ColorAttachments = append(desc.Subpasses[0].ColorAttachments, gfx.AttachmentRef{
			Attachment: uint32(i),
			Layout:     gfx.LayoutColorAttachment,
		})
	}
	if key.depth.present {
		desc.Attachments = append(desc.Attachments, attachment(key.depth, gfx.LayoutDepthStencilAttachment))
		desc.Subpasses[0].DepthAttachment = &gfx.AttachmentRef{
			Attachment: uint32(key.count),
			Layout:     gfx.LayoutDepthStencilAttachment,
		}
	}

	native, err := d.CreateRenderPass(desc)
	if err != nil {
		return nil, err
	}
	pass := native.(vk.RenderPass)
	d.passes[key] = pass
	return pass, nil
}
