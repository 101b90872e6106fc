package gfx

import (
	"slices"

	"github.com/cockroachdb/errors"
)

// VertexInputRate selects whether a binding advances per vertex or
// per instance.
type VertexInputRate uint32

// Vertex input rates.
const (
	InputRateVertex   VertexInputRate = 0
	InputRateInstance VertexInputRate = 1
)

// VertexBinding describes one vertex buffer binding.
type VertexBinding struct {
	Binding uint32
	Stride  uint32
	Rate    VertexInputRate
}

// VertexAttribute describes one shader input read from a binding.
type VertexAttribute struct {
	Location uint32
	Binding  uint32
	Format   Format
	Offset   uint32
}

// RasterizerState configures polygon rasterization.
type RasterizerState struct {
	Polygon    PolygonMode
	Cull       CullMode
	FrontFace  FrontFace
	DepthClamp bool
	DepthBias  bool

	// LineWidth defaults to 1.
	LineWidth float32
}

// StencilState is the stencil test of one face.
type StencilState struct {
	Fail        StencilOp
	Pass        StencilOp
	DepthFail   StencilOp
	Compare     CompareOp
	CompareMask uint32
	WriteMask   uint32
	Reference   uint32
}

// DepthStencilState configures depth and stencil tests.
type DepthStencilState struct {
	DepthTest    bool
	DepthWrite   bool
	DepthCompare CompareOp
	StencilTest  bool
	Front        StencilState
	Back         StencilState
}

// BlendAttachment is the blend state of one color attachment.
type BlendAttachment struct {
	BlendEnable bool
	SrcColor    BlendFactor
	DstColor    BlendFactor
	ColorOp     BlendOp
	SrcAlpha    BlendFactor
	DstAlpha    BlendFactor
	AlphaOp     BlendOp
	WriteMask   ColorComponent
}

// OpaqueBlend disables blending and writes every channel. It is the
// state of each attachment of a pipeline created without blend states.
var OpaqueBlend = BlendAttachment{
	SrcColor:  BlendOne,
	DstColor:  BlendZero,
	ColorOp:   BlendOpAdd,
	SrcAlpha:  BlendOne,
	DstAlpha:  BlendZero,
	AlphaOp:   BlendOpAdd,
	WriteMask: ColorRGBA,
}

// AlphaBlend is source-over blending on straight alpha.
var AlphaBlend = BlendAttachment{
	BlendEnable: true,
	SrcColor:    BlendSrcAlpha,
	DstColor:    BlendOneMinusSrcAlpha,
	ColorOp:     BlendOpAdd,
	SrcAlpha:    BlendOne,
	DstAlpha:    BlendOneMinusSrcAlpha,
	AlphaOp:     BlendOpAdd,
	WriteMask:   ColorRGBA,
}

// BlendState is the color blend state of a pipeline.
type BlendState struct {
	Attachments []BlendAttachment
	Constants   [4]float32
}

// PushConstantRange declares push constant space visible to stages.
type PushConstantRange struct {
	Stages ShaderStage
	Offset uint32
	Size   uint32
}

// ShaderStageDesc binds a shader to a pipeline.
type ShaderStageDesc struct {
	Shader *Shader

	// Entry defaults to "main".
	Entry string
}

// PipelineDesc declares a graphics pipeline.
type PipelineDesc struct {
	Stages           []ShaderStageDesc
	VertexBindings   []VertexBinding
	VertexAttributes []VertexAttribute
	Topology         PrimitiveTopology
	PrimitiveRestart bool
	Rasterizer       RasterizerState
	DepthStencil     DepthStencilState

	// Blend left without attachments gets OpaqueBlend for every
	// color attachment.
	Blend         BlendState
	DynamicStates []DynamicState
	SetLayouts    []*DescriptorSetLayout
	PushConstants []PushConstantRange

	// Samples defaults to 1.
	Samples uint32
}

// PipelineInfo is the resolved fixed function state of a graphics
// pipeline, as handed to the driver.
type PipelineInfo struct {
	VertexBindings   []VertexBinding
	VertexAttributes []VertexAttribute
	Topology         PrimitiveTopology
	PrimitiveRestart bool
	Rasterizer       RasterizerState
	DepthStencil     DepthStencilState
	Blend            BlendState
	DynamicStates    []DynamicState
	Samples          uint32
}

// clone copies the slices of info so it shares no memory with the
// caller's description.
func (info PipelineInfo) clone() PipelineInfo {
	info.VertexBindings = slices.Clone(info.VertexBindings)
	info.VertexAttributes = slices.Clone(info.VertexAttributes)
	info.DynamicStates = slices.Clone(info.DynamicStates)
	info.Blend.Attachments = slices.Clone(info.Blend.Attachments)
	return info
}

// resolvePipelineInfo fills the defaults of desc for a pipeline
// writing colorAttachments attachments.
func resolvePipelineInfo(desc PipelineDesc, colorAttachments int) (PipelineInfo, error) {
	info := PipelineInfo{
		VertexBindings:   desc.VertexBindings,
		VertexAttributes: desc.VertexAttributes,
		Topology:         desc.Topology,
		PrimitiveRestart: desc.PrimitiveRestart,
		Rasterizer:       desc.Rasterizer,
		DepthStencil:     desc.DepthStencil,
		Blend:            desc.Blend,
		DynamicStates:    desc.DynamicStates,
		Samples:          desc.Samples,
	}.clone()
	if info.Rasterizer.LineWidth == 0 {
		info.Rasterizer.LineWidth = 1
	}
	if info.Samples == 0 {
		info.Samples = 1
	}

	switch n := len(desc.Blend.Attachments); {
	case n == 0:
		info.Blend.Attachments = make([]BlendAttachment, colorAttachments)
		for idx := range info.Blend.Attachments {
			info.Blend.Attachments[idx] = OpaqueBlend
		}
	case n != colorAttachments:
		return PipelineInfo{}, errors.Newf("%d blend states for %d color attachments", n, colorAttachments)
	}

	for _, a := range info.VertexAttributes {
		found := false
		for _, b := range info.VertexBindings {
			found = found || b.Binding == a.Binding
		}
		if !found {
			return PipelineInfo{}, errors.Newf("attribute %d reads unknown binding %d", a.Location, a.Binding)
		}
	}
	return info, nil
}

// CreatePipeline creates a graphics pipeline for subpass of pass.
func (d *Device) CreatePipeline(desc PipelineDesc, pass *RenderPass, subpass uint32) *Pipeline {
	if int(subpass) >= len(pass.desc.Subpasses) {
		d.assertf("gfx: subpass %d of a render pass with %d", subpass, len(pass.desc.Subpasses))
	}
	colors := len(pass.desc.Subpasses[subpass].ColorAttachments)
	return d.buildPipeline(desc, colors, GraphicsPipelineInfo{
		RenderPass: pass.handle,
		Subpass:    subpass,
	})
}

// CreatePipelineForFormats creates a graphics pipeline for rendering
// without a render pass, to color attachments of the given formats
// and an optional depth attachment.
func (d *Device) CreatePipelineForFormats(desc PipelineDesc, colors []Format, depth Format) *Pipeline {
	return d.buildPipeline(desc, len(colors), GraphicsPipelineInfo{
		ColorFormats: colors,
		DepthFormat:  depth,
	})
}

func (d *Device) buildPipeline(desc PipelineDesc, colors int, target GraphicsPipelineInfo) *Pipeline {
	if len(desc.Stages) == 0 {
		d.assertf("gfx: graphics pipeline without shader stages")
	}
	state, err := resolvePipelineInfo(desc, colors)
	if err != nil {
		d.fatal(errors.NewAssertionErrorWithWrappedErrf(err, "gfx: invalid pipeline"))
	}

	stages := make([]NativeShaderStage, len(desc.Stages))
	for idx, s := range desc.Stages {
		entry := s.Entry
		if entry == "" {
			entry = "main"
		}
		stages[idx] = NativeShaderStage{
			Stage:  s.Shader.stage,
			Module: s.Shader.handle,
			Entry:  entry,
		}
	}

	layout := d.createPipelineLayout(desc.SetLayouts, desc.PushConstants)
	target.Stages = stages
	target.State = state
	target.Layout = layout

	handle, err := d.native.CreateGraphicsPipeline(target)
	if err != nil {
		d.native.DestroyPipelineLayout(layout)
		d.fatal(errors.Wrap(err, "gfx.CreateGraphicsPipelines()"))
	}

	p := &Pipeline{
		handle: handle,
		layout: layout,
		info:   state,
		push:   slices.Clone(desc.PushConstants),
	}
	p.init(d, "pipeline")
	return p
}

func (d *Device) createPipelineLayout(sets []*DescriptorSetLayout, push []PushConstantRange) Handle {
	handles := make([]Handle, len(sets))
	for idx, l := range sets {
		handles[idx] = l.handle
	}
	layout, err := d.native.CreatePipelineLayout(handles, push)
	d.check(err, "gfx.CreatePipelineLayout()")
	return layout
}

// Pipeline is an immutable graphics pipeline and its layout.
type Pipeline struct {
	resource

	handle Handle
	layout Handle
	info   PipelineInfo
	push   []PushConstantRange
}

// Info returns the resolved fixed function state.
func (p *Pipeline) Info() PipelineInfo {
	return p.info.clone()
}

// PushConstants returns the declared push constant ranges.
func (p *Pipeline) PushConstants() []PushConstantRange {
	return slices.Clone(p.push)
}

// Native returns the driver handle.
func (p *Pipeline) Native() Handle {
	return p.handle
}

// Release implements interface
func (p *Pipeline) Release() {
	if !p.drop() {
		return
	}
	p.device.native.DestroyPipeline(p.handle)
	p.device.native.DestroyPipelineLayout(p.layout)
	p.finish()
}

// CreateComputePipeline creates a compute pipeline from a compute shader.
func (d *Device) CreateComputePipeline(shader *Shader, sets []*DescriptorSetLayout, push []PushConstantRange) *ComputePipeline {
	if shader.stage != ShaderStageCompute {
		d.assertf("gfx: compute pipeline from a %#x stage shader", uint32(shader.stage))
	}
	layout := d.createPipelineLayout(sets, push)
	handle, err := d.native.CreateComputePipeline(layout, NativeShaderStage{
		Stage:  ShaderStageCompute,
		Module: shader.handle,
		Entry:  "main",
	})
	if err != nil {
		d.native.DestroyPipelineLayout(layout)
		d.fatal(errors.Wrap(err, "gfx.CreateComputePipelines()"))
	}

	p := &ComputePipeline{
		handle: handle,
		layout: layout,
	}
	p.init(d, "compute pipeline")
	return p
}

// ComputePipeline is an immutable compute pipeline and its layout.
type ComputePipeline struct {
	resource

	handle Handle
	layout Handle
}

// Native returns the driver handle.
func (p *ComputePipeline) Native() Handle {
	return p.handle
}

// Release implements interface
func (p *ComputePipeline) Release() {
	if !p.drop() {
		return
	}
	p.device.native.DestroyPipeline(p.handle)
	p.device.native.DestroyPipelineLayout(p.layout)
	p.finish()
}
