package gfx

import "fmt"

// Enumerations in this file share their numeric values with Vulkan,
// so a driver built on it can convert them with a plain cast.

// Result is a status code returned by a native driver call.
type Result int32

// Results that the device layer distinguishes.
const (
	Success                 Result = 0
	NotReady                Result = 1
	Timeout                 Result = 2
	ErrorOutOfHostMemory    Result = -1
	ErrorOutOfDeviceMemory  Result = -2
	ErrorInitializationFail Result = -3
	ErrorDeviceLost         Result = -4
	ErrorFragmentedPool     Result = -12
	ErrorSurfaceLost        Result = -1000000000
	Suboptimal              Result = 1000001003
	ErrorOutOfDate          Result = -1000001004
	ErrorOutOfPoolMemory    Result = -1000069000
)

var resultNames = map[Result]string{
	Success:                 "success",
	NotReady:                "not ready",
	Timeout:                 "timeout",
	ErrorOutOfHostMemory:    "out of host memory",
	ErrorOutOfDeviceMemory:  "out of device memory",
	ErrorInitializationFail: "initialization failed",
	ErrorDeviceLost:         "device lost",
	ErrorFragmentedPool:     "fragmented pool",
	ErrorSurfaceLost:        "surface lost",
	Suboptimal:              "suboptimal swapchain",
	ErrorOutOfDate:          "swapchain out of date",
	ErrorOutOfPoolMemory:    "out of pool memory",
}

func (r Result) String() string {
	if name, ok := resultNames[r]; ok {
		return name
	}
	return fmt.Sprintf("result(%d)", int32(r))
}

// Error makes a failing result usable as an error value.
func (r Result) Error() string {
	return "gfx: " + r.String()
}

// Err returns nil for non-negative results and r otherwise.
func (r Result) Err() error {
	if r >= 0 {
		return nil
	}
	return r
}

// Stale reports whether the result signals a swapchain that
// no longer matches its surface.
func (r Result) Stale() bool {
	return r == Suboptimal || r == ErrorOutOfDate
}

// Extent2D is a width and height pair.
type Extent2D struct {
	Width, Height uint32
}

// Zero reports whether either dimension is zero.
func (e Extent2D) Zero() bool {
	return e.Width == 0 || e.Height == 0
}

// Extent3D is a width, height and depth triple.
type Extent3D struct {
	Width, Height, Depth uint32
}

// Offset2D is a signed position.
type Offset2D struct {
	X, Y int32
}

// Offset3D is a signed position in three dimensions.
type Offset3D struct {
	X, Y, Z int32
}

// Rect2D is an area on a two dimensional image.
type Rect2D struct {
	Offset Offset2D
	Extent Extent2D
}

// Viewport describes the viewport transform.
type Viewport struct {
	X, Y, Width, Height, MinDepth, MaxDepth float32
}

// Format describes the layout of a texel.
type Format uint32

// Formats used by the engine.
const (
	FormatUndefined          Format = 0
	FormatR8Unorm            Format = 9
	FormatR8G8Unorm          Format = 16
	FormatR8G8B8Unorm        Format = 23
	FormatR8G8B8A8Unorm      Format = 37
	FormatR8G8B8A8Srgb       Format = 43
	FormatB8G8R8A8Unorm      Format = 44
	FormatB8G8R8A8Srgb       Format = 50
	FormatR16Sfloat          Format = 76
	FormatR16G16Sfloat       Format = 83
	FormatR16G16B16Sfloat    Format = 90
	FormatR16G16B16A16Sfloat Format = 97
	FormatR32Uint            Format = 98
	FormatR32Sfloat          Format = 100
	FormatR32G32Sfloat       Format = 103
	FormatR32G32B32Sfloat    Format = 106
	FormatR32G32B32A32Sfloat Format = 109
	FormatD16Unorm           Format = 124
	FormatD32Sfloat          Format = 126
	FormatD24UnormS8Uint     Format = 129
)

var formatSizes = map[Format]int{
	FormatR8Unorm:            1,
	FormatR8G8Unorm:          2,
	FormatR8G8B8Unorm:        3,
	FormatR8G8B8A8Unorm:      4,
	FormatR8G8B8A8Srgb:       4,
	FormatB8G8R8A8Unorm:      4,
	FormatB8G8R8A8Srgb:       4,
	FormatR16Sfloat:          2,
	FormatR16G16Sfloat:       4,
	FormatR16G16B16Sfloat:    6,
	FormatR16G16B16A16Sfloat: 8,
	FormatR32Uint:            4,
	FormatR32Sfloat:          4,
	FormatR32G32Sfloat:       8,
	FormatR32G32B32Sfloat:    12,
	FormatR32G32B32A32Sfloat: 16,
	FormatD16Unorm:           2,
	FormatD32Sfloat:          4,
	FormatD24UnormS8Uint:     4,
}

// BytesPerPixel returns the texel size of f, zero when unknown.
func (f Format) BytesPerPixel() int {
	return formatSizes[f]
}

// Depth reports whether f is a depth or depth-stencil format.
func (f Format) Depth() bool {
	return f == FormatD16Unorm || f == FormatD32Sfloat || f == FormatD24UnormS8Uint
}

// Aspect returns the image aspect that views of f address.
func (f Format) Aspect() ImageAspect {
	switch f {
	case FormatD16Unorm, FormatD32Sfloat:
		return AspectDepth
	case FormatD24UnormS8Uint:
		return AspectDepth | AspectStencil
	}
	return AspectColor
}

// ColorSpace of a presentable surface.
type ColorSpace uint32

// ColorSpaceSrgbNonlinear is the only color space every surface supports.
const ColorSpaceSrgbNonlinear ColorSpace = 0

// ImageLayout is the layout an image's memory is in.
type ImageLayout uint32

// Image layouts.
const (
	LayoutUndefined              ImageLayout = 0
	LayoutGeneral                ImageLayout = 1
	LayoutColorAttachment        ImageLayout = 2
	LayoutDepthStencilAttachment ImageLayout = 3
	LayoutDepthStencilReadOnly   ImageLayout = 4
	LayoutShaderReadOnly         ImageLayout = 5
	LayoutTransferSrc            ImageLayout = 6
	LayoutTransferDst            ImageLayout = 7
	LayoutPreinitialized         ImageLayout = 8
	LayoutPresentSrc             ImageLayout = 1000001002
)

// ImageAspect selects color, depth or stencil data of an image.
type ImageAspect uint32

// Image aspects.
const (
	AspectColor   ImageAspect = 0x1
	AspectDepth   ImageAspect = 0x2
	AspectStencil ImageAspect = 0x4
)

// ImageViewType is the dimensionality of an image view.
type ImageViewType uint32

// Image view types.
const (
	ViewType1D      ImageViewType = 0
	ViewType2D      ImageViewType = 1
	ViewType3D      ImageViewType = 2
	ViewTypeCube    ImageViewType = 3
	ViewType2DArray ImageViewType = 5
)

// BufferUsage is a bitmask of the ways a buffer is used.
type BufferUsage uint32

// Buffer usage bits.
const (
	BufferUsageTransferSrc BufferUsage = 0x1
	BufferUsageTransferDst BufferUsage = 0x2
	BufferUsageUniform     BufferUsage = 0x10
	BufferUsageStorage     BufferUsage = 0x20
	BufferUsageIndex       BufferUsage = 0x40
	BufferUsageVertex      BufferUsage = 0x80
	BufferUsageIndirect    BufferUsage = 0x100
)

// ImageUsage is a bitmask of the ways an image is used.
type ImageUsage uint32

// Image usage bits.
const (
	ImageUsageTransferSrc     ImageUsage = 0x1
	ImageUsageTransferDst     ImageUsage = 0x2
	ImageUsageSampled         ImageUsage = 0x4
	ImageUsageStorage         ImageUsage = 0x8
	ImageUsageColorAttachment ImageUsage = 0x10
	ImageUsageDepthAttachment ImageUsage = 0x20
	ImageUsageInputAttachment ImageUsage = 0x80
)

// MemoryProperty is a bitmask of memory heap capabilities.
type MemoryProperty uint32

// Memory property bits.
const (
	MemoryDeviceLocal  MemoryProperty = 0x1
	MemoryHostVisible  MemoryProperty = 0x2
	MemoryHostCoherent MemoryProperty = 0x4
	MemoryHostCached   MemoryProperty = 0x8
)

// QueueFlags is a bitmask of queue capabilities.
type QueueFlags uint32

// Queue capability bits.
const (
	QueueGraphics QueueFlags = 0x1
	QueueCompute  QueueFlags = 0x2
	QueueTransfer QueueFlags = 0x4
)

// PipelineStage is a bitmask of pipeline stages used for synchronization.
type PipelineStage uint32

// Pipeline stage bits.
const (
	StageTopOfPipe             PipelineStage = 0x1
	StageDrawIndirect          PipelineStage = 0x2
	StageVertexInput           PipelineStage = 0x4
	StageVertexShader          PipelineStage = 0x8
	StageFragmentShader        PipelineStage = 0x80
	StageEarlyFragmentTests    PipelineStage = 0x100
	StageLateFragmentTests     PipelineStage = 0x200
	StageColorAttachmentOutput PipelineStage = 0x400
	StageComputeShader         PipelineStage = 0x800
	StageTransfer              PipelineStage = 0x1000
	StageBottomOfPipe          PipelineStage = 0x2000
	StageHost                  PipelineStage = 0x4000
	StageAllGraphics           PipelineStage = 0x8000
	StageAllCommands           PipelineStage = 0x10000
)

// Access is a bitmask of memory access types used in barriers.
type Access uint32

// Access bits.
const (
	AccessIndirectCommandRead         Access = 0x1
	AccessIndexRead                   Access = 0x2
	AccessVertexAttributeRead         Access = 0x4
	AccessUniformRead                 Access = 0x8
	AccessShaderRead                  Access = 0x20
	AccessShaderWrite                 Access = 0x40
	AccessColorAttachmentRead         Access = 0x80
	AccessColorAttachmentWrite        Access = 0x100
	AccessDepthStencilAttachmentRead  Access = 0x200
	AccessDepthStencilAttachmentWrite Access = 0x400
	AccessTransferRead                Access = 0x800
	AccessTransferWrite               Access = 0x1000
	AccessHostRead                    Access = 0x2000
	AccessHostWrite                   Access = 0x4000
	AccessMemoryRead                  Access = 0x8000
	AccessMemoryWrite                 Access = 0x10000
)

// DescriptorType is the kind of resource a descriptor binds.
type DescriptorType uint32

// Descriptor types.
const (
	DescriptorSampler              DescriptorType = 0
	DescriptorCombinedImageSampler DescriptorType = 1
	DescriptorSampledImage         DescriptorType = 2
	DescriptorStorageImage         DescriptorType = 3
	DescriptorUniformBuffer        DescriptorType = 6
	DescriptorStorageBuffer        DescriptorType = 7
	DescriptorUniformBufferDynamic DescriptorType = 8
	DescriptorStorageBufferDynamic DescriptorType = 9
	DescriptorInputAttachment      DescriptorType = 10
)

// ShaderStage is a bitmask of shader stages.
type ShaderStage uint32

// Shader stage bits.
const (
	ShaderStageVertex      ShaderStage = 0x1
	ShaderStageGeometry    ShaderStage = 0x8
	ShaderStageFragment    ShaderStage = 0x10
	ShaderStageCompute     ShaderStage = 0x20
	ShaderStageAllGraphics ShaderStage = 0x1F
)

// PrimitiveTopology selects how vertices assemble into primitives.
type PrimitiveTopology uint32

// Primitive topologies.
const (
	TopologyPointList     PrimitiveTopology = 0
	TopologyLineList      PrimitiveTopology = 1
	TopologyLineStrip     PrimitiveTopology = 2
	TopologyTriangleList  PrimitiveTopology = 3
	TopologyTriangleStrip PrimitiveTopology = 4
	TopologyTriangleFan   PrimitiveTopology = 5
)

// PolygonMode selects how polygons are rasterized.
type PolygonMode uint32

// Polygon modes.
const (
	PolygonFill  PolygonMode = 0
	PolygonLine  PolygonMode = 1
	PolygonPoint PolygonMode = 2
)

// CullMode selects which faces are discarded.
type CullMode uint32

// Cull modes.
const (
	CullNone  CullMode = 0
	CullFront CullMode = 1
	CullBack  CullMode = 2
)

// FrontFace selects the winding of front facing triangles.
type FrontFace uint32

// Front face windings.
const (
	FrontFaceCounterClockwise FrontFace = 0
	FrontFaceClockwise        FrontFace = 1
)

// CompareOp is a comparison used in depth, stencil and sampler tests.
type CompareOp uint32

// Compare operations.
const (
	CompareNever          CompareOp = 0
	CompareLess           CompareOp = 1
	CompareEqual          CompareOp = 2
	CompareLessOrEqual    CompareOp = 3
	CompareGreater        CompareOp = 4
	CompareNotEqual       CompareOp = 5
	CompareGreaterOrEqual CompareOp = 6
	CompareAlways         CompareOp = 7
)

// StencilOp is the action taken on a stencil test result.
type StencilOp uint32

// Stencil operations.
const (
	StencilKeep    StencilOp = 0
	StencilZero    StencilOp = 1
	StencilReplace StencilOp = 2
)

// BlendFactor is a source or destination blend factor.
type BlendFactor uint32

// Blend factors.
const (
	BlendZero             BlendFactor = 0
	BlendOne              BlendFactor = 1
	BlendSrcColor         BlendFactor = 2
	BlendOneMinusSrcColor BlendFactor = 3
	BlendDstColor         BlendFactor = 4
	BlendOneMinusDstColor BlendFactor = 5
	BlendSrcAlpha         BlendFactor = 6
	BlendOneMinusSrcAlpha BlendFactor = 7
	BlendDstAlpha         BlendFactor = 8
	BlendOneMinusDstAlpha BlendFactor = 9
	BlendConstantColor    BlendFactor = 10
)

// BlendOp combines blended source and destination values.
type BlendOp uint32

// Blend operations.
const (
	BlendOpAdd             BlendOp = 0
	BlendOpSubtract        BlendOp = 1
	BlendOpReverseSubtract BlendOp = 2
	BlendOpMin             BlendOp = 3
	BlendOpMax             BlendOp = 4
)

// ColorComponent is a bitmask of color channels written by a pipeline.
type ColorComponent uint32

// Color channels.
const (
	ColorR    ColorComponent = 0x1
	ColorG    ColorComponent = 0x2
	ColorB    ColorComponent = 0x4
	ColorA    ColorComponent = 0x8
	ColorRGBA                = ColorR | ColorG | ColorB | ColorA
)

// DynamicState is pipeline state set at record time.
type DynamicState uint32

// Dynamic states.
const (
	DynamicViewport       DynamicState = 0
	DynamicScissor        DynamicState = 1
	DynamicLineWidth      DynamicState = 2
	DynamicDepthBias      DynamicState = 3
	DynamicBlendConstants DynamicState = 4
)

// Filter is a texel filter.
type Filter uint32

// Filters.
const (
	FilterNearest Filter = 0
	FilterLinear  Filter = 1
)

// MipmapMode selects filtering between mip levels.
type MipmapMode uint32

// Mipmap modes.
const (
	MipmapNearest MipmapMode = 0
	MipmapLinear  MipmapMode = 1
)

// AddressMode selects the behavior of out of range texture coordinates.
type AddressMode uint32

// Address modes.
const (
	AddressRepeat         AddressMode = 0
	AddressMirroredRepeat AddressMode = 1
	AddressClampToEdge    AddressMode = 2
	AddressClampToBorder  AddressMode = 3
)

// LoadOp is what happens to attachment contents at render pass start.
type LoadOp uint32

// Load operations.
const (
	LoadOpLoad     LoadOp = 0
	LoadOpClear    LoadOp = 1
	LoadOpDontCare LoadOp = 2
)

// StoreOp is what happens to attachment contents at render pass end.
type StoreOp uint32

// Store operations.
const (
	StoreOpStore    StoreOp = 0
	StoreOpDontCare StoreOp = 1
)

// IndexType is the width of indices in an index buffer.
type IndexType uint32

// Index types.
const (
	IndexUint16 IndexType = 0
	IndexUint32 IndexType = 1
)

// PipelineBindPoint separates graphics and compute bindings.
type PipelineBindPoint uint32

// Bind points.
const (
	BindPointGraphics PipelineBindPoint = 0
	BindPointCompute  PipelineBindPoint = 1
)

// CommandBufferLevel distinguishes primary and secondary buffers.
type CommandBufferLevel uint32

// Command buffer levels.
const (
	LevelPrimary   CommandBufferLevel = 0
	LevelSecondary CommandBufferLevel = 1
)

// SubpassContents says where a subpass' commands are recorded.
type SubpassContents uint32

// Subpass contents.
const (
	ContentsInline    SubpassContents = 0
	ContentsSecondary SubpassContents = 1
)

// PresentMode is the presentation engine's queueing mode.
type PresentMode uint32

// Present modes.
const (
	PresentImmediate   PresentMode = 0
	PresentMailbox     PresentMode = 1
	PresentFifo        PresentMode = 2
	PresentFifoRelaxed PresentMode = 3
)

// SubpassExternal refers to commands outside of a render pass in dependencies.
const SubpassExternal = ^uint32(0)

// ClearValue holds a clear color or a depth and stencil pair.
type ClearValue struct {
	Color   [4]float32
	Depth   float32
	Stencil uint32
}

// ClearColor returns a color clear value.
func ClearColor(r, g, b, a float32) ClearValue {
	return ClearValue{Color: [4]float32{r, g, b, a}}
}

// ClearDepth returns a depth and stencil clear value.
func ClearDepth(depth float32, stencil uint32) ClearValue {
	return ClearValue{Depth: depth, Stencil: stencil}
}
