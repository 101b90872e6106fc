package gfx

import "time"

// Handle is an opaque native object owned by a driver. The device
// layer never inspects it, it only hands it back to the same driver.
type Handle interface{}

// Backend is a graphics API driver. It owns the API instance and
// enumerates the adapters that devices are created from.
type Backend interface {
	// Name identifies the driver in logs.
	Name() string

	// Adapters describes every physical device the driver can use.
	Adapters() ([]AdapterInfo, error)

	// SetDebugCallback routes validation messages to cb.
	// Drivers without validation support ignore it.
	SetDebugCallback(cb DebugCallback) error

	// CreateDevice opens a logical device on the adapter at index.
	CreateDevice(adapter int, info DeviceInfo) (NativeDevice, error)

	// Destroy releases the API instance.
	Destroy()
}

// DebugSeverity orders validation messages.
type DebugSeverity int

// Severities of validation messages.
const (
	SeverityDebug DebugSeverity = iota
	SeverityInfo
	SeverityPerformance
	SeverityWarning
	SeverityError
)

// DebugMessage is one message reported by the validation layers.
type DebugMessage struct {
	Severity DebugSeverity
	Layer    string
	Code     int32
	Message  string
}

// DebugCallback receives validation messages.
type DebugCallback func(DebugMessage)

// AdapterType is the kind of physical device.
type AdapterType uint32

// Adapter types.
const (
	AdapterOther AdapterType = iota
	AdapterIntegrated
	AdapterDiscrete
	AdapterVirtual
	AdapterCPU
)

func (t AdapterType) String() string {
	switch t {
	case AdapterIntegrated:
		return "integrated"
	case AdapterDiscrete:
		return "discrete"
	case AdapterVirtual:
		return "virtual"
	case AdapterCPU:
		return "cpu"
	}
	return "other"
}

// QueueFamily describes a family of hardware queues on an adapter.
type QueueFamily struct {
	Flags QueueFlags
	Count uint32

	// Present is true when queues of this family can present
	// to the surface the backend was given.
	Present bool
}

// AdapterInfo holds information about one physical device.
type AdapterInfo struct {
	Invalid       bool
	ID            int
	VendorID      int
	DriverVersion int
	Name          string
	Type          AdapterType
	Extensions    []string
	Layers        []string
	Memory        uint64
	QueueFamilies []QueueFamily
}

// HasExtension reports whether the adapter exposes the named extension.
func (a AdapterInfo) HasExtension(name string) bool {
	for _, ext := range a.Extensions {
		if ext == name {
			return true
		}
	}
	return false
}

// QueueRequest asks for count queues of a family at device creation.
type QueueRequest struct {
	Family uint32
	Count  uint32
}

// DeviceInfo configures logical device creation.
type DeviceInfo struct {
	Queues     []QueueRequest
	Extensions []string
}

// MemoryType is one memory type exposed by a device.
type MemoryType struct {
	Properties MemoryProperty
	Heap       uint32
}

// MemoryRequirements are the allocation needs of a buffer or image.
type MemoryRequirements struct {
	Size      uint64
	Alignment uint64
	TypeBits  uint32
}

// BufferInfo describes a native buffer.
type BufferInfo struct {
	Size  uint64
	Usage BufferUsage

	// QueueFamilies lists the families sharing the buffer.
	// With more than one entry the buffer is shared concurrently.
	QueueFamilies []uint32
}

// ImageInfo describes a native image.
type ImageInfo struct {
	Extent        Extent3D
	Format        Format
	MipLevels     uint32
	ArrayLayers   uint32
	Usage         ImageUsage
	Cube          bool
	QueueFamilies []uint32
}

// SubresourceRange selects mips and layers of an image.
type SubresourceRange struct {
	Aspect     ImageAspect
	BaseMip    uint32
	MipCount   uint32
	BaseLayer  uint32
	LayerCount uint32
}

// ImageViewInfo describes a native image view.
type ImageViewInfo struct {
	Image  Handle
	Type   ImageViewType
	Format Format
	Range  SubresourceRange
}

// DescriptorPoolSize is the number of descriptors of one type in a pool.
type DescriptorPoolSize struct {
	Type  DescriptorType
	Count uint32
}

// DescriptorPoolInfo describes a native descriptor pool.
type DescriptorPoolInfo struct {
	MaxSets  uint32
	Sizes    []DescriptorPoolSize
	FreeSets bool
}

// NativeDescriptorWrite updates one binding of a descriptor set.
type NativeDescriptorWrite struct {
	Binding      uint32
	ArrayElement uint32
	Type         DescriptorType

	Buffer Handle
	Offset uint64
	Range  uint64

	View    Handle
	Layout  ImageLayout
	Sampler Handle
}

// NativeShaderStage is a compiled shader bound to a pipeline stage.
type NativeShaderStage struct {
	Stage  ShaderStage
	Module Handle
	Entry  string
}

// GraphicsPipelineInfo is a fully resolved graphics pipeline.
// Either RenderPass is set or the attachment formats are.
type GraphicsPipelineInfo struct {
	Stages []NativeShaderStage
	State  PipelineInfo
	Layout Handle

	RenderPass Handle
	Subpass    uint32

	ColorFormats []Format
	DepthFormat  Format
}

// SurfaceFormat pairs a presentable format with its color space.
type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

// SurfaceCapabilities describes what a window surface supports.
type SurfaceCapabilities struct {
	MinImageCount uint32
	MaxImageCount uint32
	CurrentExtent Extent2D
	MinExtent     Extent2D
	MaxExtent     Extent2D
	Formats       []SurfaceFormat
	PresentModes  []PresentMode
}

// SwapchainInfo describes a native swapchain.
type SwapchainInfo struct {
	MinImageCount uint32
	Format        SurfaceFormat
	Extent        Extent2D
	Usage         ImageUsage
	PresentMode   PresentMode
	QueueFamilies []uint32

	// Old is the chain being replaced, nil on first creation.
	Old Handle
}

// NativeDevice is the driver side of a logical device.
type NativeDevice interface {
	MemoryTypes() []MemoryType
	AllocateMemory(size uint64, memoryType uint32) (Handle, Result)
	FreeMemory(mem Handle)
	MapMemory(mem Handle, offset, size uint64) ([]byte, error)
	UnmapMemory(mem Handle)

	CreateBuffer(info BufferInfo) (Handle, MemoryRequirements, error)
	BindBufferMemory(buffer, mem Handle, offset uint64) error
	DestroyBuffer(buffer Handle)

	CreateImage(info ImageInfo) (Handle, MemoryRequirements, error)
	BindImageMemory(image, mem Handle, offset uint64) error
	DestroyImage(image Handle)

	CreateImageView(info ImageViewInfo) (Handle, error)
	DestroyImageView(view Handle)

	CreateSampler(desc SamplerDesc) (Handle, error)
	DestroySampler(sampler Handle)

	CreateShaderModule(code []byte) (Handle, error)
	DestroyShaderModule(module Handle)

	CreateFence(signaled bool) (Handle, error)
	WaitForFences(fences []Handle, timeout time.Duration) Result
	ResetFences(fences []Handle) error
	FenceStatus(fence Handle) Result
	DestroyFence(fence Handle)

	CreateDescriptorSetLayout(bindings []DescriptorBinding) (Handle, error)
	DestroyDescriptorSetLayout(layout Handle)
	CreateDescriptorPool(info DescriptorPoolInfo) (Handle, error)
	DestroyDescriptorPool(pool Handle)
	AllocateDescriptorSet(pool, layout Handle) (Handle, Result)
	FreeDescriptorSet(pool, set Handle) error
	UpdateDescriptorSet(set Handle, writes []NativeDescriptorWrite)

	CreatePipelineLayout(setLayouts []Handle, pushConstants []PushConstantRange) (Handle, error)
	DestroyPipelineLayout(layout Handle)
	CreateGraphicsPipeline(info GraphicsPipelineInfo) (Handle, error)
	CreateComputePipeline(layout Handle, stage NativeShaderStage) (Handle, error)
	DestroyPipeline(pipeline Handle)

	CreateRenderPass(desc RenderPassDesc) (Handle, error)
	DestroyRenderPass(pass Handle)
	CreateFramebuffer(pass Handle, views []Handle, extent Extent2D, layers uint32) (Handle, error)
	DestroyFramebuffer(framebuffer Handle)

	Queue(family, index uint32) Handle
	CreateCommandPool(family uint32) (Handle, error)
	DestroyCommandPool(pool Handle)
	AllocateCommandBuffer(pool Handle, level CommandBufferLevel) (NativeCommandBuffer, error)
	FreeCommandBuffer(pool Handle, buffer NativeCommandBuffer)
	QueueSubmit(queue Handle, buffers []NativeCommandBuffer, fence Handle) error
	QueueWaitIdle(queue Handle) error
	WaitIdle() error

	SurfaceCapabilities() (SurfaceCapabilities, error)
	CreateSwapchain(info SwapchainInfo) (Handle, error)
	DestroySwapchain(swapchain Handle)
	SwapchainImages(swapchain Handle) ([]Handle, error)
	AcquireNextImage(swapchain Handle, timeout time.Duration, fence Handle) (uint32, Result)
	QueuePresent(queue, swapchain Handle, index uint32) Result

	Destroy()
}

// CommandBufferUsage are hints given when recording begins.
type CommandBufferUsage uint32

// Command buffer usage bits.
const (
	UsageOneTimeSubmit      CommandBufferUsage = 0x1
	UsageRenderPassContinue CommandBufferUsage = 0x2
	UsageSimultaneousUse    CommandBufferUsage = 0x4
)

// Inheritance is the render pass state a secondary buffer continues.
type Inheritance struct {
	RenderPass  Handle
	Subpass     uint32
	Framebuffer Handle
}

// BufferCopy is one region of a buffer to buffer copy.
type BufferCopy struct {
	SrcOffset uint64
	DstOffset uint64
	Size      uint64
}

// BufferImageCopy is one region of a copy between a buffer and an image.
type BufferImageCopy struct {
	BufferOffset      uint64
	BufferRowLength   uint32
	BufferImageHeight uint32

	Aspect     ImageAspect
	MipLevel   uint32
	BaseLayer  uint32
	LayerCount uint32

	ImageOffset Offset3D
	ImageExtent Extent3D
}

// ImageBlit is one region of a scaled image copy.
type ImageBlit struct {
	Aspect     ImageAspect
	SrcMip     uint32
	DstMip     uint32
	BaseLayer  uint32
	LayerCount uint32
	SrcOffsets [2]Offset3D
	DstOffsets [2]Offset3D
}

// MemoryBarrier orders all memory accesses of the given types.
type MemoryBarrier struct {
	SrcAccess Access
	DstAccess Access
}

// NativeBufferBarrier orders accesses to a range of a native buffer.
type NativeBufferBarrier struct {
	SrcAccess Access
	DstAccess Access
	Buffer    Handle
	Offset    uint64
	Size      uint64
}

// NativeImageBarrier orders accesses to a native image and
// transitions its layout.
type NativeImageBarrier struct {
	SrcAccess Access
	DstAccess Access
	OldLayout ImageLayout
	NewLayout ImageLayout
	Image     Handle
	Range     SubresourceRange
}

// NativeRenderingAttachment is an attachment of render pass-less rendering.
type NativeRenderingAttachment struct {
	View    Handle
	Format  Format
	LoadOp  LoadOp
	StoreOp StoreOp
	Clear   ClearValue
}

// NativeRenderingInfo begins rendering directly to image views.
type NativeRenderingInfo struct {
	Area  Rect2D
	Color []NativeRenderingAttachment
	Depth *NativeRenderingAttachment
}

// NativeCommandBuffer is the driver side of a command buffer.
type NativeCommandBuffer interface {
	Begin(usage CommandBufferUsage, inheritance *Inheritance) error
	End() error
	Reset() error

	BeginRenderPass(pass, framebuffer Handle, area Rect2D, clears []ClearValue, contents SubpassContents)
	EndRenderPass()
	BeginRendering(info NativeRenderingInfo) error
	EndRendering()

	BindPipeline(point PipelineBindPoint, pipeline Handle)
	BindDescriptorSets(point PipelineBindPoint, layout Handle, first uint32, sets []Handle)
	BindVertexBuffers(first uint32, buffers []Handle, offsets []uint64)
	BindIndexBuffer(buffer Handle, offset uint64, indexType IndexType)
	PushConstants(layout Handle, stages ShaderStage, offset uint32, data []byte)
	SetViewport(viewport Viewport)
	SetScissor(scissor Rect2D)

	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)
	Dispatch(x, y, z uint32)

	CopyBuffer(src, dst Handle, regions []BufferCopy)
	CopyBufferToImage(src, dst Handle, layout ImageLayout, regions []BufferImageCopy)
	CopyImageToBuffer(src Handle, layout ImageLayout, dst Handle, regions []BufferImageCopy)
	BlitImage(src Handle, srcLayout ImageLayout, dst Handle, dstLayout ImageLayout, regions []ImageBlit, filter Filter)

	PipelineBarrier(src, dst PipelineStage, memory []MemoryBarrier, buffers []NativeBufferBarrier, images []NativeImageBarrier)
	ExecuteCommands(buffers []NativeCommandBuffer)
}
