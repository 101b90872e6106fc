// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"sync"
	"time"
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/koru3d/koru/gfx"
)

// Device implements gfx.NativeDevice on a Vulkan logical device.
type Device struct {
	backend  *Backend
	physical vk.PhysicalDevice
	device   vk.Device
	memory   []gfx.MemoryType

	// passes holds render passes made up for pipelines and rendering
	// that name attachment formats instead of a render pass.
	passMu sync.Mutex
	passes map[passKey]vk.RenderPass
}

func newDevice(b *Backend, pd vk.PhysicalDevice, device vk.Device) *Device {
	var props vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(pd, &props)
	props.Deref()

	types := make([]gfx.MemoryType, props.MemoryTypeCount)
	for i := range types {
		props.MemoryTypes[i].Deref()
		types[i] = gfx.MemoryType{
			Properties: gfx.MemoryProperty(props.MemoryTypes[i].PropertyFlags),
			Heap:       props.MemoryTypes[i].HeapIndex,
		}
	}

	return &Device{
		backend:  b,
		physical: pd,
		device:   device,
		memory:   types,
		passes:   make(map[passKey]vk.RenderPass),
	}
}

// Native returns the logical device handle.
func (d *Device) Native() vk.Device {
	return d.device
}

// MemoryTypes implements interface
func (d *Device) MemoryTypes() []gfx.MemoryType {
	return d.memory
}

// AllocateMemory implements interface
func (d *Device) AllocateMemory(size uint64, memoryType uint32) (gfx.Handle, gfx.Result) {
	info := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  vk.DeviceSize(size),
		MemoryTypeIndex: memoryType,
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(d.device, &info, nil, &memory); res != vk.Success {
		return nil, gfx.Result(res)
	}
	return memory, gfx.Success
}

// FreeMemory implements interface
func (d *Device) FreeMemory(mem gfx.Handle) {
	vk.FreeMemory(d.device, handle[vk.DeviceMemory](mem), nil)
}

// MapMemory implements interface
func (d *Device) MapMemory(mem gfx.Handle, offset, size uint64) ([]byte, error) {
	var data unsafe.Pointer
	if err := vk.Error(vk.MapMemory(d.device, handle[vk.DeviceMemory](mem), vk.DeviceSize(offset), vk.DeviceSize(size), 0, &data)); err != nil {
		return nil, errors.Wrap(err, "vk.MapMemory()")
	}
	return unsafe.Slice((*byte)(data), size), nil
}

// UnmapMemory implements interface
func (d *Device) UnmapMemory(mem gfx.Handle) {
	vk.UnmapMemory(d.device, handle[vk.DeviceMemory](mem))
}

func requirements(req vk.MemoryRequirements) gfx.MemoryRequirements {
	req.Deref()
	return gfx.MemoryRequirements{
		Size:      uint64(req.Size),
		Alignment: uint64(req.Alignment),
		TypeBits:  req.MemoryTypeBits,
	}
}

// CreateBuffer implements interface
func (d *Device) CreateBuffer(info gfx.BufferInfo) (gfx.Handle, gfx.MemoryRequirements, error) {
	mode, families := sharing(info.QueueFamilies)
	bci := vk.BufferCreateInfo{
		SType:                 vk.StructureTypeBufferCreateInfo,
		Size:                  vk.DeviceSize(info.Size),
		Usage:                 vk.BufferUsageFlags(info.Usage),
		SharingMode:           mode,
		QueueFamilyIndexCount: uint32(len(families)),
		PQueueFamilyIndices:   families,
	}
	var buffer vk.Buffer
	if err := vk.Error(vk.CreateBuffer(d.device, &bci, nil, &buffer)); err != nil {
		return nil, gfx.MemoryRequirements{}, errors.Wrap(err, "vk.CreateBuffer()")
	}
	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.device, buffer, &req)
	return buffer, requirements(req), nil
}

// BindBufferMemory implements interface
func (d *Device) BindBufferMemory(buffer, mem gfx.Handle, offset uint64) error {
	return errors.Wrap(vk.Error(vk.BindBufferMemory(d.device, handle[vk.Buffer](buffer),
		handle[vk.DeviceMemory](mem), vk.DeviceSize(offset))), "vk.BindBufferMemory()")
}

// DestroyBuffer implements interface
func (d *Device) DestroyBuffer(buffer gfx.Handle) {
	vk.DestroyBuffer(d.device, handle[vk.Buffer](buffer), nil)
}

// CreateImage implements interface
func (d *Device) CreateImage(info gfx.ImageInfo) (gfx.Handle, gfx.MemoryRequirements, error) {
	mode, families := sharing(info.QueueFamilies)
	imageType := vk.ImageType2d
	if info.Extent.Depth > 1 {
		imageType = vk.ImageType3d
	}
	var flags vk.ImageCreateFlags
	if info.Cube {
		flags = vk.ImageCreateFlags(vk.ImageCreateCubeCompatibleBit)
	}
	ici := vk.ImageCreateInfo{
		SType:                 vk.StructureTypeImageCreateInfo,
		Flags:                 flags,
		ImageType:             imageType,
		Format:                vk.Format(info.Format),
		Extent:                extent3D(info.Extent),
		MipLevels:             info.MipLevels,
		ArrayLayers:           info.ArrayLayers,
		Samples:               vk.SampleCount1Bit,
		Tiling:                vk.ImageTilingOptimal,
		Usage:                 vk.ImageUsageFlags(info.Usage),
		SharingMode:           mode,
		QueueFamilyIndexCount: uint32(len(families)),
		PQueueFamilyIndices:   families,
		InitialLayout:         vk.ImageLayoutUndefined,
	}
	var image vk.Image
	if err := vk.Error(vk.CreateImage(d.device, &ici, nil, &image)); err != nil {
		return nil, gfx.MemoryRequirements{}, errors.Wrap(err, "vk.CreateImage()")
	}
	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.device, image, &req)
	return image, requirements(req), nil
}

// BindImageMemory implements interface
func (d *Device) BindImageMemory(image, mem gfx.Handle, offset uint64) error {
	return errors.Wrap(vk.Error(vk.BindImageMemory(d.device, handle[vk.Image](image),
		handle[vk.DeviceMemory](mem), vk.DeviceSize(offset))), "vk.BindImageMemory()")
}

// DestroyImage implements interface
func (d *Device) DestroyImage(image gfx.Handle) {
	vk.DestroyImage(d.device, handle[vk.Image](image), nil)
}

// CreateImageView implements interface
func (d *Device) CreateImageView(info gfx.ImageViewInfo) (gfx.Handle, error) {
	ivci := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    handle[vk.Image](info.Image),
		ViewType: vk.ImageViewType(info.Type),
		Format:   vk.Format(info.Format),
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: subresourceRange(info.Range),
	}
	var view vk.ImageView
	if err := vk.Error(vk.CreateImageView(d.device, &ivci, nil, &view)); err != nil {
		return nil, errors.Wrap(err, "vk.CreateImageView()")
	}
	return view, nil
}

// DestroyImageView implements interface
func (d *Device) DestroyImageView(view gfx.Handle) {
	vk.DestroyImageView(d.device, handle[vk.ImageView](view), nil)
}

// CreateSampler implements interface
func (d *Device) CreateSampler(desc gfx.SamplerDesc) (gfx.Handle, error) {
	sci := samplerInfo(desc)
	var sampler vk.Sampler
	if err := vk.Error(vk.CreateSampler(d.device, &sci, nil, &sampler)); err != nil {
		return nil, errors.Wrap(err, "vk.CreateSampler()")
	}
	return sampler, nil
}

// DestroySampler implements interface
func (d *Device) DestroySampler(sampler gfx.Handle) {
	vk.DestroySampler(d.device, handle[vk.Sampler](sampler), nil)
}

// CreateShaderModule implements interface
func (d *Device) CreateShaderModule(code []byte) (gfx.Handle, error) {
	smci := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    sliceUint32(code),
	}
	var module vk.ShaderModule
	if err := vk.Error(vk.CreateShaderModule(d.device, &smci, nil, &module)); err != nil {
		return nil, errors.Wrap(err, "vk.CreateShaderModule()")
	}
	return module, nil
}

// DestroyShaderModule implements interface
func (d *Device) DestroyShaderModule(module gfx.Handle) {
	vk.DestroyShaderModule(d.device, handle[vk.ShaderModule](module), nil)
}

// CreateFence implements interface
func (d *Device) CreateFence(signaled bool) (gfx.Handle, error) {
	fci := vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}
	if signaled {
		fci.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	if err := vk.Error(vk.CreateFence(d.device, &fci, nil, &fence)); err != nil {
		return nil, errors.Wrap(err, "vk.CreateFence()")
	}
	return fence, nil
}

// WaitForFences implements interface
func (d *Device) WaitForFences(fences []gfx.Handle, timeout time.Duration) gfx.Result {
	native := handles[vk.Fence](fences)
	return gfx.Result(vk.WaitForFences(d.device, uint32(len(native)), native, vk.True, timeoutNanos(timeout)))
}

// ResetFences implements interface
func (d *Device) ResetFences(fences []gfx.Handle) error {
	native := handles[vk.Fence](fences)
	return errors.Wrap(vk.Error(vk.ResetFences(d.device, uint32(len(native)), native)), "vk.ResetFences()")
}

// FenceStatus implements interface
func (d *Device) FenceStatus(fence gfx.Handle) gfx.Result {
	return gfx.Result(vk.GetFenceStatus(d.device, handle[vk.Fence](fence)))
}

// DestroyFence implements interface
func (d *Device) DestroyFence(fence gfx.Handle) {
	vk.DestroyFence(d.device, handle[vk.Fence](fence), nil)
}

// CreateDescriptorSetLayout implements interface
func (d *Device) CreateDescriptorSetLayout(bindings []gfx.DescriptorBinding) (gfx.Handle, error) {
	native := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		native[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  vk.DescriptorType(b.Type),
			DescriptorCount: b.Count,
			StageFlags:      vk.ShaderStageFlags(b.Stages),
		}
	}
	dslci := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(native)),
		PBindings:    native,
	}
	var layout vk.DescriptorSetLayout
	if err := vk.Error(vk.CreateDescriptorSetLayout(d.device, &dslci, nil, &layout)); err != nil {
		return nil, errors.Wrap(err, "vk.CreateDescriptorSetLayout()")
	}
	return layout, nil
}

// DestroyDescriptorSetLayout implements interface
func (d *Device) DestroyDescriptorSetLayout(layout gfx.Handle) {
	vk.DestroyDescriptorSetLayout(d.device, handle[vk.DescriptorSetLayout](layout), nil)
}

// CreateDescriptorPool implements interface
func (d *Device) CreateDescriptorPool(info gfx.DescriptorPoolInfo) (gfx.Handle, error) {
	sizes := make([]vk.DescriptorPoolSize, len(info.Sizes))
	for i, s := range info.Sizes {
		sizes[i] = vk.DescriptorPoolSize{
			Type:            vk.DescriptorType(s.Type),
			DescriptorCount: s.Count,
		}
	}
	dpci := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       info.MaxSets,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	if info.FreeSets {
		dpci.Flags = vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit)
	}
	var pool vk.DescriptorPool
	if err := vk.Error(vk.CreateDescriptorPool(d.device, &dpci, nil, &pool)); err != nil {
		return nil, errors.Wrap(err, "vk.CreateDescriptorPool()")
	}
	return pool, nil
}

// DestroyDescriptorPool implements interface
func (d *Device) DestroyDescriptorPool(pool gfx.Handle) {
	vk.DestroyDescriptorPool(d.device, handle[vk.DescriptorPool](pool), nil)
}

// AllocateDescriptorSet implements interface. Pool exhaustion is
// returned as a result so that allocators can grow.
func (d *Device) AllocateDescriptorSet(pool, layout gfx.Handle) (gfx.Handle, gfx.Result) {
	dsai := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     handle[vk.DescriptorPool](pool),
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{handle[vk.DescriptorSetLayout](layout)},
	}
	var set vk.DescriptorSet
	if res := vk.AllocateDescriptorSets(d.device, &dsai, &set); res != vk.Success {
		return nil, gfx.Result(res)
	}
	return set, gfx.Success
}

// FreeDescriptorSet implements interface
func (d *Device) FreeDescriptorSet(pool, set gfx.Handle) error {
	native := handle[vk.DescriptorSet](set)
	return errors.Wrap(vk.Error(vk.FreeDescriptorSets(d.device, handle[vk.DescriptorPool](pool), 1, &native)),
		"vk.FreeDescriptorSets()")
}

// UpdateDescriptorSet implements interface
func (d *Device) UpdateDescriptorSet(set gfx.Handle, writes []gfx.NativeDescriptorWrite) {
	native := make([]vk.WriteDescriptorSet, len(writes))
	for i, w := range writes {
		native[i] = vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          handle[vk.DescriptorSet](set),
			DstBinding:      w.Binding,
			DstArrayElement: w.ArrayElement,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorType(w.Type),
		}
		switch w.Type {
		case gfx.DescriptorUniformBuffer, gfx.DescriptorStorageBuffer,
			gfx.DescriptorUniformBufferDynamic, gfx.DescriptorStorageBufferDynamic:
			native[i].PBufferInfo = []vk.DescriptorBufferInfo{{
				Buffer: handle[vk.Buffer](w.Buffer),
				Offset: vk.DeviceSize(w.Offset),
				Range:  vk.DeviceSize(w.Range),
			}}
		default:
			native[i].PImageInfo = []vk.DescriptorImageInfo{{
				Sampler:     handle[vk.Sampler](w.Sampler),
				ImageView:   handle[vk.ImageView](w.View),
				ImageLayout: vk.ImageLayout(w.Layout),
			}}
		}
	}
	vk.UpdateDescriptorSets(d.device, uint32(len(native)), native, 0, nil)
}

// Queue implements interface
func (d *Device) Queue(family, index uint32) gfx.Handle {
	var queue vk.Queue
	vk.GetDeviceQueue(d.device, family, index, &queue)
	return queue
}

// CreateCommandPool implements interface
func (d *Device) CreateCommandPool(family uint32) (gfx.Handle, error) {
	cpci := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: family,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if err := vk.Error(vk.CreateCommandPool(d.device, &cpci, nil, &pool)); err != nil {
		return nil, errors.Wrap(err, "vk.CreateCommandPool()")
	}
	return pool, nil
}

// DestroyCommandPool implements interface
func (d *Device) DestroyCommandPool(pool gfx.Handle) {
	vk.DestroyCommandPool(d.device, handle[vk.CommandPool](pool), nil)
}

// AllocateCommandBuffer implements interface
func (d *Device) AllocateCommandBuffer(pool gfx.Handle, level gfx.CommandBufferLevel) (gfx.NativeCommandBuffer, error) {
	cbai := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        handle[vk.CommandPool](pool),
		Level:              vk.CommandBufferLevel(level),
		CommandBufferCount: 1,
	}
	buffers := make([]vk.CommandBuffer, 1)
	if err := vk.Error(vk.AllocateCommandBuffers(d.device, &cbai, buffers)); err != nil {
		return nil, errors.Wrap(err, "vk.AllocateCommandBuffers()")
	}
	return &commandBuffer{device: d, buffer: buffers[0]}, nil
}

// FreeCommandBuffer implements interface
func (d *Device) FreeCommandBuffer(pool gfx.Handle, buffer gfx.NativeCommandBuffer) {
	cb := buffer.(*commandBuffer)
	cb.releaseTransient()
	vk.FreeCommandBuffers(d.device, handle[vk.CommandPool](pool), 1, []vk.CommandBuffer{cb.buffer})
}

// QueueSubmit implements interface
func (d *Device) QueueSubmit(queue gfx.Handle, buffers []gfx.NativeCommandBuffer, fence gfx.Handle) error {
	native := make([]vk.CommandBuffer, len(buffers))
	for i, b := range buffers {
		native[i] = b.(*commandBuffer).buffer
	}
	submit := []vk.SubmitInfo{{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: uint32(len(native)),
		PCommandBuffers:    native,
	}}
	return errors.Wrap(vk.Error(vk.QueueSubmit(handle[vk.Queue](queue), 1, submit, handle[vk.Fence](fence))),
		"vk.QueueSubmit()")
}

// QueueWaitIdle implements interface
func (d *Device) QueueWaitIdle(queue gfx.Handle) error {
	return errors.Wrap(vk.Error(vk.QueueWaitIdle(handle[vk.Queue](queue))), "vk.QueueWaitIdle()")
}

// WaitIdle implements interface
func (d *Device) WaitIdle() error {
	return errors.Wrap(vk.Error(vk.DeviceWaitIdle(d.device)), "vk.DeviceWaitIdle()")
}

// Destroy implements interface
func (d *Device) Destroy() {
	d.passMu.Lock()
	for key, pass := range d.passes {
		vk.DestroyRenderPass(d.device, pass, nil)
		delete(d.passes, key)
	}
	d.passMu.Unlock()
	vk.DestroyDevice(d.device, nil)
}
