package soft

import (
	"time"

	"github.com/cockroachdb/errors"

	"github.com/koru3d/koru/gfx"
)

// Stats counts the work a device executed.
type Stats struct {
	Submissions      int
	CommandBuffers   int
	Draws            int
	Dispatches       int
	Copies           int
	Blits            int
	Barriers         int
	RenderPasses     int
	Swapchains       int
	Acquires         int
	Presents         int
	ValidationErrors int
}

const alignment = 16

type memory struct {
	data   []byte
	props  gfx.MemoryProperty
	mapped bool
}

type buffer struct {
	info   gfx.BufferInfo
	mem    *memory
	offset uint64
}

func (b *buffer) bytes() []byte {
	if b.mem == nil {
		return nil
	}
	return b.mem.data[b.offset : b.offset+b.info.Size]
}

type view struct {
	img  *image
	info gfx.ImageViewInfo
}

type sampler struct {
	desc gfx.SamplerDesc
}

type module struct {
	code []byte
}

type fence struct {
	signaled bool
}

type setLayout struct {
	bindings []gfx.DescriptorBinding
}

type pool struct {
	info     gfx.DescriptorPoolInfo
	setsLeft uint32
	left     map[gfx.DescriptorType]uint32
}

type set struct {
	pool   *pool
	layout *setLayout
	writes map[uint32]gfx.NativeDescriptorWrite
}

type pipelineLayout struct {
	sets []gfx.Handle
	push []gfx.PushConstantRange
}

type pipeline struct {
	layout   *pipelineLayout
	graphics *gfx.GraphicsPipelineInfo
	compute  *gfx.NativeShaderStage
}

type renderPass struct {
	desc gfx.RenderPassDesc
}

type framebuffer struct {
	pass   *renderPass
	views  []*view
	extent gfx.Extent2D
}

type commandPool struct {
	family uint32
}

type queue struct {
	family, index uint32
}

type swapchain struct {
	info    gfx.SwapchainInfo
	images  []*image
	next    uint32
	retired bool
}

type submission struct {
	buffers []*commandBuffer
	fence   *fence
}

func newDevice(b *Backend, a gfx.AdapterInfo, info gfx.DeviceInfo) *Device {
	return &Device{
		backend: b,
		adapter: a,
		info:    info,
		types: []gfx.MemoryType{
			{Properties: gfx.MemoryDeviceLocal, Heap: 0},
			{Properties: gfx.MemoryHostVisible | gfx.MemoryHostCoherent, Heap: 1},
			{Properties: gfx.MemoryHostVisible | gfx.MemoryHostCoherent | gfx.MemoryHostCached, Heap: 1},
		},
		live:   map[interface{}]string{},
		queues: map[[2]uint32]*queue{},
	}
}

// Device implements gfx.NativeDevice in host memory.
type Device struct {
	backend *Backend
	adapter gfx.AdapterInfo
	info    gfx.DeviceInfo
	types   []gfx.MemoryType

	allocated uint64
	live      map[interface{}]string
	queues    map[[2]uint32]*queue

	stalled   bool
	pending   []submission
	stats     Stats
	destroyed bool
}

// Stats returns the work counters.
func (d *Device) Stats() Stats {
	return d.stats
}

// Live returns the number of live objects per kind.
func (d *Device) Live() map[string]int {
	counts := map[string]int{}
	for _, kind := range d.live {
		counts[kind]++
	}
	return counts
}

// Destroyed reports whether the device was destroyed.
func (d *Device) Destroyed() bool {
	return d.destroyed
}

// Allocated returns the bytes of device memory in use.
func (d *Device) Allocated() uint64 {
	return d.allocated
}

// Stall holds back execution of submissions, leaving their fences
// unsignaled, until it is called with false or the device idles.
func (d *Device) Stall(stalled bool) {
	d.stalled = stalled
	if !stalled {
		d.flush()
	}
}

func (d *Device) invalid(format string, args ...interface{}) {
	d.stats.ValidationErrors++
	d.backend.report(gfx.SeverityError, format, args...)
}

func (d *Device) add(obj interface{}, kind string) {
	d.live[obj] = kind
}

func (d *Device) remove(obj interface{}, kind string) {
	if _, ok := d.live[obj]; !ok {
		d.invalid("destroying unknown or destroyed %s", kind)
		return
	}
	delete(d.live, obj)
}

// MemoryTypes implements interface
func (d *Device) MemoryTypes() []gfx.MemoryType {
	return d.types
}

// AllocateMemory implements interface
func (d *Device) AllocateMemory(size uint64, memoryType uint32) (gfx.Handle, gfx.Result) {
	if int(memoryType) >= len(d.types) {
		d.invalid("memory type %d does not exist", memoryType)
		return nil, gfx.ErrorOutOfDeviceMemory
	}
	if limit := d.backend.cfg.MemoryLimit; limit > 0 && d.allocated+size > limit {
		return nil, gfx.ErrorOutOfDeviceMemory
	}
	m := &memory{
		data:  make([]byte, size),
		props: d.types[memoryType].Properties,
	}
	d.allocated += size
	d.add(m, "memory")
	return m, gfx.Success
}

// FreeMemory implements interface
func (d *Device) FreeMemory(mem gfx.Handle) {
	m := mem.(*memory)
	d.remove(m, "memory")
	d.allocated -= uint64(len(m.data))
}

// MapMemory implements interface
func (d *Device) MapMemory(mem gfx.Handle, offset, size uint64) ([]byte, error) {
	m := mem.(*memory)
	if m.props&gfx.MemoryHostVisible == 0 {
		return nil, errors.New("soft: memory is not host visible")
	}
	if m.mapped {
		return nil, errors.New("soft: memory is already mapped")
	}
	if offset+size > uint64(len(m.data)) {
		return nil, errors.Newf("soft: mapping %d bytes at %d of %d", size, offset, len(m.data))
	}
	m.mapped = true
	return m.data[offset : offset+size], nil
}

// UnmapMemory implements interface
func (d *Device) UnmapMemory(mem gfx.Handle) {
	mem.(*memory).mapped = false
}

func requirements(size uint64) gfx.MemoryRequirements {
	return gfx.MemoryRequirements{
		Size:      (size + alignment - 1) / alignment * alignment,
		Alignment: alignment,
		TypeBits:  0x7,
	}
}

// CreateBuffer implements interface
func (d *Device) CreateBuffer(info gfx.BufferInfo) (gfx.Handle, gfx.MemoryRequirements, error) {
	if info.Size == 0 {
		return nil, gfx.MemoryRequirements{}, errors.New("soft: zero sized buffer")
	}
	b := &buffer{info: info}
	d.add(b, "buffer")
	return b, requirements(info.Size), nil
}

// BindBufferMemory implements interface
func (d *Device) BindBufferMemory(buf, mem gfx.Handle, offset uint64) error {
	b, m := buf.(*buffer), mem.(*memory)
	if offset+b.info.Size > uint64(len(m.data)) {
		return errors.Newf("soft: buffer of %d bytes does not fit memory at %d", b.info.Size, offset)
	}
	b.mem, b.offset = m, offset
	return nil
}

// DestroyBuffer implements interface
func (d *Device) DestroyBuffer(buf gfx.Handle) {
	d.remove(buf, "buffer")
}

// CreateImage implements interface
func (d *Device) CreateImage(info gfx.ImageInfo) (gfx.Handle, gfx.MemoryRequirements, error) {
	if info.Format.BytesPerPixel() == 0 {
		return nil, gfx.MemoryRequirements{}, errors.Newf("soft: unsupported format %d", info.Format)
	}
	img := newImage(info)
	d.add(img, "image")
	return img, requirements(img.size), nil
}

// BindImageMemory implements interface
func (d *Device) BindImageMemory(handle, mem gfx.Handle, offset uint64) error {
	img, m := handle.(*image), mem.(*memory)
	if offset+img.size > uint64(len(m.data)) {
		return errors.Newf("soft: image of %d bytes does not fit memory at %d", img.size, offset)
	}
	img.data = m.data[offset : offset+img.size]
	return nil
}

// DestroyImage implements interface
func (d *Device) DestroyImage(handle gfx.Handle) {
	d.remove(handle, "image")
}

// CreateImageView implements interface
func (d *Device) CreateImageView(info gfx.ImageViewInfo) (gfx.Handle, error) {
	img := info.Image.(*image)
	r := info.Range
	if r.BaseMip+r.MipCount > img.info.MipLevels || r.BaseLayer+r.LayerCount > img.info.ArrayLayers {
		return nil, errors.Newf("soft: view range %+v exceeds image", r)
	}
	v := &view{img: img, info: info}
	d.add(v, "image view")
	return v, nil
}

// DestroyImageView implements interface
func (d *Device) DestroyImageView(handle gfx.Handle) {
	d.remove(handle, "image view")
}

// CreateSampler implements interface
func (d *Device) CreateSampler(desc gfx.SamplerDesc) (gfx.Handle, error) {
	s := &sampler{desc: desc}
	d.add(s, "sampler")
	return s, nil
}

// DestroySampler implements interface
func (d *Device) DestroySampler(handle gfx.Handle) {
	d.remove(handle, "sampler")
}

// CreateShaderModule implements interface
func (d *Device) CreateShaderModule(code []byte) (gfx.Handle, error) {
	m := &module{code: append([]byte(nil), code...)}
	d.add(m, "shader module")
	return m, nil
}

// DestroyShaderModule implements interface
func (d *Device) DestroyShaderModule(handle gfx.Handle) {
	d.remove(handle, "shader module")
}

// CreateFence implements interface
func (d *Device) CreateFence(signaled bool) (gfx.Handle, error) {
	f := &fence{signaled: signaled}
	d.add(f, "fence")
	return f, nil
}

// WaitForFences implements interface. Stalled work never completes,
// so waiting on it times out immediately.
func (d *Device) WaitForFences(fences []gfx.Handle, timeout time.Duration) gfx.Result {
	for _, h := range fences {
		if !h.(*fence).signaled {
			return gfx.Timeout
		}
	}
	return gfx.Success
}

// ResetFences implements interface
func (d *Device) ResetFences(fences []gfx.Handle) error {
	for _, h := range fences {
		h.(*fence).signaled = false
	}
	return nil
}

// FenceStatus implements interface
func (d *Device) FenceStatus(handle gfx.Handle) gfx.Result {
	if handle.(*fence).signaled {
		return gfx.Success
	}
	return gfx.NotReady
}

// DestroyFence implements interface
func (d *Device) DestroyFence(handle gfx.Handle) {
	d.remove(handle, "fence")
}

// CreateDescriptorSetLayout implements interface
func (d *Device) CreateDescriptorSetLayout(bindings []gfx.DescriptorBinding) (gfx.Handle, error) {
	seen := map[uint32]bool{}
	for _, b := range bindings {
		if seen[b.Binding] {
			return nil, errors.Newf("soft: binding %d declared twice", b.Binding)
		}
		seen[b.Binding] = true
	}
	l := &setLayout{bindings: append([]gfx.DescriptorBinding(nil), bindings...)}
	d.add(l, "descriptor set layout")
	return l, nil
}

// DestroyDescriptorSetLayout implements interface
func (d *Device) DestroyDescriptorSetLayout(handle gfx.Handle) {
	d.remove(handle, "descriptor set layout")
}

// CreateDescriptorPool implements interface
func (d *Device) CreateDescriptorPool(info gfx.DescriptorPoolInfo) (gfx.Handle, error) {
	p := &pool{
		info:     info,
		setsLeft: info.MaxSets,
		left:     map[gfx.DescriptorType]uint32{},
	}
	for _, s := range info.Sizes {
		p.left[s.Type] += s.Count
	}
	d.add(p, "descriptor pool")
	return p, nil
}

// DestroyDescriptorPool implements interface. Sets allocated from the
// pool are freed with it.
func (d *Device) DestroyDescriptorPool(handle gfx.Handle) {
	for obj := range d.live {
		if s, ok := obj.(*set); ok && s.pool == handle {
			delete(d.live, obj)
		}
	}
	d.remove(handle, "descriptor pool")
}

// AllocateDescriptorSet implements interface
func (d *Device) AllocateDescriptorSet(poolHandle, layoutHandle gfx.Handle) (gfx.Handle, gfx.Result) {
	p, l := poolHandle.(*pool), layoutHandle.(*setLayout)
	if p.setsLeft == 0 {
		return nil, gfx.ErrorOutOfPoolMemory
	}
	for _, b := range l.bindings {
		if p.left[b.Type] < b.Count {
			return nil, gfx.ErrorOutOfPoolMemory
		}
	}
	p.setsLeft--
	for _, b := range l.bindings {
		p.left[b.Type] -= b.Count
	}
	s := &set{
		pool:   p,
		layout: l,
		writes: map[uint32]gfx.NativeDescriptorWrite{},
	}
	d.add(s, "descriptor set")
	return s, gfx.Success
}

// FreeDescriptorSet implements interface
func (d *Device) FreeDescriptorSet(poolHandle, setHandle gfx.Handle) error {
	p, s := poolHandle.(*pool), setHandle.(*set)
	if !p.info.FreeSets {
		return errors.New("soft: pool does not allow freeing sets")
	}
	if s.pool != p {
		return errors.New("soft: set belongs to another pool")
	}
	p.setsLeft++
	for _, b := range s.layout.bindings {
		p.left[b.Type] += b.Count
	}
	d.remove(s, "descriptor set")
	return nil
}

// UpdateDescriptorSet implements interface
func (d *Device) UpdateDescriptorSet(handle gfx.Handle, writes []gfx.NativeDescriptorWrite) {
	s := handle.(*set)
	for _, w := range writes {
		found := false
		for _, b := range s.layout.bindings {
			if b.Binding == w.Binding {
				found = b.Type == w.Type
			}
		}
		if !found {
			d.invalid("descriptor write of type %d to binding %d does not match the layout", w.Type, w.Binding)
			continue
		}
		s.writes[w.Binding] = w
	}
}

// Writes returns the descriptors written to a set, by binding.
func Writes(handle gfx.Handle) map[uint32]gfx.NativeDescriptorWrite {
	return handle.(*set).writes
}

// CreatePipelineLayout implements interface
func (d *Device) CreatePipelineLayout(sets []gfx.Handle, push []gfx.PushConstantRange) (gfx.Handle, error) {
	l := &pipelineLayout{sets: sets, push: push}
	d.add(l, "pipeline layout")
	return l, nil
}

// DestroyPipelineLayout implements interface
func (d *Device) DestroyPipelineLayout(handle gfx.Handle) {
	d.remove(handle, "pipeline layout")
}

// CreateGraphicsPipeline implements interface
func (d *Device) CreateGraphicsPipeline(info gfx.GraphicsPipelineInfo) (gfx.Handle, error) {
	colors := len(info.ColorFormats)
	if info.RenderPass != nil {
		rp := info.RenderPass.(*renderPass)
		if int(info.Subpass) >= len(rp.desc.Subpasses) {
			return nil, errors.Newf("soft: subpass %d does not exist", info.Subpass)
		}
		colors = len(rp.desc.Subpasses[info.Subpass].ColorAttachments)
	}
	if len(info.State.Blend.Attachments) != colors {
		return nil, errors.Newf("soft: %d blend attachments for %d color attachments",
			len(info.State.Blend.Attachments), colors)
	}
	for _, s := range info.Stages {
		if _, ok := d.live[s.Module]; !ok {
			return nil, errors.New("soft: pipeline stage uses a destroyed shader module")
		}
	}
	p := &pipeline{layout: info.Layout.(*pipelineLayout), graphics: &info}
	d.add(p, "pipeline")
	return p, nil
}

// CreateComputePipeline implements interface
func (d *Device) CreateComputePipeline(layout gfx.Handle, stage gfx.NativeShaderStage) (gfx.Handle, error) {
	p := &pipeline{layout: layout.(*pipelineLayout), compute: &stage}
	d.add(p, "pipeline")
	return p, nil
}

// DestroyPipeline implements interface
func (d *Device) DestroyPipeline(handle gfx.Handle) {
	d.remove(handle, "pipeline")
}

// PipelineState returns the state a graphics pipeline was created with.
func PipelineState(handle gfx.Handle) gfx.GraphicsPipelineInfo {
	return *handle.(*pipeline).graphics
}

// CreateRenderPass implements interface
func (d *Device) CreateRenderPass(desc gfx.RenderPassDesc) (gfx.Handle, error) {
	rp := &renderPass{desc: desc}
	d.add(rp, "render pass")
	return rp, nil
}

// DestroyRenderPass implements interface
func (d *Device) DestroyRenderPass(handle gfx.Handle) {
	d.remove(handle, "render pass")
}

// CreateFramebuffer implements interface
func (d *Device) CreateFramebuffer(pass gfx.Handle, views []gfx.Handle, extent gfx.Extent2D, layers uint32) (gfx.Handle, error) {
	rp := pass.(*renderPass)
	if len(views) != len(rp.desc.Attachments) {
		return nil, errors.Newf("soft: %d views for %d attachments", len(views), len(rp.desc.Attachments))
	}
	fb := &framebuffer{pass: rp, extent: extent}
	for idx, h := range views {
		v := h.(*view)
		if v.info.Format != rp.desc.Attachments[idx].Format {
			return nil, errors.Newf("soft: attachment %d format %d, view format %d",
				idx, rp.desc.Attachments[idx].Format, v.info.Format)
		}
		fb.views = append(fb.views, v)
	}
	d.add(fb, "framebuffer")
	return fb, nil
}

// DestroyFramebuffer implements interface
func (d *Device) DestroyFramebuffer(handle gfx.Handle) {
	d.remove(handle, "framebuffer")
}

// Queue implements interface
func (d *Device) Queue(family, index uint32) gfx.Handle {
	key := [2]uint32{family, index}
	if q, ok := d.queues[key]; ok {
		return q
	}
	q := &queue{family: family, index: index}
	d.queues[key] = q
	return q
}

// CreateCommandPool implements interface
func (d *Device) CreateCommandPool(family uint32) (gfx.Handle, error) {
	p := &commandPool{family: family}
	d.add(p, "command pool")
	return p, nil
}

// DestroyCommandPool implements interface. Buffers allocated from
// the pool are freed with it.
func (d *Device) DestroyCommandPool(handle gfx.Handle) {
	for obj := range d.live {
		if cb, ok := obj.(*commandBuffer); ok && cb.pool == handle {
			delete(d.live, obj)
		}
	}
	d.remove(handle, "command pool")
}

// AllocateCommandBuffer implements interface
func (d *Device) AllocateCommandBuffer(poolHandle gfx.Handle, level gfx.CommandBufferLevel) (gfx.NativeCommandBuffer, error) {
	cb := &commandBuffer{
		device: d,
		pool:   poolHandle.(*commandPool),
		level:  level,
	}
	d.add(cb, "command buffer")
	return cb, nil
}

// FreeCommandBuffer implements interface
func (d *Device) FreeCommandBuffer(pool gfx.Handle, buffer gfx.NativeCommandBuffer) {
	d.remove(buffer, "command buffer")
}

// QueueSubmit implements interface. Submissions run in order when the
// device is not stalled.
func (d *Device) QueueSubmit(queue gfx.Handle, buffers []gfx.NativeCommandBuffer, fenceHandle gfx.Handle) error {
	s := submission{}
	for _, b := range buffers {
		cb := b.(*commandBuffer)
		if !cb.ended {
			return errors.New("soft: submitted command buffer is not ended")
		}
		s.buffers = append(s.buffers, cb)
	}
	if fenceHandle != nil {
		s.fence = fenceHandle.(*fence)
		if s.fence.signaled {
			d.invalid("submitting with a fence that is already signaled")
		}
	}
	d.stats.Submissions++
	d.pending = append(d.pending, s)
	if !d.stalled {
		d.flush()
	}
	return nil
}

func (d *Device) flush() {
	pending := d.pending
	d.pending = nil
	for _, s := range pending {
		for _, cb := range s.buffers {
			cb.execute()
		}
		if s.fence != nil {
			s.fence.signaled = true
		}
	}
}

// QueueWaitIdle implements interface. It lifts a stall.
func (d *Device) QueueWaitIdle(queue gfx.Handle) error {
	d.stalled = false
	d.flush()
	return nil
}

// WaitIdle implements interface. It lifts a stall.
func (d *Device) WaitIdle() error {
	d.stalled = false
	d.flush()
	return nil
}

// SurfaceCapabilities implements interface
func (d *Device) SurfaceCapabilities() (gfx.SurfaceCapabilities, error) {
	if d.backend.cfg.Surface == nil {
		return gfx.SurfaceCapabilities{}, errors.New("soft: backend has no surface")
	}
	return d.backend.cfg.Surface.capabilities(), nil
}

// CreateSwapchain implements interface
func (d *Device) CreateSwapchain(info gfx.SwapchainInfo) (gfx.Handle, error) {
	if d.backend.cfg.Surface == nil {
		return nil, errors.New("soft: backend has no surface")
	}
	if info.Extent.Zero() {
		return nil, errors.New("soft: swapchain of zero size")
	}
	if info.Old != nil {
		old := info.Old.(*swapchain)
		if old.retired {
			d.invalid("swapchain replaces an already retired swapchain")
		}
		old.retired = true
	}
	sc := &swapchain{info: info}
	for idx := uint32(0); idx < info.MinImageCount; idx++ {
		img := newImage(gfx.ImageInfo{
			Extent:      gfx.Extent3D{Width: info.Extent.Width, Height: info.Extent.Height, Depth: 1},
			Format:      info.Format.Format,
			MipLevels:   1,
			ArrayLayers: 1,
			Usage:       info.Usage,
		})
		img.data = make([]byte, img.size)
		sc.images = append(sc.images, img)
	}
	d.stats.Swapchains++
	d.add(sc, "swapchain")
	return sc, nil
}

// DestroySwapchain implements interface
func (d *Device) DestroySwapchain(handle gfx.Handle) {
	d.remove(handle, "swapchain")
}

// SwapchainImages implements interface
func (d *Device) SwapchainImages(handle gfx.Handle) ([]gfx.Handle, error) {
	sc := handle.(*swapchain)
	images := make([]gfx.Handle, len(sc.images))
	for idx, img := range sc.images {
		images[idx] = img
	}
	return images, nil
}

// AcquireNextImage implements interface. Images are handed out round
// robin and are immediately available.
func (d *Device) AcquireNextImage(handle gfx.Handle, timeout time.Duration, fenceHandle gfx.Handle) (uint32, gfx.Result) {
	sc := handle.(*swapchain)
	surface := d.backend.cfg.Surface
	d.stats.Acquires++

	res, forced := surface.nextAcquire()
	switch {
	case forced && res != gfx.Success && res != gfx.Suboptimal:
		return 0, res
	case sc.retired || !surface.matches(sc.info.Extent):
		return 0, gfx.ErrorOutOfDate
	}

	index := sc.next
	sc.next = (sc.next + 1) % uint32(len(sc.images))
	if fenceHandle != nil {
		fenceHandle.(*fence).signaled = true
	}
	return index, res
}

// QueuePresent implements interface
func (d *Device) QueuePresent(queue, handle gfx.Handle, index uint32) gfx.Result {
	sc := handle.(*swapchain)
	surface := d.backend.cfg.Surface
	if int(index) >= len(sc.images) {
		d.invalid("presenting image %d of %d", index, len(sc.images))
		return gfx.ErrorSurfaceLost
	}
	if res, forced := surface.nextPresent(); forced && res != gfx.Success {
		return res
	}
	if sc.retired || !surface.matches(sc.info.Extent) {
		return gfx.ErrorOutOfDate
	}
	d.stats.Presents++
	surface.show(sc.images[index])
	return gfx.Success
}

// Destroy implements interface
func (d *Device) Destroy() {
	if len(d.live) > 0 {
		d.backend.report(gfx.SeverityWarning, "device destroyed with %d live objects", len(d.live))
	}
	d.destroyed = true
}
