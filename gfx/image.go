package gfx

import "github.com/cockroachdb/errors"

// ImageDesc describes an image to create.
type ImageDesc struct {
	Width, Height uint32

	// Depth defaults to 1.
	Depth     uint32
	Format    Format
	MipLevels uint32
	Layers    uint32
	Usage     ImageUsage
	Cube      bool
}

func (desc ImageDesc) normalized() ImageDesc {
	if desc.Depth == 0 {
		desc.Depth = 1
	}
	if desc.MipLevels == 0 {
		desc.MipLevels = 1
	}
	if desc.Layers == 0 {
		desc.Layers = 1
	}
	return desc
}

// MipExtent returns the size of mip level of an image of the given size.
func MipExtent(width, height, level uint32) Extent2D {
	w, h := width>>level, height>>level
	if w == 0 {
		w = 1
	}
	if h == 0 {
		h = 1
	}
	return Extent2D{Width: w, Height: h}
}

// CreateImage creates an image backed by device local memory.
// Failing to allocate is fatal.
func (d *Device) CreateImage(desc ImageDesc) *Image {
	desc = desc.normalized()
	if desc.Width == 0 || desc.Height == 0 {
		d.assertf("gfx: image of zero size %dx%d", desc.Width, desc.Height)
	}
	if desc.Cube && desc.Layers%6 != 0 {
		d.assertf("gfx: cubemap with %d layers", desc.Layers)
	}

	handle, req, err := d.native.CreateImage(ImageInfo{
		Extent:        Extent3D{Width: desc.Width, Height: desc.Height, Depth: desc.Depth},
		Format:        desc.Format,
		MipLevels:     desc.MipLevels,
		ArrayLayers:   desc.Layers,
		Usage:         desc.Usage,
		Cube:          desc.Cube,
		QueueFamilies: d.queueFamilies(),
	})
	d.check(err, "gfx.CreateImage()")

	memory, err := d.allocator.Malloc(req, MemoryDeviceLocal)
	if err != nil {
		d.native.DestroyImage(handle)
		d.fatal(errors.Wrapf(err, "gfx: image %dx%d", desc.Width, desc.Height))
	}
	if err := d.native.BindImageMemory(handle, memory.handle, 0); err != nil {
		d.fatal(errors.Wrap(err, "gfx.BindImageMemory()"))
	}

	img := &Image{
		handle: handle,
		memory: memory,
		desc:   desc,
	}
	img.init(d, "image")
	return img
}

// CreateCubemap creates a six layer cube compatible image.
func (d *Device) CreateCubemap(size uint32, usage ImageUsage, format Format, mipLevels uint32) *Image {
	return d.CreateImage(ImageDesc{
		Width:     size,
		Height:    size,
		Format:    format,
		MipLevels: mipLevels,
		Layers:    6,
		Usage:     usage,
		Cube:      true,
	})
}

// Image is a texel array in device memory.
type Image struct {
	resource

	handle Handle
	memory *Memory
	desc   ImageDesc

	// Presentable images belong to a swapchain generation.
	swapchain  *Swapchain
	generation uint64
}

// Extent returns the size of mip level 0.
func (i *Image) Extent() Extent3D {
	return Extent3D{Width: i.desc.Width, Height: i.desc.Height, Depth: i.desc.Depth}
}

// Format returns the texel format.
func (i *Image) Format() Format {
	return i.desc.Format
}

// MipLevels returns the number of mip levels.
func (i *Image) MipLevels() uint32 {
	return i.desc.MipLevels
}

// Layers returns the number of array layers.
func (i *Image) Layers() uint32 {
	return i.desc.Layers
}

// Usage returns the usage flags the image was created with.
func (i *Image) Usage() ImageUsage {
	return i.desc.Usage
}

// Cube reports whether the image can be viewed as a cubemap.
func (i *Image) Cube() bool {
	return i.desc.Cube
}

// Native returns the driver handle.
func (i *Image) Native() Handle {
	return i.handle
}

// Presentable reports whether the image belongs to a swapchain.
func (i *Image) Presentable() bool {
	return i.swapchain != nil
}

// Stale reports whether the image belonged to a swapchain that has
// since been recreated. Stale images must be fetched again.
func (i *Image) Stale() bool {
	return i.swapchain != nil && i.swapchain.generation != i.generation
}

// Release implements interface. Presentable images are owned by their
// swapchain and cannot be released individually.
func (i *Image) Release() {
	if i.swapchain != nil {
		i.device.assertf("gfx: releasing a swapchain image")
	}
	if !i.drop() {
		return
	}
	i.device.native.DestroyImage(i.handle)
	i.memory.free()
	i.finish()
}

// ImageViewDesc selects how an image is viewed. The zero value views
// every mip and layer with the image's format.
type ImageViewDesc struct {
	Type   ImageViewType
	Format Format
	Range  SubresourceRange
}

// CreateImageView creates a view of img. The view holds a reference
// to the image.
func (d *Device) CreateImageView(img *Image, desc ImageViewDesc) *ImageView {
	if desc.Format == FormatUndefined {
		desc.Format = img.desc.Format
	}
	if desc.Range.Aspect == 0 {
		desc.Range.Aspect = desc.Format.Aspect()
	}
	if desc.Range.MipCount == 0 {
		desc.Range.MipCount = img.desc.MipLevels - desc.Range.BaseMip
	}
	if desc.Range.LayerCount == 0 {
		desc.Range.LayerCount = img.desc.Layers - desc.Range.BaseLayer
	}
	if desc.Type == ViewType1D && img.desc.Height > 1 {
		switch {
		case img.desc.Cube && desc.Range.LayerCount == 6:
			desc.Type = ViewTypeCube
		case desc.Range.LayerCount > 1:
			desc.Type = ViewType2DArray
		default:
			desc.Type = ViewType2D
		}
	}

	handle, err := d.native.CreateImageView(ImageViewInfo{
		Image:  img.handle,
		Type:   desc.Type,
		Format: desc.Format,
		Range:  desc.Range,
	})
	d.check(err, "gfx.CreateImageView()")

	if img.swapchain == nil {
		img.Retain()
	}
	v := &ImageView{
		handle: handle,
		image:  img,
		desc:   desc,
	}
	v.init(d, "image view")
	return v
}

// ImageView is a typed view into an Image.
type ImageView struct {
	resource

	handle Handle
	image  *Image
	desc   ImageViewDesc
}

// Image returns the viewed image.
func (v *ImageView) Image() *Image {
	return v.image
}

// Format returns the format the view interprets texels as.
func (v *ImageView) Format() Format {
	return v.desc.Format
}

// Range returns the viewed subresources.
func (v *ImageView) Range() SubresourceRange {
	return v.desc.Range
}

// Native returns the driver handle.
func (v *ImageView) Native() Handle {
	return v.handle
}

func (v *ImageView) used(q *Queue, serial uint64) {
	v.resource.used(q, serial)
	v.image.used(q, serial)
}

// Release implements interface. Views of swapchain images keep the
// native chain alive until the last of them is destroyed.
func (v *ImageView) Release() {
	if !v.drop() {
		return
	}
	v.device.native.DestroyImageView(v.handle)
	if sc := v.image.swapchain; sc != nil {
		sc.viewDestroyed(v.image.generation)
	} else {
		v.image.Release()
	}
	v.finish()
}

// SamplerDesc describes texture sampling state.
type SamplerDesc struct {
	MagFilter     Filter
	MinFilter     Filter
	MipmapMode    MipmapMode
	AddressU      AddressMode
	AddressV      AddressMode
	AddressW      AddressMode
	MaxAnisotropy float32
	MinLod        float32
	MaxLod        float32
	CompareEnable bool
	CompareOp     CompareOp
}

// DefaultSampler is trilinear, repeating and anisotropic.
var DefaultSampler = SamplerDesc{
	MagFilter:     FilterLinear,
	MinFilter:     FilterLinear,
	MipmapMode:    MipmapLinear,
	AddressU:      AddressRepeat,
	AddressV:      AddressRepeat,
	AddressW:      AddressRepeat,
	MaxAnisotropy: 16,
	MaxLod:        16,
	CompareOp:     CompareAlways,
}

// CreateSampler creates a sampler.
func (d *Device) CreateSampler(desc SamplerDesc) *Sampler {
	handle, err := d.native.CreateSampler(desc)
	d.check(err, "gfx.CreateSampler()")

	s := &Sampler{
		handle: handle,
		desc:   desc,
	}
	s.init(d, "sampler")
	return s
}

// Sampler is texture sampling state.
type Sampler struct {
	resource

	handle Handle
	desc   SamplerDesc
}

// Desc returns the state the sampler was created with.
func (s *Sampler) Desc() SamplerDesc {
	return s.desc
}

// Native returns the driver handle.
func (s *Sampler) Native() Handle {
	return s.handle
}

// Release implements interface
func (s *Sampler) Release() {
	if !s.drop() {
		return
	}
	s.device.native.DestroySampler(s.handle)
	s.finish()
}
