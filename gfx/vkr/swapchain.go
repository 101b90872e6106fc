package vkr

import (
	"time"

	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/koru3d/koru/gfx"
)

var errHeadless = errors.New("vkr: backend was created without a window surface")

// SurfaceCapabilities implements interface
func (d *Device) SurfaceCapabilities() (gfx.SurfaceCapabilities, error) {
	surface := d.backend.surface
	if surface == nil {
		return gfx.SurfaceCapabilities{}, errHeadless
	}

	var caps vk.SurfaceCapabilities
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceCapabilities(d.physical, surface, &caps)); err != nil {
		return gfx.SurfaceCapabilities{}, errors.Wrap(err, "vk.GetPhysicalDeviceSurfaceCapabilities()")
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()

	var numFormats uint32
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceFormats(d.physical, surface, &numFormats, nil)); err != nil {
		return gfx.SurfaceCapabilities{}, errors.Wrap(err, "vk.GetPhysicalDeviceSurfaceFormats()")
	}
	formats := make([]vk.SurfaceFormat, numFormats)
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceFormats(d.physical, surface, &numFormats, formats)); err != nil {
		return gfx.SurfaceCapabilities{}, errors.Wrap(err, "vk.GetPhysicalDeviceSurfaceFormats()")
	}

	var numModes uint32
	if err := vk.Error(vk.GetPhysicalDeviceSurfacePresentModes(d.physical, surface, &numModes, nil)); err != nil {
		return gfx.SurfaceCapabilities{}, errors.Wrap(err, "vk.GetPhysicalDeviceSurfacePresentModes()")
	}
	modes := make([]vk.PresentMode, numModes)
	if err := vk.Error(vk.GetPhysicalDeviceSurfacePresentModes(d.physical, surface, &numModes, modes)); err != nil {
		return gfx.SurfaceCapabilities{}, errors.Wrap(err, "vk.GetPhysicalDeviceSurfacePresentModes()")
	}

	out := gfx.SurfaceCapabilities{
		MinImageCount: caps.MinImageCount,
		MaxImageCount: caps.MaxImageCount,
		CurrentExtent: gfx.Extent2D{Width: caps.CurrentExtent.Width, Height: caps.CurrentExtent.Height},
		MinExtent:     gfx.Extent2D{Width: caps.MinImageExtent.Width, Height: caps.MinImageExtent.Height},
		MaxExtent:     gfx.Extent2D{Width: caps.MaxImageExtent.Width, Height: caps.MaxImageExtent.Height},
	}
	for _, f := range formats[:numFormats] {
		f.Deref()
		out.Formats = append(out.Formats, gfx.SurfaceFormat{
			Format:     gfx.Format(f.Format),
			ColorSpace: gfx.ColorSpace(f.ColorSpace),
		})
	}
	for _, m := range modes[:numModes] {
		out.PresentModes = append(out.PresentModes, gfx.PresentMode(m))
	}
	return out, nil
}

func (d *Device) compositeAlpha() vk.CompositeAlphaFlagBits {
	var caps vk.SurfaceCapabilities
	vk.GetPhysicalDeviceSurfaceCapabilities(d.physical, d.backend.surface, &caps)
	caps.Deref()

	for _, flag := range []vk.CompositeAlphaFlagBits{
		vk.CompositeAlphaOpaqueBit,
		vk.CompositeAlphaPreMultipliedBit,
		vk.CompositeAlphaPostMultipliedBit,
		vk.CompositeAlphaInheritBit,
	} {
		if caps.SupportedCompositeAlpha&vk.CompositeAlphaFlags(flag) != 0 {
			return flag
		}
	}
	return vk.CompositeAlphaOpaqueBit
}

// CreateSwapchain implements interface
func (d *Device) CreateSwapchain(info gfx.SwapchainInfo) (gfx.Handle, error) {
	if d.backend.surface == nil {
		return nil, errHeadless
	}
	mode, families := sharing(info.QueueFamilies)
	scci := vk.SwapchainCreateInfo{
		SType:                 vk.StructureTypeSwapchainCreateInfo,
		Surface:               d.backend.surface,
		MinImageCount:         info.MinImageCount,
		ImageFormat:           vk.Format(info.Format.Format),
		ImageColorSpace:       vk.ColorSpace(info.Format.ColorSpace),
		ImageExtent:           extent2D(info.Extent),
		ImageArrayLayers:      1,
		ImageUsage:            vk.ImageUsageFlags(info.Usage),
		ImageSharingMode:      mode,
		QueueFamilyIndexCount: uint32(len(families)),
		PQueueFamilyIndices:   families,
		PreTransform:          vk.SurfaceTransformIdentityBit,
		CompositeAlpha:        d.compositeAlpha(),
		PresentMode:           vk.PresentMode(info.PresentMode),
		Clipped:               vk.True,
		OldSwapchain:          handle[vk.Swapchain](info.Old),
	}
	var swapchain vk.Swapchain
	if err := vk.Error(vk.CreateSwapchain(d.device, &scci, nil, &swapchain)); err != nil {
		return nil, errors.Wrap(err, "vk.CreateSwapchain()")
	}
	return swapchain, nil
}

// DestroySwapchain implements interface
func (d *Device) DestroySwapchain(swapchain gfx.Handle) {
	vk.DestroySwapchain(d.device, handle[vk.Swapchain](swapchain), nil)
}

// SwapchainImages implements interface
func (d *Device) SwapchainImages(swapchain gfx.Handle) ([]gfx.Handle, error) {
	native := handle[vk.Swapchain](swapchain)
	var count uint32
	if err := vk.Error(vk.GetSwapchainImages(d.device, native, &count, nil)); err != nil {
		return nil, errors.Wrap(err, "vk.GetSwapchainImages()")
	}
	images := make([]vk.Image, count)
	if err := vk.Error(vk.GetSwapchainImages(d.device, native, &count, images)); err != nil {
		return nil, errors.Wrap(err, "vk.GetSwapchainImages()")
	}
	out := make([]gfx.Handle, count)
	for i := range out {
		out[i] = images[i]
	}
	return out, nil
}

// AcquireNextImage implements interface. Acquisition signals fence,
// no semaphores are used.
func (d *Device) AcquireNextImage(swapchain gfx.Handle, timeout time.Duration, fence gfx.Handle) (uint32, gfx.Result) {
	var index uint32
	res := vk.AcquireNextImage(d.device, handle[vk.Swapchain](swapchain), timeoutNanos(timeout),
		vk.Semaphore(nil), handle[vk.Fence](fence), &index)
	return index, gfx.Result(res)
}

// QueuePresent implements interface
func (d *Device) QueuePresent(queue, swapchain gfx.Handle, index uint32) gfx.Result {
	info := vk.PresentInfo{
		SType:          vk.StructureTypePresentInfo,
		SwapchainCount: 1,
		PSwapchains:    []vk.Swapchain{handle[vk.Swapchain](swapchain)},
		PImageIndices:  []uint32{index},
	}
	return gfx.Result(vk.QueuePresent(handle[vk.Queue](queue), &info))
}
