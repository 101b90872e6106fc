package gfx

import (
	"math"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

// undefinedExtent is reported by surfaces whose size follows the swapchain.
const undefinedExtent = math.MaxUint32

// chain is one generation of native swapchain and its images. A
// replaced chain is destroyed once the last view of its images is.
type chain struct {
	handle     Handle
	generation uint64
	extent     Extent2D
	format     SurfaceFormat

	// window is the client area the chain was built for.
	window  Extent2D
	images  []*Image
	views   []*ImageView
	live    int
	retired bool
}

// CreateSwapchain creates a presentation chain of frameCount images
// sized to the window's client area. A minimized window leaves the
// chain uninitialized until the first acquisition with a visible area.
func (d *Device) CreateSwapchain(window Window, frameCount uint32) *Swapchain {
	s := &Swapchain{
		window:     window,
		frameCount: frameCount,
		chains:     map[uint64]*chain{},
	}
	s.init(d, "swapchain")
	s.build()
	return s
}

// Swapchain owns the presentable images of a window. Acquisition and
// presentation recreate it when the native chain no longer matches the
// window, after which Recreated reports true and every Image or
// ImageView fetched before is stale.
type Swapchain struct {
	resource

	window     Window
	frameCount uint32

	current    *chain
	chains     map[uint64]*chain
	generation uint64
	recreated  bool
}

// AcquireImage waits up to timeout for the next presentable image.
// On success the fence, when not nil, is signaled once the image can
// be written. No index is returned while the window is minimized, on
// timeout, or when the chain had to be recreated.
func (s *Swapchain) AcquireImage(timeout time.Duration, fence *Fence) (uint32, bool) {
	s.recreated = false
	extent, visible := s.clientExtent()
	if !visible {
		return 0, false
	}
	if s.current == nil || s.current.window != extent {
		s.recreate()
		return 0, false
	}

	var fenceHandle Handle
	if fence != nil {
		fenceHandle = fence.handle
	}
	index, res := s.device.native.AcquireNextImage(s.current.handle, timeout, fenceHandle)
	switch res {
	case Success:
		return index, true
	case Suboptimal:
		// The image was acquired and the fence will signal.
		if fence != nil {
			fence.Wait(forever)
			fence.Reset()
		}
		s.recreate()
		return 0, false
	case ErrorOutOfDate:
		s.recreate()
		return 0, false
	case Timeout, NotReady:
		return 0, false
	}
	s.device.fatal(errors.Wrap(res, "gfx.AcquireNextImage()"))
	return 0, false
}

// Present queues image index for display on the graphics queue and
// reports whether the chain was recreated.
func (s *Swapchain) Present(index uint32) bool {
	s.recreated = false
	if s.current == nil || int(index) >= len(s.current.images) {
		s.device.assertf("gfx: presenting image %d of an uninitialized or smaller swapchain", index)
	}
	res := s.device.native.QueuePresent(s.device.graphics.handle, s.current.handle, index)
	switch {
	case res == Success:
		return false
	case res.Stale():
		s.recreate()
		return s.recreated
	}
	s.device.fatal(errors.Wrap(res, "gfx.QueuePresent()"))
	return false
}

// Recreated reports whether the last AcquireImage or Present call
// replaced the image set.
func (s *Swapchain) Recreated() bool {
	return s.recreated
}

// Ready reports whether a native chain exists.
func (s *Swapchain) Ready() bool {
	return s.current != nil
}

// Extent returns the size of the images, zero before initialization.
func (s *Swapchain) Extent() Extent2D {
	if s.current == nil {
		return Extent2D{}
	}
	return s.current.extent
}

// Format returns the format of the images.
func (s *Swapchain) Format() Format {
	if s.current == nil {
		return FormatUndefined
	}
	return s.current.format.Format
}

// ImageCount returns the number of presentable images.
func (s *Swapchain) ImageCount() int {
	if s.current == nil {
		return 0
	}
	return len(s.current.images)
}

// Image returns presentable image idx of the current generation.
func (s *Swapchain) Image(idx int) *Image {
	return s.current.images[idx]
}

// ImageView returns the swapchain's view of image idx. Callers that
// keep the view beyond the current generation must Retain it.
func (s *Swapchain) ImageView(idx int) *ImageView {
	return s.current.views[idx]
}

// Generation increases every time the image set is replaced.
func (s *Swapchain) Generation() uint64 {
	return s.generation
}

// Native returns the driver handle of the current chain.
func (s *Swapchain) Native() Handle {
	if s.current == nil {
		return nil
	}
	return s.current.handle
}

func (s *Swapchain) clientExtent() (Extent2D, bool) {
	w, h := s.window.ClientSize()
	return Extent2D{Width: w, Height: h}, w != 0 && h != 0
}

// recreate replaces the image set. It does nothing while the window
// is minimized, leaving the previous chain in place.
func (s *Swapchain) recreate() {
	if _, visible := s.clientExtent(); !visible {
		return
	}
	s.device.WaitForIdle()
	if s.build() {
		s.recreated = true
	}
}

func (s *Swapchain) build() bool {
	window, visible := s.clientExtent()
	if !visible {
		s.device.log.Debug("window has no drawable area, swapchain creation skipped")
		return false
	}
	d := s.device
	caps, err := d.native.SurfaceCapabilities()
	d.check(err, "gfx.GetPhysicalDeviceSurfaceCapabilities()")

	extent := caps.CurrentExtent
	if extent.Width == undefinedExtent {
		extent = Extent2D{
			Width:  clamp(window.Width, caps.MinExtent.Width, caps.MaxExtent.Width),
			Height: clamp(window.Height, caps.MinExtent.Height, caps.MaxExtent.Height),
		}
	}
	if extent.Zero() {
		return false
	}

	count := s.frameCount
	if count < caps.MinImageCount {
		count = caps.MinImageCount
	}
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	format := chooseSurfaceFormat(caps.Formats)

	var old Handle
	if s.current != nil {
		old = s.current.handle
	}
	handle, err := d.native.CreateSwapchain(SwapchainInfo{
		MinImageCount: count,
		Format:        format,
		Extent:        extent,
		Usage:         ImageUsageColorAttachment | ImageUsageTransferDst,
		PresentMode:   PresentFifo,
		QueueFamilies: d.queueFamilies(),
		Old:           old,
	})
	d.check(err, "gfx.CreateSwapchain()")
	handles, err := d.native.SwapchainImages(handle)
	d.check(err, "gfx.GetSwapchainImages()")

	s.generation++
	next := &chain{
		handle:     handle,
		generation: s.generation,
		extent:     extent,
		format:     format,
		window:     window,
	}
	desc := ImageDesc{
		Width:  extent.Width,
		Height: extent.Height,
		Format: format.Format,
		Usage:  ImageUsageColorAttachment | ImageUsageTransferDst,
	}.normalized()
	for _, h := range handles {
		img := &Image{
			resource:   resource{device: d, kind: "swapchain image", refs: 1},
			handle:     h,
			desc:       desc,
			swapchain:  s,
			generation: next.generation,
		}
		next.images = append(next.images, img)
		next.views = append(next.views, d.CreateImageView(img, ImageViewDesc{}))
	}
	next.live = len(next.views)
	s.chains[next.generation] = next

	if s.current != nil {
		s.retire(s.current)
	}
	s.current = next

	d.log.WithFields(logrus.Fields{
		"width":      extent.Width,
		"height":     extent.Height,
		"images":     len(handles),
		"generation": next.generation,
	}).Debug("swapchain created")
	return true
}

// retire drops the swapchain's references to the views of c.
func (s *Swapchain) retire(c *chain) {
	c.retired = true
	views := c.views
	for _, v := range views {
		v.Release()
	}
	s.destroyIfUnused(c)
}

func (s *Swapchain) viewDestroyed(generation uint64) {
	c, ok := s.chains[generation]
	if !ok {
		return
	}
	c.live--
	s.destroyIfUnused(c)
}

func (s *Swapchain) destroyIfUnused(c *chain) {
	if !c.retired || c.live > 0 {
		return
	}
	if _, ok := s.chains[c.generation]; !ok {
		return
	}
	delete(s.chains, c.generation)
	s.device.native.DestroySwapchain(c.handle)
}

// Release implements interface. Chains still referenced through
// retained views are destroyed with their last view.
func (s *Swapchain) Release() {
	if !s.drop() {
		return
	}
	s.device.WaitForIdle()
	if s.current != nil {
		s.retire(s.current)
		s.current = nil
	}
	s.finish()
}

func chooseSurfaceFormat(formats []SurfaceFormat) SurfaceFormat {
	for _, f := range formats {
		if f.Format == FormatB8G8R8A8Unorm && f.ColorSpace == ColorSpaceSrgbNonlinear {
			return f
		}
	}
	if len(formats) == 0 || (len(formats) == 1 && formats[0].Format == FormatUndefined) {
		return SurfaceFormat{Format: FormatB8G8R8A8Unorm, ColorSpace: ColorSpaceSrgbNonlinear}
	}
	return formats[0]
}

func clamp(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if hi > 0 && v > hi {
		return hi
	}
	return v
}
