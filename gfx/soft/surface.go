package soft

import (
	"sync"

	"github.com/koru3d/koru/gfx"
)

// NewSurface returns a surface with a client area of width by height.
func NewSurface(width, height uint32) *Surface {
	return &Surface{
		width:     width,
		height:    height,
		minImages: 2,
		maxImages: 8,
	}
}

// Surface simulates a window and its presentation engine. It
// implements gfx.Window, so the same value sizes the swapchain and
// receives its images.
type Surface struct {
	mu sync.Mutex

	width, height uint32
	minImages     uint32
	maxImages     uint32

	acquire []gfx.Result
	present []gfx.Result

	presented int
	frame     []byte
	format    gfx.Format
	extent    gfx.Extent2D
}

// ClientSize implements gfx.Window
func (s *Surface) ClientSize() (uint32, uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

// SetSize resizes the client area. A zero size simulates a
// minimized window.
func (s *Surface) SetSize(width, height uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width, s.height = width, height
}

// ForceAcquire makes the next acquisitions return results, in order,
// before normal behavior resumes.
func (s *Surface) ForceAcquire(results ...gfx.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acquire = append(s.acquire, results...)
}

// ForcePresent makes the next presentations return results, in order.
func (s *Surface) ForcePresent(results ...gfx.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.present = append(s.present, results...)
}

// Presented returns the number of images presented.
func (s *Surface) Presented() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presented
}

// LastFrame returns a copy of the texels of the image presented last,
// with its format and size.
func (s *Surface) LastFrame() ([]byte, gfx.Format, gfx.Extent2D) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.frame...), s.format, s.extent
}

func (s *Surface) capabilities() gfx.SurfaceCapabilities {
	s.mu.Lock()
	defer s.mu.Unlock()
	extent := gfx.Extent2D{Width: s.width, Height: s.height}
	return gfx.SurfaceCapabilities{
		MinImageCount: s.minImages,
		MaxImageCount: s.maxImages,
		CurrentExtent: extent,
		MinExtent:     extent,
		MaxExtent:     extent,
		Formats: []gfx.SurfaceFormat{
			{Format: gfx.FormatB8G8R8A8Unorm, ColorSpace: gfx.ColorSpaceSrgbNonlinear},
			{Format: gfx.FormatB8G8R8A8Srgb, ColorSpace: gfx.ColorSpaceSrgbNonlinear},
		},
		PresentModes: []gfx.PresentMode{gfx.PresentFifo, gfx.PresentMailbox},
	}
}

func (s *Surface) matches(extent gfx.Extent2D) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width == extent.Width && s.height == extent.Height
}

func (s *Surface) nextAcquire() (gfx.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.acquire) == 0 {
		return gfx.Success, false
	}
	res := s.acquire[0]
	s.acquire = s.acquire[1:]
	return res, true
}

func (s *Surface) nextPresent() (gfx.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.present) == 0 {
		return gfx.Success, false
	}
	res := s.present[0]
	s.present = s.present[1:]
	return res, true
}

func (s *Surface) show(img *image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presented++
	s.frame = append(s.frame[:0], img.subresource(0, 0)...)
	s.format = img.info.Format
	s.extent = gfx.Extent2D{Width: img.info.Extent.Width, Height: img.info.Extent.Height}
}
