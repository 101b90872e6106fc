package vkr

import (
	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"
	"github.com/veandco/go-sdl2/sdl"
)

// Window adapts an SDL window created with sdl.WINDOW_VULKAN to the
// backend and to gfx.Window.
type Window struct {
	*sdl.Window
}

// ClientSize implements gfx.Window. A minimized window has no area.
func (w Window) ClientSize() (uint32, uint32) {
	if w.GetFlags()&sdl.WINDOW_MINIMIZED != 0 {
		return 0, 0
	}
	width, height := w.VulkanGetDrawableSize()
	if width < 0 || height < 0 {
		return 0, 0
	}
	return uint32(width), uint32(height)
}

// Configure fills in the loader, the instance extensions SDL needs
// and the surface factory of cfg. The Vulkan library must have been
// loaded with sdl.VulkanLoadLibrary.
func (w Window) Configure(cfg Config) Config {
	cfg.ProcAddr = sdl.VulkanGetVkGetInstanceProcAddr()
	cfg.Extensions = append(cfg.Extensions, w.VulkanGetInstanceExtensions()...)
	cfg.CreateSurface = func(instance vk.Instance) (vk.Surface, error) {
		ptr, err := w.VulkanCreateSurface(instance)
		if err != nil {
			return nil, errors.Wrap(err, "sdl.VulkanCreateSurface()")
		}
		return vk.SurfaceFromPointer(uintptr(ptr)), nil
	}
	return cfg
}
