// Package gfx is the GPU resource and rendering device layer.
//
// A Device is the single factory and owner of every GPU object. Objects
// are reference counted and hold a reference to their Device, so the
// native device is torn down only after its last child is released.
// The layer performs no automatic barrier insertion: ordering and
// visibility between commands are specified by the caller.
//
// Native API access goes through a Backend, which lets the same layer
// drive Vulkan (package vkr) or the host memory driver (package soft).
package gfx

// Releasable defines any memory-occupying item that can be freed.
type Releasable interface {

	// Release drops one reference to the implementing structure,
	// destroying it once no references remain.
	Release()
}

// Window is the part of a platform window the swapchain needs.
type Window interface {

	// ClientSize returns the drawable area in pixels. It is (0, 0)
	// while the window is minimized.
	ClientSize() (width, height uint32)
}
