package gfx_test

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	qt "github.com/frankban/quicktest"

	"github.com/koru3d/koru/gfx"
	"github.com/koru3d/koru/gfx/soft"
)

func TestSwapchainAcquirePresent(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, soft.Config{}, false)
	defer f.device.Release()

	sc := f.device.CreateSwapchain(f.surface, 3)
	defer sc.Release()

	c.Assert(sc.Ready(), qt.IsTrue)
	c.Assert(sc.ImageCount(), qt.Equals, 3)
	c.Assert(sc.Extent(), qt.Equals, gfx.Extent2D{Width: 640, Height: 480})
	c.Assert(sc.Format(), qt.Equals, gfx.FormatB8G8R8A8Unorm)
	c.Assert(sc.Image(0).Presentable(), qt.IsTrue)

	fence := f.device.CreateFence(false)
	defer fence.Release()
	for frame := uint32(0); frame < 4; frame++ {
		index, ok := sc.AcquireImage(time.Second, fence)
		c.Assert(ok, qt.IsTrue)
		c.Assert(index, qt.Equals, frame%3)
		c.Assert(fence.Wait(time.Second), qt.IsTrue)
		fence.Reset()
		c.Assert(sc.Present(index), qt.IsFalse)
	}

	c.Assert(f.surface.Presented(), qt.Equals, 4)
	frame, format, extent := f.surface.LastFrame()
	c.Assert(frame, qt.HasLen, 640*480*4)
	c.Assert(format, qt.Equals, gfx.FormatB8G8R8A8Unorm)
	c.Assert(extent, qt.Equals, gfx.Extent2D{Width: 640, Height: 480})
}

func TestSwapchainResize(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, soft.Config{}, false)
	defer f.device.Release()

	sc := f.device.CreateSwapchain(f.surface, 2)
	defer sc.Release()
	before := sc.Image(0)
	c.Assert(sc.Generation(), qt.Equals, uint64(1))

	f.surface.SetSize(800, 600)
	_, ok := sc.AcquireImage(time.Second, nil)
	c.Assert(ok, qt.IsFalse)
	c.Assert(sc.Recreated(), qt.IsTrue)
	c.Assert(sc.Generation(), qt.Equals, uint64(2))
	c.Assert(sc.Extent(), qt.Equals, gfx.Extent2D{Width: 800, Height: 600})
	c.Assert(before.Stale(), qt.IsTrue)
	c.Assert(sc.Image(0).Stale(), qt.IsFalse)

	// Nothing retained the old views, so the old chain is gone.
	c.Assert(f.native.Live()["swapchain"], qt.Equals, 1)
	c.Assert(f.native.Stats().Swapchains, qt.Equals, 2)

	_, ok = sc.AcquireImage(time.Second, nil)
	c.Assert(ok, qt.IsTrue)
	c.Assert(sc.Recreated(), qt.IsFalse)
}

func TestSwapchainMinimized(t *testing.T) {
	c := qt.New(t)

	c.Run("during acquisition", func(c *qt.C) {
		f := newFixture(c, soft.Config{}, false)
		defer f.device.Release()
		sc := f.device.CreateSwapchain(f.surface, 2)
		defer sc.Release()

		f.surface.SetSize(0, 0)
		stats := f.native.Stats()
		_, ok := sc.AcquireImage(time.Second, nil)
		c.Assert(ok, qt.IsFalse)
		c.Assert(sc.Recreated(), qt.IsFalse)
		c.Assert(f.native.Stats(), qt.DeepEquals, stats)
		c.Assert(sc.Ready(), qt.IsTrue)
		c.Assert(sc.Generation(), qt.Equals, uint64(1))
	})

	c.Run("at creation", func(c *qt.C) {
		f := newFixture(c, soft.Config{Surface: soft.NewSurface(0, 0)}, false)
		defer f.device.Release()
		sc := f.device.CreateSwapchain(f.surface, 2)
		defer sc.Release()

		c.Assert(sc.Ready(), qt.IsFalse)
		c.Assert(sc.Extent().Zero(), qt.IsTrue)
		c.Assert(f.native.Live()["swapchain"], qt.Equals, 0)

		f.surface.SetSize(320, 200)
		_, ok := sc.AcquireImage(time.Second, nil)
		c.Assert(ok, qt.IsFalse)
		c.Assert(sc.Recreated(), qt.IsTrue)
		c.Assert(sc.Extent(), qt.Equals, gfx.Extent2D{Width: 320, Height: 200})
	})
}

func TestSwapchainAcquireResults(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, soft.Config{}, false)
	defer f.device.Release()
	sc := f.device.CreateSwapchain(f.surface, 2)
	defer sc.Release()
	fence := f.device.CreateFence(false)
	defer fence.Release()

	f.surface.ForceAcquire(gfx.Timeout)
	_, ok := sc.AcquireImage(0, fence)
	c.Assert(ok, qt.IsFalse)
	c.Assert(sc.Recreated(), qt.IsFalse)
	c.Assert(sc.Generation(), qt.Equals, uint64(1))

	f.surface.ForceAcquire(gfx.Suboptimal)
	_, ok = sc.AcquireImage(time.Second, fence)
	c.Assert(ok, qt.IsFalse)
	c.Assert(sc.Recreated(), qt.IsTrue)
	c.Assert(sc.Generation(), qt.Equals, uint64(2))
	c.Assert(fence.Signaled(), qt.IsFalse)

	f.surface.ForceAcquire(gfx.ErrorOutOfDate)
	_, ok = sc.AcquireImage(time.Second, nil)
	c.Assert(ok, qt.IsFalse)
	c.Assert(sc.Recreated(), qt.IsTrue)
	c.Assert(sc.Generation(), qt.Equals, uint64(3))

	f.surface.ForceAcquire(gfx.ErrorDeviceLost)
	err := expectFatal(c, func() { sc.AcquireImage(time.Second, nil) })
	c.Assert(errors.Is(err, gfx.ErrorDeviceLost), qt.IsTrue)
	c.Assert(errors.Is(err, gfx.ErrUnrecoverable), qt.IsTrue)
}

func TestSwapchainPresentOutOfDate(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, soft.Config{}, false)
	defer f.device.Release()
	sc := f.device.CreateSwapchain(f.surface, 2)
	defer sc.Release()

	index, ok := sc.AcquireImage(time.Second, nil)
	c.Assert(ok, qt.IsTrue)
	f.surface.ForcePresent(gfx.ErrorOutOfDate)
	c.Assert(sc.Present(index), qt.IsTrue)
	c.Assert(sc.Generation(), qt.Equals, uint64(2))
	c.Assert(f.surface.Presented(), qt.Equals, 0)

	err := expectFatal(c, func() { sc.Present(7) })
	c.Assert(errors.HasAssertionFailure(err), qt.IsTrue)
}

func TestRetainedViewKeepsChainAlive(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, soft.Config{}, false)
	defer f.device.Release()
	sc := f.device.CreateSwapchain(f.surface, 2)

	view := sc.ImageView(1)
	view.Retain()

	f.surface.SetSize(1024, 768)
	_, ok := sc.AcquireImage(time.Second, nil)
	c.Assert(ok, qt.IsFalse)
	c.Assert(sc.Recreated(), qt.IsTrue)
	c.Assert(view.Image().Stale(), qt.IsTrue)
	c.Assert(f.native.Live()["swapchain"], qt.Equals, 2)

	view.Release()
	c.Assert(f.native.Live()["swapchain"], qt.Equals, 1)

	sc.Release()
	c.Assert(f.native.Live()["swapchain"], qt.Equals, 0)
	c.Assert(f.native.Live()["image view"], qt.Equals, 0)
}
