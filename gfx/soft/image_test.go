package soft

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/koru3d/koru/gfx"
)

func TestEncodeClear(t *testing.T) {
	c := qt.New(t)
	red := gfx.ClearColor(1, 0.5, 0, 1)

	c.Assert(encodeClear(gfx.FormatR8G8B8A8Unorm, red), qt.DeepEquals, []byte{255, 128, 0, 255})
	c.Assert(encodeClear(gfx.FormatB8G8R8A8Unorm, red), qt.DeepEquals, []byte{0, 128, 255, 255})
	c.Assert(encodeClear(gfx.FormatR8Unorm, gfx.ClearColor(2, 0, 0, 0)), qt.DeepEquals, []byte{255})

	depth := encodeClear(gfx.FormatD32Sfloat, gfx.ClearDepth(0.25, 0))
	c.Assert(math.Float32frombits(binary.LittleEndian.Uint32(depth)), qt.Equals, float32(0.25))

	ds := encodeClear(gfx.FormatD24UnormS8Uint, gfx.ClearDepth(1, 7))
	c.Assert(binary.LittleEndian.Uint32(ds), qt.Equals, uint32(0x07FFFFFF))

	c.Assert(encodeClear(gfx.FormatUndefined, red), qt.IsNil)
}

func testImage(w, h, mips uint32, format gfx.Format) *image {
	img := newImage(gfx.ImageInfo{
		Extent:      gfx.Extent3D{Width: w, Height: h, Depth: 1},
		Format:      format,
		MipLevels:   mips,
		ArrayLayers: 2,
	})
	img.data = make([]byte, img.size)
	return img
}

func TestImageLayout(t *testing.T) {
	c := qt.New(t)
	img := testImage(8, 4, 3, gfx.FormatR8G8B8A8Unorm)

	c.Assert(img.mipSize(0), qt.Equals, 8*4*4)
	c.Assert(img.mipSize(1), qt.Equals, 4*2*4)
	c.Assert(img.mipSize(2), qt.Equals, 2*1*4)
	c.Assert(img.layerSize, qt.Equals, uint64(128+32+8))
	c.Assert(img.size, qt.Equals, 2*img.layerSize)

	sub := img.subresource(2, 1)
	c.Assert(sub, qt.HasLen, 8)
	sub[0] = 42
	c.Assert(img.data[img.layerSize+160], qt.Equals, byte(42))
}

func TestCopyRegion(t *testing.T) {
	c := qt.New(t)
	img := testImage(4, 4, 1, gfx.FormatR8Unorm)
	src := []byte{1, 2, 3, 4, 5, 6}

	ok := img.copyRegion(src, gfx.BufferImageCopy{
		BufferRowLength: 3,
		BaseLayer:       1,
		ImageOffset:     gfx.Offset3D{X: 1, Y: 2},
		ImageExtent:     gfx.Extent3D{Width: 2, Height: 2, Depth: 1},
	}, true)
	c.Assert(ok, qt.IsTrue)
	c.Assert(img.subresource(0, 1), qt.DeepEquals, []byte{
		0, 0, 0, 0,
		0, 0, 0, 0,
		0, 1, 2, 0,
		0, 4, 5, 0,
	})
	c.Assert(img.subresource(0, 0), qt.DeepEquals, make([]byte, 16))

	out := make([]byte, 4)
	ok = img.copyRegion(out, gfx.BufferImageCopy{
		BaseLayer:   1,
		ImageOffset: gfx.Offset3D{X: 1, Y: 2},
		ImageExtent: gfx.Extent3D{Width: 2, Height: 2, Depth: 1},
	}, false)
	c.Assert(ok, qt.IsTrue)
	c.Assert(out, qt.DeepEquals, []byte{1, 2, 4, 5})

	c.Assert(img.copyRegion(out, gfx.BufferImageCopy{
		ImageOffset: gfx.Offset3D{X: 3},
		ImageExtent: gfx.Extent3D{Width: 2, Height: 1, Depth: 1},
	}, false), qt.IsFalse)
	c.Assert(img.copyRegion(out, gfx.BufferImageCopy{
		ImageExtent: gfx.Extent3D{Width: 4, Height: 4, Depth: 1},
	}, false), qt.IsFalse)
}

func TestBlit(t *testing.T) {
	c := qt.New(t)

	c.Run("nearest upscale", func(c *qt.C) {
		src := testImage(2, 1, 1, gfx.FormatR8G8B8A8Unorm)
		dst := testImage(4, 2, 1, gfx.FormatR8G8B8A8Unorm)
		copy(src.subresource(0, 0), []byte{10, 20, 30, 255, 50, 60, 70, 255})

		ok := blit(src, dst, gfx.ImageBlit{
			SrcOffsets: [2]gfx.Offset3D{{}, {X: 2, Y: 1, Z: 1}},
			DstOffsets: [2]gfx.Offset3D{{}, {X: 4, Y: 2, Z: 1}},
		}, gfx.FilterNearest)
		c.Assert(ok, qt.IsTrue)
		row := []byte{10, 20, 30, 255, 10, 20, 30, 255, 50, 60, 70, 255, 50, 60, 70, 255}
		c.Assert(dst.subresource(0, 0), qt.DeepEquals, append(append([]byte{}, row...), row...))
	})

	c.Run("linear downscale of a flat image", func(c *qt.C) {
		src := testImage(4, 4, 2, gfx.FormatB8G8R8A8Unorm)
		copy(src.subresource(0, 0), bytes.Repeat([]byte{90, 80, 70, 255}, 16))

		ok := blit(src, src, gfx.ImageBlit{
			SrcOffsets: [2]gfx.Offset3D{{}, {X: 4, Y: 4, Z: 1}},
			DstMip:     1,
			DstOffsets: [2]gfx.Offset3D{{}, {X: 2, Y: 2, Z: 1}},
		}, gfx.FilterLinear)
		c.Assert(ok, qt.IsTrue)
		c.Assert(src.subresource(1, 0), qt.DeepEquals, bytes.Repeat([]byte{90, 80, 70, 255}, 4))
	})

	c.Run("single channel", func(c *qt.C) {
		src := testImage(2, 2, 1, gfx.FormatR8Unorm)
		dst := testImage(1, 1, 1, gfx.FormatR8Unorm)
		copy(src.subresource(0, 0), []byte{7, 8, 9, 10})
		ok := blit(src, dst, gfx.ImageBlit{
			SrcOffsets: [2]gfx.Offset3D{{}, {X: 2, Y: 2, Z: 1}},
			DstOffsets: [2]gfx.Offset3D{{}, {X: 1, Y: 1, Z: 1}},
		}, gfx.FilterLinear)
		c.Assert(ok, qt.IsTrue)
		c.Assert(dst.subresource(0, 0), qt.DeepEquals, []byte{7})
	})

	c.Run("format mismatch", func(c *qt.C) {
		src := testImage(2, 2, 1, gfx.FormatR8Unorm)
		dst := testImage(2, 2, 1, gfx.FormatR8G8B8A8Unorm)
		c.Assert(blit(src, dst, gfx.ImageBlit{}, gfx.FilterNearest), qt.IsFalse)
	})
}
