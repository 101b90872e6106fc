package soft

import (
	"encoding/binary"
	stdimage "image"
	"math"

	"golang.org/x/image/draw"

	"github.com/koru3d/koru/gfx"
)

// image stores layers one after another, each layer holding its mip
// levels from the largest down.
type image struct {
	info      gfx.ImageInfo
	bpp       int
	layerSize uint64
	size      uint64
	data      []byte
	layouts   []gfx.ImageLayout
}

func newImage(info gfx.ImageInfo) *image {
	if info.Extent.Depth == 0 {
		info.Extent.Depth = 1
	}
	img := &image{
		info:    info,
		bpp:     info.Format.BytesPerPixel(),
		layouts: make([]gfx.ImageLayout, info.MipLevels),
	}
	for level := uint32(0); level < info.MipLevels; level++ {
		img.layerSize += uint64(img.mipSize(level))
	}
	img.size = img.layerSize * uint64(info.ArrayLayers)
	return img
}

func (img *image) mipExtent(level uint32) gfx.Extent3D {
	e := gfx.MipExtent(img.info.Extent.Width, img.info.Extent.Height, level)
	depth := img.info.Extent.Depth >> level
	if depth == 0 {
		depth = 1
	}
	return gfx.Extent3D{Width: e.Width, Height: e.Height, Depth: depth}
}

func (img *image) mipSize(level uint32) int {
	e := img.mipExtent(level)
	return int(e.Width*e.Height*e.Depth) * img.bpp
}

func (img *image) subresource(level, layer uint32) []byte {
	offset := uint64(layer) * img.layerSize
	for l := uint32(0); l < level; l++ {
		offset += uint64(img.mipSize(l))
	}
	return img.data[offset : offset+uint64(img.mipSize(level))]
}

// copyRegion moves texels between a buffer and an image in either
// direction.
func (img *image) copyRegion(buf []byte, r gfx.BufferImageCopy, toImage bool) bool {
	rowLength, imageHeight := r.BufferRowLength, r.BufferImageHeight
	if rowLength == 0 {
		rowLength = r.ImageExtent.Width
	}
	if imageHeight == 0 {
		imageHeight = r.ImageExtent.Height
	}
	layers := r.LayerCount
	if layers == 0 {
		layers = 1
	}
	depth := r.ImageExtent.Depth
	if depth == 0 {
		depth = 1
	}
	mip := img.mipExtent(r.MipLevel)
	if r.MipLevel >= img.info.MipLevels || r.BaseLayer+layers > img.info.ArrayLayers ||
		uint32(r.ImageOffset.X)+r.ImageExtent.Width > mip.Width ||
		uint32(r.ImageOffset.Y)+r.ImageExtent.Height > mip.Height {
		return false
	}

	rowBytes := int(r.ImageExtent.Width) * img.bpp
	for layer := uint32(0); layer < layers; layer++ {
		sub := img.subresource(r.MipLevel, r.BaseLayer+layer)
		for z := uint32(0); z < depth; z++ {
			for y := uint32(0); y < r.ImageExtent.Height; y++ {
				src := int(r.BufferOffset) + ((int(layer)*int(depth)+int(z))*int(imageHeight)+int(y))*int(rowLength)*img.bpp
				dst := ((int(uint32(r.ImageOffset.Z)+z)*int(mip.Height)+int(uint32(r.ImageOffset.Y)+y))*int(mip.Width) +
					int(r.ImageOffset.X)) * img.bpp
				if src+rowBytes > len(buf) {
					return false
				}
				if toImage {
					copy(sub[dst:dst+rowBytes], buf[src:src+rowBytes])
				} else {
					copy(buf[src:src+rowBytes], sub[dst:dst+rowBytes])
				}
			}
		}
	}
	return true
}

// clear fills area of the subresources of v with value.
func (v *view) clear(area gfx.Rect2D, value gfx.ClearValue) {
	texel := encodeClear(v.info.Format, value)
	if texel == nil {
		return
	}
	img := v.img
	r := v.info.Range
	for layer := r.BaseLayer; layer < r.BaseLayer+r.LayerCount; layer++ {
		for level := r.BaseMip; level < r.BaseMip+r.MipCount; level++ {
			sub := img.subresource(level, layer)
			mip := img.mipExtent(level)
			x0, y0 := clampInt(int(area.Offset.X), 0, int(mip.Width)), clampInt(int(area.Offset.Y), 0, int(mip.Height))
			x1 := clampInt(int(area.Offset.X)+int(area.Extent.Width), 0, int(mip.Width))
			y1 := clampInt(int(area.Offset.Y)+int(area.Extent.Height), 0, int(mip.Height))
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					off := (y*int(mip.Width) + x) * img.bpp
					copy(sub[off:off+img.bpp], texel)
				}
			}
		}
	}
}

func encodeClear(f gfx.Format, value gfx.ClearValue) []byte {
	unorm := func(c float32) byte {
		return byte(math.Round(float64(clampFloat(c)) * 255))
	}
	c := value.Color
	switch f {
	case gfx.FormatR8G8B8A8Unorm, gfx.FormatR8G8B8A8Srgb:
		return []byte{unorm(c[0]), unorm(c[1]), unorm(c[2]), unorm(c[3])}
	case gfx.FormatB8G8R8A8Unorm, gfx.FormatB8G8R8A8Srgb:
		return []byte{unorm(c[2]), unorm(c[1]), unorm(c[0]), unorm(c[3])}
	case gfx.FormatR8Unorm:
		return []byte{unorm(c[0])}
	case gfx.FormatR32Sfloat, gfx.FormatR32G32B32A32Sfloat:
		out := make([]byte, f.BytesPerPixel())
		for idx := 0; idx < len(out)/4; idx++ {
			binary.LittleEndian.PutUint32(out[idx*4:], math.Float32bits(c[idx]))
		}
		return out
	case gfx.FormatD32Sfloat:
		out := make([]byte, 4)
		binary.LittleEndian.PutUint32(out, math.Float32bits(value.Depth))
		return out
	case gfx.FormatD16Unorm:
		out := make([]byte, 2)
		binary.LittleEndian.PutUint16(out, uint16(math.Round(float64(clampFloat(value.Depth))*0xFFFF)))
		return out
	case gfx.FormatD24UnormS8Uint:
		d := uint32(math.Round(float64(clampFloat(value.Depth)) * 0xFFFFFF))
		out := make([]byte, 4)
		binary.LittleEndian.PutUint32(out, d|value.Stencil<<24)
		return out
	}
	return nil
}

// rgba wraps mip level of layer of a four byte per texel image for
// use with x/image/draw. Channel order is preserved as stored.
func (img *image) rgba(level, layer uint32) *stdimage.RGBA {
	mip := img.mipExtent(level)
	return &stdimage.RGBA{
		Pix:    img.subresource(level, layer),
		Stride: int(mip.Width) * 4,
		Rect:   stdimage.Rect(0, 0, int(mip.Width), int(mip.Height)),
	}
}

func blitRect(offsets [2]gfx.Offset3D) stdimage.Rectangle {
	return stdimage.Rect(int(offsets[0].X), int(offsets[0].Y), int(offsets[1].X), int(offsets[1].Y))
}

// blit scales a region between images of the same format. Four byte
// formats are filtered with x/image/draw, others are sampled nearest.
func blit(src, dst *image, r gfx.ImageBlit, filter gfx.Filter) bool {
	if src.info.Format != dst.info.Format {
		return false
	}
	layers := r.LayerCount
	if layers == 0 {
		layers = 1
	}
	srcRect, dstRect := blitRect(r.SrcOffsets), blitRect(r.DstOffsets)
	if srcRect.Empty() || dstRect.Empty() {
		return true
	}
	for layer := r.BaseLayer; layer < r.BaseLayer+layers; layer++ {
		if src.bpp == 4 {
			var scaler draw.Scaler = draw.NearestNeighbor
			if filter == gfx.FilterLinear {
				scaler = draw.BiLinear
			}
			scaler.Scale(dst.rgba(r.DstMip, layer), dstRect, src.rgba(r.SrcMip, layer), srcRect, draw.Src, nil)
			continue
		}
		s, d := src.subresource(r.SrcMip, layer), dst.subresource(r.DstMip, layer)
		sw, dw := int(src.mipExtent(r.SrcMip).Width), int(dst.mipExtent(r.DstMip).Width)
		for y := dstRect.Min.Y; y < dstRect.Max.Y; y++ {
			sy := srcRect.Min.Y + (y-dstRect.Min.Y)*srcRect.Dy()/dstRect.Dy()
			for x := dstRect.Min.X; x < dstRect.Max.X; x++ {
				sx := srcRect.Min.X + (x-dstRect.Min.X)*srcRect.Dx()/dstRect.Dx()
				copy(d[(y*dw+x)*dst.bpp:(y*dw+x+1)*dst.bpp], s[(sy*sw+sx)*src.bpp:(sy*sw+sx+1)*src.bpp])
			}
		}
	}
	return true
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
