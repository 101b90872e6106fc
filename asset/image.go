package asset

import (
	"math/bits"

	"github.com/cockroachdb/errors"

	"github.com/koru3d/koru/gfx"
)

// PixelFormat is a channel presence mask.
type PixelFormat uint8

// Channel bits.
const (
	ChannelR PixelFormat = 1 << iota
	ChannelG
	ChannelB
	ChannelA
)

// The closed set of pixel formats.
const (
	FormatR    = ChannelR
	FormatRG   = ChannelR | ChannelG
	FormatRGB  = ChannelR | ChannelG | ChannelB
	FormatRGBA = ChannelR | ChannelG | ChannelB | ChannelA
)

// Valid reports whether f is one of R, RG, RGB or RGBA.
func (f PixelFormat) Valid() bool {
	switch f {
	case FormatR, FormatRG, FormatRGB, FormatRGBA:
		return true
	}
	return false
}

// Channels returns the channel count.
func (f PixelFormat) Channels() int {
	return bits.OnesCount8(uint8(f))
}

// Image is a pixel buffer with its mip chain, level 0 first.
type Image struct {
	Width, Height   uint16
	Format          PixelFormat
	BytesPerChannel uint8
	Mips            [][]byte
}

// Kind implements Payload.
func (*Image) Kind() Kind { return KindImage }

// BytesPerPixel of the image.
func (i *Image) BytesPerPixel() int {
	return i.Format.Channels() * int(i.BytesPerChannel)
}

// MipSize is the byte size of mip level for a w x h image.
func MipSize(w, h uint32, level, bytesPerPixel int) int {
	return int(max(w>>level, 1)) * int(max(h>>level, 1)) * bytesPerPixel
}

// MipOffset is the byte offset of mip level within the concatenated
// chain, the sum of the sizes of every smaller level index.
func MipOffset(w, h uint32, level, bytesPerPixel int) int {
	var offset int
	for m := 0; m < level; m++ {
		offset += MipSize(w, h, m, bytesPerPixel)
	}
	return offset
}

func (i *Image) validate() error {
	if err := i.checkLayout(); err != nil {
		return err
	}
	if len(i.Mips) == 0 || len(i.Mips) > 0xff {
		return errors.Wrapf(ErrUnsupported, "%d mip levels", len(i.Mips))
	}
	for m, data := range i.Mips {
		if want := MipSize(uint32(i.Width), uint32(i.Height), m, i.BytesPerPixel()); len(data) != want {
			return errors.Newf("asset: mip %d holds %d bytes, want %d", m, len(data), want)
		}
	}
	return nil
}

// checkLayout validates everything but the pixel data.
func (i *Image) checkLayout() error {
	if !i.Format.Valid() {
		return errors.Wrapf(ErrUnsupported, "pixel format %#x", uint8(i.Format))
	}
	switch i.BytesPerChannel {
	case 1, 2, 4:
	default:
		return errors.Wrapf(ErrUnsupported, "%d bytes per channel", i.BytesPerChannel)
	}
	if i.Width == 0 || i.Height == 0 {
		return errors.Wrap(ErrUnsupported, "empty image")
	}
	return nil
}

// GfxFormat maps the image to a texel format. Three channel images
// have no widely sampleable format and report false, see ExpandRGBA.
func (i *Image) GfxFormat() (gfx.Format, bool) {
	var table [4]gfx.Format
	switch i.BytesPerChannel {
	case 1:
		table = [4]gfx.Format{gfx.FormatR8Unorm, gfx.FormatR8G8Unorm, gfx.FormatR8G8B8Unorm, gfx.FormatR8G8B8A8Unorm}
	case 2:
		table = [4]gfx.Format{gfx.FormatR16Sfloat, gfx.FormatR16G16Sfloat, gfx.FormatR16G16B16Sfloat, gfx.FormatR16G16B16A16Sfloat}
	case 4:
		table = [4]gfx.Format{gfx.FormatR32Sfloat, gfx.FormatR32G32Sfloat, gfx.FormatR32G32B32Sfloat, gfx.FormatR32G32B32A32Sfloat}
	default:
		return gfx.FormatUndefined, false
	}
	if !i.Format.Valid() || i.Format == FormatRGB {
		return gfx.FormatUndefined, false
	}
	return table[i.Format.Channels()-1], true
}

// ExpandRGBA returns a copy of an RGB image with an opaque alpha
// channel appended. Other formats are returned unchanged.
func (i *Image) ExpandRGBA() *Image {
	if i.Format != FormatRGB {
		return i
	}
	bpc := int(i.BytesPerChannel)
	opaque := make([]byte, bpc)
	switch bpc {
	case 1:
		opaque[0] = 0xff
	case 2:
		opaque[0], opaque[1] = 0x00, 0x3c // 1.0 as half float
	case 4:
		opaque[2], opaque[3] = 0x80, 0x3f // 1.0 as float
	}

	out := &Image{Width: i.Width, Height: i.Height, Format: FormatRGBA, BytesPerChannel: i.BytesPerChannel}
	for _, mip := range i.Mips {
		pixels := len(mip) / (3 * bpc)
		expanded := make([]byte, 0, pixels*4*bpc)
		for p := 0; p < pixels; p++ {
			expanded = append(expanded, mip[p*3*bpc:(p+1)*3*bpc]...)
			expanded = append(expanded, opaque...)
		}
		out.Mips = append(out.Mips, expanded)
	}
	return out
}
