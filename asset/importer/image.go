package importer

import (
	"encoding/binary"
	"image"
	"image/color"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"io"
	"math"
	"math/bits"

	"github.com/cockroachdb/errors"
	_ "golang.org/x/image/bmp"  // register decoder
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff" // register decoder
	_ "golang.org/x/image/webp" // register decoder

	"github.com/koru3d/koru/asset"
)

// ImageOptions controls image conversion.
type ImageOptions struct {
	// Mips generates the full mip chain.
	Mips bool

	// HDR stores 32 bit float channels instead of 8 bit unorm.
	HDR bool
}

// DecodeImage decodes any registered image format. The format name is
// returned alongside the image.
func DecodeImage(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if errors.Is(err, image.ErrFormat) {
		return nil, "", ErrUnknownFormat
	}
	if err != nil {
		return nil, "", errors.Wrap(err, "decoding image")
	}
	return img, format, nil
}

// DecodeImageFile decodes the image in r, reading name's extension to
// recognize formats without a signature.
func DecodeImageFile(name string, r io.Reader) (image.Image, string, error) {
	if extension(name) == ".tga" {
		img, err := DecodeTGA(r)
		if err != nil {
			return nil, "", errors.Wrap(err, "decoding image")
		}
		return img, "tga", nil
	}
	return DecodeImage(r)
}

// MipLevels is the length of the full chain for a w x h image.
func MipLevels(w, h int) int {
	return bits.Len(uint(max(w, h, 1)))
}

// Image converts src into an image asset. Grayscale sources become
// single channel images, everything else RGBA.
func Image(src image.Image, opts ImageOptions) (*asset.Image, error) {
	b := src.Bounds()
	if b.Empty() {
		return nil, errors.New("importer: empty image")
	}
	if b.Dx() > math.MaxUint16 || b.Dy() > math.MaxUint16 {
		return nil, errors.Newf("importer: %dx%d image exceeds %d pixels per side", b.Dx(), b.Dy(), math.MaxUint16)
	}

	out := &asset.Image{
		Width:           uint16(b.Dx()),
		Height:          uint16(b.Dy()),
		Format:          asset.FormatRGBA,
		BytesPerChannel: 1,
	}
	switch src.ColorModel() {
	case color.GrayModel, color.Gray16Model:
		out.Format = asset.FormatR
	}
	if opts.HDR {
		out.BytesPerChannel = 4
	}

	levels := 1
	if opts.Mips {
		levels = MipLevels(b.Dx(), b.Dy())
	}
	level := image.NewNRGBA64(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(level, level.Bounds(), src, b.Min, draw.Src)
	for m := 0; m < levels; m++ {
		if m > 0 {
			w, h := max(b.Dx()>>m, 1), max(b.Dy()>>m, 1)
			next := image.NewNRGBA64(image.Rect(0, 0, w, h))
			draw.CatmullRom.Scale(next, next.Bounds(), level, level.Bounds(), draw.Src, nil)
			level = next
		}
		out.Mips = append(out.Mips, pack(level, out))
	}
	return out, nil
}

// pack writes the pixels of img in the layout of dst.
func pack(img *image.NRGBA64, dst *asset.Image) []byte {
	channels := dst.Format.Channels()
	bpc := int(dst.BytesPerChannel)
	b := img.Bounds()
	data := make([]byte, 0, b.Dx()*b.Dy()*channels*bpc)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.NRGBA64At(x, y)
			values := [4]uint16{c.R, c.G, c.B, c.A}
			for _, v := range values[:channels] {
				if bpc == 4 {
					data = binary.LittleEndian.AppendUint32(data, math.Float32bits(float32(v)/math.MaxUint16))
				} else {
					data = append(data, byte(v>>8))
				}
			}
		}
	}
	return data
}
