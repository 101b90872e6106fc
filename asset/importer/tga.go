package importer

import (
	"bufio"
	"encoding/binary"
	"image"
	"image/color"
	"io"

	"github.com/cockroachdb/errors"
)

// tgaHeader is the fixed 18 byte Truevision TGA header.
type tgaHeader struct {
	IDLength         uint8
	ColorMapType     uint8
	ImageType        uint8
	ColorMapFirst    uint16
	ColorMapLength   uint16
	ColorMapDepth    uint8
	XOrigin, YOrigin uint16
	Width, Height    uint16
	Depth            uint8
	Descriptor       uint8
}

const (
	tgaColorMapped = 1
	tgaTrueColor   = 2
	tgaGray        = 3
	tgaRLE         = 8

	tgaAlphaBits   = 0x0f
	tgaRightToLeft = 1 << 4
	tgaTopToBottom = 1 << 5
)

var errTGATruncated = errors.New("importer: truncated tga")

// DecodeTGA decodes a true color, grayscale or color mapped TGA image,
// raw or run length encoded. TGA has no signature, so it is chosen by
// file extension rather than sniffed.
func DecodeTGA(r io.Reader) (image.Image, error) {
	br := bufio.NewReader(r)
	var h tgaHeader
	if err := binary.Read(br, binary.LittleEndian, &h); err != nil {
		return nil, errTGATruncated
	}
	if h.Width == 0 || h.Height == 0 {
		return nil, errors.New("importer: empty tga image")
	}
	if _, err := br.Discard(int(h.IDLength)); err != nil {
		return nil, errTGATruncated
	}

	var palette []color.NRGBA
	if h.ColorMapType == 1 {
		if h.ColorMapDepth != 24 && h.ColorMapDepth != 32 {
			return nil, errors.Newf("importer: unsupported %d bit tga color map", h.ColorMapDepth)
		}
		entry := int(h.ColorMapDepth) / 8
		raw := make([]byte, int(h.ColorMapLength)*entry)
		if _, err := io.ReadFull(br, raw); err != nil {
			return nil, errTGATruncated
		}
		for i := 0; i < len(raw); i += entry {
			palette = append(palette, tgaColor(raw[i:i+entry], true))
		}
	}

	kind := h.ImageType &^ tgaRLE
	switch {
	case kind == tgaTrueColor && (h.Depth == 24 || h.Depth == 32):
	case kind == tgaGray && h.Depth == 8:
	case kind == tgaColorMapped && h.Depth == 8 && palette != nil:
	default:
		return nil, errors.Newf("importer: unsupported tga type %d with %d bit pixels", h.ImageType, h.Depth)
	}

	w, ht := int(h.Width), int(h.Height)
	size := int(h.Depth) / 8
	data, err := tgaPixels(br, w*ht, size, h.ImageType&tgaRLE != 0)
	if err != nil {
		return nil, err
	}

	var gray *image.Gray
	var rgba *image.NRGBA
	if kind == tgaGray {
		gray = image.NewGray(image.Rect(0, 0, w, ht))
	} else {
		rgba = image.NewNRGBA(image.Rect(0, 0, w, ht))
	}
	alpha := h.Descriptor&tgaAlphaBits != 0
	for i := 0; i < w*ht; i++ {
		x, y := i%w, i/w
		if h.Descriptor&tgaRightToLeft != 0 {
			x = w - 1 - x
		}
		if h.Descriptor&tgaTopToBottom == 0 {
			y = ht - 1 - y
		}
		px := data[i*size : (i+1)*size]
		switch kind {
		case tgaGray:
			gray.SetGray(x, y, color.Gray{Y: px[0]})
		case tgaColorMapped:
			idx := int(px[0]) - int(h.ColorMapFirst)
			if idx < 0 || idx >= len(palette) {
				return nil, errors.Newf("importer: tga color index %d outside the color map", px[0])
			}
			rgba.SetNRGBA(x, y, palette[idx])
		default:
			rgba.SetNRGBA(x, y, tgaColor(px, alpha))
		}
	}
	if gray != nil {
		return gray, nil
	}
	return rgba, nil
}

// tgaColor converts a BGR or BGRA pixel.
func tgaColor(px []byte, alpha bool) color.NRGBA {
	c := color.NRGBA{R: px[2], G: px[1], B: px[0], A: 255}
	if len(px) == 4 && alpha {
		c.A = px[3]
	}
	return c
}

// tgaPixels reads n pixels of size bytes. The buffer grows with the
// data so a forged header cannot force a large allocation.
func tgaPixels(r *bufio.Reader, n, size int, rle bool) ([]byte, error) {
	total := n * size
	data := make([]byte, 0, min(total, 1<<20))
	px := make([]byte, size)
	for len(data) < total {
		count := total - len(data)
		if rle {
			packet, err := r.ReadByte()
			if err != nil {
				return nil, errTGATruncated
			}
			count = (int(packet&0x7f) + 1) * size
			if packet&0x80 != 0 {
				if _, err := io.ReadFull(r, px); err != nil {
					return nil, errTGATruncated
				}
				for i := 0; i < count; i += size {
					data = append(data, px...)
				}
				continue
			}
		}
		count = min(count, 1<<16)
		start := len(data)
		data = append(data, make([]byte, count)...)
		if _, err := io.ReadFull(r, data[start:]); err != nil {
			return nil, errTGATruncated
		}
	}
	return data[:total], nil
}
