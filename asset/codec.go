package asset

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"

	"github.com/cockroachdb/errors"

	"github.com/koru3d/koru/model"
)

type imageHeader struct {
	Width, Height   uint16
	Format          PixelFormat
	BytesPerChannel uint8
	MipLevelCount   uint8
}

type meshHeader struct {
	VertexCount uint32
	IndexCount  uint32
}

// Bounds on sizes read from untrusted headers.
const (
	maxMeshElements = 1 << 26
	maxImageBytes   = 1 << 30

	readChunk = 4096
)

// encoder keeps the first write error.
type encoder struct {
	w   *bufio.Writer
	err error
}

func (e *encoder) put(data interface{}) {
	if e.err == nil {
		e.err = binary.Write(e.w, binary.LittleEndian, data)
	}
}

func (e *encoder) putString(s string) {
	e.put(uint16(len(s)))
	if e.err == nil {
		_, e.err = e.w.WriteString(s)
	}
}

// Write encodes p as a container.
func Write(w io.Writer, p Payload) error {
	if p == nil {
		return errors.AssertionFailedf("asset: nil payload")
	}
	if err := p.validate(); err != nil {
		return err
	}

	e := encoder{w: bufio.NewWriter(w)}
	e.put(Signature)
	e.put(p.Kind())

	switch p := p.(type) {
	case *Image:
		e.put(imageHeader{
			Width:           p.Width,
			Height:          p.Height,
			Format:          p.Format,
			BytesPerChannel: p.BytesPerChannel,
			MipLevelCount:   uint8(len(p.Mips)),
		})
		for _, mip := range p.Mips {
			e.put(mip)
		}
	case *Mesh:
		e.put(meshHeader{VertexCount: uint32(len(p.Vertices)), IndexCount: uint32(len(p.Indices))})
		e.put(p.Vertices)
		e.put(p.Indices)
	case *Material:
		e.put(p.BaseColor)
		e.putString(p.Albedo)
		e.putString(p.Normal)
	}
	if e.err == nil {
		e.err = e.w.Flush()
	}
	return errors.Wrapf(e.err, "writing %s", p.Kind())
}

// Read decodes one container from r.
func Read(r io.Reader) (Payload, error) {
	var prefix struct {
		Signature [4]byte
		Kind      Kind
	}
	if err := read(r, &prefix); err != nil {
		return nil, err
	}
	if prefix.Signature != Signature {
		return nil, ErrSignature
	}

	var p Payload
	var err error
	switch prefix.Kind {
	case KindImage:
		p, err = readImage(r)
	case KindMesh:
		p, err = readMesh(r)
	case KindMaterial:
		p, err = readMaterial(r)
	default:
		return nil, errors.Wrapf(ErrUnknownKind, "%s", prefix.Kind)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", prefix.Kind)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func read(r io.Reader, data interface{}) error {
	err := binary.Read(r, binary.LittleEndian, data)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrTruncated
	}
	return err
}

func readImage(r io.Reader) (*Image, error) {
	var h imageHeader
	if err := read(r, &h); err != nil {
		return nil, err
	}
	img := &Image{
		Width:           h.Width,
		Height:          h.Height,
		Format:          h.Format,
		BytesPerChannel: h.BytesPerChannel,
	}
	if h.MipLevelCount == 0 {
		return nil, errors.Wrap(ErrUnsupported, "no mip levels")
	}
	if err := img.checkLayout(); err != nil {
		return nil, err
	}
	if MipOffset(uint32(h.Width), uint32(h.Height), int(h.MipLevelCount), img.BytesPerPixel()) > maxImageBytes {
		return nil, errors.Wrapf(ErrUnsupported, "%dx%d image is too large", h.Width, h.Height)
	}

	img.Mips = make([][]byte, h.MipLevelCount)
	for m := range img.Mips {
		size := int64(MipSize(uint32(h.Width), uint32(h.Height), m, img.BytesPerPixel()))
		var mip bytes.Buffer
		mip.Grow(int(min(size, readChunk)))
		if n, err := io.CopyN(&mip, r, size); n != size {
			if err != nil && !errors.Is(err, io.EOF) {
				return nil, err
			}
			return nil, ErrTruncated
		}
		img.Mips[m] = mip.Bytes()
	}
	return img, nil
}

func readMesh(r io.Reader) (*Mesh, error) {
	var h meshHeader
	if err := read(r, &h); err != nil {
		return nil, err
	}
	if h.VertexCount > maxMeshElements || h.IndexCount > maxMeshElements {
		return nil, errors.Wrapf(ErrUnsupported, "%d vertices, %d indices", h.VertexCount, h.IndexCount)
	}
	m := &Mesh{}
	var err error
	if m.Vertices, err = readElements[model.Vertex](r, int(h.VertexCount)); err != nil {
		return nil, err
	}
	if m.Indices, err = readElements[uint32](r, int(h.IndexCount)); err != nil {
		return nil, err
	}
	return m, nil
}

// readElements reads n fixed size values in chunks, so a header that
// overstates its payload fails on the data actually present.
func readElements[T any](r io.Reader, n int) ([]T, error) {
	var out []T
	chunk := make([]T, min(n, readChunk))
	for len(out) < n {
		part := chunk[:min(n-len(out), len(chunk))]
		if err := read(r, part); err != nil {
			return nil, err
		}
		out = append(out, part...)
	}
	return out, nil
}

func readMaterial(r io.Reader) (*Material, error) {
	m := &Material{}
	if err := read(r, &m.BaseColor); err != nil {
		return nil, err
	}
	var err error
	if m.Albedo, err = readString(r); err != nil {
		return nil, err
	}
	if m.Normal, err = readString(r); err != nil {
		return nil, err
	}
	return m, nil
}

func readString(r io.Reader) (string, error) {
	var n uint16
	if err := read(r, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", ErrTruncated
	}
	return string(buf), nil
}
