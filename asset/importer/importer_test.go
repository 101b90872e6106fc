package importer_test

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	qt "github.com/frankban/quicktest"
	glm "github.com/go-gl/mathgl/mgl32"
	"golang.org/x/image/bmp"

	"github.com/koru3d/koru/asset"
	"github.com/koru3d/koru/asset/importer"
)

func checker(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x+y)%2 == 0 {
				img.Set(x, y, color.NRGBA{255, 0, 0, 255})
			} else {
				img.Set(x, y, color.NRGBA{0, 0, 255, 128})
			}
		}
	}
	return img
}

func TestDecodeImage(t *testing.T) {
	c := qt.New(t)

	var pngData, bmpData bytes.Buffer
	c.Assert(png.Encode(&pngData, checker(4, 4)), qt.IsNil)
	c.Assert(bmp.Encode(&bmpData, checker(4, 4)), qt.IsNil)

	_, format, err := importer.DecodeImage(&pngData)
	c.Assert(err, qt.IsNil)
	c.Assert(format, qt.Equals, "png")

	_, format, err = importer.DecodeImage(&bmpData)
	c.Assert(err, qt.IsNil)
	c.Assert(format, qt.Equals, "bmp")

	_, _, err = importer.DecodeImage(strings.NewReader("definitely not an image"))
	c.Assert(errors.Is(err, importer.ErrUnknownFormat), qt.IsTrue)
}

func TestImageMips(t *testing.T) {
	c := qt.New(t)
	c.Assert(importer.MipLevels(1, 1), qt.Equals, 1)
	c.Assert(importer.MipLevels(8, 2), qt.Equals, 4)
	c.Assert(importer.MipLevels(5, 3), qt.Equals, 3)

	img, err := importer.Image(checker(8, 2), importer.ImageOptions{Mips: true})
	c.Assert(err, qt.IsNil)
	c.Assert(img.Format, qt.Equals, asset.FormatRGBA)
	c.Assert(img.Mips, qt.HasLen, 4)
	for m, mip := range img.Mips {
		c.Assert(mip, qt.HasLen, asset.MipSize(8, 2, m, 4))
	}
	c.Assert(img.Mips[0][:8], qt.DeepEquals, []byte{255, 0, 0, 255, 0, 0, 255, 128})

	var buf bytes.Buffer
	c.Assert(asset.Write(&buf, img), qt.IsNil)
}

func TestImageHDRAndGray(t *testing.T) {
	c := qt.New(t)
	gray := image.NewGray(image.Rect(0, 0, 2, 2))
	gray.SetGray(1, 0, color.Gray{Y: 255})

	img, err := importer.Image(gray, importer.ImageOptions{HDR: true})
	c.Assert(err, qt.IsNil)
	c.Assert(img.Format, qt.Equals, asset.FormatR)
	c.Assert(img.BytesPerChannel, qt.Equals, uint8(4))
	c.Assert(img.Mips, qt.HasLen, 1)
	c.Assert(img.Mips[0][4:8], qt.DeepEquals, []byte{0, 0, 0x80, 0x3f})

	_, err = importer.Image(image.NewGray(image.Rect(0, 0, 0, 0)), importer.ImageOptions{})
	c.Assert(err, qt.ErrorMatches, "importer: empty image")
}

// tgaFile assembles a TGA image without an id field.
func tgaFile(imageType, depth, descriptor byte, w, h uint16, colorMap, pixels []byte) []byte {
	data := []byte{0, 0, imageType, 0, 0, 0, 0, 0, 0, 0, 0, 0,
		byte(w), byte(w >> 8), byte(h), byte(h >> 8), depth, descriptor}
	if colorMap != nil {
		data[1] = 1
		data[5] = byte(len(colorMap) / 3)
		data[7] = 24
	}
	data = append(data, colorMap...)
	return append(data, pixels...)
}

func TestDecodeTGA(t *testing.T) {
	c := qt.New(t)
	red := color.NRGBA{R: 255, A: 255}
	blue := color.NRGBA{B: 255, A: 255}

	c.Run("true color bottom up", func(c *qt.C) {
		// rows are stored bottom first
		data := tgaFile(2, 24, 0, 2, 2, nil, []byte{
			0, 0, 255, 0, 0, 255,
			255, 0, 0, 255, 0, 0,
		})
		img, format, err := importer.DecodeImageFile("pixels.TGA", bytes.NewReader(data))
		c.Assert(err, qt.IsNil)
		c.Assert(format, qt.Equals, "tga")
		c.Assert(img.At(0, 0), qt.Equals, color.Color(blue))
		c.Assert(img.At(1, 1), qt.Equals, color.Color(red))
	})

	c.Run("run length alpha top down", func(c *qt.C) {
		data := tgaFile(10, 32, 8|0x20, 3, 1, nil, []byte{
			0x81, 0, 0, 255, 128,
			0x00, 255, 0, 0, 255,
		})
		img, err := importer.DecodeTGA(bytes.NewReader(data))
		c.Assert(err, qt.IsNil)
		c.Assert(img.At(0, 0), qt.Equals, color.Color(color.NRGBA{R: 255, A: 128}))
		c.Assert(img.At(1, 0), qt.Equals, color.Color(color.NRGBA{R: 255, A: 128}))
		c.Assert(img.At(2, 0), qt.Equals, color.Color(blue))
	})

	c.Run("gray and color mapped", func(c *qt.C) {
		img, err := importer.DecodeTGA(bytes.NewReader(tgaFile(3, 8, 0x20, 2, 1, nil, []byte{10, 200})))
		c.Assert(err, qt.IsNil)
		c.Assert(img.ColorModel(), qt.Equals, color.GrayModel)
		c.Assert(img.At(1, 0), qt.Equals, color.Color(color.Gray{Y: 200}))

		img, err = importer.DecodeTGA(bytes.NewReader(tgaFile(1, 8, 0x20, 2, 1, []byte{0, 0, 255, 255, 0, 0}, []byte{1, 0})))
		c.Assert(err, qt.IsNil)
		c.Assert(img.At(0, 0), qt.Equals, color.Color(blue))
		c.Assert(img.At(1, 0), qt.Equals, color.Color(red))
	})

	c.Run("errors", func(c *qt.C) {
		_, err := importer.DecodeTGA(bytes.NewReader(tgaFile(2, 24, 0, 0xffff, 0xffff, nil, []byte{1, 2, 3})))
		c.Assert(err, qt.ErrorMatches, "importer: truncated tga")

		_, err = importer.DecodeTGA(bytes.NewReader(tgaFile(2, 16, 0, 1, 1, nil, []byte{1, 2})))
		c.Assert(err, qt.ErrorMatches, "importer: unsupported tga type 2 with 16 bit pixels")

		_, err = importer.DecodeTGA(bytes.NewReader(tgaFile(1, 8, 0, 1, 1, []byte{1, 2, 3}, []byte{4})))
		c.Assert(err, qt.ErrorMatches, "importer: tga color index 4 outside the color map")

		_, _, err = importer.DecodeImageFile("notes.tga", strings.NewReader("tiny"))
		c.Assert(err, qt.ErrorMatches, "decoding image: importer: truncated tga")
	})

	img, err := importer.Image(must(importer.DecodeTGA(bytes.NewReader(tgaFile(2, 24, 0x20, 1, 1, nil, []byte{0, 0, 255})))), importer.ImageOptions{})
	c.Assert(err, qt.IsNil)
	c.Assert(img.Mips[0], qt.DeepEquals, []byte{255, 0, 0, 255})
}

func must(img image.Image, err error) image.Image {
	if err != nil {
		panic(err)
	}
	return img
}

const quadOBJ = `# unit quad
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
f 1/1 2/2 3/3 4/4
`

func TestOBJ(t *testing.T) {
	c := qt.New(t)
	mesh, err := importer.Mesh("quad.OBJ", strings.NewReader(quadOBJ))
	c.Assert(err, qt.IsNil)
	c.Assert(mesh.Vertices, qt.HasLen, 4)
	c.Assert(mesh.Indices, qt.DeepEquals, []uint32{0, 1, 2, 0, 2, 3})

	for _, v := range mesh.Vertices {
		c.Assert(v.Normal.ApproxEqual(glm.Vec3{0, 0, 1}), qt.IsTrue)
		c.Assert(v.Tangent.ApproxEqual(glm.Vec3{1, 0, 0}), qt.IsTrue)
	}
	c.Assert(mesh.Vertices[0].TexCoord, qt.Equals, glm.Vec2{0, 1})
}

func TestOBJRelativeIndices(t *testing.T) {
	c := qt.New(t)
	mesh, err := importer.OBJ(strings.NewReader("v 0 0 0\nv 1 0 0\nv 0 1 0\nvn 0 0 2\nf -3//1 -2//1 -1//1\n"))
	c.Assert(err, qt.IsNil)
	c.Assert(mesh.Indices, qt.DeepEquals, []uint32{0, 1, 2})
	c.Assert(mesh.Vertices[2].Normal, qt.Equals, glm.Vec3{0, 0, 1})
}

func TestOBJErrors(t *testing.T) {
	c := qt.New(t)
	_, err := importer.OBJ(strings.NewReader("v 0 0 0\nf 1 2 3\n"))
	c.Assert(err, qt.ErrorMatches, `obj line 2: importer: position 1 out of range`)

	_, err = importer.OBJ(strings.NewReader("v 0 0\n"))
	c.Assert(err, qt.ErrorMatches, `obj line 1: importer: expected 3 values, got 2`)

	_, err = importer.OBJ(strings.NewReader("v 0 0 0\n"))
	c.Assert(err, qt.ErrorMatches, `importer: mesh has no triangles`)

	_, err = importer.Mesh("scene.gltf", strings.NewReader("{}"))
	c.Assert(errors.Is(err, importer.ErrUnknownFormat), qt.IsTrue)
}

const triangleDAE = `<?xml version="1.0" encoding="utf-8"?>
<COLLADA xmlns="http://www.collada.org/2005/11/COLLADASchema" version="1.4.1">
  <library_geometries>
    <geometry id="Tri-mesh" name="Tri">
      <mesh>
        <source id="Tri-mesh-positions">
          <float_array id="Tri-mesh-positions-array" count="9">0 0 0 1 0 0 0 1 0</float_array>
          <technique_common><accessor source="#Tri-mesh-positions-array" count="3" stride="3"/></technique_common>
        </source>
        <source id="Tri-mesh-normals">
          <float_array id="Tri-mesh-normals-array" count="3">0 0 1</float_array>
          <technique_common><accessor source="#Tri-mesh-normals-array" count="1" stride="3"/></technique_common>
        </source>
        <vertices id="Tri-mesh-vertices">
          <input semantic="POSITION" source="#Tri-mesh-positions"/>
        </vertices>
        <triangles count="1">
          <input semantic="VERTEX" source="#Tri-mesh-vertices" offset="0"/>
          <input semantic="NORMAL" source="#Tri-mesh-normals" offset="1"/>
          <p>0 0 1 0 2 0</p>
        </triangles>
      </mesh>
    </geometry>
  </library_geometries>
</COLLADA>`

func TestCollada(t *testing.T) {
	c := qt.New(t)
	mesh, err := importer.Mesh("tri.dae", strings.NewReader(triangleDAE))
	c.Assert(err, qt.IsNil)
	c.Assert(mesh.Vertices, qt.HasLen, 3)
	c.Assert(mesh.Indices, qt.DeepEquals, []uint32{0, 1, 2})
	c.Assert(mesh.Vertices[1].Position, qt.Equals, glm.Vec3{1, 0, 0})
	c.Assert(mesh.Vertices[1].Normal, qt.Equals, glm.Vec3{0, 0, 1})

	_, err = importer.Collada([]byte(strings.Replace(triangleDAE, `semantic="VERTEX"`, `semantic="COLOR"`, 1)))
	c.Assert(err, qt.ErrorMatches, `geometry "Tri-mesh": importer: triangles without VERTEX input`)
}

func TestGenerateTangentsDegenerate(t *testing.T) {
	c := qt.New(t)
	mesh, err := importer.OBJ(strings.NewReader("v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n"))
	c.Assert(err, qt.IsNil)
	for _, v := range mesh.Vertices {
		c.Assert(v.Tangent.Len(), qt.Satisfies, func(l float32) bool { return l > 0.99 && l < 1.01 })
		c.Assert(v.Tangent.Dot(v.Normal), qt.Satisfies, func(d float32) bool { return d > -1e-5 && d < 1e-5 })
	}
}
