package asset_test

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/cockroachdb/errors"
	qt "github.com/frankban/quicktest"
	glm "github.com/go-gl/mathgl/mgl32"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/koru3d/koru/asset"
	"github.com/koru3d/koru/gfx"
	"github.com/koru3d/koru/model"
	"github.com/koru3d/koru/utility/kar"
)

func encode(c *qt.C, p asset.Payload) []byte {
	var buf bytes.Buffer
	c.Assert(asset.Write(&buf, p), qt.IsNil)
	return buf.Bytes()
}

func triangle() *asset.Mesh {
	return &asset.Mesh{
		Vertices: []model.Vertex{
			{Position: glm.Vec3{0, 0, 0}, TexCoord: glm.Vec2{0, 0}, Normal: glm.Vec3{0, 0, 1}, Tangent: glm.Vec3{1, 0, 0}},
			{Position: glm.Vec3{1, 0, 0}, TexCoord: glm.Vec2{1, 0}, Normal: glm.Vec3{0, 0, 1}, Tangent: glm.Vec3{1, 0, 0}},
			{Position: glm.Vec3{0, 1, 0}, TexCoord: glm.Vec2{0, 1}, Normal: glm.Vec3{0, 0, 1}, Tangent: glm.Vec3{1, 0, 0}},
		},
		Indices: []uint32{0, 1, 2},
	}
}

func TestMeshRoundTrip(t *testing.T) {
	c := qt.New(t)
	mesh := triangle()
	data := encode(c, mesh)

	// signature, kind, counts, vertices, indices
	c.Assert(data, qt.HasLen, 4+1+8+3*44+3*4)
	c.Assert(data[4], qt.Equals, byte(asset.KindMesh))

	p, err := asset.Read(bytes.NewReader(data))
	c.Assert(err, qt.IsNil)
	c.Assert(p, qt.DeepEquals, asset.Payload(mesh))
}

func gradient(w, h uint16, mips int, format asset.PixelFormat, bpc uint8) *asset.Image {
	img := &asset.Image{Width: w, Height: h, Format: format, BytesPerChannel: bpc}
	for m := 0; m < mips; m++ {
		mip := make([]byte, asset.MipSize(uint32(w), uint32(h), m, img.BytesPerPixel()))
		for i := range mip {
			mip[i] = byte(i*7 + m)
		}
		img.Mips = append(img.Mips, mip)
	}
	return img
}

func TestMipOffsetRoundTrip(t *testing.T) {
	c := qt.New(t)
	for _, tc := range []struct {
		w, h uint16
		mips int
		bpc  uint8
	}{
		{1, 1, 1, 1},
		{16, 16, 5, 1},
		{13, 5, 4, 2},
		{64, 2, 7, 4},
	} {
		img := gradient(tc.w, tc.h, tc.mips, asset.FormatRGBA, tc.bpc)
		data := encode(c, img)

		header := 4 + 1 + 7
		for m, mip := range img.Mips {
			offset := header + asset.MipOffset(uint32(tc.w), uint32(tc.h), m, img.BytesPerPixel())
			c.Assert(data[offset:offset+len(mip)], qt.DeepEquals, mip, qt.Commentf("%dx%d mip %d", tc.w, tc.h, m))
		}

		p, err := asset.Read(bytes.NewReader(data))
		c.Assert(err, qt.IsNil)
		c.Assert(p, qt.DeepEquals, asset.Payload(img))
	}
}

func TestMipMath(t *testing.T) {
	c := qt.New(t)
	c.Assert(asset.MipSize(8, 2, 0, 4), qt.Equals, 64)
	c.Assert(asset.MipSize(8, 2, 2, 4), qt.Equals, 8)
	c.Assert(asset.MipSize(8, 2, 5, 4), qt.Equals, 4)
	c.Assert(asset.MipOffset(8, 2, 0, 4), qt.Equals, 0)
	c.Assert(asset.MipOffset(8, 2, 3, 4), qt.Equals, 64+16+8)
}

func TestMaterialRoundTrip(t *testing.T) {
	c := qt.New(t)
	mat := &asset.Material{BaseColor: glm.Vec4{1, 0.5, 0.25, 1}, Albedo: "textures/brick.kra"}
	p, err := asset.Read(bytes.NewReader(encode(c, mat)))
	c.Assert(err, qt.IsNil)
	c.Assert(p, qt.DeepEquals, asset.Payload(mat))
}

func TestReadErrors(t *testing.T) {
	c := qt.New(t)
	valid := encode(c, triangle())

	_, err := asset.Read(bytes.NewReader(append([]byte("KRB\x00"), valid[4:]...)))
	c.Assert(errors.Is(err, asset.ErrSignature), qt.IsTrue)

	unknown := append([]byte{}, valid...)
	unknown[4] = 9
	_, err = asset.Read(bytes.NewReader(unknown))
	c.Assert(errors.Is(err, asset.ErrUnknownKind), qt.IsTrue)

	_, err = asset.Read(bytes.NewReader(valid[:len(valid)-2]))
	c.Assert(errors.Is(err, asset.ErrTruncated), qt.IsTrue)

	badFormat := encode(c, gradient(2, 2, 1, asset.FormatRGBA, 1))
	badFormat[9] = byte(asset.ChannelG | asset.ChannelA)
	_, err = asset.Read(bytes.NewReader(badFormat))
	c.Assert(errors.Is(err, asset.ErrUnsupported), qt.IsTrue)

	badIndex := triangle()
	badIndex.Indices[2] = 3
	c.Assert(asset.Write(&bytes.Buffer{}, badIndex), qt.ErrorMatches, `asset: index 2 refers to vertex 3 of 3`)
}

// allocated reports the bytes allocated while running f.
func allocated(f func()) uint64 {
	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	f()
	runtime.ReadMemStats(&after)
	return after.TotalAlloc - before.TotalAlloc
}

func TestReadOverstatedCounts(t *testing.T) {
	c := qt.New(t)
	le := binary.LittleEndian

	mesh := append([]byte("KRA\x00"), byte(asset.KindMesh))
	mesh = le.AppendUint32(mesh, 1<<26)
	mesh = le.AppendUint32(mesh, 1<<26)

	image := append([]byte("KRA\x00"), byte(asset.KindImage))
	image = le.AppendUint16(image, 4096)
	image = le.AppendUint16(image, 4096)
	image = append(image, byte(asset.FormatRGBA), 1, 1)

	for name, data := range map[string][]byte{"mesh": mesh, "image": image} {
		var err error
		n := allocated(func() { _, err = asset.Read(bytes.NewReader(data)) })
		c.Assert(errors.Is(err, asset.ErrTruncated), qt.IsTrue, qt.Commentf("%s: %v", name, err))
		c.Assert(n < 4<<20, qt.IsTrue, qt.Commentf("%s allocated %d bytes", name, n))
	}

	partial := append(mesh[:5:5], 0, 0, 0, 0, 0, 0, 0, 0)
	le.PutUint32(partial[5:], 5000)
	partial = append(partial, make([]byte, 4097*44)...)
	_, err := asset.Read(bytes.NewReader(partial))
	c.Assert(errors.Is(err, asset.ErrTruncated), qt.IsTrue)
}

func TestPixelFormats(t *testing.T) {
	c := qt.New(t)
	c.Assert(asset.FormatRGB.Channels(), qt.Equals, 3)
	c.Assert((asset.ChannelR | asset.ChannelB).Valid(), qt.IsFalse)

	f, ok := gradient(2, 2, 1, asset.FormatRGBA, 1).GfxFormat()
	c.Assert(ok, qt.IsTrue)
	c.Assert(f, qt.Equals, gfx.FormatR8G8B8A8Unorm)
	f, _ = gradient(2, 2, 1, asset.FormatRG, 4).GfxFormat()
	c.Assert(f, qt.Equals, gfx.FormatR32G32Sfloat)

	rgb := gradient(2, 1, 1, asset.FormatRGB, 1)
	_, ok = rgb.GfxFormat()
	c.Assert(ok, qt.IsFalse)
	rgba := rgb.ExpandRGBA()
	c.Assert(rgba.Format, qt.Equals, asset.FormatRGBA)
	c.Assert(rgba.Mips[0], qt.DeepEquals, []byte{
		rgb.Mips[0][0], rgb.Mips[0][1], rgb.Mips[0][2], 0xff,
		rgb.Mips[0][3], rgb.Mips[0][4], rgb.Mips[0][5], 0xff,
	})
}

func TestLoaderDirectory(t *testing.T) {
	c := qt.New(t)
	dir := c.TempDir()
	c.Assert(os.MkdirAll(filepath.Join(dir, "meshes"), 0o755), qt.IsNil)
	c.Assert(os.WriteFile(filepath.Join(dir, "meshes", "tri.kra"), encode(c, triangle()), 0o644), qt.IsNil)
	c.Assert(os.WriteFile(filepath.Join(dir, "broken.kra"), []byte("nope"), 0o644), qt.IsNil)

	log, hook := test.NewNullLogger()
	source, err := asset.OpenSource(dir)
	c.Assert(err, qt.IsNil)
	loader := asset.NewLoader(source, log)
	defer loader.Close()

	mesh, ok := loader.LoadMesh("meshes/tri.kra")
	c.Assert(ok, qt.IsTrue)
	c.Assert(mesh.Indices, qt.DeepEquals, []uint32{0, 1, 2})
	c.Assert(hook.Entries, qt.HasLen, 0)

	_, ok = loader.Load("missing.kra")
	c.Assert(ok, qt.IsFalse)
	c.Assert(hook.LastEntry().Level, qt.Equals, logrus.WarnLevel)
	c.Assert(hook.LastEntry().Data["asset"], qt.Equals, "missing.kra")

	_, ok = loader.Load("broken.kra")
	c.Assert(ok, qt.IsFalse)
	_, ok = loader.LoadImage("meshes/tri.kra")
	c.Assert(ok, qt.IsFalse)
	c.Assert(hook.LastEntry().Message, qt.Equals, "asset is not an image")
	c.Assert(hook.Entries, qt.HasLen, 3)
}

func TestLoaderArchive(t *testing.T) {
	c := qt.New(t)
	builder, err := kar.NewBuilder(kar.Header{Author: "koru", Version: 1})
	c.Assert(err, qt.IsNil)
	defer builder.Close()
	c.Assert(builder.Add("tex/checker.kra", bytes.NewReader(encode(c, gradient(4, 4, 3, asset.FormatRGBA, 1)))), qt.IsNil)

	path := filepath.Join(c.TempDir(), "assets.kar")
	f, err := os.Create(path)
	c.Assert(err, qt.IsNil)
	_, err = builder.WriteTo(f)
	c.Assert(err, qt.IsNil)
	c.Assert(f.Close(), qt.IsNil)

	source, err := asset.OpenSource(path)
	c.Assert(err, qt.IsNil)
	log, hook := test.NewNullLogger()
	loader := asset.NewLoader(source, log)
	defer loader.Close()

	img, ok := loader.LoadImage("tex/checker.kra")
	c.Assert(ok, qt.IsTrue)
	c.Assert(img.Mips, qt.HasLen, 3)

	_, ok = loader.Load("tex/missing.kra")
	c.Assert(ok, qt.IsFalse)
	c.Assert(hook.Entries, qt.HasLen, 1)
}
