package importer

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	glm "github.com/go-gl/mathgl/mgl32"

	"github.com/koru3d/koru/asset"
	"github.com/koru3d/koru/model"
	"github.com/koru3d/koru/util/collada"
)

// Mesh imports the mesh in r, choosing the parser by the extension of
// name.
func Mesh(name string, r io.Reader) (*asset.Mesh, error) {
	switch extension(name) {
	case ".obj":
		return OBJ(r)
	case ".dae":
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, errors.Wrap(err, "reading collada")
		}
		return Collada(data)
	}
	return nil, ErrUnknownFormat
}

// corner identifies a unique vertex by its attribute indices, -1
// marking an absent attribute.
type corner struct {
	position, texCoord, normal int
}

// builder deduplicates corners into an indexed mesh.
type builder struct {
	positions []glm.Vec3
	texCoords []glm.Vec2
	normals   []glm.Vec3

	mesh    asset.Mesh
	seen    map[corner]uint32
	flatten bool
}

func newBuilder() *builder {
	return &builder{seen: make(map[corner]uint32)}
}

func (b *builder) add(c corner) error {
	if c.position < 0 || c.position >= len(b.positions) {
		return errors.Newf("importer: position %d out of range", c.position)
	}
	if c.texCoord < -1 || c.texCoord >= len(b.texCoords) || c.normal < -1 || c.normal >= len(b.normals) {
		return errors.Newf("importer: attribute index out of range in %+v", c)
	}
	if idx, ok := b.seen[c]; ok {
		b.mesh.Indices = append(b.mesh.Indices, idx)
		return nil
	}

	v := model.Vertex{Position: b.positions[c.position]}
	if c.texCoord >= 0 {
		v.TexCoord = b.texCoords[c.texCoord]
	}
	if c.normal >= 0 {
		v.Normal = b.normals[c.normal]
	} else {
		b.flatten = true
	}
	idx := uint32(len(b.mesh.Vertices))
	b.seen[c] = idx
	b.mesh.Vertices = append(b.mesh.Vertices, v)
	b.mesh.Indices = append(b.mesh.Indices, idx)
	return nil
}

func (b *builder) finish() (*asset.Mesh, error) {
	if len(b.mesh.Indices) == 0 {
		return nil, errors.New("importer: mesh has no triangles")
	}
	if b.flatten {
		GenerateNormals(b.mesh.Vertices, b.mesh.Indices)
	}
	GenerateTangents(b.mesh.Vertices, b.mesh.Indices)
	return &b.mesh, nil
}

// OBJ parses a Wavefront OBJ file. Polygons are triangulated as fans,
// texture V is flipped to a top-left origin and missing normals are
// generated.
func OBJ(r io.Reader) (*asset.Mesh, error) {
	b := newBuilder()
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		var err error
		switch fields[0] {
		case "v":
			var f []float32
			if f, err = parseFloats(fields[1:], 3); err == nil {
				b.positions = append(b.positions, glm.Vec3{f[0], f[1], f[2]})
			}
		case "vt":
			var f []float32
			if f, err = parseFloats(fields[1:], 2); err == nil {
				b.texCoords = append(b.texCoords, glm.Vec2{f[0], 1 - f[1]})
			}
		case "vn":
			var f []float32
			if f, err = parseFloats(fields[1:], 3); err == nil {
				b.normals = append(b.normals, glm.Vec3{f[0], f[1], f[2]}.Normalize())
			}
		case "f":
			err = b.face(fields[1:])
		}
		if err != nil {
			return nil, errors.Wrapf(err, "obj line %d", line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading obj")
	}
	return b.finish()
}

func (b *builder) face(fields []string) error {
	if len(fields) < 3 {
		return errors.Newf("importer: face with %d corners", len(fields))
	}
	corners := make([]corner, len(fields))
	for i, f := range fields {
		c, err := b.parseCorner(f)
		if err != nil {
			return err
		}
		corners[i] = c
	}
	for i := 1; i+1 < len(corners); i++ {
		for _, c := range []corner{corners[0], corners[i], corners[i+1]} {
			if err := b.add(c); err != nil {
				return err
			}
		}
	}
	return nil
}

// parseCorner reads v, v/vt, v//vn or v/vt/vn with 1-based or
// negative relative indices.
func (b *builder) parseCorner(s string) (corner, error) {
	parts := strings.Split(s, "/")
	refs := [3]int{-1, -1, -1}
	counts := [3]int{len(b.positions), len(b.texCoords), len(b.normals)}
	for i := 0; i < len(parts) && i < 3; i++ {
		if parts[i] == "" {
			continue
		}
		n, err := strconv.Atoi(parts[i])
		if err != nil {
			return corner{}, errors.Wrapf(err, "importer: face corner %q", s)
		}
		switch {
		case n > 0:
			refs[i] = n - 1
		case n < 0:
			refs[i] = counts[i] + n
		default:
			return corner{}, errors.Newf("importer: zero index in face corner %q", s)
		}
	}
	return corner{position: refs[0], texCoord: refs[1], normal: refs[2]}, nil
}

func parseFloats(fields []string, n int) ([]float32, error) {
	if len(fields) < n {
		return nil, errors.Newf("importer: expected %d values, got %d", n, len(fields))
	}
	out := make([]float32, n)
	for i := range out {
		f, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return nil, errors.Wrap(err, "importer")
		}
		out[i] = float32(f)
	}
	return out, nil
}

// Collada imports every triangle list of every geometry in a Collada
// document into a single mesh.
func Collada(data []byte) (*asset.Mesh, error) {
	doc, err := collada.Parse(data)
	if err != nil {
		return nil, err
	}

	b := newBuilder()
	for gi := range doc.Geometries {
		mesh := &doc.Geometries[gi].Mesh
		for ti := range mesh.Triangles {
			if err := b.colladaTriangles(mesh, &mesh.Triangles[ti]); err != nil {
				return nil, errors.Wrapf(err, "geometry %q", doc.Geometries[gi].ID)
			}
		}
	}
	return b.finish()
}

// colladaTriangles appends the attributes of one triangle list as new
// attribute ranges so indices from different lists never alias.
func (b *builder) colladaTriangles(mesh *collada.Mesh, tris *collada.Triangles) error {
	vertex, ok := tris.Input("VERTEX")
	if !ok {
		return errors.New("importer: triangles without VERTEX input")
	}
	positionRef := vertex.Source
	if strings.TrimPrefix(vertex.Source, "#") == mesh.Vertices.ID {
		for _, in := range mesh.Vertices.Inputs {
			if in.Semantic == "POSITION" {
				positionRef = in.Source
			}
		}
	}

	base := [3]int{len(b.positions), len(b.texCoords), len(b.normals)}
	offsets := [3]int{-1, -1, -1}

	positions, err := sourceVectors(mesh, positionRef, 3)
	if err != nil {
		return err
	}
	for _, p := range positions {
		b.positions = append(b.positions, glm.Vec3{p[0], p[1], p[2]})
	}
	offsets[0] = int(vertex.Offset)

	if in, ok := tris.Input("TEXCOORD"); ok {
		uvs, err := sourceVectors(mesh, in.Source, 2)
		if err != nil {
			return err
		}
		for _, uv := range uvs {
			b.texCoords = append(b.texCoords, glm.Vec2{uv[0], 1 - uv[1]})
		}
		offsets[1] = int(in.Offset)
	}
	if in, ok := tris.Input("NORMAL"); ok {
		normals, err := sourceVectors(mesh, in.Source, 3)
		if err != nil {
			return err
		}
		for _, n := range normals {
			b.normals = append(b.normals, glm.Vec3{n[0], n[1], n[2]}.Normalize())
		}
		offsets[2] = int(in.Offset)
	}

	stride := tris.Stride()
	if stride == 0 || len(tris.Index)%(3*stride) != 0 {
		return errors.Newf("importer: %d indices do not form triangles of stride %d", len(tris.Index), stride)
	}
	for i := 0; i < len(tris.Index); i += stride {
		refs := [3]int{-1, -1, -1}
		for a, off := range offsets {
			if off >= 0 {
				refs[a] = base[a] + tris.Index[i+off]
			}
		}
		if err := b.add(corner{position: refs[0], texCoord: refs[1], normal: refs[2]}); err != nil {
			return err
		}
	}
	return nil
}

func sourceVectors(mesh *collada.Mesh, ref string, width int) ([][]float32, error) {
	src, ok := mesh.FindSource(ref)
	if !ok {
		return nil, errors.Newf("importer: source %q not found", ref)
	}
	if src.Accessor.Stride == 0 {
		src.Accessor.Stride = width
	}
	count := src.Accessor.Count
	if count == 0 {
		count = len(src.Floats.Data) / src.Accessor.Stride
	}
	out := make([][]float32, count)
	for i := range out {
		el, err := src.Element(i)
		if err != nil {
			return nil, err
		}
		if len(el) < width {
			return nil, errors.Newf("importer: source %q has %d wide elements, need %d", ref, len(el), width)
		}
		out[i] = el
	}
	return out, nil
}
