package asset

import (
	"github.com/cockroachdb/errors"
	glm "github.com/go-gl/mathgl/mgl32"

	"github.com/koru3d/koru/model"
)

// Mesh is an indexed triangle list.
type Mesh struct {
	Vertices []model.Vertex
	Indices  []uint32
}

// Kind implements Payload.
func (*Mesh) Kind() Kind { return KindMesh }

func (m *Mesh) validate() error {
	for i, idx := range m.Indices {
		if int(idx) >= len(m.Vertices) {
			return errors.Newf("asset: index %d refers to vertex %d of %d", i, idx, len(m.Vertices))
		}
	}
	return nil
}

// Material describes surface appearance by referencing texture assets.
type Material struct {
	BaseColor glm.Vec4
	Albedo    string
	Normal    string
}

// Kind implements Payload.
func (*Material) Kind() Kind { return KindMaterial }

func (m *Material) validate() error {
	for _, name := range []string{m.Albedo, m.Normal} {
		if len(name) > 0xffff {
			return errors.Newf("asset: texture name of %d bytes is too long", len(name))
		}
	}
	return nil
}
