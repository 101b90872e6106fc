package importer

import (
	glm "github.com/go-gl/mathgl/mgl32"

	"github.com/koru3d/koru/model"
)

const epsilon = 1e-8

// GenerateNormals replaces vertex normals with area weighted face
// normals accumulated per vertex.
func GenerateNormals(vertices []model.Vertex, indices []uint32) {
	for i := range vertices {
		vertices[i].Normal = glm.Vec3{}
	}
	for t := 0; t+2 < len(indices); t += 3 {
		a, b, c := indices[t], indices[t+1], indices[t+2]
		p0, p1, p2 := vertices[a].Position, vertices[b].Position, vertices[c].Position
		n := p1.Sub(p0).Cross(p2.Sub(p0))
		for _, v := range []uint32{a, b, c} {
			vertices[v].Normal = vertices[v].Normal.Add(n)
		}
	}
	for i := range vertices {
		if vertices[i].Normal.Len() > epsilon {
			vertices[i].Normal = vertices[i].Normal.Normalize()
		}
	}
}

// GenerateTangents computes per vertex tangents from texture
// coordinates, Gram-Schmidt orthogonalized against the normal.
// Vertices without usable coordinates get any vector perpendicular
// to the normal.
func GenerateTangents(vertices []model.Vertex, indices []uint32) {
	accum := make([]glm.Vec3, len(vertices))
	for t := 0; t+2 < len(indices); t += 3 {
		a, b, c := indices[t], indices[t+1], indices[t+2]
		e1 := vertices[b].Position.Sub(vertices[a].Position)
		e2 := vertices[c].Position.Sub(vertices[a].Position)
		d1 := vertices[b].TexCoord.Sub(vertices[a].TexCoord)
		d2 := vertices[c].TexCoord.Sub(vertices[a].TexCoord)

		det := d1.X()*d2.Y() - d2.X()*d1.Y()
		if det > -epsilon && det < epsilon {
			continue
		}
		r := 1 / det
		tangent := e1.Mul(d2.Y()).Sub(e2.Mul(d1.Y())).Mul(r)
		for _, v := range []uint32{a, b, c} {
			accum[v] = accum[v].Add(tangent)
		}
	}

	for i := range vertices {
		n := vertices[i].Normal
		t := accum[i].Sub(n.Mul(n.Dot(accum[i])))
		if t.Len() < epsilon {
			t = perpendicular(n)
		}
		vertices[i].Tangent = t.Normalize()
	}
}

func perpendicular(n glm.Vec3) glm.Vec3 {
	axis := glm.Vec3{1, 0, 0}
	if n.X() > 0.9 || n.X() < -0.9 {
		axis = glm.Vec3{0, 1, 0}
	}
	return axis.Sub(n.Mul(n.Dot(axis)))
}
