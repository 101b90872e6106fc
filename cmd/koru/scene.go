package main

import (
	"time"

	glm "github.com/go-gl/mathgl/mgl32"
	log "github.com/sirupsen/logrus"

	"github.com/koru3d/koru/asset"
	"github.com/koru3d/koru/gfx"
	"github.com/koru3d/koru/model"
	"github.com/koru3d/koru/render"
)

// spinRate is radians per second.
const spinRate = 0.3

type entity struct {
	object  *model.Object
	mesh    *render.Mesh
	texture *render.Texture
}

type scene struct {
	camera   model.Camera
	entities []entity
	fallback *render.Texture
}

type placement struct {
	mesh, texture string
	at            glm.Vec3
}

var placements = []placement{
	{mesh: "suzanne.kra", texture: "suzanne_albedo.kra", at: glm.Vec3{-1.5, 0, 0}},
	{mesh: "cube.kra", texture: "checker.kra", at: glm.Vec3{1.5, 0, 0}},
}

// loadScene uploads what loads and skips meshes that don't. Missing
// textures are replaced with the fallback.
func loadScene(dev *gfx.Device, loader *asset.Loader) *scene {
	s := &scene{
		camera: model.Camera{
			Eye:  glm.Vec3{0, 1.5, 5},
			Up:   glm.Vec3{0, 1, 0},
			FovY: 60,
			Near: 0.1,
			Far:  100,
		},
		fallback: render.FallbackTexture(dev),
	}
	for _, p := range placements {
		data, ok := loader.LoadMesh(p.mesh)
		if !ok {
			continue
		}
		mesh, err := render.NewMesh(dev, data, nil)
		if err != nil {
			log.WithError(err).WithField("asset", p.mesh).Warn("mesh upload skipped")
			continue
		}
		t := model.Identity()
		t.Translation = p.at
		s.entities = append(s.entities, entity{
			object:  model.NewObject(t),
			mesh:    mesh,
			texture: render.LoadTexture(dev, loader, p.texture, gfx.DefaultSampler, s.fallback),
		})
	}
	log.WithField("entities", len(s.entities)).Info("scene loaded")
	return s
}

func (s *scene) update(dt time.Duration) {
	spin := glm.QuatRotate(float32(dt.Seconds())*spinRate, glm.Vec3{0, 1, 0})
	for _, e := range s.entities {
		e.object.Rotate(spin)
	}
}

func (s *scene) ViewProjection(aspect float32) glm.Mat4 {
	return s.camera.ViewProjection(aspect)
}

func (s *scene) DrawItems() []render.DrawItem {
	items := make([]render.DrawItem, 0, len(s.entities))
	for _, e := range s.entities {
		items = append(items, render.DrawItem{
			Mesh:      e.mesh,
			Texture:   e.texture,
			Transform: e.object.Transform().Matrix(),
		})
	}
	return items
}

func (s *scene) release() {
	for _, e := range s.entities {
		e.mesh.Release()
		e.texture.Release()
	}
	s.fallback.Release()
}
