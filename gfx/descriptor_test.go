package gfx_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	qt "github.com/frankban/quicktest"

	"github.com/koru3d/koru/gfx"
	"github.com/koru3d/koru/gfx/soft"
)

func uniformPool(sets, uniforms uint32) gfx.DescriptorPoolConfig {
	return gfx.DescriptorPoolConfig{
		MaxSets: sets,
		Sizes:   []gfx.DescriptorPoolSize{{Type: gfx.DescriptorUniformBuffer, Count: uniforms}},
	}
}

func TestDescriptorAllocatorGrows(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, soft.Config{}, false)
	defer f.device.Release()

	layout := f.device.CreateDescriptorSetLayout(gfx.DescriptorBinding{
		Binding: 0,
		Type:    gfx.DescriptorUniformBuffer,
		Stages:  gfx.ShaderStageVertex,
	})
	defer layout.Release()
	c.Assert(layout.Requires(gfx.DescriptorUniformBuffer), qt.Equals, uint32(1))

	alloc := f.device.CreateDescriptorAllocator(uniformPool(2, 2))
	sets := make([]*gfx.DescriptorSet, 5)
	for idx := range sets {
		sets[idx] = alloc.Allocate(layout)
	}
	c.Assert(alloc.PoolCount(), qt.Equals, 3)
	c.Assert(sets[0].Pool(), qt.Equals, sets[1].Pool())
	c.Assert(sets[2].Pool(), qt.Not(qt.Equals), sets[1].Pool())
	c.Assert(sets[4].Pool().Allocated(), qt.Equals, 1)
	c.Assert(f.native.Live()["descriptor set"], qt.Equals, 5)

	grown := 0
	for _, e := range f.hook.AllEntries() {
		if e.Message == "descriptor allocator grown" {
			grown++
		}
	}
	c.Assert(grown, qt.Equals, 3)

	alloc.Release()
	c.Assert(f.native.Live()["descriptor set"], qt.Equals, 0)
	c.Assert(f.native.Live()["descriptor pool"], qt.Equals, 0)
}

func TestDescriptorAllocatorRejectsOversizedLayout(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, soft.Config{}, false)
	defer f.device.Release()

	layout := f.device.CreateDescriptorSetLayout(gfx.DescriptorBinding{
		Binding: 0,
		Type:    gfx.DescriptorUniformBuffer,
		Count:   4,
	})
	defer layout.Release()

	alloc := f.device.CreateDescriptorAllocator(uniformPool(8, 2))
	err := expectFatal(c, func() { alloc.Allocate(layout) })
	c.Assert(err, qt.ErrorMatches, `.*does not fit an empty pool of 8 sets.*`)
	c.Assert(errors.HasAssertionFailure(err), qt.IsTrue)
	alloc.Release()
}

func TestDescriptorPoolBudget(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, soft.Config{}, false)
	defer f.device.Release()

	double := f.device.CreateDescriptorSetLayout(gfx.DescriptorBinding{
		Binding: 0,
		Type:    gfx.DescriptorUniformBuffer,
		Count:   2,
	})
	defer double.Release()
	sampled := f.device.CreateDescriptorSetLayout(gfx.DescriptorBinding{
		Binding: 0,
		Type:    gfx.DescriptorSampledImage,
	})
	defer sampled.Release()

	cfg := uniformPool(4, 3)
	cfg.FreeSets = true
	pool := f.device.CreateDescriptorSetPool(cfg)
	defer pool.Release()

	c.Assert(pool.CanAllocate(sampled), qt.IsFalse)

	first, ok := pool.Allocate(double)
	c.Assert(ok, qt.IsTrue)
	c.Assert(pool.CanAllocate(double), qt.IsFalse)
	_, ok = pool.Allocate(double)
	c.Assert(ok, qt.IsFalse)
	c.Assert(f.native.Live()["descriptor set"], qt.Equals, 1)

	pool.Free(first)
	c.Assert(first.Pool(), qt.IsNil)
	c.Assert(pool.Allocated(), qt.Equals, 0)
	_, ok = pool.Allocate(double)
	c.Assert(ok, qt.IsTrue)
}

func TestDescriptorPoolWithoutFree(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, soft.Config{}, false)
	defer f.device.Release()

	layout := f.device.CreateDescriptorSetLayout(gfx.DescriptorBinding{Binding: 0, Type: gfx.DescriptorUniformBuffer})
	defer layout.Release()
	pool := f.device.CreateDescriptorSetPool(uniformPool(1, 1))
	defer pool.Release()

	set, ok := pool.Allocate(layout)
	c.Assert(ok, qt.IsTrue)
	err := expectFatal(c, func() { pool.Free(set) })
	c.Assert(err, qt.ErrorMatches, `.*without FreeSets.*`)
}

func TestDescriptorWritesRetainResources(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, soft.Config{}, false)
	defer f.device.Release()

	layout := f.device.CreateDescriptorSetLayout(
		gfx.DescriptorBinding{Binding: 0, Type: gfx.DescriptorUniformBuffer},
		gfx.DescriptorBinding{Binding: 1, Type: gfx.DescriptorCombinedImageSampler},
	)
	defer layout.Release()
	pool := f.device.CreateDescriptorSetPool(gfx.DefaultDescriptorPoolConfig)

	first := f.device.CreateBuffer(256, gfx.BufferUsageUniform, true)
	second := f.device.CreateBuffer(256, gfx.BufferUsageUniform, true)
	img := f.device.CreateImage(gfx.ImageDesc{
		Width:  4,
		Height: 4,
		Format: gfx.FormatR8G8B8A8Unorm,
		Usage:  gfx.ImageUsageSampled,
	})
	view := f.device.CreateImageView(img, gfx.ImageViewDesc{})
	sampler := f.device.CreateSampler(gfx.DefaultSampler)

	set, ok := pool.Allocate(layout)
	c.Assert(ok, qt.IsTrue)

	set.WriteBuffer(0, first, 64, 0)
	c.Assert(first.References(), qt.Equals, 2)
	w := soft.Writes(set.Native())[0]
	c.Assert(w.Type, qt.Equals, gfx.DescriptorUniformBuffer)
	c.Assert(w.Offset, qt.Equals, uint64(64))
	c.Assert(w.Range, qt.Equals, uint64(192))

	set.WriteBuffer(0, second, 0, 128)
	c.Assert(first.References(), qt.Equals, 1)
	c.Assert(second.References(), qt.Equals, 2)

	set.WriteCombinedImageSampler(1, view, sampler, gfx.LayoutShaderReadOnly)
	c.Assert(view.References(), qt.Equals, 2)
	c.Assert(sampler.References(), qt.Equals, 2)
	c.Assert(soft.Writes(set.Native())[1].Layout, qt.Equals, gfx.LayoutShaderReadOnly)

	err := expectFatal(c, func() { set.WriteSampler(5, sampler) })
	c.Assert(err, qt.ErrorMatches, `.*binding 5 is not in the set layout.*`)

	// Dropping the caller's references leaves the set's.
	first.Release()
	second.Release()
	sampler.Release()
	view.Release()
	img.Release()
	c.Assert(f.native.Live()["buffer"], qt.Equals, 1)
	c.Assert(f.native.Live()["image"], qt.Equals, 1)

	pool.Release()
	c.Assert(f.native.Live()["buffer"], qt.Equals, 0)
	c.Assert(f.native.Live()["image"], qt.Equals, 0)
	c.Assert(f.native.Live()["sampler"], qt.Equals, 0)
}

func TestDescriptorPoolInFlight(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, soft.Config{}, true)
	defer f.device.Release()

	layout := f.device.CreateDescriptorSetLayout(gfx.DescriptorBinding{Binding: 0, Type: gfx.DescriptorUniformBuffer})
	defer layout.Release()
	vs := mustShader(c, f.device, gfx.ShaderStageVertex)
	defer vs.Release()
	pipeline := f.device.CreatePipelineForFormats(gfx.PipelineDesc{
		Stages:     []gfx.ShaderStageDesc{{Shader: vs}},
		SetLayouts: []*gfx.DescriptorSetLayout{layout},
	}, []gfx.Format{gfx.FormatR8G8B8A8Unorm}, gfx.FormatUndefined)
	defer pipeline.Release()

	cfg := uniformPool(2, 2)
	cfg.FreeSets = true
	pool := f.device.CreateDescriptorSetPool(cfg)
	set, _ := pool.Allocate(layout)
	buf := f.device.CreateBuffer(64, gfx.BufferUsageUniform, true)
	set.WriteBuffer(0, buf, 0, 0)
	buf.Release()

	queue := f.device.GetQueue(gfx.QueueGraphics)
	cb := queue.CreateCommandBuffer(gfx.LevelPrimary)
	defer cb.Release()
	cb.BeginRecording()
	cb.BindPipeline(pipeline)
	cb.BindDescriptorSets(0, set)
	cb.EndRecording()

	f.native.Stall(true)
	queue.Submit(nil, cb)

	err := expectFatal(c, func() { pool.Free(set) })
	c.Assert(err, qt.ErrorMatches, `.*descriptor set freed while submission 1 on the graphics queue is in flight.*`)

	queue.WaitIdle()
	pool.Free(set)
	c.Assert(f.native.Live()["buffer"], qt.Equals, 0)
	pool.Release()
}
