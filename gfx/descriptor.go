package gfx

import "github.com/sirupsen/logrus"

// DescriptorBinding declares one binding of a descriptor set layout.
type DescriptorBinding struct {
	Binding uint32
	Type    DescriptorType
	Count   uint32
	Stages  ShaderStage
}

// CreateDescriptorSetLayout creates a layout from bindings.
func (d *Device) CreateDescriptorSetLayout(bindings ...DescriptorBinding) *DescriptorSetLayout {
	requires := map[DescriptorType]uint32{}
	for idx := range bindings {
		if bindings[idx].Count == 0 {
			bindings[idx].Count = 1
		}
		requires[bindings[idx].Type] += bindings[idx].Count
	}

	handle, err := d.native.CreateDescriptorSetLayout(bindings)
	d.check(err, "gfx.CreateDescriptorSetLayout()")

	l := &DescriptorSetLayout{
		handle:   handle,
		bindings: bindings,
		requires: requires,
	}
	l.init(d, "descriptor set layout")
	return l
}

// DescriptorSetLayout declares the bindings of a descriptor set.
type DescriptorSetLayout struct {
	resource

	handle   Handle
	bindings []DescriptorBinding
	requires map[DescriptorType]uint32
}

// Bindings returns the declared bindings.
func (l *DescriptorSetLayout) Bindings() []DescriptorBinding {
	return l.bindings
}

// Requires returns how many descriptors of type t a set uses.
func (l *DescriptorSetLayout) Requires(t DescriptorType) uint32 {
	return l.requires[t]
}

// Native returns the driver handle.
func (l *DescriptorSetLayout) Native() Handle {
	return l.handle
}

func (l *DescriptorSetLayout) binding(idx uint32) (DescriptorBinding, bool) {
	for _, b := range l.bindings {
		if b.Binding == idx {
			return b, true
		}
	}
	return DescriptorBinding{}, false
}

// Release implements interface
func (l *DescriptorSetLayout) Release() {
	if !l.drop() {
		return
	}
	l.device.native.DestroyDescriptorSetLayout(l.handle)
	l.finish()
}

// DescriptorPoolConfig sizes a descriptor pool.
type DescriptorPoolConfig struct {
	MaxSets uint32
	Sizes   []DescriptorPoolSize

	// FreeSets allows returning individual sets to the pool.
	FreeSets bool
}

// DefaultDescriptorPoolConfig fits typical material and per-draw sets.
var DefaultDescriptorPoolConfig = DescriptorPoolConfig{
	MaxSets: 64,
	Sizes: []DescriptorPoolSize{
		{Type: DescriptorUniformBuffer, Count: 64},
		{Type: DescriptorCombinedImageSampler, Count: 128},
		{Type: DescriptorStorageBuffer, Count: 32},
		{Type: DescriptorSampledImage, Count: 32},
		{Type: DescriptorSampler, Count: 32},
	},
}

// CreateDescriptorSetPool creates a fixed capacity descriptor pool.
func (d *Device) CreateDescriptorSetPool(cfg DescriptorPoolConfig) *DescriptorSetPool {
	if cfg.MaxSets == 0 {
		d.assertf("gfx: descriptor pool without sets")
	}
	handle, err := d.native.CreateDescriptorPool(DescriptorPoolInfo{
		MaxSets:  cfg.MaxSets,
		Sizes:    cfg.Sizes,
		FreeSets: cfg.FreeSets,
	})
	d.check(err, "gfx.CreateDescriptorPool()")

	left := make(map[DescriptorType]uint32, len(cfg.Sizes))
	for _, s := range cfg.Sizes {
		left[s.Type] += s.Count
	}
	p := &DescriptorSetPool{
		handle:   handle,
		cfg:      cfg,
		setsLeft: cfg.MaxSets,
		left:     left,
	}
	p.init(d, "descriptor pool")
	return p
}

// DescriptorSetPool hands out descriptor sets from a fixed budget of
// sets and descriptors per type.
type DescriptorSetPool struct {
	resource

	handle    Handle
	cfg       DescriptorPoolConfig
	setsLeft  uint32
	left      map[DescriptorType]uint32
	exhausted bool
	sets      []*DescriptorSet
}

// CanAllocate reports whether the remaining budget fits a set of layout.
func (p *DescriptorSetPool) CanAllocate(layout *DescriptorSetLayout) bool {
	if p.exhausted || p.setsLeft == 0 {
		return false
	}
	for t, n := range layout.requires {
		if p.left[t] < n {
			return false
		}
	}
	return true
}

// Allocate returns a set of layout, or false when the pool cannot
// hold it.
func (p *DescriptorSetPool) Allocate(layout *DescriptorSetLayout) (*DescriptorSet, bool) {
	if !p.CanAllocate(layout) {
		return nil, false
	}

	handle, res := p.device.native.AllocateDescriptorSet(p.handle, layout.handle)
	switch res {
	case Success:
	case ErrorOutOfPoolMemory, ErrorFragmentedPool:
		// The driver may run out before the budget says so.
		p.exhausted = true
		return nil, false
	default:
		p.device.check(res, "gfx.AllocateDescriptorSets()")
	}

	p.setsLeft--
	for t, n := range layout.requires {
		p.left[t] -= n
	}
	set := &DescriptorSet{
		pool:   p,
		layout: layout,
		handle: handle,
		bound:  map[uint32][]boundResource{},
	}
	p.sets = append(p.sets, set)
	return set, true
}

// Allocated returns the number of live sets.
func (p *DescriptorSetPool) Allocated() int {
	return len(p.sets)
}

// Free returns set to the pool. Only pools configured with FreeSets
// support it.
func (p *DescriptorSetPool) Free(set *DescriptorSet) {
	if !p.cfg.FreeSets {
		p.device.assertf("gfx: freeing a set from a pool without FreeSets")
	}
	if set.pool != p {
		p.device.assertf("gfx: freeing a set from a different pool")
	}
	if s, ok := set.usage.inFlight(); ok && p.device.trackUsage {
		p.device.assertf("gfx: descriptor set freed while submission %d on the %s queue is in flight",
			s.serial, s.queue.name)
	}
	p.device.check(p.device.native.FreeDescriptorSet(p.handle, set.handle), "gfx.FreeDescriptorSets()")

	for idx, s := range p.sets {
		if s == set {
			p.sets = append(p.sets[:idx], p.sets[idx+1:]...)
			break
		}
	}
	p.setsLeft++
	for t, n := range set.layout.requires {
		p.left[t] += n
	}
	p.exhausted = false
	set.unbindAll()
	set.pool = nil
}

// Native returns the driver handle.
func (p *DescriptorSetPool) Native() Handle {
	return p.handle
}

// Release implements interface. Destroying the pool frees its sets
// and the references they hold.
func (p *DescriptorSetPool) Release() {
	if !p.drop() {
		return
	}
	for _, set := range p.sets {
		if s, ok := set.usage.inFlight(); ok && p.device.trackUsage {
			p.device.assertf("gfx: descriptor pool destroyed while submission %d on the %s queue is in flight",
				s.serial, s.queue.name)
		}
		set.unbindAll()
		set.pool = nil
	}
	p.sets = nil
	p.device.native.DestroyDescriptorPool(p.handle)
	p.finish()
}

// CreateDescriptorAllocator creates a growable allocator whose pools
// are sized by cfg.
func (d *Device) CreateDescriptorAllocator(cfg DescriptorPoolConfig) *DescriptorAllocator {
	return &DescriptorAllocator{
		device: d,
		cfg:    cfg,
	}
}

// DescriptorAllocator hands out descriptor sets from a list of pools,
// appending a pool when all are exhausted. Pools are never shrunk and
// sets are never returned, they live as long as the allocator.
type DescriptorAllocator struct {
	device *Device
	cfg    DescriptorPoolConfig
	pools  []*DescriptorSetPool
}

// Allocate returns a set of layout from the first pool, in creation
// order, that can hold it. It never fails: a set that does not fit a
// fresh pool is a configuration error.
func (a *DescriptorAllocator) Allocate(layout *DescriptorSetLayout) *DescriptorSet {
	for _, pool := range a.pools {
		if set, ok := pool.Allocate(layout); ok {
			return set
		}
	}

	pool := a.device.CreateDescriptorSetPool(a.cfg)
	a.pools = append(a.pools, pool)
	a.device.log.WithFields(logrus.Fields{
		"pools":   len(a.pools),
		"maxSets": a.cfg.MaxSets,
	}).Debug("descriptor allocator grown")

	set, ok := pool.Allocate(layout)
	if !ok {
		a.device.assertf("gfx: descriptor layout does not fit an empty pool of %d sets", a.cfg.MaxSets)
	}
	return set
}

// PoolCount returns the number of pools created so far.
func (a *DescriptorAllocator) PoolCount() int {
	return len(a.pools)
}

// Release destroys every pool and the sets allocated from them.
func (a *DescriptorAllocator) Release() {
	for _, pool := range a.pools {
		pool.Release()
	}
	a.pools = nil
}

type boundResource interface {
	Releasable
	tracker
	Retain()
}

// DescriptorSet binds resources to shader bindings. Written resources
// are retained until overwritten or the owning pool is destroyed.
type DescriptorSet struct {
	pool   *DescriptorSetPool
	layout *DescriptorSetLayout
	handle Handle
	bound  map[uint32][]boundResource

	usage usage
}

// Layout returns the layout the set was allocated with.
func (s *DescriptorSet) Layout() *DescriptorSetLayout {
	return s.layout
}

// Pool returns the pool the set belongs to, nil once freed.
func (s *DescriptorSet) Pool() *DescriptorSetPool {
	return s.pool
}

// Native returns the driver handle.
func (s *DescriptorSet) Native() Handle {
	return s.handle
}

func (s *DescriptorSet) used(q *Queue, serial uint64) {
	s.usage.record(q, serial)
	for _, resources := range s.bound {
		for _, r := range resources {
			r.used(q, serial)
		}
	}
}

func (s *DescriptorSet) write(w NativeDescriptorWrite, resources ...boundResource) {
	if s.pool == nil {
		s.layout.device.assertf("gfx: writing a freed descriptor set")
	}
	b, ok := s.layout.binding(w.Binding)
	if !ok {
		s.layout.device.assertf("gfx: binding %d is not in the set layout", w.Binding)
	}
	w.Type = b.Type
	s.layout.device.native.UpdateDescriptorSet(s.handle, []NativeDescriptorWrite{w})

	for _, r := range resources {
		r.Retain()
	}
	s.unbind(w.Binding)
	s.bound[w.Binding] = resources
}

func (s *DescriptorSet) unbind(binding uint32) {
	for _, r := range s.bound[binding] {
		r.Release()
	}
	delete(s.bound, binding)
}

func (s *DescriptorSet) unbindAll() {
	for binding := range s.bound {
		s.unbind(binding)
	}
}

// WriteBuffer binds size bytes of b from offset. A zero size binds
// the rest of the buffer.
func (s *DescriptorSet) WriteBuffer(binding uint32, b *Buffer, offset, size uint64) {
	if size == 0 {
		size = b.size - offset
	}
	s.write(NativeDescriptorWrite{
		Binding: binding,
		Buffer:  b.handle,
		Offset:  offset,
		Range:   size,
	}, b)
}

// WriteImage binds an image view that shaders access in layout.
func (s *DescriptorSet) WriteImage(binding uint32, view *ImageView, layout ImageLayout) {
	s.write(NativeDescriptorWrite{
		Binding: binding,
		View:    view.handle,
		Layout:  layout,
	}, view)
}

// WriteSampler binds a sampler.
func (s *DescriptorSet) WriteSampler(binding uint32, sampler *Sampler) {
	s.write(NativeDescriptorWrite{
		Binding: binding,
		Sampler: sampler.handle,
	}, sampler)
}

// WriteCombinedImageSampler binds an image view together with a sampler.
func (s *DescriptorSet) WriteCombinedImageSampler(binding uint32, view *ImageView, sampler *Sampler, layout ImageLayout) {
	s.write(NativeDescriptorWrite{
		Binding: binding,
		View:    view.handle,
		Layout:  layout,
		Sampler: sampler.handle,
	}, view, sampler)
}
