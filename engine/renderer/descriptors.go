package renderer

import (
	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/portalis/engine/core"
	"github.com/spaghettifunk/portalis/engine/renderer/gpu"
)

// DescriptorAllocator grows a list of fixed-size descriptor pools on demand.
// The number of sets is not known upfront and pools cannot be resized, so a
// new pool sized for a full batch is created whenever the current one runs out.
type DescriptorAllocator struct {
	device    gpu.Device
	layout    gpu.DescriptorSetLayout
	sizes     []gpu.DescriptorPoolSize
	batch     uint32
	pools     []gpu.DescriptorPool
	remaining uint32
	free      []gpu.DescriptorSet
}

// NewDescriptorAllocator takes the descriptor counts of a single set; they are
// scaled by batch for every pool.
func NewDescriptorAllocator(device gpu.Device, layout gpu.DescriptorSetLayout, perSet []gpu.DescriptorPoolSize, batch uint32) (*DescriptorAllocator, error) {
	if batch == 0 {
		return nil, core.InvalidDataf("descriptor batch size must be positive")
	}
	sizes := make([]gpu.DescriptorPoolSize, len(perSet))
	for i, s := range perSet {
		sizes[i] = gpu.DescriptorPoolSize{Type: s.Type, Count: s.Count * batch}
	}
	return &DescriptorAllocator{
		device: device,
		layout: layout,
		sizes:  sizes,
		batch:  batch,
	}, nil
}

// Pop returns a set that is not handed out to anyone else.
func (a *DescriptorAllocator) Pop() (gpu.DescriptorSet, error) {
	if n := len(a.free); n > 0 {
		set := a.free[n-1]
		a.free = a.free[:n-1]
		return set, nil
	}
	if a.remaining == 0 {
		pool, err := a.device.CreateDescriptorPool(gpu.DescriptorPoolDesc{
			MaxSets: a.batch,
			Sizes:   a.sizes,
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to grow descriptor pools")
		}
		a.pools = append(a.pools, pool)
		a.remaining = a.batch
		core.LogDebug("descriptor pool %d allocated for %d sets", len(a.pools), a.batch)
	}
	set, err := a.pools[len(a.pools)-1].Allocate(a.layout)
	if err != nil {
		return nil, errors.Wrap(err, "failed to allocate descriptor set")
	}
	a.remaining--
	return set, nil
}

// Push hands a set back for reuse. The caller must make sure no in-flight
// frame still references it.
func (a *DescriptorAllocator) Push(set gpu.DescriptorSet) {
	a.free = append(a.free, set)
}

// Pools is the number of pools created so far.
func (a *DescriptorAllocator) Pools() int {
	return len(a.pools)
}

// Destroy frees every pool, and with them every set ever popped.
func (a *DescriptorAllocator) Destroy() {
	for _, p := range a.pools {
		p.Destroy()
	}
	a.pools = nil
	a.free = nil
	a.remaining = 0
}
