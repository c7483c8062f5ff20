package renderer

import (
	"testing"

	"github.com/spaghettifunk/portalis/engine/renderer/gpu"
	"github.com/spaghettifunk/portalis/engine/renderer/gpu/gputest"
)

func newTestAllocator(t *testing.T, dev *gputest.Device, batch uint32) *DescriptorAllocator {
	t.Helper()
	layout, _ := dev.CreateDescriptorSetLayout(nil)
	a, err := NewDescriptorAllocator(dev, layout, []gpu.DescriptorPoolSize{
		{Type: gpu.DescriptorUniformBuffer, Count: 2},
		{Type: gpu.DescriptorCombinedImageSampler, Count: 1},
	}, batch)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestDescriptorAllocatorGrowsPerBatch(t *testing.T) {
	dev := gputest.NewDevice()
	a := newTestAllocator(t, dev, 15)

	seen := map[gpu.DescriptorSet]bool{}
	tests := []struct {
		pops      int
		wantPools int
	}{
		{1, 1},
		{14, 1},
		{1, 2},
		{15, 3},
		{29, 4},
	}
	for _, tt := range tests {
		for i := 0; i < tt.pops; i++ {
			set, err := a.Pop()
			if err != nil {
				t.Fatalf("Pop() error = %v", err)
			}
			if seen[set] {
				t.Fatal("Pop() returned the same set twice")
			}
			seen[set] = true
		}
		if a.Pools() != tt.wantPools || len(dev.Pools) != tt.wantPools {
			t.Errorf("after %d sets: %d pools (%d on device), want %d", len(seen), a.Pools(), len(dev.Pools), tt.wantPools)
		}
	}

	// Pool sizes are the per-set counts scaled by the batch.
	desc := dev.Pools[0].Desc
	if desc.MaxSets != 15 || desc.Sizes[0].Count != 30 || desc.Sizes[1].Count != 15 {
		t.Errorf("pool desc = %+v, want 15 sets, 30 buffers, 15 samplers", desc)
	}
}

func TestDescriptorAllocatorReusesPushedSets(t *testing.T) {
	dev := gputest.NewDevice()
	a := newTestAllocator(t, dev, 2)
	s1, _ := a.Pop()
	a.Push(s1)
	s2, _ := a.Pop()
	if s1 != s2 {
		t.Error("Pop() did not reuse the pushed set")
	}
	if a.Pools() != 1 {
		t.Errorf("Pools() = %d, want 1", a.Pools())
	}
}

func TestDescriptorAllocatorDestroyFreesAllPools(t *testing.T) {
	dev := gputest.NewDevice()
	a := newTestAllocator(t, dev, 1)
	for i := 0; i < 3; i++ {
		a.Pop()
	}
	a.Destroy()
	for i, p := range dev.Pools {
		if !p.Destroyed {
			t.Errorf("pool %d not destroyed", i)
		}
	}
}
