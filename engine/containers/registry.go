package containers

import (
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

var ErrNotFound = errors.New("handle not found")

var registryIDs atomic.Uint32

// Handle names a live entry of a Registry whose handles are tagged with K.
// The zero Handle is never issued.
type Handle[K any] struct {
	registry   uint32
	index      uint32
	generation uint32
}

func (h Handle[K]) IsZero() bool {
	return h.generation == 0
}

// Index is the slot the handle points to. Slots are reused, indices are not unique over time.
func (h Handle[K]) Index() uint32 {
	return h.index
}

func (h Handle[K]) Generation() uint32 {
	return h.generation
}

type slot[T any] struct {
	value      T
	generation uint32
	live       bool
}

// Registry is an arena of slots with generation counters. Removing an entry
// bumps its slot's generation, so every handle issued for it turns stale.
// K only tags the handles, keeping handles of different registries apart.
type Registry[K, T any] struct {
	id    uint32
	slots []slot[T]
	free  []uint32
	count int
}

func NewRegistry[K, T any]() *Registry[K, T] {
	return &Registry[K, T]{
		id: registryIDs.Add(1),
	}
}

// Insert stores value in a free slot, reusing released slots first.
func (r *Registry[K, T]) Insert(value T) Handle[K] {
	var index uint32
	if n := len(r.free); n > 0 {
		index = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		index = uint32(len(r.slots))
		r.slots = append(r.slots, slot[T]{})
	}

	s := &r.slots[index]
	s.generation++
	s.value = value
	s.live = true
	r.count++
	return Handle[K]{registry: r.id, index: index, generation: s.generation}
}

func (r *Registry[K, T]) Get(h Handle[K]) (T, error) {
	s, err := r.lookup(h)
	if err != nil {
		var zero T
		return zero, err
	}
	return s.value, nil
}

// Remove releases the slot and returns the stored value to the caller, who
// owns it from now on.
func (r *Registry[K, T]) Remove(h Handle[K]) (T, error) {
	var zero T
	s, err := r.lookup(h)
	if err != nil {
		return zero, err
	}
	value := s.value
	s.value = zero
	s.live = false
	r.free = append(r.free, h.index)
	r.count--
	return value, nil
}

// Len is the number of live entries.
func (r *Registry[K, T]) Len() int {
	return r.count
}

// Each visits the live entries in slot order.
func (r *Registry[K, T]) Each(fn func(h Handle[K], value T)) {
	for i := range r.slots {
		s := &r.slots[i]
		if !s.live {
			continue
		}
		fn(Handle[K]{registry: r.id, index: uint32(i), generation: s.generation}, s.value)
	}
}

// Drain removes every live entry, handing each one to fn.
func (r *Registry[K, T]) Drain(fn func(value T)) {
	r.Each(func(h Handle[K], value T) {
		r.Remove(h)
		fn(value)
	})
}

func (r *Registry[K, T]) lookup(h Handle[K]) (*slot[T], error) {
	if h.IsZero() {
		return nil, errors.Wrap(ErrNotFound, "zero handle")
	}
	if h.registry != r.id {
		panic(errors.AssertionFailedf("handle %d:%d belongs to registry %d, not %d", h.index, h.generation, h.registry, r.id))
	}
	if int(h.index) >= len(r.slots) {
		return nil, errors.Wrapf(ErrNotFound, "handle %d:%d out of range", h.index, h.generation)
	}
	s := &r.slots[h.index]
	if !s.live || s.generation != h.generation {
		return nil, errors.Wrapf(ErrNotFound, "handle %d:%d is stale", h.index, h.generation)
	}
	return s, nil
}
