package containers

import (
	"math/rand"
	"testing"

	"github.com/cockroachdb/errors"
)

type testTag struct{}

func TestRegistryInsertGetRemove(t *testing.T) {
	r := NewRegistry[testTag, string]()
	a := r.Insert("a")
	b := r.Insert("b")
	if a == b {
		t.Fatalf("Insert() returned the same handle twice: %v", a)
	}
	if v, err := r.Get(b); err != nil || v != "b" {
		t.Errorf("Get(b) = %q, %v; want \"b\", nil", v, err)
	}

	v, err := r.Remove(a)
	if err != nil || v != "a" {
		t.Fatalf("Remove(a) = %q, %v; want \"a\", nil", v, err)
	}
	if _, err := r.Get(a); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(a) after Remove error = %v, want ErrNotFound", err)
	}
	if _, err := r.Remove(a); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Remove(a) error = %v, want ErrNotFound", err)
	}

	// The released slot is reused under a new generation.
	c := r.Insert("c")
	if c.Index() != a.Index() {
		t.Errorf("Insert() did not reuse slot %d, got %d", a.Index(), c.Index())
	}
	if c.Generation() == a.Generation() {
		t.Errorf("reused slot kept generation %d", a.Generation())
	}
	if _, err := r.Get(a); !errors.Is(err, ErrNotFound) {
		t.Errorf("stale handle resolved after slot reuse: %v", err)
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
}

func TestRegistryZeroHandle(t *testing.T) {
	r := NewRegistry[testTag, int]()
	r.Insert(1)
	var h Handle[testTag]
	if _, err := r.Get(h); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(zero) error = %v, want ErrNotFound", err)
	}
}

func TestRegistryForeignHandlePanics(t *testing.T) {
	a := NewRegistry[testTag, int]()
	b := NewRegistry[testTag, int]()
	h := a.Insert(1)
	defer func() {
		if recover() == nil {
			t.Error("Get() with a handle of another registry did not panic")
		}
	}()
	b.Get(h)
}

func TestRegistryLiveHandlesNeverAlias(t *testing.T) {
	r := NewRegistry[testTag, int]()
	rng := rand.New(rand.NewSource(7))
	live := map[Handle[testTag]]int{}
	var order []Handle[testTag]

	for i := 0; i < 2000; i++ {
		if len(order) > 0 && rng.Intn(3) == 0 {
			j := rng.Intn(len(order))
			h := order[j]
			order = append(order[:j], order[j+1:]...)
			if v, err := r.Remove(h); err != nil || v != live[h] {
				t.Fatalf("Remove(%v) = %d, %v; want %d", h, v, err, live[h])
			}
			delete(live, h)
			if _, err := r.Get(h); err == nil {
				t.Fatalf("Get(%v) succeeded after Remove", h)
			}
			continue
		}
		h := r.Insert(i)
		if _, dup := live[h]; dup {
			t.Fatalf("Insert() issued live handle %v twice", h)
		}
		live[h] = i
		order = append(order, h)
	}

	if r.Len() != len(live) {
		t.Errorf("Len() = %d, want %d", r.Len(), len(live))
	}
	seen := 0
	r.Each(func(h Handle[testTag], v int) {
		seen++
		if live[h] != v {
			t.Errorf("Each() visited %v = %d, want %d", h, v, live[h])
		}
	})
	if seen != len(live) {
		t.Errorf("Each() visited %d entries, want %d", seen, len(live))
	}
}

func TestRegistryDrain(t *testing.T) {
	r := NewRegistry[testTag, int]()
	for i := 0; i < 4; i++ {
		r.Insert(i)
	}
	sum := 0
	r.Drain(func(v int) { sum += v })
	if sum != 6 || r.Len() != 0 {
		t.Errorf("Drain() sum = %d, Len() = %d; want 6, 0", sum, r.Len())
	}
}
