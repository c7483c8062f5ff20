package engine

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/portalis/engine/assets"
	"github.com/spaghettifunk/portalis/engine/containers"
	"github.com/spaghettifunk/portalis/engine/renderer/metadata"
)

type fakeStore struct {
	materials *containers.Registry[metadata.MaterialTag, string]
	failAdd   bool
}

func (s *fakeStore) AddMaterial(vertex, fragment []byte, drawType metadata.DrawType) (metadata.MaterialHandle, error) {
	if s.failAdd {
		return metadata.MaterialHandle{}, errors.New("bad shader")
	}
	return s.materials.Insert(string(vertex) + "/" + drawType.String()), nil
}

func (s *fakeStore) RemoveMaterial(h metadata.MaterialHandle) error {
	_, err := s.materials.Remove(h)
	return err
}

type fakeShaders struct {
	version string
	changed []string
	loads   int
}

func (f *fakeShaders) LoadShaderPair(name string) (*assets.ShaderPair, error) {
	f.loads++
	if name == "missing" {
		return nil, errors.New("not found")
	}
	return &assets.ShaderPair{Name: name, Vertex: []byte(name + f.version), Fragment: []byte("frag")}, nil
}

func (f *fakeShaders) ChangedShaders() []string {
	c := f.changed
	f.changed = nil
	return c
}

func TestMaterialLibraryLoadCaches(t *testing.T) {
	store := &fakeStore{materials: containers.NewRegistry[metadata.MaterialTag, string]()}
	shaders := &fakeShaders{version: "1"}
	lib := NewMaterialLibrary(store, shaders)

	a, err := lib.Load("material", metadata.DrawTypeTriangles)
	if err != nil {
		t.Fatal(err)
	}
	b, err := lib.Load("material", metadata.DrawTypeTriangles)
	if err != nil {
		t.Fatal(err)
	}
	if a != b || shaders.loads != 1 {
		t.Errorf("second Load() built the material again")
	}
	if _, err := lib.Load("missing", metadata.DrawTypeTriangles); err == nil {
		t.Error("Load(missing) succeeded")
	}
}

func TestMaterialLibraryReload(t *testing.T) {
	store := &fakeStore{materials: containers.NewRegistry[metadata.MaterialTag, string]()}
	shaders := &fakeShaders{version: "1"}
	lib := NewMaterialLibrary(store, shaders)
	ref, err := lib.Load("material", metadata.DrawTypeLines)
	if err != nil {
		t.Fatal(err)
	}
	old := ref.Handle

	shaders.version = "2"
	shaders.changed = []string{"material", "unused"}
	lib.ReloadChanged()

	if ref.Handle == old {
		t.Fatal("handle unchanged after reload")
	}
	if _, err := store.materials.Get(old); err == nil {
		t.Error("old material still registered")
	}
	if v, err := store.materials.Get(ref.Handle); err != nil || v != "material2/lines" {
		t.Errorf("new material = %q, %v, want material2/lines", v, err)
	}

	// A failing rebuild keeps the working material.
	current := ref.Handle
	store.failAdd = true
	shaders.changed = []string{"material"}
	lib.ReloadChanged()
	if ref.Handle != current {
		t.Error("failed reload replaced the handle")
	}
	if _, err := store.materials.Get(current); err != nil {
		t.Errorf("failed reload removed the material: %v", err)
	}
}

func TestMaterialLibraryKeysByDrawType(t *testing.T) {
	store := &fakeStore{materials: containers.NewRegistry[metadata.MaterialTag, string]()}
	shaders := &fakeShaders{version: "1"}
	lib := NewMaterialLibrary(store, shaders)

	tris, err := lib.Load("unlit", metadata.DrawTypeTriangles)
	if err != nil {
		t.Fatal(err)
	}
	lines, err := lib.Load("unlit", metadata.DrawTypeLines)
	if err != nil {
		t.Fatal(err)
	}
	if tris == lines || tris.Handle == lines.Handle {
		t.Fatal("Load() with another draw type returned the cached material")
	}
	if v, _ := store.materials.Get(lines.Handle); v != "unlit1/lines" {
		t.Errorf("lines material = %q, want unlit1/lines", v)
	}

	// Both variants follow a shader change.
	shaders.version = "2"
	shaders.changed = []string{"unlit"}
	lib.ReloadChanged()
	for _, ref := range []*MaterialRef{tris, lines} {
		want := "unlit2/" + ref.DrawType.String()
		if v, err := store.materials.Get(ref.Handle); err != nil || v != want {
			t.Errorf("reloaded %s material = %q, %v, want %q", ref.DrawType, v, err, want)
		}
	}
	if store.materials.Len() != 2 {
		t.Errorf("%d materials registered, want 2", store.materials.Len())
	}
}
