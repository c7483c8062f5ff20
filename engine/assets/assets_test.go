package assets

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spaghettifunk/portalis/engine/assets/loaders"
	"github.com/spaghettifunk/portalis/engine/renderer/metadata"
	"github.com/spaghettifunk/portalis/engine/systems"
)

func writeShader(t *testing.T, dir, file string, word uint32, packed bool) {
	t.Helper()
	code := binary.LittleEndian.AppendUint32(nil, 0x07230203)
	code = binary.LittleEndian.AppendUint32(code, word)
	if packed {
		var err error
		if code, err = loaders.CompressSPIRV(code); err != nil {
			t.Fatal(err)
		}
		file += loaders.CompressedSuffix
	}
	if err := os.WriteFile(filepath.Join(dir, file), code, 0o644); err != nil {
		t.Fatal(err)
	}
}

func newRoot(t *testing.T) (string, string) {
	t.Helper()
	root := t.TempDir()
	shaders := filepath.Join(root, shaderDir)
	if err := os.MkdirAll(shaders, 0o755); err != nil {
		t.Fatal(err)
	}
	return root, shaders
}

func TestLoadShaderPairMixesPackedAndPlain(t *testing.T) {
	root, shaders := newRoot(t)
	writeShader(t, shaders, "material"+vertexSuffix, 1, false)
	writeShader(t, shaders, "material"+fragmentSuffix, 2, true)

	am := NewAssetManager(root, nil)
	pair, err := am.LoadShaderPair("material")
	if err != nil {
		t.Fatalf("LoadShaderPair() error = %v", err)
	}
	if got := binary.LittleEndian.Uint32(pair.Vertex[4:]); got != 1 {
		t.Errorf("vertex word = %d, want 1", got)
	}
	if got := binary.LittleEndian.Uint32(pair.Fragment[4:]); got != 2 {
		t.Errorf("fragment word = %d, want 2", got)
	}

	if _, err := am.LoadShaderPair("missing"); err == nil {
		t.Error("LoadShaderPair(missing) succeeded")
	}
}

func TestLoadAsyncDeliversOnUpdate(t *testing.T) {
	root, shaders := newRoot(t)
	writeShader(t, shaders, "portal"+vertexSuffix, 9, false)

	jobs, err := systems.NewJobSystem(2, 4)
	if err != nil {
		t.Fatal(err)
	}
	am := NewAssetManager(root, jobs)

	var got *metadata.Resource
	var gotErr error
	if err := am.LoadAsync("portal"+vertexSuffix, metadata.ResourceTypeShader, nil, func(r *metadata.Resource, err error) {
		got, gotErr = r, err
	}); err != nil {
		t.Fatal(err)
	}
	jobs.Shutdown()
	if got != nil {
		t.Fatal("callback ran before Update")
	}
	jobs.Update()
	if gotErr != nil || got == nil {
		t.Fatalf("LoadAsync() = %v, %v", got, gotErr)
	}
	if !strings.HasSuffix(got.FullPath, "portal"+vertexSuffix) {
		t.Errorf("FullPath = %q", got.FullPath)
	}
}

func TestShaderPairName(t *testing.T) {
	tests := []struct {
		file string
		want string
		ok   bool
	}{
		{"material.vert.spv", "material", true},
		{"material.frag.spv.lz4", "material", true},
		{"material.glsl", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			got, ok := shaderPairName(tt.file)
			if got != tt.want || ok != tt.ok {
				t.Errorf("shaderPairName(%q) = %q, %v, want %q, %v", tt.file, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestWatchReportsChangedShaders(t *testing.T) {
	root, shaders := newRoot(t)
	am := NewAssetManager(root, nil)
	if err := am.Watch(); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	defer am.Close()

	writeShader(t, shaders, "material"+fragmentSuffix, 3, false)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if names := am.ChangedShaders(); len(names) > 0 {
			if names[0] != "material" {
				t.Errorf("ChangedShaders() = %v, want [material]", names)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("no change reported")
}
