package engine

import (
	"github.com/spaghettifunk/portalis/engine/assets"
	"github.com/spaghettifunk/portalis/engine/core"
	"github.com/spaghettifunk/portalis/engine/renderer/metadata"
)

type materialStore interface {
	AddMaterial(vertex, fragment []byte, drawType metadata.DrawType) (metadata.MaterialHandle, error)
	RemoveMaterial(h metadata.MaterialHandle) error
}

type shaderSource interface {
	LoadShaderPair(name string) (*assets.ShaderPair, error)
	ChangedShaders() []string
}

// MaterialRef names a material built from a shader pair. Handle changes
// when the shaders are reloaded, so read it when building each frame.
type MaterialRef struct {
	Name     string
	DrawType metadata.DrawType
	Handle   metadata.MaterialHandle
}

type materialKey struct {
	name     string
	drawType metadata.DrawType
}

// MaterialLibrary builds materials from shader pairs and rebuilds them when
// their files change.
type MaterialLibrary struct {
	store     materialStore
	shaders   shaderSource
	materials map[materialKey]*MaterialRef
}

func NewMaterialLibrary(store materialStore, shaders shaderSource) *MaterialLibrary {
	return &MaterialLibrary{
		store:     store,
		shaders:   shaders,
		materials: make(map[materialKey]*MaterialRef),
	}
}

// Load returns the material of the shader pair name drawn as drawType,
// building it on first use.
func (l *MaterialLibrary) Load(name string, drawType metadata.DrawType) (*MaterialRef, error) {
	key := materialKey{name: name, drawType: drawType}
	if ref, ok := l.materials[key]; ok {
		return ref, nil
	}
	pair, err := l.shaders.LoadShaderPair(name)
	if err != nil {
		return nil, err
	}
	h, err := l.store.AddMaterial(pair.Vertex, pair.Fragment, drawType)
	if err != nil {
		return nil, err
	}
	ref := &MaterialRef{Name: name, DrawType: drawType, Handle: h}
	l.materials[key] = ref
	return ref, nil
}

// ReloadChanged rebuilds every loaded material whose shaders changed. A
// material whose new shaders fail to load or compile keeps the old ones.
func (l *MaterialLibrary) ReloadChanged() {
	for _, name := range l.shaders.ChangedShaders() {
		var pair *assets.ShaderPair
		for _, drawType := range []metadata.DrawType{metadata.DrawTypeTriangles, metadata.DrawTypeLines, metadata.DrawTypePoints} {
			ref, ok := l.materials[materialKey{name: name, drawType: drawType}]
			if !ok {
				continue
			}
			if pair == nil {
				var err error
				if pair, err = l.shaders.LoadShaderPair(name); err != nil {
					core.LogError("reload of material `%s` failed: %s", name, err)
					break
				}
			}
			h, err := l.store.AddMaterial(pair.Vertex, pair.Fragment, drawType)
			if err != nil {
				core.LogError("reload of material `%s` (%s) failed: %s", name, drawType, err)
				continue
			}
			if err := l.store.RemoveMaterial(ref.Handle); err != nil {
				core.LogWarn("failed to remove the old material `%s` (%s): %s", name, drawType, err)
			}
			ref.Handle = h
			core.LogInfo("Material `%s` (%s) reloaded.", name, drawType)
		}
	}
}
