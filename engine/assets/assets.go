package assets

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/portalis/engine/assets/loaders"
	"github.com/spaghettifunk/portalis/engine/core"
	"github.com/spaghettifunk/portalis/engine/renderer/metadata"
	"github.com/spaghettifunk/portalis/engine/systems"
)

const (
	shaderDir  = "shaders"
	textureDir = "textures"
	modelDir   = "models"

	vertexSuffix   = ".vert.spv"
	fragmentSuffix = ".frag.spv"
)

// ShaderPair is the SPIR-V code of one material.
type ShaderPair struct {
	Name     string
	Vertex   []byte
	Fragment []byte
}

// AssetManager resolves asset names under a root directory, decodes them on
// the job system and watches the shader directory for changes.
type AssetManager struct {
	root    string
	jobs    *systems.JobSystem
	loaders map[metadata.ResourceType]Loader

	mutex   sync.Mutex
	changed map[string]struct{}

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

func NewAssetManager(root string, jobs *systems.JobSystem) *AssetManager {
	am := &AssetManager{
		root:    root,
		jobs:    jobs,
		loaders: make(map[metadata.ResourceType]Loader),
		changed: make(map[string]struct{}),
	}
	// Register loaders
	am.registerLoader(metadata.ResourceTypeShader, &loaders.ShaderLoader{})
	am.registerLoader(metadata.ResourceTypeImage, &loaders.ImageLoader{})
	am.registerLoader(metadata.ResourceTypeMesh, &loaders.ModelLoader{})
	return am
}

// Register loaders for each asset type
func (am *AssetManager) registerLoader(assetType metadata.ResourceType, loader Loader) {
	am.loaders[assetType] = loader
}

// Path resolves the file of an asset. Shaders fall back to the lz4 packed
// file when the plain one is missing.
func (am *AssetManager) Path(name string, resourceType metadata.ResourceType) (string, error) {
	var path string
	switch resourceType {
	case metadata.ResourceTypeShader:
		path = filepath.Join(am.root, shaderDir, name)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			packed := path + loaders.CompressedSuffix
			if _, err := os.Stat(packed); err == nil {
				path = packed
			}
		}
	case metadata.ResourceTypeImage:
		path = filepath.Join(am.root, textureDir, name)
	case metadata.ResourceTypeMesh:
		path = filepath.Join(am.root, modelDir, name)
	default:
		return "", core.InvalidDataf("no asset directory for resource type %s", resourceType)
	}
	return path, nil
}

// Load an asset using the appropriate loader
func (am *AssetManager) Load(name string, resourceType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	loader, ok := am.loaders[resourceType]
	if !ok {
		return nil, core.InvalidDataf("no loader registered for asset type %s", resourceType)
	}
	path, err := am.Path(name, resourceType)
	if err != nil {
		return nil, err
	}
	res, err := loader.Load(path, params)
	if err != nil {
		return nil, err
	}
	core.LogDebug("Loaded %s `%s` (%d bytes).", resourceType, path, res.DataSize)
	return res, nil
}

// LoadAsync decodes the asset on the job system. done runs from the job
// system's Update, on the thread that drives the frame loop.
func (am *AssetManager) LoadAsync(name string, resourceType metadata.ResourceType, params interface{}, done func(*metadata.Resource, error)) error {
	return am.jobs.Submit(metadata.JobInfo{
		Priority:  metadata.JOB_PRIORITY_NORMAL,
		ParamData: params,
		EntryPoint: func(p interface{}) (interface{}, error) {
			return am.Load(name, resourceType, p)
		},
		OnSuccess: func(result interface{}) { done(result.(*metadata.Resource), nil) },
		OnFail:    func(err error) { done(nil, err) },
	})
}

// LoadShaderPair reads <name>.vert.spv and <name>.frag.spv.
func (am *AssetManager) LoadShaderPair(name string) (*ShaderPair, error) {
	vert, err := am.Load(name+vertexSuffix, metadata.ResourceTypeShader, nil)
	if err != nil {
		return nil, err
	}
	frag, err := am.Load(name+fragmentSuffix, metadata.ResourceTypeShader, nil)
	if err != nil {
		return nil, err
	}
	return &ShaderPair{Name: name, Vertex: vert.Data.([]byte), Fragment: frag.Data.([]byte)}, nil
}

// Watch starts reporting changed shader pairs through ChangedShaders.
func (am *AssetManager) Watch() error {
	if am.watcher != nil {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create file watcher")
	}
	dir := filepath.Join(am.root, shaderDir)
	if err := am.watchRecursive(watcher, dir); err != nil {
		watcher.Close()
		return err
	}
	am.watcher = watcher
	am.done = make(chan struct{})
	am.wg.Add(1)
	go am.start()
	core.LogInfo("Watching `%s` for shader changes.", dir)
	return nil
}

func (am *AssetManager) start() {
	defer am.wg.Done()
	for {
		select {
		case e, ok := <-am.watcher.Events:
			if !ok {
				return
			}
			if e.Op&fsnotify.Create != 0 {
				if s, err := os.Stat(e.Name); err == nil && s.IsDir() {
					if err := am.watchRecursive(am.watcher, e.Name); err != nil {
						core.LogWarn("failed to watch `%s`: %s", e.Name, err)
					}
					continue
				}
			}
			// Handle create or modify events
			if e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				am.handleFileEvent(e.Name)
			}

		case err, ok := <-am.watcher.Errors:
			if !ok {
				return
			}
			core.LogError("file watcher: %s", err)

		case <-am.done:
			return
		}
	}
}

// watchRecursive adds all directories under the given one to the watch list.
func (am *AssetManager) watchRecursive(watcher *fsnotify.Watcher, path string) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return watcher.Add(walkPath)
		}
		return nil
	})
}

// Handle the creation or modification of a file
func (am *AssetManager) handleFileEvent(path string) {
	name, ok := shaderPairName(filepath.Base(path))
	if !ok {
		return
	}
	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.changed[name] = struct{}{}
}

// ChangedShaders returns, once, the names of shader pairs that changed
// since the last call.
func (am *AssetManager) ChangedShaders() []string {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	if len(am.changed) == 0 {
		return nil
	}
	names := make([]string, 0, len(am.changed))
	for name := range am.changed {
		names = append(names, name)
	}
	am.changed = make(map[string]struct{})
	sort.Strings(names)
	return names
}

func shaderPairName(file string) (string, bool) {
	file = strings.TrimSuffix(file, loaders.CompressedSuffix)
	for _, suffix := range []string{vertexSuffix, fragmentSuffix} {
		if strings.HasSuffix(file, suffix) {
			return strings.TrimSuffix(file, suffix), true
		}
	}
	return "", false
}

func (am *AssetManager) Close() error {
	if am.watcher == nil {
		return nil
	}
	close(am.done)
	err := am.watcher.Close()
	am.wg.Wait()
	am.watcher = nil
	return err
}
