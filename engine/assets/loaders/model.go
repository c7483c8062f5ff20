package loaders

import (
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/g3n/engine/loader/obj"
	"github.com/spaghettifunk/portalis/engine/core"
	"github.com/spaghettifunk/portalis/engine/renderer/metadata"
)

type ModelLoader struct{}

// Load parses a Wavefront OBJ file. A material library next to it with the
// same base name provides vertex colors from the diffuse color; faces with
// texture coordinates carry them in the color instead.
func (ml *ModelLoader) Load(path string, params interface{}) (*metadata.Resource, error) {
	objFile, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open model `%s`", path)
	}
	defer objFile.Close()

	var mtl io.Reader = strings.NewReader("")
	mtlPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".mtl"
	if mtlFile, err := os.Open(mtlPath); err == nil {
		defer mtlFile.Close()
		mtl = mtlFile
	}

	data, err := DecodeOBJ(objFile, mtl)
	if err != nil {
		return nil, errors.Wrapf(err, "model `%s`", path)
	}
	return &metadata.Resource{
		Name:     filepath.Base(path),
		FullPath: path,
		Type:     metadata.ResourceTypeMesh,
		DataSize: uint64(len(data.Vertices))*uint64(metadata.VertexStride) + uint64(len(data.Indices))*2,
		Data:     data,
	}, nil
}

type objVertexKey struct {
	position, uv int
	material     string
}

// DecodeOBJ triangulates every face as a fan and merges identical vertices.
func DecodeOBJ(objReader, mtlReader io.Reader) (*metadata.MeshResourceData, error) {
	decoder, err := obj.DecodeReader(objReader, mtlReader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode obj")
	}

	out := &metadata.MeshResourceData{}
	unique := make(map[objVertexKey]uint16)

	addVertex := func(face obj.Face, i int) error {
		key := objVertexKey{position: face.Vertices[i], uv: -1, material: face.Material}
		if i < len(face.Uvs) {
			key.uv = face.Uvs[i]
		}
		if index, ok := unique[key]; ok {
			out.Indices = append(out.Indices, index)
			return nil
		}
		if len(out.Vertices) > math.MaxUint16 {
			return core.InvalidDataf("model has more than %d unique vertices", math.MaxUint16+1)
		}
		p := key.position * 3
		if p < 0 || p+2 >= len(decoder.Vertices) {
			return core.InvalidDataf("face references missing vertex %d", key.position)
		}
		v := metadata.Vertex{
			Position: [3]float32{decoder.Vertices[p], decoder.Vertices[p+1], decoder.Vertices[p+2]},
			Color:    [3]float32{1, 1, 1},
		}
		switch {
		case key.uv >= 0 && key.uv*2+1 < len(decoder.Uvs):
			v.Color = [3]float32{decoder.Uvs[key.uv*2], 1.0 - decoder.Uvs[key.uv*2+1], 0}
		case decoder.Materials[face.Material] != nil:
			d := decoder.Materials[face.Material].Diffuse
			v.Color = [3]float32{d.R, d.G, d.B}
		}
		index := uint16(len(out.Vertices))
		out.Vertices = append(out.Vertices, v)
		unique[key] = index
		out.Indices = append(out.Indices, index)
		return nil
	}

	for _, object := range decoder.Objects {
		for _, face := range object.Faces {
			for i := 2; i < len(face.Vertices); i++ {
				for _, corner := range [3]int{0, i - 1, i} {
					if err := addVertex(face, corner); err != nil {
						return nil, err
					}
				}
			}
		}
	}
	if len(out.Indices) == 0 {
		return nil, core.InvalidDataf("model has no faces")
	}
	return out, nil
}
