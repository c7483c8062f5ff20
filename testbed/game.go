package testbed

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/portalis/engine"
	"github.com/spaghettifunk/portalis/engine/core"
	pmath "github.com/spaghettifunk/portalis/engine/math"
	"github.com/spaghettifunk/portalis/engine/renderer/metadata"
)

const (
	unlitMaterial = "unlit"
	modelFile     = "suzanne.obj"
	textureFile   = "checker.png"
)

// PortalGame is a small room with a rotating cube and a linked portal pair.
type PortalGame struct {
	*engine.Game

	engine   *engine.Engine
	material *engine.MaterialRef
	cube     metadata.MeshHandle
	floor    metadata.MeshHandle
	model    metadata.MeshHandle
	texture  metadata.TextureHandle
	portals  [2]metadata.MeshHandle

	cubeTransform  *pmath.Transform
	modelTransform *pmath.Transform
}

func NewPortalGame() *PortalGame {
	g := &PortalGame{Game: &engine.Game{}}
	g.cubeTransform = pmath.TransformFromPosition(mgl32.Vec3{0, 1, -4})
	// The model circles the cube.
	g.modelTransform = pmath.TransformFromPositionRotationScale(mgl32.Vec3{0, 0, 3}, mgl32.QuatIdent(), mgl32.Vec3{0.5, 0.5, 0.5})
	g.modelTransform.Parent = g.cubeTransform
	g.State = g
	g.FnInitialize = g.Initialize
	g.FnUpdate = g.Update
	g.FnRender = g.Render
	g.FnOnResize = g.OnResize
	g.FnShutdown = g.Shutdown
	return g
}

func (g *PortalGame) Initialize(e *engine.Engine) error {
	core.LogInfo("booting portal testbed...")
	g.engine = e
	r := e.Renderer()

	material, err := e.Materials().Load(unlitMaterial, metadata.DrawTypeTriangles)
	if err != nil {
		return err
	}
	g.material = material

	vertices, indices := RainbowCube()
	if g.cube, err = r.AddMesh(vertices, indices); err != nil {
		return err
	}
	vertices, indices = Floor(10, 10)
	if g.floor, err = r.AddMesh(vertices, indices); err != nil {
		return err
	}

	half := e.Config().Renderer.PortalHalfExtent
	colors := [2][3]float32{{1, 0.5, 0}, {0, 0.4, 1}}
	for i, color := range colors {
		vertices, indices := metadata.NewPortalQuad(half, color)
		if g.portals[i], err = r.AddMesh(vertices, indices); err != nil {
			return err
		}
	}

	// The model and its texture are optional, the scene works without them.
	err = e.Assets().LoadAsync(modelFile, metadata.ResourceTypeMesh, nil, func(res *metadata.Resource, err error) {
		if err != nil {
			core.LogWarn("model not loaded: %s", err)
			return
		}
		data := res.Data.(*metadata.MeshResourceData)
		if g.model, err = r.AddMesh(data.Vertices, data.Indices); err != nil {
			core.LogError("model upload failed: %s", err)
		}
	})
	if err != nil {
		return err
	}
	return e.Assets().LoadAsync(textureFile, metadata.ResourceTypeImage, &metadata.ImageResourceParams{}, func(res *metadata.Resource, err error) {
		if err != nil {
			core.LogWarn("texture not loaded: %s", err)
			return
		}
		img := res.Data.(*metadata.ImageResourceData)
		if g.texture, err = r.AddTexture(img.Pixels, img.Width, metadata.SamplingNearest); err != nil {
			core.LogError("texture upload failed: %s", err)
		}
	})
}

func (g *PortalGame) Update(deltaTime float64) error {
	g.cubeTransform.Rotate(mgl32.QuatRotate(float32(deltaTime), mgl32.Vec3{0, 1, 0}))
	return nil
}

func (g *PortalGame) Render(packet *metadata.FramePacket, deltaTime float64) error {
	packet.Objects = append(packet.Objects,
		metadata.Object{
			Material:  g.material.Handle,
			Mesh:      g.cube,
			Transform: g.cubeTransform.World(),
		},
		metadata.Object{
			Material:  g.material.Handle,
			Mesh:      g.floor,
			Texture:   g.texture,
			Transform: mgl32.Ident4(),
		},
	)
	if !g.model.IsZero() {
		packet.Objects = append(packet.Objects, metadata.Object{
			Material:  g.material.Handle,
			Mesh:      g.model,
			Transform: g.modelTransform.World(),
		})
	}
	packet.Portals = PortalPair(g.portals)
	return nil
}

// PortalPair places the orange portal facing +X on the left wall and the blue
// one facing -Z at the back of the room.
func PortalPair(meshes [2]metadata.MeshHandle) [2]metadata.Portal {
	one := mgl32.Vec3{1, 1, 1}
	orange := pmath.Affine(mgl32.Vec3{-5, 1, 0}, mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 1, 0}), one)
	blue := pmath.Affine(mgl32.Vec3{0, 1, -8}, mgl32.QuatRotate(mgl32.DegToRad(180), mgl32.Vec3{0, 1, 0}), one)
	return [2]metadata.Portal{
		{Mesh: meshes[metadata.PortalOrange], Affine: orange},
		{Mesh: meshes[metadata.PortalBlue], Affine: blue},
	}
}

func (g *PortalGame) OnResize(width uint32, height uint32) error {
	core.LogDebug("testbed resized to %dx%d", width, height)
	return nil
}

func (g *PortalGame) Shutdown() error {
	core.LogInfo("shutting down portal testbed")
	return nil
}

// RainbowCube is a 2x2x2 cube with a color per corner.
func RainbowCube() ([]metadata.Vertex, []uint16) {
	c1, c2, c3 := [3]float32{0, 1, 1}, [3]float32{1, 0, 1}, [3]float32{1, 1, 0}
	vertices := []metadata.Vertex{
		metadata.NewVertex([3]float32{-1, -1, -1}, c1),
		metadata.NewVertex([3]float32{1, -1, -1}, c2),
		metadata.NewVertex([3]float32{1, 1, -1}, c3),
		metadata.NewVertex([3]float32{-1, 1, -1}, c1),
		metadata.NewVertex([3]float32{-1, -1, 1}, c2),
		metadata.NewVertex([3]float32{1, -1, 1}, c3),
		metadata.NewVertex([3]float32{1, 1, 1}, c1),
		metadata.NewVertex([3]float32{-1, 1, 1}, c2),
	}
	indices := []uint16{
		0, 1, 3, 3, 1, 2, 1, 5, 2, 2, 5, 6, 5, 4, 6, 6, 4, 7, 4, 0, 7, 7, 0, 3, 3, 2, 7, 7, 2, 6,
		4, 5, 0, 0, 5, 1,
	}
	return vertices, indices
}

// Floor is a quad of the given size in the XZ plane. Its colors are texture
// coordinates repeating once per unit.
func Floor(width, depth float32) ([]metadata.Vertex, []uint16) {
	w, d := width/2, depth/2
	vertices := []metadata.Vertex{
		metadata.NewVertex([3]float32{-w, 0, -d}, [3]float32{0, 0, 0}),
		metadata.NewVertex([3]float32{w, 0, -d}, [3]float32{width, 0, 0}),
		metadata.NewVertex([3]float32{w, 0, d}, [3]float32{width, depth, 0}),
		metadata.NewVertex([3]float32{-w, 0, d}, [3]float32{0, depth, 0}),
	}
	return vertices, []uint16{0, 2, 1, 0, 3, 2}
}
