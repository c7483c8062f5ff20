package renderer

import (
	"encoding/binary"
	"fmt"
	"math"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/portalis/engine/core"
	"github.com/spaghettifunk/portalis/engine/renderer/gpu"
	"github.com/spaghettifunk/portalis/engine/renderer/gpu/gputest"
	"github.com/spaghettifunk/portalis/engine/renderer/metadata"
)

// spirv is a word-aligned stand-in for shader bytecode.
var spirv = []byte{0x03, 0x02, 0x23, 0x07}

type testBackend struct {
	device    *gputest.Device
	swapchain *gputest.Swapchain
}

func (b *testBackend) Device() gpu.Device       { return b.device }
func (b *testBackend) Swapchain() gpu.Swapchain { return b.swapchain }
func (b *testBackend) Shutdown()                {}

func newTestRenderer(t *testing.T, mutate func(c *core.RendererConfig)) (*Renderer, *testBackend) {
	t.Helper()
	cfg := core.DefaultConfig().Renderer
	if mutate != nil {
		mutate(&cfg)
	}
	b := &testBackend{device: gputest.NewDevice(), swapchain: gputest.NewSwapchain(640, 480, 3)}
	r, err := New(b, Options{Config: cfg, PortalVertexSPIRV: spirv, PortalFragmentSPIRV: spirv})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return r, b
}

func cube(t *testing.T, r *Renderer) metadata.MeshHandle {
	t.Helper()
	h, err := r.AddMesh([]metadata.Vertex{
		metadata.NewVertex([3]float32{0, 0, 0}, [3]float32{1, 0, 0}),
		metadata.NewVertex([3]float32{1, 0, 0}, [3]float32{0, 1, 0}),
		metadata.NewVertex([3]float32{0, 1, 0}, [3]float32{0, 0, 1}),
	}, []uint16{0, 1, 2})
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func portalPair(t *testing.T, r *Renderer) [2]metadata.Portal {
	t.Helper()
	vertices, indices := metadata.NewPortalQuad(1, [3]float32{})
	quad, err := r.AddMesh(vertices, indices)
	if err != nil {
		t.Fatal(err)
	}
	return [2]metadata.Portal{
		{Mesh: quad, Affine: mgl32.Translate3D(0, 0, -5)},
		{Mesh: quad, Affine: mgl32.Translate3D(10, 0, 0)},
	}
}

// trace reduces the last frame submission to the commands that define pass order.
func trace(t *testing.T, dev *gputest.Device) []string {
	t.Helper()
	sub, ok := dev.LastSubmission()
	if !ok {
		t.Fatal("no frame was submitted")
	}
	var out []string
	for _, c := range sub.Commands {
		switch c.Op {
		case gputest.OpBeginRenderPass, gputest.OpEndRenderPass, gputest.OpClearDepth, gputest.OpDrawIndexed:
			out = append(out, string(c.Op))
		case gputest.OpStencilReference:
			out = append(out, fmt.Sprintf("stencil=%d", c.Value))
		case gputest.OpBindPipeline:
			out = append(out, "pipeline="+c.Pipeline.Desc.Label)
		case gputest.OpPushConstants:
			out = append(out, fmt.Sprintf("camera=%d", binary.LittleEndian.Uint32(c.Data[64:])))
		}
	}
	return out
}

func equalTrace(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestRenderPassOrder(t *testing.T) {
	r, b := newTestRenderer(t, nil)
	defer r.Destroy()

	mat, err := r.AddMaterial(spirv, spirv, metadata.DrawTypeTriangles)
	if err != nil {
		t.Fatal(err)
	}
	packet := metadata.NewFramePacket()
	packet.Objects = []metadata.Object{{Material: mat, Mesh: cube(t, r), Transform: mgl32.Ident4()}}
	packet.Portals = portalPair(t, r)

	if err := r.Render(packet, metadata.NewCamera(mgl32.Ident4())); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	want := []string{
		"begin-render-pass",
		"stencil=0", "pipeline=material-triangles", "camera=0", "draw-indexed",
		"pipeline=portal",
		"stencil=1", "camera=0", "draw-indexed",
		"stencil=2", "camera=0", "draw-indexed",
		"clear-depth",
		"stencil=1", "pipeline=material-triangles", "camera=1", "draw-indexed",
		"stencil=2", "pipeline=material-triangles", "camera=2", "draw-indexed",
		"end-render-pass",
	}
	if got := trace(t, b.device); !equalTrace(got, want) {
		t.Errorf("command trace =\n%v\nwant\n%v", got, want)
	}
	if len(b.swapchain.Presented) != 1 {
		t.Errorf("presented %d images, want 1", len(b.swapchain.Presented))
	}
}

func TestRenderStereoCameraIndices(t *testing.T) {
	cfg := core.DefaultConfig().Renderer
	cfg.Views = 2
	b := &testBackend{device: gputest.NewDevice(), swapchain: gputest.NewLayeredSwapchain(640, 480, 3, 2)}
	r, err := New(b, Options{Config: cfg, PortalVertexSPIRV: spirv, PortalFragmentSPIRV: spirv})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Destroy()

	mat, _ := r.AddMaterial(spirv, spirv, metadata.DrawTypeTriangles)
	packet := metadata.NewFramePacket()
	packet.Objects = []metadata.Object{{Material: mat, Mesh: cube(t, r), Transform: mgl32.Ident4()}}
	packet.Portals = portalPair(t, r)
	left, right := mgl32.Translate3D(-0.1, 0, 0), mgl32.Translate3D(0.1, 0, 0)
	if err := r.Render(packet, metadata.NewCamera(left, right)); err != nil {
		t.Fatal(err)
	}

	var cameras []string
	for _, s := range trace(t, b.device) {
		if len(s) > 7 && s[:7] == "camera=" {
			cameras = append(cameras, s)
		}
	}
	want := []string{"camera=0", "camera=0", "camera=0", "camera=2", "camera=4"}
	if !equalTrace(cameras, want) {
		t.Errorf("camera indices = %v, want %v", cameras, want)
	}

	depth := b.device.Images[0]
	if depth.Desc.Layers != 2 {
		t.Errorf("depth attachment has %d layers, want 2", depth.Desc.Layers)
	}
	data := r.cameraUBOs[0].(*gputest.Buffer).Data
	if uint64(len(data)) != 6*64 {
		t.Fatalf("camera uniform is %d bytes, want %d", len(data), 6*64)
	}
	if got := readMat4(data, 1); !got.ApproxEqualThreshold(right, 1e-6) {
		t.Errorf("regular right eye = %v, want %v", got, right)
	}
}

func TestRenderSkipsStaleHandles(t *testing.T) {
	r, b := newTestRenderer(t, nil)
	defer r.Destroy()

	mat, _ := r.AddMaterial(spirv, spirv, metadata.DrawTypeLines)
	live := cube(t, r)
	gone := cube(t, r)
	if err := r.RemoveMesh(gone); err != nil {
		t.Fatal(err)
	}
	tex, err := r.AddTexture([]byte{1, 2, 3, 4}, 1, metadata.SamplingNearest)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.RemoveTexture(tex); err != nil {
		t.Fatal(err)
	}

	packet := metadata.NewFramePacket()
	packet.Objects = []metadata.Object{
		{Material: mat, Mesh: gone, Transform: mgl32.Ident4()},
		{Material: mat, Mesh: live, Texture: tex, Transform: mgl32.Ident4()},
		{Material: mat, Mesh: live, Transform: mgl32.Ident4()},
	}
	packet.Portals = portalPair(t, r)

	if err := r.Render(packet, metadata.NewCamera(mgl32.Ident4())); err != nil {
		t.Fatalf("Render() error = %v, stale handles must not fail the frame", err)
	}
	draws := 0
	for _, s := range trace(t, b.device) {
		if s == "draw-indexed" {
			draws++
		}
	}
	// One surviving object drawn in three passes plus two portal masks.
	if draws != 5 {
		t.Errorf("draws = %d, want 5", draws)
	}

	if err := r.RemoveMesh(gone); !errors.Is(err, core.ErrStaleHandle) {
		t.Errorf("second RemoveMesh() error = %v, want ErrStaleHandle", err)
	}
}

func TestRenderUsesObjectTexture(t *testing.T) {
	r, b := newTestRenderer(t, nil)
	defer r.Destroy()

	mat, _ := r.AddMaterial(spirv, spirv, metadata.DrawTypeTriangles)
	tex, err := r.AddTexture([]byte{9, 9, 9, 255}, 1, metadata.SamplingLinear)
	if err != nil {
		t.Fatal(err)
	}
	packet := metadata.NewFramePacket()
	packet.Objects = []metadata.Object{{Material: mat, Mesh: cube(t, r), Texture: tex, Transform: mgl32.Ident4()}}
	packet.Portals = portalPair(t, r)
	if err := r.Render(packet, metadata.NewCamera(mgl32.Ident4())); err != nil {
		t.Fatal(err)
	}

	texture, _ := r.textures.Get(tex)
	sub, _ := b.device.LastSubmission()
	var bound *gputest.DescriptorSet
	for _, c := range sub.Commands {
		if c.Op == gputest.OpBindDescriptorSet && c.Pipeline.Desc.Label != "portal" {
			bound = c.Set
			break
		}
	}
	if bound == nil || bound != texture.Sets[0] {
		t.Fatalf("material draw bound %v, want the texture's set for frame 0", bound)
	}
	if w := bound.Writes[bindingTexture]; w.Image != texture.Image || w.Sampler != texture.Sampler {
		t.Error("texture set does not reference the texture image and sampler")
	}
	if texture.Sampler.(*gputest.Sampler).Desc != (gpu.SamplerDesc{Filter: gpu.FilterLinear, MipmapMode: gpu.FilterLinear, Anisotropy: true}) {
		t.Errorf("linear sampler desc = %+v", texture.Sampler.(*gputest.Sampler).Desc)
	}
}

func TestAddTextureRoundTrip(t *testing.T) {
	r, b := newTestRenderer(t, nil)
	defer r.Destroy()

	black := [4]byte{0, 0, 0, 255}
	white := [4]byte{255, 255, 255, 255}
	var pixels []byte
	for _, texel := range [][4]byte{black, white, white, black} {
		pixels = append(pixels, texel[:]...)
	}

	h, err := r.AddTexture(pixels, 2, metadata.SamplingNearest)
	if err != nil {
		t.Fatalf("AddTexture() error = %v", err)
	}
	tex, _ := r.textures.Get(h)
	img := tex.Image.(*gputest.Image)
	if img.Desc.Width != 2 || img.Desc.Height != 2 {
		t.Fatalf("image is %dx%d, want 2x2", img.Desc.Width, img.Desc.Height)
	}
	if img.Layout != gpu.LayoutShaderReadOnly {
		t.Errorf("image layout = %s, want shader-read-only", img.Layout)
	}
	tests := []struct {
		x, y uint32
		want [4]byte
	}{
		{0, 0, black}, {1, 0, white}, {0, 1, white}, {1, 1, black},
	}
	for _, tt := range tests {
		if got := img.Texel(tt.x, tt.y); got != tt.want {
			t.Errorf("Texel(%d, %d) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}

	var staging *gputest.Buffer
	for _, buf := range b.device.Buffers {
		if buf.Desc.Label == "staging" {
			staging = buf
		}
	}
	if staging == nil || !staging.Destroyed {
		t.Error("staging buffer was not freed after the transfer")
	}
}

func TestAddTextureValidation(t *testing.T) {
	r, b := newTestRenderer(t, nil)
	defer r.Destroy()

	tests := []struct {
		name   string
		pixels []byte
		width  uint32
	}{
		{"zero width", make([]byte, 16), 0},
		{"no pixels", nil, 1},
		{"partial texel", make([]byte, 15), 1},
		{"ragged rows", make([]byte, 12), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buffers, images := len(b.device.Buffers), len(b.device.Images)
			if _, err := r.AddTexture(tt.pixels, tt.width, metadata.SamplingNearest); !errors.Is(err, core.ErrInvalidData) {
				t.Errorf("AddTexture() error = %v, want ErrInvalidData", err)
			}
			if len(b.device.Buffers) != buffers || len(b.device.Images) != images {
				t.Error("GPU resources were allocated for invalid data")
			}
		})
	}
}

func TestAddMeshValidation(t *testing.T) {
	r, _ := newTestRenderer(t, nil)
	defer r.Destroy()
	v := []metadata.Vertex{{}, {}, {}}

	tests := []struct {
		name     string
		vertices []metadata.Vertex
		indices  []uint16
	}{
		{"no vertices", nil, []uint16{0}},
		{"no indices", v, nil},
		{"index out of range", v, []uint16{0, 1, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := r.AddMesh(tt.vertices, tt.indices); !errors.Is(err, core.ErrInvalidData) {
				t.Errorf("AddMesh() error = %v, want ErrInvalidData", err)
			}
		})
	}
}

func TestAddMaterialValidation(t *testing.T) {
	r, _ := newTestRenderer(t, nil)
	defer r.Destroy()
	if _, err := r.AddMaterial(nil, spirv, metadata.DrawTypeTriangles); !errors.Is(err, core.ErrInvalidData) {
		t.Errorf("empty vertex shader error = %v, want ErrInvalidData", err)
	}
	if _, err := r.AddMaterial(spirv, spirv[:3], metadata.DrawTypeTriangles); !errors.Is(err, core.ErrInvalidData) {
		t.Errorf("unaligned fragment shader error = %v, want ErrInvalidData", err)
	}

	h, err := r.AddMaterial(spirv, spirv, metadata.DrawTypePoints)
	if err != nil {
		t.Fatal(err)
	}
	m, _ := r.materials.Get(h)
	desc := m.Pipeline.(*gputest.Pipeline).Desc
	if desc.Topology != gpu.TopologyPointList || desc.Stencil != gpu.StencilTestEqual || desc.PushConstantSize != 68 {
		t.Errorf("pipeline desc = %+v", desc)
	}
}

func TestRenderSkipAndNilPacket(t *testing.T) {
	r, b := newTestRenderer(t, nil)
	defer r.Destroy()
	if err := r.Render(nil, metadata.NewCamera(mgl32.Ident4())); err != nil {
		t.Fatal(err)
	}
	packet := metadata.NewFramePacket()
	packet.Skip = true
	if err := r.Render(packet, metadata.NewCamera(mgl32.Ident4())); err != nil {
		t.Fatal(err)
	}
	if _, ok := b.device.LastSubmission(); ok {
		t.Error("a skipped frame was submitted")
	}
	if r.frames.Serial() != 0 {
		t.Errorf("frame serial = %d, want 0", r.frames.Serial())
	}
}

func TestRenderRejectsWrongViewCount(t *testing.T) {
	r, _ := newTestRenderer(t, nil)
	defer r.Destroy()
	err := r.Render(metadata.NewFramePacket(), metadata.NewCamera(mgl32.Ident4(), mgl32.Ident4()))
	if !errors.Is(err, core.ErrInvalidData) {
		t.Errorf("Render() error = %v, want ErrInvalidData", err)
	}
}

func TestRenderOutOfDateDropsFrame(t *testing.T) {
	r, b := newTestRenderer(t, nil)
	defer r.Destroy()
	packet := metadata.NewFramePacket()
	packet.Portals = portalPair(t, r)

	b.swapchain.OutOfDate = true
	if err := r.Render(packet, metadata.NewCamera(mgl32.Ident4())); err != nil {
		t.Fatalf("Render() error = %v, want the frame dropped silently", err)
	}
	if b.swapchain.Recreations != 1 {
		t.Errorf("recreations = %d, want 1", b.swapchain.Recreations)
	}
	if _, ok := b.device.LastSubmission(); ok {
		t.Error("the dropped frame was submitted")
	}

	if err := r.Render(packet, metadata.NewCamera(mgl32.Ident4())); err != nil {
		t.Fatal(err)
	}
	if _, ok := b.device.LastSubmission(); !ok {
		t.Error("rendering did not resume after recreation")
	}
}

func TestRenderResizeRecreatesTargets(t *testing.T) {
	r, b := newTestRenderer(t, nil)
	defer r.Destroy()
	r.Resize(1024, 768)
	packet := metadata.NewFramePacket()
	packet.Portals = portalPair(t, r)
	if err := r.Render(packet, metadata.NewCamera(mgl32.Ident4())); err != nil {
		t.Fatal(err)
	}
	if w, h := b.swapchain.Extent(); w != 1024 || h != 768 {
		t.Errorf("swapchain extent = %dx%d, want 1024x768", w, h)
	}
}

func readMat4(data []byte, index int) mgl32.Mat4 {
	var m mgl32.Mat4
	for i := range m {
		m[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[(index*16+i)*4:]))
	}
	return m
}

func TestRenderWritesCameraUniforms(t *testing.T) {
	r, _ := newTestRenderer(t, nil)
	defer r.Destroy()

	view := mgl32.Translate3D(0, 0, -2)
	packet := metadata.NewFramePacket()
	packet.Portals = portalPair(t, r)
	packet.Base = mgl32.Translate3D(1, 0, 0)
	if err := r.UpdateTimeValue(2.5); err != nil {
		t.Fatal(err)
	}
	if err := r.Render(packet, metadata.NewCamera(view)); err != nil {
		t.Fatal(err)
	}

	data := r.cameraUBOs[0].(*gputest.Buffer).Data
	eye := view.Mul4(packet.Base.Inv())
	orange := eye.Mul4(packet.Portals[0].Affine).Mul4(packet.Portals[1].Affine.Inv())
	blue := eye.Mul4(packet.Portals[1].Affine).Mul4(packet.Portals[0].Affine.Inv())
	for i, want := range []mgl32.Mat4{eye, orange, blue} {
		if got := readMat4(data, i); !got.ApproxEqualThreshold(want, 1e-5) {
			t.Errorf("camera slot %d = %v, want %v", i, got, want)
		}
	}

	tm := r.timeUBOs[0].(*gputest.Buffer).Data
	if got := math.Float32frombits(binary.LittleEndian.Uint32(tm)); got != 2.5 {
		t.Errorf("time uniform = %f, want 2.5", got)
	}
}

func TestUpdateTimeValueLeavesSubmittedFrames(t *testing.T) {
	r, _ := newTestRenderer(t, nil)
	defer r.Destroy()

	readTime := func(slot int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(r.timeUBOs[slot].(*gputest.Buffer).Data))
	}
	camera := metadata.NewCamera(mgl32.Ident4())
	packet := metadata.NewFramePacket()
	packet.Portals = portalPair(t, r)

	if err := r.UpdateTimeValue(1); err != nil {
		t.Fatal(err)
	}
	if err := r.Render(packet, camera); err != nil {
		t.Fatal(err)
	}
	// Slot 0 was submitted with 1 and may still be executing.
	if err := r.UpdateTimeValue(2); err != nil {
		t.Fatal(err)
	}
	if got := readTime(0); got != 1 {
		t.Errorf("time of the submitted frame = %f, want 1", got)
	}
	if err := r.Render(packet, camera); err != nil {
		t.Fatal(err)
	}
	if got := readTime(1); got != 2 {
		t.Errorf("time of the next frame = %f, want 2", got)
	}
}

func TestRemoveWaitsForIdleByDefault(t *testing.T) {
	r, b := newTestRenderer(t, nil)
	defer r.Destroy()
	h := cube(t, r)
	mesh, _ := r.meshes.Get(h)
	waits := b.device.IdleWaits

	if err := r.RemoveMesh(h); err != nil {
		t.Fatal(err)
	}
	if b.device.IdleWaits != waits+1 {
		t.Errorf("IdleWaits = %d, want %d", b.device.IdleWaits, waits+1)
	}
	if !mesh.Vertices.(*gputest.Buffer).Destroyed || !mesh.Indices.(*gputest.Buffer).Destroyed {
		t.Error("mesh buffers not released")
	}
}

func TestDeferredRelease(t *testing.T) {
	r, b := newTestRenderer(t, func(c *core.RendererConfig) { c.DeferredRelease = true })
	defer r.Destroy()

	packet := metadata.NewFramePacket()
	packet.Portals = portalPair(t, r)
	camera := metadata.NewCamera(mgl32.Ident4())
	if err := r.Render(packet, camera); err != nil {
		t.Fatal(err)
	}

	h := cube(t, r)
	mesh, _ := r.meshes.Get(h)
	vb := mesh.Vertices.(*gputest.Buffer)
	waits := b.device.IdleWaits
	if err := r.RemoveMesh(h); err != nil {
		t.Fatal(err)
	}
	if b.device.IdleWaits != waits {
		t.Error("deferred release waited for the device")
	}

	// The frame rendered before the removal is retired only after the ring
	// wrapped around to its slot again.
	for i := 0; i < int(r.frames.Len())-1; i++ {
		if err := r.Render(packet, camera); err != nil {
			t.Fatal(err)
		}
		if vb.Destroyed {
			t.Fatalf("mesh released after %d frames, before its frame was retired", i+1)
		}
	}
	if err := r.Render(packet, camera); err != nil {
		t.Fatal(err)
	}
	if !vb.Destroyed {
		t.Error("mesh not released after every frame that could use it was retired")
	}
}

func TestDestroyReleasesEverything(t *testing.T) {
	r, b := newTestRenderer(t, nil)
	r.AddMaterial(spirv, spirv, metadata.DrawTypeTriangles)
	cube(t, r)
	r.AddTexture([]byte{1, 2, 3, 4}, 1, metadata.SamplingNearest)

	r.Destroy()
	r.Destroy()
	if n := b.device.LiveBuffers(); n != 0 {
		t.Errorf("%d buffers alive after Destroy", n)
	}
	if n := b.device.LivePipelines(); n != 0 {
		t.Errorf("%d pipelines alive after Destroy", n)
	}
	for i, p := range b.device.Pools {
		if !p.Destroyed {
			t.Errorf("descriptor pool %d alive after Destroy", i)
		}
	}
	for i, img := range b.device.Images {
		if !img.Destroyed {
			t.Errorf("image %d (%s) alive after Destroy", i, img.Desc.Label)
		}
	}
	if err := r.Render(metadata.NewFramePacket(), metadata.NewCamera(mgl32.Ident4())); err == nil {
		t.Error("Render() after Destroy succeeded")
	}
}
