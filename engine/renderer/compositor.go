package renderer

import (
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/portalis/engine/core"
	"github.com/spaghettifunk/portalis/engine/renderer/gpu"
	"github.com/spaghettifunk/portalis/engine/renderer/metadata"
)

type drawItem struct {
	mesh  *Mesh
	set   gpu.DescriptorSet
	model mgl32.Mat4
}

type materialBatch struct {
	material *Material
	draws    []drawItem
}

// prepareDraws resolves every object of the packet once per frame, grouped by
// material in registry order. Objects naming a removed material, mesh or
// texture are logged and left out.
func (r *Renderer) prepareDraws(slot int, packet *metadata.FramePacket) []materialBatch {
	index := make(map[metadata.MaterialHandle]int, r.materials.Len())
	batches := make([]materialBatch, 0, r.materials.Len())
	r.materials.Each(func(h metadata.MaterialHandle, m *Material) {
		index[h] = len(batches)
		batches = append(batches, materialBatch{material: m})
	})

	for i, obj := range packet.Objects {
		bi, ok := index[obj.Material]
		if !ok {
			core.LogError("object %d references a material that no longer exists, skipping", i)
			continue
		}
		mesh, err := r.meshes.Get(obj.Mesh)
		if err != nil {
			core.LogError("object %d references a mesh that no longer exists, skipping: %s", i, err)
			continue
		}
		set := r.defaultTexture.Sets[slot]
		if !obj.Texture.IsZero() {
			tex, err := r.textures.Get(obj.Texture)
			if err != nil {
				core.LogError("object %d references a texture that no longer exists, skipping: %s", i, err)
				continue
			}
			set = tex.Sets[slot]
		}
		batches[bi].draws = append(batches[bi].draws, drawItem{mesh: mesh, set: set, model: obj.Transform})
	}
	return batches
}

// record writes the whole frame into cb: the scene seen directly, the portal
// footprints stamped into the stencil, a depth clear, and the scene again
// through each portal restricted to its stencil value.
func (r *Renderer) record(cb gpu.CommandBuffer, slot int, target *TargetImage, packet *metadata.FramePacket) error {
	batches := r.prepareDraws(slot, packet)
	width, height := r.targets.Extent()

	cb.BeginRenderPass(r.pass, target.Framebuffer, width, height)
	cb.SetViewportScissor(width, height)

	cb.SetStencilReference(0)
	if err := r.drawScene(cb, batches, metadata.CameraRegular); err != nil {
		return errors.Wrap(err, "outer pass")
	}

	if err := r.drawPortalMasks(cb, slot, packet); err != nil {
		return errors.Wrap(err, "portal mask pass")
	}

	// Stencil values written above survive, depth testing starts over.
	cb.ClearDepth(width, height)

	for i := range packet.Portals {
		cb.SetStencilReference(uint32(i + 1))
		if err := r.drawScene(cb, batches, metadata.CameraRoleForPortal(i)); err != nil {
			return errors.Wrapf(err, "through-portal pass %d", i)
		}
	}

	cb.EndRenderPass()
	return nil
}

func (r *Renderer) drawPortalMasks(cb gpu.CommandBuffer, slot int, packet *metadata.FramePacket) error {
	if err := cb.BindPipeline(r.portalPipeline); err != nil {
		return err
	}
	if err := cb.BindDescriptorSet(r.portalPipeline, r.defaultTexture.Sets[slot]); err != nil {
		return err
	}
	for i, p := range packet.Portals {
		mesh, err := r.meshes.Get(p.Mesh)
		if err != nil {
			core.LogError("portal %d references a mesh that no longer exists, skipping: %s", i, err)
			continue
		}
		cb.SetStencilReference(uint32(i + 1))
		if err := r.drawMesh(cb, r.portalPipeline, mesh, p.Affine, metadata.CameraRegular); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) drawScene(cb gpu.CommandBuffer, batches []materialBatch, role metadata.CameraRole) error {
	for _, b := range batches {
		if len(b.draws) == 0 {
			continue
		}
		pipeline := b.material.Pipeline
		if err := cb.BindPipeline(pipeline); err != nil {
			return err
		}
		for _, d := range b.draws {
			if err := cb.BindDescriptorSet(pipeline, d.set); err != nil {
				return err
			}
			if err := r.drawMesh(cb, pipeline, d.mesh, d.model, role); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Renderer) drawMesh(cb gpu.CommandBuffer, pipeline gpu.Pipeline, mesh *Mesh, model mgl32.Mat4, role metadata.CameraRole) error {
	if err := cb.BindVertexBuffer(mesh.Vertices); err != nil {
		return err
	}
	if err := cb.BindIndexBuffer(mesh.Indices); err != nil {
		return err
	}
	pc := metadata.PushConstants{
		Model:       model,
		CameraIndex: metadata.CameraSlot(role, 0, r.cfg.Views),
	}
	cb.PushConstants(pipeline, pc.Bytes())
	cb.DrawIndexed(mesh.IndexCount)
	return nil
}
