package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/portalis/engine/core"
	"github.com/spaghettifunk/portalis/engine/renderer/gpu"
)

/**
 * @brief The layout every material and portal descriptor set shares.
 */
type VulkanDescriptorSetLayout struct {
	context *VulkanContext
	Handle  vk.DescriptorSetLayout
}

/**
 * @brief A fixed-size pool that sets are carved out of. Sets are never freed
 * individually; destroying the pool releases all of them.
 */
type VulkanDescriptorPool struct {
	context *VulkanContext
	Handle  vk.DescriptorPool
}

type VulkanDescriptorSet struct {
	context *VulkanContext
	Handle  vk.DescriptorSet
	pool    *VulkanDescriptorPool
}

func vkDescriptorType(t gpu.DescriptorType) vk.DescriptorType {
	if t == gpu.DescriptorCombinedImageSampler {
		return vk.DescriptorTypeCombinedImageSampler
	}
	return vk.DescriptorTypeUniformBuffer
}

func vkShaderStages(stages gpu.ShaderStage) vk.ShaderStageFlags {
	var flags vk.ShaderStageFlagBits
	if stages&gpu.ShaderStageVertex != 0 {
		flags |= vk.ShaderStageVertexBit
	}
	if stages&gpu.ShaderStageFragment != 0 {
		flags |= vk.ShaderStageFragmentBit
	}
	return vk.ShaderStageFlags(flags)
}

func (d *VulkanDevice) CreateDescriptorSetLayout(bindings []gpu.DescriptorBinding) (gpu.DescriptorSetLayout, error) {
	layoutBindings := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		layoutBindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  vkDescriptorType(b.Type),
			DescriptorCount: b.Count,
			StageFlags:      vkShaderStages(b.Stages),
		}
	}
	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(layoutBindings)),
		PBindings:    layoutBindings,
	}
	var layout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(d.LogicalDevice, &layoutInfo, d.context.Allocator, &layout); res != vk.Success {
		return nil, resultError(res, "vkCreateDescriptorSetLayout")
	}
	return &VulkanDescriptorSetLayout{context: d.context, Handle: layout}, nil
}

func (l *VulkanDescriptorSetLayout) Destroy() {
	if l.Handle != nil {
		vk.DestroyDescriptorSetLayout(l.context.Device.LogicalDevice, l.Handle, l.context.Allocator)
		l.Handle = nil
	}
}

func (d *VulkanDevice) CreateDescriptorPool(desc gpu.DescriptorPoolDesc) (gpu.DescriptorPool, error) {
	sizes := make([]vk.DescriptorPoolSize, len(desc.Sizes))
	for i, s := range desc.Sizes {
		sizes[i] = vk.DescriptorPoolSize{
			Type:            vkDescriptorType(s.Type),
			DescriptorCount: s.Count,
		}
	}
	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       desc.MaxSets,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	var pool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(d.LogicalDevice, &poolInfo, d.context.Allocator, &pool); res != vk.Success {
		return nil, resultError(res, "vkCreateDescriptorPool")
	}
	return &VulkanDescriptorPool{context: d.context, Handle: pool}, nil
}

func (p *VulkanDescriptorPool) Allocate(layout gpu.DescriptorSetLayout) (gpu.DescriptorSet, error) {
	l, ok := layout.(*VulkanDescriptorSetLayout)
	if !ok || p.Handle == nil {
		return nil, errForeignObject
	}
	allocateInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     p.Handle,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{l.Handle},
	}
	var set vk.DescriptorSet
	err := p.context.locks.SafeCall(DescriptorManagement, func() error {
		if res := vk.AllocateDescriptorSets(p.context.Device.LogicalDevice, &allocateInfo, &set); res != vk.Success {
			return resultError(res, "vkAllocateDescriptorSets")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &VulkanDescriptorSet{context: p.context, Handle: set, pool: p}, nil
}

func (p *VulkanDescriptorPool) Destroy() {
	if p.Handle != nil {
		vk.DestroyDescriptorPool(p.context.Device.LogicalDevice, p.Handle, p.context.Allocator)
		p.Handle = nil
	}
}

// Write points each binding at its buffer range or image and sampler. The
// set must not be in use by a pending frame.
func (s *VulkanDescriptorSet) Write(writes ...gpu.DescriptorWrite) error {
	if s.pool.Handle == nil {
		return core.InvalidDataf("descriptor set written after its pool was destroyed")
	}
	descriptorWrites := make([]vk.WriteDescriptorSet, 0, len(writes))
	for _, w := range writes {
		write := vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          s.Handle,
			DstBinding:      w.Binding,
			DstArrayElement: 0,
			DescriptorType:  vkDescriptorType(w.Type),
			DescriptorCount: 1,
		}
		switch w.Type {
		case gpu.DescriptorUniformBuffer:
			b, ok := w.Buffer.(*VulkanBuffer)
			if !ok {
				return errForeignObject
			}
			size := w.Range
			if size == 0 {
				size = b.size
			}
			write.PBufferInfo = []vk.DescriptorBufferInfo{{
				Buffer: b.Handle,
				Offset: 0,
				Range:  vk.DeviceSize(size),
			}}
		case gpu.DescriptorCombinedImageSampler:
			img, ok := w.Image.(*VulkanImage)
			if !ok {
				return errForeignObject
			}
			sampler, ok := w.Sampler.(*VulkanSampler)
			if !ok {
				return errForeignObject
			}
			write.PImageInfo = []vk.DescriptorImageInfo{{
				Sampler:     sampler.Handle,
				ImageView:   img.View,
				ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
			}}
		}
		descriptorWrites = append(descriptorWrites, write)
	}
	return s.context.locks.SafeCall(DescriptorManagement, func() error {
		vk.UpdateDescriptorSets(s.context.Device.LogicalDevice, uint32(len(descriptorWrites)), descriptorWrites, 0, nil)
		return nil
	})
}
