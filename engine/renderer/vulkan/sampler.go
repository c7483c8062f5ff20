package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/portalis/engine/renderer/gpu"
)

type VulkanSampler struct {
	context *VulkanContext
	Handle  vk.Sampler
}

func vkFilter(f gpu.Filter) vk.Filter {
	if f == gpu.FilterLinear {
		return vk.FilterLinear
	}
	return vk.FilterNearest
}

func (d *VulkanDevice) CreateSampler(desc gpu.SamplerDesc) (gpu.Sampler, error) {
	mipmapMode := vk.SamplerMipmapModeNearest
	if desc.MipmapMode == gpu.FilterLinear {
		mipmapMode = vk.SamplerMipmapModeLinear
	}
	samplerInfo := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vkFilter(desc.Filter),
		MinFilter:               vkFilter(desc.Filter),
		AddressModeU:            vk.SamplerAddressModeRepeat,
		AddressModeV:            vk.SamplerAddressModeRepeat,
		AddressModeW:            vk.SamplerAddressModeRepeat,
		AnisotropyEnable:        vk.False,
		MaxAnisotropy:           1,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MipmapMode:              mipmapMode,
		MipLodBias:              0.0,
		MinLod:                  0.0,
		MaxLod:                  0.0,
	}
	// Anisotropy is only requested from devices that enabled the feature.
	if desc.Anisotropy && d.Anisotropy {
		samplerInfo.AnisotropyEnable = vk.True
		samplerInfo.MaxAnisotropy = 16
	}

	var sampler vk.Sampler
	if res := vk.CreateSampler(d.LogicalDevice, &samplerInfo, d.context.Allocator, &sampler); res != vk.Success {
		return nil, resultError(res, "vkCreateSampler")
	}
	return &VulkanSampler{context: d.context, Handle: sampler}, nil
}

func (s *VulkanSampler) Destroy() {
	if s.Handle != nil {
		vk.DestroySampler(s.context.Device.LogicalDevice, s.Handle, s.context.Allocator)
		s.Handle = nil
	}
}
