package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/portalis/engine/core"
	"github.com/spaghettifunk/portalis/engine/renderer/gpu"
)

type VulkanBuffer struct {
	context *VulkanContext
	Handle  vk.Buffer
	Memory  vk.DeviceMemory
	size    uint64
	memory  gpu.MemoryClass
	label   string
}

func bufferUsageFlags(usage gpu.BufferUsage) vk.BufferUsageFlags {
	var flags vk.BufferUsageFlagBits
	if usage&gpu.BufferUsageVertex != 0 {
		flags |= vk.BufferUsageVertexBufferBit
	}
	if usage&gpu.BufferUsageIndex != 0 {
		flags |= vk.BufferUsageIndexBufferBit
	}
	if usage&gpu.BufferUsageUniform != 0 {
		flags |= vk.BufferUsageUniformBufferBit
	}
	if usage&gpu.BufferUsageTransferSrc != 0 {
		flags |= vk.BufferUsageTransferSrcBit
	}
	return vk.BufferUsageFlags(flags)
}

func memoryFlags(class gpu.MemoryClass) vk.MemoryPropertyFlags {
	if class == gpu.MemoryDeviceLocal {
		return vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
	}
	return vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
}

func (d *VulkanDevice) CreateBuffer(desc gpu.BufferDesc) (gpu.Buffer, error) {
	if desc.Size == 0 {
		return nil, core.InvalidDataf("buffer `%s` has zero size", desc.Label)
	}
	ctx := d.context
	createInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(desc.Size),
		Usage:       bufferUsageFlags(desc.Usage),
		SharingMode: vk.SharingModeExclusive,
	}
	var handle vk.Buffer
	if res := vk.CreateBuffer(d.LogicalDevice, &createInfo, ctx.Allocator, &handle); res != vk.Success {
		return nil, resultError(res, "vkCreateBuffer `%s`", desc.Label)
	}

	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.LogicalDevice, handle, &requirements)
	memory, err := ctx.allocateMemory(requirements, memoryFlags(desc.Memory), desc.Label)
	if err != nil {
		vk.DestroyBuffer(d.LogicalDevice, handle, ctx.Allocator)
		return nil, err
	}
	if res := vk.BindBufferMemory(d.LogicalDevice, handle, memory, 0); res != vk.Success {
		vk.FreeMemory(d.LogicalDevice, memory, ctx.Allocator)
		vk.DestroyBuffer(d.LogicalDevice, handle, ctx.Allocator)
		return nil, resultError(res, "vkBindBufferMemory `%s`", desc.Label)
	}
	return &VulkanBuffer{
		context: ctx,
		Handle:  handle,
		Memory:  memory,
		size:    desc.Size,
		memory:  desc.Memory,
		label:   desc.Label,
	}, nil
}

func (b *VulkanBuffer) Size() uint64 {
	return b.size
}

// Write maps the buffer, copies data at offset and unmaps it again. Host
// memory is coherent so no flush is needed.
func (b *VulkanBuffer) Write(offset uint64, data []byte) error {
	if b.memory != gpu.MemoryHostVisible {
		return core.InvalidDataf("buffer `%s` is not host visible", b.label)
	}
	if offset+uint64(len(data)) > b.size {
		return core.InvalidDataf("write of %d bytes at %d overflows buffer `%s` of %d bytes", len(data), offset, b.label, b.size)
	}
	if len(data) == 0 {
		return nil
	}
	var mapped unsafe.Pointer
	if res := vk.MapMemory(b.context.Device.LogicalDevice, b.Memory, vk.DeviceSize(offset), vk.DeviceSize(len(data)), 0, &mapped); res != vk.Success {
		return resultError(res, "vkMapMemory `%s`", b.label)
	}
	vk.Memcopy(mapped, data)
	vk.UnmapMemory(b.context.Device.LogicalDevice, b.Memory)
	return nil
}

func (b *VulkanBuffer) Destroy() {
	device := b.context.Device.LogicalDevice
	if b.Handle != nil {
		vk.DestroyBuffer(device, b.Handle, b.context.Allocator)
		b.Handle = nil
	}
	if b.Memory != nil {
		vk.FreeMemory(device, b.Memory, b.context.Allocator)
		b.Memory = nil
	}
}
