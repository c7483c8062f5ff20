package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/portalis/engine/core"
	"github.com/spaghettifunk/portalis/engine/renderer/gpu"
)

/**
 * @brief Holds a Vulkan pipeline and its layout.
 */
type VulkanPipeline struct {
	context *VulkanContext
	/** @brief The internal pipeline handle. */
	Handle vk.Pipeline
	/** @brief The pipeline layout. */
	PipelineLayout vk.PipelineLayout
	/** @brief The stages push constants are visible to. */
	PushConstantStages vk.ShaderStageFlags
	Label              string
}

func vkTopology(t gpu.Topology) vk.PrimitiveTopology {
	switch t {
	case gpu.TopologyLineList:
		return vk.PrimitiveTopologyLineList
	case gpu.TopologyPointList:
		return vk.PrimitiveTopologyPointList
	}
	return vk.PrimitiveTopologyTriangleList
}

// stencilState returns the depth and stencil configuration for mode. The
// reference value is dynamic state set per draw.
func stencilState(mode gpu.StencilMode) vk.PipelineDepthStencilStateCreateInfo {
	op := vk.StencilOpState{
		FailOp:      vk.StencilOpKeep,
		PassOp:      vk.StencilOpKeep,
		DepthFailOp: vk.StencilOpKeep,
		CompareOp:   vk.CompareOpEqual,
		CompareMask: 0xff,
		WriteMask:   0x00,
	}
	if mode == gpu.StencilWriteReference {
		op.CompareOp = vk.CompareOpAlways
		op.PassOp = vk.StencilOpReplace
		op.WriteMask = 0xff
	}
	return vk.PipelineDepthStencilStateCreateInfo{
		SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:       vk.True,
		DepthWriteEnable:      vk.True,
		DepthCompareOp:        vk.CompareOpLess,
		DepthBoundsTestEnable: vk.False,
		StencilTestEnable:     vk.True,
		Front:                 op,
		Back:                  op,
		MinDepthBounds:        0.0,
		MaxDepthBounds:        1.0,
	}
}

func (d *VulkanDevice) CreatePipeline(desc gpu.PipelineDesc) (gpu.Pipeline, error) {
	ctx := d.context
	renderpass, ok := desc.RenderPass.(*VulkanRenderpass)
	if !ok {
		return nil, errForeignObject
	}
	setLayout, ok := desc.Layout.(*VulkanDescriptorSetLayout)
	if !ok {
		return nil, errForeignObject
	}

	vertexStage, err := NewShaderModule(ctx, desc.VertexSPIRV, gpu.ShaderStageVertex)
	if err != nil {
		return nil, errors.Wrapf(err, "vertex module of `%s`", desc.Label)
	}
	defer vertexStage.Destroy(ctx)
	fragmentStage, err := NewShaderModule(ctx, desc.FragmentSPIRV, gpu.ShaderStageFragment)
	if err != nil {
		return nil, errors.Wrapf(err, "fragment module of `%s`", desc.Label)
	}
	defer fragmentStage.Destroy(ctx)

	outPipeline := &VulkanPipeline{
		context:            ctx,
		PushConstantStages: vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit),
		Label:              desc.Label,
	}

	// Viewport and scissor are dynamic, only the counts matter here.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	// Rasterizer
	rasterizerCreateInfo := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		LineWidth:               1.0,
		CullMode:                vk.CullModeFlags(vk.CullModeNone),
		FrontFace:               vk.FrontFaceCounterClockwise,
		DepthBiasEnable:         vk.False,
	}

	// Multisampling.
	multisamplingCreateInfo := vk.PipelineMultisampleStateCreateInfo{
		SType:                 vk.StructureTypePipelineMultisampleStateCreateInfo,
		SampleShadingEnable:   vk.False,
		RasterizationSamples:  vk.SampleCount1Bit,
		MinSampleShading:      1.0,
		AlphaToCoverageEnable: vk.False,
		AlphaToOneEnable:      vk.False,
	}

	// Depth and stencil testing.
	depthStencil := stencilState(desc.Stencil)

	colorBlendAttachmentState := vk.PipelineColorBlendAttachmentState{
		BlendEnable:         vk.True,
		SrcColorBlendFactor: vk.BlendFactorSrcAlpha,
		DstColorBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		ColorBlendOp:        vk.BlendOpAdd,
		SrcAlphaBlendFactor: vk.BlendFactorSrcAlpha,
		DstAlphaBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		AlphaBlendOp:        vk.BlendOpAdd,
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit |
			vk.ColorComponentBBit | vk.ColorComponentABit),
	}

	colorBlendStateCreateInfo := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{colorBlendAttachmentState},
	}

	// Dynamic state
	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
		vk.DynamicStateStencilReference,
	}
	dynamicStateCreateInfo := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	// Vertex input
	bindingDescription := vk.VertexInputBindingDescription{
		Binding:   0, // Binding index
		Stride:    desc.VertexStride,
		InputRate: vk.VertexInputRateVertex, // Move to next data entry for each vertex.
	}

	// Attributes: position then color, both three floats.
	attributes := []vk.VertexInputAttributeDescription{
		{Location: 0, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: 0},
		{Location: 1, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: desc.ColorOffset},
	}
	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   1,
		PVertexBindingDescriptions:      []vk.VertexInputBindingDescription{bindingDescription},
		VertexAttributeDescriptionCount: uint32(len(attributes)),
		PVertexAttributeDescriptions:    attributes,
	}

	// Input assembly
	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vkTopology(desc.Topology),
		PrimitiveRestartEnable: vk.False,
	}

	// Pipeline layout
	pipelineLayoutCreateInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: 1,
		PSetLayouts:    []vk.DescriptorSetLayout{setLayout.Handle},
	}

	// Push constants
	if desc.PushConstantSize > 0 {
		// NOTE: only 128 bytes are guaranteed, with 4-byte alignment.
		if desc.PushConstantSize > 128 || desc.PushConstantSize%4 != 0 {
			return nil, core.InvalidDataf("push constant range of %d bytes is not supported", desc.PushConstantSize)
		}
		pipelineLayoutCreateInfo.PushConstantRangeCount = 1
		pipelineLayoutCreateInfo.PPushConstantRanges = []vk.PushConstantRange{{
			StageFlags: outPipeline.PushConstantStages,
			Offset:     0,
			Size:       desc.PushConstantSize,
		}}
	}

	// Create the pipeline layout.
	if err := ctx.locks.SafeCall(PipelineManagement, func() error {
		var pPipelineLayout vk.PipelineLayout
		result := vk.CreatePipelineLayout(d.LogicalDevice, &pipelineLayoutCreateInfo, ctx.Allocator, &pPipelineLayout)
		if result != vk.Success {
			return resultError(result, "vkCreatePipelineLayout `%s`", desc.Label)
		}
		outPipeline.PipelineLayout = pPipelineLayout
		return nil
	}); err != nil {
		return nil, err
	}

	// Pipeline create
	pipelineCreateInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          2,
		PStages:             []vk.PipelineShaderStageCreateInfo{vertexStage.ShaderStageCreateInfo, fragmentStage.ShaderStageCreateInfo},
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizerCreateInfo,
		PMultisampleState:   &multisamplingCreateInfo,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlendStateCreateInfo,
		PDynamicState:       &dynamicStateCreateInfo,
		PTessellationState:  nil,
		Layout:              outPipeline.PipelineLayout,
		RenderPass:          renderpass.Handle,
		Subpass:             0,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}

	pPipelines := make([]vk.Pipeline, 1)
	if err := ctx.locks.SafeCall(PipelineManagement, func() error {
		result := vk.CreateGraphicsPipelines(d.LogicalDevice, vk.NullPipelineCache, 1,
			[]vk.GraphicsPipelineCreateInfo{pipelineCreateInfo}, ctx.Allocator, pPipelines)
		if result != vk.Success {
			return resultError(result, "vkCreateGraphicsPipelines `%s`", desc.Label)
		}
		return nil
	}); err != nil {
		outPipeline.Destroy()
		return nil, err
	}
	outPipeline.Handle = pPipelines[0]

	core.LogDebug("Graphics pipeline `%s` created!", desc.Label)
	return outPipeline, nil
}

func (pipeline *VulkanPipeline) Destroy() {
	ctx := pipeline.context
	_ = ctx.locks.SafeCall(PipelineManagement, func() error {
		// Destroy pipeline
		if pipeline.Handle != nil {
			vk.DestroyPipeline(ctx.Device.LogicalDevice, pipeline.Handle, ctx.Allocator)
			pipeline.Handle = nil
		}
		// Destroy layout
		if pipeline.PipelineLayout != nil {
			vk.DestroyPipelineLayout(ctx.Device.LogicalDevice, pipeline.PipelineLayout, ctx.Allocator)
			pipeline.PipelineLayout = nil
		}
		return nil
	})
}
