package vulkan

import (
	"runtime"
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/portalis/engine/core"
	"github.com/spaghettifunk/portalis/engine/renderer/gpu"
)

const validationLayer = "VK_LAYER_KHRONOS_validation"

// Surface is what the backend needs from the windowing layer.
type Surface interface {
	RequiredInstanceExtensions() []string
	CreateSurface(instance vk.Instance) (vk.Surface, error)
	FramebufferSize() (uint32, uint32)
	GetInstanceProcAddress() unsafe.Pointer
}

// Backend owns the instance, surface, device and swapchain of a Vulkan
// bring-up. It implements renderer.Backend.
type Backend struct {
	context   *VulkanContext
	swapchain *VulkanSwapchain
	debug     bool
}

func New(window Surface, appName string, cfg core.RendererConfig) (*Backend, error) {
	procAddr := window.GetInstanceProcAddress()
	if procAddr == nil {
		return nil, core.GPUErrorf(false, "GetInstanceProcAddress is nil")
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		return nil, errors.Wrap(err, "failed to initialize vk")
	}

	b := &Backend{
		context: &VulkanContext{
			Allocator: nil,
			Views:     cfg.Views,
			locks:     NewVulkanLockPool(),
		},
		debug: cfg.Validation,
	}
	if err := b.initialize(window, appName, cfg.VSync); err != nil {
		b.Shutdown()
		return nil, err
	}
	core.LogInfo("Vulkan backend initialized successfully.")
	return b, nil
}

func (b *Backend) Device() gpu.Device {
	return b.context.Device
}

func (b *Backend) Swapchain() gpu.Swapchain {
	return b.swapchain
}

func (b *Backend) initialize(window Surface, appName string, vsync bool) error {
	if err := b.createInstance(window.RequiredInstanceExtensions(), appName); err != nil {
		return err
	}

	if b.debug {
		core.LogDebug("Creating Vulkan debugger...")
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if res := vk.CreateDebugReportCallback(b.context.Instance, &debugCreateInfo, b.context.Allocator, &dbg); res != vk.Success {
			return resultError(res, "vkCreateDebugReportCallbackEXT")
		}
		b.context.debugMessenger = dbg
		core.LogDebug("Vulkan debugger created.")
	}

	core.LogDebug("Creating Vulkan surface...")
	surface, err := window.CreateSurface(b.context.Instance)
	if err != nil {
		return errors.Wrap(err, "failed to create platform surface")
	}
	b.context.Surface = surface
	core.LogDebug("Vulkan surface created.")

	if err := DeviceCreate(b.context); err != nil {
		return err
	}

	width, height := window.FramebufferSize()
	sc, err := SwapchainCreate(b.context, width, height, vsync)
	if err != nil {
		return err
	}
	b.swapchain = sc
	return nil
}

func (b *Backend) createInstance(windowExtensions []string, appName string) error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(appName),
		PEngineName:        VulkanSafeString("Portalis"),
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	extensions := append([]string{}, windowExtensions...)
	if runtime.GOOS == "darwin" {
		extensions = append(extensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}

	var layers []string
	if b.debug {
		extensions = append(extensions, vk.ExtDebugReportExtensionName)
		if !hasInstanceLayer(validationLayer) {
			return core.GPUErrorf(false, "required validation layer is missing: %s", validationLayer)
		}
		layers = append(layers, validationLayer)
		core.LogInfo("Validation layers enabled.")
	}
	for _, ext := range extensions {
		core.LogDebug("Required extension: %s", ext)
	}

	createInfo.EnabledExtensionCount = uint32(len(extensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(extensions)
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(layers)

	if res := vk.CreateInstance(&createInfo, b.context.Allocator, &b.context.Instance); res != vk.Success {
		return resultError(res, "vkCreateInstance")
	}
	if err := vk.InitInstance(b.context.Instance); err != nil {
		return errors.Wrap(err, "failed to load instance functions")
	}
	core.LogInfo("Vulkan Instance created.")
	return nil
}

func hasInstanceLayer(name string) bool {
	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success {
		return false
	}
	available := make([]vk.LayerProperties, count)
	if res := vk.EnumerateInstanceLayerProperties(&count, available); res != vk.Success {
		return false
	}
	for i := range available {
		available[i].Deref()
		if cString(available[i].LayerName[:]) == name {
			return true
		}
	}
	return false
}

// Shutdown destroys everything in the opposite order of creation. The
// renderer must have released its objects before.
func (b *Backend) Shutdown() {
	ctx := b.context
	if ctx.Device != nil {
		_ = ctx.Device.WaitIdle()
	}
	if b.swapchain != nil {
		b.swapchain.Destroy()
		b.swapchain = nil
	}
	if ctx.Device != nil {
		core.LogDebug("Destroying Vulkan device...")
		ctx.Device.Destroy()
		ctx.Device = nil
	}
	if ctx.Instance == nil {
		return
	}
	if ctx.debugMessenger != vk.NullDebugReportCallback {
		core.LogDebug("Destroying Vulkan debugger...")
		vk.DestroyDebugReportCallback(ctx.Instance, ctx.debugMessenger, ctx.Allocator)
		ctx.debugMessenger = vk.NullDebugReportCallback
	}
	if ctx.Surface != vk.NullSurface {
		core.LogDebug("Destroying Vulkan surface...")
		vk.DestroySurface(ctx.Instance, ctx.Surface, ctx.Allocator)
		ctx.Surface = vk.NullSurface
	}
	core.LogDebug("Destroying Vulkan instance...")
	vk.DestroyInstance(ctx.Instance, ctx.Allocator)
	ctx.Instance = nil
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogDebug("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
