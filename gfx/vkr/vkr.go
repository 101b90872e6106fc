// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package vkr implements the gfx driver on top of Vulkan.
package vkr

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
	vk "github.com/vulkan-go/vulkan"

	"github.com/koru3d/koru/gfx"
)

// ValidationLayer is enabled when Config.Debug is set.
const ValidationLayer = "VK_LAYER_KHRONOS_validation"

// Config configures instance creation.
type Config struct {
	// ApplicationName is reported to the driver. Defaults to "Koru3D".
	ApplicationName string

	// Extensions and Layers are enabled on the instance in addition
	// to the ones the driver needs itself.
	Extensions []string
	Layers     []string

	// Debug enables the validation layer and debug report extension.
	Debug bool

	// ProcAddr is the windowing system's vkGetInstanceProcAddr.
	// When nil the system Vulkan loader is used.
	ProcAddr unsafe.Pointer

	// CreateSurface creates a window surface on the new instance.
	// Without it the backend is headless and no queue family
	// reports presentation support.
	CreateSurface func(instance vk.Instance) (vk.Surface, error)

	// Logger defaults to the logrus standard logger.
	Logger *logrus.Logger
}

// Backend implements gfx.Backend.
type Backend struct {
	cfg      Config
	log      *logrus.Logger
	instance vk.Instance
	surface  vk.Surface
	physical []vk.PhysicalDevice

	callback gfx.DebugCallback
	report   vk.DebugReportCallback
	reporter bool
}

// New creates the Vulkan instance and, when configured, the window
// surface devices present to.
func New(cfg Config) (*Backend, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.ApplicationName == "" {
		cfg.ApplicationName = "Koru3D"
	}
	if cfg.Debug {
		cfg.Layers = append(cfg.Layers, ValidationLayer)
		cfg.Extensions = append(cfg.Extensions, vk.ExtDebugReportExtensionName)
	}

	if cfg.ProcAddr == nil {
		if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
			return nil, errors.Wrap(err, "vk.SetDefaultGetInstanceProcAddr()")
		}
	} else {
		vk.SetGetInstanceProcAddr(cfg.ProcAddr)
	}
	if err := vk.Init(); err != nil {
		return nil, errors.Wrap(err, "vk.Init()")
	}

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         vk.MakeVersion(1, 0, 0),
		ApplicationVersion: vk.MakeVersion(1, 0, 0),
		PApplicationName:   safeString(cfg.ApplicationName),
		PEngineName:        safeString("Koru3D"),
	}
	instanceInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        appInfo,
		EnabledExtensionCount:   uint32(len(cfg.Extensions)),
		PpEnabledExtensionNames: safeStrings(cfg.Extensions),
		EnabledLayerCount:       uint32(len(cfg.Layers)),
		PpEnabledLayerNames:     safeStrings(cfg.Layers),
	}

	var instance vk.Instance
	if err := vk.Error(vk.CreateInstance(&instanceInfo, nil, &instance)); err != nil {
		return nil, errors.Wrap(err, "vk.CreateInstance()")
	}
	vk.InitInstance(instance)

	b := &Backend{
		cfg:      cfg,
		log:      cfg.Logger,
		instance: instance,
	}

	physical, err := enumerateDevices(instance)
	if err != nil {
		b.Destroy()
		return nil, err
	}
	b.physical = physical

	if cfg.CreateSurface != nil {
		surface, err := cfg.CreateSurface(instance)
		if err != nil {
			b.Destroy()
			return nil, errors.Wrap(err, "vkr: creating window surface")
		}
		b.surface = surface
	}

	b.log.WithFields(logrus.Fields{
		"layers":     cfg.Layers,
		"extensions": cfg.Extensions,
		"devices":    len(physical),
	}).Debug("vulkan instance created")
	return b, nil
}

func enumerateDevices(instance vk.Instance) ([]vk.PhysicalDevice, error) {
	var count uint32
	if err := vk.Error(vk.EnumeratePhysicalDevices(instance, &count, nil)); err != nil {
		return nil, errors.Wrap(err, "vk.EnumeratePhysicalDevices()")
	}
	devices := make([]vk.PhysicalDevice, count)
	if err := vk.Error(vk.EnumeratePhysicalDevices(instance, &count, devices)); err != nil {
		return nil, errors.Wrap(err, "vk.EnumeratePhysicalDevices()")
	}
	return devices[:count], nil
}

// Name implements interface
func (b *Backend) Name() string {
	return "vulkan"
}

// Instance returns the native instance handle.
func (b *Backend) Instance() vk.Instance {
	return b.instance
}

// Adapters implements interface. An adapter whose properties cannot be
// queried is returned with Invalid set rather than failing the call.
func (b *Backend) Adapters() ([]gfx.AdapterInfo, error) {
	adapters := make([]gfx.AdapterInfo, len(b.physical))
	for i, pd := range b.physical {
		adapters[i] = b.adapterInfo(pd)
	}
	return adapters, nil
}

func (b *Backend) adapterInfo(pd vk.PhysicalDevice) gfx.AdapterInfo {
	var info gfx.AdapterInfo

	var numExtensions uint32
	if err := vk.Error(vk.EnumerateDeviceExtensionProperties(pd, "", &numExtensions, nil)); err != nil {
		info.Invalid = true
	}
	extensions := make([]vk.ExtensionProperties, numExtensions)
	if err := vk.Error(vk.EnumerateDeviceExtensionProperties(pd, "", &numExtensions, extensions)); err != nil {
		info.Invalid = true
	}
	for _, ext := range extensions[:numExtensions] {
		ext.Deref()
		info.Extensions = append(info.Extensions, vk.ToString(ext.ExtensionName[:]))
	}

	var numLayers uint32
	if err := vk.Error(vk.EnumerateDeviceLayerProperties(pd, &numLayers, nil)); err != nil {
		info.Invalid = true
	}
	layers := make([]vk.LayerProperties, numLayers)
	if err := vk.Error(vk.EnumerateDeviceLayerProperties(pd, &numLayers, layers)); err != nil {
		info.Invalid = true
	}
	for _, layer := range layers[:numLayers] {
		layer.Deref()
		info.Layers = append(info.Layers, vk.ToString(layer.LayerName[:]))
	}

	var memory vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(pd, &memory)
	memory.Deref()
	for i := uint32(0); i < memory.MemoryHeapCount; i++ {
		memory.MemoryHeaps[i].Deref()
		info.Memory += uint64(memory.MemoryHeaps[i].Size)
	}

	var props vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(pd, &props)
	props.Deref()
	info.ID = int(props.DeviceID)
	info.VendorID = int(props.VendorID)
	info.Name = vk.ToString(props.DeviceName[:])
	info.DriverVersion = int(props.DriverVersion)
	info.Type = adapterType(props.DeviceType)

	var numFamilies uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &numFamilies, nil)
	families := make([]vk.QueueFamilyProperties, numFamilies)
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &numFamilies, families)
	for i := uint32(0); i < numFamilies; i++ {
		families[i].Deref()
		family := gfx.QueueFamily{
			Flags: gfx.QueueFlags(families[i].QueueFlags) & (gfx.QueueGraphics | gfx.QueueCompute | gfx.QueueTransfer),
			Count: families[i].QueueCount,
		}
		// Graphics and compute queues transfer implicitly.
		if family.Flags&(gfx.QueueGraphics|gfx.QueueCompute) != 0 {
			family.Flags |= gfx.QueueTransfer
		}
		if b.surface != nil {
			var supported vk.Bool32
			if err := vk.Error(vk.GetPhysicalDeviceSurfaceSupport(pd, i, b.surface, &supported)); err == nil {
				family.Present = supported.B()
			}
		}
		info.QueueFamilies = append(info.QueueFamilies, family)
	}
	return info
}

func adapterType(t vk.PhysicalDeviceType) gfx.AdapterType {
	switch t {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return gfx.AdapterIntegrated
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return gfx.AdapterDiscrete
	case vk.PhysicalDeviceTypeVirtualGpu:
		return gfx.AdapterVirtual
	case vk.PhysicalDeviceTypeCpu:
		return gfx.AdapterCPU
	}
	return gfx.AdapterOther
}

// SetDebugCallback implements interface. It installs a debug report
// callback, which needs the instance to be created with Config.Debug.
func (b *Backend) SetDebugCallback(cb gfx.DebugCallback) error {
	b.callback = cb
	if b.reporter || !b.cfg.Debug {
		return nil
	}

	info := vk.DebugReportCallbackCreateInfo{
		SType: vk.StructureTypeDebugReportCallbackCreateInfo,
		Flags: vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit |
			vk.DebugReportPerformanceWarningBit | vk.DebugReportInformationBit),
		PfnCallback: b.debugReport,
	}
	if err := vk.Error(vk.CreateDebugReportCallback(b.instance, &info, nil, &b.report)); err != nil {
		return errors.Wrap(err, "vk.CreateDebugReportCallback()")
	}
	b.reporter = true
	return nil
}

func (b *Backend) debugReport(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType,
	object uint64, location uint, code int32, layer string, message string, userData unsafe.Pointer) vk.Bool32 {
	if b.callback == nil {
		return vk.False
	}
	b.callback(gfx.DebugMessage{
		Severity: debugSeverity(flags),
		Layer:    layer,
		Code:     code,
		Message:  message,
	})
	return vk.False
}

func debugSeverity(flags vk.DebugReportFlags) gfx.DebugSeverity {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		return gfx.SeverityError
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		return gfx.SeverityWarning
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		return gfx.SeverityPerformance
	case flags&vk.DebugReportFlags(vk.DebugReportInformationBit) != 0:
		return gfx.SeverityInfo
	}
	return gfx.SeverityDebug
}

// CreateDevice implements interface
func (b *Backend) CreateDevice(adapter int, info gfx.DeviceInfo) (gfx.NativeDevice, error) {
	if adapter < 0 || adapter >= len(b.physical) {
		return nil, errors.Newf("vkr: adapter %d does not exist", adapter)
	}
	pd := b.physical[adapter]

	// Priorities must outlive the create call, one slice per family.
	queueInfos := make([]vk.DeviceQueueCreateInfo, 0, len(info.Queues))
	for _, q := range info.Queues {
		priorities := make([]float32, q.Count)
		for i := range priorities {
			priorities[i] = 1
		}
		queueInfos = append(queueInfos, vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: q.Family,
			QueueCount:       q.Count,
			PQueuePriorities: priorities,
		})
	}

	var features vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(pd, &features)
	features.Deref()

	dci := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(info.Extensions)),
		PpEnabledExtensionNames: safeStrings(info.Extensions),
		PEnabledFeatures: []vk.PhysicalDeviceFeatures{{
			SamplerAnisotropy: features.SamplerAnisotropy,
			FillModeNonSolid:  features.FillModeNonSolid,
			WideLines:         features.WideLines,
			DepthClamp:        features.DepthClamp,
		}},
	}

	var device vk.Device
	if err := vk.Error(vk.CreateDevice(pd, &dci, nil, &device)); err != nil {
		return nil, errors.Wrap(err, "vk.CreateDevice()")
	}
	return newDevice(b, pd, device), nil
}

// Destroy implements interface
func (b *Backend) Destroy() {
	if b.surface != nil {
		vk.DestroySurface(b.instance, b.surface, nil)
		b.surface = nil
	}
	if b.reporter {
		vk.DestroyDebugReportCallback(b.instance, b.report, nil)
		b.reporter = false
	}
	if b.instance != nil {
		vk.DestroyInstance(b.instance, nil)
		b.instance = nil
	}
}
