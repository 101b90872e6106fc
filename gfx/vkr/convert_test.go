package vkr

import (
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	vk "github.com/vulkan-go/vulkan"

	"github.com/koru3d/koru/gfx"
)

func TestEnumValuesMatchVulkan(t *testing.T) {
	c := qt.New(t)

	c.Assert(int32(gfx.Suboptimal), qt.Equals, int32(vk.Suboptimal))
	c.Assert(int32(gfx.ErrorOutOfDate), qt.Equals, int32(vk.ErrorOutOfDate))
	c.Assert(int32(gfx.ErrorOutOfPoolMemory), qt.Equals, int32(vk.ErrorOutOfPoolMemory))
	c.Assert(int32(gfx.ErrorDeviceLost), qt.Equals, int32(vk.ErrorDeviceLost))
	c.Assert(uint32(gfx.FormatB8G8R8A8Unorm), qt.Equals, uint32(vk.FormatB8g8r8a8Unorm))
	c.Assert(uint32(gfx.FormatD24UnormS8Uint), qt.Equals, uint32(vk.FormatD24UnormS8Uint))
	c.Assert(uint32(gfx.LayoutPresentSrc), qt.Equals, uint32(vk.ImageLayoutPresentSrc))
	c.Assert(uint32(gfx.DescriptorInputAttachment), qt.Equals, uint32(vk.DescriptorTypeInputAttachment))
	c.Assert(uint32(gfx.StageColorAttachmentOutput), qt.Equals, uint32(vk.PipelineStageColorAttachmentOutputBit))
	c.Assert(uint32(gfx.AccessMemoryWrite), qt.Equals, uint32(vk.AccessMemoryWriteBit))
	c.Assert(uint32(gfx.PresentFifo), qt.Equals, uint32(vk.PresentModeFifo))
	c.Assert(gfx.SubpassExternal, qt.Equals, uint32(vk.SubpassExternal))
}

func TestHandleUnwrap(t *testing.T) {
	c := qt.New(t)
	c.Assert(handle[vk.Fence](nil), qt.IsNil)
	c.Assert(handle[uint32](uint32(7)), qt.Equals, uint32(7))
	c.Assert(handles[uint32]([]gfx.Handle{uint32(1), nil, "x"}), qt.DeepEquals, []uint32{1, 0, 0})
}

func TestSliceUint32(t *testing.T) {
	c := qt.New(t)
	words := sliceUint32([]byte{0x03, 0x02, 0x23, 0x07, 1, 0, 0, 0})
	c.Assert(words, qt.DeepEquals, []uint32{0x07230203, 1})
}

func TestConversions(t *testing.T) {
	c := qt.New(t)

	c.Assert(timeoutNanos(-1), qt.Equals, ^uint64(0))
	c.Assert(timeoutNanos(time.Millisecond), qt.Equals, uint64(1e6))

	mode, families := sharing([]uint32{0})
	c.Assert(mode, qt.Equals, vk.SharingModeExclusive)
	c.Assert(families, qt.IsNil)
	mode, families = sharing([]uint32{0, 2})
	c.Assert(mode, qt.Equals, vk.SharingModeConcurrent)
	c.Assert(families, qt.HasLen, 2)

	c.Assert(samples(0), qt.Equals, vk.SampleCount1Bit)
	c.Assert(samples(4), qt.Equals, vk.SampleCount4Bit)

	layers := subresourceLayers(0, 2, 1, 0)
	c.Assert(layers.AspectMask, qt.Equals, vk.ImageAspectFlags(vk.ImageAspectColorBit))
	c.Assert(layers.MipLevel, qt.Equals, uint32(2))
	c.Assert(layers.LayerCount, qt.Equals, uint32(1))

	c.Assert(safeStrings([]string{"a", "b"}), qt.DeepEquals, []string{"a\x00", "b\x00"})
	c.Assert(debugSeverity(vk.DebugReportFlags(vk.DebugReportErrorBit|vk.DebugReportWarningBit)), qt.Equals, gfx.SeverityError)
	c.Assert(debugSeverity(vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit)), qt.Equals, gfx.SeverityPerformance)
	c.Assert(debugSeverity(0), qt.Equals, gfx.SeverityDebug)
	c.Assert(adapterType(vk.PhysicalDeviceTypeDiscreteGpu), qt.Equals, gfx.AdapterDiscrete)
}

func TestPassKeys(t *testing.T) {
	c := qt.New(t)
	formats := []gfx.Format{gfx.FormatB8G8R8A8Unorm}

	pipeline := passKeyFor(formats, gfx.FormatD32Sfloat, nil)
	c.Assert(pipeline.count, qt.Equals, 1)
	c.Assert(pipeline.depth.present, qt.IsTrue)
	c.Assert(pipeline.colors[0].load, qt.Equals, gfx.LoadOpLoad)

	info := gfx.NativeRenderingInfo{
		Color: []gfx.NativeRenderingAttachment{{Format: gfx.FormatB8G8R8A8Unorm, LoadOp: gfx.LoadOpClear}},
	}
	rendering := renderingKey(info)
	c.Assert(rendering.colors[0].load, qt.Equals, gfx.LoadOpClear)
	c.Assert(rendering.depth.present, qt.IsFalse)
	c.Assert(rendering, qt.Not(qt.Equals), passKeyFor(formats, gfx.FormatUndefined, nil))
}
