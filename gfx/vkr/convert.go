package vkr

import (
	"encoding/binary"
	"time"

	vk "github.com/vulkan-go/vulkan"

	"github.com/koru3d/koru/gfx"
)

// The gfx enumerations carry Vulkan values, so conversions below are
// casts. Only structures need to be rebuilt.

func safeString(s string) string {
	return s + "\x00"
}

func safeStrings(sgs []string) []string {
	safe := make([]string, 0, len(sgs))
	for _, s := range sgs {
		safe = append(safe, safeString(s))
	}
	return safe
}

func bool32(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}

// handle unwraps a gfx.Handle, yielding the null handle for nil.
func handle[T any](h gfx.Handle) T {
	v, _ := h.(T)
	return v
}

func handles[T any](hs []gfx.Handle) []T {
	out := make([]T, len(hs))
	for i, h := range hs {
		out[i] = handle[T](h)
	}
	return out
}

// sliceUint32 reinterprets SPIR-V bytecode as words.
func sliceUint32(code []byte) []uint32 {
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	return words
}

func timeoutNanos(timeout time.Duration) uint64 {
	if timeout < 0 {
		return ^uint64(0)
	}
	return uint64(timeout.Nanoseconds())
}

func sharing(families []uint32) (vk.SharingMode, []uint32) {
	if len(families) > 1 {
		return vk.SharingModeConcurrent, families
	}
	return vk.SharingModeExclusive, nil
}

func samples(n uint32) vk.SampleCountFlagBits {
	if n == 0 {
		n = 1
	}
	return vk.SampleCountFlagBits(n)
}

func extent2D(e gfx.Extent2D) vk.Extent2D {
	return vk.Extent2D{Width: e.Width, Height: e.Height}
}

func extent3D(e gfx.Extent3D) vk.Extent3D {
	return vk.Extent3D{Width: e.Width, Height: e.Height, Depth: e.Depth}
}

func offset3D(o gfx.Offset3D) vk.Offset3D {
	return vk.Offset3D{X: o.X, Y: o.Y, Z: o.Z}
}

func rect2D(r gfx.Rect2D) vk.Rect2D {
	return vk.Rect2D{
		Offset: vk.Offset2D{X: r.Offset.X, Y: r.Offset.Y},
		Extent: extent2D(r.Extent),
	}
}

func subresourceRange(r gfx.SubresourceRange) vk.ImageSubresourceRange {
	return vk.ImageSubresourceRange{
		AspectMask:     vk.ImageAspectFlags(r.Aspect),
		BaseMipLevel:   r.BaseMip,
		LevelCount:     r.MipCount,
		BaseArrayLayer: r.BaseLayer,
		LayerCount:     r.LayerCount,
	}
}

func subresourceLayers(aspect gfx.ImageAspect, mip, base, count uint32) vk.ImageSubresourceLayers {
	if count == 0 {
		count = 1
	}
	if aspect == 0 {
		aspect = gfx.AspectColor
	}
	return vk.ImageSubresourceLayers{
		AspectMask:     vk.ImageAspectFlags(aspect),
		MipLevel:       mip,
		BaseArrayLayer: base,
		LayerCount:     count,
	}
}

// clearValues fills the native union. A value with a zero color is
// written as depth and stencil, which for a zero depth clear yields the
// same bits as a zero color.
func clearValues(clears []gfx.ClearValue) []vk.ClearValue {
	out := make([]vk.ClearValue, len(clears))
	for i, c := range clears {
		if c.Color == [4]float32{} {
			out[i].SetDepthStencil(c.Depth, c.Stencil)
		} else {
			out[i].SetColor(c.Color[:])
		}
	}
	return out
}

func bufferImageCopies(regions []gfx.BufferImageCopy) []vk.BufferImageCopy {
	out := make([]vk.BufferImageCopy, len(regions))
	for i, r := range regions {
		out[i] = vk.BufferImageCopy{
			BufferOffset:      vk.DeviceSize(r.BufferOffset),
			BufferRowLength:   r.BufferRowLength,
			BufferImageHeight: r.BufferImageHeight,
			ImageSubresource:  subresourceLayers(r.Aspect, r.MipLevel, r.BaseLayer, r.LayerCount),
			ImageOffset:       offset3D(r.ImageOffset),
			ImageExtent:       extent3D(r.ImageExtent),
		}
	}
	return out
}

func stencilState(s gfx.StencilState) vk.StencilOpState {
	return vk.StencilOpState{
		FailOp:      vk.StencilOp(s.Fail),
		PassOp:      vk.StencilOp(s.Pass),
		DepthFailOp: vk.StencilOp(s.DepthFail),
		CompareOp:   vk.CompareOp(s.Compare),
		CompareMask: s.CompareMask,
		WriteMask:   s.WriteMask,
		Reference:   s.Reference,
	}
}

func blendAttachments(attachments []gfx.BlendAttachment) []vk.PipelineColorBlendAttachmentState {
	out := make([]vk.PipelineColorBlendAttachmentState, len(attachments))
	for i, a := range attachments {
		out[i] = vk.PipelineColorBlendAttachmentState{
			BlendEnable:         bool32(a.BlendEnable),
			SrcColorBlendFactor: vk.BlendFactor(a.SrcColor),
			DstColorBlendFactor: vk.BlendFactor(a.DstColor),
			ColorBlendOp:        vk.BlendOp(a.ColorOp),
			SrcAlphaBlendFactor: vk.BlendFactor(a.SrcAlpha),
			DstAlphaBlendFactor: vk.BlendFactor(a.DstAlpha),
			AlphaBlendOp:        vk.BlendOp(a.AlphaOp),
			ColorWriteMask:      vk.ColorComponentFlags(a.WriteMask),
		}
	}
	return out
}

func shaderStages(stages []gfx.NativeShaderStage) []vk.PipelineShaderStageCreateInfo {
	out := make([]vk.PipelineShaderStageCreateInfo, len(stages))
	for i, s := range stages {
		out[i] = shaderStage(s)
	}
	return out
}

func shaderStage(s gfx.NativeShaderStage) vk.PipelineShaderStageCreateInfo {
	entry := s.Entry
	if entry == "" {
		entry = "main"
	}
	return vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  vk.ShaderStageFlagBits(s.Stage),
		Module: handle[vk.ShaderModule](s.Module),
		PName:  safeString(entry),
	}
}

func vertexInput(info gfx.PipelineInfo) *vk.PipelineVertexInputStateCreateInfo {
	bindings := make([]vk.VertexInputBindingDescription, len(info.VertexBindings))
	for i, b := range info.VertexBindings {
		bindings[i] = vk.VertexInputBindingDescription{
			Binding:   b.Binding,
			Stride:    b.Stride,
			InputRate: vk.VertexInputRate(b.Rate),
		}
	}
	attributes := make([]vk.VertexInputAttributeDescription, len(info.VertexAttributes))
	for i, a := range info.VertexAttributes {
		attributes[i] = vk.VertexInputAttributeDescription{
			Location: a.Location,
			Binding:  a.Binding,
			Format:   vk.Format(a.Format),
			Offset:   a.Offset,
		}
	}
	return &vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(bindings)),
		PVertexBindingDescriptions:      bindings,
		VertexAttributeDescriptionCount: uint32(len(attributes)),
		PVertexAttributeDescriptions:    attributes,
	}
}

func samplerInfo(desc gfx.SamplerDesc) vk.SamplerCreateInfo {
	return vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.Filter(desc.MagFilter),
		MinFilter:               vk.Filter(desc.MinFilter),
		MipmapMode:              vk.SamplerMipmapMode(desc.MipmapMode),
		AddressModeU:            vk.SamplerAddressMode(desc.AddressU),
		AddressModeV:            vk.SamplerAddressMode(desc.AddressV),
		AddressModeW:            vk.SamplerAddressMode(desc.AddressW),
		AnisotropyEnable:        bool32(desc.MaxAnisotropy > 1),
		MaxAnisotropy:           desc.MaxAnisotropy,
		CompareEnable:           bool32(desc.CompareEnable),
		CompareOp:               vk.CompareOp(desc.CompareOp),
		MinLod:                  desc.MinLod,
		MaxLod:                  desc.MaxLod,
		BorderColor:             vk.BorderColorFloatOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
	}
}
