package vulkan

import (
	"sync"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
)

func TestResultMapping(t *testing.T) {
	tests := []struct {
		in   vk.Result
		want gpu.Result
	}{
		{vk.Success, gpu.Success},
		{vk.Suboptimal, gpu.Suboptimal},
		{vk.Timeout, gpu.Timeout},
		{vk.ErrorOutOfDate, gpu.ErrorOutOfDate},
		{vk.ErrorSurfaceLost, gpu.ErrorSurfaceLost},
		{vk.ErrorDeviceLost, gpu.ErrorDeviceLost},
		{vk.ErrorOutOfDeviceMemory, gpu.ErrorOutOfDeviceMemory},
		{vk.ErrorFragmentedPool, gpu.ErrorUnknown},
	}
	for _, tt := range tests {
		t.Run(VulkanResultString(tt.in, false), func(t *testing.T) {
			assert.Equal(t, tt.want, toResult(tt.in))
		})
	}
}

func TestVulkanResultString(t *testing.T) {
	assert.Equal(t, "VK_ERROR_OUT_OF_DATE_KHR", VulkanResultString(vk.ErrorOutOfDate, false))
	assert.Contains(t, VulkanResultString(vk.ErrorOutOfDate, true), "no longer compatible")
	assert.Equal(t, "VkResult(12345)", VulkanResultString(vk.Result(12345), false))

	assert.True(t, VulkanResultIsSuccess(vk.Suboptimal))
	assert.False(t, VulkanResultIsSuccess(vk.ErrorDeviceLost))
}

func TestErrorsCarryTaxonomy(t *testing.T) {
	assert.ErrorIs(t, createError("fence", vk.ErrorOutOfHostMemory), core.ErrResourceCreation)
	assert.ErrorIs(t, callError("vkQueueSubmit", vk.ErrorDeviceLost), core.ErrDeviceLost)
	assert.ErrorIs(t, callError("vkAcquireNextImageKHR", vk.Timeout), core.ErrUnknown)
}

func TestSafeStrings(t *testing.T) {
	assert.Equal(t, "\x00", VulkanSafeString(""))
	assert.Equal(t, "abc\x00", VulkanSafeString("abc"))
	assert.Equal(t, "abc\x00", VulkanSafeString("abc\x00"))

	in := []string{"a", "b"}
	out := VulkanSafeStrings(in)
	assert.Equal(t, []string{"a\x00", "b\x00"}, out)
	assert.Equal(t, []string{"a", "b"}, in, "input is left untouched")

	name := make([]byte, 16)
	copy(name, "layer")
	assert.Equal(t, 5, FindFirstZeroInByteArray(name))
	assert.Equal(t, "layer", cString(name))
	assert.Equal(t, 3, FindFirstZeroInByteArray([]byte("abc")))
}

func TestFormatRoundTrip(t *testing.T) {
	for g := range formats {
		assert.Equal(t, g, fromVkFormat(toVkFormat(g)), g.String())
	}
	assert.Equal(t, gpu.FormatUndefined, fromVkFormat(vk.FormatR16Sfloat))
}

func TestPresentModeConversion(t *testing.T) {
	for _, mode := range []gpu.PresentMode{gpu.PresentModeFifo, gpu.PresentModeFifoRelaxed, gpu.PresentModeMailbox, gpu.PresentModeImmediate} {
		back, ok := fromVkPresentMode(toVkPresentMode(mode))
		require.True(t, ok)
		assert.Equal(t, mode, back)
	}
	_, ok := fromVkPresentMode(vk.PresentModeSharedDemandRefresh)
	assert.False(t, ok)
}

func TestFlagConversion(t *testing.T) {
	stages := toVkPipelineStages(gpu.PipelineStageColorAttachmentOutput | gpu.PipelineStageFragmentShader)
	assert.Equal(t, vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit|vk.PipelineStageFragmentShaderBit), stages)

	usage := toVkImageUsage(gpu.ImageUsageDepthStencilAttachment | gpu.ImageUsageSampled)
	assert.Equal(t, vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit|vk.ImageUsageSampledBit), usage)

	assert.Equal(t, vk.ImageAspectFlags(vk.ImageAspectDepthBit), aspectOf(gpu.FormatD32Sfloat))
	assert.Equal(t, vk.ImageAspectFlags(vk.ImageAspectDepthBit|vk.ImageAspectStencilBit), aspectOf(gpu.FormatD24UnormS8Uint))
	assert.Equal(t, vk.ImageAspectFlags(vk.ImageAspectColorBit), aspectOf(gpu.FormatB8G8R8A8Srgb))
}

func TestTransitionBarriers(t *testing.T) {
	shadow, ok := transitionBarriers(gpu.ImageLayoutUndefined, gpu.ImageLayoutShaderReadOnlyOptimal)
	require.True(t, ok)
	assert.Equal(t, vk.PipelineStageFragmentShaderBit, shadow.dstStage)
	assert.Equal(t, vk.AccessShaderReadBit, shadow.dstAccess)

	_, ok = transitionBarriers(gpu.ImageLayoutPresentSrc, gpu.ImageLayoutUndefined)
	assert.False(t, ok)
}

func TestHandleTable(t *testing.T) {
	tbl := newTable[gpu.Fence, string]()
	a := tbl.put("a")
	b := tbl.put("b")
	assert.NotEqual(t, gpu.NullFence, a)
	assert.NotEqual(t, a, b)

	v, ok := tbl.get(a)
	require.True(t, ok)
	assert.Equal(t, "a", v)

	v, ok = tbl.take(a)
	require.True(t, ok)
	assert.Equal(t, "a", v)
	_, ok = tbl.get(a)
	assert.False(t, ok)
	_, ok = tbl.take(a)
	assert.False(t, ok, "a handle is released once")

	assert.Equal(t, 1, tbl.len())
	assert.Equal(t, []string{"b"}, tbl.drain())
	assert.Equal(t, 0, tbl.len())
}

func TestLockPoolSerializesQueue(t *testing.T) {
	pool := NewVulkanLockPool()
	var wg sync.WaitGroup
	inside, maxInside := 0, 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pool.SafeQueueCall(0, func() error {
				inside++
				if inside > maxInside {
					maxInside = inside
				}
				inside--
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxInside)

	err := pool.SafeCall(SwapchainManagement, func() error { return core.ErrSurfaceLost })
	assert.ErrorIs(t, err, core.ErrSurfaceLost)
}

func TestPickDepthFormat(t *testing.T) {
	attach := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	sampled := vk.FormatFeatureFlags(vk.FormatFeatureSampledImageBit)
	linear := vk.FormatFeatureFlags(vk.FormatFeatureSampledImageFilterLinearBit)

	tests := []struct {
		name     string
		features map[vk.Format]vk.FormatFeatureFlags
		format   vk.Format
		linear   bool
		ok       bool
	}{
		{
			name: "first fully capable",
			features: map[vk.Format]vk.FormatFeatureFlags{
				vk.FormatD32Sfloat:      attach | sampled | linear,
				vk.FormatD24UnormS8Uint: attach | sampled | linear,
			},
			format: vk.FormatD32Sfloat, linear: true, ok: true,
		},
		{
			name: "attachment only is skipped",
			features: map[vk.Format]vk.FormatFeatureFlags{
				vk.FormatD32Sfloat:       attach,
				vk.FormatD32SfloatS8Uint: attach | sampled | linear,
			},
			format: vk.FormatD32SfloatS8Uint, linear: true, ok: true,
		},
		{
			name: "linear preferred over earlier nearest-only",
			features: map[vk.Format]vk.FormatFeatureFlags{
				vk.FormatD32Sfloat:      attach | sampled,
				vk.FormatD24UnormS8Uint: attach | sampled | linear,
			},
			format: vk.FormatD24UnormS8Uint, linear: true, ok: true,
		},
		{
			name: "nearest-only fallback",
			features: map[vk.Format]vk.FormatFeatureFlags{
				vk.FormatD32Sfloat: attach | sampled,
			},
			format: vk.FormatD32Sfloat, linear: false, ok: true,
		},
		{
			name: "nothing sampleable",
			features: map[vk.Format]vk.FormatFeatureFlags{
				vk.FormatD32Sfloat: attach | linear,
			},
			format: vk.FormatUndefined, ok: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			format, lin, ok := pickDepthFormat(depthFormatCandidates, func(f vk.Format) vk.FormatFeatureFlags {
				return tt.features[f]
			})
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.format, format)
			assert.Equal(t, tt.linear, lin)
		})
	}
}

func TestSamplerFilterFallsBackToNearest(t *testing.T) {
	assert.Equal(t, vk.FilterLinear, samplerFilter(gpu.FilterLinear, true, true))
	assert.Equal(t, vk.FilterNearest, samplerFilter(gpu.FilterLinear, true, false))
	// color samplers are not affected by the depth format
	assert.Equal(t, vk.FilterLinear, samplerFilter(gpu.FilterLinear, false, false))
	assert.Equal(t, vk.FilterNearest, samplerFilter(gpu.FilterNearest, true, true))
}
