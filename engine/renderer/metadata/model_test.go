package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
)

func TestVertexLayouts(t *testing.T) {
	tests := []struct {
		kind       ModelKind
		stride     uint32
		attributes int
		bindings   int
		shadow     int
	}{
		{ModelObj, 44, 4, 1, 1},
		{ModelGLTF, 84, 7, 2, 1},
		{ModelQuad, 16, 2, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			layout, err := tt.kind.VertexLayout()
			require.NoError(t, err)
			assert.Equal(t, tt.stride, layout.Stride)
			assert.Len(t, layout.Attributes, tt.attributes)
			assert.Equal(t, tt.bindings, tt.kind.BindingCount())

			shadow, err := tt.kind.ShadowAttributes()
			require.NoError(t, err)
			assert.Len(t, shadow.Attributes, tt.shadow)
			assert.Equal(t, layout.Stride, shadow.Stride)
			assert.Equal(t, tt.shadow > 0, tt.kind.CastsShadow())
		})
	}
}

func TestVertexLayoutOffsetsArePacked(t *testing.T) {
	layout, err := ModelGLTF.VertexLayout()
	require.NoError(t, err)

	var offset uint32
	for i, attr := range layout.Attributes {
		assert.Equal(t, uint32(i), attr.Location)
		assert.Equal(t, offset, attr.Offset)
		offset += attr.Format.Size()
	}
	assert.Equal(t, gpu.FormatR32G32B32A32Uint, layout.Attributes[4].Format)
}

func TestUnknownModelKind(t *testing.T) {
	kind := ModelKind(99)
	_, err := kind.VertexLayout()
	assert.Error(t, err)
	_, err = kind.ShadowAttributes()
	assert.Error(t, err)
	assert.Equal(t, 0, kind.BindingCount())
	assert.Equal(t, "unknown", kind.String())
}

func TestParseModelKind(t *testing.T) {
	kind, err := ParseModelKind("gltf")
	require.NoError(t, err)
	assert.Equal(t, ModelGLTF, kind)

	_, err = ParseModelKind("fbx")
	assert.Error(t, err)
}
