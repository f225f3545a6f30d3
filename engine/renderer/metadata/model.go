package metadata

import (
	"fmt"

	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
)

// ModelKind is the closed set of model types a render system can build a
// pipeline for. Every per-kind decision goes through the switch in layoutOf.
type ModelKind int

const (
	// ModelObj is a static mesh with position, color, normal and uv.
	ModelObj ModelKind = iota
	// ModelGLTF is a skinned mesh with two uv sets, joints and weights.
	ModelGLTF
	// ModelQuad is a screen-space quad with a 2D position and uv.
	ModelQuad
)

var modelKindNames = map[ModelKind]string{
	ModelObj:  "obj",
	ModelGLTF: "gltf",
	ModelQuad: "quad",
}

func (k ModelKind) String() string {
	if name, ok := modelKindNames[k]; ok {
		return name
	}
	return "unknown"
}

func ParseModelKind(s string) (ModelKind, error) {
	for kind, name := range modelKindNames {
		if name == s {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("unknown model kind %q", s)
}

// VertexAttribute is one input location of binding 0.
type VertexAttribute struct {
	Location uint32
	Format   gpu.Format
	Offset   uint32
}

type VertexLayout struct {
	Stride     uint32
	Attributes []VertexAttribute
}

type modelLayout struct {
	formats []gpu.Format
	// shadow is how many leading attributes the depth-only pipeline consumes.
	shadow int
	// samplers is the number of per-object image bindings of the color pipeline.
	samplers int
}

func layoutOf(k ModelKind) (modelLayout, bool) {
	switch k {
	case ModelObj:
		return modelLayout{
			formats: []gpu.Format{
				gpu.FormatR32G32B32Sfloat, // position
				gpu.FormatR32G32B32Sfloat, // color
				gpu.FormatR32G32B32Sfloat, // normal
				gpu.FormatR32G32Sfloat,    // uv
			},
			shadow:   1,
			samplers: 1,
		}, true
	case ModelGLTF:
		return modelLayout{
			formats: []gpu.Format{
				gpu.FormatR32G32B32Sfloat,    // position
				gpu.FormatR32G32B32Sfloat,    // normal
				gpu.FormatR32G32Sfloat,       // uv0
				gpu.FormatR32G32Sfloat,       // uv1
				gpu.FormatR32G32B32A32Uint,   // joint0
				gpu.FormatR32G32B32A32Sfloat, // weight0
				gpu.FormatR32G32B32Sfloat,    // color
			},
			shadow:   1,
			samplers: 2,
		}, true
	case ModelQuad:
		return modelLayout{
			formats: []gpu.Format{
				gpu.FormatR32G32Sfloat, // position
				gpu.FormatR32G32Sfloat, // uv
			},
			shadow:   0,
			samplers: 1,
		}, true
	}
	return modelLayout{}, false
}

func (l modelLayout) vertexLayout(count int) VertexLayout {
	out := VertexLayout{Attributes: make([]VertexAttribute, 0, count)}
	for i, format := range l.formats {
		if i < count {
			out.Attributes = append(out.Attributes, VertexAttribute{
				Location: uint32(i),
				Format:   format,
				Offset:   out.Stride,
			})
		}
		// The stride always spans the whole vertex, even when fewer attributes are read.
		out.Stride += format.Size()
	}
	return out
}

// VertexLayout returns binding 0 of the color pipeline for k.
func (k ModelKind) VertexLayout() (VertexLayout, error) {
	l, ok := layoutOf(k)
	if !ok {
		return VertexLayout{}, fmt.Errorf("no vertex layout for model kind %d", int(k))
	}
	return l.vertexLayout(len(l.formats)), nil
}

// ShadowAttributes returns the layout the depth-only pipeline reads. A kind
// that casts no shadow has no attributes.
func (k ModelKind) ShadowAttributes() (VertexLayout, error) {
	l, ok := layoutOf(k)
	if !ok {
		return VertexLayout{}, fmt.Errorf("no vertex layout for model kind %d", int(k))
	}
	return l.vertexLayout(l.shadow), nil
}

// BindingCount is the number of per-object image bindings in the color
// pipeline. The shadow pipeline binds none.
func (k ModelKind) BindingCount() int {
	l, _ := layoutOf(k)
	return l.samplers
}

func (k ModelKind) CastsShadow() bool {
	l, _ := layoutOf(k)
	return l.shadow > 0
}
