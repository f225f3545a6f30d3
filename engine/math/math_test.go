package math

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampAndAbs(t *testing.T) {
	assert.Equal(t, 3, Clamp(5, 0, 3))
	assert.Equal(t, float32(0), Clamp(float32(-1), 0, 1))
	assert.Equal(t, 0.5, Clamp(0.5, 0, 1))
	assert.Equal(t, float32(2), Abs(float32(-2)))
	assert.Equal(t, 4, Abs(4))
}

func TestAspectRatio(t *testing.T) {
	assert.InDelta(t, 16.0/9.0, AspectRatio(uint32(1920), uint32(1080)), 1e-6)
	assert.Zero(t, AspectRatio(100, 0))
}

func TestVec3(t *testing.T) {
	x := NewVec3(1, 0, 0)
	y := NewVec3(0, 1, 0)
	assert.Equal(t, NewVec3(0, 0, 1), x.Cross(y))
	assert.Zero(t, x.Dot(y))
	assert.InDelta(t, 5, NewVec3(3, 4, 0).Length(), 1e-6)
	assert.True(t, NewVec3(3, 4, 0).Normalized().Compare(NewVec3(0.6, 0.8, 0), 1e-6))
	assert.Equal(t, NewVec3(2, 2, 2), NewVec3(1, 1, 1).Add(NewVec3(1, 1, 1)))
	assert.Equal(t, NewVec3(2, 0, -2), NewVec3(1, 0, -1).MulScalar(2))
}

func TestMat4IdentityMul(t *testing.T) {
	m := NewMat4Perspective(DegToRad(45), 1.5, 0.1, 100)
	assert.Equal(t, m, m.Mul(NewMat4Identity()))
	assert.Equal(t, m, NewMat4Identity().Mul(m))
}

func TestLookAtMovesEyeToOrigin(t *testing.T) {
	eye := NewVec3(0, 0, 5)
	view := NewMat4LookAt(eye, NewVec3(0, 0, 0), NewVec3(0, 1, 0))

	// transform the eye position by the column-major view matrix
	d := view.Data
	x := d[0]*eye.X + d[4]*eye.Y + d[8]*eye.Z + d[12]
	y := d[1]*eye.X + d[5]*eye.Y + d[9]*eye.Z + d[13]
	z := d[2]*eye.X + d[6]*eye.Y + d[10]*eye.Z + d[14]
	assert.InDelta(t, 0, x, 1e-5)
	assert.InDelta(t, 0, y, 1e-5)
	assert.InDelta(t, 0, z, 1e-5)
}

func TestOrthographicMapsBoundsToClipSpace(t *testing.T) {
	m := NewMat4Orthographic(-10, 10, -10, 10, 0.1, 50)
	assert.InDelta(t, 0.1, m.Data[0], 1e-6)
	assert.InDelta(t, 0.1, m.Data[5], 1e-6)
	assert.InDelta(t, 0, m.Data[12], 1e-6)
}
