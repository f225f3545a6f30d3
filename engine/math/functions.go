package math

import m "math"

const (
	K_PI float32 = 3.14159265358979323846
	// A multiplier used to convert degrees to radians.
	K_DEG2RAD_MULTIPLIER float32 = K_PI / 180.0
	// Smallest positive number where 1.0 + FLOAT_EPSILON != 0
	K_FLOAT_EPSILON float32 = 1.192092896e-07
)

func ktan(x float32) float32 {
	return float32(m.Tan(float64(x)))
}

func ksqrt(x float32) float32 {
	return float32(m.Sqrt(float64(x)))
}

func Sin(x float32) float32 {
	return float32(m.Sin(float64(x)))
}

func Cos(x float32) float32 {
	return float32(m.Cos(float64(x)))
}

func Atan2(y, x float32) float32 {
	return float32(m.Atan2(float64(y), float64(x)))
}

func DegToRad(degrees float32) float32 {
	return degrees * K_DEG2RAD_MULTIPLIER
}

func NewVec3(x, y, z float32) Vec3 {
	return Vec3{X: x, Y: y, Z: z}
}

func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{v.X + other.X, v.Y + other.Y, v.Z + other.Z}
}

func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{v.X - other.X, v.Y - other.Y, v.Z - other.Z}
}

func (v Vec3) MulScalar(scalar float32) Vec3 {
	return Vec3{v.X * scalar, v.Y * scalar, v.Z * scalar}
}

func (v Vec3) Length() float32 {
	return ksqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Normalized returns a unit length copy of v. The zero vector is returned unchanged.
func (v Vec3) Normalized() Vec3 {
	length := v.Length()
	if length < K_FLOAT_EPSILON {
		return v
	}
	return Vec3{v.X / length, v.Y / length, v.Z / length}
}

func (v Vec3) Dot(other Vec3) float32 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// Cross returns a vector orthogonal to both v and other.
func (v Vec3) Cross(other Vec3) Vec3 {
	return Vec3{
		v.Y*other.Z - v.Z*other.Y,
		v.Z*other.X - v.X*other.Z,
		v.X*other.Y - v.Y*other.X}
}

func (v Vec3) Compare(other Vec3, tolerance float32) bool {
	return Abs(v.X-other.X) <= tolerance &&
		Abs(v.Y-other.Y) <= tolerance &&
		Abs(v.Z-other.Z) <= tolerance
}

func NewMat4Identity() Mat4 {
	out := Mat4{}
	out.Data[0] = 1.0
	out.Data[5] = 1.0
	out.Data[10] = 1.0
	out.Data[15] = 1.0
	return out
}

// Mul returns mt multiplied by other.
func (mt Mat4) Mul(other Mat4) Mat4 {
	out := NewMat4Identity()
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			sum := float32(0)
			for i := 0; i < 4; i++ {
				sum += mt.Data[row*4+i] * other.Data[i*4+col]
			}
			out.Data[row*4+col] = sum
		}
	}
	return out
}

// NewMat4Orthographic builds an orthographic projection, typically used for
// directional light shadow maps.
func NewMat4Orthographic(left, right, bottom, top, nearClip, farClip float32) Mat4 {
	out := NewMat4Identity()

	lr := 1.0 / (left - right)
	bt := 1.0 / (bottom - top)
	nf := 1.0 / (nearClip - farClip)

	out.Data[0] = -2.0 * lr
	out.Data[5] = -2.0 * bt
	out.Data[10] = 2.0 * nf

	out.Data[12] = (left + right) * lr
	out.Data[13] = (top + bottom) * bt
	out.Data[14] = (farClip + nearClip) * nf
	return out
}

// NewMat4Perspective builds a perspective projection from a vertical field of view in radians.
func NewMat4Perspective(fovRadians, aspectRatio, nearClip, farClip float32) Mat4 {
	halfTanFov := ktan(fovRadians * 0.5)
	out := Mat4{}
	out.Data[0] = 1.0 / (aspectRatio * halfTanFov)
	out.Data[5] = 1.0 / halfTanFov
	out.Data[10] = -((farClip + nearClip) / (farClip - nearClip))
	out.Data[11] = -1.0
	out.Data[14] = -((2.0 * farClip * nearClip) / (farClip - nearClip))
	return out
}

// NewMat4LookAt builds a view matrix looking at target from position.
func NewMat4LookAt(position, target, up Vec3) Mat4 {
	out := Mat4{}
	zAxis := target.Sub(position).Normalized()
	xAxis := up.Cross(zAxis).Normalized()
	yAxis := zAxis.Cross(xAxis)

	out.Data[0] = xAxis.X
	out.Data[1] = yAxis.X
	out.Data[2] = -zAxis.X
	out.Data[4] = xAxis.Y
	out.Data[5] = yAxis.Y
	out.Data[6] = -zAxis.Y
	out.Data[8] = xAxis.Z
	out.Data[9] = yAxis.Z
	out.Data[10] = -zAxis.Z
	out.Data[12] = -xAxis.Dot(position)
	out.Data[13] = -yAxis.Dot(position)
	out.Data[14] = zAxis.Dot(position)
	out.Data[15] = 1.0
	return out
}
