package components

import (
	"github.com/spaghettifunk/penumbra/engine/math"
)

// Camera is a perspective look-at camera. The frame core only ever updates its
// aspect ratio; everything else is owned by the application.
type Camera struct {
	Position math.Vec3
	Target   math.Vec3
	Up       math.Vec3

	FovRadians float32
	Near, Far  float32

	aspect float32
	// Internal flag used to determine when the matrices need to be rebuilt.
	isDirty    bool
	view       math.Mat4
	projection math.Mat4
}

func NewCamera(position, target math.Vec3, fovDegrees float32) *Camera {
	return &Camera{
		Position:   position,
		Target:     target,
		Up:         math.NewVec3(0, 1, 0),
		FovRadians: math.DegToRad(fovDegrees),
		Near:       0.1,
		Far:        1000.0,
		aspect:     1.0,
		isDirty:    true,
	}
}

// SetAspectRatio is called once per frame with the aspect of the current surface.
func (c *Camera) SetAspectRatio(aspect float32) {
	if aspect <= 0 || aspect == c.aspect {
		return
	}
	c.aspect = aspect
	c.isDirty = true
}

func (c *Camera) AspectRatio() float32 {
	return c.aspect
}

func (c *Camera) SetPosition(position math.Vec3) {
	c.Position = position
	c.isDirty = true
}

func (c *Camera) LookAt(target math.Vec3) {
	c.Target = target
	c.isDirty = true
}

func (c *Camera) View() math.Mat4 {
	c.rebuild()
	return c.view
}

func (c *Camera) Projection() math.Mat4 {
	c.rebuild()
	return c.projection
}

func (c *Camera) rebuild() {
	if !c.isDirty {
		return
	}
	c.view = math.NewMat4LookAt(c.Position, c.Target, c.Up)
	c.projection = math.NewMat4Perspective(c.FovRadians, c.aspect, c.Near, c.Far)
	c.isDirty = false
}

// Orbit moves the camera around its target on the XZ plane by angle radians.
func (c *Camera) Orbit(angle float32) {
	offset := c.Position.Sub(c.Target)
	radius := math.NewVec3(offset.X, 0, offset.Z).Length()
	if radius < math.K_FLOAT_EPSILON {
		return
	}
	current := math.Atan2(offset.Z, offset.X) + angle
	c.Position = math.NewVec3(c.Target.X+radius*math.Cos(current), c.Position.Y, c.Target.Z+radius*math.Sin(current))
	c.isDirty = true
}
