package view

import (
	"math"

	"github.com/fogleman/fauxgl"
	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultFovy is the vertical field of view in degrees.
const DefaultFovy = 30

// Camera is a perspective camera looking at Center.
type Camera struct {
	Eye    r3.Vec  `json:"eye"`
	Center r3.Vec  `json:"center"`
	Up     r3.Vec  `json:"up"`
	Fovy   float64 `json:"fovy"`
}

// defaultCamera looks at the origin from the (1, 1, 1) diagonal with +Z up.
func defaultCamera() Camera {
	return Camera{
		Eye:  r3.Vec{X: 1, Y: 1, Z: 1},
		Up:   r3.Vec{Z: 1},
		Fovy: DefaultFovy,
	}
}

// fit places the camera on the isometric diagonal so that a sphere of the
// given radius around center fills the view.
func fit(center r3.Vec, radius float64) Camera {
	c := defaultCamera()
	if radius <= 0 {
		radius = 1
	}
	half := c.Fovy / 2 * math.Pi / 180
	dist := 1.1 * radius / math.Sin(half)
	dir := r3.Unit(r3.Vec{X: 1, Y: 1, Z: 1})
	c.Center = center
	c.Eye = r3.Add(center, r3.Scale(dist, dir))
	return c
}

// Distance returns the eye to center distance.
func (c Camera) Distance() float64 {
	return r3.Norm(r3.Sub(c.Eye, c.Center))
}

// basis returns the unit forward, right and up vectors of the camera.
func (c Camera) basis() (forward, right, up r3.Vec) {
	forward = r3.Unit(r3.Sub(c.Center, c.Eye))
	right = r3.Cross(forward, c.Up)
	if r3.Norm(right) < 1e-12 {
		// Looking straight along Up; pick any perpendicular.
		right = r3.Cross(forward, r3.Vec{X: 1})
		if r3.Norm(right) < 1e-12 {
			right = r3.Cross(forward, r3.Vec{Y: 1})
		}
	}
	right = r3.Unit(right)
	up = r3.Cross(right, forward)
	return forward, right, up
}

// orbit rotates the eye around the center: azimuth about Up, elevation
// about the camera's right axis. Angles are in degrees. Elevation stops
// short of the poles.
func (c Camera) orbit(azimuth, elevation float64) Camera {
	off := r3.Sub(c.Eye, c.Center)
	off = rotate(off, r3.Unit(c.Up), -azimuth*math.Pi/180)

	_, right, _ := Camera{Eye: r3.Add(c.Center, off), Center: c.Center, Up: c.Up}.basis()
	next := rotate(off, right, elevation*math.Pi/180)
	const limit = 0.999
	if math.Abs(r3.Cos(next, c.Up)) < limit {
		off = next
	}
	c.Eye = r3.Add(c.Center, off)
	return c
}

// zoom moves the eye toward the center by factor (>1 zooms in).
func (c Camera) zoom(factor float64) Camera {
	if factor <= 0 {
		return c
	}
	off := r3.Scale(1/factor, r3.Sub(c.Eye, c.Center))
	if r3.Norm(off) < 1e-9 {
		return c
	}
	c.Eye = r3.Add(c.Center, off)
	return c
}

// matrix returns the combined view and projection matrix.
func (c Camera) matrix(aspect, radius float64) fauxgl.Matrix {
	dist := c.Distance()
	if radius <= 0 {
		radius = 1
	}
	near := math.Max(dist-2*radius, 1e-3*radius)
	far := dist + 2*radius
	return fauxgl.LookAt(vec(c.Eye), vec(c.Center), vec(c.Up)).Perspective(c.Fovy, aspect, near, far)
}

// rotate rotates v by theta radians about the unit axis k.
func rotate(v, k r3.Vec, theta float64) r3.Vec {
	cos, sin := math.Cos(theta), math.Sin(theta)
	return r3.Add(r3.Add(
		r3.Scale(cos, v),
		r3.Scale(sin, r3.Cross(k, v))),
		r3.Scale(r3.Dot(k, v)*(1-cos), k))
}

func vec(v r3.Vec) fauxgl.Vector {
	return fauxgl.V(v.X, v.Y, v.Z)
}
