package view

import (
	"math"

	"github.com/fogleman/fauxgl"
)

const ambient = 0.3

// surfaceShader lights both faces of a triangle with a headlight and keeps
// the per-vertex color the tessellator assigned.
type surfaceShader struct {
	matrix fauxgl.Matrix
	light  fauxgl.Vector
}

func (s *surfaceShader) Vertex(v fauxgl.Vertex) fauxgl.Vertex {
	v.Output = s.matrix.MulPositionW(v.Position)
	return v
}

func (s *surfaceShader) Fragment(v fauxgl.Vertex) fauxgl.Color {
	d := math.Abs(v.Normal.Normalize().Dot(s.light))
	k := ambient + (1-ambient)*d
	return fauxgl.Color{R: v.Color.R * k, G: v.Color.G * k, B: v.Color.B * k, A: 1}
}

// flatShader draws lines in their vertex color.
type flatShader struct {
	matrix fauxgl.Matrix
}

func (s *flatShader) Vertex(v fauxgl.Vertex) fauxgl.Vertex {
	v.Output = s.matrix.MulPositionW(v.Position)
	return v
}

func (s *flatShader) Fragment(v fauxgl.Vertex) fauxgl.Color {
	return opaque(v.Color)
}

// spriteShader turns a textured quad into a round point. In gaussian mode
// alpha falls off with distance from the sprite center.
type spriteShader struct {
	matrix   fauxgl.Matrix
	gaussian bool
}

func (s *spriteShader) Vertex(v fauxgl.Vertex) fauxgl.Vertex {
	v.Output = s.matrix.MulPositionW(v.Position)
	return v
}

func (s *spriteShader) Fragment(v fauxgl.Vertex) fauxgl.Color {
	r2 := v.Texture.X*v.Texture.X + v.Texture.Y*v.Texture.Y
	if r2 > 1 {
		return fauxgl.Discard
	}
	c := opaque(v.Color)
	if s.gaussian {
		c.A = math.Exp(-4 * r2)
	}
	return c
}

func opaque(c fauxgl.Color) fauxgl.Color {
	c.A = 1
	return c
}
