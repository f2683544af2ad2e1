// Package sample builds a demonstration dataset with the
// github.com/deadsy/sdfx SDF library: a drilled block with a spherical boss,
// tessellated by marching cubes and decorated with point and cell scalar
// fields so every viewer control has something to act on.
package sample

import (
	"fmt"

	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/meshview/pkg/mesh"
)

// DefaultCells controls marching cubes resolution along the longest axis.
const DefaultCells = 64

// Field names attached to the sample mesh, in ArrayNames order.
const (
	FieldElevation = "Elevation"
	FieldDistance  = "Distance"
	FieldArea      = "Area"
)

// Part returns the demo solid: a 40x30x20 block with a vertical bore and a
// sphere fused on top.
func Part() (sdf.SDF3, error) {
	block, err := sdf.Box3D(v3.Vec{X: 40, Y: 30, Z: 20}, 2)
	if err != nil {
		return nil, fmt.Errorf("sample: block: %w", err)
	}
	bore, err := sdf.Cylinder3D(30, 6, 0)
	if err != nil {
		return nil, fmt.Errorf("sample: bore: %w", err)
	}
	boss, err := sdf.Sphere3D(9)
	if err != nil {
		return nil, fmt.Errorf("sample: boss: %w", err)
	}
	boss = sdf.Transform3D(boss, sdf.Translate3d(v3.Vec{X: 10, Y: 0, Z: 10}))
	return sdf.Union3D(sdf.Difference3D(block, bore), boss), nil
}

// Build tessellates Part with the given marching cubes resolution (0 means
// DefaultCells) and attaches the sample fields.
func Build(cells int) (*mesh.Mesh, error) {
	if cells <= 0 {
		cells = DefaultCells
	}
	part, err := Part()
	if err != nil {
		return nil, err
	}
	m := ToMesh(part, cells)
	if m.IsEmpty() {
		return nil, fmt.Errorf("sample: tessellation produced no triangles")
	}
	addFields(m)
	return m, nil
}

// ToMesh converts a solid to an indexed triangle mesh using marching cubes,
// merging the duplicate corners marching cubes emits.
func ToMesh(s sdf.SDF3, cells int) *mesh.Mesh {
	renderer := render.NewMarchingCubesUniform(cells)
	triangles := render.ToTriangles(s, renderer)

	m := &mesh.Mesh{
		Points:    make([]float32, 0, len(triangles)*3),
		Triangles: make([]uint32, 0, len(triangles)*3),
	}
	index := make(map[[3]float32]uint32, len(triangles))
	for _, tri := range triangles {
		var ids [3]uint32
		for j := 0; j < 3; j++ {
			v := tri[j]
			key := [3]float32{float32(v.X), float32(v.Y), float32(v.Z)}
			id, ok := index[key]
			if !ok {
				id = uint32(len(m.Points) / 3)
				m.Points = append(m.Points, key[0], key[1], key[2])
				index[key] = id
			}
			ids[j] = id
		}
		// Marching cubes can emit slivers that collapse onto one point.
		if ids[0] == ids[1] || ids[1] == ids[2] || ids[0] == ids[2] {
			continue
		}
		m.Triangles = append(m.Triangles, ids[0], ids[1], ids[2])
	}
	return m
}

// addFields attaches Elevation (z), Distance (from the bounding box center)
// and per-triangle Area.
func addFields(m *mesh.Mesh) {
	b := m.Bounds()
	center := r3.Scale(0.5, r3.Add(b.Min, b.Max))

	elev := make([]float64, m.PointCount())
	dist := make([]float64, m.PointCount())
	for i := range elev {
		p := m.Point(uint32(i))
		elev[i] = p.Z
		dist[i] = r3.Norm(r3.Sub(p, center))
	}

	area := make([]float64, m.TriangleCount())
	for i := range area {
		a := m.Point(m.Triangles[3*i])
		u := m.Point(m.Triangles[3*i+1])
		v := m.Point(m.Triangles[3*i+2])
		area[i] = 0.5 * r3.Norm(r3.Cross(r3.Sub(u, a), r3.Sub(v, a)))
	}

	m.AddArray(FieldElevation, mesh.PointData, elev)
	m.AddArray(FieldDistance, mesh.PointData, dist)
	m.AddArray(FieldArea, mesh.CellData, area)
}
