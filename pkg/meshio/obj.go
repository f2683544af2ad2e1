package meshio

import (
	"github.com/fogleman/fauxgl"

	"github.com/chazu/meshview/pkg/mesh"
)

// readOBJ decodes Wavefront OBJ faces. Normals and texture coordinates are
// dropped; the view computes its own shading.
func readOBJ(path string) (*mesh.Mesh, error) {
	src, err := fauxgl.LoadOBJ(path)
	if err != nil {
		return nil, err
	}
	w := newWelder(len(src.Triangles))
	for _, t := range src.Triangles {
		w.triangle(vec32(t.V1.Position), vec32(t.V2.Position), vec32(t.V3.Position))
	}
	for _, l := range src.Lines {
		w.m.Lines = append(w.m.Lines, w.vertex(vec32(l.V1.Position)), w.vertex(vec32(l.V2.Position)))
	}
	return w.m, nil
}

func vec32(v fauxgl.Vector) [3]float32 {
	return [3]float32{float32(v.X), float32(v.Y), float32(v.Z)}
}
