package meshio

import (
	"github.com/hschendel/stl"

	"github.com/chazu/meshview/pkg/mesh"
)

// readSTL decodes ASCII or binary STL. STL carries no data arrays.
func readSTL(path string) (*mesh.Mesh, error) {
	solid, err := stl.ReadFile(path)
	if err != nil {
		return nil, err
	}
	w := newWelder(len(solid.Triangles))
	for _, t := range solid.Triangles {
		w.triangle(t.Vertices[0], t.Vertices[1], t.Vertices[2])
	}
	return w.m, nil
}
