package meshio

import (
	"errors"

	"github.com/hpinc/go3mf"

	"github.com/chazu/meshview/pkg/mesh"
)

// read3MF merges every mesh object of a 3MF package into one surface.
// Build item transforms and component references are not applied.
func read3MF(path string) (*mesh.Mesh, error) {
	r, err := go3mf.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var model go3mf.Model
	if err := r.Decode(&model); err != nil {
		return nil, err
	}

	out := &mesh.Mesh{}
	for _, obj := range model.Resources.Objects {
		if obj.Mesh == nil {
			continue
		}
		base := uint32(out.PointCount())
		for _, v := range obj.Mesh.Vertices.Vertex {
			out.Points = append(out.Points, v.X(), v.Y(), v.Z())
		}
		for _, t := range obj.Mesh.Triangles.Triangle {
			out.Triangles = append(out.Triangles, base+t.V1, base+t.V2, base+t.V3)
		}
	}
	if out.IsEmpty() {
		return nil, errors.New("3mf package contains no mesh objects")
	}
	return out, nil
}
