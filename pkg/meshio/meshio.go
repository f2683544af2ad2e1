// Package meshio reads surface meshes from files. The decoder is chosen by
// file extension, so callers that stage uploads on disk must keep the
// original extension on the staged name.
package meshio

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chazu/meshview/pkg/mesh"
)

// ErrUnsupportedFormat is returned for file extensions no decoder handles.
var ErrUnsupportedFormat = errors.New("meshio: unsupported file format")

// ErrNoGeometry is returned for files that decode to zero points.
var ErrNoGeometry = errors.New("meshio: no geometry")

type readFunc func(path string) (*mesh.Mesh, error)

var readers = map[string]readFunc{
	".stl": readSTL,
	".obj": readOBJ,
	".3mf": read3MF,
	".vtk": readVTK,
	".ply": readPLY,
}

// Extensions returns the supported file extensions, sorted.
func Extensions() []string {
	exts := make([]string, 0, len(readers))
	for ext := range readers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Supported reports whether path has an extension Read can decode.
func Supported(path string) bool {
	_, ok := readers[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Read decodes the mesh stored at path. The result has been validated. A
// decoder that panics on malformed input is reported as an error.
func Read(path string) (m *mesh.Mesh, err error) {
	ext := strings.ToLower(filepath.Ext(path))
	read, ok := readers[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	defer func() {
		if r := recover(); r != nil {
			m, err = nil, fmt.Errorf("meshio: read %s: %v", filepath.Base(path), r)
		}
	}()
	m, err = read(path)
	if err != nil {
		return nil, fmt.Errorf("meshio: read %s: %w", filepath.Base(path), err)
	}
	if err = m.Validate(); err != nil {
		return nil, fmt.Errorf("meshio: read %s: %w", filepath.Base(path), err)
	}
	if m.IsEmpty() {
		return nil, fmt.Errorf("%w in %s", ErrNoGeometry, filepath.Base(path))
	}
	return m, nil
}

// welder merges coincident vertices of triangle soups (STL, OBJ) into an
// indexed point list.
type welder struct {
	index map[[3]float32]uint32
	m     *mesh.Mesh
}

func newWelder(triangles int) *welder {
	return &welder{
		index: make(map[[3]float32]uint32, triangles),
		m: &mesh.Mesh{
			Points:    make([]float32, 0, triangles*3),
			Triangles: make([]uint32, 0, triangles*3),
		},
	}
}

func (w *welder) vertex(p [3]float32) uint32 {
	if i, ok := w.index[p]; ok {
		return i
	}
	i := uint32(len(w.m.Points) / 3)
	w.m.Points = append(w.m.Points, p[0], p[1], p[2])
	w.index[p] = i
	return i
}

func (w *welder) triangle(a, b, c [3]float32) {
	w.m.Triangles = append(w.m.Triangles, w.vertex(a), w.vertex(b), w.vertex(c))
}
