package mesh

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Association tells whether a data array holds one value per point or one
// value per cell.
type Association int

const (
	PointData Association = iota // one value per point
	CellData                     // one value per cell (triangles, then lines)
)

func (a Association) String() string {
	switch a {
	case PointData:
		return "point"
	case CellData:
		return "cell"
	default:
		return "unknown"
	}
}

// DataArray is a named scalar array. Multi-component arrays are reduced to
// their magnitude by the readers before they get here.
type DataArray struct {
	Name        string      `json:"name"`
	Association Association `json:"association"`
	Values      []float64   `json:"values"`
}

// Range returns the minimum and maximum finite value of the array.
// ok is false when the array holds no finite values.
func (d *DataArray) Range() (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range d.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
		ok = true
	}
	if !ok {
		return 0, 0, false
	}
	return lo, hi, true
}

// Mesh is a surface dataset. All index arrays are flat: Points has 3 floats
// per point, Triangles 3 indices per triangle, Lines 2 indices per segment.
// Cells are numbered triangles first, then lines.
type Mesh struct {
	Points    []float32   `json:"points"`
	Triangles []uint32    `json:"triangles"`
	Lines     []uint32    `json:"lines,omitempty"`
	Arrays    []DataArray `json:"arrays,omitempty"`

	// ActiveScalars names the point array used for coloring when the
	// caller does not pick one. Empty means render uncolored.
	ActiveScalars string `json:"activeScalars,omitempty"`
}

// PointCount returns the number of points.
func (m *Mesh) PointCount() int {
	return len(m.Points) / 3
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Triangles) / 3
}

// LineCount returns the number of line segments.
func (m *Mesh) LineCount() int {
	return len(m.Lines) / 2
}

// CellCount returns the number of cells a CellData array must cover.
func (m *Mesh) CellCount() int {
	return m.TriangleCount() + m.LineCount()
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return len(m.Points) == 0
}

// Point returns point i as a vector.
func (m *Mesh) Point(i uint32) r3.Vec {
	p := m.Points[3*i : 3*i+3]
	return r3.Vec{X: float64(p[0]), Y: float64(p[1]), Z: float64(p[2])}
}

// Bounds returns the axis-aligned bounding box of all points. An empty
// mesh has a zero box.
func (m *Mesh) Bounds() r3.Box {
	if m.IsEmpty() {
		return r3.Box{}
	}
	inf := math.Inf(1)
	b := r3.Box{
		Min: r3.Vec{X: inf, Y: inf, Z: inf},
		Max: r3.Vec{X: -inf, Y: -inf, Z: -inf},
	}
	for i := 0; i < m.PointCount(); i++ {
		p := m.Point(uint32(i))
		b.Min = r3.Vec{X: math.Min(b.Min.X, p.X), Y: math.Min(b.Min.Y, p.Y), Z: math.Min(b.Min.Z, p.Z)}
		b.Max = r3.Vec{X: math.Max(b.Max.X, p.X), Y: math.Max(b.Max.Y, p.Y), Z: math.Max(b.Max.Z, p.Z)}
	}
	return b
}

// ArrayNames returns the names of all data arrays: point arrays first, then
// cell arrays, each group in the order the file declared them.
func (m *Mesh) ArrayNames() []string {
	names := make([]string, 0, len(m.Arrays))
	for _, assoc := range []Association{PointData, CellData} {
		for _, a := range m.Arrays {
			if a.Association == assoc {
				names = append(names, a.Name)
			}
		}
	}
	return names
}

// Array returns the data array with the given name.
func (m *Mesh) Array(name string) (*DataArray, bool) {
	for i := range m.Arrays {
		if m.Arrays[i].Name == name {
			return &m.Arrays[i], true
		}
	}
	return nil, false
}

// AddArray appends a data array. If the mesh has no active scalars yet and
// the array is point data, it becomes the active scalars.
func (m *Mesh) AddArray(name string, assoc Association, values []float64) {
	m.Arrays = append(m.Arrays, DataArray{Name: name, Association: assoc, Values: values})
	if m.ActiveScalars == "" && assoc == PointData {
		m.ActiveScalars = name
	}
}

// Validate checks that index and data arrays are consistent with the point
// and cell counts.
func (m *Mesh) Validate() error {
	if len(m.Points)%3 != 0 {
		return fmt.Errorf("mesh: points length %d is not a multiple of 3", len(m.Points))
	}
	if len(m.Triangles)%3 != 0 {
		return fmt.Errorf("mesh: triangles length %d is not a multiple of 3", len(m.Triangles))
	}
	if len(m.Lines)%2 != 0 {
		return fmt.Errorf("mesh: lines length %d is not a multiple of 2", len(m.Lines))
	}
	n := uint32(m.PointCount())
	for _, idx := range m.Triangles {
		if idx >= n {
			return fmt.Errorf("mesh: triangle index %d out of range (%d points)", idx, n)
		}
	}
	for _, idx := range m.Lines {
		if idx >= n {
			return fmt.Errorf("mesh: line index %d out of range (%d points)", idx, n)
		}
	}
	seen := make(map[string]bool, len(m.Arrays))
	for _, a := range m.Arrays {
		if seen[a.Name] {
			return fmt.Errorf("mesh: duplicate array name %q", a.Name)
		}
		seen[a.Name] = true
		want := m.PointCount()
		if a.Association == CellData {
			want = m.CellCount()
		}
		if len(a.Values) != want {
			return fmt.Errorf("mesh: %s array %q has %d values, want %d", a.Association, a.Name, len(a.Values), want)
		}
	}
	if m.ActiveScalars != "" {
		if a, ok := m.Array(m.ActiveScalars); !ok || a.Association != PointData {
			return fmt.Errorf("mesh: active scalars %q is not a point array", m.ActiveScalars)
		}
	}
	return nil
}
