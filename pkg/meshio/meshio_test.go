package meshio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"

	"github.com/hpinc/go3mf"

	"github.com/chazu/meshview/pkg/mesh"
)

// writeFile stores content under name in a fresh temp dir and returns the path.
func writeFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const polyVTK = `# vtk DataFile Version 3.0
two triangles and a line
ASCII
DATASET POLYDATA
POINTS 4 float
0 0 0
1 0 0
1 1 0
0 1 0
LINES 1 3
2 0 2
POLYGONS 2 8
3 0 1 2
3 2 3 0
POINT_DATA 4
SCALARS Elevation float 1
LOOKUP_TABLE default
0 1 2 3
VECTORS Velocity float
3 4 0
0 0 0
1 0 0
0 0 2
CELL_DATA 3
SCALARS Cell%20Id int 1
LOOKUP_TABLE default
10 20 30
`

func TestReadVTKPolyData(t *testing.T) {
	m, err := Read(writeFile(t, "sample.vtk", []byte(polyVTK)))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if m.PointCount() != 4 || m.TriangleCount() != 2 || m.LineCount() != 1 {
		t.Fatalf("counts = %d points, %d triangles, %d lines", m.PointCount(), m.TriangleCount(), m.LineCount())
	}
	wantNames := []string{"Elevation", "Velocity", "Cell Id"}
	if got := m.ArrayNames(); !reflect.DeepEqual(got, wantNames) {
		t.Errorf("ArrayNames() = %v, want %v", got, wantNames)
	}
	if m.ActiveScalars != "Elevation" {
		t.Errorf("ActiveScalars = %q, want Elevation", m.ActiveScalars)
	}

	vel, _ := m.Array("Velocity")
	if vel.Values[0] != 5 || vel.Values[3] != 2 {
		t.Errorf("Velocity magnitudes = %v", vel.Values)
	}

	// VTK numbers the line first; the mesh orders triangles first.
	ids, _ := m.Array("Cell Id")
	if want := []float64{20, 30, 10}; !reflect.DeepEqual(ids.Values, want) {
		t.Errorf("Cell Id = %v, want %v", ids.Values, want)
	}
}

const gridVTK = `# vtk DataFile Version 4.2
tetra and quad
ASCII
DATASET UNSTRUCTURED_GRID
POINTS 5 double
0 0 0  1 0 0  0 1 0  0 0 1  1 1 0
CELLS 2 10
4 0 1 2 3
3 1 4 2
CELL_TYPES 2
10
5
CELL_DATA 2
FIELD FieldData 1
Material 1 2 int
7 8
`

func TestReadVTKUnstructuredGrid(t *testing.T) {
	m, err := Read(writeFile(t, "grid.VTK", []byte(gridVTK)))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	// 4 tetra faces + 1 triangle.
	if got := m.TriangleCount(); got != 5 {
		t.Fatalf("TriangleCount() = %d, want 5", got)
	}
	mat, ok := m.Array("Material")
	if !ok {
		t.Fatal("missing Material array")
	}
	if want := []float64{7, 7, 7, 7, 8}; !reflect.DeepEqual(mat.Values, want) {
		t.Errorf("Material = %v, want %v", mat.Values, want)
	}
	if m.ActiveScalars != "" {
		t.Errorf("ActiveScalars = %q, want none", m.ActiveScalars)
	}
}

func TestReadVTKOffsetsLayout(t *testing.T) {
	src := `# vtk DataFile Version 5.1
new layout
ASCII
DATASET POLYDATA
POINTS 4 float
0 0 0 1 0 0 1 1 0 0 1 0
POLYGONS 2 4
OFFSETS vtktypeint64
0 4
CONNECTIVITY vtktypeint64
0 1 2 3
`
	m, err := Read(writeFile(t, "quad.vtk", []byte(src)))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got := m.TriangleCount(); got != 2 {
		t.Errorf("TriangleCount() = %d, want 2", got)
	}
}

func TestReadVTKErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not vtk", "hello world\n"},
		{"binary", "# vtk DataFile Version 3.0\nx\nBINARY\nDATASET POLYDATA\n"},
		{"structured points", "# vtk DataFile Version 3.0\nx\nASCII\nDATASET STRUCTURED_POINTS\n"},
		{"truncated points", "# vtk DataFile Version 3.0\nx\nASCII\nDATASET POLYDATA\nPOINTS 3 float\n0 0 0\n"},
		{"index out of range", "# vtk DataFile Version 3.0\nx\nASCII\nDATASET POLYDATA\nPOINTS 1 float\n0 0 0\nPOLYGONS 1 4\n3 0 1 2\n"},
		{"short point data", "# vtk DataFile Version 3.0\nx\nASCII\nDATASET POLYDATA\nPOINTS 1 float\n0 0 0\nPOINT_DATA 1\nSCALARS s float\nLOOKUP_TABLE default\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Read(writeFile(t, "bad.vtk", []byte(tt.content))); err == nil {
				t.Error("Read() = nil error, want failure")
			}
		})
	}
}

const asciiPLY = `ply
format ascii 1.0
comment made by hand
element vertex 4
property float x
property float y
property float z
property float nx
property float ny
property float nz
property float quality
element face 1
property list uchar int vertex_indices
property uchar region
end_header
0 0 0 0 0 1 0.1
1 0 0 0 0 1 0.2
1 1 0 0 0 1 0.3
0 1 0 0 0 1 0.4
4 0 1 2 3 9
`

func TestReadPLYASCII(t *testing.T) {
	m, err := Read(writeFile(t, "quad.ply", []byte(asciiPLY)))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if m.TriangleCount() != 2 {
		t.Fatalf("TriangleCount() = %d, want 2", m.TriangleCount())
	}
	if got, want := m.ArrayNames(), []string{"quality", "region"}; !reflect.DeepEqual(got, want) {
		t.Errorf("ArrayNames() = %v, want %v", got, want)
	}
	region, _ := m.Array("region")
	if want := []float64{9, 9}; !reflect.DeepEqual(region.Values, want) {
		t.Errorf("region = %v, want %v", region.Values, want)
	}
	if m.ActiveScalars != "quality" {
		t.Errorf("ActiveScalars = %q, want quality", m.ActiveScalars)
	}
}

func TestReadPLYBinary(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("ply\nformat binary_little_endian 1.0\nelement vertex 3\nproperty float x\nproperty float y\nproperty float z\nproperty double temperature\nelement face 1\nproperty list uchar uint vertex_indices\nend_header\n")
	verts := [][4]float64{{0, 0, 0, 10}, {2, 0, 0, 20}, {0, 2, 0, 30}}
	for _, v := range verts {
		for _, c := range v[:3] {
			binary.Write(&buf, binary.LittleEndian, float32(c))
		}
		binary.Write(&buf, binary.LittleEndian, v[3])
	}
	buf.WriteByte(3)
	for _, i := range []uint32{0, 1, 2} {
		binary.Write(&buf, binary.LittleEndian, i)
	}

	m, err := Read(writeFile(t, "tri.ply", buf.Bytes()))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if m.PointCount() != 3 || m.TriangleCount() != 1 {
		t.Fatalf("counts = %d points, %d triangles", m.PointCount(), m.TriangleCount())
	}
	if m.Points[3] != 2 {
		t.Errorf("second point x = %v, want 2", m.Points[3])
	}
	temp, ok := m.Array("temperature")
	if !ok || !reflect.DeepEqual(temp.Values, []float64{10, 20, 30}) {
		t.Errorf("temperature = %+v", temp)
	}
}

func TestReadPLYTruncated(t *testing.T) {
	src := strings.Replace(asciiPLY, "4 0 1 2 3 9\n", "", 1)
	if _, err := Read(writeFile(t, "cut.ply", []byte(src))); err == nil {
		t.Error("Read() = nil error for truncated PLY")
	}
}

func TestReadSTLASCII(t *testing.T) {
	src := `solid tri
facet normal 0 0 1
 outer loop
  vertex 0 0 0
  vertex 1 0 0
  vertex 0 1 0
 endloop
endfacet
facet normal 0 0 1
 outer loop
  vertex 1 0 0
  vertex 1 1 0
  vertex 0 1 0
 endloop
endfacet
endsolid tri
`
	m, err := Read(writeFile(t, "tri.stl", []byte(src)))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if m.TriangleCount() != 2 {
		t.Errorf("TriangleCount() = %d, want 2", m.TriangleCount())
	}
	// Shared corners are welded.
	if m.PointCount() != 4 {
		t.Errorf("PointCount() = %d, want 4", m.PointCount())
	}
	if len(m.ArrayNames()) != 0 {
		t.Errorf("ArrayNames() = %v, want none", m.ArrayNames())
	}
}

func TestReadOBJ(t *testing.T) {
	src := "v 0 0 0\nv 1 0 0\nv 1 1 0\nv 0 1 0\nf 1 2 3\nf 3 4 1\n"
	m, err := Read(writeFile(t, "quad.obj", []byte(src)))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if m.TriangleCount() != 2 || m.PointCount() != 4 {
		t.Errorf("counts = %d points, %d triangles", m.PointCount(), m.TriangleCount())
	}
}

func TestReadUnsupported(t *testing.T) {
	_, err := Read(writeFile(t, "notes.txt", []byte("not a mesh")))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Read() error = %v, want ErrUnsupportedFormat", err)
	}
	if Supported("notes.txt") {
		t.Error("Supported(notes.txt) = true")
	}
	if !Supported("Part.STL") {
		t.Error("Supported(Part.STL) = false")
	}
}

func TestReadMissingFile(t *testing.T) {
	if _, err := Read(filepath.Join(t.TempDir(), "gone.vtk")); err == nil {
		t.Error("Read() = nil error for missing file")
	}
}

func TestExtensions(t *testing.T) {
	want := []string{".3mf", ".obj", ".ply", ".stl", ".vtk"}
	if got := Extensions(); !reflect.DeepEqual(got, want) {
		t.Errorf("Extensions() = %v, want %v", got, want)
	}
}

func TestWriteVTKRoundTrip(t *testing.T) {
	src := &mesh.Mesh{
		Points:    []float32{0, 0, 0, 1, 0, 0, 1, 1, 0, 0, 1, 0.5},
		Triangles: []uint32{0, 1, 2, 2, 3, 0},
		Lines:     []uint32{1, 3},
	}
	src.AddArray("Height", mesh.PointData, []float64{0, 0, 0, 0.5})
	src.AddArray("Wall Thickness", mesh.PointData, []float64{1.5, 2, 2.5, math.Pi})
	src.AddArray("Area", mesh.CellData, []float64{0.5, 0.5, 0})

	path := filepath.Join(t.TempDir(), "round.vtk")
	if err := WriteVTKFile(path, src, "round trip"); err != nil {
		t.Fatalf("WriteVTKFile() error = %v", err)
	}
	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !reflect.DeepEqual(got.ArrayNames(), src.ArrayNames()) {
		t.Errorf("ArrayNames() = %v, want %v", got.ArrayNames(), src.ArrayNames())
	}
	if !reflect.DeepEqual(got.Triangles, src.Triangles) || !reflect.DeepEqual(got.Lines, src.Lines) {
		t.Errorf("topology changed: %v %v", got.Triangles, got.Lines)
	}
	for _, name := range src.ArrayNames() {
		want, _ := src.Array(name)
		have, _ := got.Array(name)
		if !reflect.DeepEqual(have.Values, want.Values) {
			t.Errorf("%s = %v, want %v", name, have.Values, want.Values)
		}
	}
	if got.ActiveScalars != "Height" {
		t.Errorf("ActiveScalars = %q, want Height", got.ActiveScalars)
	}
}

func TestReadNoGeometry(t *testing.T) {
	_, err := Read(writeFile(t, "empty.obj", []byte("# nothing here\n")))
	if !errors.Is(err, ErrNoGeometry) {
		t.Errorf("Read() error = %v, want ErrNoGeometry", err)
	}
}

// readAllocs reads path and reports the bytes allocated while doing so.
func readAllocs(t *testing.T, path string) (uint64, error) {
	t.Helper()
	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	_, err := Read(path)
	runtime.ReadMemStats(&after)
	return after.TotalAlloc - before.TotalAlloc, err
}

func TestReadOversizedCounts(t *testing.T) {
	const vtkHead = "# vtk DataFile Version 3.0\nx\nASCII\nDATASET POLYDATA\n"
	var binPLY bytes.Buffer
	binPLY.WriteString("ply\nformat binary_little_endian 1.0\nelement vertex 60000000\n" +
		"property float x\nproperty float y\nproperty float z\nend_header\n")
	binary.Write(&binPLY, binary.LittleEndian, [3]float32{1, 2, 3})

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"ascii ply vertices", "big.ply", "ply\nformat ascii 1.0\nelement vertex 16777216\n" +
			"property float x\nproperty float y\nproperty float z\nproperty float a\nproperty float b\n" +
			"end_header\n0 0 0 1 2\n"},
		{"ascii ply faces", "faces.ply", "ply\nformat ascii 1.0\nelement vertex 3\n" +
			"property float x\nproperty float y\nproperty float z\n" +
			"element face 50000000\nproperty list uchar int vertex_indices\nend_header\n" +
			"0 0 0\n1 0 0\n0 1 0\n3 0 1 2\n"},
		{"binary ply vertices", "big.ply", binPLY.String()},
		{"vtk points", "big.vtk", vtkHead + "POINTS 16777216 float\n0 0 0\n"},
		{"vtk points overflow", "big.vtk", vtkHead + "POINTS 3074457345618258603 float\n0 0 0\n"},
		{"vtk polygons", "big.vtk", vtkHead + "POINTS 3 float\n0 0 0 1 0 0 0 1 0\n" +
			"POLYGONS 67108864 268435456\n3 0 1 2\n"},
		{"vtk scalars overflow", "big.vtk", vtkHead + "POINTS 1 float\n0 0 0\n" +
			"POINT_DATA 1\nSCALARS s float 4611686018427387904\nLOOKUP_TABLE default\n1\n"},
		{"vtk field overflow", "big.vtk", vtkHead + "POINTS 1 float\n0 0 0\n" +
			"POINT_DATA 1\nFIELD f 1\na 4294967296 4294967296 float\n1\n"},
		{"vtk vectors", "big.vtk", vtkHead + "POINTS 1 float\n0 0 0\n" +
			"POINT_DATA 33554432\nVECTORS v float\n1 2 3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.file, []byte(tt.content))
			alloc, err := readAllocs(t, path)
			if err == nil {
				t.Fatal("Read() = nil error, want a count error")
			}
			if alloc > 64<<20 {
				t.Errorf("Read() allocated %d bytes for a %d byte file", alloc, len(tt.content))
			}
		})
	}
}

func TestMulCount(t *testing.T) {
	tests := []struct {
		a, b    int
		want    int
		wantErr bool
	}{
		{3, 4, 12, false},
		{0, math.MaxInt, 0, false},
		{3, maxCount / 3, 3 * (maxCount / 3), false},
		{3, maxCount, 0, true},
		{3, math.MaxInt / 2, 0, true},
		{-1, 4, 0, true},
	}
	for _, tt := range tests {
		got, err := mulCount(tt.a, tt.b)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("mulCount(%d, %d) = %d, %v; want %d, err %v", tt.a, tt.b, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestRead3MF(t *testing.T) {
	model := go3mf.Model{}
	model.Resources.Objects = append(model.Resources.Objects, &go3mf.Object{
		ID:   1,
		Type: go3mf.ObjectTypeModel,
		Mesh: &go3mf.Mesh{
			Vertices: go3mf.Vertices{Vertex: []go3mf.Point3D{{0, 0, 0}, {10, 0, 0}, {0, 10, 0}}},
			Triangles: go3mf.Triangles{Triangle: []go3mf.Triangle{{V1: 0, V2: 1, V3: 2}}},
		},
	})
	model.Build.Items = append(model.Build.Items, &go3mf.Item{ObjectID: 1})

	path := filepath.Join(t.TempDir(), "tri.3mf")
	w, err := go3mf.CreateWriter(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Encode(&model); err != nil {
		w.Close()
		t.Fatalf("Encode() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	m, err := Read(path)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if m.PointCount() != 3 || m.TriangleCount() != 1 {
		t.Errorf("got %d points, %d triangles; want 3, 1", m.PointCount(), m.TriangleCount())
	}
	if got := m.Points[3:6]; !reflect.DeepEqual(got, []float32{10, 0, 0}) {
		t.Errorf("second point = %v, want [10 0 0]", got)
	}
	if len(m.Arrays) != 0 {
		t.Errorf("3MF mesh carries arrays %v", m.Arrays)
	}
}
