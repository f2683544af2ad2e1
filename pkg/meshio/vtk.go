package meshio

import (
	"bufio"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/chazu/meshview/pkg/mesh"
)

// VTK cell type ids handled by the legacy reader.
const (
	vtkVertex        = 1
	vtkPolyVertex    = 2
	vtkLine          = 3
	vtkPolyLine      = 4
	vtkTriangle      = 5
	vtkTriangleStrip = 6
	vtkPolygon       = 7
	vtkPixel         = 8
	vtkQuad          = 9
	vtkTetra         = 10
	vtkVoxel         = 11
	vtkHexahedron    = 12
	vtkWedge         = 13
	vtkPyramid       = 14
)

// polydata sections in VTK's cell numbering order.
var polySections = []struct {
	keyword  string
	cellType int
}{
	{"VERTICES", vtkPolyVertex},
	{"LINES", vtkPolyLine},
	{"POLYGONS", vtkPolygon},
	{"TRIANGLE_STRIPS", vtkTriangleStrip},
}

type vtkCell struct {
	kind int
	ids  []uint32
}

type vtkArray struct {
	name   string
	assoc  mesh.Association
	values []float64
	active bool
}

type vtkFile struct {
	points   []float32
	sections map[string][]vtkCell // polydata
	cells    []vtkCell            // unstructured grid
	arrays   []vtkArray
}

// readVTK decodes legacy ASCII VTK files holding POLYDATA or
// UNSTRUCTURED_GRID datasets. Volume cells contribute all of their faces.
func readVTK(path string) (*mesh.Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	br := bufio.NewReader(f)
	header, err := br.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("vtk: reading header: %w", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(header), "# vtk DataFile") {
		return nil, errors.New("vtk: missing '# vtk DataFile' header")
	}
	if _, err := br.ReadString('\n'); err != nil {
		return nil, fmt.Errorf("vtk: reading title: %w", err)
	}

	t := newTokens(br, info.Size())
	enc, err := t.word()
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(enc, "ASCII") {
		return nil, fmt.Errorf("vtk: %s encoding is not supported", enc)
	}
	if err := t.expect("DATASET"); err != nil {
		return nil, fmt.Errorf("vtk: %w", err)
	}
	kind, err := t.word()
	if err != nil {
		return nil, err
	}
	if kind != "POLYDATA" && kind != "UNSTRUCTURED_GRID" {
		return nil, fmt.Errorf("vtk: dataset %s is not supported", kind)
	}

	vf := &vtkFile{sections: make(map[string][]vtkCell)}
	if err := vf.parse(t); err != nil {
		return nil, fmt.Errorf("vtk: %w", err)
	}
	return vf.build(kind)
}

func (vf *vtkFile) parse(t *tokens) error {
	assoc := mesh.PointData
	inData := false
	count := 0
	for {
		w, ok := t.next()
		if !ok {
			return t.s.Err()
		}
		switch w {
		case "POINTS":
			n, err := t.count()
			if err != nil {
				return err
			}
			if _, err := t.word(); err != nil {
				return err
			}
			n3, err := mulCount(3, n)
			if err != nil {
				return fmt.Errorf("POINTS: %w", err)
			}
			vals, err := t.numbers(n3)
			if err != nil {
				return fmt.Errorf("POINTS: %w", err)
			}
			vf.points = make([]float32, len(vals))
			for i, v := range vals {
				vf.points[i] = float32(v)
			}
		case "VERTICES", "LINES", "POLYGONS", "TRIANGLE_STRIPS", "CELLS":
			lists, err := readCellLists(t)
			if err != nil {
				return fmt.Errorf("%s: %w", w, err)
			}
			if w == "CELLS" {
				vf.cells = make([]vtkCell, len(lists))
				for i, ids := range lists {
					vf.cells[i] = vtkCell{ids: ids}
				}
				continue
			}
			cells := make([]vtkCell, len(lists))
			for i, ids := range lists {
				cells[i] = vtkCell{ids: ids}
			}
			vf.sections[w] = cells
		case "CELL_TYPES":
			n, err := t.count()
			if err != nil {
				return err
			}
			if n != len(vf.cells) {
				return fmt.Errorf("CELL_TYPES: %d types for %d cells", n, len(vf.cells))
			}
			for i := range vf.cells {
				k, err := t.count()
				if err != nil {
					return fmt.Errorf("CELL_TYPES: %w", err)
				}
				vf.cells[i].kind = k
			}
		case "POINT_DATA", "CELL_DATA":
			n, err := t.count()
			if err != nil {
				return err
			}
			assoc, count, inData = mesh.PointData, n, true
			if w == "CELL_DATA" {
				assoc = mesh.CellData
			}
		case "SCALARS":
			name, vals, err := readScalars(t, count)
			if err != nil {
				return fmt.Errorf("SCALARS: %w", err)
			}
			vf.add(name, assoc, vals, assoc == mesh.PointData)
		case "VECTORS", "NORMALS":
			name, err := t.word()
			if err != nil {
				return err
			}
			if _, err := t.word(); err != nil {
				return err
			}
			n3, err := mulCount(3, count)
			if err != nil {
				return fmt.Errorf("%s: %w", w, err)
			}
			vals, err := t.numbers(n3)
			if err != nil {
				return fmt.Errorf("%s: %w", w, err)
			}
			vf.add(name, assoc, magnitudes(vals, 3), false)
		case "TENSORS", "TEXTURE_COORDINATES", "COLOR_SCALARS":
			if err := skipAttribute(t, w, count); err != nil {
				return err
			}
		case "LOOKUP_TABLE":
			if _, err := t.word(); err != nil {
				return err
			}
			n, err := t.count()
			if err != nil {
				return err
			}
			n4, err := mulCount(4, n)
			if err != nil {
				return fmt.Errorf("LOOKUP_TABLE: %w", err)
			}
			if _, err := t.numbers(n4); err != nil {
				return fmt.Errorf("LOOKUP_TABLE: %w", err)
			}
		case "FIELD":
			if err := vf.readField(t, assoc, count, inData); err != nil {
				return fmt.Errorf("FIELD: %w", err)
			}
		case "METADATA":
			skipMetadata(t)
		default:
			return fmt.Errorf("unexpected keyword %q", w)
		}
	}
}

func (vf *vtkFile) add(name string, assoc mesh.Association, values []float64, active bool) {
	vf.arrays = append(vf.arrays, vtkArray{name: decodeVTKName(name), assoc: assoc, values: values, active: active})
}

// readCellLists reads the body of a cell section in either the classic
// "n size" layout or the 5.1 OFFSETS/CONNECTIVITY layout.
func readCellLists(t *tokens) ([][]uint32, error) {
	n, err := t.count()
	if err != nil {
		return nil, err
	}
	size, err := t.count()
	if err != nil {
		return nil, err
	}
	if w, ok := t.peek(); ok && w == "OFFSETS" {
		t.next()
		if _, err := t.word(); err != nil {
			return nil, err
		}
		offsets, err := t.numbers(n)
		if err != nil {
			return nil, err
		}
		if err := t.expect("CONNECTIVITY"); err != nil {
			return nil, err
		}
		if _, err := t.word(); err != nil {
			return nil, err
		}
		conn, err := t.numbers(size)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, nil
		}
		lists := make([][]uint32, n-1)
		for i := range lists {
			lo, hi := int(offsets[i]), int(offsets[i+1])
			if lo < 0 || hi < lo || hi > len(conn) {
				return nil, fmt.Errorf("bad offsets %d..%d", lo, hi)
			}
			lists[i] = toIDs(conn[lo:hi])
		}
		return lists, nil
	}

	// Each cell holds at least its point count.
	if err := fits(n, 1, t.size); err != nil {
		return nil, fmt.Errorf("cell %w", err)
	}
	lists := make([][]uint32, 0, min(n, growChunk))
	for range n {
		k, err := t.count()
		if err != nil {
			return nil, err
		}
		ids, err := t.numbers(k)
		if err != nil {
			return nil, err
		}
		lists = append(lists, toIDs(ids))
	}
	return lists, nil
}

func toIDs(vals []float64) []uint32 {
	ids := make([]uint32, len(vals))
	for i, v := range vals {
		ids[i] = uint32(v)
	}
	return ids
}

// readScalars reads "name type [numComp]" plus the LOOKUP_TABLE line and
// count tuples. Multi-component scalars are reduced to magnitudes.
func readScalars(t *tokens, count int) (string, []float64, error) {
	name, err := t.word()
	if err != nil {
		return "", nil, err
	}
	if _, err := t.word(); err != nil {
		return "", nil, err
	}
	comps := 1
	if w, ok := t.peek(); ok && w != "LOOKUP_TABLE" {
		if comps, err = t.count(); err != nil {
			return "", nil, err
		}
		if comps < 1 {
			comps = 1
		}
	}
	if w, ok := t.peek(); ok && w == "LOOKUP_TABLE" {
		t.next()
		if _, err := t.word(); err != nil {
			return "", nil, err
		}
	}
	n, err := mulCount(count, comps)
	if err != nil {
		return "", nil, err
	}
	vals, err := t.numbers(n)
	if err != nil {
		return "", nil, err
	}
	return name, magnitudes(vals, comps), nil
}

func (vf *vtkFile) readField(t *tokens, assoc mesh.Association, count int, inData bool) error {
	if _, err := t.word(); err != nil {
		return err
	}
	k, err := t.count()
	if err != nil {
		return err
	}
	for i := 0; i < k; i++ {
		name, err := t.word()
		if err != nil {
			return err
		}
		comps, err := t.count()
		if err != nil {
			return err
		}
		tuples, err := t.count()
		if err != nil {
			return err
		}
		if _, err := t.word(); err != nil {
			return err
		}
		n, err := mulCount(comps, tuples)
		if err != nil {
			return fmt.Errorf("array %s: %w", name, err)
		}
		vals, err := t.numbers(n)
		if err != nil {
			return fmt.Errorf("array %s: %w", name, err)
		}
		if inData && tuples == count && comps > 0 {
			vf.add(name, assoc, magnitudes(vals, comps), false)
		}
	}
	return nil
}

func skipAttribute(t *tokens, keyword string, count int) error {
	if _, err := t.word(); err != nil {
		return err
	}
	width := 9
	switch keyword {
	case "TEXTURE_COORDINATES":
		dim, err := t.count()
		if err != nil {
			return err
		}
		if _, err := t.word(); err != nil {
			return err
		}
		width = dim
	case "COLOR_SCALARS":
		n, err := t.count()
		if err != nil {
			return err
		}
		width = n
	default:
		if _, err := t.word(); err != nil {
			return err
		}
	}
	n, err := mulCount(width, count)
	if err != nil {
		return fmt.Errorf("%s: %w", keyword, err)
	}
	if _, err := t.numbers(n); err != nil {
		return fmt.Errorf("%s: %w", keyword, err)
	}
	return nil
}

var vtkKeywords = map[string]bool{
	"POINTS": true, "VERTICES": true, "LINES": true, "POLYGONS": true,
	"TRIANGLE_STRIPS": true, "CELLS": true, "CELL_TYPES": true,
	"POINT_DATA": true, "CELL_DATA": true, "SCALARS": true, "VECTORS": true,
	"NORMALS": true, "TENSORS": true, "TEXTURE_COORDINATES": true,
	"COLOR_SCALARS": true, "LOOKUP_TABLE": true, "FIELD": true,
}

// skipMetadata drops an information block; it ends at the next keyword.
func skipMetadata(t *tokens) {
	for {
		w, ok := t.peek()
		if !ok || vtkKeywords[w] {
			return
		}
		t.next()
	}
}

// decodeVTKName undoes the %20-style escaping legacy writers apply to names.
func decodeVTKName(name string) string {
	if !strings.Contains(name, "%") {
		return name
	}
	var b strings.Builder
	for i := 0; i < len(name); i++ {
		if name[i] == '%' && i+2 < len(name) {
			if c, err := strconv.ParseUint(name[i+1:i+3], 16, 8); err == nil {
				b.WriteByte(byte(c))
				i += 2
				continue
			}
		}
		b.WriteByte(name[i])
	}
	return b.String()
}

func magnitudes(vals []float64, comps int) []float64 {
	if comps == 1 {
		return vals
	}
	out := make([]float64, len(vals)/comps)
	for i := range out {
		var sum float64
		for _, v := range vals[i*comps : (i+1)*comps] {
			sum += v * v
		}
		out[i] = math.Sqrt(sum)
	}
	return out
}

// build turns the parsed cells into triangles and segments and remaps
// cell arrays from VTK cell order onto the mesh's triangles-then-lines order.
func (vf *vtkFile) build(kind string) (*mesh.Mesh, error) {
	cells := vf.cells
	if kind == "POLYDATA" {
		cells = nil
		for _, s := range polySections {
			for _, c := range vf.sections[s.keyword] {
				cells = append(cells, vtkCell{kind: s.cellType, ids: c.ids})
			}
		}
	}

	m := &mesh.Mesh{Points: vf.points}
	var triCell, lineCell []int
	for ci, c := range cells {
		tris, segs, err := decompose(c)
		if err != nil {
			return nil, fmt.Errorf("vtk: cell %d: %w", ci, err)
		}
		for _, tri := range tris {
			m.Triangles = append(m.Triangles, tri[0], tri[1], tri[2])
			triCell = append(triCell, ci)
		}
		for _, seg := range segs {
			m.Lines = append(m.Lines, seg[0], seg[1])
			lineCell = append(lineCell, ci)
		}
	}

	for _, a := range vf.arrays {
		values := a.values
		switch a.assoc {
		case mesh.PointData:
			if len(values) != m.PointCount() {
				return nil, fmt.Errorf("vtk: point array %q has %d values for %d points", a.name, len(values), m.PointCount())
			}
		case mesh.CellData:
			if len(values) != len(cells) {
				return nil, fmt.Errorf("vtk: cell array %q has %d values for %d cells", a.name, len(values), len(cells))
			}
			values = make([]float64, 0, len(triCell)+len(lineCell))
			for _, ci := range triCell {
				values = append(values, a.values[ci])
			}
			for _, ci := range lineCell {
				values = append(values, a.values[ci])
			}
		}
		if _, dup := m.Array(a.name); dup {
			continue
		}
		m.Arrays = append(m.Arrays, mesh.DataArray{Name: a.name, Association: a.assoc, Values: values})
		if a.active && m.ActiveScalars == "" {
			m.ActiveScalars = a.name
		}
	}
	return m, nil
}

var (
	tetraFaces   = [][]int{{0, 1, 3}, {1, 2, 3}, {2, 0, 3}, {0, 2, 1}}
	hexFaces     = [][]int{{0, 3, 2, 1}, {4, 5, 6, 7}, {0, 1, 5, 4}, {1, 2, 6, 5}, {2, 3, 7, 6}, {3, 0, 4, 7}}
	wedgeFaces   = [][]int{{0, 1, 2}, {3, 5, 4}, {0, 3, 4, 1}, {1, 4, 5, 2}, {2, 5, 3, 0}}
	pyramidFaces = [][]int{{0, 3, 2, 1}, {0, 1, 4}, {1, 2, 4}, {2, 3, 4}, {3, 0, 4}}
)

// decompose splits one VTK cell into triangles and line segments.
func decompose(c vtkCell) (tris [][3]uint32, segs [][2]uint32, err error) {
	ids := c.ids
	need := func(n int) error {
		if len(ids) < n {
			return fmt.Errorf("cell type %d needs %d points, has %d", c.kind, n, len(ids))
		}
		return nil
	}
	switch c.kind {
	case vtkVertex, vtkPolyVertex:
		return nil, nil, nil
	case vtkLine, vtkPolyLine:
		for i := 0; i+1 < len(ids); i++ {
			segs = append(segs, [2]uint32{ids[i], ids[i+1]})
		}
	case vtkTriangle, vtkPolygon, vtkQuad:
		tris = fan(ids)
	case vtkPixel:
		if err := need(4); err != nil {
			return nil, nil, err
		}
		tris = fan([]uint32{ids[0], ids[1], ids[3], ids[2]})
	case vtkTriangleStrip:
		for i := 0; i+2 < len(ids); i++ {
			if i%2 == 0 {
				tris = append(tris, [3]uint32{ids[i], ids[i+1], ids[i+2]})
			} else {
				tris = append(tris, [3]uint32{ids[i+1], ids[i], ids[i+2]})
			}
		}
	case vtkTetra:
		err = need(4)
		tris = faces(ids, tetraFaces)
	case vtkVoxel:
		if err := need(8); err != nil {
			return nil, nil, err
		}
		hex := []uint32{ids[0], ids[1], ids[3], ids[2], ids[4], ids[5], ids[7], ids[6]}
		tris = faces(hex, hexFaces)
	case vtkHexahedron:
		err = need(8)
		tris = faces(ids, hexFaces)
	case vtkWedge:
		err = need(6)
		tris = faces(ids, wedgeFaces)
	case vtkPyramid:
		err = need(5)
		tris = faces(ids, pyramidFaces)
	default:
		return nil, nil, fmt.Errorf("cell type %d is not supported", c.kind)
	}
	if err != nil {
		return nil, nil, err
	}
	return tris, segs, nil
}

func fan(ids []uint32) [][3]uint32 {
	var tris [][3]uint32
	for i := 1; i+1 < len(ids); i++ {
		tris = append(tris, [3]uint32{ids[0], ids[i], ids[i+1]})
	}
	return tris
}

// faces triangulates the listed local faces of a volume cell. Callers check
// the point count before the result is used.
func faces(ids []uint32, local [][]int) [][3]uint32 {
	var tris [][3]uint32
	for _, f := range local {
		poly := make([]uint32, 0, len(f))
		for _, i := range f {
			if i >= len(ids) {
				return nil
			}
			poly = append(poly, ids[i])
		}
		tris = append(tris, fan(poly)...)
	}
	return tris
}
