package meshio

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chazu/meshview/pkg/mesh"
)

// WriteVTK writes m as a legacy ASCII POLYDATA file. The first point array
// written is the mesh's active scalars so readers pick the same default.
func WriteVTK(w io.Writer, m *mesh.Mesh, title string) error {
	if err := m.Validate(); err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "# vtk DataFile Version 3.0")
	fmt.Fprintln(bw, strings.ReplaceAll(title, "\n", " "))
	fmt.Fprintln(bw, "ASCII")
	fmt.Fprintln(bw, "DATASET POLYDATA")

	fmt.Fprintf(bw, "POINTS %d float\n", m.PointCount())
	for i := 0; i < m.PointCount(); i++ {
		p := m.Points[3*i : 3*i+3]
		fmt.Fprintf(bw, "%s %s %s\n", fmtFloat(float64(p[0])), fmtFloat(float64(p[1])), fmtFloat(float64(p[2])))
	}

	// VTK numbers cells lines first, then polygons.
	if n := m.LineCount(); n > 0 {
		fmt.Fprintf(bw, "LINES %d %d\n", n, 3*n)
		for i := 0; i < n; i++ {
			fmt.Fprintf(bw, "2 %d %d\n", m.Lines[2*i], m.Lines[2*i+1])
		}
	}
	if n := m.TriangleCount(); n > 0 {
		fmt.Fprintf(bw, "POLYGONS %d %d\n", n, 4*n)
		for i := 0; i < n; i++ {
			fmt.Fprintf(bw, "3 %d %d %d\n", m.Triangles[3*i], m.Triangles[3*i+1], m.Triangles[3*i+2])
		}
	}

	points := orderedArrays(m, mesh.PointData)
	if len(points) > 0 {
		fmt.Fprintf(bw, "POINT_DATA %d\n", m.PointCount())
		for _, a := range points {
			writeScalars(bw, a.Name, a.Values)
		}
	}
	cells := orderedArrays(m, mesh.CellData)
	if len(cells) > 0 {
		fmt.Fprintf(bw, "CELL_DATA %d\n", m.CellCount())
		tris := m.TriangleCount()
		for _, a := range cells {
			vals := make([]float64, 0, len(a.Values))
			vals = append(vals, a.Values[tris:]...)
			vals = append(vals, a.Values[:tris]...)
			writeScalars(bw, a.Name, vals)
		}
	}
	return bw.Flush()
}

// WriteVTKFile writes m to path, see WriteVTK.
func WriteVTKFile(path string, m *mesh.Mesh, title string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteVTK(f, m, title); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func orderedArrays(m *mesh.Mesh, assoc mesh.Association) []mesh.DataArray {
	var out []mesh.DataArray
	for _, a := range m.Arrays {
		if a.Association != assoc {
			continue
		}
		if a.Name == m.ActiveScalars {
			out = append([]mesh.DataArray{a}, out...)
			continue
		}
		out = append(out, a)
	}
	return out
}

func writeScalars(w io.Writer, name string, vals []float64) {
	fmt.Fprintf(w, "SCALARS %s double 1\nLOOKUP_TABLE default\n", vtkNameEscaper.Replace(name))
	for _, v := range vals {
		fmt.Fprintln(w, fmtFloat(v))
	}
}

var vtkNameEscaper = strings.NewReplacer("%", "%25", " ", "%20", "\t", "%09", "\n", "%0A")

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
