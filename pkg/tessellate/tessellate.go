// Package tessellate turns a mesh and its display properties into the
// primitives the software rasterizer draws: lit triangles, line segments,
// an edge overlay and camera-facing point sprites.
package tessellate

import (
	"fmt"
	"math"

	"github.com/fogleman/fauxgl"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"

	"github.com/chazu/meshview/pkg/mesh"
	"github.com/chazu/meshview/pkg/state"
)

// NaNColor is used for scalar values that are NaN or cannot be mapped.
var NaNColor = fauxgl.HexColor("#7F7F7F")

// Options controls how a mesh is turned into primitives.
type Options struct {
	Style state.Style

	// Scalars colors the mesh when set. ColorMap must then be set too.
	Scalars  *mesh.DataArray
	ColorMap palette.ColorMap

	// Color is used when Scalars is nil.
	Color fauxgl.Color

	// ShowEdges overlays triangle edges in EdgeColor. Only the surface
	// style draws the overlay.
	ShowEdges bool
	EdgeColor fauxgl.Color

	// PointRadius is the sprite half-size in world units. Right and Up are
	// the camera's unit basis vectors the sprites face.
	PointRadius float64
	Right, Up   fauxgl.Vector
}

// Geometry is the drawable output of Tessellate.
type Geometry struct {
	Triangles []*fauxgl.Triangle
	Lines     []*fauxgl.Line
	Edges     []*fauxgl.Line

	// Sprites are two triangles per point. Texture X/Y run from -1 to 1
	// across each sprite.
	Sprites  []*fauxgl.Triangle
	Gaussian bool
}

// Empty reports whether there is nothing to draw.
func (g *Geometry) Empty() bool {
	return len(g.Triangles) == 0 && len(g.Lines) == 0 && len(g.Edges) == 0 && len(g.Sprites) == 0
}

// Tessellate builds the primitives for m. The mesh is read-only here.
func Tessellate(m *mesh.Mesh, opts Options) (*Geometry, error) {
	if m == nil || m.IsEmpty() {
		return &Geometry{}, nil
	}
	if opts.Scalars != nil && opts.ColorMap == nil {
		return nil, fmt.Errorf("tessellate: scalars %q given without a color map", opts.Scalars.Name)
	}

	c, err := newColorer(m, opts)
	if err != nil {
		return nil, err
	}

	g := &Geometry{}
	switch opts.Style {
	case state.StyleSurface, "":
		g.Triangles = triangles(m, c)
		g.Lines = lineCells(m, c)
		if opts.ShowEdges {
			g.Edges = edges(m, func(uint32, int) fauxgl.Color { return opts.EdgeColor })
		}
	case state.StyleWireframe:
		g.Lines = append(edges(m, c.point), lineCells(m, c)...)
	case state.StylePoints, state.StylePointsGaussian:
		g.Sprites = sprites(m, c, opts)
		g.Gaussian = opts.Style == state.StylePointsGaussian
	default:
		return nil, fmt.Errorf("tessellate: unknown style %q", opts.Style)
	}
	return g, nil
}

// colorer resolves the color of a point or a cell.
type colorer struct {
	solid      fauxgl.Color
	cmap       palette.ColorMap
	assoc      mesh.Association
	values     []float64
	pointValue []float64 // cell data averaged onto points
}

func newColorer(m *mesh.Mesh, opts Options) (*colorer, error) {
	c := &colorer{solid: opts.Color, cmap: opts.ColorMap}
	if opts.Scalars == nil {
		return c, nil
	}
	a := opts.Scalars
	c.assoc = a.Association
	c.values = a.Values
	switch a.Association {
	case mesh.PointData:
		if len(a.Values) != m.PointCount() {
			return nil, fmt.Errorf("tessellate: point array %q has %d values for %d points", a.Name, len(a.Values), m.PointCount())
		}
	case mesh.CellData:
		if len(a.Values) != m.CellCount() {
			return nil, fmt.Errorf("tessellate: cell array %q has %d values for %d cells", a.Name, len(a.Values), m.CellCount())
		}
		c.pointValue = cellToPoint(m, a.Values)
	}
	return c, nil
}

// point returns the color of point i. cell is the cell being drawn, or -1.
func (c *colorer) point(i uint32, cell int) fauxgl.Color {
	switch {
	case c.values == nil:
		return c.solid
	case c.assoc == mesh.PointData:
		return c.lookup(c.values[i])
	case cell >= 0:
		return c.lookup(c.values[cell])
	default:
		return c.lookup(c.pointValue[i])
	}
}

func (c *colorer) lookup(v float64) fauxgl.Color {
	if math.IsNaN(v) {
		return NaNColor
	}
	v = math.Max(c.cmap.Min(), math.Min(c.cmap.Max(), v))
	col, err := c.cmap.At(v)
	if err != nil {
		return NaNColor
	}
	return fauxgl.MakeColor(col)
}

// cellToPoint averages cell values onto the points they touch. Points no
// cell touches get NaN.
func cellToPoint(m *mesh.Mesh, values []float64) []float64 {
	sum := make([]float64, m.PointCount())
	n := make([]int, m.PointCount())
	add := func(idx []uint32, per, offset int) {
		for i, p := range idx {
			v := values[offset+i/per]
			if math.IsNaN(v) {
				continue
			}
			sum[p] += v
			n[p]++
		}
	}
	add(m.Triangles, 3, 0)
	add(m.Lines, 2, m.TriangleCount())
	for i := range sum {
		if n[i] == 0 {
			sum[i] = math.NaN()
			continue
		}
		sum[i] /= float64(n[i])
	}
	return sum
}

func vertex(m *mesh.Mesh, i uint32) fauxgl.Vector {
	p := m.Point(i)
	return fauxgl.V(p.X, p.Y, p.Z)
}

func triangles(m *mesh.Mesh, c *colorer) []*fauxgl.Triangle {
	out := make([]*fauxgl.Triangle, 0, m.TriangleCount())
	for t := 0; t < m.TriangleCount(); t++ {
		ids := m.Triangles[3*t : 3*t+3]
		p1, p2, p3 := vertex(m, ids[0]), vertex(m, ids[1]), vertex(m, ids[2])
		n := p2.Sub(p1).Cross(p3.Sub(p1))
		if n.Length() == 0 {
			continue
		}
		n = n.Normalize()
		tri := &fauxgl.Triangle{
			V1: fauxgl.Vertex{Position: p1, Normal: n, Color: c.point(ids[0], t)},
			V2: fauxgl.Vertex{Position: p2, Normal: n, Color: c.point(ids[1], t)},
			V3: fauxgl.Vertex{Position: p3, Normal: n, Color: c.point(ids[2], t)},
		}
		out = append(out, tri)
	}
	return out
}

// lineCells returns the mesh's own line segments.
func lineCells(m *mesh.Mesh, c *colorer) []*fauxgl.Line {
	out := make([]*fauxgl.Line, 0, m.LineCount())
	tris := m.TriangleCount()
	for l := 0; l < m.LineCount(); l++ {
		a, b := m.Lines[2*l], m.Lines[2*l+1]
		out = append(out, &fauxgl.Line{
			V1: fauxgl.Vertex{Position: vertex(m, a), Color: c.point(a, tris+l)},
			V2: fauxgl.Vertex{Position: vertex(m, b), Color: c.point(b, tris+l)},
		})
	}
	return out
}

// edges returns every distinct triangle edge once, in first-seen order.
// color receives the point index and the triangle the edge was first seen on.
func edges(m *mesh.Mesh, color func(i uint32, cell int) fauxgl.Color) []*fauxgl.Line {
	seen := make(map[[2]uint32]bool, m.TriangleCount()*3/2)
	out := make([]*fauxgl.Line, 0, m.TriangleCount()*3/2)
	for t := 0; t < m.TriangleCount(); t++ {
		ids := m.Triangles[3*t : 3*t+3]
		for k := 0; k < 3; k++ {
			a, b := ids[k], ids[(k+1)%3]
			key := [2]uint32{min(a, b), max(a, b)}
			if a == b || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, &fauxgl.Line{
				V1: fauxgl.Vertex{Position: vertex(m, a), Color: color(a, t)},
				V2: fauxgl.Vertex{Position: vertex(m, b), Color: color(b, t)},
			})
		}
	}
	return out
}

// sprites builds one camera-facing quad per point.
func sprites(m *mesh.Mesh, c *colorer, opts Options) []*fauxgl.Triangle {
	r := opts.PointRadius
	if r <= 0 {
		r = 1
	}
	right := opts.Right.MulScalar(r)
	up := opts.Up.MulScalar(r)
	normal := opts.Right.Cross(opts.Up)

	out := make([]*fauxgl.Triangle, 0, 2*m.PointCount())
	for i := 0; i < m.PointCount(); i++ {
		p := vertex(m, uint32(i))
		col := c.point(uint32(i), -1)
		corner := func(sx, sy float64) fauxgl.Vertex {
			return fauxgl.Vertex{
				Position: p.Add(right.MulScalar(sx)).Add(up.MulScalar(sy)),
				Normal:   normal,
				Texture:  fauxgl.V(sx, sy, 0),
				Color:    col,
			}
		}
		bl, br, tr, tl := corner(-1, -1), corner(1, -1), corner(1, 1), corner(-1, 1)
		out = append(out,
			&fauxgl.Triangle{V1: bl, V2: br, V3: tr},
			&fauxgl.Triangle{V1: bl, V2: tr, V3: tl},
		)
	}
	return out
}

// ColorMap returns the diverging blue-red map used for scalar coloring,
// spanning lo to hi. A degenerate range is widened so the map stays valid.
func ColorMap(lo, hi float64) palette.ColorMap {
	lo, hi = WidenRange(lo, hi)
	cm := moreland.SmoothBlueRed()
	cm.SetMax(hi)
	cm.SetMin(lo)
	cm.SetConvergePoint((lo + hi) / 2)
	return cm
}

// WidenRange returns lo, hi unchanged unless they are equal, in which case
// it returns a small interval around the value.
func WidenRange(lo, hi float64) (float64, float64) {
	if hi > lo {
		return lo, hi
	}
	d := math.Abs(lo) * 0.05
	if d == 0 {
		d = 0.5
	}
	return lo - d, lo + d
}
