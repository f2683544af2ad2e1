package view

import (
	"bytes"
	"image"
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/plot/cmpimg"

	"github.com/chazu/meshview/pkg/mesh"
	"github.com/chazu/meshview/pkg/state"
)

// makeTetra returns a tetrahedron surface centered near the origin with a
// point array and a cell array.
func makeTetra() *mesh.Mesh {
	m := &mesh.Mesh{
		Points: []float32{
			1, 1, 1,
			-1, -1, 1,
			-1, 1, -1,
			1, -1, -1,
		},
		Triangles: []uint32{0, 1, 2, 0, 3, 1, 0, 2, 3, 1, 3, 2},
	}
	m.AddArray("height", mesh.PointData, []float64{1, 1, -1, -1})
	m.AddArray("face", mesh.CellData, []float64{0, 1, 2, 3})
	return m
}

// countNot returns how many pixels of img differ from the top-left pixel.
func countNot(img image.Image) int {
	b := img.Bounds()
	r0, g0, b0, a0 := img.At(b.Min.X, b.Min.Y).RGBA()
	n := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			if r != r0 || g != g0 || bl != b0 || a != a0 {
				n++
			}
		}
	}
	return n
}

func encode(t *testing.T, v *View) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := v.EncodePNG(&buf, 160, 120); err != nil {
		t.Fatalf("EncodePNG failed: %v", err)
	}
	return buf.Bytes()
}

func TestEmptyViewIsUniform(t *testing.T) {
	v := New(160, 120)
	img, err := v.Render(0, 0)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if got := img.Bounds().Size(); got != image.Pt(160, 120) {
		t.Errorf("size = %v, want 160x120", got)
	}
	if n := countNot(img); n != 0 {
		t.Errorf("empty view has %d non-background pixels", n)
	}
}

func TestMeshIsDrawn(t *testing.T) {
	styles := []state.Style{"", state.StyleSurface, state.StyleWireframe, state.StylePoints, state.StylePointsGaussian}
	for _, style := range styles {
		t.Run(string(style), func(t *testing.T) {
			v := New(160, 120)
			v.AddMesh(makeTetra(), Props{Style: style})
			v.ResetCamera()
			img, err := v.Render(0, 0)
			if err != nil {
				t.Fatalf("Render failed: %v", err)
			}
			if n := countNot(img); n == 0 {
				t.Error("mesh produced no visible pixels")
			}
		})
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	v := New(160, 120)
	v.AddMesh(makeTetra(), Props{Style: state.StyleSurface, ShowEdges: true, ShowScalarBar: true})
	v.ResetCamera()
	first := encode(t, v)

	// Re-applying the same props must not change the picture.
	v.Replace(Actor{Mesh: v.Actors()[0].Mesh, Props: v.Actors()[0].Props})
	second := encode(t, v)

	ok, err := cmpimg.Equal("png", first, second)
	if err != nil {
		t.Fatalf("cmpimg.Equal: %v", err)
	}
	if !ok {
		t.Error("identical scene rendered differently")
	}
}

func TestPropsChangePicture(t *testing.T) {
	m := makeTetra()
	render := func(p Props) []byte {
		v := New(160, 120)
		v.AddMesh(m, p)
		v.ResetCamera()
		return encode(t, v)
	}
	base := render(Props{Style: state.StyleSurface})
	tests := []struct {
		name  string
		props Props
	}{
		{"wireframe", Props{Style: state.StyleWireframe}},
		{"edges", Props{Style: state.StyleSurface, ShowEdges: true}},
		{"cell scalars", Props{Style: state.StyleSurface, Scalars: "face"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := cmpimg.Equal("png", base, render(tt.props))
			if err != nil {
				t.Fatalf("cmpimg.Equal: %v", err)
			}
			if ok {
				t.Error("picture did not change")
			}
		})
	}
}

func TestUnknownScalarsRenderUncolored(t *testing.T) {
	m := makeTetra()
	m.ActiveScalars = ""
	plain := New(160, 120)
	plain.AddMesh(m, Props{})
	plain.ResetCamera()

	unknown := New(160, 120)
	unknown.AddMesh(m, Props{Scalars: "missing"})
	unknown.ResetCamera()

	ok, err := cmpimg.Equal("png", encode(t, plain), encode(t, unknown))
	if err != nil {
		t.Fatalf("cmpimg.Equal: %v", err)
	}
	if !ok {
		t.Error("unknown scalar name did not fall back to uncolored rendering")
	}
}

func TestScalarBar(t *testing.T) {
	m := makeTetra()
	render := func(bar bool) image.Image {
		v := New(320, 240)
		v.AddMesh(m, Props{ShowScalarBar: bar})
		v.ResetCamera()
		img, err := v.Render(0, 0)
		if err != nil {
			t.Fatalf("Render failed: %v", err)
		}
		return img
	}
	without, with := render(false), render(true)

	// The legend sits at the right edge, outside the framed mesh.
	strip := image.Rect(320-320/8, 0, 320, 240)
	diff := 0
	for y := strip.Min.Y; y < strip.Max.Y; y++ {
		for x := strip.Min.X; x < strip.Max.X; x++ {
			if without.At(x, y) != with.At(x, y) {
				diff++
			}
		}
	}
	if diff == 0 {
		t.Error("scalar bar not drawn")
	}
}

func TestActors(t *testing.T) {
	v := New(10, 10)
	m := makeTetra()
	v.AddMesh(m, Props{Style: state.StylePoints})
	v.AddMesh(m, Props{Style: state.StyleWireframe})
	actors := v.Actors()
	if len(actors) != 2 || actors[0].Props.Style != state.StylePoints {
		t.Fatalf("Actors() = %+v", actors)
	}
	actors[0] = Actor{}
	if v.Actors()[0].Mesh != m {
		t.Error("Actors() exposes internal slice")
	}

	v.Replace(Actor{Mesh: m})
	if n := len(v.Actors()); n != 1 {
		t.Errorf("after Replace: %d actors, want 1", n)
	}
	v.Clear()
	if n := len(v.Actors()); n != 0 {
		t.Errorf("after Clear: %d actors, want 0", n)
	}
}

func TestResetCamera(t *testing.T) {
	v := New(10, 10)
	m := &mesh.Mesh{Points: []float32{10, 20, 30, 12, 22, 32}, Lines: []uint32{0, 1}}
	v.AddMesh(m, Props{})
	v.ResetCamera()
	c := v.Camera()
	want := r3.Vec{X: 11, Y: 21, Z: 31}
	if r3.Norm(r3.Sub(c.Center, want)) > 1e-9 {
		t.Errorf("center = %v, want %v", c.Center, want)
	}
	dir := r3.Unit(r3.Sub(c.Eye, c.Center))
	iso := r3.Unit(r3.Vec{X: 1, Y: 1, Z: 1})
	if r3.Norm(r3.Sub(dir, iso)) > 1e-9 {
		t.Errorf("view direction = %v, want %v", dir, iso)
	}

	v.Clear()
	v.ResetCamera()
	if got := v.Camera(); got != defaultCamera() {
		t.Errorf("empty reset camera = %+v, want default", got)
	}
}

func TestOrbitAndZoom(t *testing.T) {
	v := New(10, 10)
	v.AddMesh(makeTetra(), Props{})
	v.ResetCamera()
	d0 := v.Camera().Distance()

	v.Orbit(45, 10)
	c := v.Camera()
	if math.Abs(c.Distance()-d0) > 1e-9 {
		t.Errorf("orbit changed distance: %v -> %v", d0, c.Distance())
	}

	// Elevation stops before the pole.
	v.Orbit(0, 170)
	if cos := r3.Cos(r3.Sub(v.Camera().Eye, v.Camera().Center), r3.Vec{Z: 1}); math.Abs(cos) >= 0.999 {
		t.Errorf("camera reached the pole, cos = %v", cos)
	}

	v.Zoom(2)
	if got := v.Camera().Distance(); math.Abs(got-d0/2) > 1e-9 {
		t.Errorf("zoom 2: distance = %v, want %v", got, d0/2)
	}
	v.Zoom(0)
	if got := v.Camera().Distance(); math.Abs(got-d0/2) > 1e-9 {
		t.Errorf("zoom 0 should be ignored, distance = %v", got)
	}
}

func TestUpdate(t *testing.T) {
	v := New(10, 10)
	var seen []uint64
	v.OnUpdate(func(rev uint64) { seen = append(seen, rev) })
	v.Update()
	v.Update()
	if got := v.Revision(); got != 2 {
		t.Errorf("Revision() = %d, want 2", got)
	}
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Errorf("watcher saw %v, want [1 2]", seen)
	}

	cancel := v.OnUpdate(func(uint64) { t.Error("cancelled watcher called") })
	cancel()
	v.Update()
	if len(seen) != 3 {
		t.Errorf("watcher saw %v, want 3 revisions", seen)
	}
}

func TestSizeLimits(t *testing.T) {
	v := New(100, 50)
	tests := []struct {
		w, h         int
		wantW, wantH int
	}{
		{0, 0, 100, 50},
		{-3, 20, 100, 20},
		{MaxSize + 1, 1, MaxSize, 1},
	}
	for _, tt := range tests {
		w, h := v.size(tt.w, tt.h)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("size(%d, %d) = %d, %d, want %d, %d", tt.w, tt.h, w, h, tt.wantW, tt.wantH)
		}
	}
}
