package sample

import (
	"math"
	"reflect"
	"testing"
)

func TestBuild(t *testing.T) {
	m, err := Build(24)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if m.IsEmpty() {
		t.Fatal("mesh is empty")
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	want := []string{FieldElevation, FieldDistance, FieldArea}
	if got := m.ArrayNames(); !reflect.DeepEqual(got, want) {
		t.Fatalf("ArrayNames() = %v, want %v", got, want)
	}
	if m.ActiveScalars != FieldElevation {
		t.Errorf("ActiveScalars = %q, want %q", m.ActiveScalars, FieldElevation)
	}
	t.Logf("sample: %d points, %d triangles", m.PointCount(), m.TriangleCount())
}

func TestBuildBounds(t *testing.T) {
	m, err := Build(32)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	b := m.Bounds()

	const tol = 2.5
	if math.Abs(b.Min.X+20) > tol || math.Abs(b.Max.X-20) > tol {
		t.Errorf("X extent = [%f, %f], expected ~[-20, 20]", b.Min.X, b.Max.X)
	}
	// The boss sticks out of the top face.
	if b.Max.Z < 15 {
		t.Errorf("max Z = %f, expected the boss above 15", b.Max.Z)
	}

	elev, ok := m.Array(FieldElevation)
	if !ok {
		t.Fatal("missing Elevation")
	}
	lo, hi, _ := elev.Range()
	if lo != b.Min.Z || hi != b.Max.Z {
		t.Errorf("Elevation range [%f, %f] != Z bounds [%f, %f]", lo, hi, b.Min.Z, b.Max.Z)
	}
}

func TestBuildAreasPositive(t *testing.T) {
	m, err := Build(16)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	area, _ := m.Array(FieldArea)
	for i, a := range area.Values {
		if a < 0 || math.IsNaN(a) {
			t.Fatalf("triangle %d has area %f", i, a)
		}
	}
}

func TestBuildDefaultResolution(t *testing.T) {
	coarse, err := Build(12)
	if err != nil {
		t.Fatalf("Build(12) failed: %v", err)
	}
	def, err := Build(0)
	if err != nil {
		t.Fatalf("Build(0) failed: %v", err)
	}
	if def.TriangleCount() <= coarse.TriangleCount() {
		t.Errorf("default resolution (%d triangles) should exceed 12 cells (%d triangles)",
			def.TriangleCount(), coarse.TriangleCount())
	}
}
