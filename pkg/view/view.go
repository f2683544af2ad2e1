// Package view is the persistent render view of a session: an ordered list
// of actors, a camera and a revision counter. Views are cleared and
// re-populated, never re-created, and rendered off-screen to images on
// demand.
package view

import (
	"log"
	"math"
	"slices"
	"sync"

	"github.com/fogleman/fauxgl"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/meshview/pkg/mesh"
	"github.com/chazu/meshview/pkg/state"
)

// Props are the display properties of one actor.
type Props struct {
	Style state.Style
	// Scalars names the array to color by. Empty means the mesh's active
	// scalars; a name the mesh does not carry renders uncolored.
	Scalars       string
	ShowScalarBar bool
	ShowEdges     bool
}

// Actor is a mesh placed in the view with its display properties.
type Actor struct {
	Mesh  *mesh.Mesh
	Props Props
}

// Defaults used by New.
var (
	DefaultBackground = fauxgl.HexColor("#FFFFFF")
	DefaultColor      = fauxgl.HexColor("#E6E6E6")
	DefaultEdgeColor  = fauxgl.HexColor("#000000")
)

// View holds the scene of one session. It is safe for concurrent use.
type View struct {
	mu       sync.Mutex
	actors   []Actor
	camera   Camera
	revision uint64
	watchers []*updateWatcher

	Width, Height int
	Background    fauxgl.Color
	Color         fauxgl.Color
	EdgeColor     fauxgl.Color
}

// New returns an empty view rendering at width x height by default.
func New(width, height int) *View {
	return &View{
		camera:     defaultCamera(),
		Width:      width,
		Height:     height,
		Background: DefaultBackground,
		Color:      DefaultColor,
		EdgeColor:  DefaultEdgeColor,
	}
}

// Clear removes every actor.
func (v *View) Clear() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.actors = nil
}

// AddMesh appends an actor for m.
func (v *View) AddMesh(m *mesh.Mesh, p Props) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.actors = append(v.actors, Actor{Mesh: m, Props: p})
}

// Replace swaps the whole actor list in one step, so a concurrent render
// never observes the view half rebuilt.
func (v *View) Replace(actors ...Actor) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.actors = append([]Actor(nil), actors...)
}

// Actors returns a copy of the actor list.
func (v *View) Actors() []Actor {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Actor(nil), v.actors...)
}

// Camera returns the current camera.
func (v *View) Camera() Camera {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.camera
}

// ResetCamera frames every actor. With no actors the camera returns to its
// default position.
func (v *View) ResetCamera() {
	v.mu.Lock()
	defer v.mu.Unlock()
	b, ok := bounds(v.actors)
	if !ok {
		v.camera = defaultCamera()
		return
	}
	v.camera = fit(r3.Scale(0.5, r3.Add(b.Min, b.Max)), radius(b))
}

// Orbit rotates the camera around its center by degrees.
func (v *View) Orbit(azimuth, elevation float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.camera = v.camera.orbit(azimuth, elevation)
}

// Zoom moves the camera toward its center by factor; below 1 zooms out.
func (v *View) Zoom(factor float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.camera = v.camera.zoom(factor)
}

type updateWatcher struct {
	fn func(rev uint64)
}

// OnUpdate registers fn to be called with the new revision after every
// Update. The returned function unregisters it.
func (v *View) OnUpdate(fn func(rev uint64)) (cancel func()) {
	w := &updateWatcher{fn: fn}
	v.mu.Lock()
	v.watchers = append(v.watchers, w)
	v.mu.Unlock()
	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		v.watchers = slices.DeleteFunc(v.watchers, func(o *updateWatcher) bool { return o == w })
	}
}

// Update signals that the scene changed and clients should redraw. It
// returns the new revision.
func (v *View) Update() uint64 {
	v.mu.Lock()
	v.revision++
	rev := v.revision
	watchers := slices.Clone(v.watchers)
	v.mu.Unlock()
	for _, w := range watchers {
		w.fn(rev)
	}
	return rev
}

// Revision returns the number of Update calls so far.
func (v *View) Revision() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.revision
}

// bounds returns the union of the actors' bounding boxes.
func bounds(actors []Actor) (r3.Box, bool) {
	var b r3.Box
	ok := false
	for _, a := range actors {
		if a.Mesh == nil || a.Mesh.IsEmpty() {
			continue
		}
		mb := a.Mesh.Bounds()
		if !ok {
			b, ok = mb, true
			continue
		}
		b.Min = r3.Vec{X: math.Min(b.Min.X, mb.Min.X), Y: math.Min(b.Min.Y, mb.Min.Y), Z: math.Min(b.Min.Z, mb.Min.Z)}
		b.Max = r3.Vec{X: math.Max(b.Max.X, mb.Max.X), Y: math.Max(b.Max.Y, mb.Max.Y), Z: math.Max(b.Max.Z, mb.Max.Z)}
	}
	return b, ok
}

// radius returns half the box diagonal, or 1 for a degenerate box.
func radius(b r3.Box) float64 {
	r := 0.5 * r3.Norm(r3.Sub(b.Max, b.Min))
	if r == 0 {
		return 1
	}
	return r
}

// scalars resolves the array an actor is colored by, or nil.
func scalars(a Actor) *mesh.DataArray {
	name := a.Props.Scalars
	if name == "" {
		name = a.Mesh.ActiveScalars
	}
	if name == "" {
		return nil
	}
	arr, ok := a.Mesh.Array(name)
	if !ok {
		log.Printf("view: mesh has no array %q, rendering uncolored", name)
		return nil
	}
	return arr
}

// snapshot is the immutable input of one render.
type snapshot struct {
	actors     []Actor
	camera     Camera
	background fauxgl.Color
	color      fauxgl.Color
	edgeColor  fauxgl.Color
}

func (v *View) snapshot() snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return snapshot{
		actors:     append([]Actor(nil), v.actors...),
		camera:     v.camera,
		background: v.Background,
		color:      v.Color,
		edgeColor:  v.EdgeColor,
	}
}

// size applies the view defaults and an upper bound to a requested size.
func (v *View) size(w, h int) (int, int) {
	v.mu.Lock()
	dw, dh := v.Width, v.Height
	v.mu.Unlock()
	if w <= 0 {
		w = dw
	}
	if h <= 0 {
		h = dh
	}
	w = max(1, min(w, MaxSize))
	h = max(1, min(h, MaxSize))
	return w, h
}
