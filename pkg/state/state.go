// Package state holds the per-session view state of the viewer and
// dispatches change events to registered reactions.
//
// State is a typed record rather than a key/value map. Every mutation goes
// through Store.Update, which computes the set of fields that changed and
// delivers one Change per update to the reactions watching any of them, in
// registration order, on a single queue.
package state

import (
	"fmt"
	"slices"

	"github.com/chazu/meshview/pkg/mesh"
)

// Field names a state field. The string value is the name the page binds to.
type Field string

const (
	FieldMesh                Field = "mesh"
	FieldScalarFieldNames    Field = "scalarFieldNames"
	FieldScalarFieldOptions  Field = "scalarFieldOptions"
	FieldSelectedStyle       Field = "selectedStyle"
	FieldSelectedScalarField Field = "selectedScalarField"
	FieldShowEdges           Field = "showEdges"
	FieldUploadedFile        Field = "uploadedFile"
	FieldBusy                Field = "busy"
)

// Fields lists every field in declaration order.
var Fields = []Field{
	FieldMesh,
	FieldScalarFieldNames,
	FieldScalarFieldOptions,
	FieldSelectedStyle,
	FieldSelectedScalarField,
	FieldShowEdges,
	FieldUploadedFile,
	FieldBusy,
}

// Style is a surface rendering mode.
type Style string

const (
	StyleSurface        Style = "surface"
	StyleWireframe      Style = "wireframe"
	StylePoints         Style = "points"
	StylePointsGaussian Style = "points_gaussian"
)

// Styles is the fixed set of styles offered by the page, in display order.
var Styles = []Style{StyleSurface, StyleWireframe, StylePoints, StylePointsGaussian}

// ParseStyle validates s. The empty string is accepted and means "no
// selection", which renders as StyleSurface.
func ParseStyle(s string) (Style, error) {
	if s == "" {
		return "", nil
	}
	if slices.Contains(Styles, Style(s)) {
		return Style(s), nil
	}
	return "", fmt.Errorf("state: unknown style %q", s)
}

// Option is one entry of a select input.
type Option struct {
	Title string `json:"title"`
	Value string `json:"value"`
}

// UploadedFile is a client file handed to the server. A new upload is a new
// pointer even if the bytes are identical.
type UploadedFile struct {
	Name    string
	Size    int64
	Content []byte

	result chan error
}

// NewUploadedFile returns an upload that can carry the outcome of handling
// it back to the caller that made it.
func NewUploadedFile(name string, content []byte) *UploadedFile {
	return &UploadedFile{
		Name:    name,
		Size:    int64(len(content)),
		Content: content,
		result:  make(chan error, 1),
	}
}

// Report records the outcome of handling f. Only the first report is kept;
// files not made by NewUploadedFile ignore it.
func (f *UploadedFile) Report(err error) {
	select {
	case f.result <- err:
	default:
	}
}

// Result returns the reported outcome, or nil when none was reported.
func (f *UploadedFile) Result() error {
	select {
	case err := <-f.result:
		return err
	default:
		return nil
	}
}

// State is the full per-session view state.
type State struct {
	Mesh                *mesh.Mesh
	ScalarFieldNames    []string
	ScalarFieldOptions  []Option
	SelectedStyle       Style
	SelectedScalarField string
	ShowEdges           bool
	UploadedFile        *UploadedFile
	Busy                bool
}

// Default returns the initial state of a new session.
func Default() State {
	return State{
		ScalarFieldNames:   []string{},
		ScalarFieldOptions: []Option{},
	}
}

// Clone returns a copy that shares no slices with s. The mesh and the
// uploaded file are immutable and stay shared.
func (s State) Clone() State {
	c := s
	c.ScalarFieldNames = slices.Clone(s.ScalarFieldNames)
	c.ScalarFieldOptions = slices.Clone(s.ScalarFieldOptions)
	if c.ScalarFieldNames == nil {
		c.ScalarFieldNames = []string{}
	}
	if c.ScalarFieldOptions == nil {
		c.ScalarFieldOptions = []Option{}
	}
	return c
}

// Diff returns the fields whose values differ between s and o, in Fields
// order. Mesh and upload compare by identity.
func (s State) Diff(o State) []Field {
	var changed []Field
	if s.Mesh != o.Mesh {
		changed = append(changed, FieldMesh)
	}
	if !slices.Equal(s.ScalarFieldNames, o.ScalarFieldNames) {
		changed = append(changed, FieldScalarFieldNames)
	}
	if !slices.Equal(s.ScalarFieldOptions, o.ScalarFieldOptions) {
		changed = append(changed, FieldScalarFieldOptions)
	}
	if s.SelectedStyle != o.SelectedStyle {
		changed = append(changed, FieldSelectedStyle)
	}
	if s.SelectedScalarField != o.SelectedScalarField {
		changed = append(changed, FieldSelectedScalarField)
	}
	if s.ShowEdges != o.ShowEdges {
		changed = append(changed, FieldShowEdges)
	}
	if s.UploadedFile != o.UploadedFile {
		changed = append(changed, FieldUploadedFile)
	}
	if s.Busy != o.Busy {
		changed = append(changed, FieldBusy)
	}
	return changed
}

// Style returns the effective style: SelectedStyle or StyleSurface.
func (s State) Style() Style {
	if s.SelectedStyle == "" {
		return StyleSurface
	}
	return s.SelectedStyle
}

// HasMesh reports whether a decoded mesh is loaded.
func (s State) HasMesh() bool {
	return s.Mesh != nil
}
