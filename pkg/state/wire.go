package state

import (
	"encoding/json"
	"fmt"
)

// FileInfo is the client-visible part of an upload.
type FileInfo struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Wire is the JSON form of State pushed to the page. The mesh itself stays
// on the server; the page only learns whether one is loaded.
type Wire struct {
	HasMesh             bool      `json:"hasMesh"`
	ScalarFieldNames    []string  `json:"scalarFieldNames"`
	ScalarFieldOptions  []Option  `json:"scalarFieldOptions"`
	SelectedStyle       *Style    `json:"selectedStyle"`
	SelectedScalarField *string   `json:"selectedScalarField"`
	ShowEdges           bool      `json:"showEdges"`
	UploadedFile        *FileInfo `json:"uploadedFile"`
	Busy                bool      `json:"busy"`
}

// Wire converts s to its client form. Unset selections become null.
func (s State) Wire() Wire {
	c := s.Clone()
	w := Wire{
		HasMesh:            c.HasMesh(),
		ScalarFieldNames:   c.ScalarFieldNames,
		ScalarFieldOptions: c.ScalarFieldOptions,
		ShowEdges:          c.ShowEdges,
		Busy:               c.Busy,
	}
	if c.SelectedStyle != "" {
		w.SelectedStyle = &c.SelectedStyle
	}
	if c.SelectedScalarField != "" {
		w.SelectedScalarField = &c.SelectedScalarField
	}
	if c.UploadedFile != nil {
		w.UploadedFile = &FileInfo{Name: c.UploadedFile.Name, Size: c.UploadedFile.Size}
	}
	return w
}

// Input decodes a value sent by the page for one of the fields the page may
// write and returns the mutation to pass to Store.Update. The mesh, the
// derived scalar lists and the busy flag are server-owned; uploads arrive
// through their own endpoint and only the clearing of a selection (null)
// is accepted here.
func Input(f Field, raw json.RawMessage) (func(*State), error) {
	isNull := len(raw) == 0 || string(raw) == "null"
	switch f {
	case FieldSelectedStyle:
		var v string
		if !isNull {
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, fmt.Errorf("state: %s: %w", f, err)
			}
		}
		style, err := ParseStyle(v)
		if err != nil {
			return nil, err
		}
		return func(s *State) { s.SelectedStyle = style }, nil
	case FieldSelectedScalarField:
		var v string
		if !isNull {
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, fmt.Errorf("state: %s: %w", f, err)
			}
		}
		return func(s *State) { s.SelectedScalarField = v }, nil
	case FieldShowEdges:
		var v bool
		if !isNull {
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, fmt.Errorf("state: %s: %w", f, err)
			}
		}
		return func(s *State) { s.ShowEdges = v }, nil
	case FieldUploadedFile:
		if !isNull {
			return nil, fmt.Errorf("state: %s: only null is accepted, upload files through the upload endpoint", f)
		}
		return func(s *State) { s.UploadedFile = nil }, nil
	default:
		return nil, fmt.Errorf("state: field %q is not writable by the client", f)
	}
}
