// Package session wires one page's state store to its render view. The two
// reactions of the viewer live here: decoding an uploaded file into the
// view, and re-styling the loaded mesh when a display option changes.
package session

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/chazu/meshview/pkg/mesh"
	"github.com/chazu/meshview/pkg/meshio"
	"github.com/chazu/meshview/pkg/state"
	"github.com/chazu/meshview/pkg/view"
)

// Session is one connected page: its state, its view and its bookkeeping.
type Session struct {
	ID    string
	Store *state.Store
	View  *view.View

	// ScratchDir is where uploads are staged for decoding. Empty means the
	// system temp directory.
	ScratchDir string

	mu       sync.Mutex
	lastSeen time.Time
	conns    int
}

// New returns a session with an empty view of the given default size and
// both reactions registered.
func New(id string, width, height int) *Session {
	s := &Session{
		ID:       id,
		Store:    state.NewStore(state.Default()),
		View:     view.New(width, height),
		lastSeen: time.Now(),
	}
	s.Store.OnChange("handle_file", s.HandleFile, state.FieldUploadedFile)
	s.Store.OnChange("change_options", s.ChangeOptions,
		state.FieldSelectedScalarField, state.FieldSelectedStyle, state.FieldShowEdges)
	return s
}

// HandleFile reacts to a new (or removed) upload. The view is emptied and
// every field derived from the previous file is reset before the new file is
// decoded, so a failed decode leaves nothing on screen. The camera is reset
// and a redraw is signalled on every path. The outcome, panics included, is
// reported to the upload itself.
func (s *Session) HandleFile(ctx context.Context, c state.Change) (err error) {
	file := c.New.UploadedFile
	if file != nil {
		defer func() {
			if p := recover(); p != nil {
				file.Report(fmt.Errorf("session: upload %q: %v", file.Name, p))
				panic(p)
			}
			file.Report(err)
		}()
	}

	s.View.Clear()
	defer func() {
		s.View.ResetCamera()
		s.View.Update()
	}()

	s.Store.Update(ctx, func(st *state.State) {
		st.SelectedScalarField = ""
		st.SelectedStyle = ""
		st.ScalarFieldOptions = []state.Option{}
		st.ScalarFieldNames = []string{}
		st.Mesh = nil
	})

	if file == nil {
		return nil
	}
	log.Printf("session %s: upload %q (%d bytes)", s.ID, file.Name, file.Size)

	m, err := s.decode(file)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}

	names := m.ArrayNames()
	options := lo.Map(names, func(name string, _ int) state.Option {
		return state.Option{Title: name, Value: name}
	})
	s.Store.Update(ctx, func(st *state.State) {
		st.Mesh = m
		st.ScalarFieldNames = names
		st.ScalarFieldOptions = options
	})
	s.View.AddMesh(m, view.Props{ShowScalarBar: true})
	return nil
}

// decode stages the upload in a scratch file that keeps the original
// extension and parses it. The scratch file is removed on every path.
func (s *Session) decode(file *state.UploadedFile) (*mesh.Mesh, error) {
	ext := filepath.Ext(filepath.Base(file.Name))
	f, err := os.CreateTemp(s.ScratchDir, "meshview-*"+ext)
	if err != nil {
		return nil, fmt.Errorf("create scratch file: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.Write(file.Content); err != nil {
		f.Close()
		return nil, fmt.Errorf("write scratch file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close scratch file: %w", err)
	}
	return meshio.Read(path)
}

// ChangeOptions re-adds the loaded mesh with the current style, scalar and
// edge settings. Without a mesh it does nothing.
func (s *Session) ChangeOptions(ctx context.Context, c state.Change) error {
	st := s.Store.Snapshot()
	if !st.HasMesh() {
		return nil
	}
	s.View.Replace(view.Actor{
		Mesh: st.Mesh,
		Props: view.Props{
			Style:         st.Style(),
			Scalars:       st.SelectedScalarField,
			ShowScalarBar: true,
			ShowEdges:     st.ShowEdges,
		},
	})
	s.View.Update()
	return nil
}

// Upload hands a file to the session as the new selection and returns once
// it has been handled. The returned error is the failure to handle this
// file, if any, regardless of uploads made meanwhile by other callers; the
// session itself stays usable either way.
func (s *Session) Upload(ctx context.Context, name string, content []byte) error {
	file := state.NewUploadedFile(name, content)
	s.Store.Update(ctx, func(st *state.State) { st.UploadedFile = file })
	return file.Result()
}

// ClearUpload empties the file selection.
func (s *Session) ClearUpload(ctx context.Context) {
	s.Store.Update(ctx, func(st *state.State) { st.UploadedFile = nil })
}

// Touch records activity on the session.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()
}

// Attach records an open push connection.
func (s *Session) Attach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns++
	s.lastSeen = time.Now()
}

// Detach records a closed push connection and reports whether none remain.
func (s *Session) Detach() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns > 0 {
		s.conns--
	}
	s.lastSeen = time.Now()
	return s.conns == 0
}

// idle reports whether the session has no connections and no activity
// since before cutoff.
func (s *Session) idle(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns == 0 && s.lastSeen.Before(cutoff)
}
