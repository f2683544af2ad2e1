package ui

import (
	"bytes"
	"io/fs"
	"strings"
	"testing"

	"github.com/chazu/meshview/pkg/state"
)

func TestBuildLayout(t *testing.T) {
	root := Build("Viewer")
	if root.Kind != KindPage || len(root.Children) != 3 {
		t.Fatalf("root = %s with %d children, want page with 3", root.Kind, len(root.Children))
	}
	kinds := []Kind{root.Children[0].Kind, root.Children[1].Kind, root.Children[2].Kind}
	want := []Kind{KindToolbar, KindDrawer, KindContent}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("child %d = %s, want %s", i, kinds[i], want[i])
		}
	}
}

func TestBuildBindings(t *testing.T) {
	root := Build("Viewer")
	tests := []struct {
		kind Kind
		bind state.Field
	}{
		{KindFileInput, state.FieldUploadedFile},
		{KindProgress, state.FieldBusy},
		{KindRadioGroup, state.FieldSelectedStyle},
		{KindSelect, state.FieldSelectedScalarField},
		{KindSwitch, state.FieldShowEdges},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			n := root.Find(tt.kind)
			if n == nil {
				t.Fatalf("no %s in tree", tt.kind)
			}
			if n.Bind != tt.bind {
				t.Errorf("%s binds %q, want %q", tt.kind, n.Bind, tt.bind)
			}
		})
	}

	if got := root.Find(KindSelect).Items; got != state.FieldScalarFieldOptions {
		t.Errorf("select items = %q, want %q", got, state.FieldScalarFieldOptions)
	}
	if got := root.Find(KindFileInput).Attrs["multiple"]; got != "false" {
		t.Errorf("file input multiple = %q, want false", got)
	}
	if got := root.Find(KindRenderView).Attrs["trigger"]; got != ViewUpdate {
		t.Errorf("render view trigger = %q, want %q", got, ViewUpdate)
	}
}

func TestStyleRadios(t *testing.T) {
	group := Build("Viewer").Find(KindRadioGroup)
	if len(group.Children) != len(state.Styles) {
		t.Fatalf("%d radios, want %d", len(group.Children), len(state.Styles))
	}
	for i, r := range group.Children {
		if r.Kind != KindRadio || r.Value != string(state.Styles[i]) {
			t.Errorf("radio %d = %+v, want value %q", i, r, state.Styles[i])
		}
	}
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, Page{Title: "Viewer <3>", SessionID: "abc-123"}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	html := buf.String()
	for _, want := range []string{
		`data-session="abc-123"`,
		`data-bind="uploadedFile"`,
		`data-bind="busy"`,
		`data-bind="selectedStyle"`,
		`data-bind="selectedScalarField"`,
		`data-items="scalarFieldOptions"`,
		`data-bind="showEdges"`,
		`value="points_gaussian"`,
		`data-trigger="view_update"`,
		`data-truncate="25"`,
		`Viewer &lt;3&gt;`,
		`/static/app.js`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("page is missing %s", want)
		}
	}
	if strings.Contains(html, `type="file" multiple`) {
		t.Error("file input allows multiple files")
	}
}

func TestStatic(t *testing.T) {
	for _, name := range []string{"app.js", "app.css"} {
		data, err := fs.ReadFile(Static(), name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if len(data) == 0 {
			t.Errorf("%s is empty", name)
		}
	}
}
