// Package ui declares the viewer page as a tree of bound widgets and renders
// it to HTML. The tree carries no logic: each input names the state field it
// reads and writes, and the embedded client script keeps the two in sync
// over the session's websocket.
package ui

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"

	"github.com/chazu/meshview/pkg/state"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Static returns the client assets, rooted so that "app.js" is at the top.
func Static() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

// Kind is a widget type.
type Kind string

const (
	KindPage       Kind = "page"
	KindToolbar    Kind = "toolbar"
	KindDrawer     Kind = "drawer"
	KindContent    Kind = "content"
	KindSpacer     Kind = "spacer"
	KindFileInput  Kind = "file-input"
	KindProgress   Kind = "progress"
	KindRadioGroup Kind = "radio-group"
	KindRadio      Kind = "radio"
	KindSelect     Kind = "select"
	KindSwitch     Kind = "switch"
	KindContainer  Kind = "container"
	KindRenderView Kind = "render-view"
)

// ViewUpdate is the client event that makes the render view refetch its
// image.
const ViewUpdate = "view_update"

// Node is one widget of the page.
type Node struct {
	Kind  Kind
	Label string
	// Bind is the state field the widget reads and writes.
	Bind state.Field
	// Items names the state field holding a select's options.
	Items state.Field
	// Value is a radio's value.
	Value string
	// Attrs are extra widget settings, rendered as data attributes.
	Attrs    map[string]string
	Children []*Node
}

// Find returns the first node of the given kind in depth-first order.
func (n *Node) Find(kind Kind) *Node {
	if n.Kind == kind {
		return n
	}
	for _, c := range n.Children {
		if f := c.Find(kind); f != nil {
			return f
		}
	}
	return nil
}

// Build declares the single page with drawer layout.
func Build(title string) *Node {
	radios := make([]*Node, 0, len(state.Styles))
	for _, s := range state.Styles {
		radios = append(radios, &Node{Kind: KindRadio, Label: string(s), Value: string(s)})
	}

	toolbar := &Node{Kind: KindToolbar, Label: title, Children: []*Node{
		{Kind: KindSpacer},
		{
			Kind: KindFileInput,
			Bind: state.FieldUploadedFile,
			Attrs: map[string]string{
				"multiple":  "false",
				"show-size": "true",
				"chips":     "closable",
				"truncate":  "25",
			},
		},
		{Kind: KindProgress, Bind: state.FieldBusy, Attrs: map[string]string{"indeterminate": "true"}},
	}}

	drawer := &Node{Kind: KindDrawer, Children: []*Node{
		{Kind: KindRadioGroup, Label: "Style", Bind: state.FieldSelectedStyle, Children: radios},
		{Kind: KindSelect, Label: "Scalar", Bind: state.FieldSelectedScalarField, Items: state.FieldScalarFieldOptions},
		{Kind: KindSwitch, Label: "Show edges", Bind: state.FieldShowEdges},
	}}

	content := &Node{Kind: KindContent, Children: []*Node{
		{Kind: KindContainer, Attrs: map[string]string{"fluid": "true"}, Children: []*Node{
			{Kind: KindRenderView, Attrs: map[string]string{"trigger": ViewUpdate}},
		}},
	}}

	return &Node{
		Kind:     KindPage,
		Label:    title,
		Children: []*Node{toolbar, drawer, content},
	}
}

// Page is the data the page template needs besides the tree.
type Page struct {
	Title     string
	SessionID string
	Root      *Node
}

var page = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Render writes the page for a session.
func Render(w io.Writer, p Page) error {
	if p.Root == nil {
		p.Root = Build(p.Title)
	}
	if err := page.ExecuteTemplate(w, "page.html", p); err != nil {
		return fmt.Errorf("ui: render page: %w", err)
	}
	return nil
}
