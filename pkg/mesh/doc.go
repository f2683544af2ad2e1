// Package mesh defines the in-memory dataset the viewer works on: a triangle
// surface with optional line segments and named scalar arrays attached to
// its points or cells. Readers in meshio produce it, the view renders it.
// A Mesh is never mutated after it has been handed to a session; each
// upload produces a new one.
package mesh
