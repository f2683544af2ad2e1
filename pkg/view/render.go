package view

import (
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"math"

	"github.com/fogleman/fauxgl"
	"github.com/nfnt/resize"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	plotdraw "gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/chazu/meshview/pkg/state"
	"github.com/chazu/meshview/pkg/tessellate"
)

const (
	// MaxSize bounds either side of a rendered image.
	MaxSize = 4096

	// supersample is the factor the scene is rasterized at before the
	// downscale that antialiases it.
	supersample = 2

	// pointPixels is the on-screen diameter of a point sprite.
	pointPixels = 5
)

// Render rasterizes the scene at w x h pixels. Zero sizes use the view
// defaults.
func (v *View) Render(w, h int) (image.Image, error) {
	w, h = v.size(w, h)
	snap := v.snapshot()

	ctx := fauxgl.NewContext(w*supersample, h*supersample)
	ctx.ClearColorBufferWith(snap.background)
	ctx.ClearDepthBuffer()
	ctx.Cull = fauxgl.CullNone

	b, hasBounds := bounds(snap.actors)
	r := 1.0
	if hasBounds {
		r = radius(b)
	}
	aspect := float64(w) / float64(h)
	cam := snap.camera
	matrix := cam.matrix(aspect, r)
	forward, right, up := cam.basis()
	light := vec(r3.Scale(-1, forward))

	// World size of one output pixel at the focal distance.
	pixel := 2 * cam.Distance() * math.Tan(cam.Fovy/2*math.Pi/180) / float64(h)

	var bar *scalarBar
	for _, a := range snap.actors {
		if a.Mesh == nil || a.Mesh.IsEmpty() {
			continue
		}
		opts := tessellate.Options{
			Style:       a.Props.Style,
			Color:       snap.color,
			ShowEdges:   a.Props.ShowEdges,
			EdgeColor:   snap.edgeColor,
			PointRadius: 0.5 * pointPixels * pixel,
			Right:       vec(right),
			Up:          vec(up),
		}
		if opts.Style == state.StylePointsGaussian {
			opts.PointRadius *= 2
		}
		if arr := scalars(a); arr != nil {
			lo, hi, ok := arr.Range()
			if !ok {
				lo, hi = 0, 1
			}
			opts.Scalars = arr
			opts.ColorMap = tessellate.ColorMap(lo, hi)
			if a.Props.ShowScalarBar && bar == nil {
				bar = &scalarBar{title: arr.Name, cmap: opts.ColorMap}
			}
		}

		g, err := tessellate.Tessellate(a.Mesh, opts)
		if err != nil {
			return nil, fmt.Errorf("view: %w", err)
		}
		draw3D(ctx, g, matrix, light)
	}

	img := resize.Resize(uint(w), uint(h), ctx.Image(), resize.Bilinear)
	if bar == nil {
		return img, nil
	}
	out := image.NewNRGBA(img.Bounds())
	draw.Draw(out, out.Bounds(), img, image.Point{}, draw.Src)
	bar.drawOnto(out, snap.background)
	return out, nil
}

// EncodePNG renders the scene and writes it to wr as a PNG.
func (v *View) EncodePNG(wr io.Writer, w, h int) error {
	img, err := v.Render(w, h)
	if err != nil {
		return err
	}
	if err := png.Encode(wr, img); err != nil {
		return fmt.Errorf("view: encode png: %w", err)
	}
	return nil
}

// draw3D rasterizes one actor's geometry: surfaces first, then lines and
// the edge overlay pulled slightly toward the camera, then point sprites.
func draw3D(ctx *fauxgl.Context, g *tessellate.Geometry, matrix fauxgl.Matrix, light fauxgl.Vector) {
	if len(g.Triangles) > 0 {
		ctx.Shader = &surfaceShader{matrix: matrix, light: light}
		ctx.DrawTriangles(g.Triangles)
	}
	if len(g.Lines) > 0 || len(g.Edges) > 0 {
		ctx.Shader = &flatShader{matrix: matrix}
		ctx.LineWidth = supersample
		ctx.DepthBias = -1e-4
		ctx.DrawLines(g.Lines)
		ctx.DrawLines(g.Edges)
		ctx.DepthBias = 0
	}
	if len(g.Sprites) > 0 {
		ctx.Shader = &spriteShader{matrix: matrix, gaussian: g.Gaussian}
		ctx.DrawTriangles(g.Sprites)
	}
}

// scalarBar is the color legend drawn at the right edge of the view.
type scalarBar struct {
	title string
	cmap  palette.ColorMap
}

// drawOnto renders the legend with gonum/plot and composites it over dst.
func (s *scalarBar) drawOnto(dst draw.Image, bg fauxgl.Color) {
	size := dst.Bounds().Size()
	bw := max(64, size.X/8)
	bh := size.Y * 3 / 5
	if bw >= size.X || bh < 48 {
		// Too small to hold a readable legend.
		return
	}

	p := plot.New()
	p.BackgroundColor = bg.NRGBA()
	p.Title.Text = s.title
	p.HideX()
	p.Add(&plotter.ColorBar{ColorMap: s.cmap, Vertical: true, Colors: 128})

	c := vgimg.NewWith(vgimg.UseWH(vg.Length(bw), vg.Length(bh)), vgimg.UseDPI(72))
	p.Draw(plotdraw.New(c))
	legend := c.Image()

	x0 := size.X - bw
	y0 := (size.Y - bh) / 2
	r := image.Rect(x0, y0, x0+bw, y0+bh)
	draw.Draw(dst, r, legend, legend.Bounds().Min, draw.Over)
}
