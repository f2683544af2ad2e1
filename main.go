package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chazu/meshview/pkg/meshio"
	"github.com/chazu/meshview/pkg/sample"
)

var config = DefaultConfig()

var rootCmd = &cobra.Command{
	Use:   "meshview",
	Short: "View 3D meshes in the browser",
	Long: `meshview serves a single page where a mesh file (.stl, .obj, .3mf,
.vtk or .ply) can be uploaded and inspected: rendering style, scalar
coloring and edge visibility are set from the page and the rendered
view follows.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&config.Host, "host", config.Host, "Address to listen on")
	flags.IntVar(&config.Port, "port", config.Port, "Port to listen on")
	flags.BoolVar(&config.NoBrowser, "no-browser", false, "Do not open the page in a browser")
	flags.IntVar(&config.Width, "width", config.Width, "Default render width in pixels")
	flags.IntVar(&config.Height, "height", config.Height, "Default render height in pixels")
	flags.DurationVar(&config.SessionTTL, "session-ttl", config.SessionTTL,
		"Drop sessions without a connection after this long (0 keeps them)")
	flags.StringVar(&config.Title, "title", config.Title, "Page title")
	flags.StringVar(&config.WriteSample, "write-sample", "",
		"Write the demo dataset as legacy VTK to this path and exit")
	flags.IntVar(&config.SampleCells, "cells", config.SampleCells,
		"Marching cubes resolution of the demo dataset")
}

func run(cmd *cobra.Command, args []string) error {
	if config.WriteSample != "" {
		return writeSample(config.WriteSample, config.SampleCells)
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewApp(config).Run(ctx)
}

func writeSample(path string, cells int) error {
	m, err := sample.Build(cells)
	if err != nil {
		return fmt.Errorf("build sample: %w", err)
	}
	if err := meshio.WriteVTKFile(path, m, "meshview sample"); err != nil {
		return err
	}
	log.Printf("meshview: wrote %s (%d points, %d triangles)", path, m.PointCount(), m.TriangleCount())
	return nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
