package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/browser"

	"github.com/chazu/meshview/pkg/sample"
	"github.com/chazu/meshview/pkg/session"
	"github.com/chazu/meshview/pkg/state"
	"github.com/chazu/meshview/pkg/ui"
)

// Config holds the command line settings of the server.
type Config struct {
	Host       string
	Port       int
	NoBrowser  bool
	Width      int
	Height     int
	SessionTTL time.Duration
	Title      string

	// WriteSample, when set, makes the command write the demo dataset to
	// this path and exit instead of serving.
	WriteSample string
	SampleCells int
}

// DefaultConfig returns the settings used when no flags are given.
func DefaultConfig() Config {
	return Config{
		Host:        "127.0.0.1",
		Port:        8080,
		Width:       800,
		Height:      600,
		SessionTTL:  30 * time.Minute,
		Title:       "Mesh Viewer",
		SampleCells: sample.DefaultCells,
	}
}

// Addr is the listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, fmt.Sprint(c.Port))
}

const (
	maxUpload     = "256M"
	sweepInterval = time.Minute
	sessionKey    = "session"
)

// App is the HTTP backend. It owns the session registry and serves the page,
// its assets, uploads, rendered images and the push channel.
type App struct {
	cfg      Config
	echo     *echo.Echo
	sessions *session.Registry
}

// uploadResult is the body returned by the upload endpoints.
type uploadResult struct {
	State state.Wire `json:"state"`
	Error string     `json:"error,omitempty"`
}

// NewApp creates an App with its routes registered.
func NewApp(cfg Config) *App {
	a := &App{
		cfg:      cfg,
		echo:     echo.New(),
		sessions: session.NewRegistry(cfg.Width, cfg.Height, cfg.SessionTTL),
	}
	e := a.echo
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())

	e.GET("/", a.index)
	e.GET("/healthz", a.healthz)
	e.StaticFS("/static", ui.Static())

	api := e.Group("/api/sessions/:id", a.withSession)
	api.POST("/upload", a.upload, middleware.BodyLimit(maxUpload))
	api.DELETE("/upload", a.clearUpload)
	api.GET("/view.png", a.viewPNG)
	api.GET("/ws", a.push)
	return a
}

// Handler returns the HTTP handler, for tests and embedding.
func (a *App) Handler() http.Handler {
	return a.echo
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.cfg.Addr(), err)
	}
	a.echo.Listener = ln
	url := "http://" + ln.Addr().String() + "/"
	log.Printf("meshview: serving on %s", url)

	go a.sessions.Run(ctx, sweepInterval)

	errc := make(chan error, 1)
	go func() {
		errc <- a.echo.Start("")
	}()

	if !a.cfg.NoBrowser {
		if err := browser.OpenURL(url); err != nil {
			log.Printf("meshview: open browser: %v", err)
		}
	}

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Printf("meshview: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// index creates a session and renders the page bound to it.
func (a *App) index(c echo.Context) error {
	s := a.sessions.Create()
	var buf bytes.Buffer
	if err := ui.Render(&buf, ui.Page{Title: a.cfg.Title, SessionID: s.ID}); err != nil {
		a.sessions.Remove(s.ID)
		return err
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}

func (a *App) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]int{"sessions": a.sessions.Len()})
}

// withSession resolves the :id path parameter. Unknown ids are a 404.
func (a *App) withSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		s, ok := a.sessions.Get(c.Param("id"))
		if !ok {
			return echo.NewHTTPError(http.StatusNotFound, "unknown session")
		}
		c.Set(sessionKey, s)
		return next(c)
	}
}

func sessionOf(c echo.Context) *session.Session {
	return c.Get(sessionKey).(*session.Session)
}

// upload hands a multipart "file" to the session. A file that cannot be
// decoded is not a transport error: the answer is 200 with the (empty)
// resulting state and the decode error for diagnostics.
func (a *App) upload(c echo.Context) error {
	s := sessionOf(c)
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "missing form file \"file\"")
	}
	f, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("read upload: %w", err)
	}

	res := uploadResult{}
	if err := s.Upload(c.Request().Context(), fh.Filename, content); err != nil {
		res.Error = err.Error()
	}
	res.State = s.Store.Snapshot().Wire()
	return c.JSON(http.StatusOK, res)
}

func (a *App) clearUpload(c echo.Context) error {
	s := sessionOf(c)
	s.ClearUpload(c.Request().Context())
	return c.JSON(http.StatusOK, uploadResult{State: s.Store.Snapshot().Wire()})
}

// viewPNG renders the session's view. w and h default to the view size.
func (a *App) viewPNG(c echo.Context) error {
	var w, h int
	if err := echo.QueryParamsBinder(c).Int("w", &w).Int("h", &h).BindError(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	var buf bytes.Buffer
	if err := sessionOf(c).View.EncodePNG(&buf, w, h); err != nil {
		return err
	}
	c.Response().Header().Set("Cache-Control", "no-store")
	return c.Blob(http.StatusOK, "image/png", buf.Bytes())
}
