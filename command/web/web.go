package web

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"command-centre/command/rollup"
	"command-centre/connectors/files"
	"command-centre/connectors/store"
	"command-centre/connectors/xlsx"
	"command-centre/domain/config"
	"command-centre/domain/run"
	"command-centre/pipeline"
	"command-centre/trigger"
)

// Runner starts one rollup.
type Runner interface {
	Run(ctx context.Context, trigger string) (*pipeline.Result, error)
}

// Tables is the read side of the tabular store.
type Tables interface {
	Tables(ctx context.Context) ([]string, error)
	ReadTable(ctx context.Context, name string) (*store.Table, error)
	LatestRun(ctx context.Context) (run.Run, error)
}

// Server holds the handlers of the upload and read APIs.
type Server struct {
	UploadDir string
	Runner    Runner
	Store     Tables
	Debounce  time.Duration
	// UIDir optionally points to a built SPA served at /.
	UIDir string

	debouncer *trigger.Debouncer
}

type uploadRequest struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// Run starts the Echo web server.
//
// Endpoints:
//
//	POST /api/command_centre      -> save a base64 upload into the upload dir
//	POST /api/run_preprocessing   -> schedule a debounced rollup
//	GET  /api/tables              -> names of the stored tables
//	GET  /api/tables/:name        -> one stored table as JSON rows
//	GET  /api/runs/latest         -> the last recorded run
//	GET  /metrics                 -> Prometheus metrics
func Run(ctx context.Context, cfg *config.Config, addr, uiDir string) error {
	env, err := rollup.Open(cfg, slog.Default())
	if err != nil {
		return err
	}
	defer env.Close()

	if addr == "" {
		addr = cfg.Web.Addr
	}
	s := &Server{
		UploadDir: cfg.Inputs.UploadDir,
		Runner:    env.Runner,
		Store:     env.Store,
		Debounce:  cfg.Web.Debounce,
		UIDir:     uiDir,
	}
	e := s.Echo(ctx)
	defer s.Stop()

	errc := make(chan error, 1)
	go func() { errc <- e.Start(addr) }()
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdown)
	}
}

// Echo builds the router. Scheduled runs use ctx.
func (s *Server) Echo(ctx context.Context) *echo.Echo {
	delay := s.Debounce
	if delay <= 0 {
		delay = time.Minute
	}
	s.debouncer = trigger.NewDebouncer(delay, func() {
		if _, err := s.Runner.Run(ctx, "web"); err != nil {
			slog.Error("web.run.failed", "err", err)
		}
	})

	e := echo.New()
	e.HideBanner = true

	e.POST("/api/command_centre", s.upload)
	e.POST("/api/run_preprocessing", s.schedule)
	e.GET("/api/tables", s.listTables)
	e.GET("/api/tables/:name", s.readTable)
	e.GET("/api/runs/latest", s.latestRun)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Static UI (optional)
	if s.UIDir == "" {
		return e
	}
	indexPath := filepath.Join(s.UIDir, "index.html")
	if fi, err := os.Stat(indexPath); err == nil && !fi.IsDir() {
		e.Static("/", s.UIDir)
		e.GET("/", func(c echo.Context) error { return c.File(indexPath) })

		// Fallback to index.html for non-API 404s (SPA routing)
		e.HTTPErrorHandler = func(err error, c echo.Context) {
			if he, ok := err.(*echo.HTTPError); ok && he.Code == http.StatusNotFound {
				if !strings.HasPrefix(c.Request().URL.Path, "/api") {
					_ = c.File(indexPath)
					return
				}
			}
			e.DefaultHTTPErrorHandler(err, c)
		}
	}
	return e
}

// Stop cancels a scheduled run that has not started yet.
func (s *Server) Stop() {
	if s.debouncer != nil {
		s.debouncer.Stop()
	}
}

func errorJSON(c echo.Context, code int, msg string) error {
	return c.JSON(code, map[string]any{"status": "error", "message": msg})
}

func (s *Server) upload(c echo.Context) error {
	var req uploadRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid JSON payload")
	}
	if req.Content == "" {
		return errorJSON(c, http.StatusBadRequest, "No file content received")
	}
	name := filepath.Base(strings.ReplaceAll(req.Filename, `\`, "/"))
	if name == "." || name == "/" || name == "" {
		name = "unknown.xlsx"
	}

	data, err := base64.StdEncoding.DecodeString(req.Content)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, fmt.Sprintf("decode content: %v", err))
	}
	if err := os.MkdirAll(s.UploadDir, 0o755); err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	path := filepath.Join(s.UploadDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}

	sheet, err := files.ReadSheet(path, "")
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	sum := xlsx.Summarize(sheet, 3)
	slog.Info("web.upload", "file", name, "bytes", len(data), "rows", sum.Rows)
	return c.JSON(http.StatusOK, map[string]any{
		"status":   "success",
		"api":      "command_centre",
		"filename": name,
		"rows":     sum.Rows,
		"cols":     sum.Cols,
		"preview":  sum.Preview,
	})
}

func (s *Server) schedule(c echo.Context) error {
	s.debouncer.Schedule()
	delay := s.debouncer.Delay
	slog.Info("web.run.scheduled", "delay", delay.String())
	return c.JSON(http.StatusOK, map[string]any{
		"status":  "scheduled",
		"message": fmt.Sprintf("Preprocessing will run in %s if no new files arrive", delay),
	})
}

func (s *Server) listTables(c echo.Context) error {
	names, err := s.Store.Tables(c.Request().Context())
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	if names == nil {
		names = []string{}
	}
	return c.JSON(http.StatusOK, names)
}

func (s *Server) readTable(c echo.Context) error {
	name := c.Param("name")
	t, err := s.Store.ReadTable(c.Request().Context(), name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]any{
				"error":   "table not found",
				"table":   name,
				"message": "no run has produced this table",
			})
		}
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, t)
}

func (s *Server) latestRun(c echo.Context) error {
	r, err := s.Store.LatestRun(c.Request().Context())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]any{"error": "no run recorded"})
		}
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, r)
}
