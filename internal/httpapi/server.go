// Package httpapi exposes classification over HTTP.
package httpapi

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"

	"github.com/anatolykoptev/go-artstyle"
	"github.com/anatolykoptev/go-artstyle/internal/history"
)

// Defaults for Options.
const (
	DefaultMaxConcurrent  = 4
	DefaultMaxUploadBytes = 20 << 20
)

// Classifier is the part of artstyle.Service the HTTP surface uses.
type Classifier interface {
	ClassifyWith(ctx context.Context, strategy artstyle.Strategy, data []byte, filename string) (artstyle.ClassificationResult, error)
	Analyze(data []byte) (*artstyle.ImageAnalysis, error)
	Info() artstyle.ModelInfo
	Suggestions(label string) []string
}

// Metrics supplies classification metrics.
type Metrics interface {
	Summary(ctx context.Context, recent int) (*history.Summary, error)
}

// Options configures a Server. Zero values mean "use defaults".
type Options struct {
	Metrics        Metrics      // optional: nil disables /classification-metrics
	MaxConcurrent  int64        // concurrent classifications, default DefaultMaxConcurrent
	MaxUploadBytes int64        // upload size limit, default DefaultMaxUploadBytes
	Logger         *slog.Logger // default slog.Default()
}

// Server routes the classification API.
type Server struct {
	echo    *echo.Echo
	svc     Classifier
	metrics Metrics
	logger  *slog.Logger

	maxUpload int64
	// sem bounds concurrent decode and extraction work.
	sem *semaphore.Weighted
}

// ClassifyResponse is a classification result plus style suggestions.
type ClassifyResponse struct {
	artstyle.ClassificationResult
	Filename    string   `json:"filename,omitempty"`
	Degraded    bool     `json:"degraded"`
	Suggestions []string `json:"suggestions"`
}

// SuggestionsResponse lists the suggestions of one style.
type SuggestionsResponse struct {
	Label       string   `json:"label"`
	Suggestions []string `json:"suggestions"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// New builds the server and registers its routes.
func New(svc Classifier, opts Options) *Server {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:      e,
		svc:       svc,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		maxUpload: opts.MaxUploadBytes,
		sem:       semaphore.NewWeighted(opts.MaxConcurrent),
	}

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	g := e.Group("/api/v1")
	g.POST("/classify", s.classify)
	g.POST("/analyze", s.analyze)
	g.GET("/model-info", s.modelInfo)
	g.GET("/classification-metrics", s.classificationMetrics)
	g.GET("/styles/:label/suggestions", s.suggestions)
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.echo }

// Start serves on addr until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Start(addr string) error {
	s.logger.Info("artstyle: http server listening", "addr", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "http server")
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// classify handles POST /api/v1/classify (multipart "file", optional "strategy").
func (s *Server) classify(c echo.Context) error {
	strategy, err := artstyle.ParseStrategy(c.FormValue("strategy"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}
	data, filename, status, err := s.readUpload(c)
	if err != nil {
		return c.JSON(status, errorResponse{Error: err.Error()})
	}

	ctx := c.Request().Context()
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "request cancelled while queued"})
	}
	defer s.sem.Release(1)

	res, err := s.svc.ClassifyWith(ctx, strategy, data, filename)
	if errors.Is(err, artstyle.ErrImageDecode) {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid image file"})
	}
	if err != nil {
		s.logger.Error("artstyle: classification failed", "filename", filename, "error", err.Error())
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "classification failed"})
	}

	return c.JSON(http.StatusOK, ClassifyResponse{
		ClassificationResult: res,
		Filename:             filename,
		Degraded:             res.Degraded(),
		Suggestions:          s.svc.Suggestions(res.PredictedLabel),
	})
}

// analyze handles POST /api/v1/analyze (multipart "file").
func (s *Server) analyze(c echo.Context) error {
	data, _, status, err := s.readUpload(c)
	if err != nil {
		return c.JSON(status, errorResponse{Error: err.Error()})
	}
	if err := s.sem.Acquire(c.Request().Context(), 1); err != nil {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "request cancelled while queued"})
	}
	defer s.sem.Release(1)

	a, err := s.svc.Analyze(data)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid image file"})
	}
	return c.JSON(http.StatusOK, a)
}

func (s *Server) modelInfo(c echo.Context) error {
	return c.JSON(http.StatusOK, s.svc.Info())
}

func (s *Server) classificationMetrics(c echo.Context) error {
	if s.metrics == nil {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "classification history disabled"})
	}
	sum, err := s.metrics.Summary(c.Request().Context(), history.DefaultRecent)
	if err != nil {
		s.logger.Error("artstyle: classification metrics failed", "error", err.Error())
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "metrics unavailable"})
	}
	return c.JSON(http.StatusOK, sum)
}

func (s *Server) suggestions(c echo.Context) error {
	label := strings.ToLower(strings.TrimSpace(c.Param("label")))
	return c.JSON(http.StatusOK, SuggestionsResponse{Label: label, Suggestions: s.svc.Suggestions(label)})
}

// readUpload reads the multipart "file" field. On failure it returns the HTTP
// status to report.
func (s *Server) readUpload(c echo.Context) ([]byte, string, int, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return nil, "", http.StatusBadRequest, errors.New("missing file field")
	}
	if fh.Size > s.maxUpload {
		return nil, "", http.StatusRequestEntityTooLarge, errors.Errorf("file larger than %d bytes", s.maxUpload)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, "", http.StatusBadRequest, errors.Wrap(err, "open upload")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.maxUpload))
	if err != nil {
		return nil, "", http.StatusBadRequest, errors.Wrap(err, "read upload")
	}
	return data, fh.Filename, 0, nil
}
