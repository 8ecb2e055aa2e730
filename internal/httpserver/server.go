// Package httpserver exposes the prediction service over HTTP.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"

	"github.com/crimson-sun/tonal/internal/source"
)

// Predictor scores texts against the active model.
type Predictor interface {
	Predict(ctx context.Context, texts []string) ([]float64, error)
	IsReady() bool
	Version() string
}

// HealthCheck is a named dependency check run by the readiness probe.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Option configures a Server.
type Option func(*Server)

// WithRecorder stores every analyzed text back as a labeled example.
func WithRecorder(r source.Recorder) Option {
	return func(s *Server) { s.recorder = r }
}

// WithLister enables GET /tweets.
func WithLister(l source.Lister) Option {
	return func(s *Server) { s.lister = l }
}

// WithRateLimit limits POST /analyze per client IP. A zero rate disables it.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(s *Server) {
		s.rateLimit = perSecond
		s.rateBurst = burst
	}
}

// WithHealthChecks adds dependency checks to the readiness probe.
func WithHealthChecks(checks ...HealthCheck) Option {
	return func(s *Server) { s.healthChecks = append(s.healthChecks, checks...) }
}

// WithClock sets the clock used for uptime and recorded timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(s *Server) { s.clock = c }
}

type Server struct {
	echo      *echo.Echo
	predictor Predictor
	recorder  source.Recorder
	lister    source.Lister

	rateLimit    float64
	rateBurst    int
	healthChecks []HealthCheck
	clock        clockwork.Clock
	startTime    time.Time
}

func New(p Predictor, opts ...Option) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:      e,
		predictor: p,
		clock:     clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startTime = s.clock.Now()

	s.registerRoutes()
	return s
}

// ServeHTTP lets the server be mounted or driven directly in tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	slog.Info("starting server", "addr", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

func jsonError(c echo.Context, status int, message string) error {
	if err := c.JSON(status, map[string]string{"error": message}); err != nil {
		return fmt.Errorf("failed to write error response: %w", err)
	}
	return nil
}
