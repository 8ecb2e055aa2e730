package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const readinessProbeTimeout = 5 * time.Second

func (s *Server) handleLiveness(c echo.Context) error {
	response := map[string]any{
		"status": "ok",
		"uptime": s.clock.Since(s.startTime).Seconds(),
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write liveness response: %w", err)
	}
	return nil
}

// handleReadiness reports ready once a model is loaded and every dependency
// check passes.
func (s *Server) handleReadiness(c echo.Context) error {
	if !s.predictor.IsReady() {
		return s.writeHealth(c, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"reason": "no model loaded",
		})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), readinessProbeTimeout)
	defer cancel()

	for _, hc := range s.healthChecks {
		if err := hc.Check(ctx); err != nil {
			return s.writeHealth(c, http.StatusServiceUnavailable, map[string]any{
				"status":       "unhealthy",
				"failed_check": hc.Name,
				"error":        err.Error(),
			})
		}
	}

	return s.writeHealth(c, http.StatusOK, map[string]any{
		"status":  "ready",
		"version": s.predictor.Version(),
	})
}

func (s *Server) writeHealth(c echo.Context, status int, body map[string]any) error {
	if err := c.JSON(status, body); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}
