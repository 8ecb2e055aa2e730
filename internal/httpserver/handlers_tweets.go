package httpserver

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/crimson-sun/tonal/internal/model"
)

const maxTweetsLimit = 1000

func (s *Server) handleTweets(c echo.Context) error {
	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return jsonError(c, http.StatusBadRequest, "limit must be a non-negative integer")
		}
		limit = min(n, maxTweetsLimit)
	}

	ctx := c.Request().Context()
	tweets, err := s.lister.List(ctx, limit)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list tweets", "error", err)
		return jsonError(c, http.StatusInternalServerError, "failed to fetch tweets")
	}
	if tweets == nil {
		tweets = []model.LabeledExample{}
	}

	if err := c.JSON(http.StatusOK, tweets); err != nil {
		return fmt.Errorf("failed to write tweets response: %w", err)
	}
	return nil
}
