package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/crimson-sun/tonal/internal/model"
)

const (
	msgNoTweet      = "No tweet provided"
	msgNotAList     = "Incorrect format. A list is expected"
	msgEmptyList    = "Tweet list is empty"
	msgNotAString   = "Incorrect Format. Each tweet need to be a string"
	msgBlankTweet   = "The tweets can't be empty"
	msgNoModel      = "no sentiment model available"
	msgScoringError = "failed to score tweets"
)

// handleAnalyze scores a list of tweets and answers {"<tweet>": score}.
func (s *Server) handleAnalyze(c echo.Context) error {
	tweets, msg := parseTweets(c.Request())
	if msg != "" {
		return jsonError(c, http.StatusBadRequest, msg)
	}

	ctx := c.Request().Context()
	scores, err := s.predictor.Predict(ctx, tweets)
	if errors.Is(err, model.ErrNoModelAvailable) {
		slog.WarnContext(ctx, "analyze without a model", "error", err)
		return jsonError(c, http.StatusServiceUnavailable, msgNoModel)
	}
	if err != nil {
		slog.ErrorContext(ctx, "scoring failed", "error", err)
		return jsonError(c, http.StatusInternalServerError, msgScoringError)
	}

	results := make(map[string]float64, len(tweets))
	for i, tweet := range tweets {
		results[tweet] = math.Round(scores[i]*100) / 100
	}

	if s.recorder != nil {
		s.record(c, tweets, scores)
	}

	if err := c.JSON(http.StatusOK, results); err != nil {
		return fmt.Errorf("failed to write analyze response: %w", err)
	}
	return nil
}

// record stores the analyzed tweets labeled by their score. Failures are
// logged; the caller still receives its scores.
func (s *Server) record(c echo.Context, tweets []string, scores []float64) {
	ctx := c.Request().Context()
	now := s.clock.Now().UTC()
	examples := make([]model.LabeledExample, len(tweets))
	for i, tweet := range tweets {
		examples[i] = model.ExampleFromScore(tweet, scores[i], now)
	}
	if err := s.recorder.Insert(ctx, examples); err != nil {
		slog.ErrorContext(ctx, "failed to record analyzed tweets", "count", len(examples), "error", err)
		return
	}
	slog.DebugContext(ctx, "recorded analyzed tweets", "count", len(examples))
}

// parseTweets decodes {"tweets": [...]} and returns the validation message
// for the first problem found.
func parseTweets(r *http.Request) ([]string, string) {
	var body map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, msgNoTweet
	}
	raw, ok := body["tweets"]
	if !ok {
		return nil, msgNoTweet
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil || items == nil {
		return nil, msgNotAList
	}
	if len(items) == 0 {
		return nil, msgEmptyList
	}

	tweets := make([]string, len(items))
	for i, item := range items {
		if err := json.Unmarshal(item, &tweets[i]); err != nil || string(item) == "null" {
			return nil, msgNotAString
		}
		if strings.TrimSpace(tweets[i]) == "" {
			return nil, msgBlankTweet
		}
	}
	return tweets, ""
}
