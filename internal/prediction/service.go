// Package prediction serves sentiment scores from the active model.
package prediction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/crimson-sun/tonal/internal/engine"
	"github.com/crimson-sun/tonal/internal/engine/normalize"
	"github.com/crimson-sun/tonal/internal/metrics"
	"github.com/crimson-sun/tonal/internal/model"
)

// Resolver finds the newest persisted model.
type Resolver interface {
	ResolveLatest(ctx context.Context) (*engine.Engine, error)
}

// Cache stores scores per (model version, normalized text).
type Cache interface {
	GetScores(ctx context.Context, version string, normalized []string) ([]float64, []bool, error)
	SetScores(ctx context.Context, version string, normalized []string, scores []float64) error
}

// Option configures a Service.
type Option func(*Service)

// WithCache enables score caching. Cache failures never fail a prediction.
func WithCache(c Cache) Option {
	return func(s *Service) { s.cache = c }
}

// Service scores texts against one active engine that is swapped wholesale.
type Service struct {
	resolver Resolver
	cache    Cache
	active   atomic.Pointer[engine.Engine]
	loads    singleflight.Group
}

func New(resolver Resolver, opts ...Option) *Service {
	s := &Service{resolver: resolver}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Predict returns one score in [-1, 1] per text, in input order. When no model
// is loaded the newest persisted one is resolved first.
func (s *Service) Predict(ctx context.Context, texts []string) ([]float64, error) {
	start := time.Now()
	defer func() { metrics.PredictionDuration.Observe(time.Since(start).Seconds()) }()

	eng, err := s.engine(ctx)
	if err != nil {
		metrics.PredictionsTotal.WithLabelValues("no_model").Inc()
		return nil, err
	}

	scores, err := s.score(ctx, eng, texts)
	if err != nil {
		metrics.PredictionsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.PredictionsTotal.WithLabelValues("success").Inc()
	metrics.TextsScored.Add(float64(len(texts)))
	return scores, nil
}

// IsReady reports whether a model is loaded. It never triggers a load.
func (s *Service) IsReady() bool {
	return s.active.Load() != nil
}

// Version is the active model version, or "" when none is loaded.
func (s *Service) Version() string {
	if eng := s.active.Load(); eng != nil {
		return eng.Version()
	}
	return ""
}

// Activate swaps in a new engine. Predictions already running finish on the
// engine they started with.
func (s *Service) Activate(eng *engine.Engine) {
	if eng == nil {
		return
	}
	prev := s.active.Swap(eng)
	if prev != nil {
		metrics.ModelInfo.WithLabelValues(prev.Version(), prev.Policy().String()).Set(0)
	}
	metrics.ModelInfo.WithLabelValues(eng.Version(), eng.Policy().String()).Set(1)
	slog.Info("model activated", "version", eng.Version(), "policy", eng.Policy().String())
}

// Reload resolves the newest persisted model and activates it.
func (s *Service) Reload(ctx context.Context) error {
	eng, err := s.resolve(ctx)
	if err != nil {
		return err
	}
	s.Activate(eng)
	return nil
}

func (s *Service) engine(ctx context.Context) (*engine.Engine, error) {
	if eng := s.active.Load(); eng != nil {
		return eng, nil
	}
	// The shared load outlives any single caller; each caller still stops
	// waiting when its own context ends.
	loadCtx := context.WithoutCancel(ctx)
	ch := s.loads.DoChan("latest", func() (any, error) {
		if eng := s.active.Load(); eng != nil {
			return eng, nil
		}
		eng, err := s.resolve(loadCtx)
		if err != nil {
			return nil, err
		}
		// A concurrent Activate wins over a lazily loaded model.
		if s.active.CompareAndSwap(nil, eng) {
			metrics.ModelInfo.WithLabelValues(eng.Version(), eng.Policy().String()).Set(1)
			slog.InfoContext(loadCtx, "model loaded", "version", eng.Version())
			return eng, nil
		}
		return s.active.Load(), nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", model.ErrNoModelAvailable, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("%w: %w", model.ErrNoModelAvailable, res.Err)
		}
		return res.Val.(*engine.Engine), nil
	}
}

func (s *Service) resolve(ctx context.Context) (*engine.Engine, error) {
	eng, err := s.resolver.ResolveLatest(ctx)
	switch {
	case err == nil:
		metrics.ModelLoadsTotal.WithLabelValues("success").Inc()
	case errors.Is(err, model.ErrNotFound):
		metrics.ModelLoadsTotal.WithLabelValues("not_found").Inc()
	case errors.Is(err, model.ErrCorruptArtifact):
		metrics.ModelLoadsTotal.WithLabelValues("corrupt").Inc()
		slog.ErrorContext(ctx, "latest model artifact is corrupt", "error", err)
	default:
		metrics.ModelLoadsTotal.WithLabelValues("error").Inc()
	}
	return eng, err
}

func (s *Service) score(ctx context.Context, eng *engine.Engine, texts []string) ([]float64, error) {
	if s.cache == nil || len(texts) == 0 {
		return eng.Score(texts)
	}

	normalized := normalize.All(texts)
	cached, found, err := s.cache.GetScores(ctx, eng.Version(), normalized)
	if err == nil && (len(cached) != len(texts) || len(found) != len(texts)) {
		err = fmt.Errorf("cache returned %d/%d entries for %d texts", len(cached), len(found), len(texts))
	}
	if err != nil {
		slog.WarnContext(ctx, "score cache read failed", "error", err)
		return eng.Score(texts)
	}

	var missIdx []int
	var missTexts []string
	for i, ok := range found {
		if !ok {
			missIdx = append(missIdx, i)
			missTexts = append(missTexts, normalized[i])
		}
	}
	if len(missIdx) == 0 {
		return cached, nil
	}

	fresh, err := eng.Score(missTexts)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		cached[i] = fresh[j]
	}
	if err := s.cache.SetScores(ctx, eng.Version(), missTexts, fresh); err != nil {
		slog.WarnContext(ctx, "score cache write failed", "error", err)
	}
	return cached, nil
}
