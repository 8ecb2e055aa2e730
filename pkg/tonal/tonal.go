package tonal

import (
	"context"
	"fmt"

	"github.com/crimson-sun/tonal/internal/artifact"
	"github.com/crimson-sun/tonal/internal/model"
	"github.com/crimson-sun/tonal/internal/pipeline"
	"github.com/crimson-sun/tonal/internal/prediction"
	"github.com/crimson-sun/tonal/internal/source"
)

// ErrNoModelAvailable is returned by Predict when nothing was trained yet
// and no persisted model can be loaded.
var ErrNoModelAvailable = model.ErrNoModelAvailable

// Tonal trains, persists and serves a sentiment model.
// Safe for concurrent use.
type Tonal struct {
	store     *artifact.Store
	service   *prediction.Service
	pipeline  *pipeline.Pipeline
	retention int
}

// New wires an artifact store, a training pipeline and a prediction service.
// It does not train or load anything; call Train, or let the first Predict
// load the newest persisted model.
func New(opts ...Option) (*Tonal, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	policy, err := model.ParseLabelPolicy(o.labelPolicy)
	if err != nil {
		return nil, fmt.Errorf("tonal: %w", err)
	}
	if o.retention < 1 {
		return nil, fmt.Errorf("tonal: retention must be at least 1, got %d", o.retention)
	}

	var src source.Source = source.NewMemory(toLabeled(o.examples))
	if o.source != nil {
		src = sourceAdapter{src: o.source}
	}

	store, err := artifact.New(o.modelDir)
	if err != nil {
		return nil, fmt.Errorf("tonal: %w", err)
	}

	svc := prediction.New(store)
	p := pipeline.New(src, store,
		pipeline.WithLabelPolicy(policy),
		pipeline.WithMaxFeatures(o.maxFeatures),
		pipeline.WithStopWords(o.stopWords),
		pipeline.WithSplit(o.testFraction, o.seed),
		pipeline.WithActivation(svc.Activate),
	)

	return &Tonal{store: store, service: svc, pipeline: p, retention: o.retention}, nil
}

// Train fetches the examples, fits a new model, persists it and makes it
// active. It reports success; a failed run leaves the active model untouched.
func (t *Tonal) Train(ctx context.Context) bool {
	return t.pipeline.Train(ctx)
}

// Predict scores each text in [-1, 1], preserving input order.
func (t *Tonal) Predict(ctx context.Context, texts []string) ([]float64, error) {
	return t.service.Predict(ctx, texts)
}

// IsReady reports whether a model is loaded.
func (t *Tonal) IsReady() bool {
	return t.service.IsReady()
}

// Version is the active model version, or "" when none is loaded.
func (t *Tonal) Version() string {
	return t.service.Version()
}

// Reload activates the newest persisted model.
func (t *Tonal) Reload(ctx context.Context) error {
	return t.service.Reload(ctx)
}

// Versions lists the complete persisted model versions, oldest first.
func (t *Tonal) Versions(ctx context.Context) ([]string, error) {
	return t.store.Versions(ctx)
}

// Cleanup removes all but the newest retained versions. The active model is
// never removed.
func (t *Tonal) Cleanup(ctx context.Context) (int, error) {
	var protect []string
	if v := t.service.Version(); v != "" {
		protect = append(protect, v)
	}
	return t.store.Cleanup(ctx, t.retention, protect...)
}
