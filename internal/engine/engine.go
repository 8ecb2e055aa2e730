package engine

import (
	"fmt"

	"github.com/crimson-sun/tonal/internal/engine/classifier"
	"github.com/crimson-sun/tonal/internal/engine/score"
	"github.com/crimson-sun/tonal/internal/engine/vectorizer"
	"github.com/crimson-sun/tonal/internal/model"
)

// Engine is one loaded model artifact: a vectorizer and the classifier fit on
// its vocabulary, plus the version they were persisted under.
// An Engine is immutable once built and safe for concurrent use.
type Engine struct {
	vectorizer *vectorizer.Vectorizer
	classifier *classifier.Classifier
	mapper     score.Mapper
	version    string
}

// New pairs a vectorizer with a classifier. The classifier must have been fit
// on vectors of the vectorizer's dimension.
func New(vec *vectorizer.Vectorizer, cls *classifier.Classifier, policy model.LabelPolicy, version string) (*Engine, error) {
	if vec == nil || cls == nil {
		return nil, fmt.Errorf("engine: vectorizer and classifier are both required")
	}
	if vec.Dim() != cls.Dim() {
		return nil, fmt.Errorf("engine: vectorizer dim %d != classifier dim %d: %w", vec.Dim(), cls.Dim(), model.ErrCorruptArtifact)
	}
	return &Engine{
		vectorizer: vec,
		classifier: cls,
		mapper:     score.Mapper{Policy: policy},
		version:    version,
	}, nil
}

// Score runs normalize → transform → predict_proba → score for every text,
// preserving input order.
func (e *Engine) Score(texts []string) ([]float64, error) {
	if len(texts) == 0 {
		return []float64{}, nil
	}
	probs, err := e.classifier.PredictProba(e.vectorizer.Transform(texts))
	if err != nil {
		return nil, err
	}
	return e.mapper.ScoreAll(probs, e.classifier.Classes())
}

// WithVersion returns a copy of e stamped with version.
func (e *Engine) WithVersion(version string) *Engine {
	cp := *e
	cp.version = version
	return &cp
}

func (e *Engine) Version() string                    { return e.version }
func (e *Engine) Policy() model.LabelPolicy          { return e.mapper.Policy }
func (e *Engine) Vectorizer() *vectorizer.Vectorizer { return e.vectorizer }
func (e *Engine) Classifier() *classifier.Classifier { return e.classifier }
