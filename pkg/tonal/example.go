package tonal

import (
	"context"
	"time"

	"github.com/crimson-sun/tonal/internal/model"
)

// Example is a labeled text. Positive and Negative both false is neutral.
type Example struct {
	Text      string    `json:"text"`
	Positive  bool      `json:"positive"`
	Negative  bool      `json:"negative"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Source supplies the examples each training run learns from.
type Source interface {
	Examples(ctx context.Context) ([]Example, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]Example, error)

func (f SourceFunc) Examples(ctx context.Context) ([]Example, error) { return f(ctx) }

// sourceAdapter exposes a public Source to the training pipeline.
type sourceAdapter struct {
	src Source
}

func (a sourceAdapter) ListExamples(ctx context.Context) ([]model.LabeledExample, error) {
	examples, err := a.src.Examples(ctx)
	if err != nil {
		return nil, err
	}
	return toLabeled(examples), nil
}

func toLabeled(examples []Example) []model.LabeledExample {
	out := make([]model.LabeledExample, len(examples))
	for i, ex := range examples {
		out[i] = model.LabeledExample{
			Text:      ex.Text,
			Positive:  ex.Positive,
			Negative:  ex.Negative,
			CreatedAt: ex.CreatedAt,
		}
	}
	return out
}
