package source

import (
	"context"
	"slices"
	"sync"

	"github.com/crimson-sun/tonal/internal/model"
)

func init() {
	Register("memory", func(context.Context, Config) (Source, error) {
		return NewMemory(nil), nil
	})
}

// Memory is an in-process example store. It implements Source, Recorder and Lister.
type Memory struct {
	mu       sync.RWMutex
	examples []model.LabeledExample
}

// NewMemory returns a Memory seeded with a copy of examples.
func NewMemory(examples []model.LabeledExample) *Memory {
	return &Memory{examples: slices.Clone(examples)}
}

func (m *Memory) ListExamples(ctx context.Context) ([]model.LabeledExample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.examples), nil
}

func (m *Memory) Insert(ctx context.Context, examples []model.LabeledExample) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.examples = append(m.examples, examples...)
	return nil
}

// List returns the most recently inserted examples first.
func (m *Memory) List(ctx context.Context, limit int) ([]model.LabeledExample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := slices.Clone(m.examples)
	slices.Reverse(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
