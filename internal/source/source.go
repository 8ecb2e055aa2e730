package source

import (
	"context"

	"github.com/crimson-sun/tonal/internal/model"
)

// Source supplies the labeled examples a training run learns from.
type Source interface {
	ListExamples(ctx context.Context) ([]model.LabeledExample, error)
}

// Recorder stores new examples, such as analyzed texts labeled by the model.
type Recorder interface {
	Insert(ctx context.Context, examples []model.LabeledExample) error
}

// Lister returns stored examples, newest first. limit <= 0 means no limit.
type Lister interface {
	List(ctx context.Context, limit int) ([]model.LabeledExample, error)
}

// Config holds provider-specific connection settings.
type Config struct {
	Provider    string
	DatabaseURL string
	Path        string
	Extra       map[string]string
}
