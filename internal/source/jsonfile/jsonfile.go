// Package jsonfile reads and appends labeled examples in an NDJSON file, one
// {"text","positive","negative","created_at"} object per line.
package jsonfile

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/crimson-sun/tonal/internal/model"
	"github.com/crimson-sun/tonal/internal/source"
)

const maxLineSize = 1 << 20

func init() {
	source.Register("jsonfile", func(_ context.Context, cfg source.Config) (source.Source, error) {
		if cfg.Path == "" {
			return nil, fmt.Errorf("jsonfile source: path is required")
		}
		return New(cfg.Path), nil
	})
}

// Source is an NDJSON-backed example store. A missing file is an empty store.
type Source struct {
	path string
	mu   sync.Mutex
}

func New(path string) *Source {
	return &Source{path: path}
}

func (s *Source) ListExamples(ctx context.Context) ([]model.LabeledExample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(ctx)
}

// Insert appends examples to the file, creating it and its directory if needed.
func (s *Source) Insert(ctx context.Context, examples []model.LabeledExample) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(examples) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("jsonfile source: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("jsonfile source: open %s: %w", s.path, err)
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, ex := range examples {
		if err := enc.Encode(ex); err != nil {
			f.Close()
			return fmt.Errorf("jsonfile source: encode: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("jsonfile source: write: %w", err)
	}
	return f.Close()
}

// List returns stored examples, last line first.
func (s *Source) List(ctx context.Context, limit int) ([]model.LabeledExample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	slices.Reverse(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Source) read(ctx context.Context) ([]model.LabeledExample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("jsonfile source: open %s: %w", s.path, err)
	}
	defer f.Close()

	var out []model.LabeledExample
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var ex model.LabeledExample
		if err := json.Unmarshal([]byte(text), &ex); err != nil {
			return nil, fmt.Errorf("jsonfile source: %s:%d: %w", s.path, line, err)
		}
		out = append(out, ex)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("jsonfile source: read %s: %w", s.path, err)
	}
	return out, nil
}
