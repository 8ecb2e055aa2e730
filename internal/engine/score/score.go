// Package score turns class probabilities into a signed sentiment score.
package score

import (
	"fmt"

	"github.com/crimson-sun/tonal/internal/model"
)

// Mapper weights class probabilities according to a label policy.
type Mapper struct {
	Policy model.LabelPolicy
}

// Score returns sum(weight(class_i) * p_i), clamped to [-1, 1].
// Under the binary policy that is 2*p(positive)-1; under the ternary policy it is
// the expected label over {-1, 0, +1}.
func (m Mapper) Score(probs []float64, classes []model.Label) (float64, error) {
	if len(classes) < 2 {
		return 0, fmt.Errorf("score: %d class(es): %w", len(classes), model.ErrDegenerateModel)
	}
	if len(probs) != len(classes) {
		return 0, fmt.Errorf("score: %d probabilities for %d classes", len(probs), len(classes))
	}
	var s float64
	for i, p := range probs {
		s += m.Policy.Weight(classes[i]) * p
	}
	return clamp(s), nil
}

// ScoreAll scores every probability row against the same class set.
func (m Mapper) ScoreAll(rows [][]float64, classes []model.Label) ([]float64, error) {
	out := make([]float64, len(rows))
	for i, row := range rows {
		s, err := m.Score(row, classes)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = s
	}
	return out, nil
}

func clamp(v float64) float64 {
	switch {
	case v > 1:
		return 1
	case v < -1:
		return -1
	}
	return v
}
