package score

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crimson-sun/tonal/internal/model"
)

var (
	binaryClasses  = []model.Label{model.LabelNeutral, model.LabelPositive}
	ternaryClasses = []model.Label{model.LabelNegative, model.LabelNeutral, model.LabelPositive}
)

func TestScore_Binary(t *testing.T) {
	m := Mapper{Policy: model.Binary}
	tests := []struct {
		pPos float64
		want float64
	}{
		{0, -1},
		{0.25, -0.5},
		{0.5, 0},
		{0.75, 0.5},
		{1, 1},
	}
	for _, tt := range tests {
		got, err := m.Score([]float64{1 - tt.pPos, tt.pPos}, binaryClasses)
		require.NoError(t, err)
		assert.InDelta(t, tt.want, got, 1e-12, "p(positive)=%v", tt.pPos)
	}
}

func TestScore_BinaryMonotone(t *testing.T) {
	m := Mapper{Policy: model.Binary}
	prev := -2.0
	for i := 0; i <= 100; i++ {
		p := float64(i) / 100
		s, err := m.Score([]float64{1 - p, p}, binaryClasses)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, s, prev)
		prev = s
	}
}

func TestScore_Ternary(t *testing.T) {
	m := Mapper{Policy: model.Ternary}
	tests := []struct {
		name  string
		probs []float64
		want  float64
	}{
		{"all negative", []float64{1, 0, 0}, -1},
		{"all neutral", []float64{0, 1, 0}, 0},
		{"all positive", []float64{0, 0, 1}, 1},
		{"balanced", []float64{0.3, 0.4, 0.3}, 0},
		{"leaning positive", []float64{0.1, 0.3, 0.6}, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Score(tt.probs, ternaryClasses)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestScore_TernaryWithoutNeutralClass(t *testing.T) {
	m := Mapper{Policy: model.Ternary}
	got, err := m.Score([]float64{0.2, 0.8}, []model.Label{model.LabelNegative, model.LabelPositive})
	require.NoError(t, err)
	assert.InDelta(t, 0.6, got, 1e-12)
}

func TestScore_AlwaysInRange(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for _, policy := range []model.LabelPolicy{model.Binary, model.Ternary} {
		m := Mapper{Policy: policy}
		for i := 0; i < 1000; i++ {
			k := 2 + r.IntN(3)
			probs := make([]float64, k)
			classes := make([]model.Label, k)
			for j := range probs {
				// Unnormalized and slightly drifting inputs still clamp.
				probs[j] = r.Float64() * 1.01
				classes[j] = model.Label(r.IntN(5) - 2)
			}
			s, err := m.Score(probs, classes)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, s, -1.0)
			assert.LessOrEqual(t, s, 1.0)
		}
	}
}

func TestScore_ClassTwoIsNotPositive(t *testing.T) {
	m := Mapper{Policy: model.Binary}
	got, err := m.Score([]float64{0, 1}, []model.Label{model.LabelNeutral, model.Label(2)})
	require.NoError(t, err)
	assert.Zero(t, got)
}

func TestScore_Errors(t *testing.T) {
	m := Mapper{Policy: model.Binary}

	_, err := m.Score([]float64{1}, []model.Label{model.LabelPositive})
	assert.ErrorIs(t, err, model.ErrDegenerateModel)

	_, err = m.Score(nil, nil)
	assert.ErrorIs(t, err, model.ErrDegenerateModel)

	_, err = m.Score([]float64{0.5}, binaryClasses)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, model.ErrDegenerateModel)
}

func TestScoreAll(t *testing.T) {
	m := Mapper{Policy: model.Binary}
	got, err := m.ScoreAll([][]float64{{0.5, 0.5}, {0, 1}, {1, 0}}, binaryClasses)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, 1, -1}, got, 1e-12)

	got, err = m.ScoreAll(nil, binaryClasses)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = m.ScoreAll([][]float64{{0.5, 0.5}}, binaryClasses[:1])
	assert.ErrorIs(t, err, model.ErrDegenerateModel)
}
