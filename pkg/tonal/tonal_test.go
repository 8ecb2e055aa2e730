package tonal

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trainingExamples() []Example {
	return []Example{
		{Text: "I love this, great day", Positive: true},
		{Text: "love it, wonderful and great", Positive: true},
		{Text: "such a great movie, I love it", Positive: true},
		{Text: "love love love, happy", Positive: true},
		{Text: "This is terrible and awful", Negative: true},
		{Text: "terrible service, really bad", Negative: true},
		{Text: "awful, terrible, I hate it", Negative: true},
		{Text: "bad and terrible experience", Negative: true},
	}
}

func TestNew_InvalidOptions(t *testing.T) {
	_, err := New(WithModelDir(t.TempDir()), WithLabelPolicy("quaternary"))
	assert.Error(t, err)

	_, err = New(WithModelDir(t.TempDir()), WithRetention(0))
	assert.Error(t, err)
}

func TestPredictBeforeTraining(t *testing.T) {
	tn, err := New(WithModelDir(t.TempDir()))
	require.NoError(t, err)

	assert.False(t, tn.IsReady())
	_, err = tn.Predict(context.Background(), []string{"hello"})
	assert.ErrorIs(t, err, ErrNoModelAvailable)
}

func TestTrainAndPredict(t *testing.T) {
	tn, err := New(WithModelDir(t.TempDir()), WithExamples(trainingExamples()))
	require.NoError(t, err)

	require.True(t, tn.Train(context.Background()))
	assert.True(t, tn.IsReady())
	assert.NotEmpty(t, tn.Version())

	scores, err := tn.Predict(context.Background(), []string{"I love this", "This is terrible"})
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.Greater(t, scores[0], 0.0)
	assert.Less(t, scores[1], 0.0)
}

func TestTrain_EmptyExamplesFails(t *testing.T) {
	tn, err := New(WithModelDir(t.TempDir()))
	require.NoError(t, err)

	assert.False(t, tn.Train(context.Background()))
	assert.False(t, tn.IsReady())
}

func TestSecondInstanceLoadsPersistedModel(t *testing.T) {
	dir := t.TempDir()
	first, err := New(WithModelDir(dir), WithExamples(trainingExamples()))
	require.NoError(t, err)
	require.True(t, first.Train(context.Background()))

	second, err := New(WithModelDir(dir))
	require.NoError(t, err)
	assert.False(t, second.IsReady())

	texts := []string{"I love this", "This is terrible", "unknown words only"}
	want, err := first.Predict(context.Background(), texts)
	require.NoError(t, err)
	got, err := second.Predict(context.Background(), texts)
	require.NoError(t, err)

	assert.InDeltaSlice(t, want, got, 1e-12)
	assert.Equal(t, first.Version(), second.Version())
}

func TestWithSource(t *testing.T) {
	calls := 0
	src := SourceFunc(func(context.Context) ([]Example, error) {
		calls++
		return trainingExamples(), nil
	})
	tn, err := New(WithModelDir(t.TempDir()), WithSource(src), WithExamples(nil))
	require.NoError(t, err)

	require.True(t, tn.Train(context.Background()))
	assert.Equal(t, 1, calls)
}

func TestWithSource_Error(t *testing.T) {
	src := SourceFunc(func(context.Context) ([]Example, error) {
		return nil, errors.New("unreachable")
	})
	tn, err := New(WithModelDir(t.TempDir()), WithSource(src))
	require.NoError(t, err)

	assert.False(t, tn.Train(context.Background()))
}

// ternaryExamples keeps "i", "this" and "is" out of every class so the
// sentiment words alone decide the sign, whichever examples are held out.
func ternaryExamples() []Example {
	return []Example{
		{Text: "love it, great day", Positive: true},
		{Text: "love the new camera", Positive: true},
		{Text: "we love a sunny morning", Positive: true},
		{Text: "love love love", Positive: true},
		{Text: "great food, love the staff", Positive: true},
		{Text: "love my phone", Positive: true},
		{Text: "terrible and awful", Negative: true},
		{Text: "terrible service again", Negative: true},
		{Text: "awful, terrible weekend", Negative: true},
		{Text: "terrible battery life", Negative: true},
		{Text: "what a terrible mess", Negative: true},
		{Text: "terrible terrible terrible", Negative: true},
		{Text: "the meeting starts at noon"},
		{Text: "the train leaves at noon"},
		{Text: "report on the desk"},
		{Text: "noon meeting on monday"},
	}
}

func TestTernaryPolicy(t *testing.T) {
	tn, err := New(WithModelDir(t.TempDir()), WithExamples(ternaryExamples()), WithLabelPolicy("ternary"))
	require.NoError(t, err)
	require.True(t, tn.Train(context.Background()))

	scores, err := tn.Predict(context.Background(), []string{"I love this", "This is terrible", "monday at noon"})
	require.NoError(t, err)
	assert.Greater(t, scores[0], 0.0)
	assert.Less(t, scores[1], 0.0)
	assert.Greater(t, scores[0], scores[2])
	assert.Less(t, scores[1], scores[2])
	for _, s := range scores {
		assert.GreaterOrEqual(t, s, -1.0)
		assert.LessOrEqual(t, s, 1.0)
	}
}

func TestCleanupKeepsRetentionAndActive(t *testing.T) {
	dir := t.TempDir()
	tn, err := New(WithModelDir(dir), WithExamples(trainingExamples()), WithRetention(2))
	require.NoError(t, err)

	for range 4 {
		require.True(t, tn.Train(context.Background()))
	}
	versions, err := tn.Versions(context.Background())
	require.NoError(t, err)
	require.Len(t, versions, 4)

	removed, err := tn.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, removed)

	versions, err = tn.Versions(context.Background())
	require.NoError(t, err)
	assert.Len(t, versions, 2)
	assert.Contains(t, versions, tn.Version())

	matches, err := filepath.Glob(filepath.Join(dir, "*"))
	require.NoError(t, err)
	assert.Len(t, matches, 6)
}

func TestConcurrentPredict(t *testing.T) {
	tn, err := New(WithModelDir(t.TempDir()), WithExamples(trainingExamples()))
	require.NoError(t, err)
	require.True(t, tn.Train(context.Background()))

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			scores, err := tn.Predict(context.Background(), []string{"I love this"})
			assert.NoError(t, err)
			assert.Len(t, scores, 1)
		}()
	}
	wg.Wait()
}

func TestNew_DoesNotCreateArtifacts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "models")
	_, err := New(WithModelDir(dir))
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	if err == nil {
		assert.Empty(t, entries)
	}
}
