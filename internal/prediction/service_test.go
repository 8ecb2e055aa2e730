package prediction

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crimson-sun/tonal/internal/engine"
	"github.com/crimson-sun/tonal/internal/engine/classifier"
	"github.com/crimson-sun/tonal/internal/engine/normalize"
	"github.com/crimson-sun/tonal/internal/engine/vectorizer"
	"github.com/crimson-sun/tonal/internal/model"
)

func testEngine(t *testing.T, version string) *engine.Engine {
	t.Helper()
	texts := []string{"I love this", "great stuff love it", "This is terrible", "awful and terrible"}
	vec, err := vectorizer.Fit(texts)
	require.NoError(t, err)
	cls := classifier.New()
	require.NoError(t, cls.Fit(vec.Transform(texts), []model.Label{1, 1, 0, 0}))
	eng, err := engine.New(vec, cls, model.Binary, version)
	require.NoError(t, err)
	return eng
}

type fakeResolver struct {
	calls atomic.Int32
	gate  chan struct{}
	eng   *engine.Engine
	err   error
}

func (f *fakeResolver) ResolveLatest(ctx context.Context) (*engine.Engine, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.eng, f.err
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]float64
	getErr  error
	setErr  error
	sets    int
}

func newFakeCache() *fakeCache { return &fakeCache{entries: map[string]float64{}} }

func (c *fakeCache) GetScores(_ context.Context, version string, normalized []string) ([]float64, []bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, nil, c.getErr
	}
	scores := make([]float64, len(normalized))
	found := make([]bool, len(normalized))
	for i, text := range normalized {
		scores[i], found[i] = c.entries[version+"|"+text]
	}
	return scores, found, nil
}

func (c *fakeCache) SetScores(_ context.Context, version string, normalized []string, scores []float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	if c.setErr != nil {
		return c.setErr
	}
	for i, text := range normalized {
		c.entries[version+"|"+text] = scores[i]
	}
	return nil
}

func TestPredict_NoModelAvailable(t *testing.T) {
	svc := New(&fakeResolver{err: model.ErrNotFound})

	assert.False(t, svc.IsReady())
	_, err := svc.Predict(context.Background(), []string{"hello"})
	assert.ErrorIs(t, err, model.ErrNoModelAvailable)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.False(t, svc.IsReady())
	assert.Empty(t, svc.Version())
}

func TestPredict_CorruptArtifactSurfacesAsNoModel(t *testing.T) {
	svc := New(&fakeResolver{err: model.ErrCorruptArtifact})
	_, err := svc.Predict(context.Background(), []string{"hello"})
	assert.ErrorIs(t, err, model.ErrNoModelAvailable)
	assert.ErrorIs(t, err, model.ErrCorruptArtifact)
}

func TestPredict_LazyLoadOnce(t *testing.T) {
	res := &fakeResolver{eng: testEngine(t, "v1")}
	svc := New(res)

	assert.False(t, svc.IsReady(), "IsReady never loads")
	assert.Equal(t, int32(0), res.calls.Load())

	scores, err := svc.Predict(context.Background(), []string{"love it", "terrible"})
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.Greater(t, scores[0], scores[1])

	_, err = svc.Predict(context.Background(), []string{"again"})
	require.NoError(t, err)

	assert.Equal(t, int32(1), res.calls.Load())
	assert.True(t, svc.IsReady())
	assert.Equal(t, "v1", svc.Version())
}

func TestPredict_ConcurrentLazyLoadsCollapse(t *testing.T) {
	res := &fakeResolver{eng: testEngine(t, "v1"), gate: make(chan struct{})}
	svc := New(res)

	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Predict(context.Background(), []string{"love"})
			errs <- err
		}()
	}
	require.Eventually(t, func() bool { return res.calls.Load() == 1 }, time.Second, time.Millisecond)
	close(res.gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), res.calls.Load())
}

func TestPredict_CancelledCallerDoesNotFailSharedLoad(t *testing.T) {
	res := &fakeResolver{eng: testEngine(t, "v1"), gate: make(chan struct{})}
	svc := New(res)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := svc.Predict(ctx, []string{"love"})
		first <- err
	}()
	require.Eventually(t, func() bool { return res.calls.Load() == 1 }, time.Second, time.Millisecond)

	second := make(chan error, 1)
	go func() {
		_, err := svc.Predict(context.Background(), []string{"love"})
		second <- err
	}()

	cancel()
	select {
	case err := <-first:
		assert.ErrorIs(t, err, model.ErrNoModelAvailable)
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled caller kept waiting on the shared load")
	}

	close(res.gate)
	select {
	case err := <-second:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for second caller")
	}
	assert.True(t, svc.IsReady())
	assert.Equal(t, "v1", svc.Version())
}

func TestPredict_EmptyInput(t *testing.T) {
	svc := New(&fakeResolver{eng: testEngine(t, "v1")})
	scores, err := svc.Predict(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, scores)
}

func TestActivate_SwapsModel(t *testing.T) {
	res := &fakeResolver{err: model.ErrNotFound}
	svc := New(res)

	svc.Activate(testEngine(t, "v1"))
	assert.True(t, svc.IsReady())
	assert.Equal(t, "v1", svc.Version())

	_, err := svc.Predict(context.Background(), []string{"love"})
	require.NoError(t, err)
	assert.Equal(t, int32(0), res.calls.Load(), "an activated model needs no resolve")

	svc.Activate(testEngine(t, "v2"))
	assert.Equal(t, "v2", svc.Version())

	svc.Activate(nil)
	assert.Equal(t, "v2", svc.Version())
}

func TestReload(t *testing.T) {
	res := &fakeResolver{eng: testEngine(t, "v1")}
	svc := New(res)

	require.NoError(t, svc.Reload(context.Background()))
	assert.Equal(t, "v1", svc.Version())

	res.eng, res.err = nil, errors.New("disk gone")
	assert.Error(t, svc.Reload(context.Background()))
	assert.Equal(t, "v1", svc.Version(), "failed reload keeps the active model")
}

func TestPredict_CacheHitsAndMisses(t *testing.T) {
	eng := testEngine(t, "v1")
	cache := newFakeCache()
	cache.entries["v1|"+normalize.Text("Cached!")] = 0.42
	svc := New(&fakeResolver{eng: eng}, WithCache(cache))

	texts := []string{"love it", "Cached!", "terrible"}
	scores, err := svc.Predict(context.Background(), texts)
	require.NoError(t, err)

	want, err := eng.Score(texts)
	require.NoError(t, err)
	assert.Equal(t, want[0], scores[0])
	assert.Equal(t, 0.42, scores[1])
	assert.Equal(t, want[2], scores[2])

	assert.Contains(t, cache.entries, "v1|love it")
	assert.Contains(t, cache.entries, "v1|terrible")

	// Everything is cached now; no further writes.
	_, err = svc.Predict(context.Background(), texts)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)
}

func TestPredict_CacheFailuresIgnored(t *testing.T) {
	eng := testEngine(t, "v1")
	texts := []string{"love it", "terrible"}
	want, err := eng.Score(texts)
	require.NoError(t, err)

	cache := newFakeCache()
	cache.getErr = errors.New("redis down")
	svc := New(&fakeResolver{eng: eng}, WithCache(cache))
	got, err := svc.Predict(context.Background(), texts)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	cache = newFakeCache()
	cache.setErr = errors.New("redis down")
	svc = New(&fakeResolver{eng: eng}, WithCache(cache))
	got, err = svc.Predict(context.Background(), texts)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
