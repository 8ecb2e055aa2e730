package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/crimson-sun/tonal/internal/engine"
	"github.com/crimson-sun/tonal/internal/engine/classifier"
	"github.com/crimson-sun/tonal/internal/engine/evaluate"
	"github.com/crimson-sun/tonal/internal/engine/normalize"
	"github.com/crimson-sun/tonal/internal/engine/vectorizer"
	"github.com/crimson-sun/tonal/internal/logging"
	"github.com/crimson-sun/tonal/internal/metrics"
	"github.com/crimson-sun/tonal/internal/model"
	"github.com/crimson-sun/tonal/internal/source"
)

const (
	DefaultTestFraction = 0.25
	DefaultSeed         = 42
)

// Persister commits a trained engine and returns its version id.
type Persister interface {
	Persist(ctx context.Context, eng *engine.Engine, examplesUsed int) (string, error)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLabelPolicy selects how examples map to classes. Default: Binary.
func WithLabelPolicy(p model.LabelPolicy) Option {
	return func(pl *Pipeline) { pl.policy = p }
}

// WithMaxFeatures caps the vocabulary size. Default: 100.
func WithMaxFeatures(n int) Option {
	return func(pl *Pipeline) { pl.vecOpts = append(pl.vecOpts, vectorizer.WithMaxFeatures(n)) }
}

// WithStopWords drops stop words of the given language code from the vocabulary.
func WithStopWords(lang string) Option {
	return func(pl *Pipeline) {
		if lang != "" {
			pl.vecOpts = append(pl.vecOpts, vectorizer.WithStopWords(lang))
		}
	}
}

// WithSplit sets the held-out fraction and the shuffle seed.
func WithSplit(testFraction float64, seed uint64) Option {
	return func(pl *Pipeline) {
		if testFraction > 0 && testFraction < 1 {
			pl.testFraction = testFraction
		}
		pl.seed = seed
	}
}

// WithClassifierOptions passes options through to the classifier.
func WithClassifierOptions(opts ...classifier.Option) Option {
	return func(pl *Pipeline) { pl.clsOpts = append(pl.clsOpts, opts...) }
}

// WithActivation registers a callback that receives every newly persisted engine.
func WithActivation(fn func(*engine.Engine)) Option {
	return func(pl *Pipeline) { pl.activate = fn }
}

// WithStateObserver registers a callback invoked on every state transition.
func WithStateObserver(fn func(State)) Option {
	return func(pl *Pipeline) { pl.observe = fn }
}

// WithClock sets the clock used to time runs.
func WithClock(c clockwork.Clock) Option {
	return func(pl *Pipeline) { pl.clock = c }
}

// Pipeline trains a new model version from a labeled-example source.
// At most one run executes at a time.
type Pipeline struct {
	source source.Source
	store  Persister

	policy       model.LabelPolicy
	vecOpts      []vectorizer.Option
	clsOpts      []classifier.Option
	testFraction float64
	seed         uint64
	activate     func(*engine.Engine)
	observe      func(State)
	clock        clockwork.Clock

	running sync.Mutex
	state   atomic.Int32
}

// New creates a Pipeline reading from src and committing to store.
func New(src source.Source, store Persister, opts ...Option) *Pipeline {
	p := &Pipeline{
		source:       src,
		store:        store,
		policy:       model.Binary,
		testFraction: DefaultTestFraction,
		seed:         DefaultSeed,
		clock:        clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns the stage of the run in progress, or Idle.
func (p *Pipeline) State() State {
	return State(p.state.Load())
}

// Train runs the pipeline and reports success. Failures are logged, never returned.
func (p *Pipeline) Train(ctx context.Context) bool {
	run, err := p.Run(ctx)
	ctx = logging.WithRunID(ctx, run.ID)
	if err != nil {
		slog.ErrorContext(ctx, "training failed", "error", err)
		return false
	}
	slog.InfoContext(ctx, "training complete",
		"version", run.VersionID,
		"examples", run.ExamplesUsed,
		"train", run.TrainSize,
		"test", run.TestSize,
		"duration", run.Duration,
	)
	return true
}

// Run executes one training run. A run that starts while another is active
// fails with ErrTrainingInProgress. A failed run leaves the active model untouched.
func (p *Pipeline) Run(ctx context.Context) (run model.TrainingRun, err error) {
	if !p.running.TryLock() {
		metrics.TrainingRunsTotal.WithLabelValues("busy").Inc()
		return run, model.ErrTrainingInProgress
	}
	defer p.running.Unlock()

	run = model.TrainingRun{
		ID:        uuid.NewString(),
		Policy:    p.policy,
		StartedAt: p.clock.Now(),
	}
	ctx = logging.WithRunID(ctx, run.ID)

	defer func() {
		run.Duration = p.clock.Since(run.StartedAt)
		if err != nil {
			p.setState(ctx, Failed)
			metrics.TrainingRunsTotal.WithLabelValues(outcome(err)).Inc()
		} else {
			metrics.TrainingRunsTotal.WithLabelValues("success").Inc()
			metrics.TrainingDuration.Observe(run.Duration.Seconds())
			metrics.TrainingExamples.Set(float64(run.ExamplesUsed))
		}
		p.setState(ctx, Idle)
	}()

	eng, err := p.train(ctx, &run)
	if err != nil {
		return run, err
	}

	p.setState(ctx, Persisting)
	version, err := p.store.Persist(ctx, eng, run.ExamplesUsed)
	if err != nil {
		return run, fmt.Errorf("persist: %w", err)
	}
	run.VersionID = version
	if p.activate != nil {
		p.activate(eng.WithVersion(version))
	}
	return run, nil
}

func (p *Pipeline) train(ctx context.Context, run *model.TrainingRun) (*engine.Engine, error) {
	p.setState(ctx, Loading)
	examples, err := p.source.ListExamples(ctx)
	if err != nil {
		return nil, fmt.Errorf("load examples: %w", err)
	}
	if len(examples) == 0 {
		return nil, model.ErrNoData
	}
	run.ExamplesUsed = len(examples)

	p.setState(ctx, Cleaning)
	texts := make([]string, len(examples))
	labels := make([]model.Label, len(examples))
	distinct := make(map[model.Label]struct{})
	for i, ex := range examples {
		texts[i] = normalize.Text(ex.Text)
		labels[i] = p.policy.Label(ex)
		distinct[labels[i]] = struct{}{}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.setState(ctx, Vectorizing)
	vec, err := vectorizer.Fit(texts, p.vecOpts...)
	if err != nil {
		return nil, fmt.Errorf("vectorize: %w", err)
	}
	features := vec.Transform(texts)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.setState(ctx, Fitting)
	if len(distinct) < 2 {
		return nil, fmt.Errorf("%d example(s) all labeled %d under %s policy: %w",
			len(examples), labels[0], p.policy, model.ErrDegenerateModel)
	}
	trainIdx, testIdx := split(len(examples), p.testFraction, p.seed)
	run.HeldOut = len(trainIdx) >= 2 && len(testIdx) > 0 && countDistinct(pick(labels, trainIdx)) >= 2
	if !run.HeldOut {
		slog.WarnContext(ctx, "split leaves too little training data, fitting and evaluating on the full set",
			"examples", len(examples), "classes", len(distinct))
		trainIdx = allIndices(len(examples))
		testIdx = trainIdx
	}
	run.TrainSize, run.TestSize = len(trainIdx), len(testIdx)

	cls := classifier.New(p.clsOpts...)
	if err := cls.Fit(pick(features, trainIdx), pick(labels, trainIdx)); err != nil {
		return nil, fmt.Errorf("fit: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.setState(ctx, Evaluating)
	p.evaluate(ctx, run, cls, pick(features, testIdx), pick(labels, testIdx))

	eng, err := engine.New(vec, cls, p.policy, "")
	if err != nil {
		return nil, err
	}
	return eng, nil
}

// evaluate logs a classification report. Evaluation problems never block persistence.
func (p *Pipeline) evaluate(ctx context.Context, run *model.TrainingRun, cls *classifier.Classifier, features [][]float64, actual []model.Label) {
	predicted, err := cls.Predict(features)
	if err != nil {
		slog.WarnContext(ctx, "evaluation skipped", "error", err)
		return
	}
	report, err := evaluate.Compute(cls.Classes(), actual, predicted)
	if err != nil {
		slog.WarnContext(ctx, "evaluation skipped", "error", err)
		return
	}
	run.Report = report.String()
	metrics.TrainingAccuracy.Set(report.Accuracy)
	slog.InfoContext(ctx, "evaluation",
		"accuracy", report.Accuracy,
		"macro_f1", report.MacroAvg.F1,
		"weighted_f1", report.WeightedAvg.F1,
		"held_out", run.HeldOut,
		"confusion", report.ConfusionRows(),
	)
	slog.DebugContext(ctx, "classification report\n"+run.Report)
}

func (p *Pipeline) setState(ctx context.Context, s State) {
	p.state.Store(int32(s))
	slog.DebugContext(ctx, "training state", "state", s.String())
	if p.observe != nil {
		p.observe(s)
	}
}

func outcome(err error) string {
	switch {
	case errors.Is(err, model.ErrNoData):
		return "no_data"
	case errors.Is(err, model.ErrDegenerateModel):
		return "degenerate"
	default:
		return "error"
	}
}

func countDistinct(labels []model.Label) int {
	seen := make(map[model.Label]struct{}, 3)
	for _, l := range labels {
		seen[l] = struct{}{}
	}
	return len(seen)
}

func allIndices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
