package tonal

type options struct {
	modelDir     string
	examples     []Example
	source       Source
	labelPolicy  string
	maxFeatures  int
	stopWords    string
	retention    int
	testFraction float64
	seed         uint64
}

// Option configures a Tonal instance.
type Option func(*options)

// WithModelDir sets the directory artifacts are persisted to and loaded from.
// Default: "models".
func WithModelDir(dir string) Option {
	return func(o *options) { o.modelDir = dir }
}

// WithExamples trains on a fixed, in-memory set of examples.
func WithExamples(examples []Example) Option {
	return func(o *options) { o.examples = examples }
}

// WithSource trains on examples fetched from src at every run.
// Takes precedence over WithExamples.
func WithSource(src Source) Option {
	return func(o *options) { o.source = src }
}

// WithLabelPolicy selects "binary" or "ternary" classification. Default: "binary".
func WithLabelPolicy(policy string) Option {
	return func(o *options) { o.labelPolicy = policy }
}

// WithMaxFeatures caps the vocabulary size. Default: 100.
func WithMaxFeatures(n int) Option {
	return func(o *options) { o.maxFeatures = n }
}

// WithStopWords drops stop words of a language ("en", "fr", ...) from the vocabulary.
func WithStopWords(lang string) Option {
	return func(o *options) { o.stopWords = lang }
}

// WithRetention sets how many model versions Cleanup keeps. Default: 3.
func WithRetention(keep int) Option {
	return func(o *options) { o.retention = keep }
}

// WithSplit sets the held-out evaluation share and the shuffle seed.
func WithSplit(testFraction float64, seed uint64) Option {
	return func(o *options) {
		o.testFraction = testFraction
		o.seed = seed
	}
}

func defaultOptions() options {
	return options{
		modelDir:     "models",
		labelPolicy:  "binary",
		maxFeatures:  100,
		retention:    3,
		testFraction: 0.25,
		seed:         42,
	}
}
