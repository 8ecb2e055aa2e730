// Package classifier implements a multinomial logistic regression over count
// vectors, trained in-process with full-batch gradient descent.
package classifier

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/crimson-sun/tonal/internal/model"
)

const (
	defaultIterations   = 500
	defaultLearningRate = 1.0
	defaultC            = 1.0
)

// Option configures a Classifier.
type Option func(*Classifier)

// WithIterations sets the number of gradient descent steps.
func WithIterations(n int) Option {
	return func(c *Classifier) {
		if n > 0 {
			c.iterations = n
		}
	}
}

// WithLearningRate scales the step size. The step is normalized by a bound on
// the loss curvature, so 1.0 is a safe default.
func WithLearningRate(lr float64) Option {
	return func(c *Classifier) {
		if lr > 0 {
			c.learningRate = lr
		}
	}
}

// WithC sets the inverse L2 regularization strength. Smaller values regularize more.
func WithC(cInv float64) Option {
	return func(c *Classifier) {
		if cInv > 0 {
			c.c = cInv
		}
	}
}

// Classifier maps feature vectors to class probabilities.
// A fitted Classifier is safe for concurrent reads.
type Classifier struct {
	iterations   int
	learningRate float64
	c            float64

	classes []model.Label
	dim     int
	// weights is (dim+1) x len(classes); the last row holds the intercepts.
	weights *mat.Dense
}

// New creates an unfitted Classifier.
func New(opts ...Option) *Classifier {
	c := &Classifier{
		iterations:   defaultIterations,
		learningRate: defaultLearningRate,
		c:            defaultC,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fit trains the model. The class set is whatever distinct labels appear,
// ordered ascending. At least two examples and two distinct labels are required.
func (c *Classifier) Fit(features [][]float64, labels []model.Label) error {
	n := len(features)
	if n != len(labels) {
		return fmt.Errorf("classifier: %d feature rows but %d labels", n, len(labels))
	}
	if n < 2 {
		return fmt.Errorf("classifier: %d examples: %w", n, model.ErrInsufficientData)
	}
	classes := distinct(labels)
	if len(classes) < 2 {
		return fmt.Errorf("classifier: %d distinct label(s): %w", len(classes), model.ErrInsufficientData)
	}
	dim := len(features[0])
	x, err := augment(features, dim)
	if err != nil {
		return err
	}

	k := len(classes)
	classIdx := make(map[model.Label]int, k)
	for i, cl := range classes {
		classIdx[cl] = i
	}
	y := mat.NewDense(n, k, nil)
	for i, l := range labels {
		y.Set(i, classIdx[l], 1)
	}

	lambda := 1 / (c.c * float64(n))
	step := c.learningRate / (0.5*maxRowNormSq(x) + lambda)

	w := mat.NewDense(dim+1, k, nil)
	var (
		p    mat.Dense
		grad mat.Dense
		reg  mat.Dense
	)
	for iter := 0; iter < c.iterations; iter++ {
		p.Mul(x, w)
		softmaxRows(&p)
		p.Sub(&p, y)

		grad.Mul(x.T(), &p)
		grad.Scale(1/float64(n), &grad)

		reg.Scale(lambda, w)
		for j := 0; j < k; j++ {
			reg.Set(dim, j, 0) // intercepts are not penalized
		}
		grad.Add(&grad, &reg)

		grad.Scale(step, &grad)
		w.Sub(w, &grad)
	}

	c.classes = classes
	c.dim = dim
	c.weights = w
	return nil
}

// PredictProba returns one probability row per input, columns ordered as Classes().
func (c *Classifier) PredictProba(features [][]float64) ([][]float64, error) {
	if c.weights == nil {
		return nil, fmt.Errorf("classifier: predict before fit")
	}
	if len(features) == 0 {
		return [][]float64{}, nil
	}
	x, err := augment(features, c.dim)
	if err != nil {
		return nil, err
	}
	var p mat.Dense
	p.Mul(x, c.weights)
	softmaxRows(&p)

	rows, _ := p.Dims()
	out := make([][]float64, rows)
	for i := range out {
		out[i] = mat.Row(nil, i, &p)
	}
	return out, nil
}

// Predict returns the most probable class for every input.
func (c *Classifier) Predict(features [][]float64) ([]model.Label, error) {
	probs, err := c.PredictProba(features)
	if err != nil {
		return nil, err
	}
	out := make([]model.Label, len(probs))
	for i, row := range probs {
		out[i] = c.classes[floats.MaxIdx(row)]
	}
	return out, nil
}

// Classes returns the class labels in probability-column order.
func (c *Classifier) Classes() []model.Label {
	out := make([]model.Label, len(c.classes))
	copy(out, c.classes)
	return out
}

// Dim is the feature vector length the classifier was fit on.
func (c *Classifier) Dim() int { return c.dim }

// augment packs rows into an n x (dim+1) matrix whose last column is 1.
func augment(features [][]float64, dim int) (*mat.Dense, error) {
	n := len(features)
	data := make([]float64, 0, n*(dim+1))
	for i, row := range features {
		if len(row) != dim {
			return nil, fmt.Errorf("classifier: row %d has %d features, want %d", i, len(row), dim)
		}
		data = append(data, row...)
		data = append(data, 1)
	}
	return mat.NewDense(n, dim+1, data), nil
}

// softmaxRows replaces every row of m with its softmax, subtracting the row
// maximum first to keep exp in range.
func softmaxRows(m *mat.Dense) {
	rows, _ := m.Dims()
	for i := 0; i < rows; i++ {
		row := m.RawRowView(i)
		hi := floats.Max(row)
		for j, v := range row {
			row[j] = math.Exp(v - hi)
		}
		floats.Scale(1/floats.Sum(row), row)
	}
}

func maxRowNormSq(x *mat.Dense) float64 {
	rows, _ := x.Dims()
	var hi float64
	for i := 0; i < rows; i++ {
		row := x.RawRowView(i)
		if s := floats.Dot(row, row); s > hi {
			hi = s
		}
	}
	return hi
}

func distinct(labels []model.Label) []model.Label {
	seen := make(map[model.Label]struct{})
	var out []model.Label
	for _, l := range labels {
		if _, ok := seen[l]; !ok {
			seen[l] = struct{}{}
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type state struct {
	Classes      []int
	Dim          int
	Weights      []float64
	Iterations   int
	LearningRate float64
	C            float64
}

// MarshalBinary encodes the fitted model with gob.
func (c *Classifier) MarshalBinary() ([]byte, error) {
	if c.weights == nil {
		return nil, fmt.Errorf("classifier: encode before fit")
	}
	s := state{
		Classes:      make([]int, len(c.classes)),
		Dim:          c.dim,
		Weights:      mat.DenseCopyOf(c.weights).RawMatrix().Data,
		Iterations:   c.iterations,
		LearningRate: c.learningRate,
		C:            c.c,
	}
	for i, cl := range c.classes {
		s.Classes[i] = int(cl)
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, fmt.Errorf("classifier: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode rebuilds a fitted Classifier from MarshalBinary output.
func Decode(data []byte) (*Classifier, error) {
	var s state
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return nil, fmt.Errorf("classifier: decode: %w", err)
	}
	k := len(s.Classes)
	if k < 2 || s.Dim < 0 || len(s.Weights) != (s.Dim+1)*k {
		return nil, fmt.Errorf("classifier: decode: inconsistent shape (dim=%d classes=%d weights=%d)", s.Dim, k, len(s.Weights))
	}
	c := New(WithIterations(s.Iterations), WithLearningRate(s.LearningRate), WithC(s.C))
	c.dim = s.Dim
	c.classes = make([]model.Label, k)
	for i, cl := range s.Classes {
		c.classes[i] = model.Label(cl)
	}
	c.weights = mat.NewDense(s.Dim+1, k, s.Weights)
	return c, nil
}
