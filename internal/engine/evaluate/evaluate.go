// Package evaluate computes classification metrics for a fitted model on
// held-out data.
package evaluate

import (
	"fmt"
	"slices"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/crimson-sun/tonal/internal/model"
)

// ClassMetrics holds the per-class scores of a Report.
type ClassMetrics struct {
	Class     model.Label
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

// Report is a classification report plus the confusion matrix it was derived from.
type Report struct {
	Classes []model.Label
	// Confusion[i][j] counts examples whose true class is Classes[i] and whose
	// predicted class is Classes[j].
	Confusion   *mat.Dense
	PerClass    []ClassMetrics
	Accuracy    float64
	MacroAvg    ClassMetrics
	WeightedAvg ClassMetrics
	Total       int
}

// Compute builds a Report over the union of the given class set and every label
// that appears in actual or predicted.
func Compute(classes, actual, predicted []model.Label) (*Report, error) {
	if len(actual) != len(predicted) {
		return nil, fmt.Errorf("evaluate: %d actual labels but %d predictions", len(actual), len(predicted))
	}
	if len(actual) == 0 {
		return nil, fmt.Errorf("evaluate: no examples: %w", model.ErrInsufficientData)
	}

	all := union(classes, actual, predicted)
	idx := make(map[model.Label]int, len(all))
	for i, c := range all {
		idx[c] = i
	}
	k := len(all)
	cm := mat.NewDense(k, k, nil)
	for i := range actual {
		r, c := idx[actual[i]], idx[predicted[i]]
		cm.Set(r, c, cm.At(r, c)+1)
	}

	total := float64(len(actual))
	rep := &Report{
		Classes:   all,
		Confusion: cm,
		PerClass:  make([]ClassMetrics, k),
		Accuracy:  mat.Trace(cm) / total,
		Total:     len(actual),
	}

	colSums := make([]float64, k)
	for j := 0; j < k; j++ {
		colSums[j] = floats.Sum(mat.Col(nil, j, cm))
	}
	for i, c := range all {
		tp := cm.At(i, i)
		support := floats.Sum(cm.RawRowView(i))
		m := ClassMetrics{
			Class:     c,
			Precision: ratio(tp, colSums[i]),
			Recall:    ratio(tp, support),
			Support:   int(support),
		}
		m.F1 = harmonic(m.Precision, m.Recall)
		rep.PerClass[i] = m

		rep.MacroAvg.Precision += m.Precision / float64(k)
		rep.MacroAvg.Recall += m.Recall / float64(k)
		rep.MacroAvg.F1 += m.F1 / float64(k)

		w := support / total
		rep.WeightedAvg.Precision += m.Precision * w
		rep.WeightedAvg.Recall += m.Recall * w
		rep.WeightedAvg.F1 += m.F1 * w
	}
	rep.MacroAvg.Support = len(actual)
	rep.WeightedAvg.Support = len(actual)
	return rep, nil
}

// ConfusionRows returns the confusion matrix as integer rows.
func (r *Report) ConfusionRows() [][]int {
	k := len(r.Classes)
	out := make([][]int, k)
	for i := range out {
		out[i] = make([]int, k)
		for j := range out[i] {
			out[i][j] = int(r.Confusion.At(i, j))
		}
	}
	return out
}

// String renders the report as a fixed-width table followed by the confusion matrix.
func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%12s %9s %9s %9s %9s\n", "", "precision", "recall", "f1-score", "support")
	for _, m := range r.PerClass {
		fmt.Fprintf(&b, "%12d %9.2f %9.2f %9.2f %9d\n", int(m.Class), m.Precision, m.Recall, m.F1, m.Support)
	}
	fmt.Fprintf(&b, "\n%12s %9s %9s %9.2f %9d\n", "accuracy", "", "", r.Accuracy, r.Total)
	for _, row := range []struct {
		name string
		m    ClassMetrics
	}{{"macro avg", r.MacroAvg}, {"weighted avg", r.WeightedAvg}} {
		fmt.Fprintf(&b, "%12s %9.2f %9.2f %9.2f %9d\n", row.name, row.m.Precision, row.m.Recall, row.m.F1, row.m.Support)
	}

	b.WriteString("\nconfusion matrix (rows: actual, cols: predicted)\n")
	fmt.Fprintf(&b, "%6s", "")
	for _, c := range r.Classes {
		fmt.Fprintf(&b, " %6d", int(c))
	}
	b.WriteByte('\n')
	for i, row := range r.ConfusionRows() {
		fmt.Fprintf(&b, "%6d", int(r.Classes[i]))
		for _, v := range row {
			fmt.Fprintf(&b, " %6d", v)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

func harmonic(p, r float64) float64 {
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

func union(sets ...[]model.Label) []model.Label {
	seen := make(map[model.Label]struct{})
	var out []model.Label
	for _, s := range sets {
		for _, l := range s {
			if _, ok := seen[l]; !ok {
				seen[l] = struct{}{}
				out = append(out, l)
			}
		}
	}
	slices.Sort(out)
	return out
}
