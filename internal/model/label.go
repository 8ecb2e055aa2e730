package model

import (
	"fmt"
	"strings"
)

// Label is a class value in the {-1, 0, 1} label space.
type Label int

const (
	LabelNegative Label = -1
	LabelNeutral  Label = 0
	LabelPositive Label = 1
)

// LabelPolicy selects how examples are turned into class labels.
type LabelPolicy int

const (
	// Binary labels an example 1 when it is positive and 0 otherwise.
	Binary LabelPolicy = iota
	// Ternary labels an example 1 (positive), -1 (negative) or 0 (neutral).
	Ternary
)

// ParseLabelPolicy maps "binary" or "ternary" (case-insensitive) to a LabelPolicy.
func ParseLabelPolicy(s string) (LabelPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "binary":
		return Binary, nil
	case "ternary":
		return Ternary, nil
	default:
		return Binary, fmt.Errorf("unknown label policy %q (want binary or ternary)", s)
	}
}

func (p LabelPolicy) String() string {
	switch p {
	case Binary:
		return "binary"
	case Ternary:
		return "ternary"
	default:
		return fmt.Sprintf("LabelPolicy(%d)", int(p))
	}
}

// Label derives the class label of an example under this policy.
func (p LabelPolicy) Label(ex LabeledExample) Label {
	if p == Ternary {
		switch {
		case ex.Positive:
			return LabelPositive
		case ex.Negative:
			return LabelNegative
		default:
			return LabelNeutral
		}
	}
	if ex.Positive {
		return LabelPositive
	}
	return LabelNeutral
}

// Weight is the contribution of a class to the sentiment score.
// Under Binary the "not positive" class counts as -1; under Ternary the
// weight is the label itself. Labels outside {-1, 0, 1} weigh 0.
func (p LabelPolicy) Weight(class Label) float64 {
	if p == Binary {
		switch class {
		case LabelPositive:
			return 1
		case LabelNeutral:
			return -1
		default:
			return 0
		}
	}
	switch class {
	case LabelPositive:
		return 1
	case LabelNegative:
		return -1
	default:
		return 0
	}
}
