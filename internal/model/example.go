package model

import "time"

// LabeledExample is the intermediate type produced by sources and consumed by the
// training pipeline. Positive and Negative both false means neutral.
type LabeledExample struct {
	Text      string    `json:"text" db:"text"`
	Positive  bool      `json:"positive" db:"positive"`
	Negative  bool      `json:"negative" db:"negative"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ExampleFromScore builds the example recorded for an analyzed text: positive
// when the score leans positive, negative when it leans negative.
func ExampleFromScore(text string, score float64, at time.Time) LabeledExample {
	return LabeledExample{
		Text:      text,
		Positive:  score > 0,
		Negative:  score < 0,
		CreatedAt: at,
	}
}
