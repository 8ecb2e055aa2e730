// Package testdata embeds a small labeled tweet corpus for end-to-end tests.
package testdata

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/crimson-sun/tonal/internal/model"
)

//go:embed corpus.json
var corpusJSON []byte

// LoadCorpus parses the embedded corpus.json. Entries with neither flag set are neutral.
func LoadCorpus() ([]model.LabeledExample, error) {
	var entries []model.LabeledExample
	if err := json.Unmarshal(corpusJSON, &entries); err != nil {
		return nil, fmt.Errorf("parse corpus.json: %w", err)
	}
	return entries, nil
}

// Texts returns the text of every example, in corpus order.
func Texts(examples []model.LabeledExample) []string {
	out := make([]string, len(examples))
	for i, ex := range examples {
		out[i] = ex.Text
	}
	return out
}
