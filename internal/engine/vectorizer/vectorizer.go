// Package vectorizer encodes normalized text as fixed-length bag-of-words count
// vectors over a vocabulary chosen at fit time.
package vectorizer

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/bbalet/stopwords"

	"github.com/crimson-sun/tonal/internal/engine/normalize"
	"github.com/crimson-sun/tonal/internal/model"
)

// DefaultMaxFeatures caps the vocabulary size.
const DefaultMaxFeatures = 100

// Option configures Fit.
type Option func(*options)

type options struct {
	maxFeatures int
	stopLang    string
}

// WithMaxFeatures sets the vocabulary cap. Values below 1 keep the default.
func WithMaxFeatures(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxFeatures = n
		}
	}
}

// WithStopWords drops stop words of the given ISO 639-1 language ("en", "fr", ...)
// from the vocabulary. An empty code disables filtering.
func WithStopWords(lang string) Option {
	return func(o *options) { o.stopLang = strings.ToLower(strings.TrimSpace(lang)) }
}

// Vectorizer maps text to per-token occurrence counts. It is immutable once
// returned by Fit; refitting produces a new instance.
type Vectorizer struct {
	vocab    []string
	index    map[string]int
	stopLang string
}

// Fit selects up to the configured number of most frequent distinct tokens in
// corpus as the vocabulary. Ties keep first-seen order. Texts are normalized
// before counting, so callers may pass raw or normalized text.
func Fit(corpus []string, opts ...Option) (*Vectorizer, error) {
	if len(corpus) == 0 {
		return nil, fmt.Errorf("vectorizer: fit on empty corpus: %w", model.ErrInsufficientData)
	}
	o := options{maxFeatures: DefaultMaxFeatures}
	for _, opt := range opts {
		opt(&o)
	}

	type entry struct {
		token string
		count int
		first int
	}
	seen := make(map[string]*entry)
	var order []*entry
	for _, text := range corpus {
		for _, tok := range normalize.Tokens(text) {
			if o.stopLang != "" && isStopWord(tok, o.stopLang) {
				continue
			}
			e, ok := seen[tok]
			if !ok {
				e = &entry{token: tok, first: len(order)}
				seen[tok] = e
				order = append(order, e)
			}
			e.count++
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		if order[i].count != order[j].count {
			return order[i].count > order[j].count
		}
		return order[i].first < order[j].first
	})
	if len(order) > o.maxFeatures {
		order = order[:o.maxFeatures]
	}

	vocab := make([]string, len(order))
	for i, e := range order {
		vocab[i] = e.token
	}
	return newVectorizer(vocab, o.stopLang), nil
}

func newVectorizer(vocab []string, stopLang string) *Vectorizer {
	index := make(map[string]int, len(vocab))
	for i, tok := range vocab {
		index[tok] = i
	}
	return &Vectorizer{vocab: vocab, index: index, stopLang: stopLang}
}

// Transform returns one count vector per text, each of length Dim().
// Tokens outside the vocabulary are ignored.
func (v *Vectorizer) Transform(texts []string) [][]float64 {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		out[i] = v.transformOne(text)
	}
	return out
}

func (v *Vectorizer) transformOne(text string) []float64 {
	vec := make([]float64, len(v.vocab))
	for _, tok := range normalize.Tokens(text) {
		if idx, ok := v.index[tok]; ok {
			vec[idx]++
		}
	}
	return vec
}

// Dim is the length of every vector this Vectorizer produces.
func (v *Vectorizer) Dim() int { return len(v.vocab) }

// Vocabulary returns a copy of the vocabulary in column order.
func (v *Vectorizer) Vocabulary() []string {
	out := make([]string, len(v.vocab))
	copy(out, v.vocab)
	return out
}

// StopWords returns the stop-word language used at fit time, or "".
func (v *Vectorizer) StopWords() string { return v.stopLang }

// isStopWord reports whether tok is on the stop-word list for lang.
// CleanString also drops digits, so only tokens made of letters and marks
// are looked up; "2026" or "mp3" are never stop words.
func isStopWord(tok, lang string) bool {
	for _, r := range tok {
		if !unicode.IsLetter(r) && !unicode.In(r, unicode.Mn, unicode.Mc) {
			return false
		}
	}
	return strings.TrimSpace(stopwords.CleanString(tok, lang, false)) == ""
}

type state struct {
	Vocab    []string
	StopLang string
}

// MarshalBinary encodes the fitted vocabulary with gob.
func (v *Vectorizer) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(state{Vocab: v.vocab, StopLang: v.stopLang}); err != nil {
		return nil, fmt.Errorf("vectorizer: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode rebuilds a Vectorizer from MarshalBinary output.
func Decode(data []byte) (*Vectorizer, error) {
	var s state
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return nil, fmt.Errorf("vectorizer: decode: %w", err)
	}
	return newVectorizer(s.Vocab, s.StopLang), nil
}
