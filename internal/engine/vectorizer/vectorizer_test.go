package vectorizer

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crimson-sun/tonal/internal/model"
)

func TestFit_EmptyCorpus(t *testing.T) {
	v, err := Fit(nil)
	assert.Nil(t, v)
	assert.ErrorIs(t, err, model.ErrInsufficientData)
}

func TestFit_FrequencyThenFirstSeen(t *testing.T) {
	v, err := Fit([]string{
		"b a c",
		"a c d",
		"c",
	})
	require.NoError(t, err)
	// c=3, a=2, b=1 (seen before d), d=1
	assert.Equal(t, []string{"c", "a", "b", "d"}, v.Vocabulary())
	assert.Equal(t, 4, v.Dim())
}

func TestFit_NormalizesInput(t *testing.T) {
	v, err := Fit([]string{"Love!!", "LOVE it."})
	require.NoError(t, err)
	assert.Equal(t, []string{"love", "it"}, v.Vocabulary())
}

func TestFit_CapsVocabulary(t *testing.T) {
	words := make([]string, 500)
	for i := range words {
		words[i] = fmt.Sprintf("tok%03d", i)
	}
	v, err := Fit([]string{strings.Join(words, " ")})
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxFeatures, v.Dim())
	// All counts tie, so the first 100 seen win.
	assert.Equal(t, "tok000", v.Vocabulary()[0])
	assert.Equal(t, "tok099", v.Vocabulary()[99])

	vecs := v.Transform([]string{"tok400 tok499 unknown"})
	require.Len(t, vecs, 1)
	assert.Len(t, vecs[0], DefaultMaxFeatures)
	for _, x := range vecs[0] {
		assert.Zero(t, x)
	}
}

func TestFit_MaxFeaturesOption(t *testing.T) {
	v, err := Fit([]string{"a a a b b c"}, WithMaxFeatures(2))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, v.Vocabulary())

	v, err = Fit([]string{"a b"}, WithMaxFeatures(0))
	require.NoError(t, err)
	assert.Equal(t, 2, v.Dim(), "non-positive cap keeps the default")
}

func TestFit_StopWords(t *testing.T) {
	v, err := Fit([]string{"the movie was terrible", "the best movie"}, WithStopWords("en"))
	require.NoError(t, err)
	vocab := v.Vocabulary()
	assert.NotContains(t, vocab, "the")
	assert.Contains(t, vocab, "movie")
	assert.Contains(t, vocab, "terrible")
	assert.Equal(t, "en", v.StopWords())
}

func TestIsStopWord_English(t *testing.T) {
	tests := []struct {
		tok  string
		want bool
	}{
		{"this", true},
		{"is", true},
		{"the", true},
		{"i", false},
		{"love", false},
		{"terrible", false},
		{"2026", false},
		{"a1", false},
		{"mp3", false},
	}
	for _, tt := range tests {
		t.Run(tt.tok, func(t *testing.T) {
			assert.Equal(t, tt.want, isStopWord(tt.tok, "en"))
		})
	}
}

func TestFit_StopWordsKeepNumbers(t *testing.T) {
	v, err := Fit([]string{"this is the 2026 movie", "the 2026 terrible movie"}, WithStopWords("en"))
	require.NoError(t, err)
	assert.Equal(t, []string{"2026", "movie", "terrible"}, v.Vocabulary())
}

func TestTransform_Counts(t *testing.T) {
	v, err := Fit([]string{"good good bad", "meh"})
	require.NoError(t, err)
	require.Equal(t, []string{"good", "bad", "meh"}, v.Vocabulary())

	got := v.Transform([]string{"Good, GOOD good!", "bad meh unknown", "", "   "})
	assert.Equal(t, [][]float64{
		{3, 0, 0},
		{0, 1, 1},
		{0, 0, 0},
		{0, 0, 0},
	}, got)
}

func TestTransform_FixedLength(t *testing.T) {
	v, err := Fit([]string{"one two three"})
	require.NoError(t, err)
	for _, vec := range v.Transform([]string{"", "one", "one two three four five six"}) {
		assert.Len(t, vec, v.Dim())
	}
}

func TestTransform_EmptyVocabulary(t *testing.T) {
	v, err := Fit([]string{"", "!!!"})
	require.NoError(t, err)
	assert.Equal(t, 0, v.Dim())
	assert.Equal(t, [][]float64{{}}, v.Transform([]string{"anything"}))
}

func TestVocabulary_ReturnsCopy(t *testing.T) {
	v, err := Fit([]string{"a b"})
	require.NoError(t, err)
	vocab := v.Vocabulary()
	vocab[0] = "mutated"
	assert.Equal(t, "a", v.Vocabulary()[0])
}

func TestMarshalRoundTrip(t *testing.T) {
	v, err := Fit([]string{"i love this", "this is terrible"}, WithStopWords("en"))
	require.NoError(t, err)

	data, err := v.MarshalBinary()
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, v.Vocabulary(), got.Vocabulary())
	assert.Equal(t, v.StopWords(), got.StopWords())

	texts := []string{"I love this!", "terrible"}
	assert.Equal(t, v.Transform(texts), got.Transform(texts))
}

func TestDecode_Garbage(t *testing.T) {
	_, err := Decode([]byte("not gob"))
	assert.Error(t, err)
}
