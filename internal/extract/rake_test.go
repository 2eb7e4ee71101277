package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRake_Phrases_SplitsAtStopWordsAndRanksByCooccurrence(t *testing.T) {
	r := NewDefault()

	phrases, err := r.Phrases("compatibility of systems of linear constraints over the set of natural numbers")
	require.NoError(t, err)

	// Multi-word phrases outscore singletons: their words carry higher
	// degree. Ties keep first-appearance order.
	assert.Equal(t, []string{
		"linear constraints",
		"natural numbers",
		"compatibility",
		"systems",
		"set",
	}, phrases)
}

func TestRake_Phrases_PunctuationBreaksPhrases(t *testing.T) {
	r := NewDefault()

	phrases, err := r.Phrases("good tests, good code")
	require.NoError(t, err)

	// Both phrases score identically; order of first appearance decides.
	assert.Equal(t, []string{"good tests", "good code"}, phrases)
}

func TestRake_Phrases_NewlinesBreakPhrases(t *testing.T) {
	r := NewDefault()

	phrases, err := r.Phrases("quarterly budget\nreview meeting")
	require.NoError(t, err)

	assert.Equal(t, []string{"quarterly budget", "review meeting"}, phrases)
}

func TestRake_Phrases_LowercasesAndDeduplicates(t *testing.T) {
	r := NewDefault()

	phrases, err := r.Phrases("Budget Report. budget report. BUDGET REPORT.")
	require.NoError(t, err)

	assert.Equal(t, []string{"budget report"}, phrases)
}

func TestRake_Phrases_StopWordsOnly_EmptyNotError(t *testing.T) {
	r := NewDefault()

	phrases, err := r.Phrases("the of and to in is was")
	require.NoError(t, err)
	assert.Empty(t, phrases)

	phrases, err = r.Phrases("")
	require.NoError(t, err)
	assert.Empty(t, phrases)

	phrases, err = r.Phrases("... !!! ---")
	require.NoError(t, err)
	assert.Empty(t, phrases)
}

func TestRake_Phrases_UnicodeWordsSurvive(t *testing.T) {
	r := NewDefault()

	phrases, err := r.Phrases("café menu")
	require.NoError(t, err)

	assert.Equal(t, []string{"café menu"}, phrases)
}

func TestRake_Config_MinWordLenDropsShortWords(t *testing.T) {
	r := New(Config{StopWords: DefaultStopWords, MinWordLen: 3})

	phrases, err := r.Phrases("go build pipeline")
	require.NoError(t, err)

	// "go" falls under the length floor and acts as a breaker.
	assert.Equal(t, []string{"build pipeline"}, phrases)
}

func TestRake_Config_MaxPhraseWordsCapsRuns(t *testing.T) {
	r := New(Config{StopWords: DefaultStopWords, MaxPhraseWords: 2})

	phrases, err := r.Phrases("deep convolutional neural networks")
	require.NoError(t, err)

	assert.Equal(t, []string{"deep convolutional", "neural networks"}, phrases)
}

func TestFlatten_SplitsPhrasesIntoUniqueTokens(t *testing.T) {
	tokens := Flatten([]string{"quarterly budget", "budget review", "standalone"})

	assert.Equal(t, []string{"quarterly", "budget", "review", "standalone"}, tokens)
}

func TestFlatten_EmptyInput(t *testing.T) {
	assert.Empty(t, Flatten(nil))
	assert.Empty(t, Flatten([]string{}))
}

func TestBuildStopWordSet_LowercasesEntries(t *testing.T) {
	set := BuildStopWordSet([]string{"The", "AND"})

	_, hasThe := set["the"]
	_, hasAnd := set["and"]
	assert.True(t, hasThe)
	assert.True(t, hasAnd)
}
