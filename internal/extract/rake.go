// Package extract turns file content into ranked keyword phrases using
// RAKE-style co-occurrence scoring. Candidate phrases are contiguous runs
// of content words; stop words and punctuation break them. Each word is
// scored by its degree-to-frequency ratio over the co-occurrence graph and
// a phrase scores the sum of its words.
package extract

import (
	"regexp"
	"sort"
	"strings"
)

// Extractor produces ranked keyword phrases from text, best first.
// Implementations must be safe for concurrent use.
type Extractor interface {
	Phrases(text string) ([]string, error)
}

// wordRegex matches content word tokens. Anything between two tokens other
// than spaces and tabs (punctuation, newlines) acts as a phrase breaker.
var wordRegex = regexp.MustCompile(`[\p{L}\p{N}]+`)

// Config tunes phrase extraction.
type Config struct {
	// StopWords break candidate phrases and never appear in output.
	StopWords []string
	// MinWordLen drops shorter words from phrases. Zero keeps everything.
	MinWordLen int
	// MaxPhraseWords caps candidate phrase length. Zero means unbounded.
	MaxPhraseWords int
}

// DefaultConfig returns the stock English extraction configuration.
func DefaultConfig() Config {
	return Config{
		StopWords: DefaultStopWords,
	}
}

// Rake is the default Extractor. A zero-cost value once built; safe for
// concurrent use.
type Rake struct {
	stop           map[string]struct{}
	minWordLen     int
	maxPhraseWords int
}

// New creates an extractor from cfg.
func New(cfg Config) *Rake {
	return &Rake{
		stop:           BuildStopWordSet(cfg.StopWords),
		minWordLen:     cfg.MinWordLen,
		maxPhraseWords: cfg.MaxPhraseWords,
	}
}

// NewDefault creates an extractor with DefaultConfig.
func NewDefault() *Rake {
	return New(DefaultConfig())
}

// Phrases extracts candidate phrases from text and returns them by
// descending score, ties broken by first appearance. Duplicate phrases
// collapse into their first occurrence. Text that normalizes to nothing
// yields an empty slice, not an error.
func (r *Rake) Phrases(text string) ([]string, error) {
	phrases := r.candidates(text)
	if len(phrases) == 0 {
		return []string{}, nil
	}

	// Degree-to-frequency scoring: every occurrence of a word adds the
	// phrase length to its degree and one to its frequency.
	freq := make(map[string]int)
	degree := make(map[string]int)
	for _, phrase := range phrases {
		for _, w := range phrase {
			freq[w]++
			degree[w] += len(phrase)
		}
	}

	type ranked struct {
		text  string
		score float64
		order int
	}
	var out []ranked
	seen := make(map[string]int)
	for _, phrase := range phrases {
		var score float64
		for _, w := range phrase {
			score += float64(degree[w]) / float64(freq[w])
		}
		joined := strings.Join(phrase, " ")
		if _, dup := seen[joined]; dup {
			continue
		}
		seen[joined] = len(out)
		out = append(out, ranked{text: joined, score: score, order: len(out)})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].order < out[j].order
	})

	result := make([]string, len(out))
	for i, p := range out {
		result[i] = p.text
	}
	return result, nil
}

// candidates splits text into candidate phrases: maximal runs of
// non-stop-word tokens separated only by spaces or tabs.
func (r *Rake) candidates(text string) [][]string {
	var phrases [][]string
	var current []string

	flush := func() {
		if len(current) > 0 {
			phrases = append(phrases, current)
			current = nil
		}
	}

	locs := wordRegex.FindAllStringIndex(text, -1)
	prevEnd := 0
	for _, loc := range locs {
		gap := text[prevEnd:loc[0]]
		if strings.TrimLeft(gap, " \t") != "" && prevEnd != 0 {
			flush()
		}
		prevEnd = loc[1]

		w := strings.ToLower(text[loc[0]:loc[1]])
		if _, isStop := r.stop[w]; isStop {
			flush()
			continue
		}
		if r.minWordLen > 0 && len(w) < r.minWordLen {
			flush()
			continue
		}
		current = append(current, w)
		if r.maxPhraseWords > 0 && len(current) >= r.maxPhraseWords {
			flush()
		}
	}
	flush()
	return phrases
}

// Flatten splits ranked phrases into their member words, deduplicated in
// first-appearance order. This is the token set the index stores.
func Flatten(phrases []string) []string {
	var tokens []string
	seen := make(map[string]struct{})
	for _, phrase := range phrases {
		for _, w := range strings.Fields(phrase) {
			if _, dup := seen[w]; dup {
				continue
			}
			seen[w] = struct{}{}
			tokens = append(tokens, w)
		}
	}
	return tokens
}
