package features

import (
	"math"
	"sort"

	"github.com/mikey/mail-classifier/internal/textproc"
)

// TermStat holds the fitted position and inverse-corpus-frequency weight
// of one vocabulary term.
type TermStat struct {
	Index int     `json:"index"`
	IDF   float64 `json:"idf"`
}

// Vocabulary is the lexical vocabulary fitted on a training corpus:
// unigrams and bigrams capped at a maximum size, each with an IDF weight.
// It is fitted once during training, travels inside the model snapshot and
// never changes between training and inference.
type Vocabulary struct {
	Terms map[string]TermStat `json:"terms"`
}

// NumTerms returns the fitted vocabulary size.
func (v *Vocabulary) NumTerms() int {
	return len(v.Terms)
}

// FitVocabulary builds a vocabulary from normalized training texts. Terms
// are ranked by document frequency (ties by term, ascending) and the top
// maxTerms are kept; indices are assigned in sorted-term order so that
// fitting the same corpus twice yields identical vocabularies.
func FitVocabulary(texts []string, maxTerms int) *Vocabulary {
	df := make(map[string]int)
	for _, text := range texts {
		tokens := textproc.Tokenize(text)
		seen := make(map[string]struct{}, len(tokens)*2)
		for _, t := range tokens {
			seen[t] = struct{}{}
		}
		for _, t := range textproc.Bigrams(tokens) {
			seen[t] = struct{}{}
		}
		for t := range seen {
			df[t]++
		}
	}

	terms := make([]string, 0, len(df))
	for t := range df {
		terms = append(terms, t)
	}
	sort.Slice(terms, func(i, j int) bool {
		if df[terms[i]] != df[terms[j]] {
			return df[terms[i]] > df[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if maxTerms > 0 && len(terms) > maxTerms {
		terms = terms[:maxTerms]
	}
	sort.Strings(terms)

	n := float64(len(texts))
	stats := make(map[string]TermStat, len(terms))
	for i, t := range terms {
		idf := math.Log((1+n)/(1+float64(df[t]))) + 1
		stats[t] = TermStat{Index: i, IDF: idf}
	}
	return &Vocabulary{Terms: stats}
}
