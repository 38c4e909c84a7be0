// Package features turns raw emails into the fixed-length numeric vectors
// the base learners consume. The vector is a fitted TF-IDF lexical block
// followed by a fixed set of structural scalars.
package features

import (
	"math"
	"regexp"
	"strings"

	"github.com/mikey/mail-classifier/internal/core"
	"github.com/mikey/mail-classifier/internal/textproc"
)

// NumStructural is the length of the structural feature block.
const NumStructural = 17

var (
	urlPattern   = regexp.MustCompile(`(?i)https?://\S+|www\.\S+`)
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	imagePattern = regexp.MustCompile(`(?i)<img\b|\.(?:png|jpe?g|gif)\b`)
)

var (
	urgencyTerms = termSet("urgent", "asap", "immediately", "hurry", "expires",
		"expiring", "deadline", "act", "now", "limited")
	actionTerms = termSet("click", "buy", "subscribe", "download", "register",
		"claim", "verify", "confirm", "unsubscribe", "order")
	meetingTerms = termSet("meeting", "schedule", "calendar", "appointment",
		"agenda", "attendance", "invite", "reschedule", "standup", "conference")
	workTerms = termSet("project", "report", "review", "client", "budget",
		"proposal", "sprint", "board", "quarterly", "team")
)

func termSet(terms ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		m[t] = struct{}{}
	}
	return m
}

// Extractor is a fitted feature extractor. It is immutable after fitting
// and safe for concurrent use.
type Extractor struct {
	Vocab *Vocabulary `json:"vocab"`
}

// NewExtractor fits an extractor on normalized training texts.
func NewExtractor(texts []string, maxTerms int) *Extractor {
	return &Extractor{Vocab: FitVocabulary(texts, maxTerms)}
}

// Dim returns the constant output vector length.
func (e *Extractor) Dim() int {
	return e.Vocab.NumTerms() + NumStructural
}

// Extract computes the feature vector for an email. Identical input against
// the same fitted vocabulary produces bit-identical output. Empty or missing
// fields yield zero-valued features, never an error.
func (e *Extractor) Extract(email *core.Email) []float64 {
	vec := make([]float64, e.Dim())
	normalized := textproc.Normalize(email.Subject, email.Body)
	tokens := textproc.Tokenize(normalized)
	e.fillLexical(vec, tokens)
	e.fillStructural(vec[e.Vocab.NumTerms():], email, tokens)
	return vec
}

// ExtractText computes the vector for bare text, used when training from
// feedback samples where only the corrected text survives.
func (e *Extractor) ExtractText(text string) []float64 {
	return e.Extract(&core.Email{Body: text})
}

// fillLexical writes TF-IDF weights for in-vocabulary terms. Out-of-vocabulary
// terms are silently ignored. The block is L2-normalized.
func (e *Extractor) fillLexical(vec []float64, tokens []string) {
	counts := make(map[string]int, len(tokens)*2)
	total := 0
	for _, t := range tokens {
		counts[t]++
		total++
	}
	for _, t := range textproc.Bigrams(tokens) {
		counts[t]++
		total++
	}
	if total == 0 {
		return
	}

	for term, count := range counts {
		stat, ok := e.Vocab.Terms[term]
		if !ok {
			continue
		}
		vec[stat.Index] = float64(count) / float64(total) * stat.IDF
	}

	// The norm must be summed in index order: map iteration order varies
	// between calls and float addition is not associative.
	var norm float64
	for i := 0; i < e.Vocab.NumTerms(); i++ {
		norm += vec[i] * vec[i]
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := 0; i < e.Vocab.NumTerms(); i++ {
			vec[i] /= norm
		}
	}
}

func (e *Extractor) fillStructural(s []float64, email *core.Email, tokens []string) {
	tokenSet := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		tokenSet[t] = struct{}{}
	}
	s[0] = flagAny(tokenSet, urgencyTerms)
	s[1] = flagAny(tokenSet, actionTerms)
	s[2] = flagAny(tokenSet, meetingTerms)
	s[3] = flagAny(tokenSet, workTerms)

	subjectWords := len(strings.Fields(email.Subject))
	bodyWords := len(strings.Fields(email.Body))
	s[4] = math.Log1p(float64(subjectWords))
	s[5] = math.Log1p(float64(bodyWords))
	s[6] = math.Log1p(float64(subjectWords + bodyWords))

	full := email.Subject + "\n" + email.Body
	s[7] = math.Log1p(float64(len(urlPattern.FindAllString(full, -1))))
	s[8] = math.Log1p(float64(len(emailPattern.FindAllString(full, -1))))
	s[9] = math.Log1p(float64(len(imagePattern.FindAllString(full, -1))))

	if !email.ReceivedAt.IsZero() {
		s[10] = float64(email.ReceivedAt.Hour()) / 23.0
		s[11] = float64(email.ReceivedAt.Weekday()) / 6.0
	}

	subject := strings.ToLower(email.Subject)
	if strings.HasPrefix(subject, "re:") {
		s[12] = 1
	}
	if strings.HasPrefix(subject, "fwd:") || strings.HasPrefix(subject, "fw:") {
		s[13] = 1
	}
	depth := email.ThreadDepth
	if depth == 0 {
		depth = strings.Count(subject, "re:")
	}
	s[14] = math.Log1p(float64(depth))

	if len(full) > 1 {
		s[15] = float64(strings.Count(full, "!")) / float64(len(full))
		s[16] = capsRatio(full)
	}
}

func flagAny(tokens map[string]struct{}, group map[string]struct{}) float64 {
	for t := range group {
		if _, ok := tokens[t]; ok {
			return 1
		}
	}
	return 0
}

// capsRatio is the share of letters written in upper case, a cheap shouting
// signal for promotional and spam mail.
func capsRatio(s string) float64 {
	upper, letters := 0, 0
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
			upper++
			letters++
		case r >= 'a' && r <= 'z':
			letters++
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(upper) / float64(letters)
}
