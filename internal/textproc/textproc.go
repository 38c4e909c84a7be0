// Package textproc holds the text normalization shared by the feature
// extractor and the prediction cache. Both sides must agree on it: the cache
// fingerprint and the lexical features are only stable if normalization is.
package textproc

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

var foldCaser = cases.Fold()

// Normalize trims, case-folds and collapses whitespace in the concatenation
// of subject and body. Deterministic for identical input.
func Normalize(subject, body string) string {
	joined := strings.TrimSpace(subject) + "\n" + strings.TrimSpace(body)
	folded := foldCaser.String(joined)
	return strings.Join(strings.Fields(folded), " ")
}

// Fingerprint returns the cache key for an email: a SHA-256 hex digest of
// the normalized subject+body.
func Fingerprint(subject, body string) string {
	sum := sha256.Sum256([]byte(Normalize(subject, body)))
	return hex.EncodeToString(sum[:])
}

// Tokenize splits text into lowercase alphanumeric terms. Everything else
// is a separator.
func Tokenize(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 32)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}

// Bigrams returns adjacent token pairs joined with an underscore.
func Bigrams(tokens []string) []string {
	if len(tokens) < 2 {
		return nil
	}
	out := make([]string, 0, len(tokens)-1)
	for i := 0; i+1 < len(tokens); i++ {
		out = append(out, tokens[i]+"_"+tokens[i+1])
	}
	return out
}
