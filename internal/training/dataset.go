// Package training assembles labeled corpora, trains candidate model
// snapshots, and drives the retraining state machine that decides whether
// a candidate replaces the deployed model.
package training

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"

	"github.com/mikey/mail-classifier/internal/core"
)

// Sample is one labeled training example.
type Sample struct {
	Text     string        `json:"text"`
	Category core.Category `json:"category"`
}

//go:embed seed_corpus.json
var seedCorpusJSON []byte

var (
	seedOnce   sync.Once
	seedCorpus []Sample
	seedErr    error
)

// SeedCorpus returns the embedded bootstrap corpus. It is the historical
// base every retraining run combines with accumulated feedback.
func SeedCorpus() ([]Sample, error) {
	seedOnce.Do(func() {
		seedErr = json.Unmarshal(seedCorpusJSON, &seedCorpus)
		if seedErr != nil {
			return
		}
		for _, s := range seedCorpus {
			if core.CategoryIndex(s.Category) < 0 {
				seedErr = fmt.Errorf("seed corpus: %w: %q", core.ErrUnknownCategory, s.Category)
				return
			}
		}
	})
	return seedCorpus, seedErr
}

// StratifiedSplit partitions samples into train and held-out sets,
// preserving category proportions. Every category with at least two samples
// appears in both partitions; a category below that cannot be stratified
// and fails the split, which the controller surfaces as a rejected run.
// The seed fixes the shuffle so a candidate and the incumbent are compared
// on an identical partition.
func StratifiedSplit(samples []Sample, holdoutFraction float64, seed int64) (train, held []Sample, err error) {
	byCategory := make(map[core.Category][]Sample)
	for _, s := range samples {
		byCategory[s.Category] = append(byCategory[s.Category], s)
	}

	rng := rand.New(rand.NewSource(seed))
	// Vocabulary order keeps the rng consumption deterministic.
	for _, category := range core.Categories {
		group := byCategory[category]
		if len(group) == 0 {
			continue
		}
		if len(group) < 2 {
			return nil, nil, fmt.Errorf("category %s has %d sample(s), need at least 2 to stratify", category, len(group))
		}
		shuffled := make([]Sample, len(group))
		copy(shuffled, group)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		nHeld := int(float64(len(shuffled))*holdoutFraction + 0.5)
		if nHeld < 1 {
			nHeld = 1
		}
		if nHeld >= len(shuffled) {
			nHeld = len(shuffled) - 1
		}
		held = append(held, shuffled[:nHeld]...)
		train = append(train, shuffled[nHeld:]...)
	}

	if len(train) == 0 || len(held) == 0 {
		return nil, nil, fmt.Errorf("split produced empty partition (%d train, %d held)", len(train), len(held))
	}
	return train, held, nil
}
