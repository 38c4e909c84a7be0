package training

import (
	"testing"

	"github.com/mikey/mail-classifier/internal/core"
)

func TestSeedCorpusCoversVocabulary(t *testing.T) {
	corpus, err := SeedCorpus()
	if err != nil {
		t.Fatalf("load seed corpus: %v", err)
	}
	counts := make(map[core.Category]int)
	for _, s := range corpus {
		counts[s.Category]++
	}
	for _, category := range core.Categories {
		if counts[category] < 2 {
			t.Fatalf("category %s has %d seed samples, need at least 2", category, counts[category])
		}
	}
}

func TestStratifiedSplitKeepsEveryCategoryInBothPartitions(t *testing.T) {
	corpus, err := SeedCorpus()
	if err != nil {
		t.Fatalf("load seed corpus: %v", err)
	}
	train, held, err := StratifiedSplit(corpus, 0.2, 42)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(train)+len(held) != len(corpus) {
		t.Fatalf("split lost samples: %d + %d != %d", len(train), len(held), len(corpus))
	}
	trainCats := make(map[core.Category]bool)
	heldCats := make(map[core.Category]bool)
	for _, s := range train {
		trainCats[s.Category] = true
	}
	for _, s := range held {
		heldCats[s.Category] = true
	}
	for _, category := range core.Categories {
		if !trainCats[category] {
			t.Errorf("category %s missing from train partition", category)
		}
		if !heldCats[category] {
			t.Errorf("category %s missing from held-out partition", category)
		}
	}
}

func TestStratifiedSplitDeterministicForSeed(t *testing.T) {
	corpus, err := SeedCorpus()
	if err != nil {
		t.Fatalf("load seed corpus: %v", err)
	}
	_, heldA, err := StratifiedSplit(corpus, 0.2, 7)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	_, heldB, err := StratifiedSplit(corpus, 0.2, 7)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(heldA) != len(heldB) {
		t.Fatalf("held-out sizes differ: %d vs %d", len(heldA), len(heldB))
	}
	for i := range heldA {
		if heldA[i] != heldB[i] {
			t.Fatalf("held-out partitions differ at %d", i)
		}
	}
}

func TestStratifiedSplitRejectsSingletonCategory(t *testing.T) {
	samples := []Sample{
		{Text: "a", Category: core.CategorySpam},
		{Text: "b", Category: core.CategorySpam},
		{Text: "only one", Category: core.CategoryBilling},
	}
	if _, _, err := StratifiedSplit(samples, 0.2, 1); err == nil {
		t.Fatal("expected error for a category with a single sample")
	}
}
