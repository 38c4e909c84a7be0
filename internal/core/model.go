package core

import (
	"fmt"
	"time"
)

// Category is one label from the fixed classification vocabulary
type Category string

const (
	CategorySpam      Category = "spam"
	CategoryImportant Category = "important"
	CategoryPromotion Category = "promotion"
	CategorySocial    Category = "social"
	CategoryUpdates   Category = "updates"
	CategoryWork      Category = "work"
	CategoryPersonal  Category = "personal"
	CategorySupport   Category = "support"
	CategoryBilling   Category = "billing"
)

// Categories is the ordered label vocabulary. The order is load-bearing:
// distributions are indexed by it and argmax ties resolve to the earliest
// entry. Changing it invalidates every trained snapshot.
var Categories = []Category{
	CategorySpam,
	CategoryImportant,
	CategoryPromotion,
	CategorySocial,
	CategoryUpdates,
	CategoryWork,
	CategoryPersonal,
	CategorySupport,
	CategoryBilling,
}

var categoryIndex = func() map[Category]int {
	m := make(map[Category]int, len(Categories))
	for i, c := range Categories {
		m[c] = i
	}
	return m
}()

// NumCategories returns the size of the label vocabulary.
func NumCategories() int {
	return len(Categories)
}

// CategoryIndex returns the position of c in the vocabulary, or -1 if unknown.
func CategoryIndex(c Category) int {
	if i, ok := categoryIndex[c]; ok {
		return i
	}
	return -1
}

// ParseCategory validates a raw label against the vocabulary.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if _, ok := categoryIndex[c]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
	return c, nil
}

// Email represents an email message to classify. Fields are never mutated
// after creation; optional fields are left zero-valued.
type Email struct {
	Subject     string
	Body        string
	Sender      string
	ReceivedAt  time.Time
	ThreadDepth int
}

// ClassificationResult is the outcome of classifying a single email.
// Immutable once produced. Confidence always equals Distribution[Category].
type ClassificationResult struct {
	Category     Category
	Confidence   float64
	Distribution map[Category]float64
	ModelVersion string
	FromCache    bool
	ProcessingID string
	ClassifiedAt time.Time
}

// ModelSnapshot is a self-contained, versioned set of trained parameters:
// the fitted feature extractor plus all base learners, with the held-out
// accuracy recorded at training time. Never mutated after creation; replaced
// only by a successful promotion.
type ModelSnapshot struct {
	Version         string
	CreatedAt       time.Time
	HeldOutAccuracy float64
	TrainingSamples int
	Extractor       FeatureExtractor
	Learners        []BaseLearner
}

// FeedbackSample is a user correction queued for retraining. Samples are
// append-only; Consumed flips once they are folded into a promoted snapshot.
type FeedbackSample struct {
	ID        string
	Text      string
	Category  Category
	Consumed  bool
	CreatedAt time.Time
}

// CacheEntry pairs a stored classification with the model version that
// produced it. Entries under any other version are stale and must not serve.
type CacheEntry struct {
	Fingerprint  string
	Result       *ClassificationResult
	ModelVersion string
}

// LogRecord is one append-only row of the classification log.
type LogRecord struct {
	Fingerprint  string
	Category     Category
	Confidence   float64
	ModelVersion string
	FromCache    bool
	ClassifiedAt time.Time
}

// RetrainStatus is the terminal outcome of a retraining trigger.
type RetrainStatus string

const (
	RetrainDeployed RetrainStatus = "deployed"
	RetrainRejected RetrainStatus = "rejected"
	RetrainSkipped  RetrainStatus = "skipped"
)

// RetrainReport is returned by Retrain to the caller, who decides whether
// to force a retry.
type RetrainReport struct {
	Status          RetrainStatus
	OldAccuracy     float64
	NewAccuracy     float64
	TrainingSamples int
	Reason          string
}

// ModelStatus is a point-in-time view of the deployed model and its
// pending feedback.
type ModelStatus struct {
	DeployedVersion    string
	DeployedAccuracy   float64
	UnconsumedFeedback int
}
