package core

import "errors"

var (
	// ErrUnknownCategory is returned when a label is not in the vocabulary
	ErrUnknownCategory = errors.New("unknown category")
	// ErrNoSnapshot is returned when no deployed model snapshot exists
	ErrNoSnapshot = errors.New("no deployed model snapshot")
	// ErrTrainingInProgress is returned when a retrain trigger overlaps a running one
	ErrTrainingInProgress = errors.New("training already in progress")
)
