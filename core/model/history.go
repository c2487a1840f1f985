package model

import "math"

// EpochRecord is one line of an iterative regressifier's training log.
type EpochRecord struct {
	// Target is the target dimension the record belongs to. Single-output
	// models always report 0; adapters rewrite it.
	Target int `json:"target"`

	// Epoch is 1-based.
	Epoch int `json:"epoch"`

	// SSE is the sum of squared training errors over the epoch, measured
	// in the (possibly scaled) space the model trains in.
	SSE float64 `json:"sse"`

	// Delta is |SSE - previous SSE|.
	Delta float64 `json:"delta"`

	// TrainingRMS is sqrt(SSE / training samples).
	TrainingRMS float64 `json:"training_rms"`

	// ValidationRMS is NaN when no validation set is used.
	ValidationRMS float64 `json:"validation_rms"`
}

// HasValidation reports whether the record carries a validation error.
func (r EpochRecord) HasValidation() bool {
	return !math.IsNaN(r.ValidationRMS)
}
