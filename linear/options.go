package linear

import "github.com/YuminosukeSato/grt-lin-reg-tool/core/model"

// Option is a function that configures LinearRegression
type Option func(*LinearRegression)

// WithLearningRate sets the SGD step size. Default 0.01.
func WithLearningRate(rate float64) Option {
	return func(lr *LinearRegression) {
		lr.learningRate = rate
	}
}

// WithMaxEpochs caps the number of passes over the training set.
func WithMaxEpochs(n int) Option {
	return func(lr *LinearRegression) {
		lr.maxEpochs = n
	}
}

// WithMinChange sets the smallest change in epoch SSE that keeps training
// going.
func WithMinChange(delta float64) Option {
	return func(lr *LinearRegression) {
		lr.minChange = delta
	}
}

// WithUseValidationSet holds out part of the data to monitor fit quality.
func WithUseValidationSet(use bool) Option {
	return func(lr *LinearRegression) {
		lr.useValidationSet = use
	}
}

// WithValidationSetSize sets the held-out share as a percentage (0-100).
func WithValidationSetSize(percent int) Option {
	return func(lr *LinearRegression) {
		lr.validationSetSize = percent
	}
}

// WithRandomiseTrainingOrder shuffles the samples before every epoch.
func WithRandomiseTrainingOrder(randomise bool) Option {
	return func(lr *LinearRegression) {
		lr.randomiseOrder = randomise
	}
}

// WithScaling min-max scales inputs and targets to [0, 1] for training.
func WithScaling(enabled bool) Option {
	return func(lr *LinearRegression) {
		lr.useScaling = enabled
	}
}

// WithRandomState seeds the shuffling and weight initialisation. A
// negative seed draws a fresh one per Fit.
func WithRandomState(seed int64) Option {
	return func(lr *LinearRegression) {
		lr.randomState = seed
	}
}

// WithEpochObserver is called after every epoch.
func WithEpochObserver(fn func(model.EpochRecord)) Option {
	return func(lr *LinearRegression) {
		lr.observer = fn
	}
}
