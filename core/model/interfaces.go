// Package model defines the interfaces shared by regression algorithms,
// the adapter that combines them and the pipeline that trains them, plus
// the serialisable weight envelope and the model registry.
package model

import (
	"gonum.org/v1/gonum/mat"
)

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit trains the model on X (samples × features) and y (samples × targets).
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict returns one row of predictions per row of X.
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// WeightExporter is implemented by models whose trained state can be
// written to and restored from a ModelWeights envelope.
type WeightExporter interface {
	ExportWeights() (*ModelWeights, error)
	ImportWeights(weights *ModelWeights) error
}

// Regressifier is a regression algorithm that can be installed as the
// regression stage of a pipeline.
type Regressifier interface {
	Fitter
	Predictor
	WeightExporter

	// Name returns the registry name of the algorithm.
	Name() string

	// IsFitted reports whether Fit or ImportWeights has succeeded.
	IsFitted() bool

	// Clone returns an untrained copy with the same hyperparameters.
	Clone() Regressifier

	// NumInputs and NumOutputs return the trained dimensions, or 0.
	NumInputs() int
	NumOutputs() int
}

// Scalable is implemented by regressifiers that can min-max scale their
// own inputs and targets. Adapters that scale once for all targets turn
// it off on their components.
type Scalable interface {
	SetScaling(enabled bool)
	ScalingEnabled() bool
}

// RangeFitter is implemented by regressifiers that can scale with
// externally supplied [min, max] ranges instead of the training data's.
type RangeFitter interface {
	FitWithRanges(X, y mat.Matrix, inputRanges, targetRanges [][2]float64) error
}

// EpochObservable is implemented by iterative regressifiers that report
// each completed epoch.
type EpochObservable interface {
	SetEpochObserver(fn func(EpochRecord))
}

// HistoryProvider is implemented by regressifiers that keep a per-epoch
// training log.
type HistoryProvider interface {
	History() []EpochRecord
}
