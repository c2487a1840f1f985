// Package pipeline holds a regression stage, trains it on a dataset, and
// saves and restores the trained result.
package pipeline

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/grt-lin-reg-tool/core/model"
	"github.com/YuminosukeSato/grt-lin-reg-tool/dataset"
	"github.com/YuminosukeSato/grt-lin-reg-tool/metrics"
	"github.com/YuminosukeSato/grt-lin-reg-tool/pkg/errors"
	"github.com/YuminosukeSato/grt-lin-reg-tool/pkg/log"

	// Regressifiers register themselves so Load can rebuild them.
	_ "github.com/YuminosukeSato/grt-lin-reg-tool/linear"
	_ "github.com/YuminosukeSato/grt-lin-reg-tool/regression"
)

// ArtifactFormat identifies files written by Save.
const ArtifactFormat = "GRT_LINEAR_REGRESSION_PIPELINE_V1"

const artifactVersion = "1.0.0"

// artifact is the on-disk form of a trained pipeline.
type artifact struct {
	Format              string              `json:"format"`
	Version             string              `json:"version"`
	ID                  string              `json:"id"`
	NumInputDimensions  int                 `json:"num_input_dimensions"`
	NumOutputDimensions int                 `json:"num_output_dimensions"`
	TrainingTimeMs      int64               `json:"training_time_ms"`
	TrainingRMS         float64             `json:"training_rms"`
	Regressifier        *model.ModelWeights `json:"regressifier"`
	Checksum            string              `json:"checksum"`
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l log.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// WithEpochObserver forwards per-epoch records from regressifiers that
// report them.
func WithEpochObserver(fn func(model.EpochRecord)) Option {
	return func(p *Pipeline) {
		p.observer = fn
	}
}

// Pipeline sequences a single regression stage over input data.
//
// 使用例:
//
//	p := pipeline.New(pipeline.WithLogger(logger))
//	p.SetRegressifier(regression.NewMultidimensionalRegression(reg, true))
//	if err := p.Train(data); err != nil { ... }
//	err := p.Save("model.grt")
type Pipeline struct {
	logger   log.Logger
	observer func(model.EpochRecord)

	regressifier model.Regressifier
	trained      bool
	id           uuid.UUID
	numInputs    int
	numOutputs   int
	trainingTime time.Duration
	trainingRMS  float64
	targetRMS    []float64
	trainingMAE  float64
}

// New creates an empty pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{logger: log.Nop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetRegressifier installs r as the regression stage and discards any
// previous training.
func (p *Pipeline) SetRegressifier(r model.Regressifier) {
	p.regressifier = r
	p.trained = false
	p.id = uuid.Nil
}

// Regressifier returns the regression stage.
func (p *Pipeline) Regressifier() model.Regressifier { return p.regressifier }

// IsTrained reports whether Train or Load has succeeded.
func (p *Pipeline) IsTrained() bool { return p.trained }

// ID identifies the current training run. It is empty until trained.
func (p *Pipeline) ID() string {
	if p.id == uuid.Nil {
		return ""
	}
	return p.id.String()
}

// NumInputDimensions returns N of the trained pipeline.
func (p *Pipeline) NumInputDimensions() int { return p.numInputs }

// NumOutputDimensions returns T of the trained pipeline.
func (p *Pipeline) NumOutputDimensions() int { return p.numOutputs }

// TrainingTime is the wall time the last Train spent fitting.
func (p *Pipeline) TrainingTime() time.Duration { return p.trainingTime }

// TrainingRMS is the RMS error of the trained pipeline over the full
// training dataset, in target units.
func (p *Pipeline) TrainingRMS() float64 { return p.trainingRMS }

// TrainingRMSPerTarget returns the training RMS error of each target
// dimension. It is nil for a loaded pipeline.
func (p *Pipeline) TrainingRMSPerTarget() []float64 {
	return append([]float64(nil), p.targetRMS...)
}

// TrainingMAE is the mean absolute error over the training dataset. It is
// zero for a loaded pipeline.
func (p *Pipeline) TrainingMAE() float64 { return p.trainingMAE }

// TrainingHistory returns the regressifier's epoch log, or nil when it
// keeps none.
func (p *Pipeline) TrainingHistory() []model.EpochRecord {
	if hp, ok := p.regressifier.(model.HistoryProvider); ok {
		return hp.History()
	}
	return nil
}

// Train fits the regression stage on data. Declared external ranges are
// passed to regressifiers that accept them.
func (p *Pipeline) Train(data *dataset.RegressionData) (err error) {
	defer errors.Recover(&err, "Pipeline.Train")

	if p.regressifier == nil {
		return errors.NewModelError("Pipeline.Train", "no regressifier", errors.ErrNoRegressifier)
	}
	if data == nil || data.NumSamples() == 0 {
		return errors.NewModelError("Pipeline.Train", "empty dataset", errors.ErrEmptyData)
	}

	r := p.regressifier
	p.trained = false
	logger := p.logger.With(log.ComponentKey, "pipeline", log.ModelNameKey, r.Name())
	p.installObserver(r, logger)

	X, Y := data.Matrices()
	if err := errors.CheckMatrix("Pipeline.Train", X, 0); err != nil {
		return errors.Wrap(err, "training inputs")
	}
	if err := errors.CheckMatrix("Pipeline.Train", Y, 0); err != nil {
		return errors.Wrap(err, "training targets")
	}
	logger.Debug("Training started",
		log.SamplesKey, data.NumSamples(),
		log.FeaturesKey, data.NumInputDimensions(),
		log.TargetsKey, data.NumTargetDimensions(),
	)
	if params := paramsOf(r); params != nil {
		logger.Debug("Hyperparameters",
			log.LearningRateKey, params["learning_rate"],
			log.MaxEpochsKey, params["max_epochs"],
			log.MinChangeKey, params["min_change"],
			log.RandomSeedKey, params["random_state"],
		)
	}

	start := time.Now()
	rf, ok := r.(model.RangeFitter)
	if ok && data.UsesExternalRanges() {
		err = rf.FitWithRanges(X, Y, data.InputRanges(), data.TargetRanges())
	} else {
		err = r.Fit(X, Y)
	}
	elapsed := time.Since(start)
	if err != nil {
		logger.Error("Training failed", err, log.OperationKey, log.OperationFit)
		return errors.Wrap(err, "pipeline training failed")
	}

	pred, err := r.Predict(X)
	if err != nil {
		return errors.Wrap(err, "failed to score the trained regressifier")
	}
	rms, err := metrics.RMSE(Y, pred)
	if err != nil {
		return errors.Wrap(err, "failed to score the trained regressifier")
	}
	perTarget, err := metrics.RMSEPerColumn(Y, pred)
	if err != nil {
		return errors.Wrap(err, "failed to score the trained regressifier")
	}
	mae, err := metrics.MAE(Y, pred)
	if err != nil {
		return errors.Wrap(err, "failed to score the trained regressifier")
	}

	p.id = uuid.New()
	p.numInputs = data.NumInputDimensions()
	p.numOutputs = data.NumTargetDimensions()
	p.trainingTime = elapsed
	p.trainingRMS = rms
	p.targetRMS = perTarget
	p.trainingMAE = mae
	p.trained = true

	fields := []any{
		log.EstimatorIDKey, p.ID(),
		log.DurationMsKey, elapsed.Milliseconds(),
		log.RMSEKey, rms,
		log.MAEKey, mae,
	}
	if c, ok := r.(interface{ Converged() bool }); ok {
		fields = append(fields, log.ConvergedKey, c.Converged())
	}
	// R² is undefined for a constant target column.
	if r2, err := metrics.R2Score(Y, pred); err == nil {
		fields = append(fields, log.R2ScoreKey, r2)
	}
	logger.Debug("Training completed", fields...)
	return nil
}

// installObserver forwards epoch records to the configured observer and, at
// debug level, to the log.
func (p *Pipeline) installObserver(r model.Regressifier, logger log.Logger) {
	eo, ok := r.(model.EpochObservable)
	if !ok {
		return
	}
	observer := p.observer
	debug := logger.Enabled(context.Background(), log.LevelDebug)
	if observer == nil && !debug {
		return
	}
	eo.SetEpochObserver(func(rec model.EpochRecord) {
		if debug {
			logger.Debug("Epoch completed",
				log.PhaseKey, log.PhaseTraining,
				log.TargetKey, rec.Target,
				log.EpochKey, rec.Epoch,
				log.LossKey, rec.SSE,
				log.DeltaKey, rec.Delta,
			)
		}
		if observer != nil {
			observer(rec)
		}
	})
}

// paramsOf returns the hyperparameters of r, looking through adapters that
// wrap a base regressifier.
func paramsOf(r model.Regressifier) map[string]interface{} {
	switch v := r.(type) {
	case interface{ GetParams() map[string]interface{} }:
		return v.GetParams()
	case interface{ Base() model.Regressifier }:
		if b := v.Base(); b != nil {
			return paramsOf(b)
		}
	}
	return nil
}

// Predict maps a single input vector to its T predicted targets.
func (p *Pipeline) Predict(input []float64) ([]float64, error) {
	if !p.trained {
		return nil, errors.NewNotFittedError("Pipeline", "Predict")
	}
	if len(input) != p.numInputs {
		return nil, errors.NewDimensionError("Pipeline.Predict", p.numInputs, len(input), 0)
	}
	out, err := p.regressifier.Predict(mat.NewDense(1, len(input), append([]float64(nil), input...)))
	if err != nil {
		return nil, err
	}
	row := mat.Row(nil, 0, out)
	if err := errors.CheckNumericalStability("Pipeline.Predict", row, 0); err != nil {
		return nil, err
	}
	return row, nil
}

// PredictMatrix predicts every row of X.
func (p *Pipeline) PredictMatrix(X mat.Matrix) (mat.Matrix, error) {
	if !p.trained {
		return nil, errors.NewNotFittedError("Pipeline", "Predict")
	}
	out, err := p.regressifier.Predict(X)
	if err != nil {
		return nil, err
	}
	if err := errors.CheckMatrix("Pipeline.PredictMatrix", out, 0); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Pipeline) toArtifact() (*artifact, error) {
	if !p.trained {
		return nil, errors.NewNotFittedError("Pipeline", "Save")
	}
	w, err := p.regressifier.ExportWeights()
	if err != nil {
		return nil, errors.Wrap(err, "failed to export regressifier")
	}
	sum, err := model.Checksum(w)
	if err != nil {
		return nil, err
	}
	return &artifact{
		Format:              ArtifactFormat,
		Version:             artifactVersion,
		ID:                  p.ID(),
		NumInputDimensions:  p.numInputs,
		NumOutputDimensions: p.numOutputs,
		TrainingTimeMs:      p.trainingTime.Milliseconds(),
		TrainingRMS:         p.trainingRMS,
		Regressifier:        w,
		Checksum:            sum,
	}, nil
}

// Save writes the trained pipeline to path.
func (p *Pipeline) Save(path string) error {
	a, err := p.toArtifact()
	if err != nil {
		return err
	}
	if err := model.SaveModel(a, path); err != nil {
		return err
	}
	p.logger.Debug("Pipeline saved", log.OperationKey, log.OperationSave, log.FileKey, path)
	return nil
}

// SaveTo writes the trained pipeline to w.
func (p *Pipeline) SaveTo(w io.Writer) error {
	a, err := p.toArtifact()
	if err != nil {
		return err
	}
	return model.SaveModelToWriter(a, w)
}

// Load replaces the pipeline with the one saved at path. On failure the
// pipeline is unchanged.
func (p *Pipeline) Load(path string) error {
	var a artifact
	if err := model.LoadModel(&a, path); err != nil {
		return err
	}
	if err := p.fromArtifact(&a); err != nil {
		return errors.Wrapf(err, "failed to load pipeline from %s", path)
	}
	p.logger.Debug("Pipeline loaded", log.OperationKey, log.OperationLoad, log.FileKey, path)
	return nil
}

// LoadFrom reads a pipeline written by SaveTo.
func (p *Pipeline) LoadFrom(r io.Reader) error {
	var a artifact
	if err := model.LoadModelFromReader(&a, r); err != nil {
		return err
	}
	return p.fromArtifact(&a)
}

func (p *Pipeline) fromArtifact(a *artifact) error {
	if a.Format != ArtifactFormat {
		return errors.NewValueError("Pipeline.Load", "unknown format "+a.Format)
	}
	if a.Regressifier == nil {
		return errors.NewModelError("Pipeline.Load", "no regressifier", errors.ErrNoRegressifier)
	}
	sum, err := model.Checksum(a.Regressifier)
	if err != nil {
		return err
	}
	if sum != a.Checksum {
		return errors.Wrapf(errors.ErrChecksumMismatch, "expected %s, got %s", a.Checksum, sum)
	}

	r, err := model.FromWeights(a.Regressifier)
	if err != nil {
		return err
	}
	if !r.IsFitted() {
		return errors.NewNotFittedError(r.Name(), "Load")
	}
	if r.NumInputs() != a.NumInputDimensions {
		return errors.NewDimensionError("Pipeline.Load", a.NumInputDimensions, r.NumInputs(), 1)
	}
	if r.NumOutputs() != a.NumOutputDimensions {
		return errors.NewDimensionError("Pipeline.Load", a.NumOutputDimensions, r.NumOutputs(), 1)
	}
	id, err := uuid.Parse(a.ID)
	if err != nil {
		return errors.Wrap(err, "invalid pipeline id")
	}

	p.regressifier = r
	p.trained = true
	p.id = id
	p.numInputs = a.NumInputDimensions
	p.numOutputs = a.NumOutputDimensions
	p.trainingTime = time.Duration(a.TrainingTimeMs) * time.Millisecond
	p.trainingRMS = a.TrainingRMS
	p.targetRMS = nil
	p.trainingMAE = 0
	return nil
}
