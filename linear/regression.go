// Package linear implements single-output linear regression trained by
// stochastic gradient descent.
package linear

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/grt-lin-reg-tool/core/model"
	"github.com/YuminosukeSato/grt-lin-reg-tool/core/parallel"
	"github.com/YuminosukeSato/grt-lin-reg-tool/metrics"
	"github.com/YuminosukeSato/grt-lin-reg-tool/pkg/errors"
	"github.com/YuminosukeSato/grt-lin-reg-tool/preprocessing"
)

// ModelName is the registry name of LinearRegression.
const ModelName = "LinearRegression"

const weightsVersion = "1.0.0"

// Defaults.
const (
	DefaultLearningRate      = 0.01
	DefaultMaxEpochs         = 500
	DefaultMinChange         = 1.0e-5
	DefaultValidationSetSize = 20
	initWeightRange          = 0.1
)

// Hyperparameter keys in ModelWeights.
const (
	paramLearningRate      = "learning_rate"
	paramMaxEpochs         = "max_epochs"
	paramMinChange         = "min_change"
	paramUseValidationSet  = "use_validation_set"
	paramValidationSetSize = "validation_set_size"
	paramRandomiseOrder    = "randomise_training_order"
	paramUseScaling        = "use_scaling"
	paramRandomState       = "random_state"
)

func init() {
	model.RegisterRegressifier(ModelName, func() model.Regressifier { return NewLinearRegression() })
}

// LinearRegression は確率的勾配降下法で学習する線形回帰モデル
//
//	y = w0 + w·x
//
// Each epoch visits every training sample once and applies
// w += lr*err*x, w0 += lr*err. Training stops when the epoch's sum of
// squared errors changes by no more than MinChange, or after MaxEpochs.
type LinearRegression struct {
	state *model.StateManager

	learningRate      float64
	maxEpochs         int
	minChange         float64
	useValidationSet  bool
	validationSetSize int
	randomiseOrder    bool
	useScaling        bool
	randomState       int64
	observer          func(model.EpochRecord)

	weights      []float64 // 重み（係数）
	intercept    float64   // 切片
	inputScaler  *preprocessing.MinMaxScaler
	targetScaler *preprocessing.MinMaxScaler

	history       []model.EpochRecord
	trainingRMS   float64
	validationRMS float64
	converged     bool
}

// NewLinearRegression は新しい線形回帰モデルを作成する
//
// 使用例:
//
//	reg := linear.NewLinearRegression(
//	    linear.WithMaxEpochs(500),
//	    linear.WithMinChange(1e-5),
//	    linear.WithScaling(true),
//	)
//	err := reg.Fit(X, y)
func NewLinearRegression(opts ...Option) *LinearRegression {
	lr := &LinearRegression{
		state:             model.NewStateManager(),
		learningRate:      DefaultLearningRate,
		maxEpochs:         DefaultMaxEpochs,
		minChange:         DefaultMinChange,
		validationSetSize: DefaultValidationSetSize,
		randomState:       -1,
		validationRMS:     math.NaN(),
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// Name implements model.Regressifier.
func (lr *LinearRegression) Name() string { return ModelName }

// IsFitted implements model.Regressifier.
func (lr *LinearRegression) IsFitted() bool { return lr.state.IsFitted() }

// NumInputs implements model.Regressifier.
func (lr *LinearRegression) NumInputs() int {
	n, _, _ := lr.state.GetDimensions()
	return n
}

// NumOutputs implements model.Regressifier.
func (lr *LinearRegression) NumOutputs() int {
	_, t, _ := lr.state.GetDimensions()
	return t
}

// SetScaling implements model.Scalable.
func (lr *LinearRegression) SetScaling(enabled bool) { lr.useScaling = enabled }

// ScalingEnabled implements model.Scalable.
func (lr *LinearRegression) ScalingEnabled() bool { return lr.useScaling }

// SetEpochObserver implements model.EpochObservable.
func (lr *LinearRegression) SetEpochObserver(fn func(model.EpochRecord)) { lr.observer = fn }

// History implements model.HistoryProvider.
func (lr *LinearRegression) History() []model.EpochRecord {
	return append([]model.EpochRecord(nil), lr.history...)
}

// TrainingRMS is the RMS error over the training split after the last
// epoch, in the space the model trained in.
func (lr *LinearRegression) TrainingRMS() float64 { return lr.trainingRMS }

// ValidationRMS is NaN when no validation set was used.
func (lr *LinearRegression) ValidationRMS() float64 { return lr.validationRMS }

// Converged reports whether the last Fit stopped on MinChange rather than
// the epoch cap.
func (lr *LinearRegression) Converged() bool { return lr.converged }

// GetWeights は学習された重み（係数）を返す
func (lr *LinearRegression) GetWeights() []float64 {
	return append([]float64(nil), lr.weights...)
}

// GetIntercept は学習された切片を返す
func (lr *LinearRegression) GetIntercept() float64 { return lr.intercept }

// GetParams returns the hyperparameters.
func (lr *LinearRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		paramLearningRate:      lr.learningRate,
		paramMaxEpochs:         lr.maxEpochs,
		paramMinChange:         lr.minChange,
		paramUseValidationSet:  lr.useValidationSet,
		paramValidationSetSize: lr.validationSetSize,
		paramRandomiseOrder:    lr.randomiseOrder,
		paramUseScaling:        lr.useScaling,
		paramRandomState:       lr.randomState,
	}
}

// Clone implements model.Regressifier. The clone is untrained.
func (lr *LinearRegression) Clone() model.Regressifier {
	return &LinearRegression{
		state:             model.NewStateManager(),
		learningRate:      lr.learningRate,
		maxEpochs:         lr.maxEpochs,
		minChange:         lr.minChange,
		useValidationSet:  lr.useValidationSet,
		validationSetSize: lr.validationSetSize,
		randomiseOrder:    lr.randomiseOrder,
		useScaling:        lr.useScaling,
		randomState:       lr.randomState,
		observer:          lr.observer,
		validationRMS:     math.NaN(),
	}
}

func (lr *LinearRegression) validateParams() error {
	if !(lr.learningRate > 0) || math.IsInf(lr.learningRate, 0) {
		return errors.NewValidationError(paramLearningRate, "must be a positive finite number", lr.learningRate)
	}
	if lr.maxEpochs < 1 {
		return errors.NewValidationError(paramMaxEpochs, "must be at least 1", lr.maxEpochs)
	}
	if lr.minChange < 0 || math.IsNaN(lr.minChange) {
		return errors.NewValidationError(paramMinChange, "must be non-negative", lr.minChange)
	}
	if lr.validationSetSize < 0 || lr.validationSetSize > 100 {
		return errors.NewValidationError(paramValidationSetSize, "must be a percentage between 0 and 100", lr.validationSetSize)
	}
	return nil
}

// Fit はモデルを訓練データで学習させる
func (lr *LinearRegression) Fit(X, y mat.Matrix) error {
	return lr.fit(X, y, nil, nil)
}

// FitWithRanges implements model.RangeFitter. With scaling enabled the
// given ranges replace the ranges observed in X and y.
func (lr *LinearRegression) FitWithRanges(X, y mat.Matrix, inputRanges, targetRanges [][2]float64) error {
	return lr.fit(X, y, inputRanges, targetRanges)
}

func (lr *LinearRegression) fit(X, y mat.Matrix, inputRanges, targetRanges [][2]float64) error {
	// 入力の検証
	r, c := X.Dims()
	ry, cy := y.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("LinearRegression.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry != r {
		return errors.NewDimensionError("LinearRegression.Fit", r, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError("LinearRegression.Fit", "y must be a column vector")
	}
	if err := lr.validateParams(); err != nil {
		return err
	}

	src := lr.source()
	rng := rand.New(src)

	// 検証用データの分割
	order := rng.Perm(r)
	numValidation := 0
	if lr.useValidationSet {
		numValidation = r * lr.validationSetSize / 100
	}
	if r-numValidation < 1 {
		return errors.NewValidationError(paramValidationSetSize,
			fmt.Sprintf("holding out %d of %d samples leaves no training data", numValidation, r),
			lr.validationSetSize)
	}
	validationIdx := order[:numValidation]
	trainIdx := append([]int(nil), order[numValidation:]...)

	var inScaler, outScaler *preprocessing.MinMaxScaler
	if lr.useScaling {
		var err error
		inScaler, err = fitScaler(X, inputRanges)
		if err != nil {
			return errors.Wrap(err, "input scaling")
		}
		outScaler, err = fitScaler(y, targetRanges)
		if err != nil {
			return errors.Wrap(err, "target scaling")
		}
	}
	xs, ys := scaledRows(X, y, inScaler, outScaler)

	// 重みの初期化 [-0.1, 0.1]
	uniform := distuv.Uniform{Min: -initWeightRange, Max: initWeightRange}
	weights := make([]float64, c)
	for j := range weights {
		weights[j] = uniform.Quantile(rng.Float64())
	}
	intercept := uniform.Quantile(rng.Float64())

	history := make([]model.EpochRecord, 0, min(lr.maxEpochs, 1024))
	lastSSE := 0.0
	converged := false
	var record model.EpochRecord
	for epoch := 1; epoch <= lr.maxEpochs; epoch++ {
		if lr.randomiseOrder {
			rng.Shuffle(len(trainIdx), func(i, j int) { trainIdx[i], trainIdx[j] = trainIdx[j], trainIdx[i] })
		}

		sse := 0.0
		for _, i := range trainIdx {
			x := xs[i]
			err := ys[i] - (intercept + floats.Dot(weights, x))
			floats.AddScaled(weights, lr.learningRate*err, x)
			intercept += lr.learningRate * err
			sse += err * err
		}
		if err := errors.CheckScalar("LinearRegression.Fit", sse, epoch); err != nil {
			return err
		}

		delta := math.Abs(sse - lastSSE)
		lastSSE = sse
		record = model.EpochRecord{
			Epoch:         epoch,
			SSE:           sse,
			Delta:         delta,
			TrainingRMS:   math.Sqrt(sse / float64(len(trainIdx))),
			ValidationRMS: validationRMS(xs, ys, validationIdx, weights, intercept),
		}
		history = append(history, record)
		if lr.observer != nil {
			lr.observer(record)
		}

		if delta <= lr.minChange {
			converged = true
			break
		}
	}

	if !converged {
		errors.Warn(errors.NewConvergenceWarning(ModelName, lr.maxEpochs,
			fmt.Sprintf("last SSE change %g is above the minimum change %g", record.Delta, lr.minChange)))
	}

	lr.weights = weights
	lr.intercept = intercept
	lr.inputScaler = inScaler
	lr.targetScaler = outScaler
	lr.history = history
	lr.trainingRMS = record.TrainingRMS
	lr.validationRMS = record.ValidationRMS
	lr.converged = converged
	lr.state.SetDimensions(c, 1, r)
	lr.state.SetFitted()
	return nil
}

func (lr *LinearRegression) source() *rand.PCG {
	if lr.randomState >= 0 {
		seed := uint64(lr.randomState)
		return rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	}
	return rand.NewPCG(rand.Uint64(), rand.Uint64())
}

func fitScaler(m mat.Matrix, ranges [][2]float64) (*preprocessing.MinMaxScaler, error) {
	s := preprocessing.NewMinMaxScalerDefault()
	if ranges != nil {
		_, c := m.Dims()
		if len(ranges) != c {
			return nil, errors.NewDimensionError("LinearRegression.Fit", c, len(ranges), 1)
		}
		return s, s.FitRanges(ranges)
	}
	return s, s.Fit(m)
}

// scaledRows copies X and y into row slices, scaling them when scalers are
// given.
func scaledRows(X, y mat.Matrix, in, out *preprocessing.MinMaxScaler) ([][]float64, []float64) {
	r, c := X.Dims()
	xs := make([][]float64, r)
	ys := make([]float64, r)
	for i := 0; i < r; i++ {
		row := make([]float64, c)
		for j := range row {
			row[j] = X.At(i, j)
			if in != nil {
				row[j] = in.ScaleValue(j, row[j])
			}
		}
		xs[i] = row
		ys[i] = y.At(i, 0)
		if out != nil {
			ys[i] = out.ScaleValue(0, ys[i])
		}
	}
	return xs, ys
}

func validationRMS(xs [][]float64, ys []float64, idx []int, weights []float64, intercept float64) float64 {
	if len(idx) == 0 {
		return math.NaN()
	}
	sse := 0.0
	for _, i := range idx {
		err := ys[i] - (intercept + floats.Dot(weights, xs[i]))
		sse += err * err
	}
	return math.Sqrt(sse / float64(len(idx)))
}

// Predict は入力データに対する予測を行う
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.state.RequireFitted(ModelName, "Predict"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := lr.state.RequireInputs("LinearRegression.Predict", c); err != nil {
		return nil, err
	}

	predictions := mat.NewDense(r, 1, nil)
	err := parallel.RowsWithThreshold(r, parallel.DefaultRowThreshold, func(start, end int) error {
		row := make([]float64, c)
		for i := start; i < end; i++ {
			mat.Row(row, i, X)
			predictions.Set(i, 0, lr.predictRow(row))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return predictions, nil
}

// predictRow scales row in place.
func (lr *LinearRegression) predictRow(row []float64) float64 {
	if lr.inputScaler != nil {
		for j := range row {
			row[j] = lr.inputScaler.ScaleValue(j, row[j])
		}
	}
	v := lr.intercept + floats.Dot(lr.weights, row)
	if lr.targetScaler != nil {
		v = lr.targetScaler.UnscaleValue(0, v)
	}
	return v
}

// Score は決定係数（R²）を計算する
func (lr *LinearRegression) Score(X, y mat.Matrix) (float64, error) {
	pred, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(y, pred)
}

// ExportWeights implements model.WeightExporter.
func (lr *LinearRegression) ExportWeights() (*model.ModelWeights, error) {
	params := lr.GetParams()
	params[paramRandomState] = strconv.FormatInt(lr.randomState, 10)
	w := &model.ModelWeights{
		ModelType:       ModelName,
		Version:         weightsVersion,
		Hyperparameters: params,
		IsFitted:        lr.IsFitted(),
	}
	if !w.IsFitted {
		return w, nil
	}
	w.Coefficients = lr.GetWeights()
	w.Intercept = lr.intercept
	w.NumInputs = lr.NumInputs()
	w.NumOutputs = 1
	w.Scaling = preprocessing.ExportScaling(lr.inputScaler, lr.targetScaler)
	w.Metadata = map[string]interface{}{
		"epochs":       len(lr.history),
		"converged":    lr.converged,
		"training_rms": lr.trainingRMS,
	}
	if !math.IsNaN(lr.validationRMS) {
		w.Metadata["validation_rms"] = lr.validationRMS
	}
	return w, nil
}

// ImportWeights implements model.WeightExporter.
func (lr *LinearRegression) ImportWeights(w *model.ModelWeights) error {
	if w == nil {
		return errors.NewValueError("LinearRegression.ImportWeights", "weights are nil")
	}
	if err := w.Validate(); err != nil {
		return err
	}
	if w.ModelType != ModelName {
		return errors.NewValueError("LinearRegression.ImportWeights",
			fmt.Sprintf("model type mismatch: expected %s, got %s", ModelName, w.ModelType))
	}

	lr.learningRate = w.Float(paramLearningRate, DefaultLearningRate)
	lr.maxEpochs = w.Int(paramMaxEpochs, DefaultMaxEpochs)
	lr.minChange = w.Float(paramMinChange, DefaultMinChange)
	lr.useValidationSet = w.Bool(paramUseValidationSet, false)
	lr.validationSetSize = w.Int(paramValidationSetSize, DefaultValidationSetSize)
	lr.randomiseOrder = w.Bool(paramRandomiseOrder, false)
	lr.useScaling = w.Bool(paramUseScaling, false)
	lr.randomState = w.Int64(paramRandomState, -1)

	lr.state.Reset()
	lr.weights, lr.intercept = nil, 0
	lr.inputScaler, lr.targetScaler = nil, nil
	lr.history = nil
	if !w.IsFitted {
		return nil
	}

	if w.NumInputs != 0 && w.NumInputs != len(w.Coefficients) {
		return errors.NewDimensionError("LinearRegression.ImportWeights", w.NumInputs, len(w.Coefficients), 0)
	}
	if lr.useScaling {
		if w.Scaling == nil {
			return errors.NewValueError("LinearRegression.ImportWeights", "scaling is enabled but no scaling state was saved")
		}
		in, out, err := preprocessing.ImportScaling(w.Scaling)
		if err != nil {
			return err
		}
		if in.NFeatures() != len(w.Coefficients) || out.NFeatures() != 1 {
			return errors.NewDimensionError("LinearRegression.ImportWeights", len(w.Coefficients), in.NFeatures(), 1)
		}
		lr.inputScaler, lr.targetScaler = in, out
	}

	lr.weights = append([]float64(nil), w.Coefficients...)
	lr.intercept = w.Intercept
	lr.trainingRMS, _ = w.Metadata["training_rms"].(float64)
	lr.validationRMS = math.NaN()
	if v, ok := w.Metadata["validation_rms"].(float64); ok {
		lr.validationRMS = v
	}
	lr.converged, _ = w.Metadata["converged"].(bool)
	lr.state.SetDimensions(len(lr.weights), 1, 0)
	lr.state.SetFitted()
	return nil
}

// String returns a short description.
func (lr *LinearRegression) String() string {
	if !lr.IsFitted() {
		return fmt.Sprintf("LinearRegression(learning_rate=%g, max_epochs=%d, min_change=%g)",
			lr.learningRate, lr.maxEpochs, lr.minChange)
	}
	return fmt.Sprintf("LinearRegression(n_features=%d, epochs=%d, converged=%t)",
		lr.NumInputs(), len(lr.history), lr.converged)
}
