package pipeline

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/grt-lin-reg-tool/core/model"
	"github.com/YuminosukeSato/grt-lin-reg-tool/dataset"
	"github.com/YuminosukeSato/grt-lin-reg-tool/linear"
	"github.com/YuminosukeSato/grt-lin-reg-tool/pkg/errors"
	"github.com/YuminosukeSato/grt-lin-reg-tool/pkg/log"
	"github.com/YuminosukeSato/grt-lin-reg-tool/regression"
)

func quiet(t *testing.T) {
	errors.SetWarningHandler(func(error) {})
	t.Cleanup(func() { errors.SetWarningHandler(nil) })
}

// toyData: y0 = x0 + x1, y1 = 2*x0 - x1 + 1.
func toyData(t *testing.T) *dataset.RegressionData {
	t.Helper()
	data := dataset.NewRegressionData()
	require.NoError(t, data.SetInputAndTargetDimensions(2, 2))
	for i := 0; i < 100; i++ {
		x0, x1 := float64(i%10), float64(i/10)
		require.NoError(t, data.AddSample([]float64{x0, x1}, []float64{x0 + x1, 2*x0 - x1 + 1}))
	}
	return data
}

func newRegressifier() model.Regressifier {
	reg := linear.NewLinearRegression(
		linear.WithMaxEpochs(500),
		linear.WithMinChange(1e-5),
		linear.WithUseValidationSet(true),
		linear.WithValidationSetSize(20),
		linear.WithRandomiseTrainingOrder(true),
		linear.WithScaling(true),
	)
	return regression.NewMultidimensionalRegression(reg, true)
}

func trainedPipeline(t *testing.T, opts ...Option) *Pipeline {
	t.Helper()
	p := New(opts...)
	p.SetRegressifier(newRegressifier())
	require.NoError(t, p.Train(toyData(t)))
	return p
}

func TestTrain(t *testing.T) {
	quiet(t)
	logger := log.NewTestLogger(log.LevelDebug)

	var epochs int
	p := trainedPipeline(t, WithLogger(logger), WithEpochObserver(func(model.EpochRecord) { epochs++ }))

	assert.True(t, p.IsTrained())
	assert.NotEmpty(t, p.ID())
	assert.Equal(t, 2, p.NumInputDimensions())
	assert.Equal(t, 2, p.NumOutputDimensions())
	assert.Greater(t, p.TrainingTime().Nanoseconds(), int64(0))
	assert.Less(t, p.TrainingRMS(), 1.0)
	assert.Greater(t, epochs, 0)
	assert.Len(t, p.TrainingHistory(), epochs)

	assert.True(t, logger.ContainsMessage("Training started"))
	assert.True(t, logger.ContainsMessage("Training completed"))
	assert.True(t, logger.ContainsField(log.ModelNameKey, regression.ModelName))

	out, err := p.Predict([]float64{3, 4})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.InDelta(t, 7.0, out[0], 1.0)
	assert.InDelta(t, 3.0, out[1], 1.0)
}

func TestTrainDebugLogging(t *testing.T) {
	quiet(t)
	logger := log.NewTestLogger(log.LevelDebug)
	p := trainedPipeline(t, WithLogger(logger))

	assert.True(t, logger.ContainsMessage("Hyperparameters"))
	assert.True(t, logger.ContainsField(log.MaxEpochsKey, 500.0))
	assert.True(t, logger.ContainsField(log.MinChangeKey, 1e-5))
	assert.True(t, logger.ContainsField(log.RandomSeedKey, -1.0))

	assert.True(t, logger.ContainsMessage("Epoch completed"))
	assert.True(t, logger.ContainsField(log.EpochKey, 1.0))
	assert.True(t, logger.ContainsField(log.TargetKey, 1.0))

	entries, err := logger.GetLogEntries()
	require.NoError(t, err)
	var completed map[string]interface{}
	for _, e := range entries {
		if e["message"] == "Training completed" {
			completed = e
		}
	}
	require.NotNil(t, completed)
	assert.Equal(t, p.ID(), completed[log.EstimatorIDKey])
	assert.InDelta(t, p.TrainingMAE(), completed[log.MAEKey], 1e-12)
	assert.Contains(t, completed, log.ConvergedKey)
	assert.Contains(t, completed, log.R2ScoreKey)

	perTarget := p.TrainingRMSPerTarget()
	require.Len(t, perTarget, 2)
	for _, v := range perTarget {
		assert.Less(t, v, 1.0)
	}
	assert.Greater(t, p.TrainingMAE(), 0.0)
	assert.Less(t, p.TrainingMAE(), p.TrainingRMS()+1e-12)
}

func TestTrainNoEpochLogsAtInfo(t *testing.T) {
	quiet(t)
	logger := log.NewTestLogger(log.LevelInfo)
	trainedPipeline(t, WithLogger(logger))

	assert.False(t, logger.ContainsMessage("Epoch completed"))
}

func TestTrainNewIDPerRun(t *testing.T) {
	quiet(t)
	p := trainedPipeline(t)
	first := p.ID()
	require.NoError(t, p.Train(toyData(t)))
	assert.NotEqual(t, first, p.ID())
}

func TestTrainErrors(t *testing.T) {
	quiet(t)

	p := New()
	err := p.Train(toyData(t))
	assert.True(t, errors.Is(err, errors.ErrNoRegressifier))

	p.SetRegressifier(newRegressifier())
	err = p.Train(dataset.NewRegressionData())
	assert.True(t, errors.Is(err, errors.ErrEmptyData))
	assert.False(t, p.IsTrained())

	logger := log.NewTestLogger(log.LevelDebug)
	p = New(WithLogger(logger))
	p.SetRegressifier(regression.NewMultidimensionalRegression(
		linear.NewLinearRegression(linear.WithLearningRate(1e3)), false))
	err = p.Train(toyData(t))
	var nie *errors.NumericalInstabilityError
	assert.True(t, errors.As(err, &nie), "got %v", err)
	assert.False(t, p.IsTrained())
	assert.True(t, logger.ContainsMessage("Training failed"))
}

func TestTrainRejectsNonFiniteData(t *testing.T) {
	tests := []struct {
		name          string
		input, target []float64
	}{
		{"NaN input", []float64{math.NaN(), 1}, []float64{1, 1}},
		{"Inf target", []float64{1, 1}, []float64{math.Inf(1), 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := toyData(t)
			require.NoError(t, data.AddSample(tt.input, tt.target))

			p := New()
			p.SetRegressifier(newRegressifier())
			err := p.Train(data)

			var nie *errors.NumericalInstabilityError
			assert.True(t, errors.As(err, &nie), "got %v", err)
			assert.False(t, p.IsTrained())
		})
	}
}

func TestPredictRejectsNonFiniteOutput(t *testing.T) {
	quiet(t)
	p := trainedPipeline(t)

	_, err := p.Predict([]float64{math.NaN(), 1})
	var nie *errors.NumericalInstabilityError
	assert.True(t, errors.As(err, &nie), "got %v", err)

	_, err = p.PredictMatrix(mat.NewDense(2, 2, []float64{1, 1, math.Inf(1), 0}))
	assert.True(t, errors.As(err, &nie), "got %v", err)
}

// panicky panics in Fit.
type panicky struct{ model.Regressifier }

func (panicky) Name() string { return "panicky" }
func (panicky) Fit(X, y mat.Matrix) error { panic("boom") }

func TestTrainRecoversPanics(t *testing.T) {
	p := New()
	p.SetRegressifier(panicky{})
	err := p.Train(toyData(t))

	var pe *errors.PanicError
	require.True(t, errors.As(err, &pe), "got %v", err)
	assert.Equal(t, "boom", pe.PanicValue)
}

func TestTrainUsesExternalRanges(t *testing.T) {
	quiet(t)
	data := toyData(t)
	require.NoError(t, data.EnableExternalRanges(
		[][2]float64{{0, 100}, {0, 100}},
		[][2]float64{{-100, 100}, {-100, 100}}))

	p := New()
	p.SetRegressifier(newRegressifier())
	require.NoError(t, p.Train(data))

	var buf bytes.Buffer
	require.NoError(t, p.SaveTo(&buf))
	var a artifact
	require.NoError(t, json.Unmarshal(buf.Bytes(), &a))
	assert.Equal(t, []float64{100, 100}, a.Regressifier.Scaling.InputMax)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	quiet(t)
	p := trainedPipeline(t)
	path := filepath.Join(t.TempDir(), "model.grt")
	require.NoError(t, p.Save(path))

	loaded := New()
	require.NoError(t, loaded.Load(path))
	assert.Equal(t, p.ID(), loaded.ID())
	assert.Equal(t, p.NumInputDimensions(), loaded.NumInputDimensions())
	assert.Equal(t, p.TrainingTime().Milliseconds(), loaded.TrainingTime().Milliseconds())
	assert.Equal(t, regression.ModelName, loaded.Regressifier().Name())

	X := mat.NewDense(3, 2, []float64{0, 0, 5, 5, 9, 1})
	want, err := p.PredictMatrix(X)
	require.NoError(t, err)
	got, err := loaded.PredictMatrix(X)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(want, got, 1e-12))
}

func TestSaveLoadLargeSeed(t *testing.T) {
	quiet(t)
	const seed = int64(1760000000123456789)
	p := New()
	p.SetRegressifier(regression.NewMultidimensionalRegression(
		linear.NewLinearRegression(linear.WithRandomState(seed)), true))
	require.NoError(t, p.Train(toyData(t)))

	path := filepath.Join(t.TempDir(), "model.grt")
	require.NoError(t, p.Save(path))

	loaded := New()
	require.NoError(t, loaded.Load(path))

	md := loaded.Regressifier().(*regression.MultidimensionalRegression)
	for _, c := range md.Components() {
		params := c.(*linear.LinearRegression).GetParams()
		assert.Equal(t, seed, params["random_state"])
	}
}

func TestSaveUntrained(t *testing.T) {
	p := New()
	p.SetRegressifier(newRegressifier())
	err := p.Save(filepath.Join(t.TempDir(), "model.grt"))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	_, err = p.Predict([]float64{1, 2})
	assert.True(t, errors.As(err, &nf))
}

func TestSaveToUnwritablePath(t *testing.T) {
	quiet(t)
	p := trainedPipeline(t)
	assert.Error(t, p.Save(filepath.Join(t.TempDir(), "missing-dir", "model.grt")))
}

func TestLoadRejectsTampering(t *testing.T) {
	quiet(t)
	p := trainedPipeline(t)
	var buf bytes.Buffer
	require.NoError(t, p.SaveTo(&buf))
	saved := buf.String()

	tests := []struct {
		name   string
		mutate func(a *artifact)
		check  func(t *testing.T, err error)
	}{
		{
			name:   "checksum",
			mutate: func(a *artifact) { a.Regressifier.Components[0].Intercept += 1 },
			check: func(t *testing.T, err error) {
				assert.True(t, errors.Is(err, errors.ErrChecksumMismatch))
			},
		},
		{
			name:   "format",
			mutate: func(a *artifact) { a.Format = "SOMETHING_ELSE" },
			check: func(t *testing.T, err error) {
				var ve *errors.ValueError
				assert.True(t, errors.As(err, &ve))
			},
		},
		{
			name: "dimensions",
			mutate: func(a *artifact) {
				a.NumInputDimensions = 3
			},
			check: func(t *testing.T, err error) {
				var de *errors.DimensionError
				assert.True(t, errors.As(err, &de))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a artifact
			require.NoError(t, json.Unmarshal([]byte(saved), &a))
			tt.mutate(&a)
			data, err := json.Marshal(&a)
			require.NoError(t, err)

			loaded := New()
			err = loaded.LoadFrom(bytes.NewReader(data))
			require.Error(t, err)
			tt.check(t, err)
			assert.False(t, loaded.IsTrained())
		})
	}
}

func TestLoadGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.grt")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))
	assert.Error(t, New().Load(path))
	assert.Error(t, New().LoadFrom(strings.NewReader("{}")))
}
