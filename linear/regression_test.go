package linear

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/grt-lin-reg-tool/core/model"
	"github.com/YuminosukeSato/grt-lin-reg-tool/pkg/errors"
)

// gridData returns y = 2*x1 - x2 + 3 on a 10×20 grid.
func gridData() (*mat.Dense, *mat.Dense) {
	const n = 200
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		x1 := float64(i % 10)
		x2 := float64(i / 10)
		X.Set(i, 0, x1)
		X.Set(i, 1, x2)
		y.Set(i, 0, 2*x1-x2+3)
	}
	return X, y
}

func newToolConfig(opts ...Option) *LinearRegression {
	base := []Option{
		WithMaxEpochs(500),
		WithMinChange(1e-5),
		WithUseValidationSet(true),
		WithValidationSetSize(20),
		WithRandomiseTrainingOrder(true),
		WithScaling(true),
		WithRandomState(7),
	}
	return NewLinearRegression(append(base, opts...)...)
}

func silenceWarnings(t *testing.T) *[]error {
	t.Helper()
	var warnings []error
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	t.Cleanup(func() { errors.SetWarningHandler(nil) })
	return &warnings
}

func TestLinearRegressionFitPredict(t *testing.T) {
	silenceWarnings(t)
	X, y := gridData()

	lr := newToolConfig()
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	if !lr.IsFitted() {
		t.Fatal("model should be fitted")
	}

	score, err := lr.Score(X, y)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if score < 0.95 {
		t.Errorf("Score() = %v, want >= 0.95", score)
	}

	pred, err := lr.Predict(mat.NewDense(1, 2, []float64{5, 5}))
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if got := pred.At(0, 0); math.Abs(got-8) > 1.0 {
		t.Errorf("Predict([5 5]) = %v, want about 8", got)
	}

	if math.IsNaN(lr.ValidationRMS()) {
		t.Error("ValidationRMS() should be set when a validation set is used")
	}
	if lr.NumInputs() != 2 || lr.NumOutputs() != 1 {
		t.Errorf("dims = (%d, %d), want (2, 1)", lr.NumInputs(), lr.NumOutputs())
	}
}

func TestLinearRegressionHistory(t *testing.T) {
	silenceWarnings(t)
	X, y := gridData()

	var observed []model.EpochRecord
	lr := newToolConfig(WithEpochObserver(func(r model.EpochRecord) { observed = append(observed, r) }))
	if err := lr.Fit(X, y); err != nil {
		t.Fatal(err)
	}

	history := lr.History()
	if len(history) == 0 || len(history) > 500 {
		t.Fatalf("len(History()) = %d", len(history))
	}
	if len(observed) != len(history) {
		t.Errorf("observer saw %d epochs, history has %d", len(observed), len(history))
	}
	for i, r := range history {
		if r.Epoch != i+1 {
			t.Fatalf("epoch %d recorded as %d", i+1, r.Epoch)
		}
		if !r.HasValidation() {
			t.Fatalf("epoch %d has no validation RMS", r.Epoch)
		}
	}
	last := history[len(history)-1]
	if lr.Converged() && last.Delta > 1e-5 {
		t.Errorf("converged with delta %g", last.Delta)
	}
	if first := history[0]; last.SSE > first.SSE {
		t.Errorf("SSE grew from %g to %g", first.SSE, last.SSE)
	}
}

func TestLinearRegressionEpochCapWarns(t *testing.T) {
	warnings := silenceWarnings(t)
	X, y := gridData()

	lr := newToolConfig(WithMaxEpochs(3), WithMinChange(0))
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("hitting the epoch cap should not fail, got %v", err)
	}
	if lr.Converged() {
		t.Error("Converged() = true after hitting the epoch cap")
	}
	if len(lr.History()) != 3 {
		t.Errorf("len(History()) = %d, want 3", len(lr.History()))
	}
	if len(*warnings) != 1 {
		t.Fatalf("got %d warnings, want 1", len(*warnings))
	}
	var cw *errors.ConvergenceWarning
	if !errors.As((*warnings)[0], &cw) || cw.Iterations != 3 {
		t.Errorf("warning = %v, want a ConvergenceWarning after 3 iterations", (*warnings)[0])
	}
}

func TestLinearRegressionDiverges(t *testing.T) {
	silenceWarnings(t)
	X, y := gridData()

	lr := NewLinearRegression(WithLearningRate(1e3), WithScaling(false), WithRandomState(1))
	err := lr.Fit(X, y)

	var nie *errors.NumericalInstabilityError
	if !errors.As(err, &nie) {
		t.Fatalf("Fit() error = %v, want NumericalInstabilityError", err)
	}
	if lr.IsFitted() {
		t.Error("a diverged model must not be marked fitted")
	}
}

func TestLinearRegressionSeededIsDeterministic(t *testing.T) {
	silenceWarnings(t)
	X, y := gridData()

	a := newToolConfig(WithMaxEpochs(20))
	b := newToolConfig(WithMaxEpochs(20))
	if err := a.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if err := b.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	wa, wb := a.GetWeights(), b.GetWeights()
	for j := range wa {
		if wa[j] != wb[j] {
			t.Fatalf("weights differ at %d: %v vs %v", j, wa[j], wb[j])
		}
	}
}

func TestLinearRegressionErrors(t *testing.T) {
	tests := []struct {
		name    string
		lr      *LinearRegression
		X, y    mat.Matrix
		wantErr interface{}
	}{
		{
			name:    "empty data",
			lr:      NewLinearRegression(),
			X:       &mat.Dense{},
			y:       &mat.Dense{},
			wantErr: new(*errors.ModelError),
		},
		{
			name:    "row mismatch",
			lr:      NewLinearRegression(),
			X:       mat.NewDense(3, 1, []float64{1, 2, 3}),
			y:       mat.NewDense(2, 1, []float64{1, 2}),
			wantErr: new(*errors.DimensionError),
		},
		{
			name:    "y not a column",
			lr:      NewLinearRegression(),
			X:       mat.NewDense(2, 1, []float64{1, 2}),
			y:       mat.NewDense(2, 2, []float64{1, 2, 3, 4}),
			wantErr: new(*errors.ValueError),
		},
		{
			name:    "bad learning rate",
			lr:      NewLinearRegression(WithLearningRate(0)),
			X:       mat.NewDense(2, 1, []float64{1, 2}),
			y:       mat.NewDense(2, 1, []float64{1, 2}),
			wantErr: new(*errors.ValidationError),
		},
		{
			name:    "validation set swallows all data",
			lr:      NewLinearRegression(WithUseValidationSet(true), WithValidationSetSize(100)),
			X:       mat.NewDense(2, 1, []float64{1, 2}),
			y:       mat.NewDense(2, 1, []float64{1, 2}),
			wantErr: new(*errors.ValidationError),
		},
		{
			name:    "validation percentage out of range",
			lr:      NewLinearRegression(WithValidationSetSize(101)),
			X:       mat.NewDense(2, 1, []float64{1, 2}),
			y:       mat.NewDense(2, 1, []float64{1, 2}),
			wantErr: new(*errors.ValidationError),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.lr.Fit(tt.X, tt.y)
			if err == nil {
				t.Fatal("Fit() should fail")
			}
			if !errors.As(err, tt.wantErr) {
				t.Errorf("Fit() error = %v (%T), want %T", err, err, tt.wantErr)
			}
		})
	}
}

func TestLinearRegressionPredictErrors(t *testing.T) {
	silenceWarnings(t)
	lr := newToolConfig()

	_, err := lr.Predict(mat.NewDense(1, 2, nil))
	var nf *errors.NotFittedError
	if !errors.As(err, &nf) {
		t.Errorf("Predict() before Fit error = %v, want NotFittedError", err)
	}

	X, y := gridData()
	if err := lr.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	_, err = lr.Predict(mat.NewDense(1, 3, nil))
	var de *errors.DimensionError
	if !errors.As(err, &de) {
		t.Errorf("Predict() with 3 columns error = %v, want DimensionError", err)
	}
}

func TestLinearRegressionWeightsRoundTrip(t *testing.T) {
	silenceWarnings(t)
	X, y := gridData()
	lr := newToolConfig()
	if err := lr.Fit(X, y); err != nil {
		t.Fatal(err)
	}

	w, err := lr.ExportWeights()
	if err != nil {
		t.Fatal(err)
	}
	data, err := w.ToJSON()
	if err != nil {
		t.Fatal(err)
	}
	var decoded model.ModelWeights
	if err := decoded.FromJSON(data); err != nil {
		t.Fatal(err)
	}

	restored, err := model.FromWeights(&decoded)
	if err != nil {
		t.Fatalf("FromWeights() error = %v", err)
	}
	before, _ := lr.Predict(X)
	after, err := restored.Predict(X)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.EqualApprox(before, after, 1e-12) {
		t.Error("predictions changed after a weights round trip")
	}

	rlr := restored.(*LinearRegression)
	if rlr.maxEpochs != 500 || rlr.validationSetSize != 20 || !rlr.useScaling || !rlr.randomiseOrder {
		t.Errorf("hyperparameters not restored: %v", rlr.GetParams())
	}
}

func TestLinearRegressionUnfittedExport(t *testing.T) {
	w, err := NewLinearRegression().ExportWeights()
	if err != nil {
		t.Fatal(err)
	}
	if w.IsFitted || len(w.Coefficients) != 0 {
		t.Error("unfitted export should carry no coefficients")
	}
	if err := w.Validate(); err != nil {
		t.Errorf("unfitted export is invalid: %v", err)
	}
}

func TestLinearRegressionCloneIsUntrained(t *testing.T) {
	silenceWarnings(t)
	X, y := gridData()
	lr := newToolConfig()
	if err := lr.Fit(X, y); err != nil {
		t.Fatal(err)
	}

	c := lr.Clone().(*LinearRegression)
	if c.IsFitted() {
		t.Error("Clone() should be untrained")
	}
	if c.maxEpochs != lr.maxEpochs || c.minChange != lr.minChange || c.useScaling != lr.useScaling {
		t.Error("Clone() did not copy hyperparameters")
	}
	c.SetScaling(false)
	if !lr.ScalingEnabled() {
		t.Error("changing the clone changed the original")
	}
}

func TestLinearRegressionFitWithRanges(t *testing.T) {
	silenceWarnings(t)
	X, y := gridData()
	lr := newToolConfig(WithUseValidationSet(false))

	err := lr.FitWithRanges(X, y, [][2]float64{{0, 10}, {0, 20}}, [][2]float64{{-20, 30}})
	if err != nil {
		t.Fatalf("FitWithRanges() error = %v", err)
	}
	w, _ := lr.ExportWeights()
	if w.Scaling.InputMax[1] != 20 || w.Scaling.TargetMin[0] != -20 {
		t.Errorf("external ranges not used: %+v", w.Scaling)
	}

	err = lr.FitWithRanges(X, y, [][2]float64{{0, 10}}, [][2]float64{{-20, 30}})
	var de *errors.DimensionError
	if !errors.As(err, &de) {
		t.Errorf("FitWithRanges() with too few ranges error = %v, want DimensionError", err)
	}
}
