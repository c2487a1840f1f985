// Package regression provides adapters that lift single-output
// regressifiers to multi-target problems.
package regression

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/grt-lin-reg-tool/core/model"
	"github.com/YuminosukeSato/grt-lin-reg-tool/metrics"
	"github.com/YuminosukeSato/grt-lin-reg-tool/pkg/errors"
	"github.com/YuminosukeSato/grt-lin-reg-tool/preprocessing"
)

// ModelName is the registry name of MultidimensionalRegression.
const ModelName = "MultidimensionalRegression"

const (
	weightsVersion  = "1.0.0"
	paramUseScaling = "use_scaling"
	paramBaseModel  = "base_model"
)

func init() {
	model.RegisterRegressifier(ModelName, func() model.Regressifier {
		return NewMultidimensionalRegression(nil, false)
	})
}

// MultidimensionalRegression trains one clone of a base regressifier per
// target column. With scaling on, the adapter min-max scales inputs and
// targets once and turns scaling off on its clones.
type MultidimensionalRegression struct {
	state      *model.StateManager
	base       model.Regressifier
	useScaling bool
	observer   func(model.EpochRecord)

	components   []model.Regressifier
	inputScaler  *preprocessing.MinMaxScaler
	targetScaler *preprocessing.MinMaxScaler
}

// NewMultidimensionalRegression wraps base. base is cloned, never trained
// directly.
func NewMultidimensionalRegression(base model.Regressifier, useScaling bool) *MultidimensionalRegression {
	return &MultidimensionalRegression{
		state:      model.NewStateManager(),
		base:       base,
		useScaling: useScaling,
	}
}

// Name implements model.Regressifier.
func (m *MultidimensionalRegression) Name() string { return ModelName }

// IsFitted implements model.Regressifier.
func (m *MultidimensionalRegression) IsFitted() bool { return m.state.IsFitted() }

// NumInputs implements model.Regressifier.
func (m *MultidimensionalRegression) NumInputs() int {
	n, _, _ := m.state.GetDimensions()
	return n
}

// NumOutputs implements model.Regressifier.
func (m *MultidimensionalRegression) NumOutputs() int {
	_, t, _ := m.state.GetDimensions()
	return t
}

// Base returns the wrapped template regressifier.
func (m *MultidimensionalRegression) Base() model.Regressifier { return m.base }

// Components returns the trained per-target regressifiers.
func (m *MultidimensionalRegression) Components() []model.Regressifier {
	return append([]model.Regressifier(nil), m.components...)
}

// Converged reports whether every component stopped on the minimum change
// rather than the epoch cap. Components that do not report convergence
// count as converged.
func (m *MultidimensionalRegression) Converged() bool {
	if !m.state.IsFitted() {
		return false
	}
	for _, c := range m.components {
		if cc, ok := c.(interface{ Converged() bool }); ok && !cc.Converged() {
			return false
		}
	}
	return true
}

// SetScaling implements model.Scalable.
func (m *MultidimensionalRegression) SetScaling(enabled bool) { m.useScaling = enabled }

// ScalingEnabled implements model.Scalable.
func (m *MultidimensionalRegression) ScalingEnabled() bool { return m.useScaling }

// SetEpochObserver implements model.EpochObservable. Records are tagged
// with the index of the target being trained.
func (m *MultidimensionalRegression) SetEpochObserver(fn func(model.EpochRecord)) { m.observer = fn }

// Clone implements model.Regressifier.
func (m *MultidimensionalRegression) Clone() model.Regressifier {
	var base model.Regressifier
	if m.base != nil {
		base = m.base.Clone()
	}
	c := NewMultidimensionalRegression(base, m.useScaling)
	c.observer = m.observer
	return c
}

// History implements model.HistoryProvider by concatenating the
// components' logs in target order.
func (m *MultidimensionalRegression) History() []model.EpochRecord {
	var out []model.EpochRecord
	for t, c := range m.components {
		hp, ok := c.(model.HistoryProvider)
		if !ok {
			continue
		}
		for _, r := range hp.History() {
			r.Target = t
			out = append(out, r)
		}
	}
	return out
}

// Fit implements model.Regressifier. Y holds one column per target.
func (m *MultidimensionalRegression) Fit(X, Y mat.Matrix) error {
	return m.fit(X, Y, nil, nil)
}

// FitWithRanges implements model.RangeFitter.
func (m *MultidimensionalRegression) FitWithRanges(X, Y mat.Matrix, inputRanges, targetRanges [][2]float64) error {
	return m.fit(X, Y, inputRanges, targetRanges)
}

func (m *MultidimensionalRegression) fit(X, Y mat.Matrix, inputRanges, targetRanges [][2]float64) error {
	if m.base == nil {
		return errors.NewModelError("MultidimensionalRegression.Fit", "no base regressifier", errors.ErrNoRegressifier)
	}
	r, c := X.Dims()
	ry, numTargets := Y.Dims()
	if r == 0 || c == 0 || numTargets == 0 {
		return errors.NewModelError("MultidimensionalRegression.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry != r {
		return errors.NewDimensionError("MultidimensionalRegression.Fit", r, ry, 0)
	}
	if (inputRanges == nil) != (targetRanges == nil) {
		return errors.NewValueError("MultidimensionalRegression.FitWithRanges",
			"input and target ranges must be given together")
	}
	if inputRanges != nil && len(inputRanges) != c {
		return errors.NewDimensionError("MultidimensionalRegression.Fit", c, len(inputRanges), 1)
	}
	if targetRanges != nil && len(targetRanges) != numTargets {
		return errors.NewDimensionError("MultidimensionalRegression.Fit", numTargets, len(targetRanges), 1)
	}

	Xs, Ys := mat.DenseCopyOf(X), mat.DenseCopyOf(Y)
	var inScaler, outScaler *preprocessing.MinMaxScaler
	if m.useScaling {
		var err error
		if inScaler, err = fitScaler(Xs, inputRanges); err != nil {
			return errors.Wrap(err, "input scaling")
		}
		if outScaler, err = fitScaler(Ys, targetRanges); err != nil {
			return errors.Wrap(err, "target scaling")
		}
		scaled, err := inScaler.Transform(Xs)
		if err != nil {
			return err
		}
		Xs = scaled.(*mat.Dense)
		if scaled, err = outScaler.Transform(Ys); err != nil {
			return err
		}
		Ys = scaled.(*mat.Dense)
	}

	components := make([]model.Regressifier, numTargets)
	for t := 0; t < numTargets; t++ {
		clone := m.base.Clone()
		if s, ok := clone.(model.Scalable); ok && m.useScaling {
			s.SetScaling(false)
		}
		if o, ok := clone.(model.EpochObservable); ok && m.observer != nil {
			target := t
			o.SetEpochObserver(func(rec model.EpochRecord) {
				rec.Target = target
				m.observer(rec)
			})
		}

		y := Ys.Slice(0, r, t, t+1)
		var err error
		if rf, ok := clone.(model.RangeFitter); ok && !m.useScaling && inputRanges != nil {
			err = rf.FitWithRanges(Xs, y, inputRanges, targetRanges[t:t+1])
		} else {
			err = clone.Fit(Xs, y)
		}
		if err != nil {
			return errors.Wrapf(err, "failed to train regressifier for target %d", t)
		}
		components[t] = clone
	}

	m.components = components
	m.inputScaler, m.targetScaler = inScaler, outScaler
	m.state.SetDimensions(c, numTargets, r)
	m.state.SetFitted()
	return nil
}

func fitScaler(m *mat.Dense, ranges [][2]float64) (*preprocessing.MinMaxScaler, error) {
	s := preprocessing.NewMinMaxScalerDefault()
	if ranges != nil {
		return s, s.FitRanges(ranges)
	}
	return s, s.Fit(m)
}

// Predict implements model.Regressifier. It returns one column per target.
func (m *MultidimensionalRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := m.state.RequireFitted(ModelName, "Predict"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := m.state.RequireInputs("MultidimensionalRegression.Predict", c); err != nil {
		return nil, err
	}

	in := X
	if m.inputScaler != nil {
		scaled, err := m.inputScaler.Transform(X)
		if err != nil {
			return nil, err
		}
		in = scaled
	}

	out := mat.NewDense(r, len(m.components), nil)
	for t, comp := range m.components {
		pred, err := comp.Predict(in)
		if err != nil {
			return nil, errors.Wrapf(err, "target %d", t)
		}
		for i := 0; i < r; i++ {
			out.Set(i, t, pred.At(i, 0))
		}
	}

	if m.targetScaler != nil {
		return m.targetScaler.InverseTransform(out)
	}
	return out, nil
}

// Score returns the mean R² over the target columns.
func (m *MultidimensionalRegression) Score(X, Y mat.Matrix) (float64, error) {
	pred, err := m.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(Y, pred)
}

// ExportWeights implements model.WeightExporter.
func (m *MultidimensionalRegression) ExportWeights() (*model.ModelWeights, error) {
	w := &model.ModelWeights{
		ModelType: ModelName,
		Version:   weightsVersion,
		Hyperparameters: map[string]interface{}{
			paramUseScaling: m.useScaling,
		},
		IsFitted: m.IsFitted(),
	}
	if m.base != nil {
		w.Hyperparameters[paramBaseModel] = m.base.Name()
	}
	if !w.IsFitted {
		return w, nil
	}

	w.NumInputs = m.NumInputs()
	w.NumOutputs = m.NumOutputs()
	w.Scaling = preprocessing.ExportScaling(m.inputScaler, m.targetScaler)
	for t, comp := range m.components {
		cw, err := comp.ExportWeights()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to export regressifier for target %d", t)
		}
		w.Components = append(w.Components, cw)
	}
	return w, nil
}

// ImportWeights implements model.WeightExporter.
func (m *MultidimensionalRegression) ImportWeights(w *model.ModelWeights) error {
	if w == nil {
		return errors.NewValueError("MultidimensionalRegression.ImportWeights", "weights are nil")
	}
	if err := w.Validate(); err != nil {
		return err
	}
	if w.ModelType != ModelName {
		return errors.NewValueError("MultidimensionalRegression.ImportWeights",
			fmt.Sprintf("model type mismatch: expected %s, got %s", ModelName, w.ModelType))
	}

	m.useScaling = w.Bool(paramUseScaling, false)
	m.state.Reset()
	m.components = nil
	m.inputScaler, m.targetScaler = nil, nil

	if !w.IsFitted {
		if name, ok := w.Hyperparameters[paramBaseModel].(string); ok {
			base, err := model.NewRegressifier(name)
			if err != nil {
				return err
			}
			m.base = base
		}
		return nil
	}

	if w.NumOutputs != len(w.Components) {
		return errors.NewDimensionError("MultidimensionalRegression.ImportWeights", w.NumOutputs, len(w.Components), 0)
	}
	components := make([]model.Regressifier, len(w.Components))
	for t, cw := range w.Components {
		comp, err := model.FromWeights(cw)
		if err != nil {
			return errors.Wrapf(err, "failed to import regressifier for target %d", t)
		}
		if comp.NumInputs() != w.NumInputs {
			return errors.NewDimensionError("MultidimensionalRegression.ImportWeights", w.NumInputs, comp.NumInputs(), 1)
		}
		components[t] = comp
	}

	if m.useScaling {
		if w.Scaling == nil {
			return errors.NewValueError("MultidimensionalRegression.ImportWeights", "scaling is enabled but no scaling state was saved")
		}
		in, out, err := preprocessing.ImportScaling(w.Scaling)
		if err != nil {
			return err
		}
		if in.NFeatures() != w.NumInputs || out.NFeatures() != w.NumOutputs {
			return errors.NewDimensionError("MultidimensionalRegression.ImportWeights", w.NumInputs, in.NFeatures(), 1)
		}
		m.inputScaler, m.targetScaler = in, out
	}

	m.components = components
	m.base = components[0].Clone()
	m.state.SetDimensions(w.NumInputs, w.NumOutputs, 0)
	m.state.SetFitted()
	return nil
}
