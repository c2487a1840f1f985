// Package preprocessing provides the min-max scaler that regression models
// use to map inputs and targets into a fixed range before training.
package preprocessing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/grt-lin-reg-tool/core/model"
	"github.com/YuminosukeSato/grt-lin-reg-tool/core/parallel"
	"github.com/YuminosukeSato/grt-lin-reg-tool/pkg/errors"
)

// constantRangeEpsilon below which a column is treated as constant.
const constantRangeEpsilon = 1e-8

// MinMaxScaler はデータを指定した範囲（デフォルト[0,1]）にスケーリングする
type MinMaxScaler struct {
	state *model.StateManager

	// DataMin は学習データ（または外部指定範囲）の最小値
	DataMin []float64

	// DataMax は学習データ（または外部指定範囲）の最大値
	DataMax []float64

	// Scale は各特徴量のスケール (max - min)。定数列では1
	Scale []float64

	// FeatureRange はスケーリング後の範囲 [min, max]
	FeatureRange [2]float64
}

// NewMinMaxScaler は新しいMinMaxScalerを作成する
//
// 使用例:
//
//	scaler := preprocessing.NewMinMaxScaler([2]float64{0.0, 1.0})
//	err := scaler.Fit(X)
//	XScaled, err := scaler.Transform(X)
func NewMinMaxScaler(featureRange [2]float64) *MinMaxScaler {
	return &MinMaxScaler{
		state:        model.NewStateManager(),
		FeatureRange: featureRange,
	}
}

// NewMinMaxScalerDefault はデフォルト設定([0,1]範囲)でMinMaxScalerを作成する
func NewMinMaxScalerDefault() *MinMaxScaler {
	return NewMinMaxScaler([2]float64{0.0, 1.0})
}

// Fit は訓練データから各列の最小値・最大値を計算する
func (m *MinMaxScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("MinMaxScaler.Fit", "empty data", errors.ErrEmptyData)
	}

	ranges := make([][2]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		ranges[j] = [2]float64{floats.Min(col), floats.Max(col)}
	}
	return m.FitRanges(ranges)
}

// FitRanges sets the scaler from explicit per-column [min, max] ranges
// instead of observed data. Datasets that declare external ranges use it.
func (m *MinMaxScaler) FitRanges(ranges [][2]float64) error {
	if len(ranges) == 0 {
		return errors.NewModelError("MinMaxScaler.FitRanges", "no ranges", errors.ErrEmptyData)
	}
	if m.FeatureRange[1] <= m.FeatureRange[0] {
		return errors.NewValidationError("feature_range", "max must be greater than min", m.FeatureRange)
	}

	c := len(ranges)
	m.DataMin = make([]float64, c)
	m.DataMax = make([]float64, c)
	m.Scale = make([]float64, c)
	for j, rg := range ranges {
		if math.IsNaN(rg[0]) || math.IsNaN(rg[1]) || rg[1] < rg[0] {
			return errors.NewValidationError("ranges", fmt.Sprintf("invalid range for column %d", j), rg)
		}
		m.DataMin[j] = rg[0]
		m.DataMax[j] = rg[1]
		if span := rg[1] - rg[0]; span < constantRangeEpsilon {
			// 定数特徴量の場合、スケールを1に設定
			m.Scale[j] = 1.0
		} else {
			m.Scale[j] = span
		}
	}

	m.state.SetDimensions(c, c, 0)
	m.state.SetFitted()
	return nil
}

// IsFitted reports whether Fit or FitRanges has succeeded.
func (m *MinMaxScaler) IsFitted() bool {
	return m.state.IsFitted()
}

// NFeatures returns the number of columns the scaler was fitted on.
func (m *MinMaxScaler) NFeatures() int {
	n, _, _ := m.state.GetDimensions()
	return n
}

// Ranges returns the fitted [min, max] per column.
func (m *MinMaxScaler) Ranges() [][2]float64 {
	out := make([][2]float64, len(m.DataMin))
	for j := range out {
		out[j] = [2]float64{m.DataMin[j], m.DataMax[j]}
	}
	return out
}

// Transform は学習済みの範囲を使ってデータをスケーリングする
func (m *MinMaxScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	return m.apply("Transform", X, m.ScaleValue)
}

// FitTransform は訓練データで学習し、同じデータを変換する
func (m *MinMaxScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := m.Fit(X); err != nil {
		return nil, err
	}
	return m.Transform(X)
}

// InverseTransform はスケーリングされたデータを元の範囲に戻す
func (m *MinMaxScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	return m.apply("InverseTransform", X, m.UnscaleValue)
}

// ScaleValue maps v from column j's data range into FeatureRange.
func (m *MinMaxScaler) ScaleValue(j int, v float64) float64 {
	width := m.FeatureRange[1] - m.FeatureRange[0]
	return (v-m.DataMin[j])/m.Scale[j]*width + m.FeatureRange[0]
}

// UnscaleValue is the inverse of ScaleValue.
func (m *MinMaxScaler) UnscaleValue(j int, v float64) float64 {
	width := m.FeatureRange[1] - m.FeatureRange[0]
	return (v-m.FeatureRange[0])/width*m.Scale[j] + m.DataMin[j]
}

func (m *MinMaxScaler) apply(method string, X mat.Matrix, f func(j int, v float64) float64) (mat.Matrix, error) {
	if err := m.state.RequireFitted("MinMaxScaler", method); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := m.state.RequireInputs("MinMaxScaler."+method, c); err != nil {
		return nil, err
	}

	result := mat.NewDense(r, c, nil)
	err := parallel.RowsWithThreshold(r, parallel.DefaultRowThreshold, func(start, end int) error {
		for i := start; i < end; i++ {
			for j := 0; j < c; j++ {
				result.Set(i, j, f(j, X.At(i, j)))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// String はスケーラーの文字列表現を返す
func (m *MinMaxScaler) String() string {
	if !m.IsFitted() {
		return fmt.Sprintf("MinMaxScaler(feature_range=[%.1f, %.1f])",
			m.FeatureRange[0], m.FeatureRange[1])
	}
	return fmt.Sprintf("MinMaxScaler(feature_range=[%.1f, %.1f], n_features=%d)",
		m.FeatureRange[0], m.FeatureRange[1], m.NFeatures())
}

// ExportScaling packs a fitted input/target scaler pair into the weight
// envelope. It returns nil when either scaler is unfitted.
func ExportScaling(input, target *MinMaxScaler) *model.ScalingWeights {
	if input == nil || target == nil || !input.IsFitted() || !target.IsFitted() {
		return nil
	}
	return &model.ScalingWeights{
		InputMin:     append([]float64(nil), input.DataMin...),
		InputMax:     append([]float64(nil), input.DataMax...),
		TargetMin:    append([]float64(nil), target.DataMin...),
		TargetMax:    append([]float64(nil), target.DataMax...),
		FeatureRange: input.FeatureRange,
	}
}

// ImportScaling rebuilds the scaler pair written by ExportScaling.
func ImportScaling(s *model.ScalingWeights) (input, target *MinMaxScaler, err error) {
	if s == nil {
		return nil, nil, errors.NewValueError("ImportScaling", "scaling weights are nil")
	}
	input = NewMinMaxScaler(s.FeatureRange)
	if err := input.FitRanges(zipRanges(s.InputMin, s.InputMax)); err != nil {
		return nil, nil, errors.Wrap(err, "input scaler")
	}
	target = NewMinMaxScaler(s.FeatureRange)
	if err := target.FitRanges(zipRanges(s.TargetMin, s.TargetMax)); err != nil {
		return nil, nil, errors.Wrap(err, "target scaler")
	}
	return input, target, nil
}

func zipRanges(mins, maxs []float64) [][2]float64 {
	n := min(len(mins), len(maxs))
	out := make([][2]float64, n)
	for i := 0; i < n; i++ {
		out[i] = [2]float64{mins[i], maxs[i]}
	}
	return out
}
