package model

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/YuminosukeSato/grt-lin-reg-tool/pkg/errors"
)

// ModelWeights はモデルの重みを表す構造体（シリアライゼーション用）
type ModelWeights struct {
	// ModelType はモデルの種類（LinearRegression, MultidimensionalRegression等）
	ModelType string `json:"model_type"`

	// Version はモデルのバージョン（互換性チェック用）
	Version string `json:"version"`

	// Coefficients は重み係数
	Coefficients []float64 `json:"coefficients,omitempty"`

	// Intercept は切片
	Intercept float64 `json:"intercept"`

	// NumInputs / NumOutputs are the trained dimensions.
	NumInputs  int `json:"num_inputs"`
	NumOutputs int `json:"num_outputs"`

	// Hyperparameters はモデルのハイパーパラメータ
	Hyperparameters map[string]interface{} `json:"hyperparameters"`

	// Scaling holds min-max scaler state when the model scales its data.
	Scaling *ScalingWeights `json:"scaling,omitempty"`

	// Components are the per-target sub-models of an adapter.
	Components []*ModelWeights `json:"components,omitempty"`

	// Metadata は追加のメタデータ（学習時の統計等）
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// IsFitted はモデルが学習済みかどうか
	IsFitted bool `json:"is_fitted"`
}

// ScalingWeights is the serialised state of the input and target
// min-max scalers.
type ScalingWeights struct {
	InputMin     []float64  `json:"input_min"`
	InputMax     []float64  `json:"input_max"`
	TargetMin    []float64  `json:"target_min"`
	TargetMax    []float64  `json:"target_max"`
	FeatureRange [2]float64 `json:"feature_range"`
}

// ToJSON はModelWeightsをJSON形式にシリアライズ
func (mw *ModelWeights) ToJSON() ([]byte, error) {
	data, err := json.MarshalIndent(mw, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal model weights")
	}
	return data, nil
}

// FromJSON はJSON形式からModelWeightsをデシリアライズ
func (mw *ModelWeights) FromJSON(data []byte) error {
	if err := json.Unmarshal(data, mw); err != nil {
		return errors.Wrap(err, "failed to unmarshal model weights")
	}
	return nil
}

// Validate はModelWeightsの妥当性を検証
func (mw *ModelWeights) Validate() error {
	if mw.ModelType == "" {
		return errors.NewValidationError("model_type", "model_type is required", mw.ModelType)
	}
	if mw.Version == "" {
		return errors.NewValidationError("version", "version is required", mw.Version)
	}

	hasParams := len(mw.Coefficients) > 0 || len(mw.Components) > 0
	if !mw.IsFitted && hasParams {
		return errors.NewValidationError("is_fitted", "unfitted model should not have coefficients", mw.IsFitted)
	}
	if mw.IsFitted && !hasParams {
		return errors.NewValidationError("coefficients", "fitted model must have coefficients or components", len(mw.Coefficients))
	}
	for _, c := range mw.Coefficients {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return errors.NewValidationError("coefficients", "coefficients must be finite", c)
		}
	}
	if s := mw.Scaling; s != nil {
		if len(s.InputMin) != len(s.InputMax) || len(s.TargetMin) != len(s.TargetMax) {
			return errors.NewValidationError("scaling", "scaling min/max lengths differ", len(s.InputMin))
		}
	}
	for i, c := range mw.Components {
		if c == nil {
			return errors.NewValidationError("components", "component is nil", i)
		}
		if err := c.Validate(); err != nil {
			return errors.Wrapf(err, "component %d", i)
		}
	}
	return nil
}

// Clone はModelWeightsのディープコピーを作成
func (mw *ModelWeights) Clone() *ModelWeights {
	clone := &ModelWeights{
		ModelType:       mw.ModelType,
		Version:         mw.Version,
		Intercept:       mw.Intercept,
		NumInputs:       mw.NumInputs,
		NumOutputs:      mw.NumOutputs,
		IsFitted:        mw.IsFitted,
		Coefficients:    append([]float64(nil), mw.Coefficients...),
		Hyperparameters: make(map[string]interface{}, len(mw.Hyperparameters)),
		Metadata:        make(map[string]interface{}, len(mw.Metadata)),
	}
	for k, v := range mw.Hyperparameters {
		clone.Hyperparameters[k] = v
	}
	for k, v := range mw.Metadata {
		clone.Metadata[k] = v
	}
	if mw.Scaling != nil {
		clone.Scaling = &ScalingWeights{
			InputMin:     append([]float64(nil), mw.Scaling.InputMin...),
			InputMax:     append([]float64(nil), mw.Scaling.InputMax...),
			TargetMin:    append([]float64(nil), mw.Scaling.TargetMin...),
			TargetMax:    append([]float64(nil), mw.Scaling.TargetMax...),
			FeatureRange: mw.Scaling.FeatureRange,
		}
	}
	for _, c := range mw.Components {
		clone.Components = append(clone.Components, c.Clone())
	}
	return clone
}

// Float returns a numeric hyperparameter. JSON decoding turns every number
// into float64, so ints written before a round trip are accepted too.
func (mw *ModelWeights) Float(key string, def float64) float64 {
	switch v := mw.Hyperparameters[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return def
	}
}

// Int returns an integer hyperparameter.
func (mw *ModelWeights) Int(key string, def int) int {
	switch v := mw.Hyperparameters[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	default:
		return def
	}
}

// Int64 returns a 64-bit integer hyperparameter. Values above 2^53 do not
// survive a float64 round trip, so they are stored as decimal strings.
func (mw *ModelWeights) Int64(key string, def int64) int64 {
	switch v := mw.Hyperparameters[key].(type) {
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return def
		}
		return n
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return def
	}
}

// Bool returns a boolean hyperparameter.
func (mw *ModelWeights) Bool(key string, def bool) bool {
	if v, ok := mw.Hyperparameters[key].(bool); ok {
		return v
	}
	return def
}
