// Package metrics provides regression error measures over gonum matrices.
// Column vectors (*mat.VecDense) and multi-target K×T matrices are both
// accepted.
package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/grt-lin-reg-tool/pkg/errors"
)

// checkShapes は入力検証を行い、行数と列数を返す
func checkShapes(op string, yTrue, yPred mat.Matrix) (int, int, error) {
	rTrue, cTrue := yTrue.Dims()
	rPred, cPred := yPred.Dims()

	if rTrue == 0 || cTrue == 0 {
		return 0, 0, errors.NewValueError(op, "empty input")
	}
	if rTrue != rPred {
		return 0, 0, errors.NewDimensionError(op, rTrue, rPred, 0)
	}
	if cTrue != cPred {
		return 0, 0, errors.NewDimensionError(op, cTrue, cPred, 1)
	}
	return rTrue, cTrue, nil
}

// MSE は平均二乗誤差（Mean Squared Error）を全要素について計算する
func MSE(yTrue, yPred mat.Matrix) (float64, error) {
	r, c, err := checkShapes("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	// MSE = (1/n) * Σ(yTrue - yPred)²
	var sum float64
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			diff := yTrue.At(i, j) - yPred.At(i, j)
			sum += diff * diff
		}
	}
	return sum / float64(r*c), nil
}

// RMSE は平方根平均二乗誤差（Root Mean Squared Error）を計算する
func RMSE(yTrue, yPred mat.Matrix) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// RMSEPerColumn returns one RMSE per target column.
func RMSEPerColumn(yTrue, yPred mat.Matrix) ([]float64, error) {
	r, c, err := checkShapes("RMSEPerColumn", yTrue, yPred)
	if err != nil {
		return nil, err
	}
	out := make([]float64, c)
	for j := 0; j < c; j++ {
		var sum float64
		for i := 0; i < r; i++ {
			diff := yTrue.At(i, j) - yPred.At(i, j)
			sum += diff * diff
		}
		out[j] = math.Sqrt(sum / float64(r))
	}
	return out, nil
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred mat.Matrix) (float64, error) {
	r, c, err := checkShapes("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var sum float64
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			sum += math.Abs(yTrue.At(i, j) - yPred.At(i, j))
		}
	}
	return sum / float64(r*c), nil
}

// R2Score は決定係数（R²）を計算する。複数列の場合は列ごとのR²の平均
func R2Score(yTrue, yPred mat.Matrix) (float64, error) {
	r, c, err := checkShapes("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	truth := make([]float64, r)
	var total float64
	for j := 0; j < c; j++ {
		mat.Col(truth, j, yTrue)
		yMean := stat.Mean(truth, nil)

		// 全変動（TSS）と残差変動（RSS）
		var tss, rss float64
		for i := 0; i < r; i++ {
			tss += (truth[i] - yMean) * (truth[i] - yMean)
			diff := truth[i] - yPred.At(i, j)
			rss += diff * diff
		}
		if tss == 0 {
			return 0, errors.Newf("R2Score: total sum of squares is zero in column %d (no variance in yTrue)", j)
		}
		total += 1 - rss/tss
	}
	return total / float64(c), nil
}
