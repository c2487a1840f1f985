package linear

import (
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// createBenchmarkData はベンチマーク用のデータを生成する
func createBenchmarkData(rows, cols int) (*mat.Dense, *mat.Dense) {
	// シードを固定して再現性を確保
	rng := rand.New(rand.NewPCG(42, 42))

	X := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			X.Set(i, j, rng.Float64()*2.0-1.0)
		}
	}

	// y = 1 + Σ (j+1)*0.5*x_j + 小さなノイズ
	y := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		sum := 1.0
		for j := 0; j < cols; j++ {
			sum += X.At(i, j) * float64(j+1) * 0.5
		}
		sum += (rng.Float64() - 0.5) * 0.1
		y.Set(i, 0, sum)
	}

	return X, y
}

// BenchmarkLinearRegressionFit はFitメソッドのベンチマークを実行する
func BenchmarkLinearRegressionFit(b *testing.B) {
	sizes := []struct {
		name string
		rows int
		cols int
	}{
		{"Small_100x10", 100, 10},
		{"Medium_1000x10", 1000, 10},
		{"Large_5000x20", 5000, 20},
	}

	for _, size := range sizes {
		b.Run(size.name, func(b *testing.B) {
			X, y := createBenchmarkData(size.rows, size.cols)

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				lr := NewLinearRegression(
					WithMaxEpochs(100),
					WithScaling(true),
					WithRandomiseTrainingOrder(true),
					WithRandomState(1),
				)
				if err := lr.Fit(X, y); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkLinearRegressionPredict は逐次処理と並列処理の両方の閾値をまたいで予測を測定する
func BenchmarkLinearRegressionPredict(b *testing.B) {
	sizes := []struct {
		name string
		rows int
	}{
		{"Sequential_900x10", 900},
		{"Parallel_20000x10", 20000},
	}

	X, y := createBenchmarkData(500, 10)
	lr := NewLinearRegression(WithMaxEpochs(50), WithScaling(true), WithRandomState(1))
	if err := lr.Fit(X, y); err != nil {
		b.Fatal(err)
	}

	for _, size := range sizes {
		b.Run(size.name, func(b *testing.B) {
			XTest, _ := createBenchmarkData(size.rows, 10)

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := lr.Predict(XTest); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
