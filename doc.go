// Package grtlinreg trains linear regression models on GRT regression data
// and CSV files.
//
// The module is split into small library packages that the
// grt-lin-reg-tool command sequences:
//
//   - dataset: RegressionData plus the GRT and CSV readers and writers
//   - linear: single-target linear regression trained by stochastic gradient descent
//   - regression: multidimensional adapter fitting one model per target
//   - pipeline: training timer, scoring and JSON persistence of the trained model
//   - preprocessing: min-max scaling
//   - metrics: MSE, RMSE, MAE and R²
//   - report: training-curve plots
//   - core/model: Regressifier interfaces, weights, registry and persistence helpers
//   - core/parallel: row-range parallelism
//   - pkg/errors, pkg/log: structured errors and zerolog-backed logging
//
// # Quick Start
//
//	data := dataset.NewRegressionData()
//	if err := data.Load("train.grt"); err != nil {
//	    log.Fatal(err)
//	}
//
//	reg := linear.NewLinearRegression(
//	    linear.WithMaxEpochs(500),
//	    linear.WithMinChange(1e-5),
//	)
//	p := pipeline.New()
//	p.SetRegressifier(regression.NewMultidimensionalRegression(reg, true))
//	if err := p.Train(data); err != nil {
//	    log.Fatal(err)
//	}
//	if err := p.Save("linear-regression-model.grt"); err != nil {
//	    log.Fatal(err)
//	}
//
// # Command Line
//
//	grt-lin-reg-tool -f train.csv -n 2 -t 1 --model model.grt
//
// GRT files describe their own shape. For CSV files the number of input (-n)
// and target (-t) columns must be given.
package grtlinreg
