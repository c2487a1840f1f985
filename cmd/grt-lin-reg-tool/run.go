package main

import (
	"io"
	"strconv"
	"sync"

	"github.com/cheggaaa/pb/v3"
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/grt-lin-reg-tool/core/model"
	"github.com/YuminosukeSato/grt-lin-reg-tool/dataset"
	"github.com/YuminosukeSato/grt-lin-reg-tool/linear"
	"github.com/YuminosukeSato/grt-lin-reg-tool/pkg/log"
	"github.com/YuminosukeSato/grt-lin-reg-tool/pipeline"
	"github.com/YuminosukeSato/grt-lin-reg-tool/regression"
	"github.com/YuminosukeSato/grt-lin-reg-tool/report"
)

const toolName = "grt-lin-reg-tool"

// Fixed model configuration.
const (
	defaultModelFilename = "linear-regression-model.grt"
	maxEpochs            = 500
	minChange            = 1.0e-5
	useValidationSet     = true
	validationSetSize    = 20
	randomiseOrder       = true
	useScaling           = true
)

const (
	exitSuccess = 0
	exitFailure = 1
)

type options struct {
	filename      string
	modelFilename string
	numInputs     string
	numTargets    string
	plotFilename  string
	progress      bool
}

// lockedWriter serializes the progress bar's refresh goroutine with log
// records sharing the same stream.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func run(args []string, stdout, stderr io.Writer) int {
	stderr = &lockedWriter{w: stderr}
	logger := log.NewConsoleLogger(toolName, stdout, stderr, log.LevelInfo)
	restore := log.InstallWarningSink(logger)
	defer restore()

	if len(args) < 2 {
		logger.Error("Not enough input arguments!")
		printUsage(logger)
		return exitFailure
	}

	var opts options
	trained := false
	// Flags are parsed in RunE so that -h/--help is an ignored flag like any
	// other unknown one instead of cobra's help short-circuit.
	cmd := &cobra.Command{
		Use:                toolName,
		Args:               cobra.ArbitraryArgs,
		SilenceErrors:      true,
		SilenceUsage:       true,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			flags.ParseErrorsWhitelist.UnknownFlags = true
			if err := flags.Parse(args); err != nil {
				return err
			}
			trained = train(cmd, &opts, logger, stderr)
			return nil
		},
	}
	cmd.SetArgs(args[1:])
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetHelpFunc(func(*cobra.Command, []string) { printUsage(logger) })

	flags := cmd.Flags()
	flags.StringVarP(&opts.filename, "filename", "f", "", "training data file (GRT RegressionData or CSV)")
	flags.StringVarP(&opts.numInputs, "num-input-dimensions", "n", "", "number of input dimensions (CSV only)")
	flags.StringVarP(&opts.numTargets, "num-target-dimensions", "t", "", "number of target dimensions (CSV only)")
	flags.StringVar(&opts.modelFilename, "model", "", "file the trained model is saved to")
	flags.StringVar(&opts.plotFilename, "plot", "", "file the training curve is drawn to (png, svg or pdf)")
	flags.BoolVar(&opts.progress, "progress", false, "show an epoch progress bar on stderr")

	if err := cmd.Execute(); err != nil {
		logger.Error("Failed to parse the command line!", err)
	}

	if trained {
		logger.Info("Model Trained!")
		return exitSuccess
	}
	logger.Error("Failed to train model!")
	printUsage(logger)
	return exitFailure
}

func printUsage(logger log.Logger) {
	logger.Info(toolName + " [options]")
	logger.Info("\t-f: sets the filename the training data will be loaded from. The training data can either be a GRT RegressionData file or a CSV file.")
	logger.Info("\t-n: sets the number of input dimensions in the dataset, only required if the input data format is a CSV file.")
	logger.Info("\t-t: sets the number of target dimensions in the dataset, only required if the input data format is a CSV file.")
	logger.Info("\t--model: sets the filename the regression model will be saved to")
	logger.Info("\t--plot: optional, draws the training curve to this file (png, svg or pdf)")
	logger.Info("\t--progress: optional, shows an epoch progress bar")
}

// parseDimension accepts non-negative integers only.
func parseDimension(s string) (int, bool) {
	v, err := strconv.ParseUint(s, 10, 31)
	if err != nil {
		return 0, false
	}
	return int(v), true
}

func train(cmd *cobra.Command, opts *options, logger log.Logger, stderr io.Writer) bool {
	logger.Info("Training regression model...")

	if !cmd.Flags().Changed("filename") || opts.filename == "" {
		logger.Error("Failed to parse filename from command line! You can set the filename using the -f.")
		printUsage(logger)
		return false
	}
	modelFilename := opts.modelFilename
	if modelFilename == "" {
		modelFilename = defaultModelFilename
	}

	data := dataset.NewRegressionData()
	n, okN := parseDimension(opts.numInputs)
	t, okT := parseDimension(opts.numTargets)
	if okN && okT {
		logger.Info("num input dimensions: " + strconv.Itoa(n) + " num target dimensions: " + strconv.Itoa(t))
		if err := data.SetInputAndTargetDimensions(n, t); err != nil {
			logger.Warn("Failed to set the input and target dimensions!", err)
		}
	}

	logger.Info("- Loading Training Data...")
	if err := data.Load(opts.filename); err != nil {
		logger.Error("Failed to load training data!", err)
		return false
	}

	logger.Info("- Num training samples: " + strconv.Itoa(data.NumSamples()))
	logger.Info("- Num input dimensions: " + strconv.Itoa(data.NumInputDimensions()))
	logger.Info("- Num target dimensions: " + strconv.Itoa(data.NumTargetDimensions()))

	reg := linear.NewLinearRegression(
		linear.WithMaxEpochs(maxEpochs),
		linear.WithMinChange(minChange),
		linear.WithUseValidationSet(useValidationSet),
		linear.WithValidationSetSize(validationSetSize),
		linear.WithRandomiseTrainingOrder(randomiseOrder),
		linear.WithScaling(useScaling),
	)

	pipelineOpts := []pipeline.Option{pipeline.WithLogger(logger)}
	var bar *pb.ProgressBar
	if opts.progress {
		bar = pb.New(maxEpochs * data.NumTargetDimensions())
		bar.SetWriter(stderr)
		bar.Start()
		pipelineOpts = append(pipelineOpts, pipeline.WithEpochObserver(func(model.EpochRecord) { bar.Increment() }))
	}

	p := pipeline.New(pipelineOpts...)
	p.SetRegressifier(regression.NewMultidimensionalRegression(reg, true))

	logger.Info("- Training model...")
	err := p.Train(data)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		logger.Error("Failed to train model!", err)
		return false
	}

	logger.Info("- Model trained!")
	logger.Info("- Saving model to: " + modelFilename)
	if err := p.Save(modelFilename); err != nil {
		logger.Warn("Failed to save model to file: "+modelFilename, err)
	} else {
		logger.Info("- Model saved.")
	}

	logger.Info("- TrainingTime: " + strconv.FormatInt(p.TrainingTime().Milliseconds(), 10))

	if opts.plotFilename != "" {
		if err := report.PlotTrainingCurve(p.TrainingHistory(), opts.plotFilename); err != nil {
			logger.Warn("Failed to save training curve to file: "+opts.plotFilename, err)
		} else {
			logger.Info("- Training curve saved to: " + opts.plotFilename)
		}
	}
	return true
}
