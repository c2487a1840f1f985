package log

// Model and operation context.
const (
	// ModelNameKey identifies the type of model, e.g. "LinearRegression".
	ModelNameKey = "model.name"

	// EstimatorIDKey identifies one trained pipeline instance (a UUID).
	EstimatorIDKey = "estimator.id"

	// OperationKey is the operation being performed: "fit", "predict", ...
	OperationKey = "ml.operation"

	// ComponentKey names the package doing the work, e.g. "pipeline".
	ComponentKey = "ml.component"

	// PhaseKey is the lifecycle phase: "training", "validation", ...
	PhaseKey = "ml.phase"
)

// Data shape.
const (
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"
	TargetsKey  = "data.targets"
	TargetKey   = "data.target"
	FileKey     = "data.file"
	FormatKey   = "data.format"
)

// Performance and training progress.
const (
	DurationMsKey = "perf.duration_ms"
	LossKey       = "metrics.loss"
	RMSEKey       = "metrics.rmse"
	MAEKey        = "metrics.mae"
	R2ScoreKey    = "metrics.r2_score"
	EpochKey      = "training.epoch"
	DeltaKey      = "training.delta"
	ConvergedKey  = "training.converged"
)

// Error context.
const (
	ErrorCodeKey  = "error.code"
	StacktraceKey = "error.stacktrace"
)

// Hyperparameters.
const (
	LearningRateKey = "hyperparams.learning_rate"
	MaxEpochsKey    = "hyperparams.max_epochs"
	MinChangeKey    = "hyperparams.min_change"
	RandomSeedKey   = "config.random_seed"
)

// Standard attribute values.
const (
	OperationFit  = "fit"
	OperationSave = "save"
	OperationLoad = "load"

	PhaseTraining = "training"

	ErrorNotFitted = "NOT_FITTED"
)
