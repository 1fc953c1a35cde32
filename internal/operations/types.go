package operations

import (
	"time"
)

// Step identifiers.
const (
	StageIDIngest   = "ingest"
	StageIDClean    = "clean"
	StageIDFeatures = "features"
	StageIDOutliers = "outliers"
	StageIDSplit    = "split"
	StageIDTrain    = "train"
	StageIDEvaluate = "evaluate"
	StageIDReport   = "report"
	StageIDDeploy   = "deploy"
)

// Human-readable step names.
const (
	StageNameIngest   = "Data Ingestion"
	StageNameClean    = "Missing Value Handling"
	StageNameFeatures = "Feature Engineering"
	StageNameOutliers = "Outlier Handling"
	StageNameSplit    = "Train/Test Split"
	StageNameTrain    = "Model Training"
	StageNameEvaluate = "Model Evaluation"
	StageNameReport   = "Exploratory Report"
	StageNameDeploy   = "Model Deployment"
)

// Context keys used to pass data between steps through OperationState.
const (
	ContextKeySourcePath    = "source_path"
	ContextKeyArchiveMember = "archive_member"
	ContextKeyTarget        = "target"
	ContextKeyDataset       = "dataset"
	ContextKeyChain         = "chain"
	ContextKeyTrainSet      = "train_set"
	ContextKeyTestSet       = "test_set"
	ContextKeyModel         = "model"
	ContextKeyArtifactPath  = "artifact_path"
	ContextKeyModelID       = "model_id"
	ContextKeyRunID         = "run_id"
	ContextKeyMetrics       = "metrics"
	ContextKeyRowsIngested  = "rows_ingested"
	ContextKeyRowsRemoved   = "rows_removed"
	ContextKeyReportPath    = "report_path"
)

// Default per-step timeouts.
const (
	DefaultStageTimeout  = 5 * time.Minute
	DefaultIngestTimeout = 10 * time.Minute
	DefaultTrainTimeout  = 15 * time.Minute
)

// RetryConfig defines retry behavior for retryable step failures.
type RetryConfig struct {
	MaxAttempts  int           `json:"max_attempts"`
	InitialDelay time.Duration `json:"initial_delay"`
	MaxDelay     time.Duration `json:"max_delay"`
	Multiplier   float64       `json:"multiplier"`
}

// NewRetryConfig returns the default retry configuration.
func NewRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// OperationRequest asks the manager to execute an operation. A "step"
// parameter naming a registered step runs just that step.
type OperationRequest struct {
	ID         string                 `json:"id"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// OperationResponse is the outcome of an operation execution.
type OperationResponse struct {
	ID       string                `json:"id"`
	Status   OperationStatusValue  `json:"status"`
	Duration time.Duration         `json:"duration"`
	Steps    map[string]*StepState `json:"steps"`
	Error    string                `json:"error,omitempty"`
}
