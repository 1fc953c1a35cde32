package cli

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"pricepipe/internal/config"
	"pricepipe/internal/operations"
	"pricepipe/internal/tracking"
)

// operationResult is the JSON shape printed after a pipeline finishes.
type operationResult struct {
	ID       string             `json:"id"`
	Kind     string             `json:"kind"`
	Status   string             `json:"status"`
	Duration string             `json:"duration"`
	Steps    []stepResult       `json:"steps"`
	RunID    string             `json:"run_id,omitempty"`
	Metrics  map[string]float64 `json:"metrics,omitempty"`
	Error    string             `json:"error,omitempty"`
}

type stepResult struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// executeOperation runs a pipeline of the named kind to completion and
// prints the result. Training operations are recorded in the tracking
// store like server-side runs.
func executeOperation(ctx context.Context, kind string, step string, params map[string]interface{}) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	tracker, err := openTracker(cfg)
	if err != nil {
		return err
	}
	defer closeTracker(tracker)

	deps := operations.StageDeps{
		Paths:    cfg.Paths,
		Pipeline: cfg.Pipeline,
		Tracker:  tracker,
		Logger:   logger,
	}
	manager := operations.NewManager(nil, nil, operationConfig(cfg))

	var register func(*operations.Manager, operations.StageDeps) error
	switch kind {
	case "training":
		register = operations.RegisterTrainingSteps
	case "eda":
		register = operations.RegisterEDASteps
	case "deploy":
		register = operations.RegisterDeploySteps
	default:
		return fmt.Errorf("unknown operation kind %q", kind)
	}
	if err := register(manager, deps); err != nil {
		return fmt.Errorf("registering %s steps: %w", kind, err)
	}

	if params == nil {
		params = make(map[string]interface{})
	}
	if step != "" {
		params["step"] = step
	}

	id := uuid.New().String()

	var run *tracking.Run
	if kind == "training" {
		run, err = tracker.CreateRun(id, kind)
		if err != nil {
			return fmt.Errorf("creating tracking run: %w", err)
		}
		params[operations.ContextKeyRunID] = run.ID
	}

	start := time.Now()
	resp, execErr := manager.Execute(ctx, operations.OperationRequest{
		ID:         id,
		Parameters: params,
	})

	if run != nil {
		errMsg := ""
		if execErr != nil {
			errMsg = execErr.Error()
		}
		if ferr := tracker.FinishRun(run.ID, errMsg); ferr != nil {
			fmt.Printf("warning: finishing tracking run: %v\n", ferr)
		}
	}

	result := operationResult{
		ID:       id,
		Kind:     kind,
		Status:   string(operations.OperationStatusFailed),
		Duration: time.Since(start).Round(time.Millisecond).String(),
	}
	if resp != nil {
		result.Status = string(resp.Status)
		result.Error = resp.Error
		result.Steps = collectSteps(resp.Steps)
	}
	if execErr != nil && result.Error == "" {
		result.Error = execErr.Error()
	}
	if run != nil {
		result.RunID = run.ID
		if finished, err := tracker.GetRun(run.ID); err == nil {
			result.Metrics = finished.Metrics
		}
	}

	if isJSON() {
		if err := printJSON(result); err != nil {
			return err
		}
	} else {
		printOperationResult(result)
	}

	if execErr != nil {
		return fmt.Errorf("%s operation failed: %w", kind, execErr)
	}
	return nil
}

// operationConfig builds the step execution config from the pipeline settings.
func operationConfig(cfg *config.Config) *operations.Config {
	opConfig := operations.NewConfig()
	if cfg.Pipeline.StepTimeout > 0 {
		for _, id := range []string{
			operations.StageIDIngest, operations.StageIDClean, operations.StageIDFeatures,
			operations.StageIDOutliers, operations.StageIDSplit, operations.StageIDTrain,
			operations.StageIDEvaluate, operations.StageIDReport, operations.StageIDDeploy,
		} {
			opConfig.SetStageTimeout(id, cfg.Pipeline.StepTimeout)
		}
	}
	if cfg.Pipeline.MaxRetries > 0 {
		opConfig.RetryConfig.MaxAttempts = cfg.Pipeline.MaxRetries
	}
	return opConfig
}

// collectSteps flattens step states into a stable, start-ordered list.
func collectSteps(steps map[string]*operations.StepState) []stepResult {
	ordered := make([]*operations.StepState, 0, len(steps))
	for _, s := range steps {
		ordered = append(ordered, s)
	}
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		switch {
		case a.StartTime == nil && b.StartTime == nil:
			return a.ID < b.ID
		case a.StartTime == nil:
			return false
		case b.StartTime == nil:
			return true
		case a.StartTime.Equal(*b.StartTime):
			return a.ID < b.ID
		default:
			return a.StartTime.Before(*b.StartTime)
		}
	})

	out := make([]stepResult, 0, len(ordered))
	for _, s := range ordered {
		out = append(out, stepResult{
			ID:      s.ID,
			Name:    s.Name,
			Status:  string(s.Status),
			Message: s.Message,
		})
	}
	return out
}
