package operations

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Manager runs operations: it resolves the step order, executes steps one at
// a time with per-step timeout and retry, and publishes status through the
// broadcaster. One manager serves one operation kind.
type Manager struct {
	registry    *Registry
	config      *Config
	hub         WebSocketHub
	broadcaster *StatusBroadcaster

	mu         sync.RWMutex
	operations map[string]*runningOperation
}

// runningOperation pairs an in-flight operation's state with the cancel
// function that aborts its execution context.
type runningOperation struct {
	state  *OperationState
	cancel context.CancelFunc
}

// NewManager creates a manager. A nil registry or config falls back to an
// empty registry and the default config.
func NewManager(hub WebSocketHub, registry *Registry, config *Config) *Manager {
	if registry == nil {
		registry = NewRegistry()
	}
	if config == nil {
		config = NewConfig()
	}

	return &Manager{
		registry:    registry,
		config:      config,
		hub:         hub,
		broadcaster: NewStatusBroadcaster(hub, slog.Default()),
		operations:  make(map[string]*runningOperation),
	}
}

// RegisterStage registers a step with the manager's registry.
func (m *Manager) RegisterStage(step Step) error {
	return m.registry.Register(step)
}

// SetConfig replaces the manager configuration.
func (m *Manager) SetConfig(config *Config) {
	if config != nil {
		m.config = config
	}
}

// GetRegistry returns the step registry.
func (m *Manager) GetRegistry() *Registry {
	return m.registry
}

// GetBroadcaster returns the status broadcaster.
func (m *Manager) GetBroadcaster() *StatusBroadcaster {
	return m.broadcaster
}

// GetConfig returns the current configuration.
func (m *Manager) GetConfig() *Config {
	return m.config
}

// Execute runs the operation described by req and blocks until it finishes,
// fails, or is cancelled. The operation is visible to GetOperation and
// CancelOperation only while Execute is running.
func (m *Manager) Execute(ctx context.Context, req OperationRequest) (*OperationResponse, error) {
	if req.ID == "" {
		req.ID = fmt.Sprintf("operation-%d", time.Now().Unix())
	}

	state := NewOperationState(req.ID)
	for k, v := range req.Parameters {
		state.SetConfig(k, v)
	}

	// The derived context is what CancelOperation cancels: it reaches the
	// running step through the per-step timeout context.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	m.storeOperation(&runningOperation{state: state, cancel: cancel})
	defer m.removeOperation(req.ID)

	steps, err := m.resolveSteps(ctx, req)
	if err != nil {
		m.logOperationError(ctx, req.ID, err)
		state.Fail(err)
		return m.buildResponse(state), err
	}

	stepIDs := make([]string, len(steps))
	for i, step := range steps {
		state.SetStage(step.ID(), NewStepState(step.ID(), step.Name()))
		// Snapshot entries are keyed by step ID so later progress updates
		// (which also use step IDs) match.
		stepIDs[i] = step.ID()
	}

	m.broadcaster.CreateOperation(req.ID, stepIDs)
	state.Start()
	m.broadcaster.StartOperation(req.ID)

	err = m.runSteps(runCtx, state, steps)

	switch {
	case state.CurrentStatus() == OperationStatusCancelled:
		m.broadcaster.CancelOperation(req.ID)
		if err == nil {
			err = NewCancellationError("")
		}
	case err != nil:
		state.Fail(err)
		m.broadcaster.FailOperation(req.ID, err)
	default:
		state.Complete()
		m.broadcaster.CompleteOperation(req.ID, "operation completed")
	}

	return m.buildResponse(state), err
}

// resolveSteps picks the steps to run: a single registered step when the
// request names one, otherwise the full registry in dependency order.
func (m *Manager) resolveSteps(ctx context.Context, req OperationRequest) ([]Step, error) {
	stepParam, _ := req.Parameters["step"].(string)
	if stepParam != "" && stepParam != "full_pipeline" {
		step, err := m.registry.Get(stepParam)
		if err != nil {
			return nil, err
		}
		slog.InfoContext(ctx, "executing single step",
			slog.String("step_id", stepParam),
			slog.String("operation_id", req.ID))
		return []Step{step}, nil
	}

	steps, err := m.registry.GetDependencyOrder()
	if err != nil {
		return nil, fmt.Errorf("resolving step order: %w", err)
	}
	slog.InfoContext(ctx, "executing full pipeline",
		slog.Int("step_count", len(steps)),
		slog.String("operation_id", req.ID))
	return steps, nil
}

// runSteps executes the steps in order. Cancellation is re-checked between
// steps so a cancel that lands while one step runs stops the rest.
func (m *Manager) runSteps(ctx context.Context, state *OperationState, steps []Step) error {
	for i, step := range steps {
		if ctx.Err() != nil || state.CurrentStatus() == OperationStatusCancelled {
			state.Cancel()
			m.skipRemaining(state, steps[i:], "operation cancelled")
			slog.WarnContext(ctx, "operation cancelled",
				slog.String("operation_id", state.ID),
				slog.String("step", step.ID()))
			return NewCancellationError(step.ID())
		}

		stepState := state.GetStage(step.ID())
		if stepState != nil && stepState.Status == StepStatusSkipped {
			continue
		}

		// A step only runs when its predecessor finished cleanly, unless
		// the config says to push on after failures.
		if i > 0 {
			prev := state.GetStage(steps[i-1].ID())
			if prev != nil && prev.Status != StepStatusCompleted && prev.Status != StepStatusSkipped {
				if !(m.config.ContinueOnError && prev.Status == StepStatusFailed) {
					stepState.Skip(fmt.Sprintf("previous step %s not completed", steps[i-1].ID()))
					m.broadcaster.UpdateStepProgress(state.ID, step.ID(), int(stepState.Progress),
						fmt.Sprintf("skipped: previous step %s not completed", steps[i-1].ID()))
					continue
				}
			}
		}

		if err := m.runStep(ctx, state, step); err != nil {
			m.logStepError(ctx, state.ID, step.ID(), err)
			if !m.config.ContinueOnError {
				m.skipDependents(state, steps, step.ID())
				return err
			}
			slog.WarnContext(ctx, "step failed, continuing",
				slog.String("operation_id", state.ID),
				slog.String("step", step.ID()),
				slog.String("error", err.Error()))
		}
	}
	return nil
}

// runStep executes one step with dependency check, validation, timeout, and
// retry.
func (m *Manager) runStep(ctx context.Context, state *OperationState, step Step) error {
	m.logStepStart(ctx, state.ID, step.ID())

	stepState := state.GetStage(step.ID())
	if stepState == nil {
		return NewFatalError("step state not found", nil)
	}

	if err := m.checkDependencies(state, step); err != nil {
		stepState.Skip(fmt.Sprintf("dependencies not met: %v", err))
		m.broadcaster.UpdateStepProgress(state.ID, step.ID(), int(stepState.Progress),
			fmt.Sprintf("skipped: dependencies not met: %v", err))
		return err
	}

	if err := step.Validate(state); err != nil {
		stepState.Skip(fmt.Sprintf("validation failed: %v", err))
		m.broadcaster.UpdateStepProgress(state.ID, step.ID(), int(stepState.Progress),
			fmt.Sprintf("skipped: validation failed: %v", err))
		return NewValidationError(step.ID(), err.Error())
	}

	timeout := m.config.GetStageTimeout(step.ID())
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Steps surface their own progress through ReportProgress.
	stepCtx = withProgress(stepCtx, func(percent int, message string) {
		stepState.UpdateProgress(float64(percent), message)
		m.broadcaster.UpdateStepProgress(state.ID, step.ID(), percent, message)
	})

	retryConfig := m.config.RetryConfig
	var lastErr error

	for attempt := 1; attempt <= retryConfig.MaxAttempts; attempt++ {
		stepState.Start()
		m.broadcaster.UpdateStepProgress(state.ID, step.ID(), int(stepState.Progress), "step started")

		startTime := time.Now()
		err := step.Execute(stepCtx, state)
		duration := time.Since(startTime)

		if err == nil {
			m.logStepComplete(ctx, state.ID, step.ID(), duration)
			stepState.Complete()
			m.broadcaster.CompleteStep(state.ID, step.ID(), "step completed")
			return nil
		}

		slog.ErrorContext(ctx, "step execution failed",
			slog.String("operation_id", state.ID),
			slog.String("step", step.ID()),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()),
			slog.Any("metadata", stepState.MetaSnapshot()))

		lastErr = err

		if !IsRetryable(err) || attempt >= retryConfig.MaxAttempts {
			stepState.Fail(err)
			m.broadcaster.UpdateStepProgress(state.ID, step.ID(), int(stepState.Progress),
				fmt.Sprintf("step failed: %v", err))
			return WrapError(err, step.ID(), "step execution failed")
		}

		delay := retryDelay(attempt, retryConfig)
		slog.WarnContext(ctx, "retrying step",
			slog.String("operation_id", state.ID),
			slog.String("step", step.ID()),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", retryConfig.MaxAttempts),
			slog.Duration("delay", delay))

		select {
		case <-time.After(delay):
		case <-stepCtx.Done():
			timeoutErr := NewTimeoutError(step.ID(), timeout.String())
			stepState.Fail(timeoutErr)
			m.broadcaster.UpdateStepProgress(state.ID, step.ID(), int(stepState.Progress),
				fmt.Sprintf("step aborted while waiting to retry: %v", stepCtx.Err()))
			return timeoutErr
		}
	}

	stepState.Fail(lastErr)
	m.broadcaster.UpdateStepProgress(state.ID, step.ID(), int(stepState.Progress),
		fmt.Sprintf("step failed after %d attempts: %v", retryConfig.MaxAttempts, lastErr))
	return WrapError(lastErr, step.ID(), "step execution failed after retries")
}

// skipDependents marks every pending step that depends (directly or
// transitively) on the failed step as skipped.
func (m *Manager) skipDependents(state *OperationState, steps []Step, failedID string) {
	for _, step := range steps {
		for _, dep := range step.GetDependencies() {
			if dep != failedID {
				continue
			}
			stepState := state.GetStage(step.ID())
			if stepState != nil && stepState.Status == StepStatusPending {
				stepState.Skip(fmt.Sprintf("dependency %s failed", failedID))
				m.broadcaster.UpdateStepProgress(state.ID, step.ID(), int(stepState.Progress),
					fmt.Sprintf("skipped: dependency %s failed", failedID))
				m.skipDependents(state, steps, step.ID())
			}
			break
		}
	}
}

// skipRemaining marks all still-pending steps in the slice as skipped.
func (m *Manager) skipRemaining(state *OperationState, steps []Step, reason string) {
	for _, step := range steps {
		stepState := state.GetStage(step.ID())
		if stepState != nil && stepState.Status == StepStatusPending {
			stepState.Skip(reason)
			m.broadcaster.UpdateStepProgress(state.ID, step.ID(), int(stepState.Progress),
				"skipped: "+reason)
		}
	}
}

// checkDependencies verifies every declared dependency completed.
func (m *Manager) checkDependencies(state *OperationState, step Step) error {
	for _, dep := range step.GetDependencies() {
		depState := state.GetStage(dep)
		if depState == nil {
			return fmt.Errorf("dependency %s not found", dep)
		}
		if depState.Status != StepStatusCompleted {
			return fmt.Errorf("dependency %s not completed (status: %s)", dep, depState.Status)
		}
	}
	return nil
}

// retryDelay returns the backoff before the next attempt: the initial delay
// grows by the multiplier for each retry already taken, capped at MaxDelay.
func retryDelay(attempt int, config RetryConfig) time.Duration {
	delay := config.InitialDelay
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * config.Multiplier)
		if delay >= config.MaxDelay {
			return config.MaxDelay
		}
	}
	if delay > config.MaxDelay {
		delay = config.MaxDelay
	}
	return delay
}

// buildResponse snapshots the final state into a response.
func (m *Manager) buildResponse(state *OperationState) *OperationResponse {
	resp := &OperationResponse{
		ID:       state.ID,
		Status:   state.CurrentStatus(),
		Duration: state.Duration(),
		Steps:    state.Steps,
	}
	if state.Error != nil {
		resp.Error = state.Error.Error()
	}
	return resp
}

// GetOperation returns a snapshot of a running operation.
func (m *Manager) GetOperation(id string) (*OperationState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	op, exists := m.operations[id]
	if !exists {
		return nil, fmt.Errorf("operation %s not found", id)
	}
	return op.state.Clone(), nil
}

// ListOperations returns snapshots of all running operations.
func (m *Manager) ListOperations() []*OperationState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	operations := make([]*OperationState, 0, len(m.operations))
	for _, op := range m.operations {
		operations = append(operations, op.state.Clone())
	}
	return operations
}

// CancelOperation aborts a running operation. The state flips to cancelled
// immediately; cancelling the execution context interrupts the step that is
// currently running, and the manager skips the rest.
func (m *Manager) CancelOperation(id string) error {
	m.mu.Lock()
	op, exists := m.operations[id]
	m.mu.Unlock()

	if !exists {
		return fmt.Errorf("operation %s not found", id)
	}

	op.state.Cancel()
	op.cancel()
	return nil
}

func (m *Manager) storeOperation(op *runningOperation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operations[op.state.ID] = op
}

func (m *Manager) removeOperation(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.operations, id)
}
