package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"pricepipe/internal/config"
	"pricepipe/internal/infrastructure"
	"pricepipe/internal/operations"
	"pricepipe/internal/tracking"
)

// OperationKind identifies a runnable pipeline flavour.
type OperationKind string

const (
	OperationTraining OperationKind = "training"
	OperationEDA      OperationKind = "eda"
	OperationDeploy   OperationKind = "deploy"
)

// ParseOperationKind validates a client supplied operation kind.
func ParseOperationKind(s string) (OperationKind, error) {
	switch OperationKind(s) {
	case OperationTraining, OperationEDA, OperationDeploy:
		return OperationKind(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownOperation, s)
}

// StepStatus is the transport view of a single executed step.
type StepStatus struct {
	ID       string                 `json:"id"`
	Name     string                 `json:"name"`
	Status   string                 `json:"status"`
	Progress float64                `json:"progress"`
	Message  string                 `json:"message,omitempty"`
	Error    string                 `json:"error,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// OperationStatus is the transport view of an operation, live or finished.
type OperationStatus struct {
	ID         string        `json:"id"`
	Kind       OperationKind `json:"kind"`
	RunID      string        `json:"run_id,omitempty"`
	Status     string        `json:"status"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	Steps      []StepStatus  `json:"steps,omitempty"`
}

// operationRecord is the service's own bookkeeping for one started
// operation. The manager discards state once execution returns, so
// finished operations live here.
type operationRecord struct {
	id         string
	kind       OperationKind
	runID      string
	status     operations.OperationStatusValue
	err        string
	startedAt  time.Time
	finishedAt *time.Time
	steps      []StepStatus
}

// OperationService owns one manager per operation kind and runs
// operations asynchronously on behalf of the transport layer.
type OperationService struct {
	managers map[OperationKind]*operations.Manager
	tracker  *tracking.Store
	metrics  *infrastructure.Metrics
	logger   *slog.Logger

	mu      sync.RWMutex
	records map[string]*operationRecord
}

// NewOperationService wires the per-kind managers and registers their steps.
func NewOperationService(cfg *config.Config, tracker *tracking.Store, hub operations.WebSocketHub, metrics *infrastructure.Metrics, logger *slog.Logger) (*OperationService, error) {
	if logger == nil {
		logger = slog.Default()
	}

	deps := operations.StageDeps{
		Paths:    cfg.Paths,
		Pipeline: cfg.Pipeline,
		Tracker:  tracker,
		Logger:   logger,
	}

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

	managers := make(map[OperationKind]*operations.Manager, 3)
	registrars := map[OperationKind]func(*operations.Manager, operations.StageDeps) error{
		OperationTraining: operations.RegisterTrainingSteps,
		OperationEDA:      operations.RegisterEDASteps,
		OperationDeploy:   operations.RegisterDeploySteps,
	}
	for kind, register := range registrars {
		m := operations.NewManager(hub, nil, opConfig)
		if err := register(m, deps); err != nil {
			return nil, fmt.Errorf("registering %s steps: %w", kind, err)
		}
		managers[kind] = m
	}

	return &OperationService{
		managers: managers,
		tracker:  tracker,
		metrics:  metrics,
		logger:   logger,
		records:  make(map[string]*operationRecord),
	}, nil
}

// StartOperation launches an operation of the given kind and returns
// immediately with its status. Execution continues in the background.
func (s *OperationService) StartOperation(ctx context.Context, kind OperationKind, params map[string]interface{}) (*OperationStatus, error) {
	manager, ok := s.managers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, kind)
	}

	id := uuid.New().String()
	record := &operationRecord{
		id:        id,
		kind:      kind,
		status:    operations.OperationStatusRunning,
		startedAt: time.Now(),
	}

	if params == nil {
		params = make(map[string]interface{})
	}

	// Training operations get a tracking run so their parameters,
	// metrics and model land in the store.
	if kind == OperationTraining && s.tracker != nil {
		run, err := s.tracker.CreateRun(id, string(kind))
		if err != nil {
			return nil, fmt.Errorf("creating tracking run: %w", err)
		}
		record.runID = run.ID
		params[operations.ContextKeyRunID] = run.ID
	}

	s.mu.Lock()
	s.records[id] = record
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.OperationsStarted.WithLabelValues(string(kind)).Inc()
	}

	s.logger.InfoContext(ctx, "operation started",
		slog.String("operation_id", id),
		slog.String("kind", string(kind)))

	// Detach execution from the request context; a closed HTTP
	// connection must not cancel a running pipeline.
	go s.run(context.Background(), manager, record, params)

	return s.snapshot(record), nil
}

func (s *OperationService) run(ctx context.Context, manager *operations.Manager, record *operationRecord, params map[string]interface{}) {
	resp, err := manager.Execute(ctx, operations.OperationRequest{
		ID:         record.id,
		Parameters: params,
	})

	s.mu.Lock()
	now := time.Now()
	record.finishedAt = &now
	if resp != nil {
		record.status = resp.Status
		record.err = resp.Error
		record.steps = stepStatuses(resp.Steps)
	} else {
		record.status = operations.OperationStatusFailed
	}
	if err != nil && record.err == "" {
		record.err = err.Error()
	}
	status := record.status
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.OperationsFinished.WithLabelValues(string(record.kind), string(status)).Inc()
		if resp != nil {
			for _, step := range resp.Steps {
				if step.StartTime != nil {
					s.metrics.ObserveStep(step.ID, string(step.Status), step.Duration())
				}
			}
		}
	}

	if record.runID != "" && s.tracker != nil {
		if ferr := s.tracker.FinishRun(record.runID, record.err); ferr != nil {
			s.logger.Error("finishing tracking run",
				slog.String("run_id", record.runID),
				slog.String("error", ferr.Error()))
		}
	}

	if err != nil {
		s.logger.Error("operation failed",
			slog.String("operation_id", record.id),
			slog.String("kind", string(record.kind)),
			slog.String("error", err.Error()))
		return
	}
	s.logger.Info("operation finished",
		slog.String("operation_id", record.id),
		slog.String("kind", string(record.kind)),
		slog.String("status", string(status)))
}

// GetOperation returns the status of a single operation. Running
// operations report live step state from the manager.
func (s *OperationService) GetOperation(ctx context.Context, id string) (*OperationStatus, error) {
	s.mu.RLock()
	record, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrOperationNotFound
	}

	if manager := s.managers[record.kind]; manager != nil {
		if state, err := manager.GetOperation(id); err == nil {
			return s.liveSnapshot(record, state), nil
		}
	}
	return s.snapshot(record), nil
}

// ListOperations returns all known operations, newest first.
func (s *OperationService) ListOperations(ctx context.Context) []*OperationStatus {
	s.mu.RLock()
	out := make([]*OperationStatus, 0, len(s.records))
	for _, record := range s.records {
		out = append(out, s.snapshotLocked(record))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}

// CancelOperation stops a running operation.
func (s *OperationService) CancelOperation(ctx context.Context, id string) error {
	s.mu.RLock()
	record, ok := s.records[id]
	finished := ok && record.finishedAt != nil
	s.mu.RUnlock()
	if !ok {
		return ErrOperationNotFound
	}
	if finished {
		return ErrOperationFinished
	}

	manager := s.managers[record.kind]
	if manager == nil {
		return ErrOperationNotFound
	}
	if err := manager.CancelOperation(id); err != nil {
		return fmt.Errorf("cancelling operation %s: %w", id, err)
	}

	s.logger.InfoContext(ctx, "operation cancelled", slog.String("operation_id", id))
	return nil
}

// Kinds returns the operation kinds this service can run.
func (s *OperationService) Kinds() []OperationKind {
	kinds := make([]OperationKind, 0, len(s.managers))
	for kind := range s.managers {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// ActiveCount reports how many operations are currently running.
func (s *OperationService) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, record := range s.records {
		if record.finishedAt == nil {
			count++
		}
	}
	return count
}

func (s *OperationService) snapshot(record *operationRecord) *OperationStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(record)
}

func (s *OperationService) snapshotLocked(record *operationRecord) *OperationStatus {
	return &OperationStatus{
		ID:         record.id,
		Kind:       record.kind,
		RunID:      record.runID,
		Status:     string(record.status),
		Error:      record.err,
		StartedAt:  record.startedAt,
		FinishedAt: record.finishedAt,
		Steps:      record.steps,
	}
}

func (s *OperationService) liveSnapshot(record *operationRecord, state *operations.OperationState) *OperationStatus {
	clone := state.Clone()
	status := s.snapshot(record)
	status.Status = string(clone.Status)
	status.Steps = stepStatuses(clone.Steps)
	return status
}

func stepStatuses(steps map[string]*operations.StepState) []StepStatus {
	out := make([]StepStatus, 0, len(steps))
	for _, step := range steps {
		status := StepStatus{
			ID:       step.ID,
			Name:     step.Name,
			Status:   string(step.Status),
			Progress: step.Progress,
			Message:  step.Message,
			Metadata: step.MetaSnapshot(),
		}
		if step.Error != nil {
			status.Error = step.Error.Error()
		}
		out = append(out, status)
	}

	// Order by start time so the transport view follows execution order
	sort.Slice(out, func(i, j int) bool {
		si, sj := steps[out[i].ID], steps[out[j].ID]
		switch {
		case si.StartTime == nil && sj.StartTime == nil:
			return out[i].ID < out[j].ID
		case si.StartTime == nil:
			return false
		case sj.StartTime == nil:
			return true
		default:
			return si.StartTime.Before(*sj.StartTime)
		}
	})
	return out
}
