// Package operations orchestrates the multi-step model training workflow.
//
// The package supports:
//
//   - Step-based execution with dependency management
//   - Configurable retry logic with exponential backoff
//   - Real-time progress updates via the WebSocket hub
//   - Sequential execution with per-step timeouts and cancellation
//
// Core components:
//
// Manager: the orchestrator. It resolves step order through the Registry,
// runs one step at a time with timeout and retry, and can cancel a running
// operation between or during steps.
//
// Step: a single unit of work. Steps declare dependencies on other steps
// and exchange data through the shared OperationState.
//
// Registry: step registration and topological ordering.
//
// StatusBroadcaster: the externally visible status of every operation,
// published as full snapshots to the hub.
//
// Example usage:
//
//	manager := operations.NewManager(wsHub, nil, nil)
//
//	manager.RegisterStage(NewIngestStep(deps))
//	manager.RegisterStage(NewCleanStep(deps))
//	manager.RegisterStage(NewTrainStep(deps))
//
//	config := operations.NewConfigBuilder().
//		WithRetryConfig(operations.NewRetryConfig()).
//		Build()
//	manager.SetConfig(config)
//
//	req := operations.OperationRequest{ID: "train-2024-01"}
//	resp, err := manager.Execute(ctx, req)
package operations
