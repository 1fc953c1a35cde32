// Package testutil provides mocks and helpers for operation tests.
package testutil

import (
	"context"
	"sync"
	"time"

	"pricepipe/internal/operations"
)

// MockStage is a configurable mock implementation of the Step interface
type MockStage struct {
	IDValue           string
	NameValue         string
	DependenciesValue []string

	// Configurable functions
	ExecuteFunc  func(ctx context.Context, state *operations.OperationState) error
	ValidateFunc func(state *operations.OperationState) error

	// Call tracking
	mu            sync.Mutex
	ExecuteCalls  int
	ExecuteArgs   []ExecuteCall
	ValidateCalls int
	ValidateArgs  []ValidateCall
}

// ExecuteCall tracks arguments passed to Execute
type ExecuteCall struct {
	Ctx   context.Context
	State *operations.OperationState
	Time  time.Time
}

// ValidateCall tracks arguments passed to Validate
type ValidateCall struct {
	State *operations.OperationState
	Time  time.Time
}

// ID returns the step ID
func (m *MockStage) ID() string {
	return m.IDValue
}

// Name returns the step name
func (m *MockStage) Name() string {
	return m.NameValue
}

// GetDependencies returns the step dependencies
func (m *MockStage) GetDependencies() []string {
	if m.DependenciesValue == nil {
		return []string{}
	}
	return m.DependenciesValue
}

// Execute runs the mock execute function
func (m *MockStage) Execute(ctx context.Context, state *operations.OperationState) error {
	m.mu.Lock()
	m.ExecuteCalls++
	m.ExecuteArgs = append(m.ExecuteArgs, ExecuteCall{
		Ctx:   ctx,
		State: state,
		Time:  time.Now(),
	})
	m.mu.Unlock()

	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, state)
	}
	return nil
}

// Validate runs the mock validate function
func (m *MockStage) Validate(state *operations.OperationState) error {
	m.mu.Lock()
	m.ValidateCalls++
	m.ValidateArgs = append(m.ValidateArgs, ValidateCall{
		State: state,
		Time:  time.Now(),
	})
	m.mu.Unlock()

	if m.ValidateFunc != nil {
		return m.ValidateFunc(state)
	}
	return nil
}

// GetExecuteCalls returns the number of Execute calls
func (m *MockStage) GetExecuteCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ExecuteCalls
}

// GetValidateCalls returns the number of Validate calls
func (m *MockStage) GetValidateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ValidateCalls
}

// BroadcastCall tracks a single hub broadcast
type BroadcastCall struct {
	EventType string
	Step      string
	Status    string
	Metadata  interface{}
}

// MockWebSocketHub records broadcasts for assertions
type MockWebSocketHub struct {
	mu    sync.Mutex
	Calls []BroadcastCall
}

// BroadcastUpdate records the call
func (h *MockWebSocketHub) BroadcastUpdate(eventType, step, status string, metadata interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Calls = append(h.Calls, BroadcastCall{
		EventType: eventType,
		Step:      step,
		Status:    status,
		Metadata:  metadata,
	})
}

// CallCount returns the number of broadcasts seen
func (h *MockWebSocketHub) CallCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.Calls)
}

// LastCall returns the most recent broadcast, or nil
func (h *MockWebSocketHub) LastCall() *BroadcastCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.Calls) == 0 {
		return nil
	}
	call := h.Calls[len(h.Calls)-1]
	return &call
}
