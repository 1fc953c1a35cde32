package operations

import (
	"time"
)

// Config controls how the manager executes steps.
type Config struct {
	// StageTimeouts overrides the default per-step timeout by step ID.
	StageTimeouts map[string]time.Duration `json:"stage_timeouts"`

	// RetryConfig governs retries of retryable step failures.
	RetryConfig RetryConfig `json:"retry_config"`

	// ContinueOnError keeps the pipeline going past a failed step.
	ContinueOnError bool `json:"continue_on_error"`
}

// NewConfig returns the default configuration. Ingestion and training get
// longer timeouts than the in-memory transform steps.
func NewConfig() *Config {
	return &Config{
		StageTimeouts: map[string]time.Duration{
			StageIDIngest: DefaultIngestTimeout,
			StageIDTrain:  DefaultTrainTimeout,
		},
		RetryConfig:     NewRetryConfig(),
		ContinueOnError: false,
	}
}

// GetStageTimeout returns the timeout for a step.
func (c *Config) GetStageTimeout(stepID string) time.Duration {
	if timeout, ok := c.StageTimeouts[stepID]; ok {
		return timeout
	}
	return DefaultStageTimeout
}

// SetStageTimeout overrides the timeout for a step.
func (c *Config) SetStageTimeout(stepID string, timeout time.Duration) {
	if c.StageTimeouts == nil {
		c.StageTimeouts = make(map[string]time.Duration)
	}
	c.StageTimeouts[stepID] = timeout
}

// ConfigBuilder builds a Config fluently.
type ConfigBuilder struct {
	config *Config
}

// NewConfigBuilder starts from the default configuration.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{
		config: NewConfig(),
	}
}

// WithStageTimeout overrides the timeout for a step.
func (b *ConfigBuilder) WithStageTimeout(stepID string, timeout time.Duration) *ConfigBuilder {
	b.config.SetStageTimeout(stepID, timeout)
	return b
}

// WithRetryConfig sets the retry configuration.
func (b *ConfigBuilder) WithRetryConfig(config RetryConfig) *ConfigBuilder {
	b.config.RetryConfig = config
	return b
}

// WithContinueOnError sets whether the pipeline continues past failures.
func (b *ConfigBuilder) WithContinueOnError(continueOnError bool) *ConfigBuilder {
	b.config.ContinueOnError = continueOnError
	return b
}

// Build returns the built configuration.
func (b *ConfigBuilder) Build() *Config {
	return b.config
}
