package regress

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"pricepipe/internal/dataprep"
)

// Artifact is the serialized form of a trained model together with the
// fitted preprocessing parameters needed to reproduce its feature space at
// inference time.
type Artifact struct {
	Target       string    `json:"target"`
	LogTarget    bool      `json:"log_target"`
	FeatureNames []string  `json:"feature_names"`
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
	Lambda       float64   `json:"lambda,omitempty"`

	// Scale holds the fitted per-column scaling parameters keyed by column.
	Scale map[string]dataprep.ScaleParams `json:"scale,omitempty"`

	TrainedAt time.Time `json:"trained_at"`
}

// NewArtifact captures a fitted model.
func NewArtifact(m *LinearRegression, target string, logTarget bool, features []string, scale map[string]dataprep.ScaleParams) (*Artifact, error) {
	if !m.IsFitted() {
		return nil, ErrNotFitted
	}
	if len(features) != len(m.Coefficients()) {
		return nil, fmt.Errorf("regress: %d feature names for %d coefficients", len(features), len(m.Coefficients()))
	}
	return &Artifact{
		Target:       target,
		LogTarget:    logTarget,
		FeatureNames: append([]string(nil), features...),
		Coefficients: append([]float64(nil), m.Coefficients()...),
		Intercept:    m.Intercept(),
		Lambda:       m.Lambda,
		Scale:        scale,
		TrainedAt:    time.Now().UTC(),
	}, nil
}

// Model reconstructs the fitted model from the artifact.
func (a *Artifact) Model() (*LinearRegression, error) {
	m := &LinearRegression{Lambda: a.Lambda}
	if err := m.Restore(a.Coefficients, a.Intercept); err != nil {
		return nil, err
	}
	return m, nil
}

// Save writes the artifact as JSON, creating parent directories as needed.
func (a *Artifact) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("regress: create artifact directory: %w", err)
	}
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("regress: marshal artifact: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("regress: write artifact %s: %w", path, err)
	}
	return nil
}

// LoadArtifact reads an artifact written by Save.
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("regress: read artifact %s: %w", path, err)
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("regress: parse artifact %s: %w", path, err)
	}
	if len(a.Coefficients) == 0 || len(a.FeatureNames) != len(a.Coefficients) {
		return nil, fmt.Errorf("regress: artifact %s is malformed", path)
	}
	return &a, nil
}
