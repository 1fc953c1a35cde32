// Package dataprep provides fit/transform steps for tabular data: missing
// value imputation, categorical encoding, scaling and feature engineering.
// Transformers learn their parameters on the training split and replay them
// on other splits, so test data never leaks into fitted statistics.
package dataprep

import (
	"errors"
	"fmt"

	"pricepipe/internal/dataset"
)

// ErrNotFitted is returned when Transform is called before Fit.
var ErrNotFitted = errors.New("dataprep: transformer is not fitted")

// Transformer learns parameters from a dataset and applies them in place.
type Transformer interface {
	// Name identifies the transformer in logs and model artifacts.
	Name() string

	// Fit learns parameters from ds without modifying it.
	Fit(ds *dataset.Dataset) error

	// Transform applies the fitted parameters to ds in place.
	Transform(ds *dataset.Dataset) error
}

// FitTransform fits the transformer on ds and immediately applies it.
func FitTransform(t Transformer, ds *dataset.Dataset) error {
	if err := t.Fit(ds); err != nil {
		return err
	}
	return t.Transform(ds)
}

// Chain applies a list of transformers in order.
type Chain struct {
	steps []Transformer
}

// NewChain builds a chain from the given transformers.
func NewChain(steps ...Transformer) *Chain {
	return &Chain{steps: steps}
}

// Name implements Transformer.
func (c *Chain) Name() string { return "chain" }

// Fit fits each step in order, transforming a scratch copy between steps so
// later steps see the output of earlier ones.
func (c *Chain) Fit(ds *dataset.Dataset) error {
	scratch := ds.Clone()
	for _, step := range c.steps {
		if err := step.Fit(scratch); err != nil {
			return fmt.Errorf("fit %s: %w", step.Name(), err)
		}
		if err := step.Transform(scratch); err != nil {
			return fmt.Errorf("transform %s during fit: %w", step.Name(), err)
		}
	}
	return nil
}

// Transform applies every fitted step in order.
func (c *Chain) Transform(ds *dataset.Dataset) error {
	for _, step := range c.steps {
		if err := step.Transform(ds); err != nil {
			return fmt.Errorf("transform %s: %w", step.Name(), err)
		}
	}
	return nil
}

// Steps returns the chained transformers in order.
func (c *Chain) Steps() []Transformer {
	return c.steps
}
