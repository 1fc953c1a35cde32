// Package regress implements ordinary least squares linear regression on
// gonum and the usual regression metrics.
package regress

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrNotFitted is returned by Predict before Fit has succeeded.
var ErrNotFitted = errors.New("regress: model is not fitted")

// LinearRegression fits y = intercept + X*coefficients by least squares.
// A non-zero Lambda adds an L2 (ridge) penalty, which also keeps the solve
// well-posed for collinear designs such as full one-hot encodings.
type LinearRegression struct {
	// Lambda is the ridge penalty; zero means plain OLS.
	Lambda float64

	coefficients []float64
	intercept    float64
	fitted       bool
}

// NewLinearRegression creates an OLS model.
func NewLinearRegression() *LinearRegression {
	return &LinearRegression{}
}

// NewRidgeRegression creates a model with an L2 penalty.
func NewRidgeRegression(lambda float64) *LinearRegression {
	return &LinearRegression{Lambda: lambda}
}

// Fit estimates coefficients and intercept from rows X and targets y via a
// QR solve of the augmented design matrix.
func (m *LinearRegression) Fit(X [][]float64, y []float64) error {
	n := len(X)
	if n == 0 {
		return fmt.Errorf("regress: no training rows")
	}
	if len(y) != n {
		return fmt.Errorf("regress: X has %d rows, y has %d", n, len(y))
	}
	p := len(X[0])
	if p == 0 {
		return fmt.Errorf("regress: no features")
	}
	if n < p+1 && m.Lambda == 0 {
		return fmt.Errorf("regress: %d rows cannot determine %d coefficients, add rows or use ridge", n, p+1)
	}
	for i, row := range X {
		if len(row) != p {
			return fmt.Errorf("regress: row %d has %d features, expected %d", i, len(row), p)
		}
	}

	// Design matrix with a leading column of ones for the intercept. Ridge
	// appends sqrt(lambda)*I rows (intercept unpenalized) so the same QR
	// solve covers both cases.
	rows := n
	if m.Lambda > 0 {
		rows += p
	}
	a := mat.NewDense(rows, p+1, nil)
	b := mat.NewVecDense(rows, nil)
	for i, row := range X {
		a.Set(i, 0, 1)
		for j, v := range row {
			a.Set(i, j+1, v)
		}
		b.SetVec(i, y[i])
	}
	if m.Lambda > 0 {
		root := math.Sqrt(m.Lambda)
		for j := 0; j < p; j++ {
			a.Set(n+j, j+1, root)
		}
	}

	var qr mat.QR
	qr.Factorize(a)
	var sol mat.Dense
	if err := qr.SolveTo(&sol, false, b); err != nil {
		return fmt.Errorf("regress: singular design matrix: %w", err)
	}

	m.intercept = sol.At(0, 0)
	m.coefficients = make([]float64, p)
	for j := 0; j < p; j++ {
		m.coefficients[j] = sol.At(j+1, 0)
	}
	m.fitted = true
	return nil
}

// Predict returns fitted values for rows in X.
func (m *LinearRegression) Predict(X [][]float64) ([]float64, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	out := make([]float64, len(X))
	for i, row := range X {
		if len(row) != len(m.coefficients) {
			return nil, fmt.Errorf("regress: row %d has %d features, model has %d", i, len(row), len(m.coefficients))
		}
		sum := m.intercept
		for j, v := range row {
			sum += m.coefficients[j] * v
		}
		out[i] = sum
	}
	return out, nil
}

// Coefficients returns the fitted feature weights.
func (m *LinearRegression) Coefficients() []float64 {
	return m.coefficients
}

// Intercept returns the fitted intercept.
func (m *LinearRegression) Intercept() float64 {
	return m.intercept
}

// IsFitted reports whether Fit has succeeded.
func (m *LinearRegression) IsFitted() bool {
	return m.fitted
}

// Restore loads previously fitted parameters, as when deserializing a model
// artifact.
func (m *LinearRegression) Restore(coefficients []float64, intercept float64) error {
	if len(coefficients) == 0 {
		return fmt.Errorf("regress: cannot restore empty coefficients")
	}
	m.coefficients = append([]float64(nil), coefficients...)
	m.intercept = intercept
	m.fitted = true
	return nil
}
