// Package linalg provides the small local solves used by patch recovery:
// a dense inverse-based solve with singular-matrix regularisation, and a
// sparse assembled system solved by LU factorisation.
package linalg

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

const (
	// Epsilon is the double precision machine epsilon
	Epsilon = 0x1p-52

	// DefaultRegularization is added to singular patch matrices before retrying
	DefaultRegularization = 1e-3

	// ConditionLimit is the largest condition number accepted from an LU solve
	ConditionLimit = 1 / Epsilon
)

// ErrIllConditioned is returned when a system stays singular or
// ill-conditioned after regularisation
var ErrIllConditioned = errors.New("ill-conditioned system")

// DenseSolution is the result of SolveInverse
type DenseSolution struct {
	X           *mat.Dense // Solution, same shape as the right hand side
	Det         float64    // Determinant of the matrix actually inverted
	Regularized bool       // True if the shift was applied
}

// SolveInverse solves A·X = B by explicit inversion of the small square
// matrix A. When det(A) is below machine epsilon, shift is added to every
// entry of a copy of A and the inversion is retried. A is never modified.
func SolveInverse(a mat.Matrix, b mat.Matrix, shift float64) (DenseSolution, error) {
	n, c := a.Dims()
	if n != c {
		return DenseSolution{}, fmt.Errorf("matrix is %d×%d, not square", n, c)
	}
	if br, _ := b.Dims(); br != n {
		return DenseSolution{}, fmt.Errorf("right hand side has %d rows, expected %d", br, n)
	}

	work := mat.DenseCopyOf(a)
	sol := DenseSolution{Det: mat.Det(work)}
	if sol.Det < Epsilon {
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				work.Set(i, j, work.At(i, j)+shift)
			}
		}
		sol.Det = mat.Det(work)
		sol.Regularized = true
	}

	var inv mat.Dense
	if err := inv.Inverse(work); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return sol, err
		}
		return sol, fmt.Errorf("%w: %d×%d matrix, det %g, condition %g",
			ErrIllConditioned, n, n, sol.Det, float64(cond))
	}

	sol.X = &mat.Dense{}
	sol.X.Mul(&inv, b)
	return sol, nil
}
