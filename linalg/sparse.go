package linalg

import (
	"errors"
	"fmt"
	"math"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"
)

// SparseSystem is a square linear system A·x = b assembled entry by entry.
// A is stored as a dictionary of keys while assembling and converted to
// compressed rows for the factorisation.
type SparseSystem struct {
	n int
	a *sparse.DOK
	b *mat.VecDense
}

// SparseSolution is the result of SparseSystem.Solve
type SparseSolution struct {
	X           *mat.VecDense
	Cond        float64 // Condition number estimate of the factorised matrix
	Regularized bool    // True if the diagonal shift was applied
}

// NewSparseSystem allocates an empty n×n system
func NewSparseSystem(n int) *SparseSystem {
	return &SparseSystem{
		n: n,
		a: sparse.NewDOK(n, n),
		b: mat.NewVecDense(n, nil),
	}
}

// Size returns the number of unknowns
func (s *SparseSystem) Size() int {
	return s.n
}

// NNZ returns the number of stored matrix entries
func (s *SparseSystem) NNZ() int {
	return s.a.NNZ()
}

// AddToMatrix adds v to A[i,j]
func (s *SparseSystem) AddToMatrix(i, j int, v float64) {
	if v == 0 {
		return
	}
	s.a.Set(i, j, s.a.At(i, j)+v)
}

// AddToRHS adds v to b[i]
func (s *SparseSystem) AddToRHS(i int, v float64) {
	s.b.SetVec(i, s.b.AtVec(i)+v)
}

// AddOuter adds scale·u·wᵀ to A
func (s *SparseSystem) AddOuter(scale float64, u, w []float64) {
	for i, ui := range u {
		if ui == 0 {
			continue
		}
		for j, wj := range w {
			s.AddToMatrix(i, j, scale*ui*wj)
		}
	}
}

// AddScaledRHS adds scale·u to b
func (s *SparseSystem) AddScaledRHS(scale float64, u []float64) {
	for i, ui := range u {
		s.AddToRHS(i, scale*ui)
	}
}

// Matrix returns a dense copy of A
func (s *SparseSystem) Matrix() *mat.Dense {
	return mat.DenseCopyOf(s.a.ToCSR())
}

// RHS returns b
func (s *SparseSystem) RHS() *mat.VecDense {
	return s.b
}

// Solve factorises A with LU and solves for x. If the condition estimate
// exceeds ConditionLimit, shift·max|A_ii| (or shift when the diagonal is
// empty) is added to the diagonal and the factorisation is retried once.
// A system that is still ill-conditioned returns ErrIllConditioned.
func (s *SparseSystem) Solve(shift float64) (SparseSolution, error) {
	work := s.Matrix()

	var lu mat.LU
	lu.Factorize(work)
	sol := SparseSolution{Cond: lu.Cond()}

	if !acceptable(sol.Cond) {
		maxDiag := 0.0
		for i := 0; i < s.n; i++ {
			maxDiag = math.Max(maxDiag, math.Abs(work.At(i, i)))
		}
		delta := shift
		if maxDiag > 0 {
			delta = shift * maxDiag
		}
		for i := 0; i < s.n; i++ {
			work.Set(i, i, work.At(i, i)+delta)
		}
		lu.Factorize(work)
		sol.Cond = lu.Cond()
		sol.Regularized = true
		if !acceptable(sol.Cond) {
			return sol, fmt.Errorf("%w: %d×%d system, condition %g", ErrIllConditioned, s.n, s.n, sol.Cond)
		}
	}

	sol.X = mat.NewVecDense(s.n, nil)
	if err := lu.SolveVecTo(sol.X, false, s.b); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return sol, err
		}
	}
	return sol, nil
}

func acceptable(cond float64) bool {
	return !math.IsNaN(cond) && !math.IsInf(cond, 0) && cond <= ConditionLimit
}
