package spr

import (
	"fmt"
	"math"

	"github.com/notargets/sprmetric/element"
	"github.com/notargets/sprmetric/linalg"
	"gonum.org/v1/gonum/spatial/r3"
)

// Strategy holds the dimension dependent parts of patch recovery. It is
// chosen once per run by NewStrategy.
type Strategy interface {
	Dimension() element.Dimensionality
	VoigtSize() int

	// NumTerms is the size of the linear basis, Dim+1
	NumTerms() int

	// Basis writes [1, Δx, Δy(, Δz)] for an offset from the patch center
	Basis(dst []float64, offset r3.Vec)

	// ContactRows returns the Voigt rows projecting a stress onto the normal
	// traction and onto each tangential traction for a unit normal
	ContactRows(normal r3.Vec) (normalRow []float64, tangentRows [][]float64)
}

// NewStrategy returns the recovery strategy for a spatial dimension
func NewStrategy(dim element.Dimensionality) (Strategy, error) {
	switch dim {
	case element.D2:
		return planeStrategy{}, nil
	case element.D3:
		return solidStrategy{}, nil
	}
	return nil, fmt.Errorf("no patch recovery for dimension %d", dim)
}

type planeStrategy struct{}

func (planeStrategy) Dimension() element.Dimensionality { return element.D2 }
func (planeStrategy) VoigtSize() int                    { return 3 }
func (planeStrategy) NumTerms() int                     { return 3 }

func (planeStrategy) Basis(dst []float64, offset r3.Vec) {
	dst[0] = 1
	dst[1] = offset.X
	dst[2] = offset.Y
}

func (planeStrategy) ContactRows(n r3.Vec) ([]float64, [][]float64) {
	normalRow := []float64{
		n.X * n.X,
		n.Y * n.Y,
		2 * n.X * n.Y,
	}
	tangentRow := []float64{
		n.X * n.Y,
		-n.X * n.Y,
		n.Y*n.Y - n.X*n.X,
	}
	return normalRow, [][]float64{tangentRow}
}

type solidStrategy struct{}

func (solidStrategy) Dimension() element.Dimensionality { return element.D3 }
func (solidStrategy) VoigtSize() int                    { return 6 }
func (solidStrategy) NumTerms() int                     { return 4 }

func (solidStrategy) Basis(dst []float64, offset r3.Vec) {
	dst[0] = 1
	dst[1] = offset.X
	dst[2] = offset.Y
	dst[3] = offset.Z
}

// ContactRows uses the Voigt order σxx, σyy, σzz, σyz, σzx, σxy throughout
func (solidStrategy) ContactRows(n r3.Vec) ([]float64, [][]float64) {
	normalRow := []float64{
		n.X * n.X,
		n.Y * n.Y,
		n.Z * n.Z,
		2 * n.Y * n.Z,
		2 * n.Z * n.X,
		2 * n.X * n.Y,
	}

	t1, t2 := tangents(n)
	return normalRow, [][]float64{tractionRow(n, t1), tractionRow(n, t2)}
}

// tangents returns two unit vectors orthogonal to the unit normal n
func tangents(n r3.Vec) (t1, t2 r3.Vec) {
	if math.Abs(n.X) > linalg.Epsilon || math.Abs(n.Y) > linalg.Epsilon {
		norm := math.Hypot(n.X, n.Y)
		t1 = r3.Vec{X: n.Y / norm, Y: -n.X / norm}
		t2 = r3.Vec{
			X: -n.X * n.Z / norm,
			Y: -n.Y * n.Z / norm,
			Z: (n.X*n.X + n.Y*n.Y) / norm,
		}
		return t1, t2
	}
	return r3.Vec{X: 1}, r3.Vec{Y: 1}
}

// tractionRow maps a Voigt stress to t·σ·n
func tractionRow(n, t r3.Vec) []float64 {
	return []float64{
		n.X * t.X,
		n.Y * t.Y,
		n.Z * t.Z,
		n.Y*t.Z + n.Z*t.Y,
		n.Z*t.X + n.X*t.Z,
		n.X*t.Y + n.Y*t.X,
	}
}
