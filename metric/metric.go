// Package metric builds the nodal metric tensors handed to the remesher
package metric

import (
	"math"

	"github.com/notargets/sprmetric/element"
	"gonum.org/v1/gonum/mat"
)

// Policy selects how element sizes around a node become a nodal size
type Policy uint8

const (
	Minimum Policy = iota // Smallest neighbouring size
	Average               // Mean of the neighbouring sizes
)

func (p Policy) String() string {
	switch p {
	case Minimum:
		return "minimum"
	case Average:
		return "average"
	}
	return "unknown"
}

// PolicyFor maps the average_nodal_h switch to a policy
func PolicyFor(average bool) Policy {
	if average {
		return Average
	}
	return Minimum
}

// NodalSize reduces the positive sizes of the elements around a node. It
// reports false when there is none, leaving the caller to pick a default.
func NodalSize(sizes []float64, policy Policy) (float64, bool) {
	h, sum, n := math.Inf(1), 0.0, 0
	for _, s := range sizes {
		if !(s > 0) {
			continue
		}
		h = math.Min(h, s)
		sum += s
		n++
	}
	if n == 0 {
		return 0, false
	}
	if policy == Average {
		return sum / float64(n), true
	}
	return h, true
}

// Isotropic returns the metric diag(1/h²) of a uniform target size h
func Isotropic(dim element.Dimensionality, h float64) *mat.SymDense {
	n := int(dim)
	m := mat.NewSymDense(n, nil)
	v := 1 / (h * h)
	for i := 0; i < n; i++ {
		m.SetSym(i, i, v)
	}
	return m
}

// TensorToVector flattens a symmetric tensor row by row over its upper
// triangle: [m00, m01, m11] in 2D and [m00, m01, m02, m11, m12, m22] in 3D
func TensorToVector(m mat.Symmetric) []float64 {
	n := m.SymmetricDim()
	v := make([]float64, 0, n*(n+1)/2)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v = append(v, m.At(i, j))
		}
	}
	return v
}
