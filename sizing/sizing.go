// Package sizing derives new target element sizes from the error estimate
package sizing

import (
	"math"

	"github.com/notargets/sprmetric/element"
	"github.com/notargets/sprmetric/estimate"
	"github.com/notargets/sprmetric/linalg"
)

// Settings bounds and targets the size update
type Settings struct {
	MinSize             float64
	MaxSize             float64
	TargetError         float64 // Permissible relative error
	SetNumberOfElements bool    // Use NumberOfElements instead of the current count
	NumberOfElements    int
}

// Size is the outcome of one element update
type Size struct {
	H       float64 // New size, within [MinSize, MaxSize]
	Guarded bool    // The element error was zero and MaxSize was assigned
	Clamped bool    // The raw size fell outside the bounds
}

// Updater computes new element sizes
type Updater struct {
	settings Settings
}

// NewUpdater returns an updater for the given bounds
func NewUpdater(s Settings) Updater {
	return Updater{settings: s}
}

// CharacteristicSize returns the current geometric size of an element
func CharacteristicSize(el element.Element) (float64, error) {
	return element.CharacteristicSize(el.GeometryType(), el.Vertices())
}

// Scale returns the factor sqrt((E² + e²)/N)·target shared by all elements,
// with N the configured element count or the current one
func (u Updater) Scale(g estimate.Global, numElements int) float64 {
	n := numElements
	if u.settings.SetNumberOfElements {
		n = u.settings.NumberOfElements
	}
	if n <= 0 {
		return 0
	}
	sq := g.OverallEnergy*g.OverallEnergy + g.OverallError*g.OverallError
	return math.Sqrt(sq/float64(n)) * u.settings.TargetError
}

// Update returns h0/elementError·scale clamped to the size bounds. An
// element without error gets the largest size allowed.
func (u Updater) Update(h0, elementError, scale float64) Size {
	if elementError <= linalg.Epsilon {
		return Size{H: u.settings.MaxSize, Guarded: true}
	}
	h := h0 / elementError * scale
	return u.clamp(h)
}

func (u Updater) clamp(h float64) Size {
	switch {
	case math.IsNaN(h) || h > u.settings.MaxSize:
		return Size{H: u.settings.MaxSize, Clamped: true}
	case h < u.settings.MinSize:
		return Size{H: u.settings.MinSize, Clamped: true}
	}
	return Size{H: h}
}
