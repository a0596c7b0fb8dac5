// Package estimate turns integration point indicators into element and
// global error norms.
package estimate

import (
	"fmt"
	"math"

	"github.com/notargets/sprmetric/element"
)

// ElementEstimate holds the error and energy norms of one element
type ElementEstimate struct {
	ErrorSquared  float64 // Σ error energy over the integration points
	Error         float64 // sqrt(ErrorSquared), persisted as ELEMENT_ERROR
	EnergySquared float64 // Σ 2·strain energy over the integration points
	Energy        float64 // sqrt(EnergySquared)
}

// Global is the mesh wide estimate
type Global struct {
	OverallError    float64 // sqrt(Σ ErrorSquared)
	OverallEnergy   float64 // sqrt(Σ EnergySquared)
	ErrorPercentage float64 // OverallError / sqrt(OverallError² + OverallEnergy²)
}

// EstimateElement sums the integration point indicators of an element.
// Negative sums from round-off are clamped to zero before the square root.
func EstimateElement(el element.Element) (ElementEstimate, error) {
	var est ElementEstimate

	errs, err := el.IntegrationPointErrorEnergy()
	if err != nil {
		return est, fmt.Errorf("element %d: %w", el.ID(), err)
	}
	strain, err := el.IntegrationPointStrainEnergy()
	if err != nil {
		return est, fmt.Errorf("element %d: %w", el.ID(), err)
	}

	for _, e := range errs {
		est.ErrorSquared += e
	}
	for _, s := range strain {
		est.EnergySquared += 2 * s
	}
	est.Error = math.Sqrt(math.Max(0, est.ErrorSquared))
	est.Energy = math.Sqrt(math.Max(0, est.EnergySquared))
	return est, nil
}

// Aggregate reduces element estimates in slice order, so the result does
// not depend on how the element pass was scheduled
func Aggregate(estimates []ElementEstimate) Global {
	var errSum, energySum float64
	for _, e := range estimates {
		errSum += e.ErrorSquared
		energySum += e.EnergySquared
	}

	g := Global{
		OverallError:  math.Sqrt(math.Max(0, errSum)),
		OverallEnergy: math.Sqrt(math.Max(0, energySum)),
	}
	if denom := math.Hypot(g.OverallError, g.OverallEnergy); denom > 0 {
		g.ErrorPercentage = g.OverallError / denom
	}
	return g
}
