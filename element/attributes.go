package element

import "fmt"

// Attribute names shared with the mesh container, the upstream physics and
// the remesher
const (
	RecoveredStress   = "RECOVERED_STRESS"    // Node: recovered Voigt stress
	ContactPressure   = "CONTACT_PRESSURE"    // Node: contact pressure (optional)
	Normal            = "NORMAL"              // Node: outward boundary normal (optional)
	MMGMetric         = "MMG_METRIC"          // Node: flattened metric tensor
	ElementError      = "ELEMENT_ERROR"       // Element: error energy norm
	ElementH          = "ELEMENT_H"           // Element: characteristic size
	ErrorEstimate     = "ERROR_ESTIMATE"      // ProcessInfo: relative error
	ErrorOverall      = "ERROR_OVERALL"       // ProcessInfo: global error norm
	EnergyNormOverall = "ENERGY_NORM_OVERALL" // ProcessInfo: global energy norm
)

// Attributes is a per-entity bag of named scalar and vector values.
// The zero value is ready to use. A bag is not safe for concurrent writers;
// the estimator only ever writes an entity from the goroutine that owns it.
type Attributes struct {
	scalars map[string]float64
	vectors map[string][]float64
}

// NewAttributes returns an empty attribute bag
func NewAttributes() *Attributes {
	return &Attributes{
		scalars: make(map[string]float64),
		vectors: make(map[string][]float64),
	}
}

// SetScalar stores a scalar value
func (a *Attributes) SetScalar(key string, v float64) {
	if a.scalars == nil {
		a.scalars = make(map[string]float64)
	}
	a.scalars[key] = v
}

// Scalar returns a scalar value and whether it was set
func (a *Attributes) Scalar(key string) (float64, bool) {
	v, ok := a.scalars[key]
	return v, ok
}

// ScalarOr returns a scalar value, or def when it was never set
func (a *Attributes) ScalarOr(key string, def float64) float64 {
	if v, ok := a.scalars[key]; ok {
		return v
	}
	return def
}

// SetVector stores a copy of v
func (a *Attributes) SetVector(key string, v []float64) {
	if a.vectors == nil {
		a.vectors = make(map[string][]float64)
	}
	a.vectors[key] = append([]float64(nil), v...)
}

// Vector returns the stored vector (not a copy) and whether it was set
func (a *Attributes) Vector(key string) ([]float64, bool) {
	v, ok := a.vectors[key]
	return v, ok
}

// MustVector returns the stored vector or an ErrMissingAttribute error
func (a *Attributes) MustVector(key string) ([]float64, error) {
	v, ok := a.vectors[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingAttribute, key)
	}
	return v, nil
}

// Has reports whether a scalar or vector with this name exists
func (a *Attributes) Has(key string) bool {
	if _, ok := a.scalars[key]; ok {
		return true
	}
	_, ok := a.vectors[key]
	return ok
}

// Delete removes a scalar or vector with this name
func (a *Attributes) Delete(key string) {
	delete(a.scalars, key)
	delete(a.vectors, key)
}
