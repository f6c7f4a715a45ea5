package verify

import "strings"

// DefaultTolerance is used when a tolerance table carries no "default" entry
const DefaultTolerance = 5.0

const defaultToleranceKey = "default"

// ToleranceTable maps an attribute to its allowed deviation in percent.
// The "default" key applies to attributes without their own entry.
type ToleranceTable map[string]float64

// For returns the tolerance percentage for attribute
func (t ToleranceTable) For(attribute string) float64 {
	if tol, ok := t[attribute]; ok {
		return tol
	}
	if tol, ok := t[strings.ToLower(attribute)]; ok {
		return tol
	}
	if tol, ok := t[defaultToleranceKey]; ok {
		return tol
	}
	return DefaultTolerance
}
