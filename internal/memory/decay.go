package memory

import (
	"math"
	"time"
)

// DecayMultiplier returns the exponential relevance multiplier for a
// memory of the given age:
//
//	m = exp(-ln2/halfLife * age)
//
// At age == halfLife the multiplier is 0.5. A non-positive halfLife
// disables decay and returns 1.
//
// This multiplier affects only query-time ranking. The flat confidence
// erosion applied by the consolidator is a separate mechanism and
// mutates the stored confidence value instead.
func DecayMultiplier(age, halfLife time.Duration) float64 {
	if halfLife <= 0 {
		return 1.0
	}
	if age <= 0 {
		return 1.0
	}
	lambda := math.Ln2 / halfLife.Hours()
	m := math.Exp(-lambda * age.Hours())
	if m > 1.0 {
		return 1.0
	}
	return m
}

// DecayMultiplierDays is DecayMultiplier with the half-life expressed in
// days, matching the per-area search configuration rows.
func DecayMultiplierDays(age time.Duration, halfLifeDays float64) float64 {
	return DecayMultiplier(age, time.Duration(halfLifeDays*24*float64(time.Hour)))
}
