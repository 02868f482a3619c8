package etl

import (
	"fmt"
	"math"

	"bankcap/internal/config"
)

// Rounder rounds a value to 2 decimal places
type Rounder func(float64) float64

// RoundHalfEven rounds to 2 decimals, sending exact halves to the even neighbour
func RoundHalfEven(x float64) float64 {
	return math.RoundToEven(x*100) / 100
}

// RoundHalfAway rounds to 2 decimals, sending exact halves away from zero
func RoundHalfAway(x float64) float64 {
	return math.Round(x*100) / 100
}

// RounderFor returns the rounding function for a mode name
func RounderFor(mode string) (Rounder, error) {
	switch mode {
	case "", config.RoundingHalfEven:
		return RoundHalfEven, nil
	case config.RoundingHalfAway:
		return RoundHalfAway, nil
	default:
		return nil, fmt.Errorf("unknown rounding mode %q", mode)
	}
}
