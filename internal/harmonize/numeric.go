package harmonize

import (
	"strconv"
	"strings"
)

// LimitPolicy governs how inequality-prefixed detection-limit values are
// substituted. Laboratories report values outside the instrument's range as
// "<X" or ">X"; the substitution constants are a property of each lab's
// reporting convention and therefore adapter configuration, never engine
// behavior.
//
//	"<X" → X * BelowFraction   (below-limit convention)
//	">X" → X * AboveFactor     (above-limit convention)
type LimitPolicy struct {
	BelowFraction float64
	AboveFactor   float64
}

// cleanValue converts a raw textual measurement into a number.
//
// Cleaning rules, in order: a bare dash or empty string is a null marker
// (value absent, not zero); decimal commas become decimal points;
// inequality prefixes are substituted per the adapter's LimitPolicy.
// Returns ok=false when the value is absent and err!=nil when the text is
// not a recognizable number.
func cleanValue(raw string, policy LimitPolicy) (value float64, ok bool, err error) {
	s := strings.TrimSpace(raw)
	if s == "" || s == "-" {
		return 0, false, nil
	}

	factor := 1.0
	switch {
	case strings.HasPrefix(s, "<"):
		factor = policy.BelowFraction
		s = strings.TrimSpace(s[1:])
	case strings.HasPrefix(s, ">"):
		factor = policy.AboveFactor
		s = strings.TrimSpace(s[1:])
	}

	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, err
	}
	return v * factor, true, nil
}

// cleanHours parses an operating-hours field leniently: absent or malformed
// hour counters degrade to zero rather than rejecting the row, since hours
// are metadata, not measurements.
func cleanHours(raw string) float64 {
	s := strings.TrimSpace(strings.ReplaceAll(raw, ",", "."))
	if s == "" || s == "-" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// canonicalUnitID folds a unit identifier: dashes become underscores so the
// same physical machine matches across labs that punctuate differently.
func canonicalUnitID(raw string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(raw), "-", "_"))
}
