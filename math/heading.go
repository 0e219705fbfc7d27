// math/heading.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package math

// Heading2LL returns the heading from the point |from| to the point |to|
// in degrees.  The provided points should be in latitude-longitude
// coordinates and the provided magnetic correction is applied to the
// result.
func Heading2LL(from Point2LL, to Point2LL, nmPerLongitude float32, magCorrection float32) float32 {
	v := Point2LL{to[0] - from[0], to[1] - from[1]}

	// Note that atan2() normally measures w.r.t. the +x axis and angles
	// are positive for counter-clockwise. We want to measure w.r.t. +y and
	// to have positive angles be clockwise. Happily, swapping the order of
	// values passed to atan2()--passing (x,y), gives what we want.
	angle := Degrees(Atan2(v[0]*nmPerLongitude, v[1]*NMPerLatitude))
	return NormalizeHeading(angle + magCorrection)
}

// HeadingDifference returns the minimum difference between two
// headings. (i.e., the result is always in the range [0,180].)
func HeadingDifference(a float32, b float32) float32 {
	var d float32
	if a > b {
		d = a - b
	} else {
		d = b - a
	}
	if d > 180 {
		d = 360 - d
	}
	return d
}

// HeadingSignedTurn returns the signed turn in degrees from cur to target;
// positive values are right turns.
func HeadingSignedTurn(cur, target float32) float32 {
	// Rotate the target heading so that it's aligned with 180 degrees,
	// which saves worrying about the wrap around at 0/360.
	rot := NormalizeHeading(180 - target)
	return 180 - NormalizeHeading(cur+rot)
}

// Reduces it to [0,360).
func NormalizeHeading(h float32) float32 {
	if h < 0 {
		return 360 - NormalizeHeading(-h)
	}
	return Mod(h, 360)
}

func OppositeHeading(h float32) float32 {
	return NormalizeHeading(h + 180)
}

// WindComponents returns the headwind (positive) and absolute crosswind
// components for a wind blowing from windDir at windSpeed when moving
// along heading hdg.
func WindComponents(hdg, windDir, windSpeed float32) (headwind, crosswind float32) {
	a := Radians(windDir - hdg)
	return windSpeed * Cos(a), Abs(windSpeed * Sin(a))
}
