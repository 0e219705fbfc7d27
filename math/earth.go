// math/earth.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package math

import (
	gomath "math"
)

// Great-circle and earth-centered helpers. Unlike the flat-earth
// functions in latlong.go, these are accurate over intercontinental
// distances and are used for scheduling and range checks.

// GreatCircleCourse returns the initial true course from a to b in degrees.
func GreatCircleCourse(a, b Point2LL) float32 {
	lat1, lon1 := radians64(a[1]), radians64(a[0])
	lat2, lon2 := radians64(b[1]), radians64(b[0])
	dlon := lon2 - lon1

	y := gomath.Sin(dlon) * gomath.Cos(lat2)
	x := gomath.Cos(lat1)*gomath.Sin(lat2) - gomath.Sin(lat1)*gomath.Cos(lat2)*gomath.Cos(dlon)
	return NormalizeHeading(float32(gomath.Atan2(y, x) * 180 / gomath.Pi))
}

// GreatCircleInterpolate returns the point the fraction f of the way from a
// to b along the great circle connecting them; f is clamped to [0,1].
func GreatCircleInterpolate(a, b Point2LL, f float32) Point2LL {
	f = Clamp(f, 0, 1)
	lat1, lon1 := radians64(a[1]), radians64(a[0])
	lat2, lon2 := radians64(b[1]), radians64(b[0])

	d := 2 * gomath.Asin(gomath.Sqrt(Sqr(gomath.Sin((lat2-lat1)/2))+
		gomath.Cos(lat1)*gomath.Cos(lat2)*Sqr(gomath.Sin((lon2-lon1)/2))))
	if d < 1e-12 {
		return a
	}

	ka := gomath.Sin((1-float64(f))*d) / gomath.Sin(d)
	kb := gomath.Sin(float64(f)*d) / gomath.Sin(d)
	x := ka*gomath.Cos(lat1)*gomath.Cos(lon1) + kb*gomath.Cos(lat2)*gomath.Cos(lon2)
	y := ka*gomath.Cos(lat1)*gomath.Sin(lon1) + kb*gomath.Cos(lat2)*gomath.Sin(lon2)
	z := ka*gomath.Sin(lat1) + kb*gomath.Sin(lat2)

	lat := gomath.Atan2(z, gomath.Sqrt(x*x+y*y))
	lon := gomath.Atan2(y, x)
	return Point2LL{float32(lon * 180 / gomath.Pi), float32(lat * 180 / gomath.Pi)}
}

// WGS84 ellipsoid
const (
	wgs84A  = 6378137.0
	wgs84E2 = 6.69437999014e-3
)

// Cartesian returns the earth-centered, earth-fixed coordinates in meters
// of the point p at the given altitude in feet.
func Cartesian(p Point2LL, altitude float32) [3]float64 {
	lat, lon := radians64(p[1]), radians64(p[0])
	h := float64(altitude) * FeetToMeters
	n := wgs84A / gomath.Sqrt(1-wgs84E2*Sqr(gomath.Sin(lat)))
	return [3]float64{
		(n + h) * gomath.Cos(lat) * gomath.Cos(lon),
		(n + h) * gomath.Cos(lat) * gomath.Sin(lon),
		(n*(1-wgs84E2) + h) * gomath.Sin(lat),
	}
}

// CartesianDistanceNM returns the straight-line distance in nautical
// miles between two earth-centered points.
func CartesianDistanceNM(a, b [3]float64) float32 {
	d := gomath.Sqrt(Sqr(a[0]-b[0]) + Sqr(a[1]-b[1]) + Sqr(a[2]-b[2]))
	return float32(d * MetersToNauticalMiles)
}

func radians64(d float32) float64 {
	return float64(d) / 180 * gomath.Pi
}
