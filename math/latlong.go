// math/latlong.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package math

import (
	"encoding/json"
	"fmt"
	gomath "math"
	"strconv"
	"strings"
)

const NMPerLatitude = 60

const NauticalMilesToFeet = 6076.12
const FeetToNauticalMiles = 1 / NauticalMilesToFeet
const MetersToNauticalMiles = 1 / 1852.0
const FeetToMeters = 0.3048

// Point2LL represents a 2D point on the Earth in latitude-longitude.
// Important: 0 (x) is longitude, 1 (y) is latitude
type Point2LL [2]float32

func (p Point2LL) Longitude() float32 {
	return p[0]
}

func (p Point2LL) Latitude() float32 {
	return p[1]
}

func (p Point2LL) IsZero() bool {
	return p[0] == 0 && p[1] == 0
}

// DDString returns the position in decimal degrees, e.g.:
// (39.860901, -75.274864)
func (p Point2LL) DDString() string {
	return fmt.Sprintf("(%f, %f)", p[1], p[0]) // latitude, longitude
}

// DMSString returns the position in degrees minutes, seconds, e.g.
// N039.51.39.243,W075.16.29.511
func (p Point2LL) DMSString() string {
	format := func(v float32) string {
		s := fmt.Sprintf("%03d", int(v))
		v -= Floor(v)
		v *= 60
		s += fmt.Sprintf(".%02d", int(v))
		v -= Floor(v)
		v *= 60
		s += fmt.Sprintf(".%02d", int(v))
		v -= Floor(v)
		v *= 1000
		s += fmt.Sprintf(".%03d", int(v))
		return s
	}

	var s string
	if p[1] > 0 {
		s = "N"
	} else {
		s = "S"
	}
	s += format(Abs(p[1]))

	if p[0] > 0 {
		s += ",E"
	} else {
		s += ",W"
	}
	s += format(Abs(p[0]))

	return s
}

// ParseLatLong parses either the dotted DMS form used in the data files
// ("N037.37.08.000,W122.22.30.000") or a pair of decimal degrees
// ("37.6189, -122.375"), latitude first in both cases.
func ParseLatLong(s string) (Point2LL, error) {
	s = strings.TrimSpace(s)
	if len(s) > 0 && (s[0] == 'N' || s[0] == 'S') {
		lat, lon, ok := strings.Cut(s, ",")
		if !ok {
			return Point2LL{}, fmt.Errorf("%s: invalid latlong string", s)
		}
		la, err := parseDMS(lat, 'N', 'S')
		if err != nil {
			return Point2LL{}, err
		}
		lo, err := parseDMS(strings.TrimSpace(lon), 'E', 'W')
		if err != nil {
			return Point2LL{}, err
		}
		return Point2LL{lo, la}, nil
	}

	lat, lon, ok := strings.Cut(s, ",")
	if !ok {
		return Point2LL{}, fmt.Errorf("%s: invalid latlong string", s)
	}
	la, err := strconv.ParseFloat(strings.TrimSpace(lat), 32)
	if err != nil {
		return Point2LL{}, err
	}
	lo, err := strconv.ParseFloat(strings.TrimSpace(lon), 32)
	if err != nil {
		return Point2LL{}, err
	}
	return Point2LL{float32(lo), float32(la)}, nil
}

func parseDMS(s string, pos, neg byte) (float32, error) {
	if len(s) == 0 || (s[0] != pos && s[0] != neg) {
		return 0, fmt.Errorf("%s: expected %c or %c", s, pos, neg)
	}
	f := strings.Split(s[1:], ".")
	if len(f) != 4 {
		return 0, fmt.Errorf("%s: expected four dotted components", s)
	}
	// Treat the last set of digits as a decimal, so that Nxx.yy.zz.1 is
	// handled like Nxx.yy.zz.100.
	for len(f[3]) < 3 {
		f[3] += "0"
	}

	scales := [4]float64{1, 60, 3600, 3600000}
	var v float64
	for i, c := range f {
		n, err := strconv.Atoi(c)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", s, err)
		}
		v += float64(n) / scales[i]
	}
	if s[0] == neg {
		v = -v
	}
	return float32(v), nil
}

// Store Point2LLs as strings is JSON, for compactness/friendliness...
func (p Point2LL) MarshalJSON() ([]byte, error) {
	return []byte("\"" + p.DMSString() + "\""), nil
}

func (p *Point2LL) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '[' {
		// [longitude, latitude]
		var pt [2]float32
		err := json.Unmarshal(b, &pt)
		if err == nil {
			*p = pt
		}
		return err
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	pt, err := ParseLatLong(s)
	if err == nil {
		*p = pt
	}
	return err
}

// NMPerLongitudeAt returns the number of nautical miles per degree of
// longitude at the given point's latitude.
func NMPerLongitudeAt(p Point2LL) float32 {
	return NMPerLatitude * Cos(Radians(p[1]))
}

// NMDistance2LL returns the distance in nautical miles between two
// provided lat-long coordinates.
func NMDistance2LL(a Point2LL, b Point2LL) float32 {
	// https://www.movable-type.co.uk/scripts/latlong.html
	const R = 6371000 // metres
	rad := func(d float64) float64 { return float64(d) / 180 * gomath.Pi }
	lat1, lon1 := rad(float64(a[1])), rad(float64(a[0]))
	lat2, lon2 := rad(float64(b[1])), rad(float64(b[0]))
	dlat, dlon := lat2-lat1, lon2-lon1

	x := Sqr(gomath.Sin(dlat/2)) + gomath.Cos(lat1)*gomath.Cos(lat2)*Sqr(gomath.Sin(dlon/2))
	c := 2 * gomath.Atan2(gomath.Sqrt(x), gomath.Sqrt(1-x))
	dm := R * c // in metres

	return float32(dm * MetersToNauticalMiles)
}

// NM2LL converts a point expressed in nautical mile coordinates to
// lat-long.
func NM2LL(p [2]float32, nmPerLongitude float32) Point2LL {
	return Point2LL{p[0] / nmPerLongitude, p[1] / NMPerLatitude}
}

// LL2NM converts a point expressed in latitude-longitude coordinates to
// nautical mile coordinates; this is useful for example for reasoning
// about distances, since both axes then have the same measure.
func LL2NM(p Point2LL, nmPerLongitude float32) [2]float32 {
	return [2]float32{p[0] * nmPerLongitude, p[1] * NMPerLatitude}
}

// Offset2LL returns the point at distance dist along the vector with heading hdg from
// the given point. It assumes a (locally) flat earth.
func Offset2LL(pll Point2LL, hdg float32, dist float32, nmPerLongitude float32) Point2LL {
	p := LL2NM(pll, nmPerLongitude)
	h := Radians(float32(hdg))
	v := [2]float32{Sin(h), Cos(h)}
	v = Scale2f(v, float32(dist))
	p = Add2f(p, v)
	return NM2LL(p, nmPerLongitude)
}
