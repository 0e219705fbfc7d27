// aviation/airport.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package aviation

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/mmp/aitraffic/math"
)

type Airport struct {
	ICAO      string        `json:"-"`
	Name      string        `json:"name"`
	Location  math.Point2LL `json:"location"`
	Elevation int           `json:"elevation"`
	// Magnetic variation, positive east; true = magnetic + variation.
	// If it's not given in the data, it's computed from the world
	// magnetic model when the database is loaded.
	MagVar            *float32   `json:"magvar,omitempty"`
	MagneticVariation float32    `json:"-"`
	Runways           []Runway   `json:"runways"`
	Parking           []Parking  `json:"parking"`
	RunwayUse         *RunwayUse `json:"rwyuse,omitempty"`
}

type Runway struct {
	Id string `json:"id"`
	// Magnetic heading
	Heading   float32       `json:"heading"`
	Threshold math.Point2LL `json:"threshold"`
	Length    float32       `json:"length"` // feet
}

type Parking struct {
	Id       string        `json:"id"`
	Location math.Point2LL `json:"location"`
	Heading  float32       `json:"heading"` // true, nose-in direction
	Radius   float32       `json:"radius"`  // meters
	Type     string        `json:"type"`    // gate, ga, cargo, mil
	Airlines []string      `json:"airlines,omitempty"`
}

func (ap *Airport) NMPerLongitude() float32 {
	return math.NMPerLongitudeAt(ap.Location)
}

func TidyRunway(r string) string {
	r, _, _ = strings.Cut(r, ".")
	return strings.ToUpper(strings.TrimSpace(r))
}

func (ap *Airport) LookupRunway(id string) (Runway, bool) {
	id = TidyRunway(id)
	idx := slices.IndexFunc(ap.Runways, func(r Runway) bool { return r.Id == id })
	if idx == -1 {
		return Runway{}, false
	}
	return ap.Runways[idx], true
}

// OppositeRunwayId returns the identifier for the other end of the given
// runway: "28L" -> "10R", "4" -> "22".
func OppositeRunwayId(id string) (string, error) {
	id = TidyRunway(id)
	n := len(id)
	for n > 0 && (id[n-1] < '0' || id[n-1] > '9') {
		n--
	}
	num, err := strconv.Atoi(id[:n])
	if err != nil || num < 1 || num > 36 {
		return "", fmt.Errorf("%s: invalid runway number", id)
	}
	opp := num + 18
	if opp > 36 {
		opp -= 36
	}

	suffix := ""
	switch id[n:] {
	case "":
	case "L":
		suffix = "R"
	case "R":
		suffix = "L"
	case "C":
		suffix = "C"
	default:
		return "", fmt.Errorf("%s: invalid runway suffix", id)
	}
	return strconv.Itoa(opp) + suffix, nil
}

// TrueHeading returns the runway's true heading at the given airport.
func (ap *Airport) TrueHeading(rwy Runway) float32 {
	return math.NormalizeHeading(rwy.Heading + ap.MagneticVariation)
}

// RunwayEnd returns the location of the far end of the runway.
func (ap *Airport) RunwayEnd(rwy Runway) math.Point2LL {
	return math.Offset2LL(rwy.Threshold, ap.TrueHeading(rwy), rwy.Length*math.FeetToNauticalMiles,
		ap.NMPerLongitude())
}

// SelectBestRunway returns the runway best aligned with the wind (blowing
// from windDir, true); if none is within 90 degrees of the wind, the
// opposite end of the closest runway is returned if it's known.
func (ap *Airport) SelectBestRunway(windDir float32) (Runway, bool) {
	whdg := math.NormalizeHeading(windDir - ap.MagneticVariation)

	minDelta := float32(1000)
	bestRwy := -1
	for i, rwy := range ap.Runways {
		if d := math.HeadingDifference(whdg, rwy.Heading); d < minDelta {
			minDelta = d
			bestRwy = i
		}
	}
	if bestRwy == -1 {
		return Runway{}, false
	}

	rwy := ap.Runways[bestRwy]
	if minDelta > 90 {
		if opp, err := OppositeRunwayId(rwy.Id); err == nil {
			if orwy, ok := ap.LookupRunway(opp); ok {
				return orwy, true
			}
		}
	}
	return rwy, true
}

// Fits reports whether the parking position can be used by an
// aircraft of the given class and airline that needs the given radius
// (meters).
func (p Parking) Fits(radius float32, class TrafficType, airline string) bool {
	if p.Radius < radius {
		return false
	}
	switch class {
	case TrafficCommercial:
		if p.Type != "gate" && p.Type != "cargo" {
			return false
		}
	case TrafficMilitary:
		if p.Type != "mil" && p.Type != "ga" {
			return false
		}
	default:
		if p.Type != "ga" {
			return false
		}
	}
	return len(p.Airlines) == 0 || airline == "" || slices.Contains(p.Airlines, airline)
}
