// nav/lateral.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package nav

import (
	"github.com/mmp/aitraffic/math"
)

const (
	gravity                = 9.81 // m/s^2
	knotsToMetersPerSecond = 0.514444
	knotsToFeetPerSecond   = 1.68781
)

type TurnMethod int

const (
	TurnClosest TurnMethod = iota // default
	TurnLeft
	TurnRight
)

func (t TurnMethod) String() string {
	return []string{"closest", "left", "right"}[t]
}

const StandardTurnRate = 3

func TurnAngle(from, to float32, turn TurnMethod) float32 {
	switch turn {
	case TurnLeft:
		return math.NormalizeHeading(from - to)

	case TurnRight:
		return math.NormalizeHeading(to - from)

	case TurnClosest:
		return math.Abs(math.HeadingDifference(from, to))

	default:
		panic("unhandled TurnMethod")
	}
}

// TurnRate returns the turn rate in degrees per second for the given bank
// angle and airspeed (knots); it's signed like the bank angle.
func TurnRate(bank, speed float32) float32 {
	if bank == 0 || speed <= 0 {
		return 0
	}
	v := speed * knotsToMetersPerSecond
	return math.Degrees(gravity * math.Tan(math.Radians(bank)) / v)
}

// TurnRadius returns the radius in nautical miles of a turn at the given
// airspeed and bank angle.
func TurnRadius(speed, bank float32) float32 {
	t := math.Tan(math.Radians(math.Abs(bank)))
	if t < 1e-3 {
		return 0
	}
	v := speed * knotsToMetersPerSecond
	return v * v / (gravity * t) * math.MetersToNauticalMiles
}

// GroundTurnRate returns the turn rate in degrees per second when taxiing
// at the given speed (knots) around a turn of the given radius (nm).
func GroundTurnRate(speed, radius float32) float32 {
	if radius <= 0 {
		return 0
	}
	return math.Degrees(speed / 3600 / radius)
}

// UpdateHeading turns from cur toward target by at most rate*dt degrees,
// turning the closest way.
func UpdateHeading(cur, target, rate, dt float32) float32 {
	turn := math.HeadingSignedTurn(cur, target)
	step := math.Abs(rate * dt)
	if math.Abs(turn) <= step {
		return math.NormalizeHeading(target)
	}
	return math.NormalizeHeading(cur + math.Sign(turn)*step)
}

// LeadDistance returns how far before a waypoint an aircraft flying a turn
// of the given radius (nm) must start turning to roll out on the new
// course after turning through turnAngle degrees.
func LeadDistance(radius, turnAngle float32) float32 {
	turnAngle = math.Clamp(turnAngle, 0, 120)
	return radius * math.Tan(math.Radians(turnAngle/2))
}

// WaypointReached reports whether an aircraft at pos, tracking hdg
// (true), should consider the waypoint wp reached. nextHdg is the course
// of the following leg and radius is the aircraft's turn radius (nm), so
// that waypoints preceding large turns are reached early enough to avoid
// overshooting the next leg. tolerance (nm) is the capture distance for a
// waypoint with no turn.
func WaypointReached(pos math.Point2LL, hdg float32, wp math.Point2LL, nextHdg, radius, tolerance float32) bool {
	dist := math.NMDistance2LL(pos, wp)

	var lead float32
	if turn := TurnAngle(hdg, nextHdg, TurnClosest); turn >= 1 {
		lead = LeadDistance(radius, turn)
	}
	if dist <= tolerance+lead {
		return true
	}

	// Passed abeam: the waypoint is behind and close enough that it can't
	// be captured without circling back.
	brg := math.Heading2LL(pos, wp, math.NMPerLongitudeAt(pos), 0)
	return math.HeadingDifference(hdg, brg) > 90 && dist <= tolerance+lead+2*radius
}
