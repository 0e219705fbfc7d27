// sim/flightplan.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"log/slog"

	"github.com/mmp/aitraffic/math"
)

type Waypoint struct {
	Name     string
	Location math.Point2LL
	Altitude float32 // feet MSL; ignored for waypoints on the ground
	Speed    float32 // knots, on the way to the waypoint
	OnGround bool
	Leg      Leg
	// HoldShort marks the point where a departure waits for the tower.
	HoldShort bool
	// Stop means the aircraft should come to a stop at the waypoint
	// (e.g., at the end of pushback).
	Stop bool
}

// FlightPlan is the ordered sequence of waypoints an aircraft flies, from
// wherever it starts to its arrival parking.
type FlightPlan struct {
	Callsign         string
	Departure        string
	Arrival          string
	DepartureRunway  string
	ArrivalRunway    string
	DepartureParking string
	ArrivalParking   string
	CruiseAltitude   float32
	Waypoints        []Waypoint
	Index            int
}

// Current returns the waypoint the aircraft is flying to, or nil if the
// plan is exhausted.
func (fp *FlightPlan) Current() *Waypoint {
	if fp == nil || fp.Index >= len(fp.Waypoints) {
		return nil
	}
	return &fp.Waypoints[fp.Index]
}

// Next returns the waypoint after the current one, if any.
func (fp *FlightPlan) Next() *Waypoint {
	if fp == nil || fp.Index+1 >= len(fp.Waypoints) {
		return nil
	}
	return &fp.Waypoints[fp.Index+1]
}

func (fp *FlightPlan) Advance() {
	if fp.Index < len(fp.Waypoints) {
		fp.Index++
	}
}

func (fp *FlightPlan) Exhausted() bool {
	return fp == nil || fp.Index >= len(fp.Waypoints)
}

// FirstLeg returns the leg of the first waypoint.
func (fp *FlightPlan) FirstLeg() Leg {
	if fp == nil || len(fp.Waypoints) == 0 {
		return LegNone
	}
	return fp.Waypoints[0].Leg
}

func (fp *FlightPlan) Names() []string {
	var n []string
	for _, wp := range fp.Waypoints {
		n = append(n, wp.Name)
	}
	return n
}

func (fp *FlightPlan) LogValue() slog.Value {
	if fp == nil {
		return slog.StringValue("(none)")
	}
	return slog.GroupValue(
		slog.String("departure", fp.Departure),
		slog.String("arrival", fp.Arrival),
		slog.String("departure_runway", fp.DepartureRunway),
		slog.String("arrival_runway", fp.ArrivalRunway),
		slog.Int("index", fp.Index),
		slog.Any("waypoints", fp.Names()))
}
