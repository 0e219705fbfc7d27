// sim/leg.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

// Leg is the phase of flight an aircraft is in. Legs are ordered: an
// aircraft only moves forward through them, apart from an explicit
// Reposition. Holding is tracked separately by Aircraft.Holding and
// doesn't change the leg.
type Leg int

const (
	LegNone Leg = iota
	LegStartupPushback
	LegTaxi
	LegTakeoff
	LegClimb
	LegCruise
	LegApproach
	LegLanding
	LegParkingTaxi
	LegParking
)

func (l Leg) String() string {
	return [...]string{"none", "startup", "taxi", "takeoff", "climb", "cruise", "approach", "landing",
		"parking-taxi", "parking"}[l]
}

// Taxiing reports whether the leg is flown on the ground at taxi speeds.
func (l Leg) Taxiing() bool {
	return l == LegStartupPushback || l == LegTaxi || l == LegParkingTaxi
}

type TakeoffStatus int

const (
	TakeoffNone TakeoffStatus = iota
	TakeoffQueued
	TakeoffCleared
)

func (t TakeoffStatus) String() string {
	return [...]string{"none", "queued", "cleared"}[t]
}

// Kind distinguishes aircraft that fly their own flight plans from those
// whose state is provided from outside (e.g., a network feed) but that
// still participate in ground conflict checks.
type Kind int

const (
	KindScheduled Kind = iota
	KindExternal
)

func (k Kind) String() string {
	return [...]string{"scheduled", "external"}[k]
}

type DieReason int

const (
	DieNone DieReason = iota
	DieFinished
	DieStuck
	DiePlanExhausted
	DieRetired
	DieShutdown
)

func (d DieReason) String() string {
	return [...]string{"none", "finished", "stuck", "plan-exhausted", "retired", "shutdown"}[d]
}
