// sim/atc.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"slices"
	"time"

	"github.com/mmp/aitraffic/math"
)

type ControllerKind int

const (
	NoController ControllerKind = iota
	StartupControl
	GroundControl
	TowerControl
	ApproachControl
)

func (k ControllerKind) String() string {
	return [...]string{"none", "startup", "ground", "tower", "approach"}[k]
}

// ControllerRef identifies the controller an aircraft is talking to.
type ControllerRef struct {
	Airport string
	Kind    ControllerKind
}

func (r ControllerRef) IsZero() bool {
	return r.Kind == NoController
}

type Clearance int

const (
	ClearanceDeferred Clearance = iota
	ClearanceGranted
)

// Controller is implemented by each of an airport's AI controllers. An
// aircraft announces its position to its current controller on every
// update and requests a clearance from the controller responsible for
// the leg it's about to enter.
type Controller interface {
	Kind() ControllerKind
	Ref() ControllerRef
	AnnouncePosition(w *World, ac *Aircraft, now time.Time)
	RequestClearance(w *World, ac *Aircraft, from, to Leg, now time.Time) Clearance
	Release(id AircraftID)
}

type controllerBase struct {
	dyn  *AirportDynamics
	kind ControllerKind
	// Aircraft under control, in the order they were first heard from.
	order []AircraftID
}

func makeControllerBase(d *AirportDynamics, kind ControllerKind) controllerBase {
	return controllerBase{dyn: d, kind: kind}
}

func (c *controllerBase) Kind() ControllerKind {
	return c.kind
}

func (c *controllerBase) Ref() ControllerRef {
	return ControllerRef{Airport: c.dyn.Airport.ICAO, Kind: c.kind}
}

func (c *controllerBase) enroll(id AircraftID) {
	if !slices.Contains(c.order, id) {
		c.order = append(c.order, id)
	}
}

func (c *controllerBase) Release(id AircraftID) {
	c.order = slices.DeleteFunc(c.order, func(o AircraftID) bool { return o == id })
}

// Aircraft returns the aircraft under control in enrollment order.
func (c *controllerBase) Aircraft() []AircraftID {
	return slices.Clone(c.order)
}

///////////////////////////////////////////////////////////////////////////
// StartupController

// StartupController gives parked aircraft their startup and pushback
// clearance once their departure time arrives.
type StartupController struct {
	controllerBase
}

func (s *StartupController) AnnouncePosition(w *World, ac *Aircraft, now time.Time) {
	s.enroll(ac.ID)
}

func (s *StartupController) RequestClearance(w *World, ac *Aircraft, from, to Leg, now time.Time) Clearance {
	s.enroll(ac.ID)
	if now.Before(ac.DepartureTime) {
		return ClearanceDeferred
	}
	return ClearanceGranted
}

///////////////////////////////////////////////////////////////////////////
// GroundController

const groundConflictDistance = 0.1 // nm

// GroundController clears aircraft to taxi and resolves conflicts
// between taxiing aircraft: when two converge, the one that was handed
// off later is told to hold position until the other is clear.
type GroundController struct {
	controllerBase
	holding map[AircraftID]bool
}

func (g *GroundController) AnnouncePosition(w *World, ac *Aircraft, now time.Time) {
	g.enroll(ac.ID)
	if !ac.State.OnGround || !ac.Leg.Taxiing() {
		return
	}

	conflict := false
	for _, id := range g.order {
		if id == ac.ID {
			break
		}
		if other, ok := w.Get(id); ok && !other.Die && groundConflict(ac, other) {
			conflict = true
			break
		}
	}

	if conflict && !ac.Override.HoldPosition {
		ac.ProcessATC(Instruction{Type: HoldPosition, Issuer: GroundControl})
		g.holding[ac.ID] = true
	} else if !conflict && g.holding[ac.ID] {
		if ac.Override.HoldPosition {
			ac.ProcessATC(Instruction{Type: ResumeTaxi, Issuer: GroundControl})
		}
		delete(g.holding, ac.ID)
	}
}

// groundConflict reports whether other is close to ac, in front of it
// and moving toward it.
func groundConflict(ac, other *Aircraft) bool {
	if !other.State.OnGround || other.State.Speed < 1 {
		return false
	}
	d := math.NMDistance2LL(ac.State.Position, other.State.Position)
	if d > groundConflictDistance {
		return false
	}
	nmPerLong := math.NMPerLongitudeAt(ac.State.Position)
	toOther := math.Heading2LL(ac.State.Position, other.State.Position, nmPerLong, 0)
	toAc := math.OppositeHeading(toOther)
	return math.HeadingDifference(toOther, ac.State.Heading) < 60 &&
		math.HeadingDifference(toAc, other.State.Heading) < 90
}

func (g *GroundController) RequestClearance(w *World, ac *Aircraft, from, to Leg, now time.Time) Clearance {
	g.enroll(ac.ID)
	return ClearanceGranted
}

func (g *GroundController) Release(id AircraftID) {
	g.controllerBase.Release(id)
	delete(g.holding, id)
}

///////////////////////////////////////////////////////////////////////////
// TowerController

// TowerController sequences departures through each runway's queue and
// grants the runway to one aircraft at a time for takeoff or landing.
type TowerController struct {
	controllerBase
}

// ScheduleForATCTowerDepartureControl adds a departure that has reached
// the holding point to the runway's queue and assigns it a takeoff slot.
func (t *TowerController) ScheduleForATCTowerDepartureControl(ac *Aircraft, rwy string, now time.Time) {
	t.enroll(ac.ID)
	t.dyn.enqueueDeparture(rwy, ac.ID)
	ac.TakeoffStatus = TakeoffQueued
	ac.TakeoffSlot = t.dyn.SetTakeOffSlot(rwy, now)
}

func (t *TowerController) AnnouncePosition(w *World, ac *Aircraft, now time.Time) {
	t.enroll(ac.ID)
	t.dyn.filterDeleted(w)
}

func (t *TowerController) RequestClearance(w *World, ac *Aircraft, from, to Leg, now time.Time) Clearance {
	t.enroll(ac.ID)

	switch to {
	case LegTakeoff:
		rwy := ac.Plan.DepartureRunway
		if ac.TakeoffStatus == TakeoffNone {
			t.ScheduleForATCTowerDepartureControl(ac, rwy, now)
		}
		if q := t.dyn.DepartureQueue(rwy); len(q) == 0 || q[0] != ac.ID {
			return ClearanceDeferred
		}
		if now.Before(ac.TakeoffSlot) || !t.dyn.acquireRunway(rwy, ac.ID) {
			return ClearanceDeferred
		}
		ac.ProcessATC(Instruction{Type: ClearedForTakeoff, Issuer: TowerControl})
		return ClearanceGranted

	case LegLanding:
		if !t.dyn.acquireRunway(ac.Plan.ArrivalRunway, ac.ID) {
			return ClearanceDeferred
		}
		ac.ProcessATC(Instruction{Type: ClearedToLand, Issuer: TowerControl})
		return ClearanceGranted

	default:
		return ClearanceGranted
	}
}

func (t *TowerController) Release(id AircraftID) {
	t.controllerBase.Release(id)
	t.dyn.releaseRunways(id)
}

///////////////////////////////////////////////////////////////////////////
// ApproachController

// ApproachController sequences arrivals by their distance from the
// runway, slowing aircraft that are closing on the one ahead.
type ApproachController struct {
	controllerBase
	slowed map[AircraftID]bool
}

func (a *ApproachController) RequestClearance(w *World, ac *Aircraft, from, to Leg, now time.Time) Clearance {
	a.enroll(ac.ID)
	return ClearanceGranted
}

func (a *ApproachController) distanceToRunway(ac *Aircraft) (float32, bool) {
	if ac.Plan == nil {
		return 0, false
	}
	rwy, ok := a.dyn.Airport.LookupRunway(ac.Plan.ArrivalRunway)
	if !ok {
		return 0, false
	}
	return math.NMDistance2LL(ac.State.Position, rwy.Threshold), true
}

// Sequence returns the arrivals under control ordered by distance to
// their runway, closest first.
func (a *ApproachController) Sequence(w *World) []AircraftID {
	type arrival struct {
		id   AircraftID
		dist float32
	}
	var arr []arrival
	for _, id := range a.order {
		if ac, ok := w.Get(id); ok && !ac.Die {
			if d, ok := a.distanceToRunway(ac); ok {
				arr = append(arr, arrival{id: id, dist: d})
			}
		}
	}
	slices.SortStableFunc(arr, func(x, y arrival) int {
		if x.dist < y.dist {
			return -1
		} else if x.dist > y.dist {
			return 1
		}
		return 0
	})

	var ids []AircraftID
	for _, v := range arr {
		ids = append(ids, v.id)
	}
	return ids
}

func (a *ApproachController) AnnouncePosition(w *World, ac *Aircraft, now time.Time) {
	a.enroll(ac.ID)

	dist, ok := a.distanceToRunway(ac)
	if !ok {
		return
	}

	// Find the closest aircraft ahead landing on the same runway.
	var leader *Aircraft
	var leaderDist float32
	for _, id := range a.order {
		other, ok := w.Get(id)
		if !ok || other.ID == ac.ID || other.Die || other.Plan == nil ||
			other.Plan.ArrivalRunway != ac.Plan.ArrivalRunway {
			continue
		}
		if d, ok := a.distanceToRunway(other); ok && d < dist && (leader == nil || d > leaderDist) {
			leader, leaderDist = other, d
		}
	}

	if leader != nil && dist-leaderDist < a.dyn.settings.ArrivalSpacing {
		spd := max(leader.State.Speed-20, ac.Perf.Speed.Landing)
		if ac.Override.Speed == nil || *ac.Override.Speed != spd {
			ac.ProcessATC(Instruction{Type: AssignSpeed, Value: spd, Issuer: ApproachControl})
		}
		a.slowed[ac.ID] = true
	} else if a.slowed[ac.ID] {
		ac.ProcessATC(Instruction{Type: CancelSpeed, Issuer: ApproachControl})
		delete(a.slowed, ac.ID)
	}
}

func (a *ApproachController) Release(id AircraftID) {
	a.controllerBase.Release(id)
	delete(a.slowed, id)
}
