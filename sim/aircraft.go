// sim/aircraft.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"log/slog"
	"time"

	av "github.com/mmp/aitraffic/aviation"
	"github.com/mmp/aitraffic/log"
	"github.com/mmp/aitraffic/math"
	"github.com/mmp/aitraffic/nav"
	"github.com/mmp/aitraffic/util"

	"github.com/brunoga/deep"
	"github.com/goforj/godump"
)

const (
	groundWaypointTolerance = 0.01 // nm
	airWaypointTolerance    = 0.2  // nm
	defaultGroundTurnRadius = 25   // meters
	// Taxiing aircraft stop for anything within this distance ahead of them.
	blockDistance = 0.05 // nm
	blockAngle    = 30   // degrees either side of the nose
)

// AircraftSpec is the static description of an aircraft.
type AircraftSpec struct {
	Callsign     string
	Registration string
	AircraftType string
	ModelPath    string
	Livery       string
	Airline      string
	Class        av.TrafficType
	Heavy        bool
	Performance  av.AircraftPerformance
	TurnRadius   float32 // meters, when taxiing
	GroundOffset float32 // feet
}

// FlightState is the aircraft's kinematic state. Headings are true and
// the altitude is MSL.
type FlightState struct {
	Position        math.Point2LL
	Altitude        float32 // feet
	Heading         float32
	Bank            float32 // degrees, positive right
	Pitch           float32
	Speed           float32 // knots
	VerticalSpeed   float32 // feet per minute
	OnGround        bool
	GroundElevation float32 // feet
}

type Targets struct {
	Heading       float32
	Speed         float32
	Altitude      float32
	VerticalSpeed float32
	Bank          float32
	Pitch         float32
}

type Aircraft struct {
	ID   AircraftID
	Kind Kind
	AircraftSpec

	Perf          nav.Performance
	DepartureTime time.Time

	State  FlightState
	Target Targets
	Plan   *FlightPlan
	Leg    Leg

	// Holding is set when an airborne aircraft is orbiting while it
	// waits for a clearance.
	Holding       bool
	holdAltitude  float32
	TakeoffStatus TakeoffStatus
	TakeoffSlot   time.Time
	ClearedToLand bool

	ATC      ControllerRef
	Override Overrides

	// Parked aircraft are waiting at the gate for startup clearance.
	Parked            bool
	AwaitingClearance bool
	Blocked           bool
	StuckCounter      int

	Die       bool
	DieReason DieReason

	LastUpdate    time.Time
	haveElevation bool

	lg *log.Logger
}

// NewAircraft returns an aircraft that will fly the given plan starting
// from the given state.
func NewAircraft(spec AircraftSpec, plan *FlightPlan, state FlightState, lg *log.Logger) *Aircraft {
	ac := &Aircraft{
		Kind:         KindScheduled,
		AircraftSpec: spec,
		Perf:         nav.MakePerformance(spec.Performance),
		Plan:         plan,
		State:        state,
		lg:           lg,
	}
	ac.Leg = plan.FirstLeg()
	ac.Parked = ac.Leg == LegStartupPushback
	return ac
}

// NewExternalAircraft returns an aircraft whose state is set from
// outside with SetExternalState.
func NewExternalAircraft(spec AircraftSpec, state FlightState, lg *log.Logger) *Aircraft {
	return &Aircraft{
		Kind:         KindExternal,
		AircraftSpec: spec,
		Perf:         nav.MakePerformance(spec.Performance),
		State:        state,
		lg:           lg,
	}
}

func (ac *Aircraft) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("id", int(ac.ID)),
		slog.String("callsign", ac.Callsign),
		slog.String("kind", ac.Kind.String()),
		slog.String("leg", ac.Phase()),
		slog.String("position", ac.State.Position.DDString()),
		slog.Float64("altitude", float64(ac.State.Altitude)),
		slog.Float64("speed", float64(ac.State.Speed)),
		slog.Bool("on_ground", ac.State.OnGround))
}

// Phase is the aircraft's leg for display, or "hold" while it's
// orbiting for a deferred clearance.
func (ac *Aircraft) Phase() string {
	return util.Select(ac.Holding, "hold", ac.Leg.String())
}

// AircraftSnapshot is a deep copy of an aircraft's state that can be
// handed to other goroutines.
type AircraftSnapshot struct {
	ID            AircraftID
	Kind          Kind
	Spec          AircraftSpec
	State         FlightState
	Target        Targets
	Plan          *FlightPlan
	Leg           Leg
	Holding       bool
	TakeoffStatus TakeoffStatus
	TakeoffSlot   time.Time
	ATC           ControllerRef
	Override      Overrides
	StuckCounter  int
	Die           bool
	DieReason     DieReason
}

func (ac *Aircraft) Snapshot() AircraftSnapshot {
	return deep.MustCopy(AircraftSnapshot{
		ID:            ac.ID,
		Kind:          ac.Kind,
		Spec:          ac.AircraftSpec,
		State:         ac.State,
		Target:        ac.Target,
		Plan:          ac.Plan,
		Leg:           ac.Leg,
		Holding:       ac.Holding,
		TakeoffStatus: ac.TakeoffStatus,
		TakeoffSlot:   ac.TakeoffSlot,
		ATC:           ac.ATC,
		Override:      ac.Override,
		StuckCounter:  ac.StuckCounter,
		Die:           ac.Die,
		DieReason:     ac.DieReason,
	})
}

// Kill marks the aircraft for removal; it's removed from the world by
// whoever owns it.
func (ac *Aircraft) Kill(w *World, reason DieReason) {
	if ac.Die {
		return
	}
	ac.Die = true
	ac.DieReason = reason
	ac.releaseATC(w)
	ac.lg.Info("aircraft done", slog.Any("aircraft", ac), slog.String("reason", reason.String()))
}

// Reposition resets the aircraft to fly a new plan from a new state.
// It's the only way that an aircraft's leg may go backward. Any parking
// for the new plan must already be reserved.
func (ac *Aircraft) Reposition(w *World, plan *FlightPlan, state FlightState) {
	ac.releaseATC(w)

	ac.Plan = plan
	ac.State = state
	ac.Leg = plan.FirstLeg()
	ac.Parked = ac.Leg == LegStartupPushback
	ac.Holding = false
	ac.TakeoffStatus = TakeoffNone
	ac.TakeoffSlot = time.Time{}
	ac.ClearedToLand = false
	ac.Override = Overrides{}
	ac.AwaitingClearance = false
	ac.Blocked = false
	ac.StuckCounter = 0
	ac.haveElevation = false

	nav.LogRoute(ac.Callsign, ac.LastUpdate, plan.Names())
}

// SetExternalState updates an external aircraft's state.
func (ac *Aircraft) SetExternalState(state FlightState, now time.Time) {
	ac.State = state
	ac.LastUpdate = now
}

// Update advances the aircraft by dt seconds.
func (ac *Aircraft) Update(w *World, now time.Time, dt float32) {
	if ac.Die {
		return
	}
	ac.LastUpdate = now

	if ac.Kind == KindExternal {
		ac.updateExternal(w, now)
		ac.publish(w, now)
		return
	}

	if ac.Parked {
		if ac.requestClearance(w, LegParking, LegStartupPushback, now) != ClearanceGranted {
			ac.publish(w, now)
			return
		}
		ac.Parked = false
		nav.NavLog(ac.Callsign, now, nav.NavLogATC, "startup approved")
	}

	wp := ac.Plan.Current()
	if wp == nil {
		ac.Kill(w, DiePlanExhausted)
		return
	}

	ac.updateElevation(w)
	ac.Blocked = ac.checkBlocked(w)
	ac.updateTargets(wp)
	if ac.Blocked {
		ac.holdPosition()
	} else {
		ac.integrate(dt)
		ac.updateWaypoint(w, now)
		if ac.Die {
			return
		}
	}
	ac.updateStuck(w)
	if ac.Die {
		return
	}

	ac.announce(w, now)
	ac.publish(w, now)
}

func (ac *Aircraft) updateElevation(w *World) {
	if ac.haveElevation && ac.State.Speed < 0.5 {
		return
	}
	if e, ok := w.elevation(ac.State.Position); ok {
		ac.State.GroundElevation = e
		ac.haveElevation = true
	} else {
		ac.haveElevation = false
	}
}

// groundLevel returns the elevation of the ground under the aircraft,
// falling back to the field elevation given by the current waypoint.
func (ac *Aircraft) groundLevel() float32 {
	if ac.haveElevation {
		return ac.State.GroundElevation
	}
	if wp := ac.Plan.Current(); wp != nil && wp.OnGround {
		return wp.Altitude
	}
	return ac.State.GroundElevation
}

func (ac *Aircraft) groundTurnRadius() float32 {
	r := ac.TurnRadius
	if r <= 0 {
		r = defaultGroundTurnRadius
	}
	return r * math.MetersToNauticalMiles
}

func (ac *Aircraft) mustStopAt(wp *Waypoint) bool {
	return wp.Stop || wp.HoldShort || ac.Plan.Next() == nil
}

func (ac *Aircraft) updateTargets(wp *Waypoint) {
	s, t, o := &ac.State, &ac.Target, ac.Override

	t.Heading = math.Heading2LL(s.Position, wp.Location, math.NMPerLongitudeAt(s.Position), 0)
	t.Speed = wp.Speed
	t.Altitude = wp.Altitude
	if wp.OnGround {
		t.Altitude = ac.groundLevel()
	}

	if s.OnGround && ac.mustStopAt(wp) {
		// Braking curve so that the aircraft stops at the waypoint.
		d := math.NMDistance2LL(s.Position, wp.Location)
		decel := ac.Perf.Rate.Decelerate * max(ac.Perf.Braking.Ground, 1)
		t.Speed = min(t.Speed, max(math.Sqrt(2*decel*d*3600), 2))
	}

	if ac.Holding {
		t.Heading = math.NormalizeHeading(s.Heading + 30)
		t.Speed = ac.Perf.Speed.Approach
		t.Altitude = ac.holdAltitude
	}

	if o.Heading != nil && !s.OnGround {
		t.Heading = *o.Heading
	}
	if o.Altitude != nil && !s.OnGround {
		t.Altitude = *o.Altitude
	}
	if o.Speed != nil {
		t.Speed = *o.Speed
	}
	if s.OnGround && (o.HoldPosition || ac.AwaitingClearance || ac.Blocked) {
		t.Speed = 0
	}

	if s.OnGround {
		t.VerticalSpeed, t.Bank, t.Pitch = 0, 0, 0
	} else {
		t.VerticalSpeed = ac.Perf.TargetVerticalSpeed(t.Altitude - s.Altitude)
		t.Bank = ac.Perf.TargetBank(math.HeadingSignedTurn(s.Heading, t.Heading), s.Speed)
		t.Pitch = nav.TargetPitch(t.VerticalSpeed, s.Speed)
	}
}

func (ac *Aircraft) integrate(dt float32) {
	s, t, p := &ac.State, ac.Target, ac.Perf

	maxBrakes := s.OnGround && ac.Leg == LegLanding
	s.Speed = max(p.NextSpeed(s.Speed, t.Speed, dt, s.OnGround, maxBrakes), 0)

	if s.OnGround {
		rate := nav.GroundTurnRate(s.Speed, ac.groundTurnRadius())
		s.Heading = nav.UpdateHeading(s.Heading, t.Heading, rate, dt)
		s.Bank = p.NextBank(s.Bank, 0, dt)
		s.Pitch = p.NextPitch(s.Pitch, 0, dt)
		s.VerticalSpeed = 0
		s.Altitude = ac.groundLevel()

		if ac.Leg == LegTakeoff && ac.TakeoffStatus == TakeoffCleared && s.Speed >= p.Speed.Rotate {
			s.OnGround = false
			nav.NavLog(ac.Callsign, ac.LastUpdate, nav.NavLogState, "rotate at %.0f kts", s.Speed)
		}
	} else {
		s.Bank = p.NextBank(s.Bank, t.Bank, dt)
		s.Heading = nav.UpdateHeading(s.Heading, t.Heading, nav.TurnRate(s.Bank, s.Speed), dt)
		s.VerticalSpeed = p.NextVerticalSpeed(s.VerticalSpeed, t.VerticalSpeed, dt)
		s.Altitude = p.NextAltitude(s.Altitude, t.Altitude, s.VerticalSpeed, dt)
		s.Pitch = p.NextPitch(s.Pitch, t.Pitch, dt)

		if wp := ac.Plan.Current(); ac.Leg == LegLanding && ac.ClearedToLand && wp != nil && wp.OnGround &&
			s.Altitude <= ac.groundLevel()+5 {
			s.OnGround = true
			s.Altitude = ac.groundLevel()
			s.VerticalSpeed, s.Bank = 0, 0
			nav.NavLog(ac.Callsign, ac.LastUpdate, nav.NavLogState, "touchdown at %.0f kts", s.Speed)
		}
	}

	s.Position = math.Offset2LL(s.Position, s.Heading, s.Speed*dt/3600, math.NMPerLongitudeAt(s.Position))
}

// holdPosition stops a taxiing aircraft where it is.
func (ac *Aircraft) holdPosition() {
	s := &ac.State
	s.Speed, s.VerticalSpeed, s.Bank, s.Pitch = 0, 0, 0, 0
	s.Altitude = ac.groundLevel()
}

func (ac *Aircraft) updateWaypoint(w *World, now time.Time) {
	if ac.AwaitingClearance {
		if next := ac.Plan.Next(); next == nil {
			ac.AwaitingClearance = false
		} else if ac.transition(w, next.Leg, now) {
			ac.Plan.Advance()
		}
		return
	}

	wp := ac.Plan.Current()
	if wp == nil {
		return
	}
	next := ac.Plan.Next()

	s := ac.State
	nextHdg := s.Heading
	if next != nil {
		nextHdg = math.Heading2LL(wp.Location, next.Location, math.NMPerLongitudeAt(wp.Location), 0)
	}
	radius, tolerance := ac.groundTurnRadius(), float32(groundWaypointTolerance)
	if !s.OnGround {
		radius = nav.TurnRadius(max(s.Speed, 60), ac.Perf.Turn.MaxBankAngle)
		tolerance = airWaypointTolerance
	}
	if !nav.WaypointReached(s.Position, s.Heading, wp.Location, nextHdg, radius, tolerance) {
		return
	}

	nav.NavLog(ac.Callsign, now, nav.NavLogWaypoint, "reached %s", wp.Name)

	if wp.HoldShort && ac.TakeoffStatus == TakeoffNone {
		if d, err := w.Dynamics(ac.Plan.Departure); err == nil {
			ac.handoff(w, d.Tower)
			d.Tower.ScheduleForATCTowerDepartureControl(ac, ac.Plan.DepartureRunway, now)
			nav.NavLog(ac.Callsign, now, nav.NavLogATC, "holding short %s, slot %s", ac.Plan.DepartureRunway,
				ac.TakeoffSlot.Format(time.TimeOnly))
		}
	}

	if next == nil {
		ac.Plan.Advance()
		ac.Kill(w, DieFinished)
		return
	}
	if next.Leg != ac.Leg && !ac.transition(w, next.Leg, now) {
		return
	}
	ac.Plan.Advance()
}

// transition requests clearance to enter the given leg; if it's not
// given, the aircraft holds (in an orbit, if airborne) and asks again
// on subsequent updates.
func (ac *Aircraft) transition(w *World, to Leg, now time.Time) bool {
	if ac.requestClearance(w, ac.Leg, to, now) != ClearanceGranted {
		if !ac.AwaitingClearance {
			nav.NavLog(ac.Callsign, now, nav.NavLogATC, "%s -> %s deferred", ac.Leg, to)
		}
		ac.AwaitingClearance = true
		if !ac.State.OnGround && !ac.Holding {
			ac.Holding = true
			ac.holdAltitude = ac.State.Altitude
			nav.NavLog(ac.Callsign, now, nav.NavLogHold, "entering hold at %.0f", ac.holdAltitude)
		}
		return false
	}

	ac.AwaitingClearance = false
	ac.Holding = false
	ac.setLeg(w, to, now)
	return true
}

func (ac *Aircraft) setLeg(w *World, to Leg, now time.Time) {
	if to < ac.Leg {
		ac.lg.Warn("ignoring backward leg change", slog.Any("aircraft", ac), slog.String("to", to.String()))
		return
	}

	from := ac.Leg
	ac.Leg = to
	if ac.Override.Active() {
		nav.NavLog(ac.Callsign, now, nav.NavLogATC, "overrides canceled entering %s", to)
		ac.Override = Overrides{}
	}

	if to == LegTaxi && ac.Plan.DepartureParking != "" {
		if d, err := w.Dynamics(ac.Plan.Departure); err == nil {
			d.ReleaseParking(ac.Plan.DepartureParking)
		}
	}
	nav.NavLog(ac.Callsign, now, nav.NavLogState, "leg %s -> %s", from, to)
}

///////////////////////////////////////////////////////////////////////////
// ATC

// controllerFor returns the controller responsible for the given leg,
// or nil if no clearance is needed to enter it.
func (ac *Aircraft) controllerFor(w *World, to Leg) Controller {
	icao, kind := ac.Plan.Arrival, NoController
	switch to {
	case LegStartupPushback:
		icao, kind = ac.Plan.Departure, StartupControl
	case LegTaxi:
		icao, kind = ac.Plan.Departure, GroundControl
	case LegTakeoff:
		icao, kind = ac.Plan.Departure, TowerControl
	case LegApproach:
		kind = ApproachControl
	case LegLanding:
		kind = TowerControl
	case LegParkingTaxi, LegParking:
		kind = GroundControl
	default:
		return nil
	}

	d, err := w.Dynamics(icao)
	if err != nil {
		return nil
	}
	return d.Controller(kind)
}

func (ac *Aircraft) requestClearance(w *World, from, to Leg, now time.Time) Clearance {
	ctrl := ac.controllerFor(w, to)
	if ctrl == nil {
		ac.releaseATC(w)
		return ClearanceGranted
	}
	ac.handoff(w, ctrl)
	return ctrl.RequestClearance(w, ac, from, to, now)
}

func (ac *Aircraft) currentController(w *World) Controller {
	if ac.ATC.IsZero() {
		return nil
	}
	d, err := w.Dynamics(ac.ATC.Airport)
	if err != nil {
		return nil
	}
	return d.Controller(ac.ATC.Kind)
}

func (ac *Aircraft) handoff(w *World, ctrl Controller) {
	ref := ctrl.Ref()
	if ac.ATC == ref {
		return
	}
	if cur := ac.currentController(w); cur != nil {
		cur.Release(ac.ID)
	}
	nav.NavLog(ac.Callsign, ac.LastUpdate, nav.NavLogATC, "contact %s %s", ref.Airport, ref.Kind)
	ac.ATC = ref
}

func (ac *Aircraft) releaseATC(w *World) {
	if cur := ac.currentController(w); cur != nil {
		cur.Release(ac.ID)
	}
	ac.ATC = ControllerRef{}
}

func (ac *Aircraft) announce(w *World, now time.Time) {
	if ctrl := ac.currentController(w); ctrl != nil {
		ctrl.AnnouncePosition(w, ac, now)
	}
}

// updateExternal hands external aircraft on the ground to the ground
// controller of the nearest airport so that AI traffic yields to them.
func (ac *Aircraft) updateExternal(w *World, now time.Time) {
	if !ac.State.OnGround {
		ac.releaseATC(w)
		return
	}

	var nearest *AirportDynamics
	nearestDist := float32(5)
	for _, d := range w.ActiveDynamics() {
		if dist := math.NMDistance2LL(ac.State.Position, d.Airport.Location); dist < nearestDist {
			nearest, nearestDist = d, dist
		}
	}
	if nearest == nil {
		ac.releaseATC(w)
		return
	}
	ac.handoff(w, nearest.Ground)
	nearest.Ground.AnnouncePosition(w, ac, now)
}

///////////////////////////////////////////////////////////////////////////
// Blocking and stuck detection

func (ac *Aircraft) checkBlocked(w *World) bool {
	s := ac.State
	if !s.OnGround || !ac.Leg.Taxiing() {
		return false
	}

	nmPerLong := math.NMPerLongitudeAt(s.Position)
	for other := range w.All() {
		if other == ac || other.Die || !other.State.OnGround {
			continue
		}
		if other.Kind == KindScheduled && (other.Parked || other.Leg == LegParking) {
			continue
		}
		if math.NMDistance2LL(s.Position, other.State.Position) > blockDistance {
			continue
		}
		brg := math.Heading2LL(s.Position, other.State.Position, nmPerLong, 0)
		if math.HeadingDifference(brg, s.Heading) < blockAngle {
			return true
		}
	}
	return false
}

func (ac *Aircraft) updateStuck(w *World) {
	expectMoving := !ac.Parked && !ac.AwaitingClearance && !ac.Override.HoldPosition && ac.Leg != LegParking
	if expectMoving && ac.State.Speed < 0.5 && ac.Target.Speed < 0.5 {
		ac.StuckCounter++
	} else {
		ac.StuckCounter = 0
	}

	if ac.StuckCounter > w.Settings.StuckLimit {
		ac.lg.Warn("aircraft stuck", slog.Any("aircraft", ac), slog.String("dump", godump.DumpStr(ac.Snapshot())))
		ac.Kill(w, DieStuck)
	}
}

func (ac *Aircraft) publish(w *World, now time.Time) {
	if w.Sink == nil {
		return
	}

	s := ac.State
	ks := KinematicState{
		ID:            ac.ID,
		Callsign:      ac.Callsign,
		Registration:  ac.Registration,
		AircraftType:  ac.AircraftType,
		ModelPath:     ac.ModelPath,
		Livery:        ac.Livery,
		Position:      s.Position,
		Altitude:      s.Altitude,
		Heading:       s.Heading,
		Bank:          s.Bank,
		Pitch:         s.Pitch,
		Speed:         s.Speed,
		VerticalSpeed: s.VerticalSpeed,
		OnGround:      s.OnGround,
		Leg:           ac.Phase(),
		Time:          now,
	}
	if s.OnGround {
		ks.Altitude += ac.GroundOffset
	}
	if ac.Leg == LegStartupPushback && !ac.Parked {
		// Pushing back: moving tail first.
		ks.Heading = math.OppositeHeading(s.Heading)
	}
	w.Sink.UpdateAircraft(ks)
}
