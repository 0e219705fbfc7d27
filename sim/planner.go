// sim/planner.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"errors"
	"fmt"
	"time"

	av "github.com/mmp/aitraffic/aviation"
	"github.com/mmp/aitraffic/math"
)

// PlanRequest describes the flight that a FlightPlanner should build a
// plan for.
type PlanRequest struct {
	// ID of the aircraft that will fly the plan; parking is reserved for
	// it.
	ID        AircraftID
	Callsign  string
	Departure string
	Arrival   string
	FirstLeg  Leg
	// Where an aircraft that doesn't start at the gate starts.
	Position       math.Point2LL
	Altitude       float32
	CruiseAltitude float32 // feet
	// Ground speed to fly enroute; the performance cruise speed is used
	// if it's zero.
	CruiseSpeed float32
	Class          av.TrafficType
	Airline        string
	Radius         float32 // meters, for parking
	Performance    av.AircraftPerformance
	Now            time.Time
}

type FlightPlanner interface {
	// Plan returns the flight plan for the request along with the state
	// the aircraft should start in.
	Plan(w *World, req PlanRequest) (*FlightPlan, FlightState, error)
}

const (
	pushbackDistance    = 0.02 // nm
	holdShortOffset     = 0.05 // nm from the centerline
	initialApproachFix  = 12   // nm from the threshold
	finalApproachFix    = 5    // nm from the threshold
	climbOutDistance    = 5    // nm past the runway end
	enrouteClimbSegment = 20   // nm
	pushbackSpeed       = 3    // knots
	defaultCruise       = 10000
)

// DefaultPlanner builds simple plans: a straight pushback, taxi direct to
// the holding point, takeoff on the active runway, a great circle route
// to a straight-in approach and taxi direct to the arrival parking.
type DefaultPlanner struct{}

type planBuilder struct {
	w    *World
	req  PlanRequest
	perf av.AircraftPerformance
	dep  *AirportDynamics
	arr  *AirportDynamics
	fp   *FlightPlan
}

func (DefaultPlanner) Plan(w *World, req PlanRequest) (fp *FlightPlan, state FlightState, err error) {
	if req.FirstLeg < LegStartupPushback || req.FirstLeg > LegApproach {
		return nil, FlightState{}, ErrInvalidPlanRequest
	}
	dep, err := w.Dynamics(req.Departure)
	if err != nil {
		return nil, FlightState{}, fmt.Errorf("%s: %w", req.Departure, err)
	}
	arr, err := w.Dynamics(req.Arrival)
	if err != nil {
		return nil, FlightState{}, fmt.Errorf("%s: %w", req.Arrival, err)
	}
	if req.CruiseAltitude <= 0 {
		req.CruiseAltitude = defaultCruise
	}
	if req.CruiseSpeed > 0 {
		req.Performance.Speed.Cruise = req.CruiseSpeed
	}

	b := &planBuilder{
		w:    w,
		req:  req,
		perf: req.Performance,
		dep:  dep,
		arr:  arr,
		fp: &FlightPlan{
			Callsign:       req.Callsign,
			Departure:      dep.Airport.ICAO,
			Arrival:        arr.Airport.ICAO,
			CruiseAltitude: req.CruiseAltitude,
		},
	}
	defer func() {
		if err != nil {
			b.releaseParking()
		}
	}()

	switch req.FirstLeg {
	case LegStartupPushback, LegTaxi:
		state, err = b.departure()
	case LegClimb:
		state = FlightState{
			Position: req.Position,
			Altitude: req.Altitude,
			Speed:    b.perf.Speed.Climb,
		}
		err = b.enroute(req.Position, LegClimb)
	case LegCruise:
		state = FlightState{
			Position: req.Position,
			Altitude: req.CruiseAltitude,
			Speed:    b.perf.Speed.Cruise,
		}
		err = b.enroute(req.Position, LegCruise)
	case LegApproach:
		state = FlightState{
			Position: req.Position,
			Altitude: float32(arr.Airport.Elevation) + 3000,
			Speed:    b.perf.Speed.Approach + 30,
		}
		err = b.arrival()
	}
	if err != nil {
		return nil, FlightState{}, err
	}

	if !state.OnGround && len(b.fp.Waypoints) > 0 {
		wp := b.fp.Waypoints[0].Location
		state.Heading = math.Heading2LL(state.Position, wp, math.NMPerLongitudeAt(state.Position), 0)
	}
	return b.fp, state, nil
}

func (b *planBuilder) releaseParking() {
	if b.fp.DepartureParking != "" {
		b.dep.ReleaseParking(b.fp.DepartureParking)
	}
	if b.fp.ArrivalParking != "" {
		b.arr.ReleaseParking(b.fp.ArrivalParking)
	}
}

func (b *planBuilder) add(wp Waypoint) {
	b.fp.Waypoints = append(b.fp.Waypoints, wp)
}

func (b *planBuilder) activeRunway(d *AirportDynamics, action av.RunwayAction) (av.Runway, error) {
	windDir, windSpeed := b.w.wind(d.Airport.Location, b.req.Now)
	id, err := d.GetActiveRunway(b.req.Class, action, windDir, windSpeed, b.req.Now, false)
	if err != nil {
		return av.Runway{}, err
	}
	rwy, ok := d.Airport.LookupRunway(id)
	if !ok {
		return av.Runway{}, ErrNoRunway
	}
	return rwy, nil
}

func (b *planBuilder) departure() (FlightState, error) {
	ap := b.dep.Airport
	nmPerLong := ap.NMPerLongitude()
	elev := float32(ap.Elevation)

	rwy, err := b.activeRunway(b.dep, av.RunwayTakeoff)
	if err != nil {
		return FlightState{}, err
	}
	b.fp.DepartureRunway = rwy.Id

	state := FlightState{
		Position:        b.req.Position,
		Altitude:        elev,
		OnGround:        true,
		GroundElevation: elev,
	}
	start := b.req.Position

	if b.req.FirstLeg == LegStartupPushback {
		park, err := b.dep.GetAvailableParking(b.req.ID, b.req.Radius, b.req.Class, b.req.Airline)
		switch {
		case errors.Is(err, ErrNoParking):
			// Every suitable gate is taken: start up at the airport
			// instead and taxi from there.
			if start.IsZero() {
				start = ap.Location
			}
			state.Position = start
			b.add(Waypoint{
				Name:     "STARTUP",
				Location: start,
				Altitude: elev,
				Speed:    pushbackSpeed,
				OnGround: true,
				Leg:      LegStartupPushback,
				Stop:     true,
			})
		case err != nil:
			return FlightState{}, err
		default:
			b.fp.DepartureParking = park.Id

			// The aircraft's heading is its direction of motion, which is
			// backward while pushing back.
			back := math.OppositeHeading(park.Heading)
			state.Position = park.Location
			state.Heading = back
			start = math.Offset2LL(park.Location, back, pushbackDistance, nmPerLong)
			b.add(Waypoint{
				Name:     "PUSHBACK",
				Location: start,
				Altitude: elev,
				Speed:    pushbackSpeed,
				OnGround: true,
				Leg:      LegStartupPushback,
				Stop:     true,
			})
		}
	}

	trueHdg := ap.TrueHeading(rwy)
	hold := math.Offset2LL(rwy.Threshold, trueHdg-90, holdShortOffset, nmPerLong)
	taxiHdg := math.Heading2LL(start, hold, nmPerLong, 0)
	if b.fp.DepartureParking == "" {
		state.Heading = taxiHdg
	}

	taxi := b.perf.Speed.Taxi
	b.add(Waypoint{
		Name:     "TAXI",
		Location: math.Offset2LL(start, taxiHdg, math.NMDistance2LL(start, hold)/2, nmPerLong),
		Altitude: elev,
		Speed:    taxi,
		OnGround: true,
		Leg:      LegTaxi,
	})
	b.add(Waypoint{
		Name:      "HOLD" + rwy.Id,
		Location:  hold,
		Altitude:  elev,
		Speed:     taxi,
		OnGround:  true,
		Leg:       LegTaxi,
		HoldShort: true,
	})
	b.add(Waypoint{
		Name:     "RW" + rwy.Id,
		Location: rwy.Threshold,
		Altitude: elev,
		Speed:    taxi,
		OnGround: true,
		Leg:      LegTakeoff,
	})
	end := ap.RunwayEnd(rwy)
	b.add(Waypoint{
		Name:     "RW" + rwy.Id + "END",
		Location: end,
		Altitude: elev + 500,
		Speed:    b.perf.Speed.V2,
		Leg:      LegTakeoff,
	})
	climbOut := math.Offset2LL(end, trueHdg, climbOutDistance, nmPerLong)
	b.add(Waypoint{
		Name:     "CLIMBOUT",
		Location: climbOut,
		Altitude: min(elev+3000, b.req.CruiseAltitude),
		Speed:    b.perf.Speed.Climb,
		Leg:      LegClimb,
	})

	return state, b.enroute(climbOut, LegClimb)
}

// enroute adds the climb and cruise waypoints from p to the start of the
// approach, followed by the arrival.
func (b *planBuilder) enroute(p math.Point2LL, first Leg) error {
	rwy, err := b.activeRunway(b.arr, av.RunwayLanding)
	if err != nil {
		return err
	}
	iaf := b.initialApproachFix(rwy)
	arrElev := float32(b.arr.Airport.Elevation)

	total := math.NMDistance2LL(p, iaf)
	cruise := b.req.CruiseAltitude
	descent := max(cruise-(arrElev+3000), 0) / 1000 * 3

	if first == LegClimb {
		if total > enrouteClimbSegment+descent+10 {
			b.add(Waypoint{
				Name:     "CLIMB",
				Location: math.GreatCircleInterpolate(p, iaf, enrouteClimbSegment/total),
				Altitude: cruise,
				Speed:    b.perf.Speed.Climb,
				Leg:      LegClimb,
			})
			first = LegCruise
		} else if len(b.fp.Waypoints) == 0 {
			// Airborne start close to the arrival: climb straight to the
			// approach.
			b.add(Waypoint{
				Name:     "CLIMB",
				Location: math.GreatCircleInterpolate(p, iaf, 0.5),
				Altitude: min(cruise, arrElev+3000),
				Speed:    b.perf.Speed.Climb,
				Leg:      LegClimb,
			})
		}
	}
	if first == LegCruise && total > descent+5 {
		b.add(Waypoint{
			Name:     "TOD",
			Location: math.GreatCircleInterpolate(p, iaf, (total-descent)/total),
			Altitude: cruise,
			Speed:    b.perf.Speed.Cruise,
			Leg:      LegCruise,
		})
	}

	return b.arrival()
}

func (b *planBuilder) initialApproachFix(rwy av.Runway) math.Point2LL {
	ap := b.arr.Airport
	back := math.OppositeHeading(ap.TrueHeading(rwy))
	return math.Offset2LL(rwy.Threshold, back, initialApproachFix, ap.NMPerLongitude())
}

func (b *planBuilder) arrival() error {
	ap := b.arr.Airport
	nmPerLong := ap.NMPerLongitude()
	elev := float32(ap.Elevation)

	rwy, err := b.activeRunway(b.arr, av.RunwayLanding)
	if err != nil {
		return err
	}
	b.fp.ArrivalRunway = rwy.Id
	trueHdg := ap.TrueHeading(rwy)
	back := math.OppositeHeading(trueHdg)

	b.add(Waypoint{
		Name:     "IAF" + rwy.Id,
		Location: b.initialApproachFix(rwy),
		Altitude: elev + 3000,
		Speed:    b.perf.Speed.Approach + 30,
		Leg:      LegApproach,
	})
	b.add(Waypoint{
		Name:     "FAF" + rwy.Id,
		Location: math.Offset2LL(rwy.Threshold, back, finalApproachFix, nmPerLong),
		Altitude: elev + 1500,
		Speed:    b.perf.Speed.Approach,
		Leg:      LegApproach,
	})
	b.add(Waypoint{
		Name:     "RW" + rwy.Id,
		Location: rwy.Threshold,
		Altitude: elev + 50,
		Speed:    b.perf.Speed.Landing,
		Leg:      LegLanding,
	})
	rollout := math.Offset2LL(rwy.Threshold, trueHdg, 0.6*rwy.Length*math.FeetToNauticalMiles, nmPerLong)
	b.add(Waypoint{
		Name:     "ROLLOUT",
		Location: rollout,
		Altitude: elev,
		Speed:    b.perf.Speed.Taxi,
		OnGround: true,
		Leg:      LegLanding,
	})
	b.add(Waypoint{
		Name:     "EXIT",
		Location: math.Offset2LL(rollout, trueHdg+90, holdShortOffset, nmPerLong),
		Altitude: elev,
		Speed:    b.perf.Speed.Taxi,
		OnGround: true,
		Leg:      LegParkingTaxi,
	})

	park, err := b.arr.GetAvailableParking(b.req.ID, b.req.Radius, b.req.Class, b.req.Airline)
	if err != nil {
		// Without parking, the flight ends once it's off the runway.
		return nil
	}
	b.fp.ArrivalParking = park.Id
	b.add(Waypoint{
		Name:     "LEADIN",
		Location: math.Offset2LL(park.Location, math.OppositeHeading(park.Heading), pushbackDistance, nmPerLong),
		Altitude: elev,
		Speed:    b.perf.Speed.Taxi,
		OnGround: true,
		Leg:      LegParkingTaxi,
	})
	b.add(Waypoint{
		Name:     park.Id,
		Location: park.Location,
		Altitude: elev,
		Speed:    b.perf.Speed.Taxi / 2,
		OnGround: true,
		Leg:      LegParking,
		Stop:     true,
	})
	return nil
}
