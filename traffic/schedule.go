// traffic/schedule.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package traffic

import (
	"cmp"
	"iter"
	"log/slog"
	"slices"
	"time"

	av "github.com/mmp/aitraffic/aviation"
	"github.com/mmp/aitraffic/log"
	"github.com/mmp/aitraffic/math"
	"github.com/mmp/aitraffic/sim"
	"github.com/mmp/aitraffic/util"
)

const (
	// Aircraft that are in the air are started in the climb if they're
	// within this distance of the departure airport and on approach if
	// they're this close to the arrival.
	climbStartDistance    = 30 // nm
	approachStartDistance = 40 // nm
	climbGradient         = 333 // feet per nm
	homePortScore         = 0.1
)

// Schedule is a single aircraft and its rotation: a sequence of flights
// that starts and ends at its home port. At most one sim.Aircraft is
// alive for a Schedule at a time.
type Schedule struct {
	Registration     string
	Airline          string
	AircraftType     string
	ModelPath        string
	Livery           string
	HomePort         string
	Requires         string
	Class            av.TrafficType
	Heavy            bool
	Radius           float32 // meters, for parking
	TurnRadius       float32 // meters
	GroundOffset     float32 // feet
	PerformanceClass string

	Flights            []*ScheduledFlight
	CurrentDestination string
	Aircraft           sim.AircraftID
	Valid              bool

	Hits     int
	RunCount int
	LastRun  float32
	Score    float32

	created   bool
	scheduled bool
	task      *Task
	now       time.Time // of the tick running the task
	lg        *log.Logger
}

func NewSchedule(a AircraftEntry, lg *log.Logger) *Schedule {
	return &Schedule{
		Registration:     a.Registration,
		Airline:          a.Airline,
		AircraftType:     a.Type,
		ModelPath:        a.Model,
		Livery:           a.Livery,
		HomePort:         a.HomePort,
		Requires:         a.Requires,
		Class:            a.Class,
		Heavy:            a.Heavy,
		Radius:           a.Radius,
		TurnRadius:       a.TurnRadius,
		GroundOffset:     a.GroundOffset,
		PerformanceClass: a.Performance,
		Valid:            true,
		lg:               lg.With(slog.String("registration", a.Registration)),
	}
}

func (s *Schedule) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("registration", s.Registration),
		slog.String("home_port", s.HomePort),
		slog.String("requires", s.Requires),
		slog.Int("flights", len(s.Flights)),
		slog.Int("aircraft", int(s.Aircraft)),
		slog.Bool("valid", s.Valid))
}

// turnaroundTime returns the minimum time on the ground between flights;
// larger aircraft take longer.
func turnaroundTime(radius float32) time.Duration {
	switch {
	case radius < 10:
		return 15 * time.Minute
	case radius < 15:
		return 20 * time.Minute
	case radius < 20:
		return 30 * time.Minute
	case radius < 25:
		return 50 * time.Minute
	case radius < 30:
		return 90 * time.Minute
	default:
		return 2 * time.Hour
	}
}

// findAvailableFlight returns the earliest available flight that the
// aircraft can fly next, departing from the given airport if it's
// non-empty. The flight is locked and moved to the occurrence that will
// be flown.
func (s *Schedule) findAvailableFlight(m *Manager, now time.Time, from string) *ScheduledFlight {
	var earliest time.Time
	if n := len(s.Flights); n > 0 {
		earliest = s.Flights[n-1].ArrivalTime.Add(turnaroundTime(s.Radius))
	}

	var best *ScheduledFlight
	var bestDep time.Time
	var expired []*ScheduledFlight
	for _, f := range m.pool[s.Requires] {
		if !f.IsAvailable() {
			continue
		}
		f.AdjustTime(now)
		if f.Expired(now) {
			expired = append(expired, f)
			continue
		}
		if from != "" && f.Departure != from {
			continue
		}
		dep, ok := f.nextFlyable(earliest, now)
		if !ok {
			continue
		}
		if best == nil || dep.Before(bestDep) {
			best, bestDep = f, dep
		}
	}
	m.removeFlights(s.Requires, expired...)

	if best != nil {
		best.moveTo(bestDep)
		best.Lock()
	}
	return best
}

// scheduleFlights builds the rotation a flight at a time. It may be
// resumed on later ticks, so it reads the current time from s.now.
func (s *Schedule) scheduleFlights(m *Manager) iter.Seq[bool] {
	return func(yield func(bool) bool) {
		for {
			now := s.now
			var f *ScheduledFlight
			if s.CurrentDestination != "" {
				f = s.findAvailableFlight(m, now, s.CurrentDestination)
			} else {
				if m.user.Airport != "" {
					f = s.findAvailableFlight(m, now, m.user.Airport)
				}
				if f == nil {
					f = s.findAvailableFlight(m, now, "")
				}
			}
			if f == nil {
				if len(s.Flights) > 0 && s.CurrentDestination != s.HomePort {
					s.lg.Debug("rotation doesn't return to home port", slog.String("at", s.CurrentDestination))
				}
				return
			}

			if s.HomePort == "" {
				s.HomePort = f.Departure
			}
			s.Flights = append(s.Flights, f)
			s.CurrentDestination = f.Arrival
			if s.CurrentDestination == s.HomePort {
				return
			}
			if !yield(true) {
				return
			}
		}
	}
}

// ScheduleFlights extends the rotation until it returns to the home port
// or no suitable flights remain. It stops when the budget runs out and
// picks up where it left off the next time it's called; it returns true
// once the rotation is complete.
func (s *Schedule) ScheduleFlights(m *Manager, now time.Time, b Budget) bool {
	if s.scheduled {
		return true
	}
	s.now = now
	if s.task == nil {
		s.task = NewTask(s.scheduleFlights(m))
	}
	if !s.task.Run(b) {
		return false
	}
	s.task = nil
	s.scheduled = true
	s.lg.Debug("scheduled rotation", slog.Any("flights", util.MapSlice(s.Flights,
		func(f *ScheduledFlight) string { return f.Callsign })))
	return true
}

// Update advances the schedule: it reclaims a finished aircraft, builds
// the rotation if needed and creates an aircraft for the current flight
// once it's close enough to the user. It returns false if the budget ran
// out before it was done.
func (s *Schedule) Update(m *Manager, now time.Time, b Budget) bool {
	if !s.Valid {
		return true
	}

	if s.Aircraft != 0 {
		ac, ok := m.world.Get(s.Aircraft)
		switch {
		case !ok:
			s.lg.Warn("aircraft disappeared", slog.Int("id", int(s.Aircraft)))
			s.Aircraft = 0
		case ac.Die:
			s.reclaim(m, ac, now)
		default:
			s.checkRetire(m, ac)
			return true
		}
	}

	if !s.ScheduleFlights(m, now, b) {
		return false
	}
	if len(s.Flights) == 0 {
		s.lg.Info("no flights available for rotation")
		s.invalidate(m)
		return true
	}

	f := s.Flights[0]
	if !f.ArrivalTime.After(now) {
		// The flight's already over.
		s.popFlight(m, now)
		return true
	}

	pos, alt, first, ok := s.position(m, f, now)
	if !ok {
		s.invalidate(m)
		return true
	}
	if d := m.userDistance(pos, alt); d > m.settings.ActivationRadius {
		return true
	}

	s.createAircraft(m, f, pos, alt, first, now)
	return true
}

// position returns where the aircraft flying f should be at now, and the
// leg it should start in.
func (s *Schedule) position(m *Manager, f *ScheduledFlight, now time.Time) (math.Point2LL, float32, sim.Leg, bool) {
	dep, dok := m.db.LookupAirport(f.Departure)
	arr, aok := m.db.LookupAirport(f.Arrival)
	if !dok || !aok {
		s.lg.Warn("flight airport disappeared", slog.Any("flight", f))
		return math.Point2LL{}, 0, sim.LegNone, false
	}

	if now.Before(f.DepartureTime) || f.Local() {
		return dep.Location, float32(dep.Elevation), sim.LegStartupPushback, true
	}

	frac := float32(now.Sub(f.DepartureTime)) / float32(f.Duration())
	pos := math.GreatCircleInterpolate(dep.Location, arr.Location, frac)
	fromDep := math.NMDistance2LL(pos, dep.Location)
	toArr := math.NMDistance2LL(pos, arr.Location)
	cruise := util.Select(f.CruiseAltitude > 0, f.CruiseAltitude, float32(10000))

	switch {
	case fromDep < climbStartDistance:
		return pos, min(cruise, float32(dep.Elevation)+1000+fromDep*climbGradient), sim.LegClimb, true
	case toArr < approachStartDistance:
		return pos, float32(arr.Elevation) + 3000, sim.LegApproach, true
	default:
		return pos, cruise, sim.LegCruise, true
	}
}

// cruiseSpeed returns the ground speed that flies f in its scheduled
// time, limited to what the aircraft can do.
func (s *Schedule) cruiseSpeed(m *Manager, f *ScheduledFlight, perf av.AircraftPerformance) float32 {
	dep, _ := m.db.LookupAirport(f.Departure)
	arr, _ := m.db.LookupAirport(f.Arrival)
	hours := float32(f.Duration().Hours())
	if dep == nil || arr == nil || hours <= 0 || f.Local() {
		return 0
	}
	kts := math.NMDistance2LL(dep.Location, arr.Location) / hours
	return math.Clamp(kts, perf.Speed.Approach, perf.Speed.Cruise)
}

func (s *Schedule) createAircraft(m *Manager, f *ScheduledFlight, pos math.Point2LL, alt float32,
	first sim.Leg, now time.Time) {
	w := m.world
	id := w.NextID()
	perf := m.db.LookupPerformance(s.PerformanceClass, s.Class)

	fp, state, err := w.Planner.Plan(w, sim.PlanRequest{
		ID:             id,
		Callsign:       f.Callsign,
		Departure:      f.Departure,
		Arrival:        f.Arrival,
		FirstLeg:       first,
		Position:       pos,
		Altitude:       alt,
		CruiseAltitude: f.CruiseAltitude,
		CruiseSpeed:    s.cruiseSpeed(m, f, perf),
		Class:          s.Class,
		Airline:        s.Airline,
		Radius:         s.Radius,
		Performance:    perf,
		Now:            now,
	})
	if err != nil {
		s.lg.Warn("unable to plan flight", slog.Any("flight", f), slog.Any("error", err))
		s.invalidate(m)
		return
	}

	spec := sim.AircraftSpec{
		Callsign:     f.Callsign,
		Registration: s.Registration,
		AircraftType: s.AircraftType,
		ModelPath:    s.ModelPath,
		Livery:       s.Livery,
		Airline:      s.Airline,
		Class:        s.Class,
		Heavy:        s.Heavy,
		Performance:  perf,
		TurnRadius:   s.TurnRadius,
		GroundOffset: s.GroundOffset,
	}
	ac := sim.NewAircraft(spec, fp, state, s.lg.With(slog.String("callsign", f.Callsign)))
	ac.ID = id
	if m.settings.InstantStart {
		ac.DepartureTime = now
	} else {
		ac.DepartureTime = f.DepartureTime.Add(m.delay.DepartureDelay(f))
	}
	w.Add(ac)

	s.Aircraft = id
	s.Hits++
	s.created = true
	s.lg.Info("created aircraft", slog.Any("flight", f), slog.String("leg", first.String()),
		slog.Int("id", int(id)))
}

// reclaim removes the schedule's dead aircraft from the world. The
// current flight is done unless the aircraft was only retired because
// it's out of range; in that case it'll be recreated when it's back in
// range.
func (s *Schedule) reclaim(m *Manager, ac *sim.Aircraft, now time.Time) {
	s.lg.Debug("reclaiming aircraft", slog.Any("aircraft", ac), slog.String("reason", ac.DieReason.String()))
	switch ac.DieReason {
	case sim.DieFinished, sim.DieStuck, sim.DiePlanExhausted:
		if len(s.Flights) > 0 {
			s.popFlight(m, now)
		}
	}
	m.world.Remove(ac.ID)
	s.Aircraft = 0
}

func (s *Schedule) checkRetire(m *Manager, ac *sim.Aircraft) {
	if ac.State.OnGround || (ac.Leg != sim.LegClimb && ac.Leg != sim.LegCruise) {
		return
	}
	if d := m.userDistance(ac.State.Position, ac.State.Altitude); d > m.settings.RetireRadius {
		ac.Kill(m.world, sim.DieRetired)
	}
}

// popFlight is called when the current flight is done; a repeating
// flight goes back to the pool for its next occurrence and a one-off
// flight leaves it. The rotation is rebuilt when it runs out of flights.
func (s *Schedule) popFlight(m *Manager, now time.Time) {
	f := s.Flights[0]
	f.Release()
	if f.Repeat.Duration() <= 0 {
		m.removeFlights(f.Requires, f)
	} else {
		f.AdjustTime(now)
	}
	s.Flights = slices.Delete(s.Flights, 0, 1)
	if len(s.Flights) == 0 {
		s.scheduled = false
	}
}

func (s *Schedule) releaseFlights() {
	for _, f := range s.Flights {
		f.Release()
	}
	s.Flights = nil
	if s.task != nil {
		s.task.Stop()
		s.task = nil
	}
	s.scheduled = false
}

// invalidate gives up on the schedule; its flights are made available
// to other aircraft.
func (s *Schedule) invalidate(m *Manager) {
	s.lg.Warn("invalidating schedule", slog.Any("schedule", s))
	s.releaseFlights()
	s.Valid = false
}

// Shutdown removes the schedule's aircraft and releases its flights.
func (s *Schedule) Shutdown(m *Manager) {
	if s.Aircraft != 0 {
		if ac, ok := m.world.Get(s.Aircraft); ok {
			ac.Kill(m.world, sim.DieShutdown)
		}
		m.world.Remove(s.Aircraft)
		s.Aircraft = 0
	}
	s.releaseFlights()
	s.CurrentDestination = ""
}

// SetScore updates the schedule's score, the fraction of scheduling
// passes in which it's produced an aircraft. Schedules based at the
// user's airport get a head start.
func (s *Schedule) SetScore(userAirport string) {
	if s.RunCount > 0 {
		s.Score = float32(s.Hits) / float32(s.RunCount)
	} else if s.HomePort != "" && s.HomePort == userAirport {
		s.Score = homePortScore
	} else {
		s.Score = 0
	}
	s.LastRun = util.Select(s.created, float32(1), 0)
	s.created = false
	s.RunCount++
}

func (s *Schedule) priority() float32 {
	return s.Score * (1.5 - s.LastRun)
}

// CompareSchedules orders schedules so that those with higher priority
// come first.
func CompareSchedules(a, b *Schedule) int {
	if c := cmp.Compare(b.priority(), a.priority()); c != 0 {
		return c
	}
	return cmp.Compare(a.Registration, b.Registration)
}
