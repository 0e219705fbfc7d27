// traffic/traffic_test.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package traffic

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	av "github.com/mmp/aitraffic/aviation"
	"github.com/mmp/aitraffic/math"
	"github.com/mmp/aitraffic/rand"
	"github.com/mmp/aitraffic/sim"
)

// Monday
var testStart = time.Date(2025, 6, 2, 6, 0, 0, 0, time.UTC)

func makeTestAirport(icao string, loc math.Point2LL) *av.Airport {
	nmPerLong := math.NMPerLongitudeAt(loc)
	length := float32(10000)
	gate := func(id string, dx float32) av.Parking {
		p := math.Offset2LL(loc, 180, 0.3, nmPerLong)
		return av.Parking{Id: id, Location: math.Offset2LL(p, 90, dx, nmPerLong), Heading: 180,
			Radius: 30, Type: "gate"}
	}
	return &av.Airport{
		ICAO:      icao,
		Location:  loc,
		Elevation: 50,
		Runways: []av.Runway{
			{Id: "27", Heading: 270, Threshold: math.Offset2LL(loc, 90, length/2*math.FeetToNauticalMiles, nmPerLong),
				Length: length},
			{Id: "9", Heading: 90, Threshold: math.Offset2LL(loc, 270, length/2*math.FeetToNauticalMiles, nmPerLong),
				Length: length},
		},
		Parking: []av.Parking{gate("A1", -0.1), gate("A2", 0), gate("A3", 0.1)},
	}
}

var (
	locSFO = math.Point2LL{-122.375, 37.619}
	locLAX = math.Point2LL{-118.408, 33.942}
	locSAN = math.Point2LL{-117.19, 32.733}
	locJFK = math.Point2LL{-73.779, 40.640}
)

func makeTestDB() *av.StaticDatabase {
	db := av.NewStaticDatabase()
	db.Airports["KSFO"] = makeTestAirport("KSFO", locSFO)
	db.Airports["KLAX"] = makeTestAirport("KLAX", locLAX)
	db.Airports["KSAN"] = makeTestAirport("KSAN", locSAN)
	// No runways, so no flight plan can be built to it.
	db.Airports["KNOR"] = &av.Airport{ICAO: "KNOR", Location: math.Point2LL{-120, 35}}
	return db
}

var testAircraft = AircraftEntry{
	Registration: "N738TS",
	Airline:      "TST",
	Type:         "B738",
	HomePort:     "KSFO",
	Requires:     "TST-738",
	Class:        av.TrafficCommercial,
	Radius:       18,
	Performance:  "jet_transport",
}

func testFlight(t *testing.T, callsign, dep, arr, depTime, arrTime string) FlightRecord {
	t.Helper()
	r, err := parseFlightEntry(flightEntry{
		Callsign:      callsign,
		Requires:      "TST-738",
		Departure:     dep,
		Arrival:       arr,
		DepartureTime: depTime,
		ArrivalTime:   arrTime,
		FlightLevel:   350,
		Repeat:        "DAY",
	})
	if err != nil {
		t.Fatalf("%s: %v", callsign, err)
	}
	return r
}

// testOnceFlight is like testFlight but the flight is only flown once.
func testOnceFlight(t *testing.T, callsign, dep, arr, depTime, arrTime string) FlightRecord {
	t.Helper()
	r := testFlight(t, callsign, dep, arr, depTime, arrTime)
	r.Repeat = av.RepeatOnce
	return r
}

func makeTestManager(t *testing.T, tt *Timetable) *Manager {
	t.Helper()
	db := makeTestDB()
	w := sim.NewWorld(db, sim.DefaultSettings(), rand.MakeSeeded(1), nil)
	settings := DefaultSettings()
	settings.MaxDepartureDelay = 0
	m := NewManager(w, db, settings, nil)
	m.NewBudget = func() Budget { return Unlimited }
	m.SetTimetable(tt)
	if err := m.Init(testStart); err != nil {
		t.Fatal(err)
	}
	return m
}

func callsigns(flights []*ScheduledFlight) []string {
	var cs []string
	for _, f := range flights {
		cs = append(cs, f.Callsign)
	}
	return cs
}

func TestParseWeekTime(t *testing.T) {
	for _, test := range []struct {
		s    string
		want WeekTime
		err  bool
	}{
		{s: "0/07:30", want: WeekTime{Day: 0, Minutes: 450}},
		{s: "6/23:59", want: WeekTime{Day: 6, Minutes: 23*60 + 59}},
		{s: "12:05", want: WeekTime{Day: -1, Minutes: 725}},
		{s: "7/10:00", err: true},
		{s: "24:00", err: true},
		{s: "10", err: true},
		{s: "x/10:00", err: true},
	} {
		got, err := ParseWeekTime(test.s)
		if test.err {
			if !errors.Is(err, ErrInvalidTime) {
				t.Errorf("%q: expected ErrInvalidTime, got %v", test.s, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: %v", test.s, err)
		} else if got != test.want {
			t.Errorf("%q: got %+v, expected %+v", test.s, got, test.want)
		} else if got.String() != test.s {
			t.Errorf("%q: round trip gave %q", test.s, got.String())
		}
	}
}

func TestFlightRecordResolve(t *testing.T) {
	weekly := testFlight(t, "TST1", "KSFO", "KLAX", "1/23:00", "2/01:00")
	f := weekly.Flight(testStart)
	if want := time.Date(2025, 6, 2, 23, 0, 0, 0, time.UTC); !f.DepartureTime.Equal(want) {
		t.Errorf("weekly departure %s, expected %s", f.DepartureTime, want)
	}
	if f.Duration() != 2*time.Hour {
		t.Errorf("weekly duration %s, expected 2h", f.Duration())
	}

	overnight := testFlight(t, "TST2", "KSFO", "KLAX", "23:30", "00:45")
	f = overnight.Flight(testStart)
	if want := time.Date(2025, 6, 3, 0, 45, 0, 0, time.UTC); !f.ArrivalTime.Equal(want) {
		t.Errorf("overnight arrival %s, expected %s", f.ArrivalTime, want)
	}

	endOfWeek := testFlight(t, "TST3", "KSFO", "KLAX", "6/23:00", "0/01:00")
	if d := endOfWeek.Flight(testStart).Duration(); d != 2*time.Hour {
		t.Errorf("end of week duration %s, expected 2h", d)
	}
}

func TestAdjustTime(t *testing.T) {
	dep := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	mk := func(repeat av.RepeatPeriod) *ScheduledFlight {
		return &ScheduledFlight{Callsign: "TST1", DepartureTime: dep, ArrivalTime: dep.Add(90 * time.Minute),
			Repeat: repeat}
	}

	now := time.Date(2025, 6, 3, 9, 0, 0, 0, time.UTC)
	f := mk(av.RepeatDaily)
	f.AdjustTime(now)
	if want := time.Date(2025, 6, 3, 8, 0, 0, 0, time.UTC); !f.DepartureTime.Equal(want) {
		t.Errorf("adjusted departure %s, expected %s", f.DepartureTime, want)
	}
	if f.ArrivalTime.Before(now) {
		t.Errorf("arrival %s still before %s", f.ArrivalTime, now)
	}
	before := *f
	f.AdjustTime(now)
	if f.DepartureTime != before.DepartureTime || f.ArrivalTime != before.ArrivalTime {
		t.Errorf("AdjustTime not idempotent")
	}

	// Arriving exactly now isn't in the past.
	f = mk(av.RepeatDaily)
	f.AdjustTime(f.ArrivalTime)
	if !f.DepartureTime.Equal(dep) {
		t.Errorf("flight arriving now was moved to %s", f.DepartureTime)
	}

	f = mk(av.RepeatOnce)
	f.AdjustTime(now)
	if !f.DepartureTime.Equal(dep) {
		t.Errorf("one-off flight moved to %s", f.DepartureTime)
	}

	f = mk(av.RepeatWeekly)
	f.AdjustTime(now)
	if want := dep.AddDate(0, 0, 7); !f.DepartureTime.Equal(want) {
		t.Errorf("weekly flight moved to %s, expected %s", f.DepartureTime, want)
	}
}

func TestNextOccurrenceAfter(t *testing.T) {
	dep := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	f := &ScheduledFlight{DepartureTime: dep, ArrivalTime: dep.Add(time.Hour), Repeat: av.RepeatDaily}

	if d, ok := f.NextOccurrenceAfter(dep.Add(-time.Hour)); !ok || !d.Equal(dep) {
		t.Errorf("got %s %v, expected %s", d, ok, dep)
	}
	if d, ok := f.NextOccurrenceAfter(dep.Add(time.Minute)); !ok || !d.Equal(dep.Add(24*time.Hour)) {
		t.Errorf("got %s %v, expected next day", d, ok)
	}

	f.Repeat = av.RepeatOnce
	if _, ok := f.NextOccurrenceAfter(dep.Add(time.Minute)); ok {
		t.Errorf("one-off flight shouldn't recur")
	}
}

func TestFlightLocking(t *testing.T) {
	f := &ScheduledFlight{}
	if !f.IsAvailable() {
		t.Fatal("new flight unavailable")
	}
	f.Lock()
	if f.IsAvailable() {
		t.Error("locked flight available")
	}
	f.Release()
	f.Release()
	if !f.IsAvailable() {
		t.Error("released flight unavailable")
	}
}

func rotationTimetable(t *testing.T) *Timetable {
	return &Timetable{
		Aircraft: []AircraftEntry{testAircraft},
		Flights: []FlightRecord{
			testFlight(t, "TST100", "KSFO", "KLAX", "08:00", "09:30"),
			// Departs too soon after TST100 arrives.
			testFlight(t, "TST101", "KLAX", "KSFO", "09:45", "11:15"),
			testFlight(t, "TST103", "KLAX", "KSFO", "12:00", "13:30"),
		},
	}
}

func TestRotation(t *testing.T) {
	m := makeTestManager(t, rotationTimetable(t))
	s := m.schedules[0]
	if !s.ScheduleFlights(m, testStart, Unlimited) {
		t.Fatal("scheduling didn't finish")
	}

	if cs := callsigns(s.Flights); !slices.Equal(cs, []string{"TST100", "TST103"}) {
		t.Fatalf("rotation %v, expected [TST100 TST103]", cs)
	}
	for i, f := range s.Flights {
		if f.IsAvailable() {
			t.Errorf("%s: not locked", f.Callsign)
		}
		if i > 0 {
			prev := s.Flights[i-1]
			if prev.Arrival != f.Departure {
				t.Errorf("%s arrives at %s but %s departs from %s", prev.Callsign, prev.Arrival,
					f.Callsign, f.Departure)
			}
			if f.DepartureTime.Before(prev.ArrivalTime.Add(turnaroundTime(s.Radius))) {
				t.Errorf("%s departs before turnaround from %s", f.Callsign, prev.Callsign)
			}
		}
	}
	if last := s.Flights[len(s.Flights)-1]; last.Arrival != s.HomePort {
		t.Errorf("rotation ends at %s, not home port %s", last.Arrival, s.HomePort)
	}
	if f := m.pool["TST-738"][1]; f.Callsign != "TST101" || !f.IsAvailable() {
		t.Errorf("expected TST101 to remain available")
	}
}

func TestRotationStartsAtUserAirport(t *testing.T) {
	m := makeTestManager(t, rotationTimetable(t))
	m.SetUser(User{Airport: "KLAX", Position: locLAX}, testStart)

	s := m.schedules[0]
	s.ScheduleFlights(m, testStart, Unlimited)
	if cs := callsigns(s.Flights); !slices.Equal(cs, []string{"TST101"}) {
		t.Errorf("rotation %v, expected [TST101]", cs)
	}
}

func TestScheduleFlightsBudget(t *testing.T) {
	tt := &Timetable{
		Aircraft: []AircraftEntry{testAircraft},
		Flights: []FlightRecord{
			testFlight(t, "TST1", "KSFO", "KLAX", "06:30", "08:00"),
			testFlight(t, "TST2", "KLAX", "KSAN", "09:00", "10:00"),
			testFlight(t, "TST3", "KSAN", "KLAX", "11:00", "12:00"),
			testFlight(t, "TST4", "KLAX", "KSFO", "13:00", "14:30"),
		},
	}

	whole := makeTestManager(t, tt)
	if !whole.schedules[0].ScheduleFlights(whole, testStart, Unlimited) {
		t.Fatal("unlimited scheduling didn't finish")
	}

	split := makeTestManager(t, tt)
	calls := 0
	for !split.schedules[0].ScheduleFlights(split, testStart, &StepBudget{Steps: 1}) {
		calls++
		if calls > 10 {
			t.Fatal("scheduling never finished")
		}
	}
	if calls == 0 {
		t.Error("expected scheduling to be split across calls")
	}

	a, b := callsigns(whole.schedules[0].Flights), callsigns(split.schedules[0].Flights)
	if !slices.Equal(a, b) {
		t.Errorf("split rotation %v differs from %v", b, a)
	}
	if !slices.Equal(a, []string{"TST1", "TST2", "TST3", "TST4"}) {
		t.Errorf("rotation %v", a)
	}
}

func TestScheduleFlightsUsesResumeTime(t *testing.T) {
	tt := &Timetable{
		Aircraft: []AircraftEntry{testAircraft},
		Flights: []FlightRecord{
			testOnceFlight(t, "TST600", "KSFO", "KLAX", "07:00", "08:30"),
			testOnceFlight(t, "TST601", "KLAX", "KSFO", "09:30", "11:00"),
			testOnceFlight(t, "TST602", "KLAX", "KSFO", "13:00", "14:30"),
		},
	}
	m := makeTestManager(t, tt)
	s := m.schedules[0]

	if s.ScheduleFlights(m, testStart, &StepBudget{Steps: 1}) {
		t.Fatal("expected scheduling to be split")
	}
	if cs := callsigns(s.Flights); !slices.Equal(cs, []string{"TST600"}) {
		t.Fatalf("rotation %v, expected [TST600]", cs)
	}

	// By the time scheduling resumes, TST601 has already landed.
	later := testStart.Add(6*time.Hour + 30*time.Minute)
	for i := 0; !s.ScheduleFlights(m, later, &StepBudget{Steps: 1}); i++ {
		if i > 10 {
			t.Fatal("scheduling never finished")
		}
	}
	if cs := callsigns(s.Flights); !slices.Equal(cs, []string{"TST600", "TST602"}) {
		t.Errorf("rotation %v, expected [TST600 TST602]", cs)
	}
	if slices.Contains(callsigns(m.pool["TST-738"]), "TST601") {
		t.Error("landed one-off flight left in the pool")
	}
}

func TestOnceOnlyFlightsNotReused(t *testing.T) {
	tt := &Timetable{
		Aircraft: []AircraftEntry{testAircraft},
		Flights: []FlightRecord{
			testOnceFlight(t, "TST500", "KSFO", "KLAX", "04:00", "05:30"),
			testOnceFlight(t, "TST502", "KSFO", "KLAX", "10:00", "11:30"),
			testOnceFlight(t, "TST503", "KLAX", "KSFO", "13:00", "14:30"),
		},
	}
	m := makeTestManager(t, tt)
	m.SetUser(User{Position: locJFK}, testStart)
	s := m.schedules[0]

	if !s.ScheduleFlights(m, testStart, Unlimited) {
		t.Fatal("scheduling didn't finish")
	}
	if cs := callsigns(s.Flights); !slices.Equal(cs, []string{"TST502", "TST503"}) {
		t.Fatalf("rotation %v, expected [TST502 TST503]", cs)
	}
	if cs := callsigns(m.pool["TST-738"]); !slices.Equal(cs, []string{"TST502", "TST503"}) {
		t.Errorf("pool %v, expected [TST502 TST503]", cs)
	}

	// Once both have been flown, there's nothing left for the aircraft.
	now := testStart.Add(9 * time.Hour)
	for i := range 5 {
		m.Tick(now.Add(time.Duration(i)*time.Second), 1)
	}
	if s.Valid {
		t.Errorf("schedule still valid with rotation %v", callsigns(s.Flights))
	}
	if n := len(m.pool["TST-738"]); n != 0 {
		t.Errorf("%d flights left in the pool: %v", n, callsigns(m.pool["TST-738"]))
	}
}

func TestTask(t *testing.T) {
	var steps []int
	task := NewTask(func(yield func(bool) bool) {
		for i := range 5 {
			steps = append(steps, i)
			if !yield(i < 4) {
				return
			}
		}
	})

	if task.Run(&StepBudget{Steps: 2}) {
		t.Error("task finished early")
	}
	if len(steps) != 2 {
		t.Errorf("ran %d steps, expected 2", len(steps))
	}
	if !task.Run(&StepBudget{Steps: 10}) {
		t.Error("task didn't finish")
	}
	if !slices.Equal(steps, []int{0, 1, 2, 3, 4}) {
		t.Errorf("steps %v", steps)
	}
	if !task.Done() {
		t.Error("task not done")
	}
	task.Stop()
}

func TestClockBudget(t *testing.T) {
	now := testStart
	b := NewClockBudget(time.Second, func() time.Time { return now })
	if b.Exhausted() {
		t.Error("budget exhausted immediately")
	}
	now = now.Add(time.Second)
	if !b.Exhausted() {
		t.Error("budget not exhausted at deadline")
	}
}

func activationTimetable(t *testing.T) *Timetable {
	return &Timetable{
		Aircraft: []AircraftEntry{testAircraft},
		Flights: []FlightRecord{
			testFlight(t, "TST200", "KSFO", "KLAX", "06:00", "07:30"),
			testFlight(t, "TST201", "KLAX", "KSFO", "12:00", "13:30"),
		},
	}
}

func TestActivationRadius(t *testing.T) {
	m := makeTestManager(t, activationTimetable(t))
	now := testStart.Add(45 * time.Minute)

	m.SetUser(User{Position: locJFK}, now)
	m.Tick(now, 1)
	s := m.schedules[0]
	if s.Aircraft != 0 || m.world.Len() != 0 {
		t.Fatalf("aircraft created with user 2000nm away")
	}

	m.SetUser(User{Position: locLAX}, now)
	m.Tick(now, 1)
	if s.Aircraft == 0 {
		t.Fatal("no aircraft created with user nearby")
	}
	ac, ok := m.world.Get(s.Aircraft)
	if !ok {
		t.Fatal("aircraft not in world")
	}
	if ac.Leg != sim.LegCruise {
		t.Errorf("leg %s, expected %s", ac.Leg, sim.LegCruise)
	}
	if ac.Callsign != "TST200" || ac.Registration != "N738TS" {
		t.Errorf("unexpected aircraft %s/%s", ac.Callsign, ac.Registration)
	}
	mid := math.GreatCircleInterpolate(locSFO, locLAX, 0.5)
	if d := math.NMDistance2LL(ac.State.Position, mid); d > 5 {
		t.Errorf("aircraft %.1fnm from the midpoint", d)
	}

	// Ticking again doesn't create another one.
	m.Tick(now.Add(time.Second), 1)
	if n := m.world.Len(); n != 1 {
		t.Errorf("%d aircraft, expected 1", n)
	}
}

func TestRetireAndRecreate(t *testing.T) {
	m := makeTestManager(t, activationTimetable(t))
	now := testStart.Add(45 * time.Minute)
	m.SetUser(User{Position: locLAX}, now)
	m.Tick(now, 1)
	s := m.schedules[0]
	first := s.Aircraft
	if first == 0 {
		t.Fatal("no aircraft created")
	}

	m.SetUser(User{Position: locJFK}, now)
	now = now.Add(time.Second)
	m.Tick(now, 1)
	ac, _ := m.world.Get(first)
	if ac == nil || !ac.Die || ac.DieReason != sim.DieRetired {
		t.Fatalf("aircraft not retired when the user left")
	}

	now = now.Add(time.Second)
	m.Tick(now, 1)
	if _, ok := m.world.Get(first); ok {
		t.Error("retired aircraft not removed")
	}
	if s.Aircraft != 0 {
		t.Error("schedule still has an aircraft")
	}
	if len(s.Flights) != 2 {
		t.Errorf("retirement consumed a flight: %v", callsigns(s.Flights))
	}

	m.SetUser(User{Position: locLAX}, now)
	now = now.Add(time.Second)
	m.Tick(now, 1)
	if s.Aircraft == 0 || s.Aircraft == first {
		t.Errorf("aircraft not recreated: %d", s.Aircraft)
	}
}

func TestFinishedAdvancesRotation(t *testing.T) {
	m := makeTestManager(t, activationTimetable(t))
	now := testStart.Add(45 * time.Minute)
	m.SetUser(User{Position: locLAX}, now)
	m.Tick(now, 1)
	s := m.schedules[0]
	ac, ok := m.world.Get(s.Aircraft)
	if !ok {
		t.Fatal("no aircraft created")
	}

	ac.Kill(m.world, sim.DieFinished)
	m.Tick(now.Add(time.Second), 1)
	if cs := callsigns(s.Flights); !slices.Equal(cs, []string{"TST201"}) {
		t.Fatalf("rotation %v, expected [TST201]", cs)
	}
	if _, ok := m.world.Get(ac.ID); ok {
		t.Error("finished aircraft not removed")
	}

	// The next flight leaves from KLAX, where the user is.
	next, ok := m.world.Get(s.Aircraft)
	if !ok {
		t.Fatal("no aircraft for next flight")
	}
	if next.Leg != sim.LegStartupPushback || next.Plan.Departure != "KLAX" {
		t.Errorf("next aircraft %s from %s, expected startup at KLAX", next.Leg, next.Plan.Departure)
	}
	if next.DepartureTime != s.Flights[0].DepartureTime {
		t.Errorf("departure time %s, expected %s", next.DepartureTime, s.Flights[0].DepartureTime)
	}
}

func TestPlanFailureInvalidates(t *testing.T) {
	tt := &Timetable{
		Aircraft: []AircraftEntry{testAircraft},
		Flights: []FlightRecord{
			testFlight(t, "TST300", "KSFO", "KNOR", "08:00", "09:00"),
			testFlight(t, "TST301", "KNOR", "KSFO", "10:00", "11:00"),
		},
	}
	m := makeTestManager(t, tt)
	m.SetUser(User{Position: locSFO}, testStart)
	m.Tick(testStart, 1)

	s := m.schedules[0]
	if s.Valid {
		t.Fatal("schedule still valid")
	}
	if s.Aircraft != 0 || m.world.Len() != 0 {
		t.Error("aircraft created despite plan failure")
	}
	for _, f := range m.pool["TST-738"] {
		if !f.IsAvailable() {
			t.Errorf("%s: still locked", f.Callsign)
		}
	}
	d, err := m.world.Dynamics("KSFO")
	if err != nil {
		t.Fatal(err)
	}
	if n := d.FreeParking(); n != 3 {
		t.Errorf("%d free parking spots, expected 3", n)
	}
}

func TestPastFlightPopped(t *testing.T) {
	tt := &Timetable{
		Aircraft: []AircraftEntry{testAircraft},
		Flights: []FlightRecord{
			testFlight(t, "TST400", "KSFO", "KLAX", "07:00", "08:00"),
			testFlight(t, "TST401", "KLAX", "KSFO", "09:00", "10:00"),
		},
	}
	m := makeTestManager(t, tt)
	m.SetUser(User{Position: locJFK}, testStart)
	m.Tick(testStart, 1)
	s := m.schedules[0]
	if len(s.Flights) != 2 {
		t.Fatalf("rotation %v", callsigns(s.Flights))
	}

	later := testStart.Add(150 * time.Minute)
	m.Tick(later, 1)
	if cs := callsigns(s.Flights); !slices.Equal(cs, []string{"TST401"}) {
		t.Errorf("rotation %v, expected [TST401]", cs)
	}
	f := m.pool["TST-738"][0]
	if f.Callsign != "TST400" || !f.IsAvailable() || f.ArrivalTime.Before(later) {
		t.Errorf("past flight not released and advanced: %+v", f)
	}
}

func TestScoring(t *testing.T) {
	s := &Schedule{Hits: 1, RunCount: 4}
	s.SetScore("")
	if s.Score != 0.25 || s.RunCount != 5 {
		t.Errorf("score %f runs %d, expected 0.25 5", s.Score, s.RunCount)
	}

	home := &Schedule{HomePort: "KSFO"}
	home.SetScore("KSFO")
	if home.Score != homePortScore {
		t.Errorf("home port score %f", home.Score)
	}
	away := &Schedule{HomePort: "KLAX"}
	away.SetScore("KSFO")
	if away.Score != 0 {
		t.Errorf("away score %f", away.Score)
	}

	ran := &Schedule{Registration: "A", Score: 0.5, LastRun: 1}
	idle := &Schedule{Registration: "B", Score: 0.5}
	low := &Schedule{Registration: "C", Score: 0.1}
	sched := []*Schedule{low, ran, idle}
	slices.SortFunc(sched, CompareSchedules)
	var order []string
	for _, s := range sched {
		order = append(order, s.Registration)
	}
	if !slices.Equal(order, []string{"B", "A", "C"}) {
		t.Errorf("order %v, expected [B A C]", order)
	}
}

func TestTickOrder(t *testing.T) {
	m := makeTestManager(t, rotationTimetable(t))
	m.SetUser(User{Position: locJFK}, testStart)
	now := testStart.Add(time.Hour)

	// Each schedule has a flight that's already over, so each update pops
	// it and uses a single step of the budget.
	mk := func(reg string, hits int) *Schedule {
		e := testAircraft
		e.Registration = reg
		s := NewSchedule(e, nil)
		s.Hits, s.RunCount = hits, 4
		s.Flights = []*ScheduledFlight{{Callsign: reg + "1", Requires: e.Requires, Departure: "KSFO",
			Arrival: "KLAX", DepartureTime: testStart.Add(-90 * time.Minute), ArrivalTime: testStart,
			Repeat: av.RepeatDaily}}
		s.scheduled = true
		return s
	}
	a, b, c, d := mk("A", 1), mk("B", 3), mk("C", 2), mk("D", 0)
	m.schedules = []*Schedule{a, b, c, d}
	m.NewBudget = func() Budget { return &StepBudget{Steps: 2} }

	order := func() []string {
		var r []string
		for _, s := range m.schedules {
			r = append(r, s.Registration)
		}
		return r
	}
	updated := func() []string {
		var r []string
		for _, s := range m.schedules {
			if len(s.Flights) == 0 {
				r = append(r, s.Registration)
			}
		}
		return r
	}

	m.Tick(now, 1)
	if o := order(); !slices.Equal(o, []string{"B", "C", "A", "D"}) {
		t.Fatalf("order %v, expected [B C A D]", o)
	}
	if u := updated(); !slices.Equal(u, []string{"B", "C"}) {
		t.Errorf("updated %v, expected [B C]", u)
	}
	if m.cursor != 2 {
		t.Errorf("cursor %d, expected 2", m.cursor)
	}

	// Partway through a pass, changed scores don't reorder the schedules.
	d.Hits = 100
	m.Tick(now.Add(time.Second), 1)
	if o := order(); !slices.Equal(o, []string{"B", "C", "A", "D"}) {
		t.Errorf("resorted mid-pass: %v", o)
	}
	if u := updated(); !slices.Equal(u, []string{"B", "C", "A", "D"}) {
		t.Errorf("updated %v, expected all", u)
	}
	if m.cursor != 0 {
		t.Errorf("cursor %d after full pass, expected 0", m.cursor)
	}
	for _, s := range m.schedules {
		if s.RunCount != 5 {
			t.Errorf("%s: scored %d times mid-pass", s.Registration, s.RunCount-4)
		}
	}

	// The next pass starts by scoring and sorting again.
	m.Tick(now.Add(2*time.Second), 1)
	if m.schedules[0] != d {
		t.Errorf("order %v, expected D first", order())
	}
	for _, s := range m.schedules {
		if s.RunCount != 6 {
			t.Errorf("%s: run count %d, expected 6", s.Registration, s.RunCount)
		}
	}
}

func TestDelayPolicy(t *testing.T) {
	s := DefaultSettings()
	s.InstantStart = true
	if _, ok := MakeDelayPolicy(s, rand.MakeSeeded(1)).(NoDelay); !ok {
		t.Error("instant start should disable delays")
	}

	s.InstantStart = false
	s.MaxDepartureDelay = 5 * time.Minute
	p := MakeDelayPolicy(s, rand.MakeSeeded(1))
	for range 100 {
		if d := p.DepartureDelay(nil); d < 0 || d >= s.MaxDepartureDelay {
			t.Fatalf("delay %s out of range", d)
		}
	}
}

func TestInstantiateDropsUnknownAirports(t *testing.T) {
	tt := &Timetable{
		Aircraft: []AircraftEntry{
			testAircraft,
			{Registration: "N1", HomePort: "XXXX", Requires: "TST-738"},
			{Registration: "N2", HomePort: "KSFO", Requires: "NONE"},
		},
		Flights: []FlightRecord{
			testFlight(t, "TST1", "KSFO", "KLAX", "08:00", "09:00"),
			testFlight(t, "TST2", "KSFO", "XXXX", "08:00", "09:00"),
		},
	}
	pool, schedules := tt.Instantiate(testStart, makeTestDB(), nil)
	if cs := callsigns(pool["TST-738"]); !slices.Equal(cs, []string{"TST1"}) {
		t.Errorf("flights %v, expected [TST1]", cs)
	}
	if len(schedules) != 1 || schedules[0].Registration != "N738TS" {
		t.Errorf("unexpected schedules %v", schedules)
	}
}

func TestLoadTimetable(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", filepath.Join(dir, "cache"))
	t.Setenv("HOME", dir)

	path := filepath.Join(dir, "timetable.json")
	contents := `{
  "aircraft": [
    {"registration": "N738TS", "airline": "TST", "type": "B738", "home_port": "ksfo",
     "requires": "TST-738", "class": "commercial", "radius": 18, "performance": "jet_transport"},
    {"airline": "BAD"}
  ],
  "flights": [
    {"callsign": "tst1", "requires": "TST-738", "departure": "KSFO", "arrival": "KLAX",
     "departure_time": "1/08:00", "arrival_time": "1/09:30", "fl": 350, "repeat": "WEEK"},
    {"callsign": "TST2", "requires": "TST-738", "departure": "KLAX", "arrival": "KSFO",
     "departure_time": "25:00", "arrival_time": "26:00"}
  ]
}`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	for i := range 2 {
		tt, err := LoadTimetable(nil, path)
		if err != nil {
			t.Fatalf("load %d: %v", i, err)
		}
		if len(tt.Aircraft) != 1 || tt.Aircraft[0].HomePort != "KSFO" {
			t.Errorf("load %d: aircraft %+v", i, tt.Aircraft)
		}
		if len(tt.Flights) != 1 {
			t.Fatalf("load %d: %d flights, expected 1", i, len(tt.Flights))
		}
		f := tt.Flights[0]
		if f.Callsign != "TST1" || f.CruiseAltitude != 35000 || f.Repeat != av.RepeatWeekly ||
			f.DepartureTime != (WeekTime{Day: 1, Minutes: 480}) {
			t.Errorf("load %d: flight %+v", i, f)
		}
	}

	if _, err := LoadTimetable(nil, filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSnapshot(t *testing.T) {
	m := makeTestManager(t, activationTimetable(t))
	now := testStart.Add(45 * time.Minute)
	m.SetUser(User{Callsign: "N12345", Position: locLAX, OnGround: true}, now)
	m.Tick(now, 1)

	snap := m.Snapshot()
	if len(snap.Aircraft) != 2 {
		t.Errorf("%d aircraft in snapshot, expected 2", len(snap.Aircraft))
	}
	if len(snap.Schedules) != 1 || len(snap.Schedules[0].Flights) != 2 {
		t.Fatalf("unexpected schedules %+v", snap.Schedules)
	}

	snap.Schedules[0].Flights[0].Callsign = "CHANGED"
	if m.schedules[0].Flights[0].Callsign == "CHANGED" {
		t.Error("snapshot shares flights with the manager")
	}
}

func TestShutdown(t *testing.T) {
	m := makeTestManager(t, activationTimetable(t))
	now := testStart.Add(45 * time.Minute)
	m.SetUser(User{Position: locLAX}, now)
	m.Tick(now, 1)
	if m.world.Len() != 1 {
		t.Fatalf("%d aircraft, expected 1", m.world.Len())
	}

	if err := m.Reinit(now); err != nil {
		t.Fatal(err)
	}
	if m.world.Len() != 0 {
		t.Errorf("%d aircraft after reinit", m.world.Len())
	}
	m.Tick(now, 1)
	if m.world.Len() != 1 {
		t.Errorf("%d aircraft after reinit and tick, expected 1", m.world.Len())
	}

	m.Shutdown()
	if m.world.Len() != 0 {
		t.Errorf("%d aircraft after shutdown", m.world.Len())
	}
}
