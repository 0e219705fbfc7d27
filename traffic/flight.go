// traffic/flight.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package traffic

import (
	"fmt"
	"log/slog"
	"time"

	av "github.com/mmp/aitraffic/aviation"
	"github.com/mmp/aitraffic/sim"
)

// ScheduledFlight is a single timetable entry. Flights with the same
// Requires tag are interchangeable between the aircraft that carry that
// tag; a flight is locked while it's part of some aircraft's rotation.
type ScheduledFlight struct {
	Callsign       string
	Requires       string
	Departure      string
	Arrival        string
	DepartureTime  time.Time
	ArrivalTime    time.Time
	CruiseAltitude float32 // feet
	Rules          av.FlightRules
	Repeat         av.RepeatPeriod

	locked bool
}

// AdjustTime moves a repeating flight forward by whole repeat periods
// until it hasn't yet arrived at now. Flights that only operate once are
// left unchanged.
func (f *ScheduledFlight) AdjustTime(now time.Time) {
	period := f.Repeat.Duration()
	if period <= 0 || !f.ArrivalTime.Before(now) {
		return
	}
	n := (now.Sub(f.ArrivalTime) + period - 1) / period
	f.shift(n * period)
}

func (f *ScheduledFlight) shift(d time.Duration) {
	f.DepartureTime = f.DepartureTime.Add(d)
	f.ArrivalTime = f.ArrivalTime.Add(d)
}

// NextOccurrenceAfter returns the departure time of the first occurrence
// of the flight that departs at or after t; ok is false if the flight
// never does.
func (f *ScheduledFlight) NextOccurrenceAfter(t time.Time) (dep time.Time, ok bool) {
	if !f.DepartureTime.Before(t) {
		return f.DepartureTime, true
	}
	period := f.Repeat.Duration()
	if period <= 0 {
		return time.Time{}, false
	}
	n := (t.Sub(f.DepartureTime) + period - 1) / period
	return f.DepartureTime.Add(n * period), true
}

// nextFlyable returns the departure of the first occurrence that departs
// at or after earliest and is still in the air or yet to depart at now.
func (f *ScheduledFlight) nextFlyable(earliest, now time.Time) (time.Time, bool) {
	if t := now.Add(time.Nanosecond - f.Duration()); t.After(earliest) {
		earliest = t
	}
	return f.NextOccurrenceAfter(earliest)
}

// Expired reports whether the flight doesn't repeat and has already
// arrived at now.
func (f *ScheduledFlight) Expired(now time.Time) bool {
	return f.Repeat.Duration() <= 0 && !f.ArrivalTime.After(now)
}

// moveTo shifts the flight so that it departs at dep.
func (f *ScheduledFlight) moveTo(dep time.Time) {
	f.shift(dep.Sub(f.DepartureTime))
}

func (f *ScheduledFlight) IsAvailable() bool {
	return !f.locked
}

func (f *ScheduledFlight) Lock() {
	f.locked = true
}

// Release makes the flight available to other rotations; releasing a
// flight that isn't locked is harmless.
func (f *ScheduledFlight) Release() {
	f.locked = false
}

func (f *ScheduledFlight) Duration() time.Duration {
	return f.ArrivalTime.Sub(f.DepartureTime)
}

// Local reports whether the flight departs from and returns to the same
// airport.
func (f *ScheduledFlight) Local() bool {
	return f.Departure == f.Arrival
}

// Validate checks that the flight's airports are known and that its
// times are consistent.
func (f *ScheduledFlight) Validate(airports sim.AirportLookup) error {
	for _, icao := range []string{f.Departure, f.Arrival} {
		if _, ok := airports.LookupAirport(icao); !ok {
			return fmt.Errorf("%s: %s: %w", f.Callsign, icao, ErrUnknownAirport)
		}
	}
	if !f.ArrivalTime.After(f.DepartureTime) {
		return fmt.Errorf("%s: %w", f.Callsign, ErrInvalidFlightTimes)
	}
	return nil
}

func (f *ScheduledFlight) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("callsign", f.Callsign),
		slog.String("departure", f.Departure),
		slog.String("arrival", f.Arrival),
		slog.Time("departure_time", f.DepartureTime),
		slog.Time("arrival_time", f.ArrivalTime),
		slog.String("repeat", f.Repeat.String()),
		slog.Bool("locked", f.locked))
}

// CompareFlights orders flights by departure time.
func CompareFlights(a, b *ScheduledFlight) int {
	if c := a.DepartureTime.Compare(b.DepartureTime); c != 0 {
		return c
	}
	if a.Callsign < b.Callsign {
		return -1
	} else if a.Callsign > b.Callsign {
		return 1
	}
	return 0
}
