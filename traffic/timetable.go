// traffic/timetable.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package traffic

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	av "github.com/mmp/aitraffic/aviation"
	"github.com/mmp/aitraffic/log"
	"github.com/mmp/aitraffic/sim"
	"github.com/mmp/aitraffic/util"

	"golang.org/x/sync/errgroup"
)

// AircraftEntry describes one aircraft in a timetable file.
type AircraftEntry struct {
	Registration string         `json:"registration" msgpack:"registration"`
	Airline      string         `json:"airline" msgpack:"airline"`
	Type         string         `json:"type" msgpack:"type"`
	Model        string         `json:"model" msgpack:"model"`
	Livery       string         `json:"livery" msgpack:"livery"`
	HomePort     string         `json:"home_port" msgpack:"home_port"`
	Requires     string         `json:"requires" msgpack:"requires"`
	Class        av.TrafficType `json:"class" msgpack:"class"`
	Heavy        bool           `json:"heavy" msgpack:"heavy"`
	Radius       float32        `json:"radius" msgpack:"radius"`
	TurnRadius   float32        `json:"turn_radius" msgpack:"turn_radius"`
	GroundOffset float32        `json:"ground_offset" msgpack:"ground_offset"`
	Performance  string         `json:"performance" msgpack:"performance"`
}

type flightEntry struct {
	Callsign      string `json:"callsign"`
	Requires      string `json:"requires"`
	Departure     string `json:"departure"`
	Arrival       string `json:"arrival"`
	DepartureTime string `json:"departure_time"`
	ArrivalTime   string `json:"arrival_time"`
	FlightLevel   int    `json:"fl"`
	Rules         string `json:"rules"`
	Repeat        string `json:"repeat"`
}

type timetableFile struct {
	Aircraft []AircraftEntry `json:"aircraft"`
	Flights  []flightEntry   `json:"flights"`
}

// WeekTime is a time in a timetable: either a day of the week (0 is
// Sunday) and time of day, or just a time of day when Day is -1.
type WeekTime struct {
	Day     int `msgpack:"day"`
	Minutes int `msgpack:"minutes"`
}

// ParseWeekTime parses "d/hh:mm" or "hh:mm".
func ParseWeekTime(s string) (WeekTime, error) {
	t := WeekTime{Day: -1}
	if day, hm, ok := strings.Cut(s, "/"); ok {
		d, err := strconv.Atoi(day)
		if err != nil || d < 0 || d > 6 {
			return WeekTime{}, fmt.Errorf("%q: %w", s, ErrInvalidTime)
		}
		t.Day = d
		s = hm
	}

	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return WeekTime{}, fmt.Errorf("%q: %w", s, ErrInvalidTime)
	}
	h, herr := strconv.Atoi(hh)
	m, merr := strconv.Atoi(mm)
	if herr != nil || merr != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return WeekTime{}, fmt.Errorf("%q: %w", s, ErrInvalidTime)
	}
	t.Minutes = h*60 + m
	return t, nil
}

func (t WeekTime) Weekly() bool {
	return t.Day >= 0
}

// Resolve returns the absolute time for t in the week (or day) that
// contains now.
func (t WeekTime) Resolve(now time.Time) time.Time {
	now = now.UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if t.Weekly() {
		day = day.AddDate(0, 0, t.Day-int(day.Weekday()))
	}
	return day.Add(time.Duration(t.Minutes) * time.Minute)
}

func (t WeekTime) String() string {
	hm := fmt.Sprintf("%02d:%02d", t.Minutes/60, t.Minutes%60)
	if t.Weekly() {
		return strconv.Itoa(t.Day) + "/" + hm
	}
	return hm
}

// FlightRecord is a validated timetable flight; its times are resolved
// to absolute times when the traffic is initialized.
type FlightRecord struct {
	Callsign       string          `msgpack:"callsign"`
	Requires       string          `msgpack:"requires"`
	Departure      string          `msgpack:"departure"`
	Arrival        string          `msgpack:"arrival"`
	DepartureTime  WeekTime        `msgpack:"departure_time"`
	ArrivalTime    WeekTime        `msgpack:"arrival_time"`
	CruiseAltitude float32         `msgpack:"cruise_altitude"`
	Rules          av.FlightRules  `msgpack:"rules"`
	Repeat         av.RepeatPeriod `msgpack:"repeat"`
}

// Flight returns the ScheduledFlight for the occurrence of the record in
// the week containing now.
func (r FlightRecord) Flight(now time.Time) *ScheduledFlight {
	dep := r.DepartureTime.Resolve(now)
	arr := r.ArrivalTime.Resolve(now)
	if !arr.After(dep) {
		// Overnight (or over the end of the week).
		arr = arr.Add(util.Select(r.ArrivalTime.Weekly(), 7*24*time.Hour, 24*time.Hour))
	}
	return &ScheduledFlight{
		Callsign:       r.Callsign,
		Requires:       r.Requires,
		Departure:      r.Departure,
		Arrival:        r.Arrival,
		DepartureTime:  dep,
		ArrivalTime:    arr,
		CruiseAltitude: r.CruiseAltitude,
		Rules:          r.Rules,
		Repeat:         r.Repeat,
	}
}

func parseFlightEntry(f flightEntry) (FlightRecord, error) {
	r := FlightRecord{
		Callsign:       strings.ToUpper(f.Callsign),
		Requires:       f.Requires,
		Departure:      strings.ToUpper(f.Departure),
		Arrival:        strings.ToUpper(f.Arrival),
		CruiseAltitude: float32(f.FlightLevel * 100),
	}
	var err error
	if r.DepartureTime, err = ParseWeekTime(f.DepartureTime); err != nil {
		return r, err
	}
	if r.ArrivalTime, err = ParseWeekTime(f.ArrivalTime); err != nil {
		return r, err
	}
	if r.DepartureTime.Weekly() != r.ArrivalTime.Weekly() {
		return r, fmt.Errorf("%s/%s: mixed weekly and daily times: %w", f.DepartureTime, f.ArrivalTime,
			ErrInvalidTime)
	}
	if r.Rules, err = av.ParseFlightRules(f.Rules); err != nil {
		return r, err
	}
	if r.Repeat, err = av.ParseRepeatPeriod(f.Repeat); err != nil {
		return r, err
	}
	if r.Requires == "" {
		return r, fmt.Errorf("no aircraft requirement given")
	}
	return r, nil
}

// Timetable is the merged contents of the timetable files.
type Timetable struct {
	Aircraft []AircraftEntry `msgpack:"aircraft"`
	Flights  []FlightRecord  `msgpack:"flights"`
}

func timetableCachePath(paths []string) string {
	h := fnv.New64a()
	for _, p := range paths {
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("timetable-%016x.msgpack", h.Sum64())
}

// LoadTimetable reads the given timetable files (optionally zstd
// compressed) in parallel and merges them. Malformed entries are logged
// and skipped. The result is cached and the cached version is used if
// none of the files have changed since.
func LoadTimetable(lg *log.Logger, paths ...string) (*Timetable, error) {
	var newest time.Time
	for _, p := range paths {
		fi, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if fi.ModTime().After(newest) {
			newest = fi.ModTime()
		}
	}

	cachePath := timetableCachePath(paths)
	var cached Timetable
	if t, err := util.CacheRetrieveObject(cachePath, &cached); err == nil && t.After(newest) {
		lg.Info("using cached timetable", slog.String("path", cachePath),
			slog.Int("aircraft", len(cached.Aircraft)), slog.Int("flights", len(cached.Flights)))
		return &cached, nil
	}

	files := make([]timetableFile, len(paths))
	var eg errgroup.Group
	for i, path := range paths {
		eg.Go(func() error {
			b, err := util.ReadResource(path)
			if err != nil {
				return err
			}
			if err := json.Unmarshal(b, &files[i]); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	tt := &Timetable{}
	var e util.ErrorLogger
	for i, f := range files {
		e.Push(paths[i])
		for _, a := range f.Aircraft {
			if a.Registration == "" || a.Requires == "" {
				e.ErrorString("aircraft must have registration and requires")
				continue
			}
			a.HomePort = strings.ToUpper(a.HomePort)
			tt.Aircraft = append(tt.Aircraft, a)
		}
		for _, fe := range f.Flights {
			e.Push(fe.Callsign)
			if r, err := parseFlightEntry(fe); err != nil {
				e.Error(err)
			} else {
				tt.Flights = append(tt.Flights, r)
			}
			e.Pop()
		}
		e.Pop()
	}
	if e.HaveErrors() {
		e.LogErrors(lg)
	}
	if len(tt.Aircraft) == 0 {
		return nil, ErrNoAircraft
	}

	if err := util.CacheStoreObject(cachePath, tt); err != nil {
		lg.Warn("unable to cache timetable", slog.Any("error", err))
	}
	lg.Info("loaded timetable", slog.Int("aircraft", len(tt.Aircraft)), slog.Int("flights", len(tt.Flights)),
		slog.Int("dropped", len(e.Errors())))
	return tt, nil
}

// Instantiate creates the flights and schedules for the timetable as of
// now. Flights and aircraft that refer to unknown airports are dropped,
// as are aircraft for which there are no flights.
func (tt *Timetable) Instantiate(now time.Time, airports sim.AirportLookup,
	lg *log.Logger) (map[string][]*ScheduledFlight, []*Schedule) {
	pool := make(map[string][]*ScheduledFlight)
	for _, r := range tt.Flights {
		f := r.Flight(now)
		if err := f.Validate(airports); err != nil {
			lg.Warn("dropping flight", slog.Any("error", err))
			continue
		}
		f.AdjustTime(now)
		pool[f.Requires] = append(pool[f.Requires], f)
	}
	for _, flights := range pool {
		slices.SortFunc(flights, CompareFlights)
	}

	var schedules []*Schedule
	for _, a := range tt.Aircraft {
		if a.HomePort != "" {
			if _, ok := airports.LookupAirport(a.HomePort); !ok {
				lg.Warn("dropping aircraft", slog.String("registration", a.Registration),
					slog.String("home_port", a.HomePort), slog.Any("error", ErrUnknownAirport))
				continue
			}
		}
		if len(pool[a.Requires]) == 0 {
			lg.Warn("dropping aircraft", slog.String("registration", a.Registration),
				slog.String("requires", a.Requires), slog.Any("error", ErrUnknownRequirement))
			continue
		}
		schedules = append(schedules, NewSchedule(a, lg))
	}
	return pool, schedules
}
