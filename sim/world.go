// sim/world.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"iter"
	"log/slog"
	"slices"
	"strings"
	"time"

	av "github.com/mmp/aitraffic/aviation"
	"github.com/mmp/aitraffic/log"
	"github.com/mmp/aitraffic/math"
	"github.com/mmp/aitraffic/rand"
	"github.com/mmp/aitraffic/util"
)

type AircraftID int

// AirportLookup provides the static airport data.
type AirportLookup interface {
	LookupAirport(icao string) (*av.Airport, bool)
}

// KinematicState is what's published for each aircraft after every
// update for rendering and multiplayer output.
type KinematicState struct {
	ID            AircraftID    `json:"id"`
	Callsign      string        `json:"callsign"`
	Registration  string        `json:"registration,omitempty"`
	AircraftType  string        `json:"type,omitempty"`
	ModelPath     string        `json:"model,omitempty"`
	Livery        string        `json:"livery,omitempty"`
	Position      math.Point2LL `json:"position"`
	Altitude      float32       `json:"altitude"`
	Heading       float32       `json:"heading"`
	Bank          float32       `json:"bank"`
	Pitch         float32       `json:"pitch"`
	Speed         float32       `json:"speed"`
	VerticalSpeed float32       `json:"vertical_speed"`
	OnGround      bool          `json:"on_ground"`
	Leg           string        `json:"leg"`
	Time          time.Time     `json:"time"`
}

type KinematicSink interface {
	UpdateAircraft(s KinematicState)
	RemoveAircraft(id AircraftID)
}

type ElevationProvider interface {
	// Elevation returns the ground elevation in feet at the given point;
	// ok is false if it's unknown.
	Elevation(p math.Point2LL) (elev float32, ok bool)
}

type WindSource interface {
	// Wind returns the direction the wind is blowing from (true) and its
	// speed in knots.
	Wind(p math.Point2LL, now time.Time) (dir, speed float32)
}

// ConstantWind is a WindSource with the same wind everywhere.
type ConstantWind struct {
	Direction float32
	Speed     float32
}

func (c ConstantWind) Wind(math.Point2LL, time.Time) (float32, float32) {
	return c.Direction, c.Speed
}

type Settings struct {
	// Number of consecutive updates an aircraft may be stationary when it
	// should be moving before it's removed.
	StuckLimit int
	// How long an active runway choice is kept before being reevaluated.
	RunwayStaleness time.Duration
	// Minimum time between consecutive takeoffs from the same runway.
	DepartureSeparation time.Duration
	// Minimum distance between successive arrivals on approach, nm.
	ArrivalSpacing float32
}

func DefaultSettings() Settings {
	return Settings{
		StuckLimit:          3000,
		RunwayStaleness:     15 * time.Minute,
		DepartureSeparation: 90 * time.Second,
		ArrivalSpacing:      4,
	}
}

// World holds all of the active aircraft and the per-airport ground
// control state. It's not safe for concurrent use; callers serialize
// access (the traffic manager holds its lock around every call).
type World struct {
	Airports  AirportLookup
	Planner   FlightPlanner
	Elevation ElevationProvider
	Sink      KinematicSink
	Wind      WindSource
	Rand      *rand.Rand
	Settings  Settings

	aircraft map[AircraftID]*Aircraft
	order    []AircraftID
	nextID   AircraftID
	dynamics map[string]*AirportDynamics

	lg *log.Logger
}

func NewWorld(airports AirportLookup, settings Settings, r *rand.Rand, lg *log.Logger) *World {
	if r == nil {
		r = rand.Make()
	}
	return &World{
		Airports: airports,
		Planner:  DefaultPlanner{},
		Wind:     ConstantWind{},
		Rand:     r,
		Settings: settings,
		aircraft: make(map[AircraftID]*Aircraft),
		nextID:   1,
		dynamics: make(map[string]*AirportDynamics),
		lg:       lg,
	}
}

// NextID reserves the id for an aircraft that's about to be created; it
// allows parking to be reserved on the aircraft's behalf while its
// flight plan is built.
func (w *World) NextID() AircraftID {
	id := w.nextID
	w.nextID++
	return id
}

// Add registers the aircraft, assigning it an id if it doesn't already
// have one.
func (w *World) Add(ac *Aircraft) AircraftID {
	if ac.ID == 0 {
		ac.ID = w.NextID()
	}
	w.aircraft[ac.ID] = ac
	w.order = append(w.order, ac.ID)
	w.lg.Debug("added aircraft", slog.Any("aircraft", ac))
	return ac.ID
}

func (w *World) Get(id AircraftID) (*Aircraft, bool) {
	ac, ok := w.aircraft[id]
	return ac, ok
}

// Remove drops the aircraft from the world, releasing its parking and
// any controller that has it.
func (w *World) Remove(id AircraftID) {
	ac, ok := w.aircraft[id]
	if !ok {
		return
	}
	ac.releaseATC(w)
	for _, d := range w.dynamics {
		d.releaseAircraft(id)
	}

	delete(w.aircraft, id)
	w.order = slices.DeleteFunc(w.order, func(o AircraftID) bool { return o == id })
	if w.Sink != nil {
		w.Sink.RemoveAircraft(id)
	}
	w.lg.Debug("removed aircraft", slog.Int("id", int(id)), slog.String("callsign", ac.Callsign),
		slog.String("reason", ac.DieReason.String()))
}

// All returns the aircraft in registration order.
func (w *World) All() iter.Seq[*Aircraft] {
	return func(yield func(*Aircraft) bool) {
		for _, id := range w.order {
			if ac, ok := w.aircraft[id]; ok && !yield(ac) {
				return
			}
		}
	}
}

func (w *World) Len() int {
	return len(w.aircraft)
}

// Update advances every aircraft by dt seconds. Aircraft that die stay
// registered until their owner removes them.
func (w *World) Update(now time.Time, dt float32) {
	// Aircraft may be added during an update (they won't be updated until
	// the next one), so iterate over a copy of the order.
	for _, id := range append([]AircraftID(nil), w.order...) {
		if ac, ok := w.aircraft[id]; ok && !ac.Die {
			ac.Update(w, now, dt)
		}
	}
}

// Dynamics returns the ground control state for the airport, creating it
// the first time it's needed.
func (w *World) Dynamics(icao string) (*AirportDynamics, error) {
	icao = strings.ToUpper(icao)
	if d, ok := w.dynamics[icao]; ok {
		return d, nil
	}
	if w.Airports == nil {
		return nil, ErrUnknownAirport
	}
	ap, ok := w.Airports.LookupAirport(icao)
	if !ok {
		return nil, ErrUnknownAirport
	}
	ap.ICAO = icao

	d := NewAirportDynamics(ap, w.Settings, w.Rand, w.lg)
	w.dynamics[icao] = d
	return d, nil
}

// SetSettings applies new settings to the world and to every airport
// that's already been referenced.
func (w *World) SetSettings(s Settings) {
	w.Settings = s
	for _, d := range w.dynamics {
		d.SetSettings(s)
	}
	w.lg.Info("sim settings updated", slog.Any("settings", s))
}

// ActiveDynamics returns the airports that have been referenced so far,
// sorted by ICAO code.
func (w *World) ActiveDynamics() []*AirportDynamics {
	var d []*AirportDynamics
	for _, icao := range util.SortedMapKeys(w.dynamics) {
		d = append(d, w.dynamics[icao])
	}
	return d
}

func (w *World) wind(p math.Point2LL, now time.Time) (float32, float32) {
	if w.Wind == nil {
		return 0, 0
	}
	return w.Wind.Wind(p, now)
}

func (w *World) elevation(p math.Point2LL) (float32, bool) {
	if w.Elevation == nil {
		return 0, false
	}
	return w.Elevation.Elevation(p)
}
