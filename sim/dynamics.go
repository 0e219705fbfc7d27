// sim/dynamics.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	av "github.com/mmp/aitraffic/aviation"
	"github.com/mmp/aitraffic/log"
	"github.com/mmp/aitraffic/rand"
	"github.com/mmp/aitraffic/util"
)

type runwayKey struct {
	class  av.TrafficType
	action av.RunwayAction
}

type runwayChoice struct {
	Runway string
	Group  string
	Chosen time.Time
}

// departureQueue is the sequence of aircraft waiting to depart from a
// single runway.
type departureQueue struct {
	Sequenced   []AircraftID
	LastTakeoff time.Time
	// Aircraft currently rolling for takeoff or landing on the runway.
	Occupant AircraftID
}

func (q *departureQueue) filterDeleted(w *World) {
	q.Sequenced = util.FilterSliceInPlace(q.Sequenced, func(id AircraftID) bool {
		ac, ok := w.Get(id)
		return ok && !ac.Die
	})
	if q.Occupant != 0 {
		if ac, ok := w.Get(q.Occupant); !ok || ac.Die {
			q.Occupant = 0
		}
	}
}

// AirportDynamics holds the shared ground state of a single airport:
// parking occupancy, the active runways, the departure queues and the
// airport's controllers.
type AirportDynamics struct {
	Airport *av.Airport

	Startup  *StartupController
	Ground   *GroundController
	Tower    *TowerController
	Approach *ApproachController

	mu       sync.Mutex
	parking  map[string]AircraftID
	runways  map[runwayKey]runwayChoice
	queues   map[string]*departureQueue
	atis     int
	settings Settings
	rand     *rand.Rand
	lg       *log.Logger
}

func NewAirportDynamics(ap *av.Airport, settings Settings, r *rand.Rand, lg *log.Logger) *AirportDynamics {
	d := &AirportDynamics{
		Airport:  ap,
		parking:  make(map[string]AircraftID),
		runways:  make(map[runwayKey]runwayChoice),
		queues:   make(map[string]*departureQueue),
		settings: settings,
		rand:     r,
		lg:       lg.With(slog.String("airport", ap.ICAO)),
	}
	d.Startup = &StartupController{controllerBase: makeControllerBase(d, StartupControl)}
	d.Ground = &GroundController{controllerBase: makeControllerBase(d, GroundControl), holding: make(map[AircraftID]bool)}
	d.Tower = &TowerController{controllerBase: makeControllerBase(d, TowerControl)}
	d.Approach = &ApproachController{controllerBase: makeControllerBase(d, ApproachControl),
		slowed: make(map[AircraftID]bool)}
	return d
}

func (d *AirportDynamics) SetSettings(s Settings) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.settings = s
}

func (d *AirportDynamics) Controller(kind ControllerKind) Controller {
	switch kind {
	case StartupControl:
		return d.Startup
	case GroundControl:
		return d.Ground
	case TowerControl:
		return d.Tower
	case ApproachControl:
		return d.Approach
	default:
		return nil
	}
}

///////////////////////////////////////////////////////////////////////////
// Parking

// GetAvailableParking finds a free parking position suitable for an
// aircraft with the given radius (meters), class and airline and marks
// it as used by the aircraft. Among the positions that fit, the ones
// that waste the least space are preferred, with ties broken randomly.
func (d *AirportDynamics) GetAvailableParking(id AircraftID, radius float32, class av.TrafficType,
	airline string) (av.Parking, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	free := func(p av.Parking) bool {
		_, used := d.parking[p.Id]
		return !used && p.Fits(radius, class, airline)
	}

	smallest := float32(-1)
	for _, p := range d.Airport.Parking {
		if free(p) && (smallest < 0 || p.Radius < smallest) {
			smallest = p.Radius
		}
	}
	if smallest < 0 {
		return av.Parking{}, ErrNoParking
	}

	idx := rand.SampleFiltered(d.rand, d.Airport.Parking, func(p av.Parking) bool {
		return p.Radius == smallest && free(p)
	})
	p := d.Airport.Parking[idx]
	d.parking[p.Id] = id
	d.lg.Debug("assigned parking", slog.String("parking", p.Id), slog.Int("aircraft", int(id)))
	return p, nil
}

func (d *AirportDynamics) ReleaseParking(parking string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.parking, parking)
}

func (d *AirportDynamics) ParkingOccupant(parking string) (AircraftID, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id, ok := d.parking[parking]
	return id, ok
}

func (d *AirportDynamics) FreeParking() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.Airport.Parking) - len(d.parking)
}

// releaseAircraft drops everything at the airport that's held by the
// aircraft.
func (d *AirportDynamics) releaseAircraft(id AircraftID) {
	d.mu.Lock()
	for p, occ := range d.parking {
		if occ == id {
			delete(d.parking, p)
		}
	}
	d.mu.Unlock()

	d.Startup.Release(id)
	d.Ground.Release(id)
	d.Tower.Release(id)
	d.Approach.Release(id)
}

///////////////////////////////////////////////////////////////////////////
// Runways

// GetActiveRunway returns the runway to use for the given traffic class
// and action. The airport's runway use preferences are consulted first;
// if there are none or no group is usable, the runway best aligned with
// the wind is used. Choices are kept for the staleness period unless
// force is set so that the active runway doesn't flip back and forth.
func (d *AirportDynamics) GetActiveRunway(class av.TrafficType, action av.RunwayAction, windDir, windSpeed float32,
	now time.Time, force bool) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := runwayKey{class: class, action: action}
	prev, ok := d.runways[key]
	if ok && !force && now.Sub(prev.Chosen) < d.settings.RunwayStaleness {
		return prev.Runway, nil
	}

	var choice runwayChoice
	if d.Airport.RunwayUse != nil {
		if rwy, group, ok := d.Airport.RunwayUse.Select(d.Airport, class, action, windDir, windSpeed, now); ok {
			choice = runwayChoice{Runway: rwy, Group: group}
		}
	}
	if choice.Runway == "" {
		rwy, ok := d.Airport.SelectBestRunway(windDir)
		if !ok {
			return "", ErrNoRunway
		}
		choice = runwayChoice{Runway: rwy.Id}
	}
	choice.Chosen = now

	if !ok || prev.Runway != choice.Runway {
		d.atis++
		d.lg.Info("active runway changed", slog.String("class", class.String()),
			slog.String("action", action.String()), slog.String("runway", choice.Runway),
			slog.String("group", choice.Group), slog.String("atis", d.atisLetter()))
	}
	d.runways[key] = choice
	return choice.Runway, nil
}

func (d *AirportDynamics) atisLetter() string {
	if d.atis == 0 {
		return ""
	}
	return string(rune('A' + (d.atis-1)%26))
}

// ATISLetter returns the current ATIS information letter; it advances
// each time an active runway changes.
func (d *AirportDynamics) ATISLetter() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.atisLetter()
}

///////////////////////////////////////////////////////////////////////////
// Departure queues

func (d *AirportDynamics) queue(rwy string) *departureQueue {
	rwy = av.TidyRunway(rwy)
	q, ok := d.queues[rwy]
	if !ok {
		q = &departureQueue{}
		d.queues[rwy] = q
	}
	return q
}

// SetTakeOffSlot returns the next takeoff slot for the runway: no
// earlier than now and at least the departure separation after the
// previous slot. Slots are strictly increasing for each runway.
func (d *AirportDynamics) SetTakeOffSlot(rwy string, now time.Time) time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()

	q := d.queue(rwy)
	slot := now
	if !q.LastTakeoff.IsZero() {
		if next := q.LastTakeoff.Add(d.settings.DepartureSeparation); next.After(slot) {
			slot = next
		}
		if !slot.After(q.LastTakeoff) {
			slot = q.LastTakeoff.Add(time.Second)
		}
	}
	q.LastTakeoff = slot
	return slot
}

func (d *AirportDynamics) enqueueDeparture(rwy string, id AircraftID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	q := d.queue(rwy)
	if !slices.Contains(q.Sequenced, id) {
		q.Sequenced = append(q.Sequenced, id)
	}
}

// DepartureQueue returns the aircraft waiting for the runway, in order.
func (d *AirportDynamics) DepartureQueue(rwy string) []AircraftID {
	d.mu.Lock()
	defer d.mu.Unlock()

	return slices.Clone(d.queue(rwy).Sequenced)
}

// acquireRunway gives the aircraft the runway if it's free or already
// its own.
func (d *AirportDynamics) acquireRunway(rwy string, id AircraftID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	q := d.queue(rwy)
	if q.Occupant != 0 && q.Occupant != id {
		return false
	}
	q.Occupant = id
	q.Sequenced = slices.DeleteFunc(q.Sequenced, func(o AircraftID) bool { return o == id })
	return true
}

func (d *AirportDynamics) releaseRunways(id AircraftID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, q := range d.queues {
		if q.Occupant == id {
			q.Occupant = 0
		}
		q.Sequenced = slices.DeleteFunc(q.Sequenced, func(o AircraftID) bool { return o == id })
	}
}

func (d *AirportDynamics) filterDeleted(w *World) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, q := range d.queues {
		q.filterDeleted(w)
	}
}

// Dump returns a human-readable summary of the airport's state.
func (d *AirportDynamics) Dump() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %d/%d parking used, ATIS %q\n", d.Airport.ICAO, len(d.parking),
		len(d.Airport.Parking), d.atisLetter())
	for _, rwy := range util.SortedMapKeys(d.queues) {
		q := d.queues[rwy]
		fmt.Fprintf(&sb, "  %s: occupant %d queue %v last takeoff %s\n", rwy, q.Occupant, q.Sequenced,
			q.LastTakeoff.Format(time.DateTime))
	}
	return sb.String()
}
