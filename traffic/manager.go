// traffic/manager.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package traffic

import (
	"log/slog"
	"slices"
	"time"

	av "github.com/mmp/aitraffic/aviation"
	"github.com/mmp/aitraffic/log"
	"github.com/mmp/aitraffic/math"
	"github.com/mmp/aitraffic/rand"
	"github.com/mmp/aitraffic/sim"
	"github.com/mmp/aitraffic/util"

	"github.com/brunoga/deep"
)

// Database provides the static data that the traffic manager needs;
// *aviation.StaticDatabase implements it.
type Database interface {
	sim.AirportLookup
	LookupPerformance(name string, class av.TrafficType) av.AircraftPerformance
}

// User is the user's aircraft: traffic is only created near it.
type User struct {
	Callsign string
	Position math.Point2LL
	Altitude float32 // feet
	Heading  float32 // true
	Speed    float32
	OnGround bool
	Airport  string // where the user's session started
}

type Settings struct {
	Enabled bool `json:"enabled" yaml:"enabled" toml:"enabled"`
	// Aircraft are created when they're within this distance of the user.
	ActivationRadius float32 `json:"activation_radius" yaml:"activation_radius" toml:"activation_radius"` // nm
	// Airborne aircraft are retired once they're further than this from
	// the user.
	RetireRadius float32 `json:"retire_radius" yaml:"retire_radius" toml:"retire_radius"` // nm
	// Wall-clock time allowed for schedule updates each tick.
	TickBudget        time.Duration `json:"tick_budget" yaml:"tick_budget" toml:"tick_budget"`
	InstantStart      bool          `json:"instant_start" yaml:"instant_start" toml:"instant_start"`
	MaxDepartureDelay time.Duration `json:"max_departure_delay" yaml:"max_departure_delay" toml:"max_departure_delay"`
}

func DefaultSettings() Settings {
	return Settings{
		Enabled:           true,
		ActivationRadius:  500,
		RetireRadius:      550,
		TickBudget:        5 * time.Millisecond,
		MaxDepartureDelay: 10 * time.Minute,
	}
}

// Manager owns the schedules and drives the world. All of its methods
// may be called concurrently; they serialize on a single lock.
type Manager struct {
	// NewBudget returns the budget for each tick's schedule updates.
	NewBudget func() Budget

	mu          util.LoggingMutex
	world       *sim.World
	db          Database
	settings    Settings
	rand        *rand.Rand
	delay       DelayPolicy
	timetable   *Timetable
	schedules   []*Schedule
	pool        map[string][]*ScheduledFlight
	user        User
	userID      sim.AircraftID
	cursor      int
	initialized bool
	now         time.Time
	lg          *log.Logger
}

func NewManager(w *sim.World, db Database, settings Settings, lg *log.Logger) *Manager {
	m := &Manager{
		world:    w,
		db:       db,
		settings: settings,
		rand:     w.Rand,
		lg:       lg,
	}
	m.delay = MakeDelayPolicy(settings, m.rand)
	m.NewBudget = func() Budget {
		if m.settings.TickBudget <= 0 {
			return Unlimited
		}
		return NewClockBudget(m.settings.TickBudget, nil)
	}
	return m
}

// Load reads the timetable files; the traffic isn't created until Init
// is called.
func (m *Manager) Load(paths ...string) error {
	tt, err := LoadTimetable(m.lg, paths...)
	if err != nil {
		return err
	}
	m.SetTimetable(tt)
	return nil
}

func (m *Manager) SetTimetable(tt *Timetable) {
	m.mu.Lock(m.lg)
	defer m.mu.Unlock(m.lg)
	m.timetable = tt
}

// Init creates the flights and schedules as of now.
func (m *Manager) Init(now time.Time) error {
	m.mu.Lock(m.lg)
	defer m.mu.Unlock(m.lg)
	return m.init(now)
}

func (m *Manager) init(now time.Time) error {
	if !m.settings.Enabled {
		m.lg.Info("traffic disabled")
		return nil
	}
	if m.timetable == nil {
		return ErrNotInitialized
	}

	m.pool, m.schedules = m.timetable.Instantiate(now, m.db, m.lg)
	m.cursor = 0
	m.now = now
	m.initialized = true
	m.lg.Info("traffic initialized", slog.Int("schedules", len(m.schedules)),
		slog.Time("now", now))
	return nil
}

// Reinit discards all traffic and starts again as of now; it's used when
// the user's position or the time jumps.
func (m *Manager) Reinit(now time.Time) error {
	m.mu.Lock(m.lg)
	defer m.mu.Unlock(m.lg)
	m.shutdown()
	return m.init(now)
}

// Shutdown removes all of the aircraft the schedules created.
func (m *Manager) Shutdown() {
	m.mu.Lock(m.lg)
	defer m.mu.Unlock(m.lg)
	m.shutdown()
}

func (m *Manager) shutdown() {
	for _, s := range m.schedules {
		s.Shutdown(m)
	}
	m.schedules = nil
	m.pool = nil
	m.initialized = false
}

// SetSettings applies new settings; disabling the traffic removes it.
func (m *Manager) SetSettings(s Settings) error {
	m.mu.Lock(m.lg)
	defer m.mu.Unlock(m.lg)

	enable := s.Enabled && !m.settings.Enabled
	m.settings = s
	m.delay = MakeDelayPolicy(s, m.rand)
	m.lg.Info("traffic settings updated", slog.Any("settings", s))

	if !s.Enabled {
		m.shutdown()
	} else if enable && m.timetable != nil {
		return m.init(m.now)
	}
	return nil
}

// SetSimSettings applies new aircraft and ground control settings to the
// world.
func (m *Manager) SetSimSettings(s sim.Settings) {
	m.mu.Lock(m.lg)
	defer m.mu.Unlock(m.lg)
	m.world.SetSettings(s)
}

// SetUser updates the user's aircraft. If it has a callsign, it's also
// added to the world so that the traffic sees it on the ground.
func (m *Manager) SetUser(u User, now time.Time) {
	m.mu.Lock(m.lg)
	defer m.mu.Unlock(m.lg)

	m.user = u
	if u.Callsign == "" {
		return
	}

	state := sim.FlightState{
		Position: u.Position,
		Altitude: u.Altitude,
		Heading:  u.Heading,
		Speed:    u.Speed,
		OnGround: u.OnGround,
	}
	if ac, ok := m.world.Get(m.userID); ok {
		ac.SetExternalState(state, now)
		return
	}
	spec := sim.AircraftSpec{
		Callsign:    u.Callsign,
		Class:       av.TrafficGeneral,
		Performance: av.DefaultPerformance(av.TrafficGeneral),
	}
	m.userID = m.world.Add(sim.NewExternalAircraft(spec, state, m.lg))
}

func (m *Manager) userDistance(p math.Point2LL, alt float32) float32 {
	return math.CartesianDistanceNM(math.Cartesian(p, alt), math.Cartesian(m.user.Position, m.user.Altitude))
}

// removeFlights takes flights that will never be flown again out of the
// pool.
func (m *Manager) removeFlights(requires string, flights ...*ScheduledFlight) {
	if len(flights) == 0 {
		return
	}
	m.pool[requires] = slices.DeleteFunc(m.pool[requires], func(f *ScheduledFlight) bool {
		return slices.Contains(flights, f)
	})
	for _, f := range flights {
		m.lg.Debug("flight removed from pool", slog.Any("flight", f))
	}
}

// Tick advances the world by dt seconds and then updates as many of the
// schedules as the tick's budget allows, continuing from where the
// previous tick stopped.
func (m *Manager) Tick(now time.Time, dt float32) {
	m.mu.Lock(m.lg)
	defer m.mu.Unlock(m.lg)

	m.now = now
	m.world.Update(now, dt)
	if m.initialized {
		m.updateSchedules(now, m.NewBudget())
	}
}

func (m *Manager) updateSchedules(now time.Time, b Budget) {
	if m.cursor == 0 {
		for _, s := range m.schedules {
			s.SetScore(m.user.Airport)
		}
		slices.SortStableFunc(m.schedules, CompareSchedules)
	}

	for m.cursor < len(m.schedules) {
		if b.Exhausted() {
			return
		}
		if !m.schedules[m.cursor].Update(m, now, b) {
			return
		}
		m.cursor++
	}
	m.cursor = 0
}

///////////////////////////////////////////////////////////////////////////
// Snapshot

type ScheduleSummary struct {
	Registration string             `json:"registration"`
	Airline      string             `json:"airline"`
	AircraftType string             `json:"aircraft_type"`
	HomePort     string             `json:"home_port"`
	Valid        bool               `json:"valid"`
	Score        float32            `json:"score"`
	Aircraft     sim.AircraftID     `json:"aircraft,omitempty"`
	Flights      []*ScheduledFlight `json:"flights"`
}

type AirportSummary struct {
	ICAO        string `json:"icao"`
	ATIS        string `json:"atis"`
	FreeParking int    `json:"free_parking"`
}

// Snapshot is a copy of the traffic state that can be used without
// holding the manager's lock.
type Snapshot struct {
	Time      time.Time              `json:"time"`
	Schedules []ScheduleSummary      `json:"schedules"`
	Aircraft  []sim.AircraftSnapshot `json:"aircraft"`
	Airports  []AirportSummary       `json:"airports"`
}

func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock(m.lg)
	defer m.mu.Unlock(m.lg)

	snap := Snapshot{Time: m.now}
	for _, s := range m.schedules {
		snap.Schedules = append(snap.Schedules, ScheduleSummary{
			Registration: s.Registration,
			Airline:      s.Airline,
			AircraftType: s.AircraftType,
			HomePort:     s.HomePort,
			Valid:        s.Valid,
			Score:        s.Score,
			Aircraft:     s.Aircraft,
			Flights:      deep.MustCopy(s.Flights),
		})
	}
	for ac := range m.world.All() {
		snap.Aircraft = append(snap.Aircraft, ac.Snapshot())
	}
	for _, d := range m.world.ActiveDynamics() {
		snap.Airports = append(snap.Airports, AirportSummary{
			ICAO:        d.Airport.ICAO,
			ATIS:        d.ATISLetter(),
			FreeParking: d.FreeParking(),
		})
	}
	return snap
}
