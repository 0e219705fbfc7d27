// config/settings.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package config

import (
	"github.com/mmp/aitraffic/math"
	"github.com/mmp/aitraffic/sim"
	"github.com/mmp/aitraffic/traffic"
)

const (
	PathTrafficEnabled      = "/sim/traffic-manager/enabled"
	PathActivationRadius    = "/sim/traffic-manager/activation-radius-nm"
	PathRetireRadius        = "/sim/traffic-manager/retire-radius-nm"
	PathTickBudget          = "/sim/traffic-manager/tick-budget"
	PathInstantStart        = "/sim/traffic-manager/instantaneous-action"
	PathMaxDepartureDelay   = "/sim/traffic-manager/max-departure-delay"
	PathStuckLimit          = "/sim/traffic-manager/stuck-limit"
	PathRunwayStaleness     = "/sim/traffic-manager/runway-staleness"
	PathDepartureSeparation = "/sim/traffic-manager/departure-separation"
	PathArrivalSpacing      = "/sim/traffic-manager/arrival-spacing-nm"
	PathAirports            = "/sim/traffic-manager/airports"
	PathTimetables          = "/sim/traffic-manager/timetables"
	PathSeed                = "/sim/rand/seed"
	PathWindDirection       = "/environment/wind-from-heading-deg"
	PathWindSpeed           = "/environment/wind-speed-kt"
	PathUserLatitude        = "/position/latitude-deg"
	PathUserLongitude       = "/position/longitude-deg"
	PathUserAltitude        = "/position/altitude-ft"
	PathUserAirport         = "/sim/presets/airport-id"
	PathUserCallsign        = "/sim/multiplay/callsign"
	PathLogLevel            = "/sim/logging/level"
	PathLogDir              = "/sim/logging/dir"
	PathTelemetry           = "/sim/telemetry/address"
)

// Settings is the typed view of the configuration that the rest of the
// system uses.
type Settings struct {
	Traffic    traffic.Settings
	Sim        sim.Settings
	Seed       int64
	Wind       sim.ConstantWind
	User       traffic.User
	Airports   []string
	Timetables []string
	LogLevel   string
	LogDir     string
	Telemetry  string
}

// FromStore returns the settings given by the store, using defaults for
// anything it doesn't have.
func FromStore(s *Store) Settings {
	t := traffic.DefaultSettings()
	sm := sim.DefaultSettings()

	return Settings{
		Traffic: traffic.Settings{
			Enabled:           s.GetBool(PathTrafficEnabled, t.Enabled),
			ActivationRadius:  s.GetFloat(PathActivationRadius, t.ActivationRadius),
			RetireRadius:      s.GetFloat(PathRetireRadius, t.RetireRadius),
			TickBudget:        s.GetDuration(PathTickBudget, t.TickBudget),
			InstantStart:      s.GetBool(PathInstantStart, t.InstantStart),
			MaxDepartureDelay: s.GetDuration(PathMaxDepartureDelay, t.MaxDepartureDelay),
		},
		Sim: sim.Settings{
			StuckLimit:          s.GetInt(PathStuckLimit, sm.StuckLimit),
			RunwayStaleness:     s.GetDuration(PathRunwayStaleness, sm.RunwayStaleness),
			DepartureSeparation: s.GetDuration(PathDepartureSeparation, sm.DepartureSeparation),
			ArrivalSpacing:      s.GetFloat(PathArrivalSpacing, sm.ArrivalSpacing),
		},
		Seed: int64(s.GetInt(PathSeed, 0)),
		Wind: sim.ConstantWind{
			Direction: s.GetFloat(PathWindDirection, 0),
			Speed:     s.GetFloat(PathWindSpeed, 0),
		},
		User: traffic.User{
			Callsign: s.GetString(PathUserCallsign, ""),
			Position: math.Point2LL{s.GetFloat(PathUserLongitude, 0), s.GetFloat(PathUserLatitude, 0)},
			Altitude: s.GetFloat(PathUserAltitude, 0),
			Airport:  s.GetString(PathUserAirport, ""),
		},
		Airports:   s.GetStrings(PathAirports),
		Timetables: s.GetStrings(PathTimetables),
		LogLevel:   s.GetString(PathLogLevel, "info"),
		LogDir:     s.GetString(PathLogDir, ""),
		Telemetry:  s.GetString(PathTelemetry, ""),
	}
}

// Watch calls fn with the updated settings whenever any value in the
// store changes.
func Watch(s *Store, fn func(Settings)) {
	s.AddListener("/", func(string, any) {
		fn(FromStore(s))
	})
}
