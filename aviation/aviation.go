// aviation/aviation.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package aviation

import (
	"fmt"
	"strings"
	"time"
)

type FlightRules int

const (
	FlightRulesUnknown FlightRules = iota
	FlightRulesIFR
	FlightRulesVFR
)

func (f FlightRules) String() string {
	return [...]string{"Unknown", "IFR", "VFR"}[f]
}

func ParseFlightRules(s string) (FlightRules, error) {
	switch strings.ToUpper(s) {
	case "IFR", "":
		return FlightRulesIFR, nil
	case "VFR":
		return FlightRulesVFR, nil
	default:
		return FlightRulesUnknown, fmt.Errorf("%s: unknown flight rules", s)
	}
}

///////////////////////////////////////////////////////////////////////////
// TrafficType

// TrafficType classifies aircraft for runway and parking selection.
type TrafficType int

const (
	TrafficCommercial TrafficType = iota
	TrafficGeneral
	TrafficMilitary
	TrafficUltralight
)

func (t TrafficType) String() string {
	return [...]string{"commercial", "general", "military", "ultralight"}[t]
}

func ParseTrafficType(s string) (TrafficType, error) {
	switch strings.ToLower(s) {
	case "commercial", "", "gate", "cargo":
		return TrafficCommercial, nil
	case "general", "ga":
		return TrafficGeneral, nil
	case "military", "mil-fighter", "mil-cargo":
		return TrafficMilitary, nil
	case "ultralight", "ul":
		return TrafficUltralight, nil
	default:
		return TrafficCommercial, fmt.Errorf("%s: unknown traffic type", s)
	}
}

func (t *TrafficType) UnmarshalText(b []byte) error {
	var err error
	*t, err = ParseTrafficType(string(b))
	return err
}

func (t TrafficType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

type RunwayAction int

const (
	RunwayTakeoff RunwayAction = iota
	RunwayLanding
)

func (a RunwayAction) String() string {
	return [...]string{"takeoff", "landing"}[a]
}

///////////////////////////////////////////////////////////////////////////
// RepeatPeriod

// RepeatPeriod is how often a scheduled flight recurs; zero means it
// operates once.
type RepeatPeriod time.Duration

const (
	RepeatOnce   RepeatPeriod = 0
	RepeatHourly RepeatPeriod = RepeatPeriod(time.Hour)
	RepeatDaily  RepeatPeriod = RepeatPeriod(24 * time.Hour)
	RepeatWeekly RepeatPeriod = RepeatPeriod(7 * 24 * time.Hour)
)

// ParseRepeatPeriod accepts "WEEK", "24Hr", "1Hr" (or more generally
// "<n>Hr") and "" / "ONCE".
func ParseRepeatPeriod(s string) (RepeatPeriod, error) {
	u := strings.ToUpper(strings.TrimSpace(s))
	switch {
	case u == "" || u == "ONCE":
		return RepeatOnce, nil
	case u == "WEEK" || u == "WEEKLY":
		return RepeatWeekly, nil
	case u == "DAY" || u == "DAILY":
		return RepeatDaily, nil
	case strings.HasSuffix(u, "HR"):
		var n int
		if _, err := fmt.Sscanf(u, "%dHR", &n); err != nil || n <= 0 {
			return RepeatOnce, fmt.Errorf("%s: invalid repeat period", s)
		}
		return RepeatPeriod(time.Duration(n) * time.Hour), nil
	default:
		return RepeatOnce, fmt.Errorf("%s: invalid repeat period", s)
	}
}

func (r RepeatPeriod) Duration() time.Duration {
	return time.Duration(r)
}

func (r RepeatPeriod) String() string {
	switch r {
	case RepeatOnce:
		return "ONCE"
	case RepeatWeekly:
		return "WEEK"
	default:
		return fmt.Sprintf("%dHr", int(time.Duration(r)/time.Hour))
	}
}
