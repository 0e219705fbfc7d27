// aviation/runwayuse.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package aviation

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/mmp/aitraffic/math"

	"github.com/iancoleman/orderedmap"
)

// RunwayUse is an airport's runway-use preference table: named groups of
// runways, tried in the order they appear in the data file. The first
// group that applies to the traffic class and time of day and whose
// runways are all within its wind limits is used.
type RunwayUse struct {
	Groups []RunwayUseGroup
}

type RunwayUseGroup struct {
	Name         string        `json:"-"`
	Classes      []TrafficType `json:"classes,omitempty"`
	Start        string        `json:"start,omitempty"` // "HH:MM", UTC
	End          string        `json:"end,omitempty"`
	Takeoff      []string      `json:"takeoff"`
	Landing      []string      `json:"landing"`
	MaxCrosswind float32       `json:"max_crosswind"`
	MaxTailwind  float32       `json:"max_tailwind"`
}

func (u *RunwayUse) UnmarshalJSON(b []byte) error {
	om := orderedmap.New()
	if err := json.Unmarshal(b, om); err != nil {
		return err
	}

	u.Groups = nil
	for _, name := range om.Keys() {
		v, _ := om.Get(name)
		gb, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var g RunwayUseGroup
		if err := json.Unmarshal(gb, &g); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		g.Name = name
		u.Groups = append(u.Groups, g)
	}
	return nil
}

func (u RunwayUse) MarshalJSON() ([]byte, error) {
	om := orderedmap.New()
	for _, g := range u.Groups {
		om.Set(g.Name, g)
	}
	return json.Marshal(om)
}

func (g RunwayUseGroup) appliesTo(class TrafficType) bool {
	return len(g.Classes) == 0 || slices.Contains(g.Classes, class)
}

func parseClock(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil || h < 0 || h > 24 || m < 0 || m > 59 {
		return 0, fmt.Errorf("%s: invalid time of day", s)
	}
	return h*60 + m, nil
}

func (g RunwayUseGroup) activeAt(t time.Time) bool {
	start, err := parseClock(g.Start, 0)
	if err != nil {
		return false
	}
	end, err := parseClock(g.End, 24*60)
	if err != nil {
		return false
	}
	t = t.UTC()
	m := t.Hour()*60 + t.Minute()
	if start <= end {
		return m >= start && m < end
	}
	// Window wraps around midnight.
	return m >= start || m < end
}

// withinLimits checks that every runway the group uses exists at the
// airport and is within the group's crosswind and tailwind limits.
func (g RunwayUseGroup) withinLimits(ap *Airport, windDir, windSpeed float32) bool {
	for _, id := range slices.Concat(g.Takeoff, g.Landing) {
		rwy, ok := ap.LookupRunway(id)
		if !ok {
			return false
		}
		head, cross := math.WindComponents(ap.TrueHeading(rwy), windDir, windSpeed)
		if cross > g.MaxCrosswind || -head > g.MaxTailwind {
			return false
		}
	}
	return true
}

// Validate checks the time windows of all groups and that the runways
// they name exist at the airport.
func (u *RunwayUse) Validate(ap *Airport) error {
	for _, g := range u.Groups {
		if _, err := parseClock(g.Start, 0); err != nil {
			return fmt.Errorf("%s: %w", g.Name, err)
		}
		if _, err := parseClock(g.End, 24*60); err != nil {
			return fmt.Errorf("%s: %w", g.Name, err)
		}
		for _, id := range slices.Concat(g.Takeoff, g.Landing) {
			if _, ok := ap.LookupRunway(id); !ok {
				return fmt.Errorf("%s: runway %q not found", g.Name, id)
			}
		}
	}
	return nil
}

// Select returns the runway to use for the given traffic class and action,
// along with the name of the group it was chosen from.
func (u *RunwayUse) Select(ap *Airport, class TrafficType, action RunwayAction, windDir, windSpeed float32,
	now time.Time) (rwy string, group string, ok bool) {
	for _, g := range u.Groups {
		if !g.appliesTo(class) || !g.activeAt(now) || !g.withinLimits(ap, windDir, windSpeed) {
			continue
		}

		rwys := g.Takeoff
		if action == RunwayLanding {
			rwys = g.Landing
		}
		if len(rwys) > 0 {
			return TidyRunway(rwys[0]), g.Name, true
		}
	}
	return "", "", false
}
