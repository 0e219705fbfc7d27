// traffic/delay.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package traffic

import (
	"time"

	"github.com/mmp/aitraffic/rand"
)

// DelayPolicy decides how late a scheduled flight leaves its gate.
type DelayPolicy interface {
	DepartureDelay(f *ScheduledFlight) time.Duration
}

type NoDelay struct{}

func (NoDelay) DepartureDelay(*ScheduledFlight) time.Duration { return 0 }

// RandomDelay delays departures by a uniformly-distributed amount up to
// Max.
type RandomDelay struct {
	Max  time.Duration
	Rand *rand.Rand
}

func (d RandomDelay) DepartureDelay(*ScheduledFlight) time.Duration {
	return d.Rand.Duration(d.Max)
}

// MakeDelayPolicy returns the policy for the given settings; departures
// are never delayed when traffic starts instantly.
func MakeDelayPolicy(s Settings, r *rand.Rand) DelayPolicy {
	if s.InstantStart || s.MaxDepartureDelay <= 0 {
		return NoDelay{}
	}
	return RandomDelay{Max: s.MaxDepartureDelay, Rand: r}
}
