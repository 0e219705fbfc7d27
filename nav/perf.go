// nav/perf.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package nav

import (
	av "github.com/mmp/aitraffic/aviation"
	"github.com/mmp/aitraffic/math"
)

// Performance wraps an aircraft type's performance constants and provides
// the rate-limited updates used to move the aircraft's flight state toward
// its targets. All of the Next* methods are pure: given the current value,
// the target and the timestep in seconds, they return the next value,
// which is never past the target. NaN inputs propagate to the result.
type Performance struct {
	av.AircraftPerformance
}

func MakePerformance(p av.AircraftPerformance) Performance {
	return Performance{AircraftPerformance: p}
}

// NextSpeed returns the next airspeed (knots).
func (p Performance) NextSpeed(cur, target, dt float32, onGround, maxBrakes bool) float32 {
	if cur < target {
		accel := p.Rate.Accelerate
		if onGround && cur < 40 {
			// Rough approximation of it being easier to accelerate on the
			// ground and when going slow.
			accel *= 2
		}
		return math.Approach(cur, target, accel*dt)
	}

	decel := p.Rate.Decelerate
	if onGround {
		decel *= p.Braking.Ground
		if maxBrakes {
			decel *= p.Braking.Max
		}
	}
	return math.Approach(cur, target, decel*dt)
}

// NextBank returns the next bank angle (degrees, positive right); the
// target is limited to the aircraft's maximum bank angle.
func (p Performance) NextBank(cur, target, dt float32) float32 {
	maxBank := p.Turn.MaxBankAngle
	if !math.IsNaN(target) {
		target = math.Clamp(target, -maxBank, maxBank)
	}
	return math.Approach(cur, target, p.Rate.Roll*dt)
}

// NextPitch returns the next pitch attitude (degrees).
func (p Performance) NextPitch(cur, target, dt float32) float32 {
	return math.Approach(cur, target, p.Rate.Pitch*dt)
}

// NextVerticalSpeed returns the next vertical speed (feet per minute); the
// target is limited to the aircraft's climb and descent rates.
func (p Performance) NextVerticalSpeed(cur, target, dt float32) float32 {
	if !math.IsNaN(target) {
		target = math.Clamp(target, -p.Rate.Descent, p.Rate.Climb)
	}
	return math.Approach(cur, target, p.Rate.VerticalAccel*dt)
}

// NextAltitude integrates the vertical speed vs (feet per minute) over dt,
// stopping at the target altitude if it would otherwise be passed.
func (p Performance) NextAltitude(cur, target, vs, dt float32) float32 {
	next := cur + vs*dt/60
	if math.IsNaN(next) || math.IsNaN(target) {
		return next + target
	}
	if cur == target {
		return target
	} else if cur < target && vs > 0 {
		return min(next, target)
	} else if cur > target && vs < 0 {
		return max(next, target)
	}
	return next
}

// TargetVerticalSpeed returns the vertical speed to command to close the
// given altitude error (target minus current, in feet); it tapers off as
// the target is approached.
func (p Performance) TargetVerticalSpeed(altError float32) float32 {
	return math.Clamp(altError*6, -p.Rate.Descent, p.Rate.Climb)
}

// TargetBank returns the bank angle to command for the given heading error
// (signed, positive right) and airspeed: a standard-rate turn, reduced as
// the heading error goes to zero so that the aircraft rolls out on the
// target heading.
func (p Performance) TargetBank(headingError, speed float32) float32 {
	if speed <= 0 || math.IsNaN(headingError) {
		return 0
	}
	// tan(bank) = V * omega / g
	v := speed * knotsToMetersPerSecond
	bank := math.Degrees(math.Atan(v * math.Radians(StandardTurnRate) / gravity))
	bank = min(bank, p.Turn.MaxBankAngle)

	if e := math.Abs(headingError); e < 10 {
		bank *= e / 10
	}
	return math.Sign(headingError) * bank
}

// TargetPitch returns the pitch attitude for the given vertical speed
// (feet per minute) at the given airspeed.
func TargetPitch(vs, speed float32) float32 {
	if speed <= 0 {
		return 0
	}
	return math.Degrees(math.Atan2(vs/60, speed*knotsToFeetPerSecond))
}
