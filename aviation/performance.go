// aviation/performance.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package aviation

// AircraftPerformance holds the per-type constants used by the
// performance model. Rates are per second.
type AircraftPerformance struct {
	Name string `json:"name"`
	Rate struct {
		Accelerate    float32 `json:"accelerate"`     // kts / second
		Decelerate    float32 `json:"decelerate"`     // kts / second
		Climb         float32 `json:"climb"`          // ft / minute
		Descent       float32 `json:"descent"`        // ft / minute
		VerticalAccel float32 `json:"vertical_accel"` // (ft / minute) / second
		Roll          float32 `json:"roll"`           // degrees / second
		Pitch         float32 `json:"pitch"`          // degrees / second
	} `json:"rate"`
	Braking struct {
		Ground float32 `json:"ground"` // deceleration multiplier on the ground
		Max    float32 `json:"max"`    // additional multiplier for maximum braking
	} `json:"braking"`
	Speed struct {
		Taxi     float32 `json:"taxi"`
		Rotate   float32 `json:"rotate"`
		V2       float32 `json:"v2"`
		Climb    float32 `json:"climb"`
		Cruise   float32 `json:"cruise"`
		Approach float32 `json:"approach"`
		Landing  float32 `json:"landing"`
	} `json:"speed"`
	Turn struct {
		MaxBankAngle float32 `json:"max_bank"`
	} `json:"turn"`
}

// DefaultPerformance returns generic performance constants for the given
// class of traffic; it's used when a schedule names a performance class
// that isn't in the database.
func DefaultPerformance(class TrafficType) AircraftPerformance {
	var p AircraftPerformance
	switch class {
	case TrafficGeneral, TrafficUltralight:
		p.Name = "light"
		p.Rate.Accelerate, p.Rate.Decelerate = 2, 2
		p.Rate.Climb, p.Rate.Descent = 700, 800
		p.Speed.Taxi, p.Speed.Rotate, p.Speed.V2 = 10, 55, 65
		p.Speed.Climb, p.Speed.Cruise = 80, 110
		p.Speed.Approach, p.Speed.Landing = 80, 65
	case TrafficMilitary:
		p.Name = "jet_military"
		p.Rate.Accelerate, p.Rate.Decelerate = 6, 4
		p.Rate.Climb, p.Rate.Descent = 6000, 4000
		p.Speed.Taxi, p.Speed.Rotate, p.Speed.V2 = 20, 150, 170
		p.Speed.Climb, p.Speed.Cruise = 300, 450
		p.Speed.Approach, p.Speed.Landing = 170, 150
	default:
		p.Name = "jet_transport"
		p.Rate.Accelerate, p.Rate.Decelerate = 3, 2
		p.Rate.Climb, p.Rate.Descent = 3000, 2000
		p.Speed.Taxi, p.Speed.Rotate, p.Speed.V2 = 15, 140, 155
		p.Speed.Climb, p.Speed.Cruise = 250, 450
		p.Speed.Approach, p.Speed.Landing = 160, 135
	}
	p.Rate.VerticalAccel = 500
	p.Rate.Roll = 3
	p.Rate.Pitch = 1
	p.Braking.Ground, p.Braking.Max = 2, 2
	p.Turn.MaxBankAngle = 25
	return p
}

// fillDefaults replaces zero-valued fields with the defaults for the
// class.
func (p *AircraftPerformance) fillDefaults(class TrafficType) {
	d := DefaultPerformance(class)
	set := func(v *float32, def float32) {
		if *v == 0 {
			*v = def
		}
	}
	set(&p.Rate.Accelerate, d.Rate.Accelerate)
	set(&p.Rate.Decelerate, d.Rate.Decelerate)
	set(&p.Rate.Climb, d.Rate.Climb)
	set(&p.Rate.Descent, d.Rate.Descent)
	set(&p.Rate.VerticalAccel, d.Rate.VerticalAccel)
	set(&p.Rate.Roll, d.Rate.Roll)
	set(&p.Rate.Pitch, d.Rate.Pitch)
	set(&p.Braking.Ground, d.Braking.Ground)
	set(&p.Braking.Max, d.Braking.Max)
	set(&p.Speed.Taxi, d.Speed.Taxi)
	set(&p.Speed.Rotate, d.Speed.Rotate)
	set(&p.Speed.V2, d.Speed.V2)
	set(&p.Speed.Climb, d.Speed.Climb)
	set(&p.Speed.Cruise, d.Speed.Cruise)
	set(&p.Speed.Approach, d.Speed.Approach)
	set(&p.Speed.Landing, d.Speed.Landing)
	set(&p.Turn.MaxBankAngle, d.Turn.MaxBankAngle)
}
