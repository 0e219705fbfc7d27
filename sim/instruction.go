// sim/instruction.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"fmt"
	"log/slog"
)

type InstructionType int

const (
	HoldPosition InstructionType = iota
	ResumeTaxi
	ClearedForTakeoff
	ClearedToLand
	AssignSpeed
	AssignHeading
	AssignAltitude
	CancelSpeed
	CancelOverrides
)

func (t InstructionType) String() string {
	return [...]string{"hold-position", "resume-taxi", "cleared-for-takeoff", "cleared-to-land",
		"speed", "heading", "altitude", "cancel-speed", "cancel-overrides"}[t]
}

// Instruction is something a controller tells an aircraft to do.
type Instruction struct {
	Type   InstructionType
	Value  float32
	Issuer ControllerKind
}

func (i Instruction) String() string {
	switch i.Type {
	case AssignSpeed, AssignHeading, AssignAltitude:
		return fmt.Sprintf("%s %.0f (%s)", i.Type, i.Value, i.Issuer)
	default:
		return fmt.Sprintf("%s (%s)", i.Type, i.Issuer)
	}
}

// Overrides are controller instructions that take precedence over the
// aircraft's own targets. They last until the next leg change or until
// they're canceled.
type Overrides struct {
	HoldPosition bool
	Speed        *float32
	Heading      *float32
	Altitude     *float32
}

func (o Overrides) Active() bool {
	return o.HoldPosition || o.Speed != nil || o.Heading != nil || o.Altitude != nil
}

// ProcessATC applies a controller instruction.
func (ac *Aircraft) ProcessATC(ins Instruction) {
	ac.lg.Debug("ATC instruction", slog.String("callsign", ac.Callsign), slog.String("instruction", ins.String()))

	switch ins.Type {
	case HoldPosition:
		ac.Override.HoldPosition = true
	case ResumeTaxi:
		ac.Override.HoldPosition = false
	case ClearedForTakeoff:
		ac.TakeoffStatus = TakeoffCleared
	case ClearedToLand:
		ac.ClearedToLand = true
	case AssignSpeed:
		v := ins.Value
		ac.Override.Speed = &v
	case AssignHeading:
		v := ins.Value
		ac.Override.Heading = &v
	case AssignAltitude:
		v := ins.Value
		ac.Override.Altitude = &v
	case CancelSpeed:
		ac.Override.Speed = nil
	case CancelOverrides:
		ac.Override = Overrides{}
	}
}
