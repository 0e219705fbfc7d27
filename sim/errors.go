// sim/errors.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"errors"
)

var (
	ErrInvalidPlanRequest = errors.New("Invalid flight plan request")
	ErrNoParking          = errors.New("No available parking")
	ErrNoRunway           = errors.New("No usable runway")
	ErrUnknownAircraft    = errors.New("Unknown aircraft")
	ErrUnknownAirport     = errors.New("Unknown airport")
)
