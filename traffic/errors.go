// traffic/errors.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package traffic

import "errors"

var (
	ErrInvalidFlightTimes = errors.New("Arrival time is not after departure time")
	ErrInvalidTime        = errors.New("Invalid timetable time")
	ErrNoAircraft         = errors.New("No aircraft in timetable")
	ErrNotInitialized     = errors.New("Traffic manager not initialized")
	ErrUnknownAirport     = errors.New("Unknown airport")
	ErrUnknownRequirement = errors.New("No flights for aircraft requirement")
)
