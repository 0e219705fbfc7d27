// nav/log.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package nav

// Available logging categories
const (
	NavLogState    = "state"
	NavLogWaypoint = "waypoint"
	NavLogAltitude = "altitude"
	NavLogSpeed    = "speed"
	NavLogHeading  = "heading"
	NavLogATC      = "atc"
	NavLogRoute    = "route"
	NavLogHold     = "hold"
)

var allNavLogCategories = []string{NavLogState, NavLogWaypoint, NavLogAltitude, NavLogSpeed,
	NavLogHeading, NavLogATC, NavLogRoute, NavLogHold}
