//go:build navlog

// nav/log_debug.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package nav

import (
	"fmt"
	"strings"
	"time"
)

// Navigation logging configuration
var (
	navlogEnabled    bool
	navlogCategories map[string]bool
	navlogCallsign   string // filter to only log this callsign (empty = log all)
)

// InitNavLog initializes the navigation logging system
func InitNavLog(enabled bool, categories string, callsign string) {
	navlogEnabled = enabled
	navlogCategories = make(map[string]bool)
	navlogCallsign = strings.TrimSpace(callsign)

	if !enabled {
		return
	}

	if categories == "" || categories == "all" {
		for _, cat := range allNavLogCategories {
			navlogCategories[cat] = true
		}
	} else {
		for _, cat := range strings.Split(categories, ",") {
			navlogCategories[strings.TrimSpace(cat)] = true
		}
	}
}

// NavLog logs a message with timestamp, callsign, and category
func NavLog(callsign string, simTime time.Time, category string, format string, args ...any) {
	if !navlogEnabled || !navlogCategories[category] {
		return
	}
	if navlogCallsign != "" && navlogCallsign != callsign {
		return
	}

	// Format: [HH:MM:SS] [callsign] [category] message
	timeStr := simTime.Format("15:04:05")
	message := fmt.Sprintf(format, args...)
	fmt.Printf("[%s] [%s] [%s] %s\n", timeStr, callsign, category, message)
}

// NavLogEnabled returns whether navigation logging is enabled for a given category
func NavLogEnabled(category string) bool {
	return navlogEnabled && navlogCategories[category]
}

// LogRoute logs the waypoints of an aircraft's flight plan
func LogRoute(callsign string, simTime time.Time, waypoints []string) {
	if !navlogEnabled || !navlogCategories[NavLogRoute] {
		return
	}
	if navlogCallsign != "" && navlogCallsign != callsign {
		return
	}

	route := strings.Join(waypoints, " ")
	if route == "" {
		route = "(no route)"
	}

	timeStr := simTime.Format("15:04:05")
	fmt.Printf("[%s] [%s] [%s] route: %s\n", timeStr, callsign, NavLogRoute, route)
}
