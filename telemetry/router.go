// telemetry/router.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package telemetry

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/mmp/aitraffic/log"
	"github.com/mmp/aitraffic/sim"
	"github.com/mmp/aitraffic/traffic"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// SnapshotSource provides the traffic state; *traffic.Manager
// implements it.
type SnapshotSource interface {
	Snapshot() traffic.Snapshot
}

type handlers struct {
	src SnapshotSource
	hub *Hub
	lg  *log.Logger
}

// NewRouter returns the telemetry HTTP API.
func NewRouter(src SnapshotSource, hub *Hub, lg *log.Logger) http.Handler {
	h := &handlers{src: src, hub: hub, lg: lg}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", h.health)
	r.Get("/aircraft", h.aircraft)
	r.Get("/aircraft/{id}", h.oneAircraft)
	r.Get("/schedules", h.schedules)
	r.Get("/airports", h.airports)
	r.Get("/ws", hub.ServeWS)
	return r
}

func (h *handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.lg.Warn("unable to encode response", slog.Any("error", err))
	}
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"clients":  h.hub.Clients(),
		"aircraft": len(h.hub.Latest()),
		"dropped":  h.hub.Dropped(),
	})
}

func (h *handlers) aircraft(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.src.Snapshot().Aircraft)
}

func (h *handlers) oneAircraft(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid aircraft id"})
		return
	}
	for _, ac := range h.src.Snapshot().Aircraft {
		if ac.ID == sim.AircraftID(id) {
			h.writeJSON(w, http.StatusOK, ac)
			return
		}
	}
	h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "no such aircraft"})
}

func (h *handlers) schedules(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.src.Snapshot().Schedules)
}

func (h *handlers) airports(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.src.Snapshot().Airports)
}
