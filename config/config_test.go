// config/config_test.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func TestClean(t *testing.T) {
	for _, test := range [][2]string{
		{"sim/traffic-manager/enabled", "/sim/traffic-manager/enabled"},
		{"/sim//traffic-manager/", "/sim/traffic-manager"},
		{"", "/"},
		{"/", "/"},
	} {
		if got := Clean(test[0]); got != test[1] {
			t.Errorf("Clean(%q) = %q, expected %q", test[0], got, test[1])
		}
	}
}

func TestListeners(t *testing.T) {
	s := NewStore()
	var exact, subtree, root, other []string
	s.AddListener(PathTrafficEnabled, func(p string, v any) { exact = append(exact, p) })
	s.AddListener("/sim/traffic-manager", func(p string, v any) { subtree = append(subtree, p) })
	s.AddListener("/", func(p string, v any) { root = append(root, p) })
	s.AddListener("/sim/traffic", func(p string, v any) { other = append(other, p) })

	s.Set(PathTrafficEnabled, false)
	s.Set("sim/traffic-manager/stuck-limit", 100)
	s.Set(PathWindSpeed, 12)

	if !slices.Equal(exact, []string{PathTrafficEnabled}) {
		t.Errorf("exact listener saw %v", exact)
	}
	if !slices.Equal(subtree, []string{PathTrafficEnabled, PathStuckLimit}) {
		t.Errorf("subtree listener saw %v", subtree)
	}
	if len(root) != 3 {
		t.Errorf("root listener saw %v", root)
	}
	if len(other) != 0 {
		t.Errorf("listener on a path prefix that isn't a parent saw %v", other)
	}
	if s.GetBool(PathTrafficEnabled, true) {
		t.Error("value not set before listeners")
	}
}

func TestGetters(t *testing.T) {
	s := NewStore()
	s.Set("/a/int", int64(12))
	s.Set("/a/float", 2.5)
	s.Set("/a/string", "7.5")
	s.Set("/a/bool", "true")
	s.Set("/a/dur", "90s")
	s.Set("/a/secs", 30)
	s.Set("/a/list", []any{"KSFO.json", " KLAX.json"})
	s.Set("/a/csv", "a.json, b.json,")

	if v := s.GetInt("/a/int", 0); v != 12 {
		t.Errorf("int %d", v)
	}
	if v := s.GetFloat("/a/float", 0); v != 2.5 {
		t.Errorf("float %f", v)
	}
	if v := s.GetFloat("/a/string", 0); v != 7.5 {
		t.Errorf("string float %f", v)
	}
	if !s.GetBool("/a/bool", false) {
		t.Error("bool")
	}
	if v := s.GetDuration("/a/dur", 0); v != 90*time.Second {
		t.Errorf("duration %s", v)
	}
	if v := s.GetDuration("/a/secs", 0); v != 30*time.Second {
		t.Errorf("seconds %s", v)
	}
	if v := s.GetDuration("/missing", time.Minute); v != time.Minute {
		t.Errorf("default duration %s", v)
	}
	if v := s.GetStrings("/a/list"); !slices.Equal(v, []string{"KSFO.json", "KLAX.json"}) {
		t.Errorf("list %v", v)
	}
	if v := s.GetStrings("/a/csv"); !slices.Equal(v, []string{"a.json", "b.json"}) {
		t.Errorf("csv %v", v)
	}
	if v := s.GetString("/a/int", ""); v != "12" {
		t.Errorf("string of int %q", v)
	}
}

const testYAML = `
sim:
  traffic-manager:
    enabled: false
    activation-radius-nm: 300
    tick-budget: 2ms
    departure-separation: 60
    timetables: [a.json, b.json]
  rand:
    seed: 42
environment:
  wind-from-heading-deg: 250
  wind-speed-kt: 8
position:
  latitude-deg: 37.6
  longitude-deg: -122.4
`

const testTOML = `
[sim.traffic-manager]
enabled = false
activation-radius-nm = 300
tick-budget = "2ms"
departure-separation = 60
timetables = ["a.json", "b.json"]

[sim.rand]
seed = 42

[environment]
wind-from-heading-deg = 250
wind-speed-kt = 8

[position]
latitude-deg = 37.6
longitude-deg = -122.4
`

func TestLoadFormats(t *testing.T) {
	dir := t.TempDir()
	load := func(name, contents string) *Store {
		t.Helper()
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
			t.Fatal(err)
		}
		s, err := Load(path)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		return s
	}

	ys, ts := load("config.yaml", testYAML), load("config.toml", testTOML)
	if !slices.Equal(ys.Paths(), ts.Paths()) {
		t.Errorf("YAML paths %v differ from TOML paths %v", ys.Paths(), ts.Paths())
	}

	for _, s := range []*Store{ys, ts} {
		st := FromStore(s)
		if st.Traffic.Enabled {
			t.Error("traffic enabled")
		}
		if st.Traffic.ActivationRadius != 300 {
			t.Errorf("activation radius %f", st.Traffic.ActivationRadius)
		}
		if st.Traffic.TickBudget != 2*time.Millisecond {
			t.Errorf("tick budget %s", st.Traffic.TickBudget)
		}
		if st.Sim.DepartureSeparation != time.Minute {
			t.Errorf("departure separation %s", st.Sim.DepartureSeparation)
		}
		if st.Seed != 42 {
			t.Errorf("seed %d", st.Seed)
		}
		if st.Wind.Direction != 250 || st.Wind.Speed != 8 {
			t.Errorf("wind %+v", st.Wind)
		}
		if st.User.Position[0] != -122.4 || st.User.Position[1] != 37.6 {
			t.Errorf("user position %v", st.User.Position)
		}
		if !slices.Equal(st.Timetables, []string{"a.json", "b.json"}) {
			t.Errorf("timetables %v", st.Timetables)
		}
		// Unset values get defaults.
		if st.Traffic.RetireRadius != 550 || st.Sim.StuckLimit == 0 {
			t.Errorf("missing defaults: %+v", st)
		}
	}

	path := filepath.Join(dir, "config.ini")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestWatch(t *testing.T) {
	s := NewStore()
	var got []Settings
	Watch(s, func(st Settings) { got = append(got, st) })

	s.Set(PathActivationRadius, 123)
	s.Set(PathTrafficEnabled, false)
	if len(got) != 2 {
		t.Fatalf("%d updates, expected 2", len(got))
	}
	if got[0].Traffic.ActivationRadius != 123 || !got[0].Traffic.Enabled {
		t.Errorf("first update %+v", got[0].Traffic)
	}
	if got[1].Traffic.Enabled {
		t.Error("second update still enabled")
	}
}
