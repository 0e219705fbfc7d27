// aviation/aviation_test.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package aviation

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mmp/aitraffic/log"
	"github.com/mmp/aitraffic/math"
	"github.com/mmp/aitraffic/util"
)

func makeTestAirport() *Airport {
	return &Airport{
		ICAO:      "KTST",
		Location:  math.Point2LL{-100, 40},
		Elevation: 500,
		Runways: []Runway{
			{Id: "9", Heading: 90, Threshold: math.Point2LL{-100.02, 40}, Length: 8000},
			{Id: "27", Heading: 270, Threshold: math.Point2LL{-99.98, 40}, Length: 8000},
			{Id: "18", Heading: 180, Threshold: math.Point2LL{-100, 40.02}, Length: 6000},
			{Id: "36", Heading: 360, Threshold: math.Point2LL{-100, 39.98}, Length: 6000},
		},
	}
}

func TestOppositeRunwayId(t *testing.T) {
	for _, tc := range []struct{ id, opp string }{
		{"28L", "10R"}, {"10R", "28L"}, {"4", "22"}, {"36", "18"}, {"18", "36"}, {"1C", "19C"},
	} {
		if o, err := OppositeRunwayId(tc.id); err != nil {
			t.Errorf("%s: %v", tc.id, err)
		} else if o != tc.opp {
			t.Errorf("%s: got %s, expected %s", tc.id, o, tc.opp)
		}
	}
	for _, bad := range []string{"", "L", "40", "28X"} {
		if _, err := OppositeRunwayId(bad); err == nil {
			t.Errorf("%q: expected error", bad)
		}
	}
}

func TestSelectBestRunway(t *testing.T) {
	ap := makeTestAirport()
	for _, tc := range []struct {
		wind float32
		rwy  string
	}{
		{270, "27"}, {260, "27"}, {95, "9"}, {190, "18"}, {10, "36"},
	} {
		if rwy, ok := ap.SelectBestRunway(tc.wind); !ok {
			t.Errorf("wind %f: no runway", tc.wind)
		} else if rwy.Id != tc.rwy {
			t.Errorf("wind %f: got %s, expected %s", tc.wind, rwy.Id, tc.rwy)
		}
	}

	// Only one end in the data and the wind is from behind it: the
	// opposite end can't be returned since it's unknown.
	ap.Runways = ap.Runways[:1]
	if rwy, ok := ap.SelectBestRunway(270); !ok || rwy.Id != "9" {
		t.Errorf("expected fallback to runway 9, got %+v", rwy)
	}
}

func TestRunwayEnd(t *testing.T) {
	ap := makeTestAirport()
	rwy, _ := ap.LookupRunway("9")
	end := ap.RunwayEnd(rwy)
	if d := math.NMDistance2LL(rwy.Threshold, end); math.Abs(d-8000*math.FeetToNauticalMiles) > 0.02 {
		t.Errorf("runway length %f nm", d)
	}
	if end[0] <= rwy.Threshold[0] {
		t.Errorf("runway 9 should end east of its threshold")
	}
}

const testRunwayUse = `{
  "west": {"classes": ["commercial"], "takeoff": ["27"], "landing": ["27"], "max_crosswind": 15, "max_tailwind": 5},
  "north": {"takeoff": ["36"], "landing": ["36"], "max_crosswind": 20, "max_tailwind": 5},
  "east": {"takeoff": ["9"], "landing": ["9"], "max_crosswind": 20, "max_tailwind": 10}
}`

func TestRunwayUse(t *testing.T) {
	ap := makeTestAirport()
	var u RunwayUse
	if err := json.Unmarshal([]byte(testRunwayUse), &u); err != nil {
		t.Fatal(err)
	}
	if len(u.Groups) != 3 || u.Groups[0].Name != "west" || u.Groups[1].Name != "north" || u.Groups[2].Name != "east" {
		t.Fatalf("groups not in file order: %+v", u.Groups)
	}
	if err := u.Validate(ap); err != nil {
		t.Fatal(err)
	}

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for _, tc := range []struct {
		name      string
		class     TrafficType
		windDir   float32
		windSpeed float32
		rwy       string
	}{
		{"calm uses first group", TrafficCommercial, 0, 0, "27"},
		{"GA skips commercial-only group", TrafficGeneral, 0, 0, "36"},
		{"tailwind on 27 moves to east", TrafficCommercial, 90, 25, "9"},
		{"crosswind on 27 moves to north", TrafficCommercial, 350, 20, "36"},
	} {
		rwy, _, ok := u.Select(ap, tc.class, RunwayTakeoff, tc.windDir, tc.windSpeed, now)
		if !ok {
			t.Errorf("%s: no runway selected", tc.name)
		} else if rwy != tc.rwy {
			t.Errorf("%s: got %s, expected %s", tc.name, rwy, tc.rwy)
		}
	}

	// Strong wind from the southwest exceeds every group's limits.
	if rwy, _, ok := u.Select(ap, TrafficCommercial, RunwayLanding, 225, 40, now); ok {
		t.Errorf("expected no selection, got %s", rwy)
	}

	// Order survives a round trip.
	b, err := json.Marshal(u)
	if err != nil {
		t.Fatal(err)
	}
	var u2 RunwayUse
	if err := json.Unmarshal(b, &u2); err != nil {
		t.Fatal(err)
	}
	for i := range u.Groups {
		if u2.Groups[i].Name != u.Groups[i].Name {
			t.Errorf("group %d: got %s, expected %s", i, u2.Groups[i].Name, u.Groups[i].Name)
		}
	}
}

func TestRunwayUseTimeWindow(t *testing.T) {
	g := RunwayUseGroup{Start: "22:00", End: "06:00"}
	for _, tc := range []struct {
		hour   int
		active bool
	}{{23, true}, {2, true}, {6, false}, {12, false}} {
		now := time.Date(2025, 6, 1, tc.hour, 0, 0, 0, time.UTC)
		if g.activeAt(now) != tc.active {
			t.Errorf("hour %d: expected active=%v", tc.hour, tc.active)
		}
	}
}

func TestParseRepeatPeriod(t *testing.T) {
	for _, tc := range []struct {
		s string
		r RepeatPeriod
	}{
		{"WEEK", RepeatWeekly}, {"24Hr", RepeatDaily}, {"1Hr", RepeatHourly}, {"", RepeatOnce}, {"once", RepeatOnce},
	} {
		if r, err := ParseRepeatPeriod(tc.s); err != nil {
			t.Errorf("%s: %v", tc.s, err)
		} else if r != tc.r {
			t.Errorf("%s: got %s, expected %s", tc.s, r, tc.r)
		}
	}
	if _, err := ParseRepeatPeriod("fortnight"); err == nil {
		t.Errorf("expected error")
	}
}

func TestParkingFits(t *testing.T) {
	gate := Parking{Id: "A1", Radius: 30, Type: "gate", Airlines: []string{"UAL"}}
	ga := Parking{Id: "G1", Radius: 10, Type: "ga"}

	if !gate.Fits(25, TrafficCommercial, "UAL") {
		t.Errorf("gate should fit UAL")
	}
	if gate.Fits(25, TrafficCommercial, "DAL") {
		t.Errorf("gate is UAL only")
	}
	if gate.Fits(35, TrafficCommercial, "UAL") {
		t.Errorf("gate is too small")
	}
	if ga.Fits(8, TrafficCommercial, "") || !ga.Fits(8, TrafficGeneral, "") {
		t.Errorf("ga parking is for general aviation")
	}
}

func TestLoadDatabase(t *testing.T) {
	dir := t.TempDir()
	a := `{"airports": {"ktst": {"name": "Test", "location": [-100, 40], "elevation": 500, "magvar": 0,
	        "runways": [{"id": "9", "heading": 90, "threshold": [-100.02, 40], "length": 8000},
	                    {"id": "27", "heading": 270, "threshold": [-99.98, 40], "length": 0}],
	        "parking": [{"id": "A1", "location": [-100, 40.01], "radius": 30, "type": "gate"},
	                    {"id": "A1", "location": [-100, 40.01], "radius": 30, "type": "gate"}]},
	      "knone": {"location": [-101, 41], "runways": []}},
	      "performance": {"jet_transport": {"rate": {"accelerate": 4}}}}`
	b := `{"airports": {"KOTH": {"location": "N41.00.00.000,W099.00.00.000", "magvar": 5,
	        "runways": [{"id": "36", "heading": 360, "threshold": [-99, 40.99], "length": 5000}]}}}`

	if err := os.WriteFile(filepath.Join(dir, "a.json"), []byte(a), 0o600); err != nil {
		t.Fatal(err)
	}
	zb, err := util.CompressZstd([]byte(b))
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b.json.zst"), zb, 0o600); err != nil {
		t.Fatal(err)
	}

	lg := log.NewWriter(os.Stderr, "error")
	db, err := LoadDatabase(lg, time.Now(), filepath.Join(dir, "a.json"), filepath.Join(dir, "b.json.zst"))
	if err != nil {
		t.Fatal(err)
	}

	ap, ok := db.LookupAirport("KTST")
	if !ok {
		t.Fatalf("KTST not loaded")
	}
	if len(ap.Runways) != 1 || ap.Runways[0].Id != "9" {
		t.Errorf("expected zero-length runway to be dropped: %+v", ap.Runways)
	}
	if len(ap.Parking) != 1 {
		t.Errorf("expected duplicate parking to be dropped: %+v", ap.Parking)
	}
	if _, ok := db.LookupAirport("KNONE"); ok {
		t.Errorf("airport without runways should be dropped")
	}
	if oth, ok := db.LookupAirport("KOTH"); !ok {
		t.Errorf("KOTH not loaded from compressed file")
	} else if oth.MagneticVariation != 5 {
		t.Errorf("KOTH magvar %f", oth.MagneticVariation)
	}

	p := db.LookupPerformance("jet_transport", TrafficCommercial)
	if p.Rate.Accelerate != 4 || p.Rate.Decelerate == 0 {
		t.Errorf("performance not merged with defaults: %+v", p.Rate)
	}
	if p := db.LookupPerformance("unknown", TrafficGeneral); p.Name != "light" {
		t.Errorf("expected light defaults, got %s", p.Name)
	}
}
