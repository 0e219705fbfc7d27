// aviation/db.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package aviation

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/mmp/aitraffic/log"
	"github.com/mmp/aitraffic/util"

	"golang.org/x/sync/errgroup"
)

///////////////////////////////////////////////////////////////////////////
// StaticDatabase

// StaticDatabase holds the airport and aircraft performance data that
// doesn't change while the simulation runs.
type StaticDatabase struct {
	Airports    map[string]*Airport
	Performance map[string]AircraftPerformance
}

type databaseFile struct {
	Airports    map[string]*Airport            `json:"airports"`
	Performance map[string]AircraftPerformance `json:"performance"`
}

func NewStaticDatabase() *StaticDatabase {
	return &StaticDatabase{
		Airports:    make(map[string]*Airport),
		Performance: make(map[string]AircraftPerformance),
	}
}

// LoadDatabase reads the given airport database files (optionally zstd
// compressed), in parallel, and merges them; airports in later files
// replace those with the same ICAO code in earlier ones. Invalid records
// are logged and dropped.
func LoadDatabase(lg *log.Logger, now time.Time, paths ...string) (*StaticDatabase, error) {
	files := make([]databaseFile, len(paths))

	var eg errgroup.Group
	for i, path := range paths {
		eg.Go(func() error {
			b, err := util.ReadResource(path)
			if err != nil {
				return err
			}
			if err := json.Unmarshal(b, &files[i]); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	db := NewStaticDatabase()
	var e util.ErrorLogger
	for i, f := range files {
		e.Push(paths[i])
		for _, icao := range slices.Sorted(maps.Keys(f.Airports)) {
			db.AddAirport(icao, f.Airports[icao], now, &e)
		}
		for name, perf := range f.Performance {
			perf.Name = name
			db.Performance[name] = perf
		}
		e.Pop()
	}

	if e.HaveErrors() {
		e.LogErrors(lg)
	}
	lg.Infof("loaded %d airports, %d performance classes, %d errors", len(db.Airports), len(db.Performance),
		len(e.Errors()))

	return db, nil
}

// AddAirport validates the airport and adds it to the database, dropping
// invalid runways and parking positions. The airport itself is dropped
// if it has no usable runways.
func (db *StaticDatabase) AddAirport(icao string, ap *Airport, now time.Time, e *util.ErrorLogger) {
	icao = strings.ToUpper(icao)
	e.Push(icao)
	defer e.Pop()

	if ap == nil {
		e.ErrorString("no airport definition")
		return
	}
	ap.ICAO = icao
	if ap.Location.IsZero() {
		e.ErrorString("no location specified")
		return
	}

	ap.Runways = util.FilterSliceInPlace(ap.Runways, func(r Runway) bool {
		r.Id = TidyRunway(r.Id)
		if _, err := OppositeRunwayId(r.Id); err != nil {
			e.Error(err)
			return false
		}
		if r.Length <= 0 {
			e.ErrorString("runway %s: length must be positive", r.Id)
			return false
		}
		if r.Threshold.IsZero() {
			e.ErrorString("runway %s: no threshold specified", r.Id)
			return false
		}
		return true
	})
	for i := range ap.Runways {
		ap.Runways[i].Id = TidyRunway(ap.Runways[i].Id)
	}
	if len(ap.Runways) == 0 {
		e.ErrorString("no usable runways")
		return
	}

	seen := make(map[string]bool)
	ap.Parking = util.FilterSliceInPlace(ap.Parking, func(p Parking) bool {
		if p.Id == "" {
			e.ErrorString("parking position with no id")
			return false
		} else if seen[p.Id] {
			e.ErrorString("parking %s: repeated", p.Id)
			return false
		} else if p.Radius <= 0 {
			e.ErrorString("parking %s: radius must be positive", p.Id)
			return false
		}
		seen[p.Id] = true
		return true
	})

	if ap.MagVar != nil {
		ap.MagneticVariation = *ap.MagVar
	} else if mv, err := MagneticVariation(ap.Location, ap.Elevation, now); err != nil {
		e.Error(err)
	} else {
		ap.MagneticVariation = mv
	}

	if ap.RunwayUse != nil {
		if err := ap.RunwayUse.Validate(ap); err != nil {
			e.ErrorString("rwyuse: %v", err)
			ap.RunwayUse = nil
		}
	}

	db.Airports[icao] = ap
}

func (db *StaticDatabase) LookupAirport(icao string) (*Airport, bool) {
	ap, ok := db.Airports[strings.ToUpper(icao)]
	return ap, ok
}

// LookupPerformance returns the named performance class, falling back to
// the defaults for the traffic class; missing fields are filled in from
// the defaults as well.
func (db *StaticDatabase) LookupPerformance(name string, class TrafficType) AircraftPerformance {
	p, ok := db.Performance[name]
	if !ok {
		return DefaultPerformance(class)
	}
	p.fillDefaults(class)
	return p
}
