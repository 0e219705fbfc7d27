// sim/elevation.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	av "github.com/mmp/aitraffic/aviation"
	"github.com/mmp/aitraffic/math"
	"github.com/mmp/aitraffic/util"

	lru "github.com/hashicorp/golang-lru/v2"
)

// AirportElevation approximates terrain with the field elevation of the
// nearest airport within Radius nm.
type AirportElevation struct {
	Airports []*av.Airport
	Radius   float32
}

func NewAirportElevation(db *av.StaticDatabase, radius float32) *AirportElevation {
	e := &AirportElevation{Radius: radius}
	for _, icao := range util.SortedMapKeys(db.Airports) {
		e.Airports = append(e.Airports, db.Airports[icao])
	}
	return e
}

func (e *AirportElevation) Elevation(p math.Point2LL) (float32, bool) {
	best, bestDist := -1, e.Radius
	for i, ap := range e.Airports {
		if d := math.NMDistance2LL(p, ap.Location); d <= bestDist {
			best, bestDist = i, d
		}
	}
	if best == -1 {
		return 0, false
	}
	return float32(e.Airports[best].Elevation), true
}

type elevationKey [2]int32

type elevationSample struct {
	elevation float32
	ok        bool
}

// CachedElevation memoizes another ElevationProvider's results, keyed by
// position quantized to roughly 10m.
type CachedElevation struct {
	provider     ElevationProvider
	cache        *lru.Cache[elevationKey, elevationSample]
	Hits, Misses int
}

func NewCachedElevation(p ElevationProvider, size int) (*CachedElevation, error) {
	c, err := lru.New[elevationKey, elevationSample](size)
	if err != nil {
		return nil, err
	}
	return &CachedElevation{provider: p, cache: c}, nil
}

func (c *CachedElevation) Elevation(p math.Point2LL) (float32, bool) {
	key := elevationKey{int32(p[0] * 1e4), int32(p[1] * 1e4)}
	if s, ok := c.cache.Get(key); ok {
		c.Hits++
		return s.elevation, s.ok
	}

	c.Misses++
	e, ok := c.provider.Elevation(p)
	c.cache.Add(key, elevationSample{elevation: e, ok: ok})
	return e, ok
}
