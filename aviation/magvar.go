// aviation/magvar.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package aviation

import (
	"time"

	"github.com/mmp/aitraffic/math"

	"github.com/westphae/geomag/pkg/egm96"
	"github.com/westphae/geomag/pkg/wmm"
)

// MagneticVariation returns the magnetic declination (degrees, positive
// east) at the given location and elevation (feet) from the world magnetic
// model.
func MagneticVariation(p math.Point2LL, elevation int, date time.Time) (float32, error) {
	loc := egm96.NewLocationGeodetic(float64(p.Latitude()), float64(p.Longitude()),
		float64(elevation)*math.FeetToMeters)

	mag, err := wmm.CalculateWMMMagneticField(loc, date)
	if err != nil {
		return 0, err
	}
	return float32(mag.D()), nil
}
