package core

import (
	"math"

	"github.com/signalsfoundry/leo-topology/model"
)

// EarthRadiusKm is the mean Earth radius used for all geometry in the
// topology layer (kilometres). The same spherical model is used when
// converting geodetic coordinates, so LOS checks and node positions
// share one reference frame.
const EarthRadiusKm = 6371.0

// SpeedOfLightKmPerMs converts link distance to propagation delay.
const SpeedOfLightKmPerMs = 299.792458

// GeodeticToECEF converts a geodetic position to Earth-centred
// Cartesian coordinates on the spherical Earth model.
func GeodeticToECEF(g model.Geodetic) model.Vec3 {
	lat := g.LatDeg * math.Pi / 180
	lon := g.LonDeg * math.Pi / 180
	r := EarthRadiusKm + g.AltKm
	return model.Vec3{
		X: r * math.Cos(lat) * math.Cos(lon),
		Y: r * math.Cos(lat) * math.Sin(lon),
		Z: r * math.Sin(lat),
	}
}

// ECEFToGeodetic is the inverse conversion on the same spherical model.
func ECEFToGeodetic(v model.Vec3) model.Geodetic {
	r := v.Norm()
	if r == 0 {
		return model.Geodetic{AltKm: -EarthRadiusKm}
	}
	return model.Geodetic{
		LatDeg: math.Asin(v.Z/r) * 180 / math.Pi,
		LonDeg: math.Atan2(v.Y, v.X) * 180 / math.Pi,
		AltKm:  r - EarthRadiusKm,
	}
}

// GreatCircleKm returns the haversine great-circle distance between two
// geodetic points, ignoring altitude. Used as the coarse pre-filter for
// nearest-ground-station queries.
func GreatCircleKm(a, b model.Geodetic) float64 {
	latA := a.LatDeg * math.Pi / 180
	latB := b.LatDeg * math.Pi / 180
	dLat := latB - latA
	dLon := (b.LonDeg - a.LonDeg) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(latA)*math.Cos(latB)*sinLon*sinLon
	return 2 * EarthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// satelliteLineOfSight checks whether the straight segment between two
// satellite positions clears the Earth. The closest point of the
// (clamped) segment to the Earth's centre must stay outside the Earth
// sphere plus an atmospheric buffer. The degenerate case of identical
// positions is reported as not visible.
//
// All positions are ECEF in kilometres at the same instant.
func satelliteLineOfSight(p1, p2 model.Vec3, radiusKm, bufferKm float64) bool {
	v := p2.Sub(p1)
	length := v.Norm()
	if length == 0 {
		return false
	}

	unit := model.Vec3{X: v.X / length, Y: v.Y / length, Z: v.Z / length}

	// Closest approach to the origin along p1 + t*unit, clamped to the
	// segment endpoints.
	t := -p1.Dot(unit)
	if t < 0 {
		t = 0
	} else if t > length {
		t = length
	}

	closest := model.Vec3{
		X: p1.X + unit.X*t,
		Y: p1.Y + unit.Y*t,
		Z: p1.Z + unit.Z*t,
	}
	return closest.Norm() > radiusKm+bufferKm
}

// ElevationDegrees returns the elevation angle of the target as seen
// from the observer, in degrees. 0° is the geometric horizon, 90° is
// directly overhead. Degenerate inputs resolve to the conservative
// below-horizon value.
func ElevationDegrees(observer, target model.Vec3) float64 {
	v := target.Sub(observer)
	vNorm := v.Norm()
	r := observer.Norm()
	if vNorm == 0 || r == 0 {
		return -90
	}

	zenith := model.Vec3{X: observer.X / r, Y: observer.Y / r, Z: observer.Z / r}

	cosGamma := v.Dot(zenith) / vNorm
	if cosGamma > 1 {
		cosGamma = 1
	} else if cosGamma < -1 {
		cosGamma = -1
	}
	gammaDeg := math.Acos(cosGamma) * 180 / math.Pi

	return 90 - gammaDeg
}

// groundLineOfSight reports whether the satellite is visible from the
// ground point (elevation above minElevationDeg) and the slant distance
// between them in kilometres.
func groundLineOfSight(ground, sat model.Vec3, minElevationDeg float64) (bool, float64) {
	dist := ground.DistanceTo(sat)
	if dist == 0 {
		return false, 0
	}
	return ElevationDegrees(ground, sat) > minElevationDeg, dist
}
