package model

import "math"

// Geodetic is a position on (or above) the Earth's surface.
// Latitude and longitude are in degrees, altitude in kilometres.
// Ground stations and users sit at altitude 0.
type Geodetic struct {
	LatDeg float64 `json:"lat"`
	LonDeg float64 `json:"lon"`
	AltKm  float64 `json:"alt_km,omitempty"`
}

// Vec3 is an Earth-centred Cartesian position in kilometres.
type Vec3 struct {
	X, Y, Z float64
}

// Sub returns v - other.
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Dot returns the dot product of two vectors.
func (v Vec3) Dot(other Vec3) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// DistanceTo returns the straight-line distance between two points.
func (v Vec3) DistanceTo(other Vec3) float64 {
	return v.Sub(other).Norm()
}

// IsValid reports whether all components are finite.
func (v Vec3) IsValid() bool {
	for _, c := range []float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
