package model

import "math"

// NodeKind tags the three node varieties in the topology graph.
type NodeKind string

const (
	KindSatellite     NodeKind = "satellite"
	KindGroundStation NodeKind = "ground_station"
	KindUser          NodeKind = "user"
)

// LoadTier is the discretised congestion level of a node. Tier 1 is
// lightly loaded, tier 3 heavily loaded. Each tier maps to a latency
// penalty that the routing cost model charges on entry to the node.
type LoadTier int

const (
	TierLight    LoadTier = 1
	TierModerate LoadTier = 2
	TierHeavy    LoadTier = 3
)

// Default per-tier latency penalties in milliseconds.
var defaultPenaltyMs = map[LoadTier]float64{
	TierLight:    10,
	TierModerate: 100,
	TierHeavy:    500,
}

// PenaltyMs returns the latency penalty for the tier, or 0 for an
// unknown tier.
func (t LoadTier) PenaltyMs() float64 {
	return defaultPenaltyMs[t]
}

// TierFromActiveUsers maps an active-user count onto a load tier:
// up to 500 users is light, up to 1500 moderate, beyond that heavy.
func TierFromActiveUsers(users float64) LoadTier {
	switch {
	case users <= 500:
		return TierLight
	case users < 1500:
		return TierModerate
	default:
		return TierHeavy
	}
}

// PlaneID is a coarse orbital-plane bucket: inclination quantised to
// 0.1 degrees and RAAN quantised to 10-degree buckets. Satellites that
// share a PlaneID are treated as members of the same ring.
type PlaneID struct {
	InclinationDeciDeg int
	RAANBucketDeg      int
}

// QuantizePlane buckets raw inclination and RAAN (degrees) into a PlaneID.
func QuantizePlane(inclinationDeg, raanDeg float64) PlaneID {
	return PlaneID{
		InclinationDeciDeg: int(math.Round(inclinationDeg * 10)),
		RAANBucketDeg:      int(math.Round(raanDeg/10)) * 10,
	}
}

// SatelliteState is the per-tick position-provider output for one
// satellite, consumed by the topology engine's Refresh.
type SatelliteState struct {
	ID            string
	Name          string
	Plane         PlaneID
	PhaseAngleDeg float64 // mean anomaly, used for intra-plane ordering
	Geodetic      Geodetic
	ECEF          Vec3
	// ActiveUsers drives the load tier for this tick. The engine derives
	// the tier deterministically from whatever value the caller supplies.
	ActiveUsers float64
}

// GroundStationDefinition registers a long-lived ground station.
type GroundStationDefinition struct {
	Name   string   `json:"name"`
	LatDeg float64  `json:"lat"`
	LonDeg float64  `json:"lon"`
	Tier   LoadTier `json:"tier,omitempty"`
}

// UserDefinition registers a long-lived user terminal. Users never
// contribute a node penalty when acting as a path source.
type UserDefinition struct {
	ID     string  `json:"id"`
	LatDeg float64 `json:"lat"`
	LonDeg float64 `json:"lon"`
}
