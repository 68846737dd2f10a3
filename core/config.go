package core

// AttachmentPolicy selects how ground stations and users attach to
// visible satellites during a tick.
type AttachmentPolicy int

const (
	// AttachAll connects a ground node to every visible satellite in
	// range, limited by each satellite's remaining ground-link capacity.
	AttachAll AttachmentPolicy = iota
	// AttachBest connects a ground node to the single nearest visible
	// satellite with spare capacity.
	AttachBest
)

// Config carries the tunable policy of the topology engine. The zero
// value is not usable; start from DefaultConfig.
type Config struct {
	// MaxSatLinks caps a satellite's inter-satellite edges, intra-plane
	// ring edges and cross-plane edges combined.
	MaxSatLinks int
	// MaxGroundLinks caps a satellite's ground/user edges.
	MaxGroundLinks int

	// MaxISLRangeKm bounds cross-plane inter-satellite candidates.
	MaxISLRangeKm float64
	// MaxGroundRangeKm bounds which satellites are candidates for a
	// ground station or user at all.
	MaxGroundRangeKm float64

	// LOSBufferKm pads the Earth radius in satellite-to-satellite
	// occlusion checks, accounting for the atmosphere.
	LOSBufferKm float64
	// MinElevationDeg is the horizon mask for satellite-ground links.
	MinElevationDeg float64

	// SpeedKmPerMs scales edge distance to propagation delay. Exposed
	// so alternative weight conventions stay configuration, not policy.
	SpeedKmPerMs float64

	// Attachment selects the ground-attachment behaviour.
	Attachment AttachmentPolicy

	// NearestGSPrefilterKm is the great-circle bound applied to
	// candidate ground stations before the weighted search in
	// NearestGroundStation. Zero disables the pre-filter.
	NearestGSPrefilterKm float64
}

// DefaultConfig mirrors a Starlink-like shell: two fixed ring links, one
// spare cross-plane link, one ground link per satellite.
func DefaultConfig() Config {
	return Config{
		MaxSatLinks:          3,
		MaxGroundLinks:       1,
		MaxISLRangeKm:        2000,
		MaxGroundRangeKm:     1000,
		LOSBufferKm:          100,
		MinElevationDeg:      0,
		SpeedKmPerMs:         SpeedOfLightKmPerMs,
		Attachment:           AttachAll,
		NearestGSPrefilterKm: 1000,
	}
}

// withDefaults fills unset numeric fields so a partially specified
// config stays usable.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxSatLinks <= 0 {
		c.MaxSatLinks = d.MaxSatLinks
	}
	if c.MaxGroundLinks <= 0 {
		c.MaxGroundLinks = d.MaxGroundLinks
	}
	if c.MaxISLRangeKm <= 0 {
		c.MaxISLRangeKm = d.MaxISLRangeKm
	}
	if c.MaxGroundRangeKm <= 0 {
		c.MaxGroundRangeKm = d.MaxGroundRangeKm
	}
	if c.LOSBufferKm < 0 {
		c.LOSBufferKm = d.LOSBufferKm
	}
	if c.SpeedKmPerMs <= 0 {
		c.SpeedKmPerMs = d.SpeedKmPerMs
	}
	return c
}
