package orbit

import (
	"context"
	"fmt"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/leo-topology/core"
	"github.com/signalsfoundry/leo-topology/internal/logging"
	"github.com/signalsfoundry/leo-topology/model"
)

// BoundingBox restricts provider output to a geodetic region, longitude
// and latitude in degrees. The zero box means no restriction.
type BoundingBox struct {
	MinLatDeg, MaxLatDeg float64
	MinLonDeg, MaxLonDeg float64
}

// IsZero reports whether the box carries no restriction.
func (b BoundingBox) IsZero() bool {
	return b == BoundingBox{}
}

// Contains reports whether the point falls inside the box.
func (b BoundingBox) Contains(g model.Geodetic) bool {
	return g.LatDeg >= b.MinLatDeg && g.LatDeg <= b.MaxLatDeg &&
		g.LonDeg >= b.MinLonDeg && g.LonDeg <= b.MaxLonDeg
}

// LoadModel supplies the active-user count for one satellite at one
// instant, driving its congestion tier. Nil means unloaded.
type LoadModel func(id string, t time.Time) float64

// SGP4Provider propagates a TLE catalog and emits per-tick satellite
// states for the topology engine.
type SGP4Provider struct {
	log  logging.Logger
	box  BoundingBox
	load LoadModel

	sats []propagable
}

type propagable struct {
	tle TLE
	sat satellite.Satellite
}

// ProviderOption configures an SGP4Provider.
type ProviderOption func(*SGP4Provider)

// WithProviderLogger sets the provider logger.
func WithProviderLogger(l logging.Logger) ProviderOption {
	return func(p *SGP4Provider) {
		if l != nil {
			p.log = l
		}
	}
}

// WithBoundingBox drops satellites whose subpoint falls outside the box.
func WithBoundingBox(b BoundingBox) ProviderOption {
	return func(p *SGP4Provider) { p.box = b }
}

// WithLoadModel attaches an active-user model.
func WithLoadModel(m LoadModel) ProviderOption {
	return func(p *SGP4Provider) { p.load = m }
}

// NewSGP4Provider initialises the SGP4 model for every catalog entry.
// Entries the model rejects are skipped with a warning; an empty usable
// catalog is an error.
func NewSGP4Provider(ctx context.Context, entries []TLE, opts ...ProviderOption) (*SGP4Provider, error) {
	p := &SGP4Provider{log: logging.Noop()}
	for _, opt := range opts {
		opt(p)
	}

	for _, e := range entries {
		if err := ValidateLines(e.Line1, e.Line2); err != nil {
			p.log.Warn(ctx, "skipping satellite with invalid element set",
				logging.String("satellite", e.ID()), logging.String("error", err.Error()))
			continue
		}
		sat := satellite.TLEToSat(e.Line1, e.Line2, satellite.GravityWGS72)
		if sat.Error != 0 {
			p.log.Warn(ctx, "sgp4 init failed, skipping satellite",
				logging.String("satellite", e.ID()),
				logging.Int("code", int(sat.Error)),
				logging.String("error", sat.ErrorStr))
			continue
		}
		p.sats = append(p.sats, propagable{tle: e, sat: sat})
	}
	if len(p.sats) == 0 {
		return nil, fmt.Errorf("no usable satellites in catalog (%d entries)", len(entries))
	}
	return p, nil
}

// Count returns the number of satellites the provider propagates.
func (p *SGP4Provider) Count() int { return len(p.sats) }

// StatesAt propagates every satellite to t and returns topology-engine
// input states. Satellites whose propagation fails this tick are left
// out; the engine treats absence as a dropped node.
func (p *SGP4Provider) StatesAt(ctx context.Context, t time.Time) []model.SatelliteState {
	t = t.UTC()
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	jd := satellite.JDay(year, int(month), day, hour, min, sec)
	gmst := satellite.ThetaG_JD(jd)

	out := make([]model.SatelliteState, 0, len(p.sats))
	for _, s := range p.sats {
		posECI, _ := satellite.Propagate(s.sat, year, int(month), day, hour, min, sec)
		posECEF := satellite.ECIToECEF(posECI, gmst)

		ecef := model.Vec3{X: posECEF.X, Y: posECEF.Y, Z: posECEF.Z}
		if !plausiblePosition(ecef) {
			p.log.Warn(ctx, "propagation produced implausible position, skipping",
				logging.String("satellite", s.tle.ID()),
				logging.Float64("magnitude_km", ecef.Norm()))
			continue
		}

		geo := core.ECEFToGeodetic(ecef)
		if !p.box.IsZero() && !p.box.Contains(geo) {
			continue
		}

		var users float64
		if p.load != nil {
			users = p.load(s.tle.ID(), t)
		}
		out = append(out, model.SatelliteState{
			ID:            s.tle.ID(),
			Name:          s.tle.Name,
			Plane:         model.QuantizePlane(s.tle.InclinationDeg, s.tle.RAANDeg),
			PhaseAngleDeg: s.tle.MeanAnomalyDeg,
			Geodetic:      geo,
			ECEF:          ecef,
			ActiveUsers:   users,
		})
	}
	return out
}

// plausiblePosition rejects NaN/Inf output and magnitudes outside the
// band a bound orbit can occupy.
func plausiblePosition(v model.Vec3) bool {
	if !v.IsValid() {
		return false
	}
	mag := v.Norm()
	return mag > 6200 && mag < 50000
}
