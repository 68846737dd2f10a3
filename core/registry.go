package core

import (
	"fmt"
	"sort"
	"sync"

	"github.com/signalsfoundry/leo-topology/model"
)

// Registry holds the three node kinds and their per-tick connection
// state. Ground stations and users are long-lived; satellite nodes are
// discarded and re-created on every tick from position-provider output.
//
// The registry is concurrency-safe, but the topology builder is the
// only writer during a rebuild (serialised by the engine).
type Registry struct {
	mu sync.RWMutex

	cfg Config

	groundStations map[string]*Node
	users          map[string]*Node
	satellites     map[string]*Node
}

// NewRegistry creates an empty registry with the given capacity policy.
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cfg:            cfg.withDefaults(),
		groundStations: make(map[string]*Node),
		users:          make(map[string]*Node),
		satellites:     make(map[string]*Node),
	}
}

// RegisterGroundStations loads ground stations into the registry. The
// operation is idempotent: re-registering a name replaces its entry.
func (r *Registry) RegisterGroundStations(defs []model.GroundStationDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range defs {
		if d.Name == "" {
			return fmt.Errorf("%w: ground station with empty name", ErrBadDefinition)
		}
		tier := d.Tier
		if tier == 0 {
			tier = model.TierLight
		}
		geo := model.Geodetic{LatDeg: d.LatDeg, LonDeg: d.LonDeg}
		r.groundStations[d.Name] = &Node{
			ID:          d.Name,
			Kind:        model.KindGroundStation,
			Geodetic:    geo,
			ECEF:        GeodeticToECEF(geo),
			Tier:        tier,
			PenaltyMs:   tier.PenaltyMs(),
			groundLinks: make(map[string]struct{}),
		}
	}
	return nil
}

// RegisterUsers loads user terminals into the registry. Idempotent in
// the same way as RegisterGroundStations.
func (r *Registry) RegisterUsers(defs []model.UserDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("%w: user with empty id", ErrBadDefinition)
		}
		geo := model.Geodetic{LatDeg: d.LatDeg, LonDeg: d.LonDeg}
		r.users[d.ID] = &Node{
			ID:          d.ID,
			Kind:        model.KindUser,
			Geodetic:    geo,
			ECEF:        GeodeticToECEF(geo),
			groundLinks: make(map[string]struct{}),
		}
	}
	return nil
}

// beginTick discards the previous tick's satellites, registers fresh
// ones from the provider states, and clears all link state. Satellites
// with a non-finite position are dropped (the provider failed for them
// this tick); a duplicated identity aborts the tick.
//
// It returns the registered satellite nodes sorted by identity, plus
// the identities that were dropped.
func (r *Registry) beginTick(states []model.SatelliteState) (sats []*Node, dropped []string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.satellites = make(map[string]*Node, len(states))
	for _, st := range states {
		if st.ID == "" {
			return nil, nil, fmt.Errorf("%w: satellite with empty id", ErrBadDefinition)
		}
		if _, exists := r.satellites[st.ID]; exists {
			return nil, nil, fmt.Errorf("%w: %q", ErrDuplicateSatellite, st.ID)
		}
		if !st.ECEF.IsValid() || st.ECEF.Norm() == 0 {
			dropped = append(dropped, st.ID)
			continue
		}
		tier := model.TierFromActiveUsers(st.ActiveUsers)
		r.satellites[st.ID] = &Node{
			ID:            st.ID,
			Kind:          model.KindSatellite,
			Geodetic:      st.Geodetic,
			ECEF:          st.ECEF,
			Tier:          tier,
			PenaltyMs:     tier.PenaltyMs(),
			Plane:         st.Plane,
			PhaseAngleDeg: st.PhaseAngleDeg,
			satLinks:      make(map[string]struct{}),
			groundLinks:   make(map[string]struct{}),
		}
	}

	for _, gs := range r.groundStations {
		gs.groundLinks = make(map[string]struct{})
	}
	for _, u := range r.users {
		u.groundLinks = make(map[string]struct{})
	}

	sats = make([]*Node, 0, len(r.satellites))
	for _, n := range r.satellites {
		sats = append(sats, n)
	}
	sort.Slice(sats, func(i, j int) bool { return sats[i].ID < sats[j].ID })
	sort.Strings(dropped)
	return sats, dropped, nil
}

// CanAcceptSatelliteLink reports whether the satellite has spare
// inter-satellite capacity (ring and cross-plane links combined).
func (r *Registry) CanAcceptSatelliteLink(n *Node) bool {
	return n.Kind == model.KindSatellite && len(n.satLinks) < r.cfg.MaxSatLinks
}

// CanAcceptGroundLink reports whether the satellite has spare
// ground-link capacity. Ground stations and users carry no degree cap.
func (r *Registry) CanAcceptGroundLink(n *Node) bool {
	if n.Kind != model.KindSatellite {
		return true
	}
	return len(n.groundLinks) < r.cfg.MaxGroundLinks
}

// RecordSatelliteLink marks an inter-satellite link on both endpoints.
// Ring edges call this too: they always insert, even past the cap, and
// count toward the satellite's inter-satellite degree.
func (r *Registry) RecordSatelliteLink(a, b *Node) {
	a.satLinks[b.ID] = struct{}{}
	b.satLinks[a.ID] = struct{}{}
}

// RecordGroundLink marks a ground/user link on both endpoints.
func (r *Registry) RecordGroundLink(sat, ground *Node) {
	sat.groundLinks[ground.ID] = struct{}{}
	ground.groundLinks[sat.ID] = struct{}{}
}

// GroundNodes returns all ground stations and users sorted by identity.
func (r *Registry) GroundNodes() []*Node {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Node, 0, len(r.groundStations)+len(r.users))
	for _, n := range r.groundStations {
		out = append(out, n)
	}
	for _, n := range r.users {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
