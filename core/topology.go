package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/signalsfoundry/leo-topology/internal/logging"
	"github.com/signalsfoundry/leo-topology/model"
)

// Metrics receives engine-level measurements. The engine works without
// one; internal/observability provides the Prometheus implementation.
type Metrics interface {
	ObserveRebuild(status string, seconds float64)
	SetTopology(satellites, groundStations, users int, edgesByClass map[EdgeClass]int)
	ObserveRoutingQuery(op, outcome string, seconds float64)
}

// Engine owns the node registry and the current topology snapshot, and
// runs the per-tick rebuild state machine. Exactly one rebuild runs at
// a time; routing queries are read-only and may run concurrently
// against whatever snapshot is published.
type Engine struct {
	cfg Config
	log logging.Logger

	metrics Metrics

	reg *Registry

	rebuildMu sync.Mutex // serialises Refresh
	mu        sync.RWMutex
	snap      *Graph
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger. Defaults to a noop logger.
func WithLogger(l logging.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithMetrics attaches a metrics sink.
func WithMetrics(m Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates a topology engine with the given policy.
func NewEngine(cfg Config, opts ...Option) *Engine {
	e := &Engine{
		cfg: cfg.withDefaults(),
		log: logging.Noop(),
	}
	e.reg = NewRegistry(e.cfg)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the engine's effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// RegisterGroundStations loads ground stations into the registry.
// Idempotent; typically called once at startup.
func (e *Engine) RegisterGroundStations(defs []model.GroundStationDefinition) error {
	return e.reg.RegisterGroundStations(defs)
}

// RegisterUsers loads user terminals into the registry.
func (e *Engine) RegisterUsers(defs []model.UserDefinition) error {
	return e.reg.RegisterUsers(defs)
}

// Snapshot returns the current immutable topology graph, or nil before
// the first successful refresh.
func (e *Engine) Snapshot() *Graph {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snap
}

// Refresh runs one full topology tick against the provided satellite
// states. The rebuild happens into a fresh graph which is swapped in
// atomically on success; on failure the previous snapshot stays intact.
// A Refresh issued while another is in flight fails with
// ErrRebuildInProgress rather than queueing.
func (e *Engine) Refresh(ctx context.Context, simTime time.Time, states []model.SatelliteState) error {
	if !e.rebuildMu.TryLock() {
		return ErrRebuildInProgress
	}
	defer e.rebuildMu.Unlock()

	start := time.Now()
	b := &builder{
		cfg: e.cfg,
		reg: e.reg,
		log: e.log,
	}
	g, err := b.run(ctx, simTime, states)

	if e.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		e.metrics.ObserveRebuild(status, time.Since(start).Seconds())
	}
	if err != nil {
		e.log.Error(ctx, "topology rebuild failed", logging.String("error", err.Error()))
		return fmt.Errorf("refresh: %w", err)
	}

	e.mu.Lock()
	e.snap = g
	e.mu.Unlock()

	counts := map[EdgeClass]int{}
	for _, edge := range g.edges {
		counts[edge.Class]++
	}
	sats, gsCount, userCount := 0, 0, 0
	for _, n := range g.nodes {
		switch n.Kind {
		case model.KindSatellite:
			sats++
		case model.KindGroundStation:
			gsCount++
		case model.KindUser:
			userCount++
		}
	}
	if e.metrics != nil {
		e.metrics.SetTopology(sats, gsCount, userCount, counts)
	}
	e.log.Info(ctx, "topology rebuilt",
		logging.String("sim_time", simTime.UTC().Format(time.RFC3339)),
		logging.Int("satellites", sats),
		logging.Int("dropped", len(b.dropped)),
		logging.Int("intra_plane_edges", counts[EdgeIntraPlane]),
		logging.Int("cross_plane_edges", counts[EdgeCrossPlane]),
		logging.Int("ground_edges", counts[EdgeGround]),
	)
	return nil
}

// buildPhase enumerates the per-tick state machine.
type buildPhase int

const (
	phaseReset buildPhase = iota
	phasePlaneLinking
	phaseCrossPlaneLinking
	phaseGroundAttachment
	phaseDone
)

// builder executes one tick: Reset -> PlaneLinking -> CrossPlaneLinking
// -> GroundAttachment -> Done, writing edges into a fresh graph.
type builder struct {
	cfg Config
	reg *Registry
	log logging.Logger

	phase   buildPhase
	g       *Graph
	sats    []*Node
	dropped []string
}

func (b *builder) run(ctx context.Context, simTime time.Time, states []model.SatelliteState) (*Graph, error) {
	for b.phase != phaseDone {
		switch b.phase {
		case phaseReset:
			if err := b.reset(ctx, simTime, states); err != nil {
				return nil, err
			}
			b.phase = phasePlaneLinking
		case phasePlaneLinking:
			b.linkPlanes()
			b.phase = phaseCrossPlaneLinking
		case phaseCrossPlaneLinking:
			b.linkCrossPlane(ctx)
			b.phase = phaseGroundAttachment
		case phaseGroundAttachment:
			b.attachGround(ctx)
			b.phase = phaseDone
		}
	}
	return b.g, nil
}

// reset discards the previous tick's satellites and registers fresh
// nodes. Satellites the provider failed for are excluded from the tick,
// not fatal; structural problems (duplicate identities) abort the tick
// so the previous snapshot survives.
func (b *builder) reset(ctx context.Context, simTime time.Time, states []model.SatelliteState) error {
	sats, dropped, err := b.reg.beginTick(states)
	if err != nil {
		return err
	}
	b.sats = sats
	b.dropped = dropped
	for _, id := range dropped {
		b.log.Warn(ctx, "satellite position unavailable, excluded from tick",
			logging.String("satellite", id))
	}

	b.g = newGraph(simTime)
	for _, n := range sats {
		b.g.addNode(n.snapshotCopy())
	}
	for _, n := range b.reg.GroundNodes() {
		b.g.addNode(n.snapshotCopy())
	}
	return nil
}

// linkPlanes adds the fixed intra-plane ring edges. Within each plane
// the satellites are ordered by phase angle; each one's ring neighbours
// are its immediate predecessor and successor in the circular order.
// Ring edges bypass the capacity check but still count toward the
// inter-satellite degree.
func (b *builder) linkPlanes() {
	planes := make(map[model.PlaneID][]*Node)
	for _, s := range b.sats {
		planes[s.Plane] = append(planes[s.Plane], s)
	}

	for _, members := range planes {
		if len(members) < 2 {
			continue
		}
		sort.Slice(members, func(i, j int) bool {
			if members[i].PhaseAngleDeg != members[j].PhaseAngleDeg {
				return members[i].PhaseAngleDeg < members[j].PhaseAngleDeg
			}
			return members[i].ID < members[j].ID
		})

		// With two members the predecessor and successor coincide, so
		// the ring collapses to a single edge.
		pairs := len(members)
		if pairs == 2 {
			pairs = 1
		}
		for i := 0; i < pairs; i++ {
			a := members[i]
			c := members[(i+1)%len(members)]
			if a.linkedTo(c.ID) {
				continue
			}
			if !satelliteLineOfSight(a.ECEF, c.ECEF, EarthRadiusKm, b.cfg.LOSBufferKm) {
				continue
			}
			b.reg.RecordSatelliteLink(a, c)
			b.g.addEdge(a.ID, c.ID, EdgeIntraPlane, a.ECEF.DistanceTo(c.ECEF), b.cfg.SpeedKmPerMs)
		}
	}
}

// crossPair is one eligible cross-plane candidate pair.
type crossPair struct {
	a, b *Node
	dist float64
}

// linkCrossPlane greedily connects satellites in different planes.
// All eligible pairs are collected and sorted by ascending distance,
// then inserted first-come-first-served while both endpoints still have
// spare inter-satellite capacity. The global distance order makes the
// matching deterministic and lets the closest pair win under tight caps.
func (b *builder) linkCrossPlane(ctx context.Context) {
	var pairs []crossPair
	for i := 0; i < len(b.sats); i++ {
		for j := i + 1; j < len(b.sats); j++ {
			a, c := b.sats[i], b.sats[j]
			if a.Plane == c.Plane || a.linkedTo(c.ID) {
				continue
			}
			dist := a.ECEF.DistanceTo(c.ECEF)
			if dist > b.cfg.MaxISLRangeKm {
				continue
			}
			if !satelliteLineOfSight(a.ECEF, c.ECEF, EarthRadiusKm, b.cfg.LOSBufferKm) {
				continue
			}
			pairs = append(pairs, crossPair{a: a, b: c, dist: dist})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].dist != pairs[j].dist {
			return pairs[i].dist < pairs[j].dist
		}
		if pairs[i].a.ID != pairs[j].a.ID {
			return pairs[i].a.ID < pairs[j].a.ID
		}
		return pairs[i].b.ID < pairs[j].b.ID
	})

	for _, p := range pairs {
		if !b.reg.CanAcceptSatelliteLink(p.a) || !b.reg.CanAcceptSatelliteLink(p.b) {
			b.log.Debug(ctx, "cross-plane candidate skipped, capacity exhausted",
				logging.String("a", p.a.ID), logging.String("b", p.b.ID))
			continue
		}
		b.reg.RecordSatelliteLink(p.a, p.b)
		b.g.addEdge(p.a.ID, p.b.ID, EdgeCrossPlane, p.dist, b.cfg.SpeedKmPerMs)
	}
}

// attachGround connects every ground station and user to visible
// satellites within range, nearest first. Depending on configuration a
// ground node takes either all such satellites (bounded by each
// satellite's remaining ground-link capacity) or just the best one.
func (b *builder) attachGround(ctx context.Context) {
	type candidate struct {
		sat  *Node
		dist float64
	}

	for _, ground := range b.reg.GroundNodes() {
		var candidates []candidate
		for _, sat := range b.sats {
			visible, dist := groundLineOfSight(ground.ECEF, sat.ECEF, b.cfg.MinElevationDeg)
			if !visible || dist > b.cfg.MaxGroundRangeKm {
				continue
			}
			candidates = append(candidates, candidate{sat: sat, dist: dist})
		}
		sort.Slice(candidates, func(i, j int) bool {
			if candidates[i].dist != candidates[j].dist {
				return candidates[i].dist < candidates[j].dist
			}
			return candidates[i].sat.ID < candidates[j].sat.ID
		})

		for _, c := range candidates {
			if !b.reg.CanAcceptGroundLink(c.sat) {
				b.log.Debug(ctx, "ground candidate skipped, capacity exhausted",
					logging.String("ground", ground.ID), logging.String("satellite", c.sat.ID))
				continue
			}
			b.reg.RecordGroundLink(c.sat, ground)
			b.g.addEdge(ground.ID, c.sat.ID, EdgeGround, c.dist, b.cfg.SpeedKmPerMs)
			if b.cfg.Attachment == AttachBest {
				break
			}
		}
	}
}
