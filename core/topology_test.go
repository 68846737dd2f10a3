package core

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/signalsfoundry/leo-topology/model"
)

// leoState builds a synthetic satellite state at 550 km altitude.
func leoState(id string, raanDeg, phaseDeg, latDeg, lonDeg, activeUsers float64) model.SatelliteState {
	geo := model.Geodetic{LatDeg: latDeg, LonDeg: lonDeg, AltKm: 550}
	return model.SatelliteState{
		ID:            id,
		Plane:         model.QuantizePlane(53, raanDeg),
		PhaseAngleDeg: phaseDeg,
		Geodetic:      geo,
		ECEF:          GeodeticToECEF(geo),
		ActiveUsers:   activeUsers,
	}
}

func mustRefresh(t *testing.T, e *Engine, states []model.SatelliteState) *Graph {
	t.Helper()
	if err := e.Refresh(context.Background(), time.Unix(1700000000, 0), states); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	return e.Snapshot()
}

func TestRefresh_RingLinks(t *testing.T) {
	e := NewEngine(DefaultConfig())
	g := mustRefresh(t, e, []model.SatelliteState{
		leoState("s1", 200, 0, 0, 0, 0),
		leoState("s2", 200, 90, 0, 2, 0),
		leoState("s3", 200, 180, 0, 4, 0),
		leoState("s4", 200, 270, 0, 6, 0),
	})

	if got := g.EdgeCount(); got != 4 {
		t.Fatalf("edge count = %d, want 4 ring edges", got)
	}
	for _, id := range []string{"s1", "s2", "s3", "s4"} {
		if got := g.Degree(id, EdgeIntraPlane); got != 2 {
			t.Errorf("ring degree of %s = %d, want 2", id, got)
		}
	}

	// The ring follows phase order, including the wrap edge.
	for _, pair := range [][2]string{{"s1", "s2"}, {"s2", "s3"}, {"s3", "s4"}, {"s4", "s1"}} {
		if _, ok := g.EdgeBetween(pair[0], pair[1]); !ok {
			t.Errorf("missing ring edge %s-%s", pair[0], pair[1])
		}
	}
}

func TestRefresh_TwoMemberPlaneSingleEdge(t *testing.T) {
	e := NewEngine(DefaultConfig())
	g := mustRefresh(t, e, []model.SatelliteState{
		leoState("s1", 200, 0, 0, 0, 0),
		leoState("s2", 200, 180, 0, 2, 0),
	})

	if got := g.EdgeCount(); got != 1 {
		t.Fatalf("edge count = %d, want 1 collapsed ring edge", got)
	}
}

func TestRefresh_CrossPlaneClosestPairWins(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSatLinks = 1

	e := NewEngine(cfg)
	g := mustRefresh(t, e, []model.SatelliteState{
		leoState("a", 190, 0, 0, 0, 0),
		leoState("b", 200, 0, 0, 1, 0),
		leoState("c", 210, 0, 0, 3, 0),
	})

	// With one link each, the closest pair a-b must win; b-c and a-c are
	// then both capacity-blocked.
	if _, ok := g.EdgeBetween("a", "b"); !ok {
		t.Fatalf("expected closest pair a-b to be linked")
	}
	if got := g.EdgeCount(); got != 1 {
		t.Fatalf("edge count = %d, want 1", got)
	}
}

func TestRefresh_CrossPlaneRespectsRange(t *testing.T) {
	e := NewEngine(DefaultConfig())
	g := mustRefresh(t, e, []model.SatelliteState{
		leoState("a", 190, 0, 0, 0, 0),
		leoState("b", 200, 0, 0, 60, 0),
	})

	if got := g.EdgeCount(); got != 0 {
		t.Fatalf("edge count = %d, want 0 beyond ISL range", got)
	}
}

func TestRefresh_CrossPlaneCapsCombineWithRingDegree(t *testing.T) {
	// Four satellites in one plane use 2 of their 3 inter-satellite
	// slots on ring edges, leaving exactly one cross-plane slot each.
	states := []model.SatelliteState{
		leoState("p1-1", 200, 0, 0, 0, 0),
		leoState("p1-2", 200, 90, 0, 2, 0),
		leoState("p1-3", 200, 180, 0, 4, 0),
		leoState("p1-4", 200, 270, 0, 6, 0),
		leoState("p2-1", 210, 0, 1, 0, 0),
		leoState("p2-2", 210, 90, 1, 2, 0),
		leoState("p2-3", 210, 180, 1, 4, 0),
		leoState("p2-4", 210, 270, 1, 6, 0),
	}
	e := NewEngine(DefaultConfig())
	g := mustRefresh(t, e, states)

	for _, st := range states {
		if got := g.SatDegree(st.ID); got > 3 {
			t.Errorf("inter-satellite degree of %s = %d, exceeds cap 3", st.ID, got)
		}
	}
	if got := g.Degree("p1-1", EdgeCrossPlane); got != 1 {
		t.Errorf("cross-plane degree of p1-1 = %d, want 1", got)
	}
}

func TestRefresh_GroundAttachAll(t *testing.T) {
	e := NewEngine(DefaultConfig())
	if err := e.RegisterGroundStations([]model.GroundStationDefinition{
		{Name: "gs-a", LatDeg: 0, LonDeg: 0},
	}); err != nil {
		t.Fatalf("RegisterGroundStations: %v", err)
	}
	if err := e.RegisterUsers([]model.UserDefinition{
		{ID: "u-a", LatDeg: 0, LonDeg: 1},
	}); err != nil {
		t.Fatalf("RegisterUsers: %v", err)
	}

	g := mustRefresh(t, e, []model.SatelliteState{
		leoState("s1", 200, 0, 0, 0, 0),
		leoState("s2", 210, 0, 0, 3, 0),
	})

	// Ground nodes attach in identity order. gs-a grabs both satellites'
	// single ground slot, so u-a ends up isolated.
	if got := g.Degree("gs-a", EdgeGround); got != 2 {
		t.Errorf("ground degree of gs-a = %d, want 2", got)
	}
	if got := g.Degree("u-a", EdgeGround); got != 0 {
		t.Errorf("ground degree of u-a = %d, want 0 (satellite capacity exhausted)", got)
	}
}

func TestRefresh_GroundAttachBest(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Attachment = AttachBest

	e := NewEngine(cfg)
	if err := e.RegisterGroundStations([]model.GroundStationDefinition{
		{Name: "gs-a", LatDeg: 0, LonDeg: 0},
	}); err != nil {
		t.Fatalf("RegisterGroundStations: %v", err)
	}
	if err := e.RegisterUsers([]model.UserDefinition{
		{ID: "u-a", LatDeg: 0, LonDeg: 1},
	}); err != nil {
		t.Fatalf("RegisterUsers: %v", err)
	}

	g := mustRefresh(t, e, []model.SatelliteState{
		leoState("s1", 200, 0, 0, 0, 0),
		leoState("s2", 210, 0, 0, 3, 0),
	})

	// gs-a takes its nearest satellite s1; u-a falls back to s2 because
	// s1's ground slot is taken.
	if _, ok := g.EdgeBetween("gs-a", "s1"); !ok {
		t.Errorf("expected gs-a to attach to nearest satellite s1")
	}
	if got := g.Degree("gs-a", EdgeGround); got != 1 {
		t.Errorf("ground degree of gs-a = %d, want 1", got)
	}
	if _, ok := g.EdgeBetween("u-a", "s2"); !ok {
		t.Errorf("expected u-a to fall back to s2")
	}
}

func TestRefresh_IsolatedSatelliteKept(t *testing.T) {
	e := NewEngine(DefaultConfig())
	g := mustRefresh(t, e, []model.SatelliteState{
		leoState("near", 200, 0, 0, 0, 0),
		leoState("far", 210, 0, 0, 140, 0),
	})

	if _, ok := g.Node("far"); !ok {
		t.Fatalf("isolated satellite must stay in the snapshot")
	}
	if got := g.SatDegree("far"); got != 0 {
		t.Errorf("degree of far = %d, want 0", got)
	}
}

func TestRefresh_InvalidPositionDropped(t *testing.T) {
	bad := leoState("bad", 200, 0, 0, 0, 0)
	bad.ECEF = model.Vec3{X: math.NaN(), Y: 0, Z: 0}

	e := NewEngine(DefaultConfig())
	g := mustRefresh(t, e, []model.SatelliteState{
		leoState("good", 200, 0, 0, 0, 0),
		bad,
	})

	if _, ok := g.Node("bad"); ok {
		t.Errorf("satellite with invalid position must be excluded from the tick")
	}
	if _, ok := g.Node("good"); !ok {
		t.Errorf("valid satellite missing from snapshot")
	}
}

func TestRefresh_DuplicateIDPreservesSnapshot(t *testing.T) {
	e := NewEngine(DefaultConfig())
	first := mustRefresh(t, e, []model.SatelliteState{
		leoState("s1", 200, 0, 0, 0, 0),
	})

	err := e.Refresh(context.Background(), time.Unix(1700000060, 0), []model.SatelliteState{
		leoState("dup", 200, 0, 0, 0, 0),
		leoState("dup", 200, 90, 0, 2, 0),
	})
	if !errors.Is(err, ErrDuplicateSatellite) {
		t.Fatalf("Refresh error = %v, want ErrDuplicateSatellite", err)
	}

	if got := e.Snapshot(); got != first {
		t.Errorf("failed refresh must leave the previous snapshot in place")
	}
}

func TestRefresh_ReplacesSnapshot(t *testing.T) {
	e := NewEngine(DefaultConfig())
	first := mustRefresh(t, e, []model.SatelliteState{leoState("s1", 200, 0, 0, 0, 0)})
	second := mustRefresh(t, e, []model.SatelliteState{leoState("s2", 200, 0, 0, 10, 0)})

	if first == second {
		t.Fatalf("refresh must publish a fresh snapshot")
	}
	if _, ok := second.Node("s1"); ok {
		t.Errorf("stale satellite s1 present in new snapshot")
	}
	if _, ok := second.Node("s2"); !ok {
		t.Errorf("satellite s2 missing from new snapshot")
	}
}

// reentrantMetrics re-enters the engine from the rebuild instrumentation
// path, which runs while the rebuild lock is held.
type reentrantMetrics struct {
	engine *Engine
	err    error
}

func (m *reentrantMetrics) ObserveRebuild(string, float64) {
	m.err = m.engine.Refresh(context.Background(), time.Now(), nil)
}
func (m *reentrantMetrics) SetTopology(int, int, int, map[EdgeClass]int) {}
func (m *reentrantMetrics) ObserveRoutingQuery(string, string, float64)  {}

func TestRefresh_ConcurrentRebuildRejected(t *testing.T) {
	m := &reentrantMetrics{}
	e := NewEngine(DefaultConfig(), WithMetrics(m))
	m.engine = e

	if err := e.Refresh(context.Background(), time.Unix(1700000000, 0), []model.SatelliteState{
		leoState("s1", 200, 0, 0, 0, 0),
	}); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if !errors.Is(m.err, ErrRebuildInProgress) {
		t.Fatalf("overlapping refresh error = %v, want ErrRebuildInProgress", m.err)
	}
}

func TestRefresh_IdenticalInputsIdenticalGraph(t *testing.T) {
	states := []model.SatelliteState{
		leoState("s1", 200, 0, 0, 0, 100),
		leoState("s2", 200, 90, 0, 2, 100),
		leoState("s3", 210, 0, 1, 0, 100),
	}

	e := NewEngine(DefaultConfig())
	first := mustRefresh(t, e, states)
	second := mustRefresh(t, e, states)

	firstEdges := first.Edges()
	secondEdges := second.Edges()
	if len(firstEdges) != len(secondEdges) {
		t.Fatalf("edge counts differ: %d vs %d", len(firstEdges), len(secondEdges))
	}
	for i := range firstEdges {
		a, b := firstEdges[i], secondEdges[i]
		if a.A != b.A || a.B != b.B || a.Class != b.Class {
			t.Errorf("edge %d differs: %+v vs %+v", i, a, b)
		}
		if math.Abs(a.DistanceKm-b.DistanceKm) > 1e-9 {
			t.Errorf("edge %d distance differs: %v vs %v", i, a.DistanceKm, b.DistanceKm)
		}
	}
}

func TestSnapshot_NilBeforeFirstRefresh(t *testing.T) {
	e := NewEngine(DefaultConfig())
	if g := e.Snapshot(); g != nil {
		t.Fatalf("snapshot before first refresh = %v, want nil", g)
	}
	if _, err := e.ShortestPath("a", "b"); !errors.Is(err, ErrNoTopology) {
		t.Fatalf("query before first refresh error = %v, want ErrNoTopology", err)
	}
}
