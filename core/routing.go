package core

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/katalvlaran/lvlath/dijkstra"

	"github.com/signalsfoundry/leo-topology/model"
)

// Route is the result of a weighted path query. TotalCostMs sums
// propagation delay plus the congestion penalty of every node entered
// along the way; the origin's own penalty is exempt.
type Route struct {
	Path        []string
	TotalCostMs float64
}

// Destination returns the final hop of the route.
func (r Route) Destination() string {
	if len(r.Path) == 0 {
		return ""
	}
	return r.Path[len(r.Path)-1]
}

// Hops returns the number of edges traversed.
func (r Route) Hops() int {
	if len(r.Path) == 0 {
		return 0
	}
	return len(r.Path) - 1
}

// ShortestPath computes the minimum-cost route between two nodes in the
// current snapshot.
func (e *Engine) ShortestPath(sourceID, targetID string) (Route, error) {
	start := time.Now()
	r, err := shortestPathOn(e.Snapshot(), sourceID, targetID)
	e.observeQuery("shortest_path", err, time.Since(start))
	return r, err
}

// NearestGroundStation finds the ground station reachable from sourceID
// at minimum cost. Candidates beyond the configured great-circle bound
// are excluded before the weighted search.
func (e *Engine) NearestGroundStation(sourceID string) (Route, error) {
	start := time.Now()
	r, err := nearestGroundStationOn(e.Snapshot(), e.cfg, sourceID)
	e.observeQuery("nearest_ground_station", err, time.Since(start))
	return r, err
}

func (e *Engine) observeQuery(op string, err error, elapsed time.Duration) {
	if e.metrics == nil {
		return
	}
	e.metrics.ObserveRoutingQuery(op, queryOutcome(err), elapsed.Seconds())
}

func queryOutcome(err error) string {
	switch {
	case err == nil:
		return "found"
	case errors.Is(err, ErrNoPath):
		return "no_path"
	case errors.Is(err, ErrUnknownNode), errors.Is(err, ErrNoTopology):
		return "rejected"
	default:
		return "error"
	}
}

func shortestPathOn(g *Graph, sourceID, targetID string) (Route, error) {
	if g == nil {
		return Route{}, ErrNoTopology
	}
	if _, ok := g.Node(sourceID); !ok {
		return Route{}, fmt.Errorf("%w: %q", ErrUnknownNode, sourceID)
	}
	if _, ok := g.Node(targetID); !ok {
		return Route{}, fmt.Errorf("%w: %q", ErrUnknownNode, targetID)
	}
	if sourceID == targetID {
		return Route{Path: []string{sourceID}}, nil
	}

	dist, prev, err := g.distances(sourceID)
	if err != nil {
		return Route{}, err
	}
	d, ok := dist[targetID]
	if !ok || math.IsInf(d, 1) {
		return Route{}, fmt.Errorf("%w: %s -> %s", ErrNoPath, sourceID, targetID)
	}
	return Route{
		Path:        walkBack(prev, sourceID, targetID),
		TotalCostMs: costMs(d),
	}, nil
}

func nearestGroundStationOn(g *Graph, cfg Config, sourceID string) (Route, error) {
	if g == nil {
		return Route{}, ErrNoTopology
	}
	src, ok := g.Node(sourceID)
	if !ok {
		return Route{}, fmt.Errorf("%w: %q", ErrUnknownNode, sourceID)
	}

	candidates := groundStationCandidates(g, cfg, src)
	if len(candidates) == 0 {
		return Route{}, fmt.Errorf("%w: no ground station candidate for %s", ErrNoPath, sourceID)
	}

	// One search from the source covers every candidate.
	dist, prev, err := g.distances(sourceID)
	if err != nil {
		return Route{}, err
	}

	best := ""
	bestDist := math.Inf(1)
	for _, id := range candidates {
		d, ok := dist[id]
		if !ok || math.IsInf(d, 1) {
			continue
		}
		if d < bestDist || (d == bestDist && id < best) {
			best, bestDist = id, d
		}
	}
	if best == "" {
		return Route{}, fmt.Errorf("%w: no ground station reachable from %s", ErrNoPath, sourceID)
	}
	return Route{
		Path:        walkBack(prev, sourceID, best),
		TotalCostMs: costMs(bestDist),
	}, nil
}

// groundStationCandidates returns, sorted by identity, the ground
// stations worth searching for from src.
func groundStationCandidates(g *Graph, cfg Config, src *Node) []string {
	var out []string
	for _, n := range g.Nodes() {
		if n.Kind != model.KindGroundStation || n.ID == src.ID {
			continue
		}
		if cfg.NearestGSPrefilterKm > 0 &&
			GreatCircleKm(src.Geodetic, n.Geodetic) > cfg.NearestGSPrefilterKm {
			continue
		}
		out = append(out, n.ID)
	}
	sort.Strings(out)
	return out
}

// distances runs one weighted search over the snapshot's routing view.
func (g *Graph) distances(sourceID string) (map[string]float64, map[string]string, error) {
	lg, err := g.routingView()
	if err != nil {
		return nil, nil, err
	}
	res, err := dijkstra.Dijkstra(lg, sourceID, dijkstra.WithPathTracking())
	if err != nil {
		return nil, nil, fmt.Errorf("shortest path from %q: %w", sourceID, err)
	}
	return res.Distances, res.Prev, nil
}

// costMs converts a routing-view distance back to milliseconds. The
// view already charges each node's penalty on entry and the origin is
// never entered, so no correction is needed.
func costMs(d float64) float64 {
	return d / 1000.0
}

// walkBack rebuilds the path from the predecessor map.
func walkBack(prev map[string]string, sourceID, targetID string) []string {
	var rev []string
	for cur := targetID; cur != ""; cur = prev[cur] {
		rev = append(rev, cur)
		if cur == sourceID {
			break
		}
	}
	path := make([]string, 0, len(rev))
	for i := len(rev) - 1; i >= 0; i-- {
		path = append(path, rev[i])
	}
	return path
}
