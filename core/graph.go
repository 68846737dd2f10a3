package core

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	lvcore "github.com/katalvlaran/lvlath/core"

	"github.com/signalsfoundry/leo-topology/model"
)

// EdgeClass distinguishes the three connection classes in the graph.
type EdgeClass string

const (
	EdgeIntraPlane EdgeClass = "intra_plane"
	EdgeCrossPlane EdgeClass = "cross_plane"
	EdgeGround     EdgeClass = "ground"
)

// Node is one vertex of the topology graph. Satellite nodes are rebuilt
// every tick; ground stations and users persist in the registry and are
// copied into each snapshot.
type Node struct {
	ID       string
	Kind     model.NodeKind
	Geodetic model.Geodetic
	ECEF     model.Vec3

	Tier      model.LoadTier
	PenaltyMs float64

	// Satellite-only fields.
	Plane         model.PlaneID
	PhaseAngleDeg float64

	// Per-tick connection state, maintained by the registry while the
	// topology builder runs. Snapshot copies carry nil maps; adjacency
	// is answered by the graph instead.
	satLinks    map[string]struct{}
	groundLinks map[string]struct{}
}

// EntryPenaltyMs is the cost charged when a route enters this node.
// Users never contribute a penalty.
func (n *Node) EntryPenaltyMs() float64 {
	if n.Kind == model.KindUser {
		return 0
	}
	return n.PenaltyMs
}

// SatLinkCount returns the node's current number of inter-satellite links.
func (n *Node) SatLinkCount() int { return len(n.satLinks) }

// GroundLinkCount returns the node's current number of ground/user links.
func (n *Node) GroundLinkCount() int { return len(n.groundLinks) }

// linkedTo reports whether an inter-satellite link to other already exists.
func (n *Node) linkedTo(other string) bool {
	_, ok := n.satLinks[other]
	return ok
}

// snapshotCopy returns a value copy safe to publish in a graph snapshot.
func (n *Node) snapshotCopy() *Node {
	c := *n
	c.satLinks = nil
	c.groundLinks = nil
	return &c
}

// Edge is an undirected link between two node identities.
type Edge struct {
	A, B       string
	Class      EdgeClass
	DistanceKm float64
	DelayMs    float64
}

// Other returns the endpoint opposite to id.
func (e *Edge) Other(id string) string {
	if e.A == id {
		return e.B
	}
	return e.A
}

// Graph is one immutable post-tick topology snapshot: the full node and
// edge set at a single instant. It is safe for concurrent readers once
// published by the engine.
type Graph struct {
	BuiltAt time.Time

	nodes map[string]*Node
	edges []*Edge
	adj   map[string][]*Edge

	routeOnce sync.Once
	route     *lvcore.Graph
	routeErr  error
}

func newGraph(builtAt time.Time) *Graph {
	return &Graph{
		BuiltAt: builtAt,
		nodes:   make(map[string]*Node),
		adj:     make(map[string][]*Edge),
	}
}

func (g *Graph) addNode(n *Node) {
	g.nodes[n.ID] = n
}

func (g *Graph) addEdge(a, b string, class EdgeClass, distanceKm, speedKmPerMs float64) {
	e := &Edge{
		A:          a,
		B:          b,
		Class:      class,
		DistanceKm: distanceKm,
		DelayMs:    distanceKm / speedKmPerMs,
	}
	g.edges = append(g.edges, e)
	g.adj[a] = append(g.adj[a], e)
	g.adj[b] = append(g.adj[b], e)
}

// Node returns the node with the given identity, if present.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns all nodes ordered by identity.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Edges returns the edge set in insertion order.
func (g *Graph) Edges() []*Edge {
	out := make([]*Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// Neighbors returns the edges incident to id.
func (g *Graph) Neighbors(id string) []*Edge {
	return g.adj[id]
}

// Degree returns the number of edges of the given class incident to id.
func (g *Graph) Degree(id string, class EdgeClass) int {
	n := 0
	for _, e := range g.adj[id] {
		if e.Class == class {
			n++
		}
	}
	return n
}

// SatDegree counts inter-satellite edges (both classes) incident to id.
func (g *Graph) SatDegree(id string) int {
	return g.Degree(id, EdgeIntraPlane) + g.Degree(id, EdgeCrossPlane)
}

// EdgeBetween returns the edge connecting a and b in either orientation.
func (g *Graph) EdgeBetween(a, b string) (*Edge, bool) {
	for _, e := range g.adj[a] {
		if e.Other(a) == b {
			return e, true
		}
	}
	return nil, false
}

// NodeCount returns the number of nodes in the snapshot.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges in the snapshot.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// routingView lazily materialises the snapshot as a directed weighted
// lvlath graph. Each undirected edge becomes two directed edges whose
// weight folds the entered node's penalty into the propagation delay at
// microsecond resolution. A path therefore pays the penalty of every
// node it enters, intermediates and destination alike; the origin is
// never entered, so it is exempt by construction.
func (g *Graph) routingView() (*lvcore.Graph, error) {
	g.routeOnce.Do(func() {
		lg, err := lvcore.NewGraph(lvcore.WithDirected(true), lvcore.WithWeighted())
		if err != nil {
			g.routeErr = fmt.Errorf("routing view: new graph: %w", err)
			return
		}
		for _, n := range g.Nodes() {
			if err := lg.AddVertex(n.ID); err != nil {
				g.routeErr = fmt.Errorf("routing view: add vertex %q: %w", n.ID, err)
				return
			}
		}
		for _, e := range g.edges {
			delayUs := microseconds(e.DelayMs)
			wAB := delayUs + microseconds(g.nodes[e.B].EntryPenaltyMs())
			wBA := delayUs + microseconds(g.nodes[e.A].EntryPenaltyMs())
			if _, err := lg.AddEdge(e.A, e.B, float64(wAB)); err != nil {
				g.routeErr = fmt.Errorf("routing view: add edge %s->%s: %w", e.A, e.B, err)
				return
			}
			if _, err := lg.AddEdge(e.B, e.A, float64(wBA)); err != nil {
				g.routeErr = fmt.Errorf("routing view: add edge %s->%s: %w", e.B, e.A, err)
				return
			}
		}
		g.route = lg
	})
	return g.route, g.routeErr
}

func microseconds(ms float64) int64 {
	return int64(math.Round(ms * 1000))
}
