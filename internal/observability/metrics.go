package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signalsfoundry/leo-topology/core"
)

// TopologyCollector bundles the engine's Prometheus metrics. It
// satisfies the engine's metrics recorder interface so rebuild and
// routing instrumentation flows straight from the engine.
type TopologyCollector struct {
	gatherer prometheus.Gatherer

	Satellites     prometheus.Gauge
	GroundStations prometheus.Gauge
	Users          prometheus.Gauge
	Edges          *prometheus.GaugeVec

	RebuildDuration *prometheus.HistogramVec
	RoutingQueries  *prometheus.CounterVec
	RoutingDuration *prometheus.HistogramVec
}

// NewTopologyCollector registers topology metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
// Re-registration reuses the existing collectors, so repeated
// construction against one registry is safe.
func NewTopologyCollector(reg prometheus.Registerer) (*TopologyCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	satellites, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "topology_satellites",
		Help: "Satellites present in the current topology snapshot.",
	}), "topology_satellites")
	if err != nil {
		return nil, err
	}
	groundStations, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "topology_ground_stations",
		Help: "Ground stations present in the current topology snapshot.",
	}), "topology_ground_stations")
	if err != nil {
		return nil, err
	}
	users, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "topology_users",
		Help: "User terminals present in the current topology snapshot.",
	}), "topology_users")
	if err != nil {
		return nil, err
	}

	edges := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "topology_edges",
		Help: "Edges in the current topology snapshot, labeled by edge class.",
	}, []string{"class"})
	edges, err = registerGaugeVec(reg, edges, "topology_edges")
	if err != nil {
		return nil, err
	}

	rebuilds := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "topology_rebuild_duration_seconds",
		Help:    "Duration of full topology rebuilds, labeled by outcome.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"status"})
	rebuilds, err = registerHistogramVec(reg, rebuilds, "topology_rebuild_duration_seconds")
	if err != nil {
		return nil, err
	}

	queries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "topology_routing_queries_total",
		Help: "Routing queries served, labeled by operation and outcome.",
	}, []string{"op", "outcome"})
	queries, err = registerCounterVec(reg, queries, "topology_routing_queries_total")
	if err != nil {
		return nil, err
	}

	queryDurations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "topology_routing_query_duration_seconds",
		Help:    "Routing query latency in seconds, labeled by operation.",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"op"})
	queryDurations, err = registerHistogramVec(reg, queryDurations, "topology_routing_query_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &TopologyCollector{
		gatherer:        gatherer,
		Satellites:      satellites,
		GroundStations:  groundStations,
		Users:           users,
		Edges:           edges,
		RebuildDuration: rebuilds,
		RoutingQueries:  queries,
		RoutingDuration: queryDurations,
	}, nil
}

// ObserveRebuild records one rebuild outcome and duration.
func (c *TopologyCollector) ObserveRebuild(status string, seconds float64) {
	if c == nil || c.RebuildDuration == nil {
		return
	}
	c.RebuildDuration.WithLabelValues(status).Observe(seconds)
}

// SetTopology updates the snapshot population gauges.
func (c *TopologyCollector) SetTopology(satellites, groundStations, users int, edgesByClass map[core.EdgeClass]int) {
	if c == nil {
		return
	}
	if c.Satellites != nil {
		c.Satellites.Set(float64(satellites))
	}
	if c.GroundStations != nil {
		c.GroundStations.Set(float64(groundStations))
	}
	if c.Users != nil {
		c.Users.Set(float64(users))
	}
	if c.Edges != nil {
		for _, class := range []core.EdgeClass{core.EdgeIntraPlane, core.EdgeCrossPlane, core.EdgeGround} {
			c.Edges.WithLabelValues(string(class)).Set(float64(edgesByClass[class]))
		}
	}
}

// ObserveRoutingQuery records one routing query.
func (c *TopologyCollector) ObserveRoutingQuery(op, outcome string, seconds float64) {
	if c == nil {
		return
	}
	if c.RoutingQueries != nil {
		c.RoutingQueries.WithLabelValues(op, outcome).Inc()
	}
	if c.RoutingDuration != nil {
		c.RoutingDuration.WithLabelValues(op).Observe(seconds)
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *TopologyCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
