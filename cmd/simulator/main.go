package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/signalsfoundry/leo-topology/core"
	"github.com/signalsfoundry/leo-topology/internal/logging"
	"github.com/signalsfoundry/leo-topology/internal/observability"
	"github.com/signalsfoundry/leo-topology/model"
	"github.com/signalsfoundry/leo-topology/orbit"
	"github.com/signalsfoundry/leo-topology/timectrl"
)

func main() {
	duration := flag.Duration("duration", 60*time.Second, "total simulation duration (0 runs forever)")
	tick := flag.Duration("tick", 1*time.Second, "tick interval")
	accelerated := flag.Bool("accelerated", true, "run in accelerated mode (vs real-time)")
	tlePath := flag.String("tle", "configs/starlink_sample.tle", "path to a TLE catalog file; empty fetches from Celestrak")
	tleCacheDir := flag.String("tle-cache", "", "directory for cached fetched catalogs")
	gsPath := flag.String("ground-stations", "configs/ground_stations.json", "ground station definitions (JSON)")
	usersPath := flag.String("users", "configs/users.json", "user terminal definitions (JSON)")
	metricsAddr := flag.String("metrics-addr", ":9090", "listen address for /metrics (empty disables)")
	attachBest := flag.Bool("attach-best", false, "attach ground nodes to the single nearest satellite only")
	maxSats := flag.Int("max-sats", 0, "cap the number of propagated satellites (0 = all)")
	bboxFlag := flag.String("bbox", "", "restrict satellites to minLat,maxLat,minLon,maxLon (degrees)")
	routeFrom := flag.String("route-from", "", "log the nearest ground station from this node every tick")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		fatal(ctx, log, "init tracing", err)
	}
	defer shutdownTracing(ctx)

	collector, err := observability.NewTopologyCollector(nil)
	if err != nil {
		fatal(ctx, log, "init metrics", err)
	}
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error(ctx, "metrics server failed", logging.String("error", err.Error()))
			}
		}()
		log.Info(ctx, "metrics listening", logging.String("addr", *metricsAddr))
	}

	// Load driver: each satellite gets a random active-user count per
	// tick; the engine turns that into a congestion tier.
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	loads := func(string, time.Time) float64 {
		return float64(1 + rng.Intn(2000))
	}

	provider, err := buildProvider(ctx, log, *tlePath, *tleCacheDir, *bboxFlag, *maxSats, loads)
	if err != nil {
		fatal(ctx, log, "build position provider", err)
	}
	log.Info(ctx, "position provider ready", logging.Int("satellites", provider.Count()))

	cfg := core.DefaultConfig()
	if *attachBest {
		cfg.Attachment = core.AttachBest
	}
	engine := core.NewEngine(cfg, core.WithLogger(log), core.WithMetrics(collector))

	if err := registerGround(engine, *gsPath, *usersPath); err != nil {
		fatal(ctx, log, "register ground nodes", err)
	}

	mode := timectrl.RealTime
	if *accelerated {
		mode = timectrl.Accelerated
	}
	tc := timectrl.NewTimeController(time.Now().UTC(), *tick, mode)

	tracer := otel.Tracer("simulator")
	tc.AddListener(func(simTime time.Time) {
		tickCtx, span := tracer.Start(ctx, "topology.tick")
		defer span.End()

		states := provider.StatesAt(tickCtx, simTime)
		span.SetAttributes(attribute.Int("satellites", len(states)))

		if err := engine.Refresh(tickCtx, simTime, states); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "refresh failed")
			return
		}

		if *routeFrom != "" {
			route, err := engine.NearestGroundStation(*routeFrom)
			switch {
			case err == nil:
				log.Info(tickCtx, "nearest ground station",
					logging.String("from", *routeFrom),
					logging.String("to", route.Destination()),
					logging.Int("hops", route.Hops()),
					logging.Float64("cost_ms", route.TotalCostMs))
			case errors.Is(err, core.ErrNoPath):
				log.Info(tickCtx, "no ground station reachable", logging.String("from", *routeFrom))
			default:
				log.Warn(tickCtx, "routing query failed",
					logging.String("from", *routeFrom), logging.String("error", err.Error()))
			}
		}
	})

	<-tc.Start(*duration)
	log.Info(ctx, "simulation finished")
}

// buildProvider loads the TLE catalog from disk or Celestrak and wraps
// it in an SGP4 position provider.
func buildProvider(ctx context.Context, log logging.Logger, tlePath, cacheDir, bboxSpec string, maxSats int, loads orbit.LoadModel) (*orbit.SGP4Provider, error) {
	var entries []orbit.TLE
	var err error
	if tlePath != "" {
		entries, err = orbit.LoadCatalogFile(ctx, tlePath, log)
	} else {
		var opts []orbit.FetcherOption
		opts = append(opts, orbit.WithFetcherLogger(log))
		if cacheDir != "" {
			opts = append(opts, orbit.WithCacheDir(cacheDir, 5))
		}
		var raw []byte
		raw, err = orbit.NewFetcher("", opts...).Fetch(ctx)
		if err == nil {
			entries, err = orbit.ParseCatalog(ctx, bytes.NewReader(raw), log)
		}
	}
	if err != nil {
		return nil, err
	}
	if maxSats > 0 && len(entries) > maxSats {
		entries = entries[:maxSats]
	}

	popts := []orbit.ProviderOption{
		orbit.WithProviderLogger(log),
		orbit.WithLoadModel(loads),
	}
	if bboxSpec != "" {
		box, err := parseBBox(bboxSpec)
		if err != nil {
			return nil, err
		}
		popts = append(popts, orbit.WithBoundingBox(box))
	}
	return orbit.NewSGP4Provider(ctx, entries, popts...)
}

// registerGround loads ground station and user definitions from JSON
// files. Either path may be empty.
func registerGround(engine *core.Engine, gsPath, usersPath string) error {
	if gsPath != "" {
		var defs []model.GroundStationDefinition
		if err := loadJSON(gsPath, &defs); err != nil {
			return fmt.Errorf("ground stations: %w", err)
		}
		if err := engine.RegisterGroundStations(defs); err != nil {
			return err
		}
	}
	if usersPath != "" {
		var defs []model.UserDefinition
		if err := loadJSON(usersPath, &defs); err != nil {
			return fmt.Errorf("users: %w", err)
		}
		if err := engine.RegisterUsers(defs); err != nil {
			return err
		}
	}
	return nil
}

func loadJSON(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// parseBBox parses "minLat,maxLat,minLon,maxLon" in degrees.
func parseBBox(spec string) (orbit.BoundingBox, error) {
	parts := strings.Split(spec, ",")
	if len(parts) != 4 {
		return orbit.BoundingBox{}, fmt.Errorf("bbox %q: want minLat,maxLat,minLon,maxLon", spec)
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return orbit.BoundingBox{}, fmt.Errorf("bbox %q: invalid component %q", spec, p)
		}
		vals[i] = v
	}
	box := orbit.BoundingBox{
		MinLatDeg: vals[0], MaxLatDeg: vals[1],
		MinLonDeg: vals[2], MaxLonDeg: vals[3],
	}
	if box.MinLatDeg > box.MaxLatDeg || box.MinLonDeg > box.MaxLonDeg {
		return orbit.BoundingBox{}, fmt.Errorf("bbox %q: min exceeds max", spec)
	}
	return box, nil
}

func fatal(ctx context.Context, log logging.Logger, what string, err error) {
	log.Error(ctx, what, logging.String("error", err.Error()))
	os.Exit(1)
}
