package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/trident-sim/trident"
)

// This command reads a scenario, runs it and logs the summary statistics.

const defaultScenario = "~~unset~~"

var (
	scenarioPath string
	monteCarlo   bool
	raanSearch   bool
	metricsAddr  string
	verbose      bool
)

func init() {
	flag.StringVar(&scenarioPath, "scenario", defaultScenario, "scenario TOML file")
	flag.BoolVar(&monteCarlo, "montecarlo", false, "run the Monte Carlo campaign of the scenario")
	flag.BoolVar(&raanSearch, "raan", false, "search the RAAN which maximizes the access window")
	flag.StringVar(&metricsAddr, "metrics", "", "serve the campaign metrics on this address (e.g. :9090)")
	flag.BoolVar(&verbose, "verbose", false, "debug logging")
}

func main() {
	flag.Parse()
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stdout))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	if verbose {
		logger = level.NewFilter(logger, level.AllowDebug())
	} else {
		logger = level.NewFilter(logger, level.AllowInfo())
	}
	if scenarioPath == defaultScenario {
		level.Error(logger).Log("error", "no scenario provided")
		os.Exit(2)
	}
	sc, err := loadScenario(scenarioPath)
	if err != nil {
		level.Error(logger).Log("scenario", scenarioPath, "error", err)
		os.Exit(1)
	}
	sc.cfg.Logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if sc.align != "" {
		ref, err := trident.AlignToTarget(sc.cfg, sc.align == "ascending")
		if err != nil {
			level.Error(logger).Log("align", sc.align, "error", err)
			os.Exit(1)
		}
		sc.cfg.Reference = ref
		level.Info(logger).Log("align", sc.align, "reference", ref)
	}

	if raanSearch {
		res, err := trident.SolveRAAN(ctx, sc.cfg, sc.search)
		for _, c := range res.History {
			level.Debug(logger).Log("candidate", c)
		}
		if err != nil {
			level.Error(logger).Log("raan", res.Best, "error", err)
			os.Exit(1)
		}
		sc.cfg.Reference = sc.cfg.Reference.WithRAAN(res.Best.Angle)
		level.Info(logger).Log("raan(deg)", trident.Rad2deg(res.Best.Angle), "window", res.Best.Duration, "candidates", len(res.History))
	}

	if monteCarlo {
		if err := runCampaign(ctx, sc.cfg, logger); err != nil {
			level.Error(logger).Log("montecarlo", "failed", "error", err)
			os.Exit(1)
		}
		return
	}

	res, err := trident.Simulate(ctx, sc.cfg)
	if err != nil {
		level.Error(logger).Log("simulation", "failed", "error", err)
		os.Exit(1)
	}
	report(logger, sc.cfg, res)
}

func runCampaign(ctx context.Context, cfg trident.FormationConfiguration, logger log.Logger) error {
	var opts trident.CampaignOptions
	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		metrics, err := trident.NewCampaignMetrics(reg)
		if err != nil {
			return err
		}
		opts.Metrics = metrics
		srv := &http.Server{Addr: metricsAddr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				level.Error(logger).Log("metrics", metricsAddr, "error", err)
			}
		}()
		defer srv.Close()
	}
	campaign, err := trident.RunCampaign(ctx, cfg, opts)
	for _, t := range campaign.Trials {
		if t.FailureReason != trident.FailureNone {
			level.Warn(logger).Log("trial", t.Index, "seed", t.Seed, "reason", t.FailureReason, "error", t.Err)
		}
	}
	s := campaign.Summary
	level.Info(logger).Log("trials", s.Trials, "completed", s.Completed, "failed", s.Failed,
		"success", s.SuccessRate, "window", s.WindowRate, "geometry", s.GeometryRate, "Δv", s.DeltaVRate, "latency", s.LatencyRate)
	for _, m := range []struct {
		name string
		trident.MetricSummary
	}{
		{"window(s)", s.WindowDuration},
		{"aspect", s.MaxAspectRatio},
		{"annualΔv(m/s)", s.WorstAnnualΔv},
		{"maxLatency(s)", s.MaxLatency},
	} {
		level.Info(logger).Log("metric", m.name, "n", m.N, "mean", m.Mean, "std", m.StdDev, "p50", m.P50, "p95", m.P95, "min", m.Min, "max", m.Max)
	}
	return err
}

func report(logger log.Logger, cfg trident.FormationConfiguration, res trident.SimulationResult) {
	st := res.Statistics
	level.Info(logger).Log("window", res.Window, "required", cfg.MinWindowDuration, "pass", res.Window.Found() && res.Window.Duration() >= cfg.MinWindowDuration)
	level.Info(logger).Log("aspect.max", st.MaxAspectRatio, "aspect.mean", st.MeanAspectRatio, "side.mean(m)", st.MeanSideLength, "side.min(m)", st.MinSideLength, "side.max(m)", st.MaxSideLength)
	level.Info(logger).Log("ground.window.max(km)", st.MaxGroundDistanceInWindow/1e3, "ground.horizon.min(km)", st.MinGroundDistanceFullHorizon/1e3, "ground.horizon.max(km)", st.MaxGroundDistanceFullHorizon/1e3)
	for _, b := range res.DeltaV.Spacecraft {
		level.Info(logger).Log("spacecraft", b.ID, "maneuvers", b.Maneuvers, "acquisition(m/s)", b.Acquisition, "maintenance(m/s)", b.Maintenance, "commanded(m/s)", b.Commanded, "annual(m/s)", b.Annual, "pass", b.Pass)
	}
	level.Info(logger).Log("annualΔv.max(m/s)", res.DeltaV.MaxAnnual, "cap(m/s)", res.DeltaV.Cap, "margin(m/s)", res.DeltaV.Margin, "pass", res.DeltaV.Pass)
	if len(cfg.Stations) > 0 {
		l := res.Latency
		level.Info(logger).Log("contacts", len(res.Contacts), "latency.max", l.Max, "latency.mean", l.Mean, "unserved", l.Unserved, "ceiling", l.Ceiling, "pass", l.Pass)
	}
}
