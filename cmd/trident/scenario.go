package main

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/soniakeys/meeus/v3/julian"
	"github.com/spf13/viper"
	"github.com/trident-sim/trident"
	"gonum.org/v1/gonum/spatial/r3"
)

// scenario is a loaded scenario file.
type scenario struct {
	cfg    trident.FormationConfiguration
	align  string // "", "ascending" or "descending"
	search trident.AngleSearch
}

// loadScenario reads a TOML scenario. Keys which are not set keep the value
// of trident.DefaultConfiguration. Distances of the orbit, ground tolerance
// and station range are in km, angles in degrees.
func loadScenario(path string) (scenario, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return scenario{}, errors.Wrapf(err, "reading %s", path)
	}
	return parseScenario(v)
}

func parseScenario(v *viper.Viper) (scenario, error) {
	cfg := trident.DefaultConfiguration()
	sc := scenario{cfg: cfg}
	var err error

	// Mission
	if v.IsSet("mission.start") {
		if cfg.Start, err = confReadJDEorTime(v, "mission.start"); err != nil {
			return sc, err
		}
	}
	readDuration(v, "mission.horizon", &cfg.Horizon)
	readDuration(v, "mission.step", &cfg.Step)
	readDuration(v, "mission.timestep", &cfg.TimeStep)
	if v.IsSet("mission.model") {
		if cfg.Model, err = trident.ParsePropagationModel(v.GetString("mission.model")); err != nil {
			return sc, err
		}
	}

	// Reference orbit; its epoch is the start if not set.
	ref := cfg.Reference
	a, e := ref.A()/1e3, ref.E()
	i, Ω, ω, M := trident.Rad2deg(ref.I()), trident.Rad2deg(ref.RAAN()), trident.Rad2deg(ref.ArgPerigee()), trident.Rad2deg(ref.MeanAnomaly())
	readFloat(v, "orbit.sma", &a)
	readFloat(v, "orbit.ecc", &e)
	readFloat(v, "orbit.inc", &i)
	readFloat(v, "orbit.RAAN", &Ω)
	readFloat(v, "orbit.argPeri", &ω)
	readFloat(v, "orbit.mAnomaly", &M)
	epoch := cfg.Start
	if v.IsSet("orbit.epoch") {
		if epoch, err = confReadJDEorTime(v, "orbit.epoch"); err != nil {
			return sc, err
		}
	}
	if cfg.Reference, err = trident.NewOrbitalElements(a*1e3, e, i*deg, Ω*deg, ω*deg, M*deg, epoch); err != nil {
		return sc, err
	}
	sc.align = strings.ToLower(v.GetString("orbit.align"))
	if sc.align != "" && sc.align != "ascending" && sc.align != "descending" {
		return sc, &trident.ConfigurationError{Field: "orbit.align", Reason: fmt.Sprintf("unknown pass `%s`", sc.align)}
	}

	// Formation and target
	readFloat(v, "formation.side", &cfg.SideLength)
	if v.IsSet("formation.phase") {
		cfg.FormationPhase = v.GetFloat64("formation.phase") * deg
	}
	readFloat(v, "formation.aspect", &cfg.AspectRatioMax)
	lat, lon, alt := cfg.Target.Latitude/deg, cfg.Target.Longitude/deg, cfg.Target.Altitude
	readFloat(v, "target.lat", &lat)
	readFloat(v, "target.lon", &lon)
	readFloat(v, "target.alt", &alt)
	if cfg.Target, err = trident.NewGeoPoint(lat, lon, alt); err != nil {
		return sc, err
	}
	if v.IsSet("target.tolerance") {
		cfg.GroundTolerance = v.GetFloat64("target.tolerance") * 1e3
	}
	readDuration(v, "target.window", &cfg.MinWindowDuration)

	// Station keeping
	sk := &cfg.StationKeeping
	if v.IsSet("stationkeeping.enabled") {
		sk.Enabled = v.GetBool("stationkeeping.enabled")
	}
	readDuration(v, "stationkeeping.interval", &sk.Interval)
	readDuration(v, "stationkeeping.horizon", &sk.PredictionHorizon)
	readDuration(v, "stationkeeping.transfer", &sk.TransferTime)
	readFloat(v, "stationkeeping.tolerance", &sk.Tolerance)
	readFloat(v, "stationkeeping.targeting", &sk.TargetingTolerance)
	if v.IsSet("stationkeeping.iterations") {
		sk.MaxIterations = v.GetInt("stationkeeping.iterations")
	}

	// Spacecraft and atmosphere
	readFloat(v, "spacecraft.cd", &cfg.Drag.Cd)
	readFloat(v, "spacecraft.area", &cfg.Drag.Area)
	readFloat(v, "spacecraft.mass", &cfg.Drag.Mass)
	readFloat(v, "atmosphere.scale", &cfg.DensityScale)

	// Monte Carlo
	mc := &cfg.MonteCarlo
	if v.IsSet("montecarlo.trials") {
		mc.Trials = v.GetInt("montecarlo.trials")
	}
	if v.IsSet("montecarlo.seed") {
		mc.Seed = v.GetUint64("montecarlo.seed")
	}
	if v.IsSet("montecarlo.workers") {
		mc.Workers = v.GetInt("montecarlo.workers")
	}
	readFloat(v, "montecarlo.position", &mc.PositionSigma)
	readFloat(v, "montecarlo.velocity", &mc.VelocitySigma)
	readFloat(v, "montecarlo.cd", &mc.DragCoefficientSigma)
	readFloat(v, "montecarlo.density", &mc.DensitySigma)

	// Budgets
	readFloat(v, "budget.deltav", &cfg.Budgets.AnnualDeltaVCap)
	readDuration(v, "budget.latency", &cfg.Budgets.LatencyCeiling)
	readDuration(v, "budget.requests", &cfg.Budgets.LatencyRequestStep)

	// Ground stations
	for no := 0; v.IsSet(fmt.Sprintf("stations.%d", no)); no++ {
		key := func(k string) string { return fmt.Sprintf("stations.%d.%s", no, k) }
		name := v.GetString(key("name"))
		if name == "" {
			name = fmt.Sprintf("station-%d", no)
		}
		st, err := trident.NewStation(name, v.GetFloat64(key("lat")), v.GetFloat64(key("lon")), v.GetFloat64(key("alt")), v.GetFloat64(key("elevation")), v.GetFloat64(key("range"))*1e3, cfg.Body)
		if err != nil {
			return sc, err
		}
		cfg.Stations = append(cfg.Stations, st)
	}

	// Commanded maneuvers, R/I/C components in m/s.
	for no := 0; v.IsSet(fmt.Sprintf("burns.%d", no)); no++ {
		key := func(k string) string { return fmt.Sprintf("burns.%d.%s", no, k) }
		burnDT, err := confReadJDEorTime(v, key("date"))
		if err != nil {
			return sc, err
		}
		plane := strings.ToUpper(v.GetString(key("plane")))
		cfg.Maneuvers = append(cfg.Maneuvers, trident.PlannedManeuver{
			Time:       burnDT,
			Spacecraft: trident.SpacecraftID(plane),
			Δv:         r3.Vec{X: v.GetFloat64(key("R")), Y: v.GetFloat64(key("I")), Z: v.GetFloat64(key("C"))},
			Frame:      trident.LVLH,
		})
	}

	// RAAN search, in degrees around the reference RAAN if unset.
	span := 2.0
	readFloat(v, "raan.span", &span)
	sc.search = trident.AngleSearch{
		Min:  Ω*deg - span*deg,
		Max:  Ω*deg + span*deg,
		Step: 0.25 * deg,
	}
	if v.IsSet("raan.min") {
		sc.search.Min = v.GetFloat64("raan.min") * deg
	}
	if v.IsSet("raan.max") {
		sc.search.Max = v.GetFloat64("raan.max") * deg
	}
	if v.IsSet("raan.step") {
		sc.search.Step = v.GetFloat64("raan.step") * deg
	}
	sc.search.MinDuration = cfg.MinWindowDuration
	sc.search.Workers = mc.Workers

	sc.cfg = cfg
	return sc, cfg.Validate()
}

const deg = math.Pi / 180

func readFloat(v *viper.Viper, key string, dst *float64) {
	if v.IsSet(key) {
		*dst = v.GetFloat64(key)
	}
}

func readDuration(v *viper.Viper, key string, dst *time.Duration) {
	if v.IsSet(key) {
		*dst = v.GetDuration(key)
	}
}

// confReadJDEorTime reads a Julian date or a time stamp.
func confReadJDEorTime(v *viper.Viper, key string) (time.Time, error) {
	if jde := v.GetFloat64(key); jde != 0 {
		return julian.JDToTime(jde).UTC(), nil
	}
	dt := v.GetTime(key)
	if dt.IsZero() {
		return dt, &trident.ConfigurationError{Field: key, Reason: fmt.Sprintf("cannot read `%s` as a JDE or a time", v.GetString(key))}
	}
	return dt.UTC(), nil
}
