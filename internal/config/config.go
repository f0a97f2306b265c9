package config

import (
	"fmt"
	"strings"

	"github.com/edp1096/cmos-inverter/pkg/device"
	"github.com/edp1096/cmos-inverter/pkg/inverter"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "INVERTER"

// Technology is one inverter of a run file. A preset supplies defaults that
// the explicit fields override. When kp is set, β is derived from kp·W/L.
type Technology struct {
	Name   string  `mapstructure:"name"`
	Preset string  `mapstructure:"preset"`
	Vdd    float64 `mapstructure:"vdd"`
	Vtn    float64 `mapstructure:"vtn"`
	Vtp    float64 `mapstructure:"vtp"`
	BetaN  float64 `mapstructure:"betaN"`
	BetaP  float64 `mapstructure:"betaP"`
	CL     float64 `mapstructure:"cl"`

	KPN float64 `mapstructure:"kpN"`
	KPP float64 `mapstructure:"kpP"`
	WN  float64 `mapstructure:"wN"`
	WP  float64 `mapstructure:"wP"`
	L   float64 `mapstructure:"l"`
}

type WaveformConfig struct {
	Kind   string    `mapstructure:"kind"` // dc, step, pulse, pwl, sine
	V0     float64   `mapstructure:"v0"`
	V1     float64   `mapstructure:"v1"` // 0 means Vdd
	Delay  float64   `mapstructure:"delay"`
	Rise   float64   `mapstructure:"rise"`
	Fall   float64   `mapstructure:"fall"`
	Width  float64   `mapstructure:"width"`
	Period float64   `mapstructure:"period"`
	Freq   float64   `mapstructure:"freq"`
	Phase  float64   `mapstructure:"phase"`
	Times  []float64 `mapstructure:"times"`
	Values []float64 `mapstructure:"values"`
}

type TransientConfig struct {
	Duration float64        `mapstructure:"duration"`
	Steps    int            `mapstructure:"steps"`
	Method   string         `mapstructure:"method"`
	Waveform WaveformConfig `mapstructure:"waveform"`
}

type PowerConfig struct {
	Frequency float64 `mapstructure:"frequency"`
	Leakage   float64 `mapstructure:"leakage"`
	Activity  float64 `mapstructure:"activity"`
	FMin      float64 `mapstructure:"fmin"`
	FMax      float64 `mapstructure:"fmax"`
	Points    int     `mapstructure:"points"`
}

type MonteCarloConfig struct {
	Samples        int     `mapstructure:"samples"`
	Seed           uint64  `mapstructure:"seed"`
	VtVariation    float64 `mapstructure:"vtVariation"`
	BetaVariation  float64 `mapstructure:"betaVariation"`
	MinNoiseMargin float64 `mapstructure:"minNoiseMargin"`
}

type SolverConfig struct {
	MaxIter   int     `mapstructure:"maxIter"`
	Tolerance float64 `mapstructure:"tolerance"`
}

type OutputConfig struct {
	Dir         string   `mapstructure:"dir"`
	Formats     []string `mapstructure:"formats"` // csv, png, yaml, text
	MetricsFile string   `mapstructure:"metricsFile"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type Config struct {
	Technologies []Technology     `mapstructure:"technologies"`
	Points       int              `mapstructure:"points"`
	Concurrency  int              `mapstructure:"concurrency"`
	Solver       SolverConfig     `mapstructure:"solver"`
	Transient    TransientConfig  `mapstructure:"transient"`
	Power        PowerConfig      `mapstructure:"power"`
	MonteCarlo   MonteCarloConfig `mapstructure:"montecarlo"`
	Output       OutputConfig     `mapstructure:"output"`
	Log          LogConfig        `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("points", 201)
	v.SetDefault("concurrency", 0)
	v.SetDefault("solver.maxIter", 100)
	v.SetDefault("solver.tolerance", 1e-6)
	v.SetDefault("transient.duration", 40e-9)
	v.SetDefault("transient.steps", 4000)
	v.SetDefault("transient.method", "euler")
	v.SetDefault("transient.waveform.kind", "pulse")
	v.SetDefault("transient.waveform.delay", 2e-9)
	v.SetDefault("transient.waveform.rise", 1e-9)
	v.SetDefault("transient.waveform.fall", 1e-9)
	v.SetDefault("transient.waveform.width", 9e-9)
	v.SetDefault("transient.waveform.period", 20e-9)
	v.SetDefault("power.frequency", 100e6)
	v.SetDefault("power.leakage", 1e-9/5.0) // 1 nW at 5 V
	v.SetDefault("power.activity", 1.0)
	v.SetDefault("power.fmin", 1e3)
	v.SetDefault("power.fmax", 1e9)
	v.SetDefault("power.points", 50)
	v.SetDefault("montecarlo.samples", 200)
	v.SetDefault("montecarlo.seed", 1)
	v.SetDefault("montecarlo.vtVariation", 0.1)
	v.SetDefault("montecarlo.betaVariation", 0.1)
	v.SetDefault("montecarlo.minNoiseMargin", 0.5)
	v.SetDefault("output.dir", ".")
	v.SetDefault("output.formats", []string{"text"})
	v.SetDefault("log.level", "info")
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"points":       "points",
	"concurrency":  "concurrency",
	"max-iter":     "solver.maxIter",
	"tolerance":    "solver.tolerance",
	"duration":     "transient.duration",
	"steps":        "transient.steps",
	"method":       "transient.method",
	"frequency":    "power.frequency",
	"leakage":      "power.leakage",
	"activity":     "power.activity",
	"samples":      "montecarlo.samples",
	"seed":         "montecarlo.seed",
	"out":          "output.dir",
	"format":       "output.formats",
	"metrics-file": "output.metricsFile",
	"log-level":    "log.level",
	"log-dev":      "log.development",
}

// Load merges defaults, the optional run file, INVERTER_* environment
// variables and the flags that were set, in increasing priority.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "reading config %s", path)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, errors.Wrapf(err, "binding flag %s", name)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}
	if len(cfg.Technologies) == 0 {
		cfg.Technologies = []Technology{{Preset: "5v"}}
	}
	return &cfg, nil
}

func override(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

// Configuration resolves the technology into an inverter configuration.
func (t Technology) Configuration() (inverter.Configuration, error) {
	cfg := inverter.Default()
	if t.Preset != "" {
		p, ok := inverter.Preset(strings.ToLower(t.Preset))
		if !ok {
			return inverter.Configuration{}, fmt.Errorf("unknown preset %q (have %s)", t.Preset, strings.Join(inverter.PresetNames(), ", "))
		}
		cfg = p
	}

	if t.Name != "" {
		cfg.Name = t.Name
	}
	override(&cfg.Vdd, t.Vdd)
	override(&cfg.NMOS.Vt, t.Vtn)
	override(&cfg.PMOS.Vt, t.Vtp)
	override(&cfg.NMOS.Beta, t.BetaN)
	override(&cfg.PMOS.Beta, t.BetaP)
	override(&cfg.LoadCapacitance, t.CL)

	l := t.L
	if l == 0 {
		l = 1
	}
	if t.KPN != 0 {
		w := t.WN
		if w == 0 {
			w = l
		}
		cfg.NMOS.Beta = inverter.BetaFromGeometry(t.KPN, w, l)
	}
	if t.KPP != 0 {
		w := t.WP
		if w == 0 {
			w = l
		}
		cfg.PMOS.Beta = inverter.BetaFromGeometry(t.KPP, w, l)
	}

	if cfg.Name == "" {
		cfg.Name = fmt.Sprintf("%gV", cfg.Vdd)
	}
	return cfg, cfg.Validate()
}

// Configurations resolves every technology of the run.
func (c *Config) Configurations() ([]inverter.Configuration, error) {
	out := make([]inverter.Configuration, 0, len(c.Technologies))
	for i, t := range c.Technologies {
		cfg, err := t.Configuration()
		if err != nil {
			return nil, errors.Wrapf(err, "technology %d", i)
		}
		out = append(out, cfg)
	}
	return out, nil
}

// Build returns the input waveform for a supply voltage. A zero V1 means the
// waveform swings to vdd.
func (w WaveformConfig) Build(vdd float64) (device.Waveform, error) {
	v1 := w.V1
	if v1 == 0 {
		v1 = vdd
	}

	switch strings.ToLower(w.Kind) {
	case "dc":
		return device.DC(w.V0), nil
	case "step":
		return device.Step{V0: w.V0, V1: v1, T0: w.Delay}, nil
	case "", "pulse":
		return device.NewPulse(w.V0, v1, w.Delay, w.Rise, w.Fall, w.Width, w.Period)
	case "pwl":
		return device.NewPWL(w.Times, w.Values)
	case "sine", "sin":
		return device.Sine{Offset: (w.V0 + v1) / 2, Amplitude: (v1 - w.V0) / 2, Freq: w.Freq, Phase: w.Phase}, nil
	}
	return nil, fmt.Errorf("unknown waveform kind %q", w.Kind)
}
