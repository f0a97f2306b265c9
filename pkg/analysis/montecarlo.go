package analysis

import (
	"context"
	"math"
	"math/rand/v2"
	"runtime"

	"github.com/edp1096/cmos-inverter/pkg/inverter"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Variation is the 3σ spread of each parameter as a fraction of its nominal
// value.
type Variation struct {
	Vt   float64 `yaml:"vt" mapstructure:"vt"`
	Beta float64 `yaml:"beta" mapstructure:"beta"`
}

type MonteCarloOptions struct {
	Samples        int
	Seed           uint64
	Variation      Variation
	NumPoints      int
	MinNoiseMargin float64 // A sample passes when NML and NMH both reach it
	Concurrency    int
}

type MonteCarloSample struct {
	Config  Configuration
	Vm      float64
	Margins NoiseMargins
	Err     error
}

type Statistic struct {
	Mean   float64 `json:"mean" yaml:"mean"`
	StdDev float64 `json:"std" yaml:"std"`
}

type MonteCarloResult struct {
	Samples   []MonteCarloSample `yaml:"-"`
	Vm        Statistic          `yaml:"vm"`
	NML       Statistic          `yaml:"nml"`
	NMH       Statistic          `yaml:"nmh"`
	Evaluated int                `yaml:"evaluated"`
	Failed    int                `yaml:"failed"`
	Yield     float64            `yaml:"yield"` // Passing fraction of evaluated samples
}

// drawConfigurations perturbs the nominal configuration. Draws are sequential
// so a seed always yields the same population regardless of concurrency.
func drawConfigurations(base Configuration, mco MonteCarloOptions) []Configuration {
	src := rand.NewPCG(mco.Seed, mco.Seed^0x9e3779b97f4a7c15)
	vt := distuv.Normal{Mu: 1, Sigma: mco.Variation.Vt / 3, Src: src}
	beta := distuv.Normal{Mu: 1, Sigma: mco.Variation.Beta / 3, Src: src}

	cfgs := make([]Configuration, mco.Samples)
	for i := range cfgs {
		c := base
		c.NMOS.Vt *= vt.Rand()
		c.PMOS.Vt *= vt.Rand()
		c.NMOS.Beta *= beta.Rand()
		c.PMOS.Beta *= beta.Rand()
		cfgs[i] = c
	}
	return cfgs
}

func statistic(xs []float64) Statistic {
	if len(xs) == 0 {
		return Statistic{Mean: math.NaN(), StdDev: math.NaN()}
	}
	if len(xs) == 1 {
		return Statistic{Mean: xs[0]}
	}
	mean, std := stat.MeanStdDev(xs, nil)
	return Statistic{Mean: mean, StdDev: std}
}

// MonteCarlo evaluates Vm and the noise margins over a seeded population of
// process variations.
func MonteCarlo(ctx context.Context, base Configuration, mco MonteCarloOptions, opts ...Option) (MonteCarloResult, error) {
	if err := base.Validate(); err != nil {
		return MonteCarloResult{}, err
	}
	if mco.Samples < 1 {
		return MonteCarloResult{}, inverter.InvalidParameter("samples", float64(mco.Samples), "must be at least 1")
	}
	if mco.NumPoints < 3 {
		return MonteCarloResult{}, inverter.InvalidParameter("numPoints", float64(mco.NumPoints), "need at least 3 points")
	}
	if mco.Variation.Vt < 0 || mco.Variation.Beta < 0 {
		return MonteCarloResult{}, inverter.InvalidParameter("variation", math.Min(mco.Variation.Vt, mco.Variation.Beta), "must be non-negative")
	}
	o := newOptions(opts)

	cfgs := drawConfigurations(base, mco)
	samples := make([]MonteCarloSample, len(cfgs))

	limit := mco.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, cfg := range cfgs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			samples[i] = evaluateSample(cfg, mco.NumPoints, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return MonteCarloResult{}, err
	}

	res := MonteCarloResult{Samples: samples}
	var vms, nmls, nmhs []float64
	passed := 0
	for _, s := range samples {
		if s.Err != nil {
			res.Failed++
			continue
		}
		res.Evaluated++
		vms = append(vms, s.Vm)
		nmls = append(nmls, s.Margins.NML)
		nmhs = append(nmhs, s.Margins.NMH)
		if s.Margins.NML >= mco.MinNoiseMargin && s.Margins.NMH >= mco.MinNoiseMargin {
			passed++
		}
	}
	res.Vm, res.NML, res.NMH = statistic(vms), statistic(nmls), statistic(nmhs)
	if res.Evaluated > 0 {
		res.Yield = float64(passed) / float64(res.Evaluated)
	}

	o.Logger.Info("monte carlo done", "samples", mco.Samples, "evaluated", res.Evaluated, "failed", res.Failed, "yield", res.Yield)
	return res, nil
}

func evaluateSample(cfg Configuration, numPoints int, opts []Option) MonteCarloSample {
	s := MonteCarloSample{Config: cfg}

	vtc, _, err := ComputeVTC(cfg, numPoints, opts...)
	if err != nil {
		s.Err = err
		return s
	}
	if vtc.MarginsErr != nil {
		s.Err = vtc.MarginsErr
		return s
	}
	if vtc.VmErr != nil {
		s.Err = vtc.VmErr
		return s
	}

	s.Vm = vtc.SwitchingThreshold
	s.Margins = vtc.Margins
	return s
}
