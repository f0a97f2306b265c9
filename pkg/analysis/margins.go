package analysis

import (
	"fmt"
	"math"

	"github.com/edp1096/cmos-inverter/pkg/inverter"
)

// NoiseMargins are the unity-gain figures of a VTC.
type NoiseMargins struct {
	VIL float64 `json:"vil" yaml:"vil"`
	VIH float64 `json:"vih" yaml:"vih"`
	VOH float64 `json:"voh" yaml:"voh"`
	VOL float64 `json:"vol" yaml:"vol"`
	NML float64 `json:"nml" yaml:"nml"`
	NMH float64 `json:"nmh" yaml:"nmh"`
}

func undefinedMargins(format string, args ...any) error {
	return fmt.Errorf("%w: %s", inverter.ErrNoiseMarginUndefined, fmt.Sprintf(format, args...))
}

// slopes returns forward differences dVout/dVin placed at segment midpoints.
func slopes(curve VTCCurve) (xs, ss []float64) {
	n := len(curve) - 1
	xs = make([]float64, n)
	ss = make([]float64, n)
	for i := 0; i < n; i++ {
		a, b := curve[i], curve[i+1]
		xs[i] = (a.Vin + b.Vin) / 2
		ss[i] = (b.Vout - a.Vout) / (b.Vin - a.Vin)
	}
	return xs, ss
}

// crossUnity interpolates x where the slope equals -1 between two samples.
func crossUnity(x0, s0, x1, s1 float64) float64 {
	if s1 == s0 {
		return x0
	}
	return x0 + (-1-s0)*(x1-x0)/(s1-s0)
}

// ComputeNoiseMargins derives VIL and VIH from the first and last points
// where the slope reaches -1. VOH and VOL are the end samples of the curve.
func ComputeNoiseMargins(curve VTCCurve) (NoiseMargins, error) {
	if len(curve) < 3 {
		return NoiseMargins{}, undefinedMargins("need at least 3 samples, got %d", len(curve))
	}

	xs, ss := slopes(curve)

	first, last := -1, -1
	for i, s := range ss {
		if s <= -1 {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		steepest := math.Inf(1)
		for _, s := range ss {
			steepest = math.Min(steepest, s)
		}
		return NoiseMargins{}, undefinedMargins("slope never reaches -1 (steepest %g)", steepest)
	}

	vil := xs[first]
	if first > 0 {
		vil = crossUnity(xs[first-1], ss[first-1], xs[first], ss[first])
	}
	vih := xs[last]
	if last < len(ss)-1 {
		vih = crossUnity(xs[last], ss[last], xs[last+1], ss[last+1])
	}
	if vil >= vih {
		return NoiseMargins{}, undefinedMargins("VIL %g not below VIH %g", vil, vih)
	}

	nm := NoiseMargins{
		VIL: vil,
		VIH: vih,
		VOH: curve[0].Vout,
		VOL: curve[len(curve)-1].Vout,
	}
	nm.NML = nm.VIL - nm.VOL
	nm.NMH = nm.VOH - nm.VIH
	return nm, nil
}

// Gain returns -dVout/dVin at every sample: central differences inside,
// one-sided at the ends.
func Gain(curve VTCCurve) []float64 {
	n := len(curve)
	gain := make([]float64, n)
	if n < 2 {
		return gain
	}
	for i := range curve {
		lo, hi := i-1, i+1
		if lo < 0 {
			lo = 0
		}
		if hi > n-1 {
			hi = n - 1
		}
		gain[i] = -(curve[hi].Vout - curve[lo].Vout) / (curve[hi].Vin - curve[lo].Vin)
	}
	return gain
}

// SwitchingThreshold finds Vm where Vout = Vin by bisection on the operating
// point.
func SwitchingThreshold(cfg Configuration, opts ...Option) (float64, error) {
	solver, err := NewSolver(cfg, opts...)
	if err != nil {
		return math.NaN(), err
	}

	g := func(vin float64) (float64, error) {
		op, err := solver.Solve(vin)
		if err != nil {
			return 0, err
		}
		return op.Vout - vin, nil
	}

	lo, hi := 0.0, cfg.Vdd
	glo, err := g(lo)
	if err != nil {
		return math.NaN(), err
	}

	for iter := 0; iter < solver.opts.MaxIter; iter++ {
		mid := lo + (hi-lo)/2
		gm, err := g(mid)
		if err != nil {
			return math.NaN(), err
		}
		if gm == 0 || (hi-lo)/2 <= solver.tolV {
			return mid, nil
		}
		if math.Signbit(gm) == math.Signbit(glo) {
			lo, glo = mid, gm
		} else {
			hi = mid
		}
	}

	return math.NaN(), &inverter.SampleError{Vin: lo, Iterations: solver.opts.MaxIter, Err: inverter.ErrConvergenceFailure}
}

// AnalyticSwitchingThreshold is the closed-form Vm with both devices saturated:
// Vm = (Vtn + r·(Vdd + Vtp)) / (1 + r), r = sqrt(βp/βn).
func AnalyticSwitchingThreshold(cfg Configuration) float64 {
	r := math.Sqrt(cfg.PMOS.Beta / cfg.NMOS.Beta)
	return (cfg.NMOS.Vt + r*(cfg.Vdd+cfg.PMOS.Vt)) / (1 + r)
}
