package analysis

import (
	"fmt"
	"math"

	"github.com/edp1096/cmos-inverter/internal/consts"
	"github.com/edp1096/cmos-inverter/pkg/device"
	"github.com/edp1096/cmos-inverter/pkg/inverter"
)

// OperatingPoint is the DC solution for one input voltage.
type OperatingPoint struct {
	Vin         float64 `json:"vin" yaml:"vin"`
	Vout        float64 `json:"vout" yaml:"vout"`
	NmosCurrent float64 `json:"in" yaml:"in"`
	PmosCurrent float64 `json:"ip" yaml:"ip"`
	Residual    float64 `json:"residual" yaml:"residual"` // In - Ip
	Iterations  int     `json:"iterations" yaml:"iterations"`

	NmosRegion device.Region `json:"-" yaml:"-"`
	PmosRegion device.Region `json:"-" yaml:"-"`
}

// Solver finds the output voltage where the NMOS and PMOS currents balance.
//
// f(vout) = In(vin, vout) - Ip(vin, vout) is non-decreasing in vout: In grows
// with the NMOS drain voltage and Ip shrinks as the PMOS source-drain voltage
// falls. f(0) <= 0 <= f(Vdd) for every vin, so bisection over [0, Vdd] always
// brackets a root unless both transistors are off and the output floats.
type Solver struct {
	cfg  Configuration
	opts Options
	tolV float64
}

// Configuration is re-exported so callers of this package rarely need to
// import pkg/inverter directly.
type Configuration = inverter.Configuration

func NewSolver(cfg Configuration, opts ...Option) (*Solver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := newOptions(opts)
	if err := o.validate(); err != nil {
		return nil, err
	}

	return &Solver{cfg: cfg, opts: o, tolV: o.VoltageTolerance * cfg.Vdd}, nil
}

func newSolverFromOptions(cfg Configuration, o Options) *Solver {
	return &Solver{cfg: cfg, opts: o, tolV: o.VoltageTolerance * cfg.Vdd}
}

// VoltageTolerance is the absolute output voltage tolerance in volts.
func (s *Solver) VoltageTolerance() float64 {
	return s.tolV
}

// Tolerance bounds |In - Ip| at any returned operating point.
func (s *Solver) Tolerance() float64 {
	return (s.cfg.NMOS.Beta+s.cfg.PMOS.Beta)*s.cfg.Vdd*s.tolV + consts.CURRENT_ABSTOL
}

// currentTolerance is the largest |f| reachable within tolV of the root at
// this input: the triode output conductances at vds=0 bound df/dvout.
func (s *Solver) currentTolerance(vin float64) float64 {
	gn := s.cfg.NMOS.Beta * math.Max(vin-s.cfg.NMOS.Vt, 0)
	gp := s.cfg.PMOS.Beta * math.Max(s.cfg.Vdd-vin+s.cfg.PMOS.Vt, 0)
	return (gn+gp)*s.tolV + consts.CURRENT_ABSTOL
}

func (s *Solver) balance(vin, vout float64) float64 {
	return s.cfg.NmosCurrent(vin, vout) - s.cfg.PmosCurrent(vin, vout)
}

func (s *Solver) point(vin, vout float64, iter int) OperatingPoint {
	in := s.cfg.NmosCurrent(vin, vout)
	ip := s.cfg.PmosCurrent(vin, vout)
	nr, pr := s.cfg.Regions(vin, vout)
	return OperatingPoint{
		Vin:         vin,
		Vout:        vout,
		NmosCurrent: in,
		PmosCurrent: ip,
		Residual:    in - ip,
		Iterations:  iter,
		NmosRegion:  nr,
		PmosRegion:  pr,
	}
}

func (s *Solver) fail(vin float64, iter int, err error) (OperatingPoint, error) {
	s.opts.Logger.V(1).Info("operating point failed", "vin", vin, "iterations", iter, "error", err.Error())
	s.opts.Observer.ObserveSolve(iter, err)
	return OperatingPoint{}, &inverter.SampleError{Vin: vin, Iterations: iter, Err: err}
}

func (s *Solver) done(vin, vout float64, iter int) (OperatingPoint, error) {
	s.opts.Observer.ObserveSolve(iter, nil)
	return s.point(vin, vout, iter), nil
}

// Solve returns the operating point at vin. Failures are *inverter.SampleError
// wrapping ErrNoCrossingFound or ErrConvergenceFailure.
func (s *Solver) Solve(vin float64) (OperatingPoint, error) {
	if !finite(vin) {
		return OperatingPoint{}, inverter.InvalidParameter("vin", vin, "must be finite")
	}

	vdd := s.cfg.Vdd
	nmosOn := vin-s.cfg.NMOS.Vt > 0
	pmosOn := vdd-vin+s.cfg.PMOS.Vt > 0
	if !nmosOn && !pmosOn {
		return s.fail(vin, 0, fmt.Errorf("%w: both transistors cut off, output floats", inverter.ErrNoCrossingFound))
	}

	lo, hi := 0.0, vdd
	flo, fhi := s.balance(vin, lo), s.balance(vin, hi)

	switch {
	case flo == 0:
		return s.done(vin, lo, 0)
	case fhi == 0:
		return s.done(vin, hi, 0)
	case math.Signbit(flo) == math.Signbit(fhi):
		// No sign change: accept the rail only if it is a root within tolerance
		vout, f := lo, flo
		if math.Abs(fhi) < math.Abs(flo) {
			vout, f = hi, fhi
		}
		if math.Abs(f) <= s.currentTolerance(vin) {
			return s.done(vin, vout, 0)
		}
		return s.fail(vin, 0, fmt.Errorf("%w: f(0)=%g, f(Vdd)=%g", inverter.ErrNoCrossingFound, flo, fhi))
	}

	for iter := 1; iter <= s.opts.MaxIter; iter++ {
		mid := lo + (hi-lo)/2
		fm := s.balance(vin, mid)

		if fm == 0 || (hi-lo)/2 <= s.tolV {
			return s.done(vin, mid, iter)
		}

		if math.Signbit(fm) == math.Signbit(flo) {
			lo, flo = mid, fm
		} else {
			hi = mid
		}
	}

	return s.fail(vin, s.opts.MaxIter, inverter.ErrConvergenceFailure)
}

// Solve is a one-shot operating point with default options.
func Solve(cfg Configuration, vin float64, opts ...Option) (OperatingPoint, error) {
	s, err := NewSolver(cfg, opts...)
	if err != nil {
		return OperatingPoint{}, err
	}
	return s.Solve(vin)
}
