package analysis

import (
	"errors"
	"fmt"
	"math"

	"github.com/edp1096/cmos-inverter/internal/consts"
	"github.com/edp1096/cmos-inverter/pkg/inverter"
	"github.com/go-logr/logr"
)

// Observer receives engine events. Implementations must be safe for
// concurrent use because batch runs share one observer.
type Observer interface {
	ObserveSolve(iterations int, err error)
	ObserveTransient(method Method, steps int, err error)
}

type noopObserver struct{}

func (noopObserver) ObserveSolve(int, error)             {}
func (noopObserver) ObserveTransient(Method, int, error) {}

// Options tune the engines. The zero value is not useful; use newOptions.
type Options struct {
	MaxIter          int
	VoltageTolerance float64 // Relative to Vdd
	Method           Method
	InitialOutput    *float64 // UIC: skip the initial operating point
	MaxSteps         int

	Logger   logr.Logger
	Observer Observer

	convergence struct {
		reltol float64
		abstol float64
		gmin   float64
	}
}

type Option func(*Options)

func newOptions(opts []Option) Options {
	o := Options{
		MaxIter:          consts.MAX_ITER,
		VoltageTolerance: consts.VOLTAGE_RELTOL,
		Method:           ForwardEuler,
		MaxSteps:         consts.MAX_STEPS,
		Logger:           logr.Discard(),
		Observer:         noopObserver{},
	}
	o.convergence.reltol = consts.VOLTAGE_RELTOL
	o.convergence.abstol = 1e-12
	o.convergence.gmin = consts.GMIN

	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func WithMaxIter(n int) Option {
	return func(o *Options) { o.MaxIter = n }
}

// WithVoltageTolerance sets the solver tolerance as a fraction of Vdd.
func WithVoltageTolerance(rel float64) Option {
	return func(o *Options) { o.VoltageTolerance = rel }
}

func WithLogger(log logr.Logger) Option {
	return func(o *Options) { o.Logger = log }
}

func WithObserver(obs Observer) Option {
	return func(o *Options) {
		if obs == nil {
			obs = noopObserver{}
		}
		o.Observer = obs
	}
}

func WithMethod(m Method) Option {
	return func(o *Options) { o.Method = m }
}

// WithInitialOutput starts a transient run from vout instead of the
// operating point of the waveform at t=0.
func WithInitialOutput(vout float64) Option {
	return func(o *Options) { o.InitialOutput = &vout }
}

func WithMaxSteps(n int) Option {
	return func(o *Options) { o.MaxSteps = n }
}

func (o Options) validate() error {
	if o.MaxIter < 1 {
		return inverter.InvalidParameter("maxIter", float64(o.MaxIter), "must be at least 1")
	}
	if !(o.VoltageTolerance > 0) || o.VoltageTolerance >= 1 {
		return inverter.InvalidParameter("voltageTolerance", o.VoltageTolerance, "must be in (0, 1)")
	}
	if o.MaxSteps < 1 {
		return inverter.InvalidParameter("maxSteps", float64(o.MaxSteps), "must be at least 1")
	}
	if _, err := o.Method.integrator(); err != nil {
		return err
	}
	return nil
}

// Diagnostics collects the per-sample failures of a sweep.
type Diagnostics []*inverter.SampleError

// Err joins every failure, or returns nil for a clean sweep.
func (d Diagnostics) Err() error {
	if len(d) == 0 {
		return nil
	}
	errs := make([]error, len(d))
	for i, e := range d {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// Count returns how many failures match target.
func (d Diagnostics) Count(target error) int {
	n := 0
	for _, e := range d {
		if errors.Is(e, target) {
			n++
		}
	}
	return n
}

func (d Diagnostics) String() string {
	return fmt.Sprintf("%d failed samples (%d no crossing, %d not converged)",
		len(d), d.Count(inverter.ErrNoCrossingFound), d.Count(inverter.ErrConvergenceFailure))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
