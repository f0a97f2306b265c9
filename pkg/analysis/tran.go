package analysis

import (
	"fmt"
	"math"
	"strings"

	"github.com/edp1096/cmos-inverter/pkg/device"
	"github.com/edp1096/cmos-inverter/pkg/inverter"
)

// Method selects the time integration scheme of a transient run.
type Method int

const (
	ForwardEuler Method = iota
	RK4
	BackwardEuler
	Gear2
	Trapezoidal
)

var methodNames = map[Method]string{
	ForwardEuler:  "euler",
	RK4:           "rk4",
	BackwardEuler: "be",
	Gear2:         "gear2",
	Trapezoidal:   "trap",
}

func (m Method) String() string {
	if name, ok := methodNames[m]; ok {
		return name
	}
	return fmt.Sprintf("method(%d)", int(m))
}

// Implicit reports whether the method solves the MNA system by Newton
// iteration at every step.
func (m Method) Implicit() bool {
	return m == BackwardEuler || m == Gear2 || m == Trapezoidal
}

// ParseMethod accepts the String form and a few common aliases.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "euler", "fe", "forward-euler":
		return ForwardEuler, nil
	case "rk4", "runge-kutta":
		return RK4, nil
	case "be", "backward-euler":
		return BackwardEuler, nil
	case "gear", "gear2", "bdf2":
		return Gear2, nil
	case "trap", "trapezoidal", "tr":
		return Trapezoidal, nil
	}
	return 0, fmt.Errorf("%w: unknown integration method %q", inverter.ErrInvalidParameter, s)
}

// stepper advances the output voltage by one explicit step from t.
type stepper func(f func(t, v float64) float64, t, v, dt float64) float64

func eulerStep(f func(t, v float64) float64, t, v, dt float64) float64 {
	return v + dt*f(t, v)
}

func rk4Step(f func(t, v float64) float64, t, v, dt float64) float64 {
	k1 := f(t, v)
	k2 := f(t+dt/2, v+dt/2*k1)
	k3 := f(t+dt/2, v+dt/2*k2)
	k4 := f(t+dt, v+dt*k3)
	return v + dt/6*(k1+2*k2+2*k3+k4)
}

func (m Method) integrator() (stepper, error) {
	switch m {
	case ForwardEuler:
		return eulerStep, nil
	case RK4:
		return rk4Step, nil
	case BackwardEuler, Gear2, Trapezoidal:
		return nil, nil
	}
	return nil, inverter.InvalidParameter("method", float64(m), "unknown integration method")
}

// TransientSample is one point of a transient trace.
type TransientSample struct {
	Time float64 `json:"t" yaml:"t"`
	Vin  float64 `json:"vin" yaml:"vin"`
	Vout float64 `json:"vout" yaml:"vout"`
}

// TransientTrace holds samples at k·Step, k = 0..n.
type TransientTrace struct {
	Step    float64           `json:"step" yaml:"step"`
	Method  Method            `json:"-" yaml:"-"`
	Samples []TransientSample `json:"samples" yaml:"samples"`
}

func (tr TransientTrace) Len() int { return len(tr.Samples) }

func (tr TransientTrace) Times() []float64 {
	out := make([]float64, len(tr.Samples))
	for i, s := range tr.Samples {
		out[i] = s.Time
	}
	return out
}

func (tr TransientTrace) Inputs() []float64 {
	out := make([]float64, len(tr.Samples))
	for i, s := range tr.Samples {
		out[i] = s.Vin
	}
	return out
}

func (tr TransientTrace) Outputs() []float64 {
	out := make([]float64, len(tr.Samples))
	for i, s := range tr.Samples {
		out[i] = s.Vout
	}
	return out
}

// From returns the samples at or after t. The step and method are kept.
func (tr TransientTrace) From(t float64) TransientTrace {
	out := TransientTrace{Step: tr.Step, Method: tr.Method}
	for i, s := range tr.Samples {
		if s.Time >= t {
			out.Samples = tr.Samples[i:]
			break
		}
	}
	return out
}

// Duration is the time of the last sample.
func (tr TransientTrace) Duration() float64 {
	if len(tr.Samples) == 0 {
		return 0
	}
	return tr.Samples[len(tr.Samples)-1].Time
}

func validateTransient(cfg Configuration, duration float64, stepCount int, o Options) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := o.validate(); err != nil {
		return err
	}
	if !(duration > 0) || math.IsInf(duration, 0) {
		return inverter.InvalidParameter("duration", duration, "must be positive and finite")
	}
	if stepCount < 1 {
		return inverter.InvalidParameter("stepCount", float64(stepCount), "must be at least 1")
	}
	if stepCount > o.MaxSteps {
		return inverter.InvalidParameter("stepCount", float64(stepCount), fmt.Sprintf("exceeds the %d step ceiling", o.MaxSteps))
	}
	if o.InitialOutput != nil && !finite(*o.InitialOutput) {
		return inverter.InvalidParameter("initialOutput", *o.InitialOutput, "must be finite")
	}
	return nil
}

// initialOutput is the UIC value if given, else the operating point at t=0.
func initialOutput(cfg Configuration, wf device.Waveform, o Options) (float64, error) {
	if o.InitialOutput != nil {
		return clamp(*o.InitialOutput, 0, cfg.Vdd), nil
	}

	op, err := newSolverFromOptions(cfg, o).Solve(wf.Voltage(0))
	if err != nil {
		return 0, fmt.Errorf("initial operating point: %w", err)
	}
	return op.Vout, nil
}

// Integrate runs a fixed-step transient of dVout/dt = (Ip - In)/CL over
// stepCount steps of duration/stepCount. Vout is clamped to the rails after
// every step. A non-finite step returns the trace so far with a
// *inverter.StepError wrapping ErrIntegrationUnstable.
func Integrate(cfg Configuration, wf device.Waveform, duration float64, stepCount int, opts ...Option) (TransientTrace, error) {
	o := newOptions(opts)
	if err := validateTransient(cfg, duration, stepCount, o); err != nil {
		return TransientTrace{}, err
	}
	if wf == nil {
		return TransientTrace{}, fmt.Errorf("%w: nil input waveform", inverter.ErrInvalidParameter)
	}

	dt := duration / float64(stepCount)
	trace := TransientTrace{
		Step:    dt,
		Method:  o.Method,
		Samples: make([]TransientSample, 0, stepCount+1),
	}

	v0, err := initialOutput(cfg, wf, o)
	if err != nil {
		o.Observer.ObserveTransient(o.Method, 0, err)
		return trace, err
	}
	trace.Samples = append(trace.Samples, TransientSample{Time: 0, Vin: wf.Voltage(0), Vout: v0})

	if o.Method.Implicit() {
		err = integrateImplicit(cfg, wf, dt, stepCount, o, &trace)
	} else {
		err = integrateExplicit(cfg, wf, dt, stepCount, o, &trace)
	}

	steps := len(trace.Samples) - 1
	o.Observer.ObserveTransient(o.Method, steps, err)
	if err != nil {
		o.Logger.Info("transient failed", "config", cfg.Name, "method", o.Method.String(), "steps", steps, "error", err.Error())
		return trace, err
	}
	o.Logger.Info("transient done", "config", cfg.Name, "method", o.Method.String(), "steps", steps, "dt", dt)
	return trace, nil
}

func integrateExplicit(cfg Configuration, wf device.Waveform, dt float64, stepCount int, o Options, trace *TransientTrace) error {
	step, err := o.Method.integrator()
	if err != nil {
		return err
	}

	dvdt := func(t, v float64) float64 {
		vin := wf.Voltage(t)
		return (cfg.PmosCurrent(vin, v) - cfg.NmosCurrent(vin, v)) / cfg.LoadCapacitance
	}

	v := trace.Samples[0].Vout
	for k := 1; k <= stepCount; k++ {
		t := float64(k) * dt
		next := step(dvdt, float64(k-1)*dt, v, dt)
		if !finite(next) {
			return &inverter.StepError{Step: k, Time: t, Err: inverter.ErrIntegrationUnstable}
		}
		v = clamp(next, 0, cfg.Vdd)
		trace.Samples = append(trace.Samples, TransientSample{Time: t, Vin: wf.Voltage(t), Vout: v})
	}
	return nil
}
