package analysis

import (
	"fmt"
	"math"

	"github.com/edp1096/cmos-inverter/internal/consts"
	"github.com/edp1096/cmos-inverter/pkg/circuit"
	"github.com/edp1096/cmos-inverter/pkg/device"
	"github.com/edp1096/cmos-inverter/pkg/inverter"
	"github.com/edp1096/cmos-inverter/pkg/util"
)

// implicitStatus picks the companion model for the next sub-step. Gear2 drops
// to first order whenever the step size changed, and trapezoidal starts with
// one backward Euler step so the capacitor has a consistent current.
func implicitStatus(m Method, t, h, prevH float64, accepted int, o Options) *device.CircuitStatus {
	status := &device.CircuitStatus{
		Time:     t,
		TimeStep: h,
		Gmin:     o.convergence.gmin,
		Mode:     device.TransientAnalysis,
		Method:   int(util.GearMethod),
		Order:    1,
	}

	switch m {
	case Gear2:
		if accepted > 0 && h == prevH {
			status.Order = 2
		}
	case Trapezoidal:
		if accepted > 0 {
			status.Method = int(util.TrapezoidalMethod)
			status.Order = 2
		}
	}
	return status
}

// newtonStep solves the inverter MNA system at one time point starting from
// guess. It returns a fresh solution vector.
func newtonStep(inv *circuit.Inverter, status *device.CircuitStatus, guess []float64, o Options) ([]float64, error) {
	mat := inv.GetMatrix()
	oldSolution := append([]float64(nil), guess...)

	for iter := 0; iter < o.MaxIter; iter++ {
		mat.Clear()

		if err := inv.UpdateNonlinearVoltages(oldSolution); err != nil {
			return nil, fmt.Errorf("updating nonlinear voltages: %v", err)
		}
		if err := inv.Stamp(status); err != nil {
			return nil, fmt.Errorf("stamping error: %v", err)
		}
		if err := mat.Solve(); err != nil {
			return nil, fmt.Errorf("%w: %v", inverter.ErrConvergenceFailure, err)
		}

		solution := mat.Solution()
		converged := true
		for i := 1; i < len(solution) && i < len(oldSolution); i++ {
			if !finite(solution[i]) {
				return nil, fmt.Errorf("%w: non-finite newton iterate at t=%g", inverter.ErrConvergenceFailure, status.Time)
			}
			diff := math.Abs(solution[i] - oldSolution[i])
			tol := o.convergence.reltol*math.Max(math.Abs(solution[i]), math.Abs(oldSolution[i])) + o.convergence.abstol
			if diff > tol {
				converged = false
			}
		}

		if converged && iter > 0 {
			return append([]float64(nil), solution...), nil
		}
		copy(oldSolution, solution)
	}

	return nil, fmt.Errorf("%w: newton failed in %d iterations at t=%g", inverter.ErrConvergenceFailure, o.MaxIter, status.Time)
}

// integrateImplicit advances the inverter netlist with Newton iteration at
// every step. A step that does not converge is retried with half the
// sub-step, and the sub-step grows back after each accepted solution.
func integrateImplicit(cfg Configuration, wf device.Waveform, dt float64, stepCount int, o Options, trace *TransientTrace) error {
	inv, err := circuit.NewInverter(cfg, wf, o.Logger)
	if err != nil {
		return err
	}
	defer inv.Destroy()

	v0 := trace.Samples[0].Vout
	inv.Load.SetInitialVoltage(v0)

	x := make([]float64, inv.Size()+1)
	x[inv.VddNode] = cfg.Vdd
	x[inv.InNode] = wf.Voltage(0)
	x[inv.OutNode] = v0

	t, prevH := 0.0, 0.0
	accepted := 0
	for k := 1; k <= stepCount; k++ {
		tEnd := float64(k) * dt
		h := dt
		halvings := 0

		for tEnd-t > 1e-9*dt {
			h = math.Min(h, tEnd-t)
			status := implicitStatus(o.Method, t+h, h, prevH, accepted, o)

			solution, err := newtonStep(inv, status, x, o)
			if err != nil {
				if halvings >= consts.MAX_HALVINGS {
					return &inverter.StepError{Step: k, Time: tEnd, Err: fmt.Errorf("%w: %w", inverter.ErrIntegrationUnstable, err)}
				}
				halvings++
				h /= 2
				o.Logger.V(1).Info("halving time step", "t", t, "h", h, "error", err.Error())
				continue
			}

			solution[inv.OutNode] = clamp(solution[inv.OutNode], 0, cfg.Vdd)
			inv.Update(solution, status)
			x = solution
			t += h
			prevH = h
			accepted++
			h = math.Min(2*h, dt)
		}

		t = tEnd
		trace.Samples = append(trace.Samples, TransientSample{Time: tEnd, Vin: wf.Voltage(tEnd), Vout: x[inv.OutNode]})
	}
	return nil
}
