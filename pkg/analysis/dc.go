package analysis

import (
	"errors"

	"github.com/edp1096/cmos-inverter/pkg/inverter"
	"gonum.org/v1/gonum/floats"
)

// VTCCurve is the voltage transfer characteristic, strictly increasing in Vin.
type VTCCurve []OperatingPoint

func (c VTCCurve) Inputs() []float64 {
	out := make([]float64, len(c))
	for i, p := range c {
		out[i] = p.Vin
	}
	return out
}

func (c VTCCurve) Outputs() []float64 {
	out := make([]float64, len(c))
	for i, p := range c {
		out[i] = p.Vout
	}
	return out
}

// SupplyCurrents is the static current through the stack at every sample.
func (c VTCCurve) SupplyCurrents() []float64 {
	out := make([]float64, len(c))
	for i, p := range c {
		out[i] = p.NmosCurrent
	}
	return out
}

// SweepInputs returns numPoints evenly spaced inputs over [0, vdd], with the
// last sample exactly at vdd.
func SweepInputs(vdd float64, numPoints int) []float64 {
	vins := floats.Span(make([]float64, numPoints), 0, vdd)
	vins[0], vins[numPoints-1] = 0, vdd
	return vins
}

// Sweep solves the operating point at numPoints inputs. Samples that fail
// are left out of the curve and reported in Diagnostics.
func Sweep(cfg Configuration, numPoints int, opts ...Option) (VTCCurve, Diagnostics, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if numPoints < 2 {
		return nil, nil, inverter.InvalidParameter("numPoints", float64(numPoints), "need at least 2 points")
	}
	o := newOptions(opts)
	if err := o.validate(); err != nil {
		return nil, nil, err
	}

	solver := newSolverFromOptions(cfg, o)
	curve := make(VTCCurve, 0, numPoints)
	var diag Diagnostics

	for _, vin := range SweepInputs(cfg.Vdd, numPoints) {
		op, err := solver.Solve(vin)
		if err != nil {
			var se *inverter.SampleError
			if !errors.As(err, &se) {
				return nil, nil, err
			}
			diag = append(diag, se)
			continue
		}
		curve = append(curve, op)
	}

	o.Logger.Info("dc sweep done", "config", cfg.Name, "points", numPoints, "failed", len(diag))
	return curve, diag, nil
}
