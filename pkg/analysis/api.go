package analysis

import (
	"fmt"
	"math"

	"github.com/edp1096/cmos-inverter/pkg/device"
)

// VTCResult is the transfer curve with its derived figures. The curve is
// valid even when MarginsErr or VmErr is set. SwitchingThreshold is NaN
// whenever VmErr is set.
type VTCResult struct {
	Curve              VTCCurve     `json:"curve" yaml:"curve"`
	Margins            NoiseMargins `json:"margins" yaml:"margins"`
	MarginsErr         error        `json:"-" yaml:"-"`
	SwitchingThreshold float64      `json:"vm" yaml:"vm"`
	VmErr              error        `json:"-" yaml:"-"`
}

// ComputeVTC sweeps the transfer curve, then derives noise margins and Vm.
func ComputeVTC(cfg Configuration, numPoints int, opts ...Option) (VTCResult, Diagnostics, error) {
	curve, diag, err := Sweep(cfg, numPoints, opts...)
	if err != nil {
		return VTCResult{}, nil, err
	}

	res := VTCResult{Curve: curve, SwitchingThreshold: math.NaN()}
	res.Margins, res.MarginsErr = ComputeNoiseMargins(curve)
	if vm, err := SwitchingThreshold(cfg, opts...); err != nil {
		res.VmErr = fmt.Errorf("switching threshold: %w", err)
	} else {
		res.SwitchingThreshold = vm
	}
	return res, diag, nil
}

// TransientResult is a trace and its timing. On IntegrationUnstable the trace
// is partial and Timing is measured on what exists.
type TransientResult struct {
	Trace  TransientTrace `json:"trace" yaml:"trace"`
	Timing Timing         `json:"timing" yaml:"timing"`
}

func ComputeTransient(cfg Configuration, wf device.Waveform, duration float64, stepCount int, opts ...Option) (TransientResult, error) {
	trace, err := Integrate(cfg, wf, duration, stepCount, opts...)
	res := TransientResult{Trace: trace, Timing: MeasureTiming(trace, cfg.Vdd)}
	return res, err
}

// ComputePower is the leakage plus CL·Vdd²·f budget.
func ComputePower(cfg Configuration, frequency, leakage float64) (PowerReport, error) {
	return powerReport(cfg, frequency, leakage, 1)
}

// ComputePowerActivity is ComputePower with the switching term scaled by an
// activity factor in (0, 1].
func ComputePowerActivity(cfg Configuration, frequency, leakage, alpha float64) (PowerReport, error) {
	return powerReport(cfg, frequency, leakage, alpha)
}
