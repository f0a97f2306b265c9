package analysis

import (
	"math"

	"github.com/edp1096/cmos-inverter/pkg/inverter"
	"gonum.org/v1/gonum/floats"
)

// PowerReport is the power budget at one switching frequency.
type PowerReport struct {
	Static         float64 `json:"static" yaml:"static"`
	Dynamic        float64 `json:"dynamic" yaml:"dynamic"`
	Total          float64 `json:"total" yaml:"total"`
	Frequency      float64 `json:"frequency" yaml:"frequency"`
	ActivityFactor float64 `json:"activity" yaml:"activity"`
}

func positive(name string, v float64) error {
	if !(v > 0) || math.IsInf(v, 0) {
		return inverter.InvalidParameter(name, v, "must be positive and finite")
	}
	return nil
}

// ComputeStatic is the leakage power leakage·Vdd.
func ComputeStatic(cfg Configuration, leakage float64) (float64, error) {
	if err := cfg.Validate(); err != nil {
		return 0, err
	}
	if err := positive("leakage", leakage); err != nil {
		return 0, err
	}
	return leakage * cfg.Vdd, nil
}

// ComputeDynamic is the switching power CL·Vdd²·f.
func ComputeDynamic(cfg Configuration, frequency float64) (float64, error) {
	return ComputeDynamicActivity(cfg, frequency, 1)
}

// ComputeDynamicActivity scales the switching power by an activity factor
// alpha in (0, 1].
func ComputeDynamicActivity(cfg Configuration, frequency, alpha float64) (float64, error) {
	if err := cfg.Validate(); err != nil {
		return 0, err
	}
	if err := positive("frequency", frequency); err != nil {
		return 0, err
	}
	if !(alpha > 0) || alpha > 1 {
		return 0, inverter.InvalidParameter("activity", alpha, "must be in (0, 1]")
	}
	return alpha * cfg.LoadCapacitance * cfg.Vdd * cfg.Vdd * frequency, nil
}

func powerReport(cfg Configuration, frequency, leakage, alpha float64) (PowerReport, error) {
	static, err := ComputeStatic(cfg, leakage)
	if err != nil {
		return PowerReport{}, err
	}
	dynamic, err := ComputeDynamicActivity(cfg, frequency, alpha)
	if err != nil {
		return PowerReport{}, err
	}
	return PowerReport{
		Static:         static,
		Dynamic:        dynamic,
		Total:          static + dynamic,
		Frequency:      frequency,
		ActivityFactor: alpha,
	}, nil
}

// PowerSweep evaluates the power budget on a log-spaced frequency grid.
func PowerSweep(cfg Configuration, fmin, fmax float64, points int, leakage, alpha float64) ([]PowerReport, error) {
	if err := positive("fmin", fmin); err != nil {
		return nil, err
	}
	if err := positive("fmax", fmax); err != nil {
		return nil, err
	}
	if fmax <= fmin {
		return nil, inverter.InvalidParameter("fmax", fmax, "must exceed fmin")
	}
	if points < 2 {
		return nil, inverter.InvalidParameter("points", float64(points), "need at least 2 points")
	}

	freqs := floats.LogSpan(make([]float64, points), fmin, fmax)
	reports := make([]PowerReport, 0, points)
	for _, f := range freqs {
		r, err := powerReport(cfg, f, leakage, alpha)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, nil
}

// SupplyEnergy integrates Vdd·Ip over the trace with the trapezoidal rule.
// Ip is the PMOS current, which is the current drawn from the supply.
func SupplyEnergy(cfg Configuration, trace TransientTrace) float64 {
	energy := 0.0
	for i := 1; i < len(trace.Samples); i++ {
		a, b := trace.Samples[i-1], trace.Samples[i]
		pa := cfg.Vdd * cfg.PmosCurrent(a.Vin, a.Vout)
		pb := cfg.Vdd * cfg.PmosCurrent(b.Vin, b.Vout)
		energy += 0.5 * (pa + pb) * (b.Time - a.Time)
	}
	return energy
}

// SwitchingFrequency counts rising 50 % output crossings per second.
func SwitchingFrequency(trace TransientTrace, vdd float64) float64 {
	duration := trace.Duration()
	if duration <= 0 {
		return 0
	}

	times, vout := trace.Times(), trace.Outputs()
	count := 0
	for from := 0.0; ; count++ {
		t := crossing(times, vout, vdd/2, true, from)
		if math.IsNaN(t) {
			break
		}
		from = math.Nextafter(t, math.Inf(1))
	}
	return float64(count) / duration
}

// PowerFromTrace derives the dynamic power from the supply energy of a trace
// rather than from CL·Vdd²·f. It includes short-circuit current.
func PowerFromTrace(cfg Configuration, trace TransientTrace, leakage float64) (PowerReport, error) {
	static, err := ComputeStatic(cfg, leakage)
	if err != nil {
		return PowerReport{}, err
	}
	duration := trace.Duration()
	if err := positive("duration", duration); err != nil {
		return PowerReport{}, err
	}

	dynamic := SupplyEnergy(cfg, trace) / duration
	return PowerReport{
		Static:         static,
		Dynamic:        dynamic,
		Total:          static + dynamic,
		Frequency:      SwitchingFrequency(trace, cfg.Vdd),
		ActivityFactor: 1,
	}, nil
}
