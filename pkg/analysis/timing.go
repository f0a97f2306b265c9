package analysis

import "math"

// Timing holds the switching figures of a transient trace. Values that the
// trace does not contain are NaN.
type Timing struct {
	TpHL             float64 `json:"tphl" yaml:"tphl"`
	TpLH             float64 `json:"tplh" yaml:"tplh"`
	PropagationDelay float64 `json:"tp" yaml:"tp"`
	RiseTime         float64 `json:"tr" yaml:"tr"`
	FallTime         float64 `json:"tf" yaml:"tf"`
}

// crossing returns the first time at or after from where values pass level in
// the given direction, interpolated linearly between the bracketing samples.
func crossing(times, values []float64, level float64, rising bool, from float64) float64 {
	for i := 0; i+1 < len(values); i++ {
		if times[i+1] < from {
			continue
		}
		v0, v1 := values[i], values[i+1]
		var hit bool
		if rising {
			hit = v0 < level && v1 >= level
		} else {
			hit = v0 > level && v1 <= level
		}
		if !hit {
			continue
		}

		t := times[i] + (level-v0)*(times[i+1]-times[i])/(v1-v0)
		if t >= from {
			return t
		}
	}
	return math.NaN()
}

// MeasureTiming locates the 50 %, 10 % and 90 % crossings of vdd. tpHL runs
// from the first rising input edge to the next falling output edge, tpLH the
// other way round. The propagation delay is their mean, or whichever exists.
func MeasureTiming(trace TransientTrace, vdd float64) Timing {
	times := trace.Times()
	vin := trace.Inputs()
	vout := trace.Outputs()
	half, lo, hi := 0.5*vdd, 0.1*vdd, 0.9*vdd

	tm := Timing{TpHL: math.NaN(), TpLH: math.NaN(), PropagationDelay: math.NaN(), RiseTime: math.NaN(), FallTime: math.NaN()}

	if tin := crossing(times, vin, half, true, 0); !math.IsNaN(tin) {
		tm.TpHL = crossing(times, vout, half, false, tin) - tin
	}
	if tin := crossing(times, vin, half, false, 0); !math.IsNaN(tin) {
		tm.TpLH = crossing(times, vout, half, true, tin) - tin
	}

	switch {
	case !math.IsNaN(tm.TpHL) && !math.IsNaN(tm.TpLH):
		tm.PropagationDelay = (tm.TpHL + tm.TpLH) / 2
	case !math.IsNaN(tm.TpHL):
		tm.PropagationDelay = tm.TpHL
	case !math.IsNaN(tm.TpLH):
		tm.PropagationDelay = tm.TpLH
	}

	if t10 := crossing(times, vout, lo, true, 0); !math.IsNaN(t10) {
		tm.RiseTime = crossing(times, vout, hi, true, t10) - t10
	}
	if t90 := crossing(times, vout, hi, false, 0); !math.IsNaN(t90) {
		tm.FallTime = crossing(times, vout, lo, false, t90) - t90
	}

	return tm
}
