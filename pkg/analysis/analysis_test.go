package analysis

import (
	"context"
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/edp1096/cmos-inverter/pkg/device"
	"github.com/edp1096/cmos-inverter/pkg/inverter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMethod(t *testing.T) {
	tests := map[string]Method{
		"":              ForwardEuler,
		"Euler":         ForwardEuler,
		"rk4":           RK4,
		"be":            BackwardEuler,
		"bdf2":          Gear2,
		" trapezoidal ": Trapezoidal,
	}
	for in, want := range tests {
		got, err := ParseMethod(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseMethod("verlet")
	assert.ErrorIs(t, err, inverter.ErrInvalidParameter)

	assert.Equal(t, "gear2", Gear2.String())
	assert.Equal(t, "method(9)", Method(9).String())
	assert.True(t, Trapezoidal.Implicit())
	assert.False(t, RK4.Implicit())
}

func TestSweepInputs(t *testing.T) {
	vins := SweepInputs(3.3, 34)
	require.Len(t, vins, 34)
	assert.Equal(t, 0.0, vins[0])
	assert.Equal(t, 3.3, vins[33])
	assert.InDelta(t, 0.1, vins[1], 1e-12)
}

func TestSweepRejectsBadInput(t *testing.T) {
	_, _, err := Sweep(inverter.Default(), 1)
	assert.ErrorIs(t, err, inverter.ErrInvalidParameter)

	_, _, err = Sweep(inverter.Default(), 11, WithMaxIter(0))
	assert.ErrorIs(t, err, inverter.ErrInvalidParameter)

	_, _, err = Sweep(inverter.Default(), 11, WithVoltageTolerance(2))
	assert.ErrorIs(t, err, inverter.ErrInvalidParameter)
}

func TestSweepDiagnostics(t *testing.T) {
	cfg := inverter.Default()
	cfg.Vdd = 1.5 // dead zone between the thresholds

	curve, diag, err := Sweep(cfg, 16)
	require.NoError(t, err)
	assert.NotEmpty(t, diag)
	assert.Equal(t, 16, len(curve)+len(diag))
	assert.Equal(t, len(diag), diag.Count(inverter.ErrNoCrossingFound))
	assert.ErrorIs(t, diag.Err(), inverter.ErrNoCrossingFound)
	assert.Contains(t, diag.String(), "no crossing")

	assert.NoError(t, Diagnostics(nil).Err())
}

func TestComputeVTCThresholdUndefined(t *testing.T) {
	cfg := inverter.Default()
	cfg.Vdd = 1.5

	res, diag, err := ComputeVTC(cfg, 16)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Curve)
	assert.NotEmpty(t, diag)
	assert.ErrorIs(t, res.VmErr, inverter.ErrNoCrossingFound)
	assert.True(t, math.IsNaN(res.SwitchingThreshold))

	res, _, err = ComputeVTC(inverter.Default(), 16)
	require.NoError(t, err)
	assert.NoError(t, res.VmErr)
	assert.False(t, math.IsNaN(res.SwitchingThreshold))
}

func TestSolveConvergenceFailure(t *testing.T) {
	_, err := Solve(inverter.Default(), 2.2, WithMaxIter(3))
	assert.ErrorIs(t, err, inverter.ErrConvergenceFailure)

	var se *inverter.SampleError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 3, se.Iterations)
}

func TestSolveNonFiniteInput(t *testing.T) {
	_, err := Solve(inverter.Default(), math.NaN())
	assert.ErrorIs(t, err, inverter.ErrInvalidParameter)
}

type countingObserver struct {
	solves, failures, transients int
}

func (c *countingObserver) ObserveSolve(_ int, err error) {
	c.solves++
	if err != nil {
		c.failures++
	}
}

func (c *countingObserver) ObserveTransient(Method, int, error) { c.transients++ }

func TestObserver(t *testing.T) {
	obs := &countingObserver{}
	_, _, err := Sweep(inverter.Default(), 21, WithObserver(obs))
	require.NoError(t, err)
	assert.Equal(t, 21, obs.solves)
	assert.Zero(t, obs.failures)

	_, err = Integrate(inverter.Default(), device.DC(0), 1e-9, 10, WithObserver(obs))
	require.NoError(t, err)
	assert.Equal(t, 1, obs.transients)
}

func curveOf(pts ...[2]float64) VTCCurve {
	c := make(VTCCurve, len(pts))
	for i, p := range pts {
		c[i] = OperatingPoint{Vin: p[0], Vout: p[1]}
	}
	return c
}

func TestNoiseMarginsUndefined(t *testing.T) {
	_, err := ComputeNoiseMargins(curveOf([2]float64{0, 1}, [2]float64{1, 0}))
	assert.ErrorIs(t, err, inverter.ErrNoiseMarginUndefined)

	// Gain never exceeds 0.5
	flat := curveOf([2]float64{0, 5}, [2]float64{1, 4.5}, [2]float64{2, 4}, [2]float64{3, 3.5})
	_, err = ComputeNoiseMargins(flat)
	assert.ErrorIs(t, err, inverter.ErrNoiseMarginUndefined)
}

func TestNoiseMarginsPiecewise(t *testing.T) {
	// Slope -0.5, then -3, then -0.5
	curve := curveOf(
		[2]float64{0, 5}, [2]float64{1, 4.5}, [2]float64{2, 1.5}, [2]float64{3, 1}, [2]float64{4, 0.5},
	)
	nm, err := ComputeNoiseMargins(curve)
	require.NoError(t, err)

	assert.Greater(t, nm.VIH, nm.VIL)
	assert.Equal(t, 5.0, nm.VOH)
	assert.Equal(t, 0.5, nm.VOL)
	assert.InDelta(t, nm.VIL-nm.VOL, nm.NML, 1e-12)
	assert.InDelta(t, nm.VOH-nm.VIH, nm.NMH, 1e-12)
}

func TestGain(t *testing.T) {
	g := Gain(curveOf([2]float64{0, 4}, [2]float64{1, 2}, [2]float64{2, 0}))
	assert.Equal(t, []float64{2, 2, 2}, g)
	assert.Equal(t, []float64{0}, Gain(curveOf([2]float64{0, 1})))
}

func trace(step float64, vin, vout []float64) TransientTrace {
	tr := TransientTrace{Step: step}
	for i := range vin {
		tr.Samples = append(tr.Samples, TransientSample{Time: float64(i) * step, Vin: vin[i], Vout: vout[i]})
	}
	return tr
}

func TestMeasureTiming(t *testing.T) {
	vin := []float64{0, 0, 5, 5, 5, 5, 0, 0, 0, 0}
	vout := []float64{5, 5, 5, 4, 1, 0, 0, 1, 4, 5}
	tm := MeasureTiming(trace(1, vin, vout), 5)

	assert.InDelta(t, 2.0, tm.TpHL, 1e-12) // vin crosses at 1.5, vout at 3.5
	assert.InDelta(t, 2.0, tm.TpLH, 1e-12) // vin crosses at 5.5, vout at 7.5
	assert.InDelta(t, 2.0, tm.PropagationDelay, 1e-12)
	assert.InDelta(t, 2.0, tm.FallTime, 1e-12) // 4.5 V at 2.5, 0.5 V at 4.5
	assert.InDelta(t, 2.0, tm.RiseTime, 1e-12)
}

func TestMeasureTimingMissingEdges(t *testing.T) {
	tm := MeasureTiming(trace(1, []float64{0, 0, 0}, []float64{5, 5, 5}), 5)
	assert.True(t, math.IsNaN(tm.TpHL))
	assert.True(t, math.IsNaN(tm.TpLH))
	assert.True(t, math.IsNaN(tm.PropagationDelay))
	assert.True(t, math.IsNaN(tm.RiseTime))
}

func TestTraceFrom(t *testing.T) {
	tr := trace(1, []float64{0, 1, 2, 3}, []float64{3, 2, 1, 0})
	w := tr.From(1.5)
	require.Equal(t, 2, w.Len())
	assert.Equal(t, 2.0, w.Samples[0].Time)
	assert.Equal(t, 0, tr.From(10).Len())
	assert.Equal(t, 3.0, tr.Duration())
}

func TestIntegrateValidation(t *testing.T) {
	cfg := inverter.Default()
	cases := []struct {
		name     string
		duration float64
		steps    int
		opts     []Option
	}{
		{"zero duration", 0, 10, nil},
		{"infinite duration", math.Inf(1), 10, nil},
		{"no steps", 1e-9, 0, nil},
		{"step ceiling", 1e-9, 11, []Option{WithMaxSteps(10)}},
		{"nan initial output", 1e-9, 10, []Option{WithInitialOutput(math.NaN())}},
	}
	for _, tc := range cases {
		_, err := Integrate(cfg, device.DC(0), tc.duration, tc.steps, tc.opts...)
		assert.ErrorIs(t, err, inverter.ErrInvalidParameter, tc.name)
	}

	_, err := Integrate(cfg, nil, 1e-9, 10)
	assert.ErrorIs(t, err, inverter.ErrInvalidParameter)
}

func TestPowerValidation(t *testing.T) {
	cfg := inverter.Default()

	_, err := ComputeStatic(cfg, 0)
	assert.ErrorIs(t, err, inverter.ErrInvalidParameter)
	_, err = ComputeDynamic(cfg, -1)
	assert.ErrorIs(t, err, inverter.ErrInvalidParameter)
	_, err = ComputeDynamicActivity(cfg, 1e6, 1.5)
	assert.ErrorIs(t, err, inverter.ErrInvalidParameter)
	_, err = PowerSweep(cfg, 1e9, 1e3, 10, 1e-10, 1)
	assert.ErrorIs(t, err, inverter.ErrInvalidParameter)

	half, err := ComputePowerActivity(cfg, 1e6, 1e-10, 0.5)
	require.NoError(t, err)
	full, err := ComputePower(cfg, 1e6, 1e-10)
	require.NoError(t, err)
	assert.InDelta(t, full.Dynamic/2, half.Dynamic, 1e-18)
}

func TestPowerSweepEndpoints(t *testing.T) {
	reports, err := PowerSweep(inverter.Default(), 1e3, 1e9, 7, 1e-10, 1)
	require.NoError(t, err)
	require.Len(t, reports, 7)
	assert.InDelta(t, 1e3, reports[0].Frequency, 1e-6)
	assert.InDelta(t, 1e9, reports[6].Frequency, 1)
	for i := 1; i < len(reports); i++ {
		assert.Greater(t, reports[i].Total, reports[i-1].Total)
	}
}

func TestPowerFromTrace(t *testing.T) {
	cfg := inverter.Default()
	cfg.LoadCapacitance = 1e-12
	// Each half period is several pull-up time constants, so every cycle swings rail to rail
	wf, err := device.NewPulse(0, cfg.Vdd, 1e-9, 0.1e-9, 0.1e-9, 40e-9, 80e-9)
	require.NoError(t, err)

	tr, err := Integrate(cfg, wf, 160e-9, 32000, WithMethod(RK4))
	require.NoError(t, err)

	outs := tr.Outputs()
	require.Less(t, slices.Min(outs), 0.01*cfg.Vdd)
	assert.InDelta(t, 12.5e6, SwitchingFrequency(tr, cfg.Vdd), 1e5)

	r, err := PowerFromTrace(cfg, tr, 1e-10)
	require.NoError(t, err)
	// At least the CL·Vdd² charging energy per cycle
	assert.Greater(t, r.Dynamic, 0.8*cfg.LoadCapacitance*cfg.Vdd*cfg.Vdd*r.Frequency)
}

func TestBatchWaveformErrorStaysLocal(t *testing.T) {
	low, _ := inverter.Preset("1.8v")
	high, _ := inverter.Preset("5v")
	errLowSupply := errors.New("pulse needs at least 2 V")

	results := RunBatch(context.Background(), []Configuration{low, high}, BatchOptions{
		Transient: &TransientRequest{
			Waveform: func(cfg Configuration) (device.Waveform, error) {
				if cfg.Vdd < 2 {
					return nil, errLowSupply
				}
				return device.Step{V1: cfg.Vdd, T0: 1e-9}, nil
			},
			Duration: 20e-9,
			Steps:    200,
		},
	})

	require.Len(t, results, 2)
	assert.ErrorIs(t, results[0].Err, errLowSupply)
	assert.Contains(t, results[0].Err.Error(), "input waveform")
	assert.Nil(t, results[0].Transient)

	require.NoError(t, results[1].Err)
	require.NotNil(t, results[1].Transient)
	assert.Equal(t, 201, results[1].Transient.Trace.Len())
}
