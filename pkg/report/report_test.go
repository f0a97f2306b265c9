package report

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/edp1096/cmos-inverter/pkg/analysis"
	"github.com/edp1096/cmos-inverter/pkg/device"
	"github.com/edp1096/cmos-inverter/pkg/inverter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gopkg.in/yaml.v3"
)

func testVTC(t *testing.T) analysis.VTCResult {
	t.Helper()
	res, _, err := analysis.ComputeVTC(inverter.Default(), 51)
	require.NoError(t, err)
	return res
}

func TestWriteVTC(t *testing.T) {
	res := testVTC(t)

	var buf bytes.Buffer
	require.NoError(t, WriteVTC(&buf, res.Curve))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 52)
	assert.Equal(t, []string{"vin", "vout", "id_n", "id_p", "residual"}, records[0])
	assert.Equal(t, "0", records[1][0])
	assert.Equal(t, "5", records[1][1])
}

func TestWriteColumnsMismatch(t *testing.T) {
	var buf bytes.Buffer
	err := writeColumns(&buf, []string{"a", "b"}, []float64{1, 2}, []float64{1})
	assert.Error(t, err)

	err = writeColumns(&buf, []string{"a"}, []float64{1}, []float64{1})
	assert.Error(t, err)
}

func TestWriteMonteCarloFailedRows(t *testing.T) {
	samples := []analysis.MonteCarloSample{
		{Config: inverter.Default(), Vm: 2.5, Margins: analysis.NoiseMargins{NML: 2, NMH: 2}},
		{Config: inverter.Default(), Err: errors.New("no margins")},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteMonteCarlo(&buf, samples))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "2.5", records[1][4])
	assert.Equal(t, "NaN", records[2][4])
}

func TestWritePowerSweep(t *testing.T) {
	reports, err := analysis.PowerSweep(inverter.Default(), 1e3, 1e9, 7, 1e-10, 1)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WritePowerSweep(&buf, reports))
	assert.Equal(t, 8, strings.Count(buf.String(), "\n"))
}

func TestPlots(t *testing.T) {
	cfg := inverter.Default()
	res := testVTC(t)

	vtc, err := VTCPlot(res, cfg.Vdd)
	require.NoError(t, err)
	gain, err := GainPlot(res.Curve, cfg.Vdd)
	require.NoError(t, err)
	cur, err := CurrentPlot(res.Curve, cfg.Vdd)
	require.NoError(t, err)
	nm, err := MarginPlot(res.Margins)
	require.NoError(t, err)

	reports, err := analysis.PowerSweep(cfg, 1e3, 1e9, 10, 1e-10, 0.5)
	require.NoError(t, err)
	pw, err := PowerPlot(reports)
	require.NoError(t, err)

	for i, p := range []*plot.Plot{vtc, gain, cur, nm, pw} {
		path := filepath.Join(t.TempDir(), fmt.Sprintf("plot%d.svg", i))
		require.NoError(t, p.Save(4*vg.Inch, 3*vg.Inch, path))
	}
}

func TestTransientPlotSave(t *testing.T) {
	cfg := inverter.Default()
	wf := device.Step{V0: 0, V1: cfg.Vdd, T0: 1e-9}
	res, err := analysis.ComputeTransient(cfg, wf, 10e-9, 1000)
	require.NoError(t, err)

	p, err := TransientPlot(res.Trace, cfg.Vdd)
	require.NoError(t, err)
	require.NoError(t, Save(p, filepath.Join(t.TempDir(), "out", "tran.svg")))
}

func TestSweepPlotNeedsCurves(t *testing.T) {
	_, err := SweepPlot([]analysis.BatchResult{{Err: inverter.ErrInvalidParameter}})
	assert.Error(t, err)
}

func TestToXYsSkipsNaN(t *testing.T) {
	pts, err := toXYs([]float64{0, 1, 2}, []float64{1, math.NaN(), 3})
	require.NoError(t, err)
	assert.Len(t, pts, 2)

	_, err = toXYs([]float64{math.NaN()}, []float64{1})
	assert.Error(t, err)
}

func TestSummaryOutputs(t *testing.T) {
	res := testVTC(t)
	s := Summary{Config: inverter.Default(), VTC: NewVTCSummary(res)}
	p, err := analysis.ComputePower(s.Config, 100e6, 2e-10)
	require.NoError(t, err)
	s.Power = &p

	var text bytes.Buffer
	require.NoError(t, WriteText(&text, s))
	out := text.String()
	assert.Contains(t, out, "CMOS INVERTER SIMULATION SUMMARY")
	assert.Contains(t, out, "Switching Threshold (Vm): 2.24 V")
	assert.Contains(t, out, "Load Capacitance:      10.000 pF")
	assert.Contains(t, out, "POWER at 100.000 MHz:")

	var doc bytes.Buffer
	require.NoError(t, WriteYAML(&doc, s))

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(doc.Bytes(), &decoded))
	assert.Contains(t, decoded, "vtc")
	assert.Contains(t, decoded, "power")
	assert.NotContains(t, decoded, "timing")
}

func TestSummaryMarginsUndefined(t *testing.T) {
	res := analysis.VTCResult{SwitchingThreshold: math.NaN(), MarginsErr: inverter.ErrNoiseMarginUndefined}
	s := Summary{Config: inverter.Default(), VTC: NewVTCSummary(res), Error: "x"}

	var text bytes.Buffer
	require.NoError(t, WriteText(&text, s))
	assert.Contains(t, text.String(), "undefined: noise margin undefined")
	assert.Contains(t, text.String(), "ERROR: x")
}

func TestSummarySwitchingThresholdUndefined(t *testing.T) {
	res := analysis.VTCResult{SwitchingThreshold: math.NaN(), VmErr: inverter.ErrNoCrossingFound}
	s := Summary{Config: inverter.Default(), VTC: NewVTCSummary(res)}
	assert.Equal(t, inverter.ErrNoCrossingFound.Error(), s.VTC.VmError)

	var text bytes.Buffer
	require.NoError(t, WriteText(&text, s))
	assert.Contains(t, text.String(), "Switching Threshold (Vm): undefined: "+inverter.ErrNoCrossingFound.Error())
	assert.NotContains(t, text.String(), "NaN")
}
