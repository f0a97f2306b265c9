package report

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"github.com/edp1096/cmos-inverter/pkg/analysis"
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

var (
	blue   = color.RGBA{B: 200, A: 255}
	red    = color.RGBA{R: 200, A: 255}
	green  = color.RGBA{G: 140, A: 255}
	orange = color.RGBA{R: 230, G: 140, A: 255}
	purple = color.RGBA{R: 130, B: 160, A: 255}
	black  = color.RGBA{A: 255}
)

func toXYs(xs, ys []float64) (plotter.XYs, error) {
	if len(xs) != len(ys) || len(xs) == 0 {
		return nil, errors.Errorf("plot data invalid: %d x and %d y values", len(xs), len(ys))
	}

	pts := make(plotter.XYs, 0, len(xs))
	for i := range xs {
		if math.IsNaN(xs[i]) || math.IsNaN(ys[i]) {
			continue
		}
		pts = append(pts, plotter.XY{X: xs[i], Y: ys[i]})
	}
	if len(pts) == 0 {
		return nil, errors.New("plot data invalid: no finite points")
	}
	return pts, nil
}

func newLine(xs, ys []float64, c color.Color) (*plotter.Line, error) {
	pts, err := toXYs(xs, ys)
	if err != nil {
		return nil, err
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	line.LineStyle.Width = vg.Points(2)
	line.LineStyle.Color = c
	return line, nil
}

func level(y, xmin, xmax float64, c color.Color) *plotter.Function {
	fn := plotter.NewFunction(func(float64) float64 { return y })
	fn.XMin, fn.XMax = xmin, xmax
	fn.Samples = 2
	fn.LineStyle.Color = c
	fn.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
	return fn
}

func newPlot(title, xlabel, ylabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xlabel
	p.Y.Label.Text = ylabel
	p.Add(plotter.NewGrid())
	return p
}

// VTCPlot draws the transfer curve against the ideal inverter, with Vm and
// the output levels marked when they are known.
func VTCPlot(res analysis.VTCResult, vdd float64) (*plot.Plot, error) {
	p := newPlot("CMOS Inverter - Voltage Transfer Characteristic", "Input Voltage (V)", "Output Voltage (V)")
	p.X.Min, p.X.Max = 0, vdd
	p.Y.Min, p.Y.Max = 0, vdd

	vtc, err := newLine(res.Curve.Inputs(), res.Curve.Outputs(), blue)
	if err != nil {
		return nil, errors.Wrap(err, "vtc plot")
	}
	ideal, err := newLine([]float64{0, vdd}, []float64{vdd, 0}, red)
	if err != nil {
		return nil, errors.Wrap(err, "vtc plot")
	}
	ideal.LineStyle.Dashes = plotutil.Dashes(1)

	p.Add(vtc, ideal)
	p.Legend.Add("VTC", vtc)
	p.Legend.Add("Ideal Inverter", ideal)

	if !math.IsNaN(res.SwitchingThreshold) {
		vm, err := newLine([]float64{res.SwitchingThreshold, res.SwitchingThreshold}, []float64{0, vdd}, green)
		if err != nil {
			return nil, err
		}
		vm.LineStyle.Dashes = plotutil.Dashes(2)
		p.Add(vm)
		p.Legend.Add(fmt.Sprintf("Vm = %.2fV", res.SwitchingThreshold), vm)
	}

	if res.MarginsErr == nil {
		voh := level(res.Margins.VOH, 0, vdd, orange)
		vol := level(res.Margins.VOL, 0, vdd, purple)
		p.Add(voh, vol)
		p.Legend.Add(fmt.Sprintf("VOH = %.2fV", res.Margins.VOH), voh)
		p.Legend.Add(fmt.Sprintf("VOL = %.2fV", res.Margins.VOL), vol)
	}

	p.Legend.Top = true
	return p, nil
}

func GainPlot(curve analysis.VTCCurve, vdd float64) (*plot.Plot, error) {
	p := newPlot("Voltage Gain", "Input Voltage (V)", "Gain (dVout/dVin)")
	p.X.Min, p.X.Max = 0, vdd

	line, err := newLine(curve.Inputs(), analysis.Gain(curve), red)
	if err != nil {
		return nil, errors.Wrap(err, "gain plot")
	}
	p.Add(line)
	return p, nil
}

// CurrentPlot draws the supply current in µA. Cut-off endpoints are exactly
// zero, so the axis stays linear.
func CurrentPlot(curve analysis.VTCCurve, vdd float64) (*plot.Plot, error) {
	p := newPlot("Supply Current vs Input", "Input Voltage (V)", "Supply Current (uA)")
	p.X.Min, p.X.Max = 0, vdd

	ua := curve.SupplyCurrents()
	for i := range ua {
		ua[i] = math.Abs(ua[i]) * 1e6
	}
	line, err := newLine(curve.Inputs(), ua, green)
	if err != nil {
		return nil, errors.Wrap(err, "current plot")
	}
	p.Add(line)
	return p, nil
}

func MarginPlot(m analysis.NoiseMargins) (*plot.Plot, error) {
	p := newPlot("Noise Margins", "", "Noise Margin (V)")

	bars, err := plotter.NewBarChart(plotter.Values{m.NML, m.NMH}, vg.Points(40))
	if err != nil {
		return nil, errors.Wrap(err, "margin plot")
	}
	bars.Color = blue
	p.Add(bars)
	p.NominalX("NML", "NMH")
	return p, nil
}

// TransientPlot overlays input and output against time in ns.
func TransientPlot(trace analysis.TransientTrace, vdd float64) (*plot.Plot, error) {
	p := newPlot("CMOS Inverter - Transient Response", "Time (ns)", "Voltage (V)")
	p.Y.Min, p.Y.Max = -0.5, vdd+0.5

	ns := trace.Times()
	for i := range ns {
		ns[i] *= 1e9
	}

	in, err := newLine(ns, trace.Inputs(), blue)
	if err != nil {
		return nil, errors.Wrap(err, "transient plot")
	}
	out, err := newLine(ns, trace.Outputs(), red)
	if err != nil {
		return nil, errors.Wrap(err, "transient plot")
	}

	p.Add(in, out)
	p.Legend.Add("Input", in)
	p.Legend.Add("Output", out)
	p.Legend.Top = true
	return p, nil
}

// PowerPlot draws the sweep on log-log axes in nW.
func PowerPlot(reports []analysis.PowerReport) (*plot.Plot, error) {
	p := newPlot("CMOS Inverter - Power vs Frequency", "Frequency (Hz)", "Power (nW)")
	p.X.Scale, p.Y.Scale = plot.LogScale{}, plot.LogScale{}
	p.X.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Y.Tick.Marker = plot.LogTicks{Prec: -1}

	f := make([]float64, len(reports))
	static := make([]float64, len(reports))
	dynamic := make([]float64, len(reports))
	total := make([]float64, len(reports))
	for i, r := range reports {
		f[i] = r.Frequency
		static[i], dynamic[i], total[i] = r.Static*1e9, r.Dynamic*1e9, r.Total*1e9
	}

	for _, s := range []struct {
		name   string
		ys     []float64
		c      color.Color
		dashes []vg.Length
	}{
		{"Static Power", static, blue, plotutil.Dashes(1)},
		{"Dynamic Power", dynamic, red, nil},
		{"Total Power", total, black, nil},
	} {
		line, err := newLine(f, s.ys, s.c)
		if err != nil {
			return nil, errors.Wrap(err, "power plot")
		}
		line.LineStyle.Dashes = s.dashes
		p.Add(line)
		p.Legend.Add(s.name, line)
	}

	p.Legend.Top, p.Legend.Left = true, true
	return p, nil
}

// SweepPlot overlays the transfer curves of a batch. Items without a curve
// are skipped.
func SweepPlot(results []analysis.BatchResult) (*plot.Plot, error) {
	p := newPlot("Parameter Sweep", "Input Voltage (V)", "Output Voltage (V)")

	drawn := 0
	for i, r := range results {
		if r.VTC == nil || len(r.VTC.Curve) == 0 {
			continue
		}
		line, err := newLine(r.VTC.Curve.Inputs(), r.VTC.Curve.Outputs(), plotutil.Color(i))
		if err != nil {
			return nil, errors.Wrapf(err, "sweep plot %s", r.Config.Name)
		}
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("%s (Vdd = %gV)", r.Config.Name, r.Config.Vdd), line)
		drawn++
	}
	if drawn == 0 {
		return nil, errors.New("sweep plot: no transfer curves")
	}

	p.Legend.Top = true
	return p, nil
}

// Save renders p to path. The format follows the file extension.
func Save(p *plot.Plot, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "cannot create directory")
	}
	return errors.Wrapf(p.Save(8*vg.Inch, 6*vg.Inch, path), "saving %s", path)
}
