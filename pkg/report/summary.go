package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/edp1096/cmos-inverter/pkg/analysis"
	"github.com/edp1096/cmos-inverter/pkg/inverter"
	"github.com/edp1096/cmos-inverter/pkg/util"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Summary collects whatever analyses ran for one configuration. Nil sections
// are omitted from every output format.
type Summary struct {
	Config      inverter.Configuration     `yaml:"config"`
	VTC         *VTCSummary                `yaml:"vtc,omitempty"`
	Timing      *analysis.Timing           `yaml:"timing,omitempty"`
	Power       *analysis.PowerReport      `yaml:"power,omitempty"`
	MonteCarlo  *analysis.MonteCarloResult `yaml:"monte_carlo,omitempty"`
	Diagnostics []string                   `yaml:"diagnostics,omitempty"`
	Error       string                     `yaml:"error,omitempty"`
}

type VTCSummary struct {
	Points             int                    `yaml:"points"`
	SwitchingThreshold float64                `yaml:"vm"`
	Margins            *analysis.NoiseMargins `yaml:"margins,omitempty"`
	MarginsError       string                 `yaml:"margins_error,omitempty"`
	VmError            string                 `yaml:"vm_error,omitempty"`
}

func NewVTCSummary(res analysis.VTCResult) *VTCSummary {
	s := &VTCSummary{Points: len(res.Curve), SwitchingThreshold: res.SwitchingThreshold}
	if res.MarginsErr != nil {
		s.MarginsError = res.MarginsErr.Error()
	} else {
		m := res.Margins
		s.Margins = &m
	}
	if res.VmErr != nil {
		s.VmError = res.VmErr.Error()
	}
	return s
}

// FromBatch converts a batch item into a Summary.
func FromBatch(r analysis.BatchResult) Summary {
	s := Summary{Config: r.Config}
	if r.VTC != nil {
		s.VTC = NewVTCSummary(*r.VTC)
	}
	if r.Transient != nil {
		t := r.Transient.Timing
		s.Timing = &t
	}
	s.Power = r.Power
	for _, d := range r.Diagnostics {
		s.Diagnostics = append(s.Diagnostics, d.Error())
	}
	if r.Err != nil {
		s.Error = r.Err.Error()
	}
	return s
}

func WriteYAML(w io.Writer, summaries ...Summary) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	for _, s := range summaries {
		if err := enc.Encode(s); err != nil {
			return errors.Wrapf(err, "encoding summary %q", s.Config.Name)
		}
	}
	return errors.Wrap(enc.Close(), "closing yaml encoder")
}

const (
	rule     = "============================================================"
	thinRule = "----------------------------------------"
)

// WriteText prints the human readable report.
func WriteText(w io.Writer, s Summary) error {
	var b strings.Builder
	c := s.Config

	fmt.Fprintln(&b, rule)
	title := "CMOS INVERTER SIMULATION SUMMARY"
	if c.Name != "" {
		title += " (" + c.Name + ")"
	}
	fmt.Fprintln(&b, title)
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "Supply Voltage (Vdd):     %.2f V\n", c.Vdd)
	fmt.Fprintf(&b, "NMOS Threshold (Vtn):     %.2f V\n", c.NMOS.Vt)
	fmt.Fprintf(&b, "PMOS Threshold (Vtp):     %.2f V\n", c.PMOS.Vt)

	if s.VTC != nil {
		if s.VTC.VmError != "" {
			fmt.Fprintf(&b, "Switching Threshold (Vm): undefined: %s\n", s.VTC.VmError)
		} else {
			fmt.Fprintf(&b, "Switching Threshold (Vm): %.2f V\n", s.VTC.SwitchingThreshold)
		}
		fmt.Fprintln(&b, thinRule)
		fmt.Fprintln(&b, "NOISE MARGINS:")
		if m := s.VTC.Margins; m != nil {
			fmt.Fprintf(&b, "  VOH (Output High):      %.2f V\n", m.VOH)
			fmt.Fprintf(&b, "  VOL (Output Low):       %.2f V\n", m.VOL)
			fmt.Fprintf(&b, "  VIH (Input High):       %.2f V\n", m.VIH)
			fmt.Fprintf(&b, "  VIL (Input Low):        %.2f V\n", m.VIL)
			fmt.Fprintf(&b, "  NMH (High Margin):      %.2f V\n", m.NMH)
			fmt.Fprintf(&b, "  NML (Low Margin):       %.2f V\n", m.NML)
		} else {
			fmt.Fprintf(&b, "  undefined: %s\n", s.VTC.MarginsError)
		}
	}

	fmt.Fprintln(&b, thinRule)
	fmt.Fprintln(&b, "DEVICE PARAMETERS:")
	fmt.Fprintf(&b, "  βn (NMOS):             %.1f μA/V²\n", c.NMOS.Beta*1e6)
	fmt.Fprintf(&b, "  βp (PMOS):             %.1f μA/V²\n", c.PMOS.Beta*1e6)
	fmt.Fprintf(&b, "  βn/βp ratio:           %.2f\n", c.BetaRatio())
	fmt.Fprintf(&b, "  Load Capacitance:      %s\n", util.FormatValueFactor(c.LoadCapacitance, "F"))

	if t := s.Timing; t != nil {
		fmt.Fprintln(&b, thinRule)
		fmt.Fprintln(&b, "TIMING:")
		fmt.Fprintf(&b, "  tpHL (High to Low):    %s\n", util.FormatValueFactor(t.TpHL, "s"))
		fmt.Fprintf(&b, "  tpLH (Low to High):    %s\n", util.FormatValueFactor(t.TpLH, "s"))
		fmt.Fprintf(&b, "  Average tp:            %s\n", util.FormatValueFactor(t.PropagationDelay, "s"))
		fmt.Fprintf(&b, "  Rise Time (10-90%%):    %s\n", util.FormatValueFactor(t.RiseTime, "s"))
		fmt.Fprintf(&b, "  Fall Time (90-10%%):    %s\n", util.FormatValueFactor(t.FallTime, "s"))
	}

	if p := s.Power; p != nil {
		fmt.Fprintln(&b, thinRule)
		fmt.Fprintf(&b, "POWER at %s:\n", strings.TrimSpace(util.FormatFrequency(p.Frequency)))
		fmt.Fprintf(&b, "  Static:                %s\n", util.FormatValueFactor(p.Static, "W"))
		fmt.Fprintf(&b, "  Dynamic:               %s\n", util.FormatValueFactor(p.Dynamic, "W"))
		fmt.Fprintf(&b, "  Total:                 %s\n", util.FormatValueFactor(p.Total, "W"))
	}

	if mc := s.MonteCarlo; mc != nil {
		fmt.Fprintln(&b, thinRule)
		fmt.Fprintln(&b, "MONTE CARLO:")
		fmt.Fprintf(&b, "  Samples:               %d evaluated, %d failed\n", mc.Evaluated, mc.Failed)
		fmt.Fprintf(&b, "  Vm:                    %.3f ± %.3f V\n", mc.Vm.Mean, mc.Vm.StdDev)
		fmt.Fprintf(&b, "  NML:                   %.3f ± %.3f V\n", mc.NML.Mean, mc.NML.StdDev)
		fmt.Fprintf(&b, "  NMH:                   %.3f ± %.3f V\n", mc.NMH.Mean, mc.NMH.StdDev)
		fmt.Fprintf(&b, "  Yield:                 %.1f %%\n", mc.Yield*100)
	}

	if len(s.Diagnostics) > 0 {
		fmt.Fprintln(&b, thinRule)
		fmt.Fprintf(&b, "DIAGNOSTICS (%d):\n", len(s.Diagnostics))
		for _, d := range s.Diagnostics {
			fmt.Fprintf(&b, "  %s\n", d)
		}
	}
	if s.Error != "" {
		fmt.Fprintln(&b, thinRule)
		fmt.Fprintf(&b, "ERROR: %s\n", s.Error)
	}
	fmt.Fprintln(&b, rule)

	_, err := io.WriteString(w, b.String())
	return err
}
