package main

import (
	"fmt"
	"io"
	"os"

	"github.com/edp1096/cmos-inverter/pkg/analysis"
	"github.com/edp1096/cmos-inverter/pkg/circuit"
	"github.com/edp1096/cmos-inverter/pkg/netlist"
	"github.com/edp1096/cmos-inverter/pkg/report"
	"github.com/edp1096/cmos-inverter/pkg/util"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gonum.org/v1/plot"
)

func newNetlistCommand(a *app) *cobra.Command {
	var printMatrix bool

	cmd := &cobra.Command{
		Use:   "netlist <deck>",
		Short: "Run the .op, .dc and .tran directives of a SPICE inverter deck",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return errors.Wrap(err, "reading netlist")
			}
			defer f.Close()

			deck, err := netlist.Parse(f)
			if err != nil {
				return err
			}
			inv, err := deck.Inverter()
			if err != nil {
				return errors.Wrapf(err, "%s", args[0])
			}
			a.log.Info("netlist loaded", "title", deck.Title, "elements", len(deck.Elements), "vdd", inv.Config.Vdd, "cl", inv.Config.LoadCapacitance)

			if printMatrix {
				ckt, err := circuit.NewInverter(inv.Config, inv.Input, a.log)
				if err != nil {
					return err
				}
				ckt.GetMatrix().PrintSystem(a.stdout)
				ckt.Destroy()
			}

			if !deck.OP && deck.DC == nil && deck.Tran == nil {
				deck.OP = true
			}
			if deck.OP {
				if err := a.netlistOP(inv); err != nil {
					return err
				}
			}
			if deck.DC != nil {
				if err := a.netlistDC(inv, *deck.DC); err != nil {
					return err
				}
			}
			if deck.Tran != nil {
				return a.netlistTran(inv, *deck.Tran)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&printMatrix, "print-matrix", false, "print the MNA system before solving")
	return cmd
}

func (a *app) netlistOP(inv *netlist.Inverter) error {
	vin := inv.Input.Voltage(0)
	op, err := analysis.Solve(inv.Config, vin, a.options()...)
	if err != nil {
		return err
	}

	w := a.stdout
	fmt.Fprintln(w, "\nNode Voltages:")
	fmt.Fprintf(w, "V(%s) = %s\n", inv.SupplyNode, util.FormatValueFactor(inv.Config.Vdd, "V"))
	fmt.Fprintf(w, "V(%s) = %s\n", inv.InputNode, util.FormatValueFactor(op.Vin, "V"))
	fmt.Fprintf(w, "V(%s) = %s\n", inv.OutputNode, util.FormatValueFactor(op.Vout, "V"))
	fmt.Fprintln(w, "\nDevice Currents:")
	fmt.Fprintf(w, "Id(NMOS) = %s  (%s)\n", util.FormatValueFactor(op.NmosCurrent, "A"), op.NmosRegion)
	fmt.Fprintf(w, "Id(PMOS) = %s  (%s)\n", util.FormatValueFactor(op.PmosCurrent, "A"), op.PmosRegion)
	return nil
}

// netlistDC sweeps the input over [0, Vdd]. The directive only sets the
// sample count.
func (a *app) netlistDC(inv *netlist.Inverter, dc netlist.DCParam) error {
	points := dc.Points()
	if points < 3 {
		points = 3
	}

	res, diag, err := analysis.ComputeVTC(inv.Config, points, a.options()...)
	if err != nil {
		return err
	}
	if len(diag) > 0 {
		a.log.Info("sweep diagnostics", "failed", len(diag), "summary", diag.String())
	}

	name := slug(inv.Config.Name)
	if a.wants("csv") {
		if err := a.writeFile("vtc_"+name+".csv", func(w io.Writer) error {
			return report.WriteVTC(w, res.Curve)
		}); err != nil {
			return err
		}
	}
	if err := a.savePlot("vtc_"+name, func() (*plot.Plot, error) {
		return report.VTCPlot(res, inv.Config.Vdd)
	}); err != nil {
		return err
	}

	w := a.stdout
	fmt.Fprintf(w, "\nDC Sweep Analysis Results (%d points):\n", len(res.Curve))
	for _, p := range res.Curve {
		fmt.Fprintf(w, "V=%-11s V(%s)=%-11s Id=%s\n",
			util.FormatValueFactor(p.Vin, "V"), inv.OutputNode,
			util.FormatValueFactor(p.Vout, "V"), util.FormatValueFactor(p.NmosCurrent, "A"))
	}

	s := report.Summary{Config: inv.Config, VTC: report.NewVTCSummary(res)}
	return a.writeSummaries([]report.Summary{s})
}

func (a *app) netlistTran(inv *netlist.Inverter, tp netlist.TranParam) error {
	method, err := analysis.ParseMethod(a.cfg.Transient.Method)
	if err != nil {
		return err
	}
	opts := a.options(analysis.WithMethod(method))
	if tp.UIC {
		opts = append(opts, analysis.WithInitialOutput(0))
	}

	res, err := analysis.ComputeTransient(inv.Config, inv.Input, tp.TStop, tp.Steps(), opts...)
	if err != nil {
		return err
	}
	trace := res.Trace.From(tp.TStart)

	name := slug(inv.Config.Name)
	if a.wants("csv") {
		if err := a.writeFile("tran_"+name+".csv", func(w io.Writer) error {
			return report.WriteTransient(w, trace)
		}); err != nil {
			return err
		}
	}
	if err := a.savePlot("tran_"+name, func() (*plot.Plot, error) {
		return report.TransientPlot(trace, inv.Config.Vdd)
	}); err != nil {
		return err
	}

	w := a.stdout
	fmt.Fprintf(w, "\nTransient Analysis Results (%d time points):\n", trace.Len())
	for _, s := range trace.Samples {
		fmt.Fprintf(w, "%9s  V(%s)=%s  V(%s)=%s\n", util.FormatValueFactor(s.Time, "s"),
			inv.InputNode, util.FormatValueFactor(s.Vin, "V"),
			inv.OutputNode, util.FormatValueFactor(s.Vout, "V"))
	}

	summary := report.Summary{Config: inv.Config, Timing: &res.Timing}
	return a.writeSummaries([]report.Summary{summary})
}
