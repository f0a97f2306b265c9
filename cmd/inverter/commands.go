package main

import (
	"io"
	"math"

	"github.com/edp1096/cmos-inverter/pkg/analysis"
	"github.com/edp1096/cmos-inverter/pkg/device"
	"github.com/edp1096/cmos-inverter/pkg/inverter"
	"github.com/edp1096/cmos-inverter/pkg/report"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gonum.org/v1/plot"
)

func transientFlags(fs *pflag.FlagSet) {
	fs.Float64("duration", 40e-9, "simulated time (s)")
	fs.Int("steps", 4000, "fixed time steps")
	fs.String("method", "euler", "integration method (euler, rk4, be, gear2, trap)")
}

func powerFlags(fs *pflag.FlagSet) {
	fs.Float64("frequency", 100e6, "switching frequency (Hz)")
	fs.Float64("leakage", 2e-10, "static leakage current (A)")
	fs.Float64("activity", 1, "activity factor in (0, 1]")
}

func newVTCCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "vtc",
		Short: "Transfer curve, noise margins and switching threshold",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgs, err := a.configurations()
			if err != nil {
				return err
			}

			results := analysis.RunBatch(cmd.Context(), cfgs, analysis.BatchOptions{
				NumPoints:   a.cfg.Points,
				Concurrency: a.cfg.Concurrency,
				Options:     a.options(),
			})
			a.metrics.ObserveBatch(results)
			return a.emit(results)
		},
	}
}

func (a *app) transientRequest() (*analysis.TransientRequest, analysis.Method, error) {
	method, err := analysis.ParseMethod(a.cfg.Transient.Method)
	if err != nil {
		return nil, 0, err
	}

	// Validate the waveform once so a bad run file fails before any work.
	if _, err := a.cfg.Transient.Waveform.Build(1); err != nil {
		return nil, 0, err
	}
	wc := a.cfg.Transient.Waveform
	req := &analysis.TransientRequest{
		Waveform: func(cfg inverter.Configuration) (device.Waveform, error) {
			return wc.Build(cfg.Vdd)
		},
		Duration: a.cfg.Transient.Duration,
		Steps:    a.cfg.Transient.Steps,
	}
	return req, method, nil
}

func newTransientCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tran",
		Short: "Transient response and propagation delays",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgs, err := a.configurations()
			if err != nil {
				return err
			}
			req, method, err := a.transientRequest()
			if err != nil {
				return err
			}

			results := analysis.RunBatch(cmd.Context(), cfgs, analysis.BatchOptions{
				Transient:   req,
				Concurrency: a.cfg.Concurrency,
				Options:     a.options(analysis.WithMethod(method)),
			})
			a.metrics.ObserveBatch(results)
			return a.emit(results)
		},
	}
	transientFlags(cmd.Flags())
	return cmd
}

func newPowerCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "power",
		Short: "Static and dynamic power, with a frequency sweep",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgs, err := a.configurations()
			if err != nil {
				return err
			}

			pc := a.cfg.Power
			results := analysis.RunBatch(cmd.Context(), cfgs, analysis.BatchOptions{
				Power:       &analysis.PowerRequest{Frequency: pc.Frequency, Leakage: pc.Leakage, Activity: pc.Activity},
				Concurrency: a.cfg.Concurrency,
				Options:     a.options(),
			})
			a.metrics.ObserveBatch(results)

			for _, r := range results {
				if r.Err != nil {
					continue
				}
				reports, err := analysis.PowerSweep(r.Config, pc.FMin, pc.FMax, pc.Points, pc.Leakage, pc.Activity)
				if err != nil {
					return err
				}
				name := slug(r.Config.Name)
				if a.wants("csv") {
					if err := a.writeFile("power_"+name+".csv", func(w io.Writer) error {
						return report.WritePowerSweep(w, reports)
					}); err != nil {
						return err
					}
				}
				if err := a.savePlot("power_"+name, func() (*plot.Plot, error) {
					return report.PowerPlot(reports)
				}); err != nil {
					return err
				}
			}
			return a.emit(results)
		},
	}
	powerFlags(cmd.Flags())
	return cmd
}

func newSweepCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Every analysis over every technology of the run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runSweep(cmd)
		},
	}
	transientFlags(cmd.Flags())
	powerFlags(cmd.Flags())
	return cmd
}

func (a *app) runSweep(cmd *cobra.Command) error {
	cfgs, err := a.configurations()
	if err != nil {
		return err
	}
	req, method, err := a.transientRequest()
	if err != nil {
		return err
	}

	pc := a.cfg.Power
	results := analysis.RunBatch(cmd.Context(), cfgs, analysis.BatchOptions{
		NumPoints:   a.cfg.Points,
		Transient:   req,
		Power:       &analysis.PowerRequest{Frequency: pc.Frequency, Leakage: pc.Leakage, Activity: pc.Activity},
		Concurrency: a.cfg.Concurrency,
		Options:     a.options(analysis.WithMethod(method)),
	})
	a.metrics.ObserveBatch(results)

	if len(results) > 1 {
		if err := a.savePlot("sweep_vtc", func() (*plot.Plot, error) {
			return report.SweepPlot(results)
		}); err != nil {
			return err
		}
	}
	return a.emit(results)
}

// emit writes the per-configuration files and summaries of a batch.
func (a *app) emit(results []analysis.BatchResult) error {
	summaries := make([]report.Summary, 0, len(results))
	for _, r := range results {
		if err := a.emitFiles(r); err != nil {
			return err
		}
		summaries = append(summaries, report.FromBatch(r))
	}

	if err := a.writeSummaries(summaries); err != nil {
		return err
	}
	return firstError(summaries)
}

func (a *app) emitFiles(r analysis.BatchResult) error {
	name := slug(r.Config.Name)
	vdd := r.Config.Vdd

	if vtc := r.VTC; vtc != nil {
		if a.wants("csv") {
			if err := a.writeFile("vtc_"+name+".csv", func(w io.Writer) error {
				return report.WriteVTC(w, vtc.Curve)
			}); err != nil {
				return err
			}
		}
		plots := map[string]func() (*plot.Plot, error){
			"vtc_":     func() (*plot.Plot, error) { return report.VTCPlot(*vtc, vdd) },
			"gain_":    func() (*plot.Plot, error) { return report.GainPlot(vtc.Curve, vdd) },
			"current_": func() (*plot.Plot, error) { return report.CurrentPlot(vtc.Curve, vdd) },
		}
		if vtc.MarginsErr == nil {
			plots["margins_"] = func() (*plot.Plot, error) { return report.MarginPlot(vtc.Margins) }
		}
		for prefix, build := range plots {
			if err := a.savePlot(prefix+name, build); err != nil {
				return err
			}
		}
	}

	if tr := r.Transient; tr != nil && tr.Trace.Len() > 0 {
		if a.wants("csv") {
			if err := a.writeFile("tran_"+name+".csv", func(w io.Writer) error {
				return report.WriteTransient(w, tr.Trace)
			}); err != nil {
				return err
			}
		}
		if err := a.savePlot("tran_"+name, func() (*plot.Plot, error) {
			return report.TransientPlot(tr.Trace, vdd)
		}); err != nil {
			return err
		}
		if !math.IsNaN(tr.Timing.PropagationDelay) {
			a.log.Info("transient timing", "config", r.Config.Name, "tp", tr.Timing.PropagationDelay, "tphl", tr.Timing.TpHL, "tplh", tr.Timing.TpLH)
		}
	}
	return nil
}

func newMonteCarloCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "montecarlo",
		Aliases: []string{"mc"},
		Short:   "Noise margin and switching threshold spread under process variation",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgs, err := a.configurations()
			if err != nil {
				return err
			}

			mc := a.cfg.MonteCarlo
			summaries := make([]report.Summary, 0, len(cfgs))
			for _, cfg := range cfgs {
				res, err := analysis.MonteCarlo(cmd.Context(), cfg, analysis.MonteCarloOptions{
					Samples:        mc.Samples,
					Seed:           mc.Seed,
					Variation:      analysis.Variation{Vt: mc.VtVariation, Beta: mc.BetaVariation},
					NumPoints:      a.cfg.Points,
					MinNoiseMargin: mc.MinNoiseMargin,
					Concurrency:    a.cfg.Concurrency,
				}, a.options()...)
				if err != nil {
					return err
				}

				if a.wants("csv") {
					if err := a.writeFile("montecarlo_"+slug(cfg.Name)+".csv", func(w io.Writer) error {
						return report.WriteMonteCarlo(w, res.Samples)
					}); err != nil {
						return err
					}
				}
				summaries = append(summaries, report.Summary{Config: cfg, MonteCarlo: &res})
			}
			return a.writeSummaries(summaries)
		},
	}

	fs := cmd.Flags()
	fs.Int("samples", 200, "Monte Carlo samples per technology")
	fs.Uint64("seed", 1, "random seed")
	return cmd
}
