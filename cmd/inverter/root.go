package main

import (
	"io"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/edp1096/cmos-inverter/internal/config"
	"github.com/edp1096/cmos-inverter/internal/logging"
	"github.com/edp1096/cmos-inverter/pkg/analysis"
	"github.com/edp1096/cmos-inverter/pkg/inverter"
	"github.com/edp1096/cmos-inverter/pkg/metrics"
	"github.com/edp1096/cmos-inverter/pkg/report"
	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gonum.org/v1/plot"
)

// app is the state shared by every command of one invocation.
type app struct {
	stdout     io.Writer
	configPath string
	presets    []string

	cfg     *config.Config
	log     logr.Logger
	flush   func()
	metrics *metrics.Recorder
}

func newRootCommand(stdout io.Writer) *cobra.Command {
	a := &app{stdout: stdout, log: logr.Discard(), flush: func() {}}

	root := &cobra.Command{
		Use:           "inverter",
		Short:         "CMOS inverter simulator",
		Long:          "Transfer curve, noise margin, transient and power analysis of a square-law CMOS inverter.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.teardown()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runSweep(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "", "run file (yaml, json or toml)")
	pf.StringSliceVar(&a.presets, "preset", nil, "technology presets to run instead of the run file ("+strings.Join(inverter.PresetNames(), ", ")+")")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.Bool("log-dev", false, "development logging")
	pf.String("metrics-file", "", "write Prometheus metrics in textfile format")
	pf.StringP("out", "o", ".", "output directory for csv and plot files")
	pf.StringSlice("format", []string{"text"}, "outputs: text, yaml, csv, png, svg")
	pf.Int("points", 201, "transfer curve samples")
	pf.Int("concurrency", 0, "parallel configurations (0 = GOMAXPROCS)")
	pf.Int("max-iter", 100, "solver iteration cap")
	pf.Float64("tolerance", 1e-6, "solver voltage tolerance relative to Vdd")

	root.AddCommand(
		newVTCCommand(a),
		newTransientCommand(a),
		newPowerCommand(a),
		newSweepCommand(a),
		newMonteCarloCommand(a),
		newNetlistCommand(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath, cmd.Flags())
	if err != nil {
		return err
	}
	if len(a.presets) > 0 {
		cfg.Technologies = cfg.Technologies[:0]
		for _, p := range a.presets {
			cfg.Technologies = append(cfg.Technologies, config.Technology{Preset: p})
		}
	}
	a.cfg = cfg

	log, flush, err := logging.New(logging.Options{Level: cfg.Log.Level, Development: cfg.Log.Development})
	if err != nil {
		return err
	}
	a.log, a.flush = log.WithName("inverter"), flush
	a.metrics = metrics.New()

	a.log.V(1).Info("configuration loaded", "file", a.configPath, "technologies", len(cfg.Technologies), "formats", cfg.Output.Formats)
	return nil
}

func (a *app) teardown() error {
	defer a.flush()

	if a.cfg == nil || a.cfg.Output.MetricsFile == "" {
		return nil
	}
	if err := a.metrics.WriteTextfile(a.cfg.Output.MetricsFile); err != nil {
		return err
	}
	a.log.V(1).Info("metrics written", "file", a.cfg.Output.MetricsFile, "series", a.metrics.Summary())
	return nil
}

// options are the engine options every command shares.
func (a *app) options(extra ...analysis.Option) []analysis.Option {
	opts := []analysis.Option{
		analysis.WithLogger(a.log),
		analysis.WithObserver(a.metrics),
	}
	if a.cfg.Solver.MaxIter > 0 {
		opts = append(opts, analysis.WithMaxIter(a.cfg.Solver.MaxIter))
	}
	if a.cfg.Solver.Tolerance > 0 {
		opts = append(opts, analysis.WithVoltageTolerance(a.cfg.Solver.Tolerance))
	}
	return append(opts, extra...)
}

func (a *app) wants(format string) bool {
	for _, f := range a.cfg.Output.Formats {
		for _, part := range strings.Split(f, ",") {
			if strings.EqualFold(strings.TrimSpace(part), format) {
				return true
			}
		}
	}
	return false
}

func (a *app) plotFormats() []string {
	var out []string
	for _, f := range []string{"png", "svg", "pdf"} {
		if a.wants(f) {
			out = append(out, f)
		}
	}
	return out
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func slug(name string) string {
	s := strings.Trim(unsafeName.ReplaceAllString(name, "_"), "_")
	if s == "" {
		return "inverter"
	}
	return s
}

func (a *app) path(name string) string {
	return filepath.Join(a.cfg.Output.Dir, name)
}

// writeFile creates name under the output directory and hands it to write.
func (a *app) writeFile(name string, write func(io.Writer) error) error {
	path := a.path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "cannot create output directory")
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "cannot create %s", path)
	}
	if err := write(f); err != nil {
		f.Close()
		return errors.Wrapf(err, "writing %s", path)
	}
	a.log.V(1).Info("wrote file", "path", path)
	return f.Close()
}

func (a *app) savePlot(base string, build func() (*plot.Plot, error)) error {
	formats := a.plotFormats()
	if len(formats) == 0 {
		return nil
	}

	p, err := build()
	if err != nil {
		return err
	}
	for _, ext := range formats {
		if err := report.Save(p, a.path(base+"."+ext)); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) configurations() ([]inverter.Configuration, error) {
	return a.cfg.Configurations()
}

// writeSummaries prints text to stdout and writes summary.yaml.
func (a *app) writeSummaries(summaries []report.Summary) error {
	if a.wants("text") {
		for _, s := range summaries {
			if err := report.WriteText(a.stdout, s); err != nil {
				return err
			}
		}
	}
	if a.wants("yaml") {
		return a.writeFile("summary.yaml", func(w io.Writer) error {
			return report.WriteYAML(w, summaries...)
		})
	}
	return nil
}

// firstError reports the first failed configuration after all outputs exist.
func firstError(summaries []report.Summary) error {
	i := slices.IndexFunc(summaries, func(s report.Summary) bool { return s.Error != "" })
	if i < 0 {
		return nil
	}
	return errors.Errorf("%s: %s", summaries[i].Config.Name, summaries[i].Error)
}
