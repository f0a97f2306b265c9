package metrics

import (
	"errors"
	"strconv"

	"github.com/edp1096/cmos-inverter/pkg/analysis"
	"github.com/edp1096/cmos-inverter/pkg/inverter"
	pkgerrors "github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "inverter"

// Recorder collects engine metrics on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	solveIterations prometheus.Histogram
	solveFailures   *prometheus.CounterVec
	transientRuns   *prometheus.CounterVec
	transientSteps  *prometheus.CounterVec
	batchConfigs    *prometheus.CounterVec
}

var _ analysis.Observer = (*Recorder)(nil)

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		solveIterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "iterations",
			Help:      "Bisection iterations per operating point.",
			Buckets:   prometheus.LinearBuckets(0, 5, 12),
		}),
		solveFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "failures_total",
			Help:      "Operating point failures by kind.",
		}, []string{"kind"}),
		transientRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transient",
			Name:      "runs_total",
			Help:      "Transient runs by integration method and result.",
		}, []string{"method", "result"}),
		transientSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transient",
			Name:      "steps_total",
			Help:      "Accepted transient steps by integration method.",
		}, []string{"method"}),
		batchConfigs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "configurations_total",
			Help:      "Configurations evaluated in batch runs by result.",
		}, []string{"result"}),
	}

	r.registry.MustRegister(r.solveIterations, r.solveFailures, r.transientRuns, r.transientSteps, r.batchConfigs)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Kind classifies an engine error for metric labels.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, inverter.ErrIntegrationUnstable):
		return "unstable"
	case errors.Is(err, inverter.ErrNoCrossingFound):
		return "no_crossing"
	case errors.Is(err, inverter.ErrConvergenceFailure):
		return "convergence"
	case errors.Is(err, inverter.ErrInvalidParameter):
		return "invalid_parameter"
	case errors.Is(err, inverter.ErrNoiseMarginUndefined):
		return "noise_margin_undefined"
	}
	return "other"
}

func (r *Recorder) ObserveSolve(iterations int, err error) {
	r.solveIterations.Observe(float64(iterations))
	if err != nil {
		r.solveFailures.WithLabelValues(Kind(err)).Inc()
	}
}

func (r *Recorder) ObserveTransient(method analysis.Method, steps int, err error) {
	r.transientRuns.WithLabelValues(method.String(), Kind(err)).Inc()
	r.transientSteps.WithLabelValues(method.String()).Add(float64(steps))
}

// ObserveBatch counts the outcome of every configuration of a batch.
func (r *Recorder) ObserveBatch(results []analysis.BatchResult) {
	for _, res := range results {
		r.batchConfigs.WithLabelValues(Kind(res.Err)).Inc()
	}
}

// WriteTextfile writes the registry in the node-exporter textfile format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return pkgerrors.Wrapf(err, "writing metrics to %s", path)
	}
	return nil
}

// Summary returns the solver failure counts by kind, for log output.
func (r *Recorder) Summary() map[string]string {
	out := make(map[string]string)
	families, err := r.registry.Gather()
	if err != nil {
		return out
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			name := mf.GetName()
			for _, lp := range m.GetLabel() {
				name += "," + lp.GetName() + "=" + lp.GetValue()
			}
			switch {
			case m.GetCounter() != nil:
				out[name] = strconv.FormatFloat(m.GetCounter().GetValue(), 'g', -1, 64)
			case m.GetHistogram() != nil:
				out[name] = strconv.FormatUint(m.GetHistogram().GetSampleCount(), 10)
			}
		}
	}
	return out
}
