package analysis

import (
	"context"
	"fmt"
	"runtime"

	"github.com/edp1096/cmos-inverter/pkg/device"
	"golang.org/x/sync/errgroup"
)

// TransientRequest describes the transient run of a batch. Waveform builds
// the input for each configuration so it can follow that configuration's Vdd.
// A Waveform error fails only that configuration.
type TransientRequest struct {
	Waveform func(cfg Configuration) (device.Waveform, error)
	Duration float64
	Steps    int
}

type PowerRequest struct {
	Frequency float64
	Leakage   float64
	Activity  float64 // 0 means every cycle switches
}

type BatchOptions struct {
	NumPoints   int
	Transient   *TransientRequest
	Power       *PowerRequest
	Concurrency int // <= 0 means GOMAXPROCS
	Options     []Option
}

// BatchResult is everything computed for one configuration. Err holds the
// first fatal error; partial results stay populated.
type BatchResult struct {
	Config      Configuration
	VTC         *VTCResult
	Diagnostics Diagnostics
	Transient   *TransientResult
	Power       *PowerReport
	Err         error
}

// RunBatch evaluates every configuration independently. The result slice is
// indexed like cfgs. Failures are recorded per result and never cancel the
// other configurations; ctx cancellation stops configurations not yet started.
func RunBatch(ctx context.Context, cfgs []Configuration, bo BatchOptions) []BatchResult {
	results := make([]BatchResult, len(cfgs))
	o := newOptions(bo.Options)

	limit := bo.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, cfg := range cfgs {
		results[i].Config = cfg
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			runOne(cfg, bo, &results[i])
			if results[i].Err != nil {
				o.Logger.V(1).Info("batch item failed", "config", cfg.Name, "error", results[i].Err.Error())
			}
			return nil
		})
	}
	_ = g.Wait()

	o.Logger.Info("batch done", "configs", len(cfgs))
	return results
}

func runOne(cfg Configuration, bo BatchOptions, res *BatchResult) {
	if bo.NumPoints > 0 {
		vtc, diag, err := ComputeVTC(cfg, bo.NumPoints, bo.Options...)
		if err != nil {
			res.Err = err
			return
		}
		res.VTC = &vtc
		res.Diagnostics = diag
	}

	if bo.Transient != nil {
		wf, err := bo.Transient.Waveform(cfg)
		if err != nil {
			res.Err = fmt.Errorf("input waveform: %w", err)
			return
		}
		tr, err := ComputeTransient(cfg, wf, bo.Transient.Duration, bo.Transient.Steps, bo.Options...)
		res.Transient = &tr
		if err != nil {
			res.Err = err
			return
		}
	}

	if bo.Power != nil {
		alpha := bo.Power.Activity
		if alpha == 0 {
			alpha = 1
		}
		p, err := powerReport(cfg, bo.Power.Frequency, bo.Power.Leakage, alpha)
		if err != nil {
			res.Err = err
			return
		}
		res.Power = &p
	}
}
