package analysis

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"

	"github.com/edp1096/cmos-inverter/internal/consts"
	"github.com/edp1096/cmos-inverter/pkg/device"
	"github.com/edp1096/cmos-inverter/pkg/inverter"
	"github.com/google/go-cmp/cmp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// symmetric has matched devices so Vm sits at Vdd/2.
func symmetric() inverter.Configuration {
	return inverter.Configuration{
		Name:            "symmetric",
		Vdd:             5,
		NMOS:            inverter.DeviceParameters{Vt: 1, Beta: 100e-6},
		PMOS:            inverter.DeviceParameters{Vt: -1, Beta: 100e-6},
		LoadCapacitance: 10e-12,
	}
}

var _ = Describe("Operating point", func() {
	It("balances the two drain currents", func() {
		cfg := inverter.Default()
		solver, err := NewSolver(cfg)
		Expect(err).NotTo(HaveOccurred())

		for _, vin := range SweepInputs(cfg.Vdd, 41) {
			op, err := solver.Solve(vin)
			Expect(err).NotTo(HaveOccurred(), "vin=%g", vin)
			Expect(op.Vout).To(BeNumerically(">=", 0))
			Expect(op.Vout).To(BeNumerically("<=", cfg.Vdd))
			Expect(math.Abs(op.Residual)).To(BeNumerically("<=", solver.Tolerance()), "vin=%g", vin)
		}
	})

	It("sits at Vdd/2 for a symmetric inverter driven at Vdd/2", func() {
		op, err := Solve(symmetric(), 2.5)
		Expect(err).NotTo(HaveOccurred())
		Expect(op.Vout).To(BeNumerically("~", 2.5, 1e-6))
		Expect(op.NmosRegion).To(Equal(device.SATURATION))
		Expect(op.PmosRegion).To(Equal(device.SATURATION))
	})

	It("pins the rails where one transistor is off", func() {
		cfg := symmetric()
		low, err := Solve(cfg, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(low.Vout).To(Equal(cfg.Vdd))

		high, err := Solve(cfg, cfg.Vdd)
		Expect(err).NotTo(HaveOccurred())
		Expect(high.Vout).To(Equal(0.0))
	})

	It("reports a floating output when both transistors are off", func() {
		cfg := symmetric()
		cfg.Vdd = 1.5 // Vtn + |Vtp| > Vdd

		_, err := Solve(cfg, 0.75)
		Expect(errors.Is(err, inverter.ErrNoCrossingFound)).To(BeTrue())

		var se *inverter.SampleError
		Expect(errors.As(err, &se)).To(BeTrue())
		Expect(se.Vin).To(Equal(0.75))
	})

	It("rejects invalid configurations before solving", func() {
		cfg := symmetric()
		cfg.PMOS.Vt = 1
		_, err := Solve(cfg, 1)
		Expect(errors.Is(err, inverter.ErrInvalidParameter)).To(BeTrue())
	})
})

var _ = Describe("Transfer curve", func() {
	It("is monotonically non-increasing for random valid inverters", func() {
		rng := rand.New(rand.NewPCG(7, 11))
		for trial := 0; trial < 25; trial++ {
			vdd := 1 + 4*rng.Float64()
			cfg := inverter.Configuration{
				Vdd:             vdd,
				NMOS:            inverter.DeviceParameters{Vt: 0.1 + 0.3*vdd*rng.Float64(), Beta: 1e-6 + 1e-3*rng.Float64()},
				PMOS:            inverter.DeviceParameters{Vt: -(0.1 + 0.3*vdd*rng.Float64()), Beta: 1e-6 + 1e-3*rng.Float64()},
				LoadCapacitance: 1e-12,
			}

			curve, diag, err := Sweep(cfg, 101)
			Expect(err).NotTo(HaveOccurred())
			Expect(diag).To(BeEmpty(), "%+v", cfg)

			slack := 2 * consts.VOLTAGE_RELTOL * cfg.Vdd
			for i := 1; i < len(curve); i++ {
				Expect(curve[i].Vout).To(BeNumerically("<=", curve[i-1].Vout+slack), "%+v at %d", cfg, i)
			}
		}
	})

	It("is identical when swept twice", func() {
		cfg := inverter.Default()
		a, _, err := Sweep(cfg, 101)
		Expect(err).NotTo(HaveOccurred())
		b, _, err := Sweep(cfg, 101)
		Expect(err).NotTo(HaveOccurred())
		Expect(cmp.Diff(a, b)).To(BeEmpty())
	})

	It("has the textbook noise margins for a symmetric inverter", func() {
		res, diag, err := ComputeVTC(symmetric(), 2001)
		Expect(err).NotTo(HaveOccurred())
		Expect(diag).To(BeEmpty())
		Expect(res.MarginsErr).NotTo(HaveOccurred())

		m := res.Margins
		Expect(m.VIL).To(BeNumerically("~", 2.125, 0.05))
		Expect(m.VIH).To(BeNumerically("~", 2.875, 0.05))
		Expect(m.VOH).To(Equal(5.0))
		Expect(m.VOL).To(Equal(0.0))
		Expect(m.NML + m.NMH).To(BeNumerically("<=", 5.0))
		Expect(m.NML).To(BeNumerically("~", m.NMH, 0.05))
		Expect(res.SwitchingThreshold).To(BeNumerically("~", 2.5, 1e-5))
	})

	It("tracks the closed-form switching threshold", func() {
		for _, name := range inverter.PresetNames() {
			cfg, ok := inverter.Preset(name)
			Expect(ok).To(BeTrue())

			vm, err := SwitchingThreshold(cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(vm).To(BeNumerically("~", AnalyticSwitchingThreshold(cfg), 1e-4), name)
		}
	})
})

var _ = Describe("Transient", func() {
	fast := func() inverter.Configuration {
		cfg := symmetric()
		cfg.LoadCapacitance = 1e-12
		return cfg
	}

	It("settles to the opposite rail after a rising step", func() {
		cfg := fast()
		wf := device.Step{V0: 0, V1: cfg.Vdd, T0: 1e-9}

		for _, m := range []Method{ForwardEuler, RK4, BackwardEuler, Gear2, Trapezoidal} {
			trace, err := Integrate(cfg, wf, 50e-9, 2000, WithMethod(m))
			Expect(err).NotTo(HaveOccurred(), m.String())
			Expect(trace.Len()).To(Equal(2001))
			Expect(trace.Samples[0].Vout).To(Equal(cfg.Vdd))
			Expect(trace.Samples[trace.Len()-1].Vout).To(BeNumerically("<", 0.01*cfg.Vdd), m.String())
		}
	})

	It("settles to the static operating point of a mid-range input", func() {
		cfg := fast()
		cfg.NMOS.Beta, cfg.PMOS.Beta = 2e-4, 1e-4
		const vin = 1.5
		wf := device.Step{V0: 0, V1: vin, T0: 0.1e-9}

		op, err := Solve(cfg, vin)
		Expect(err).NotTo(HaveOccurred())
		Expect(op.Vout).To(BeNumerically("~", 4.897914, 1e-5))

		for _, m := range []Method{ForwardEuler, RK4, BackwardEuler, Gear2, Trapezoidal} {
			trace, err := Integrate(cfg, wf, 50e-9, 5000, WithMethod(m))
			Expect(err).NotTo(HaveOccurred(), m.String())
			Expect(trace.Len()).To(Equal(5001), m.String())
			Expect(trace.Samples[trace.Len()-1].Vout).To(BeNumerically("~", op.Vout, 1e-4*cfg.Vdd), m.String())
		}
	})

	It("agrees between explicit and implicit methods", func() {
		cfg := fast()
		wf := device.Step{V0: 0, V1: cfg.Vdd, T0: 1e-9}

		ref, err := ComputeTransient(cfg, wf, 20e-9, 4000, WithMethod(RK4))
		Expect(err).NotTo(HaveOccurred())
		Expect(math.IsNaN(ref.Timing.TpHL)).To(BeFalse())

		for _, m := range []Method{BackwardEuler, Gear2, Trapezoidal} {
			res, err := ComputeTransient(cfg, wf, 20e-9, 4000, WithMethod(m))
			Expect(err).NotTo(HaveOccurred(), m.String())
			Expect(res.Timing.TpHL).To(BeNumerically("~", ref.Timing.TpHL, 0.05*ref.Timing.TpHL), m.String())
		}
	})

	It("reports an unstable step with the partial trace", func() {
		cfg := symmetric()
		cfg.NMOS.Beta, cfg.PMOS.Beta = 1e300, 1e300
		wf := device.Step{V0: 0, V1: cfg.Vdd, T0: 0.5e-9}

		trace, err := Integrate(cfg, wf, 10e-9, 100)
		Expect(errors.Is(err, inverter.ErrIntegrationUnstable)).To(BeTrue())

		var se *inverter.StepError
		Expect(errors.As(err, &se)).To(BeTrue())
		Expect(trace.Len()).To(Equal(se.Step))
		for _, s := range trace.Samples {
			Expect(s.Vout).To(BeNumerically(">=", 0))
			Expect(s.Vout).To(BeNumerically("<=", cfg.Vdd))
		}
	})

	It("starts from the given output when asked to", func() {
		cfg := fast()
		trace, err := Integrate(cfg, device.DC(0), 1e-9, 10, WithInitialOutput(1))
		Expect(err).NotTo(HaveOccurred())
		Expect(trace.Samples[0].Vout).To(Equal(1.0))
		Expect(trace.Samples[10].Vout).To(BeNumerically(">", 1.0))
	})
})

var _ = Describe("Power", func() {
	It("grows linearly with frequency", func() {
		cfg := inverter.Default()
		p1, err := ComputeDynamic(cfg, 1e6)
		Expect(err).NotTo(HaveOccurred())
		p2, err := ComputeDynamic(cfg, 2e6)
		Expect(err).NotTo(HaveOccurred())
		Expect(p2).To(BeNumerically("~", 2*p1, 1e-18))
		Expect(p1).To(BeNumerically("~", 10e-12*25*1e6, 1e-15))
	})

	It("sums static and dynamic", func() {
		r, err := ComputePower(inverter.Default(), 100e6, 2e-10)
		Expect(err).NotTo(HaveOccurred())
		Expect(r.Static).To(BeNumerically("~", 1e-9, 1e-21))
		Expect(r.Total).To(Equal(r.Static + r.Dynamic))
	})
})

var _ = Describe("Batch", func() {
	It("evaluates every preset and keeps failures local", func() {
		cfgs := []inverter.Configuration{}
		for _, name := range inverter.PresetNames() {
			cfg, _ := inverter.Preset(name)
			cfgs = append(cfgs, cfg)
		}
		bad := inverter.Default()
		bad.Vdd = -1
		cfgs = append(cfgs, bad)

		results := RunBatch(context.Background(), cfgs, BatchOptions{
			NumPoints: 51,
			Power:     &PowerRequest{Frequency: 1e6, Leakage: 1e-10},
			Transient: &TransientRequest{
				Waveform: func(cfg Configuration) (device.Waveform, error) { return device.Step{V1: cfg.Vdd, T0: 1e-9}, nil },
				Duration: 10e-9,
				Steps:    500,
			},
			Concurrency: 2,
		})

		Expect(results).To(HaveLen(len(cfgs)))
		for _, r := range results[:len(results)-1] {
			Expect(r.Err).NotTo(HaveOccurred(), r.Config.Name)
			Expect(r.VTC).NotTo(BeNil())
			Expect(r.Transient).NotTo(BeNil())
			Expect(r.Power).NotTo(BeNil())
		}
		Expect(errors.Is(results[len(results)-1].Err, inverter.ErrInvalidParameter)).To(BeTrue())
	})
})

var _ = Describe("Monte Carlo", func() {
	opts := MonteCarloOptions{
		Samples:        40,
		Seed:           42,
		Variation:      Variation{Vt: 0.1, Beta: 0.2},
		NumPoints:      101,
		MinNoiseMargin: 0.5,
		Concurrency:    4,
	}

	It("is reproducible for a seed", func() {
		a, err := MonteCarlo(context.Background(), inverter.Default(), opts)
		Expect(err).NotTo(HaveOccurred())
		b, err := MonteCarlo(context.Background(), inverter.Default(), opts)
		Expect(err).NotTo(HaveOccurred())

		Expect(a.Vm).To(Equal(b.Vm))
		Expect(a.Evaluated + a.Failed).To(Equal(opts.Samples))
		Expect(a.Yield).To(BeNumerically(">", 0.9))
		Expect(a.Vm.Mean).To(BeNumerically("~", AnalyticSwitchingThreshold(inverter.Default()), 0.1))
	})

	It("stops on a cancelled context", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := MonteCarlo(ctx, inverter.Default(), opts)
		Expect(err).To(MatchError(context.Canceled))
	})
})
