package device

import (
	"fmt"
	"math"
)

// Waveform is an input voltage as a function of time.
type Waveform interface {
	Voltage(t float64) float64
}

type DC float64

func (d DC) Voltage(float64) float64 { return float64(d) }

// Step switches ideally from V0 to V1 at T0.
type Step struct {
	V0, V1 float64
	T0     float64
}

func (s Step) Voltage(t float64) float64 {
	if t < s.T0 {
		return s.V0
	}
	return s.V1
}

// Pulse is the SPICE PULSE(v1 v2 delay rise fall width period) source.
// A zero period means a single pulse.
type Pulse struct {
	V1, V2 float64
	Delay  float64
	Rise   float64
	Fall   float64
	Width  float64
	Period float64
}

func NewPulse(v1, v2, delay, rise, fall, width, period float64) (Pulse, error) {
	for _, p := range []struct {
		name  string
		value float64
	}{{"delay", delay}, {"rise", rise}, {"fall", fall}, {"width", width}, {"period", period}} {
		if p.value < 0 || math.IsNaN(p.value) {
			return Pulse{}, fmt.Errorf("pulse %s must be non-negative, got %g", p.name, p.value)
		}
	}
	if period > 0 && period < rise+width+fall {
		return Pulse{}, fmt.Errorf("pulse period %g shorter than rise+width+fall %g", period, rise+width+fall)
	}

	return Pulse{V1: v1, V2: v2, Delay: delay, Rise: rise, Fall: fall, Width: width, Period: period}, nil
}

func (p Pulse) Voltage(t float64) float64 {
	if t < p.Delay {
		return p.V1
	}

	t = t - p.Delay
	if p.Period > 0 {
		t = math.Mod(t, p.Period)
	}

	if t < p.Rise {
		return p.V1 + (p.V2-p.V1)*t/p.Rise
	}

	if t < p.Rise+p.Width {
		return p.V2
	}

	fallStart := p.Rise + p.Width
	if t < fallStart+p.Fall {
		return p.V2 - (p.V2-p.V1)*(t-fallStart)/p.Fall
	}

	return p.V1
}

// PWL interpolates linearly between (time, value) points and holds the end values.
type PWL struct {
	times  []float64
	values []float64
}

func NewPWL(times, values []float64) (*PWL, error) {
	if len(times) == 0 || len(times) != len(values) {
		return nil, fmt.Errorf("pwl needs matching non-empty time and value lists, got %d and %d", len(times), len(values))
	}
	for i := 1; i < len(times); i++ {
		if times[i] <= times[i-1] {
			return nil, fmt.Errorf("pwl time points must be strictly increasing")
		}
	}

	return &PWL{
		times:  append([]float64(nil), times...),
		values: append([]float64(nil), values...),
	}, nil
}

func (p *PWL) Voltage(t float64) float64 {
	if t <= p.times[0] {
		return p.values[0]
	}

	lastIdx := len(p.times) - 1
	if t >= p.times[lastIdx] {
		return p.values[lastIdx]
	}

	for i := 1; i < len(p.times); i++ {
		if t <= p.times[i] {
			t1, t2 := p.times[i-1], p.times[i]
			v1, v2 := p.values[i-1], p.values[i]
			return v1 + (v2-v1)*(t-t1)/(t2-t1)
		}
	}

	return p.values[lastIdx]
}

// Sine is offset + amplitude·sin(2π·freq·t + phase), phase in degrees.
type Sine struct {
	Offset    float64
	Amplitude float64
	Freq      float64
	Phase     float64
}

func (s Sine) Voltage(t float64) float64 {
	phaseRad := s.Phase * math.Pi / 180.0
	return s.Offset + s.Amplitude*math.Sin(2.0*math.Pi*s.Freq*t+phaseRad)
}
