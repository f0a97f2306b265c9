package inverter

import (
	"math"
	"sort"
)

// DeviceParameters describes one square-law transistor. Vt is signed,
// negative for PMOS. Beta already includes the W/L scaling.
type DeviceParameters struct {
	Vt   float64 `json:"vt" yaml:"vt"`
	Beta float64 `json:"beta" yaml:"beta"`
}

// BetaFromGeometry folds the process transconductance and the channel
// geometry into β = kp·W/L.
func BetaFromGeometry(kp, w, l float64) float64 {
	return kp * w / l
}

// Configuration is the inverter under test. It is a value type and engines
// never modify it.
type Configuration struct {
	Name            string           `json:"name,omitempty" yaml:"name,omitempty"`
	Vdd             float64          `json:"vdd" yaml:"vdd"`
	NMOS            DeviceParameters `json:"nmos" yaml:"nmos"`
	PMOS            DeviceParameters `json:"pmos" yaml:"pmos"`
	LoadCapacitance float64          `json:"cl" yaml:"cl"`
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Validate rejects non-physical configurations before any computation.
func (c Configuration) Validate() error {
	checks := []struct {
		name   string
		value  float64
		ok     bool
		reason string
	}{
		{"Vdd", c.Vdd, c.Vdd > 0, "supply voltage must be positive"},
		{"CL", c.LoadCapacitance, c.LoadCapacitance > 0, "load capacitance must be positive"},
		{"betaN", c.NMOS.Beta, c.NMOS.Beta > 0, "transconductance must be positive"},
		{"betaP", c.PMOS.Beta, c.PMOS.Beta > 0, "transconductance must be positive"},
		{"Vtn", c.NMOS.Vt, c.NMOS.Vt > 0, "NMOS threshold must be positive"},
		{"Vtp", c.PMOS.Vt, c.PMOS.Vt < 0, "PMOS threshold must be negative"},
	}

	for _, chk := range checks {
		if !finite(chk.value) {
			return InvalidParameter(chk.name, chk.value, "must be finite")
		}
		if !chk.ok {
			return InvalidParameter(chk.name, chk.value, chk.reason)
		}
	}
	return nil
}

// WithVdd returns a copy with a different supply voltage.
func (c Configuration) WithVdd(vdd float64) Configuration {
	c.Vdd = vdd
	return c
}

// BetaRatio returns βn/βp.
func (c Configuration) BetaRatio() float64 {
	return c.NMOS.Beta / c.PMOS.Beta
}

// Default mirrors the classic 5 V textbook inverter with a 2:1 β ratio.
func Default() Configuration {
	return Configuration{
		Name:            "default",
		Vdd:             5.0,
		NMOS:            DeviceParameters{Vt: 1.0, Beta: 100e-6},
		PMOS:            DeviceParameters{Vt: -1.0, Beta: 50e-6},
		LoadCapacitance: 10e-12,
	}
}

var presets = map[string]Configuration{
	"5v": {
		Name:            "5v",
		Vdd:             5.0,
		NMOS:            DeviceParameters{Vt: 1.0, Beta: 100e-6},
		PMOS:            DeviceParameters{Vt: -1.0, Beta: 50e-6},
		LoadCapacitance: 10e-12,
	},
	"3.3v": {
		Name:            "3.3v",
		Vdd:             3.3,
		NMOS:            DeviceParameters{Vt: 0.7, Beta: 100e-6},
		PMOS:            DeviceParameters{Vt: -0.7, Beta: 50e-6},
		LoadCapacitance: 10e-12,
	},
	"1.8v": {
		Name:            "1.8v",
		Vdd:             1.8,
		NMOS:            DeviceParameters{Vt: 0.45, Beta: 100e-6},
		PMOS:            DeviceParameters{Vt: -0.45, Beta: 50e-6},
		LoadCapacitance: 10e-12,
	},
}

// Preset returns a named technology preset.
func Preset(name string) (Configuration, bool) {
	c, ok := presets[name]
	return c, ok
}

// PresetNames lists the available presets in order of supply voltage.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return presets[names[i]].Vdd < presets[names[j]].Vdd
	})
	return names
}
