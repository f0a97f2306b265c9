package netlist

import (
	"fmt"
	"strings"

	"github.com/edp1096/cmos-inverter/pkg/device"
)

func parseValues(params string, names []string, required int) ([]float64, error) {
	fields := strings.Fields(params)
	if len(fields) < required || len(fields) > len(names) {
		return nil, fmt.Errorf("expected %d to %d parameters, got %d", required, len(names), len(fields))
	}

	values := make([]float64, len(names))
	for i, f := range fields {
		v, err := ParseValue(f)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %v", names[i], err)
		}
		values[i] = v
	}
	return values, nil
}

func parseSinParams(params string) (device.Sine, error) {
	v, err := parseValues(params, []string{"offset", "amplitude", "frequency", "phase"}, 3)
	if err != nil {
		return device.Sine{}, fmt.Errorf("SIN: %v", err)
	}
	return device.Sine{Offset: v[0], Amplitude: v[1], Freq: v[2], Phase: v[3]}, nil
}

func parsePulseParams(params string) (device.Pulse, error) {
	v, err := parseValues(params, []string{"v1", "v2", "delay", "rise", "fall", "width", "period"}, 7)
	if err != nil {
		return device.Pulse{}, fmt.Errorf("PULSE: %v", err)
	}
	return device.NewPulse(v[0], v[1], v[2], v[3], v[4], v[5], v[6])
}

func parsePWLParams(params string) (*device.PWL, error) {
	fields := strings.Fields(params)
	if len(fields) < 4 || len(fields)%2 != 0 {
		return nil, fmt.Errorf("insufficient or invalid PWL parameters, need pairs of time-value")
	}

	numPoints := len(fields) / 2
	times := make([]float64, numPoints)
	values := make([]float64, numPoints)
	var err error
	for i := 0; i < numPoints; i++ {
		if times[i], err = ParseValue(fields[2*i]); err != nil {
			return nil, fmt.Errorf("invalid PWL time[%d]: %v", i, err)
		}
		if values[i], err = ParseValue(fields[2*i+1]); err != nil {
			return nil, fmt.Errorf("invalid PWL value[%d]: %v", i, err)
		}
	}
	return device.NewPWL(times, values)
}

// Waveform builds the time function of a voltage source element.
func (e Element) Waveform() (device.Waveform, error) {
	if e.Type != "V" {
		return nil, fmt.Errorf("%s is not a voltage source", e.Name)
	}

	switch e.Params["type"] {
	case "dc":
		return device.DC(e.Value), nil
	case "sin":
		return parseSinParams(e.Params["sin"])
	case "pulse":
		return parsePulseParams(e.Params["pulse"])
	case "pwl":
		return parsePWLParams(e.Params["pwl"])
	}
	return nil, fmt.Errorf("unsupported voltage source type: %s", e.Params["type"])
}
