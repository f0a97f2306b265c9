package inverter

import "github.com/edp1096/cmos-inverter/pkg/device"

// NmosCurrent is the pull-down drain current with the source at ground.
func (c Configuration) NmosCurrent(vin, vout float64) float64 {
	return device.Current(vin, vout, c.NMOS.Vt, c.NMOS.Beta, device.NMOS)
}

// PmosCurrent is the pull-up current magnitude with the source at Vdd.
func (c Configuration) PmosCurrent(vin, vout float64) float64 {
	return device.Current(vin-c.Vdd, vout-c.Vdd, c.PMOS.Vt, c.PMOS.Beta, device.PMOS)
}

// Regions reports the operating region of both transistors.
func (c Configuration) Regions(vin, vout float64) (nmos, pmos device.Region) {
	_, nmos = device.Evaluate(vin, vout, c.NMOS.Vt, c.NMOS.Beta, device.NMOS)
	_, pmos = device.Evaluate(vin-c.Vdd, vout-c.Vdd, c.PMOS.Vt, c.PMOS.Beta, device.PMOS)
	return nmos, pmos
}
