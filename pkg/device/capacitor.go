package device

import (
	"github.com/edp1096/cmos-inverter/pkg/matrix"
	"github.com/edp1096/cmos-inverter/pkg/util"
)

const maxHistory = 6

// Capacitor is the load capacitance. In transient mode it is replaced by its
// companion model for the integration method carried in CircuitStatus.
type Capacitor struct {
	BaseDevice
	history  []float64 // Accepted voltages, most recent first
	current1 float64   // Previous current
}

var _ TimeDependent = (*Capacitor)(nil)

func NewCapacitor(name string, nodeNames []string, value float64) *Capacitor {
	return &Capacitor{BaseDevice: newBaseDevice(name, value, nodeNames)}
}

func (c *Capacitor) GetType() string { return "C" }

// SetInitialVoltage resets the integration history to a single accepted voltage.
func (c *Capacitor) SetInitialVoltage(v float64) {
	c.history = append(c.history[:0], v)
	c.current1 = 0
}

// companion returns geq and the constant current of i = geq·v + ieq.
func (c *Capacitor) companion(status *CircuitStatus) (geq, ieq float64) {
	if len(c.history) == 0 {
		return 0, 0
	}

	method := util.IntegrationMethod(status.Method)
	order := status.Order
	if method == util.TrapezoidalMethod {
		coeffs := util.GetIntegratorCoeffs(method, 2, status.TimeStep)
		geq = c.Value * coeffs[0]
		return geq, -geq*c.history[0] - c.current1
	}

	if order > len(c.history) {
		order = len(c.history)
	}
	coeffs := util.GetIntegratorCoeffs(method, order, status.TimeStep)
	geq = c.Value * coeffs[0]
	for k := 1; k < len(coeffs); k++ {
		ieq += c.Value * coeffs[k] * c.history[k-1]
	}
	return geq, ieq
}

func (c *Capacitor) Stamp(matrix matrix.DeviceMatrix, status *CircuitStatus) error {
	n1, n2 := c.Nodes[0], c.Nodes[1]

	switch status.Mode {
	case OperatingPointAnalysis:
		gmin := status.Gmin
		if gmin < 1e-12 {
			gmin = 1e-12
		}
		stampConductance(matrix, n1, n2, gmin)

	case TransientAnalysis:
		geq, ieq := c.companion(status)
		stampConductance(matrix, n1, n2, geq)
		if n1 != 0 {
			matrix.AddRHS(n1, -ieq)
		}
		if n2 != 0 {
			matrix.AddRHS(n2, ieq)
		}
	}

	return nil
}

func (c *Capacitor) UpdateState(voltages []float64, status *CircuitStatus) {
	vd := nodeVoltage(voltages, c.Nodes[0]) - nodeVoltage(voltages, c.Nodes[1])

	geq, ieq := c.companion(status)
	c.current1 = geq*vd + ieq

	c.history = append([]float64{vd}, c.history...)
	if len(c.history) > maxHistory {
		c.history = c.history[:maxHistory]
	}
}

// GetCurrent returns the capacitor current of the last accepted step.
func (c *Capacitor) GetCurrent() float64 {
	return c.current1
}

func stampConductance(matrix matrix.DeviceMatrix, n1, n2 int, g float64) {
	if n1 != 0 {
		matrix.AddElement(n1, n1, g)
		if n2 != 0 {
			matrix.AddElement(n1, n2, -g)
		}
	}
	if n2 != 0 {
		matrix.AddElement(n2, n2, g)
		if n1 != 0 {
			matrix.AddElement(n2, n1, -g)
		}
	}
}
