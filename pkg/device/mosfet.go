package device

import (
	"fmt"
	"math"

	"github.com/edp1096/cmos-inverter/pkg/matrix"
)

// Polarity selects the channel type of a transistor.
type Polarity int

const (
	NMOS Polarity = iota
	PMOS
)

func (p Polarity) String() string {
	if p == PMOS {
		return "PMOS"
	}
	return "NMOS"
}

func (p Polarity) sign() float64 {
	if p == PMOS {
		return -1.0
	}
	return 1.0
}

// Region is the square-law operating region.
type Region int

const (
	CUTOFF     Region = iota // Cutoff region
	TRIODE                   // Linear/Triode region
	SATURATION               // Saturation region
)

func (r Region) String() string {
	switch r {
	case TRIODE:
		return "triode"
	case SATURATION:
		return "saturation"
	default:
		return "cutoff"
	}
}

// Evaluate returns the drain current magnitude of a square-law (Shockley)
// transistor and its operating region.
//
// vgs, vds and vt are the actual terminal voltages and threshold. For PMOS
// they are negated before the NMOS equations are applied, so a PMOS whose
// source sits at Vdd is evaluated with vgs = Vin-Vdd, vds = Vout-Vdd and a
// negative vt. The result is never negative and never NaN for finite input.
func Evaluate(vgs, vds, vt, beta float64, pol Polarity) (float64, Region) {
	if pol == PMOS {
		vgs, vds, vt = -vgs, -vds, -vt
	}

	vgst := vgs - vt // Effective gate voltage
	if !(vgst > 0) {
		return 0, CUTOFF
	}

	var id float64
	var region Region
	switch {
	case !(vds > 0) || !(beta > 0):
		// Channel on but no forward drain bias
		return 0, TRIODE
	case vds < vgst:
		id = beta * vds * (vgst - 0.5*vds)
		region = TRIODE
	default:
		id = 0.5 * beta * vgst * vgst
		region = SATURATION
	}

	if math.IsInf(id, 0) || math.IsNaN(id) {
		id = math.MaxFloat64
	}
	return id, region
}

// Current is Evaluate without the region.
func Current(vgs, vds, vt, beta float64, pol Polarity) float64 {
	id, _ := Evaluate(vgs, vds, vt, beta, pol)
	return id
}

// Conductances returns the transconductance and output conductance of the
// same equations. Both are non-negative for either polarity when taken with
// respect to the actual terminal voltages of the signed drain current.
func Conductances(vgs, vds, vt, beta float64, pol Polarity) (gm, gds float64) {
	if pol == PMOS {
		vgs, vds, vt = -vgs, -vds, -vt
	}

	vgst := vgs - vt
	if !(vgst > 0) || !(vds > 0) || !(beta > 0) {
		return 0, 0
	}

	if vds < vgst {
		return beta * vds, beta * (vgst - vds)
	}
	return beta * vgst, 0
}

// Mosfet is the MNA form of the square-law transistor used by the Newton
// integrator. Bulk is accepted in the node list but not modeled.
type Mosfet struct {
	BaseDevice
	Type Polarity
	VTO  float64 // Threshold voltage (negative for PMOS)
	Beta float64 // Transconductance parameter (A/V²)

	vgs float64
	vds float64

	id     float64 // Signed drain current
	gm     float64
	gds    float64
	region Region
}

var _ NonLinear = (*Mosfet)(nil)

func NewMosfet(name string, nodeNames []string, pol Polarity, vto, beta float64) (*Mosfet, error) {
	if len(nodeNames) != 3 && len(nodeNames) != 4 {
		return nil, fmt.Errorf("mosfet %s: requires drain, gate, source and optional bulk nodes", name)
	}

	return &Mosfet{
		BaseDevice: newBaseDevice(name, beta, nodeNames),
		Type:       pol,
		VTO:        vto,
		Beta:       beta,
	}, nil
}

func (m *Mosfet) GetType() string { return "M" }

func (m *Mosfet) UpdateVoltages(voltages []float64) error {
	vd := nodeVoltage(voltages, m.Nodes[0])
	vg := nodeVoltage(voltages, m.Nodes[1])
	vs := nodeVoltage(voltages, m.Nodes[2])

	m.vgs = vg - vs
	m.vds = vd - vs
	return nil
}

func (m *Mosfet) calculate() {
	mag, region := Evaluate(m.vgs, m.vds, m.VTO, m.Beta, m.Type)
	m.id = m.Type.sign() * mag
	m.region = region
	m.gm, m.gds = Conductances(m.vgs, m.vds, m.VTO, m.Beta, m.Type)
}

// Stamp loads the linearized drain current
// id ≈ id0 + gm·(vgs-vgs0) + gds·(vds-vds0) into the drain and source rows.
func (m *Mosfet) Stamp(matrix matrix.DeviceMatrix, status *CircuitStatus) error {
	nd := m.Nodes[0] // Drain
	ng := m.Nodes[1] // Gate
	ns := m.Nodes[2] // Source

	m.calculate()
	gmin := status.Gmin
	ieq := -m.id + m.gds*m.vds + m.gm*m.vgs

	if nd != 0 {
		matrix.AddElement(nd, nd, m.gds+gmin)
		if ng != 0 {
			matrix.AddElement(nd, ng, m.gm)
		}
		if ns != 0 {
			matrix.AddElement(nd, ns, -m.gds-m.gm-gmin)
		}
		matrix.AddRHS(nd, ieq)
	}

	if ns != 0 {
		matrix.AddElement(ns, ns, m.gds+m.gm+gmin)
		if nd != 0 {
			matrix.AddElement(ns, nd, -m.gds-gmin)
		}
		if ng != 0 {
			matrix.AddElement(ns, ng, -m.gm)
		}
		matrix.AddRHS(ns, -ieq)
	}

	return nil
}

func (m *Mosfet) GetVgs() float64 {
	return m.vgs
}

func (m *Mosfet) GetVds() float64 {
	return m.vds
}

func (m *Mosfet) GetId() float64 {
	return m.id
}

func (m *Mosfet) GetRegion() Region {
	return m.region
}
