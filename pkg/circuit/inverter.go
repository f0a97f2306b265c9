package circuit

import (
	"fmt"

	"github.com/edp1096/cmos-inverter/pkg/device"
	"github.com/edp1096/cmos-inverter/pkg/inverter"
	"github.com/go-logr/logr"
)

// Node names of the inverter netlist.
const (
	NodeVdd = "vdd"
	NodeIn  = "in"
	NodeOut = "out"
)

// Inverter is the MNA netlist of one CMOS inverter:
//
//	VDD vdd 0
//	VIN in  0
//	MN  out in 0   0
//	MP  out in vdd vdd
//	CL  out 0
type Inverter struct {
	*Circuit
	Supply *device.VoltageSource
	Input  *device.VoltageSource
	Pull   *device.Mosfet // NMOS pull-down
	Push   *device.Mosfet // PMOS pull-up
	Load   *device.Capacitor

	OutNode int
	InNode  int
	VddNode int
}

func NewInverter(cfg inverter.Configuration, wf device.Waveform, log logr.Logger) (*Inverter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	mn, err := device.NewMosfet("MN", []string{NodeOut, NodeIn, "0", "0"}, device.NMOS, cfg.NMOS.Vt, cfg.NMOS.Beta)
	if err != nil {
		return nil, err
	}
	mp, err := device.NewMosfet("MP", []string{NodeOut, NodeIn, NodeVdd, NodeVdd}, device.PMOS, cfg.PMOS.Vt, cfg.PMOS.Beta)
	if err != nil {
		return nil, err
	}

	inv := &Inverter{
		Circuit: New(cfg.Name, log),
		Supply:  device.NewDCVoltageSource("VDD", []string{NodeVdd, "0"}, cfg.Vdd),
		Input:   device.NewVoltageSource("VIN", []string{NodeIn, "0"}, wf),
		Pull:    mn,
		Push:    mp,
		Load:    device.NewCapacitor("CL", []string{NodeOut, "0"}, cfg.LoadCapacitance),
	}
	inv.Add(inv.Supply, inv.Input, inv.Pull, inv.Push, inv.Load)

	if err := inv.Build(); err != nil {
		inv.Destroy()
		return nil, fmt.Errorf("building inverter: %v", err)
	}

	inv.VddNode = inv.nodeMap[NodeVdd]
	inv.InNode = inv.nodeMap[NodeIn]
	inv.OutNode = inv.nodeMap[NodeOut]
	return inv, nil
}
