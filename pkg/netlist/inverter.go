package netlist

import (
	"fmt"
	"math"
	"strings"

	"github.com/edp1096/cmos-inverter/pkg/device"
	"github.com/edp1096/cmos-inverter/pkg/inverter"
)

// SPICE level 1 defaults
const (
	defaultKP = 2e-5
	defaultVT = 0.0
)

// Inverter is the single-inverter view of a deck.
type Inverter struct {
	Config      inverter.Configuration
	Input       device.Waveform
	InputSource string
	InputNode   string
	OutputNode  string
	SupplyNode  string
}

func isGround(node string) bool {
	return node == "0" || strings.EqualFold(node, "gnd")
}

// transistorParams folds the model and instance geometry into Vt and β.
// A PMOS threshold is always stored negative so decks may give either sign.
func (d *Deck) transistorParams(e Element) (inverter.DeviceParameters, string, error) {
	model, ok := d.Models[e.Model]
	if !ok {
		return inverter.DeviceParameters{}, "", fmt.Errorf("undefined model %s for %s", e.Model, e.Name)
	}

	get := func(name string, def float64) (float64, error) {
		if s, ok := e.Params[name]; ok {
			return ParseValue(s)
		}
		if v, ok := model.Params[name]; ok {
			return v, nil
		}
		return def, nil
	}

	vto, err := get("vto", defaultVT)
	if err != nil {
		return inverter.DeviceParameters{}, "", err
	}
	kp, err := get("kp", defaultKP)
	if err != nil {
		return inverter.DeviceParameters{}, "", err
	}
	w, err := get("w", 1)
	if err != nil {
		return inverter.DeviceParameters{}, "", err
	}
	l, err := get("l", 1)
	if err != nil {
		return inverter.DeviceParameters{}, "", err
	}
	if l <= 0 || w <= 0 {
		return inverter.DeviceParameters{}, "", fmt.Errorf("%s: w and l must be positive", e.Name)
	}

	p := inverter.DeviceParameters{Vt: vto, Beta: inverter.BetaFromGeometry(kp, w, l)}
	if beta, ok := model.Params["beta"]; ok {
		p.Beta = beta
	}
	if model.Type == "PMOS" {
		p.Vt = -math.Abs(p.Vt)
	}
	return p, model.Type, nil
}

// Inverter checks that the deck is one CMOS inverter and extracts its
// configuration: an NMOS from out to ground, a PMOS from out to the supply,
// shared gates, a DC supply source, an input source and load capacitance on
// the output.
func (d *Deck) Inverter() (*Inverter, error) {
	var nmos, pmos *Element
	var nParams, pParams inverter.DeviceParameters

	for i := range d.Elements {
		e := &d.Elements[i]
		if e.Type != "M" {
			continue
		}
		params, kind, err := d.transistorParams(*e)
		if err != nil {
			return nil, err
		}
		switch {
		case kind == "NMOS" && nmos == nil:
			nmos, nParams = e, params
		case kind == "PMOS" && pmos == nil:
			pmos, pParams = e, params
		default:
			return nil, fmt.Errorf("more than one %s transistor: only a single inverter is supported", kind)
		}
	}
	if nmos == nil || pmos == nil {
		return nil, fmt.Errorf("inverter needs one NMOS and one PMOS transistor")
	}

	inv := &Inverter{
		InputNode:  nmos.Nodes[1],
		OutputNode: nmos.Nodes[0],
		SupplyNode: pmos.Nodes[2],
	}
	switch {
	case pmos.Nodes[1] != inv.InputNode:
		return nil, fmt.Errorf("gates of %s and %s are not connected", nmos.Name, pmos.Name)
	case pmos.Nodes[0] != inv.OutputNode:
		return nil, fmt.Errorf("drains of %s and %s are not connected", nmos.Name, pmos.Name)
	case !isGround(nmos.Nodes[2]):
		return nil, fmt.Errorf("source of %s must be ground", nmos.Name)
	case isGround(inv.SupplyNode):
		return nil, fmt.Errorf("source of %s must be the supply node", pmos.Name)
	}

	var vdd float64
	var haveSupply bool
	var load float64
	for _, e := range d.Elements {
		switch e.Type {
		case "V":
			if !isGround(e.Nodes[1]) {
				return nil, fmt.Errorf("source %s must be referenced to ground", e.Name)
			}
			switch e.Nodes[0] {
			case inv.SupplyNode:
				if e.Params["type"] != "dc" {
					return nil, fmt.Errorf("supply %s must be DC", e.Name)
				}
				vdd, haveSupply = e.Value, true
			case inv.InputNode:
				wf, err := e.Waveform()
				if err != nil {
					return nil, fmt.Errorf("input %s: %v", e.Name, err)
				}
				inv.Input, inv.InputSource = wf, e.Name
			}

		case "C":
			a, b := e.Nodes[0], e.Nodes[1]
			if b == inv.OutputNode {
				a, b = b, a
			}
			// The supply is an AC ground, so out-vdd capacitance loads the node too
			if a == inv.OutputNode && (isGround(b) || b == inv.SupplyNode) {
				load += e.Value
			}
		}
	}
	if !haveSupply {
		return nil, fmt.Errorf("no DC supply source on node %s", inv.SupplyNode)
	}
	if inv.Input == nil {
		return nil, fmt.Errorf("no input source on node %s", inv.InputNode)
	}

	inv.Config = inverter.Configuration{
		Name:            d.Title,
		Vdd:             vdd,
		NMOS:            nParams,
		PMOS:            pParams,
		LoadCapacitance: load,
	}
	if err := inv.Config.Validate(); err != nil {
		return nil, err
	}
	return inv, nil
}
