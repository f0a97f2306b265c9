package circuit

import (
	"fmt"

	"github.com/edp1096/cmos-inverter/internal/consts"
	"github.com/edp1096/cmos-inverter/pkg/device"
	"github.com/edp1096/cmos-inverter/pkg/matrix"
	"github.com/go-logr/logr"
)

// Circuit owns the devices of one netlist and the MNA matrix they stamp into.
type Circuit struct {
	name             string
	nodeMap          map[string]int
	branchMap        map[string]int
	devices          []device.Device
	numNodes         int
	matrix           *matrix.CircuitMatrix
	Status           *device.CircuitStatus
	nonlinearDevices []device.NonLinear
	log              logr.Logger
}

func New(name string, log logr.Logger) *Circuit {
	return &Circuit{
		name:      name,
		nodeMap:   make(map[string]int),
		branchMap: make(map[string]int),
		devices:   make([]device.Device, 0),
		Status:    &device.CircuitStatus{Gmin: consts.GMIN},
		log:       log,
	}
}

func isGround(nodeName string) bool {
	return nodeName == "0" || nodeName == "gnd"
}

func (c *Circuit) Add(devs ...device.Device) {
	c.devices = append(c.devices, devs...)
}

// AssignNodeBranchMaps numbers the nodes in order of appearance, then gives
// every voltage source a branch row after the last node.
func (c *Circuit) AssignNodeBranchMaps() error {
	for _, dev := range c.devices {
		for _, nodeName := range dev.GetNodeNames() {
			if isGround(nodeName) {
				continue
			}
			if _, exists := c.nodeMap[nodeName]; !exists {
				c.nodeMap[nodeName] = len(c.nodeMap) + 1
			}
		}
	}
	if len(c.nodeMap) == 0 {
		return fmt.Errorf("circuit %s has no non-ground nodes", c.name)
	}

	branchStart := len(c.nodeMap) + 1
	for _, dev := range c.devices {
		if dev.GetType() != "V" {
			continue
		}
		if _, exists := c.branchMap[dev.GetName()]; exists {
			return fmt.Errorf("duplicate voltage source %s", dev.GetName())
		}
		c.branchMap[dev.GetName()] = branchStart
		branchStart++
	}

	c.numNodes = len(c.nodeMap)
	return nil
}

func (c *Circuit) CreateMatrix() error {
	matrixSize := len(c.nodeMap) + len(c.branchMap)
	m, err := matrix.NewMatrix(matrixSize, c.log)
	if err != nil {
		return fmt.Errorf("creating matrix: %v", err)
	}
	c.matrix = m
	return nil
}

func (c *Circuit) SetupDevices() error {
	for _, dev := range c.devices {
		nodeIndices := make([]int, len(dev.GetNodeNames()))
		for i, nodeName := range dev.GetNodeNames() {
			if isGround(nodeName) {
				continue
			}
			nodeIndices[i] = c.nodeMap[nodeName]
		}
		dev.SetNodes(nodeIndices)

		if v, ok := dev.(*device.VoltageSource); ok {
			v.SetBranchIndex(c.branchMap[dev.GetName()])
		}

		if nl, ok := dev.(device.NonLinear); ok {
			c.nonlinearDevices = append(c.nonlinearDevices, nl)
		}
	}

	// Initial stamp fixes the fill pattern
	if err := c.Stamp(&device.CircuitStatus{Gmin: consts.GMIN}); err != nil {
		return fmt.Errorf("initial stamping failed: %v", err)
	}
	c.matrix.SetupElements()

	return nil
}

// Build numbers the nodes, allocates the matrix and binds every device.
func (c *Circuit) Build() error {
	if err := c.AssignNodeBranchMaps(); err != nil {
		return err
	}
	if err := c.CreateMatrix(); err != nil {
		return err
	}
	return c.SetupDevices()
}

func (c *Circuit) Stamp(status *device.CircuitStatus) error {
	for _, dev := range c.devices {
		if err := dev.Stamp(c.matrix, status); err != nil {
			return fmt.Errorf("stamping device %s: %v", dev.GetName(), err)
		}
	}
	return nil
}

// Update commits an accepted solution to every device that keeps history.
func (c *Circuit) Update(solution []float64, status *device.CircuitStatus) {
	c.Status = status

	for _, dev := range c.devices {
		if td, ok := dev.(device.TimeDependent); ok {
			td.UpdateState(solution, status)
		}
	}
}

func (c *Circuit) UpdateNonlinearVoltages(solution []float64) error {
	for _, dev := range c.nonlinearDevices {
		if err := dev.UpdateVoltages(solution); err != nil {
			return fmt.Errorf("updating voltages: %v", err)
		}
	}
	return nil
}

func (c *Circuit) GetMatrix() *matrix.CircuitMatrix {
	return c.matrix
}

func (c *Circuit) GetNodeMap() map[string]int {
	return c.nodeMap
}

func (c *Circuit) GetBranchMap() map[string]int {
	return c.branchMap
}

// NodeIndex returns the matrix row of a named node, 0 for ground.
func (c *Circuit) NodeIndex(name string) (int, bool) {
	if isGround(name) {
		return 0, true
	}
	idx, ok := c.nodeMap[name]
	return idx, ok
}

func (c *Circuit) GetNodeVoltage(nodeIdx int) float64 {
	if nodeIdx <= 0 || c.matrix == nil { // ground or invalid node
		return 0
	}

	solution := c.matrix.Solution()
	if nodeIdx >= len(solution) {
		return 0
	}
	return solution[nodeIdx]
}

// BranchCurrent returns the current a voltage source delivers from its
// positive terminal.
func (c *Circuit) BranchCurrent(name string) float64 {
	idx, ok := c.branchMap[name]
	if !ok || c.matrix == nil {
		return 0
	}
	solution := c.matrix.Solution()
	if idx >= len(solution) {
		return 0
	}
	return -solution[idx]
}

// GetSolution names every unknown of the last solve: V(node) and I(source).
func (c *Circuit) GetSolution() map[string]float64 {
	solution := make(map[string]float64)
	for name, idx := range c.nodeMap {
		solution[fmt.Sprintf("V(%s)", name)] = c.GetNodeVoltage(idx)
	}
	for name := range c.branchMap {
		solution[fmt.Sprintf("I(%s)", name)] = c.BranchCurrent(name)
	}
	return solution
}

func (c *Circuit) Destroy() {
	if c.matrix != nil {
		c.matrix.Destroy()
	}
}

func (c *Circuit) Name() string {
	return c.name
}

func (c *Circuit) GetNumNodes() int {
	return c.numNodes
}

func (c *Circuit) Size() int {
	return len(c.nodeMap) + len(c.branchMap)
}
