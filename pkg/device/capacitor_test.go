package device

import (
	"testing"

	"github.com/edp1096/cmos-inverter/pkg/util"
	"github.com/stretchr/testify/assert"
)

func TestCapacitorOPStampsGmin(t *testing.T) {
	c := NewCapacitor("CL", []string{"out", "0"}, 1e-12)
	c.SetNodes([]int{1, 0})

	mat := newRecordingMatrix()
	assert.NoError(t, c.Stamp(mat, &CircuitStatus{Mode: OperatingPointAnalysis}))
	assert.Equal(t, 1e-12, mat.a[[2]int{1, 1}])
	assert.Empty(t, mat.rhs)
}

func TestCapacitorBackwardEulerCompanion(t *testing.T) {
	c := NewCapacitor("CL", []string{"out", "0"}, 1e-12)
	c.SetNodes([]int{1, 0})
	c.SetInitialVoltage(2)

	status := &CircuitStatus{Mode: TransientAnalysis, TimeStep: 1e-9, Method: int(util.GearMethod), Order: 1}
	mat := newRecordingMatrix()
	assert.NoError(t, c.Stamp(mat, status))

	// i = C/h·(v - v1)
	assert.InDelta(t, 1e-3, mat.a[[2]int{1, 1}], 1e-15)
	assert.InDelta(t, 2e-3, mat.rhs[1], 1e-15)

	c.UpdateState([]float64{0, 1}, status)
	assert.InDelta(t, -1e-3, c.GetCurrent(), 1e-15)
}

func TestCapacitorTrapezoidalCompanion(t *testing.T) {
	c := NewCapacitor("CL", []string{"out", "0"}, 1e-12)
	c.SetNodes([]int{1, 0})
	c.SetInitialVoltage(1)

	status := &CircuitStatus{Mode: TransientAnalysis, TimeStep: 1e-9, Method: int(util.TrapezoidalMethod), Order: 2}
	geq, ieq := c.companion(status)
	assert.InDelta(t, 2e-3, geq, 1e-15)
	assert.InDelta(t, -2e-3, ieq, 1e-15)
}
