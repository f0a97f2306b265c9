package device

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateNMOS(t *testing.T) {
	tests := []struct {
		name     string
		vgs, vds float64
		wantId   float64
		region   Region
	}{
		{"cutoff", 0.5, 2, 0, CUTOFF},
		{"at threshold", 1, 2, 0, CUTOFF},
		{"triode", 3, 1, 100e-6 * 1 * (2 - 0.5), TRIODE},
		{"saturation", 3, 4, 0.5 * 100e-6 * 4, SATURATION},
		{"edge of saturation", 3, 2, 0.5 * 100e-6 * 4, SATURATION},
		{"no drain bias", 3, 0, 0, TRIODE},
		{"reverse drain bias", 3, -1, 0, TRIODE},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, region := Evaluate(tt.vgs, tt.vds, 1, 100e-6, NMOS)
			assert.InDelta(t, tt.wantId, id, 1e-15)
			assert.Equal(t, tt.region, region)
		})
	}
}

func TestEvaluatePMOSMirrorsNMOS(t *testing.T) {
	for _, v := range [][2]float64{{3, 1}, {3, 4}, {0.5, 2}, {2, 0.3}} {
		n, nr := Evaluate(v[0], v[1], 1, 50e-6, NMOS)
		p, pr := Evaluate(-v[0], -v[1], -1, 50e-6, PMOS)
		assert.Equal(t, n, p)
		assert.Equal(t, nr, pr)
	}
}

func TestEvaluateNeverNegativeOrNaN(t *testing.T) {
	for _, vgs := range []float64{-5, -1, 0, 1, 2.5, 5} {
		for _, vds := range []float64{-5, -0.1, 0, 0.1, 2.5, 5} {
			for _, pol := range []Polarity{NMOS, PMOS} {
				id := Current(vgs, vds, 1*pol.sign(), 1e-4, pol)
				assert.False(t, math.IsNaN(id))
				assert.GreaterOrEqual(t, id, 0.0)
			}
		}
	}

	id, _ := Evaluate(1e200, 1e200, 0, 1e300, NMOS)
	assert.Equal(t, math.MaxFloat64, id)
}

func TestConductances(t *testing.T) {
	gm, gds := Conductances(3, 1, 1, 100e-6, NMOS)
	assert.InDelta(t, 100e-6*1, gm, 1e-15)
	assert.InDelta(t, 100e-6*(2-1), gds, 1e-15)

	gm, gds = Conductances(3, 4, 1, 100e-6, NMOS)
	assert.InDelta(t, 100e-6*2, gm, 1e-15)
	assert.Zero(t, gds)

	gm, gds = Conductances(0, 4, 1, 100e-6, NMOS)
	assert.Zero(t, gm)
	assert.Zero(t, gds)
}

func TestNewMosfetNodes(t *testing.T) {
	_, err := NewMosfet("M1", []string{"d", "g"}, NMOS, 1, 1e-4)
	assert.Error(t, err)

	m, err := NewMosfet("M1", []string{"d", "g", "s"}, PMOS, -1, 1e-4)
	assert.NoError(t, err)
	assert.Equal(t, "M", m.GetType())
	assert.Equal(t, "PMOS", m.Type.String())
}

type recordingMatrix struct {
	a   map[[2]int]float64
	rhs map[int]float64
}

func newRecordingMatrix() *recordingMatrix {
	return &recordingMatrix{a: map[[2]int]float64{}, rhs: map[int]float64{}}
}

func (r *recordingMatrix) AddElement(i, j int, v float64) { r.a[[2]int{i, j}] += v }
func (r *recordingMatrix) AddRHS(i int, v float64)        { r.rhs[i] += v }

func TestMosfetStampKCL(t *testing.T) {
	m, err := NewMosfet("MN", []string{"out", "in", "0"}, NMOS, 1, 100e-6)
	assert.NoError(t, err)
	m.SetNodes([]int{2, 1, 0})

	// v[1] = gate 3 V, v[2] = drain 4 V
	assert.NoError(t, m.UpdateVoltages([]float64{0, 3, 4}))
	mat := newRecordingMatrix()
	assert.NoError(t, m.Stamp(mat, &CircuitStatus{}))

	assert.Equal(t, SATURATION, m.GetRegion())
	assert.InDelta(t, 200e-6, m.GetId(), 1e-15)
	assert.InDelta(t, 200e-6, mat.a[[2]int{2, 1}], 1e-15) // gm
	// The linearized current at the operating point equals id
	linear := mat.a[[2]int{2, 1}]*3 + mat.a[[2]int{2, 2}]*4 - mat.rhs[2]
	assert.InDelta(t, m.GetId(), linear, 1e-12)
}

func TestPMOSStampSign(t *testing.T) {
	m, err := NewMosfet("MP", []string{"out", "in", "vdd"}, PMOS, -1, 100e-6)
	assert.NoError(t, err)
	m.SetNodes([]int{3, 2, 1})

	// vdd 5 V, gate 0 V, drain 1 V: on and saturated
	assert.NoError(t, m.UpdateVoltages([]float64{0, 5, 0, 1}))
	assert.NoError(t, m.Stamp(newRecordingMatrix(), &CircuitStatus{}))
	assert.Less(t, m.GetId(), 0.0)
	assert.Equal(t, SATURATION, m.GetRegion())
	assert.InDelta(t, -5.0, m.GetVgs(), 1e-12)
	assert.InDelta(t, -4.0, m.GetVds(), 1e-12)
}
