package matrix

import (
	"bytes"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSolve2x2(t *testing.T) {
	m, err := NewMatrix(2, logr.Discard())
	require.NoError(t, err)
	defer m.Destroy()
	m.SetupElements()

	// 2x + y = 3, x + 3y = 5
	m.AddElement(1, 1, 2)
	m.AddElement(1, 2, 1)
	m.AddElement(2, 1, 1)
	m.AddElement(2, 2, 3)
	m.AddRHS(1, 3)
	m.AddRHS(2, 5)

	require.NoError(t, m.Solve())
	x := m.Solution()
	assert.InDelta(t, 0.8, x[1], 1e-12)
	assert.InDelta(t, 1.4, x[2], 1e-12)
}

func TestClearAndResolve(t *testing.T) {
	m, err := NewMatrix(1, logr.Discard())
	require.NoError(t, err)
	defer m.Destroy()
	m.SetupElements()

	m.AddElement(1, 1, 4)
	m.AddRHS(1, 2)
	require.NoError(t, m.Solve())
	assert.InDelta(t, 0.5, m.Solution()[1], 1e-12)

	m.Clear()
	assert.Equal(t, []float64{0, 0}, m.RHS())

	m.AddElement(1, 1, 1)
	m.LoadGmin(1)
	m.AddRHS(1, 4)
	require.NoError(t, m.Solve())
	assert.InDelta(t, 2.0, m.Solution()[1], 1e-12)
}

func TestOutOfBoundsIgnored(t *testing.T) {
	m, err := NewMatrix(1, logr.Discard())
	require.NoError(t, err)
	defer m.Destroy()

	m.AddElement(0, 1, 1)
	m.AddElement(1, 2, 1)
	m.AddRHS(5, 1)
	assert.Equal(t, []float64{0, 0}, m.RHS())
}

func TestNewMatrixRejectsEmpty(t *testing.T) {
	_, err := NewMatrix(0, logr.Discard())
	assert.Error(t, err)
}

func TestPrintSystem(t *testing.T) {
	m, err := NewMatrix(2, logr.Discard())
	require.NoError(t, err)
	defer m.Destroy()

	m.AddElement(1, 1, 2)
	m.AddElement(2, 2, -1)
	m.AddRHS(2, 7)

	var buf bytes.Buffer
	m.PrintSystem(&buf)
	assert.Equal(t, "Circuit Equations (2x2):\nEquation 1:  +2*x1 = 0\nEquation 2:  -1*x2 = 7\n", buf.String())
}
