package matrix

import (
	"fmt"
	"io"

	"github.com/edp1096/sparse"
	"github.com/go-logr/logr"
	"github.com/pkg/errors"
)

// CircuitMatrix is a real MNA system backed by a sparse LU matrix.
type CircuitMatrix struct {
	Size     int
	matrix   *sparse.Matrix
	rhs      []float64
	solution []float64
	config   *sparse.Configuration
	log      logr.Logger
}

var _ DeviceMatrix = (*CircuitMatrix)(nil)

func NewMatrix(size int, log logr.Logger) (*CircuitMatrix, error) {
	if size <= 0 {
		return nil, errors.Errorf("matrix size must be positive, got %d", size)
	}

	config := &sparse.Configuration{
		Real:                    true,
		Complex:                 false,
		SeparatedComplexVectors: false,
		Expandable:              true,
		Translate:               true,
		ModifiedNodal:           true,
		TiesMultiplier:          5,
		PrinterWidth:            140,
		Annotate:                0,
	}

	mat, err := sparse.Create(int64(size), config)
	if err != nil {
		return nil, errors.Wrap(err, "creating sparse matrix")
	}

	return &CircuitMatrix{
		Size:     size,
		matrix:   mat,
		rhs:      make([]float64, size+1), // 1-based indexing
		solution: make([]float64, size+1),
		config:   config,
		log:      log,
	}, nil
}

// SetupElements allocates every element so the fill pattern is fixed before
// the first factorization.
func (m *CircuitMatrix) SetupElements() {
	for i := 1; i <= m.Size; i++ {
		for j := 1; j <= m.Size; j++ {
			m.matrix.GetElement(int64(i), int64(j))
		}
	}
}

func (m *CircuitMatrix) inBounds(i int) bool {
	return i > 0 && i <= m.Size
}

func (m *CircuitMatrix) AddElement(i, j int, value float64) {
	if !m.inBounds(i) || !m.inBounds(j) {
		m.log.V(1).Info("matrix index out of bounds", "i", i, "j", j, "size", m.Size)
		return
	}
	m.matrix.GetElement(int64(i), int64(j)).Real += value
}

func (m *CircuitMatrix) AddRHS(i int, value float64) {
	if !m.inBounds(i) {
		m.log.V(1).Info("rhs index out of bounds", "i", i, "size", m.Size)
		return
	}
	m.rhs[i] += value
}

// LoadGmin adds gmin to every diagonal element.
func (m *CircuitMatrix) LoadGmin(gmin float64) {
	for i := 1; i <= m.Size; i++ {
		if diag := m.matrix.Diags[i]; diag != nil {
			diag.Real += gmin
		}
	}
}

func (m *CircuitMatrix) Clear() {
	m.matrix.Clear()
	for i := range m.rhs {
		m.rhs[i] = 0
	}
}

func (m *CircuitMatrix) Solve() error {
	if err := m.matrix.Factor(); err != nil {
		return errors.Wrap(err, "matrix factorization failed")
	}

	solution, err := m.matrix.Solve(m.rhs)
	if err != nil {
		return errors.Wrap(err, "matrix solve failed")
	}
	m.solution = solution

	return nil
}

func (m *CircuitMatrix) RHS() []float64 {
	return m.rhs
}

// Solution returns the 1-based solution vector of the last Solve.
func (m *CircuitMatrix) Solution() []float64 {
	return m.solution
}

// PrintSystem writes the current equations, one row per line.
func (m *CircuitMatrix) PrintSystem(w io.Writer) {
	fmt.Fprintf(w, "Circuit Equations (%dx%d):\n", m.Size, m.Size)
	for i := 1; i <= m.Size; i++ {
		fmt.Fprintf(w, "Equation %d:", i)
		for j := 1; j <= m.Size; j++ {
			if v := m.matrix.GetElement(int64(i), int64(j)).Real; v != 0 {
				fmt.Fprintf(w, "  %+g*x%d", v, j)
			}
		}
		fmt.Fprintf(w, " = %g\n", m.rhs[i])
	}
}

func (m *CircuitMatrix) Destroy() {
	if m.matrix != nil {
		m.matrix.Destroy()
		m.matrix = nil
	}
}
