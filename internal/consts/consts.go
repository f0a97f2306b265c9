package consts

const (
	VOLTAGE_RELTOL = 1e-6  // Solver voltage tolerance, relative to Vdd
	CURRENT_ABSTOL = 1e-15 // Current residual floor (A)
	MAX_ITER       = 100   // Bisection / Newton iteration cap
	GMIN           = 1e-12 // Minimum conductance for numerical stability (S)
	MAX_STEPS      = 10_000_000
	MAX_HALVINGS   = 10 // Sub-step halvings before an implicit step is given up
)
