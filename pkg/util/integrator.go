package util

// IntegrationMethod selects the companion model of a reactive element.
type IntegrationMethod int

const (
	GearMethod IntegrationMethod = iota // Backward differentiation, order 1 is backward Euler
	TrapezoidalMethod
)

func (m IntegrationMethod) String() string {
	if m == TrapezoidalMethod {
		return "trapezoidal"
	}
	return "gear"
}

// MaxOrder is the highest order GetIntegratorCoeffs accepts for m.
func (m IntegrationMethod) MaxOrder() int {
	if m == TrapezoidalMethod {
		return 2
	}
	return len(bdfTable)
}

// bdfTable[k-1] is the order-k formula
// x'_n ≈ (x_n - Σ alpha_j·x_{n-j}) / (beta·dt).
var bdfTable = [6]struct {
	alpha []float64
	beta  float64
}{
	{[]float64{1.0}, 1.0},
	{[]float64{4.0 / 3.0, -1.0 / 3.0}, 2.0 / 3.0},
	{[]float64{18.0 / 11.0, -9.0 / 11.0, 2.0 / 11.0}, 6.0 / 11.0},
	{[]float64{48.0 / 25.0, -36.0 / 25.0, 16.0 / 25.0, -3.0 / 25.0}, 12.0 / 25.0},
	{[]float64{300.0 / 137.0, -300.0 / 137.0, 200.0 / 137.0, -75.0 / 137.0, 12.0 / 137.0}, 60.0 / 137.0},
	{[]float64{360.0 / 147.0, -450.0 / 147.0, 400.0 / 147.0, -225.0 / 147.0, 72.0 / 147.0, -10.0 / 147.0}, 60.0 / 147.0},
}

// GetIntegratorCoeffs returns the derivative weights of the method. For Gear
// the result has order+1 entries so that x'_n ≈ Σ c_k·x_{n-k}. Trapezoidal
// returns the single conductance factor of its companion model.
// Out-of-range orders fall back to 1.
func GetIntegratorCoeffs(method IntegrationMethod, order int, dt float64) []float64 {
	switch method {
	case TrapezoidalMethod:
		return GetTrapezoidalCoeffs(order, dt)
	default:
		return GetBDFcoeffs(order, dt)
	}
}

func GetBDFcoeffs(order int, dt float64) []float64 {
	if order < 1 || order > len(bdfTable) {
		order = 1
	}

	formula := bdfTable[order-1]
	scale := 1.0 / (formula.beta * dt)

	coeffs := make([]float64, order+1)
	coeffs[0] = scale
	for k, a := range formula.alpha {
		coeffs[k+1] = -a * scale
	}
	return coeffs
}

// GetTrapezoidalCoeffs gives 2/dt for order 2 and the backward Euler 1/dt
// used to start the method.
func GetTrapezoidalCoeffs(order int, dt float64) []float64 {
	if order == 2 {
		return []float64{2.0 / dt}
	}
	return []float64{1.0 / dt}
}
