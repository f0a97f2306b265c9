package matrix

// DeviceMatrix is the view of the MNA system a device stamps into.
type DeviceMatrix interface {
	AddElement(i, j int, value float64) // 1-based indexing
	AddRHS(i int, value float64)
}
