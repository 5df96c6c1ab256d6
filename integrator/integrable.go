package integrator

// Integrable defines something which can be integrated, i.e. has a state vector.
// WARNING: Implementation must manage its own state based on the integration time.
type Integrable interface {
	GetState() []float64                   // Get the latest state of this integrable.
	SetState(t float64, s []float64)       // Set the state s reached at time t.
	Stop(t float64) bool                   // Return whether to stop the integration from time t.
	Func(t float64, s []float64) []float64 // ODE function from time t and state s, must return a new state.
}
