package heat

import (
	"strings"

	"github.com/pkg/errors"
)

// BoundaryCondition defines an enum of the endpoint treatments of the rod.
type BoundaryCondition uint8

const (
	// Dirichlet holds both endpoints at their current temperature.
	Dirichlet BoundaryCondition = iota + 1
	// Neumann enforces a zero temperature gradient (insulated ends).
	Neumann
	// Periodic wraps the rod around so that both endpoints neighbour each other.
	Periodic
	// Extrapolated lets each endpoint follow the rate of change of its interior neighbour.
	// It is selected by the name "boundhandl".
	Extrapolated
)

func (bc BoundaryCondition) String() string {
	switch bc {
	case Dirichlet:
		return "dirichlet"
	case Neumann:
		return "neumann"
	case Periodic:
		return "periodic"
	case Extrapolated:
		return "boundhandl"
	}
	return "unknown"
}

// Handler returns the strategy implementing this boundary condition.
func (bc BoundaryCondition) Handler() (BoundaryHandler, error) {
	switch bc {
	case Dirichlet:
		return DirichletHandler{}, nil
	case Neumann:
		return NeumannHandler{}, nil
	case Periodic:
		return PeriodicHandler{}, nil
	case Extrapolated:
		return ExtrapolatedHandler{}, nil
	}
	return nil, errors.Wrapf(ErrUnknownBoundaryCondition, "enum value %d", uint8(bc))
}

// BoundaryConditionFromString returns the boundary condition from its name (case insensitive).
func BoundaryConditionFromString(name string) (BoundaryCondition, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "dirichlet", "fixed":
		return Dirichlet, nil
	case "neumann", "insulated":
		return Neumann, nil
	case "periodic":
		return Periodic, nil
	case "boundhandl", "extrapolated":
		return Extrapolated, nil
	}
	return 0, errors.Wrapf(ErrUnknownBoundaryCondition, "%q", name)
}

// BoundaryHandler sets the time derivative of both endpoints of the rod.
// Apply is called after the interior of du has been computed; u has at least two points and
// coef is alpha/dx².
// Each handler treats the endpoints differently once there is an interior point (n >= 3).
// On two points Dirichlet and Extrapolated both freeze the rod, and Neumann and Periodic coincide
// since each endpoint is the only neighbour of the other.
type BoundaryHandler interface {
	Kind() BoundaryCondition
	Apply(u, du []float64, coef float64)
}

// DirichletHandler keeps the endpoints where they are.
type DirichletHandler struct{}

// Kind implements the BoundaryHandler interface.
func (DirichletHandler) Kind() BoundaryCondition { return Dirichlet }

// Apply implements the BoundaryHandler interface.
func (DirichletHandler) Apply(u, du []float64, coef float64) {
	du[0] = 0
	du[len(du)-1] = 0
}

// NeumannHandler mirrors the first interior point across each end (ghost node), hence no heat flux.
type NeumannHandler struct{}

// Kind implements the BoundaryHandler interface.
func (NeumannHandler) Kind() BoundaryCondition { return Neumann }

// Apply implements the BoundaryHandler interface.
func (NeumannHandler) Apply(u, du []float64, coef float64) {
	n := len(u)
	du[0] = 2 * coef * (u[1] - u[0])
	du[n-1] = 2 * coef * (u[n-2] - u[n-1])
}

// PeriodicHandler treats the last point as the left neighbour of the first one and vice versa.
// The n points then form a ring of n cells: the sum of u is conserved, not its trapezoidal integral.
type PeriodicHandler struct{}

// Kind implements the BoundaryHandler interface.
func (PeriodicHandler) Kind() BoundaryCondition { return Periodic }

// Apply implements the BoundaryHandler interface.
func (PeriodicHandler) Apply(u, du []float64, coef float64) {
	n := len(u)
	du[0] = coef * (u[n-1] - 2*u[0] + u[1])
	du[n-1] = coef * (u[n-2] - 2*u[n-1] + u[0])
}

// ExtrapolatedHandler copies the derivative of the nearest interior point onto each endpoint
// (zeroth order extrapolation of du/dt). With no interior point the rod is frozen.
type ExtrapolatedHandler struct{}

// Kind implements the BoundaryHandler interface.
func (ExtrapolatedHandler) Kind() BoundaryCondition { return Extrapolated }

// Apply implements the BoundaryHandler interface.
func (ExtrapolatedHandler) Apply(u, du []float64, coef float64) {
	n := len(u)
	if n < 3 {
		du[0] = 0
		du[n-1] = 0
		return
	}
	du[0] = du[1]
	du[n-1] = du[n-2]
}
