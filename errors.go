package heat

import "errors"

// Every precondition violation of the conduction core is reported with one of these. Callers match
// them with errors.Is, context is attached with errors.Wrapf.
var (
	// ErrInvalidParameter is returned when a physical parameter is out of range (e.g. alpha <= 0).
	ErrInvalidParameter = errors.New("heat: invalid parameter")
	// ErrUnknownBoundaryCondition is returned when a boundary condition name is not recognized.
	ErrUnknownBoundaryCondition = errors.New("heat: unknown boundary condition")
	// ErrShape is returned when a state is not a flat vector of at least two finite temperatures.
	ErrShape = errors.New("heat: state must be a flat vector")
)
