package heat

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

/* Handles the semi-discretized 1-D heat equation du/dt = α d²u/dx². */

const (
	// DefaultLength is the length of the rod when none is provided.
	DefaultLength = 1.0
)

// ConductHeatEqn defines the heat equation on a rod with a given boundary condition.
// It is immutable once created, hence safe for concurrent use.
type ConductHeatEqn struct {
	boundary BoundaryHandler // Resolved once, at creation.
	alpha    float64         // Thermal diffusivity.
	length   float64         // Length of the rod.
}

// NewConductHeatEqn is the same as NewPreciseConductHeatEqn on a rod of DefaultLength.
func NewConductHeatEqn(kind string, alpha float64) (*ConductHeatEqn, error) {
	return NewPreciseConductHeatEqn(kind, alpha, DefaultLength)
}

// NewPreciseConductHeatEqn returns a new heat equation for the named boundary condition,
// the diffusivity alpha and the rod length.
func NewPreciseConductHeatEqn(kind string, alpha, length float64) (*ConductHeatEqn, error) {
	if !isFinite(alpha) || alpha <= 0 {
		return nil, errors.Wrapf(ErrInvalidParameter, "alpha must be positive, got %f", alpha)
	}
	if !isFinite(length) || length <= 0 {
		return nil, errors.Wrapf(ErrInvalidParameter, "length must be positive, got %f", length)
	}
	bc, err := BoundaryConditionFromString(kind)
	if err != nil {
		return nil, err
	}
	handler, err := bc.Handler()
	if err != nil {
		return nil, err
	}
	return &ConductHeatEqn{handler, alpha, length}, nil
}

// Alpha returns the thermal diffusivity.
func (h *ConductHeatEqn) Alpha() float64 {
	return h.alpha
}

// Length returns the length of the rod.
func (h *ConductHeatEqn) Length() float64 {
	return h.length
}

// Boundary returns the boundary condition.
func (h *ConductHeatEqn) Boundary() BoundaryCondition {
	return h.boundary.Kind()
}

func (h *ConductHeatEqn) String() string {
	return fmt.Sprintf("heat(α=%g, L=%g, bc=%s)", h.alpha, h.length, h.boundary.Kind())
}

// RHS returns du/dt for the provided temperatures.
// The state must be a column vector of at least two finite temperatures, anything else
// (e.g. a 2x2 matrix or a row vector) is rejected with ErrShape.
func (h *ConductHeatEqn) RHS(state mat.Matrix) (*mat.VecDense, error) {
	if state == nil {
		return nil, errors.Wrap(ErrShape, "nil state")
	}
	r, c := state.Dims()
	if c != 1 {
		return nil, errors.Wrapf(ErrShape, "got %dx%d, expected a column vector", r, c)
	}
	du, err := h.rhs(mat.Col(nil, 0, state))
	if err != nil {
		return nil, err
	}
	return mat.NewVecDense(len(du), du), nil
}

// RHSFloats is the same as RHS on a slice of temperatures.
func (h *ConductHeatEqn) RHSFloats(u []float64) ([]float64, error) {
	return h.rhs(u)
}

// rhs computes the derivative of u, which it is allowed to read but not to keep.
func (h *ConductHeatEqn) rhs(u []float64) ([]float64, error) {
	n := len(u)
	if n < 2 {
		return nil, errors.Wrapf(ErrShape, "need at least 2 points, got %d", n)
	}
	for i, v := range u {
		if !isFinite(v) {
			return nil, errors.Wrapf(ErrShape, "u[%d]=%f", i, v)
		}
	}
	coef := h.alpha / math.Pow(spacing(h.length, n), 2)
	var du mat.VecDense
	du.MulVec(laplacian(n, coef), mat.NewVecDense(n, u))
	rslt := du.RawVector().Data
	h.boundary.Apply(u, rslt, coef)
	return rslt, nil
}

// Operator returns the matrix A such that RHS(u) = A u on a grid of n points.
// Every boundary handler is linear, so the columns are the RHS of the unit vectors.
func (h *ConductHeatEqn) Operator(n int) (*mat.Dense, error) {
	if n < 2 {
		return nil, errors.Wrapf(ErrShape, "need at least 2 points, got %d", n)
	}
	A := mat.NewDense(n, n, nil)
	e := make([]float64, n)
	for j := 0; j < n; j++ {
		e[j] = 1
		col, err := h.rhs(e)
		if err != nil {
			return nil, err
		}
		A.SetCol(j, col)
		e[j] = 0
	}
	return A, nil
}

// FourierNumber returns α dt / dx² for a grid of n points.
func (h *ConductHeatEqn) FourierNumber(n int, dt float64) float64 {
	return h.alpha * dt / math.Pow(spacing(h.length, n), 2)
}

// Heat returns the amount of heat in the rod, i.e. the quantity an insulated or periodic rod conserves.
// This is TotalHeat, except on a periodic rod where the n points are the n cells of a ring,
// hence each weighs dx.
func (h *ConductHeatEqn) Heat(u []float64) float64 {
	if h.boundary.Kind() == Periodic && len(u) >= 2 {
		return spacing(h.length, len(u)) * floats.Sum(u)
	}
	return TotalHeat(u, h.length)
}

// StableStep returns the largest forward Euler time step which is stable on a grid of n points.
func (h *ConductHeatEqn) StableStep(n int) float64 {
	return math.Pow(spacing(h.length, n), 2) / (2 * h.alpha)
}

// StateFromRows packs rows of temperatures into a matrix, keeping their shape.
// A flat profile is a single column, i.e. one temperature per row.
func StateFromRows(rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, errors.Wrap(ErrShape, "empty state")
	}
	c := len(rows[0])
	data := make([]float64, 0, len(rows)*c)
	for i, row := range rows {
		if len(row) != c {
			return nil, errors.Wrapf(ErrShape, "ragged row %d: %d values instead of %d", i, len(row), c)
		}
		data = append(data, row...)
	}
	return mat.NewDense(len(rows), c, data), nil
}
