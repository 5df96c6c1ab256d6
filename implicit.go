package heat

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// CrankNicolson is a semi-implicit stepper of the heat equation with a fixed time step.
// Its factorization is computed once, so it is only valid for the number of points it was made for.
type CrankNicolson struct {
	lu       mat.LU     // LU of (I - dt/2 A)
	explicit *mat.Dense // (I + dt/2 A)
	n        int
	dt       float64
}

// NewCrankNicolson returns a Crank-Nicolson stepper of the heat equation on n points.
func NewCrankNicolson(h *ConductHeatEqn, n int, dt float64) (*CrankNicolson, error) {
	if !isFinite(dt) || dt <= 0 {
		return nil, errors.Wrapf(ErrInvalidParameter, "time step must be positive, got %f", dt)
	}
	A, err := h.Operator(n)
	if err != nil {
		return nil, err
	}
	implicit := mat.NewDense(n, n, nil)
	implicit.Scale(-dt/2, A)
	explicit := mat.NewDense(n, n, nil)
	explicit.Scale(dt/2, A)
	for i := 0; i < n; i++ {
		implicit.Set(i, i, implicit.At(i, i)+1)
		explicit.Set(i, i, explicit.At(i, i)+1)
	}
	cn := &CrankNicolson{explicit: explicit, n: n, dt: dt}
	cn.lu.Factorize(implicit)
	if math.IsInf(cn.lu.Cond(), 1) {
		return nil, errors.Wrapf(ErrInvalidParameter, "singular implicit operator for dt=%f", dt)
	}
	return cn, nil
}

// TimeStep returns the time step.
func (cn *CrankNicolson) TimeStep() float64 {
	return cn.dt
}

// Step returns the temperatures one time step after u.
func (cn *CrankNicolson) Step(u []float64) ([]float64, error) {
	if len(u) != cn.n {
		return nil, errors.Wrapf(ErrShape, "got %d points, stepper built for %d", len(u), cn.n)
	}
	var b, x mat.VecDense
	b.MulVec(cn.explicit, mat.NewVecDense(cn.n, u))
	if err := cn.lu.SolveVecTo(&x, false, &b); err != nil {
		return nil, errors.Wrap(err, "crank-nicolson solve")
	}
	return x.RawVector().Data, nil
}
