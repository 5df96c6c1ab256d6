package heat

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// spacing returns the grid spacing of n points over a rod of the given length.
func spacing(length float64, n int) float64 {
	return length / float64(n-1)
}

// Grid returns the abscissa of the n grid points of a rod of the given length.
func Grid(length float64, n int) []float64 {
	return floats.Span(make([]float64, n), 0, length)
}

// laplacian returns the tridiagonal second difference operator scaled by coef.
// The first and last rows are left empty for the boundary handler.
func laplacian(n int, coef float64) *mat.BandDense {
	L := mat.NewBandDense(n, n, 1, 1, nil)
	for i := 1; i < n-1; i++ {
		L.SetBand(i, i-1, coef)
		L.SetBand(i, i, -2*coef)
		L.SetBand(i, i+1, coef)
	}
	return L
}

// isFinite returns whether v is neither NaN nor infinite.
func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// TotalHeat returns the trapezoidal integral of u over a rod of the given length, endpoints at 0 and length.
// Use ConductHeatEqn.Heat for the quantity conserved under a given boundary condition.
func TotalHeat(u []float64, length float64) float64 {
	n := len(u)
	if n < 2 {
		return 0
	}
	return spacing(length, n) * (floats.Sum(u) - (u[0]+u[n-1])/2)
}
