package heat

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	kitlog "github.com/go-kit/kit/log"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
)

func quietSimulation(t *testing.T, kind string, u0 []float64, duration, step float64, method Method, conf ExportConfig) *Simulation {
	h, err := NewConductHeatEqn(kind, 0.005)
	require.NoError(t, err)
	sim, err := NewPreciseSimulation(t.Name(), h, u0, duration, step, method, conf)
	require.NoError(t, err)
	sim.SetLogger(kitlog.NewNopLogger())
	return sim
}

func TestSimulationSine(t *testing.T) {
	for _, method := range []Method{RK4, CrankNicolsonMethod} {
		sim := quietSimulation(t, "dirichlet", Sine.Temperatures(1, 1, 51), 10, 0.02, method, ExportConfig{})
		require.NoError(t, sim.Propagate())
		if !scalar.EqualWithinAbs(sim.CurrentT, 10, 1e-9) {
			t.Fatalf("%s: stopped at t=%f", method, sim.CurrentT)
		}
		decay := math.Exp(-0.005 * math.Pi * math.Pi * 10)
		final := sim.State()
		for i, x := range Grid(1, 51) {
			if !scalar.EqualWithinAbs(final.U[i], math.Sin(math.Pi*x)*decay, 1e-3) {
				t.Fatalf("%s: u(%f) = %f != %f", method, x, final.U[i], math.Sin(math.Pi*x)*decay)
			}
		}
	}
}

func TestSimulationMethodsAgree(t *testing.T) {
	u0 := Step.Temperatures(50, 1, 41)
	explicit := quietSimulation(t, "boundhandl", u0, 5, 0.01, RK4, ExportConfig{})
	implicit := quietSimulation(t, "boundhandl", u0, 5, 0.01, CrankNicolsonMethod, ExportConfig{})
	require.NoError(t, explicit.Propagate())
	require.NoError(t, implicit.Propagate())
	if !floats.EqualApprox(explicit.State().U, implicit.State().U, 1e-3) {
		t.Fatalf("RK4 and Crank-Nicolson disagree\n%+v\n%+v", explicit.State().U, implicit.State().U)
	}
}

func TestSimulationNeumannConservation(t *testing.T) {
	u0 := Step.Temperatures(100, 1, 51)
	sim := quietSimulation(t, "neumann", u0, 20, 0.02, RK4, ExportConfig{})
	initHeat := TotalHeat(u0, 1)
	require.NoError(t, sim.Propagate())
	if !scalar.EqualWithinAbs(TotalHeat(sim.State().U, 1), initHeat, 1e-9) {
		t.Fatalf("heat not conserved: %f != %f", TotalHeat(sim.State().U, 1), initHeat)
	}
	// The initial state must not have been touched.
	if !floats.Equal(u0, Step.Temperatures(100, 1, 51)) {
		t.Fatal("initial state modified")
	}
}

func TestSimulationStop(t *testing.T) {
	sim := quietSimulation(t, "dirichlet", Sine.Temperatures(1, 1, 11), 1e6, 0.01, RK4, ExportConfig{})
	sim.StopPropagation()
	sim.StopPropagation() // A second request must not block.
	require.NoError(t, sim.Propagate())
	if sim.CurrentT != sim.StartT {
		t.Fatalf("propagated until %f despite the stop request", sim.CurrentT)
	}
}

func TestSimulationZeroDuration(t *testing.T) {
	u0 := Sine.Temperatures(1, 1, 11)
	sim := quietSimulation(t, "periodic", u0, 0, 0.01, RK4, ExportConfig{})
	require.NoError(t, sim.Propagate())
	if sim.CurrentT != 0 || !floats.Equal(sim.State().U, u0) {
		t.Fatal("zero duration simulation propagated")
	}
}

func TestSimulationUnstable(t *testing.T) {
	// Fo = 5, far beyond the stability of RK4: the step profile blows up.
	sim := quietSimulation(t, "dirichlet", Step.Temperatures(1, 1, 51), 1e4, 0.4, RK4, ExportConfig{})
	err := sim.Propagate()
	require.ErrorIs(t, err, ErrShape)
	if sim.CurrentT >= sim.StopT {
		t.Fatal("simulation did not stop on error")
	}
}

func TestSimulationInvalid(t *testing.T) {
	h, err := NewConductHeatEqn("dirichlet", 0.005)
	require.NoError(t, err)
	u0 := Sine.Temperatures(1, 1, 11)
	_, err = NewPreciseSimulation("nil", nil, u0, 1, 0.01, RK4, ExportConfig{})
	require.ErrorIs(t, err, ErrInvalidParameter)
	_, err = NewPreciseSimulation("flat", h, []float64{1}, 1, 0.01, RK4, ExportConfig{})
	require.ErrorIs(t, err, ErrShape)
	_, err = NewPreciseSimulation("step", h, u0, 1, 0, RK4, ExportConfig{})
	require.ErrorIs(t, err, ErrInvalidParameter)
	_, err = NewPreciseSimulation("duration", h, u0, -1, 0.01, RK4, ExportConfig{})
	require.ErrorIs(t, err, ErrInvalidParameter)
	_, err = NewPreciseSimulation("method", h, u0, 1, 0.01, Method(0), ExportConfig{})
	require.ErrorIs(t, err, ErrInvalidParameter)
	sim, err := NewSimulation("default", h, u0, 1, ExportConfig{})
	require.NoError(t, err)
	if sim.Method() != RK4 || sim.step != h.StableStep(len(u0)) {
		t.Fatalf("invalid defaults: %s with step %f", sim.Method(), sim.step)
	}
}

func TestSimulationExport(t *testing.T) {
	dir := t.TempDir()
	u0 := Sine.Temperatures(1, 1, 11)
	conf := ExportConfig{Filename: "export", OutputDir: dir, AsCSV: true, Every: 10}
	sim := quietSimulation(t, "dirichlet", u0, 1, 0.01, RK4, conf)
	require.NoError(t, sim.Propagate())

	f, err := os.Open(filepath.Join(dir, "heat-export.csv"))
	require.NoError(t, err)
	defer f.Close()
	states, err := ReadStates(f)
	require.NoError(t, err)
	// The initial state and one state out of ten of the hundred steps.
	if len(states) != 11 {
		t.Fatalf("expected 11 states, got %d", len(states))
	}
	if states[0].T != 0 || !floats.Equal(states[0].U, u0) {
		t.Fatalf("invalid first state %s", states[0])
	}
	last := states[len(states)-1]
	if last.T != sim.CurrentT || !floats.Equal(last.U, sim.State().U) {
		t.Fatalf("invalid last state %s != %s", last, sim.State())
	}
}

func TestMethodFromString(t *testing.T) {
	for _, m := range []Method{RK4, CrankNicolsonMethod} {
		parsed, err := MethodFromString(m.String())
		require.NoError(t, err)
		if parsed != m {
			t.Fatalf("%s parsed as %s", m, parsed)
		}
	}
	_, err := MethodFromString("euler")
	require.ErrorIs(t, err, ErrInvalidParameter)
}

func TestSimulationStatusWhilePropagating(t *testing.T) {
	prevInterval := statusInterval
	statusInterval = time.Millisecond
	defer func() { statusInterval = prevInterval }()

	sim := quietSimulation(t, "periodic", Step.Temperatures(1, 1, 201), 1e9, 1e-3, RK4, ExportConfig{})
	var reports int32
	var stopOnce sync.Once
	sim.SetLogger(kitlog.LoggerFunc(func(keyvals ...interface{}) error {
		if len(keyvals) > 1 && keyvals[1] == "info" {
			// The first report is logged before propagating, the others by the ticker.
			if atomic.AddInt32(&reports, 1) >= 4 {
				stopOnce.Do(sim.StopPropagation)
			}
		}
		return nil
	}))
	require.NoError(t, sim.Propagate())
	if sim.CurrentT >= sim.StopT {
		t.Fatalf("stop request ignored, reached t=%f", sim.CurrentT)
	}
	if n := atomic.LoadInt32(&reports); n < 4 {
		t.Fatalf("only %d status reports", n)
	}
}

func TestSimulationKeepsFirstError(t *testing.T) {
	// α/dx² = 200, so that the derivative of the largest temperatures overflows.
	const n = 201
	sim := quietSimulation(t, "dirichlet", Sine.Temperatures(1, 1, n), 1, 1e-3, RK4, ExportConfig{})
	withNaN := make([]float64, n)
	withNaN[n/2] = math.NaN()
	sim.Func(1, withNaN)
	// An overflowing derivative happening afterwards must not hide the first failure.
	huge := make([]float64, n)
	for i := range huge {
		huge[i] = math.MaxFloat64 * float64(1-2*(i%2))
	}
	du := sim.Func(2, huge)
	if len(du) != n || floats.Max(du) != 0 || floats.Min(du) != 0 {
		t.Fatalf("failed derivative not zeroed: %+v", du)
	}
	require.ErrorIs(t, sim.err, ErrShape)
	if !strings.Contains(sim.err.Error(), "t=1") {
		t.Fatalf("first error overwritten: %s", sim.err)
	}
	// Nothing is recorded after a failure.
	before := sim.State()
	sim.SetState(3, make([]float64, n))
	if sim.CurrentT != before.T || !floats.Equal(sim.State().U, before.U) {
		t.Fatalf("state updated after a failure: %s", sim.State())
	}
}

func TestSimulationUnstableExport(t *testing.T) {
	dir := t.TempDir()
	conf := ExportConfig{Filename: "unstable", OutputDir: dir, AsCSV: true}
	sim := quietSimulation(t, "dirichlet", Step.Temperatures(1, 1, 51), 1e4, 0.4, RK4, conf)
	require.ErrorIs(t, sim.Propagate(), ErrShape)

	f, err := os.Open(filepath.Join(dir, "heat-unstable.csv"))
	require.NoError(t, err)
	defer f.Close()
	states, err := ReadStates(f)
	require.NoError(t, err)
	for _, state := range states {
		for i, v := range state.U {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Fatalf("exported non finite u[%d] at t=%f", i, state.T)
			}
		}
	}
	last := states[len(states)-1]
	if last.T != sim.CurrentT || !floats.Equal(last.U, sim.State().U) {
		t.Fatalf("last exported state %s != %s", last, sim.State())
	}
}

func TestSimulationRejectsOverflow(t *testing.T) {
	sim := quietSimulation(t, "neumann", Uniform.Temperatures(1, 1, 5), 1, 0.01, RK4, ExportConfig{})
	sim.SetState(0.01, []float64{1, 1, math.Inf(1), 1, 1})
	require.ErrorIs(t, sim.err, ErrShape)
	if sim.CurrentT != 0 || !floats.Equal(sim.State().U, []float64{1, 1, 1, 1, 1}) {
		t.Fatalf("overflowed state recorded: %s", sim.State())
	}
	if !sim.Stop(0.01) {
		t.Fatal("simulation not stopped after an overflow")
	}
}
