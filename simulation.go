package heat

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ChristopherRabotin/heat/integrator"
	kitlog "github.com/go-kit/kit/log"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// Method defines an enum of time integration methods.
type Method uint8

const (
	// RK4 is the explicit fourth order Runge-Kutta method.
	RK4 Method = iota + 1
	// CrankNicolsonMethod is the semi-implicit (trapezoidal) method.
	CrankNicolsonMethod
)

const (
	// rk4Stability is the largest Fourier number for which RK4 is stable on the second difference.
	rk4Stability = 0.696
	// historyBuffer is the size of the buffer between the simulation and the exporter.
	historyBuffer = 1000
)

// statusInterval is the wall clock period of the status reports of a running simulation.
var statusInterval = 10 * time.Second

func (m Method) String() string {
	switch m {
	case RK4:
		return "rk4"
	case CrankNicolsonMethod:
		return "crank-nicolson"
	}
	return "unknown"
}

// MethodFromString returns the integration method from its name.
func MethodFromString(name string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "rk4":
		return RK4, nil
	case "crank-nicolson", "cn", "implicit":
		return CrankNicolsonMethod, nil
	}
	return 0, errors.Wrapf(ErrInvalidParameter, "unknown integration method %q", name)
}

// RodState stores the temperatures of the rod at a given time.
type RodState struct {
	T float64
	U []float64
}

func (s RodState) String() string {
	return fmt.Sprintf("t=%g min=%g max=%g", s.T, floats.Min(s.U), floats.Max(s.U))
}

// Simulation advances the temperatures of a rod from an initial state until a given time.
// It implements integrator.Integrable.
type Simulation struct {
	Model                   *ConductHeatEqn
	StartT, StopT, CurrentT float64 // CurrentT is guarded by mu while propagating.
	u                       []float64
	mu                      sync.RWMutex
	step                    float64
	method                  Method
	stopChan                chan (bool)
	histChan                chan<- (RodState)
	histOnce                sync.Once
	wg                      sync.WaitGroup
	exportErr, err          error
	logger                  kitlog.Logger
}

// NewSimulation is the same as NewPreciseSimulation with RK4 and the forward Euler stable step.
func NewSimulation(name string, h *ConductHeatEqn, u0 []float64, duration float64, conf ExportConfig) (*Simulation, error) {
	if h == nil {
		return nil, errors.Wrap(ErrInvalidParameter, "nil heat equation")
	}
	return NewPreciseSimulation(name, h, u0, duration, h.StableStep(len(u0)), RK4, conf)
}

// NewPreciseSimulation returns a new Simulation with a custom time step and integration method.
func NewPreciseSimulation(name string, h *ConductHeatEqn, u0 []float64, duration, step float64, method Method, conf ExportConfig) (*Simulation, error) {
	if h == nil {
		return nil, errors.Wrap(ErrInvalidParameter, "nil heat equation")
	}
	if _, err := h.RHSFloats(u0); err != nil {
		return nil, errors.Wrap(err, "initial state")
	}
	if !isFinite(duration) || duration < 0 {
		return nil, errors.Wrapf(ErrInvalidParameter, "duration must be non negative, got %f", duration)
	}
	if !isFinite(step) || step <= 0 {
		return nil, errors.Wrapf(ErrInvalidParameter, "time step must be positive, got %f", step)
	}
	if method != RK4 && method != CrankNicolsonMethod {
		return nil, errors.Wrapf(ErrInvalidParameter, "unknown integration method %d", method)
	}
	klog := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stdout))
	klog = kitlog.With(klog, "simulation", name)

	u := make([]float64, len(u0))
	copy(u, u0)
	s := &Simulation{Model: h, StartT: 0, StopT: duration, CurrentT: 0, u: u, step: step, method: method, stopChan: make(chan (bool), 1), logger: klog}

	// If nothing is exported, then no history is kept.
	if !conf.IsUseless() {
		histChan := make(chan (RodState), historyBuffer)
		s.histChan = histChan
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.exportErr = StreamStates(conf, histChan)
		}()
		// Write the first data point.
		s.histChan <- s.State()
	}

	if fo := h.FourierNumber(len(u0), step); method == RK4 && fo > rk4Stability {
		s.logger.Log("level", "warning", "subsys", "heat", "message", "unstable time step", "Fo", fo, "max", rk4Stability)
	}
	return s, nil
}

// SetLogger replaces the logger of this simulation.
func (s *Simulation) SetLogger(logger kitlog.Logger) {
	s.logger = logger
}

// Method returns the integration method.
func (s *Simulation) Method() Method {
	return s.method
}

// State returns a copy of the current state of the rod.
func (s *Simulation) State() RodState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u := make([]float64, len(s.u))
	copy(u, s.u)
	return RodState{s.CurrentT, u}
}

// LogStatus logs the status of the propagation.
func (s *Simulation) LogStatus() {
	state := s.State()
	s.logger.Log("level", "info", "subsys", "heat", "t", state.T, "heat", s.Model.Heat(state.U), "state", state)
}

// Propagate runs the simulation until its stop time is reached or StopPropagation is called.
// It only returns once all the history has been exported.
func (s *Simulation) Propagate() error {
	// Add a ticker status report based on the wall clock duration of the simulation.
	s.LogStatus()
	ticker := time.NewTicker(statusInterval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				s.LogStatus()
			case <-done:
				return
			}
		}
	}()
	initHeat := s.Model.Heat(s.u)
	var err error
	switch s.method {
	case RK4:
		err = s.propagateRK4()
	case CrankNicolsonMethod:
		err = s.propagateImplicit()
	}
	ticker.Stop()
	close(done)
	if err != nil {
		s.closeHistory()
	}
	s.wg.Wait() // Don't return until we're done writing all the files.
	if err == nil {
		err = s.err
	}
	if err == nil && s.exportErr != nil {
		err = errors.Wrap(s.exportErr, "export")
	}
	if err != nil {
		s.logger.Log("level", "critical", "subsys", "heat", "t", s.CurrentT, "err", err)
		return err
	}
	s.logger.Log("level", "notice", "subsys", "heat", "status", "finished", "t", s.CurrentT, "Δheat", s.Model.Heat(s.u)-initHeat)
	s.LogStatus()
	return nil
}

func (s *Simulation) propagateRK4() error {
	rk, err := integrator.NewRK4(s.CurrentT, s.step, s)
	if err != nil {
		return err
	}
	_, _, err = rk.Solve() // Blocking.
	return err
}

func (s *Simulation) propagateImplicit() error {
	cn, err := NewCrankNicolson(s.Model, len(s.u), s.step)
	if err != nil {
		return err
	}
	t := s.CurrentT
	for !s.Stop(t) {
		next, err := cn.Step(s.u)
		if err != nil {
			return err
		}
		t += s.step
		s.SetState(t, next)
	}
	return nil
}

// StopPropagation is used to stop the propagation before it is completed.
func (s *Simulation) StopPropagation() {
	select {
	case s.stopChan <- true:
	default:
		// A stop is already pending.
	}
}

// Stop implements the stop call of the integrator. To stop the propagation, call StopPropagation().
func (s *Simulation) Stop(t float64) bool {
	select {
	case <-s.stopChan:
		s.closeHistory()
		return true // Stop because there is a request to stop.
	default:
		if s.err != nil || t >= s.StopT-s.step*1e-9 {
			s.closeHistory()
			return true // Stop, we've reached the end of the simulation.
		}
	}
	return false
}

// GetState returns the state for the integrator.
func (s *Simulation) GetState() []float64 {
	return s.u
}

// SetState sets the updated state. A step during which Func failed, or which overflowed, is discarded.
func (s *Simulation) SetState(t float64, u []float64) {
	if s.err != nil {
		return
	}
	for i, v := range u {
		if !isFinite(v) {
			s.err = errors.Wrapf(ErrShape, "u[%d]=%f at t=%g", i, v, t)
			return
		}
	}
	s.mu.Lock()
	s.CurrentT = t
	s.u = u
	s.mu.Unlock()
	if s.histChan != nil {
		s.histChan <- s.State()
	}
}

// Func is the integration function, i.e. the RHS of the heat equation.
func (s *Simulation) Func(t float64, u []float64) []float64 {
	du, err := s.Model.RHSFloats(u)
	if err != nil {
		if s.err == nil {
			s.err = errors.Wrapf(err, "t=%g", t)
		}
		return make([]float64, len(u))
	}
	for i, v := range du {
		if !isFinite(v) {
			if s.err == nil {
				s.err = errors.Wrapf(ErrShape, "du[%d]=%f at t=%g", i, v, t)
			}
			return make([]float64, len(u))
		}
	}
	return du
}

func (s *Simulation) closeHistory() {
	if s.histChan == nil {
		return
	}
	s.histOnce.Do(func() {
		close(s.histChan)
	})
}
