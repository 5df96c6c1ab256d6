package heat

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

var (
	cfgOnce sync.Once
	config  = _heatconfig{outputDir: "."}
)

// _heatconfig is a "hidden" struct, just use `heatConfig`
type _heatconfig struct {
	outputDir string
}

// heatConfig returns the heat configuration, read once from $HEAT_CONFIG/conf.toml.
// Without HEAT_CONFIG, everything is written to the working directory.
func heatConfig() _heatconfig {
	cfgOnce.Do(func() {
		confPath := os.Getenv("HEAT_CONFIG")
		if confPath == "" {
			return
		}
		v := viper.New()
		v.SetConfigName("conf")
		v.AddConfigPath(confPath)
		if err := v.ReadInConfig(); err != nil {
			panic(fmt.Errorf("%s/conf.toml not found: %s", confPath, err))
		}
		v.SetDefault("general.output_path", ".")
		config = _heatconfig{outputDir: v.GetString("general.output_path")}
	})
	return config
}

// Profile defines an enum of initial temperature profiles.
type Profile uint8

const (
	// Sine is half a sine wave of the given amplitude, null at both ends.
	Sine Profile = iota + 1
	// Step is the amplitude on the first half of the rod and zero on the second one.
	Step
	// Uniform is the amplitude everywhere.
	Uniform
)

func (p Profile) String() string {
	switch p {
	case Sine:
		return "sine"
	case Step:
		return "step"
	case Uniform:
		return "uniform"
	}
	return "unknown"
}

// ProfileFromString returns the profile from its name.
func ProfileFromString(name string) (Profile, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sine":
		return Sine, nil
	case "step":
		return Step, nil
	case "uniform":
		return Uniform, nil
	}
	return 0, errors.Wrapf(ErrInvalidParameter, "unknown initial profile %q", name)
}

// Temperatures returns the profile sampled on n points of a rod of the given length.
func (p Profile) Temperatures(amplitude, length float64, n int) []float64 {
	u := make([]float64, n)
	for i, x := range Grid(length, n) {
		switch p {
		case Sine:
			u[i] = amplitude * math.Sin(math.Pi*x/length)
		case Step:
			if x < length/2 {
				u[i] = amplitude
			}
		case Uniform:
			u[i] = amplitude
		}
	}
	return u
}

// Scenario is a simulation as described in a configuration file.
type Scenario struct {
	Name      string
	Boundary  string
	Alpha     float64
	Length    float64
	Points    int
	Profile   Profile
	Amplitude float64
	Method    Method
	Step      float64 // Zero means the forward Euler stable step.
	Duration  float64
	Export    ExportConfig
}

// LoadScenario reads a scenario file (TOML, or any format viper understands from its extension).
func LoadScenario(path string) (*Scenario, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if filepath.Ext(path) == "" {
		v.SetConfigType("toml")
	}
	v.SetDefault("model.length", DefaultLength)
	v.SetDefault("grid.points", 51)
	v.SetDefault("initial.profile", "sine")
	v.SetDefault("initial.value", 1.0)
	v.SetDefault("integration.method", "rk4")
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "reading scenario %s", path)
	}
	name := v.GetString("name")
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	profile, err := ProfileFromString(v.GetString("initial.profile"))
	if err != nil {
		return nil, err
	}
	method, err := MethodFromString(v.GetString("integration.method"))
	if err != nil {
		return nil, err
	}
	sc := &Scenario{
		Name:      name,
		Boundary:  v.GetString("model.boundary"),
		Alpha:     v.GetFloat64("model.alpha"),
		Length:    v.GetFloat64("model.length"),
		Points:    v.GetInt("grid.points"),
		Profile:   profile,
		Amplitude: v.GetFloat64("initial.value"),
		Method:    method,
		Step:      v.GetFloat64("integration.step"),
		Duration:  v.GetFloat64("integration.duration"),
		Export: ExportConfig{
			Filename:  v.GetString("export.filename"),
			OutputDir: v.GetString("export.directory"),
			AsCSV:     v.GetBool("export.csv"),
			Timestamp: v.GetBool("export.timestamp"),
			Every:     v.GetUint("export.every"),
		},
	}
	if sc.Export.Filename == "" {
		sc.Export.Filename = name
	}
	if sc.Points < 2 {
		return nil, errors.Wrapf(ErrShape, "grid.points must be at least 2, got %d", sc.Points)
	}
	return sc, nil
}

// Model returns the heat equation of this scenario.
func (sc *Scenario) Model() (*ConductHeatEqn, error) {
	return NewPreciseConductHeatEqn(sc.Boundary, sc.Alpha, sc.Length)
}

// InitialState returns the initial temperatures of this scenario.
func (sc *Scenario) InitialState() []float64 {
	return sc.Profile.Temperatures(sc.Amplitude, sc.Length, sc.Points)
}

// Simulation returns the simulation of this scenario.
func (sc *Scenario) Simulation() (*Simulation, error) {
	h, err := sc.Model()
	if err != nil {
		return nil, err
	}
	step := sc.Step
	if step == 0 {
		step = h.StableStep(sc.Points)
	}
	return NewPreciseSimulation(sc.Name, h, sc.InitialState(), sc.Duration, step, sc.Method, sc.Export)
}
