package main

import (
	"flag"
	"log"

	"github.com/ChristopherRabotin/heat"
	kitlog "github.com/go-kit/kit/log"
)

// This code effectively only reads the scenario file and runs the simulation.

const (
	defaultScenario = "~~unset~~"
)

var (
	scenario string
	verbose  bool
	quiet    bool
)

func init() {
	// Read flags
	flag.StringVar(&scenario, "scenario", defaultScenario, "heat conduction scenario TOML file")
	flag.BoolVar(&verbose, "verbose", false, "really verbose (esp. for configuration)")
	flag.BoolVar(&quiet, "quiet", false, "do not log the simulation status")
}

func main() {
	flag.Parse()
	// Load scenario
	if scenario == defaultScenario {
		log.Fatal("no scenario provided")
	}
	sc, err := heat.LoadScenario(scenario)
	if err != nil {
		log.Fatalf("%s: %s", scenario, err)
	}
	if verbose {
		log.Printf("[conf] %s: bc=%s α=%g L=%g n=%d profile=%s method=%s step=%g duration=%g", sc.Name, sc.Boundary, sc.Alpha, sc.Length, sc.Points, sc.Profile, sc.Method, sc.Step, sc.Duration)
	}
	sim, err := sc.Simulation()
	if err != nil {
		log.Fatalf("%s: %s", scenario, err)
	}
	if quiet {
		sim.SetLogger(kitlog.NewNopLogger())
	}
	if err := sim.Propagate(); err != nil {
		log.Fatalf("%s: %s", sc.Name, err)
	}
	final := sim.State()
	log.Printf("%s: %s (total heat %.6f)", sc.Name, final, heat.TotalHeat(final.U, sc.Length))
}
