package heat

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// ExportConfig configures the exporting of the simulation.
type ExportConfig struct {
	Filename  string
	OutputDir string // Defaults to general.output_path of the configuration.
	AsCSV     bool
	Timestamp bool
	Every     uint // Only write one state out of Every (the last one is always written).
}

// IsUseless returns whether this config doesn't actually do anything.
func (c ExportConfig) IsUseless() bool {
	return !c.AsCSV
}

// Path returns the file which the history is written to.
func (c ExportConfig) Path(now time.Time) string {
	dir := c.OutputDir
	if dir == "" {
		dir = heatConfig().outputDir
	}
	filename := c.Filename
	if filename == "" {
		filename = "rod"
	}
	if c.Timestamp {
		filename = fmt.Sprintf("heat-%s-%d-%02d-%02dT%02d.%02d.%02d.csv", filename, now.Year(), now.Month(), now.Day(), now.Hour(), now.Minute(), now.Second())
	} else {
		filename = fmt.Sprintf("heat-%s.csv", filename)
	}
	return filepath.Join(dir, filename)
}

// createCSVFile returns a file which requires a defer close statement!
func createCSVFile(conf ExportConfig, first RodState) (*os.File, *csv.Writer, error) {
	f, err := os.Create(conf.Path(time.Now()))
	if err != nil {
		return nil, nil, errors.Wrap(err, "creating history file")
	}
	// Header
	if _, err = f.WriteString(fmt.Sprintf("# Creation date (UTC): %s\n# Records are <t> <u0> ... <u%d>\n#   Simulation time start: %g\n", time.Now().UTC(), len(first.U)-1, first.T)); err != nil {
		f.Close()
		return nil, nil, err
	}
	w := csv.NewWriter(f)
	hdr := make([]string, len(first.U)+1)
	hdr[0] = "t"
	for i := range first.U {
		hdr[i+1] = fmt.Sprintf("u%d", i)
	}
	if err = w.Write(hdr); err != nil {
		f.Close()
		return nil, nil, err
	}
	return f, w, nil
}

func stateRecord(state RodState) []string {
	record := make([]string, len(state.U)+1)
	record[0] = strconv.FormatFloat(state.T, 'g', -1, 64)
	for i, v := range state.U {
		record[i+1] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return record
}

// StreamStates streams the output of the channel to the file of the configuration.
// The channel is always drained, even after a write failure, so that the simulation never blocks.
func StreamStates(conf ExportConfig, stateChan <-chan (RodState)) (err error) {
	var f *os.File
	var w *csv.Writer
	var last *RodState
	var sample uint
	written := false
	defer func() {
		if f == nil {
			return
		}
		if last != nil && !written && err == nil {
			err = w.Write(stateRecord(*last))
		}
		w.Flush()
		if err == nil {
			err = w.Error()
		}
		if err == nil && last != nil {
			_, err = f.WriteString(fmt.Sprintf("# Simulation time end: %g\n", last.T))
		}
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	for state := range stateChan {
		if err != nil {
			continue // Drain only.
		}
		if f == nil {
			if f, w, err = createCSVFile(conf, state); err != nil {
				continue
			}
		}
		st := state
		last = &st
		written = false
		if conf.Every > 1 && sample%conf.Every != 0 {
			sample++
			continue
		}
		sample++
		if err = w.Write(stateRecord(state)); err == nil {
			written = true
		}
	}
	return
}

// ReadStates parses a history written by StreamStates.
func ReadStates(r io.Reader) ([]RodState, error) {
	var states []RodState
	cr := csv.NewReader(r)
	cr.Comment = '#'
	for line := 0; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if line == 0 {
			continue // Column names.
		}
		vals := make([]float64, len(record))
		for i, txt := range record {
			if vals[i], err = strconv.ParseFloat(txt, 64); err != nil {
				return nil, errors.Wrapf(err, "record %d, column %d", line, i)
			}
		}
		states = append(states, RodState{T: vals[0], U: vals[1:]})
	}
	return states, nil
}
