// Package telemetry writes the run log: one numbered CSV file per boot.
package telemetry

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sweeney/cooker/internal/logic"
)

// Header is the fixed column order of every log file.
var Header = []string{
	"time", "set_temp", "current_temp", "is_relay_on", "pid", "error", "integral", "derivative",
}

// NextFilename returns the next free log name in dir: one more than the
// highest numeric .csv stem, or "1.csv" when there is none. Files whose stem
// is not a number are ignored.
func NextFilename(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("scan log dir: %w", err)
	}
	highest := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(e.Name(), ".csv"))
		if err != nil || n < 0 {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return strconv.Itoa(highest+1) + ".csv", nil
}

// Logger appends rows to one log file.
type Logger struct {
	path string
	name string
}

// Open picks the next filename in dir and writes the header line.
func Open(dir string) (*Logger, error) {
	name, err := NextFilename(dir)
	if err != nil {
		return nil, err
	}
	l := &Logger{path: filepath.Join(dir, name), name: name}
	if err := l.write(Header); err != nil {
		return nil, err
	}
	return l, nil
}

// Name returns the file name (without directory).
func (l *Logger) Name() string { return l.name }

// Path returns the full file path.
func (l *Logger) Path() string { return l.path }

// Append writes one row for the current state.
func (l *Logger) Append(s *logic.State) error {
	return l.write(Row(s))
}

// Row formats the state in Header order.
func Row(s *logic.State) []string {
	return []string{
		formatFloat(s.RunTime.Seconds()),
		formatFloat(s.Setpoint),
		formatFloat(s.CurrentTemp),
		strconv.FormatBool(s.RelayOn),
		formatFloat(s.PIDOutput),
		formatFloat(s.LastError),
		formatFloat(s.Integral),
		formatFloat(s.Derivative),
	}
}

// write opens, appends and closes on every row so a power cut loses at
// most the row being written.
func (l *Logger) write(record []string) error {
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log %s: %w", l.name, err)
	}
	w := csv.NewWriter(f)
	w.UseCRLF = true
	if err := w.Write(record); err != nil {
		f.Close()
		return fmt.Errorf("write log %s: %w", l.name, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("write log %s: %w", l.name, err)
	}
	return f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
