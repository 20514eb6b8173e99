package sensor

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultW1Dir is where the kernel exposes 1-Wire slaves.
const DefaultW1Dir = "/sys/bus/w1/devices"

// powerOnReset is the value a DS18B20 reports before its first conversion.
const powerOnReset = 85000

// W1Reader reads a DS18B20 through the w1-therm sysfs file.
type W1Reader struct {
	path string
}

// NewW1Reader opens the probe with the given 1-Wire id (e.g. "28-0316a2795cff").
// An empty id selects the first DS18B20 found under dir.
func NewW1Reader(dir, id string) (*W1Reader, error) {
	if dir == "" {
		dir = DefaultW1Dir
	}
	if id == "" {
		matches, err := filepath.Glob(filepath.Join(dir, "28-*"))
		if err != nil {
			return nil, fmt.Errorf("scan w1 devices: %w", err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no DS18B20 found under %s", dir)
		}
		id = filepath.Base(matches[0])
	}
	path := filepath.Join(dir, id, "w1_slave")
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open probe %s: %w", id, err)
	}
	return &W1Reader{path: path}, nil
}

// ReadCelsius triggers a conversion and returns the temperature.
func (r *W1Reader) ReadCelsius(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f, err := os.Open(r.path)
	if err != nil {
		return 0, fmt.Errorf("read probe: %w", err)
	}
	defer f.Close()
	return parseW1Slave(f)
}

// parseW1Slave parses the two-line w1_slave format:
//
//	72 01 4b 46 7f ff 0e 10 57 : crc=57 YES
//	72 01 4b 46 7f ff 0e 10 57 t=23125
func parseW1Slave(f *os.File) (float64, error) {
	sc := bufio.NewScanner(f)
	var lines []string
	for sc.Scan() {
		lines = append(lines, strings.TrimSpace(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return 0, fmt.Errorf("read probe: %w", err)
	}
	return parseLines(lines)
}

func parseLines(lines []string) (float64, error) {
	if len(lines) < 2 {
		return 0, ErrNoReading
	}
	if !strings.HasSuffix(lines[0], "YES") {
		return 0, ErrChecksum
	}
	i := strings.LastIndex(lines[1], "t=")
	if i < 0 {
		return 0, ErrNoReading
	}
	milli, err := strconv.Atoi(lines[1][i+2:])
	if err != nil {
		return 0, fmt.Errorf("parse temperature %q: %w", lines[1][i+2:], err)
	}
	if milli == powerOnReset {
		return 0, ErrNoReading
	}
	return float64(milli) / 1000, nil
}
