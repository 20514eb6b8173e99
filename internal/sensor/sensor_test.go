package sensor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeSlave(t *testing.T, dir, id, content string) {
	t.Helper()
	p := filepath.Join(dir, id)
	if err := os.MkdirAll(p, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(p, "w1_slave"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestW1ReaderReadsTemperature(t *testing.T) {
	dir := t.TempDir()
	writeSlave(t, dir, "28-0316a2795cff",
		"72 01 4b 46 7f ff 0e 10 57 : crc=57 YES\n72 01 4b 46 7f ff 0e 10 57 t=23125\n")

	r, err := NewW1Reader(dir, "")
	if err != nil {
		t.Fatalf("NewW1Reader: %v", err)
	}
	got, err := r.ReadCelsius(context.Background())
	if err != nil {
		t.Fatalf("ReadCelsius: %v", err)
	}
	if got != 23.125 {
		t.Errorf("got %v, want 23.125", got)
	}
}

func TestW1ReaderNegative(t *testing.T) {
	dir := t.TempDir()
	writeSlave(t, dir, "28-aa", "ff ff : crc=12 YES\nff ff t=-1250\n")

	r, err := NewW1Reader(dir, "28-aa")
	if err != nil {
		t.Fatal(err)
	}
	got, err := r.ReadCelsius(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != -1.25 {
		t.Errorf("got %v, want -1.25", got)
	}
}

func TestW1ReaderChecksum(t *testing.T) {
	dir := t.TempDir()
	writeSlave(t, dir, "28-aa", "72 01 : crc=00 NO\n72 01 t=23125\n")

	r, _ := NewW1Reader(dir, "28-aa")
	_, err := r.ReadCelsius(context.Background())
	if !errors.Is(err, ErrChecksum) {
		t.Errorf("expected ErrChecksum, got %v", err)
	}
	if !Transient(err) {
		t.Error("checksum error should be transient")
	}
}

func TestW1ReaderPowerOnReset(t *testing.T) {
	dir := t.TempDir()
	writeSlave(t, dir, "28-aa", "50 05 : crc=6b YES\n50 05 t=85000\n")

	r, _ := NewW1Reader(dir, "28-aa")
	_, err := r.ReadCelsius(context.Background())
	if !errors.Is(err, ErrNoReading) {
		t.Errorf("expected ErrNoReading, got %v", err)
	}
}

func TestW1ReaderTruncated(t *testing.T) {
	if _, err := parseLines([]string{"72 01 : crc=57 YES"}); !errors.Is(err, ErrNoReading) {
		t.Errorf("expected ErrNoReading, got %v", err)
	}
}

func TestW1ReaderGarbage(t *testing.T) {
	_, err := parseLines([]string{"crc=57 YES", "t=abc"})
	if err == nil || Transient(err) {
		t.Errorf("expected permanent parse error, got %v", err)
	}
}

func TestNewW1ReaderNoProbe(t *testing.T) {
	if _, err := NewW1Reader(t.TempDir(), ""); err == nil {
		t.Error("expected error with no probe present")
	}
}

func TestFakeReader(t *testing.T) {
	f := NewFakeReader(Sample{Celsius: 20}, Sample{Err: ErrChecksum}, Sample{Celsius: 21})
	ctx := context.Background()

	if v, err := f.ReadCelsius(ctx); err != nil || v != 20 {
		t.Errorf("sample 0: got %v, %v", v, err)
	}
	if _, err := f.ReadCelsius(ctx); !errors.Is(err, ErrChecksum) {
		t.Errorf("sample 1: got %v", err)
	}
	for i := 0; i < 3; i++ {
		if v, _ := f.ReadCelsius(ctx); v != 21 {
			t.Errorf("repeat: got %v, want 21", v)
		}
	}
	if f.Calls != 5 {
		t.Errorf("Calls: got %d, want 5", f.Calls)
	}

	f.Set(55)
	if v, _ := f.ReadCelsius(ctx); v != 55 {
		t.Errorf("after Set: got %v", v)
	}
}
