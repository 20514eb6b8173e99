package display

import (
	"errors"
	"image"
	"testing"
	"time"

	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/sweeney/cooker/internal/logic"
)

func TestLayoutStopped(t *testing.T) {
	s := logic.NewState(time.Now())
	s.Setpoint = 53
	s.CurrentTemp = 21.4375
	s.PIDOutput = 63.126
	s.Heartbeat = "X"

	got := Layout(s)
	want := []string{
		"tgt:53.00c",
		"cur:21.44c",
		"pid:63.13",
		"T stopped X",
		"0:00:00.000",
		"logging to no sd card",
	}
	if len(got) != len(want) {
		t.Fatalf("got %d lines, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Text != want[i] {
			t.Errorf("line %d: got %q, want %q", i, got[i].Text, want[i])
		}
	}
	rows := []int{0, 1, 2, 3, 5, 6}
	for i, r := range rows {
		if got[i].Row != r {
			t.Errorf("line %d: row %d, want %d", i, got[i].Row, r)
		}
	}
}

func TestLayoutRunning(t *testing.T) {
	s := logic.NewState(time.Now())
	s.Running = true
	s.ButtonRaw = false
	s.Heartbeat = "|"
	s.LogFilename = "8.csv"
	s.RunTime = time.Hour + 2*time.Minute + 3*time.Second + 45*time.Millisecond

	s.RelayOn = true
	lines := Layout(s)
	if lines[3].Text != "_ relay on |" {
		t.Errorf("relay on: got %q", lines[3].Text)
	}
	if lines[4].Text != "1:02:03.045" {
		t.Errorf("run time: got %q", lines[4].Text)
	}
	if lines[5].Text != "logging to 8.csv" {
		t.Errorf("filename: got %q", lines[5].Text)
	}

	s.RelayOn = false
	if got := Layout(s)[3].Text; got != "_ relay off |" {
		t.Errorf("relay off: got %q", got)
	}
}

func TestFormatRunTime(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0:00:00.000"},
		{59*time.Second + 999*time.Millisecond, "0:00:59.999"},
		{90 * time.Minute, "1:30:00.000"},
		{26 * time.Hour, "26:00:00.000"},
		{-time.Second, "0:00:00.000"},
	}
	for _, tt := range tests {
		if got := FormatRunTime(tt.d); got != tt.want {
			t.Errorf("FormatRunTime(%v): got %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestFaultLines(t *testing.T) {
	lines := FaultLines("*fs.PathError", "open /sd/9.csv: read-only file system")
	if lines[0].Text != "open /sd/9.csv: read-only file system" || lines[1].Text != "*fs.PathError" {
		t.Errorf("unexpected fault screen: %+v", lines)
	}
}

func TestLogDisplaySkipsRepeats(t *testing.T) {
	d := NewLogDisplay()
	d.Show(Splash("Let's Cook!"))
	first := d.last
	d.Show(Splash("Let's Cook!"))
	if d.last != first {
		t.Error("repeat screen should not change state")
	}
	d.Show(Splash("init network"))
	if d.last == first {
		t.Error("new screen should be recorded")
	}
}

func TestFake(t *testing.T) {
	f := &Fake{}
	if _, err := f.Last(); err == nil {
		t.Error("expected error before any Show")
	}
	lines := Splash("hi")
	f.Show(lines)
	lines[0].Text = "mutated"
	last, _ := f.Last()
	if last[0].Text != "hi" {
		t.Error("Fake should keep a copy")
	}

	f.ShowError = errors.New("bus")
	if err := f.Show(lines); err == nil {
		t.Error("expected ShowError")
	}
}

func TestRenderDrawsAndClears(t *testing.T) {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))

	Render(img, Splash("Let's Cook!"))
	if countOn(img) == 0 {
		t.Fatal("expected some pixels on")
	}

	Render(img, nil)
	if n := countOn(img); n != 0 {
		t.Errorf("expected blank frame, got %d pixels", n)
	}
}

func countOn(img *image1bit.VerticalLSB) int {
	n := 0
	for _, b := range img.Pix {
		for ; b != 0; b &= b - 1 {
			n++
		}
	}
	return n
}
