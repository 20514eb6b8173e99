package control

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/cooker/internal/display"
	"github.com/sweeney/cooker/internal/gpio"
	"github.com/sweeney/cooker/internal/logic"
	"github.com/sweeney/cooker/internal/metrics"
	"github.com/sweeney/cooker/internal/mqtt"
	"github.com/sweeney/cooker/internal/relay"
	"github.com/sweeney/cooker/internal/sched"
	"github.com/sweeney/cooker/internal/sensor"
	"github.com/sweeney/cooker/internal/status"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// pass is long enough for every interval task in the default options
// except the logger and telemetry to run each pass.
const pass = 250 * time.Millisecond

type rig struct {
	c       *Controller
	s       *sched.Scheduler
	button  *gpio.FakeButton
	encoder *gpio.FakeEncoder
	probe   *sensor.FakeReader
	buzzer  *gpio.FakeBuzzer
	plug    *relay.Fake
	screen  *display.Fake
	pub     *mqtt.FakePublisher
	tracker *status.Tracker
	logDir  string
	now     time.Time
}

func newRig(t *testing.T, mutate ...func(*Options)) *rig {
	t.Helper()
	r := &rig{
		button:  gpio.NewFakeButton(true),
		encoder: &gpio.FakeEncoder{},
		probe:   sensor.NewFakeReader(sensor.Sample{Celsius: 20}),
		buzzer:  &gpio.FakeBuzzer{},
		plug:    &relay.Fake{},
		screen:  &display.Fake{},
		pub:     mqtt.NewFakePublisher(),
		tracker: status.NewTracker(t0, "boot", status.Config{}),
		logDir:  t.TempDir(),
		now:     t0,
	}
	opts := DefaultOptions()
	opts.LogDir = r.logDir
	opts.RetryInitial = time.Millisecond
	opts.RetryMax = time.Millisecond
	for _, m := range mutate {
		m(&opts)
	}

	r.c = New(logic.NewState(t0), Devices{
		Sensor:   r.probe,
		Encoder:  r.encoder,
		Button:   r.button,
		Buzzer:   r.buzzer,
		Actuator: r.plug,
		Display:  r.screen,
	}, opts)
	r.c.Publisher = r.pub
	r.c.Tracker = r.tracker
	r.c.Metrics = metrics.New()
	r.c.BootID = "boot"

	r.s = sched.New(r.c.Tasks(context.Background())...)
	r.s.Now = func() time.Time { return r.now }
	require.NoError(t, r.s.Start(t0))
	return r
}

func (r *rig) step() error {
	r.now = r.now.Add(pass)
	return r.s.Step(r.now)
}

func (r *rig) steps(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, r.step())
	}
}

// toggle presses and releases the switch; Running flips on the release.
func (r *rig) toggle(t *testing.T) {
	t.Helper()
	r.button.Press()
	r.steps(t, 2)
}

func TestTaskOrder(t *testing.T) {
	r := newRig(t)
	assert.Equal(t, []string{
		"button", "setpoint", "sensor", "pid", "relay",
		"runtime", "heartbeat", "logger", "telemetry", "display",
	}, r.s.Tasks())
}

func TestInitForcesRelayOffAndOpensLog(t *testing.T) {
	r := newRig(t)

	assert.Equal(t, []bool{false}, r.plug.Commands)
	assert.False(t, r.c.State.RelayOn)
	assert.Equal(t, "1.csv", r.c.State.LogFilename)
	assert.FileExists(t, filepath.Join(r.logDir, "1.csv"))
}

func TestInitRelayOffAfterRestoredSnapshot(t *testing.T) {
	s := logic.NewState(t0)
	s.RelayOn = true
	plug := &relay.Fake{}
	c := New(s, Devices{
		Sensor: sensor.NewFakeReader(sensor.Sample{Celsius: 20}), Encoder: &gpio.FakeEncoder{},
		Button: gpio.NewFakeButton(true), Actuator: plug, Display: &display.Fake{},
	}, DefaultOptions())

	require.NoError(t, sched.New(c.Tasks(context.Background())...).Start(t0))
	assert.False(t, s.RelayOn)
	assert.Equal(t, []bool{false}, plug.Commands)
}

func TestFirstPassSetsSetpointAndTemperature(t *testing.T) {
	r := newRig(t)
	r.steps(t, 1)

	assert.Equal(t, 53.0, r.c.State.Setpoint)
	assert.Equal(t, 20.0, r.c.State.CurrentTemp)
	assert.False(t, r.c.State.Running)
	assert.Len(t, r.plug.Commands, 1, "no command while stopped")
}

func TestStartStopCommandsRelayOncePerTransition(t *testing.T) {
	r := newRig(t)
	r.steps(t, 1)

	r.toggle(t)
	require.True(t, r.c.State.Running)
	assert.Greater(t, r.c.State.PIDOutput, 0.0)
	assert.True(t, r.c.State.RelayOn)
	assert.Equal(t, []bool{false, true}, r.plug.Commands)
	assert.Equal(t, []bool{true}, r.buzzer.Cues)

	r.steps(t, 8)
	assert.Equal(t, []bool{false, true}, r.plug.Commands, "steady heating sends nothing")

	r.toggle(t)
	require.False(t, r.c.State.Running)
	assert.False(t, r.c.State.RelayOn)
	assert.Equal(t, []bool{false, true, false}, r.plug.Commands)
	assert.Equal(t, []bool{true, false}, r.buzzer.Cues)

	runTime := r.c.State.RunTime
	assert.Greater(t, runTime, time.Duration(0))
	r.steps(t, 4)
	assert.Equal(t, runTime, r.c.State.RunTime, "run time frozen while stopped")
}

func TestRelayOffWhenTargetReached(t *testing.T) {
	r := newRig(t)
	r.steps(t, 1)
	r.toggle(t)
	require.True(t, r.c.State.RelayOn)

	r.probe.Set(60) // above the 53 setpoint
	r.steps(t, 2)

	assert.False(t, r.c.State.RelayOn)
	assert.Equal(t, []bool{false, true, false}, r.plug.Commands)
	assert.True(t, r.c.State.Running)
}

func TestActuatorErrorIsNotFatal(t *testing.T) {
	r := newRig(t)
	r.plug.SetError = errors.New("plug unreachable")
	r.steps(t, 1)

	r.toggle(t)
	assert.True(t, r.c.State.RelayOn, "RelayOn reflects the commanded state")
}

func TestEncoderMovesSetpoint(t *testing.T) {
	r := newRig(t)
	r.steps(t, 1)

	r.encoder.Pos = 7
	r.steps(t, 1)
	assert.Equal(t, 60.0, r.c.State.Setpoint)

	r.encoder.Pos = -3
	r.steps(t, 1)
	assert.Equal(t, 50.0, r.c.State.Setpoint)
}

func TestSensorHoldsValueThenFaults(t *testing.T) {
	r := newRig(t, func(o *Options) { o.MaxSensorFailures = 3 })
	r.probe.Samples = []sensor.Sample{{Celsius: 20}, {Err: sensor.ErrChecksum}}

	r.steps(t, 1)
	assert.Equal(t, 20.0, r.c.State.CurrentTemp)

	r.steps(t, 2)
	assert.Equal(t, 20.0, r.c.State.CurrentTemp, "last value held")
	assert.Equal(t, 1+2*3, r.probe.Calls, "three tries per failed pass")

	err := r.step()
	var f *sched.Fault
	require.ErrorAs(t, err, &f)
	assert.Equal(t, TaskSensor, f.Task)
	assert.ErrorIs(t, err, ErrSensorLost)
	assert.Equal(t, "*control.SensorLostError", FaultClass(f))
}

func TestSensorRetrySucceeds(t *testing.T) {
	r := newRig(t)
	r.probe.Samples = []sensor.Sample{{Err: sensor.ErrNoReading}, {Celsius: 21.5}}

	r.steps(t, 1)
	assert.Equal(t, 21.5, r.c.State.CurrentTemp)
	assert.Equal(t, 2, r.probe.Calls)
	assert.Zero(t, r.c.sensorFailures)
}

func TestSensorRecoveryResetsFailures(t *testing.T) {
	r := newRig(t, func(o *Options) { o.MaxSensorFailures = 2 })
	r.probe.Samples = []sensor.Sample{{Err: sensor.ErrChecksum}, {Err: sensor.ErrChecksum}, {Err: sensor.ErrChecksum}, {Celsius: 30}}

	r.steps(t, 1)
	assert.Equal(t, 1, r.c.sensorFailures)
	r.steps(t, 1)
	assert.Zero(t, r.c.sensorFailures)
	assert.Equal(t, 30.0, r.c.State.CurrentTemp)
}

func TestSensorPermanentErrorNotRetried(t *testing.T) {
	r := newRig(t)
	r.probe.Samples = []sensor.Sample{{Err: errors.New("bus gone")}}

	r.steps(t, 1)
	assert.Equal(t, 1, r.probe.Calls)
	assert.Equal(t, 1, r.c.sensorFailures)
}

func TestButtonReadErrorIsFatal(t *testing.T) {
	r := newRig(t)
	r.button.ReadError = errors.New("line released")

	err := r.step()
	var f *sched.Fault
	require.ErrorAs(t, err, &f)
	assert.Equal(t, TaskButton, f.Task)
}

func TestLoggerAppendsOnlyWhileRunning(t *testing.T) {
	r := newRig(t)
	r.steps(t, 8)

	data, err := os.ReadFile(filepath.Join(r.logDir, "1.csv"))
	require.NoError(t, err)
	assert.Equal(t, "time,set_temp,current_temp,is_relay_on,pid,error,integral,derivative\r\n", string(data))

	r.toggle(t)
	r.steps(t, 8)

	data, err = os.ReadFile(filepath.Join(r.logDir, "1.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\r\n"), "\r\n")
	assert.GreaterOrEqual(t, len(lines), 3)
}

func TestLoggerDisabledWithoutStorage(t *testing.T) {
	r := newRig(t, func(o *Options) { o.LogDir = filepath.Join(o.LogDir, "missing") })

	assert.Equal(t, logic.DefaultLogFilename, r.c.State.LogFilename)
	r.toggle(t)
	r.steps(t, 8)
}

func TestLoggerDisabledClearsRestoredFilename(t *testing.T) {
	r := newRig(t, func(o *Options) { o.LogDir = filepath.Join(o.LogDir, "missing") })
	r.c.State.LogFilename = "7.csv"

	require.NoError(t, r.c.initLogger(r.now))
	assert.Equal(t, logic.DefaultLogFilename, r.c.State.LogFilename)

	r.steps(t, 1)
	screen, err := r.screen.Last()
	require.NoError(t, err)
	assert.Equal(t, "logging to "+logic.DefaultLogFilename, screen[len(screen)-1].Text)
}

func TestLoggerWithoutDirClearsRestoredFilename(t *testing.T) {
	r := newRig(t, func(o *Options) { o.LogDir = "" })
	r.c.State.LogFilename = "7.csv"

	require.NoError(t, r.c.initLogger(r.now))
	assert.Equal(t, logic.DefaultLogFilename, r.c.State.LogFilename)
}

func TestLoggerWriteErrorIsFatal(t *testing.T) {
	r := newRig(t)
	r.toggle(t)
	require.NoError(t, os.RemoveAll(r.logDir))

	var err error
	for i := 0; i < 8 && err == nil; i++ {
		err = r.step()
	}
	var f *sched.Fault
	require.ErrorAs(t, err, &f)
	assert.Equal(t, TaskLogger, f.Task)
}

func TestTelemetryOnlyWhileRunning(t *testing.T) {
	r := newRig(t)
	r.steps(t, 8)
	assert.Empty(t, r.pub.Telemetry)

	r.toggle(t)
	r.steps(t, 8)
	require.NotEmpty(t, r.pub.Telemetry)
	last := r.pub.Telemetry[len(r.pub.Telemetry)-1]
	assert.True(t, last.Running)
	assert.Equal(t, "boot", last.BootID)
}

func TestTelemetryUpdatesConnectionStatus(t *testing.T) {
	r := newRig(t)
	r.pub.Connected = true
	r.steps(t, 1)
	assert.True(t, r.tracker.Snapshot().MQTTConnected)
}

func TestDisplayRendersWhenDirty(t *testing.T) {
	r := newRig(t)
	r.steps(t, 1)

	require.NotEmpty(t, r.screen.Screens)
	assert.False(t, r.c.State.Dirty)
	last, err := r.screen.Last()
	require.NoError(t, err)
	assert.Equal(t, display.Layout(r.c.State), last)
	assert.Equal(t, 53.0, r.tracker.Snapshot().Control.Setpoint)
}

func TestDisplayIdleWhenClean(t *testing.T) {
	r := newRig(t)
	r.steps(t, 1)

	before := len(r.screen.Screens)
	r.c.State.Dirty = false
	r.now = r.now.Add(10 * time.Millisecond)
	require.NoError(t, r.s.Step(r.now))
	assert.Len(t, r.screen.Screens, before)
}

func TestDisplayErrorIsFatal(t *testing.T) {
	r := newRig(t)
	r.screen.ShowError = errors.New("i2c nack")

	err := r.step()
	var f *sched.Fault
	require.ErrorAs(t, err, &f)
	assert.Equal(t, TaskDisplay, f.Task)
}

func TestHeartbeatAdvancesEverySecond(t *testing.T) {
	r := newRig(t)
	r.steps(t, 1)
	assert.Equal(t, "x", r.c.State.Heartbeat)

	r.steps(t, 4)
	assert.Equal(t, "X", r.c.State.Heartbeat)
}

func TestShutdown(t *testing.T) {
	r := newRig(t)
	r.steps(t, 1)
	r.toggle(t)
	require.True(t, r.c.State.RelayOn)

	r.c.Shutdown("SIGTERM", r.now)

	last, _ := r.plug.Last()
	assert.False(t, last)
	assert.False(t, r.c.State.RelayOn)
	assert.Equal(t, []string{"SHUTDOWN"}, r.pub.EventNames())
	assert.True(t, r.pub.SystemEvents[0].Retained)
	assert.Contains(t, string(r.pub.SystemPayloads[0]), `"reason":"SIGTERM"`)
	screen, _ := r.screen.Last()
	assert.Equal(t, display.Splash("stopped"), screen)
}
