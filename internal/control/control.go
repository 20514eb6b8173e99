// Package control wires the cooker's control tasks onto the cooperative
// scheduler and supervises faults.
//
// Every task closes over one shared *logic.State. The scheduler runs them
// on a single goroutine in the order returned by Tasks, so the state needs
// no lock; each field has one writing task.
package control

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/sweeney/cooker/internal/display"
	"github.com/sweeney/cooker/internal/gpio"
	"github.com/sweeney/cooker/internal/logic"
	"github.com/sweeney/cooker/internal/metrics"
	"github.com/sweeney/cooker/internal/mqtt"
	"github.com/sweeney/cooker/internal/relay"
	"github.com/sweeney/cooker/internal/sched"
	"github.com/sweeney/cooker/internal/sensor"
	"github.com/sweeney/cooker/internal/status"
	"github.com/sweeney/cooker/internal/telemetry"
)

// Task names, in pass order.
const (
	TaskButton    = "button"
	TaskSetpoint  = "setpoint"
	TaskSensor    = "sensor"
	TaskPID       = "pid"
	TaskRelay     = "relay"
	TaskRunTime   = "runtime"
	TaskHeartbeat = "heartbeat"
	TaskLogger    = "logger"
	TaskTelemetry = "telemetry"
	TaskDisplay   = "display"
)

// ErrSensorLost matches the error returned once the probe has failed for
// too many consecutive passes.
var ErrSensorLost = errors.New("temperature sensor lost")

// SensorLostError reports a sensor that kept failing.
type SensorLostError struct {
	Failures int
	Last     error
}

func (e *SensorLostError) Error() string {
	return fmt.Sprintf("temperature sensor lost after %d failed samples: %v", e.Failures, e.Last)
}

// Is matches ErrSensorLost.
func (e *SensorLostError) Is(target error) bool { return target == ErrSensorLost }

// Devices are the hardware adapters the tasks drive.
type Devices struct {
	Sensor   sensor.Reader
	Encoder  gpio.Encoder
	Button   gpio.Button
	Buzzer   gpio.Buzzer // optional
	Actuator relay.Actuator
	Display  display.Display
}

// Options tunes the task set.
type Options struct {
	SensorInterval    time.Duration
	PIDInterval       time.Duration
	LogInterval       time.Duration
	TelemetryInterval time.Duration

	// LogDir is the CSV log directory. Empty disables the logger.
	LogDir string

	SensorRetries     int
	RetryInitial      time.Duration
	RetryMax          time.Duration
	MaxSensorFailures int

	ActuatorTimeout time.Duration
}

// DefaultOptions returns the production intervals and sensor policy.
func DefaultOptions() Options {
	return Options{
		SensorInterval:    250 * time.Millisecond,
		PIDInterval:       250 * time.Millisecond,
		LogInterval:       time.Second,
		TelemetryInterval: time.Second,
		SensorRetries:     3,
		RetryInitial:      10 * time.Millisecond,
		RetryMax:          50 * time.Millisecond,
		MaxSensorFailures: 20,
		ActuatorTimeout:   relay.DefaultTimeout,
	}
}

// Controller owns the shared state and the devices.
type Controller struct {
	State *logic.State

	// Optional collaborators; nil disables each one.
	Publisher mqtt.Publisher
	Tracker   *status.Tracker
	Metrics   *metrics.Metrics
	BootID    string

	dev  Devices
	opts Options

	ctx            context.Context
	start          time.Time
	sensorFailures int
	logger         *telemetry.Logger
}

// New returns a controller for state.
func New(state *logic.State, dev Devices, opts Options) *Controller {
	return &Controller{
		State: state,
		dev:   dev,
		opts:  opts,
		ctx:   context.Background(),
	}
}

// Tasks returns the task set in pass order. ctx bounds blocking device calls.
func (c *Controller) Tasks(ctx context.Context) []sched.Task {
	c.ctx = ctx
	return []sched.Task{
		{Name: TaskButton, Run: c.readButton},
		{Name: TaskSetpoint, Run: c.readEncoder},
		{Name: TaskSensor, Interval: c.opts.SensorInterval, Run: c.sample},
		{Name: TaskPID, Interval: c.opts.PIDInterval, Run: c.stepPID},
		{Name: TaskRelay, Init: c.initRelay, Run: c.driveRelay},
		{Name: TaskRunTime, Run: c.trackRunTime},
		{Name: TaskHeartbeat, Init: c.initHeartbeat, Run: c.heartbeat},
		{Name: TaskLogger, Interval: c.opts.LogInterval, Init: c.initLogger, Run: c.appendLog},
		{Name: TaskTelemetry, Interval: c.opts.TelemetryInterval, Run: c.publishTelemetry},
		{Name: TaskDisplay, Run: c.render},
	}
}

func (c *Controller) readButton(now time.Time) error {
	raw, err := c.dev.Button.Read()
	if err != nil {
		return fmt.Errorf("read button: %w", err)
	}
	if logic.ButtonEdge(c.State, raw) {
		log.Printf("control: running=%v", c.State.Running)
	}
	return nil
}

func (c *Controller) readEncoder(now time.Time) error {
	logic.ObserveEncoder(c.State, c.dev.Encoder.Position())
	return nil
}

func (c *Controller) sample(now time.Time) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.RetryInitial
	b.MaxInterval = c.opts.RetryMax

	v, err := backoff.Retry(c.ctx, func() (float64, error) {
		v, err := c.dev.Sensor.ReadCelsius(c.ctx)
		if err == nil {
			return v, nil
		}
		if c.Metrics != nil {
			c.Metrics.SensorRetry()
		}
		if !sensor.Transient(err) {
			return 0, backoff.Permanent(err)
		}
		return 0, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(max(c.opts.SensorRetries, 1))))

	if err != nil {
		if c.ctx.Err() != nil {
			return nil
		}
		c.sensorFailures++
		if c.Metrics != nil {
			c.Metrics.SensorFault()
		}
		log.Printf("control: sensor read failed (%d/%d), holding %.2f: %v",
			c.sensorFailures, c.opts.MaxSensorFailures, c.State.CurrentTemp, err)
		if c.sensorFailures >= c.opts.MaxSensorFailures {
			return &SensorLostError{Failures: c.sensorFailures, Last: err}
		}
		return nil
	}

	if c.sensorFailures > 0 {
		log.Printf("control: sensor recovered after %d failed samples", c.sensorFailures)
		c.sensorFailures = 0
	}
	c.State.CurrentTemp = v
	c.State.Dirty = true
	return nil
}

func (c *Controller) stepPID(now time.Time) error {
	logic.StepPID(c.State, now)
	return nil
}

func (c *Controller) initRelay(now time.Time) error {
	c.command(false)
	c.State.RelayOn = false
	c.State.Dirty = true
	return nil
}

func (c *Controller) driveRelay(now time.Time) error {
	switch logic.RelayDecision(c.State) {
	case logic.RelayOn:
		c.command(true)
		c.cue(true)
		c.State.RelayOn = true
		c.State.Dirty = true
	case logic.RelayOff:
		c.cue(false)
		c.command(false)
		c.State.RelayOn = false
		c.State.Dirty = true
	}
	return nil
}

// command sends one relay command. Failures are logged only: the plug
// accepts repeated commands and the next transition resends.
func (c *Controller) command(on bool) {
	ctx, cancel := context.WithTimeout(c.ctx, c.actuatorTimeout())
	defer cancel()
	if err := c.dev.Actuator.Set(ctx, on); err != nil {
		log.Printf("control: relay %s: %v", logic.RelayActionOf(on), err)
	} else {
		log.Printf("control: relay %s", logic.RelayActionOf(on))
	}
	if c.Metrics != nil {
		c.Metrics.RelaySwitched(on)
	}
}

func (c *Controller) cue(up bool) {
	if c.dev.Buzzer == nil {
		return
	}
	if err := c.dev.Buzzer.Cue(up); err != nil {
		log.Printf("control: buzzer: %v", err)
	}
}

func (c *Controller) actuatorTimeout() time.Duration {
	if c.opts.ActuatorTimeout > 0 {
		return c.opts.ActuatorTimeout
	}
	return relay.DefaultTimeout
}

func (c *Controller) trackRunTime(now time.Time) error {
	logic.TrackRunTime(c.State, now)
	return nil
}

func (c *Controller) initHeartbeat(now time.Time) error {
	c.start = now
	logic.UpdateHeartbeat(c.State, 0)
	return nil
}

// heartbeat redraws only when the glyph changes, which is once per second.
func (c *Controller) heartbeat(now time.Time) error {
	uptime := now.Sub(c.start)
	if logic.HeartbeatGlyph(c.State.Running, uptime) != c.State.Heartbeat {
		logic.UpdateHeartbeat(c.State, uptime)
	}
	return nil
}

func (c *Controller) initLogger(now time.Time) error {
	if c.opts.LogDir == "" {
		log.Printf("control: csv logging disabled")
		c.State.LogFilename = logic.DefaultLogFilename
		return nil
	}
	l, err := telemetry.Open(c.opts.LogDir)
	if err != nil {
		log.Printf("control: csv logging disabled: %v", err)
		c.State.LogFilename = logic.DefaultLogFilename
		c.State.Dirty = true
		return nil
	}
	c.logger = l
	c.State.LogFilename = l.Name()
	c.State.Dirty = true
	log.Printf("control: logging to %s", l.Path())
	return nil
}

func (c *Controller) appendLog(now time.Time) error {
	if c.logger == nil || !c.State.Running {
		return nil
	}
	if err := c.logger.Append(c.State); err != nil {
		return fmt.Errorf("append %s: %w", c.logger.Name(), err)
	}
	if c.Metrics != nil {
		c.Metrics.RowLogged()
	}
	return nil
}

func (c *Controller) publishTelemetry(now time.Time) error {
	if c.Metrics != nil {
		c.Metrics.Observe(c.State)
	}
	if c.Tracker != nil {
		if cs, ok := c.Publisher.(mqtt.ConnectionStatus); ok {
			c.Tracker.SetMQTTConnected(cs.IsConnected())
		}
	}
	if c.Publisher == nil || !c.State.Running {
		return nil
	}
	if err := c.Publisher.PublishTelemetry(mqtt.TelemetryFromState(c.State, now, c.BootID)); err != nil {
		log.Printf("control: publish telemetry: %v", err)
	}
	return nil
}

func (c *Controller) render(now time.Time) error {
	if !c.State.Dirty {
		return nil
	}
	if err := c.dev.Display.Show(display.Layout(c.State)); err != nil {
		return fmt.Errorf("show status: %w", err)
	}
	c.State.Dirty = false
	if c.Tracker != nil {
		c.Tracker.Update(*c.State)
	}
	return nil
}

// Shutdown turns the heater off and announces a clean stop. It is called
// after the scheduler has returned, never concurrently with the tasks.
func (c *Controller) Shutdown(reason string, now time.Time) {
	log.Printf("control: shutting down (%s)", reason)

	ctx, cancel := context.WithTimeout(context.Background(), c.actuatorTimeout())
	defer cancel()
	if err := c.dev.Actuator.Set(ctx, false); err != nil {
		log.Printf("control: relay OFF: %v", err)
	}
	c.State.RelayOn = false

	if err := c.dev.Display.Show(display.Splash("stopped")); err != nil {
		log.Printf("control: display: %v", err)
	}
	c.Announce("SHUTDOWN", reason, now)
}

// Announce publishes a retained lifecycle event with a status snapshot.
func (c *Controller) Announce(event, reason string, now time.Time) {
	if c.Publisher == nil {
		return
	}
	ev := mqtt.SystemEvent{
		Timestamp: now,
		Event:     event,
		Reason:    reason,
		Retained:  true,
	}
	if c.Tracker != nil {
		c.Tracker.Update(*c.State)
		ev.RawPayload = status.FormatStatusEvent(c.Tracker.Snapshot(), event, reason)
	}
	if err := c.Publisher.PublishSystem(ev); err != nil {
		log.Printf("control: publish %s event: %v", event, err)
	} else {
		log.Printf("control: published %s event", event)
	}
}
