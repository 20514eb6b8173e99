// Command cooker runs the sous-vide controller: it reads the probe, drives
// the heater plug with a PID loop and reports over MQTT and HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/sweeney/cooker/internal/config"
	"github.com/sweeney/cooker/internal/control"
	"github.com/sweeney/cooker/internal/display"
	"github.com/sweeney/cooker/internal/gpio"
	"github.com/sweeney/cooker/internal/journal"
	"github.com/sweeney/cooker/internal/metrics"
	"github.com/sweeney/cooker/internal/mqtt"
	"github.com/sweeney/cooker/internal/reboot"
	"github.com/sweeney/cooker/internal/relay"
	"github.com/sweeney/cooker/internal/sched"
	"github.com/sweeney/cooker/internal/sensor"
	"github.com/sweeney/cooker/internal/status"
	"github.com/sweeney/cooker/internal/web"
)

func main() {
	cfg, printState, err := parseConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := run(cfg, printState); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// parseConfig applies defaults, then the YAML file, then flags.
func parseConfig(args []string) (config.Config, bool, error) {
	cfg := config.Default()
	if path := config.PathFromArgs(args); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cfg, false, err
		}
		cfg = loaded
	}

	fs := flag.NewFlagSet("cooker", flag.ContinueOnError)
	config.Bind(fs, &cfg)
	printState := fs.Bool("print-state", false, "Print probe, switch and encoder readings and exit")
	if err := fs.Parse(args); err != nil {
		return cfg, false, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, false, err
	}
	return cfg, *printState, nil
}

func run(cfg config.Config, printState bool) error {
	probe, err := sensor.NewW1Reader(cfg.Sensor.Dir, cfg.Sensor.ID)
	if err != nil {
		return fmt.Errorf("init sensor: %w", err)
	}
	button, err := gpio.NewRealButton(cfg.Pins.Chip, cfg.Pins.Button)
	if err != nil {
		return fmt.Errorf("init button: %w", err)
	}
	defer button.Close()
	encoder, err := gpio.NewRealEncoder(cfg.Pins.Chip, cfg.Pins.EncoderCLK, cfg.Pins.EncoderDT)
	if err != nil {
		return fmt.Errorf("init encoder: %w", err)
	}
	defer encoder.Close()

	if printState {
		return printReadings(context.Background(), os.Stdout, probe, button, encoder)
	}

	var buzzer gpio.Buzzer
	if b, err := gpio.NewRealBuzzer(cfg.Pins.Chip, cfg.Pins.Buzzer); err != nil {
		log.Printf("buzzer disabled: %v", err)
	} else {
		buzzer = b
		defer b.Close()
	}

	screen, err := newDisplay(cfg.Display)
	if err != nil {
		return fmt.Errorf("init display: %w", err)
	}
	defer screen.Close()

	bootChime(buzzer)
	showSplash(screen, "Let's Cook!")

	start := time.Now()
	journalPath := filepath.Join(cfg.DataDir, journal.DefaultFilename)
	state, restored := journal.Load(journalPath, start)
	if !restored {
		state.Kp, state.Ki, state.Kd = cfg.PID.Kp, cfg.PID.Ki, cfg.PID.Kd
	}

	showSplash(screen, "init network")
	var publisher mqtt.Publisher
	var client paho.Client
	if cfg.Broker != "" {
		p, err := mqtt.NewRealPublisher(cfg.Broker, cfg.ClientID)
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer p.Close()
		publisher, client = p, p.Client()
	} else {
		log.Printf("mqtt disabled")
	}

	actuator, err := newActuator(cfg.Relay, client)
	if err != nil {
		return fmt.Errorf("init relay: %w", err)
	}

	bootID := uuid.New().String()
	tracker := status.NewTracker(start, bootID, status.Config{
		SensorMs: cfg.Sensor.Interval.Milliseconds(),
		PIDMs:    cfg.PID.Interval.Milliseconds(),
		LogMs:    cfg.LogInterval.Milliseconds(),
		Kp:       state.Kp,
		Ki:       state.Ki,
		Kd:       state.Kd,
		Relay:    cfg.RelayDescription(),
		Broker:   cfg.Broker,
		HTTPAddr: cfg.HTTPAddr,
		DataDir:  cfg.DataDir,
	})
	tracker.SetRestored(restored)
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	m := metrics.New()

	ctrl := control.New(state, control.Devices{
		Sensor:   probe,
		Encoder:  encoder,
		Button:   button,
		Buzzer:   buzzer,
		Actuator: actuator,
		Display:  screen,
	}, options(cfg))
	ctrl.Publisher = publisher
	ctrl.Tracker = tracker
	ctrl.Metrics = m
	ctrl.BootID = bootID

	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker, m.Handler(), os.Stderr)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTPAddr)
	}

	ctrl.Announce("STARTUP", startupReason(restored), time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sup := &control.Supervisor{
		Controller:  ctrl,
		Scheduler:   sched.New(ctrl.Tasks(ctx)...),
		JournalPath: journalPath,
		Restarter:   newRestarter(cfg.Reboot),
	}

	log.Printf("started: boot=%s restored=%v relay=%s broker=%s", bootID, restored, cfg.RelayDescription(), cfg.Broker)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return serve(ctx, cancel, sup, sigCh, time.Now)
}

// serve runs the supervisor until a fault or a signal. A signal cancels
// the pass loop and then shuts the controller down from this goroutine.
func serve(ctx context.Context, cancel context.CancelFunc, sup *control.Supervisor, sig <-chan os.Signal, now func() time.Time) error {
	caught := make(chan os.Signal, 1)
	go func() {
		select {
		case s := <-sig:
			caught <- s
			cancel()
		case <-ctx.Done():
		}
	}()

	err := sup.Run(ctx)
	if errors.Is(err, context.Canceled) {
		name := "UNKNOWN"
		select {
		case s := <-caught:
			name = signalName(s)
			log.Printf("received %v, shutting down", s)
		default:
		}
		sup.Controller.Shutdown(name, now())
		return nil
	}
	return err
}

func options(cfg config.Config) control.Options {
	opts := control.DefaultOptions()
	opts.SensorInterval = cfg.Sensor.Interval
	opts.PIDInterval = cfg.PID.Interval
	opts.LogInterval = cfg.LogInterval
	opts.TelemetryInterval = cfg.TelemetryInterval
	opts.LogDir = cfg.LogDir
	opts.SensorRetries = cfg.Sensor.Retries
	opts.RetryInitial = cfg.Sensor.RetryInitial
	opts.RetryMax = cfg.Sensor.RetryMax
	opts.MaxSensorFailures = cfg.Sensor.MaxFailures
	opts.ActuatorTimeout = cfg.Relay.Timeout
	return opts
}

func newActuator(rc config.RelayConfig, client paho.Client) (relay.Actuator, error) {
	switch rc.Transport {
	case config.RelayHTTP:
		return relay.NewTasmotaHTTP(rc.Host, rc.Timeout), nil
	case config.RelayMQTT:
		if client == nil {
			return nil, errors.New("mqtt relay needs a broker connection")
		}
		return relay.NewTasmotaMQTT(client, rc.Device, rc.Timeout), nil
	case config.RelayNone:
		return relay.Discard{}, nil
	}
	return nil, fmt.Errorf("unknown relay transport %q", rc.Transport)
}

func newDisplay(dc config.DisplayConfig) (display.Display, error) {
	switch dc.Driver {
	case config.DisplaySSD1306:
		return display.NewOLED(dc.Bus)
	case config.DisplayLog:
		return display.NewLogDisplay(), nil
	}
	return nil, fmt.Errorf("unknown display driver %q", dc.Driver)
}

func newRestarter(mode string) reboot.Restarter {
	if mode == config.RebootExit {
		return reboot.NewExitRestarter(1)
	}
	return reboot.DeviceRestarter{}
}

// bootChime plays falling, falling, rising. A missing buzzer is silent.
func bootChime(b gpio.Buzzer) {
	if b == nil {
		return
	}
	for _, up := range []bool{false, false, true} {
		if err := b.Cue(up); err != nil {
			log.Printf("buzzer: %v", err)
			return
		}
	}
}

func showSplash(d display.Display, text string) {
	if err := d.Show(display.Splash(text)); err != nil {
		log.Printf("display: %v", err)
	}
}

func startupReason(restored bool) string {
	if restored {
		return "RESTORED"
	}
	return ""
}

// printReadings takes one reading from each input for bench checks.
func printReadings(ctx context.Context, w io.Writer, probe sensor.Reader, button gpio.Button, encoder gpio.Encoder) error {
	temp, err := probe.ReadCelsius(ctx)
	if err != nil {
		return fmt.Errorf("read sensor: %w", err)
	}
	raw, err := button.Read()
	if err != nil {
		return fmt.Errorf("read button: %w", err)
	}
	fmt.Fprintf(w, "temp: %.2fc, button: %s, encoder: %d\n", temp, buttonString(raw), encoder.Position())
	return nil
}

func buttonString(raw bool) string {
	if raw {
		return "released"
	}
	return "pressed"
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
