// Package metrics exposes the cooker's control state as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/cooker/internal/logic"
)

// Metrics holds the cooker collectors on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	temperature prometheus.Gauge
	setpoint    prometheus.Gauge
	pidOutput   prometheus.Gauge
	relay       prometheus.Gauge
	running     prometheus.Gauge
	runTime     prometheus.Gauge

	relaySwitches  *prometheus.CounterVec
	sensorFaults   prometheus.Counter
	sensorRetries  prometheus.Counter
	telemetryRows  prometheus.Counter
	supervisorRuns *prometheus.CounterVec
}

// New registers all cooker collectors plus the Go runtime collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		temperature: f.NewGauge(prometheus.GaugeOpts{
			Name: "cooker_temperature_celsius",
			Help: "Last accepted probe temperature",
		}),
		setpoint: f.NewGauge(prometheus.GaugeOpts{
			Name: "cooker_setpoint_celsius",
			Help: "Target temperature",
		}),
		pidOutput: f.NewGauge(prometheus.GaugeOpts{
			Name: "cooker_pid_output",
			Help: "Last PID controller output",
		}),
		relay: f.NewGauge(prometheus.GaugeOpts{
			Name: "cooker_relay_on",
			Help: "1 if the heater relay was last commanded on",
		}),
		running: f.NewGauge(prometheus.GaugeOpts{
			Name: "cooker_running",
			Help: "1 while a cook is in progress",
		}),
		runTime: f.NewGauge(prometheus.GaugeOpts{
			Name: "cooker_run_time_seconds",
			Help: "Accumulated cook time",
		}),
		relaySwitches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cooker_relay_switches_total",
			Help: "Relay commands issued, by target state",
		}, []string{"state"}),
		sensorFaults: f.NewCounter(prometheus.CounterOpts{
			Name: "cooker_sensor_faults_total",
			Help: "Sensor passes that held the previous reading",
		}),
		sensorRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "cooker_sensor_retries_total",
			Help: "Individual sensor read attempts that failed",
		}),
		telemetryRows: f.NewCounter(prometheus.CounterOpts{
			Name: "cooker_telemetry_rows_total",
			Help: "Rows appended to the CSV log",
		}),
		supervisorRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cooker_faults_total",
			Help: "Faults handled by the supervisor, by class",
		}, []string{"class"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// Observe copies the gauges from the control state.
func (m *Metrics) Observe(s *logic.State) {
	m.temperature.Set(s.CurrentTemp)
	m.setpoint.Set(s.Setpoint)
	m.pidOutput.Set(s.PIDOutput)
	m.relay.Set(boolGauge(s.RelayOn))
	m.running.Set(boolGauge(s.Running))
	m.runTime.Set(s.RunTime.Seconds())
}

// RelaySwitched counts one relay command.
func (m *Metrics) RelaySwitched(on bool) {
	m.relaySwitches.WithLabelValues(logic.RelayActionOf(on).String()).Inc()
}

// SensorFault counts a pass where every read attempt failed.
func (m *Metrics) SensorFault() { m.sensorFaults.Inc() }

// SensorRetry counts one failed read attempt.
func (m *Metrics) SensorRetry() { m.sensorRetries.Inc() }

// RowLogged counts one CSV row.
func (m *Metrics) RowLogged() { m.telemetryRows.Inc() }

// Fault counts one supervisor recovery.
func (m *Metrics) Fault(class string) { m.supervisorRuns.WithLabelValues(class).Inc() }

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
