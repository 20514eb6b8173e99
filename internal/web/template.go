package web

import (
	"fmt"
	"html/template"
	"io"
	"log"
	"time"

	"github.com/sweeney/cooker/internal/display"
	"github.com/sweeney/cooker/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"runtime": display.FormatRunTime,
	"onoff":   status.RelayString,
	"temp": func(v float64) string {
		return fmt.Sprintf("%.2f", v)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Cooker</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Cooker</h1>

<h2>Cook</h2>
<table>
<tr><th>Running</th><td id="running" class="{{if .Control.Running}}on{{else}}off{{end}}">{{if .Control.Running}}yes{{else}}no{{end}}</td></tr>
<tr><th>Set</th><td id="set-temp">{{temp .Control.Setpoint}}</td></tr>
<tr><th>Current</th><td id="current-temp">{{temp .Control.CurrentTemp}}</td></tr>
<tr><th>Heater</th><td id="relay" class="{{if .Control.RelayOn}}on{{else}}off{{end}}">{{onoff .Control.RelayOn}}</td></tr>
<tr><th>Run time</th><td id="run-time">{{runtime .Control.RunTime}}</td></tr>
<tr><th>Log</th><td>{{.Control.LogFilename}}</td></tr>
<tr><th>Restored</th><td>{{if .Restored}}yes{{else}}no{{end}}</td></tr>
</table>

<h2>PID</h2>
<table>
<tr><th>Output</th><td>{{temp .Control.PIDOutput}}</td></tr>
<tr><th>Error</th><td>{{temp .Control.LastError}}</td></tr>
<tr><th>Integral</th><td>{{temp .Control.Integral}}</td></tr>
<tr><th>Derivative</th><td>{{temp .Control.Derivative}}</td></tr>
<tr><th>Gains</th><td>kp={{.Config.Kp}} ki={{.Config.Ki}} kd={{.Config.Kd}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Relay</th><td>{{.Config.Relay}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}: {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Boot</th><td>{{.BootID}}</td></tr>
<tr><th>Sensor</th><td>{{.Config.SensorMs}}ms</td></tr>
<tr><th>PID</th><td>{{.Config.PIDMs}}ms</td></tr>
<tr><th>Log interval</th><td>{{.Config.LogMs}}ms</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	if err := indexTmpl.Execute(w, data); err != nil {
		log.Printf("web: render index: %v", err)
	}
}
