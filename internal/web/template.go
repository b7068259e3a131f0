package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/soundbox-buttons/internal/status"
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
	"hex": func(b [2]uint8) string {
		return fmt.Sprintf("0x%02x%02x", b[1], b[0])
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Soundbox Buttons</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.pressed { color: green; font-weight: bold; }
.released { color: #888; }
.disabled { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Soundbox Buttons{{if .Input.Locked}} (locked){{end}}</h1>

<h2>Buttons</h2>
<table>
{{range $i, $b := .Input.Buttons}}<tr><th>{{$b.Name}}{{if eq $i $.Input.ShutdownButton}} (sleep){{end}}</th><td>{{$b.Channel}}</td>{{if not $b.Enabled}}<td class="disabled">disabled</td>{{else if $b.Pressed}}<td class="pressed">pressed</td>{{else}}<td class="released">released</td>{{end}}</tr>
{{end}}</table>

<h2>Commands</h2>
<table>
{{with .LastEvent}}<tr><th>Last</th><td>{{.Command}} ({{.Kind}}) at {{.Timestamp.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>{{else}}<tr><th>Last</th><td>none</td></tr>{{end}}
<tr><th>Short</th><td>{{.Counts.Short}}</td></tr>
<tr><th>Long</th><td>{{.Counts.Long}}</td></tr>
<tr><th>Repeat</th><td>{{.Counts.Repeat}}</td></tr>
<tr><th>Chord</th><td>{{.Counts.Chord}}</td></tr>
</table>

<h2>Expander</h2>
<table>
{{if .Input.Expander}}<tr><th>Input</th><td>{{hex .Input.ExpanderIn}}</td></tr>
<tr><th>Output</th><td>{{hex .Input.ExpanderOut}}</td></tr>{{else}}<tr><th>Status</th><td class="disconnected">not present</td></tr>{{end}}
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Board</th><td>{{.Config.Board}}</td></tr>
<tr><th>GPIO</th><td>{{.Config.GPIO}}</td></tr>
<tr><th>Sample</th><td>{{.Config.SampleMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Long press</th><td>{{.Config.LongPressMs}}ms</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
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
	indexTmpl.Execute(w, data)
}
