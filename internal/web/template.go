package web

import (
	"fmt"
	"html/template"
	"io"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/sweeney/lock-feedback/internal/history"
	"github.com/sweeney/lock-feedback/internal/logic"
	"github.com/sweeney/lock-feedback/internal/status"
)

const (
	plotWidth  = 600
	plotHeight = 240
	plotPad    = 10
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
	"lockClass": func(s logic.LockState) string {
		switch s {
		case logic.Locked:
			return "locked"
		case logic.OutOfLock, logic.NotLocking:
			return "unlocked"
		}
		return "unknown"
	},
	"orUnknown": func(s logic.LockState) string {
		if s == "" {
			return "UNKNOWN"
		}
		return string(s)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Lock Feedback</title>
<style>
body { font-family: monospace; max-width: 640px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.locked { color: green; font-weight: bold; }
.unlocked { color: red; font-weight: bold; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
svg { border: 1px solid #ddd; }
.trace { fill: none; stroke: #036; stroke-width: 1.5; }
.band { stroke: #c00; stroke-dasharray: 4 3; }
</style>
</head>
<body>
<h1>Lock Feedback</h1>

<form method="post" action="/active">
<input type="hidden" name="redirect" value="1">
<input type="hidden" name="active" value="{{if .Active}}false{{else}}true{{end}}">
<button type="submit">{{if .Active}}Stop{{else}}Start{{end}}</button>
<span>{{if .Active}}running{{else}}paused{{end}}</span>
</form>

<svg width="{{.Plot.Width}}" height="{{.Plot.Height}}" viewBox="0 0 {{.Plot.Width}} {{.Plot.Height}}">
<line class="band" x1="0" x2="{{.Plot.Width}}" y1="{{.Plot.LowY}}" y2="{{.Plot.LowY}}"/>
<line class="band" x1="0" x2="{{.Plot.Width}}" y1="{{.Plot.HighY}}" y2="{{.Plot.HighY}}"/>
{{if .Plot.Points}}<polyline class="trace" points="{{.Plot.Points}}"/>{{else}}<text x="20" y="30">no samples</text>{{end}}
</svg>

<h2>State</h2>
<table>
<tr><th>Lock</th><td id="lock" class="{{lockClass .Lock}}">{{orUnknown .Lock}}</td></tr>
<tr><th>Mean</th><td id="mean">{{printf "%.3f" .Report.Reading.Mean}} V</td></tr>
<tr><th>Std dev</th><td id="stddev">{{printf "%.4f" .Report.Reading.StdDev}} V</td></tr>
<tr><th>Band</th><td>{{printf "%.2f" .Band.Low}} .. {{printf "%.2f" .Band.High}} V</td></tr>
<tr><th>Armed</th><td id="armed">{{if .Report.WithinBounds}}yes{{else}}no (settling){{end}}</td></tr>
<tr><th>Setpoint</th><td id="setpoint">{{printf "%.1f" .Report.Setpoint}} °C</td></tr>
{{if .LastError}}<tr><th>Last error</th><td>{{.LastError}}</td></tr>{{end}}
</table>

<h2>Counts</h2>
<table>
<tr><th>Iterations</th><td>{{.Report.Counts.Iterations}}</td></tr>
<tr><th>Read errors</th><td>{{.Report.Counts.ReadErrors}}</td></tr>
<tr><th>Raises</th><td>{{.Report.Counts.Raises}}</td></tr>
<tr><th>Lowers</th><td>{{.Report.Counts.Lowers}}</td></tr>
<tr><th>Re-arms</th><td>{{.Report.Counts.Rearms}}</td></tr>
<tr><th>Failed commands</th><td>{{.Report.Counts.Failures}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}} ({{.Config.Broker}})</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Acquisition</th><td>{{.Config.DAQ}}, {{.Config.BatchSize}} samples/batch</td></tr>
<tr><th>Controller</th><td>{{.Config.Controller}}</td></tr>
<tr><th>Settle</th><td>{{.Config.SettleMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> <a href="/history.json">history</a></p>
<script>
(function() {
  var proto = location.protocol === "https:" ? "wss:" : "ws:";
  var ws = new WebSocket(proto + "//" + location.host + "/ws");
  ws.onmessage = function(ev) {
    try {
      var r = JSON.parse(ev.data);
      if (!r.lock) { return; }
      var el = document.getElementById("lock");
      el.textContent = r.lock;
      el.className = r.lock === "LOCKED" ? "locked" : "unlocked";
      document.getElementById("mean").textContent = r.mean.toFixed(3) + " V";
      document.getElementById("stddev").textContent = r.stddev.toFixed(4) + " V";
      document.getElementById("armed").textContent = r.within_bounds ? "yes" : "no (settling)";
      document.getElementById("setpoint").textContent = r.setpoint.toFixed(1) + " °C";
    } catch (e) {}
  };
})();
</script>
</body>
</html>
`

// plot is the SVG geometry of the history trace.
type plot struct {
	Width, Height int
	Points        string
	LowY, HighY   float64
}

// buildPlot scales samples (sorted by time) and the band lines into the
// plot area. The vertical range always contains the band.
func buildPlot(samples []history.Sample, band logic.Band) plot {
	p := plot{Width: plotWidth, Height: plotHeight}

	sorted := make([]history.Sample, len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	lo, hi := band.Low, band.High
	for _, s := range sorted {
		lo = min(lo, s.Value)
		hi = max(hi, s.Value)
	}
	if hi <= lo {
		hi = lo + 1
	}
	margin := (hi - lo) * 0.05
	lo -= margin
	hi += margin

	y := func(v float64) float64 {
		return float64(plotHeight-plotPad) - (v-lo)/(hi-lo)*float64(plotHeight-2*plotPad)
	}
	p.LowY = y(band.Low)
	p.HighY = y(band.High)

	if len(sorted) == 0 {
		return p
	}

	first := sorted[0].Time
	span := sorted[len(sorted)-1].Time.Sub(first)
	if span <= 0 {
		span = time.Second
	}

	var b strings.Builder
	for i, s := range sorted {
		x := float64(plotPad) + float64(s.Time.Sub(first))/float64(span)*float64(plotWidth-2*plotPad)
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%.1f,%.1f", x, y(s.Value))
	}
	p.Points = b.String()
	return p
}

func renderHTML(w io.Writer, snap status.Snapshot, samples []history.Sample) {
	// Snapshot has Uptime() and Lock() methods but the template needs fields.
	data := struct {
		status.Snapshot
		Uptime    time.Duration
		Lock      logic.LockState
		LastError string
		Plot      plot
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Lock:     snap.Lock(),
		Plot:     buildPlot(samples, snap.Band),
	}
	switch {
	case snap.Report.ReadErr != nil:
		data.LastError = snap.Report.ReadErr.Error()
	case snap.Report.CommandErr != nil:
		data.LastError = snap.Report.CommandErr.Error()
	}
	if err := indexTmpl.Execute(w, data); err != nil {
		log.Printf("web: render index: %v", err)
	}
}
