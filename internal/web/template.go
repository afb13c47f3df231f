package web

import (
	"fmt"
	"html/template"
	"io"
	"sort"
	"time"

	"github.com/sweeney/button-sensor/internal/status"
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
	"stateOrUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
	"ms": func(v int64) string {
		if v == 0 {
			return "off"
		}
		return fmt.Sprintf("%dms", v)
	},
	"ts": func(t time.Time) string {
		return t.UTC().Format(status.TimeFormat)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Button Sensor{{if .Config.ButtonName}} ({{.Config.ButtonName}}){{end}}</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.down { color: green; font-weight: bold; }
.up { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
#feed { list-style: none; padding: 0; }
</style>
</head>
<body>
<h1>Button Sensor{{if .Config.ButtonName}}: {{.Config.ButtonName}}{{end}}<span id="live-dot" class="live-dot pending" title="connecting"></span></h1>

<h2>State</h2>
<table>
<tr><th>Button</th><td id="state" class="{{if eq (stateOrUnknown (printf "%s" .State)) "DOWN"}}down{{else if eq (stateOrUnknown (printf "%s" .State)) "UP"}}up{{else}}unknown{{end}}">{{stateOrUnknown (printf "%s" .State)}}</td></tr>
<tr><th>Held</th><td>{{if .Held}}yes{{else}}no{{end}}</td></tr>
<tr><th>Pending clicks</th><td>{{.PendingClicks}}</td></tr>
<tr><th>Last gesture</th><td id="last">{{with .LastGesture}}{{.Type}} x{{.Count}}{{if .Repeat}} (repeat){{end}} at {{ts .Timestamp}}{{else}}none{{end}}</td></tr>
</table>

<h2>Live</h2>
<ul id="feed"></ul>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Topics</th><td>{{.Config.TopicPrefix}}/#</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Gesture Counts</h2>
<table>
<tr><th>Clicks</th><td>{{.Counts.Clicks}}</td></tr>
{{range .ClickRows}}<tr><th>&nbsp;&nbsp;{{.Count}}-click</th><td>{{.N}}</td></tr>
{{end}}<tr><th>Holds</th><td>{{.Counts.Holds}}</td></tr>
{{range .HoldRows}}<tr><th>&nbsp;&nbsp;after {{.Count}} click(s)</th><td>{{.N}}</td></tr>
{{end}}<tr><th>Hold repeats</th><td>{{.Counts.Repeats}}</td></tr>
<tr><th>Handler faults</th><td>{{.Counts.Faults}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Click / double / hold / repeat</th><td>{{ms .Config.ClickMs}} / {{ms .Config.DoubleClickMs}} / {{ms .Config.HoldMs}} / {{ms .Config.HoldRepeatMs}}</td></tr>
<tr><th>Sampler</th><td>{{.Config.SamplerMode}} @ {{.Config.PollMs}}ms</td></tr>
<tr><th>Dispatch</th><td>{{.Config.DispatchMode}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  var last = document.getElementById("last");
  var feed = document.getElementById("feed");

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "/ws");

    ws.onopen = function() { setDot("ok", "live"); };
    ws.onclose = function() {
      setDot("err", "offline");
      setTimeout(connect, 5000);
    };
    ws.onmessage = function(e) {
      try {
        var msg = JSON.parse(e.data);
        if (msg.type !== "gesture") return;
        var d = msg.data;
        var text = d.event + " x" + d.count + (d.repeat ? " (repeat)" : "") + " at " + msg.ts;
        last.textContent = text;
        var li = document.createElement("li");
        li.textContent = text;
        feed.insertBefore(li, feed.firstChild);
        while (feed.children.length > 20) feed.removeChild(feed.lastChild);
      } catch (err) {}
    };
  }
  connect();
})();
</script>
</body>
</html>
`

type countRow struct {
	Count int
	N     int
}

func rows(m map[int]int) []countRow {
	out := make([]countRow, 0, len(m))
	for k, v := range m {
		out = append(out, countRow{Count: k, N: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Count < out[j].Count })
	return out
}

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime    time.Duration
		ClickRows []countRow
		HoldRows  []countRow
	}{
		Snapshot:  snap,
		Uptime:    snap.Uptime(),
		ClickRows: rows(snap.Counts.ClicksByCount),
		HoldRows:  rows(snap.Counts.HoldsByCount),
	}
	return indexTmpl.Execute(w, data)
}
