package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Button        ButtonJSON   `json:"button"`
	LastGesture   *GestureJSON `json:"last_gesture,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"event_counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// ButtonJSON is the live button state.
type ButtonJSON struct {
	Name          string `json:"name"`
	State         string `json:"state"`
	Held          bool   `json:"held"`
	Pressed       bool   `json:"pressed"`
	PendingClicks int    `json:"pending_clicks"`
}

// GestureJSON is the JSON representation of a fired gesture.
type GestureJSON struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Count     int    `json:"count"`
	Repeat    bool   `json:"repeat,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
// Histogram keys are the gesture count, encoded as JSON object keys.
type CountsJSON struct {
	Clicks        int         `json:"clicks"`
	Holds         int         `json:"holds"`
	Repeats       int         `json:"repeats"`
	Faults        int         `json:"faults"`
	ClicksByCount map[int]int `json:"clicks_by_count"`
	HoldsByCount  map[int]int `json:"holds_by_count"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	ClickMs       int64  `json:"click_ms"`
	DoubleClickMs int64  `json:"double_click_ms"`
	HoldMs        int64  `json:"hold_ms"`
	HoldRepeatMs  int64  `json:"hold_repeat_ms"`
	SamplerMode   string `json:"sampler_mode"`
	PollMs        int64  `json:"poll_ms"`
	DispatchMode  string `json:"dispatch_mode"`
	HeartbeatMs   int64  `json:"heartbeat_ms"`
	Broker        string `json:"broker"`
	TopicPrefix   string `json:"topic_prefix"`
	HTTPAddr      string `json:"http_addr"`
}

// TimeFormat is used for all timestamps in status output.
const TimeFormat = "2006-01-02T15:04:05.000Z07:00"

// NewGestureJSON converts a gesture for JSON output.
func NewGestureJSON(ts time.Time, event string, count int, repeat bool) GestureJSON {
	return GestureJSON{
		Timestamp: ts.UTC().Format(TimeFormat),
		Event:     event,
		Count:     count,
		Repeat:    repeat,
	}
}

func nonNil(m map[int]int) map[int]int {
	if m == nil {
		return map[int]int{}
	}
	return m
}

func buildInner(snap Snapshot) StatusInner {
	state := string(snap.State)
	if state == "" {
		state = "UNKNOWN"
	}

	inner := StatusInner{
		Button: ButtonJSON{
			Name:          snap.Config.ButtonName,
			State:         state,
			Held:          snap.Held,
			Pressed:       snap.Pressed,
			PendingClicks: snap.PendingClicks,
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Clicks:        snap.Counts.Clicks,
			Holds:         snap.Counts.Holds,
			Repeats:       snap.Counts.Repeats,
			Faults:        snap.Counts.Faults,
			ClicksByCount: nonNil(snap.Counts.ClicksByCount),
			HoldsByCount:  nonNil(snap.Counts.HoldsByCount),
		},
		Config: ConfigJSON{
			ClickMs:       snap.Config.ClickMs,
			DoubleClickMs: snap.Config.DoubleClickMs,
			HoldMs:        snap.Config.HoldMs,
			HoldRepeatMs:  snap.Config.HoldRepeatMs,
			SamplerMode:   snap.Config.SamplerMode,
			PollMs:        snap.Config.PollMs,
			DispatchMode:  snap.Config.DispatchMode,
			HeartbeatMs:   snap.Config.HeartbeatMs,
			Broker:        snap.Config.Broker,
			TopicPrefix:   snap.Config.TopicPrefix,
			HTTPAddr:      snap.Config.HTTPAddr,
		},
	}
	if g := snap.LastGesture; g != nil {
		lg := NewGestureJSON(g.Timestamp, string(g.Type), g.Count, g.Repeat)
		inner.LastGesture = &lg
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
