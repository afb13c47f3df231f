// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/sweeney/button-sensor/internal/action"
	"github.com/sweeney/button-sensor/internal/logic"
)

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "home/button"

// Topics are the topics a publisher writes to.
type Topics struct {
	Events  string
	Actions string
	System  string
}

// NewTopics derives the topic set from a prefix such as "home/button".
func NewTopics(prefix string) Topics {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{
		Events:  prefix + "/events",
		Actions: prefix + "/actions",
		System:  prefix + "/system",
	}
}

// Prefix returns the prefix the topics were derived from.
func (t Topics) Prefix() string {
	return strings.TrimSuffix(t.Events, "/events")
}

// Publisher publishes gestures, actions and lifecycle events to MQTT.
type Publisher interface {
	// Publish sends a gesture to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishAction sends a bound action to the broker.
	PublishAction(a action.Action) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// System event names.
const (
	EventStartup     = "STARTUP"
	EventHeartbeat   = "HEARTBEAT"
	EventShutdown    = "SHUTDOWN"
	EventReconnected = "RECONNECTED"
)

// ReasonMQTTDisconnect is the shutdown reason carried by the last will.
const ReasonMQTTDisconnect = "MQTT_DISCONNECT"

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload is the message published for a gesture.
type Payload struct {
	Button ButtonPayload `json:"button"`
}

// ButtonPayload contains the gesture details.
type ButtonPayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Count     int    `json:"count"`
	Repeat    bool   `json:"repeat,omitempty"`
	Name      string `json:"name,omitempty"`
}

// FormatPayload creates the JSON payload for a gesture fired by the named button.
func FormatPayload(name string, event logic.Event) ([]byte, error) {
	payload := Payload{
		Button: ButtonPayload{
			Timestamp: formatTime(event.Timestamp),
			Event:     string(event.Type),
			Count:     event.Count,
			Repeat:    event.Repeat,
			Name:      name,
		},
	}
	return json.Marshal(payload)
}

// ActionPayload is the message published for a bound action.
type ActionPayload struct {
	Action ActionPayloadInner `json:"action"`
}

// ActionPayloadInner contains the action fields.
type ActionPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Name      string `json:"name"`
	Gesture   string `json:"gesture"`
	Count     int    `json:"count"`
}

// FormatActionPayload creates the JSON payload for an action.
func FormatActionPayload(a action.Action) ([]byte, error) {
	return json.Marshal(ActionPayload{
		Action: ActionPayloadInner{
			Timestamp: formatTime(a.Timestamp),
			Name:      a.Name,
			Gesture:   string(a.Gesture),
			Count:     a.Count,
		},
	})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: formatTime(event.Timestamp),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// Millisecond precision: double clicks are a few hundred ms apart.
const timeFormat = "2006-01-02T15:04:05.000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}
