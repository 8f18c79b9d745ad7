package bus

import (
	"strings"
)

// Fixed topic literals and subscription filters.
const (
	TopicHubStatus = "status/hub"

	filterTelemetry  = "tele/+/reading"
	filterValveSet   = "valve/+/set"
	filterNodeStatus = "status/node/+"
)

// SubscriptionFilters is the full set of topics the hub subscribes to on
// every (re)connect.
var SubscriptionFilters = []string{filterTelemetry, filterValveSet, filterNodeStatus}

// NodeIDOfReading extracts <node_id> from "tele/<node_id>/reading", or
// returns ok=false if topic doesn't match the grammar exactly.
func NodeIDOfReading(topic string) (nodeID string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "tele" || parts[2] != "reading" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// ZoneIDOfSet extracts <zone_id> from "valve/<zone_id>/set".
func ZoneIDOfSet(topic string) (zoneID string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "valve" || parts[2] != "set" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// NodeIDOfStatus extracts <node_id> from "status/node/<node_id>".
func NodeIDOfStatus(topic string) (nodeID string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "status" || parts[1] != "node" || parts[2] == "" {
		return "", false
	}
	return parts[2], true
}

// TelemetryTopic formats the publish topic a node would use — kept for
// symmetry with the parser and for tests.
func TelemetryTopic(nodeID string) string { return "tele/" + nodeID + "/reading" }

// ValveSetTopic formats the topic the hub expects valve commands on.
func ValveSetTopic(zoneID string) string { return "valve/" + zoneID + "/set" }

// NodeStatusTopic formats a node's retained status topic.
func NodeStatusTopic(nodeID string) string { return "status/node/" + nodeID }

// ─── Payload codec ──────────────────────────────────────────────────────────

const (
	// MaxTelemetryPayloadBytes caps a single telemetry message's size.
	MaxTelemetryPayloadBytes = 4096
	// MaxReadingsPerMessage caps how many readings one telemetry message
	// may carry.
	MaxReadingsPerMessage = 32
)

// TelemetryReading is one entry in a telemetry payload's readings array.
type TelemetryReading struct {
	SensorID string `json:"sensor_id"`
	Raw      int64  `json:"raw"`
}

// TelemetryPayload is the JSON body published to tele/<node_id>/reading.
type TelemetryPayload struct {
	TS       int64              `json:"ts"`
	Readings []TelemetryReading `json:"readings"`
}

// ParseValveCommand decodes a valve/<zone_id>/set payload. Tokens are
// case-insensitive and may carry surrounding whitespace.
func ParseValveCommand(payload []byte) (on bool, ok bool) {
	token := strings.ToUpper(strings.TrimSpace(string(payload)))
	switch token {
	case "ON":
		return true, true
	case "OFF":
		return false, true
	default:
		return false, false
	}
}

// ParseNodeStatus decodes a status/node/<node_id> retained payload.
func ParseNodeStatus(payload []byte) (online bool, ok bool) {
	token := strings.ToLower(strings.TrimSpace(string(payload)))
	switch token {
	case "online":
		return true, true
	case "offline":
		return false, true
	default:
		return false, false
	}
}

// FormatOnOff renders the canonical wire token for a retained status
// payload — used when the hub announces its own presence.
func FormatOnOff(on bool) string {
	if on {
		return "online"
	}
	return "offline"
}
