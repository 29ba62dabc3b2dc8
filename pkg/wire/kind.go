package wire

import (
	"encoding/json"
	"strings"
)

// Kind classifies an inbound datagram payload.
type Kind uint8

const (
	// KindUnknown marks a payload that could not be classified. Unknown
	// payloads are logged and dropped.
	KindUnknown Kind = iota

	// KindBroadcast marks a discovery probe seen on the broadcast segment,
	// usually our own probe echoed back by the network.
	KindBroadcast

	// KindDiscoveryReply marks a station answering a discovery probe with
	// its firmware banner.
	KindDiscoveryReply

	// KindAcknowledged marks a command accepted by the station.
	KindAcknowledged

	// KindRejected marks a command rejected by the station.
	KindRejected

	// KindPushUpdate marks an unsolicited state change pushed by the
	// station, a JSON object without a report ID.
	KindPushUpdate

	// KindReportIdentification is report 1: serial, product and firmware.
	KindReportIdentification

	// KindReportStatus is report 2: charging state, limits and settings.
	KindReportStatus

	// KindReportMetering is report 3: voltages, currents, power and energy.
	KindReportMetering

	// KindReportHistory is any report with an ID of 100 or above: one entry
	// of the charging history ring buffer.
	KindReportHistory
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindBroadcast:
		return "BROADCAST"
	case KindDiscoveryReply:
		return "DISCOVERY_REPLY"
	case KindAcknowledged:
		return "ACKNOWLEDGED"
	case KindRejected:
		return "REJECTED"
	case KindPushUpdate:
		return "PUSH_UPDATE"
	case KindReportIdentification:
		return "REPORT_1"
	case KindReportStatus:
		return "REPORT_2"
	case KindReportMetering:
		return "REPORT_3"
	case KindReportHistory:
		return "REPORT_1XX"
	default:
		return "UNKNOWN"
	}
}

// Markers that classify inbound payloads. The order of checks matters: the
// acknowledgement and rejection tokens may appear anywhere in otherwise
// unstructured text, and a report only reveals its kind after a successful
// JSON decode.
const (
	broadcastPrefix = "i"
	discoveryPrefix = `"Firmware`
	ackToken        = "TCH-OK"
	rejectToken     = "TCH-ERR"
)

// Classify determines the kind of an inbound payload. A JSON object without
// an ID field is a push update; a payload that fails to decode, or carries
// an ID outside the known report ranges, is KindUnknown. Classification
// itself never fails.
func Classify(payload string) Kind {
	if strings.HasPrefix(payload, broadcastPrefix) {
		return KindBroadcast
	}
	if strings.HasPrefix(payload, discoveryPrefix) {
		return KindDiscoveryReply
	}
	if strings.Contains(payload, ackToken) {
		return KindAcknowledged
	}
	if strings.Contains(payload, rejectToken) {
		return KindRejected
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		return KindUnknown
	}

	if _, present := fields[FieldID]; !present {
		return KindPushUpdate
	}
	id, ok := ReportID(fields)
	if !ok {
		return KindUnknown
	}
	switch {
	case id == ReportIdentification:
		return KindReportIdentification
	case id == ReportStatus:
		return KindReportStatus
	case id == ReportMetering:
		return KindReportMetering
	case id >= ReportHistoryStart:
		return KindReportHistory
	default:
		return KindUnknown
	}
}
