// Package wire implements the textual datagram format spoken by KeContact
// charging stations.
//
// # Outbound
//
// Commands are short ASCII strings built by package command: "i" probes the
// broadcast segment, "report 2" requests the charging state, "ena 1" resumes
// a charging process. The station never echoes the command; it answers with
// one of the inbound forms below.
//
// # Inbound
//
// Inbound payloads are only loosely structured, so classification works on
// the raw text:
//
//	i ...              our own probe, echoed from the broadcast address
//	"Firmware":"..."   a station answering the probe
//	TCH-OK :done       command accepted
//	TCH-ERR ...        command rejected
//	{"ID": "1", ...}   a JSON report
//
// Classify applies these checks in order and never fails; anything it cannot
// place is KindUnknown and callers drop it. Reports carry their meaning in
// the ID field: 1 identifies the station, 2 describes the charging state,
// 3 carries meter readings, and 100 and above address the charging history
// ring buffer. A JSON object without an ID is a pushed state change and
// merges into the session like a report.
//
// # Units
//
// Stations report currents in mA, energy in 0.1 Wh and power in mW. Humanize
// rescales a decoded report to A, kWh and kW, derives boolean plug and state
// flags, and renders the uptime. Session code stores only humanized fields.
package wire
