// Package station models a single KeContact charging station: its identity
// and capability set as parsed from the identification report, and the live
// session that accumulates report data, fans changes out to observers and
// polls the station in the background.
//
// A ChargingStation is created by the connection manager after a successful
// identification handshake and stays alive until it is removed. Its data
// store only ever grows: each ingested report merges the keys it carries
// over the previous state, so a status report never erases meter readings
// and vice versa. Observers always see the full merged picture.
//
// Polling is adaptive. Right after a state-changing command the station is
// asked for fresh reports at a fast cadence so the effect becomes visible
// quickly; once enough fast rounds have passed the loop falls back to the
// slow cadence. Both cadences have enforced minimums because the firmware
// cannot answer faster.
package station
