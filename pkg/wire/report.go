package wire

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Report IDs with a fixed meaning. IDs of 100 and above address the charging
// history ring buffer: 100 is the running session, 101 the most recently
// finished one, and so on up to 130.
const (
	ReportIdentification = 1
	ReportStatus         = 2
	ReportMetering       = 3
	ReportHistoryStart   = 100
	ReportHistoryEnd     = 130
)

// Report field names as they appear on the wire. The same vocabulary is kept
// for humanized values so session data reads like the reports it came from.
const (
	FieldID       = "ID"
	FieldSerial   = "Serial"
	FieldProduct  = "Product"
	FieldFirmware = "Firmware"
	FieldSec      = "Sec"

	FieldState      = "State"
	FieldPlug       = "Plug"
	FieldEnableSys  = "Enable sys"
	FieldEnableUser = "Enable user"
	FieldAuthreq    = "Authreq"
	FieldInput      = "Input"
	FieldOutput     = "Output"

	FieldMaxCurr        = "Max curr"
	FieldMaxCurrPercent = "Max curr %"
	FieldCurrHW         = "Curr HW"
	FieldCurrUser       = "Curr user"
	FieldCurrFS         = "Curr FS"
	FieldCurrTimer      = "Curr timer"
	FieldTmoFS          = "Tmo FS"
	FieldTmoCT          = "Tmo CT"

	FieldU1 = "U1"
	FieldU2 = "U2"
	FieldU3 = "U3"
	FieldI1 = "I1"
	FieldI2 = "I2"
	FieldI3 = "I3"
	FieldP  = "P"
	FieldPF = "PF"

	FieldSetenergy = "Setenergy"
	FieldEPres     = "E pres"
	FieldETotal    = "E total"
	FieldEStart    = "E start"

	FieldRFIDTag   = "RFID tag"
	FieldRFIDClass = "RFID class"
)

// Fields derived by Humanize from the raw report values.
const (
	FieldPlugPlugged  = "Plug_charging_station"
	FieldPlugLocked   = "Plug_locked"
	FieldPlugEV       = "Plug_EV"
	FieldStateOn      = "State_on"
	FieldStateDetails = "State_details"
	FieldFailsafeOn   = "FS_on"
	FieldUptimePretty = "uptime_pretty"
)

// DecodeReport parses a report payload into its flat key/value form. JSON
// numbers decode as float64, everything else as string.
func DecodeReport(payload string) (map[string]any, error) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return fields, nil
}

// ReportID extracts the numeric report ID. Stations quote the ID as a JSON
// string ("ID": "2"); a bare number is accepted as well.
func ReportID(fields map[string]any) (int, bool) {
	switch v := fields[FieldID].(type) {
	case string:
		id, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return id, true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
