package wire

import (
	"math"
	"time"
)

// Field groups sharing a scale factor on the wire.
var (
	// milliScaled fields arrive in thousandths: currents in mA, the power
	// factor as cos phi times 1000.
	milliScaled = []string{
		FieldMaxCurrPercent, FieldMaxCurr, FieldCurrHW, FieldCurrUser,
		FieldCurrFS, FieldCurrTimer, FieldI1, FieldI2, FieldI3, FieldPF,
	}

	// energyScaled fields arrive in 0.1 Wh and are kept as kWh.
	energyScaled = []string{FieldSetenergy, FieldEPres, FieldETotal, FieldEStart}
)

// stateDetails maps the numeric charging state to a description.
var stateDetails = map[int]string{
	0: "starting",
	1: "not ready for charging",
	2: "ready for charging",
	3: "charging",
	4: "error",
	5: "authorization rejected",
}

// StateCharging is the report 2 state value of an active charging process.
const StateCharging = 3

// Humanize rescales a decoded report in place to human-friendly units:
// currents from mA to A, energy from 0.1 Wh to kWh, power from mW to kW.
// It derives boolean plug, state and failsafe flags, renders the uptime,
// and drops a zero hardware current limit because it carries no meaning.
func Humanize(fields map[string]any) {
	if secs, ok := number(fields, FieldSec); ok {
		fields[FieldUptimePretty] = (time.Duration(secs) * time.Second).String()
	}

	for _, key := range milliScaled {
		if v, ok := number(fields, key); ok {
			fields[key] = v / 1000.0
		}
	}
	// The percent limit is reported in 0.1 % steps on top of the mA scale.
	if v, ok := number(fields, FieldMaxCurrPercent); ok {
		fields[FieldMaxCurrPercent] = v / 10.0
	}

	for _, key := range energyScaled {
		if v, ok := number(fields, key); ok {
			fields[key] = round2(v / 10000.0)
		}
	}

	if v, ok := number(fields, FieldPlug); ok {
		plug := int(v)
		fields[FieldPlugPlugged] = plug > 0
		fields[FieldPlugLocked] = plug == 3 || plug == 7
		fields[FieldPlugEV] = plug > 4
	}

	if v, ok := number(fields, FieldState); ok {
		state := int(v)
		fields[FieldStateOn] = state == StateCharging
		details, known := stateDetails[state]
		if !known {
			details = "State undefined"
		}
		fields[FieldStateDetails] = details
	}

	if v, ok := number(fields, FieldTmoFS); ok {
		fields[FieldFailsafeOn] = v > 0
	}

	if v, ok := number(fields, FieldP); ok {
		fields[FieldP] = round2(v / 1e6)
	}

	if v, ok := number(fields, FieldCurrHW); ok && v == 0 {
		delete(fields, FieldCurrHW)
	}
}

// number returns the field as a float64 when present and numeric.
func number(fields map[string]any, key string) (float64, bool) {
	v, ok := fields[key].(float64)
	return v, ok
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
