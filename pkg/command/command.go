// Package command builds the ASCII command strings understood by KeContact
// charging stations and validates their parameters before anything reaches
// the wire. Encoders return the exact payload to send; the station answers
// with "TCH-OK :done", "TCH-ERR" or a report (see package wire).
package command

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Validation errors. Both wrap into the error chain so callers can test
// with errors.Is.
var (
	ErrOutOfRange   = errors.New("parameter out of range")
	ErrBadParameter = errors.New("invalid parameter")
)

// DefaultRFIDClass is the RFID color class stations assume when a tag is
// presented without one.
const DefaultRFIDClass = "01010400000000000000"

// Hardware limits shared by all models.
const (
	// MinCurrent and MaxCurrent bound every current limit in ampere.
	// 0 is also accepted and suspends the charging process.
	MinCurrent = 6
	MaxCurrent = 63

	// MaxDelay is the exclusive upper bound for delayed current limits,
	// ten days in seconds.
	MaxDelay = 860400
)

// Probe is the discovery probe every station on the segment answers.
func Probe() string { return "i" }

// Report requests the numbered report.
func Report(id int) string { return fmt.Sprintf("report %d", id) }

// Enable resumes (true) or suspends (false) the charging process.
func Enable(on bool) string {
	if on {
		return "ena 1"
	}
	return "ena 0"
}

// Unlock unlocks the socket. The charging process must be suspended first.
func Unlock() string { return "unlock" }

// ValidateCurrent checks a current limit in ampere: 0 suspends charging,
// anything else must lie within the hardware range.
func ValidateCurrent(amps float64) error {
	if (amps < MinCurrent && amps != 0) || amps > MaxCurrent {
		return fmt.Errorf("%w: current %g A must be 0 or within %d..%d", ErrOutOfRange, amps, MinCurrent, MaxCurrent)
	}
	return nil
}

// CurrentMax permanently limits the charging current.
func CurrentMax(amps float64) (string, error) {
	if err := ValidateCurrent(amps); err != nil {
		return "", err
	}
	return fmt.Sprintf("curr %d", milliamps(amps)), nil
}

// CurrentWithDelay limits the charging current after delay seconds.
func CurrentWithDelay(amps float64, delay int) (string, error) {
	if err := ValidateCurrent(amps); err != nil {
		return "", err
	}
	if delay < 0 || delay >= MaxDelay {
		return "", fmt.Errorf("%w: delay %d s must be within 0..%d", ErrOutOfRange, delay, MaxDelay-1)
	}
	return fmt.Sprintf("currtime %d %d", milliamps(amps), delay), nil
}

// Failsafe arms the failsafe watchdog: when no command arrives for timeout
// seconds the current limit falls back to fallbackAmps. A timeout of 0
// disarms the watchdog. persist survives a reboot.
func Failsafe(timeout int, fallbackAmps float64, persist bool) (string, error) {
	if (timeout < 10 && timeout != 0) || timeout > 600 {
		return "", fmt.Errorf("%w: failsafe timeout %d s must be 0 or within 10..600", ErrOutOfRange, timeout)
	}
	if timeout == 0 {
		return fmt.Sprintf("failsafe 0 0 %d", boolDigit(persist)), nil
	}
	if err := ValidateCurrent(fallbackAmps); err != nil {
		return "", err
	}
	return fmt.Sprintf("failsafe %d %d %d", timeout, milliamps(fallbackAmps), boolDigit(persist)), nil
}

// EnergyLimit suspends the session once the given energy in kWh has been
// delivered; 0 removes the limit.
func EnergyLimit(kwh float64) (string, error) {
	if (kwh < 1 && kwh != 0) || kwh >= 10000 {
		return "", fmt.Errorf("%w: energy %g kWh must be 0 or within 1..9999", ErrOutOfRange, kwh)
	}
	// The wire wants 0.1 Wh.
	return fmt.Sprintf("setenergy %d", int(math.Round(kwh*10000))), nil
}

// Output drives the X1 relay: 0 opens, 1 closes, 10..150 pulses per kWh.
func Output(out int) (string, error) {
	if out < 0 || out > 150 || (out > 1 && out < 10) {
		return "", fmt.Errorf("%w: output %d must be 0, 1 or a pulse rate within 10..150", ErrOutOfRange, out)
	}
	return fmt.Sprintf("output %d", out), nil
}

// ValidateRFIDTag checks an RFID tag: up to 8 bytes as a hex string.
func ValidateRFIDTag(tag string) error {
	if tag == "" || len(tag) > 16 || !isHex(tag) {
		return fmt.Errorf("%w: RFID tag %q must be up to 8 bytes in hex", ErrBadParameter, tag)
	}
	return nil
}

// ValidateRFIDClass checks an RFID color class: up to 10 bytes as a hex
// string.
func ValidateRFIDClass(class string) error {
	if class == "" || len(class) > 20 || !isHex(class) {
		return fmt.Errorf("%w: RFID class %q must be up to 10 bytes in hex", ErrBadParameter, class)
	}
	return nil
}

// Start authorizes a charging session. An empty tag authorizes without
// RFID; an empty class falls back to DefaultRFIDClass.
func Start(rfidTag, rfidClass string) (string, error) {
	if rfidTag == "" {
		return "start", nil
	}
	if rfidClass == "" {
		rfidClass = DefaultRFIDClass
	}
	if err := ValidateRFIDTag(rfidTag); err != nil {
		return "", err
	}
	if err := ValidateRFIDClass(rfidClass); err != nil {
		return "", err
	}
	return fmt.Sprintf("start %s %s", rfidTag, rfidClass), nil
}

// Stop deauthorizes the charging session identified by the tag, or the
// running one when the tag is empty.
func Stop(rfidTag string) (string, error) {
	if rfidTag == "" {
		return "stop", nil
	}
	if err := ValidateRFIDTag(rfidTag); err != nil {
		return "", err
	}
	return "stop " + rfidTag, nil
}

// Display shows a text on the built-in display for between minTime and
// maxTime seconds. Spaces travel as "$" and the text is cut after 23
// characters, both limits of the display firmware.
func Display(text string, minTime, maxTime int) (string, error) {
	if minTime < 0 || minTime > 65535 || maxTime < 0 || maxTime > 65535 {
		return "", fmt.Errorf("%w: display times %d/%d s must be within 0..65535", ErrOutOfRange, minTime, maxTime)
	}
	text = strings.ReplaceAll(text, " ", "$")
	if len(text) > 23 {
		text = text[:23]
	}
	return fmt.Sprintf("display 1 %d %d 0 %s", minTime, maxTime, text), nil
}

// PhaseSwitch toggles the X2 phase switch between one (false) and three
// (true) phases. The switch source must be set to UDP first.
func PhaseSwitch(threePhases bool) string {
	return fmt.Sprintf("x2 %d", boolDigit(threePhases))
}

// PhaseSwitchSource selects the channel allowed to toggle the X2 phase
// switch: 0 none, 1 OCPP, 2 RestAPI, 3 Modbus, 4 UDP.
func PhaseSwitchSource(source int) (string, error) {
	if source < 0 || source > 4 {
		return "", fmt.Errorf("%w: phase switch source %d must be within 0..4", ErrOutOfRange, source)
	}
	return fmt.Sprintf("x2src %d", source), nil
}

func milliamps(amps float64) int {
	return int(math.Round(amps * 1000))
}

func boolDigit(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
