package command

import (
	"errors"
	"testing"
)

func TestEncoders(t *testing.T) {
	tests := []struct {
		name string
		got  string
		err  error
		want string
	}{
		{name: "probe", got: Probe(), want: "i"},
		{name: "report", got: Report(2), want: "report 2"},
		{name: "enable", got: Enable(true), want: "ena 1"},
		{name: "disable", got: Enable(false), want: "ena 0"},
		{name: "unlock", got: Unlock(), want: "unlock"},
		{name: "three phases", got: PhaseSwitch(true), want: "x2 1"},
		{name: "one phase", got: PhaseSwitch(false), want: "x2 0"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestCurrentEncoding(t *testing.T) {
	got, err := CurrentMax(10)
	if err != nil {
		t.Fatalf("CurrentMax(10): %v", err)
	}
	if got != "curr 10000" {
		t.Errorf("CurrentMax(10) = %q, want %q", got, "curr 10000")
	}

	// Fractional ampere values round to whole mA.
	got, err = CurrentMax(6.5)
	if err != nil {
		t.Fatalf("CurrentMax(6.5): %v", err)
	}
	if got != "curr 6500" {
		t.Errorf("CurrentMax(6.5) = %q, want %q", got, "curr 6500")
	}

	got, err = CurrentWithDelay(8, 30)
	if err != nil {
		t.Fatalf("CurrentWithDelay: %v", err)
	}
	if got != "currtime 8000 30" {
		t.Errorf("CurrentWithDelay(8, 30) = %q, want %q", got, "currtime 8000 30")
	}
}

func TestCurrentValidation(t *testing.T) {
	for _, amps := range []float64{0, 6, 63} {
		if err := ValidateCurrent(amps); err != nil {
			t.Errorf("ValidateCurrent(%g) = %v, want nil", amps, err)
		}
	}
	for _, amps := range []float64{-1, 5.9, 63.1, 1000} {
		if err := ValidateCurrent(amps); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("ValidateCurrent(%g) = %v, want ErrOutOfRange", amps, err)
		}
	}

	if _, err := CurrentWithDelay(10, MaxDelay); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("delay at the exclusive bound = %v, want ErrOutOfRange", err)
	}
	if _, err := CurrentWithDelay(10, -1); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("negative delay = %v, want ErrOutOfRange", err)
	}
}

func TestFailsafe(t *testing.T) {
	got, err := Failsafe(30, 8, true)
	if err != nil {
		t.Fatalf("Failsafe: %v", err)
	}
	if got != "failsafe 30 8000 1" {
		t.Errorf("Failsafe(30, 8, true) = %q, want %q", got, "failsafe 30 8000 1")
	}

	// Disarming ignores the fallback current.
	got, err = Failsafe(0, 999, false)
	if err != nil {
		t.Fatalf("Failsafe disarm: %v", err)
	}
	if got != "failsafe 0 0 0" {
		t.Errorf("Failsafe(0, ...) = %q, want %q", got, "failsafe 0 0 0")
	}

	for _, timeout := range []int{5, 9, 601} {
		if _, err := Failsafe(timeout, 8, false); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("Failsafe(timeout=%d) = %v, want ErrOutOfRange", timeout, err)
		}
	}
	if _, err := Failsafe(30, 4, false); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("fallback below minimum = %v, want ErrOutOfRange", err)
	}
}

func TestEnergyLimit(t *testing.T) {
	got, err := EnergyLimit(10)
	if err != nil {
		t.Fatalf("EnergyLimit: %v", err)
	}
	if got != "setenergy 100000" {
		t.Errorf("EnergyLimit(10) = %q, want %q", got, "setenergy 100000")
	}

	got, err = EnergyLimit(0)
	if err != nil {
		t.Fatalf("EnergyLimit(0): %v", err)
	}
	if got != "setenergy 0" {
		t.Errorf("EnergyLimit(0) = %q, want %q", got, "setenergy 0")
	}

	for _, kwh := range []float64{0.5, -1, 10000} {
		if _, err := EnergyLimit(kwh); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("EnergyLimit(%g) = %v, want ErrOutOfRange", kwh, err)
		}
	}
}

func TestOutput(t *testing.T) {
	for out, want := range map[int]string{0: "output 0", 1: "output 1", 10: "output 10", 150: "output 150"} {
		got, err := Output(out)
		if err != nil {
			t.Fatalf("Output(%d): %v", out, err)
		}
		if got != want {
			t.Errorf("Output(%d) = %q, want %q", out, got, want)
		}
	}
	for _, out := range []int{-1, 2, 9, 151} {
		if _, err := Output(out); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("Output(%d) = %v, want ErrOutOfRange", out, err)
		}
	}
}

func TestRFIDValidation(t *testing.T) {
	if err := ValidateRFIDTag("deadBEEF01"); err != nil {
		t.Errorf("valid tag rejected: %v", err)
	}
	for _, tag := range []string{"", "xyz", "0123456789abcdef01"} {
		if err := ValidateRFIDTag(tag); !errors.Is(err, ErrBadParameter) {
			t.Errorf("ValidateRFIDTag(%q) = %v, want ErrBadParameter", tag, err)
		}
	}
	if err := ValidateRFIDClass(DefaultRFIDClass); err != nil {
		t.Errorf("default class rejected: %v", err)
	}
	if err := ValidateRFIDClass("0101040000000000000000"); !errors.Is(err, ErrBadParameter) {
		t.Errorf("overlong class = %v, want ErrBadParameter", err)
	}
}

func TestStartStop(t *testing.T) {
	got, err := Start("aabbccdd", "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got != "start aabbccdd "+DefaultRFIDClass {
		t.Errorf("Start with default class = %q", got)
	}

	if got, _ := Start("", ""); got != "start" {
		t.Errorf("tagless Start = %q, want %q", got, "start")
	}
	if got, _ := Stop(""); got != "stop" {
		t.Errorf("tagless Stop = %q, want %q", got, "stop")
	}
	if got, _ := Stop("aabbccdd"); got != "stop aabbccdd" {
		t.Errorf("Stop = %q, want %q", got, "stop aabbccdd")
	}

	if _, err := Start("not-hex", ""); !errors.Is(err, ErrBadParameter) {
		t.Errorf("Start with bad tag = %v, want ErrBadParameter", err)
	}
}

func TestDisplay(t *testing.T) {
	got, err := Display("Hello World", 5, 10)
	if err != nil {
		t.Fatalf("Display: %v", err)
	}
	if got != "display 1 5 10 0 Hello$World" {
		t.Errorf("Display = %q", got)
	}

	// The display firmware only renders 23 characters.
	got, err = Display("abcdefghijklmnopqrstuvwxyz", 0, 0)
	if err != nil {
		t.Fatalf("Display long: %v", err)
	}
	if got != "display 1 0 0 0 abcdefghijklmnopqrstuvw" {
		t.Errorf("long Display = %q", got)
	}

	if _, err := Display("x", -1, 0); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("negative minTime = %v, want ErrOutOfRange", err)
	}
	if _, err := Display("x", 0, 65536); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("overlong maxTime = %v, want ErrOutOfRange", err)
	}
}

func TestPhaseSwitchSource(t *testing.T) {
	got, err := PhaseSwitchSource(4)
	if err != nil {
		t.Fatalf("PhaseSwitchSource: %v", err)
	}
	if got != "x2src 4" {
		t.Errorf("PhaseSwitchSource(4) = %q, want %q", got, "x2src 4")
	}
	for _, source := range []int{-1, 5} {
		if _, err := PhaseSwitchSource(source); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("PhaseSwitchSource(%d) = %v, want ErrOutOfRange", source, err)
		}
	}
}
