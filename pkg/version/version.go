// Package version carries the driver version and parses the version number
// out of station firmware banners.
package version

import (
	"fmt"
	"regexp"
	"strconv"
)

// Library is the version of this driver.
const Library = "0.1.0"

// Firmware is a parsed station firmware version.
type Firmware struct {
	Major int
	Minor int
	Patch int
}

// firmwarePattern matches the numeric core of banners like
// "P30 v 3.10.57 (Build: 2023-03-01)".
var firmwarePattern = regexp.MustCompile(`(\d+)\.(\d+)\.(\d+)`)

// ParseFirmware extracts the version number from a firmware banner.
func ParseFirmware(banner string) (Firmware, error) {
	m := firmwarePattern.FindStringSubmatch(banner)
	if m == nil {
		return Firmware{}, fmt.Errorf("no version number in firmware banner %q", banner)
	}

	major, _ := strconv.Atoi(m[1])
	minor, _ := strconv.Atoi(m[2])
	patch, _ := strconv.Atoi(m[3])
	return Firmware{Major: major, Minor: minor, Patch: patch}, nil
}

// String returns the version as "major.minor.patch".
func (f Firmware) String() string {
	return fmt.Sprintf("%d.%d.%d", f.Major, f.Minor, f.Patch)
}

// AtLeast reports whether the firmware is at or above the given version.
func (f Firmware) AtLeast(other Firmware) bool {
	if f.Major != other.Major {
		return f.Major > other.Major
	}
	if f.Minor != other.Minor {
		return f.Minor > other.Minor
	}
	return f.Patch >= other.Patch
}
