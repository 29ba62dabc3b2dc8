package station

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kecontact/kecontact-go/pkg/wire"
)

// ErrInvalidIdentification marks an identification report that is missing a
// required field or carries a product string the model grammar cannot place.
var ErrInvalidIdentification = errors.New("invalid identification report")

// Model is the classified charging station model.
type Model uint8

const (
	// ModelUnknown is any product the grammar cannot place. Unknown
	// stations keep the base capability set.
	ModelUnknown Model = iota

	// ModelP20 is the KEBA KeContact P20 (b, c and e series).
	ModelP20

	// ModelP30 is the KEBA KeContact P30.
	ModelP30

	// ModelP30DE is the P30 Deutschland-Edition: a P30 without the
	// integrated meter and display.
	ModelP30DE

	// ModelBMWConnect is the BMW Wallbox Connect.
	ModelBMWConnect

	// ModelBMWPlus is the BMW Wallbox Plus.
	ModelBMWPlus
)

// String returns the model name.
func (m Model) String() string {
	switch m {
	case ModelP20:
		return "P20"
	case ModelP30:
		return "P30"
	case ModelP30DE:
		return "P30-DE"
	case ModelBMWConnect:
		return "Wallbox Connect"
	case ModelBMWPlus:
		return "Wallbox Plus"
	default:
		return "Unknown"
	}
}

// Capabilities is the set of optional hardware a model/firmware combination
// carries. Every station supports failsafe, current limits and charging
// power regardless of capabilities.
type Capabilities struct {
	// Meter reports whether an energy meter is integrated. Enables the
	// energy limit command and the metering report.
	Meter bool

	// Authorization reports whether RFID authorization is integrated.
	// Enables the start, stop and unlock commands.
	Authorization bool

	// DataLogger reports whether the charging history ring buffer is
	// available (reports 100 and above).
	DataLogger bool

	// Display reports whether a text display is built in.
	Display bool

	// Output reports whether the X1 relay output can be driven.
	Output bool

	// PhaseSwitch reports whether the X2 output can switch between one
	// and three phase charging.
	PhaseSwitch bool
}

// Info is the immutable identity of a charging station, extracted from its
// identification report. Two stations are the same device iff their serial
// numbers match, regardless of the host they answer on.
type Info struct {
	// Host the station currently answers on. Can change with DHCP; the
	// connection manager re-keys its registry when it does.
	Host string

	// Serial is the stable device serial number.
	Serial string

	// Firmware is the firmware version string as reported.
	Firmware string

	// Product is the raw product string, e.g. "KC-P30-EC220110-000".
	Product string

	// Manufacturer derived from the product string ("KEBA", "BMW", or the
	// raw token for unknown vendors).
	Manufacturer string

	// Model classification derived from the product string.
	Model Model

	// Capabilities of this model/series.
	Capabilities Capabilities
}

// ParseInfo validates an identification report and derives the station
// identity and capability set from its product string. Any missing or
// malformed field is an error, never a silent default.
func ParseInfo(host string, fields map[string]any) (*Info, error) {
	id, ok := wire.ReportID(fields)
	if !ok {
		return nil, fmt.Errorf("%w: no report ID", ErrInvalidIdentification)
	}
	if id != wire.ReportIdentification {
		return nil, fmt.Errorf("%w: got report %d, want report 1", ErrInvalidIdentification, id)
	}

	serial, ok := fields[wire.FieldSerial].(string)
	if !ok || serial == "" {
		return nil, fmt.Errorf("%w: no serial", ErrInvalidIdentification)
	}
	firmware, ok := fields[wire.FieldFirmware].(string)
	if !ok || firmware == "" {
		return nil, fmt.Errorf("%w: no firmware", ErrInvalidIdentification)
	}
	product, ok := fields[wire.FieldProduct].(string)
	if !ok || product == "" {
		return nil, fmt.Errorf("%w: no product", ErrInvalidIdentification)
	}

	info := &Info{
		Host:     host,
		Serial:   serial,
		Firmware: firmware,
		Product:  product,
	}
	if err := classifyProduct(info); err != nil {
		return nil, err
	}
	return info, nil
}

// classifyProduct is the product-string grammar: manufacturer, model,
// version and feature tokens separated by dashes, with the capability set
// fixed per model and series.
func classifyProduct(info *Info) error {
	tokens := strings.Split(info.Product, "-")
	if len(tokens) < 4 {
		return fmt.Errorf("%w: product %q not decomposable", ErrInvalidIdentification, info.Product)
	}
	manufacturer, model, version, features := tokens[0], tokens[1], tokens[2], tokens[3]

	info.Manufacturer = manufacturer
	info.Model = ModelUnknown

	switch manufacturer {
	case "KC":
		info.Manufacturer = "KEBA"
		info.Capabilities.Output = true
		info.Capabilities.PhaseSwitch = true

		switch model {
		case "P30":
			info.Capabilities.Authorization = true
			info.Capabilities.DataLogger = true
			if strings.Contains(info.Product, "KC-P30-EC220112-000-DE") {
				info.Model = ModelP30DE
			} else {
				info.Model = ModelP30
				info.Capabilities.Meter = true
				info.Capabilities.Display = true
			}
		case "P20":
			info.Model = ModelP20
			switch {
			case strings.HasSuffix(version, "01"):
				// e-series, no meter
			case strings.HasSuffix(version, "10"),
				strings.HasSuffix(version, "20"),
				strings.HasSuffix(version, "30"):
				// b- and c-series
				info.Capabilities.Meter = true
			}
			if strings.Contains(features, "R") {
				info.Capabilities.Authorization = true
			}
		}

	case "BMW":
		// Model identification is based on the product codes seen in the
		// field; anything else stays Unknown with the BMW feature set.
		switch {
		case strings.Contains(info.Product, "BMW-10-EC2405B2-E1R"):
			info.Model = ModelBMWConnect
		case strings.Contains(info.Product, "BMW-10-EC240522-E1R"),
			strings.Contains(info.Product, "BMW-10-ESS40022-E1R"):
			info.Model = ModelBMWPlus
		}
		info.Capabilities.Meter = true
		info.Capabilities.Authorization = true
		info.Capabilities.DataLogger = true
	}

	return nil
}

// Equal reports whether two identities describe the same physical device.
func (i *Info) Equal(other *Info) bool {
	return other != nil && i.Serial == other.Serial
}

// WebConfigURL returns the address of the station's built-in web interface.
func (i *Info) WebConfigURL() string {
	return "http://" + i.Host
}

// String renders the identity for logs.
func (i *Info) String() string {
	return fmt.Sprintf("%s %s (%s, %s) at %s", i.Manufacturer, i.Model, i.Serial, i.Firmware, i.Host)
}
