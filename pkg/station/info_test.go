package station

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identReport(serial, firmware, product string) map[string]any {
	return map[string]any{
		"ID":       "1",
		"Serial":   serial,
		"Firmware": firmware,
		"Product":  product,
	}
}

func TestParseInfoFields(t *testing.T) {
	info, err := ParseInfo("192.168.1.30", identReport("17619516", "P30 v 3.10.57", "KC-P30-EC240422-E00"))
	require.NoError(t, err)

	assert.Equal(t, "192.168.1.30", info.Host)
	assert.Equal(t, "17619516", info.Serial)
	assert.Equal(t, "P30 v 3.10.57", info.Firmware)
	assert.Equal(t, "KC-P30-EC240422-E00", info.Product)
	assert.Equal(t, "http://192.168.1.30", info.WebConfigURL())
}

func TestParseInfoInvalid(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]any
	}{
		{"no ID", map[string]any{"Serial": "1", "Firmware": "f", "Product": "KC-P30-EC240422-E00"}},
		{"wrong report", map[string]any{"ID": "2", "Serial": "1", "Firmware": "f", "Product": "KC-P30-EC240422-E00"}},
		{"no serial", map[string]any{"ID": "1", "Firmware": "f", "Product": "KC-P30-EC240422-E00"}},
		{"empty serial", identReport("", "f", "KC-P30-EC240422-E00")},
		{"no firmware", map[string]any{"ID": "1", "Serial": "1", "Product": "KC-P30-EC240422-E00"}},
		{"no product", map[string]any{"ID": "1", "Serial": "1", "Firmware": "f"}},
		{"short product", identReport("1", "f", "KC-P30-EC240422")},
		{"garbage ID", map[string]any{"ID": "one", "Serial": "1", "Firmware": "f", "Product": "KC-P30-EC240422-E00"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseInfo("192.168.1.30", tt.fields)
			assert.ErrorIs(t, err, ErrInvalidIdentification)
		})
	}
}

func TestClassifyProduct(t *testing.T) {
	tests := []struct {
		name         string
		product      string
		manufacturer string
		model        Model
		caps         Capabilities
	}{
		{
			name:         "P30 with meter and display",
			product:      "KC-P30-EC240422-E00",
			manufacturer: "KEBA",
			model:        ModelP30,
			caps: Capabilities{
				Meter: true, Authorization: true, DataLogger: true,
				Display: true, Output: true, PhaseSwitch: true,
			},
		},
		{
			name:         "P30 Deutschland-Edition",
			product:      "KC-P30-EC220112-000-DE",
			manufacturer: "KEBA",
			model:        ModelP30DE,
			caps: Capabilities{
				Authorization: true, DataLogger: true,
				Output: true, PhaseSwitch: true,
			},
		},
		{
			name:         "P20 e-series without meter",
			product:      "KC-P20-ES230001-000",
			manufacturer: "KEBA",
			model:        ModelP20,
			caps:         Capabilities{Output: true, PhaseSwitch: true},
		},
		{
			name:         "P20 b-series with meter",
			product:      "KC-P20-ES230010-000",
			manufacturer: "KEBA",
			model:        ModelP20,
			caps:         Capabilities{Meter: true, Output: true, PhaseSwitch: true},
		},
		{
			name:         "P20 c-series with meter and RFID",
			product:      "KC-P20-EC220120-00R",
			manufacturer: "KEBA",
			model:        ModelP20,
			caps: Capabilities{
				Meter: true, Authorization: true,
				Output: true, PhaseSwitch: true,
			},
		},
		{
			name:         "BMW Wallbox Connect",
			product:      "BMW-10-EC2405B2-E1R",
			manufacturer: "BMW",
			model:        ModelBMWConnect,
			caps:         Capabilities{Meter: true, Authorization: true, DataLogger: true},
		},
		{
			name:         "BMW Wallbox Plus",
			product:      "BMW-10-EC240522-E1R",
			manufacturer: "BMW",
			model:        ModelBMWPlus,
			caps:         Capabilities{Meter: true, Authorization: true, DataLogger: true},
		},
		{
			name:         "BMW Wallbox Plus ESS variant",
			product:      "BMW-10-ESS40022-E1R",
			manufacturer: "BMW",
			model:        ModelBMWPlus,
			caps:         Capabilities{Meter: true, Authorization: true, DataLogger: true},
		},
		{
			name:         "unknown vendor keeps base capabilities",
			product:      "ACME-X1-AB120000-000",
			manufacturer: "ACME",
			model:        ModelUnknown,
			caps:         Capabilities{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := ParseInfo("10.0.0.5", identReport("123", "fw", tt.product))
			require.NoError(t, err)

			assert.Equal(t, tt.manufacturer, info.Manufacturer)
			assert.Equal(t, tt.model, info.Model)
			assert.Equal(t, tt.caps, info.Capabilities)
		})
	}
}

func TestInfoEqualBySerial(t *testing.T) {
	a, err := ParseInfo("10.0.0.5", identReport("123", "fw", "KC-P30-EC240422-E00"))
	require.NoError(t, err)
	b, err := ParseInfo("10.0.0.9", identReport("123", "fw2", "KC-P30-EC240422-E00"))
	require.NoError(t, err)
	c, err := ParseInfo("10.0.0.5", identReport("456", "fw", "KC-P30-EC240422-E00"))
	require.NoError(t, err)

	assert.True(t, a.Equal(b), "same serial on a different host is the same device")
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(nil))
}
