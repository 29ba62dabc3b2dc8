package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeCP437(t *testing.T) {
	// ASCII passes through.
	assert.Equal(t, []byte("report 2"), EncodeCP437("report 2"))

	// CP437 high characters encode to their legacy byte.
	assert.Equal(t, []byte{0x84}, EncodeCP437("ä"))

	// Runes outside the code page are dropped, not replaced.
	assert.Equal(t, []byte("Charge done"), EncodeCP437("Charge done\U0001F50C€"))
}

func TestDecodeCP437(t *testing.T) {
	assert.Equal(t, "TCH-OK :done", DecodeCP437([]byte("TCH-OK :done")))
	assert.Equal(t, "ä", DecodeCP437([]byte{0x84}))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload := `{"ID": "2", "State": 3}`
	assert.Equal(t, payload, DecodeCP437(EncodeCP437(payload)))
}
