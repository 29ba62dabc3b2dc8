package transport

import "golang.org/x/text/encoding/charmap"

// EncodeCP437 encodes a payload as code page 437, the legacy 8-bit code
// page the station firmware expects. Runes without a CP437 representation
// are dropped, matching the lossy encoding of the reference clients.
func EncodeCP437(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if b, ok := charmap.CodePage437.EncodeRune(r); ok {
			out = append(out, b)
		}
	}
	return out
}

// DecodeCP437 decodes an inbound datagram. Report payloads are plain ASCII,
// but display echoes and firmware banners may carry high CP437 bytes.
func DecodeCP437(b []byte) string {
	out := make([]rune, len(b))
	for i, c := range b {
		out[i] = charmap.CodePage437.DecodeByte(c)
	}
	return string(out)
}
