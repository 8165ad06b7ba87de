package utils

const hexDigits = "0123456789ABCDEF"

// Hex4 formats a 16-bit identifier (company ID, short UUID) as four upper-case hex digits.
func Hex4(v uint16) string {
	return string([]byte{
		hexDigits[(v>>12)&0xF],
		hexDigits[(v>>8)&0xF],
		hexDigits[(v>>4)&0xF],
		hexDigits[v&0xF],
	})
}

// BytesToHex renders a BLE frame as contiguous upper-case hex, e.g. "570F31".
func BytesToHex(b []byte) string {
	out := make([]byte, 0, len(b)*2)
	for _, x := range b {
		out = append(out, hexDigits[x>>4], hexDigits[x&0x0F])
	}
	return string(out)
}
