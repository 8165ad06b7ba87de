package utils

import "testing"

func TestHex4(t *testing.T) {
	tests := []struct {
		in   uint16
		want string
	}{
		{0x0000, "0000"},
		{0xFFFF, "FFFF"},
		{0x0969, "0969"},
		{0xFD3D, "FD3D"},
	}
	for _, tt := range tests {
		if got := Hex4(tt.in); got != tt.want {
			t.Errorf("Hex4(0x%04x) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestBytesToHex(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{name: "nil", in: nil, want: ""},
		{name: "device info command", in: []byte{0x57, 0x02}, want: "5702"},
		{name: "sensor data command", in: []byte{0x57, 0x0F, 0x31}, want: "570F31"},
		{name: "high nibbles", in: []byte{0xAB, 0x80, 0x0a}, want: "AB800A"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BytesToHex(tt.in); got != tt.want {
				t.Errorf("BytesToHex(%v) = %q; want %q", tt.in, got, tt.want)
			}
		})
	}
}
