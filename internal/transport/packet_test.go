package transport

import "testing"

func TestEncode(t *testing.T) {
	cases := []struct {
		name     string
		id       uint16
		value    uint8
		priority bool
		want     [PacketSize]byte
	}{
		{"horn on priority", 8, 1, true, [5]byte{0xE0, 0x00, 0x08, 0x01, 0xE9}},
		{"horn on normal", 8, 1, false, [5]byte{0x60, 0x00, 0x08, 0x01, 0x69}},
		{"throttle notch 8", 16, 8, true, [5]byte{0xE0, 0x00, 0x10, 0x08, 0xF8}},
		{"reverser forward", 14, 255, true, [5]byte{0xE0, 0x00, 0x0E, 0xFF, 0x11}},
		{"wide function id", 0x0102, 0, false, [5]byte{0x60, 0x01, 0x02, 0x00, 0x63}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Encode(c.id, c.value, c.priority)
			if got != c.want {
				t.Errorf("Encode(%d, %d, %v) = %x, want %x", c.id, c.value, c.priority, got, c.want)
			}
		})
	}
}

func TestEncodeChecksum(t *testing.T) {
	for id := uint16(0); id < 300; id += 7 {
		for _, v := range []uint8{0, 1, 127, 254, 255} {
			p := Encode(id, v, true)
			if p[0]^p[1]^p[2]^p[3]^p[4] != 0 {
				t.Fatalf("checksum does not cancel for id=%d value=%d: %x", id, v, p)
			}
		}
	}
}
