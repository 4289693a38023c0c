package crc16

import "testing"

func TestSum16Empty(t *testing.T) {
	h := NewIBM()
	if got := h.(*digest).Sum16(); got != 0 {
		t.Errorf("Sum16() of empty input = %#04x, want 0", got)
	}
}

func TestSplitWriteConsistent(t *testing.T) {
	data := []byte{0xFF, 0xF8, 0x69, 0x18, 0x00, 0x00, 0x0A}
	h1 := NewIBM()
	h1.Write(data)

	h2 := NewIBM()
	h2.Write(data[:3])
	h2.Write(data[3:])

	if h1.(*digest).Sum16() != h2.(*digest).Sum16() {
		t.Errorf("CRC-16 not consistent across split writes")
	}
}
