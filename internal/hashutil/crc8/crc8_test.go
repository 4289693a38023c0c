package crc8

import "testing"

func TestSum8Empty(t *testing.T) {
	h := NewATM()
	if got := h.(*digest).Sum8(); got != 0 {
		t.Errorf("Sum8() of empty input = %#02x, want 0", got)
	}
}

func TestReset(t *testing.T) {
	h := NewATM()
	h.Write([]byte{1, 2, 3})
	h.Reset()
	if h.(*digest).Sum8() != 0 {
		t.Errorf("Reset did not clear checksum")
	}
}

func TestTableDeterministic(t *testing.T) {
	h1 := NewATM()
	h2 := NewATM()
	data := []byte{0xAB, 0xCD, 0xEF, 0x01, 0x02}
	h1.Write(data)
	h2.Write(data[:2])
	h2.Write(data[2:])
	if h1.(*digest).Sum8() != h2.(*digest).Sum8() {
		t.Errorf("CRC-8 not consistent across split writes")
	}
}
