package bitio

import (
	"bytes"
	"testing"
)

func TestWriteReadBitsRoundTrip(t *testing.T) {
	buf := &bytes.Buffer{}
	bw := NewWriter(buf)
	values := []struct {
		v uint64
		n uint8
	}{
		{0x3FFE, 14},
		{1, 1},
		{0, 1},
		{0xA, 4},
		{0x1FFFFFFFF, 33},
	}
	for _, tc := range values {
		if err := bw.WriteBits(tc.v, tc.n); err != nil {
			t.Fatalf("WriteBits(%#x, %d): %v", tc.v, tc.n, err)
		}
	}
	if _, err := bw.Align(); err != nil {
		t.Fatalf("Align: %v", err)
	}

	br := NewReader(bytes.NewReader(buf.Bytes()))
	for _, tc := range values {
		got, err := br.Read(uint(tc.n))
		if err != nil {
			t.Fatalf("Read(%d): %v", tc.n, err)
		}
		if got != tc.v {
			t.Errorf("Read(%d) = %#x, want %#x", tc.n, got, tc.v)
		}
	}
}

func TestUnaryRoundTrip(t *testing.T) {
	for _, x := range []uint64{0, 1, 7, 8, 9, 100} {
		buf := &bytes.Buffer{}
		bw := NewWriter(buf)
		if err := bw.WriteUnary(x); err != nil {
			t.Fatalf("WriteUnary(%d): %v", x, err)
		}
		if _, err := bw.Align(); err != nil {
			t.Fatalf("Align: %v", err)
		}
		br := NewReader(bytes.NewReader(buf.Bytes()))
		got, err := br.ReadUnary()
		if err != nil {
			t.Fatalf("ReadUnary after WriteUnary(%d): %v", x, err)
		}
		if got != x {
			t.Errorf("ReadUnary after WriteUnary(%d) = %d", x, got)
		}
	}
}

func TestUTF8IntRoundTrip(t *testing.T) {
	cases := []uint64{0, 1, 0x7F, 0x80, 0x7FF, 0x800, 0xFFFF, 0x10000, 1<<31 - 1, 1<<36 - 1}
	for _, x := range cases {
		buf := &bytes.Buffer{}
		bw := NewWriter(buf)
		if err := bw.WriteUTF8Int(x); err != nil {
			t.Fatalf("WriteUTF8Int(%d): %v", x, err)
		}
		if _, err := bw.Align(); err != nil {
			t.Fatalf("Align: %v", err)
		}
		br := NewReader(bytes.NewReader(buf.Bytes()))
		got, err := br.ReadUTF8Int64()
		if err != nil {
			t.Fatalf("ReadUTF8Int64 after WriteUTF8Int(%d): %v", x, err)
		}
		if got != x {
			t.Errorf("ReadUTF8Int64 after WriteUTF8Int(%d) = %d", x, got)
		}
	}
}

func TestCRC8RoundTrip(t *testing.T) {
	buf := &bytes.Buffer{}
	bw := NewWriter(buf)
	bw.ResetCRC8()
	bw.WriteBits(0x3FFE, 14)
	bw.WriteBits(0, 2)
	bw.Align()
	want := bw.CRC8()

	br := NewReader(bytes.NewReader(buf.Bytes()))
	br.ResetCRC8()
	br.Read(14)
	br.Read(2)
	br.Align()
	if got := br.CRC8(); got != want {
		t.Errorf("CRC8() = %#02x, want %#02x", got, want)
	}
}

func TestAlignRejectsNonZeroPadding(t *testing.T) {
	buf := &bytes.Buffer{}
	bw := NewWriter(buf)
	bw.WriteBits(0x7, 4)
	bw.WriteBits(0x1, 4) // non-zero padding in the low nibble
	bw.Align()

	br := NewReader(bytes.NewReader(buf.Bytes()))
	br.Read(4)
	if err := br.Align(); err == nil {
		t.Errorf("Align() over non-zero padding bits did not report an error")
	}
}
