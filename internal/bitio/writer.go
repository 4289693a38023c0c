package bitio

import (
	"hash"
	"io"

	"github.com/icza/bitio"

	gobits "github.com/mewkiz/flacenc/internal/bits"
	"github.com/mewkiz/flacenc/internal/hashutil/crc16"
	"github.com/mewkiz/flacenc/internal/hashutil/crc8"
)

// Writer writes arbitrary bit-width fields to an underlying byte stream,
// optionally feeding every byte written into a running CRC-8 and/or CRC-16
// checksum.
type Writer struct {
	bw    *bitio.Writer
	w     io.Writer
	crc8  hash.Hash
	crc16 hash.Hash
}

// NewWriter returns a Writer writing to w.
func NewWriter(w io.Writer) *Writer {
	bw := &Writer{w: w}
	bw.bw = bitio.NewWriter(&multiWriter{bw: bw})
	return bw
}

// multiWriter forwards Write calls to bw.w while feeding every byte written
// into whichever CRC hashes are currently active.
type multiWriter struct {
	bw *Writer
}

func (m *multiWriter) Write(p []byte) (n int, err error) {
	if m.bw.crc8 != nil {
		m.bw.crc8.Write(p)
	}
	if m.bw.crc16 != nil {
		m.bw.crc16.Write(p)
	}
	return m.bw.w.Write(p)
}

// ResetCRC8 starts (or restarts) CRC-8 accumulation.
func (bw *Writer) ResetCRC8() {
	bw.crc8 = crc8.NewATM()
}

// CRC8 returns the accumulated CRC-8 checksum since the last ResetCRC8.
func (bw *Writer) CRC8() byte {
	if bw.crc8 == nil {
		return 0
	}
	return crc8.Sum8(bw.crc8)
}

// ResetCRC16 starts (or restarts) CRC-16 accumulation.
func (bw *Writer) ResetCRC16() {
	bw.crc16 = crc16.NewIBM()
}

// CRC16 returns the accumulated CRC-16 checksum since the last ResetCRC16.
func (bw *Writer) CRC16() uint16 {
	if bw.crc16 == nil {
		return 0
	}
	return crc16.Sum16(bw.crc16)
}

// StopCRC8 disables CRC-8 accumulation.
func (bw *Writer) StopCRC8() {
	bw.crc8 = nil
}

// StopCRC16 disables CRC-16 accumulation.
func (bw *Writer) StopCRC16() {
	bw.crc16 = nil
}

// WriteBits writes the n least significant bits of value, most significant
// bit first.
func (bw *Writer) WriteBits(value uint64, n uint8) error {
	return bw.bw.WriteBits(value, n)
}

// WriteBool writes a single bit.
func (bw *Writer) WriteBool(b bool) error {
	return bw.bw.WriteBool(b)
}

// WriteInt writes the n-bit two's complement representation of a signed
// value.
func (bw *Writer) WriteInt(value int64, n uint8) error {
	mask := uint64(1)<<n - 1
	return bw.WriteBits(uint64(value)&mask, n)
}

// WriteUnary encodes x as a unary coded integer: x zero bits followed by a
// single one bit.
func (bw *Writer) WriteUnary(x uint64) error {
	return gobits.WriteUnary(bw.bw, x)
}

// WriteUTF8Int encodes x using FLAC's "UTF-8"-like variable-length integer
// coding (spec.md §4.1/§4.2).
func (bw *Writer) WriteUTF8Int(x uint64) error {
	switch {
	case x < 0x80:
		return bw.bw.WriteByte(byte(x))
	case x < 0x800:
		if err := bw.bw.WriteByte(0xC0 | byte(x>>6)); err != nil {
			return err
		}
		return bw.writeUTF8Cont(x, 1)
	case x < 0x10000:
		if err := bw.bw.WriteByte(0xE0 | byte(x>>12)); err != nil {
			return err
		}
		return bw.writeUTF8Cont(x, 2)
	case x < 0x200000:
		if err := bw.bw.WriteByte(0xF0 | byte(x>>18)); err != nil {
			return err
		}
		return bw.writeUTF8Cont(x, 3)
	case x < 0x4000000:
		if err := bw.bw.WriteByte(0xF8 | byte(x>>24)); err != nil {
			return err
		}
		return bw.writeUTF8Cont(x, 4)
	case x < 0x80000000:
		if err := bw.bw.WriteByte(0xFC | byte(x>>30)); err != nil {
			return err
		}
		return bw.writeUTF8Cont(x, 5)
	default:
		if err := bw.bw.WriteByte(0xFE); err != nil {
			return err
		}
		return bw.writeUTF8Cont(x, 6)
	}
}

func (bw *Writer) writeUTF8Cont(x uint64, nbytes int) error {
	for i := nbytes - 1; i >= 0; i-- {
		b := byte(0x80) | byte((x>>(uint(i)*6))&0x3F)
		if err := bw.bw.WriteByte(b); err != nil {
			return err
		}
	}
	return nil
}

// Align pads with zero bits up to the next byte boundary and flushes it to
// the underlying writer.
func (bw *Writer) Align() (int64, error) {
	return bw.bw.Align()
}

// Close flushes any partial byte and closes the underlying bitio.Writer.
func (bw *Writer) Close() error {
	return bw.bw.Close()
}
