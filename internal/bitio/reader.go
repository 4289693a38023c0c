// Package bitio wraps github.com/mewkiz/pkg/bit and github.com/icza/bitio
// with the extra machinery the FLAC bitstream needs on top of plain
// arbitrary-width field access: running CRC-8/CRC-16 taps, unary codes,
// the "UTF-8"-style variable-length integers frame headers use for sample
// and frame numbers, and byte-alignment bookkeeping.
package bitio

import (
	"hash"
	"io"

	"github.com/mewkiz/pkg/bit"

	"github.com/mewkiz/flacenc/internal/bits"
	"github.com/mewkiz/flacenc/internal/hashutil/crc8"
	"github.com/mewkiz/flacenc/internal/hashutil/crc16"
)

// Reader reads arbitrary bit-width fields from an underlying byte stream,
// optionally feeding every byte pulled off the stream into a running CRC-8
// and/or CRC-16 checksum.
type Reader struct {
	br    *bit.Reader
	r     io.Reader
	crc8  hash.Hash
	crc16 hash.Hash
	nbits uint64 // total bits consumed, tracked for Align
}

// NewReader returns a Reader reading from r. No checksum is accumulated
// until ResetCRC8 or ResetCRC16 is called.
func NewReader(r io.Reader) *Reader {
	br := &Reader{r: r}
	br.br = bit.NewReader(&teeReader{br: br})
	return br
}

// teeReader forwards Read calls to br.r while feeding every byte read into
// whichever CRC hashes are currently active. It exists so CRC accumulation
// can be turned on and off mid-stream without recreating the underlying
// bit.Reader (which would discard any unread partial byte).
type teeReader struct {
	br *Reader
}

func (t *teeReader) Read(p []byte) (n int, err error) {
	n, err = t.br.r.Read(p)
	if n > 0 {
		if t.br.crc8 != nil {
			t.br.crc8.Write(p[:n])
		}
		if t.br.crc16 != nil {
			t.br.crc16.Write(p[:n])
		}
	}
	return n, err
}

// ResetCRC8 starts (or restarts) CRC-8 accumulation from this point in the
// stream, used at the start of a frame header.
func (br *Reader) ResetCRC8() {
	br.crc8 = crc8.NewATM()
}

// CRC8 returns the accumulated CRC-8 checksum since the last ResetCRC8,
// provided the reader is currently byte-aligned.
func (br *Reader) CRC8() byte {
	if br.crc8 == nil {
		return 0
	}
	return crc8.Sum8(br.crc8)
}

// ResetCRC16 starts (or restarts) CRC-16 accumulation from this point in
// the stream, used at the start of a frame.
func (br *Reader) ResetCRC16() {
	br.crc16 = crc16.NewIBM()
}

// CRC16 returns the accumulated CRC-16 checksum since the last ResetCRC16.
func (br *Reader) CRC16() uint16 {
	if br.crc16 == nil {
		return 0
	}
	return crc16.Sum16(br.crc16)
}

// StopCRC8 disables CRC-8 accumulation; the accumulated value is dropped,
// so CRC8 returns 0 until the next ResetCRC8.
func (br *Reader) StopCRC8() {
	br.crc8 = nil
}

// StopCRC16 disables CRC-16 accumulation.
func (br *Reader) StopCRC16() {
	br.crc16 = nil
}

// Read reads an n-bit (1 <= n <= 64) unsigned field, most significant bit
// first.
func (br *Reader) Read(n uint) (uint64, error) {
	x, err := br.br.Read(n)
	if err == nil {
		br.nbits += uint64(n)
	}
	return x, err
}

// ReadFields reads len(ns) consecutive unsigned fields of the given bit
// widths, most significant bit first.
func (br *Reader) ReadFields(ns ...int) ([]uint64, error) {
	fields, err := br.br.ReadFields(ns...)
	if err == nil {
		for _, n := range ns {
			br.nbits += uint64(n)
		}
	}
	return fields, err
}

// ReadInt reads an n-bit field and interprets it as two's complement
// signed.
func (br *Reader) ReadInt(n uint) (int64, error) {
	x, err := br.Read(n)
	if err != nil {
		return 0, err
	}
	return bits.IntN(x, n), nil
}

// ReadUnary decodes a unary coded value: the number of 0 bits preceding the
// first 1 bit.
func (br *Reader) ReadUnary() (uint64, error) {
	var x uint64
	for {
		b, err := br.Read(1)
		if err != nil {
			return 0, err
		}
		if b == 1 {
			return x, nil
		}
		x++
	}
}

// ReadUTF8Int32 decodes a FLAC "UTF-8"-like variable-length integer, used
// to encode frame numbers (up to 31 bits, 1-6 bytes of output).
func (br *Reader) ReadUTF8Int32() (uint32, error) {
	v, err := br.readUTF8(31)
	return uint32(v), err
}

// ReadUTF8Int64 decodes a FLAC "UTF-8"-like variable-length integer, used
// to encode sample numbers (up to 36 bits, 1-7 bytes of output).
func (br *Reader) ReadUTF8Int64() (uint64, error) {
	return br.readUTF8(36)
}

// readUTF8 implements the bit layout described in spec.md §4.1: the number
// of leading 1 bits in the first byte gives the total byte count (a lone
// 0-prefixed byte means one byte total), the remaining bits of the first
// byte hold the high-order payload bits, and each continuation byte
// contributes six payload bits behind a "10" prefix.
func (br *Reader) readUTF8(maxBits uint) (uint64, error) {
	first, err := br.Read(8)
	if err != nil {
		return 0, err
	}
	var n int
	var value uint64
	switch {
	case first&0x80 == 0x00:
		n = 0
		value = first & 0x7F
	case first&0xE0 == 0xC0:
		n = 1
		value = first & 0x1F
	case first&0xF0 == 0xE0:
		n = 2
		value = first & 0x0F
	case first&0xF8 == 0xF0:
		n = 3
		value = first & 0x07
	case first&0xFC == 0xF8:
		n = 4
		value = first & 0x03
	case first&0xFE == 0xFC:
		n = 5
		value = first & 0x01
	case first == 0xFE:
		n = 6
		value = 0
	default:
		return 0, errInvalidUTF8Lead
	}
	for i := 0; i < n; i++ {
		cont, err := br.Read(8)
		if err != nil {
			return 0, err
		}
		if cont&0xC0 != 0x80 {
			return 0, errInvalidUTF8Continuation
		}
		value = value<<6 | (cont & 0x3F)
	}
	return value, nil
}

// BytesConsumed returns the number of whole bytes pulled off the underlying
// stream so far. Callers that need to reconcile how far a bitio.Reader
// advanced within a separately buffered byte stream (frame sync scanning)
// use this instead of tracking reads themselves.
func (br *Reader) BytesConsumed() int64 {
	return int64((br.nbits + 7) / 8)
}

// Aligned reports whether the reader currently sits on a byte boundary.
func (br *Reader) Aligned() bool {
	return br.nbits%8 == 0
}

// Align discards bits up to the next byte boundary, asserting they are all
// zero padding (spec.md §3's zero-padding invariant for frame footers).
func (br *Reader) Align() error {
	pad := (8 - br.nbits%8) % 8
	if pad == 0 {
		return nil
	}
	v, err := br.Read(uint(pad))
	if err != nil {
		return err
	}
	if v != 0 {
		return errNonZeroPadding
	}
	return nil
}

// Seek seeks the underlying stream, provided it implements io.Seeker. The
// reader must be byte aligned before seeking; any buffered bit.Reader state
// from a prior partial byte is discarded.
func (br *Reader) Seek(offset int64, whence int) (int64, error) {
	s, ok := br.r.(io.Seeker)
	if !ok {
		return 0, errNotSeekable
	}
	pos, err := s.Seek(offset, whence)
	if err != nil {
		return 0, err
	}
	br.br = bit.NewReader(&teeReader{br: br})
	br.nbits = 0
	return pos, nil
}
