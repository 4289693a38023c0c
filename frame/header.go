package frame

import (
	"fmt"

	"github.com/mewkiz/flacenc/internal/bitio"
)

// SyncCode is the 14-bit frame sync code, the first bits of every frame
// header: 11111111111110.
const SyncCode = 0x3FFE

// Header holds the per-frame metadata that precedes the frame's subframes:
// blocking strategy, block size, sample rate, channel assignment, sample
// size and frame/sample number.
//
// ref: https://xiph.org/flac/format.html#frame_header
type Header struct {
	// HasFixedBlockSize reports whether the stream uses a fixed block size;
	// when true Num is a frame number, otherwise it is the first sample
	// number of the frame.
	HasFixedBlockSize bool
	// BlockSize is the number of inter-channel samples in each subframe of
	// this frame.
	BlockSize uint16
	// SampleRate is the sample rate in Hz; 0 means "use STREAMINFO".
	SampleRate uint32
	// Channels specifies channel count, order and any inter-channel
	// decorrelation in effect for this frame.
	Channels Channels
	// BitsPerSample is the sample size in bits; 0 means "use STREAMINFO".
	BitsPerSample uint8
	// Num is the frame number (fixed block size) or first sample number
	// (variable block size).
	Num uint64
}

// DecodeHeader reads and parses a frame header from br, verifying its CRC-8.
// br must not have an active CRC-8 accumulation in progress; DecodeHeader
// manages it internally.
func DecodeHeader(br *bitio.Reader) (*Header, error) {
	br.ResetCRC8()
	fields, err := br.ReadFields(14, 1, 1, 4, 4, 4, 3, 1)
	if err != nil {
		return nil, err
	}

	syncCode := fields[0]
	if syncCode != SyncCode {
		return nil, fmt.Errorf("frame.Decode: invalid sync code; expected %014b, got %014b", SyncCode, syncCode)
	}
	if fields[1] != 0 {
		return nil, fmt.Errorf("frame.Decode: reserved bit must be 0")
	}

	hdr := &Header{
		HasFixedBlockSize: fields[2] == 0,
	}

	n := fields[5]
	if n > 10 {
		return nil, fmt.Errorf("frame.Decode: invalid channel assignment; reserved bit pattern %04b", n)
	}
	hdr.Channels = Channels(n)

	switch fields[6] {
	case 0:
		hdr.BitsPerSample = 0
	case 1:
		hdr.BitsPerSample = 8
	case 2:
		hdr.BitsPerSample = 12
	case 4:
		hdr.BitsPerSample = 16
	case 5:
		hdr.BitsPerSample = 20
	case 6:
		hdr.BitsPerSample = 24
	default:
		return nil, fmt.Errorf("frame.Decode: invalid sample size; reserved bit pattern %03b", fields[6])
	}
	if fields[7] != 0 {
		return nil, fmt.Errorf("frame.Decode: reserved bit must be 0")
	}

	if hdr.HasFixedBlockSize {
		num, err := br.ReadUTF8Int32()
		if err != nil {
			return nil, err
		}
		hdr.Num = uint64(num)
	} else {
		num, err := br.ReadUTF8Int64()
		if err != nil {
			return nil, err
		}
		hdr.Num = num
	}

	var blockSizeSuffixBits uint
	switch n := fields[3]; {
	case n == 0:
		return nil, fmt.Errorf("frame.Decode: invalid block size; reserved bit pattern")
	case n == 1:
		hdr.BlockSize = 192
	case n >= 2 && n <= 5:
		hdr.BlockSize = 576 << (n - 2)
	case n == 6:
		blockSizeSuffixBits = 8
	case n == 7:
		blockSizeSuffixBits = 16
	case n >= 8 && n <= 15:
		hdr.BlockSize = 256 << (n - 8)
	}

	var sampleRateSuffixBits uint
	var sampleRateSuffixUnit uint32
	switch n := fields[4]; n {
	case 0:
		hdr.SampleRate = 0
	case 1:
		hdr.SampleRate = 88200
	case 2:
		hdr.SampleRate = 176400
	case 3:
		hdr.SampleRate = 192000
	case 4:
		hdr.SampleRate = 8000
	case 5:
		hdr.SampleRate = 16000
	case 6:
		hdr.SampleRate = 22050
	case 7:
		hdr.SampleRate = 24000
	case 8:
		hdr.SampleRate = 32000
	case 9:
		hdr.SampleRate = 44100
	case 10:
		hdr.SampleRate = 48000
	case 11:
		hdr.SampleRate = 96000
	case 12:
		sampleRateSuffixBits, sampleRateSuffixUnit = 8, 1000
	case 13:
		sampleRateSuffixBits, sampleRateSuffixUnit = 16, 1
	case 14:
		sampleRateSuffixBits, sampleRateSuffixUnit = 16, 10
	case 15:
		return nil, fmt.Errorf("frame.Decode: invalid sample rate; reserved bit pattern %04b", n)
	}

	if blockSizeSuffixBits > 0 {
		x, err := br.Read(blockSizeSuffixBits)
		if err != nil {
			return nil, err
		}
		hdr.BlockSize = uint16(x) + 1
	}
	if sampleRateSuffixBits > 0 {
		x, err := br.Read(sampleRateSuffixBits)
		if err != nil {
			return nil, err
		}
		hdr.SampleRate = uint32(x) * sampleRateSuffixUnit
	}

	if err := br.Align(); err != nil {
		return nil, err
	}
	got := br.CRC8()
	br.StopCRC8()
	want, err := br.Read(8)
	if err != nil {
		return nil, err
	}
	if byte(want) != got {
		return nil, fmt.Errorf("frame.Decode: CRC-8 checksum mismatch; expected %#02x, got %#02x", want, got)
	}

	return hdr, nil
}

// Encode writes the frame header to bw, including its trailing CRC-8.
func (hdr *Header) Encode(bw *bitio.Writer) error {
	bw.ResetCRC8()
	if err := bw.WriteBits(SyncCode, 14); err != nil {
		return err
	}
	if err := bw.WriteBits(0, 1); err != nil {
		return err
	}
	if err := bw.WriteBool(!hdr.HasFixedBlockSize); err != nil {
		return err
	}

	var blockSizeBits uint64
	var blockSizeSuffixBits uint8
	switch {
	case hdr.BlockSize == 192:
		blockSizeBits = 0x1
	case hdr.BlockSize%576 == 0 && hdr.BlockSize/576 >= 1 && hdr.BlockSize/576 <= 8 && isPow2(hdr.BlockSize/576):
		blockSizeBits = 0x2 + log2(hdr.BlockSize/576)
	case hdr.BlockSize%256 == 0 && hdr.BlockSize/256 >= 1 && hdr.BlockSize/256 <= 128 && isPow2(hdr.BlockSize/256):
		blockSizeBits = 0x8 + log2(hdr.BlockSize/256)
	case hdr.BlockSize <= 256:
		blockSizeBits, blockSizeSuffixBits = 0x6, 8
	default:
		blockSizeBits, blockSizeSuffixBits = 0x7, 16
	}
	if err := bw.WriteBits(blockSizeBits, 4); err != nil {
		return err
	}

	var sampleRateBits uint64
	var sampleRateSuffixBits uint8
	var sampleRateSuffixValue uint64
	switch hdr.SampleRate {
	case 0:
		sampleRateBits = 0x0
	case 88200:
		sampleRateBits = 0x1
	case 176400:
		sampleRateBits = 0x2
	case 192000:
		sampleRateBits = 0x3
	case 8000:
		sampleRateBits = 0x4
	case 16000:
		sampleRateBits = 0x5
	case 22050:
		sampleRateBits = 0x6
	case 24000:
		sampleRateBits = 0x7
	case 32000:
		sampleRateBits = 0x8
	case 44100:
		sampleRateBits = 0x9
	case 48000:
		sampleRateBits = 0xA
	case 96000:
		sampleRateBits = 0xB
	default:
		switch {
		case hdr.SampleRate <= 255000 && hdr.SampleRate%1000 == 0:
			sampleRateBits, sampleRateSuffixBits, sampleRateSuffixValue = 0xC, 8, uint64(hdr.SampleRate/1000)
		case hdr.SampleRate <= 65535:
			sampleRateBits, sampleRateSuffixBits, sampleRateSuffixValue = 0xD, 16, uint64(hdr.SampleRate)
		case hdr.SampleRate <= 655350 && hdr.SampleRate%10 == 0:
			sampleRateBits, sampleRateSuffixBits, sampleRateSuffixValue = 0xE, 16, uint64(hdr.SampleRate/10)
		default:
			return fmt.Errorf("frame.Header.Encode: unable to encode sample rate %d", hdr.SampleRate)
		}
	}
	if err := bw.WriteBits(sampleRateBits, 4); err != nil {
		return err
	}

	var channelBits uint64
	switch hdr.Channels {
	case ChannelsLeftSide:
		channelBits = 0x8
	case ChannelsSideRight:
		channelBits = 0x9
	case ChannelsMidSide:
		channelBits = 0xA
	default:
		channelBits = uint64(hdr.Channels.Count() - 1)
	}
	if err := bw.WriteBits(channelBits, 4); err != nil {
		return err
	}

	var bpsBits uint64
	switch hdr.BitsPerSample {
	case 0:
		bpsBits = 0x0
	case 8:
		bpsBits = 0x1
	case 12:
		bpsBits = 0x2
	case 16:
		bpsBits = 0x4
	case 20:
		bpsBits = 0x5
	case 24:
		bpsBits = 0x6
	default:
		return fmt.Errorf("frame.Header.Encode: unsupported sample size %d", hdr.BitsPerSample)
	}
	if err := bw.WriteBits(bpsBits, 3); err != nil {
		return err
	}
	if err := bw.WriteBits(0, 1); err != nil {
		return err
	}

	if hdr.HasFixedBlockSize {
		if err := bw.WriteUTF8Int(hdr.Num); err != nil {
			return err
		}
	} else {
		if err := bw.WriteUTF8Int(hdr.Num); err != nil {
			return err
		}
	}

	if blockSizeSuffixBits > 0 {
		if err := bw.WriteBits(uint64(hdr.BlockSize-1), blockSizeSuffixBits); err != nil {
			return err
		}
	}
	if sampleRateSuffixBits > 0 {
		if err := bw.WriteBits(sampleRateSuffixValue, sampleRateSuffixBits); err != nil {
			return err
		}
	}

	if _, err := bw.Align(); err != nil {
		return err
	}
	if err := bw.WriteBits(uint64(bw.CRC8()), 8); err != nil {
		return err
	}
	bw.StopCRC8()
	return nil
}

func isPow2(x uint16) bool {
	return x != 0 && x&(x-1) == 0
}

func log2(x uint16) uint64 {
	var n uint64
	for x > 1 {
		x >>= 1
		n++
	}
	return n
}
