// Package frame implements FLAC's per-frame bitstream layer: frame
// headers, subframes (constant/verbatim/fixed/LPC prediction with
// partitioned Rice-coded residuals), and the stereo decorrelation
// transforms between them.
package frame

import (
	"fmt"

	"github.com/mewkiz/flacenc/internal/bitio"
)

// Frame is one audio frame: a header plus one subframe per channel.
//
// ref: https://xiph.org/flac/format.html#frame
type Frame struct {
	Header    *Header
	Subframes []*Subframe
}

// Decode reads and decodes one frame from br, which must be positioned at
// the frame's sync code. defaultBPS and defaultSampleRate supply the
// values to use when the frame header defers to STREAMINFO (encoded as 0
// in the header).
func Decode(br *bitio.Reader, defaultBPS uint8, defaultSampleRate uint32) (*Frame, error) {
	br.ResetCRC16()
	hdr, err := DecodeHeader(br)
	if err != nil {
		return nil, err
	}
	bps := hdr.BitsPerSample
	if bps == 0 {
		bps = defaultBPS
	}
	if hdr.SampleRate == 0 {
		hdr.SampleRate = defaultSampleRate
	}

	nch := hdr.Channels.Count()
	subframes := make([]*Subframe, nch)
	for ch := 0; ch < nch; ch++ {
		chBPS := hdr.Channels.bitsPerSample(ch, bps)
		sf, err := DecodeSubframe(br, int(hdr.BlockSize), chBPS)
		if err != nil {
			return nil, fmt.Errorf("frame.Decode: channel %d: %w", ch, err)
		}
		subframes[ch] = sf
	}

	if err := br.Align(); err != nil {
		return nil, err
	}

	samples := make([][]int32, nch)
	for i, sf := range subframes {
		samples[i] = sf.Samples
	}
	if err := hdr.Channels.Reconstruct(samples); err != nil {
		return nil, err
	}

	got := br.CRC16()
	br.StopCRC16()
	want, err := br.Read(16)
	if err != nil {
		return nil, err
	}
	if uint16(want) != got {
		return nil, fmt.Errorf("frame.Decode: CRC-16 checksum mismatch; expected %#04x, got %#04x", want, got)
	}

	return &Frame{Header: hdr, Subframes: subframes}, nil
}

// Encode writes a frame with the given header and per-channel samples
// (already split into the storage-order channels hdr.Channels implies,
// i.e. after decorrelation has been applied by the caller) to bw.
func Encode(bw *bitio.Writer, hdr *Header, subframes []*Subframe, disableEscapeCoding bool) error {
	bw.ResetCRC16()
	if err := hdr.Encode(bw); err != nil {
		return err
	}

	bps := hdr.BitsPerSample
	for ch, sf := range subframes {
		chBPS := hdr.Channels.bitsPerSample(ch, bps)
		if err := sf.Encode(bw, chBPS, disableEscapeCoding); err != nil {
			return fmt.Errorf("frame.Encode: channel %d: %w", ch, err)
		}
	}

	if _, err := bw.Align(); err != nil {
		return err
	}

	if err := bw.WriteBits(uint64(bw.CRC16()), 16); err != nil {
		return err
	}
	bw.StopCRC16()
	return nil
}
