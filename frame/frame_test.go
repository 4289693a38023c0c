package frame

import (
	"bytes"
	"testing"

	"github.com/mewkiz/flacenc/internal/bitio"
)

func makeTestSamples(n int, seed int32) []int32 {
	samples := make([]int32, n)
	v := seed
	for i := range samples {
		v = (v*1103515245 + 12345) % 30000
		if v < 0 {
			v += 30000
		}
		samples[i] = v - 15000
	}
	return samples
}

func TestHeaderEncodeDecodeRoundTrip(t *testing.T) {
	hdr := &Header{
		HasFixedBlockSize: true,
		BlockSize:         4096,
		SampleRate:        44100,
		Channels:          ChannelsLR,
		BitsPerSample:     16,
		Num:               7,
	}
	buf := &bytes.Buffer{}
	bw := bitio.NewWriter(buf)
	if err := hdr.Encode(bw); err != nil {
		t.Fatalf("Header.Encode: %v", err)
	}
	if _, err := bw.Align(); err != nil {
		t.Fatalf("Align: %v", err)
	}

	br := bitio.NewReader(bytes.NewReader(buf.Bytes()))
	got, err := DecodeHeader(br)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if got.BlockSize != hdr.BlockSize || got.SampleRate != hdr.SampleRate || got.Channels != hdr.Channels || got.BitsPerSample != hdr.BitsPerSample || got.Num != hdr.Num {
		t.Errorf("DecodeHeader() = %+v, want %+v", got, hdr)
	}
}

func TestFixedSubframeEncodeDecodeRoundTrip(t *testing.T) {
	samples := makeTestSamples(64, 1)
	sf := &Subframe{Pred: PredFixed, Order: 2, Samples: samples}

	buf := &bytes.Buffer{}
	bw := bitio.NewWriter(buf)
	if err := sf.Encode(bw, 16, false); err != nil {
		t.Fatalf("Subframe.Encode: %v", err)
	}
	if _, err := bw.Align(); err != nil {
		t.Fatalf("Align: %v", err)
	}

	br := bitio.NewReader(bytes.NewReader(buf.Bytes()))
	got, err := DecodeSubframe(br, len(samples), 16)
	if err != nil {
		t.Fatalf("DecodeSubframe: %v", err)
	}
	if len(got.Samples) != len(samples) {
		t.Fatalf("DecodeSubframe() sample count = %d, want %d", len(got.Samples), len(samples))
	}
	for i, v := range samples {
		if got.Samples[i] != v {
			t.Fatalf("DecodeSubframe() sample[%d] = %d, want %d", i, got.Samples[i], v)
		}
	}
}

func TestConstantSubframeEncodeDecodeRoundTrip(t *testing.T) {
	samples := make([]int32, 32)
	for i := range samples {
		samples[i] = -100
	}
	sf := &Subframe{Pred: PredConstant, Samples: samples}

	buf := &bytes.Buffer{}
	bw := bitio.NewWriter(buf)
	if err := sf.Encode(bw, 16, false); err != nil {
		t.Fatalf("Subframe.Encode: %v", err)
	}
	if _, err := bw.Align(); err != nil {
		t.Fatalf("Align: %v", err)
	}

	br := bitio.NewReader(bytes.NewReader(buf.Bytes()))
	got, err := DecodeSubframe(br, len(samples), 16)
	if err != nil {
		t.Fatalf("DecodeSubframe: %v", err)
	}
	for i, v := range samples {
		if got.Samples[i] != v {
			t.Fatalf("DecodeSubframe() sample[%d] = %d, want %d", i, got.Samples[i], v)
		}
	}
}

func TestWastedBitsRoundTrip(t *testing.T) {
	samples := make([]int32, 16)
	for i := range samples {
		samples[i] = int32(i%3) << 4 // every sample is a multiple of 16.
	}
	sf := &Subframe{Pred: PredVerbatim, WastedBits: 4, Samples: samples}

	buf := &bytes.Buffer{}
	bw := bitio.NewWriter(buf)
	if err := sf.Encode(bw, 16, false); err != nil {
		t.Fatalf("Subframe.Encode: %v", err)
	}
	if _, err := bw.Align(); err != nil {
		t.Fatalf("Align: %v", err)
	}

	br := bitio.NewReader(bytes.NewReader(buf.Bytes()))
	got, err := DecodeSubframe(br, len(samples), 16)
	if err != nil {
		t.Fatalf("DecodeSubframe: %v", err)
	}
	for i, v := range samples {
		if got.Samples[i] != v {
			t.Fatalf("DecodeSubframe() sample[%d] = %d, want %d", i, got.Samples[i], v)
		}
	}
}

func TestFrameEncodeDecodeRoundTrip(t *testing.T) {
	left := makeTestSamples(32, 3)
	right := makeTestSamples(32, 5)
	hdr := &Header{
		HasFixedBlockSize: true,
		BlockSize:         uint16(len(left)),
		SampleRate:        44100,
		Channels:          ChannelsLR,
		BitsPerSample:     16,
		Num:               0,
	}
	subframes := []*Subframe{
		{Pred: PredFixed, Order: 1, Samples: left},
		{Pred: PredFixed, Order: 1, Samples: right},
	}

	buf := &bytes.Buffer{}
	bw := bitio.NewWriter(buf)
	if err := Encode(bw, hdr, subframes, false); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	br := bitio.NewReader(bytes.NewReader(buf.Bytes()))
	f, err := Decode(br, 16, 44100)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	for i, v := range left {
		if f.Subframes[0].Samples[i] != v {
			t.Fatalf("left[%d] = %d, want %d", i, f.Subframes[0].Samples[i], v)
		}
	}
	for i, v := range right {
		if f.Subframes[1].Samples[i] != v {
			t.Fatalf("right[%d] = %d, want %d", i, f.Subframes[1].Samples[i], v)
		}
	}
}

func TestMidSideDecorrelateReconstructRoundTrip(t *testing.T) {
	left := makeTestSamples(16, 11)
	right := makeTestSamples(16, 13)
	a, b, err := ChannelsMidSide.Decorrelate(left, right)
	if err != nil {
		t.Fatalf("decorrelate: %v", err)
	}
	samples := [][]int32{append([]int32(nil), a...), append([]int32(nil), b...)}
	if err := ChannelsMidSide.Reconstruct(samples); err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	for i := range left {
		if samples[0][i] != left[i] || samples[1][i] != right[i] {
			t.Fatalf("sample %d: got (%d,%d), want (%d,%d)", i, samples[0][i], samples[1][i], left[i], right[i])
		}
	}
}
