package flac

import (
	"bytes"
	"testing"

	"github.com/mewkiz/flacenc/frame"
	"github.com/mewkiz/flacenc/meta"
)

func makeTestPCM(nch, n int, seed int32) [][]int32 {
	samples := make([][]int32, nch)
	v := seed
	for ch := range samples {
		samples[ch] = make([]int32, n)
		for i := range samples[ch] {
			v = (v*1103515245 + 12345) % 30000
			if v < 0 {
				v += 30000
			}
			samples[ch][i] = v - 15000
		}
	}
	return samples
}

// patchStreamInfo overwrites the placeholder STREAMINFO body that NewEncoder
// wrote at the start of data with si, the final values a non-seekable sink
// receives after Close.
func patchStreamInfo(t *testing.T, data []byte, si *meta.StreamInfo) {
	t.Helper()
	var body bytes.Buffer
	if err := si.Encode(&body); err != nil {
		t.Fatalf("StreamInfo.Encode: %v", err)
	}
	copy(data[len(Signature)+4:], body.Bytes())
}

func newTestStreamInfo(nch int, bps uint8, rate uint32) *meta.StreamInfo {
	return &meta.StreamInfo{
		SampleRate:    rate,
		ChannelCount:  uint8(nch),
		BitsPerSample: bps,
	}
}

// TestEncodeSilence covers S1: a block of all-zero samples must encode and
// decode back to exact silence.
func TestEncodeSilence(t *testing.T) {
	si := newTestStreamInfo(2, 16, 44100)
	buf := &bytes.Buffer{}
	enc, err := NewEncoder(buf, si, WithBlockSize(4096))
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}

	silence := [][]int32{make([]int32, 4096), make([]int32, 4096)}
	if err := enc.Write(silence); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var got [][]int32
	dec := NewDecoder(bytes.NewReader(buf.Bytes()))
	dec.OnWrite = func(hdr *frame.Header, samples [][]int32) Status {
		got = append(got, samples...)
		return StatusContinue
	}
	if err := dec.Process(); err != nil {
		t.Fatalf("Process: %v", err)
	}
	for ch, samples := range got {
		for i, s := range samples {
			if s != 0 {
				t.Fatalf("channel %d sample %d = %d, want 0", ch, i, s)
			}
		}
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		name string
		nch  int
		bps  uint8
	}{
		{"mono", 1, 16},
		{"stereo16", 2, 16},
		{"stereo24", 2, 24},
	} {
		t.Run(tc.name, func(t *testing.T) {
			si := newTestStreamInfo(tc.nch, tc.bps, 44100)
			buf := &bytes.Buffer{}
			enc, err := NewEncoder(buf, si, WithBlockSize(1024), WithMaxLPCOrder(8))
			if err != nil {
				t.Fatalf("NewEncoder: %v", err)
			}

			want := makeTestPCM(tc.nch, 2500, 7)
			blocks := make([][]int32, tc.nch)
			for ch := range blocks {
				blocks[ch] = want[ch]
			}
			if err := enc.Write(blocks); err != nil {
				t.Fatalf("Write: %v", err)
			}
			if err := enc.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}
			patchStreamInfo(t, buf.Bytes(), enc.StreamInfo)

			var got [][]int32
			dec := NewDecoder(bytes.NewReader(buf.Bytes()))
			dec.OnWrite = func(hdr *frame.Header, samples [][]int32) Status {
				if len(got) == 0 {
					got = make([][]int32, len(samples))
				}
				for ch := range samples {
					got[ch] = append(got[ch], samples[ch]...)
				}
				return StatusContinue
			}
			if err := dec.Process(); err != nil {
				t.Fatalf("Process: %v", err)
			}

			for ch := range want {
				if len(got[ch]) != len(want[ch]) {
					t.Fatalf("channel %d: got %d samples, want %d", ch, len(got[ch]), len(want[ch]))
				}
				for i := range want[ch] {
					if got[ch][i] != want[ch][i] {
						t.Fatalf("channel %d sample %d = %d, want %d", ch, i, got[ch][i], want[ch][i])
					}
				}
			}

			if dec.StreamInfo.SampleCount != uint64(len(want[0])) {
				t.Errorf("SampleCount = %d, want %d", dec.StreamInfo.SampleCount, len(want[0]))
			}
		})
	}
}

func TestEncoderStreamableSubsetRejectsNonStandardBlockSize(t *testing.T) {
	si := newTestStreamInfo(2, 16, 44100)
	_, err := NewEncoder(&bytes.Buffer{}, si, WithBlockSize(4000), WithStreamableSubset(true))
	if err == nil {
		t.Fatal("NewEncoder: expected not_streamable error for block size 4000, got nil")
	}
}

func TestEncoderInvalidChannels(t *testing.T) {
	si := newTestStreamInfo(9, 16, 44100)
	_, err := NewEncoder(&bytes.Buffer{}, si)
	if err == nil {
		t.Fatal("NewEncoder: expected invalid_channels error, got nil")
	}
}

func TestEncoderVerifyCatchesNothingOnValidStream(t *testing.T) {
	si := newTestStreamInfo(2, 16, 44100)
	buf := &bytes.Buffer{}
	enc, err := NewEncoder(buf, si, WithBlockSize(512), WithVerify(true))
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	pcm := makeTestPCM(2, 512, 3)
	if err := enc.Write(pcm); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
