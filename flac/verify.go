package flac

import (
	"bytes"
	"fmt"

	"github.com/drgolem/ringbuffer"
	"github.com/mewkiz/flacenc/frame"
	"github.com/mewkiz/flacenc/internal/bitio"
)

// VerifyMismatch records the first sample at which an Encoder's verify pass
// disagreed with the samples it was asked to encode (spec.md §3's verify
// pair, §7's verify_mismatch_in_audio_data).
type VerifyMismatch struct {
	AbsoluteSample uint64
	FrameNumber    uint64
	Channel        int
	SampleInFrame  int
	Expected       int32
	Got            int32
}

func (m *VerifyMismatch) Error() string {
	return fmt.Sprintf("flac: verify_mismatch_in_audio_data: frame %d channel %d sample %d (absolute %d): expected %d, got %d",
		m.FrameNumber, m.Channel, m.SampleInFrame, m.AbsoluteSample, m.Expected, m.Got)
}

// verifyRingBufferCapacity bounds one frame's worth of encoded bytes; a
// frame of blockSize up to 65535 at 32 bits per sample across 8 channels
// comfortably fits well under this.
const verifyRingBufferCapacity = 1 << 22

// verifier re-decodes every frame an Encoder emits and compares the result
// against the samples it was asked to encode. The ring buffer plays the
// role of the byte queue between the encoder's output and its private
// decoder (spec.md §5's "the encoder's verify decoder... shares no mutable
// state with the outer encoder beyond the inter-pipe byte queue"), even
// though both sides run synchronously here rather than on separate
// goroutines.
type verifier struct {
	rb  *ringbuffer.RingBuffer
	buf []byte
}

func newVerifier() *verifier {
	return &verifier{rb: ringbuffer.New(verifyRingBufferCapacity), buf: make([]byte, 4096)}
}

// check pushes frameBytes through the ring buffer, decodes exactly the one
// frame it contains, and compares every sample against want — the samples
// the encoder was asked to encode for this block, pre-decorrelation,
// matching what frame.Decode hands back after Channels.Reconstruct.
func (v *verifier) check(frameBytes []byte, bps uint8, sampleRate uint32, want [][]int32, absoluteSample uint64) error {
	v.rb.Reset()
	if _, err := v.rb.Write(frameBytes); err != nil {
		return fmt.Errorf("flac: verify: ring buffer write: %w", err)
	}

	var payload bytes.Buffer
	for {
		n, err := v.rb.Read(v.buf)
		if n > 0 {
			payload.Write(v.buf[:n])
		}
		if n == 0 || err != nil {
			break
		}
	}

	br := bitio.NewReader(bytes.NewReader(payload.Bytes()))
	f, err := frame.Decode(br, bps, sampleRate)
	if err != nil {
		return fmt.Errorf("flac: verify: re-decode failed: %w", err)
	}

	for ch, sf := range f.Subframes {
		got := sf.Samples
		wantCh := want[ch]
		for i := range wantCh {
			if got[i] != wantCh[i] {
				return &VerifyMismatch{
					AbsoluteSample: absoluteSample + uint64(i),
					FrameNumber:    f.Header.Num,
					Channel:        ch,
					SampleInFrame:  i,
					Expected:       wantCh[i],
					Got:            got[i],
				}
			}
		}
	}
	return nil
}
