package flac

import (
	"bytes"
	"testing"

	"github.com/mewkiz/flacenc/frame"
)

// encodeTestStream is a small helper shared by the sync-loss and MD5 tests:
// it encodes nFrames blocks of blockSize deterministic samples and returns
// the raw bytes, with the StreamInfo the encoder finished with written back
// over the placeholder STREAMINFO.
func encodeTestStream(t *testing.T, nFrames, blockSize int) []byte {
	t.Helper()
	si := newTestStreamInfo(2, 16, 44100)
	buf := &bytes.Buffer{}
	enc, err := NewEncoder(buf, si, WithBlockSize(blockSize))
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	for i := 0; i < nFrames; i++ {
		pcm := makeTestPCM(2, blockSize, int32(100+i))
		if err := enc.Write(pcm); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	data := buf.Bytes()
	patchStreamInfo(t, data, enc.StreamInfo)
	return data
}

// findNthFrameSync locates the byte offset of the n-th 0xFF/0x3E frame sync
// candidate after the metadata blocks, so a test can corrupt exactly the
// byte that triggers resync.
func findNthFrameSync(data []byte, n int) int {
	count := 0
	for i := 0; i+1 < len(data); i++ {
		if data[i] == 0xFF && data[i+1]>>2 == 0x3E {
			count++
			if count == n {
				return i
			}
		}
	}
	return -1
}

func TestDecoderRecoversFromLostSync(t *testing.T) {
	data := encodeTestStream(t, 3, 256)

	pos := findNthFrameSync(data, 2)
	if pos < 0 {
		t.Fatal("could not locate second frame's sync code")
	}
	corrupted := append([]byte(nil), data...)
	corrupted[pos+3] ^= 0xFF // mangle a header byte, not the sync itself

	var errsSeen []ErrorKind
	var frameCount int
	dec := NewDecoder(bytes.NewReader(corrupted))
	dec.CheckMD5 = false
	dec.OnError = func(kind ErrorKind, err error) {
		errsSeen = append(errsSeen, kind)
	}
	dec.OnWrite = func(hdr *frame.Header, samples [][]int32) Status {
		frameCount++
		return StatusContinue
	}
	if err := dec.Process(); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if frameCount == 0 {
		t.Fatal("decoder delivered no frames after corruption")
	}
	found := false
	for _, k := range errsSeen {
		if k == ErrLostSync {
			found = true
		}
	}
	if !found {
		t.Errorf("OnError never reported ErrLostSync; saw %v", errsSeen)
	}
}

func TestDecoderReportsMD5Mismatch(t *testing.T) {
	data := encodeTestStream(t, 2, 256)

	dec := NewDecoder(bytes.NewReader(data))
	if err := dec.searchForMetadata(); err != nil {
		t.Fatalf("searchForMetadata: %v", err)
	}
	if err := dec.readMetadata(); err != nil {
		t.Fatalf("readMetadata: %v", err)
	}
	dec.StreamInfo.MD5sum[0] ^= 0xFF

	err := dec.Process()
	if err == nil {
		t.Fatal("Process: expected md5 mismatch error, got nil")
	}
}

func TestSeekableDecoderSeeksToCorrectSample(t *testing.T) {
	const blockSize = 256
	const nFrames = 8
	data := encodeTestStream(t, nFrames, blockSize)

	sd, err := NewSeekableDecoder(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("NewSeekableDecoder: %v", err)
	}

	target := uint64(3*blockSize + 10)
	if err := sd.Seek(target); err != nil {
		t.Fatalf("Seek: %v", err)
	}

	var gotFrame *frame.Header
	var gotSamples [][]int32
	sd.OnWrite = func(hdr *frame.Header, samples [][]int32) Status {
		gotFrame = hdr
		gotSamples = samples
		return StatusAbort
	}
	if err := sd.Process(); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if gotFrame == nil {
		t.Fatal("Seek did not land on a decodable frame")
	}
	start := gotFrame.Num
	if gotFrame.HasFixedBlockSize {
		start = gotFrame.Num * uint64(gotFrame.BlockSize)
	}
	end := start + uint64(len(gotSamples[0]))
	if target < start || target >= end {
		t.Fatalf("seek landed on frame covering [%d,%d), want sample %d inside it", start, end, target)
	}
}
