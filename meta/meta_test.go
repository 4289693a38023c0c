package meta

import (
	"bytes"
	"testing"
)

func TestBlockHeaderEncodeDecodeRoundTrip(t *testing.T) {
	h := &BlockHeader{IsLast: true, BlockType: TypeStreamInfo, Length: 34}
	buf := &bytes.Buffer{}
	if err := h.Encode(buf); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := NewBlockHeader(buf)
	if err != nil {
		t.Fatalf("NewBlockHeader: %v", err)
	}
	if *got != *h {
		t.Errorf("NewBlockHeader() = %+v, want %+v", got, h)
	}
}

func TestBlockHeaderRejectsReservedType(t *testing.T) {
	// Block type 10 (reserved) in the high 7 bits, zero length.
	raw := []byte{0x0A, 0x00, 0x00, 0x00}
	if _, err := NewBlockHeader(bytes.NewReader(raw)); err == nil {
		t.Errorf("NewBlockHeader() error = nil, want error for reserved block type")
	}
}

func TestStreamInfoEncodeDecodeRoundTrip(t *testing.T) {
	si := &StreamInfo{
		MinBlockSize:  4096,
		MaxBlockSize:  4096,
		MinFrameSize:  1000,
		MaxFrameSize:  5000,
		SampleRate:    44100,
		ChannelCount:  2,
		BitsPerSample: 16,
		SampleCount:   123456789,
	}
	for i := range si.MD5sum {
		si.MD5sum[i] = byte(i)
	}

	buf := &bytes.Buffer{}
	if err := si.Encode(buf); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := NewStreamInfo(buf)
	if err != nil {
		t.Fatalf("NewStreamInfo: %v", err)
	}
	if *got != *si {
		t.Errorf("NewStreamInfo() = %+v, want %+v", got, si)
	}
}

func TestStreamInfoRejectsZeroSampleRate(t *testing.T) {
	// Encode doesn't reject a zero sample rate (only NewStreamInfo does,
	// matching the teacher's decode-side-only validation).
	si := &StreamInfo{
		MinBlockSize: 16, MaxBlockSize: 16,
		SampleRate: 0, ChannelCount: 1, BitsPerSample: 16,
	}
	buf := &bytes.Buffer{}
	if err := si.Encode(buf); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := NewStreamInfo(buf); err == nil {
		t.Errorf("NewStreamInfo() error = nil, want error for zero sample rate")
	}
}

func TestBlockCopySkipRoundTrip(t *testing.T) {
	body := []byte("vendor_string\x00\x00\x00example comment data")
	h := &BlockHeader{BlockType: TypeVorbisComment, Length: len(body)}

	hdrBuf := &bytes.Buffer{}
	if err := h.Encode(hdrBuf); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	full := append(append([]byte{}, hdrBuf.Bytes()...), body...)

	r := bytes.NewReader(full)
	gotHeader, err := NewBlockHeader(r)
	if err != nil {
		t.Fatalf("NewBlockHeader: %v", err)
	}
	block, err := CopyBlock(r, gotHeader)
	if err != nil {
		t.Fatalf("CopyBlock: %v", err)
	}
	if !bytes.Equal(block.Body, body) {
		t.Errorf("CopyBlock() body = %q, want %q", block.Body, body)
	}

	out := &bytes.Buffer{}
	if err := block.Encode(out); err != nil {
		t.Fatalf("Block.Encode: %v", err)
	}
	if !bytes.Equal(out.Bytes(), full) {
		t.Errorf("Block.Encode() = %q, want %q", out.Bytes(), full)
	}
}

func TestSkipBlockDiscardsBody(t *testing.T) {
	body := bytes.Repeat([]byte{0}, 128)
	h := &BlockHeader{BlockType: TypePadding, Length: len(body)}
	r := bytes.NewReader(body)
	if err := SkipBlock(r, h); err != nil {
		t.Fatalf("SkipBlock: %v", err)
	}
	if r.Len() != 0 {
		t.Errorf("SkipBlock() left %d unread bytes", r.Len())
	}
}
