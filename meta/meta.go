// Package meta implements FLAC's metadata-block layer: the block header
// shared by every block type, a typed STREAMINFO block, and an opaque
// pass-through for every other block type.
package meta

import (
	"encoding/binary"
	"fmt"
	"io"
	"io/ioutil"
)

// BlockType identifies the kind of metadata block a BlockHeader precedes.
type BlockType uint8

// Metadata block types.
const (
	TypeStreamInfo BlockType = iota
	TypePadding
	TypeApplication
	TypeSeekTable
	TypeVorbisComment
	TypeCueSheet
	TypePicture
	// TypeInvalid marks the reserved 127 value, kept only so String has
	// something to name; never produced by NewBlockHeader.
	TypeInvalid BlockType = 127
)

func (t BlockType) String() string {
	m := map[BlockType]string{
		TypeStreamInfo:    "stream info",
		TypePadding:       "padding",
		TypeApplication:   "application",
		TypeSeekTable:     "seek table",
		TypeVorbisComment: "vorbis comment",
		TypeCueSheet:      "cue sheet",
		TypePicture:       "picture",
	}
	if s, ok := m[t]; ok {
		return s
	}
	return fmt.Sprintf("BlockType(%d)", uint8(t))
}

// BlockHeader precedes every metadata block and gives its type, length and
// whether it is the last metadata block before the audio frames begin.
//
// ref: https://xiph.org/flac/format.html#metadata_block_header
type BlockHeader struct {
	// IsLast reports whether this is the last metadata block before the
	// first audio frame.
	IsLast bool
	// BlockType identifies the block body's format.
	BlockType BlockType
	// Length is the size in bytes of the block body that follows, not
	// counting the header itself.
	Length int
}

// NewBlockHeader reads and parses a metadata block header from r.
func NewBlockHeader(r io.Reader) (*BlockHeader, error) {
	const (
		isLastMask = 0x80000000 // 1 bit
		typeMask   = 0x7F000000 // 7 bits
		lengthMask = 0x00FFFFFF // 24 bits
	)
	var bits uint32
	if err := binary.Read(r, binary.BigEndian, &bits); err != nil {
		return nil, err
	}

	h := &BlockHeader{
		IsLast:    bits&isLastMask != 0,
		BlockType: BlockType(bits & typeMask >> 24),
		Length:    int(bits & lengthMask),
	}
	if h.BlockType >= 7 && h.BlockType <= 126 {
		return nil, fmt.Errorf("meta.NewBlockHeader: reserved block type %d", h.BlockType)
	} else if h.BlockType == 127 {
		return nil, fmt.Errorf("meta.NewBlockHeader: invalid block type 127")
	}
	return h, nil
}

// Encode writes a metadata block header to w.
func (h *BlockHeader) Encode(w io.Writer) error {
	if h.BlockType >= 7 && h.BlockType <= 127 {
		return fmt.Errorf("meta.BlockHeader.Encode: invalid block type %d", h.BlockType)
	}
	if h.Length < 0 || h.Length > 0x00FFFFFF {
		return fmt.Errorf("meta.BlockHeader.Encode: length %d out of range", h.Length)
	}
	var bits uint32
	if h.IsLast {
		bits |= 0x80000000
	}
	bits |= uint32(h.BlockType) << 24
	bits |= uint32(h.Length)
	return binary.Write(w, binary.BigEndian, bits)
}

// StreamInfo carries the parameters describing the stream as a whole: block
// and frame size bounds, sample rate, channel count, bit depth, total
// sample count and an MD5 digest of the decoded audio. It must be the
// first metadata block in a conforming stream.
//
// ref: https://xiph.org/flac/format.html#metadata_block_streaminfo
type StreamInfo struct {
	// MinBlockSize is the smallest block size, in samples, used anywhere
	// in the stream.
	MinBlockSize uint16
	// MaxBlockSize is the largest block size, in samples, used anywhere
	// in the stream. MinBlockSize == MaxBlockSize implies a fixed block
	// size stream.
	MaxBlockSize uint16
	// MinFrameSize is the smallest frame size, in bytes, in the stream.
	// Zero means unknown.
	MinFrameSize uint32
	// MaxFrameSize is the largest frame size, in bytes, in the stream.
	// Zero means unknown.
	MaxFrameSize uint32
	// SampleRate is the sample rate in Hz.
	SampleRate uint32
	// ChannelCount is the number of audio channels, 1-8.
	ChannelCount uint8
	// BitsPerSample is the sample size in bits, 4-32.
	BitsPerSample uint8
	// SampleCount is the total number of inter-channel samples in the
	// stream. Zero means unknown.
	SampleCount uint64
	// MD5sum is the MD5 digest of the unencoded audio data, interleaved
	// sample-by-sample, little-endian, signed.
	MD5sum [16]byte
}

// NewStreamInfo reads and parses a STREAMINFO metadata block body from r.
// The caller is expected to have limited r to the block's declared length.
func NewStreamInfo(r io.Reader) (*StreamInfo, error) {
	si := new(StreamInfo)
	if err := binary.Read(r, binary.BigEndian, &si.MinBlockSize); err != nil {
		return nil, err
	}
	if si.MinBlockSize < 16 {
		return nil, fmt.Errorf("meta.NewStreamInfo: invalid min block size; expected >= 16, got %d", si.MinBlockSize)
	}

	const (
		maxBlockSizeMask = 0xFFFF000000000000 // 16 bits
		minFrameSizeMask = 0x0000FFFFFF000000 // 24 bits
		maxFrameSizeMask = 0x0000000000FFFFFF // 24 bits
	)
	var bits uint64
	if err := binary.Read(r, binary.BigEndian, &bits); err != nil {
		return nil, err
	}
	si.MaxBlockSize = uint16(bits & maxBlockSizeMask >> 48)
	if si.MaxBlockSize < 16 {
		return nil, fmt.Errorf("meta.NewStreamInfo: invalid max block size; expected >= 16, got %d", si.MaxBlockSize)
	}
	si.MinFrameSize = uint32(bits & minFrameSizeMask >> 24)
	si.MaxFrameSize = uint32(bits & maxFrameSizeMask)

	const (
		sampleRateMask    = 0xFFFFF00000000000 // 20 bits
		channelCountMask  = 0x00000E0000000000 // 3 bits
		bitsPerSampleMask = 0x000001F000000000 // 5 bits
		sampleCountMask   = 0x0000000FFFFFFFFF // 36 bits
	)
	if err := binary.Read(r, binary.BigEndian, &bits); err != nil {
		return nil, err
	}
	si.SampleRate = uint32(bits & sampleRateMask >> 44)
	if si.SampleRate == 0 || si.SampleRate > 655350 {
		return nil, fmt.Errorf("meta.NewStreamInfo: invalid sample rate; expected > 0 and <= 655350, got %d", si.SampleRate)
	}
	si.ChannelCount = uint8(bits&channelCountMask>>41) + 1
	si.BitsPerSample = uint8(bits&bitsPerSampleMask>>36) + 1
	if si.BitsPerSample < 4 || si.BitsPerSample > 32 {
		return nil, fmt.Errorf("meta.NewStreamInfo: invalid bits per sample; expected >= 4 and <= 32, got %d", si.BitsPerSample)
	}
	si.SampleCount = bits & sampleCountMask

	if _, err := io.ReadFull(r, si.MD5sum[:]); err != nil {
		return nil, err
	}
	return si, nil
}

// streamInfoLen is the fixed on-disk size in bytes of an encoded STREAMINFO body.
const streamInfoLen = 34

// Encode writes a STREAMINFO metadata block body to w.
func (si *StreamInfo) Encode(w io.Writer) error {
	if si.ChannelCount < 1 || si.ChannelCount > 8 {
		return fmt.Errorf("meta.StreamInfo.Encode: invalid channel count %d", si.ChannelCount)
	}
	if si.BitsPerSample < 4 || si.BitsPerSample > 32 {
		return fmt.Errorf("meta.StreamInfo.Encode: invalid bits per sample %d", si.BitsPerSample)
	}
	if err := binary.Write(w, binary.BigEndian, si.MinBlockSize); err != nil {
		return err
	}

	var bits uint64
	bits |= uint64(si.MaxBlockSize) << 48
	bits |= uint64(si.MinFrameSize&0xFFFFFF) << 24
	bits |= uint64(si.MaxFrameSize & 0xFFFFFF)
	if err := binary.Write(w, binary.BigEndian, bits); err != nil {
		return err
	}

	bits = 0
	bits |= uint64(si.SampleRate&0xFFFFF) << 44
	bits |= uint64(si.ChannelCount-1) << 41
	bits |= uint64(si.BitsPerSample-1) << 36
	bits |= si.SampleCount & 0xFFFFFFFFF
	if err := binary.Write(w, binary.BigEndian, bits); err != nil {
		return err
	}

	_, err := w.Write(si.MD5sum[:])
	return err
}

// Block is one opaque metadata block: the parsed header plus the raw body
// bytes, for every block type other than STREAMINFO. Keeping the body
// opaque lets callers forward unrecognized block types (SeekTable,
// VorbisComment, CueSheet, Picture, Application, Padding) byte-for-byte
// without a typed parser for each.
type Block struct {
	Header *BlockHeader
	Body   []byte
}

// SkipBlock reads and discards a metadata block body of header.Length
// bytes from r, without retaining it.
func SkipBlock(r io.Reader, header *BlockHeader) error {
	lr := io.LimitReader(r, int64(header.Length))
	_, err := io.Copy(ioutil.Discard, lr)
	return err
}

// CopyBlock reads a metadata block body of header.Length bytes from r and
// returns it as an opaque Block, suitable for later re-emission via
// Block.Encode.
func CopyBlock(r io.Reader, header *BlockHeader) (*Block, error) {
	lr := io.LimitReader(r, int64(header.Length))
	body, err := ioutil.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	return &Block{Header: header, Body: body}, nil
}

// Encode writes the block's header followed by its opaque body to w.
func (b *Block) Encode(w io.Writer) error {
	b.Header.Length = len(b.Body)
	if err := b.Header.Encode(w); err != nil {
		return err
	}
	_, err := w.Write(b.Body)
	return err
}
