package flac

import (
	"bufio"
	"bytes"
	"crypto/md5"
	"fmt"
	"hash"
	"io"

	"github.com/mewkiz/flacenc/frame"
	"github.com/mewkiz/flacenc/internal/bitio"
	"github.com/mewkiz/flacenc/meta"
	"github.com/mewkiz/pkg/dbg"
	"github.com/mewkiz/pkg/errutil"
)

// maxMetadataSearch bounds how many bytes Decoder will skip while looking
// for the "fLaC" signature before giving up (spec.md §4.10).
const maxMetadataSearch = 128 * 1024

// DecoderState names a state of Decoder's pull state machine.
//
// ref: spec.md §4.10
type DecoderState int

// Decoder states.
const (
	StateSearchForMetadata DecoderState = iota
	StateReadMetadata
	StateSearchForFrameSync
	StateReadFrame
	StateEndOfStream
	StateAborted
	StateUnparseableStream
)

func (s DecoderState) String() string {
	switch s {
	case StateSearchForMetadata:
		return "search for metadata"
	case StateReadMetadata:
		return "read metadata"
	case StateSearchForFrameSync:
		return "search for frame sync"
	case StateReadFrame:
		return "read frame"
	case StateEndOfStream:
		return "end of stream"
	case StateAborted:
		return "aborted"
	case StateUnparseableStream:
		return "unparseable stream"
	default:
		return fmt.Sprintf("DecoderState(%d)", int(s))
	}
}

// Decoder pulls a FLAC stream apart — the "fLaC" signature, metadata
// blocks, and audio frames — invoking user callbacks as each piece is
// parsed. It recovers from corrupted frames by rescanning for the next
// sync code rather than failing the whole stream.
type Decoder struct {
	r     *bufio.Reader
	State DecoderState

	// StreamInfo is populated once the STREAMINFO block has been parsed.
	StreamInfo *meta.StreamInfo
	// MetaBlocks accumulates every non-STREAMINFO metadata block seen so
	// far, in stream order. Blocks are only collected while OnMetadata is
	// set; otherwise they are skipped and MetaBlocks stays empty.
	MetaBlocks []*meta.Block

	// OnMetadata, if set, is invoked once per metadata block as it is
	// parsed (STREAMINFO body is *meta.StreamInfo; every other block's
	// body is *meta.Block). When OnMetadata is nil for a non-STREAMINFO
	// block its bytes are discarded instead of copied.
	OnMetadata MetadataFunc
	// OnError, if set, is invoked for every recoverable decode error.
	OnError ErrorFunc
	// OnWrite, if set, is invoked once per successfully decoded frame.
	OnWrite WriteSamplesFunc

	// CheckMD5 enables comparing the running MD5 of decoded PCM against
	// StreamInfo.MD5sum once the stream ends. Defaults to true.
	CheckMD5 bool

	md5       hash.Hash
	sampleNum uint64
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		r:        newBufReader(r),
		State:    StateSearchForMetadata,
		CheckMD5: true,
		md5:      md5.New(),
	}
}

// Process drives the decoder through every state until it reaches
// end-of-stream, is aborted by a callback, or hits a fatal error; it is
// the pull-based equivalent of "decode the whole stream". When OnWrite
// returns StatusAbort, Process returns nil and leaves State at
// StateAborted; a later call then reports the decoder as aborted.
func (d *Decoder) Process() error {
	for {
		switch d.State {
		case StateSearchForMetadata:
			if err := d.searchForMetadata(); err != nil {
				d.State = StateAborted
				return err
			}
		case StateReadMetadata:
			if err := d.readMetadata(); err != nil {
				d.State = StateAborted
				return err
			}
		case StateSearchForFrameSync:
			found, err := d.scanAndDecodeFrame()
			if err != nil {
				d.State = StateAborted
				return err
			}
			if d.State == StateAborted {
				return nil
			}
			if !found {
				d.State = StateEndOfStream
			}
		case StateEndOfStream:
			return d.finish()
		case StateUnparseableStream:
			return fmt.Errorf("flac: unparseable stream")
		case StateAborted:
			return fmt.Errorf("flac: decoder aborted")
		}
	}
}

// searchForMetadata scans for the "fLaC" signature, skipping up to
// maxMetadataSearch bytes of leading garbage (e.g. an ID3v2 tag).
func (d *Decoder) searchForMetadata() error {
	var skipped int
	for {
		buf, err := d.r.Peek(len(Signature))
		if err == nil && string(buf) == Signature {
			d.r.Discard(len(Signature))
			d.State = StateReadMetadata
			return nil
		}
		if len(buf) < len(Signature) {
			if err == nil {
				err = io.ErrUnexpectedEOF
			}
			return errutil.Newf("flac: %q signature not found: %v", Signature, err)
		}
		if _, err := d.r.Discard(1); err != nil {
			return errutil.Err(err)
		}
		skipped++
		if skipped > maxMetadataSearch {
			return errutil.Newf("flac: %q signature not found within %d bytes", Signature, maxMetadataSearch)
		}
	}
}

// readMetadata reads every metadata block up to and including the one
// marked IsLast.
func (d *Decoder) readMetadata() error {
	first := true
	for {
		header, err := meta.NewBlockHeader(d.r)
		if err != nil {
			return err
		}
		if first {
			if header.BlockType != meta.TypeStreamInfo {
				return fmt.Errorf("flac: first metadata block must be STREAMINFO, got %v", header.BlockType)
			}
			first = false
		}

		switch header.BlockType {
		case meta.TypeStreamInfo:
			si, err := meta.NewStreamInfo(d.r)
			if err != nil {
				return err
			}
			d.StreamInfo = si
			if d.OnMetadata != nil {
				d.OnMetadata(header, si)
			}
		default:
			if d.OnMetadata != nil {
				block, err := meta.CopyBlock(d.r, header)
				if err != nil {
					return err
				}
				d.MetaBlocks = append(d.MetaBlocks, block)
				d.OnMetadata(header, block)
			} else if err := meta.SkipBlock(d.r, header); err != nil {
				return err
			}
		}

		if header.IsLast {
			d.State = StateSearchForFrameSync
			return nil
		}
	}
}

// scanAndDecodeFrame scans the stream for a 14-bit sync candidate
// (0xFF followed by the top six bits 111110), attempts to decode a full
// frame starting there, and on success delivers it. A candidate that
// fails to decode is treated as a false sync: decoding resumes one byte
// past where the candidate began. Returns false only at true end of
// stream.
func (d *Decoder) scanAndDecodeFrame() (bool, error) {
	var prev byte
	havePrev := false
	for {
		cur, err := d.r.ReadByte()
		if err != nil {
			if err == io.EOF {
				return false, nil
			}
			return false, err
		}
		if havePrev && prev == 0xFF && cur>>2 == 0x3E {
			ok, err := d.tryDecodeFrameAt(prev, cur)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
			dbg.Println("flac: sync candidate rejected, resuming scan one byte later")
			if d.OnError != nil {
				d.OnError(ErrLostSync, fmt.Errorf("flac: frame sync candidate failed to decode"))
			}
		}
		prev, havePrev = cur, true
	}
}

// tryDecodeFrameAt attempts to decode a frame whose 16-bit sync+header
// prefix is (b0, b1), using up to a full buffer's worth of look-ahead from
// d.r. Peek(bufReaderSize) forces d.r to refill from the underlying reader
// rather than settling for whatever happens to already be buffered, so
// readers that deliver short reads (sockets, pipes, io.Reader wrappers like
// iotest.OneByteReader) still get a complete frame's worth of look-ahead
// before a candidate is rejected as a false sync. On success it discards
// exactly the bytes the frame consumed and delivers it via OnWrite/MD5; on
// failure it leaves d.r untouched beyond the two already-read sync bytes.
func (d *Decoder) tryDecodeFrameAt(b0, b1 byte) (bool, error) {
	if d.StreamInfo == nil {
		return false, fmt.Errorf("flac: frame sync found before STREAMINFO")
	}
	lookahead, err := d.r.Peek(bufReaderSize)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return false, err
	}
	candidate := make([]byte, 0, 2+len(lookahead))
	candidate = append(candidate, b0, b1)
	candidate = append(candidate, lookahead...)

	br := bitio.NewReader(bytes.NewReader(candidate))
	f, err := frame.Decode(br, d.StreamInfo.BitsPerSample, d.StreamInfo.SampleRate)
	if err != nil {
		return false, nil
	}

	consumed := int(br.BytesConsumed()) - 2
	if consumed < 0 || consumed > len(lookahead) {
		return false, nil
	}
	if _, err := d.r.Discard(consumed); err != nil {
		return false, err
	}

	d.State = StateReadFrame
	d.deliverFrame(f)
	return true, nil
}

// deliverFrame feeds a decoded frame's samples through MD5 accounting
// and the OnWrite callback, honoring StatusAbort.
func (d *Decoder) deliverFrame(f *frame.Frame) {
	samples := make([][]int32, len(f.Subframes))
	for i, sf := range f.Subframes {
		samples[i] = sf.Samples
	}
	if d.CheckMD5 {
		writeInterleavedPCM(d.md5, samples, d.StreamInfo.BitsPerSample)
	}
	if len(samples) > 0 {
		d.sampleNum += uint64(len(samples[0]))
	}

	status := StatusContinue
	if d.OnWrite != nil {
		status = d.OnWrite(f.Header, samples)
	}
	if status == StatusAbort {
		d.State = StateAborted
	} else {
		d.State = StateSearchForFrameSync
	}
}

// finish compares the running MD5 against StreamInfo once decoding has
// reached end of stream, per spec.md §4.10's "mismatch is reported...
// exactly once at finish time".
func (d *Decoder) finish() error {
	if !d.CheckMD5 || d.StreamInfo == nil {
		return nil
	}
	var zero [16]byte
	if d.StreamInfo.MD5sum == zero {
		return nil
	}
	got := d.md5.Sum(nil)
	if !bytes.Equal(got, d.StreamInfo.MD5sum[:]) {
		return fmt.Errorf("flac: md5 mismatch: expected %x, got %x", d.StreamInfo.MD5sum, got)
	}
	return nil
}
