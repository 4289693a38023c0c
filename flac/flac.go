/*
Links:
	https://xiph.org/flac/format.html
	https://xiph.org/flac/api/
*/

// Package flac provides access to FLAC (Free Lossless Audio Codec) files:
// a bit-exact stream decoder with sync-loss recovery, a push-based
// encoder, and proportional-then-binary seeking, layered over the
// frame and meta packages.
package flac

import (
	"bufio"
	"io"
	"os"

	"github.com/mewkiz/flacenc/frame"
	"github.com/mewkiz/flacenc/meta"
)

// Signature is present at the beginning of every FLAC stream.
const Signature = "fLaC"

// Sample is a single decoded PCM sample, sign-extended to 32 bits
// regardless of the stream's actual bit depth.
type Sample = int32

// Stream holds the fully parsed contents of a FLAC file: its stream info,
// any other metadata blocks, and every decoded audio frame's samples.
// Open/NewStream are a convenience for callers that want the whole file
// in memory; streaming callers should use Decoder directly.
type Stream struct {
	// StreamInfo describes the stream as a whole.
	StreamInfo *meta.StreamInfo
	// MetaBlocks holds every non-STREAMINFO metadata block, verbatim.
	MetaBlocks []*meta.Block
	// Samples holds one slice per channel, each the full length of the
	// decoded stream.
	Samples [][]int32
}

// Open opens the named FLAC file and fully decodes it.
func Open(path string) (*Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return NewStream(f)
}

// NewStream reads and fully decodes a FLAC stream from r.
func NewStream(r io.Reader) (*Stream, error) {
	s := &Stream{}
	dec := NewDecoder(r)
	dec.OnMetadata = func(header *meta.BlockHeader, body interface{}) {
		if block, ok := body.(*meta.Block); ok {
			s.MetaBlocks = append(s.MetaBlocks, block)
		}
	}
	dec.OnWrite = func(hdr *frame.Header, samples [][]int32) Status {
		if s.Samples == nil {
			s.Samples = make([][]int32, len(samples))
		}
		for i, ch := range samples {
			s.Samples[i] = append(s.Samples[i], ch...)
		}
		return StatusContinue
	}
	if err := dec.Process(); err != nil {
		return nil, err
	}
	s.StreamInfo = dec.StreamInfo
	return s, nil
}

// bufReaderSize bounds how much look-ahead the Decoder buffers while
// scanning for frame sync candidates (see Decoder.scanAndDecodeFrame).
const bufReaderSize = 1 << 20

func newBufReader(r io.Reader) *bufio.Reader {
	return bufio.NewReaderSize(r, bufReaderSize)
}
