package flac

import (
	"fmt"

	"github.com/mewkiz/flacenc/frame"
	"github.com/mewkiz/flacenc/meta"
)

// Status is returned by a decoder's sample-delivery callback to indicate
// whether decoding should continue.
type Status int

// Callback return statuses (spec.md §6.2/§6.3).
const (
	StatusContinue Status = iota
	StatusAbort
)

func (s Status) String() string {
	switch s {
	case StatusContinue:
		return "continue"
	case StatusAbort:
		return "abort"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// ErrorKind classifies a decode-time error delivered to a Decoder's
// OnError callback (spec.md §7).
type ErrorKind int

// Decoder error kinds.
const (
	// ErrLostSync: sync search dropped out mid-field.
	ErrLostSync ErrorKind = iota
	// ErrBadHeader: reserved bits set, reserved codes, or CRC-8 mismatch.
	ErrBadHeader
	// ErrFrameCRCMismatch: CRC-16 mismatch after an otherwise valid frame.
	ErrFrameCRCMismatch
	// ErrUnparseableStream: unknown subframe type or reserved residual
	// coding method; the decoder cannot proceed.
	ErrUnparseableStream
	// ErrReadError: the read callback (or underlying io.Reader) failed.
	ErrReadError
)

func (k ErrorKind) String() string {
	switch k {
	case ErrLostSync:
		return "lost sync"
	case ErrBadHeader:
		return "bad header"
	case ErrFrameCRCMismatch:
		return "frame CRC mismatch"
	case ErrUnparseableStream:
		return "unparseable stream"
	case ErrReadError:
		return "read error"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// WriteSamplesFunc receives one decoded frame's per-channel samples, in
// storage order after stereo reconstruction. Returning StatusAbort
// terminates decoding immediately.
type WriteSamplesFunc func(hdr *frame.Header, samples [][]int32) Status

// MetadataFunc receives one metadata block as it is parsed: header plus
// body (*meta.StreamInfo for the STREAMINFO block, *meta.Block for every
// other block type).
type MetadataFunc func(header *meta.BlockHeader, body interface{})

// ErrorFunc receives a recoverable decode error; decoding resumes at the
// next frame sync after this callback returns.
type ErrorFunc func(kind ErrorKind, err error)
