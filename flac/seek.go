package flac

import (
	"bytes"
	"fmt"
	"io"

	"github.com/mewkiz/flacenc/frame"
	"github.com/mewkiz/flacenc/internal/bitio"
)

// SeekableDecoder wraps Decoder with sample-accurate seeking over an
// io.ReadSeeker, using the proportional-then-binary bracket search of
// spec.md §4.11.
type SeekableDecoder struct {
	*Decoder
	rs        io.ReadSeeker
	dataStart int64 // byte offset of the first frame
	dataEnd   int64 // one byte past the last frame
}

// NewSeekableDecoder reads the signature and metadata blocks from rs,
// leaving the decoder positioned at the start of the first frame and ready
// for either Process or Seek.
func NewSeekableDecoder(rs io.ReadSeeker) (*SeekableDecoder, error) {
	d := NewDecoder(rs)
	for d.State == StateSearchForMetadata || d.State == StateReadMetadata {
		var err error
		if d.State == StateSearchForMetadata {
			err = d.searchForMetadata()
		} else {
			err = d.readMetadata()
		}
		if err != nil {
			return nil, err
		}
	}

	pos, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}
	dataStart := pos - int64(d.r.Buffered())

	end, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, err
	}
	if _, err := rs.Seek(dataStart, io.SeekStart); err != nil {
		return nil, err
	}
	d.r = newBufReader(rs)

	return &SeekableDecoder{Decoder: d, rs: rs, dataStart: dataStart, dataEnd: end}, nil
}

// Seek repositions the decoder so the next frame Process delivers via
// OnWrite is the one containing targetSample. It disables CheckMD5, since
// the skipped-over audio is never fed through the running digest.
func (sd *SeekableDecoder) Seek(targetSample uint64) error {
	if sd.StreamInfo == nil {
		return fmt.Errorf("flac: seek: STREAMINFO not yet read")
	}
	total := sd.StreamInfo.SampleCount
	if total == 0 {
		return fmt.Errorf("flac: seek: unknown total sample count")
	}
	if targetSample >= total {
		return fmt.Errorf("flac: seek: sample %d out of range (total %d)", targetSample, total)
	}

	leftPos, rightPos := sd.dataStart, sd.dataEnd
	leftSample, rightSample := uint64(0), total
	lastGuess := int64(-1)

	for {
		var guess int64
		if rightSample > leftSample {
			frac := float64(targetSample-leftSample) / float64(rightSample-leftSample)
			guess = leftPos + int64(frac*float64(rightPos-leftPos))
		} else {
			guess = leftPos
		}
		if guess < leftPos {
			guess = leftPos
		}
		if guess > rightPos {
			guess = rightPos
		}
		if guess == lastGuess {
			// Proportional search stalled on a repeated offset: the
			// infinite-loop guard of spec.md §4.11 falls back to a plain
			// binary split of the remaining bracket.
			guess = leftPos + (rightPos-leftPos)/2
			if guess == lastGuess {
				return fmt.Errorf("flac: seek_error: search stalled at offset %d", guess)
			}
		}
		lastGuess = guess

		frameSample, frameStart, blockSize, err := sd.probeFrameAt(guess)
		if err != nil {
			return fmt.Errorf("flac: seek_error: %w", err)
		}

		switch {
		case frameSample <= targetSample && targetSample < frameSample+uint64(blockSize):
			return sd.resumeAt(frameStart)
		case frameSample > targetSample:
			rightPos, rightSample = frameStart, frameSample
		default:
			leftPos, leftSample = frameStart, frameSample
		}

		if leftPos >= rightPos {
			return sd.resumeAt(leftPos)
		}
	}
}

// probeFrameAt seeks rs to pos, scans forward for the next frame sync, and
// decodes just that frame's header — enough to learn its first sample
// number and block size without paying for the full subframe decode.
func (sd *SeekableDecoder) probeFrameAt(pos int64) (firstSample uint64, frameStart int64, blockSize uint16, err error) {
	if pos < sd.dataStart {
		pos = sd.dataStart
	}
	if _, err = sd.rs.Seek(pos, io.SeekStart); err != nil {
		return 0, 0, 0, err
	}
	br := newBufReader(sd.rs)

	var prev byte
	havePrev := false
	offset := pos
	for {
		cur, rerr := br.ReadByte()
		if rerr != nil {
			return 0, 0, 0, fmt.Errorf("no frame sync found from offset %d: %w", pos, rerr)
		}
		offset++
		if havePrev && prev == 0xFF && cur>>2 == 0x3E {
			syncStart := offset - 2
			bitReader := bitio.NewReader(io.MultiReader(bytes.NewReader([]byte{prev, cur}), br))
			hdr, herr := frame.DecodeHeader(bitReader)
			if herr == nil {
				first := hdr.Num
				if hdr.HasFixedBlockSize {
					first = hdr.Num * uint64(hdr.BlockSize)
				}
				return first, syncStart, hdr.BlockSize, nil
			}
			// False sync: DecodeHeader already consumed some of br's
			// buffered bytes, so resume scanning fresh from just past the
			// rejected candidate.
			if _, err := sd.rs.Seek(syncStart+1, io.SeekStart); err != nil {
				return 0, 0, 0, err
			}
			br = newBufReader(sd.rs)
			offset = syncStart + 1
			havePrev = false
			continue
		}
		prev, havePrev = cur, true
	}
}

// resumeAt repositions the underlying stream and decoder state so Process
// resumes frame-sync scanning at pos.
func (sd *SeekableDecoder) resumeAt(pos int64) error {
	if _, err := sd.rs.Seek(pos, io.SeekStart); err != nil {
		return err
	}
	sd.r = newBufReader(sd.rs)
	sd.State = StateSearchForFrameSync
	sd.CheckMD5 = false
	return nil
}
