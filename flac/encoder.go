package flac

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"hash"
	"io"

	"github.com/mewkiz/flacenc/frame"
	"github.com/mewkiz/flacenc/internal/bitio"
	"github.com/mewkiz/flacenc/internal/fixed"
	"github.com/mewkiz/flacenc/internal/lpc"
	"github.com/mewkiz/flacenc/meta"
	"github.com/mewkiz/pkg/errutil"
)

// encoderConfig holds the tunables an Encoder was constructed with. Plain
// struct fields set through options at construction time, matching the
// teacher's constructor-default style rather than a config file format
// (spec.md's core has no file-based config surface).
type encoderConfig struct {
	blockSize           int
	maxLPCOrder         int
	apodizations        []lpc.Apodization
	tukeyP              float64
	qlpPrecision        int
	midSideStereo       bool
	disableEscapeCoding bool
	streamable          bool
	verify              bool
}

func defaultEncoderConfig() encoderConfig {
	return encoderConfig{
		blockSize:     4096,
		maxLPCOrder:   8,
		apodizations:  []lpc.Apodization{lpc.Tukey},
		tukeyP:        0.5,
		qlpPrecision:  14,
		midSideStereo: true,
	}
}

// EncoderOption configures an Encoder at construction time.
type EncoderOption func(*Encoder)

// WithBlockSize sets the number of inter-channel samples per frame.
func WithBlockSize(n int) EncoderOption {
	return func(e *Encoder) { e.config.blockSize = n }
}

// WithMaxLPCOrder bounds the LPC order search; 0 disables LPC subframes
// entirely, leaving FIXED/VERBATIM/CONSTANT.
func WithMaxLPCOrder(order int) EncoderOption {
	return func(e *Encoder) { e.config.maxLPCOrder = order }
}

// WithApodizations sets the list of windows tried during LPC analysis; the
// cheapest resulting subframe wins (spec.md §4.8 step 4).
func WithApodizations(windows ...lpc.Apodization) EncoderOption {
	return func(e *Encoder) { e.config.apodizations = windows }
}

// WithTukeyP sets the taper parameter used when the apodization list
// includes lpc.Tukey.
func WithTukeyP(p float64) EncoderOption {
	return func(e *Encoder) { e.config.tukeyP = p }
}

// WithQLPPrecision sets the quantized LPC coefficient precision in bits,
// including the sign bit.
func WithQLPPrecision(bits int) EncoderOption {
	return func(e *Encoder) { e.config.qlpPrecision = bits }
}

// WithMidSideStereo enables or disables the left/side, side/right, mid/side
// channel-assignment search for 2-channel input (spec.md §4.9 step 1).
func WithMidSideStereo(enable bool) EncoderOption {
	return func(e *Encoder) { e.config.midSideStereo = enable }
}

// WithDisableEscapeCoding forces every Rice partition to stay Rice-coded,
// even when escape coding would be cheaper (spec.md §9's deprecated
// do_escape_coding toggle).
func WithDisableEscapeCoding(disable bool) EncoderOption {
	return func(e *Encoder) { e.config.disableEscapeCoding = disable }
}

// WithStreamableSubset rejects any configuration outside the FLAC
// streamable subset at construction time (spec.md §4.10).
func WithStreamableSubset(enable bool) EncoderOption {
	return func(e *Encoder) { e.config.streamable = enable }
}

// WithVerify makes the Encoder re-decode every frame it emits and compare
// it against the samples it was asked to encode, failing Write with a
// *VerifyMismatch on the first disagreement (spec.md §3's verify pair).
func WithVerify(enable bool) EncoderOption {
	return func(e *Encoder) { e.config.verify = enable }
}

// Encoder turns per-channel PCM (one slice per channel) into a FLAC stream, pushed one
// call to Write at a time; Close finalizes it, patching STREAMINFO in
// place when w is an io.WriteSeeker.
type Encoder struct {
	w      io.Writer
	config encoderConfig

	// StreamInfo is updated as frames are written; its SampleCount,
	// MinFrameSize, MaxFrameSize, and MD5sum fields only reach their final
	// values once Close returns.
	StreamInfo *meta.StreamInfo

	// OnMetadata, if set, receives the final STREAMINFO at Close time when
	// w is not an io.WriteSeeker (spec.md §6.3's "metadata callback for
	// non-seekable sinks").
	OnMetadata MetadataFunc

	streamInfoOffset int64
	canPatch         bool
	verifier         *verifier

	pending      [][]int32
	sampleCount  uint64
	minFrameSize uint32
	maxFrameSize uint32
	md5          hash.Hash
	closed       bool
}

// NewEncoder validates si and cfg, writes the "fLaC" signature and a
// placeholder STREAMINFO block, and returns an Encoder ready for Write.
func NewEncoder(w io.Writer, si *meta.StreamInfo, opts ...EncoderOption) (*Encoder, error) {
	if si.ChannelCount < 1 || si.ChannelCount > 8 {
		return nil, errutil.Newf("flac: invalid_channels: %d", si.ChannelCount)
	}
	if si.BitsPerSample < 4 || si.BitsPerSample > 32 {
		return nil, errutil.Newf("flac: invalid_bps: %d", si.BitsPerSample)
	}
	if si.SampleRate == 0 || si.SampleRate > 655350 {
		return nil, errutil.Newf("flac: invalid_sample_rate: %d", si.SampleRate)
	}

	enc := &Encoder{
		w:          w,
		config:     defaultEncoderConfig(),
		StreamInfo: si,
		md5:        md5.New(),
	}
	for _, opt := range opts {
		opt(enc)
	}
	if enc.config.verify {
		enc.verifier = newVerifier()
	}

	if enc.config.blockSize < 16 || enc.config.blockSize > 65535 {
		return nil, errutil.Newf("flac: invalid_blocksize: %d", enc.config.blockSize)
	}
	if enc.config.maxLPCOrder >= enc.config.blockSize {
		return nil, errutil.Newf("flac: block_size_too_small_for_lpc_order: blocksize %d, max LPC order %d", enc.config.blockSize, enc.config.maxLPCOrder)
	}
	if enc.config.maxLPCOrder > lpc.MaxOrder {
		return nil, errutil.Newf("flac: invalid_max_lpc_order: %d", enc.config.maxLPCOrder)
	}
	if enc.config.streamable {
		if err := validateStreamable(enc.config, si); err != nil {
			return nil, err
		}
	}

	if _, err := io.WriteString(w, Signature); err != nil {
		return nil, errutil.Err(err)
	}

	hdr := &meta.BlockHeader{IsLast: true, BlockType: meta.TypeStreamInfo, Length: streamInfoLen}
	if err := hdr.Encode(w); err != nil {
		return nil, errutil.Err(err)
	}
	if ws, ok := w.(io.WriteSeeker); ok {
		off, err := ws.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, errutil.Err(err)
		}
		enc.streamInfoOffset = off
		enc.canPatch = true
	}
	if si.MinBlockSize == 0 {
		si.MinBlockSize = uint16(enc.config.blockSize)
	}
	if si.MaxBlockSize == 0 {
		si.MaxBlockSize = uint16(enc.config.blockSize)
	}
	if err := si.Encode(w); err != nil {
		return nil, errutil.Err(err)
	}

	return enc, nil
}

// streamInfoLen mirrors meta.streamInfoLen; duplicated because that
// constant is unexported and Length must be known before StreamInfo.Encode
// runs.
const streamInfoLen = 34

// streamableBlockSizes are the block sizes the streamable subset allows
// (spec.md §4.10); 32768 is deliberately absent.
var streamableBlockSizes = map[int]bool{
	192: true, 576: true, 1152: true, 2304: true, 4608: true,
	256: true, 512: true, 1024: true, 2048: true, 4096: true, 8192: true, 16384: true,
}

func validateStreamable(cfg encoderConfig, si *meta.StreamInfo) error {
	if !streamableBlockSizes[cfg.blockSize] {
		return errutil.Newf("flac: not_streamable: block size %d outside the streamable subset", cfg.blockSize)
	}
	if cfg.maxLPCOrder > 12 {
		return errutil.Newf("flac: not_streamable: max LPC order %d exceeds the streamable subset limit of 12", cfg.maxLPCOrder)
	}
	switch si.SampleRate {
	case 8000, 16000, 22050, 24000, 32000, 44100, 48000, 88200, 96000, 176400, 192000:
	default:
		return errutil.Newf("flac: not_streamable: sample rate %d outside the streamable subset", si.SampleRate)
	}
	switch si.BitsPerSample {
	case 8, 12, 16, 20, 24:
	default:
		return errutil.Newf("flac: not_streamable: bits per sample %d outside the streamable subset", si.BitsPerSample)
	}
	return nil
}

// Write accumulates samples (one slice per channel, equal length) and
// encodes every full block it can form into frames, flushed to w
// immediately.
func (enc *Encoder) Write(samples [][]int32) error {
	nch := len(samples)
	if nch != int(enc.StreamInfo.ChannelCount) {
		return errutil.Newf("flac: expected %d channels, got %d", enc.StreamInfo.ChannelCount, nch)
	}
	if nch == 0 {
		return nil
	}
	n := len(samples[0])
	for _, ch := range samples {
		if len(ch) != n {
			return errutil.Newf("flac: channel length mismatch")
		}
	}

	if enc.pending == nil {
		enc.pending = make([][]int32, nch)
	}
	for i := range enc.pending {
		enc.pending[i] = append(enc.pending[i], samples[i]...)
	}

	for len(enc.pending[0]) >= enc.config.blockSize {
		block := make([][]int32, nch)
		for i := range block {
			block[i] = enc.pending[i][:enc.config.blockSize:enc.config.blockSize]
		}
		if err := enc.encodeBlock(block); err != nil {
			return err
		}
		for i := range enc.pending {
			enc.pending[i] = append([]int32(nil), enc.pending[i][enc.config.blockSize:]...)
		}
	}
	return nil
}

// Close flushes any buffered partial block as a final short frame, then
// patches STREAMINFO — in place via Seek when w supports it, otherwise by
// invoking OnMetadata with the final values.
func (enc *Encoder) Close() error {
	if enc.closed {
		return nil
	}
	enc.closed = true

	if len(enc.pending) > 0 && len(enc.pending[0]) > 0 {
		if err := enc.encodeBlock(enc.pending); err != nil {
			return err
		}
	}

	enc.StreamInfo.SampleCount = enc.sampleCount
	enc.StreamInfo.MinFrameSize = enc.minFrameSize
	enc.StreamInfo.MaxFrameSize = enc.maxFrameSize
	copy(enc.StreamInfo.MD5sum[:], enc.md5.Sum(nil))

	switch {
	case enc.canPatch:
		ws := enc.w.(io.WriteSeeker)
		cur, err := ws.Seek(0, io.SeekCurrent)
		if err != nil {
			return errutil.Err(err)
		}
		if _, err := ws.Seek(enc.streamInfoOffset, io.SeekStart); err != nil {
			return errutil.Err(err)
		}
		if err := enc.StreamInfo.Encode(ws); err != nil {
			return errutil.Err(err)
		}
		if _, err := ws.Seek(cur, io.SeekStart); err != nil {
			return errutil.Err(err)
		}
	case enc.OnMetadata != nil:
		hdr := &meta.BlockHeader{IsLast: true, BlockType: meta.TypeStreamInfo, Length: streamInfoLen}
		enc.OnMetadata(hdr, enc.StreamInfo)
	}
	return nil
}

// encodeBlock runs the per-channel analysis/coding pipeline for one full
// (or final partial) block of samples and writes the resulting frame.
func (enc *Encoder) encodeBlock(samples [][]int32) error {
	nch := len(samples)
	blockSize := len(samples[0])
	bps := enc.StreamInfo.BitsPerSample

	var channels frame.Channels
	var subframes []*frame.Subframe
	var err error
	if nch == 2 && enc.config.midSideStereo {
		channels, subframes, err = enc.chooseStereoChannels(samples[0], samples[1], bps)
	} else {
		channels = channelsForCount(nch)
		subframes = make([]*frame.Subframe, nch)
		for i, ch := range samples {
			subframes[i], err = buildSubframe(ch, bps, enc.config)
			if err != nil {
				break
			}
		}
	}
	if err != nil {
		return errutil.Err(err)
	}

	hdr := &frame.Header{
		HasFixedBlockSize: false,
		BlockSize:         uint16(blockSize),
		Channels:          channels,
		BitsPerSample:     bps,
		Num:               enc.sampleCount,
	}

	buf := new(bytes.Buffer)
	bw := bitio.NewWriter(buf)
	if err := frame.Encode(bw, hdr, subframes, enc.config.disableEscapeCoding); err != nil {
		return errutil.Err(err)
	}
	if err := bw.Close(); err != nil {
		return errutil.Err(err)
	}

	if _, err := enc.w.Write(buf.Bytes()); err != nil {
		return errutil.Err(err)
	}

	if enc.verifier != nil {
		if err := enc.verifier.check(buf.Bytes(), bps, enc.StreamInfo.SampleRate, samples, enc.sampleCount); err != nil {
			return err
		}
	}

	n := uint32(buf.Len())
	if enc.minFrameSize == 0 || n < enc.minFrameSize {
		enc.minFrameSize = n
	}
	if n > enc.maxFrameSize {
		enc.maxFrameSize = n
	}

	writeInterleavedPCM(enc.md5, samples, bps)
	enc.sampleCount += uint64(blockSize)
	if enc.StreamInfo.MinBlockSize == 0 || uint16(blockSize) < enc.StreamInfo.MinBlockSize {
		enc.StreamInfo.MinBlockSize = uint16(blockSize)
	}
	if uint16(blockSize) > enc.StreamInfo.MaxBlockSize {
		enc.StreamInfo.MaxBlockSize = uint16(blockSize)
	}
	return nil
}

// channelsForCount returns the (non-decorrelated) channel assignment for n
// independent channels.
func channelsForCount(n int) frame.Channels {
	switch n {
	case 1:
		return frame.ChannelsMono
	case 2:
		return frame.ChannelsLR
	case 3:
		return frame.ChannelsLRC
	case 4:
		return frame.ChannelsLRLsRs
	case 5:
		return frame.ChannelsLRCLsRs
	case 6:
		return frame.ChannelsLRCLfeLsRs
	case 7:
		return frame.ChannelsLRCLfeCsSlSr
	case 8:
		return frame.ChannelsLRCLfeLsRsSlSr
	default:
		return frame.ChannelsLR
	}
}

// chooseStereoChannels builds subframes for every channel-assignment
// option applicable to a 2-channel block (LR, left/side, side/right,
// mid/side) and returns the cheapest by actual coded byte length (spec.md
// §4.9 step 1's "exhaustive" choice).
func (enc *Encoder) chooseStereoChannels(left, right []int32, bps uint8) (frame.Channels, []*frame.Subframe, error) {
	type option struct {
		ch         frame.Channels
		a, b       []int32
		bpsA, bpsB uint8
	}
	opts := []option{{frame.ChannelsLR, left, right, bps, bps}}

	// The side channel (a difference of two bps-bit signals) needs one
	// extra bit of headroom, matching frame.Channels' own accounting.
	stereoBPS := []struct {
		ch         frame.Channels
		bpsA, bpsB uint8
	}{
		{frame.ChannelsLeftSide, bps, bps + 1},
		{frame.ChannelsSideRight, bps + 1, bps},
		{frame.ChannelsMidSide, bps, bps + 1},
	}
	for _, sb := range stereoBPS {
		a, b, err := sb.ch.Decorrelate(left, right)
		if err != nil {
			return 0, nil, err
		}
		opts = append(opts, option{sb.ch, a, b, sb.bpsA, sb.bpsB})
	}

	var bestCh frame.Channels
	var bestSubframes []*frame.Subframe
	var bestCost int
	for _, opt := range opts {
		sfA, err := buildSubframe(opt.a, opt.bpsA, enc.config)
		if err != nil {
			return 0, nil, err
		}
		sfB, err := buildSubframe(opt.b, opt.bpsB, enc.config)
		if err != nil {
			return 0, nil, err
		}
		costA, err := subframeCost(sfA, opt.bpsA, enc.config.disableEscapeCoding)
		if err != nil {
			return 0, nil, err
		}
		costB, err := subframeCost(sfB, opt.bpsB, enc.config.disableEscapeCoding)
		if err != nil {
			return 0, nil, err
		}
		cost := costA + costB
		if bestSubframes == nil || cost < bestCost {
			bestCh, bestSubframes, bestCost = opt.ch, []*frame.Subframe{sfA, sfB}, cost
		}
	}
	return bestCh, bestSubframes, nil
}

// buildSubframe picks the cheapest of {CONSTANT, VERBATIM, best FIXED,
// best LPC per apodization window} for one channel's worth of samples,
// measuring cost by actually encoding each candidate (spec.md §4.8).
func buildSubframe(samples []int32, bps uint8, cfg encoderConfig) (*frame.Subframe, error) {
	allEqual := true
	for _, s := range samples {
		if s != samples[0] {
			allEqual = false
			break
		}
	}
	if allEqual {
		return &frame.Subframe{Pred: frame.PredConstant, Samples: append([]int32(nil), samples...)}, nil
	}

	wasted := wastedBits(samples)
	work := samples
	if wasted > 0 {
		work = make([]int32, len(samples))
		for i, s := range samples {
			work[i] = s >> wasted
		}
	}
	effBPS := bps - wasted

	candidates := make([]*frame.Subframe, 0, 2+len(cfg.apodizations))
	candidates = append(candidates, &frame.Subframe{
		Pred: frame.PredVerbatim, WastedBits: wasted, Samples: append([]int32(nil), samples...),
	})
	candidates = append(candidates, &frame.Subframe{
		Pred: frame.PredFixed, Order: fixed.BestOrder(work), WastedBits: wasted,
		Samples: append([]int32(nil), samples...),
	})

	if cfg.maxLPCOrder > 0 && len(work) > cfg.maxLPCOrder {
		for _, apod := range cfg.apodizations {
			windowed := lpc.Apply(work, lpc.Window(apod, len(work), cfg.tukeyP))
			autoc := lpc.Autocorrelation(windowed, cfg.maxLPCOrder+1)
			if autoc[0] == 0 {
				continue
			}
			coeffs, errs := lpc.LevinsonDurbin(autoc, cfg.maxLPCOrder)
			order := lpc.BestOrder(errs, len(work), effBPS)
			qlpCoeff, shift, ok := lpc.QuantizeCoefficients(coeffs[order-1], cfg.qlpPrecision)
			if !ok {
				continue
			}
			candidates = append(candidates, &frame.Subframe{
				Pred: frame.PredLPC, Order: order, WastedBits: wasted,
				QLPCoeff: qlpCoeff, QLPShift: shift,
				Samples: append([]int32(nil), samples...),
			})
		}
	}

	var best *frame.Subframe
	var bestCost int
	for _, cand := range candidates {
		cost, err := subframeCost(cand, bps, cfg.disableEscapeCoding)
		if err != nil {
			continue
		}
		if best == nil || cost < bestCost {
			best, bestCost = cand, cost
		}
	}
	if best == nil {
		return nil, fmt.Errorf("flac: no viable subframe encoding")
	}
	return best, nil
}

// wastedBits returns the number of trailing zero bits common to every
// sample: the trailing-zero count of their bitwise OR.
func wastedBits(samples []int32) uint8 {
	var orAll int32
	for _, s := range samples {
		orAll |= s
	}
	if orAll == 0 {
		return 0
	}
	var k uint8
	for orAll&1 == 0 {
		k++
		orAll >>= 1
	}
	return k
}

// countingWriter discards bytes written to it, counting them; used to
// measure a candidate subframe's encoded size without materializing it.
type countingWriter struct{ n int }

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += len(p)
	return len(p), nil
}

// subframeCost returns the byte-rounded encoded size of sf, the unit
// buildSubframe and chooseStereoChannels compare candidates by.
func subframeCost(sf *frame.Subframe, bps uint8, disableEscapeCoding bool) (int, error) {
	var cw countingWriter
	bw := bitio.NewWriter(&cw)
	if err := sf.Encode(bw, bps, disableEscapeCoding); err != nil {
		return 0, err
	}
	if _, err := bw.Align(); err != nil {
		return 0, err
	}
	return cw.n, nil
}
