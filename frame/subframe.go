package frame

import (
	"fmt"
	mathbits "math/bits"

	"github.com/mewkiz/flacenc/internal/bitio"
	"github.com/mewkiz/flacenc/internal/bits"
	"github.com/mewkiz/flacenc/internal/fixed"
	"github.com/mewkiz/flacenc/internal/lpc"
)

// Pred identifies the subframe's prediction method.
type Pred int8

// Subframe prediction methods.
const (
	PredConstant Pred = iota
	PredFixed
	PredLPC
	PredVerbatim
)

func (p Pred) String() string {
	switch p {
	case PredConstant:
		return "constant"
	case PredFixed:
		return "fixed"
	case PredLPC:
		return "lpc"
	case PredVerbatim:
		return "verbatim"
	default:
		return fmt.Sprintf("Pred(%d)", int8(p))
	}
}

// Subframe holds one channel's worth of decoded (or to-be-encoded) audio
// samples for a single frame, together with the prediction parameters used
// to code them.
//
// ref: https://xiph.org/flac/format.html#subframe
type Subframe struct {
	// Pred is the prediction method used to code Samples.
	Pred Pred
	// Order is the fixed predictor order (0-4) or LPC order (1-32);
	// meaningless for CONSTANT/VERBATIM.
	Order int
	// WastedBits is the number of low-order zero bits stripped from every
	// sample before coding (spec.md §3's wasted-bits-per-sample).
	WastedBits uint8
	// QLPCoeff holds the quantized LPC coefficients, only set when Pred is
	// PredLPC.
	QLPCoeff []int32
	// QLPShift is the right-shift applied after the quantized LPC
	// predictor dot product, only set when Pred is PredLPC.
	QLPShift int
	// Samples holds the decoded (or, when encoding, the decorrelated but
	// pre-wasted-bits) signal for this channel, one value per inter-channel sample of the
	// enclosing frame.
	Samples []int32
}

// DecodeSubframe reads and decodes a subframe of nsamples samples, each effBPS
// bits wide (already adjusted for stereo decorrelation's extra side-channel
// bit, per Channels.bitsPerSample).
func DecodeSubframe(br *bitio.Reader, nsamples int, effBPS uint8) (*Subframe, error) {
	fields, err := br.ReadFields(1, 6)
	if err != nil {
		return nil, err
	}
	if fields[0] != 0 {
		return nil, fmt.Errorf("frame.Decode subframe: invalid padding bit; must be 0")
	}

	sf := &Subframe{}
	n := fields[1]
	switch {
	case n == 0:
		sf.Pred = PredConstant
	case n == 1:
		sf.Pred = PredVerbatim
	case n < 8:
		return nil, fmt.Errorf("frame.Decode subframe: reserved subframe type %06b", n)
	case n < 16:
		sf.Order = int(n & 0x07)
		if sf.Order > fixed.MaxOrder {
			return nil, fmt.Errorf("frame.Decode subframe: invalid fixed predictor order %d", sf.Order)
		}
		sf.Pred = PredFixed
	case n < 32:
		return nil, fmt.Errorf("frame.Decode subframe: reserved subframe type %06b", n)
	default:
		sf.Order = int(n&0x1F) + 1
		sf.Pred = PredLPC
	}

	hasWasted, err := br.Read(1)
	if err != nil {
		return nil, err
	}
	if hasWasted != 0 {
		k, err := br.ReadUnary()
		if err != nil {
			return nil, err
		}
		sf.WastedBits = uint8(k) + 1
		effBPS -= sf.WastedBits
	}

	switch sf.Pred {
	case PredConstant:
		x, err := br.ReadInt(uint(effBPS))
		if err != nil {
			return nil, err
		}
		sf.Samples = make([]int32, nsamples)
		for i := range sf.Samples {
			sf.Samples[i] = int32(x)
		}
	case PredVerbatim:
		sf.Samples = make([]int32, nsamples)
		for i := range sf.Samples {
			x, err := br.ReadInt(uint(effBPS))
			if err != nil {
				return nil, err
			}
			sf.Samples[i] = int32(x)
		}
	case PredFixed:
		sf.Samples = make([]int32, nsamples)
		for i := 0; i < sf.Order; i++ {
			x, err := br.ReadInt(uint(effBPS))
			if err != nil {
				return nil, err
			}
			sf.Samples[i] = int32(x)
		}
		residual, err := decodeResidual(br, nsamples, sf.Order)
		if err != nil {
			return nil, err
		}
		fixed.Restore(sf.Samples, sf.Order, residual)
	case PredLPC:
		sf.Samples = make([]int32, nsamples)
		for i := 0; i < sf.Order; i++ {
			x, err := br.ReadInt(uint(effBPS))
			if err != nil {
				return nil, err
			}
			sf.Samples[i] = int32(x)
		}
		precision, err := br.Read(4)
		if err != nil {
			return nil, err
		}
		precision++ // 0b1111 is reserved; stored value is precision-1.
		shiftField, err := br.Read(5)
		if err != nil {
			return nil, err
		}
		sf.QLPShift = int(bits.IntN(shiftField, 5))
		sf.QLPCoeff = make([]int32, sf.Order)
		for i := range sf.QLPCoeff {
			x, err := br.ReadInt(uint(precision))
			if err != nil {
				return nil, err
			}
			sf.QLPCoeff[i] = int32(x)
		}
		residual, err := decodeResidual(br, nsamples, sf.Order)
		if err != nil {
			return nil, err
		}
		lpc.Restore(sf.Samples, sf.QLPCoeff, sf.QLPShift, residual)
	}

	if sf.WastedBits > 0 {
		for i := range sf.Samples {
			sf.Samples[i] <<= sf.WastedBits
		}
	}

	return sf, nil
}

// Encode writes sf (already populated with Pred/Order/QLPCoeff/QLPShift and
// the channel's samples after stereo decorrelation) as a subframe to bw. bps is the nominal
// bits-per-sample of this channel before accounting for WastedBits.
// disableEscapeCoding forces every Rice partition to stay Rice-coded even
// when escaping to raw samples would be cheaper.
func (sf *Subframe) Encode(bw *bitio.Writer, bps uint8, disableEscapeCoding bool) error {
	if err := bw.WriteBits(0, 1); err != nil {
		return err
	}

	var typeField uint64
	switch sf.Pred {
	case PredConstant:
		typeField = 0
	case PredVerbatim:
		typeField = 1
	case PredFixed:
		typeField = 8 | uint64(sf.Order)
	case PredLPC:
		typeField = 32 | uint64(sf.Order-1)
	default:
		return fmt.Errorf("frame.Subframe.Encode: unknown prediction method %v", sf.Pred)
	}
	if err := bw.WriteBits(typeField, 6); err != nil {
		return err
	}

	if sf.WastedBits > 0 {
		if err := bw.WriteBits(1, 1); err != nil {
			return err
		}
		if err := bw.WriteUnary(uint64(sf.WastedBits - 1)); err != nil {
			return err
		}
	} else {
		if err := bw.WriteBits(0, 1); err != nil {
			return err
		}
	}

	effBPS := bps - sf.WastedBits
	samples := sf.Samples
	if sf.WastedBits > 0 {
		shifted := make([]int32, len(samples))
		for i, s := range samples {
			shifted[i] = s >> sf.WastedBits
		}
		samples = shifted
	}

	switch sf.Pred {
	case PredConstant:
		return bw.WriteInt(int64(samples[0]), effBPS)
	case PredVerbatim:
		for _, s := range samples {
			if err := bw.WriteInt(int64(s), effBPS); err != nil {
				return err
			}
		}
		return nil
	case PredFixed:
		for i := 0; i < sf.Order; i++ {
			if err := bw.WriteInt(int64(samples[i]), effBPS); err != nil {
				return err
			}
		}
		residual := fixed.Residual(samples, sf.Order)
		return encodeResidual(bw, residual, sf.Order, disableEscapeCoding)
	case PredLPC:
		for i := 0; i < sf.Order; i++ {
			if err := bw.WriteInt(int64(samples[i]), effBPS); err != nil {
				return err
			}
		}
		precision := mathbits.Len32(uint32(maxAbs(sf.QLPCoeff))) + 1
		if precision < lpc.MinQLPCoeffPrecision {
			precision = lpc.MinQLPCoeffPrecision
		}
		if precision > 15 {
			precision = 15
		}
		if err := bw.WriteBits(uint64(precision-1), 4); err != nil {
			return err
		}
		if err := bw.WriteInt(int64(sf.QLPShift), 5); err != nil {
			return err
		}
		for _, c := range sf.QLPCoeff {
			if err := bw.WriteInt(int64(c), uint8(precision)); err != nil {
				return err
			}
		}
		residual := lpc.ComputeResidual(samples, sf.QLPCoeff, sf.QLPShift)
		return encodeResidual(bw, residual, sf.Order, disableEscapeCoding)
	}
	return nil
}

func maxAbs(xs []int32) int32 {
	var m int32
	for _, x := range xs {
		a := x
		if a < 0 {
			a = -a
		}
		if a > m {
			m = a
		}
	}
	return m
}
