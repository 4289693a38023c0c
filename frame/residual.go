package frame

import (
	"fmt"

	"github.com/mewkiz/flacenc/internal/bitio"
	"github.com/mewkiz/flacenc/internal/bits"
)

// Residual coding methods (the 2-bit RESIDUAL_CODING_METHOD field).
const (
	residualMethodRice1 = 0 // 4-bit Rice parameter.
	residualMethodRice2 = 1 // 5-bit Rice parameter.
)

// escapeParamRice1 and escapeParamRice2 are the "all ones" Rice parameter
// values that mark a partition as unencoded/verbatim (spec.md §4.7's
// escape coding).
const (
	escapeParamRice1 = 0xF
	escapeParamRice2 = 0x1F
)

// decodeResidual reads a residual signal (the part of a subframe following
// the warm-up samples) for nsamples total samples and predOrder warm-up
// samples already consumed.
func decodeResidual(br *bitio.Reader, nsamples, predOrder int) ([]int32, error) {
	method, err := br.Read(2)
	if err != nil {
		return nil, err
	}
	var paramSize uint
	switch method {
	case residualMethodRice1:
		paramSize = 4
	case residualMethodRice2:
		paramSize = 5
	default:
		return nil, fmt.Errorf("frame.decodeResidual: reserved residual coding method %02b", method)
	}

	partOrderField, err := br.Read(4)
	if err != nil {
		return nil, err
	}
	partOrder := int(partOrderField)
	nparts := 1 << uint(partOrder)
	if nparts > nsamples {
		return nil, fmt.Errorf("frame.decodeResidual: partition order %d yields more partitions than samples", partOrder)
	}

	residual := make([]int32, 0, nsamples-predOrder)
	for i := 0; i < nparts; i++ {
		param, err := br.Read(paramSize)
		if err != nil {
			return nil, err
		}

		var partLen int
		switch {
		case partOrder == 0:
			partLen = nsamples - predOrder
		case i != 0:
			partLen = nsamples / nparts
		default:
			partLen = nsamples/nparts - predOrder
		}

		escaped := (paramSize == 4 && param == escapeParamRice1) || (paramSize == 5 && param == escapeParamRice2)
		if escaped {
			n, err := br.Read(5)
			if err != nil {
				return nil, err
			}
			for j := 0; j < partLen; j++ {
				x, err := br.ReadInt(uint(n))
				if err != nil {
					return nil, err
				}
				residual = append(residual, int32(x))
			}
			continue
		}

		for j := 0; j < partLen; j++ {
			high, err := br.ReadUnary()
			if err != nil {
				return nil, err
			}
			low, err := br.Read(uint(param))
			if err != nil {
				return nil, err
			}
			folded := uint32(high<<param | low)
			residual = append(residual, bits.DecodeZigZag(folded))
		}
	}
	return residual, nil
}

// encodeResidual writes a residual signal using partitioned Rice coding
// with a single partition (partition order 0) and 4-bit Rice parameters;
// no partition order search is done, and the 5-bit parameter form of
// encodeResidualOrder is not used on this path.
// disableEscape forces every partition through Rice coding even when
// escaping to raw samples would be cheaper (spec.md §9's deprecated
// do_escape_coding toggle).
func encodeResidual(bw *bitio.Writer, residual []int32, predOrder int, disableEscape bool) error {
	return encodeResidualOrder(bw, residual, predOrder, 0, false, disableEscape)
}

// encodeResidualOrder writes a residual signal partitioned into 2^partOrder
// parts, using 5-bit Rice parameters (Rice2) when wide is true, 4-bit
// (Rice1) otherwise.
func encodeResidualOrder(bw *bitio.Writer, residual []int32, predOrder, partOrder int, wide, disableEscape bool) error {
	nsamples := len(residual) + predOrder
	method := residualMethodRice1
	paramSize := uint8(4)
	escapeParam := uint64(escapeParamRice1)
	if wide {
		method = residualMethodRice2
		paramSize = 5
		escapeParam = escapeParamRice2
	}
	if err := bw.WriteBits(uint64(method), 2); err != nil {
		return err
	}
	if err := bw.WriteBits(uint64(partOrder), 4); err != nil {
		return err
	}

	nparts := 1 << uint(partOrder)
	idx := 0
	for i := 0; i < nparts; i++ {
		var partLen int
		switch {
		case partOrder == 0:
			partLen = nsamples - predOrder
		case i != 0:
			partLen = nsamples / nparts
		default:
			partLen = nsamples/nparts - predOrder
		}
		part := residual[idx : idx+partLen]
		idx += partLen

		param, escape := bestRiceParam(part, paramSize, disableEscape)
		if escape {
			if err := bw.WriteBits(escapeParam, paramSize); err != nil {
				return err
			}
			n := rawBitWidth(part)
			if err := bw.WriteBits(uint64(n), 5); err != nil {
				return err
			}
			for _, r := range part {
				if err := bw.WriteInt(int64(r), uint8(n)); err != nil {
					return err
				}
			}
			continue
		}

		if err := bw.WriteBits(uint64(param), paramSize); err != nil {
			return err
		}
		for _, r := range part {
			if err := encodeRiceResidual(bw, param, r); err != nil {
				return err
			}
		}
	}
	return nil
}

func encodeRiceResidual(bw *bitio.Writer, k uint64, residual int32) error {
	folded := uint64(bits.EncodeZigZag(residual))
	high := folded >> k
	low := folded & (1<<k - 1)
	if err := bw.WriteUnary(high); err != nil {
		return err
	}
	return bw.WriteBits(low, uint8(k))
}

// bestRiceParam picks the Rice parameter minimizing the encoded bit count
// for part, falling back to escape coding when even the best Rice
// parameter costs more than a verbatim encoding of the partition (spec.md
// §4.7/§9's escape-coding decision), unless disableEscape forbids it.
func bestRiceParam(part []int32, paramSize uint8, disableEscape bool) (param uint64, escape bool) {
	maxParam := uint64(1)<<paramSize - 2 // the all-ones value is reserved for escape.
	var bestCost uint64 = ^uint64(0)
	for k := uint64(0); k <= maxParam; k++ {
		cost := riceCost(part, k)
		if cost < bestCost {
			bestCost = cost
			param = k
		}
	}
	if disableEscape {
		return param, false
	}
	rawCost := uint64(rawBitWidth(part)) * uint64(len(part))
	if rawCost+5 < bestCost {
		return 0, true
	}
	return param, false
}

func riceCost(part []int32, k uint64) uint64 {
	var cost uint64
	for _, r := range part {
		folded := uint64(bits.EncodeZigZag(r))
		cost += (folded >> k) + 1 + k
	}
	return cost
}

func rawBitWidth(part []int32) int {
	var maxBits int
	for _, r := range part {
		v := int64(r)
		if v < 0 {
			v = ^v
		}
		n := 1
		for v > 0 {
			v >>= 1
			n++
		}
		if n > maxBits {
			maxBits = n
		}
	}
	if maxBits == 0 {
		maxBits = 1
	}
	return maxBits
}
