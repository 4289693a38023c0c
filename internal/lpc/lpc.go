// Package lpc implements FLAC's linear predictive coding analysis and
// synthesis kernels: windowing, autocorrelation, Levinson-Durbin
// recursion, coefficient quantization, and the quantized-coefficient
// residual/restoration filters used by LPC subframes.
package lpc

import "math"

// MaxOrder is the highest LPC order the FLAC format allows.
const MaxOrder = 32

// MinQLPCoeffPrecision is the smallest legal quantized coefficient
// precision, in bits including the sign bit.
const MinQLPCoeffPrecision = 5

// qlpShiftBits is the width of the signed shift field in an LPC subframe
// header (spec.md §3), giving a representable range of [-16, 15].
const qlpShiftBits = 5

// Autocorrelation computes autoc[0..lag-1], the autocorrelation of data at
// lags 0 through lag-1. data is implicitly zero outside [0,len(data)-1].
func Autocorrelation(data []float64, lag int) []float64 {
	autoc := make([]float64, lag)
	for l := lag - 1; l >= 0; l-- {
		var d float64
		for i := l; i < len(data); i++ {
			d += data[i] * data[i-l]
		}
		autoc[l] = d
	}
	return autoc
}

// LevinsonDurbin computes LP coefficients for every order 1..maxOrder from
// the autocorrelation sequence autoc (which must have at least maxOrder+1
// elements). coeffs[order-1][0:order] holds the coefficients for that
// order; errs[order-1] holds the residual prediction error, which
// monotonically decreases with order and drives the encoder's order
// search (spec.md §4.6).
//
// autoc[0] must be nonzero (a silent block has no predictor worth
// computing).
func LevinsonDurbin(autoc []float64, maxOrder int) (coeffs [][]float64, errs []float64) {
	coeffs = make([][]float64, maxOrder)
	errs = make([]float64, maxOrder)

	err := autoc[0]
	lpc := make([]float64, maxOrder)
	for i := 0; i < maxOrder; i++ {
		r := -autoc[i+1]
		for j := 0; j < i; j++ {
			r -= lpc[j] * autoc[i-j]
		}
		r /= err

		lpc[i] = r
		for j := 0; j < i/2; j++ {
			tmp := lpc[j]
			lpc[j] += r * lpc[i-1-j]
			lpc[i-1-j] += r * tmp
		}
		if i&1 != 0 {
			lpc[i/2] += lpc[i/2] * r
		}

		err *= 1 - r*r

		order := make([]float64, i+1)
		for j := 0; j <= i; j++ {
			order[j] = -lpc[j]
		}
		coeffs[i] = order
		errs[i] = err
	}
	return coeffs, errs
}

// ExpectedBitsPerResidualSample estimates, from the Levinson-Durbin
// prediction error for some order, how many bits per sample the residual
// of that order is likely to cost once Rice coded.
func ExpectedBitsPerResidualSample(lpcError float64, totalSamples int) float64 {
	if lpcError <= 0 {
		return 0
	}
	escale := 0.5 * math.Ln2 * math.Ln2 / float64(totalSamples)
	bps := 0.5 * math.Log(escale*lpcError) / math.Ln2
	if bps < 0 {
		return 0
	}
	return bps
}

// BestOrder picks the LPC order (1..maxOrder) with the lowest estimated
// total bit cost, trading off residual entropy against the extra warm-up
// and coefficient bits a higher order header carries.
func BestOrder(errs []float64, totalSamples int, bitsPerSample uint8) int {
	maxOrder := len(errs)
	bestOrder := 0
	bestBits := ExpectedBitsPerResidualSample(errs[0], totalSamples) * float64(totalSamples)
	for order := 1; order < maxOrder; order++ {
		bits := ExpectedBitsPerResidualSample(errs[order], totalSamples)*float64(totalSamples-order) + float64(order)*float64(bitsPerSample)
		if bits < bestBits {
			bestOrder = order
			bestBits = bits
		}
	}
	return bestOrder + 1
}

// QuantizeCoefficients quantizes the order LP coefficients lpCoeff to
// precision-bit (including sign) signed integers, returning the shift
// amount needed to recover an approximation of the original coefficients:
// coeff ≈ qlpCoeff[i] / 2^shift. Quantization error from rounding each
// coefficient is carried forward into the next, matching libFLAC's
// error-feedback quantizer.
//
// ok is false if the coefficients are all zero, or if the required shift
// does not fit the subframe header's signed shift field.
func QuantizeCoefficients(lpCoeff []float64, precision int) (qlpCoeff []int32, shift int, ok bool) {
	precision--
	cmax := -1.0
	for _, c := range lpCoeff {
		if c == 0 {
			continue
		}
		d := math.Abs(c)
		if d > cmax {
			cmax = d
		}
	}
	if cmax < 0 {
		return nil, 0, false
	}

	maxShift := precision - int(math.Floor(math.Log(cmax)/math.Ln2)) - 1
	maxShiftLimit := (1 << (qlpShiftBits - 1)) - 1
	minShiftLimit := -maxShiftLimit - 1
	if maxShift < minShiftLimit || maxShift > maxShiftLimit {
		return nil, 0, false
	}
	shift = maxShift

	qlpCoeff = make([]int32, len(lpCoeff))
	if shift != 0 {
		errAcc := 0.0
		scale := float64(int64(1) << uint(max(shift, 0)))
		if shift < 0 {
			scale = 1.0 / float64(int64(1)<<uint(-shift))
		}
		for i, c := range lpCoeff {
			v := c*scale + errAcc
			q := math.Floor(v)
			errAcc = v - q
			qlpCoeff[i] = int32(q)
		}
	} else {
		for i, c := range lpCoeff {
			qlpCoeff[i] = int32(math.Floor(c))
		}
	}
	return qlpCoeff, shift, true
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// ComputeResidual computes the residual signal from the original samples
// using quantized coefficients: residual[i] = samples[order+i] -
// (sum(qlpCoeff[j]*samples[order+i-1-j]) >> shift). samples must include
// order warm-up samples ahead of the signal being coded.
//
// The accumulator is always int64, which has enough headroom for any
// FLAC-legal order/precision/bits-per-sample combination (FLAC's own
// 32-bit-vs-64-bit kernel-selection concern from spec.md §9 is therefore a
// no-op here: there is no second, narrower code path to select).
func ComputeResidual(samples []int32, qlpCoeff []int32, shift int) []int32 {
	order := len(qlpCoeff)
	n := len(samples) - order
	residual := make([]int32, n)
	for i := 0; i < n; i++ {
		var sum int64
		for j, c := range qlpCoeff {
			sum += int64(c) * int64(samples[order+i-1-j])
		}
		residual[i] = samples[order+i] - int32(sum>>uint(shift))
	}
	return residual
}

// Restore reconstructs the sample sequence from order warm-up samples
// (already placed in out[:order]) and the residual, filling out[order:].
func Restore(out []int32, qlpCoeff []int32, shift int, residual []int32) {
	order := len(qlpCoeff)
	for i := 0; i < len(residual); i++ {
		var sum int64
		for j, c := range qlpCoeff {
			sum += int64(c) * int64(out[order+i-1-j])
		}
		out[order+i] = residual[i] + int32(sum>>uint(shift))
	}
}
