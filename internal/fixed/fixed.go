// Package fixed implements FLAC's fixed (polynomial) predictors: closed-form
// predictors of order 0 through 4, used by subframes whose signal doesn't
// warrant the cost of a full LPC analysis.
package fixed

// MaxOrder is the highest fixed predictor order FLAC defines.
const MaxOrder = 4

// coeffs[order] holds the binomial coefficients of the order-th predictor,
// most recent sample first, i.e. predicted[i] = sum(coeffs[order][j] *
// samples[i-1-j]).
var coeffs = [MaxOrder + 1][]int64{
	{},
	{1},
	{2, -1},
	{3, -3, 1},
	{4, -6, 4, -1},
}

// Residual computes the order-th fixed predictor residual of samples.
// samples[0:order] are warm-up samples and are not present in the
// returned residual; samples must have at least order elements.
func Residual(samples []int32, order int) []int32 {
	n := len(samples) - order
	if n <= 0 {
		return nil
	}
	residual := make([]int32, n)
	c := coeffs[order]
	for i := order; i < len(samples); i++ {
		pred := int64(0)
		for j, cj := range c {
			pred += cj * int64(samples[i-1-j])
		}
		residual[i-order] = int32(int64(samples[i]) - pred)
	}
	return residual
}

// Restore reconstructs the full sample sequence given order warm-up
// samples (already placed at the front of out) and the predictor residual,
// filling out[order:] in place. len(out) must equal order+len(residual).
func Restore(out []int32, order int, residual []int32) {
	c := coeffs[order]
	for i := 0; i < len(residual); i++ {
		pred := int64(0)
		for j, cj := range c {
			pred += cj * int64(out[order+i-1-j])
		}
		out[order+i] = int32(pred + int64(residual[i]))
	}
}

// Cost estimates the number of bits fixed predictor order would need to
// encode samples, used by BestOrder to pick among fixed orders 0-4
// (spec.md §4.5's "smallest estimated bit cost" selection rule).
// It charges k+1 bits per residual sample, where k = bestRiceParam(m) is
// the smallest value with 2^(k+1) > m for the residual's mean absolute
// value m.
func Cost(samples []int32, order int) uint64 {
	residual := Residual(samples, order)
	if len(residual) == 0 {
		return 0
	}
	var sum uint64
	for _, r := range residual {
		sum += zigzagAbs(r)
	}
	mean := sum / uint64(len(residual))
	k := bestRiceParam(mean)
	return uint64(len(residual)) * uint64(k+1)
}

func zigzagAbs(x int32) uint64 {
	if x < 0 {
		return uint64(-int64(x))
	}
	return uint64(x)
}

// bestRiceParam returns the smallest k such that 2^k is close to mean,
// approximating the optimal Rice parameter for a Laplacian-distributed
// residual with the given mean absolute value.
func bestRiceParam(mean uint64) uint {
	var k uint
	for (uint64(1) << (k + 1)) < mean+1 {
		k++
	}
	return k
}

// BestOrder returns the fixed predictor order in [0,MaxOrder] with the
// lowest estimated coding cost for samples, the block being coded with its
// first order samples serving as warm-up; orders not below len(samples)
// are not tried.
func BestOrder(samples []int32) int {
	best := 0
	var bestCost uint64
	for order := 0; order <= MaxOrder && order < len(samples); order++ {
		cost := Cost(samples, order)
		if order == 0 || cost < bestCost {
			best = order
			bestCost = cost
		}
	}
	return best
}
