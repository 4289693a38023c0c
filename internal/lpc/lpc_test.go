package lpc

import (
	"math"
	"testing"
)

func TestComputeResidualRestoreRoundTrip(t *testing.T) {
	samples := []int32{100, 102, 101, 98, 95, 99, 103, 108, 110, 107, 104, 101}
	order := 2
	qlpCoeff := []int32{3, -1}
	shift := 2

	residual := ComputeResidual(samples, qlpCoeff, shift)
	out := make([]int32, len(samples))
	copy(out, samples[:order])
	Restore(out, qlpCoeff, shift, residual)
	for i, v := range samples {
		if out[i] != v {
			t.Errorf("Restore()[%d] = %d, want %d", i, out[i], v)
		}
	}
}

func TestLevinsonDurbinErrorMonotonicallyDecreases(t *testing.T) {
	data := make([]float64, 64)
	for i := range data {
		data[i] = math.Sin(float64(i) * 0.3)
	}
	w := Window(Hann, len(data), 0)
	windowed := make([]float64, len(data))
	for i := range data {
		windowed[i] = data[i] * w[i]
	}
	autoc := Autocorrelation(windowed, 9)
	_, errs := LevinsonDurbin(autoc, 8)
	for i := 1; i < len(errs); i++ {
		if errs[i] > errs[i-1]+1e-9 {
			t.Errorf("error increased from order %d to %d: %v -> %v", i, i+1, errs[i-1], errs[i])
		}
	}
}

func TestQuantizeCoefficientsRejectsAllZero(t *testing.T) {
	_, _, ok := QuantizeCoefficients([]float64{0, 0, 0}, 12)
	if ok {
		t.Errorf("QuantizeCoefficients() of all-zero input reported ok")
	}
}

func TestQuantizeCoefficientsApproximatesOriginal(t *testing.T) {
	lp := []float64{1.9, -1.1, 0.2}
	qlpCoeff, shift, ok := QuantizeCoefficients(lp, 12)
	if !ok {
		t.Fatalf("QuantizeCoefficients() failed")
	}
	for i, c := range lp {
		approx := float64(qlpCoeff[i]) / float64(int64(1)<<uint(shift))
		if math.Abs(approx-c) > 0.01 {
			t.Errorf("coefficient %d: approx %v, want close to %v", i, approx, c)
		}
	}
}

func TestWindowLengths(t *testing.T) {
	for _, a := range []Apodization{Rectangle, Welch, Hann, Tukey} {
		w := Window(a, 32, 0.5)
		if len(w) != 32 {
			t.Errorf("Window(%v) length = %d, want 32", a, len(w))
		}
	}
}
