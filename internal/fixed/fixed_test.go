package fixed

import "testing"

func TestResidualRestoreRoundTrip(t *testing.T) {
	samples := []int32{10, 12, 11, 15, 20, 18, 17, 16, 30, 29}
	for order := 0; order <= MaxOrder; order++ {
		residual := Residual(samples, order)
		out := make([]int32, len(samples))
		copy(out, samples[:order])
		Restore(out, order, residual)
		for i, v := range samples {
			if out[i] != v {
				t.Errorf("order %d: Restore()[%d] = %d, want %d", order, i, out[i], v)
			}
		}
	}
}

func TestBestOrderConstantSignalPrefersHighOrder(t *testing.T) {
	samples := make([]int32, 20)
	for i := range samples {
		samples[i] = 42
	}
	// A constant signal has zero residual at every order >= 1, so
	// BestOrder should not regress to order 0 (which has nonzero residual).
	order := BestOrder(samples)
	if order == 0 {
		t.Errorf("BestOrder() = 0 for a constant signal, want order >= 1 with zero residual")
	}
}
