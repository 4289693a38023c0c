package lpc

import "math"

// Apodization names a windowing function applied to a block before
// autocorrelation, trading off main-lobe width against side-lobe leakage.
// spec.md §9's Open Question on the apodization string grammar is resolved
// by this fixed enum: see DESIGN.md.
type Apodization int

const (
	// Rectangle applies no windowing.
	Rectangle Apodization = iota
	// Welch applies a Welch (parabolic) window.
	Welch
	// Hann applies a Hann window.
	Hann
	// Tukey applies a Tukey window with parameter P in (0,1]; P=0.5 is
	// libFLAC's usual default.
	Tukey
)

// Window returns the n-sample apodization window for a, evaluated in
// float64 the way libFLAC's window generators do. p is only used by
// Tukey.
func Window(a Apodization, n int, p float64) []float64 {
	w := make([]float64, n)
	switch a {
	case Rectangle:
		for i := range w {
			w[i] = 1
		}
	case Welch:
		nm1 := float64(n - 1)
		for i := range w {
			x := (float64(i) - nm1/2) / (nm1 / 2)
			w[i] = 1 - x*x
		}
	case Hann:
		nm1 := float64(n - 1)
		for i := range w {
			w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/nm1)
		}
	case Tukey:
		if p <= 0 {
			p = 0.5
		}
		taper := int(p * float64(n) / 2)
		for i := range w {
			switch {
			case i < taper:
				w[i] = 0.5 * (1 + math.Cos(math.Pi*(float64(i)/float64(taper)-1)))
			case i >= n-taper:
				w[i] = 0.5 * (1 + math.Cos(math.Pi*(float64(i-(n-taper))/float64(taper))))
			default:
				w[i] = 1
			}
		}
	default:
		for i := range w {
			w[i] = 1
		}
	}
	return w
}

// Apply multiplies samples by the window into a new float64 slice, ready
// for Autocorrelation; samples is not modified.
func Apply(samples []int32, w []float64) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = float64(s) * w[i]
	}
	return out
}
