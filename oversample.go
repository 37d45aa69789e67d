package gosfzplayer

import "gonum.org/v1/gonum/floats"

// lerpTaps returns the two-tap linear interpolation weights for
// fractional position t in [0,1), normalized with gonum/floats so
// rounding in the division by f can never leave the taps summing to
// anything but exactly 1.
func lerpTaps(t float64) (w0, w1 float64) {
	taps := []float64{1 - t, t}
	if sum := floats.Sum(taps); sum != 0 {
		floats.Scale(1/sum, taps)
	}
	return taps[0], taps[1]
}

// oversample upsamples a decoded channel by an integer factor using
// linear interpolation, run once at load time so the render path never
// has to reason about oversampling. Factor 1 returns the input
// unchanged (no copy).
func oversample(in []float32, factor Oversampling) []float32 {
	if factor <= 1 || len(in) < 2 {
		return in
	}

	f := int(factor)
	out := make([]float32, (len(in)-1)*f+1)
	for i := 0; i < len(in)-1; i++ {
		a, b := float64(in[i]), float64(in[i+1])
		base := i * f
		for k := 0; k < f; k++ {
			w0, w1 := lerpTaps(float64(k) / float64(f))
			out[base+k] = float32(w0*a + w1*b)
		}
	}
	out[len(out)-1] = in[len(in)-1]
	return out
}

// oversampleChannels applies oversample to every channel of a decoded
// file. Loop and sample-end points stay in the original file's frame
// units; Region scales them by the same factor at render time.
func oversampleChannels(channels [][]float32, factor Oversampling) [][]float32 {
	if factor <= 1 {
		return channels
	}
	out := make([][]float32, len(channels))
	for i, ch := range channels {
		out[i] = oversample(ch, factor)
	}
	return out
}
