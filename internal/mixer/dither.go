package mixer

import "math"

// quantize converts a normalised sample to int16. New uniform noise is added
// minus the previous draw for this side, which shapes the dither triangular
// and high-passes it. The result is clipped and rounded to nearest.
func (m *Mixer) quantize(v float32, prev *float32) int16 {
	v *= 32768

	if m.ditherAmp > 0 {
		d := (m.rng.Float32()*2 - 1) * m.ditherAmp
		v += d - *prev
		*prev = d
	}

	v = min(max(v, -32768), 32767)
	return int16(math.Floor(float64(v) + 0.5))
}
