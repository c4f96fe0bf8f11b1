package mixer

// Interpolation selects how a channel reconstructs a sample that falls between
// two stored frames.
type Interpolation uint8

const (
	// Linear blends the current frame with the next one (2 taps).
	Linear Interpolation = iota
	// Cubic runs a Catmull-Rom spline over four neighbouring frames.
	Cubic
)

// String returns the interpolation name.
func (i Interpolation) String() string {
	switch i {
	case Linear:
		return "linear"
	case Cubic:
		return "cubic"
	default:
		return "unknown"
	}
}

// interpolateFunc produces one stereo frame at frame position pos+frac.
// Frames outside [lo, hi] are not readable and get clamped to the nearest edge.
type interpolateFunc func(c *ChannelBuffer, pos, lo, hi uint64, frac float32) (left, right float32)

// resolve picks the hot-path function once, at channel construction.
func (i Interpolation) resolve() interpolateFunc {
	if i == Linear {
		return interpolateLinear
	}
	return interpolateCubic
}

// clampFrame offsets pos by off frames, staying inside [lo, hi].
func clampFrame(pos uint64, off int, lo, hi uint64) uint64 {
	if off < 0 {
		d := uint64(-off)
		if pos < lo+d {
			return lo
		}
		return pos - d
	}
	p := pos + uint64(off)
	if p > hi {
		return hi
	}
	return p
}

func interpolateLinear(c *ChannelBuffer, pos, lo, hi uint64, frac float32) (float32, float32) {
	l0, r0 := c.frame(pos)
	l1, r1 := c.frame(clampFrame(pos, 1, lo, hi))
	return l0 + (l1-l0)*frac, r0 + (r1-r0)*frac
}

// Catmull-Rom basis, rows are the weights of taps pos-1, pos, pos+1, pos+2
// as cubic polynomials in frac (x^3, x^2, x, 1).
var cubicCoeffs = [4][4]float32{
	{-0.5, 1.0, -0.5, 0.0},
	{1.5, -2.5, 0.0, 1.0},
	{-1.5, 2.0, 0.5, 0.0},
	{0.5, -0.5, 0.0, 0.0},
}

func interpolateCubic(c *ChannelBuffer, pos, lo, hi uint64, frac float32) (float32, float32) {
	x1 := frac
	x2 := x1 * x1
	x3 := x2 * x1

	var left, right float32
	for tap := range 4 {
		k := &cubicCoeffs[tap]
		w := k[0]*x3 + k[1]*x2 + k[2]*x1 + k[3]
		l, r := c.frame(clampFrame(pos, tap-1, lo, hi))
		left += w * l
		right += w * r
	}
	return left, right
}
