package mixer

import (
	"math"
	"sync/atomic"
)

const (
	// Capacity is the ring size of every channel, in stereo frames.
	Capacity = 2048

	bufferSamples = Capacity * 2
	indexMask     = bufferSamples - 1

	// LowWatermark is the backlog, in frames, the rate controller steers towards.
	LowWatermark = 1280
	// MaxFreqShift bounds the rate correction, in Hz of input rate.
	MaxFreqShift = 200
	// ControlFactor is the proportional gain of the rate controller (Hz per frame).
	ControlFactor = 0.2
	// ControlAverage is the number of pulls the backlog is smoothed over.
	ControlAverage = 32

	// MaxVolume is full scale for a channel volume. The mixer divides by 256,
	// so MaxVolume passes samples at 255/256 rather than exact unity.
	MaxVolume = 255

	volumeDivisor = 256
)

// ChannelBuffer is a single-producer/single-consumer ring of interleaved stereo
// frames that is read back through a fractional resampler.
//
// The producer owns writeIndex and only ever calls Push. The consumer owns
// readIndex and the resampling state and only ever calls Pull. Neither side
// waits for the other: overflow overwrites the oldest frames and underrun
// repeats the last frame read.
type ChannelBuffer struct {
	mixer       *Mixer
	id          Channel
	kind        Interpolation
	interpolate interpolateFunc

	// Float32 bits of samples normalised to [-1, 1).
	buffer [bufferSamples]atomic.Uint32

	_          [7]uint64
	writeIndex atomic.Uint64 // producer
	_          [7]uint64
	readIndex  atomic.Uint64 // consumer
	_          [7]uint64

	inputRate atomic.Uint32
	volume    atomic.Uint32 // left<<8 | right

	// Consumer only.
	fraction   float64
	avgBacklog float64
	lastLeft   float32
	lastRight  float32
}

// pullParams is the configuration a single Pull runs with.
type pullParams struct {
	inputRate      int
	left, right    int
	speed          float64
	rateCorrection bool
}

func newChannelBuffer(m *Mixer, id Channel, rate int, kind Interpolation) *ChannelBuffer {
	c := &ChannelBuffer{
		mixer:       m,
		id:          id,
		kind:        kind,
		interpolate: kind.resolve(),
	}
	c.SetSampleRate(rate)
	c.SetVolume(MaxVolume, MaxVolume)
	return c
}

// Interpolation returns the strategy this channel was built with.
func (c *ChannelBuffer) Interpolation() Interpolation {
	return c.kind
}

// frame loads the stereo frame at absolute frame position f.
func (c *ChannelBuffer) frame(f uint64) (float32, float32) {
	i := f * 2
	return math.Float32frombits(c.buffer[i&indexMask].Load()),
		math.Float32frombits(c.buffer[(i+1)&indexMask].Load())
}

// Push appends interleaved stereo frames. A trailing odd sample is ignored.
// It never blocks; if the unread backlog would exceed Capacity the oldest
// frames are overwritten.
func (c *ChannelBuffer) Push(samples []int16) {
	c.push(samples)
}

// push returns how many frames overran unread data.
func (c *ChannelBuffer) push(samples []int16) int {
	frames := len(samples) / 2
	if frames == 0 {
		return 0
	}

	read := c.readIndex.Load()
	write := c.writeIndex.Load()

	// Only the newest Capacity frames of an oversized batch can survive.
	skip := 0
	if frames > Capacity {
		skip = frames - Capacity
	}
	for i := skip * 2; i < frames*2; i++ {
		v := float32(samples[i]) / 32768
		c.buffer[(write+uint64(i))&indexMask].Store(math.Float32bits(v))
	}
	c.writeIndex.Store(write + uint64(frames)*2)

	backlog := int(min(write-read, bufferSamples)/2) + frames
	if backlog <= Capacity {
		return 0
	}
	return min(backlog-Capacity, frames)
}

// Interpolate returns the frame at position pos+frac using the channel's
// strategy. Neighbours that are not readable are clamped to the readable
// range. On an empty channel it returns silence.
func (c *ChannelBuffer) Interpolate(pos uint64, frac float32) (left, right float32) {
	lo, hi, ok := c.readable(c.writeIndex.Load())
	if !ok {
		return 0, 0
	}
	pos = min(max(pos, lo), hi)
	return c.interpolate(c, pos, lo, hi, frac)
}

// readable returns the inclusive frame range still held by the ring.
func (c *ChannelBuffer) readable(write uint64) (lo, hi uint64, ok bool) {
	end := write / 2
	if end == 0 {
		return 0, 0, false
	}
	if end > Capacity {
		lo = end - Capacity
	}
	return lo, end - 1, true
}

// Pull resamples len(out)/2 frames to the mixer's output rate and adds them,
// volume scaled, into out. It always produces the full count: once the ring
// runs dry the last frame read is repeated.
func (c *ChannelBuffer) Pull(out []float32, rateCorrection bool) {
	left, right := c.Volume()
	c.pull(out, pullParams{
		inputRate:      c.SampleRate(),
		left:           left,
		right:          right,
		speed:          c.mixer.Speed(),
		rateCorrection: rateCorrection,
	})
}

func (c *ChannelBuffer) pull(out []float32, p pullParams) {
	frames := len(out) / 2

	read := c.readIndex.Load()
	write := c.writeIndex.Load()

	// Drop whatever the producer has already overwritten.
	if write-read > bufferSamples {
		read = write - bufferSamples
	}

	backlog := float64((write - read) / 2)
	c.avgBacklog = (backlog + c.avgBacklog*(ControlAverage-1)) / ControlAverage

	rate := float64(p.inputRate)
	if p.rateCorrection {
		offset := (c.avgBacklog - LowWatermark) * ControlFactor
		rate += min(max(offset, -MaxFreqShift), MaxFreqShift)
		rate = max(rate, 0)
	}
	// A step past the whole ring only drains it, so cap it there.
	step := min(rate*p.speed/float64(c.mixer.outputRate), Capacity)
	if math.IsNaN(c.fraction) || math.IsInf(c.fraction, 0) {
		c.fraction = 0
	}

	volLeft := float32(p.left) / volumeDivisor
	volRight := float32(p.right) / volumeDivisor

	pos := read / 2
	end := write / 2
	lo, hi, _ := c.readable(write)

	for i := range frames {
		if pos < end {
			c.lastLeft, c.lastRight = c.interpolate(c, pos, lo, hi, float32(c.fraction))

			c.fraction += step
			whole := math.Floor(c.fraction)
			c.fraction -= whole
			if whole >= float64(end-pos) {
				pos = end
			} else {
				pos += uint64(whole)
			}
		}
		out[i*2] += c.lastLeft * volLeft
		out[i*2+1] += c.lastRight * volRight
	}

	c.readIndex.Store(pos * 2)
}

// AvailableFrames returns the unread backlog in frames, at most Capacity.
func (c *ChannelBuffer) AvailableFrames() int {
	// read first: write only grows, so write >= read holds for this pair.
	read := c.readIndex.Load()
	write := c.writeIndex.Load()
	return int(min(write-read, bufferSamples) / 2)
}

// SetSampleRate sets the native rate of the pushed samples. Negative rates
// are stored as 0, which stalls the read cursor.
func (c *ChannelBuffer) SetSampleRate(rate int) {
	c.inputRate.Store(uint32(min(max(int64(rate), 0), math.MaxUint32)))
}

// SampleRate returns the native rate of the pushed samples.
func (c *ChannelBuffer) SampleRate() int {
	return int(c.inputRate.Load())
}

// SetVolume sets both volumes at once, each clamped to [0, MaxVolume].
func (c *ChannelBuffer) SetVolume(left, right int) {
	l := uint32(min(max(left, 0), MaxVolume))
	r := uint32(min(max(right, 0), MaxVolume))
	c.volume.Store(l<<8 | r)
}

// Volume returns the left and right volume.
func (c *ChannelBuffer) Volume() (left, right int) {
	v := c.volume.Load()
	return int(v >> 8 & 0xFF), int(v & 0xFF)
}
