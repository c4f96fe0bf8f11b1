// Package mixer implements the real-time audio mixing core.
//
// A Mixer combines three independently clocked PCM streams into a single
// stereo stream at a fixed host rate:
//   - DMA: the primary audio stream (cubic interpolation)
//   - Streaming: the background-track stream (cubic interpolation)
//   - Speaker: the low-rate auxiliary device speaker (linear interpolation)
//
// Emulation code pushes samples from its own goroutine while the audio
// backend pulls mixed output from another. Neither side ever waits on the
// other; overflow drops the oldest frames and underrun repeats the last one.
package mixer

import (
	"errors"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/richardwooding/mixcore/internal/log"
)

var (
	// ErrUnknownChannel indicates a channel outside DMA, Streaming and Speaker.
	ErrUnknownChannel = errors.New("unknown mixer channel")

	// ErrNotLoggable indicates a channel whose raw stream cannot be logged.
	ErrNotLoggable = errors.New("channel does not support stream logging")
)

// Channel identifies one of the mixer's input streams.
type Channel int

// Mixer channels.
const (
	DMA Channel = iota
	Streaming
	Speaker

	numChannels
)

// Default native rates of each channel (Hz).
const (
	DefaultDMARate       = 32000
	DefaultStreamingRate = 48000
	DefaultSpeakerRate   = 3000
)

// String returns the channel name.
func (ch Channel) String() string {
	switch ch {
	case DMA:
		return "dma"
	case Streaming:
		return "streaming"
	case Speaker:
		return "speaker"
	default:
		return "unknown"
	}
}

func (ch Channel) valid() bool {
	return ch >= DMA && ch < numChannels
}

// Channels lists every mixer channel in mixing order.
func Channels() []Channel {
	return []Channel{DMA, Streaming, Speaker}
}

// Mixer owns the three channel buffers and produces the mixed output.
type Mixer struct {
	outputRate int
	channels   [numChannels]*ChannelBuffer

	speed  atomic.Uint64 // float64 bits
	paused atomic.Bool

	// Guards compound configuration changes and the settings snapshot
	// taken at the start of every Mix. Never held while mixing samples.
	mu sync.Mutex

	logger *slog.Logger
	logs   [numChannels]streamLog

	overflowWarned [numChannels]atomic.Int64 // unix nanos

	// Speaker producer only.
	monoScratch []int16

	// Consumer only.
	accum       []float32
	snapshot    [numChannels]pullParams
	rng         *rand.Rand
	ditherAmp   float32
	ditherLeft  float32
	ditherRight float32
}

// New creates a mixer producing output at outputRate Hz. A non-positive
// output rate is floored to 1.
func New(outputRate int, opts ...Option) *Mixer {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}

	m := &Mixer{
		outputRate: max(outputRate, 1),
		logger:     cfg.logger,
		rng:        rand.New(rand.NewPCG(cfg.seed, cfg.seed^0x9E3779B97F4A7C15)), //nolint:gosec // Weak random is fine for audio dithering
		ditherAmp:  cfg.ditherAmplitude,
	}
	if m.logger == nil {
		m.logger = log.Component("mixer")
	}
	m.speed.Store(math.Float64bits(1.0))

	m.channels[DMA] = newChannelBuffer(m, DMA, cfg.rates[DMA], Cubic)
	m.channels[Streaming] = newChannelBuffer(m, Streaming, cfg.rates[Streaming], Cubic)
	m.channels[Speaker] = newChannelBuffer(m, Speaker, cfg.rates[Speaker], Linear)

	for _, ch := range []Channel{DMA, Streaming} {
		m.logs[ch].writer = cfg.loggerFactory(ch)
	}

	m.logger.Info("mixer initialized", "output_rate", m.outputRate)
	return m
}

// OutputSampleRate returns the fixed host playback rate.
func (m *Mixer) OutputSampleRate() int {
	return m.outputRate
}

// Channel returns the buffer backing ch, or nil for an unknown channel.
func (m *Mixer) Channel(ch Channel) *ChannelBuffer {
	if !ch.valid() {
		return nil
	}
	return m.channels[ch]
}

// Mix fills samples with len(samples)/2 interleaved int16 stereo frames and
// returns the frame count. The output is triangular-dithered and clipped.
//
// Mix and MixFloat belong to the consumer and must not run concurrently with
// each other.
func (m *Mixer) Mix(samples []int16, rateCorrection bool) int {
	frames := len(samples) / 2
	if m.paused.Load() {
		clear(samples[:frames*2])
		return frames
	}

	if cap(m.accum) < frames*2 {
		m.accum = make([]float32, frames*2)
	}
	accum := m.accum[:frames*2]
	clear(accum)
	m.mixChannels(accum, rateCorrection)

	for i := 0; i < frames*2; i += 2 {
		samples[i] = m.quantize(accum[i], &m.ditherLeft)
		samples[i+1] = m.quantize(accum[i+1], &m.ditherRight)
	}
	return frames
}

// maxFloatSample keeps float output inside [-1, 1).
const maxFloatSample = 32767.0 / 32768.0

// MixFloat fills samples with len(samples)/2 interleaved float32 stereo frames
// in [-1, 1) and returns the frame count. No dithering is applied.
func (m *Mixer) MixFloat(samples []float32, rateCorrection bool) int {
	frames := len(samples) / 2
	clear(samples[:frames*2])
	if m.paused.Load() {
		return frames
	}

	m.mixChannels(samples[:frames*2], rateCorrection)
	for i := range samples[:frames*2] {
		samples[i] = min(max(samples[i], -1), maxFloatSample)
	}
	return frames
}

// mixChannels snapshots the configuration under the lock, then pulls every
// channel into accum without it.
func (m *Mixer) mixChannels(accum []float32, rateCorrection bool) {
	m.mu.Lock()
	speed := m.Speed()
	for i, c := range m.channels {
		left, right := c.Volume()
		m.snapshot[i] = pullParams{
			inputRate:      c.SampleRate(),
			left:           left,
			right:          right,
			speed:          speed,
			rateCorrection: rateCorrection,
		}
	}
	m.mu.Unlock()

	for i, c := range m.channels {
		c.pull(accum, m.snapshot[i])
	}
}

// Push forwards interleaved stereo samples to ch. When logging is active for
// ch the raw samples are also handed to its logger.
func (m *Mixer) Push(ch Channel, samples []int16) {
	c := m.Channel(ch)
	if c == nil {
		return
	}

	if overrun := c.push(samples); overrun > 0 {
		m.warnOverflow(ch, overrun)
	}

	if l := &m.logs[ch]; l.active.Load() {
		l.writer.AddStereoSamples(samples)
	}
}

// PushDMA pushes samples to the DMA channel.
func (m *Mixer) PushDMA(samples []int16) {
	m.Push(DMA, samples)
}

// PushStreaming pushes samples to the streaming channel.
func (m *Mixer) PushStreaming(samples []int16) {
	m.Push(Streaming, samples)
}

// PushSpeaker pushes interleaved stereo samples to the speaker channel.
func (m *Mixer) PushSpeaker(samples []int16) {
	m.Push(Speaker, samples)
}

// PushSpeakerMono pushes mono speaker samples recorded at sampleRate. The
// speaker rate follows every push and the samples are duplicated to stereo.
// Batches of Capacity frames or more are dropped.
func (m *Mixer) PushSpeakerMono(samples []int16, sampleRate int) {
	if len(samples) >= Capacity {
		return
	}

	m.channels[Speaker].SetSampleRate(sampleRate)

	if cap(m.monoScratch) < len(samples)*2 {
		m.monoScratch = make([]int16, Capacity*2)
	}
	stereo := m.monoScratch[:len(samples)*2]
	for i, s := range samples {
		stereo[i*2] = s
		stereo[i*2+1] = s
	}
	m.Push(Speaker, stereo)
}

// warnOverflow reports dropped frames, at most once per second per channel.
func (m *Mixer) warnOverflow(ch Channel, frames int) {
	now := time.Now().UnixNano()
	last := m.overflowWarned[ch].Load()
	if now-last < int64(time.Second) {
		return
	}
	if m.overflowWarned[ch].CompareAndSwap(last, now) {
		m.logger.Warn("channel buffer overflow, dropping oldest frames", "channel", ch, "frames", frames)
	}
}

// Settings is the view of the mixer handed to a Configure callback.
type Settings struct {
	m *Mixer
}

// SetVolume sets the left and right volume of ch.
func (s Settings) SetVolume(ch Channel, left, right int) {
	if c := s.m.Channel(ch); c != nil {
		c.SetVolume(left, right)
	}
}

// SetInputSampleRate sets the native rate of ch.
func (s Settings) SetInputSampleRate(ch Channel, rate int) {
	if c := s.m.Channel(ch); c != nil {
		c.SetSampleRate(rate)
	}
}

// SetSpeed sets the emulation speed multiplier.
func (s Settings) SetSpeed(speed float64) {
	s.m.SetSpeed(speed)
}

// Configure applies every change made by fn as one unit: a concurrent Mix
// sees either none or all of them.
func (m *Mixer) Configure(fn func(Settings)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(Settings{m: m})
}

// SetInputSampleRate sets the native rate of ch.
func (m *Mixer) SetInputSampleRate(ch Channel, rate int) {
	m.Configure(func(s Settings) { s.SetInputSampleRate(ch, rate) })
}

// SetVolume sets the left and right volume of ch, clamped to [0, MaxVolume].
func (m *Mixer) SetVolume(ch Channel, left, right int) {
	m.Configure(func(s Settings) { s.SetVolume(ch, left, right) })
}

// Speed returns the current emulation speed multiplier (1.0 = full speed).
func (m *Mixer) Speed() float64 {
	return math.Float64frombits(m.speed.Load())
}

// SetSpeed updates the emulation speed multiplier. Non-positive and NaN
// values are stored as 1.0.
func (m *Mixer) SetSpeed(speed float64) {
	if !(speed > 0) || math.IsInf(speed, 0) {
		speed = 1.0
	}
	m.speed.Store(math.Float64bits(speed))
}

// SetPaused silences the output without consuming any buffered frames.
func (m *Mixer) SetPaused(paused bool) {
	m.paused.Store(paused)
}

// Paused reports whether the output is silenced.
func (m *Mixer) Paused() bool {
	return m.paused.Load()
}

// AvailableFrames returns the backlog of the first non-empty channel, in
// output-rate frames.
func (m *Mixer) AvailableFrames() int {
	for _, c := range m.channels {
		rate := c.SampleRate()
		if rate == 0 {
			continue
		}
		if n := c.AvailableFrames(); n > 0 {
			return int(int64(n) * int64(m.outputRate) / int64(rate))
		}
	}
	return 0
}
