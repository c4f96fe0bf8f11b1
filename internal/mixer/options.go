package mixer

import (
	"log/slog"
	"time"

	"github.com/richardwooding/mixcore/internal/wavlog"
)

// DefaultDitherAmplitude is the peak of each uniform dither draw, in LSBs.
// Differencing two draws gives triangular noise spanning +-2*amplitude.
const DefaultDitherAmplitude = 0.5

// Option configures a Mixer at construction.
type Option func(*options)

type options struct {
	logger          *slog.Logger
	seed            uint64
	ditherAmplitude float32
	rates           [numChannels]int
	loggerFactory   func(Channel) StreamLogger
}

func defaultOptions() options {
	return options{
		seed:            uint64(time.Now().UnixNano()), //nolint:gosec // Seed only
		ditherAmplitude: DefaultDitherAmplitude,
		rates:           [numChannels]int{DefaultDMARate, DefaultStreamingRate, DefaultSpeakerRate},
		loggerFactory: func(Channel) StreamLogger {
			return wavlog.New()
		},
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithDitherSeed seeds the dither generator, making integer output reproducible.
func WithDitherSeed(seed uint64) Option {
	return func(o *options) {
		o.seed = seed
	}
}

// WithDitherAmplitude sets the dither amplitude in LSBs. Zero disables dithering.
func WithDitherAmplitude(amplitude float32) Option {
	return func(o *options) {
		o.ditherAmplitude = max(amplitude, 0)
	}
}

// WithInputSampleRate overrides the initial native rate of ch.
func WithInputSampleRate(ch Channel, rate int) Option {
	return func(o *options) {
		if ch.valid() {
			o.rates[ch] = rate
		}
	}
}

// WithStreamLoggers replaces the WAV writers used for raw stream logging.
func WithStreamLoggers(factory func(Channel) StreamLogger) Option {
	return func(o *options) {
		if factory != nil {
			o.loggerFactory = factory
		}
	}
}
