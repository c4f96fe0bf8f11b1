package source

import (
	"time"

	"github.com/richardwooding/mixcore/internal/mixer"
)

// Producer renders interleaved stereo PCM at its own native rate.
type Producer interface {
	Render(frames int) []int16
	SampleRate() int
}

// Sink receives rendered audio. *mixer.Mixer satisfies it.
type Sink interface {
	Push(ch mixer.Channel, samples []int16)
	Speed() float64
}

// renderChunk is the most frames requested from a producer at once.
const renderChunk = 256

type binding struct {
	ch       mixer.Channel
	producer Producer
	carry    float64
	frames   uint64
}

// Feeder paces producers like an emulated machine would: every tick renders
// the audio produced in that much emulated time and pushes it to the sink.
// Running faster than real time produces proportionally more audio per tick.
type Feeder struct {
	sink     Sink
	bindings []*binding
}

// NewFeeder creates a feeder pushing into sink.
func NewFeeder(sink Sink) *Feeder {
	return &Feeder{sink: sink}
}

// Bind routes producer into ch.
func (f *Feeder) Bind(ch mixer.Channel, producer Producer) {
	f.bindings = append(f.bindings, &binding{ch: ch, producer: producer})
}

// Tick produces d of wall-clock time worth of audio at the sink's speed.
func (f *Feeder) Tick(d time.Duration) {
	speed := f.sink.Speed()
	for _, b := range f.bindings {
		want := float64(b.producer.SampleRate())*d.Seconds()*speed + b.carry
		frames := int(want)
		b.carry = want - float64(frames)

		chunk := renderChunk
		if lim, ok := b.producer.(interface{ MaxFrames() int }); ok {
			chunk = max(min(chunk, lim.MaxFrames()-1), 1)
		}

		for frames > 0 {
			n := min(frames, chunk)
			frames -= n

			samples := b.producer.Render(n)
			if len(samples) < 2 {
				continue
			}
			f.sink.Push(b.ch, samples)
			b.frames += uint64(len(samples) / 2)
		}
	}
}

// Frames returns how many frames have been pushed to ch.
func (f *Feeder) Frames(ch mixer.Channel) uint64 {
	var total uint64
	for _, b := range f.bindings {
		if b.ch == ch {
			total += b.frames
		}
	}
	return total
}
