package source

import (
	"io"
	"testing"
	"time"

	"github.com/richardwooding/mixcore/internal/log"
	"github.com/richardwooding/mixcore/internal/mixer"
)

type fakeProducer struct {
	rate  int
	calls []int
	buf   []int16
}

func (p *fakeProducer) Render(frames int) []int16 {
	p.calls = append(p.calls, frames)
	if cap(p.buf) < frames*2 {
		p.buf = make([]int16, frames*2)
	}
	return p.buf[:frames*2]
}

func (p *fakeProducer) SampleRate() int {
	return p.rate
}

type limitedProducer struct {
	fakeProducer
	limit int
}

func (p *limitedProducer) MaxFrames() int {
	return p.limit
}

type fakeSink struct {
	speed  float64
	pushed map[mixer.Channel]int
}

func newFakeSink(speed float64) *fakeSink {
	return &fakeSink{speed: speed, pushed: make(map[mixer.Channel]int)}
}

func (s *fakeSink) Push(ch mixer.Channel, samples []int16) {
	s.pushed[ch] += len(samples) / 2
}

func (s *fakeSink) Speed() float64 {
	return s.speed
}

func TestFeeder_Tick(t *testing.T) {
	tests := []struct {
		name      string
		rate      int
		speed     float64
		tick      time.Duration
		wantCalls []int
	}{
		{"one chunk", 48000, 1, 5 * time.Millisecond, []int{240}},
		{"split", 48000, 1, 10 * time.Millisecond, []int{256, 224}},
		{"double speed", 32000, 2, 5 * time.Millisecond, []int{256, 64}},
		{"half speed", 3000, 0.5, 100 * time.Millisecond, []int{150}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := newFakeSink(tt.speed)
			p := &fakeProducer{rate: tt.rate}

			f := NewFeeder(sink)
			f.Bind(mixer.Streaming, p)
			f.Tick(tt.tick)

			if len(p.calls) != len(tt.wantCalls) {
				t.Fatalf("Render calls = %v, want %v", p.calls, tt.wantCalls)
			}
			total := 0
			for i, n := range tt.wantCalls {
				if p.calls[i] != n {
					t.Errorf("call %d rendered %d frames, want %d", i, p.calls[i], n)
				}
				total += n
			}
			if sink.pushed[mixer.Streaming] != total {
				t.Errorf("pushed %d frames, want %d", sink.pushed[mixer.Streaming], total)
			}
			if f.Frames(mixer.Streaming) != uint64(total) {
				t.Errorf("Frames() = %d, want %d", f.Frames(mixer.Streaming), total)
			}
		})
	}
}

func TestFeeder_Carry(t *testing.T) {
	sink := newFakeSink(1)
	p := &fakeProducer{rate: 44100}

	f := NewFeeder(sink)
	f.Bind(mixer.DMA, p)
	for range 1000 {
		f.Tick(time.Millisecond)
	}

	// 44.1 frames per tick must not round away
	if got := sink.pushed[mixer.DMA]; got < 44099 || got > 44100 {
		t.Errorf("pushed %d frames over one second, want 44100", got)
	}
}

func TestFeeder_MaxFrames(t *testing.T) {
	sink := newFakeSink(1)
	p := &limitedProducer{fakeProducer: fakeProducer{rate: 48000}, limit: 100}

	f := NewFeeder(sink)
	f.Bind(mixer.DMA, p)
	f.Tick(5 * time.Millisecond)

	for i, n := range p.calls {
		if n > 99 {
			t.Errorf("call %d rendered %d frames, want at most 99", i, n)
		}
	}
	if sink.pushed[mixer.DMA] != 240 {
		t.Errorf("pushed %d frames, want 240", sink.pushed[mixer.DMA])
	}
}

func TestFeeder_Mixer(t *testing.T) {
	m := mixer.New(48000,
		mixer.WithLogger(log.NewWithWriter(io.Discard, "error")),
		mixer.WithInputSampleRate(mixer.DMA, 32000),
		mixer.WithInputSampleRate(mixer.Speaker, 3000),
	)

	pulse := NewPulse(2, 12)
	pulse.SetFrequency(DefaultClockRate, 440)
	noise := NewNoise(6, true)
	noise.SetFrequency(DefaultClockRate, 1000)

	f := NewFeeder(m)
	f.Bind(mixer.DMA, NewSynth(pulse, DefaultClockRate, 32000))
	f.Bind(mixer.Speaker, NewSynth(noise, DefaultClockRate, 3000))
	f.Tick(20 * time.Millisecond)

	tests := []struct {
		ch   mixer.Channel
		want int
	}{
		{mixer.DMA, 640},
		{mixer.Streaming, 0},
		{mixer.Speaker, 60},
	}
	for _, tt := range tests {
		got := m.Channel(tt.ch).AvailableFrames()
		if got < tt.want-2 || got > tt.want+2 {
			t.Errorf("%s holds %d frames, want about %d", tt.ch, got, tt.want)
		}
	}
}
