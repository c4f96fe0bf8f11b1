package mixer

import (
	"sync"
	"testing"
	"time"
)

// This file contains stress tests for the producer/consumer split.
//
// The producer and consumer run on separate goroutines as they would under
// an emulator and an audio backend. Run with -race: every shared field must
// be accessed atomically or under the configuration lock.

func TestMixerStress_ConcurrentPushMix(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping stress test in short mode")
	}

	m := newTestMixer(t)
	m.SetInputSampleRate(DMA, 32000)
	m.SetInputSampleRate(Speaker, 3000)

	stop := make(chan struct{})
	var wg sync.WaitGroup

	// produce runs push on its own goroutine until stop closes, one
	// producer per channel.
	produce := func(push func(i int)) {
		wg.Go(func() {
			for i := 0; ; i++ {
				select {
				case <-stop:
					return
				default:
				}
				push(i)
			}
		})
	}

	dma := constantFrames(533, 1000, 1000)
	streaming := constantFrames(800, -500, -500)
	speaker := []int16{100, 200, 300, 400, 500}
	produce(func(i int) { m.PushDMA(dma[:(i%533+1)*2]) })
	produce(func(int) { m.PushStreaming(streaming) })
	produce(func(i int) { m.PushSpeakerMono(speaker, 2000+i%2000) })

	// Logging toggled while the producers run
	wg.Go(func() {
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			ch := []Channel{DMA, Streaming}[i%2]
			if err := m.StartLog(ch, "stress.wav"); err != nil {
				t.Errorf("StartLog(%s) error: %v", ch, err)
				return
			}
			if err := m.StopLog(ch); err != nil {
				t.Errorf("StopLog(%s) error: %v", ch, err)
				return
			}
		}
	})

	// Configuration changes from another goroutine
	wg.Go(func() {
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			m.Configure(func(s Settings) {
				s.SetVolume(DMA, i%256, 255-i%256)
				s.SetSpeed(0.5 + float64(i%4)*0.5)
			})
		}
	})

	out := make([]int16, 960*2)
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		if n := m.Mix(out, true); n != 960 {
			t.Fatalf("Mix() = %d frames, want 960", n)
		}
		m.AvailableFrames()
	}

	close(stop)
	wg.Wait()

	for _, ch := range Channels() {
		if got := m.Channel(ch).AvailableFrames(); got < 0 || got > Capacity {
			t.Errorf("%s AvailableFrames() = %d, want within [0, %d]", ch, got, Capacity)
		}
		if w := m.writers[ch]; w != nil {
			w.mu.Lock()
			if w.starts != w.stops {
				t.Errorf("%s writer started %d and stopped %d times", ch, w.starts, w.stops)
			}
			w.mu.Unlock()
		}
	}
}

// TestMixerStress_ConfigureAtomic checks a Mix never sees half of a
// Configure call: both channels are muted and unmuted together.
func TestMixerStress_ConfigureAtomic(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping stress test in short mode")
	}

	m := newTestMixer(t)
	m.SetVolume(Speaker, 0, 0)
	m.PushDMA(constantFrames(1, 8192, 8192))
	m.PushStreaming(constantFrames(1, 8192, 8192))

	// Prime both channels so they hold their single frame
	m.Mix(make([]int16, 2), false)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Go(func() {
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			vol := 0
			if i%2 == 0 {
				vol = MaxVolume
			}
			m.Configure(func(s Settings) {
				s.SetVolume(DMA, vol, vol)
				s.SetVolume(Streaming, vol, vol)
			})
		}
	})

	// Both at 255: 2*8192*255/256. Exactly one: half that.
	const half = 8160
	out := make([]int16, 2)
	for range 20000 {
		m.Mix(out, false)
		if out[0] == half {
			close(stop)
			wg.Wait()
			t.Fatal("mix observed one channel muted and the other not")
		}
	}

	close(stop)
	wg.Wait()
}

func TestMixerStress_LoggingToggle(t *testing.T) {
	m := newTestMixer(t)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Go(func() {
		samples := constantFrames(64, 1, 1)
		for {
			select {
			case <-stop:
				return
			default:
			}
			m.PushDMA(samples)
		}
	})

	for range 100 {
		if err := m.StartLog(DMA, "dma.wav"); err != nil {
			t.Fatalf("StartLog() error: %v", err)
		}
		if err := m.StopLog(DMA); err != nil {
			t.Fatalf("StopLog() error: %v", err)
		}
	}

	close(stop)
	wg.Wait()

	w := m.writers[DMA]
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.starts != 100 || w.stops != 100 {
		t.Errorf("writer started %d and stopped %d times, want 100 each", w.starts, w.stops)
	}
}
