package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/richardwooding/mixcore/internal/mixer"
	"github.com/richardwooding/mixcore/internal/source"
)

// Meter window size in pixels, before scaling.
const (
	meterWidth  = 240
	meterHeight = 120
)

// Speed adjustment per key press, and the slowest selectable speed.
const (
	speedStep = 0.25
	minSpeed  = 0.25
)

// Meter implements the Ebiten game interface. It plays the role of the
// emulated machine: every tick produces one frame's worth of audio, and the
// window shows the live state of each channel.
type Meter struct {
	mixer    *mixer.Mixer
	feeder   *source.Feeder
	deadline time.Time
	text     strings.Builder
}

// NewMeter creates a meter window. A positive duration closes the window
// after that long.
func NewMeter(m *mixer.Mixer, f *source.Feeder, duration time.Duration) *Meter {
	d := &Meter{
		mixer:  m,
		feeder: f,
	}
	if duration > 0 {
		d.deadline = time.Now().Add(duration)
	}
	return d
}

// Update runs one tick of the producers.
// This is called TPS times per second by Ebiten.
func (d *Meter) Update() error {
	if !d.deadline.IsZero() && time.Now().After(d.deadline) {
		return ebiten.Termination
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}

	d.handleInput()

	d.feeder.Tick(time.Second / time.Duration(ebiten.TPS()))
	return nil
}

// handleInput maps keys to speed and pause changes.
func (d *Meter) handleInput() {
	speed := d.mixer.Speed()
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyEqual), inpututil.IsKeyJustPressed(ebiten.KeyArrowUp):
		d.mixer.SetSpeed(speed + speedStep)
	case inpututil.IsKeyJustPressed(ebiten.KeyMinus), inpututil.IsKeyJustPressed(ebiten.KeyArrowDown):
		d.mixer.SetSpeed(max(speed-speedStep, minSpeed))
	case inpututil.IsKeyJustPressed(ebiten.KeyDigit0):
		d.mixer.SetSpeed(1.0)
	}

	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		d.mixer.SetPaused(!d.mixer.Paused())
	}
}

// Draw prints the channel stats.
func (d *Meter) Draw(screen *ebiten.Image) {
	d.text.Reset()

	state := "playing"
	if d.mixer.Paused() {
		state = "paused"
	}
	fmt.Fprintf(&d.text, "%d Hz  speed %.2fx  %s\n\n", d.mixer.OutputSampleRate(), d.mixer.Speed(), state)

	for _, ch := range mixer.Channels() {
		buf := d.mixer.Channel(ch)
		fmt.Fprintf(&d.text, "%-9s %5d Hz %4d/%d\n", ch, buf.SampleRate(), buf.AvailableFrames(), mixer.Capacity)
		if d.mixer.IsLogging(ch) {
			d.text.WriteString("          logging\n")
		}
	}

	fmt.Fprintf(&d.text, "\nbacklog %d frames\n", d.mixer.AvailableFrames())
	d.text.WriteString("\n+/- speed  0 reset  space pause")

	ebitenutil.DebugPrint(screen, d.text.String())
}

// Layout returns the meter screen size.
func (d *Meter) Layout(_, _ int) (int, int) {
	return meterWidth, meterHeight
}
