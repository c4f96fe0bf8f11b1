// Package source provides synthetic sound-chip producers for driving the mixer.
//
// Oscillators model clocked sound-chip voices:
//   - Pulse: square wave with 4 duty cycles
//   - Noise: LFSR noise in 15-bit or 7-bit mode
//
// A Synth renders an oscillator band-limited at the host chip clock, and a
// Feeder pushes rendered audio into mixer channels at the emulated pace.
package source

// MaxVolume is the highest oscillator volume (4-bit envelope range).
const MaxVolume = 15

// Oscillator is a clocked voice that changes level once per period.
type Oscillator interface {
	// Step advances one position and returns the new level in
	// [-MaxVolume, MaxVolume].
	Step() int
	// Period returns the number of chip clocks between steps.
	Period() int
}

// Duty cycle patterns (8 steps each).
var dutyPatterns = [4][8]uint8{
	{0, 0, 0, 0, 0, 0, 0, 1}, // 12.5%
	{1, 0, 0, 0, 0, 0, 0, 1}, // 25%
	{1, 0, 0, 0, 0, 1, 1, 1}, // 50%
	{0, 1, 1, 1, 1, 1, 1, 0}, // 75%
}

// Pulse is a square wave voice with a selectable duty cycle.
type Pulse struct {
	duty    uint8
	dutyPos uint8
	volume  uint8
	period  int
}

// NewPulse creates a pulse voice. duty selects 12.5%, 25%, 50% or 75%.
func NewPulse(duty, volume uint8) *Pulse {
	return &Pulse{
		duty:   duty & 0x03,
		volume: min(volume, MaxVolume),
		period: 1,
	}
}

// SetFrequency tunes the voice to hz given the chip clock.
func (p *Pulse) SetFrequency(clockRate, hz float64) {
	p.period = periodFor(clockRate, hz*8)
}

// SetVolume sets the output volume (0-15).
func (p *Pulse) SetVolume(volume uint8) {
	p.volume = min(volume, MaxVolume)
}

// Step advances to the next duty step.
func (p *Pulse) Step() int {
	p.dutyPos = (p.dutyPos + 1) % 8
	bit := dutyPatterns[p.duty][p.dutyPos]

	// Bipolar so the waveform is centred around 0
	return (int(bit)*2 - 1) * int(p.volume)
}

// Period returns clocks per duty step.
func (p *Pulse) Period() int {
	return p.period
}

// Noise is a pseudo-random voice driven by a linear feedback shift register.
type Noise struct {
	lfsr      uint16
	shortMode bool // 7-bit LFSR
	volume    uint8
	period    int
}

// NewNoise creates a noise voice. shortMode selects the 7-bit LFSR, which
// repeats quickly and sounds metallic.
func NewNoise(volume uint8, shortMode bool) *Noise {
	return &Noise{
		shortMode: shortMode,
		volume:    min(volume, MaxVolume),
		period:    1,
	}
}

// SetFrequency sets the LFSR clock rate given the chip clock.
func (n *Noise) SetFrequency(clockRate, hz float64) {
	n.period = periodFor(clockRate, hz)
}

// Step clocks the LFSR once.
func (n *Noise) Step() int {
	// XNOR bits 0 and 1
	bit0 := n.lfsr & 0x01
	bit1 := (n.lfsr >> 1) & 0x01
	xnor := ^(bit0 ^ bit1) & 0x01

	n.lfsr &= 0x7FFF
	n.lfsr |= xnor << 15
	if n.shortMode {
		n.lfsr &= ^uint16(0x80)
		n.lfsr |= xnor << 7
	}
	n.lfsr >>= 1

	// Output is inverted bit 0
	out := (^n.lfsr) & 0x01
	return (int(out)*2 - 1) * int(n.volume)
}

// Period returns clocks per LFSR step.
func (n *Noise) Period() int {
	return n.period
}

func periodFor(clockRate, hz float64) int {
	if hz <= 0 {
		return int(clockRate)
	}
	return max(int(clockRate/hz), 1)
}
