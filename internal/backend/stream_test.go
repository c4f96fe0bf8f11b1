package backend

import (
	"encoding/binary"
	"io"
	"math"
	"testing"
)

// rampMixer fills every sample with its index within the call.
type rampMixer struct {
	calls          int
	rateCorrection bool
}

func (m *rampMixer) Mix(samples []int16, rateCorrection bool) int {
	m.calls++
	m.rateCorrection = rateCorrection
	for i := range samples {
		samples[i] = int16(i - 2)
	}
	return len(samples) / 2
}

func (m *rampMixer) MixFloat(samples []float32, rateCorrection bool) int {
	m.calls++
	m.rateCorrection = rateCorrection
	for i := range samples {
		samples[i] = float32(i) / 8
	}
	return len(samples) / 2
}

func TestFormat_FrameSize(t *testing.T) {
	if got := FormatInt16.FrameSize(); got != 4 {
		t.Errorf("FormatInt16.FrameSize() = %d, want 4", got)
	}
	if got := FormatFloat32.FrameSize(); got != 8 {
		t.Errorf("FormatFloat32.FrameSize() = %d, want 8", got)
	}
}

func TestStream_ReadInt16(t *testing.T) {
	m := &rampMixer{}
	s := NewStream(m, FormatInt16, true)

	buf := make([]byte, 4*4+3) // four frames plus a partial one
	n, err := s.Read(buf)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if n != 16 {
		t.Fatalf("Read() = %d bytes, want 16 (whole frames only)", n)
	}
	if !m.rateCorrection {
		t.Error("rate correction flag not forwarded")
	}

	for i := range 8 {
		got := int16(binary.LittleEndian.Uint16(buf[i*2:]))
		if want := int16(i - 2); got != want {
			t.Errorf("sample %d = %d, want %d", i, got, want)
		}
	}
}

func TestStream_ReadFloat32(t *testing.T) {
	m := &rampMixer{}
	s := NewStream(m, FormatFloat32, false)
	if s.Format() != FormatFloat32 {
		t.Fatalf("Format() = %v, want FormatFloat32", s.Format())
	}

	buf := make([]byte, 3*8)
	n, err := s.Read(buf)
	if err != nil || n != 24 {
		t.Fatalf("Read() = %d, %v, want 24, nil", n, err)
	}

	for i := range 6 {
		got := math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
		if want := float32(i) / 8; got != want {
			t.Errorf("sample %d = %v, want %v", i, got, want)
		}
	}
}

func TestStream_ShortBuffer(t *testing.T) {
	m := &rampMixer{}
	s := NewStream(m, FormatFloat32, true)

	n, err := s.Read(make([]byte, 7))
	if n != 0 || err != nil {
		t.Errorf("Read() = %d, %v, want 0, nil", n, err)
	}
	if m.calls != 0 {
		t.Errorf("mixer called %d times for a sub-frame read", m.calls)
	}
}

func TestStream_IsInfinite(t *testing.T) {
	s := NewStream(&rampMixer{}, FormatInt16, true)
	n, err := io.ReadFull(s, make([]byte, 1<<16))
	if err != nil || n != 1<<16 {
		t.Errorf("ReadFull() = %d, %v, want %d, nil", n, err, 1<<16)
	}
}
