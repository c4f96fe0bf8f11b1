package mixer

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// StreamLogger records a channel's raw native-rate samples. The mixer only
// decides when logging starts and stops; the file format is the logger's.
type StreamLogger interface {
	Start(path string, sampleRate int) error
	Stop() error
	SetSkipSilence(skip bool)
	AddStereoSamples(samples []int16)
}

type streamLog struct {
	mu     sync.Mutex // serializes Start/Stop
	active atomic.Bool
	writer StreamLogger
}

func (m *Mixer) streamLog(ch Channel) (*streamLog, error) {
	if !ch.valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownChannel, ch)
	}
	l := &m.logs[ch]
	if l.writer == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotLoggable, ch)
	}
	return l, nil
}

// StartLog starts logging the raw samples pushed to ch into path, at the
// channel's current native rate. Starting an active log only warns.
func (m *Mixer) StartLog(ch Channel, path string) error {
	l, err := m.streamLog(ch)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.active.Load() {
		m.logger.Warn("audio logging has already been started", "channel", ch)
		return nil
	}

	if err := l.writer.Start(path, m.channels[ch].SampleRate()); err != nil {
		return fmt.Errorf("failed to start %s audio log: %w", ch, err)
	}
	l.writer.SetSkipSilence(false)
	l.active.Store(true)

	m.logger.Info("started audio logging", "channel", ch, "path", path)
	return nil
}

// StopLog stops logging ch. Stopping an inactive log only warns.
func (m *Mixer) StopLog(ch Channel) error {
	l, err := m.streamLog(ch)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.active.Load() {
		m.logger.Warn("audio logging has already been stopped", "channel", ch)
		return nil
	}

	l.active.Store(false)
	if err := l.writer.Stop(); err != nil {
		return fmt.Errorf("failed to stop %s audio log: %w", ch, err)
	}

	m.logger.Info("stopped audio logging", "channel", ch)
	return nil
}

// IsLogging reports whether raw samples of ch are being logged.
func (m *Mixer) IsLogging(ch Channel) bool {
	if !ch.valid() {
		return false
	}
	return m.logs[ch].active.Load()
}
