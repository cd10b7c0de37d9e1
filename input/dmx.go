package input

import (
	"fmt"
	"sync"
)

// UniverseSize is the number of channels in one DMX512 universe.
const UniverseSize = 512

// DMXReader reads channel levels. Channels are numbered from 1.
type DMXReader interface {
	ReadChannel(ch int) (uint8, error)
}

// DMXWriter sets channel levels. Channels are numbered from 1.
type DMXWriter interface {
	WriteChannel(ch int, v uint8) error
}

// Universe is an in-memory DMX universe. It serves as both the input and
// the output device, and as the buffer behind hardware adapters.
type Universe struct {
	mu sync.RWMutex
	ch [UniverseSize]uint8
}

// ReadChannel returns the level of channel ch.
func (u *Universe) ReadChannel(ch int) (uint8, error) {
	if ch < 1 || ch > UniverseSize {
		return 0, fmt.Errorf("%w: %d", ErrChannel, ch)
	}
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.ch[ch-1], nil
}

// WriteChannel sets channel ch to v.
func (u *Universe) WriteChannel(ch int, v uint8) error {
	if ch < 1 || ch > UniverseSize {
		return fmt.Errorf("%w: %d", ErrChannel, ch)
	}
	u.mu.Lock()
	u.ch[ch-1] = v
	u.mu.Unlock()
	return nil
}

// Snapshot returns a copy of every channel.
func (u *Universe) Snapshot() [UniverseSize]uint8 {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.ch
}

// DMXLevel converts a channel level to 0..1.
func DMXLevel(v uint8) float32 { return float32(v) / 255 }

// DMXValue converts 0..1 to a channel level, clamping out-of-range input.
func DMXValue(x float32) uint8 {
	switch {
	case !(x > 0):
		return 0
	case x >= 1:
		return 255
	}
	return uint8(x*255 + 0.5)
}
