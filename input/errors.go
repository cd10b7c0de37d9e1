package input

import "errors"

var (
	// ErrChannel is returned for DMX channels outside 1..UniverseSize.
	ErrChannel = errors.New("input: DMX channel out of range")
	// ErrOSCPacket is returned for OSC packets that cannot be decoded.
	ErrOSCPacket = errors.New("input: malformed OSC packet")
)
