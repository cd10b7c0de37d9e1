package pipeline

import (
	"errors"
	"fmt"
)

var (
	errConfig     = errors.New("pipeline: invalid config")
	errRunning    = errors.New("pipeline: already running")
	errNotRunning = errors.New("pipeline: not running")
	errNoDevice   = errors.New("pipeline: missing device")
)

// DeviceError reports a failed device operation.
type DeviceError struct {
	Device string
	Op     string
	Err    error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("pipeline: %s %s: %v", e.Device, e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }
