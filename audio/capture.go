package audio

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/cwbudde/algo-vj/logging"
)

var (
	// ErrAborted is returned by Submit and Collect once Abort was called.
	ErrAborted = errors.New("audio: capture aborted")

	errQueueFull = errors.New("audio: submit queue full")
)

// Buffer is one block of interleaved signed 16-bit samples. Tag identifies
// the owner of the buffer; the device never changes it.
type Buffer struct {
	Samples []int16
	Tag     int
}

// Capture is an audio input device.
type Capture interface {
	// Submit queues b to be filled. It does not block.
	Submit(b *Buffer) error
	// Collect blocks until the oldest submitted buffer is filled.
	Collect() (*Buffer, error)
	// Abort discards every submitted buffer and unblocks Collect.
	Abort()
	// Close aborts and releases the device.
	Close() error
}

// Source produces samples, blocking as long as capture takes.
type Source interface {
	Read(samples []int16) error
}

// Device runs a Source on its own goroutine and implements Capture.
type Device struct {
	src     Source
	pending chan *Buffer
	filled  chan *Buffer
	abort   chan struct{}
	failed  chan struct{}

	abortOnce sync.Once
	closeOnce sync.Once
	wg        sync.WaitGroup
	err       error // set before failed is closed
}

// NewDevice starts capturing from src. Depth bounds the number of buffers
// that can be submitted at once.
func NewDevice(src Source, depth int) (*Device, error) {
	if src == nil {
		return nil, errors.New("audio: nil source")
	}
	if depth <= 0 {
		return nil, fmt.Errorf("audio: queue depth must be > 0: %d", depth)
	}
	d := &Device{
		src:     src,
		pending: make(chan *Buffer, depth),
		filled:  make(chan *Buffer, depth),
		abort:   make(chan struct{}),
		failed:  make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return d, nil
}

func (d *Device) run() {
	defer d.wg.Done()
	for {
		select {
		case <-d.abort:
			return
		case b := <-d.pending:
			if err := d.src.Read(b.Samples); err != nil {
				d.err = fmt.Errorf("audio: read: %w", err)
				close(d.failed)
				logging.Logger().Error("audio: capture failed", "err", err)
				return
			}
			select {
			case d.filled <- b:
			case <-d.abort:
				return
			}
		}
	}
}

// Submit queues b for capture.
func (d *Device) Submit(b *Buffer) error {
	select {
	case <-d.abort:
		return ErrAborted
	case <-d.failed:
		return d.err
	default:
	}
	select {
	case d.pending <- b:
		return nil
	default:
		return errQueueFull
	}
}

// Collect returns the next filled buffer. Buffers filled before a read
// failure are still returned.
func (d *Device) Collect() (*Buffer, error) {
	select {
	case b := <-d.filled:
		return b, nil
	default:
	}
	select {
	case b := <-d.filled:
		return b, nil
	case <-d.abort:
		return nil, ErrAborted
	case <-d.failed:
		return nil, d.err
	}
}

// Abort stops capture. Submitted buffers are dropped; their owners get them
// back by tag.
func (d *Device) Abort() {
	d.abortOnce.Do(func() { close(d.abort) })
}

// Close aborts, waits for the capture goroutine and closes the source when
// it is an io.Closer. Later calls do nothing.
func (d *Device) Close() error {
	var err error
	d.closeOnce.Do(func() {
		d.Abort()
		d.wg.Wait()
		if c, ok := d.src.(io.Closer); ok {
			err = c.Close()
		}
	})
	return err
}
