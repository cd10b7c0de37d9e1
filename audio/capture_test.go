package audio

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type countingSource struct {
	n      int16
	closed atomic.Bool
	fail   int16
	block  chan struct{}
}

func (s *countingSource) Read(samples []int16) error {
	if s.block != nil {
		<-s.block
	}
	s.n++
	if s.fail != 0 && s.n == s.fail {
		return errors.New("device unplugged")
	}
	for i := range samples {
		samples[i] = s.n
	}
	return nil
}

func (s *countingSource) Close() error {
	s.closed.Store(true)
	return nil
}

func TestDeviceFillsInOrder(t *testing.T) {
	src := &countingSource{}
	d, err := NewDevice(src, 4)
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	bufs := make([]*Buffer, 3)
	for i := range bufs {
		bufs[i] = &Buffer{Samples: make([]int16, 8), Tag: i}
		if err := d.Submit(bufs[i]); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	for i := range bufs {
		b, err := d.Collect()
		if err != nil {
			t.Fatalf("Collect: %v", err)
		}
		if b.Tag != i || b.Samples[0] != int16(i+1) {
			t.Fatalf("Collect() = tag %d sample %d, want tag %d sample %d", b.Tag, b.Samples[0], i, i+1)
		}
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !src.closed.Load() {
		t.Fatal("source not closed")
	}
	if err := d.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestAbortUnblocksCollect(t *testing.T) {
	src := &countingSource{block: make(chan struct{})}
	d, err := NewDevice(src, 2)
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	if err := d.Submit(&Buffer{Samples: make([]int16, 4)}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := d.Collect()
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	d.Abort()
	select {
	case err := <-done:
		if !errors.Is(err, ErrAborted) {
			t.Fatalf("Collect error = %v, want ErrAborted", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Collect still blocked after Abort")
	}
	if err := d.Submit(&Buffer{}); !errors.Is(err, ErrAborted) {
		t.Fatalf("Submit after Abort = %v, want ErrAborted", err)
	}
	close(src.block)
	d.Close()
}

func TestDeviceFailure(t *testing.T) {
	d, err := NewDevice(&countingSource{fail: 2}, 4)
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	defer d.Close()
	d.Submit(&Buffer{Samples: make([]int16, 2)})
	d.Submit(&Buffer{Samples: make([]int16, 2)})
	if _, err := d.Collect(); err != nil {
		t.Fatalf("first Collect: %v", err)
	}
	if _, err := d.Collect(); err == nil || errors.Is(err, ErrAborted) {
		t.Fatalf("second Collect error = %v, want the read failure", err)
	}
}

func TestSubmitQueueFull(t *testing.T) {
	src := &countingSource{block: make(chan struct{})}
	d, err := NewDevice(src, 1)
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	defer func() {
		close(src.block)
		d.Close()
	}()
	var full bool
	for i := 0; i < 3; i++ {
		if err := d.Submit(&Buffer{Samples: make([]int16, 2)}); err != nil {
			full = true
		}
	}
	if !full {
		t.Fatal("Submit never reported a full queue")
	}
}

func TestNewDeviceValidation(t *testing.T) {
	if _, err := NewDevice(nil, 1); err == nil {
		t.Fatal("NewDevice accepted a nil source")
	}
	if _, err := NewDevice(&Loop{}, 0); err == nil {
		t.Fatal("NewDevice accepted depth 0")
	}
}

func TestLoop(t *testing.T) {
	l := &Loop{PCM: []int16{1, 2, 3}}
	out := make([]int16, 5)
	l.Read(out)
	want := []int16{1, 2, 3, 1, 2}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("out = %v, want %v", out, want)
		}
	}
	silent := &Loop{}
	out[0] = 9
	silent.Read(out)
	if out[0] != 0 {
		t.Fatal("empty Loop is not silent")
	}
}

func TestTone(t *testing.T) {
	tone := &Tone{SampleRate: 48000, Channels: 2, Freqs: []float64{12000}, Amplitude: 1}
	out := make([]int16, 8)
	if err := tone.Read(out); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if out[0] != 0 || out[2] < 32766 || out[3] != out[2] {
		t.Fatalf("out = %v, want a quarter-rate sine on both channels", out)
	}
}
