package input

import (
	"fmt"
	"sync"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"github.com/cwbudde/algo-vj/logging"
)

// MIDISlots is the number of mapped MIDI controller values visible to
// patches.
const MIDISlots = 8

// maxPendingEvents bounds the raw event queue between two snapshots.
const maxPendingEvents = 256

// MIDIEvent is one control change.
type MIDIEvent struct {
	Channel    uint8
	Controller uint8
	Value      uint8
}

// MIDIControl selects the controller that feeds one slot.
type MIDIControl struct {
	Channel    uint8
	Controller uint8
}

// DefaultMIDIMap maps controllers 1..8 on channel 0 to the slots.
func DefaultMIDIMap() [MIDISlots]MIDIControl {
	var m [MIDISlots]MIDIControl
	for i := range m {
		m[i] = MIDIControl{Controller: uint8(i + 1)}
	}
	return m
}

// MIDISource reports mapped controller values and the raw events received
// since the previous call.
type MIDISource interface {
	// MIDI returns the mapped controller values scaled to 0..1.
	MIDI() [MIDISlots]float32
	// Events appends the pending events to dst and clears the queue.
	Events(dst []MIDIEvent) []MIDIEvent
}

// MIDIMapper is implemented by sources whose slot mapping can be replaced.
type MIDIMapper interface {
	SetMIDIMap(mapping [MIDISlots]MIDIControl)
}

// MIDIQueue collects control changes from any producer.
type MIDIQueue struct {
	mu      sync.Mutex
	mapping [MIDISlots]MIDIControl
	values  [MIDISlots]float32
	pending []MIDIEvent
	dropped int
}

// NewMIDIQueue returns a queue with the given slot mapping.
func NewMIDIQueue(mapping [MIDISlots]MIDIControl) *MIDIQueue {
	return &MIDIQueue{mapping: mapping}
}

// SetMIDIMap replaces the slot mapping. Slot values are kept until the
// newly mapped controllers move.
func (q *MIDIQueue) SetMIDIMap(mapping [MIDISlots]MIDIControl) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.mapping = mapping
}

// Push records one control change. When the queue is full the oldest
// event is dropped; slot values are always updated.
func (q *MIDIQueue) Push(ev MIDIEvent) {
	ev.Value &= 0x7f
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, m := range q.mapping {
		if m.Channel == ev.Channel && m.Controller == ev.Controller {
			q.values[i] = float32(ev.Value) / 127
		}
	}
	if len(q.pending) == maxPendingEvents {
		copy(q.pending, q.pending[1:])
		q.pending = q.pending[:len(q.pending)-1]
		q.dropped++
	}
	q.pending = append(q.pending, ev)
}

// HandleMessage decodes a MIDI message and pushes it when it is a control
// change. It reports whether the message was used.
func (q *MIDIQueue) HandleMessage(msg midi.Message) bool {
	var ch, ctrl, val uint8
	if !msg.GetControlChange(&ch, &ctrl, &val) {
		return false
	}
	q.Push(MIDIEvent{Channel: ch, Controller: ctrl, Value: val})
	return true
}

// MIDI implements MIDISource.
func (q *MIDIQueue) MIDI() [MIDISlots]float32 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.values
}

// Events implements MIDISource.
func (q *MIDIQueue) Events(dst []MIDIEvent) []MIDIEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	dst = append(dst, q.pending...)
	q.pending = q.pending[:0]
	if q.dropped > 0 {
		logging.Logger().Warn("input: midi events dropped", "count", q.dropped)
		q.dropped = 0
	}
	return dst
}

// ListenMIDI opens in and feeds every control change into q. The returned
// function stops listening and closes the port.
func ListenMIDI(in drivers.In, q *MIDIQueue) (stop func(), err error) {
	if err := in.Open(); err != nil {
		return nil, fmt.Errorf("input: open midi port %s: %w", in, err)
	}
	stopListen, err := midi.ListenTo(in, func(msg midi.Message, _ int32) {
		q.HandleMessage(msg)
	}, midi.HandleError(func(err error) {
		logging.Logger().Warn("input: midi listener error", "port", in.String(), "err", err)
	}))
	if err != nil {
		in.Close()
		return nil, fmt.Errorf("input: listen midi port %s: %w", in, err)
	}
	logging.Logger().Info("input: midi listening", "port", in.String())
	return func() {
		stopListen()
		in.Close()
	}, nil
}
