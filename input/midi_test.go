package input

import (
	"testing"

	"gitlab.com/gomidi/midi/v2"
)

func TestMIDIQueueMapping(t *testing.T) {
	q := NewMIDIQueue(DefaultMIDIMap())
	if !q.HandleMessage(midi.ControlChange(0, 3, 127)) {
		t.Fatal("control change not handled")
	}
	if q.HandleMessage(midi.NoteOn(0, 60, 100)) {
		t.Fatal("note on handled as control change")
	}
	q.Push(MIDIEvent{Channel: 5, Controller: 1, Value: 64})

	vals := q.MIDI()
	if vals[2] != 1 {
		t.Fatalf("slot 3 = %v, want 1", vals[2])
	}
	if vals[0] != 0 {
		t.Fatalf("slot 1 = %v, want 0 for an unmapped channel", vals[0])
	}

	evs := q.Events(nil)
	want := []MIDIEvent{{0, 3, 127}, {5, 1, 64}}
	if len(evs) != len(want) {
		t.Fatalf("Events() = %v, want %v", evs, want)
	}
	for i := range want {
		if evs[i] != want[i] {
			t.Fatalf("Events()[%d] = %v, want %v", i, evs[i], want[i])
		}
	}
	if evs := q.Events(nil); len(evs) != 0 {
		t.Fatalf("second Events() = %v, want empty", evs)
	}
}

func TestMIDIQueueBounded(t *testing.T) {
	q := NewMIDIQueue(DefaultMIDIMap())
	for i := 0; i < maxPendingEvents+10; i++ {
		q.Push(MIDIEvent{Controller: 20, Value: uint8(i)})
	}
	evs := q.Events(nil)
	if len(evs) != maxPendingEvents {
		t.Fatalf("got %d events, want %d", len(evs), maxPendingEvents)
	}
	if evs[0].Value != 10&0x7f {
		t.Fatalf("oldest event value = %d, want 10", evs[0].Value)
	}
}

func TestMIDIQueueSetMap(t *testing.T) {
	q := NewMIDIQueue(DefaultMIDIMap())
	var m [MIDISlots]MIDIControl
	for i := range m {
		m[i] = MIDIControl{Channel: 2, Controller: uint8(70 + i)}
	}
	var _ MIDIMapper = q
	q.SetMIDIMap(m)
	q.Push(MIDIEvent{Channel: 0, Controller: 1, Value: 127})
	q.Push(MIDIEvent{Channel: 2, Controller: 71, Value: 127})
	vals := q.MIDI()
	if vals[0] != 0 {
		t.Fatalf("slot 1 = %v, want 0 after remapping", vals[0])
	}
	if vals[1] != 1 {
		t.Fatalf("slot 2 = %v, want 1", vals[1])
	}
}
