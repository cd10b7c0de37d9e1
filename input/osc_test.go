package input

import (
	"errors"
	"net"
	"testing"
	"time"
)

func TestParseOSCMessage(t *testing.T) {
	pkt := AppendOSC(nil, OSCMessage{Address: "/vj/osc/2", Args: []any{float32(0.25), int32(-3), "hi"}})
	if len(pkt)%4 != 0 {
		t.Fatalf("packet length %d not padded", len(pkt))
	}
	msgs, err := ParseOSC(pkt)
	if err != nil {
		t.Fatalf("ParseOSC: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	m := msgs[0]
	if m.Address != "/vj/osc/2" || len(m.Args) != 3 {
		t.Fatalf("message = %+v", m)
	}
	if m.Args[0] != float32(0.25) || m.Args[1] != int32(-3) || m.Args[2] != "hi" {
		t.Fatalf("args = %#v", m.Args)
	}
}

func TestParseOSCBundle(t *testing.T) {
	a := AppendOSC(nil, OSCMessage{Address: "/vj/osc/1", Args: []any{float32(1)}})
	b := AppendOSC(nil, OSCMessage{Address: "/vj/osc/4", Args: []any{int32(2)}})
	pkt := appendOSCString(nil, "#bundle")
	pkt = append(pkt, 0, 0, 0, 0, 0, 0, 0, 1)
	for _, e := range [][]byte{a, b} {
		pkt = append(pkt, 0, 0, 0, byte(len(e)))
		pkt = append(pkt, e...)
	}
	msgs, err := ParseOSC(pkt)
	if err != nil {
		t.Fatalf("ParseOSC: %v", err)
	}
	var v OSCValues
	for _, m := range msgs {
		if !v.Dispatch(m) {
			t.Errorf("Dispatch(%s) not handled", m.Address)
		}
	}
	if got := v.OSC(); got != [OSCSlots]float32{1, 0, 0, 2} {
		t.Fatalf("OSC() = %v", got)
	}
}

func TestParseOSCErrors(t *testing.T) {
	tests := map[string][]byte{
		"unterminated": []byte("/abc"),
		"no slash":     appendOSCString(nil, "abc"),
		"short arg":    append(appendOSCString(appendOSCString(nil, "/a"), ",f"), 1, 2),
		"bad tag":      appendOSCString(appendOSCString(nil, "/a"), ",x"),
		"short bundle": appendOSCString(nil, "#bundle"),
	}
	for name, pkt := range tests {
		if _, err := ParseOSC(pkt); !errors.Is(err, ErrOSCPacket) {
			t.Errorf("%s: error = %v, want ErrOSCPacket", name, err)
		}
	}
}

func TestDispatchIgnoresForeignAddresses(t *testing.T) {
	var v OSCValues
	for _, m := range []OSCMessage{
		{Address: "/other", Args: []any{float32(1)}},
		{Address: "/vj/osc/0", Args: []any{float32(1)}},
		{Address: "/vj/osc/5", Args: []any{float32(1)}},
		{Address: "/vj/osc/1"},
		{Address: "/vj/osc/1", Args: []any{"text"}},
	} {
		if v.Dispatch(m) {
			t.Errorf("Dispatch(%+v) handled", m)
		}
	}
}

func TestOSCListener(t *testing.T) {
	l, err := ListenOSC("127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot listen on loopback: %v", err)
	}
	defer l.Close()

	conn, err := net.Dial("udp", l.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	pkt := AppendOSC(nil, OSCMessage{Address: "/vj/osc/3", Args: []any{float32(0.75)}})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn.Write(pkt)
		if l.OSC()[2] == 0.75 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("slot 3 = %v after sending packets", l.OSC()[2])
}
