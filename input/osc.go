package input

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cwbudde/algo-vj/logging"
)

// OSCSlots is the number of OSC values visible to patches.
const OSCSlots = 4

// OSCPrefix is the address prefix of the value slots. A message to
// /vj/osc/N with one numeric argument sets slot N (1-based).
const OSCPrefix = "/vj/osc/"

// OSCSource reports the latest OSC value of every slot.
type OSCSource interface {
	OSC() [OSCSlots]float32
}

// OSCValues holds the slot values. The zero value is ready to use.
type OSCValues struct {
	bits [OSCSlots]atomic.Uint32
}

// OSC returns a snapshot of every slot.
func (v *OSCValues) OSC() [OSCSlots]float32 {
	var out [OSCSlots]float32
	for i := range out {
		out[i] = math.Float32frombits(v.bits[i].Load())
	}
	return out
}

// Set stores x in slot i (0-based). Out-of-range slots are ignored.
func (v *OSCValues) Set(i int, x float32) {
	if i >= 0 && i < OSCSlots {
		v.bits[i].Store(math.Float32bits(x))
	}
}

// Dispatch applies one message to the slots. It reports whether the
// address named a slot.
func (v *OSCValues) Dispatch(m OSCMessage) bool {
	if !strings.HasPrefix(m.Address, OSCPrefix) || len(m.Args) == 0 {
		return false
	}
	n, err := strconv.Atoi(m.Address[len(OSCPrefix):])
	if err != nil || n < 1 || n > OSCSlots {
		return false
	}
	var x float32
	switch a := m.Args[0].(type) {
	case float32:
		x = a
	case int32:
		x = float32(a)
	default:
		return false
	}
	v.Set(n-1, x)
	return true
}

// OSCMessage is a decoded OSC message. Arguments are float32, int32,
// string or []byte.
type OSCMessage struct {
	Address string
	Args    []any
}

// ParseOSC decodes a packet, flattening bundles into their messages.
func ParseOSC(packet []byte) ([]OSCMessage, error) {
	var out []OSCMessage
	if err := parseOSC(packet, &out, 0); err != nil {
		return nil, err
	}
	return out, nil
}

const maxBundleDepth = 8

func parseOSC(p []byte, out *[]OSCMessage, depth int) error {
	if depth > maxBundleDepth {
		return fmt.Errorf("%w: bundles nested too deep", ErrOSCPacket)
	}
	s, rest, err := oscString(p)
	if err != nil {
		return err
	}
	if s == "#bundle" {
		if len(rest) < 8 {
			return fmt.Errorf("%w: short bundle", ErrOSCPacket)
		}
		rest = rest[8:] // time tag; messages apply immediately
		for len(rest) > 0 {
			if len(rest) < 4 {
				return fmt.Errorf("%w: short bundle element", ErrOSCPacket)
			}
			n := int(binary.BigEndian.Uint32(rest))
			rest = rest[4:]
			if n > len(rest) || n%4 != 0 {
				return fmt.Errorf("%w: bad bundle element size %d", ErrOSCPacket, n)
			}
			if err := parseOSC(rest[:n], out, depth+1); err != nil {
				return err
			}
			rest = rest[n:]
		}
		return nil
	}
	if !strings.HasPrefix(s, "/") {
		return fmt.Errorf("%w: address %q", ErrOSCPacket, s)
	}
	m := OSCMessage{Address: s}
	if len(rest) == 0 {
		*out = append(*out, m)
		return nil
	}
	tags, rest, err := oscString(rest)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(tags, ",") {
		return fmt.Errorf("%w: type tags %q", ErrOSCPacket, tags)
	}
	for _, t := range tags[1:] {
		switch t {
		case 'f', 'i':
			if len(rest) < 4 {
				return fmt.Errorf("%w: short argument", ErrOSCPacket)
			}
			u := binary.BigEndian.Uint32(rest)
			rest = rest[4:]
			if t == 'f' {
				m.Args = append(m.Args, math.Float32frombits(u))
			} else {
				m.Args = append(m.Args, int32(u))
			}
		case 's':
			var a string
			if a, rest, err = oscString(rest); err != nil {
				return err
			}
			m.Args = append(m.Args, a)
		case 'b':
			if len(rest) < 4 {
				return fmt.Errorf("%w: short blob", ErrOSCPacket)
			}
			n := int(binary.BigEndian.Uint32(rest))
			padded := (n + 3) &^ 3
			if padded > len(rest)-4 {
				return fmt.Errorf("%w: short blob", ErrOSCPacket)
			}
			m.Args = append(m.Args, append([]byte(nil), rest[4:4+n]...))
			rest = rest[4+padded:]
		case 'T':
			m.Args = append(m.Args, int32(1))
		case 'F', 'N':
			m.Args = append(m.Args, int32(0))
		default:
			return fmt.Errorf("%w: unsupported type tag %q", ErrOSCPacket, t)
		}
	}
	*out = append(*out, m)
	return nil
}

// oscString reads a NUL-terminated string padded to four bytes.
func oscString(p []byte) (string, []byte, error) {
	i := bytes.IndexByte(p, 0)
	if i < 0 {
		return "", nil, fmt.Errorf("%w: unterminated string", ErrOSCPacket)
	}
	n := (i + 4) &^ 3
	if n > len(p) {
		return "", nil, fmt.Errorf("%w: unpadded string", ErrOSCPacket)
	}
	return string(p[:i]), p[n:], nil
}

// AppendOSC encodes a message with float32, int32 and string arguments.
func AppendOSC(dst []byte, m OSCMessage) []byte {
	dst = appendOSCString(dst, m.Address)
	tags := []byte{','}
	for _, a := range m.Args {
		switch a.(type) {
		case float32:
			tags = append(tags, 'f')
		case int32:
			tags = append(tags, 'i')
		case string:
			tags = append(tags, 's')
		}
	}
	dst = appendOSCString(dst, string(tags))
	for _, a := range m.Args {
		switch a := a.(type) {
		case float32:
			dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(a))
		case int32:
			dst = binary.BigEndian.AppendUint32(dst, uint32(a))
		case string:
			dst = appendOSCString(dst, a)
		}
	}
	return dst
}

func appendOSCString(dst []byte, s string) []byte {
	dst = append(dst, s...)
	for n := 4 - len(s)%4; n > 0; n-- {
		dst = append(dst, 0)
	}
	return dst
}

// OSCListener receives OSC packets on a UDP socket and applies them to its
// values.
type OSCListener struct {
	OSCValues

	conn net.PacketConn
	wg   sync.WaitGroup
}

// ListenOSC opens a UDP socket on addr, for example ":7770".
func ListenOSC(addr string) (*OSCListener, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("input: osc listen: %w", err)
	}
	l := &OSCListener{conn: conn}
	l.wg.Add(1)
	go l.serve()
	logging.Logger().Info("input: osc listening", "addr", conn.LocalAddr().String())
	return l, nil
}

// Addr returns the local address of the socket.
func (l *OSCListener) Addr() net.Addr { return l.conn.LocalAddr() }

func (l *OSCListener) serve() {
	defer l.wg.Done()
	buf := make([]byte, 65536)
	for {
		n, from, err := l.conn.ReadFrom(buf)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				logging.Logger().Error("input: osc receive failed", "err", err)
			}
			return
		}
		msgs, err := ParseOSC(buf[:n])
		if err != nil {
			logging.Logger().Warn("input: dropping osc packet", "from", from.String(), "err", err)
			continue
		}
		for _, m := range msgs {
			if !l.Dispatch(m) {
				logging.Logger().Debug("input: unhandled osc message", "addr", m.Address)
			}
		}
	}
}

// Close stops the listener.
func (l *OSCListener) Close() error {
	err := l.conn.Close()
	l.wg.Wait()
	return err
}
