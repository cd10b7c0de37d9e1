package fpvm

import (
	"testing"

	"github.com/cwbudde/algo-vj/pfpu"
)

func TestScheduleWriteAfterRead(t *testing.T) {
	f := NewFragment(false)
	a := mustBind(t, f, "a")
	b := mustBind(t, f, "b")
	mustAssign(t, f, "a", "b")
	mustAssign(t, f, "b", "a + 1")
	seal(t, f)
	p := compile(t, f)

	regs := p.Init
	regs[f.Register(a)] = 10
	regs[f.Register(b)] = 20
	runScalar(t, p, &regs)
	if regs[f.Register(a)] != 20 || regs[f.Register(b)] != 21 {
		t.Fatalf("a=%v b=%v, want 20 21\n%v", regs[f.Register(a)], regs[f.Register(b)], pfpu.Disassemble(p.Code))
	}
}

func TestScheduleWaitsForLatency(t *testing.T) {
	f := NewFragment(false)
	x := mustBind(t, f, "x")
	mustAssign(t, f, "x", "sqrt(x) / 2")
	seal(t, f)
	p := compile(t, f)

	want := pfpu.OpSQRT.Latency() + pfpu.OpFDIV.Latency()
	if p.Len() < want {
		t.Fatalf("Len() = %d, want at least %d", p.Len(), want)
	}
	regs := p.Init
	regs[f.Register(x)] = 16
	runScalar(t, p, &regs)
	if got := regs[f.Register(x)]; got != 2 {
		t.Fatalf("x = %v, want 2", got)
	}
}

func TestScheduleEmptyProgram(t *testing.T) {
	f := NewFragment(false)
	seal(t, f)
	p := compile(t, f)
	if p.Len() != 1 || pfpu.Decode(p.Code[0]).Op != pfpu.OpNOP {
		t.Fatalf("Code = %v, want a single NOP", pfpu.Disassemble(p.Code))
	}
}

func TestScheduleIsRepeatable(t *testing.T) {
	f := NewFragment(false)
	mustBind(t, f, "time")
	mustBind(t, f, "rot")
	mustBind(t, f, "zoom")
	mustAssign(t, f, "rot", "sin(time*0.3) * cos(time)")
	mustAssign(t, f, "zoom", "1 + 0.1*rot")
	seal(t, f)
	p1 := compile(t, f)
	p2, err := f.Schedule()
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if len(p1.Code) != len(p2.Code) {
		t.Fatalf("lengths differ: %d vs %d", len(p1.Code), len(p2.Code))
	}
	for i := range p1.Code {
		if p1.Code[i] != p2.Code[i] {
			t.Fatalf("word %d differs: %08x vs %08x", i, p1.Code[i], p2.Code[i])
		}
	}
	if p1 == p2 {
		t.Fatal("Schedule returned a shared program")
	}
}

func TestScheduleConstantsInInit(t *testing.T) {
	f := NewFragment(false)
	mustBind(t, f, "x")
	mustAssign(t, f, "x", "x * 0.75")
	seal(t, f)
	p := compile(t, f)

	found := false
	for r := 2; r < pfpu.RegCount; r++ {
		if p.Init[r] == 0.75 {
			found = true
		}
	}
	if !found {
		t.Fatal("constant 0.75 not placed in the initial register file")
	}
}

func TestScheduleLongDependencyChain(t *testing.T) {
	f := NewFragment(false)
	x := mustBind(t, f, "x")
	mustAssign(t, f, "x", "x + 1")
	for i := 0; i < 50; i++ {
		mustAssign(t, f, "x", "x + 1")
	}
	seal(t, f)
	p := compile(t, f)

	regs := p.Init
	runScalar(t, p, &regs)
	if got := regs[f.Register(x)]; got != 51 {
		t.Fatalf("x = %v, want 51", got)
	}
}
