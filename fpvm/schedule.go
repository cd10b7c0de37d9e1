package fpvm

import (
	"fmt"
	"sort"

	"github.com/cwbudde/algo-vj/pfpu"
)

// Program is a scheduled PFPU program with its initial register file.
type Program struct {
	Code []uint32
	Init [pfpu.RegCount]float32
}

// Len returns the program length in words.
func (p *Program) Len() int { return len(p.Code) }

type scheduler struct {
	vals      []value
	live      []bool
	ops       []int
	reg       []int
	home      map[int]int // op value -> binding whose register it writes
	consumers [][]int
	pendingRd []int // unissued consumers per value

	// warReaders lists, per final copy, the ops that must issue before it
	// overwrites a binding register.
	warReaders map[int][]int

	issued  []int // issue cycle per value, -1 if not issued
	height  []int
	free    []int
	wbBusy  map[int]bool
	code    []pfpu.Instr
	program *Program
}

// Schedule lowers the finalized fragment into a program. Each call produces
// an independent program.
func (f *Fragment) Schedule() (*Program, error) {
	if !f.finalized {
		return nil, ErrNotFinalized
	}
	s := &scheduler{
		vals:       append([]value(nil), f.values...),
		live:       append([]bool(nil), f.live...),
		home:       make(map[int]int),
		warReaders: make(map[int][]int),
		wbBusy:     make(map[int]bool),
		program:    &Program{},
	}
	if err := s.prepare(f); err != nil {
		return nil, err
	}
	if err := s.run(); err != nil {
		return nil, err
	}
	return s.program, nil
}

func (s *scheduler) addOp(op pfpu.Opcode, a int) int {
	v := len(s.vals)
	s.vals = append(s.vals, value{kind: valOp, op: op, args: [2]int{a, -1}})
	s.live = append(s.live, true)
	return v
}

func (s *scheduler) prepare(f *Fragment) error {
	// Readers of each binding's entry value.
	readers := make(map[int][]int)
	for v, val := range s.vals {
		if !s.live[v] || val.kind != valOp {
			continue
		}
		for _, a := range val.args {
			if a >= 0 && s.vals[a].kind == valInput {
				readers[s.vals[a].binding] = appendUnique(readers[s.vals[a].binding], v)
			}
		}
	}

	ids := make([]int, 0, len(f.homes))
	for id := range f.homes {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	claimed := make(map[int]bool)
	for _, id := range ids {
		v := f.homes[id]
		if v == f.bindings[id].input {
			continue
		}
		if s.vals[v].kind != valOp || claimed[v] {
			v = s.addOp(pfpu.OpCOPY, v)
			if s.vals[v].args[0] >= 0 && s.vals[s.vals[v].args[0]].kind == valInput {
				in := s.vals[s.vals[v].args[0]].binding
				readers[in] = appendUnique(readers[in], v)
			}
		}
		claimed[v] = true
		s.home[v] = id
	}

	// A home write that would overwrite a register still read as an entry
	// value goes through a temporary and a final copy; the copy waits for
	// every such reader.
	for _, v := range sortedKeys(s.home) {
		id := s.home[v]
		if s.precedes(readers[id], v) {
			continue
		}
		delete(s.home, v)
		c := s.addOp(pfpu.OpCOPY, v)
		s.home[c] = id
		s.warReaders[c] = readers[id]
	}

	s.reg = make([]int, len(s.vals))
	s.issued = make([]int, len(s.vals))
	for v := range s.reg {
		s.reg[v] = Invalid
		s.issued[v] = -1
	}

	used := make([]bool, pfpu.RegCount)
	used[pfpu.RegXin] = true
	used[pfpu.RegYin] = true
	for _, r := range f.regs {
		if r >= 0 {
			used[r] = true
		}
	}
	for v, val := range s.vals {
		if !s.live[v] {
			continue
		}
		switch val.kind {
		case valInput:
			s.reg[v] = f.regs[val.binding]
		case valOp:
			s.ops = append(s.ops, v)
			if id, ok := s.home[v]; ok {
				s.reg[v] = f.regs[id]
			}
		}
	}
	next := 0
	for v, val := range s.vals {
		if !s.live[v] || val.kind != valConst {
			continue
		}
		for next < pfpu.RegCount && used[next] {
			next++
		}
		if next >= pfpu.RegCount {
			return ErrRegisters
		}
		used[next] = true
		s.reg[v] = next
		s.program.Init[next] = val.konst
	}
	for r := pfpu.RegCount - 1; r >= 0; r-- {
		if !used[r] {
			s.free = append(s.free, r)
		}
	}

	s.consumers = make([][]int, len(s.vals))
	s.pendingRd = make([]int, len(s.vals))
	for _, v := range s.ops {
		for _, a := range s.vals[v].args {
			if a >= 0 && !contains(s.consumers[a], v) {
				s.consumers[a] = append(s.consumers[a], v)
				s.pendingRd[a]++
			}
		}
	}

	s.height = make([]int, len(s.vals))
	for i := len(s.ops) - 1; i >= 0; i-- {
		v := s.ops[i]
		h := 0
		for _, c := range s.consumers[v] {
			if s.height[c] > h {
				h = s.height[c]
			}
		}
		s.height[v] = h + s.vals[v].op.Latency()
	}
	// Final copies are appended after their sources, so creation order is a
	// topological order of the whole graph.
	return nil
}

// precedes reports whether every op in rs is v or an ancestor of v, and so
// issues no later than v.
func (s *scheduler) precedes(rs []int, v int) bool {
	if len(rs) == 0 {
		return true
	}
	anc := make(map[int]bool)
	var walk func(int)
	walk = func(x int) {
		if x < 0 || anc[x] {
			return
		}
		anc[x] = true
		for _, a := range s.vals[x].args {
			walk(a)
		}
	}
	walk(v)
	for _, r := range rs {
		if !anc[r] {
			return false
		}
	}
	return true
}

func (s *scheduler) ready(v, cycle int) bool {
	for _, a := range s.vals[v].args {
		if a < 0 || s.vals[a].kind != valOp {
			continue
		}
		if s.issued[a] < 0 || s.issued[a]+s.vals[a].op.Latency() > cycle {
			return false
		}
	}
	for _, r := range s.warReaders[v] {
		if s.issued[r] < 0 {
			return false
		}
	}
	lat := s.vals[v].op.Latency()
	if s.vals[v].op.HasResult() && s.wbBusy[cycle+lat] {
		return false
	}
	if s.vals[v].op.HasResult() && s.reg[v] == Invalid && len(s.free) == 0 {
		return false
	}
	return true
}

func (s *scheduler) run() error {
	remaining := len(s.ops)
	for cycle := 0; remaining > 0; cycle++ {
		if cycle >= pfpu.ProgSize {
			return fmt.Errorf("%w: more than %d words", ErrProgramTooLong, pfpu.ProgSize)
		}
		s.grow(cycle + 1)
		best := -1
		for _, v := range s.ops {
			if s.issued[v] >= 0 || !s.ready(v, cycle) {
				continue
			}
			if best < 0 || s.height[v] > s.height[best] {
				best = v
			}
		}
		if best < 0 {
			if len(s.free) == 0 && s.inFlight(cycle) == 0 {
				return ErrRegisters
			}
			continue
		}
		s.issue(best, cycle)
		remaining--
	}

	if len(s.code) == 0 {
		s.code = append(s.code, pfpu.Instr{Op: pfpu.OpNOP})
	}
	s.program.Code = make([]uint32, len(s.code))
	for i, in := range s.code {
		s.program.Code[i] = in.Encode()
	}
	return nil
}

func (s *scheduler) issue(v, cycle int) {
	val := s.vals[v]
	in := &s.code[cycle]
	in.Op = val.op
	if val.args[0] >= 0 {
		in.A = uint8(s.reg[val.args[0]])
	}
	if val.args[1] >= 0 {
		in.B = uint8(s.reg[val.args[1]])
	}
	s.issued[v] = cycle

	for _, a := range uniqueArgs(val.args) {
		s.pendingRd[a]--
		if s.pendingRd[a] > 0 || s.vals[a].kind != valOp {
			continue
		}
		if _, isHome := s.home[a]; !isHome {
			s.free = append(s.free, s.reg[a])
		}
	}

	if !val.op.HasResult() {
		return
	}
	if s.reg[v] == Invalid {
		s.reg[v] = s.free[len(s.free)-1]
		s.free = s.free[:len(s.free)-1]
	}
	wb := cycle + val.op.Latency()
	s.wbBusy[wb] = true
	s.grow(wb + 1)
	s.code[wb].Dest = uint8(s.reg[v])
}

// inFlight counts results not yet written back at cycle.
func (s *scheduler) inFlight(cycle int) int {
	n := 0
	for _, v := range s.ops {
		if s.issued[v] >= 0 && s.issued[v]+s.vals[v].op.Latency() > cycle {
			n++
		}
	}
	return n
}

func (s *scheduler) grow(n int) {
	for len(s.code) < n {
		s.code = append(s.code, pfpu.Instr{})
	}
}

func uniqueArgs(args [2]int) []int {
	switch {
	case args[0] < 0:
		return nil
	case args[1] < 0 || args[1] == args[0]:
		return args[:1]
	}
	return args[:]
}

func appendUnique(s []int, v int) []int {
	if contains(s, v) {
		return s
	}
	return append(s, v)
}

func contains(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func sortedKeys(m map[int]int) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
