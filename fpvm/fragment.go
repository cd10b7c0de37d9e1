package fpvm

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-vj/pfpu"
)

// Reserved symbols for the vertex input and output.
const (
	SymXin  = "_Xi"
	SymYin  = "_Yi"
	SymXout = "_Xo"
	SymYout = "_Yo"
)

var (
	// ErrUnknownSymbol is returned when an expression reads a variable that
	// is neither bound nor previously assigned.
	ErrUnknownSymbol = errors.New("fpvm: unknown symbol")
	// ErrUnknownFunction is returned for calls to undefined functions.
	ErrUnknownFunction = errors.New("fpvm: unknown function")
	// ErrFinalized is returned when a finalized fragment is modified.
	ErrFinalized = errors.New("fpvm: fragment already finalized")
	// ErrNotFinalized is returned by queries that need Finalize first.
	ErrNotFinalized = errors.New("fpvm: fragment not finalized")
	// ErrOutputs is returned by Finalize when _Xo or _Yo was never assigned.
	ErrOutputs = errors.New("fpvm: vertex outputs not assigned")
	// ErrRegisters is returned when the register file is exhausted.
	ErrRegisters = errors.New("fpvm: out of registers")
	// ErrProgramTooLong is returned when a schedule exceeds program memory.
	ErrProgramTooLong = errors.New("fpvm: program too long")
)

// Invalid is returned for bindings that have no register.
const Invalid = -1

type valueKind uint8

const (
	valInput valueKind = iota
	valConst
	valOp
)

// value is one node of the operation DAG. Inputs are the values held by a
// binding's register when the program starts.
type value struct {
	kind    valueKind
	op      pfpu.Opcode
	args    [2]int
	konst   float32
	binding int
}

type binding struct {
	name     string
	implicit bool
	input    int // value index of the entry value, created lazily
	assigned bool
}

type opKey struct {
	op   pfpu.Opcode
	a, b int
}

// Fragment accumulates bindings and equations for one program.
type Fragment struct {
	vector bool

	bindings []binding
	byName   map[string]int
	values   []value
	cse      map[opKey]int
	consts   map[uint32]int
	env      map[int]int

	finalized bool
	outVal    int // VECTOUT value in vector mode
	homes     map[int]int
	live      []bool
	refs      []bool
	regs      []int
}

// NewFragment returns an empty fragment. Vector fragments evaluate once per
// mesh vertex.
func NewFragment(vector bool) *Fragment {
	f := &Fragment{
		vector: vector,
		byName: make(map[string]int),
		cse:    make(map[opKey]int),
		consts: make(map[uint32]int),
		env:    make(map[int]int),
		outVal: -1,
	}
	f.addBinding(SymXin, false)
	f.addBinding(SymYin, false)
	return f
}

// Vector reports whether f is a per-vertex fragment.
func (f *Fragment) Vector() bool { return f.vector }

func (f *Fragment) addBinding(name string, implicit bool) int {
	id := len(f.bindings)
	f.bindings = append(f.bindings, binding{name: name, implicit: implicit, input: -1})
	f.byName[name] = id
	return id
}

// Bind declares a named variable and returns its binding handle. Binding
// the same name twice returns the same handle.
func (f *Fragment) Bind(name string) (int, error) {
	if f.finalized {
		return Invalid, ErrFinalized
	}
	if !IsIdent(name) {
		return Invalid, fmt.Errorf("fpvm: invalid variable name %q", name)
	}
	if id, ok := f.byName[name]; ok {
		f.bindings[id].implicit = false
		return id, nil
	}
	return f.addBinding(name, false), nil
}

// Lookup returns the binding handle for name.
func (f *Fragment) Lookup(name string) (int, bool) {
	id, ok := f.byName[name]
	return id, ok
}

// Assign parses expr and records dest = expr. Symbols read by expr must be
// bound or assigned earlier; dest becomes an implicit variable when it is
// not bound.
func (f *Fragment) Assign(dest, expr string) error {
	if f.finalized {
		return ErrFinalized
	}
	if !IsIdent(dest) {
		return fmt.Errorf("fpvm: invalid destination %q", dest)
	}
	if dest == SymXin || dest == SymYin {
		return fmt.Errorf("fpvm: cannot assign input %s", dest)
	}
	n, err := parseExpr(expr)
	if err != nil {
		return err
	}
	id, ok := f.byName[dest]
	if !ok {
		id = f.addBinding(dest, true)
	}

	v, err := f.lower(n, id)
	if err != nil {
		return fmt.Errorf("%s = %s: %w", dest, expr, err)
	}
	f.env[id] = v
	f.bindings[id].assigned = true
	return nil
}

// lower converts an expression tree to DAG values.
func (f *Fragment) lower(n *node, dest int) (int, error) {
	switch n.kind {
	case nodeConst:
		return f.constant(n.value), nil
	case nodeSym:
		id, ok := f.byName[n.name]
		if !ok {
			return -1, fmt.Errorf("%w %q", ErrUnknownSymbol, n.name)
		}
		if v, ok := f.env[id]; ok {
			return v, nil
		}
		if f.bindings[id].implicit && (f.vector || id != dest) {
			// An implicit scalar variable read before its first assignment
			// refers to its own register, which holds the previous run's
			// value. Vector registers carry nothing between vertices.
			return -1, fmt.Errorf("%w %q", ErrUnknownSymbol, n.name)
		}
		return f.input(id), nil
	}

	args := make([]int, len(n.args))
	for i, a := range n.args {
		v, err := f.lower(a, dest)
		if err != nil {
			return -1, err
		}
		args[i] = v
	}
	fn, ok := functions[n.name]
	if !ok {
		return -1, fmt.Errorf("%w %q", ErrUnknownFunction, n.name)
	}
	if len(args) != fn.arity {
		return -1, fmt.Errorf("fpvm: %s takes %d arguments, got %d", n.name, fn.arity, len(args))
	}
	return fn.lower(f, args), nil
}

func (f *Fragment) input(id int) int {
	b := &f.bindings[id]
	if b.input < 0 {
		b.input = len(f.values)
		f.values = append(f.values, value{kind: valInput, binding: id, args: [2]int{-1, -1}})
	}
	return b.input
}

func (f *Fragment) constant(c float32) int {
	bits := math.Float32bits(c)
	if v, ok := f.consts[bits]; ok {
		return v
	}
	v := len(f.values)
	f.values = append(f.values, value{kind: valConst, konst: c, args: [2]int{-1, -1}})
	f.consts[bits] = v
	return v
}

// emit appends op applied to args, folding constants and reusing identical
// operations.
func (f *Fragment) emit(op pfpu.Opcode, args ...int) int {
	a, b := -1, -1
	if len(args) > 0 {
		a = args[0]
	}
	if len(args) > 1 {
		b = args[1]
	}
	if f.isConst(a) && (b < 0 || f.isConst(b)) {
		var bv float32
		if b >= 0 {
			bv = f.values[b].konst
		}
		return f.constant(pfpu.Apply(op, f.values[a].konst, bv))
	}
	key := opKey{op, a, b}
	if v, ok := f.cse[key]; ok && op != pfpu.OpCOPY {
		return v
	}
	v := len(f.values)
	f.values = append(f.values, value{kind: valOp, op: op, args: [2]int{a, b}})
	f.cse[key] = v
	return v
}

func (f *Fragment) isConst(v int) bool {
	return v >= 0 && f.values[v].kind == valConst
}

// Finalize resolves outputs and dead code. After Finalize the fragment
// accepts no further bindings or equations.
func (f *Fragment) Finalize() error {
	if f.finalized {
		return ErrFinalized
	}
	xo, okx := f.byName[SymXout]
	yo, oky := f.byName[SymYout]
	if !okx || !oky || !f.bindings[xo].assigned || !f.bindings[yo].assigned {
		return ErrOutputs
	}

	f.live = make([]bool, len(f.values))
	f.homes = make(map[int]int)
	if f.vector {
		f.outVal = len(f.values)
		f.values = append(f.values, value{
			kind: valOp,
			op:   pfpu.OpVECTOUT,
			args: [2]int{f.env[xo], f.env[yo]},
		})
		f.live = append(f.live, false)
		f.mark(f.outVal)
	} else {
		f.resolveScalarRoots(xo, yo)
	}

	f.refs = make([]bool, len(f.bindings))
	for id, b := range f.bindings {
		if b.input >= 0 && f.live[b.input] {
			f.refs[id] = true
		}
	}
	for id := range f.homes {
		f.refs[id] = true
	}

	f.regs = make([]int, len(f.bindings))
	next := 2
	for id := range f.bindings {
		f.regs[id] = Invalid
		switch {
		case id == f.byName[SymXin]:
			f.regs[id] = pfpu.RegXin
		case id == f.byName[SymYin]:
			f.regs[id] = pfpu.RegYin
		case f.refs[id]:
			if next >= pfpu.RegCount {
				return ErrRegisters
			}
			f.regs[id] = next
			next++
		}
	}
	f.finalized = true
	return nil
}

// resolveScalarRoots marks the final value of every assigned bound variable
// live, then repeats for implicit variables whose entry value is read, since
// their state flows from one run into the next.
func (f *Fragment) resolveScalarRoots(xo, yo int) {
	for id, b := range f.bindings {
		if b.assigned && !b.implicit && id != xo && id != yo {
			f.homes[id] = f.env[id]
		}
	}
	for _, v := range f.homes {
		f.mark(v)
	}
	for changed := true; changed; {
		changed = false
		for id, b := range f.bindings {
			if _, ok := f.homes[id]; ok {
				continue
			}
			if b.implicit && b.assigned && b.input >= 0 && f.live[b.input] {
				f.homes[id] = f.env[id]
				f.mark(f.env[id])
				changed = true
			}
		}
	}
}

func (f *Fragment) mark(v int) {
	if v < 0 || f.live[v] {
		return
	}
	f.live[v] = true
	for _, a := range f.values[v].args {
		f.mark(a)
	}
}

// References reports, per binding handle, whether the binding survived dead
// code elimination.
func (f *Fragment) References() []bool {
	if !f.finalized {
		return nil
	}
	out := make([]bool, len(f.refs))
	copy(out, f.refs)
	return out
}

// Register returns the register allocated to binding id, or Invalid.
func (f *Fragment) Register(id int) int {
	if !f.finalized || id < 0 || id >= len(f.regs) {
		return Invalid
	}
	return f.regs[id]
}

// Bindings returns the number of bindings.
func (f *Fragment) Bindings() int { return len(f.bindings) }

// Name returns the variable name of binding id.
func (f *Fragment) Name(id int) string { return f.bindings[id].name }

// Implicit reports whether binding id was created by assignment.
func (f *Fragment) Implicit(id int) bool { return f.bindings[id].implicit }
