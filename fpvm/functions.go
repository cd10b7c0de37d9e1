package fpvm

import (
	"sort"

	"github.com/cwbudde/algo-vj/pfpu"
)

type function struct {
	arity int
	lower func(f *Fragment, a []int) int
}

func unaryOp(op pfpu.Opcode) function {
	return function{1, func(f *Fragment, a []int) int { return f.emit(op, a[0]) }}
}

func binaryOp(op pfpu.Opcode) function {
	return function{2, func(f *Fragment, a []int) int { return f.emit(op, a[0], a[1]) }}
}

// truth maps any non-zero value to 1.
func (f *Fragment) truth(v int) int {
	return f.emit(pfpu.OpABOVE, f.emit(pfpu.OpFABS, v), f.constant(0))
}

var functions = map[string]function{
	"+":   binaryOp(pfpu.OpFADD),
	"-":   binaryOp(pfpu.OpFSUB),
	"*":   binaryOp(pfpu.OpFMUL),
	"/":   binaryOp(pfpu.OpFDIV),
	"neg": {1, func(f *Fragment, a []int) int { return f.emit(pfpu.OpFSUB, f.constant(0), a[0]) }},

	"sin":     unaryOp(pfpu.OpSIN),
	"cos":     unaryOp(pfpu.OpCOS),
	"abs":     unaryOp(pfpu.OpFABS),
	"sqrt":    unaryOp(pfpu.OpSQRT),
	"invsqrt": unaryOp(pfpu.OpQUAKE),
	"quake":   unaryOp(pfpu.OpQUAKE),
	"f2i":     unaryOp(pfpu.OpF2I),
	"i2f":     unaryOp(pfpu.OpI2F),
	"min":     binaryOp(pfpu.OpFMIN),
	"max":     binaryOp(pfpu.OpFMAX),
	"above":   binaryOp(pfpu.OpABOVE),
	"equal":   binaryOp(pfpu.OpEQUAL),
	"tsign":   binaryOp(pfpu.OpTSIGN),

	"sqr": {1, func(f *Fragment, a []int) int { return f.emit(pfpu.OpFMUL, a[0], a[0]) }},
	"below": {2, func(f *Fragment, a []int) int {
		return f.emit(pfpu.OpABOVE, a[1], a[0])
	}},
	"int": {1, func(f *Fragment, a []int) int {
		return f.emit(pfpu.OpI2F, f.emit(pfpu.OpF2I, a[0]))
	}},
	"sign": {1, func(f *Fragment, a []int) int {
		zero := f.constant(0)
		return f.emit(pfpu.OpFSUB, f.emit(pfpu.OpABOVE, a[0], zero), f.emit(pfpu.OpABOVE, zero, a[0]))
	}},
	"if": {3, func(f *Fragment, a []int) int {
		// b + (a-b)*truth(cond)
		diff := f.emit(pfpu.OpFSUB, a[1], a[2])
		return f.emit(pfpu.OpFADD, a[2], f.emit(pfpu.OpFMUL, diff, f.truth(a[0])))
	}},
	"band": {2, func(f *Fragment, a []int) int {
		return f.emit(pfpu.OpFMUL, f.truth(a[0]), f.truth(a[1]))
	}},
	"bor": {2, func(f *Fragment, a []int) int {
		sum := f.emit(pfpu.OpFADD, f.emit(pfpu.OpFABS, a[0]), f.emit(pfpu.OpFABS, a[1]))
		return f.emit(pfpu.OpABOVE, sum, f.constant(0))
	}},
	"bnot": {1, func(f *Fragment, a []int) int {
		return f.emit(pfpu.OpEQUAL, a[0], f.constant(0))
	}},
}

// Functions returns the names of the callable functions, sorted.
func Functions() []string {
	var out []string
	for name := range functions {
		if name == "neg" || !IsIdent(name) {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// EvalConst evaluates an expression that must fold to a constant.
func EvalConst(expr string) (float32, error) {
	n, err := parseExpr(expr)
	if err != nil {
		return 0, err
	}
	f := NewFragment(false)
	v, err := f.lower(n, -1)
	if err != nil {
		return 0, err
	}
	if !f.isConst(v) {
		return 0, &SyntaxError{Expr: expr, Msg: "not a constant"}
	}
	return f.values[v].konst, nil
}
