package pfpu

import (
	"fmt"
	"math"
)

const (
	// RegCount is the size of the register file.
	RegCount = 128
	// ProgSize is the maximum program length in words.
	ProgSize = 2048

	// RegXin and RegYin receive the vertex column and row in vector mode.
	RegXin = 0
	RegYin = 1

	// MaxLatency is the longest latency of any operation.
	MaxLatency = 9
)

// Opcode identifies a PFPU operation.
type Opcode uint8

const (
	OpNOP Opcode = iota
	OpFADD
	OpFSUB
	OpFMUL
	OpFABS
	OpF2I
	OpI2F
	OpVECTOUT
	OpSIN
	OpCOS
	OpABOVE
	OpEQUAL
	OpCOPY
	OpTSIGN
	OpQUAKE
	OpFDIV
	OpSQRT
	OpFMIN
	OpFMAX

	opCount
)

type opInfo struct {
	name    string
	arity   int
	latency int
}

var opTable = [opCount]opInfo{
	OpNOP:     {"NOP", 0, 0},
	OpFADD:    {"FADD", 2, 5},
	OpFSUB:    {"FSUB", 2, 5},
	OpFMUL:    {"FMUL", 2, 7},
	OpFABS:    {"FABS", 1, 2},
	OpF2I:     {"F2I", 1, 2},
	OpI2F:     {"I2F", 1, 3},
	OpVECTOUT: {"VECTOUT", 2, 0},
	OpSIN:     {"SIN", 1, 4},
	OpCOS:     {"COS", 1, 4},
	OpABOVE:   {"ABOVE", 2, 2},
	OpEQUAL:   {"EQUAL", 2, 2},
	OpCOPY:    {"COPY", 1, 2},
	OpTSIGN:   {"TSIGN", 2, 2},
	OpQUAKE:   {"QUAKE", 1, 2},
	OpFDIV:    {"FDIV", 2, 9},
	OpSQRT:    {"SQRT", 1, 8},
	OpFMIN:    {"FMIN", 2, 2},
	OpFMAX:    {"FMAX", 2, 2},
}

// Valid reports whether op is a known opcode.
func (op Opcode) Valid() bool { return op < opCount }

// String returns the mnemonic.
func (op Opcode) String() string {
	if !op.Valid() {
		return fmt.Sprintf("OP%d", uint8(op))
	}
	return opTable[op].name
}

// Arity returns the number of register operands read by op.
func (op Opcode) Arity() int {
	if !op.Valid() {
		return 0
	}
	return opTable[op].arity
}

// Latency returns the number of cycles between issue and write-back.
// VECTOUT and NOP have no result and report 0.
func (op Opcode) Latency() int {
	if !op.Valid() {
		return 0
	}
	return opTable[op].latency
}

// HasResult reports whether op produces a register result.
func (op Opcode) HasResult() bool {
	return op != OpNOP && op != OpVECTOUT && op.Valid()
}

// Instr is a decoded instruction word.
//
// Dest names the register receiving the result that completes in the cycle
// of this word. Dest 0 means no write-back; R0 is never a write target.
type Instr struct {
	Op   Opcode
	A    uint8
	B    uint8
	Dest uint8
}

// Encode packs the instruction into a program word.
//
// Layout: A[25:19] B[18:12] opcode[11:7] dest[6:0].
func (in Instr) Encode() uint32 {
	return uint32(in.A&0x7f)<<19 |
		uint32(in.B&0x7f)<<12 |
		uint32(in.Op&0x1f)<<7 |
		uint32(in.Dest&0x7f)
}

// Decode unpacks a program word.
func Decode(w uint32) Instr {
	return Instr{
		A:    uint8(w >> 19 & 0x7f),
		B:    uint8(w >> 12 & 0x7f),
		Op:   Opcode(w >> 7 & 0x1f),
		Dest: uint8(w & 0x7f),
	}
}

// Vertex is one mesh point in texture fixed-point coordinates.
type Vertex struct {
	X, Y int32
}

// IntBits returns the register representation of integer v.
func IntBits(v int32) float32 {
	return math.Float32frombits(uint32(v))
}

// BitsInt returns the integer stored in register value r.
func BitsInt(r float32) int32 {
	return int32(math.Float32bits(r))
}

// Apply evaluates op on operand values a and b exactly as the unit does.
// It is also used by the compiler for constant folding, so folded and
// executed results never disagree.
func Apply(op Opcode, a, b float32) float32 {
	switch op {
	case OpFADD:
		return a + b
	case OpFSUB:
		return a - b
	case OpFMUL:
		return a * b
	case OpFDIV:
		if b == 0 {
			return 0
		}
		return a / b
	case OpFABS:
		return float32(math.Abs(float64(a)))
	case OpF2I:
		return IntBits(toInt(a))
	case OpI2F:
		return float32(BitsInt(a))
	case OpSIN:
		return float32(math.Sin(float64(a)))
	case OpCOS:
		return float32(math.Cos(float64(a)))
	case OpABOVE:
		if a > b {
			return 1
		}
		return 0
	case OpEQUAL:
		if a == b {
			return 1
		}
		return 0
	case OpCOPY:
		return a
	case OpTSIGN:
		return float32(math.Copysign(math.Abs(float64(a)), float64(b)))
	case OpQUAKE:
		return quake(a)
	case OpSQRT:
		return float32(math.Sqrt(math.Abs(float64(a))))
	case OpFMIN:
		if b < a {
			return b
		}
		return a
	case OpFMAX:
		if b > a {
			return b
		}
		return a
	default:
		return 0
	}
}

func toInt(a float32) int32 {
	switch {
	case a != a:
		return 0
	case a >= math.MaxInt32:
		return math.MaxInt32
	case a <= math.MinInt32:
		return math.MinInt32
	}
	return int32(a)
}

// quake is the bit-level inverse square root estimate with one Newton step.
func quake(a float32) float32 {
	if a <= 0 {
		return 0
	}
	i := math.Float32bits(a)
	i = 0x5f3759df - i>>1
	y := math.Float32frombits(i)
	return y * (1.5 - 0.5*a*y*y)
}
