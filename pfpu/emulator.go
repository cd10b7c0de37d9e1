package pfpu

import (
	"errors"
	"fmt"
)

var (
	errEmptyProgram    = errors.New("pfpu: empty program")
	errProgramTooLong  = errors.New("pfpu: program exceeds program memory")
	errNilRegisters    = errors.New("pfpu: nil register file")
	errShortVertexBuf  = errors.New("pfpu: vertex buffer too small for mesh")
	errInvalidMeshSize = errors.New("pfpu: invalid mesh size")
)

// Task describes one invocation of the unit.
type Task struct {
	// Program holds encoded instruction words.
	Program []uint32
	// Registers is the register file. In scalar mode it is updated in place
	// when Update is set.
	Registers *[RegCount]float32
	// HMeshLast and VMeshLast are the last mesh column and row. Both zero
	// selects scalar mode.
	HMeshLast int
	VMeshLast int
	// Update writes the final register file back in scalar mode.
	Update bool
	// Vertices receives (HMeshLast+1)*(VMeshLast+1) vertices in vector mode,
	// row-major.
	Vertices []Vertex
}

// Scalar reports whether t runs in scalar mode.
func (t *Task) Scalar() bool { return t.HMeshLast == 0 && t.VMeshLast == 0 }

// Device runs tasks on a PFPU.
type Device interface {
	Run(t *Task) error
}

// Emulator is a cycle-level software PFPU. It is not safe for concurrent
// use; each pipeline owns one.
type Emulator struct {
	code    []Instr
	pending [MaxLatency + 1]slot
	work    [RegCount]float32

	// Cycles counts executed cycles across all runs.
	Cycles uint64
}

type slot struct {
	valid bool
	v     float32
}

// NewEmulator returns an idle emulator.
func NewEmulator() *Emulator {
	return &Emulator{}
}

// Run executes t.
func (e *Emulator) Run(t *Task) error {
	if len(t.Program) == 0 {
		return errEmptyProgram
	}
	if len(t.Program) > ProgSize {
		return fmt.Errorf("%w: %d words", errProgramTooLong, len(t.Program))
	}
	if t.Registers == nil {
		return errNilRegisters
	}
	e.decode(t.Program)

	if t.Scalar() {
		e.work = *t.Registers
		if err := e.execute(nil); err != nil {
			return err
		}
		if t.Update {
			*t.Registers = e.work
		}
		return nil
	}

	if t.HMeshLast < 0 || t.VMeshLast < 0 {
		return errInvalidMeshSize
	}
	cols := t.HMeshLast + 1
	rows := t.VMeshLast + 1
	if len(t.Vertices) < cols*rows {
		return fmt.Errorf("%w: have %d, need %d", errShortVertexBuf, len(t.Vertices), cols*rows)
	}

	e.work = *t.Registers
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			e.work[RegXin] = IntBits(int32(x))
			e.work[RegYin] = IntBits(int32(y))
			out := &t.Vertices[y*cols+x]
			n := 0
			err := e.execute(func(a, b float32) {
				out.X = BitsInt(a)
				out.Y = BitsInt(b)
				n++
			})
			if err != nil {
				return fmt.Errorf("vertex (%d,%d): %w", x, y, err)
			}
			if n != 1 {
				return fmt.Errorf("pfpu: vertex (%d,%d): %d VECTOUT instructions, want 1", x, y, n)
			}
		}
	}
	return nil
}

func (e *Emulator) decode(words []uint32) {
	if cap(e.code) < len(words) {
		e.code = make([]Instr, len(words))
	}
	e.code = e.code[:len(words)]
	for i, w := range words {
		e.code[i] = Decode(w)
	}
}

func (e *Emulator) execute(vectout func(a, b float32)) error {
	for i := range e.pending {
		e.pending[i] = slot{}
	}
	const ring = MaxLatency + 1
	for c, in := range e.code {
		s := &e.pending[c%ring]
		if in.Dest != 0 {
			if !s.valid {
				return fmt.Errorf("pfpu: cycle %d: write-back to R%d with no result", c, in.Dest)
			}
			e.work[in.Dest&0x7f] = s.v
		} else if s.valid {
			return fmt.Errorf("pfpu: cycle %d: result dropped", c)
		}
		s.valid = false

		if !in.Op.Valid() {
			return fmt.Errorf("pfpu: cycle %d: invalid opcode %d", c, in.Op)
		}
		switch in.Op {
		case OpNOP:
			continue
		case OpVECTOUT:
			if vectout != nil {
				vectout(e.work[in.A&0x7f], e.work[in.B&0x7f])
			}
			continue
		}
		r := Apply(in.Op, e.work[in.A&0x7f], e.work[in.B&0x7f])
		d := &e.pending[(c+in.Op.Latency())%ring]
		if d.valid {
			return fmt.Errorf("pfpu: cycle %d: write-back port conflict", c)
		}
		d.valid = true
		d.v = r
	}
	e.Cycles += uint64(len(e.code))
	for i := range e.pending {
		if e.pending[i].valid {
			return errors.New("pfpu: program ends with results in flight")
		}
	}
	return nil
}
