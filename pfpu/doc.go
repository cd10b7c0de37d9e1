// Package pfpu models the programmable floating-point unit that evaluates
// compiled patch microcode.
//
// A program is a sequence of 32-bit instruction words. One instruction issues
// per cycle. Each operation has a fixed latency; its result is written back
// at cycle issue+latency into the register named by the Dest field of the
// word at that cycle, not of the issuing word. Schedulers therefore place the
// destination of every result in a later word, and the program is padded so
// no result is still in flight when it ends.
//
// The unit runs in two modes. In scalar mode the program executes once and
// the register file is written back to the caller. In vector mode the program
// executes once per mesh vertex; registers R0 and R1 receive the vertex
// column and row as integers and a VECTOUT instruction emits one vertex.
package pfpu
