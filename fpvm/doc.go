// Package fpvm compiles patch equations into PFPU programs.
//
// A [Fragment] collects named bindings and equations of the form
// dest = expression. [Fragment.Finalize] resolves dependencies and removes
// equations whose results can never reach an output, then
// [Fragment.Schedule] lowers the surviving operations to a latency-correct
// program and an initial register file holding constants.
//
// Fragments run in one of two modes. Scalar fragments describe per-frame
// state: every equation assigning a bound variable is an output, and final
// values are written back to the variable's register, so implicit variables
// carry state from one run to the next. Vector fragments describe per-vertex
// evaluation: bound registers are read-only inputs and the only output is
// the (_Xo, _Yo) vertex emitted by VECTOUT.
package fpvm
