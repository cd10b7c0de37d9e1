package pfpu

import (
	"fmt"
	"strings"
)

// Disassemble renders program words one instruction per line.
func Disassemble(words []uint32) []string {
	out := make([]string, len(words))
	for i, w := range words {
		in := Decode(w)
		var b strings.Builder
		fmt.Fprintf(&b, "%04d  ", i)
		switch in.Op.Arity() {
		case 0:
			fmt.Fprintf(&b, "%-8s", in.Op)
		case 1:
			fmt.Fprintf(&b, "%-8s R%d", in.Op, in.A)
		default:
			fmt.Fprintf(&b, "%-8s R%d, R%d", in.Op, in.A, in.B)
		}
		if in.Dest != 0 {
			fmt.Fprintf(&b, "\t-> R%d", in.Dest)
		}
		out[i] = b.String()
	}
	return out
}
