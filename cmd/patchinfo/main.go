// Command patchinfo compiles patches and prints their variable allocation
// and program listings.
//
// Usage:
//
//	patchinfo [flags] patch-file ...
//
// Examples:
//
//	patchinfo tunnel.fnp
//	patchinfo -disasm -all tunnel.fnp
//	patchinfo -functions
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/cwbudde/algo-vj/fpvm"
	"github.com/cwbudde/algo-vj/images"
	"github.com/cwbudde/algo-vj/patch"
	"github.com/cwbudde/algo-vj/pfpu"
)

func main() {
	disasm := flag.Bool("disasm", false, "print the per-frame and per-vertex program listings")
	all := flag.Bool("all", false, "include unallocated variables")
	functions := flag.Bool("functions", false, "list the functions available in equations")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: patchinfo [flags] patch-file ...\n\n")
		fmt.Fprintf(os.Stderr, "Compiles patches and prints variable allocation and program listings.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *functions {
		for _, name := range fpvm.Functions() {
			fmt.Println(name)
		}
		return
	}
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cache := images.NewCache()
	failed := false
	for _, path := range flag.Args() {
		if err := describe(os.Stdout, cache, path, *all, *disasm); err != nil {
			fmt.Fprintf(os.Stderr, "error: %s: %v\n", path, err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func describe(w io.Writer, provider images.Provider, path string, all, disasm bool) error {
	text, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	p, err := patch.Compile(filepath.Dir(path), string(text),
		patch.WithImages(provider),
		patch.WithReporter(func(msg string) {
			fmt.Fprintf(os.Stderr, "warning: %s: %s\n", path, msg)
		}))
	if err != nil {
		return err
	}
	defer p.Release()

	fmt.Fprintf(w, "%s\n", path)
	fmt.Fprintf(w, "  requires: %s\n", p.Requires())
	fmt.Fprintf(w, "  images:   %d\n", p.ImageCount())
	fmt.Fprintf(w, "  per-frame program:  %d words\n", p.FrameProgram().Len())
	fmt.Fprintf(w, "  per-vertex program: %d words\n\n", p.VertexProgram().Len())

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Per-frame\tRegister\tInitial\n")
	fmt.Fprintf(tw, "---------\t--------\t-------\n")
	for i := 0; i < patch.PerFrameCount; i++ {
		v := patch.FrameVar(i)
		r := p.Alloc(v)
		if r == patch.Unallocated && !all {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%g\n", v, register(r), p.Initial(v))
	}
	fmt.Fprintf(tw, "\t\t\n")
	fmt.Fprintf(tw, "Per-vertex\tRegister\tInitial\n")
	fmt.Fprintf(tw, "----------\t--------\t-------\n")
	for i := 0; i < patch.PerVertexCount; i++ {
		v := patch.VertexVar(i)
		r := p.VertexAlloc(v)
		if r == patch.Unallocated && !all {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%g\n", v, register(r), p.VertexInitial(v))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if disasm {
		listing(w, "per-frame", p.FrameProgram())
		listing(w, "per-vertex", p.VertexProgram())
	}
	fmt.Fprintln(w)
	return nil
}

func register(r int) string {
	if r == patch.Unallocated {
		return "-"
	}
	return fmt.Sprintf("R%d", r)
}

func listing(w io.Writer, name string, prog *fpvm.Program) {
	fmt.Fprintf(w, "\n%s listing:\n", name)
	for _, line := range pfpu.Disassemble(prog.Code) {
		fmt.Fprintf(w, "  %s\n", line)
	}
	var consts []string
	for r, v := range prog.Init {
		if v != 0 && r > pfpu.RegYin {
			consts = append(consts, fmt.Sprintf("R%d=%g", r, v))
		}
	}
	if len(consts) > 0 {
		fmt.Fprintf(w, "  init: %s\n", strings.Join(consts, " "))
	}
}
