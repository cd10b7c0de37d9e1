package patch

import (
	"sync"
	"sync/atomic"

	"github.com/cwbudde/algo-vj/fpvm"
	"github.com/cwbudde/algo-vj/images"
	"github.com/cwbudde/algo-vj/logging"
	"github.com/cwbudde/algo-vj/pfpu"
)

// ImageCount is the number of image slots per patch.
const ImageCount = 2

// Unallocated marks a variable without a register.
const Unallocated = -1

// core is the compiled, immutable part of a patch shared by all instances.
type core struct {
	refs    atomic.Int32
	release sync.Once

	frameInit   [PerFrameCount]float32
	frameAlloc  [PerFrameCount]int
	frameProg   *fpvm.Program
	vertexInit  [PerVertexCount]float32
	vertexAlloc [PerVertexCount]int
	vertexProg  *fpvm.Program

	requires Requires
	images   [ImageCount]*images.Image
	nimages  int
}

// retain takes a reference unless the core was already freed.
func (c *core) retain() bool {
	for {
		n := c.refs.Load()
		if n <= 0 {
			return false
		}
		if c.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

func (c *core) drop() {
	n := c.refs.Add(-1)
	if n < 0 {
		logging.Logger().Warn("patch: core released too often", "refs", n)
		return
	}
	if n == 0 {
		c.release.Do(func() {
			for i, im := range c.images {
				if im != nil {
					im.Release()
					c.images[i] = nil
				}
			}
		})
	}
}

// Patch is one running instance of a compiled patch. Its per-frame register
// file is private, so state carried between frames is per instance.
type Patch struct {
	core     *core
	original *Patch
	released atomic.Bool

	regs [pfpu.RegCount]float32
	stim []stimSlot
}

func newPatch(c *core) *Patch {
	p := &Patch{core: c}
	p.regs = c.frameProg.Init
	p.Reset()
	return p
}

// Clone returns a new instance over the same compiled core. The register
// file and stimulus bindings are copied; Original of the clone is the root
// instance p descends from. Cloning a released instance fails with
// ErrReleased.
func (p *Patch) Clone() (*Patch, error) {
	if p.released.Load() || !p.core.retain() {
		return nil, ErrReleased
	}
	c := &Patch{
		core:     p.core,
		original: p.Original(),
		regs:     p.regs,
		stim:     append([]stimSlot(nil), p.stim...),
	}
	return c, nil
}

// Original returns the instance p was cloned from, or p itself. It is for
// identity comparison only.
func (p *Patch) Original() *Patch {
	if p.original != nil {
		return p.original
	}
	return p
}

// Release drops this instance's reference on the compiled core. Only the
// first call has an effect; the core is freed when its last instance is
// released.
func (p *Patch) Release() {
	if !p.released.CompareAndSwap(false, true) {
		return
	}
	p.core.drop()
}

// Refs returns the number of live instances sharing p's core.
func (p *Patch) Refs() int { return int(p.core.refs.Load()) }

// Initial returns the initial value of v.
func (p *Patch) Initial(v FrameVar) float32 { return p.core.frameInit[v] }

// Alloc returns the register of v, or Unallocated.
func (p *Patch) Alloc(v FrameVar) int { return p.core.frameAlloc[v] }

// VertexInitial returns the initial value of per-vertex variable v.
func (p *Patch) VertexInitial(v VertexVar) float32 { return p.core.vertexInit[v] }

// VertexAlloc returns the register of per-vertex variable v, or Unallocated.
func (p *Patch) VertexAlloc(v VertexVar) int { return p.core.vertexAlloc[v] }

// FrameProgram returns the per-frame program.
func (p *Patch) FrameProgram() *fpvm.Program { return p.core.frameProg }

// VertexProgram returns the per-vertex program.
func (p *Patch) VertexProgram() *fpvm.Program { return p.core.vertexProg }

// Requires returns the input classes the patch reads.
func (p *Patch) Requires() Requires { return p.core.requires }

// ImageCount returns the number of image slots in use.
func (p *Patch) ImageCount() int { return p.core.nimages }

// Image returns the image in slot i, or nil when i is out of range or the
// slot is empty.
func (p *Patch) Image(i int) *images.Image {
	if i < 0 || i >= p.core.nimages {
		return nil
	}
	return p.core.images[i]
}

// Registers returns the per-frame register file of this instance.
func (p *Patch) Registers() *[pfpu.RegCount]float32 { return &p.regs }

// Reset loads the initial value of every allocated per-frame variable.
// Registers of implicit variables keep their state.
func (p *Patch) Reset() {
	for v, r := range p.core.frameAlloc {
		if r != Unallocated {
			p.regs[r] = p.core.frameInit[v]
		}
	}
}

// Set stores x in v's register. It reports false when v is unallocated.
func (p *Patch) Set(v FrameVar, x float32) bool {
	r := p.core.frameAlloc[v]
	if r == Unallocated {
		return false
	}
	p.regs[r] = x
	return true
}

// Value returns the current value of v: its register, or its initial value
// when unallocated.
func (p *Patch) Value(v FrameVar) float32 {
	if r := p.core.frameAlloc[v]; r != Unallocated {
		return p.regs[r]
	}
	return p.core.frameInit[v]
}

// Mesh holds the constants the per-vertex program needs besides the
// per-frame results.
type Mesh struct {
	// TexSize is the texture edge in pixels.
	TexSize int
	// HMeshLast and VMeshLast are the last mesh column and row.
	HMeshLast int
	VMeshLast int
}

// LoadVertex fills dst with the per-vertex register file for the current
// per-frame state.
func (p *Patch) LoadVertex(dst *[pfpu.RegCount]float32, m Mesh) {
	*dst = p.core.vertexProg.Init
	for i, r := range p.core.vertexAlloc {
		if r == Unallocated {
			continue
		}
		v := VertexVar(i)
		switch v {
		case VertexTexSize:
			// Texture coordinates carry six fractional bits.
			dst[r] = float32(m.TexSize << 6)
		case VertexHMeshSize:
			dst[r] = 1 / float32(max(m.HMeshLast, 1))
		case VertexVMeshSize:
			dst[r] = 1 / float32(max(m.VMeshLast, 1))
		default:
			if f, ok := v.Source(); ok {
				dst[r] = p.Value(f)
			} else {
				dst[r] = p.core.vertexInit[v]
			}
		}
	}
}
