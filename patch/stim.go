package patch

import "fmt"

// StimBinding maps a MIDI controller onto a per-frame variable. Controller
// values 0..127 are scaled linearly onto Min..Max.
type StimBinding struct {
	Channel    uint8
	Controller uint8
	Var        FrameVar
	Min, Max   float32
}

type stimSlot struct {
	StimBinding
	reg   int
	value float32
	set   bool
}

// BindStim adds controller bindings to this instance. A binding to a
// variable the patch never references is rejected, since writes to it
// would have no effect.
func (p *Patch) BindStim(bindings ...StimBinding) error {
	for _, b := range bindings {
		if b.Var < 0 || int(b.Var) >= PerFrameCount {
			return fmt.Errorf("patch: stimulus variable out of range: %d", b.Var)
		}
		r := p.core.frameAlloc[b.Var]
		if r == Unallocated {
			return fmt.Errorf("patch: stimulus target %s is not allocated", b.Var)
		}
		p.stim = append(p.stim, stimSlot{StimBinding: b, reg: r})
	}
	return nil
}

// Stimulate records a controller change. It reports whether any binding
// matched.
func (p *Patch) Stimulate(channel, controller, value uint8) bool {
	hit := false
	for i := range p.stim {
		s := &p.stim[i]
		if s.Channel != channel || s.Controller != controller {
			continue
		}
		s.value = s.Min + (s.Max-s.Min)*float32(value&0x7f)/127
		s.set = true
		hit = true
	}
	return hit
}

// ApplyStim writes the last value of every stimulated binding into the
// register file. Bindings that never received a change are left alone.
func (p *Patch) ApplyStim() {
	for _, s := range p.stim {
		if s.set {
			p.regs[s.reg] = s.value
		}
	}
}
