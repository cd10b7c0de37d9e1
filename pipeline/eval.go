package pipeline

import (
	"github.com/cwbudde/algo-vj/images"
	"github.com/cwbudde/algo-vj/logging"
	"github.com/cwbudde/algo-vj/patch"
	"github.com/cwbudde/algo-vj/pfpu"
	"github.com/cwbudde/algo-vj/tmu"
)

type evaluator struct {
	vregs [pfpu.RegCount]float32
	// defaults are the outputs of frames rendered with an empty list.
	defaults [patch.PerFrameCount]float32
}

func (p *Pipeline) runEval() {
	defer close(p.evalDone)
	for {
		f := <-p.evalIn
		if f == nil {
			return
		}
		p.evaluate(f)
		p.advance(f, StatusEvaluated)
		p.rasterIn <- f
	}
}

func (p *Pipeline) evaluate(f *Frame) {
	ran := p.list.With(true, func(pt *patch.Patch) {
		p.resolveImages(f, pt)

		pt.Reset()
		loadSampled(pt, f, p.cfg.FPS)
		for _, ev := range f.MIDIEvents {
			pt.Stimulate(ev.Channel, ev.Controller, ev.Value)
		}
		pt.ApplyStim()

		err := p.dev.PFPU.Run(&pfpu.Task{
			Program:   pt.FrameProgram().Code,
			Registers: pt.Registers(),
			Update:    true,
		})
		if err != nil {
			logging.Logger().Warn("pipeline: per-frame program failed", "frame", f.Index, "err", err)
			p.identityMesh(f)
			readOutputs(f, pt.Value)
			return
		}
		readOutputs(f, pt.Value)

		pt.LoadVertex(&p.eval.vregs, patch.Mesh{
			TexSize:   p.cfg.TexSize,
			HMeshLast: p.cfg.HMeshLast,
			VMeshLast: p.cfg.VMeshLast,
		})
		err = p.dev.PFPU.Run(&pfpu.Task{
			Program:   pt.VertexProgram().Code,
			Registers: &p.eval.vregs,
			HMeshLast: p.cfg.HMeshLast,
			VMeshLast: p.cfg.VMeshLast,
			Vertices:  f.Vertices,
		})
		if err != nil {
			logging.Logger().Warn("pipeline: per-vertex program failed", "frame", f.Index, "err", err)
			p.identityMesh(f)
		}
	})
	if !ran {
		p.identityMesh(f)
		readOutputs(f, func(v patch.FrameVar) float32 { return p.eval.defaults[v] })
	}
}

// resolveImages takes a reference on the image each slot's index selects.
func (p *Pipeline) resolveImages(f *Frame, pt *patch.Patch) {
	for i := range f.Images {
		vars := patch.ImageSlot(i)
		idx := pt.Value(vars.Index)
		var im *images.Image
		if idx >= 0 && idx < patch.ImageCount {
			im = pt.Image(int(idx))
		}
		if im != nil {
			im.Retain()
		}
		f.Images[i] = ImageLayer{Image: im}
	}
}

func loadSampled(pt *patch.Patch, f *Frame, fps float64) {
	pt.Set(patch.FrameTime, f.Time)
	pt.Set(patch.FrameFrame, float32(f.Index))
	pt.Set(patch.FrameFPS, float32(fps))
	pt.Set(patch.FrameBass, f.Bass)
	pt.Set(patch.FrameMid, f.Mid)
	pt.Set(patch.FrameTreb, f.Treb)
	pt.Set(patch.FrameBassAtt, f.BassAtt)
	pt.Set(patch.FrameMidAtt, f.MidAtt)
	pt.Set(patch.FrameTrebAtt, f.TrebAtt)
	for i, v := range f.IDMX {
		pt.Set(patch.FrameIDMX1+patch.FrameVar(i), v)
	}
	for i, v := range f.OSC {
		pt.Set(patch.FrameOSC1+patch.FrameVar(i), v)
	}
	for i, v := range f.MIDI {
		pt.Set(patch.FrameMIDI1+patch.FrameVar(i), v)
	}
}

func readOutputs(f *Frame, val func(patch.FrameVar) float32) {
	f.Decay = val(patch.FrameDecay)
	f.Wave = Wave{
		Mode:     int(val(patch.FrameWaveMode)),
		Scale:    val(patch.FrameWaveScale),
		Additive: val(patch.FrameWaveAdditive) != 0,
		Dots:     val(patch.FrameWaveUseDots) != 0,
		Maximize: val(patch.FrameWaveMaximizeColor) != 0,
		Thick:    val(patch.FrameWaveThick) != 0,
		X:        val(patch.FrameWaveX),
		Y:        val(patch.FrameWaveY),
		R:        val(patch.FrameWaveR),
		G:        val(patch.FrameWaveG),
		B:        val(patch.FrameWaveB),
		A:        val(patch.FrameWaveA),
	}
	f.MV = MotionVectors{
		X:  val(patch.FrameMvX),
		Y:  val(patch.FrameMvY),
		Dx: val(patch.FrameMvDx),
		Dy: val(patch.FrameMvDy),
		L:  val(patch.FrameMvL),
		R:  val(patch.FrameMvR),
		G:  val(patch.FrameMvG),
		B:  val(patch.FrameMvB),
		A:  val(patch.FrameMvA),
	}
	f.OB = Border{
		Size: val(patch.FrameObSize),
		R:    val(patch.FrameObR),
		G:    val(patch.FrameObG),
		B:    val(patch.FrameObB),
		A:    val(patch.FrameObA),
	}
	f.IB = Border{
		Size: val(patch.FrameIbSize),
		R:    val(patch.FrameIbR),
		G:    val(patch.FrameIbG),
		B:    val(patch.FrameIbB),
		A:    val(patch.FrameIbA),
	}
	f.EchoAlpha = val(patch.FrameVideoEchoAlpha)
	f.EchoZoom = val(patch.FrameVideoEchoZoom)
	f.EchoOrientation = int(val(patch.FrameVideoEchoOrientation)) & 3
	for i := range f.DMX {
		f.DMX[i] = val(patch.FrameDMX1 + patch.FrameVar(i))
	}
	for i := range f.Images {
		vars := patch.ImageSlot(i)
		f.Images[i].A = val(vars.A)
		f.Images[i].X = val(vars.X)
		f.Images[i].Y = val(vars.Y)
		f.Images[i].Zoom = val(vars.Zoom)
	}
	f.VideoAlpha = val(patch.FrameVideoA)
	f.TexWrap = val(patch.FrameTexWrap) != 0
}

func (p *Pipeline) identityMesh(f *Frame) {
	tmu.Identity(f.Vertices, p.cfg.HMeshLast, p.cfg.VMeshLast, p.cfg.TexSize, p.cfg.TexSize)
}
