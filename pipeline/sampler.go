package pipeline

import (
	"errors"

	"github.com/cwbudde/algo-vj/analyzer"
	"github.com/cwbudde/algo-vj/audio"
	"github.com/cwbudde/algo-vj/input"
	"github.com/cwbudde/algo-vj/logging"
)

type sampler struct {
	capture  audio.Capture
	analyzer *analyzer.Analyzer
	norm     analyzer.Normalizer

	att   analyzer.Levels
	time  float32
	index int
}

func (p *Pipeline) runSampler() {
	defer close(p.samplerDone)
	s := &p.sampler
	for {
		if !p.recycle() {
			break
		}
		for _, f := range p.frames {
			if f.Status() != StatusNew {
				continue
			}
			if err := s.capture.Submit(f.Audio); err != nil {
				if !errors.Is(err, audio.ErrAborted) {
					p.fail(&DeviceError{Device: "audio", Op: "submit", Err: err})
				}
				p.drainSampler()
				return
			}
			p.advance(f, StatusSampling)
		}

		buf, err := s.capture.Collect()
		if err != nil {
			if !errors.Is(err, audio.ErrAborted) {
				p.fail(&DeviceError{Device: "audio", Op: "collect", Err: err})
			}
			break
		}
		if buf.Tag < 0 || buf.Tag >= len(p.frames) {
			logging.Logger().Error("pipeline: audio buffer with foreign tag", "tag", buf.Tag)
			continue
		}
		f := p.frames[buf.Tag]
		if err := p.sample(f); err != nil {
			p.fail(&DeviceError{Device: "analyzer", Op: "analyze", Err: err})
			break
		}
		p.advance(f, StatusSampled)
		p.evalIn <- f
	}
	p.drainSampler()
}

// recycle reclaims returned frames. It blocks while every frame is in
// flight, and reports false once the stop sentinel arrives.
func (p *Pipeline) recycle() bool {
	busy := true
	for _, f := range p.frames {
		if f.Status() < StatusSampled {
			busy = false
			break
		}
	}
	if busy {
		f := <-p.returned
		if f == nil {
			return false
		}
		p.reclaim(f)
	}
	for {
		select {
		case f := <-p.returned:
			if f == nil {
				return false
			}
			p.reclaim(f)
		default:
			return true
		}
	}
}

func (p *Pipeline) reclaim(f *Frame) {
	f.releaseImages()
	f.MIDIEvents = f.MIDIEvents[:0]
	p.advance(f, StatusNew)
}

// sample fills the sampler fields of f from its captured audio and the
// control inputs.
func (p *Pipeline) sample(f *Frame) error {
	s := &p.sampler
	abs, err := s.analyzer.Analyze(f.Audio.Samples)
	if err != nil {
		return err
	}
	raw := s.norm.Normalize(abs)
	s.att = analyzer.Smooth(s.att, raw)
	s.time += float32(1 / p.cfg.FPS)
	s.index++

	f.Bass, f.Mid, f.Treb = raw.Bass, raw.Mid, raw.Treb
	f.BassAtt, f.MidAtt, f.TrebAtt = s.att.Bass, s.att.Mid, s.att.Treb
	f.Time = s.time
	f.Index = s.index

	if p.dev.DMXIn != nil {
		for i, ch := range p.cfg.DMXIn {
			f.IDMX[i] = 0
			if ch <= 0 {
				continue
			}
			v, err := p.dev.DMXIn.ReadChannel(ch)
			if err != nil {
				logging.Logger().Warn("pipeline: dmx read failed", "channel", ch, "err", err)
				continue
			}
			f.IDMX[i] = input.DMXLevel(v)
		}
	}
	if p.dev.OSC != nil {
		f.OSC = p.dev.OSC.OSC()
	}
	if p.dev.MIDI != nil {
		f.MIDI = p.dev.MIDI.MIDI()
		f.MIDIEvents = p.dev.MIDI.Events(f.MIDIEvents[:0])
	}
	return nil
}

// drainSampler stops capture, waits for every frame to come back and
// closes the audio device.
func (p *Pipeline) drainSampler() {
	s := &p.sampler
	s.capture.Abort()
	for _, f := range p.frames {
		if f.Status() == StatusSampling {
			p.advance(f, StatusNew)
		}
	}
	for !p.idle() {
		f := <-p.returned
		if f != nil {
			p.reclaim(f)
		}
	}
	if err := s.capture.Close(); err != nil {
		p.fail(&DeviceError{Device: "audio", Op: "close", Err: err})
	}
}

func (p *Pipeline) idle() bool {
	for _, f := range p.frames {
		if f.Status() != StatusNew {
			return false
		}
	}
	return true
}
