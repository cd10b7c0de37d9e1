package patch

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cwbudde/algo-vj/fpvm"
	"github.com/cwbudde/algo-vj/images"
	"github.com/cwbudde/algo-vj/logging"
)

// Option configures Compile.
type Option func(*compileConfig)

type compileConfig struct {
	report  func(msg string)
	images  images.Provider
	backend Backend
}

// WithReporter delivers warnings and the compile error message to fn.
func WithReporter(fn func(msg string)) Option {
	return func(cfg *compileConfig) {
		cfg.report = fn
	}
}

// WithImages sets the provider that resolves imageN keys. Without one,
// patches that load images fail to compile.
func WithImages(p images.Provider) Option {
	return func(cfg *compileConfig) {
		cfg.images = p
	}
}

// WithBackend replaces the equation backend.
func WithBackend(b Backend) Option {
	return func(cfg *compileConfig) {
		if b != nil {
			cfg.backend = b
		}
	}
}

// Equations seeded ahead of the user's per-vertex block: mesh coordinates
// in 0..1 texture space and the distance from the centre.
var vertexHeader = [][2]string{
	{"x", "i2f(_Xi)*_hmeshsize"},
	{"y", "i2f(_Yi)*_vmeshsize"},
	{"rad", "sqrt(sqr(x-0.5)+sqr(y-0.5))"},
}

// Equations appended after the user's per-vertex block. The stage order
// zoom, scale, warp, rotate, translate is fixed.
var vertexFooter = [][2]string{
	// zoom
	{"_invzoom", "1/zoom"},
	{"_xz", "_invzoom*(x-0.5)+0.5"},
	{"_yz", "_invzoom*(y-0.5)+0.5"},

	// aspect scale about the centre
	{"_xs", "(_xz-cx)/sx+cx"},
	{"_ys", "(_yz-cy)/sy+cy"},

	// warp
	{"_warptime", "time*warp_anim_speed"},
	{"_invscale", "1/warp_scale"},
	{"_f0", "11.68+4*cos(_warptime*1.413+10)"},
	{"_f1", "8.77+3*cos(_warptime*1.113+7)"},
	{"_f2", "10.54+3*cos(_warptime*1.233+3)"},
	{"_f3", "11.49+4*cos(_warptime*0.933+5)"},
	{"_ox2", "2*x-1"},
	{"_oy2", "2*y-1"},
	{"_xw", "_xs+warp*0.0035*(sin(_warptime*0.333+_invscale*(_ox2*_f0-_oy2*_f3))+cos(_warptime*0.753-_invscale*(_ox2*_f1-_oy2*_f2)))"},
	{"_yw", "_ys+warp*0.0035*(cos(_warptime*0.375-_invscale*(_ox2*_f2+_oy2*_f1))+sin(_warptime*0.825+_invscale*(_ox2*_f0+_oy2*_f3)))"},

	// rotate about the centre
	{"_cosr", "cos(rot)"},
	{"_sinr", "sin(0-rot)"},
	{"_u", "_xw-cx"},
	{"_v", "_yw-cy"},
	{"_xr", "_u*_cosr-_v*_sinr+cx"},
	{"_yr", "_u*_sinr+_v*_cosr+cy"},

	// translate
	{"_xd", "_xr-dx"},
	{"_yd", "_yr-dy"},

	// texture coordinates
	{fpvm.SymXout, "f2i(_xd*_texsize)"},
	{fpvm.SymYout, "f2i(_yd*_texsize)"},
}

type compiler struct {
	cfg     compileConfig
	basedir string

	init  [PerFrameCount]float32
	pf    Fragment
	pv    Fragment
	pfIDs [PerFrameCount]int
	pvIDs [PerVertexCount]int

	images  [ImageCount]*images.Image
	nimages int
}

// Compile parses patch text and compiles both programs. Relative image
// paths are resolved against basedir. On failure every resource acquired
// so far is released, the message is reported and a *CompileError is
// returned.
func Compile(basedir, text string, opts ...Option) (*Patch, error) {
	cfg := compileConfig{backend: DefaultBackend}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	c := &compiler{cfg: cfg, basedir: basedir}
	p, err := c.compile(text)
	if err != nil {
		c.releaseImages()
		c.report(err.Error())
		return nil, err
	}
	return p, nil
}

func (c *compiler) report(msg string) {
	if c.cfg.report != nil {
		c.cfg.report(msg)
	}
}

func (c *compiler) releaseImages() {
	for i, im := range c.images {
		if im != nil {
			im.Release()
			c.images[i] = nil
		}
	}
}

func backendError(line int, stage string, err error) *CompileError {
	msg := err.Error()
	if stage != "" {
		msg = stage + ": " + msg
	}
	return &CompileError{Line: line, Msg: msg, Err: fmt.Errorf("%w: %w", ErrBackend, err)}
}

func (c *compiler) compile(text string) (*Patch, error) {
	c.init = Defaults()
	c.pf = c.cfg.backend.NewFragment(false)
	c.pv = c.cfg.backend.NewFragment(true)

	for v, name := range frameNames {
		id, err := c.pf.Bind(name)
		if err != nil {
			return nil, backendError(0, "per-frame", err)
		}
		c.pfIDs[v] = id
	}
	for v, name := range vertexNames {
		id, err := c.pv.Bind(name)
		if err != nil {
			return nil, backendError(0, "per-vertex", err)
		}
		c.pvIDs[v] = id
	}
	for _, eq := range vertexHeader {
		if err := c.pv.Assign(eq[0], eq[1]); err != nil {
			return nil, backendError(0, "per-vertex header", err)
		}
	}

	for i, line := range strings.Split(text, "\n") {
		if err := c.statement(i+1, line); err != nil {
			return nil, err
		}
	}

	if err := c.pf.Assign(fpvm.SymXout, fpvm.SymXin); err != nil {
		return nil, backendError(0, "per-frame", err)
	}
	if err := c.pf.Assign(fpvm.SymYout, fpvm.SymYin); err != nil {
		return nil, backendError(0, "per-frame", err)
	}
	for _, eq := range vertexFooter {
		if err := c.pv.Assign(eq[0], eq[1]); err != nil {
			return nil, backendError(0, "per-vertex footer", err)
		}
	}

	k := &core{frameInit: c.init, requires: 0}
	var err error
	if k.frameProg, err = finish(c.pf); err != nil {
		return nil, backendError(0, "per-frame", err)
	}
	if k.vertexProg, err = finish(c.pv); err != nil {
		return nil, backendError(0, "per-vertex", err)
	}

	refs := c.pf.References()
	for v, id := range c.pfIDs {
		k.frameAlloc[v] = Unallocated
		if refs[id] {
			k.frameAlloc[v] = c.pf.Register(id)
			k.requires |= frameRequirement(FrameVar(v))
		}
	}
	refs = c.pv.References()
	for v, id := range c.pvIDs {
		k.vertexAlloc[v] = Unallocated
		if refs[id] {
			k.vertexAlloc[v] = c.pv.Register(id)
			k.requires |= vertexRequirement(VertexVar(v))
		}
		if f, ok := VertexVar(v).Source(); ok {
			k.vertexInit[v] = c.init[f]
		}
	}

	k.images = c.images
	k.nimages = c.nimages
	c.images = [ImageCount]*images.Image{}
	k.refs.Store(1)

	logging.Logger().Debug("patch: compiled",
		"frame_words", k.frameProg.Len(),
		"vertex_words", k.vertexProg.Len(),
		"requires", k.requires.String())
	return newPatch(k), nil
}

func finish(f Fragment) (*fpvm.Program, error) {
	if err := f.Finalize(); err != nil {
		return nil, err
	}
	return f.Schedule()
}

func (c *compiler) statement(line int, s string) error {
	if i := strings.Index(s, "//"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	key, value, ok := strings.Cut(s, "=")
	if !ok {
		return &CompileError{Line: line, Msg: fmt.Sprintf("missing '=' in %q", s), Err: ErrMalformed}
	}
	key = strings.ToLower(strings.TrimSpace(key))
	value = strings.TrimSpace(value)

	switch {
	case isBlock(key, "per_frame"):
		return c.equations(line, c.pf, value)
	case isBlock(key, "per_vertex"), isBlock(key, "per_pixel"):
		return c.equations(line, c.pv, value)
	}
	if n, ok := imageSlot(key); ok {
		return c.image(line, n, value)
	}
	v, ok := LookupFrameVar(key)
	if !ok {
		msg := fmt.Sprintf("line %d: %v %q", line, ErrUnknownKey, key)
		logging.Logger().Warn("patch: " + msg)
		c.report(msg)
		return nil
	}
	x, err := fpvm.EvalConst(value)
	if err != nil {
		return &CompileError{
			Line: line,
			Msg:  fmt.Sprintf("%s: %v", key, err),
			Err:  fmt.Errorf("%w: %w", ErrMalformed, err),
		}
	}
	c.init[v] = x
	return nil
}

// isBlock reports whether key is prefix or prefix_N.
func isBlock(key, prefix string) bool {
	if key == prefix {
		return true
	}
	rest, ok := strings.CutPrefix(key, prefix+"_")
	if !ok || rest == "" {
		return false
	}
	for i := 0; i < len(rest); i++ {
		if rest[i] < '0' || rest[i] > '9' {
			return false
		}
	}
	return true
}

// imageSlot parses imageN keys into zero-based slots.
func imageSlot(key string) (int, bool) {
	rest, ok := strings.CutPrefix(key, "image")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 || n > ImageCount {
		return 0, false
	}
	return n - 1, true
}

func (c *compiler) equations(line int, f Fragment, block string) error {
	for _, eq := range strings.Split(block, ";") {
		eq = strings.TrimSpace(eq)
		if eq == "" {
			continue
		}
		dest, expr, ok := strings.Cut(eq, "=")
		dest = strings.TrimSpace(dest)
		expr = strings.TrimSpace(expr)
		if !ok || dest == "" || expr == "" {
			return &CompileError{Line: line, Msg: fmt.Sprintf("malformed equation %q", eq), Err: ErrMalformed}
		}
		if err := f.Assign(dest, expr); err != nil {
			return backendError(line, "", err)
		}
	}
	return nil
}

func (c *compiler) image(line, slot int, path string) error {
	if c.cfg.images == nil {
		return &CompileError{Line: line, Msg: "no image provider", Err: ErrImage}
	}
	if path == "" {
		return &CompileError{Line: line, Msg: "empty image path", Err: ErrMalformed}
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(c.basedir, path)
	}
	im, err := c.cfg.images.Get(path)
	if err != nil {
		return &CompileError{Line: line, Msg: err.Error(), Err: fmt.Errorf("%w: %w", ErrImage, err)}
	}
	if old := c.images[slot]; old != nil {
		old.Release()
	}
	c.images[slot] = im
	c.nimages = max(c.nimages, slot+1)
	return nil
}
