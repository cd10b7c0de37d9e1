package patch

import "strings"

// FrameVar indexes the per-frame variable table.
type FrameVar int

// Per-frame variables. The input ranges (IDMX..MIDI, VideoA) are contiguous
// so requirement flags can be derived from index ranges.
const (
	FrameSx FrameVar = iota
	FrameSy
	FrameCx
	FrameCy
	FrameRot
	FrameDx
	FrameDy
	FrameZoom
	FrameDecay

	FrameWaveMode
	FrameWaveScale
	FrameWaveAdditive
	FrameWaveUseDots
	FrameWaveMaximizeColor
	FrameWaveThick
	FrameWaveX
	FrameWaveY
	FrameWaveR
	FrameWaveG
	FrameWaveB
	FrameWaveA

	FrameObSize
	FrameObR
	FrameObG
	FrameObB
	FrameObA
	FrameIbSize
	FrameIbR
	FrameIbG
	FrameIbB
	FrameIbA

	FrameMvX
	FrameMvY
	FrameMvDx
	FrameMvDy
	FrameMvL
	FrameMvR
	FrameMvG
	FrameMvB
	FrameMvA

	FrameTexWrap

	FrameTime
	FrameBass
	FrameMid
	FrameTreb
	FrameBassAtt
	FrameMidAtt
	FrameTrebAtt
	FrameFrame
	FrameFPS

	FrameWarp
	FrameWarpAnimSpeed
	FrameWarpScale

	FrameQ1
	FrameQ2
	FrameQ3
	FrameQ4
	FrameQ5
	FrameQ6
	FrameQ7
	FrameQ8

	FrameVideoEchoAlpha
	FrameVideoEchoZoom
	FrameVideoEchoOrientation

	FrameImage1A
	FrameImage1X
	FrameImage1Y
	FrameImage1Zoom
	FrameImage1Index
	FrameImage2A
	FrameImage2X
	FrameImage2Y
	FrameImage2Zoom
	FrameImage2Index

	FrameDMX1
	FrameDMX2
	FrameDMX3
	FrameDMX4
	FrameIDMX1
	FrameIDMX2
	FrameIDMX3
	FrameIDMX4
	FrameOSC1
	FrameOSC2
	FrameOSC3
	FrameOSC4
	FrameMIDI1
	FrameMIDI2
	FrameMIDI3
	FrameMIDI4
	FrameMIDI5
	FrameMIDI6
	FrameMIDI7
	FrameMIDI8
	FrameVideoA

	PerFrameCount int = iota
)

// Per-image variable offsets from FrameImage1A.
const (
	imageVarA = iota
	imageVarX
	imageVarY
	imageVarZoom
	imageVarIndex
	imageVarCount
)

// imageVar returns the per-frame variable for field off of image slot n.
func imageVar(n, off int) FrameVar {
	return FrameImage1A + FrameVar(n*imageVarCount+off)
}

// ImageVars holds the per-frame variables of one image slot.
type ImageVars struct {
	A, X, Y, Zoom, Index FrameVar
}

// ImageSlot returns the variables of image slot n (0-based).
func ImageSlot(n int) ImageVars {
	return ImageVars{
		A:     imageVar(n, imageVarA),
		X:     imageVar(n, imageVarX),
		Y:     imageVar(n, imageVarY),
		Zoom:  imageVar(n, imageVarZoom),
		Index: imageVar(n, imageVarIndex),
	}
}

var frameNames = [PerFrameCount]string{
	FrameSx:    "sx",
	FrameSy:    "sy",
	FrameCx:    "cx",
	FrameCy:    "cy",
	FrameRot:   "rot",
	FrameDx:    "dx",
	FrameDy:    "dy",
	FrameZoom:  "zoom",
	FrameDecay: "decay",

	FrameWaveMode:          "wave_mode",
	FrameWaveScale:         "wave_scale",
	FrameWaveAdditive:      "wave_additive",
	FrameWaveUseDots:       "wave_usedots",
	FrameWaveMaximizeColor: "wave_maximize_color",
	FrameWaveThick:         "wave_thick",
	FrameWaveX:             "wave_x",
	FrameWaveY:             "wave_y",
	FrameWaveR:             "wave_r",
	FrameWaveG:             "wave_g",
	FrameWaveB:             "wave_b",
	FrameWaveA:             "wave_a",

	FrameObSize: "ob_size",
	FrameObR:    "ob_r",
	FrameObG:    "ob_g",
	FrameObB:    "ob_b",
	FrameObA:    "ob_a",
	FrameIbSize: "ib_size",
	FrameIbR:    "ib_r",
	FrameIbG:    "ib_g",
	FrameIbB:    "ib_b",
	FrameIbA:    "ib_a",

	FrameMvX:  "mv_x",
	FrameMvY:  "mv_y",
	FrameMvDx: "mv_dx",
	FrameMvDy: "mv_dy",
	FrameMvL:  "mv_l",
	FrameMvR:  "mv_r",
	FrameMvG:  "mv_g",
	FrameMvB:  "mv_b",
	FrameMvA:  "mv_a",

	FrameTexWrap: "tex_wrap",

	FrameTime:    "time",
	FrameBass:    "bass",
	FrameMid:     "mid",
	FrameTreb:    "treb",
	FrameBassAtt: "bass_att",
	FrameMidAtt:  "mid_att",
	FrameTrebAtt: "treb_att",
	FrameFrame:   "frame",
	FrameFPS:     "fps",

	FrameWarp:          "warp",
	FrameWarpAnimSpeed: "warp_anim_speed",
	FrameWarpScale:     "warp_scale",

	FrameQ1: "q1",
	FrameQ2: "q2",
	FrameQ3: "q3",
	FrameQ4: "q4",
	FrameQ5: "q5",
	FrameQ6: "q6",
	FrameQ7: "q7",
	FrameQ8: "q8",

	FrameVideoEchoAlpha:       "video_echo_alpha",
	FrameVideoEchoZoom:        "video_echo_zoom",
	FrameVideoEchoOrientation: "video_echo_orientation",

	FrameImage1A:     "image1_a",
	FrameImage1X:     "image1_x",
	FrameImage1Y:     "image1_y",
	FrameImage1Zoom:  "image1_zoom",
	FrameImage1Index: "image1_index",
	FrameImage2A:     "image2_a",
	FrameImage2X:     "image2_x",
	FrameImage2Y:     "image2_y",
	FrameImage2Zoom:  "image2_zoom",
	FrameImage2Index: "image2_index",

	FrameDMX1:   "dmx1",
	FrameDMX2:   "dmx2",
	FrameDMX3:   "dmx3",
	FrameDMX4:   "dmx4",
	FrameIDMX1:  "idmx1",
	FrameIDMX2:  "idmx2",
	FrameIDMX3:  "idmx3",
	FrameIDMX4:  "idmx4",
	FrameOSC1:   "osc1",
	FrameOSC2:   "osc2",
	FrameOSC3:   "osc3",
	FrameOSC4:   "osc4",
	FrameMIDI1:  "midi1",
	FrameMIDI2:  "midi2",
	FrameMIDI3:  "midi3",
	FrameMIDI4:  "midi4",
	FrameMIDI5:  "midi5",
	FrameMIDI6:  "midi6",
	FrameMIDI7:  "midi7",
	FrameMIDI8:  "midi8",
	FrameVideoA: "video_a",
}

// String returns the variable name as written in patches.
func (v FrameVar) String() string {
	if v < 0 || int(v) >= PerFrameCount {
		return "FrameVar(?)"
	}
	return frameNames[v]
}

// VertexVar indexes the per-vertex variable table.
type VertexVar int

// Per-vertex variables. The first three are mesh constants supplied by the
// evaluator; the rest mirror per-frame variables of the same name.
const (
	VertexTexSize VertexVar = iota
	VertexHMeshSize
	VertexVMeshSize

	VertexSx
	VertexSy
	VertexCx
	VertexCy
	VertexRot
	VertexDx
	VertexDy
	VertexZoom

	VertexTime
	VertexBass
	VertexMid
	VertexTreb
	VertexBassAtt
	VertexMidAtt
	VertexTrebAtt

	VertexWarp
	VertexWarpAnimSpeed
	VertexWarpScale

	VertexQ1
	VertexQ2
	VertexQ3
	VertexQ4
	VertexQ5
	VertexQ6
	VertexQ7
	VertexQ8

	VertexIDMX1
	VertexIDMX2
	VertexIDMX3
	VertexIDMX4
	VertexOSC1
	VertexOSC2
	VertexOSC3
	VertexOSC4
	VertexMIDI1
	VertexMIDI2
	VertexMIDI3
	VertexMIDI4
	VertexMIDI5
	VertexMIDI6
	VertexMIDI7
	VertexMIDI8

	PerVertexCount int = iota
)

var vertexNames = [PerVertexCount]string{
	VertexTexSize:   "_texsize",
	VertexHMeshSize: "_hmeshsize",
	VertexVMeshSize: "_vmeshsize",
}

var vertexFrameOrder = [...]FrameVar{
	FrameSx, FrameSy, FrameCx, FrameCy, FrameRot, FrameDx, FrameDy, FrameZoom,
	FrameTime, FrameBass, FrameMid, FrameTreb, FrameBassAtt, FrameMidAtt, FrameTrebAtt,
	FrameWarp, FrameWarpAnimSpeed, FrameWarpScale,
	FrameQ1, FrameQ2, FrameQ3, FrameQ4, FrameQ5, FrameQ6, FrameQ7, FrameQ8,
	FrameIDMX1, FrameIDMX2, FrameIDMX3, FrameIDMX4,
	FrameOSC1, FrameOSC2, FrameOSC3, FrameOSC4,
	FrameMIDI1, FrameMIDI2, FrameMIDI3, FrameMIDI4,
	FrameMIDI5, FrameMIDI6, FrameMIDI7, FrameMIDI8,
}

// vertexSource maps each per-vertex variable to the per-frame variable it
// is loaded from, or -1.
var vertexSource [PerVertexCount]FrameVar

func init() {
	for v := VertexVar(0); int(v) < PerVertexCount; v++ {
		vertexSource[v] = -1
	}
	for i, f := range vertexFrameOrder {
		v := VertexSx + VertexVar(i)
		vertexSource[v] = f
		vertexNames[v] = frameNames[f]
	}
	for v, name := range frameNames {
		frameByName[name] = FrameVar(v)
	}
	for alias, v := range milkAliases {
		frameByName[alias] = v
	}
}

// String returns the variable name as bound in the per-vertex program.
func (v VertexVar) String() string {
	if v < 0 || int(v) >= PerVertexCount {
		return "VertexVar(?)"
	}
	return vertexNames[v]
}

// Source returns the per-frame variable v is loaded from each frame.
func (v VertexVar) Source() (FrameVar, bool) {
	f := vertexSource[v]
	return f, f >= 0
}

// frameByName resolves lowercased patch keys, including MilkDrop aliases.
var frameByName = make(map[string]FrameVar, PerFrameCount+len(milkAliases))

var milkAliases = map[string]FrameVar{
	"fdecay":                FrameDecay,
	"fvideoechozoom":        FrameVideoEchoZoom,
	"fvideoechoalpha":       FrameVideoEchoAlpha,
	"nvideoechoorientation": FrameVideoEchoOrientation,
	"nwavemode":             FrameWaveMode,
	"badditivewaves":        FrameWaveAdditive,
	"bwavedots":             FrameWaveUseDots,
	"bwavethick":            FrameWaveThick,
	"bmaximizewavecolor":    FrameWaveMaximizeColor,
	"btexwrap":              FrameTexWrap,
	"fwavealpha":            FrameWaveA,
	"fwavescale":            FrameWaveScale,
	"fwarpanimspeed":        FrameWarpAnimSpeed,
	"fwarpscale":            FrameWarpScale,
	"fwarpamount":           FrameWarp,
	"nmotionvectorsx":       FrameMvX,
	"nmotionvectorsy":       FrameMvY,
	"fzoom":                 FrameZoom,
	"frot":                  FrameRot,
}

// LookupFrameVar resolves a patch key to a per-frame variable. Keys are case
// insensitive and MilkDrop preset names are accepted.
func LookupFrameVar(key string) (FrameVar, bool) {
	v, ok := frameByName[strings.ToLower(key)]
	return v, ok
}

// Defaults returns the initial value of every per-frame variable before a
// patch overrides any of them.
func Defaults() [PerFrameCount]float32 {
	var d [PerFrameCount]float32
	d[FrameSx] = 1
	d[FrameSy] = 1
	d[FrameCx] = 0.5
	d[FrameCy] = 0.5
	d[FrameZoom] = 1
	d[FrameDecay] = 1

	d[FrameWaveMode] = 1
	d[FrameWaveScale] = 1
	d[FrameWaveX] = 0.5
	d[FrameWaveY] = 0.5
	d[FrameWaveR] = 1
	d[FrameWaveG] = 1
	d[FrameWaveB] = 1
	d[FrameWaveA] = 1

	d[FrameMvX] = 16
	d[FrameMvY] = 12
	d[FrameMvL] = 1
	d[FrameMvR] = 1
	d[FrameMvG] = 1
	d[FrameMvB] = 1

	for _, v := range []FrameVar{FrameBass, FrameMid, FrameTreb, FrameBassAtt, FrameMidAtt, FrameTrebAtt} {
		d[v] = 1
	}

	d[FrameWarp] = 1
	d[FrameWarpAnimSpeed] = 1
	d[FrameWarpScale] = 1

	d[FrameVideoEchoZoom] = 1

	for n := 0; n < ImageCount; n++ {
		d[imageVar(n, imageVarX)] = 0.5
		d[imageVar(n, imageVarY)] = 0.5
		d[imageVar(n, imageVarZoom)] = 1
		d[imageVar(n, imageVarIndex)] = float32(n)
	}
	return d
}

// Requires records which external input classes a patch reads.
type Requires uint8

const (
	RequireDMX Requires = 1 << iota
	RequireOSC
	RequireMIDI
	RequireVideo
)

// Has reports whether every flag in f is set.
func (r Requires) Has(f Requires) bool { return r&f == f }

func (r Requires) String() string {
	if r == 0 {
		return "none"
	}
	var parts []string
	for _, f := range []struct {
		flag Requires
		name string
	}{{RequireDMX, "dmx"}, {RequireOSC, "osc"}, {RequireMIDI, "midi"}, {RequireVideo, "video"}} {
		if r.Has(f.flag) {
			parts = append(parts, f.name)
		}
	}
	return strings.Join(parts, "|")
}

func frameRequirement(v FrameVar) Requires {
	switch {
	case v >= FrameDMX1 && v <= FrameIDMX4:
		return RequireDMX
	case v >= FrameOSC1 && v <= FrameOSC4:
		return RequireOSC
	case v >= FrameMIDI1 && v <= FrameMIDI8:
		return RequireMIDI
	case v == FrameVideoA:
		return RequireVideo
	}
	return 0
}

func vertexRequirement(v VertexVar) Requires {
	if f, ok := v.Source(); ok {
		return frameRequirement(f)
	}
	return 0
}
