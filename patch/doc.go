// Package patch compiles MilkDrop-style patch text into the two programs a
// frame needs: a per-frame program run once per frame in scalar mode, and
// a per-vertex program run over the warp mesh.
//
// A patch is a list of key = value lines. Keys name per-frame variables
// (with MilkDrop preset aliases), image slots, or equation blocks:
//
//	decay = 0.98
//	image1 = logo.png
//	per_frame_1 = zoom = 1 + 0.1*bass; rot = 0.02*sin(time)
//	per_vertex = zoom = zoom + 0.05*rad
//
// Compile returns a *Patch: an instance holding its own per-frame register
// file over a shared, refcounted compiled core. Clone makes further
// instances for layering; each instance is released exactly once.
package patch
