// Package tmu implements the texture mapping unit: it draws a source
// texture into a destination rectangle through a grid of source
// coordinates, scaling every sample by a brightness and blending it over
// the destination.
//
// Mesh vertices are source coordinates in pixels with FracBits
// fractional bits, the format produced by the per-vertex program.
package tmu
