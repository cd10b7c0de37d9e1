// Package pipeline runs the three rendering stages over a fixed pool of
// frame descriptors.
//
// The sampler captures audio and snapshots the control inputs, the
// evaluator runs the current patch on the coprocessor, and the rasterizer
// draws and presents the result. Each stage owns a goroutine; frames move
// between them over bounded channels and return to the sampler once
// displayed, so at most FrameCount frames are in flight.
package pipeline
