// Package audio defines the capture device the sampler stage reads from.
//
// A Capture works on caller-owned buffers: the sampler submits empty
// buffers, and Collect hands them back filled, in submission order. Device
// implements Capture over any blocking Source, such as the synthetic
// sources in this package or the portaudio input in audio/portaudio.
package audio
