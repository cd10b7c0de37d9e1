// Package input provides the external control sources sampled once per
// frame: a DMX512 universe, OSC values received over UDP and MIDI control
// changes.
//
// Every source is read by snapshot. The sampler never blocks on an input;
// a source that has received nothing reports zeros.
package input
