// Package window generates the analysis windows applied to audio blocks
// before their transform.
//
// Every family here is a cosine sum, w(x) = sum_k a_k cos(2 pi k x) over
// x in [0, 1]. Periodic windows suit FFT framing, symmetric windows suit
// filter design.
package window
