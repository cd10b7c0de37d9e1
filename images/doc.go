// Package images provides the refcounted still images that patches place
// on screen.
//
// A Cache decodes each file once through disintegration/imaging, converts
// it to NRGBA and hands out shared handles. The file is dropped from the
// cache when its last handle is released.
package images
