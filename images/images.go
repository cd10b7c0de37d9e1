package images

import (
	"errors"
	"fmt"
	"image"
	"io/fs"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/disintegration/imaging"

	"github.com/cwbudde/algo-vj/logging"
)

// ErrNotFound is returned when an image file does not exist.
var ErrNotFound = errors.New("images: not found")

// Provider resolves image paths to refcounted handles. Every successful Get
// must be balanced by one Release.
type Provider interface {
	Get(path string) (*Image, error)
}

// Image is a decoded picture shared by reference.
type Image struct {
	Path string
	Pix  *image.NRGBA

	refs  atomic.Int32
	cache *Cache
}

// New wraps img in a handle with one reference that belongs to no cache.
func New(img image.Image) *Image {
	im := &Image{Pix: imaging.Clone(img)}
	im.refs.Store(1)
	return im
}

// Width returns the picture width in pixels.
func (im *Image) Width() int { return im.Pix.Rect.Dx() }

// Height returns the picture height in pixels.
func (im *Image) Height() int { return im.Pix.Rect.Dy() }

// Refs returns the current reference count.
func (im *Image) Refs() int { return int(im.refs.Load()) }

// Retain adds a reference and returns im.
func (im *Image) Retain() *Image {
	if im.cache != nil {
		im.cache.mu.Lock()
		defer im.cache.mu.Unlock()
	}
	im.refs.Add(1)
	return im
}

// Release drops a reference. Releasing a handle with no references left is
// logged and ignored.
func (im *Image) Release() {
	if im.cache != nil {
		im.cache.mu.Lock()
		defer im.cache.mu.Unlock()
	}
	if im.refs.Load() <= 0 {
		logging.Logger().Warn("images: release of unreferenced image", "path", im.Path)
		return
	}
	if im.refs.Add(-1) == 0 && im.cache != nil {
		delete(im.cache.entries, im.Path)
	}
}

// Option configures a Cache.
type Option func(*Cache)

// WithMaxSize fits decoded images into w x h, keeping the aspect ratio.
// Zero disables fitting.
func WithMaxSize(w, h int) Option {
	return func(c *Cache) {
		c.maxW, c.maxH = w, h
	}
}

// Cache is a Provider backed by the file system.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*Image
	maxW    int
	maxH    int
}

// NewCache returns an empty cache.
func NewCache(opts ...Option) *Cache {
	c := &Cache{entries: make(map[string]*Image)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns a handle for the image at path, decoding it on first use.
func (c *Cache) Get(path string) (*Image, error) {
	key, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("images: %s: %w", path, err)
	}

	c.mu.Lock()
	if im, ok := c.entries[key]; ok {
		im.refs.Add(1)
		c.mu.Unlock()
		return im, nil
	}
	c.mu.Unlock()

	src, err := imaging.Open(key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("images: decode %s: %w", path, err)
	}
	var pix *image.NRGBA
	b := src.Bounds()
	if c.maxW > 0 && c.maxH > 0 && (b.Dx() > c.maxW || b.Dy() > c.maxH) {
		pix = imaging.Fit(src, c.maxW, c.maxH, imaging.Lanczos)
	} else {
		pix = imaging.Clone(src)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Another Get may have decoded the same file meanwhile.
	if im, ok := c.entries[key]; ok {
		im.refs.Add(1)
		return im, nil
	}
	im := &Image{Path: key, Pix: pix, cache: c}
	im.refs.Store(1)
	c.entries[key] = im
	logging.Logger().Debug("images: loaded", "path", key, "width", pix.Rect.Dx(), "height", pix.Rect.Dy())
	return im, nil
}

// Len returns the number of cached images.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
