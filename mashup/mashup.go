// Package mashup keeps the chain of patch instances layered in the live
// performance and the cursor the evaluator renders from.
//
// Entries live in an arena of slots; the chain and the current cursor hold
// slot indices, so removing an entry never invalidates the cursor. Every
// entry is a clone owned by the list; the identity of an entry is the
// Original of its clone.
package mashup

import (
	"slices"
	"sync"

	"github.com/cwbudde/algo-vj/logging"
	"github.com/cwbudde/algo-vj/patch"
)

const none = -1

// List is a lock-guarded chain of patch instances. The zero value is an
// empty list ready for use.
type List struct {
	mu      sync.Mutex
	slots   []*patch.Patch
	chain   []int
	current int
	layers  int
}

// New returns an empty list.
func New() *List {
	return &List{current: none}
}

func (l *List) alloc(p *patch.Patch) int {
	for i, s := range l.slots {
		if s == nil {
			l.slots[i] = p
			return i
		}
	}
	l.slots = append(l.slots, p)
	return len(l.slots) - 1
}

func (l *List) free(slot int) {
	l.slots[slot].Release()
	l.slots[slot] = nil
}

func (l *List) clear() {
	for _, s := range l.chain {
		l.free(s)
	}
	l.chain = l.chain[:0]
	l.current = none
}

func (l *List) find(p *patch.Patch) (pos int, ok bool) {
	orig := p.Original()
	for i, s := range l.chain {
		if l.slots[s].Original() == orig {
			return i, true
		}
	}
	return 0, false
}

// Pulse replaces the whole chain with a fresh clone of p, unless layers
// added with Add are active or p was released. It reports whether the
// chain changed.
func (l *List) Pulse(p *patch.Patch) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.layers > 0 {
		return false
	}
	c, err := p.Clone()
	if err != nil {
		logging.Logger().Warn("mashup: pulse", "err", err)
		return false
	}
	l.clear()
	s := l.alloc(c)
	l.chain = append(l.chain, s)
	l.current = s
	return true
}

// Add layers a clone of p. It is a no-op when p's original is already
// layered; adding the patch of the transient entry left by Pulse turns that
// entry into the first layer. Otherwise the first layer replaces the
// transient entry and becomes current, and later layers are prepended.
func (l *List) Add(p *patch.Patch) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.find(p); ok {
		if l.layers > 0 {
			return false
		}
		l.layers = 1
		return true
	}
	c, err := p.Clone()
	if err != nil {
		logging.Logger().Warn("mashup: add", "err", err)
		return false
	}
	s := l.alloc(c)
	if l.layers == 0 {
		for _, old := range l.chain {
			l.free(old)
		}
		l.chain = append(l.chain[:0], s)
		l.current = s
	} else {
		l.chain = slices.Insert(l.chain, 0, s)
	}
	l.layers++
	logging.Logger().Debug("mashup: add", "entries", len(l.chain), "layers", l.layers)
	return true
}

// Del removes the entry cloned from p, advancing the cursor first when it
// points at that entry. The last remaining entry is never removed; deleting
// it only ends the mashup, so the next Pulse may replace it. Del reports
// whether an entry was removed.
func (l *List) Del(p *patch.Patch) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	pos, ok := l.find(p)
	if !ok {
		return false
	}
	if len(l.chain) == 1 {
		l.layers = 0
		return false
	}
	s := l.chain[pos]
	if l.current == s {
		l.current = l.chain[(pos+1)%len(l.chain)]
	}
	l.chain = slices.Delete(l.chain, pos, pos+1)
	l.free(s)
	if l.layers > 0 {
		l.layers--
	}
	logging.Logger().Debug("mashup: del", "entries", len(l.chain), "layers", l.layers)
	return true
}

func (l *List) advance() {
	if len(l.chain) == 0 {
		return
	}
	pos := slices.Index(l.chain, l.current)
	l.current = l.chain[(pos+1)%len(l.chain)]
}

// Current returns the current entry, optionally moving the cursor to the
// next entry first. It returns nil for an empty list.
func (l *List) Current(advance bool) *patch.Patch {
	l.mu.Lock()
	defer l.mu.Unlock()
	if advance {
		l.advance()
	}
	if l.current == none || len(l.chain) == 0 {
		return nil
	}
	return l.slots[l.current]
}

// With runs fn on the current entry while holding the list lock, so the
// entry stays valid for the duration of fn. It reports false, without
// calling fn, when the list is empty.
func (l *List) With(advance bool, fn func(p *patch.Patch)) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if advance {
		l.advance()
	}
	if l.current == none || len(l.chain) == 0 {
		return false
	}
	fn(l.slots[l.current])
	return true
}

// Len returns the number of chained entries.
func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.chain)
}

// Layers returns the number of active layers added with Add.
func (l *List) Layers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.layers
}

// Originals returns the identities of the chained entries, head first.
func (l *List) Originals() []*patch.Patch {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*patch.Patch, len(l.chain))
	for i, s := range l.chain {
		out[i] = l.slots[s].Original()
	}
	return out
}

// Close releases every entry and empties the list.
func (l *List) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clear()
	l.layers = 0
}
