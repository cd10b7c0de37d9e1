package patch

import "github.com/cwbudde/algo-vj/fpvm"

// Fragment is one program under construction in the equation backend.
// Bind returns a binding handle; after Finalize, References reports which
// handles survived dead-code elimination and Register maps a surviving
// handle to its register.
type Fragment interface {
	Bind(name string) (int, error)
	Assign(dest, expr string) error
	Finalize() error
	References() []bool
	Register(id int) int
	Schedule() (*fpvm.Program, error)
}

// Backend creates fragments. Vector fragments run once per mesh vertex.
type Backend interface {
	NewFragment(vector bool) Fragment
}

type fpvmBackend struct{}

func (fpvmBackend) NewFragment(vector bool) Fragment { return fpvm.NewFragment(vector) }

// DefaultBackend is the software equation compiler.
var DefaultBackend Backend = fpvmBackend{}
