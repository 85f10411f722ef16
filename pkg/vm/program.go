package vm

import (
	"sort"
	"sync"

	"github.com/ArkLabsHQ/combinelock/pkg/ckb"
	"github.com/pkg/errors"
)

// Program is a script image the engine can run.  A program reports success
// by returning nil and failure by returning an error; the error's exit code
// (see ExitCode) is what the substrate observes.  A program transfers control
// to another image by returning the result of Machine.Exec unchanged.
type Program interface {
	Run(m *Machine, argv []string) error
}

// ProgramFunc adapts an ordinary function to the Program interface.
type ProgramFunc func(m *Machine, argv []string) error

// Run calls f(m, argv).
func (f ProgramFunc) Run(m *Machine, argv []string) error {
	return f(m, argv)
}

// Image binds a program to the bytes a code cell carries for it.  Scripts
// refer to an image through the hash of those bytes (Data, Data1) or through
// the type script of the cell carrying them (Type).
type Image struct {
	Name    string
	Data    []byte
	Program Program
}

// NewImage returns an image whose code cell data is derived from its name.
func NewImage(name string, p Program) *Image {
	return &Image{
		Name:    name,
		Data:    []byte("combinelock-image:" + name),
		Program: p,
	}
}

// DataHash returns the code hash scripts use to reference the image by data.
func (i *Image) DataHash() ckb.Hash {
	return ckb.Blake2b256(i.Data)
}

// ProgramRegistry maps code cell data hashes onto program images.  It is
// safe for concurrent use; engines only read from it.
type ProgramRegistry struct {
	mtx    sync.RWMutex
	byHash map[ckb.Hash]*Image
	byName map[string]*Image
}

// NewProgramRegistry returns an empty registry.
func NewProgramRegistry() *ProgramRegistry {
	return &ProgramRegistry{
		byHash: make(map[ckb.Hash]*Image),
		byName: make(map[string]*Image),
	}
}

// Register adds images to the registry.  Registering two images with the
// same data or the same name is an error.
func (r *ProgramRegistry) Register(images ...*Image) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	for _, img := range images {
		h := img.DataHash()
		if _, ok := r.byHash[h]; ok {
			return errors.Errorf("image %s already registered under %s",
				img.Name, h)
		}
		if _, ok := r.byName[img.Name]; ok {
			return errors.Errorf("image name %s already registered",
				img.Name)
		}
		r.byHash[h] = img
		r.byName[img.Name] = img
	}
	return nil
}

// MustRegister is like Register but panics on error.
func (r *ProgramRegistry) MustRegister(images ...*Image) {
	if err := r.Register(images...); err != nil {
		panic(err)
	}
}

// Lookup returns the image whose code cell data hashes to h.
func (r *ProgramRegistry) Lookup(h ckb.Hash) (*Image, bool) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	img, ok := r.byHash[h]
	return img, ok
}

// ByName returns the image registered under name.
func (r *ProgramRegistry) ByName(name string) (*Image, bool) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	img, ok := r.byName[name]
	return img, ok
}

// Names returns the names of all registered images in sorted order.
func (r *ProgramRegistry) Names() []string {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
