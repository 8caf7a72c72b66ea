package sandbox

import (
	"context"
	"io"
	"io/fs"
	"os"
	"sync"

	"github.com/spf13/afero"
	"mvdan.cc/sh/v3/expand"
)

// State is the persistent, opaquely-mutated interpreter state of one
// session (Session.sandbox_state). It owns an in-memory filesystem
// and a variable table that survives across Execute calls; callers never
// reach into its fields.
type State struct {
	fs   afero.Fs
	vars map[string]expand.Variable
}

// NewState allocates a fresh, empty sandbox state. Every session gets its
// own State, so variables bound in one session are never visible from
// another (session isolation invariant).
func NewState() *State {
	return &State{
		fs:   afero.NewMemMapFs(),
		vars: make(map[string]expand.Variable),
	}
}

// varsSnapshot implements expand.Environ over the persisted variable table.
// It is handed to a fresh interp.Runner at the start of every Execute call.
type varsSnapshot struct {
	mu   sync.Mutex
	vars map[string]expand.Variable
}

func (v *varsSnapshot) Get(name string) expand.Variable {
	v.mu.Lock()
	defer v.mu.Unlock()
	if vr, ok := v.vars[name]; ok {
		return vr
	}
	return expand.Variable{}
}

func (v *varsSnapshot) Each(fn func(name string, vr expand.Variable) bool) {
	v.mu.Lock()
	snapshot := make(map[string]expand.Variable, len(v.vars))
	for k, val := range v.vars {
		snapshot[k] = val
	}
	v.mu.Unlock()
	for name, vr := range snapshot {
		if !fn(name, vr) {
			return
		}
	}
}

func aferoOpenHandler(afs afero.Fs) func(ctx context.Context, path string, flag int, perm os.FileMode) (io.ReadWriteCloser, error) {
	return func(_ context.Context, path string, flag int, perm os.FileMode) (io.ReadWriteCloser, error) {
		return afs.OpenFile(path, flag, perm)
	}
}

func aferoStatHandler(afs afero.Fs) func(ctx context.Context, name string, followSymlinks bool) (fs.FileInfo, error) {
	return func(_ context.Context, name string, followSymlinks bool) (fs.FileInfo, error) {
		return afs.Stat(name)
	}
}

func aferoReadDirHandler(afs afero.Fs) func(ctx context.Context, path string) ([]fs.FileInfo, error) {
	return func(_ context.Context, path string) ([]fs.FileInfo, error) {
		return afero.ReadDir(afs, path)
	}
}
