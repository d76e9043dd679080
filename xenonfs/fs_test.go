package xenonfs_test

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xenon"
	"xenon/xenonerr"
	"xenon/xenonfs"
	"xenon/xenonpath"
)

// fakeBackend is an in-memory Backend used to test Engine's generic
// operations independent of any real transport.
type fakeBackend struct {
	dirs  map[string]bool
	files map[string]bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{dirs: map[string]bool{"/": true}, files: map[string]bool{}}
}

func (b *fakeBackend) Rename(from, to xenonpath.Path) error { return nil }

func (b *fakeBackend) CreateDirectory(p xenonpath.Path) error {
	b.dirs[p.String()] = true
	return nil
}

func (b *fakeBackend) CreateFile(p xenonpath.Path) error {
	b.files[p.String()] = true
	return nil
}

func (b *fakeBackend) CreateSymbolicLink(p, target xenonpath.Path) error { return nil }

func (b *fakeBackend) DeleteFile(p xenonpath.Path) error {
	delete(b.files, p.String())
	return nil
}

func (b *fakeBackend) DeleteDirectory(p xenonpath.Path) error {
	delete(b.dirs, p.String())
	return nil
}

func (b *fakeBackend) Exists(p xenonpath.Path) (bool, error) {
	return b.dirs[p.String()] || b.files[p.String()], nil
}

func (b *fakeBackend) ListDirectory(p xenonpath.Path) ([]xenon.PathAttributes, error) {
	prefix := p.String()
	if prefix != "/" {
		prefix += "/"
	} else {
		prefix = "/"
	}
	var out []xenon.PathAttributes
	for name := range b.dirs {
		if name == p.String() {
			continue
		}
		if parentOf(name) == p.String() {
			out = append(out, xenon.PathAttributes{Path: xenonpath.New("/", name), Directory: true})
		}
	}
	for name := range b.files {
		if parentOf(name) == p.String() {
			out = append(out, xenon.PathAttributes{Path: xenonpath.New("/", name), Regular: true})
		}
	}
	return out, nil
}

func parentOf(p string) string {
	path := xenonpath.New("/", p)
	parent := path.Parent()
	if parent.String() == "." {
		return "/"
	}
	return parent.String()
}

func (b *fakeBackend) ReadFromFile(p xenonpath.Path, start int64) (io.ReadCloser, error) {
	return nil, nil
}

func (b *fakeBackend) WriteToFile(p xenonpath.Path, size int64) (io.WriteCloser, error) {
	return nil, nil
}

func (b *fakeBackend) AppendToFile(p xenonpath.Path) (io.WriteCloser, error) {
	return nil, nil
}

func (b *fakeBackend) GetAttributes(p xenonpath.Path) (xenon.PathAttributes, error) {
	if b.dirs[p.String()] {
		return xenon.PathAttributes{Path: p, Directory: true}, nil
	}
	return xenon.PathAttributes{Path: p, Regular: true}, nil
}

func (b *fakeBackend) ReadSymbolicLink(p xenonpath.Path) (xenonpath.Path, error) {
	return xenonpath.Path{}, nil
}

func (b *fakeBackend) SetPosixFilePermissions(p xenonpath.Path, perm xenon.Permissions) error {
	return nil
}

func (b *fakeBackend) IsOpen() bool { return true }
func (b *fakeBackend) Close() error { return nil }

func TestEngineCreateDirectoriesIdempotent(t *testing.T) {
	backend := newFakeBackend()
	engine := xenonfs.NewEngine("fake", backend, xenonpath.New("/", "/"))

	p := xenonpath.New("/", "/a/b/c")
	require.NoError(t, engine.CreateDirectories(p))
	assert.True(t, backend.dirs["/a"])
	assert.True(t, backend.dirs["/a/b"])
	assert.True(t, backend.dirs["/a/b/c"])

	require.NoError(t, engine.CreateDirectories(p))
}

func TestEngineToAbsolutePath(t *testing.T) {
	backend := newFakeBackend()
	engine := xenonfs.NewEngine("fake", backend, xenonpath.New("/", "/home/user"))

	abs := engine.ToAbsolutePath(xenonpath.New("/", "sub/dir"))
	assert.Equal(t, "/home/user/sub/dir", abs.String())

	abs = engine.ToAbsolutePath(xenonpath.New("/", "/etc"))
	assert.Equal(t, "/etc", abs.String())
}

func TestEngineSetWorkingDirectoryRejectsNonDirectory(t *testing.T) {
	backend := newFakeBackend()
	backend.files["/file.txt"] = true
	engine := xenonfs.NewEngine("fake", backend, xenonpath.New("/", "/"))

	err := engine.SetWorkingDirectory(xenonpath.New("/", "/file.txt"))
	require.Error(t, err)
	assert.True(t, xenonerr.IsKind(err, xenonerr.InvalidPath))
}

func TestEngineDeleteNonEmptyDirectoryRequiresRecursive(t *testing.T) {
	backend := newFakeBackend()
	backend.dirs["/a"] = true
	backend.files["/a/f.txt"] = true
	engine := xenonfs.NewEngine("fake", backend, xenonpath.New("/", "/"))

	err := engine.Delete(xenonpath.New("/", "/a"), false)
	require.Error(t, err)
	assert.True(t, xenonerr.IsKind(err, xenonerr.DirectoryNotEmpty))

	require.NoError(t, engine.Delete(xenonpath.New("/", "/a"), true))
	assert.False(t, backend.dirs["/a"])
	assert.False(t, backend.files["/a/f.txt"])
}
