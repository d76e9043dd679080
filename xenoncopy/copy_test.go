package xenoncopy_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xenon"
	"xenon/xenoncopy"
	"xenon/xenonerr"
	"xenon/xenonfs/local"
	"xenon/xenonpath"
)

func TestCopyFile(t *testing.T) {
	srcRoot := t.TempDir()
	dstRoot := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(srcRoot, "a.txt"), []byte("hello"), 0o644))

	srcFS, err := local.New(srcRoot)
	require.NoError(t, err)
	dstFS, err := local.New(dstRoot)
	require.NoError(t, err)

	engine := xenoncopy.New(xenoncopy.Config{AdaptorName: "local"})

	sep := string(os.PathSeparator)
	srcPath := xenonpath.New(sep, filepath.Join(srcRoot, "a.txt"))
	dstPath := xenonpath.New(sep, filepath.Join(dstRoot, "a.txt"))

	id := engine.Copy(srcFS, srcPath, dstFS, dstPath, xenon.CopyCreate, false)
	require.NotEmpty(t, id)

	status, err := engine.WaitUntilDone(id, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, xenon.CopyDone, status.State)
	assert.Equal(t, int64(5), status.BytesCopied)

	data, err := os.ReadFile(filepath.Join(dstRoot, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	_, err = engine.GetStatus(id)
	require.Error(t, err)
	assert.True(t, xenonerr.IsKind(err, xenonerr.NoSuchCopy))
}

func TestCopyModeCreateFailsWhenDestinationExists(t *testing.T) {
	srcRoot := t.TempDir()
	dstRoot := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(srcRoot, "a.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dstRoot, "a.txt"), []byte("old"), 0o644))

	srcFS, err := local.New(srcRoot)
	require.NoError(t, err)
	dstFS, err := local.New(dstRoot)
	require.NoError(t, err)

	engine := xenoncopy.New(xenoncopy.Config{AdaptorName: "local"})
	sep := string(os.PathSeparator)
	id := engine.Copy(srcFS, xenonpath.New(sep, filepath.Join(srcRoot, "a.txt")), dstFS, xenonpath.New(sep, filepath.Join(dstRoot, "a.txt")), xenon.CopyCreate, false)

	status, err := engine.WaitUntilDone(id, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, xenon.CopyFailed, status.State)
	assert.True(t, xenonerr.IsKind(status.Exception, xenonerr.PathAlreadyExists))
}

func TestCopyModeIgnoreLeavesDestinationUnchanged(t *testing.T) {
	srcRoot := t.TempDir()
	dstRoot := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(srcRoot, "a.txt"), []byte("new"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dstRoot, "a.txt"), []byte("old"), 0o644))

	srcFS, err := local.New(srcRoot)
	require.NoError(t, err)
	dstFS, err := local.New(dstRoot)
	require.NoError(t, err)

	engine := xenoncopy.New(xenoncopy.Config{AdaptorName: "local"})
	sep := string(os.PathSeparator)
	id := engine.Copy(srcFS, xenonpath.New(sep, filepath.Join(srcRoot, "a.txt")), dstFS, xenonpath.New(sep, filepath.Join(dstRoot, "a.txt")), xenon.CopyIgnore, false)

	status, err := engine.WaitUntilDone(id, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, xenon.CopyDone, status.State)

	data, err := os.ReadFile(filepath.Join(dstRoot, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))
}

func TestCopyModeReplaceOverwrites(t *testing.T) {
	srcRoot := t.TempDir()
	dstRoot := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(srcRoot, "a.txt"), []byte("new"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dstRoot, "a.txt"), []byte("old-longer-content"), 0o644))

	srcFS, err := local.New(srcRoot)
	require.NoError(t, err)
	dstFS, err := local.New(dstRoot)
	require.NoError(t, err)

	engine := xenoncopy.New(xenoncopy.Config{AdaptorName: "local"})
	sep := string(os.PathSeparator)
	id := engine.Copy(srcFS, xenonpath.New(sep, filepath.Join(srcRoot, "a.txt")), dstFS, xenonpath.New(sep, filepath.Join(dstRoot, "a.txt")), xenon.CopyReplace, false)

	status, err := engine.WaitUntilDone(id, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, xenon.CopyDone, status.State)

	data, err := os.ReadFile(filepath.Join(dstRoot, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestCopyDirectoryRecursive(t *testing.T) {
	srcRoot := t.TempDir()
	dstRoot := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(srcRoot, "tree", "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(srcRoot, "tree", "top.txt"), []byte("top"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(srcRoot, "tree", "sub", "nested.txt"), []byte("nested"), 0o644))

	srcFS, err := local.New(srcRoot)
	require.NoError(t, err)
	dstFS, err := local.New(dstRoot)
	require.NoError(t, err)

	engine := xenoncopy.New(xenoncopy.Config{AdaptorName: "local"})
	sep := string(os.PathSeparator)
	id := engine.Copy(srcFS, xenonpath.New(sep, filepath.Join(srcRoot, "tree")), dstFS, xenonpath.New(sep, filepath.Join(dstRoot, "tree")), xenon.CopyCreate, true)

	status, err := engine.WaitUntilDone(id, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, xenon.CopyDone, status.State)
	assert.Equal(t, int64(len("top")+len("nested")), status.BytesToCopy)

	data, err := os.ReadFile(filepath.Join(dstRoot, "tree", "sub", "nested.txt"))
	require.NoError(t, err)
	assert.Equal(t, "nested", string(data))
}

func TestCopyModeReplaceDirectoryOverExistingFile(t *testing.T) {
	srcRoot := t.TempDir()
	dstRoot := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(srcRoot, "tree", "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(srcRoot, "tree", "top.txt"), []byte("top"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(srcRoot, "tree", "sub", "nested.txt"), []byte("nested"), 0o644))

	// The destination "tree" is a regular file standing in the way of
	// the directory REPLACE has to create in its place.
	require.NoError(t, os.WriteFile(filepath.Join(dstRoot, "tree"), []byte("in the way"), 0o644))

	srcFS, err := local.New(srcRoot)
	require.NoError(t, err)
	dstFS, err := local.New(dstRoot)
	require.NoError(t, err)

	engine := xenoncopy.New(xenoncopy.Config{AdaptorName: "local"})
	sep := string(os.PathSeparator)
	id := engine.Copy(srcFS, xenonpath.New(sep, filepath.Join(srcRoot, "tree")), dstFS, xenonpath.New(sep, filepath.Join(dstRoot, "tree")), xenon.CopyReplace, true)

	status, err := engine.WaitUntilDone(id, 2*time.Second)
	require.NoError(t, err)
	require.Equal(t, xenon.CopyDone, status.State, "copy should succeed: %v", status.Exception)

	info, err := os.Stat(filepath.Join(dstRoot, "tree"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	data, err := os.ReadFile(filepath.Join(dstRoot, "tree", "sub", "nested.txt"))
	require.NoError(t, err)
	assert.Equal(t, "nested", string(data))
}

func TestCopyNonRecursiveDirectoryIsInvalidPath(t *testing.T) {
	srcRoot := t.TempDir()
	dstRoot := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(srcRoot, "tree"), 0o755))

	srcFS, err := local.New(srcRoot)
	require.NoError(t, err)
	dstFS, err := local.New(dstRoot)
	require.NoError(t, err)

	engine := xenoncopy.New(xenoncopy.Config{AdaptorName: "local"})
	sep := string(os.PathSeparator)
	id := engine.Copy(srcFS, xenonpath.New(sep, filepath.Join(srcRoot, "tree")), dstFS, xenonpath.New(sep, filepath.Join(dstRoot, "tree")), xenon.CopyCreate, false)

	status, err := engine.WaitUntilDone(id, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, xenon.CopyFailed, status.State)
	assert.True(t, xenonerr.IsKind(status.Exception, xenonerr.InvalidPath))
}

func TestCopyCancel(t *testing.T) {
	srcRoot := t.TempDir()
	dstRoot := t.TempDir()

	big := make([]byte, 4*1024*1024)
	require.NoError(t, os.WriteFile(filepath.Join(srcRoot, "big.bin"), big, 0o644))

	srcFS, err := local.New(srcRoot)
	require.NoError(t, err)
	dstFS, err := local.New(dstRoot)
	require.NoError(t, err)

	engine := xenoncopy.New(xenoncopy.Config{AdaptorName: "local", BufferSize: 4096})
	sep := string(os.PathSeparator)
	id := engine.Copy(srcFS, xenonpath.New(sep, filepath.Join(srcRoot, "big.bin")), dstFS, xenonpath.New(sep, filepath.Join(dstRoot, "big.bin")), xenon.CopyCreate, false)

	status, err := engine.Cancel(id)
	require.NoError(t, err)
	assert.Equal(t, xenon.CopyFailed, status.State)
	assert.True(t, xenonerr.IsKind(status.Exception, xenonerr.CopyCancelled))
	assert.LessOrEqual(t, status.BytesCopied, status.BytesToCopy)
}
