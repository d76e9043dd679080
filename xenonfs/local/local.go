// Package local is the FileSystem back-end that operates directly on
// the host's own filesystem via os and golang.org/x/sys/unix.
//
// readFromFile additionally supports live-tailing a path that a
// tracked batch job still has open for writing (spec §4.6's
// readFromFile, supplemented per SPEC_FULL.md): callers mark a path
// open via MarkOpenForWrite when submitting a batch job whose
// Stdout/Stderr targets it, and Unmark once the job is observed
// terminal. A read that hits EOF on a marked path blocks on an
// inotify watch (see tail.go) for the next write instead of returning
// io.EOF, so a caller streaming a running job's output observes a live
// tail.
package local

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"xenon"
	"xenon/xenonerr"
	"xenon/xenonfs"
	"xenon/xenonpath"
)

// AdaptorName identifies this back-end in generated errors.
const AdaptorName = "local"

// Backend implements xenonfs.Backend directly atop the host OS.
type Backend struct {
	separator string

	mu         sync.Mutex
	openWrites map[string]bool
}

// NewBackend constructs a Backend using separator (typically
// os.PathSeparator's string form) to render/parse Paths.
func NewBackend(separator string) *Backend {
	if separator == "" {
		separator = string(os.PathSeparator)
	}
	return &Backend{separator: separator, openWrites: make(map[string]bool)}
}

// New constructs an *xenonfs.Engine rooted at workingDirectory (an OS
// path string), backed by a local Backend.
func New(workingDirectory string) (*xenonfs.Engine, error) {
	sep := string(os.PathSeparator)
	abs, err := filepath.Abs(workingDirectory)
	if err != nil {
		return nil, xenonerr.Wrap(AdaptorName, xenonerr.InvalidLocation, "resolve working directory", err)
	}
	backend := NewBackend(sep)
	return xenonfs.NewEngine(AdaptorName, backend, xenonpath.New(sep, abs)), nil
}

// MarkOpenForWrite records that p is currently being written by a
// tracked batch job, enabling live-tail behavior in ReadFromFile.
func (b *Backend) MarkOpenForWrite(p xenonpath.Path) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.openWrites[p.String()] = true
}

// UnmarkOpenForWrite reverses MarkOpenForWrite, typically once the
// owning job reaches a terminal state.
func (b *Backend) UnmarkOpenForWrite(p xenonpath.Path) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.openWrites, p.String())
}

func (b *Backend) isOpenForWrite(p xenonpath.Path) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.openWrites[p.String()]
}

func (b *Backend) osPath(p xenonpath.Path) string {
	return p.String()
}

func (b *Backend) Rename(from, to xenonpath.Path) error {
	if err := os.Rename(b.osPath(from), b.osPath(to)); err != nil {
		return translate(err)
	}
	return nil
}

func (b *Backend) CreateDirectory(p xenonpath.Path) error {
	if err := os.Mkdir(b.osPath(p), 0o755); err != nil {
		return translate(err)
	}
	return nil
}

func (b *Backend) CreateFile(p xenonpath.Path) error {
	f, err := os.OpenFile(b.osPath(p), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return translate(err)
	}
	return f.Close()
}

func (b *Backend) CreateSymbolicLink(p, target xenonpath.Path) error {
	if err := os.Symlink(b.osPath(target), b.osPath(p)); err != nil {
		return translate(err)
	}
	return nil
}

func (b *Backend) DeleteFile(p xenonpath.Path) error {
	if err := os.Remove(b.osPath(p)); err != nil {
		return translate(err)
	}
	return nil
}

func (b *Backend) DeleteDirectory(p xenonpath.Path) error {
	if err := os.Remove(b.osPath(p)); err != nil {
		return translate(err)
	}
	return nil
}

func (b *Backend) Exists(p xenonpath.Path) (bool, error) {
	_, err := os.Lstat(b.osPath(p))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, translate(err)
}

func (b *Backend) ListDirectory(p xenonpath.Path) ([]xenon.PathAttributes, error) {
	entries, err := os.ReadDir(b.osPath(p))
	if err != nil {
		return nil, translate(err)
	}

	out := make([]xenon.PathAttributes, 0, len(entries))
	for _, entry := range entries {
		child := p.Join(entry.Name())
		attrs, err := b.GetAttributes(child)
		if err != nil {
			return nil, err
		}
		out = append(out, attrs)
	}
	return out, nil
}

func (b *Backend) ReadFromFile(p xenonpath.Path, start int64) (io.ReadCloser, error) {
	f, err := os.Open(b.osPath(p))
	if err != nil {
		return nil, translate(err)
	}
	if start > 0 {
		if _, err := f.Seek(start, io.SeekStart); err != nil {
			f.Close()
			return nil, translate(err)
		}
	}
	return &tailingReader{file: f, path: b.osPath(p), isTracked: func() bool { return b.isOpenForWrite(p) }}, nil
}

func (b *Backend) WriteToFile(p xenonpath.Path, size int64) (io.WriteCloser, error) {
	f, err := os.OpenFile(b.osPath(p), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, translate(err)
	}
	if size > 0 {
		if err := f.Truncate(size); err != nil {
			f.Close()
			return nil, translate(err)
		}
	}
	return f, nil
}

func (b *Backend) AppendToFile(p xenonpath.Path) (io.WriteCloser, error) {
	f, err := os.OpenFile(b.osPath(p), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, translate(err)
	}
	return f, nil
}

func (b *Backend) GetAttributes(p xenonpath.Path) (xenon.PathAttributes, error) {
	osPath := b.osPath(p)

	var stat unix.Stat_t
	if err := unix.Lstat(osPath, &stat); err != nil {
		return xenon.PathAttributes{}, translate(err)
	}

	attrs := xenon.PathAttributes{
		Path:         p,
		Directory:    stat.Mode&unix.S_IFMT == unix.S_IFDIR,
		Regular:      stat.Mode&unix.S_IFMT == unix.S_IFREG,
		SymbolicLink: stat.Mode&unix.S_IFMT == unix.S_IFLNK,
		Size:         stat.Size,
		LastModified: timespecMillis(stat.Mtim),
		LastAccess:   timespecMillis(stat.Atim),
		// creationTime-from-access-time: most Linux filesystems don't
		// expose a real birth time via stat(2); preserved as observed
		// rather than zeroed or derived from ctime.
		Creation: timespecMillis(stat.Atim),
		Hidden:   len(p.FileName()) > 0 && p.FileName()[0] == '.',
	}
	attrs.Other = !attrs.Directory && !attrs.Regular && !attrs.SymbolicLink

	mode := os.FileMode(stat.Mode & 0o777)
	attrs.Permissions = permissionsFromMode(mode)
	attrs.Executable = mode&0o111 != 0
	attrs.Readable = mode&0o444 != 0
	attrs.Writable = mode&0o222 != 0

	return attrs, nil
}

func (b *Backend) ReadSymbolicLink(p xenonpath.Path) (xenonpath.Path, error) {
	target, err := os.Readlink(b.osPath(p))
	if err != nil {
		return xenonpath.Path{}, translate(err)
	}
	return xenonpath.New(p.Separator(), target), nil
}

func (b *Backend) SetPosixFilePermissions(p xenonpath.Path, perm xenon.Permissions) error {
	if err := os.Chmod(b.osPath(p), modeFromPermissions(perm)); err != nil {
		return translate(err)
	}
	return nil
}

func (b *Backend) IsOpen() bool { return true }

func (b *Backend) Close() error { return nil }

func timespecMillis(ts unix.Timespec) int64 {
	return ts.Sec*1000 + ts.Nsec/1e6
}

func permissionsFromMode(mode os.FileMode) xenon.Permissions {
	return xenon.Permissions{
		OwnerRead: mode&0o400 != 0, OwnerWrite: mode&0o200 != 0, OwnerExecute: mode&0o100 != 0,
		GroupRead: mode&0o040 != 0, GroupWrite: mode&0o020 != 0, GroupExecute: mode&0o010 != 0,
		OtherRead: mode&0o004 != 0, OtherWrite: mode&0o002 != 0, OtherExecute: mode&0o001 != 0,
	}
}

func modeFromPermissions(p xenon.Permissions) os.FileMode {
	var mode os.FileMode
	if p.OwnerRead {
		mode |= 0o400
	}
	if p.OwnerWrite {
		mode |= 0o200
	}
	if p.OwnerExecute {
		mode |= 0o100
	}
	if p.GroupRead {
		mode |= 0o040
	}
	if p.GroupWrite {
		mode |= 0o020
	}
	if p.GroupExecute {
		mode |= 0o010
	}
	if p.OtherRead {
		mode |= 0o004
	}
	if p.OtherWrite {
		mode |= 0o002
	}
	if p.OtherExecute {
		mode |= 0o001
	}
	return mode
}

func translate(err error) error {
	switch {
	case os.IsNotExist(err):
		return xenonerr.Wrap(AdaptorName, xenonerr.NoSuchPath, "path does not exist", err)
	case os.IsExist(err):
		return xenonerr.Wrap(AdaptorName, xenonerr.PathAlreadyExists, "path already exists", err)
	case os.IsPermission(err):
		return xenonerr.Wrap(AdaptorName, xenonerr.PermissionDenied, "permission denied", err)
	default:
		return xenonerr.Wrap(AdaptorName, xenonerr.NoSuchPath, "filesystem operation failed", err)
	}
}

// tailingReader wraps an *os.File so that a read hitting EOF on a path
// still marked open-for-write blocks for the file's next growth via
// inotify instead of returning io.EOF.
type tailingReader struct {
	file      *os.File
	path      string
	isTracked func() bool
}

func (t *tailingReader) Read(p []byte) (int, error) {
	for {
		n, err := t.file.Read(p)
		if n > 0 {
			return n, nil
		}
		if err != io.EOF || !t.isTracked() {
			return n, err
		}
		if waitErr := t.waitForGrowth(); waitErr != nil {
			return 0, waitErr
		}
	}
}

// waitForGrowth blocks until the watched file is next modified or
// removed, or up to a second passes with neither -- the periodic
// timeout lets Read re-check isTracked() even if no inotify event
// ever arrives (e.g. the writer already exited and was unmarked).
func (t *tailingReader) waitForGrowth() error {
	watcher, err := newFileGrowthWatcher(t.path)
	if err != nil {
		return err
	}
	return watcher.wait(time.Second)
}

func (t *tailingReader) Close() error {
	return t.file.Close()
}
