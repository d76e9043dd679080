// Package xenonfs provides the FileSystem facade (spec §4.6): a
// back-end primitive interface plus a generic Engine implementing the
// traversal/creation/deletion operations once, atop that interface, so
// every back-end (local, ssh, sftp, ftp) gets them for free.
package xenonfs

import (
	"io"

	"xenon"
	"xenon/xenonerr"
	"xenon/xenonpath"
)

// Backend is the set of primitives a concrete adaptor must provide.
// Engine is built once atop this interface; a conforming adaptor need
// only implement Backend to get createDirectories/list/delete/
// toAbsolutePath/setWorkingDirectory for free.
type Backend interface {
	Rename(from, to xenonpath.Path) error
	CreateDirectory(p xenonpath.Path) error
	CreateFile(p xenonpath.Path) error
	CreateSymbolicLink(p, target xenonpath.Path) error
	DeleteFile(p xenonpath.Path) error
	DeleteDirectory(p xenonpath.Path) error
	Exists(p xenonpath.Path) (bool, error)
	// ListDirectory returns the immediate (non-recursive) entries of p.
	ListDirectory(p xenonpath.Path) ([]xenon.PathAttributes, error)
	// ReadFromFile opens p for reading starting at byte offset start.
	ReadFromFile(p xenonpath.Path, start int64) (io.ReadCloser, error)
	// WriteToFile opens p for writing. size is a hint (e.g. to
	// pre-allocate or truncate); back-ends may ignore it.
	WriteToFile(p xenonpath.Path, size int64) (io.WriteCloser, error)
	AppendToFile(p xenonpath.Path) (io.WriteCloser, error)
	GetAttributes(p xenonpath.Path) (xenon.PathAttributes, error)
	ReadSymbolicLink(p xenonpath.Path) (xenonpath.Path, error)
	SetPosixFilePermissions(p xenonpath.Path, perm xenon.Permissions) error
	// IsOpen reports whether the back-end's underlying connection is
	// still usable.
	IsOpen() bool
	Close() error
}

// Engine is the generic FileSystem facade built once atop a Backend.
// It owns the session working directory used to resolve relative
// paths, and the adaptor name used to tag errors it raises directly
// (as opposed to errors a Backend already tags with its own name).
type Engine struct {
	Backend     Backend
	AdaptorName string

	workingDirectory xenonpath.Path
}

// NewEngine constructs an Engine with workingDirectory as the initial
// session working directory.
func NewEngine(adaptorName string, backend Backend, workingDirectory xenonpath.Path) *Engine {
	return &Engine{Backend: backend, AdaptorName: adaptorName, workingDirectory: workingDirectory}
}

// GetWorkingDirectory returns the session's current working directory.
func (e *Engine) GetWorkingDirectory() xenonpath.Path {
	return e.workingDirectory
}

// SetWorkingDirectory asserts p exists and is a directory, then
// updates the session working directory (spec §4.6).
func (e *Engine) SetWorkingDirectory(p xenonpath.Path) error {
	abs := e.ToAbsolutePath(p)
	attrs, err := e.Backend.GetAttributes(abs)
	if err != nil {
		return err
	}
	if !attrs.Directory {
		return xenonerr.New(e.AdaptorName, xenonerr.InvalidPath, "setWorkingDirectory: not a directory: "+abs.String())
	}
	e.workingDirectory = abs
	return nil
}

// ToAbsolutePath resolves p against the session working directory if
// it is relative, then normalizes the result (spec §4.6).
func (e *Engine) ToAbsolutePath(p xenonpath.Path) xenonpath.Path {
	if p.IsAbsolute() {
		return p.Normalize()
	}
	return e.workingDirectory.Resolve(p).Normalize()
}

// CreateDirectories recursively creates p's parents and p itself,
// idempotently: a parent that already exists is left untouched (spec
// §4.6).
func (e *Engine) CreateDirectories(p xenonpath.Path) error {
	abs := e.ToAbsolutePath(p)

	components := abs.Components()
	built := xenonpath.New(abs.Separator(), "")
	if abs.IsAbsolute() {
		built = xenonpath.New(abs.Separator(), abs.Separator())
	}

	for i, name := range components {
		built = built.Join(name)
		exists, err := e.Backend.Exists(built)
		if err != nil {
			return err
		}
		if exists {
			if i == len(components)-1 {
				attrs, err := e.Backend.GetAttributes(built)
				if err != nil {
					return err
				}
				if !attrs.Directory {
					return xenonerr.New(e.AdaptorName, xenonerr.PathAlreadyExists, "createDirectories: exists and is not a directory: "+built.String())
				}
			}
			continue
		}
		if err := e.Backend.CreateDirectory(built); err != nil {
			return err
		}
	}
	return nil
}

// List performs a depth-first traversal of p (skipping "." and ".."
// by construction, since Backend.ListDirectory never reports them),
// returning a materialized ordered sequence of attributes. When
// recursive is false, only p's immediate entries are returned (spec
// §4.6).
func (e *Engine) List(p xenonpath.Path, recursive bool) ([]xenon.PathAttributes, error) {
	abs := e.ToAbsolutePath(p)

	entries, err := e.Backend.ListDirectory(abs)
	if err != nil {
		return nil, err
	}
	if !recursive {
		return entries, nil
	}

	var out []xenon.PathAttributes
	for _, entry := range entries {
		out = append(out, entry)
		if entry.Directory {
			children, err := e.List(entry.Path, true)
			if err != nil {
				return nil, err
			}
			out = append(out, children...)
		}
	}
	return out, nil
}

// Delete removes p. A regular file or symbolic link is deleted
// directly. A directory is deleted recursively when recursive is
// true; otherwise a non-empty directory raises DirectoryNotEmpty
// (spec §4.6).
func (e *Engine) Delete(p xenonpath.Path, recursive bool) error {
	abs := e.ToAbsolutePath(p)

	attrs, err := e.Backend.GetAttributes(abs)
	if err != nil {
		return err
	}

	if !attrs.Directory {
		return e.Backend.DeleteFile(abs)
	}

	entries, err := e.Backend.ListDirectory(abs)
	if err != nil {
		return err
	}
	if len(entries) > 0 && !recursive {
		return xenonerr.New(e.AdaptorName, xenonerr.DirectoryNotEmpty, "delete: directory not empty: "+abs.String())
	}
	for _, entry := range entries {
		if err := e.Delete(entry.Path, recursive); err != nil {
			return err
		}
	}
	return e.Backend.DeleteDirectory(abs)
}
