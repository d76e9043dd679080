package cgroup

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"xenon/internal/xlog"
)

// logger reports cgroup-service events that have no other caller to
// surface them to (walk errors encountered during best-effort cleanup).
var logger = xlog.New(os.Stdout, "cgroup")

// NewService mounts (or attaches to an already-mounted) cgroup2
// hierarchy and creates a base directory beneath it that every Cgroup
// this Service creates will nest under.
func NewService(options ...ServiceOption) (*Service, error) {
	s := &Service{
		mountPath: defaultMountPath,
	}
	for _, option := range options {
		option(s)
	}

	s.path = path.Join(s.mountPath, baseDir)

	if err := s.mount(); err != nil {
		return nil, err
	}

	if err := s.enableControllers([]string{cpuName, memoryName}); err != nil {
		return nil, err
	}

	return s, nil
}

// Service facilitates cgroup v2 interactions for a single host.
type Service struct {
	mountPath string
	path      string
}

// ServiceOption mutates a Service instance, typically passed to
// NewService.
type ServiceOption func(*Service)

// WithMountPath configures the Service to mount (or reuse) cgroup2 at
// mountPath instead of the default.
func WithMountPath(mountPath string) ServiceOption {
	return func(s *Service) { s.mountPath = mountPath }
}

// CreateCgroup creates a new Cgroup scoped to this Service, configured
// by the given options.
func (s Service) CreateCgroup(options ...CgroupOption) (*Cgroup, error) {
	id := uuid.New()
	cgroup := &Cgroup{
		ID:      id,
		service: s,
		path:    path.Join(s.path, id.String()),
	}
	for _, option := range options {
		option(cgroup)
	}

	if err := cgroup.create(); err != nil {
		return nil, err
	}

	return cgroup, nil
}

// PlaceInCgroup places pid in the given cgroup.
func (s Service) PlaceInCgroup(cgroup Cgroup, pid int) error {
	return cgroup.placePID(pid)
}

// RemoveCgroup removes the cgroup uniquely identified by id.
func (s Service) RemoveCgroup(id uuid.UUID) error {
	cgroup := Cgroup{ID: id, service: s, path: path.Join(s.path, id.String())}
	return cgroup.remove()
}

// Cleanup removes every cgroup this Service created and its base
// directory, then unmounts the cgroup2 filesystem at the Service's mount
// path. The unmount is unconditional: it does not check whether this
// Service mounted that filesystem or attached to an existing mount. It
// should be called once before process exit.
func (s Service) Cleanup() error {
	if err := s.cleanup(); err != nil {
		return err
	}
	return s.unmount()
}

// placeInRootCgroup moves pids into the cgroup2 root, the only cgroup a
// pid may always be placed into regardless of which controllers are
// enabled on it.
func (s Service) placeInRootCgroup(pids []int) error {
	file := path.Join(s.mountPath, cgroupProcs)
	fd, err := os.OpenFile(file, os.O_WRONLY, fileMode)
	if err != nil {
		return fmt.Errorf("open root cgroup: %w", err)
	}
	defer fd.Close()

	for _, pid := range pids {
		if _, err := fd.WriteString(strconv.Itoa(pid)); err != nil {
			return fmt.Errorf("write to root cgroup: %w", err)
		}
	}

	return nil
}

// mount ensures the cgroup2 filesystem is mounted at s.mountPath and
// that this Service's base directory exists beneath it.
func (s Service) mount() error {
	if err := os.MkdirAll(s.mountPath, fileMode); err != nil {
		return fmt.Errorf("mount service %s: %w", s.mountPath, err)
	}

	entries, err := os.ReadDir(s.mountPath)
	if err != nil || len(entries) == 0 {
		if err := s.mountCgroup2(); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(s.path, fileMode); err != nil {
		return fmt.Errorf("create base cgroup: %w", err)
	}

	return nil
}

func (s Service) mountCgroup2() error {
	if err := unix.Mount("none", s.mountPath, "cgroup2", 0, ""); err != nil {
		return fmt.Errorf("mount cgroup2 %s: %w", s.mountPath, err)
	}
	return nil
}

// cleanup walks the Service's base directory, evacuating pids to the
// root cgroup and removing every sub-cgroup this Service created.
func (s Service) cleanup() error {
	var cgroups []uuid.UUID

	if err := filepath.WalkDir(s.path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Errorf("cleanup walking dir: %s", err)
			return nil
		}

		if !d.Type().IsRegular() || d.Name() != cgroupProcs {
			return nil
		}

		parts := strings.Split(p, s.mountPath)
		if len(parts) != 2 {
			return nil
		}

		cgroup2Path := parts[1]
		parts = strings.Split(cgroup2Path, string(filepath.Separator))
		if len(parts) != 4 {
			return nil
		}

		cgroupID, err := uuid.Parse(parts[2])
		if err != nil {
			logger.Errorf("non-uuid dir: %s", parts[2])
			return nil
		}

		cgroups = append(cgroups, cgroupID)
		return nil
	}); err != nil {
		return fmt.Errorf("cleanup cgroup base: %w", err)
	}

	for _, cgroup := range cgroups {
		if err := s.RemoveCgroup(cgroup); err != nil {
			return err
		}
	}

	if err := unix.Rmdir(s.path); err != nil {
		return fmt.Errorf("rm base cgroup: %w", err)
	}

	return nil
}

func (s Service) unmount() error {
	if err := unix.Unmount(s.mountPath, 0); err != nil {
		return fmt.Errorf("unmount cgroup2: %w", err)
	}
	return nil
}

// enableControllers enables the given controllers on both the root
// cgroup2 mount and this Service's own base directory, so that cgroups
// created beneath it may enable the same controllers on themselves.
func (s Service) enableControllers(controllers []string) error {
	if err := enableControllers(s.mountPath, controllers); err != nil {
		return err
	}
	return enableControllers(s.path, controllers)
}

func enableControllers(dir string, controllers []string) error {
	fd, err := os.OpenFile(path.Join(dir, cgroupSubtreeControl), os.O_WRONLY, fileMode)
	if err != nil {
		return fmt.Errorf("open %s subtree_control: %w", dir, err)
	}
	defer fd.Close()

	for _, controller := range controllers {
		if _, err := fd.WriteString(fmt.Sprintf("+%s", controller)); err != nil {
			return fmt.Errorf("enable %s %s controller: %w", dir, controller, err)
		}
	}

	return nil
}

const (
	// fileMode is the permission this package uses for every cgroup file
	// and directory it creates.
	fileMode = 0644
	// defaultMountPath is where cgroup2 is mounted if the caller doesn't
	// override it with WithMountPath.
	defaultMountPath = "/sys/fs/cgroup"
	// baseDir is the directory name this package's cgroups nest under,
	// beneath the Service's mount path.
	baseDir = "xenon"
)
