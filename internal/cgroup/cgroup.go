// Package cgroup provides types for interaction with Linux cgroups v2,
// used to bound a locally-launched job's CPU and memory consumption to
// the limits recorded on its JobDescription.
package cgroup

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// Cgroup represents a Linux cgroup dedicated to a single job.
type Cgroup struct {
	// ID is the unique identifier of the cgroup.
	ID uuid.UUID
	// Memory is the "memory.high" bytes limit applied to this cgroup. A
	// zeroed value indicates no limit is set.
	Memory uint64
	// Cpus is the "cpu.max" limit applied to this cgroup, in cores
	// (fractional values such as 1.5 are allowed). A zeroed value
	// indicates no limit is set.
	Cpus float32

	// service is the Service a Cgroup belongs to.
	service Service

	// path is the file path to the Cgroup.
	path string
}

// CgroupOption mutates a Cgroup instance, typically passed to
// Service.CreateCgroup.
type CgroupOption func(*Cgroup)

// WithMemory configures a Cgroup to utilize the specified memory bytes
// limit.
func WithMemory(limit uint64) CgroupOption {
	return func(c *Cgroup) { c.Memory = limit }
}

// WithCpus configures a Cgroup to utilize the specified cpu core limit.
func WithCpus(limit float32) CgroupOption {
	return func(c *Cgroup) { c.Cpus = limit }
}

// controller enables and applies a single cgroup control.
type controller interface {
	enable() error
	apply() error
}

// create creates the cgroup directory and enables+applies whichever
// controllers the Cgroup's limits call for.
func (c Cgroup) create() error {
	if err := os.Mkdir(c.path, fileMode); err != nil {
		return fmt.Errorf("create cgroup: %w", err)
	}

	var set []controller
	if c.Memory > 0 {
		set = append(set, newMemoryController(c, c.Memory))
	}
	if c.Cpus > 0 {
		set = append(set, newCPUController(c, c.Cpus))
	}

	for _, ctl := range set {
		if err := ctl.enable(); err != nil {
			return fmt.Errorf("enable controller: %w", err)
		}
		if err := ctl.apply(); err != nil {
			return fmt.Errorf("apply controller: %w", err)
		}
	}

	return nil
}

// placePID adds the specified pid to the cgroup, via an intermediate
// leaf directory (a process can only be placed in a cgroup with no
// child controllers enabled on it).
func (c Cgroup) placePID(pid int) error {
	leaf := uuid.New().String()
	dir := filepath.Join(c.path, leaf)
	if err := os.Mkdir(dir, fileMode); err != nil {
		return fmt.Errorf("create cgroup leaf: %w", err)
	}

	file := filepath.Join(dir, cgroupProcs)
	value := strconv.Itoa(pid)

	if err := os.WriteFile(file, []byte(value), fileMode); err != nil {
		return fmt.Errorf("write cgroup pid: %w", err)
	}

	return nil
}

// remove removes the cgroup, after first evacuating any pids still
// running within it back to the root cgroup.
func (c Cgroup) remove() error {
	pids, err := c.readPids()
	if err != nil {
		return err
	}

	if err := c.service.placeInRootCgroup(pids); err != nil {
		return err
	}

	if err := c.removeLeaves(); err != nil {
		return err
	}

	if err := unix.Rmdir(c.path); err != nil {
		return fmt.Errorf("remove cgroup: %w", err)
	}

	return nil
}

// readPids retrieves all pids belonging to the cgroup's leaves.
func (c Cgroup) readPids() ([]int, error) {
	var pids []int
	if err := filepath.WalkDir(c.path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Errorf("reading cgroup pids: %s", err)
			return nil
		}

		if !d.Type().IsRegular() || d.Name() != cgroupProcs {
			return nil
		}

		parts := strings.Split(path, c.path)
		if len(parts) != 2 {
			return nil
		}

		leafPath := parts[1]
		parts = strings.Split(leafPath, string(filepath.Separator))
		if len(parts) != 3 {
			return nil
		}

		leafPids, err := readLeafPids(path)
		if err != nil {
			logger.Errorf("reading leaf pids; path: %v, error: %v", path, err)
		}
		pids = append(pids, leafPids...)

		return nil
	}); err != nil {
		return nil, fmt.Errorf("walk cgroup leaf cgroup.procs: %w", err)
	}

	return pids, nil
}

// removeLeaves removes every leaf directory placePID created.
func (c Cgroup) removeLeaves() error {
	var leaves []uuid.UUID
	if err := filepath.WalkDir(c.path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Errorf("reading cgroup leaves: %v", err)
			return nil
		}

		if !d.Type().IsRegular() || d.Name() != cgroupProcs {
			return nil
		}

		parts := strings.Split(path, c.path)
		if len(parts) != 2 {
			return nil
		}
		leafPath := parts[1]

		parts = strings.Split(leafPath, string(filepath.Separator))
		if len(parts) != 3 {
			return nil
		}

		leafCgroupID, err := uuid.Parse(parts[1])
		if err != nil {
			logger.Errorf("non-uuid leaf dir: %s", parts[1])
			return nil
		}

		leaves = append(leaves, leafCgroupID)
		return nil
	}); err != nil {
		return fmt.Errorf("walk cgroup leaves: %w", err)
	}

	for _, leaf := range leaves {
		dir := filepath.Join(c.path, leaf.String())
		if err := unix.Rmdir(dir); err != nil {
			return fmt.Errorf("rm leaf cgroup; path: %s, error: %v", dir, err)
		}
	}
	return nil
}

// readLeafPids retrieves all pids recorded in a leaf's cgroup.procs.
func readLeafPids(path string) ([]int, error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read leaf cgroup pids: %w", err)
	}
	defer fd.Close()

	var pids []int
	scanner := bufio.NewScanner(fd)
	for scanner.Scan() {
		pid, err := strconv.Atoi(scanner.Text())
		if err != nil {
			return nil, fmt.Errorf("scan leaf cgroup.procs pids atoi: %w", err)
		}
		pids = append(pids, pid)
	}
	if scanner.Err() != nil {
		return nil, fmt.Errorf("scan leaf cgroup.procs pids: %w", scanner.Err())
	}

	return pids, nil
}

const (
	// cgroupProcs is the name of the file that lists all processes within
	// a cgroup.
	cgroupProcs = "cgroup.procs"
)
