package cgroup

import (
	"fmt"
	"os"
	"path"
	"strconv"

	ierrors "xenon/internal/errors"
)

// newCPUController creates a cpuController instance.
func newCPUController(cgroup Cgroup, cpus float32) *cpuController {
	return &cpuController{
		baseController: baseController{name: cpuName, cgroup: cgroup},
		cpus:           cpus,
	}
}

// cpuController enables and applies the "cpu.max" control.
type cpuController struct {
	baseController
	cpus float32
}

func (c cpuController) apply() error {
	const period = 100000
	limit := c.cpus * period
	value := fmt.Sprintf("%d %d", int(limit), period)

	return ierrors.Wrap(c.baseController.apply(cpuMax, value))
}

// newMemoryController creates a memoryController instance.
func newMemoryController(cgroup Cgroup, limit uint64) *memoryController {
	return &memoryController{
		baseController: baseController{name: memoryName, cgroup: cgroup},
		limit:          limit,
	}
}

// memoryController enables and applies the "memory.high" control.
type memoryController struct {
	baseController
	limit uint64
}

func (c memoryController) apply() error {
	limit := strconv.FormatUint(c.limit, 10)
	return ierrors.Wrap(c.baseController.apply(memoryHigh, limit))
}

// baseController owns the logic shared by every controller: writing to
// a cgroup's subtree_control to enable itself, and writing a value to
// one of its own control files.
type baseController struct {
	name   string
	cgroup Cgroup
}

// enable enables a controller by writing to the cgroup.subtree_control
// file of the cgroup.
func (c baseController) enable() error {
	file := path.Join(c.cgroup.path, cgroupSubtreeControl)
	fd, err := os.OpenFile(file, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fileMode)
	if err != nil {
		return ierrors.Wrap(err)
	}
	defer fd.Close()

	_, err = fd.WriteString(fmt.Sprintf("+%s\n", c.name))
	return ierrors.Wrap(err)
}

// apply sets the value for the specified control in the controller's
// cgroup.
func (c baseController) apply(control, value string) error {
	file := path.Join(c.cgroup.path, control)
	fd, err := os.OpenFile(file, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fileMode)
	if err != nil {
		return ierrors.Wrap(err)
	}
	defer fd.Close()

	_, err = fd.WriteString(value)
	return ierrors.Wrap(err)
}

const (
	// cgroupSubtreeControl is the name of the file that lists all
	// controllers enabled within a cgroup.
	cgroupSubtreeControl = "cgroup.subtree_control"
	// cpuName is the cgroup cpu controller name.
	cpuName = "cpu"
	// memoryName is the cgroup memory controller name.
	memoryName = "memory"
	// memoryHigh is the memory.high cgroup control.
	memoryHigh = "memory.high"
	// cpuMax is the cpu.max cgroup control.
	cpuMax = "cpu.max"
)
