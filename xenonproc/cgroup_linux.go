//go:build linux

package xenonproc

import (
	"os"
	"sync"

	"xenon/internal/cgroup"
	"xenon/internal/xlog"
)

var cgroupLogger = xlog.New(os.Stderr, "xenonproc")

// newCgroupApplier returns the Linux cgroup v2 applier. The underlying
// Service is created lazily, on the first job that actually requests a
// resource limit, so a local factory that never sets CoresPerTask or
// MaxMemory never touches /sys/fs/cgroup at all.
func newCgroupApplier() cgroupApplier {
	return &linuxCgroupApplier{}
}

type linuxCgroupApplier struct {
	once    sync.Once
	service *cgroup.Service
	initErr error
}

func (a *linuxCgroupApplier) ensureService() (*cgroup.Service, error) {
	a.once.Do(func() {
		a.service, a.initErr = cgroup.NewService()
	})
	return a.service, a.initErr
}

func (a *linuxCgroupApplier) Apply(pid int, limits CgroupLimits) (func(), error) {
	noop := func() {}
	if limits.isZero() {
		return noop, nil
	}

	service, err := a.ensureService()
	if err != nil {
		cgroupLogger.Warnf("cgroup service unavailable, running job %d without resource limits: %s", pid, err)
		return noop, nil
	}

	var options []cgroup.CgroupOption
	if limits.Cores > 0 {
		options = append(options, cgroup.WithCpus(limits.Cores))
	}
	if limits.MemoryMB > 0 {
		options = append(options, cgroup.WithMemory(uint64(limits.MemoryMB)*1024*1024))
	}

	cg, err := service.CreateCgroup(options...)
	if err != nil {
		cgroupLogger.Warnf("create cgroup for job %d, running without resource limits: %s", pid, err)
		return noop, nil
	}

	if err := service.PlaceInCgroup(*cg, pid); err != nil {
		cgroupLogger.Warnf("place job %d in cgroup, running without resource limits: %s", pid, err)
		_ = service.RemoveCgroup(cg.ID)
		return noop, nil
	}

	return func() {
		if err := service.RemoveCgroup(cg.ID); err != nil {
			cgroupLogger.Warnf("remove cgroup for job %d: %s", pid, err)
		}
	}, nil
}
