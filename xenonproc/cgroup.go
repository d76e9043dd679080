package xenonproc

// CgroupLimits carries the resource limits a JobDescription requested
// (spec's CoresPerTask/MaxMemory), translated into the units a cgroup
// controller consumes. A zero value means "no limit".
type CgroupLimits struct {
	// Cores is the cpu.max limit, in cores (fractional values allowed).
	Cores float32
	// MemoryMB is the memory.high limit, in mebibytes.
	MemoryMB int
}

func (l CgroupLimits) isZero() bool {
	return l.Cores == 0 && l.MemoryMB == 0
}

// cgroupApplier places a freshly-started process's pid under resource
// limits, best effort: a local back-end with no cgroup2 access (a
// container without the privilege to create one, a non-Linux host)
// still runs jobs, just without enforcement. The returned release func
// tears the cgroup down once the process has exited; it is always
// non-nil, even when Apply itself failed, so callers can call it
// unconditionally.
type cgroupApplier interface {
	Apply(pid int, limits CgroupLimits) (release func(), err error)
}

// noopCgroupApplier is the cgroupApplier used on platforms without a
// cgroup v2 adaptation (everything but Linux).
type noopCgroupApplier struct{}

func (noopCgroupApplier) Apply(int, CgroupLimits) (func(), error) {
	return func() {}, nil
}
