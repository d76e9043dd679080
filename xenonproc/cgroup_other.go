//go:build !linux

package xenonproc

// newCgroupApplier returns a no-op applier on every platform but Linux,
// since cgroups v2 is a Linux-kernel-specific facility.
func newCgroupApplier() cgroupApplier {
	return noopCgroupApplier{}
}
