//go:build !linux

package numa

// currentCPU has no portable answer outside Linux's sysfs/affinity APIs;
// callers fall back to -1 ("unknown") and the allocator treats that the
// same as a single-node machine.
func currentCPU() int {
	return -1
}
